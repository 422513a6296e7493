package league

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a competition.
type Status string

const (
	StatusDraft        Status = "DRAFT"
	StatusRegistration Status = "REGISTRATION"
	StatusActive       Status = "ACTIVE"
	StatusCompleted    Status = "COMPLETED"
)

// ParseStatus accepts any casing of a lifecycle status name.
func ParseStatus(s string) (Status, error) {
	switch st := Status(strings.ToUpper(strings.TrimSpace(s))); st {
	case StatusDraft, StatusRegistration, StatusActive, StatusCompleted:
		return st, nil
	default:
		return "", fmt.Errorf("unknown competition status %q", s)
	}
}

// Format determines how many players a team must field.
type Format string

const (
	Format4v4 Format = "4v4"
	Format6v6 Format = "6v6"
)

// RequiredRosterSize returns the minimum roster for the format, or 0 when
// the format is unknown.
func (f Format) RequiredRosterSize() int {
	switch f {
	case Format4v4:
		return 4
	case Format6v6:
		return 6
	default:
		return 0
	}
}

// Kind is the type of competition.
type Kind string

const (
	KindLeague     Kind = "league"
	KindTournament Kind = "tournament"
)

// EntryKind is the calendar entry kind used for matches of this competition.
func (k Kind) EntryKind() string {
	switch k {
	case KindTournament:
		return "TOURNAMENT_MATCH"
	default:
		return "LEAGUE_MATCH"
	}
}

type Team struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type Competition struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	Format Format `json:"format"`
	Kind   Kind   `json:"kind"`
	Status Status `json:"status"`
	Teams  []Team `json:"teams"`
}

// TeamName returns the name of the team with the given ID.
func (c *Competition) TeamName(id int64) string {
	for _, t := range c.Teams {
		if t.ID == id {
			return t.Name
		}
	}
	return fmt.Sprintf("team %d", id)
}

// ScheduleConfig is the caller-validated input to schedule generation.
type ScheduleConfig struct {
	StartDate     time.Time    `json:"startDate"`
	DayOfWeek     time.Weekday `json:"dayOfWeek"`
	NumberOfWeeks int          `json:"numberOfWeeks"`
	CourtIDs      []int64      `json:"courtIds"`
}

const MaxWeeks = 52

// Validate reports the first problem with the config, if any.
func (c ScheduleConfig) Validate() error {
	if c.StartDate.IsZero() {
		return fmt.Errorf("start date is required")
	}
	if c.DayOfWeek < time.Sunday || c.DayOfWeek > time.Saturday {
		return fmt.Errorf("day of week must be between 0 and 6, got %d", c.DayOfWeek)
	}
	if c.NumberOfWeeks < 1 || c.NumberOfWeeks > MaxWeeks {
		return fmt.Errorf("number of weeks must be between 1 and %d, got %d", MaxWeeks, c.NumberOfWeeks)
	}
	if len(c.CourtIDs) == 0 {
		return fmt.Errorf("at least one court is required")
	}
	seen := make(map[int64]bool, len(c.CourtIDs))
	for _, id := range c.CourtIDs {
		if id <= 0 {
			return fmt.Errorf("court IDs must be positive, got %d", id)
		}
		if seen[id] {
			return fmt.Errorf("court %d listed more than once", id)
		}
		seen[id] = true
	}
	return nil
}

// CalendarEntry is the booking that reserves a court for a match.
type CalendarEntry struct {
	ID            int64     `json:"id"`
	Ref           uuid.UUID `json:"ref"`
	CompetitionID int64     `json:"competitionId"`
	Title         string    `json:"title"`
	Kind          string    `json:"kind"`
	StartsAt      time.Time `json:"startsAt"`
	CourtID       int64     `json:"courtId"`
	Capacity      int       `json:"capacity"`
	Filled        int       `json:"filled"`
}

type Match struct {
	ID              int64          `json:"id"`
	CompetitionID   int64          `json:"competitionId"`
	HomeTeamID      int64          `json:"homeTeamId"`
	AwayTeamID      int64          `json:"awayTeamId"`
	RoundNumber     int            `json:"roundNumber"`
	ScheduledDate   time.Time      `json:"scheduledDate"`
	TimeSlot        string         `json:"timeSlot"`
	CourtID         int64          `json:"courtId"`
	HomeScore       *int           `json:"homeScore"`
	AwayScore       *int           `json:"awayScore"`
	CalendarEntryID int64          `json:"calendarEntryId"`
	CalendarEntry   *CalendarEntry `json:"calendarEntry,omitempty"`
}

// Scored reports whether both scores have been recorded.
func (m Match) Scored() bool {
	return m.HomeScore != nil && m.AwayScore != nil
}
