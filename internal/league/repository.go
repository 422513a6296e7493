package league

import (
	"context"

	"github.com/google/uuid"
)

type CompetitionRepository interface {
	GetCompetition(ctx context.Context, id int64) (*Competition, error)
}

type RosterRepository interface {
	CountRosterSize(ctx context.Context, teamID int64) (int, error)
}

// CalendarStore creates calendar entries. Returned entries carry their
// assigned IDs, in input order.
type CalendarStore interface {
	CreateEntries(ctx context.Context, entries []CalendarEntry) ([]CalendarEntry, error)
}

type MatchStore interface {
	CreateMany(ctx context.Context, matches []Match) ([]Match, error)
	UpdateScore(ctx context.Context, matchID int64, home, away int) error
}

// Tx is the write scope of one schedule generation.
type Tx interface {
	// ClaimSchedule records that competitionID has a schedule. It fails with
	// a state conflict if one was already claimed.
	ClaimSchedule(ctx context.Context, competitionID int64, runID uuid.UUID) error
	Calendar() CalendarStore
	Matches() MatchStore
}

// NewCompetition is the input to Store.CreateCompetition.
type NewCompetition struct {
	Name   string
	Format Format
	Kind   Kind
	Status Status
	Teams  []NewTeam
}

type NewTeam struct {
	Name   string
	Roster []string
}

// Store is everything the fixtures service needs from persistence.
type Store interface {
	CompetitionRepository
	RosterRepository

	GetMatch(ctx context.Context, id int64) (*Match, error)
	ListMatches(ctx context.Context, competitionID int64) ([]Match, error)
	CountMatches(ctx context.Context, competitionID int64) (int, error)

	// UpdateScore writes both scores only while the match's competition is
	// ACTIVE. It returns ErrNotFound or ErrStateConflict otherwise.
	UpdateScore(ctx context.Context, matchID int64, home, away int) error

	// RunInTx runs fn in a single transaction, committing when fn returns
	// nil and rolling back otherwise.
	RunInTx(ctx context.Context, fn func(tx Tx) error) error

	CreateCompetition(ctx context.Context, c NewCompetition) (*Competition, error)
	SetCompetitionStatus(ctx context.Context, id int64, status Status) error

	Close() error
}
