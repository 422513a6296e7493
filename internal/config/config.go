package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/derekprior/fixtures/internal/league"
)

// Date is a wrapper around time.Time for YAML date parsing.
type Date struct {
	Time time.Time
}

func (d *Date) UnmarshalYAML(value *yaml.Node) error {
	t, err := time.Parse("2006-01-02", value.Value)
	if err != nil {
		return fmt.Errorf("invalid date %q: %w", value.Value, err)
	}
	d.Time = t
	return nil
}

func (d Date) MarshalYAML() (any, error) {
	return d.Time.Format("2006-01-02"), nil
}

// Weekday accepts either a day name ("tuesday", "Tue") or a number 0-6
// with Sunday as 0.
type Weekday struct {
	time.Weekday
}

func (w *Weekday) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := ParseWeekday(value.Value)
	if err != nil {
		return err
	}
	w.Weekday = parsed
	return nil
}

func (w Weekday) MarshalYAML() (any, error) {
	return strings.ToLower(w.String()), nil
}

// ParseWeekday parses a day name, its three-letter abbreviation, or 0-6.
func ParseWeekday(s string) (time.Weekday, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.Atoi(s); err == nil {
		if n < 0 || n > 6 {
			return 0, fmt.Errorf("invalid day of week %d: must be 0 (Sunday) to 6 (Saturday)", n)
		}
		return time.Weekday(n), nil
	}
	for d := time.Sunday; d <= time.Saturday; d++ {
		name := d.String()
		if strings.EqualFold(s, name) || strings.EqualFold(s, name[:3]) {
			return d, nil
		}
	}
	return 0, fmt.Errorf("invalid day of week %q", s)
}

type Competition struct {
	Name   string        `yaml:"name"`
	Format league.Format `yaml:"format"`
	Kind   league.Kind   `yaml:"kind"`
	// Status defaults to registration so a freshly imported season can be
	// scheduled straight away.
	Status string `yaml:"status,omitempty"`
}

type Team struct {
	Name   string   `yaml:"name"`
	Roster []string `yaml:"roster"`
}

type Schedule struct {
	StartDate Date    `yaml:"start_date"`
	DayOfWeek Weekday `yaml:"day_of_week"`
	Weeks     int     `yaml:"weeks"`
	Courts    []int64 `yaml:"courts"`
}

// Config is a season file: one competition, its teams, and the parameters
// used to generate its schedule.
type Config struct {
	Competition Competition `yaml:"competition"`
	Teams       []Team      `yaml:"teams"`
	Schedule    Schedule    `yaml:"schedule"`
}

// TeamNames returns team names in file order.
func (c *Config) TeamNames() []string {
	names := make([]string, len(c.Teams))
	for i, t := range c.Teams {
		names[i] = t.Name
	}
	return names
}

// ScheduleConfig converts the schedule block into generation input.
func (c *Config) ScheduleConfig() league.ScheduleConfig {
	return league.ScheduleConfig{
		StartDate:     c.Schedule.StartDate.Time,
		DayOfWeek:     c.Schedule.DayOfWeek.Weekday,
		NumberOfWeeks: c.Schedule.Weeks,
		CourtIDs:      c.Schedule.Courts,
	}
}

// NewCompetition converts the competition and team blocks for import.
func (c *Config) NewCompetition() league.NewCompetition {
	status := league.StatusRegistration
	if c.Competition.Status != "" {
		// validate has already accepted it.
		status, _ = league.ParseStatus(c.Competition.Status)
	}
	nc := league.NewCompetition{
		Name:   c.Competition.Name,
		Format: c.Competition.Format,
		Kind:   c.Competition.Kind,
		Status: status,
	}
	for _, t := range c.Teams {
		nc.Teams = append(nc.Teams, league.NewTeam{Name: t.Name, Roster: t.Roster})
	}
	return nc
}

// LoadFromBytes parses YAML bytes into a Config and validates it.
func LoadFromBytes(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if cfg.Competition.Kind == "" {
		cfg.Competition.Kind = league.KindLeague
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadFromFile reads and parses a YAML config file.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return LoadFromBytes(data)
}

func (c *Config) validate() error {
	if strings.TrimSpace(c.Competition.Name) == "" {
		return fmt.Errorf("competition name is required")
	}
	if c.Competition.Format.RequiredRosterSize() == 0 {
		return fmt.Errorf("unknown competition format %q: use %q or %q",
			c.Competition.Format, league.Format4v4, league.Format6v6)
	}
	switch c.Competition.Kind {
	case league.KindLeague, league.KindTournament:
	default:
		return fmt.Errorf("unknown competition kind %q: use %q or %q",
			c.Competition.Kind, league.KindLeague, league.KindTournament)
	}
	if c.Competition.Status != "" {
		if _, err := league.ParseStatus(c.Competition.Status); err != nil {
			return err
		}
	}

	if len(c.Teams) == 0 {
		return fmt.Errorf("at least one team is required")
	}

	// Check for duplicate team names
	seen := make(map[string]bool)
	for i, t := range c.Teams {
		name := strings.TrimSpace(t.Name)
		if name == "" {
			return fmt.Errorf("team %d has no name", i+1)
		}
		if seen[name] {
			return fmt.Errorf("team %q appears more than once", name)
		}
		seen[name] = true
	}

	if err := c.ScheduleConfig().Validate(); err != nil {
		return fmt.Errorf("schedule: %w", err)
	}
	return nil
}
