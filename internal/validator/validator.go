package validator

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/derekprior/fixtures/internal/config"
	"github.com/derekprior/fixtures/internal/excel"
	"github.com/derekprior/fixtures/internal/schedule"
)

// Violation represents a constraint violation found during validation.
type Violation struct {
	Row     int
	Type    string // "error" or "warning"
	Message string
}

// Rules holds the soft limits checked as warnings.
type Rules struct {
	Slots schedule.SlotTable
	// MaxHomeAwayGap is the largest tolerated |home - away| per team.
	MaxHomeAwayGap int
	// MaxSlotDebt is the largest tolerated distance between a team's slot
	// debt and the league average.
	MaxSlotDebt float64
}

// DefaultRules suits schedules generated with the default slot table.
func DefaultRules() Rules {
	return Rules{
		Slots:          schedule.DefaultSlots(),
		MaxHomeAwayGap: 4,
		MaxSlotDebt:    8,
	}
}

// Validate reads a schedule Excel file and checks it against the season file.
func Validate(cfg *config.Config, rules Rules, path string) ([]Violation, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("opening file: %w", err)
	}
	defer f.Close()

	games, courts, err := readAssignments(f)
	if err != nil {
		return nil, fmt.Errorf("reading assignments: %w", err)
	}

	var violations []Violation

	// Check hard constraints
	violations = append(violations, checkUnknownTeams(cfg, games)...)
	violations = append(violations, checkCourts(cfg, courts)...)
	violations = append(violations, checkOncePerMatchday(games)...)
	violations = append(violations, checkCourtDoubleBooking(cfg, rules, games)...)
	violations = append(violations, checkMatchdays(cfg, games)...)
	violations = append(violations, checkPairings(cfg, games)...)

	// Check soft constraints
	violations = append(violations, checkHomeAwayBalance(cfg, rules, games)...)
	violations = append(violations, checkSlotFairness(cfg, rules, games)...)

	// Check game completeness
	violations = append(violations, checkGameCompleteness(cfg, games)...)

	return violations, nil
}

type parsedGame struct {
	Row   int
	Round int
	Date  time.Time
	Time  string
	Court string
	Home  string
	Away  string
}

func readAssignments(f *excelize.File) ([]parsedGame, []string, error) {
	rows, err := f.GetRows(excel.MasterSheet)
	if err != nil {
		return nil, nil, fmt.Errorf("reading %s: %w", excel.MasterSheet, err)
	}

	if len(rows) == 0 {
		return nil, nil, fmt.Errorf("%s is empty", excel.MasterSheet)
	}

	// Header row determines court columns (index 4+)
	header := rows[0]
	type courtCol struct {
		index int
		name  string
	}
	var courtCols []courtCol
	var courts []string
	for i := 4; i < len(header); i++ {
		courtCols = append(courtCols, courtCol{i, header[i]})
		courts = append(courts, header[i])
	}

	var games []parsedGame
	for i, row := range rows {
		if i == 0 {
			continue
		}
		if len(row) < 4 || row[1] == "" {
			continue
		}

		round, err := strconv.Atoi(row[0])
		if err != nil {
			continue
		}
		date, err := time.Parse(excel.DateFormat, row[1])
		if err != nil {
			continue
		}
		timeStr := row[3]

		for _, cc := range courtCols {
			if cc.index >= len(row) || row[cc.index] == "" {
				continue
			}
			home, away, ok := parseGameCell(row[cc.index])
			if !ok {
				continue
			}
			games = append(games, parsedGame{
				Row:   i + 1,
				Round: round,
				Date:  date,
				Time:  timeStr,
				Court: cc.name,
				Home:  home,
				Away:  away,
			})
		}
	}

	return games, courts, nil
}

// parseGameCell parses "Home vs Away", with or without a trailing
// " (h-a)" score, and returns (home, away, true).
func parseGameCell(cell string) (home, away string, ok bool) {
	if i := strings.LastIndex(cell, " ("); i >= 0 && isScore(strings.TrimSuffix(cell[i+2:], ")")) && strings.HasSuffix(cell, ")") {
		cell = cell[:i]
	}
	home, away, ok = strings.Cut(cell, " vs ")
	if !ok || home == "" || away == "" {
		return "", "", false
	}
	return home, away, true
}

// isScore reports whether s looks like "21-15".
func isScore(s string) bool {
	h, a, ok := strings.Cut(s, "-")
	if !ok {
		return false
	}
	_, herr := strconv.Atoi(h)
	_, aerr := strconv.Atoi(a)
	return herr == nil && aerr == nil
}

func checkUnknownTeams(cfg *config.Config, games []parsedGame) []Violation {
	known := make(map[string]bool)
	for _, name := range cfg.TeamNames() {
		known[name] = true
	}

	var violations []Violation
	reported := make(map[string]bool)
	for _, g := range games {
		for _, team := range []string{g.Home, g.Away} {
			if !known[team] && !reported[team] {
				reported[team] = true
				violations = append(violations, Violation{
					Row:     g.Row,
					Type:    "error",
					Message: fmt.Sprintf("%s is not a team in %s", team, cfg.Competition.Name),
				})
			}
		}
	}
	return violations
}

func checkCourts(cfg *config.Config, courts []string) []Violation {
	allowed := make(map[string]bool)
	for _, id := range cfg.Schedule.Courts {
		allowed[excel.CourtHeader(id)] = true
	}

	var violations []Violation
	for _, c := range courts {
		if !allowed[c] {
			violations = append(violations, Violation{
				Row:     1,
				Type:    "error",
				Message: fmt.Sprintf("%s is not one of the configured courts", c),
			})
		}
	}
	return violations
}

func checkOncePerMatchday(games []parsedGame) []Violation {
	type teamDay struct {
		team string
		date time.Time
	}
	counts := make(map[teamDay][]int)
	for _, g := range games {
		counts[teamDay{g.Home, g.Date}] = append(counts[teamDay{g.Home, g.Date}], g.Row)
		counts[teamDay{g.Away, g.Date}] = append(counts[teamDay{g.Away, g.Date}], g.Row)
	}

	var violations []Violation
	for td, rows := range counts {
		if len(rows) > 1 {
			violations = append(violations, Violation{
				Row:     rows[1],
				Type:    "error",
				Message: fmt.Sprintf("%s plays %d games on %s", td.team, len(rows), td.date.Format("01/02")),
			})
		}
	}
	return violations
}

// checkCourtDoubleBooking reports a court used twice in one time slot. A
// round with more games than slots times courts cannot avoid that, so there
// it is only a warning.
func checkCourtDoubleBooking(cfg *config.Config, rules Rules, games []parsedGame) []Violation {
	type slotKey struct {
		date  time.Time
		time  string
		court string
	}
	seen := make(map[slotKey]int)

	perRound := make(map[int]int)
	for _, g := range games {
		perRound[g.Round]++
	}
	capacity := len(rules.Slots) * len(cfg.Schedule.Courts)

	var violations []Violation
	for _, g := range games {
		k := slotKey{g.Date, g.Time, g.Court}
		if first, ok := seen[k]; ok {
			v := Violation{
				Row:  g.Row,
				Type: "error",
				Message: fmt.Sprintf("%s at %s %s is booked twice (rows %d and %d)",
					g.Court, g.Date.Format("01/02"), g.Time, first, g.Row),
			}
			if capacity > 0 && perRound[g.Round] > capacity {
				v.Type = "warning"
				v.Message += fmt.Sprintf("; round %d has %d games for %d slots on %d courts",
					g.Round, perRound[g.Round], len(rules.Slots), len(cfg.Schedule.Courts))
			}
			violations = append(violations, v)
			continue
		}
		seen[k] = g.Row
	}
	return violations
}

// checkMatchdays verifies every round falls on the configured weekday and
// that round r is played r-1 weeks after the first matchday.
func checkMatchdays(cfg *config.Config, games []parsedGame) []Violation {
	first := schedule.FirstMatchday(cfg.Schedule.StartDate.Time, cfg.Schedule.DayOfWeek.Weekday)

	var violations []Violation
	reported := make(map[int]bool)
	for _, g := range games {
		if reported[g.Round] {
			continue
		}
		want := first.AddDate(0, 0, 7*(g.Round-1))
		if !sameDay(g.Date, want) {
			reported[g.Round] = true
			violations = append(violations, Violation{
				Row:  g.Row,
				Type: "error",
				Message: fmt.Sprintf("round %d is on %s %s, expected %s %s",
					g.Round, g.Date.Format("Mon"), g.Date.Format("01/02"), want.Format("Mon"), want.Format("01/02")),
			})
		}
	}
	return violations
}

// checkPairings reports any pair that meets twice, and, when the season is
// long enough for a full cycle, any pair that never meets.
func checkPairings(cfg *config.Config, games []parsedGame) []Violation {
	type matchup struct{ a, b string }
	key := func(x, y string) matchup {
		if x > y {
			x, y = y, x
		}
		return matchup{x, y}
	}

	met := make(map[matchup][]int)
	for _, g := range games {
		k := key(g.Home, g.Away)
		met[k] = append(met[k], g.Row)
	}

	var violations []Violation
	for k, rows := range met {
		if len(rows) > 1 {
			violations = append(violations, Violation{
				Row:     rows[1],
				Type:    "error",
				Message: fmt.Sprintf("%s and %s meet %d times", k.a, k.b, len(rows)),
			})
		}
	}

	teams := cfg.TeamNames()
	cycle := len(teams) - 1
	if len(teams)%2 == 1 {
		cycle = len(teams)
	}
	if cfg.Schedule.Weeks < cycle {
		return violations
	}
	for i := 0; i < len(teams); i++ {
		for j := i + 1; j < len(teams); j++ {
			if _, ok := met[key(teams[i], teams[j])]; !ok {
				violations = append(violations, Violation{
					Type:    "error",
					Message: fmt.Sprintf("%s and %s never meet", teams[i], teams[j]),
				})
			}
		}
	}
	return violations
}

func checkHomeAwayBalance(cfg *config.Config, rules Rules, games []parsedGame) []Violation {
	if rules.MaxHomeAwayGap <= 0 {
		return nil
	}

	home := make(map[string]int)
	away := make(map[string]int)
	for _, g := range games {
		home[g.Home]++
		away[g.Away]++
	}

	var violations []Violation
	for _, team := range cfg.TeamNames() {
		gap := home[team] - away[team]
		if gap < 0 {
			gap = -gap
		}
		if gap > rules.MaxHomeAwayGap {
			violations = append(violations, Violation{
				Type: "warning",
				Message: fmt.Sprintf("%s is home %d times and away %d times (max gap %d)",
					team, home[team], away[team], rules.MaxHomeAwayGap),
			})
		}
	}
	return violations
}

// checkSlotFairness recomputes each team's slot debt from the sheet and
// warns about teams whose debt strays past the limit from the league
// average, worst first. Measuring from the average ignores the drift every
// team shares when a round fills fewer slots than the table offers.
func checkSlotFairness(cfg *config.Config, rules Rules, games []parsedGame) []Violation {
	if len(rules.Slots) == 0 {
		return nil
	}

	weights := make(map[string]float64, len(rules.Slots))
	for _, s := range rules.Slots {
		weights[s.Label] = s.Weight
	}
	mean := rules.Slots.Mean()

	var violations []Violation
	debt := make(map[string]float64)
	unknown := make(map[string]bool)
	for _, g := range games {
		w, ok := weights[g.Time]
		if !ok {
			if !unknown[g.Time] {
				unknown[g.Time] = true
				violations = append(violations, Violation{
					Row:     g.Row,
					Type:    "warning",
					Message: fmt.Sprintf("time %s is not in the slot table", g.Time),
				})
			}
			continue
		}
		debt[g.Home] += mean - w
		debt[g.Away] += mean - w
	}

	if rules.MaxSlotDebt <= 0 {
		return violations
	}
	type teamDebt struct {
		team string
		debt float64
	}
	teams := cfg.TeamNames()
	if len(teams) == 0 {
		return violations
	}
	var avg float64
	for _, team := range teams {
		avg += debt[team]
	}
	avg /= float64(len(teams))

	var unfair []teamDebt
	for _, team := range teams {
		if rel := debt[team] - avg; math.Abs(rel) > rules.MaxSlotDebt {
			unfair = append(unfair, teamDebt{team, rel})
		}
	}
	sort.SliceStable(unfair, func(i, j int) bool {
		return math.Abs(unfair[i].debt) > math.Abs(unfair[j].debt)
	})
	for _, u := range unfair {
		violations = append(violations, Violation{
			Type:    "warning",
			Message: fmt.Sprintf("%s has slot debt %+.1f against the league average (max %.1f)", u.team, u.debt, rules.MaxSlotDebt),
		})
	}
	return violations
}

func checkGameCompleteness(cfg *config.Config, games []parsedGame) []Violation {
	counts := make(map[string]int)
	for _, g := range games {
		counts[g.Home]++
		counts[g.Away]++
	}

	var violations []Violation
	for _, team := range cfg.TeamNames() {
		if counts[team] == 0 {
			violations = append(violations, Violation{
				Type:    "error",
				Message: fmt.Sprintf("%s has no games scheduled", team),
			})
		}
	}
	return violations
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
