package fixtures

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/derekprior/fixtures/internal/league"
	"github.com/derekprior/fixtures/internal/pairing"
	"github.com/derekprior/fixtures/internal/schedule"
)

// ScheduleResult is the outcome of a successful generation. Only the match
// count and matches are part of its JSON form.
type ScheduleResult struct {
	MatchesCreated int            `json:"matchesCreated"`
	Matches        []league.Match `json:"matches"`

	// Rounds is less than the weeks requested when those exceed one cycle.
	Rounds      int                             `json:"-"`
	RunID       uuid.UUID                       `json:"-"`
	MaxSlotDebt float64                         `json:"-"`
	Debt        map[int64]float64               `json:"-"`
	TeamMetrics map[int64]*schedule.TeamMetrics `json:"-"`
}

// GenerateSchedule builds and stores the full fixture list for a
// competition. Nothing is written unless every precondition holds, and the
// calendar entries and matches are committed in one transaction.
func (s *Service) GenerateSchedule(ctx context.Context, competitionID int64, cfg league.ScheduleConfig) (_ *ScheduleResult, err error) {
	const op = "generate schedule"

	logger := s.logger.With().Int64("competition_id", competitionID).Logger()
	started := time.Now()
	var res *ScheduleResult
	defer func() {
		var matches int
		var maxDebt float64
		if res != nil {
			matches, maxDebt = res.MatchesCreated, res.MaxSlotDebt
		}
		s.metrics.ObserveGeneration(outcome(err), time.Since(started), matches, maxDebt)
	}()

	if err := cfg.Validate(); err != nil {
		return nil, league.Validation(op, "%s", err)
	}

	release, err := s.locker.Lock(ctx, competitionID)
	if err != nil {
		return nil, fmt.Errorf("acquiring schedule lock: %w", err)
	}
	defer func() {
		if rerr := release(); rerr != nil {
			logger.Warn().Err(rerr).Msg("Failed to release schedule lock")
		}
	}()

	comp, err := s.checkPreconditions(ctx, competitionID)
	if err != nil {
		return nil, err
	}

	plan, err := s.plan(logger, comp, cfg)
	if err != nil {
		return nil, err
	}

	runID := uuid.New()
	entries, matches := build(comp, plan)

	var created []league.Match
	err = s.retryPolicy(logger).Do(ctx, func(ctx context.Context) error {
		var perr error
		created, perr = s.persist(ctx, competitionID, runID, entries, matches)
		return perr
	})
	if err != nil {
		logger.Error().Err(err).Msg("Schedule persistence failed")
		return nil, err
	}

	res = &ScheduleResult{
		MatchesCreated: len(created),
		Matches:        created,
		Rounds:         plan.rounds,
		RunID:          runID,
		MaxSlotDebt:    plan.MaxAbsDebt(),
		Debt:           plan.Debt,
		TeamMetrics:    plan.TeamMetrics,
	}
	logger.Info().
		Str("run_id", runID.String()).
		Int("rounds", plan.rounds).
		Int("matches", len(created)).
		Float64("max_slot_debt", res.MaxSlotDebt).
		Dur("elapsed", time.Since(started)).
		Msg("Schedule generated")
	return res, nil
}

// checkPreconditions loads the competition and verifies, in order, its
// status, its team count, every roster size, and that no schedule exists.
func (s *Service) checkPreconditions(ctx context.Context, competitionID int64) (*league.Competition, error) {
	const op = "generate schedule"

	comp, err := s.store.GetCompetition(ctx, competitionID)
	if err != nil {
		return nil, err
	}

	if comp.Status != league.StatusRegistration {
		return nil, league.Validation(op, "competition %q is %s; schedules can only be generated during %s",
			comp.Name, comp.Status, league.StatusRegistration)
	}

	if len(comp.Teams) < 2 {
		return nil, league.Validation(op, "competition %q needs at least 2 teams, has %d", comp.Name, len(comp.Teams))
	}

	required := comp.Format.RequiredRosterSize()
	var short []string
	for _, t := range comp.Teams {
		n, err := s.store.CountRosterSize(ctx, t.ID)
		if err != nil {
			return nil, err
		}
		if n < required {
			short = append(short, fmt.Sprintf("%s (%d)", t.Name, n))
		}
	}
	if len(short) > 0 {
		return nil, league.Validation(op, "%s requires %d players per team; short rosters: %s",
			comp.Format, required, strings.Join(short, ", "))
	}

	existing, err := s.store.CountMatches(ctx, competitionID)
	if err != nil {
		return nil, err
	}
	if existing > 0 {
		return nil, league.StateConflict(op, "competition %q already has %d scheduled matches", comp.Name, existing)
	}
	return comp, nil
}

type seasonPlan struct {
	*schedule.Result
	rounds int
}

// plan runs the pure stages: pairings, dates and slot assignment.
func (s *Service) plan(logger zerolog.Logger, comp *league.Competition, cfg league.ScheduleConfig) (*seasonPlan, error) {
	ids := make([]int64, len(comp.Teams))
	for i, t := range comp.Teams {
		ids[i] = t.ID
	}
	cycle := pairing.New(ids)

	count := min(cfg.NumberOfWeeks, cycle.Len())
	if cfg.NumberOfWeeks > cycle.Len() {
		logger.Warn().
			Int("weeks_requested", cfg.NumberOfWeeks).
			Int("rounds", count).
			Msg("More weeks requested than one round robin needs; generating a single cycle")
	}

	dates := schedule.RoundDates(cfg.StartDate, cfg.DayOfWeek, count)
	rounds := make([]schedule.Round, 0, count)
	for r, pairings := range cycle.Rounds(count) {
		rounds = append(rounds, schedule.Round{Number: r + 1, Date: dates[r], Pairings: pairings})
	}

	result, err := schedule.Assign(rounds, s.slots, cfg.CourtIDs)
	if err != nil {
		return nil, league.Validation("generate schedule", "%s", err)
	}
	return &seasonPlan{Result: result, rounds: count}, nil
}

// build turns assignments into unsaved calendar entries and matches, index
// aligned.
func build(comp *league.Competition, p *seasonPlan) ([]league.CalendarEntry, []league.Match) {
	entries := make([]league.CalendarEntry, len(p.Assignments))
	matches := make([]league.Match, len(p.Assignments))
	for i, a := range p.Assignments {
		entries[i] = league.CalendarEntry{
			Ref:           uuid.New(),
			CompetitionID: comp.ID,
			Title:         comp.TeamName(a.Pairing.Home) + " vs " + comp.TeamName(a.Pairing.Away),
			Kind:          comp.Kind.EntryKind(),
			StartsAt:      a.StartsAt(),
			CourtID:       a.CourtID,
			Capacity:      MatchCapacity,
			Filled:        MatchCapacity,
		}
		matches[i] = league.Match{
			CompetitionID: comp.ID,
			HomeTeamID:    a.Pairing.Home,
			AwayTeamID:    a.Pairing.Away,
			RoundNumber:   a.Round,
			ScheduledDate: a.Date,
			TimeSlot:      a.Slot.Label,
			CourtID:       a.CourtID,
		}
	}
	return entries, matches
}

// persist is one transactional attempt. entries and matches are not
// modified, so a failed attempt can be retried with the same input.
func (s *Service) persist(ctx context.Context, competitionID int64, runID uuid.UUID,
	entries []league.CalendarEntry, matches []league.Match) ([]league.Match, error) {
	const op = "persist schedule"

	attemptCtx, cancel := context.WithTimeout(ctx, s.txTimeout)
	defer cancel()

	var created []league.Match
	err := s.store.RunInTx(attemptCtx, func(tx league.Tx) error {
		if err := tx.ClaimSchedule(attemptCtx, competitionID, runID); err != nil {
			return err
		}

		saved, err := tx.Calendar().CreateEntries(attemptCtx, entries)
		if err != nil {
			return err
		}
		if len(saved) != len(matches) {
			return fmt.Errorf("%s: calendar store returned %d entries for %d matches", op, len(saved), len(matches))
		}

		linked := make([]league.Match, len(matches))
		copy(linked, matches)
		for i := range linked {
			linked[i].CalendarEntryID = saved[i].ID
		}

		created, err = tx.Matches().CreateMany(attemptCtx, linked)
		if err != nil {
			return err
		}
		for i := range created {
			entry := saved[i]
			created[i].CalendarEntry = &entry
		}
		return nil
	})

	// A timed-out attempt is worth retrying as long as the caller is still
	// waiting.
	if err != nil && errors.Is(attemptCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil && !league.IsTransient(err) {
		return nil, league.TransientStore(op, err)
	}
	return created, err
}
