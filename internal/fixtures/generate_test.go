package fixtures

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/derekprior/fixtures/internal/excel"
	"github.com/derekprior/fixtures/internal/league"
	"github.com/derekprior/fixtures/internal/lock"
	"github.com/derekprior/fixtures/internal/metrics"
	"github.com/derekprior/fixtures/internal/retry"
	"github.com/derekprior/fixtures/internal/schedule"
	"github.com/derekprior/fixtures/internal/store/sqlite"
	"github.com/derekprior/fixtures/internal/store/storetest"
)

func newStore(t *testing.T) *sqlite.Store {
	t.Helper()
	s, err := sqlite.Open(filepath.Join(t.TempDir(), "fixtures.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// fastRetry keeps retried tests quick.
var fastRetry = WithRetry(retry.WithInitialDelay(0), retry.WithJitter(0))

// seasonConfig starts on Monday 2026-04-20 and plays on Tuesdays.
func seasonConfig(weeks int, courts ...int64) league.ScheduleConfig {
	return league.ScheduleConfig{
		StartDate:     time.Date(2026, 4, 20, 0, 0, 0, 0, time.UTC),
		DayOfWeek:     time.Tuesday,
		NumberOfWeeks: weeks,
		CourtIDs:      courts,
	}
}

type pair struct{ home, away string }

func pairsByRound(c *league.Competition, matches []league.Match) map[int][]pair {
	out := make(map[int][]pair)
	for _, m := range matches {
		out[m.RoundNumber] = append(out[m.RoundNumber], pair{c.TeamName(m.HomeTeamID), c.TeamName(m.AwayTeamID)})
	}
	return out
}

func TestGenerateScheduleFourTeams(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	comp := storetest.Seed(t, store, league.StatusRegistration, 4, 4)
	svc := New(store)

	res, err := svc.GenerateSchedule(ctx, comp.ID, seasonConfig(3, 1, 2))
	require.NoError(t, err)
	assert.Equal(t, 6, res.MatchesCreated)
	assert.Len(t, res.Matches, 6)
	assert.Equal(t, 3, res.Rounds)

	assert.Equal(t, map[int][]pair{
		1: {{"A", "D"}, {"B", "C"}},
		2: {{"C", "A"}, {"B", "D"}},
		3: {{"A", "B"}, {"C", "D"}},
	}, pairsByRound(comp, res.Matches))

	wantDates := map[int]time.Time{
		1: time.Date(2026, 4, 21, 0, 0, 0, 0, time.UTC),
		2: time.Date(2026, 4, 28, 0, 0, 0, 0, time.UTC),
		3: time.Date(2026, 5, 5, 0, 0, 0, 0, time.UTC),
	}
	courts := make(map[int][]int64)
	for _, m := range res.Matches {
		assert.True(t, m.ScheduledDate.Equal(wantDates[m.RoundNumber]), "round %d on %s", m.RoundNumber, m.ScheduledDate)
		assert.Equal(t, "19:00", m.TimeSlot)
		assert.Nil(t, m.HomeScore)
		assert.Nil(t, m.AwayScore)
		courts[m.RoundNumber] = append(courts[m.RoundNumber], m.CourtID)

		require.NotNil(t, m.CalendarEntry)
		assert.Equal(t, m.CalendarEntryID, m.CalendarEntry.ID)
		assert.Equal(t, comp.TeamName(m.HomeTeamID)+" vs "+comp.TeamName(m.AwayTeamID), m.CalendarEntry.Title)
		assert.Equal(t, "LEAGUE_MATCH", m.CalendarEntry.Kind)
		assert.Equal(t, 2, m.CalendarEntry.Capacity)
		assert.Equal(t, 2, m.CalendarEntry.Filled)
		assert.True(t, m.CalendarEntry.StartsAt.Equal(wantDates[m.RoundNumber].Add(19*time.Hour)))
	}
	for round, got := range courts {
		assert.ElementsMatch(t, []int64{1, 2}, got, "round %d courts", round)
	}

	stored, err := store.ListMatches(ctx, comp.ID)
	require.NoError(t, err)
	assert.Len(t, stored, 6)
}

func TestGenerateScheduleFiveTeams(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	comp := storetest.Seed(t, store, league.StatusRegistration, 5, 4)

	res, err := New(store).GenerateSchedule(ctx, comp.ID, seasonConfig(4, 1))
	require.NoError(t, err)
	assert.Equal(t, 4, res.Rounds)
	assert.Equal(t, 8, res.MatchesCreated)

	seen := make(map[[2]int64]bool)
	for round, pairs := range pairsByRound(comp, res.Matches) {
		assert.Len(t, pairs, 2, "round %d", round)
		playing := make(map[string]bool)
		for _, p := range pairs {
			assert.False(t, playing[p.home] || playing[p.away], "team twice in round %d", round)
			playing[p.home], playing[p.away] = true, true
		}
		assert.Len(t, playing, 4, "exactly one bye in round %d", round)
	}
	for _, m := range res.Matches {
		key := [2]int64{min(m.HomeTeamID, m.AwayTeamID), max(m.HomeTeamID, m.AwayTeamID)}
		assert.False(t, seen[key], "pair repeated")
		seen[key] = true
	}
}

func TestGenerateScheduleCapsAtOneCycle(t *testing.T) {
	store := newStore(t)
	comp := storetest.Seed(t, store, league.StatusRegistration, 4, 4)

	res, err := New(store).GenerateSchedule(context.Background(), comp.ID, seasonConfig(10, 1))
	require.NoError(t, err)
	assert.Equal(t, 3, res.Rounds)
	assert.Equal(t, 6, res.MatchesCreated)
	assert.Len(t, res.TeamMetrics, 4)
	for _, m := range res.TeamMetrics {
		assert.Equal(t, 3, m.Matches)
	}
}

func TestGenerateScheduleMoreMatchesThanSlots(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	comp := storetest.Seed(t, store, league.StatusRegistration, 10, 4)
	svc := New(store)

	// five matches a round on one court with four slots
	res, err := svc.GenerateSchedule(ctx, comp.ID, seasonConfig(9, 1))
	require.NoError(t, err)
	assert.Equal(t, 45, res.MatchesCreated)

	for round, pairs := range pairsByRound(comp, res.Matches) {
		assert.Len(t, pairs, 5, "round %d", round)
	}
	for team, m := range res.TeamMetrics {
		assert.LessOrEqual(t, math.Abs(m.Debt), 6.0, "team %d", team)
	}

	_, stored, err := svc.Matches(ctx, comp.ID)
	require.NoError(t, err)
	f, err := excel.Generate(comp, stored, schedule.DefaultSlots())
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(excel.MasterSheet)
	require.NoError(t, err)
	cells := 0
	for _, row := range rows[1:] {
		for _, cell := range row[min(4, len(row)):] {
			if cell != "" {
				cells++
			}
		}
	}
	assert.Equal(t, 45, cells, "every match appears on the master sheet")
}

func TestGenerateSchedulePreconditions(t *testing.T) {
	ctx := context.Background()

	t.Run("missing competition", func(t *testing.T) {
		_, err := New(newStore(t)).GenerateSchedule(ctx, 424242, seasonConfig(3, 1))
		assert.ErrorIs(t, err, league.ErrNotFound)
	})

	t.Run("wrong status", func(t *testing.T) {
		store := newStore(t)
		comp := storetest.Seed(t, store, league.StatusDraft, 4, 4)
		_, err := New(store).GenerateSchedule(ctx, comp.ID, seasonConfig(3, 1))
		assert.ErrorIs(t, err, league.ErrValidation)
		assert.Contains(t, league.Message(err), "DRAFT")
	})

	t.Run("too few teams", func(t *testing.T) {
		store := newStore(t)
		comp := storetest.Seed(t, store, league.StatusRegistration, 1, 4)
		_, err := New(store).GenerateSchedule(ctx, comp.ID, seasonConfig(3, 1))
		assert.ErrorIs(t, err, league.ErrValidation)
		assert.Contains(t, league.Message(err), "has 1")
	})

	t.Run("short rosters are named", func(t *testing.T) {
		store := newStore(t)
		comp, err := store.CreateCompetition(ctx, league.NewCompetition{
			Name:   "Spring 6s",
			Format: league.Format6v6,
			Status: league.StatusRegistration,
			Teams: []league.NewTeam{
				{Name: "Aces", Roster: []string{"a1", "a2", "a3", "a4", "a5", "a6"}},
				{Name: "Blockers", Roster: []string{"b1", "b2", "b3", "b4"}},
				{Name: "Diggers", Roster: []string{"d1", "d2", "d3", "d4", "d5", "d6", "d7"}},
				{Name: "Spikers"},
			},
		})
		require.NoError(t, err)

		_, err = New(store).GenerateSchedule(ctx, comp.ID, seasonConfig(3, 1))
		assert.ErrorIs(t, err, league.ErrValidation)
		msg := league.Message(err)
		assert.Contains(t, msg, "Blockers (4)")
		assert.Contains(t, msg, "Spikers (0)")
		assert.NotContains(t, msg, "Aces")
		assert.NotContains(t, msg, "Diggers")
	})

	t.Run("invalid config", func(t *testing.T) {
		store := newStore(t)
		comp := storetest.Seed(t, store, league.StatusRegistration, 4, 4)
		_, err := New(store).GenerateSchedule(ctx, comp.ID, seasonConfig(0, 1))
		assert.ErrorIs(t, err, league.ErrValidation)

		_, err = New(store).GenerateSchedule(ctx, comp.ID, seasonConfig(3))
		assert.ErrorIs(t, err, league.ErrValidation)
	})

	t.Run("nothing written on failure", func(t *testing.T) {
		store := newStore(t)
		comp := storetest.Seed(t, store, league.StatusRegistration, 4, 3)
		_, err := New(store).GenerateSchedule(ctx, comp.ID, seasonConfig(3, 1))
		require.Error(t, err)

		n, err := store.CountMatches(ctx, comp.ID)
		require.NoError(t, err)
		assert.Zero(t, n)
	})
}

func TestGenerateScheduleTwice(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	comp := storetest.Seed(t, store, league.StatusRegistration, 4, 4)
	svc := New(store)

	_, err := svc.GenerateSchedule(ctx, comp.ID, seasonConfig(3, 1))
	require.NoError(t, err)

	_, err = svc.GenerateSchedule(ctx, comp.ID, seasonConfig(3, 1))
	assert.ErrorIs(t, err, league.ErrStateConflict)

	n, err := store.CountMatches(ctx, comp.ID)
	require.NoError(t, err)
	assert.Equal(t, 6, n)
}

// faultyStore wraps a real store and injects failures into RunInTx.
type faultyStore struct {
	league.Store

	mu       sync.Mutex
	attempts int

	// failAttempt, when set, decides whether attempt n fails before
	// reaching the database.
	failAttempt func(n int) error
	// matchesErr makes every match insert fail after the calendar entries
	// were written.
	matchesErr error
	// hang blocks until the attempt's context is done.
	hang bool
}

func (f *faultyStore) RunInTx(ctx context.Context, fn func(tx league.Tx) error) error {
	f.mu.Lock()
	f.attempts++
	n := f.attempts
	f.mu.Unlock()

	if f.failAttempt != nil {
		if err := f.failAttempt(n); err != nil {
			return err
		}
	}
	if f.hang {
		<-ctx.Done()
		return ctx.Err()
	}
	return f.Store.RunInTx(ctx, func(tx league.Tx) error {
		if f.matchesErr != nil {
			return fn(failingTx{Tx: tx, err: f.matchesErr})
		}
		return fn(tx)
	})
}

func (f *faultyStore) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.attempts
}

type failingTx struct {
	league.Tx
	err error
}

func (f failingTx) Matches() league.MatchStore { return failingMatches{err: f.err} }

type failingMatches struct {
	err error
}

func (f failingMatches) CreateMany(context.Context, []league.Match) ([]league.Match, error) {
	return nil, f.err
}

func (f failingMatches) UpdateScore(context.Context, int64, int, int) error {
	return f.err
}

func TestGenerateScheduleRollsBack(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	comp := storetest.Seed(t, store, league.StatusRegistration, 4, 4)
	boom := errors.New("disk on fire")

	faulty := &faultyStore{Store: store, matchesErr: boom}
	_, err := New(faulty, fastRetry).GenerateSchedule(ctx, comp.ID, seasonConfig(3, 1, 2))
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, faulty.count(), "non-transient errors are not retried")

	n, err := store.CountMatches(ctx, comp.ID)
	require.NoError(t, err)
	assert.Zero(t, n)

	// Neither the claim nor the calendar entries survived the rollback.
	res, err := New(store).GenerateSchedule(ctx, comp.ID, seasonConfig(3, 1, 2))
	require.NoError(t, err)
	assert.Equal(t, 6, res.MatchesCreated)
}

func TestGenerateScheduleRetriesTransientErrors(t *testing.T) {
	ctx := context.Background()

	t.Run("recovers", func(t *testing.T) {
		store := newStore(t)
		comp := storetest.Seed(t, store, league.StatusRegistration, 4, 4)
		m := metrics.New()
		faulty := &faultyStore{Store: store, failAttempt: func(n int) error {
			if n < 3 {
				return league.TransientStore("begin transaction", errors.New("database is locked"))
			}
			return nil
		}}

		res, err := New(faulty, fastRetry, WithMetrics(m)).GenerateSchedule(ctx, comp.ID, seasonConfig(3, 1))
		require.NoError(t, err)
		assert.Equal(t, 6, res.MatchesCreated)
		assert.Equal(t, 3, faulty.count())

		families, err := m.Registry().Gather()
		require.NoError(t, err)
		var retries float64
		for _, f := range families {
			if f.GetName() == "fixtures_schedule_persist_retries_total" {
				retries = f.GetMetric()[0].GetCounter().GetValue()
			}
		}
		assert.Equal(t, 2.0, retries)
	})

	t.Run("gives up", func(t *testing.T) {
		store := newStore(t)
		comp := storetest.Seed(t, store, league.StatusRegistration, 4, 4)
		faulty := &faultyStore{Store: store, failAttempt: func(int) error {
			return league.TransientStore("commit", errors.New("database is locked"))
		}}

		_, err := New(faulty, fastRetry, WithRetry(retry.WithMaxAttempts(4))).
			GenerateSchedule(ctx, comp.ID, seasonConfig(3, 1))
		assert.True(t, league.IsTransient(err))
		assert.Equal(t, 4, faulty.count())

		n, err := store.CountMatches(ctx, comp.ID)
		require.NoError(t, err)
		assert.Zero(t, n)
	})

	t.Run("attempt timeout", func(t *testing.T) {
		store := newStore(t)
		comp := storetest.Seed(t, store, league.StatusRegistration, 4, 4)
		faulty := &faultyStore{Store: store, hang: true}

		_, err := New(faulty, fastRetry, WithTxTimeout(10*time.Millisecond)).
			GenerateSchedule(ctx, comp.ID, seasonConfig(3, 1))
		assert.True(t, league.IsTransient(err))
		assert.ErrorIs(t, err, context.DeadlineExceeded)
		assert.Equal(t, 3, faulty.count())
	})
}

type nopLocker struct{}

func (nopLocker) Lock(context.Context, int64) (lock.Release, error) {
	return func() error { return nil }, nil
}

func TestGenerateScheduleConcurrent(t *testing.T) {
	for name, locker := range map[string]lock.Locker{
		"local lock":     lock.NewLocal(),
		"database guard": nopLocker{},
	} {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			store := newStore(t)
			comp := storetest.Seed(t, store, league.StatusRegistration, 6, 4)
			svc := New(store, WithLocker(locker))

			const callers = 4
			errs := make([]error, callers)
			var wg sync.WaitGroup
			for i := range callers {
				wg.Add(1)
				go func() {
					defer wg.Done()
					_, errs[i] = svc.GenerateSchedule(ctx, comp.ID, seasonConfig(5, 1, 2))
				}()
			}
			wg.Wait()

			var ok int
			for _, err := range errs {
				if err == nil {
					ok++
					continue
				}
				assert.ErrorIs(t, err, league.ErrStateConflict)
			}
			assert.Equal(t, 1, ok)

			n, err := store.CountMatches(ctx, comp.ID)
			require.NoError(t, err)
			assert.Equal(t, 15, n)
		})
	}
}
