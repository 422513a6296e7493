// Package storetest holds the behaviour every league.Store must share. Each
// store package runs it against its own backend.
package storetest

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/derekprior/fixtures/internal/league"
)

// Seed creates a competition with n teams named A, B, C... each carrying
// rosterSize players.
func Seed(t *testing.T, s league.Store, status league.Status, n, rosterSize int) *league.Competition {
	t.Helper()

	nc := league.NewCompetition{
		Name:   fmt.Sprintf("Test League %s", uuid.NewString()[:8]),
		Format: league.Format4v4,
		Kind:   league.KindLeague,
		Status: status,
	}
	for i := range n {
		team := league.NewTeam{Name: string(rune('A' + i))}
		for p := range rosterSize {
			team.Roster = append(team.Roster, fmt.Sprintf("%s%d", team.Name, p+1))
		}
		nc.Teams = append(nc.Teams, team)
	}

	c, err := s.CreateCompetition(context.Background(), nc)
	require.NoError(t, err)
	return c
}

// Persist writes one match per team pair for c through a single RunInTx.
func Persist(t *testing.T, s league.Store, c *league.Competition) []league.Match {
	t.Helper()
	ctx := context.Background()

	var created []league.Match
	err := s.RunInTx(ctx, func(tx league.Tx) error {
		if err := tx.ClaimSchedule(ctx, c.ID, uuid.New()); err != nil {
			return err
		}
		var entries []league.CalendarEntry
		var matches []league.Match
		day := time.Date(2026, 4, 28, 0, 0, 0, 0, time.UTC)
		round := 1
		for i := 0; i < len(c.Teams); i++ {
			for j := i + 1; j < len(c.Teams); j++ {
				home, away := c.Teams[i], c.Teams[j]
				entries = append(entries, league.CalendarEntry{
					Ref:           uuid.New(),
					CompetitionID: c.ID,
					Title:         home.Name + " vs " + away.Name,
					Kind:          c.Kind.EntryKind(),
					StartsAt:      day.Add(19 * time.Hour),
					CourtID:       1,
					Capacity:      2,
					Filled:        2,
				})
				matches = append(matches, league.Match{
					CompetitionID: c.ID,
					HomeTeamID:    home.ID,
					AwayTeamID:    away.ID,
					RoundNumber:   round,
					ScheduledDate: day,
					TimeSlot:      "19:00",
					CourtID:       1,
				})
				round++
				day = day.AddDate(0, 0, 7)
			}
		}

		entries, err := tx.Calendar().CreateEntries(ctx, entries)
		if err != nil {
			return err
		}
		for i := range matches {
			matches[i].CalendarEntryID = entries[i].ID
		}
		created, err = tx.Matches().CreateMany(ctx, matches)
		return err
	})
	require.NoError(t, err)
	return created
}

// Run exercises a store created fresh for each subtest by open.
func Run(t *testing.T, open func(t *testing.T) league.Store) {
	ctx := context.Background()

	t.Run("competition round trip", func(t *testing.T) {
		s := open(t)
		c := Seed(t, s, league.StatusRegistration, 3, 5)

		got, err := s.GetCompetition(ctx, c.ID)
		require.NoError(t, err)
		assert.Equal(t, c.Name, got.Name)
		assert.Equal(t, league.Format4v4, got.Format)
		assert.Equal(t, league.KindLeague, got.Kind)
		assert.Equal(t, league.StatusRegistration, got.Status)
		require.Len(t, got.Teams, 3)
		assert.Equal(t, []string{"A", "B", "C"}, []string{got.Teams[0].Name, got.Teams[1].Name, got.Teams[2].Name})

		size, err := s.CountRosterSize(ctx, got.Teams[1].ID)
		require.NoError(t, err)
		assert.Equal(t, 5, size)
	})

	t.Run("missing rows", func(t *testing.T) {
		s := open(t)

		_, err := s.GetCompetition(ctx, 999999)
		assert.ErrorIs(t, err, league.ErrNotFound)

		_, err = s.CountRosterSize(ctx, 999999)
		assert.ErrorIs(t, err, league.ErrNotFound)

		_, err = s.GetMatch(ctx, 999999)
		assert.ErrorIs(t, err, league.ErrNotFound)

		err = s.SetCompetitionStatus(ctx, 999999, league.StatusActive)
		assert.ErrorIs(t, err, league.ErrNotFound)
	})

	t.Run("status change", func(t *testing.T) {
		s := open(t)
		c := Seed(t, s, league.StatusDraft, 2, 4)
		require.NoError(t, s.SetCompetitionStatus(ctx, c.ID, league.StatusRegistration))

		got, err := s.GetCompetition(ctx, c.ID)
		require.NoError(t, err)
		assert.Equal(t, league.StatusRegistration, got.Status)
	})

	t.Run("persist and list matches", func(t *testing.T) {
		s := open(t)
		c := Seed(t, s, league.StatusRegistration, 4, 4)
		created := Persist(t, s, c)
		require.Len(t, created, 6)
		for _, m := range created {
			assert.NotZero(t, m.ID)
			assert.NotZero(t, m.CalendarEntryID)
		}

		n, err := s.CountMatches(ctx, c.ID)
		require.NoError(t, err)
		assert.Equal(t, 6, n)

		listed, err := s.ListMatches(ctx, c.ID)
		require.NoError(t, err)
		require.Len(t, listed, 6)

		first := listed[0]
		assert.Equal(t, created[0].ID, first.ID)
		assert.Equal(t, 1, first.RoundNumber)
		assert.Equal(t, "19:00", first.TimeSlot)
		assert.Nil(t, first.HomeScore)
		assert.Nil(t, first.AwayScore)
		assert.True(t, first.ScheduledDate.Equal(time.Date(2026, 4, 28, 0, 0, 0, 0, time.UTC)))
		require.NotNil(t, first.CalendarEntry)
		assert.Equal(t, "A vs B", first.CalendarEntry.Title)
		assert.Equal(t, "LEAGUE_MATCH", first.CalendarEntry.Kind)
		assert.Equal(t, 2, first.CalendarEntry.Capacity)
		assert.Equal(t, 2, first.CalendarEntry.Filled)
		assert.True(t, first.CalendarEntry.StartsAt.Equal(time.Date(2026, 4, 28, 19, 0, 0, 0, time.UTC)))

		got, err := s.GetMatch(ctx, first.ID)
		require.NoError(t, err)
		assert.Equal(t, first.HomeTeamID, got.HomeTeamID)
		assert.Equal(t, first.CalendarEntry.Ref, got.CalendarEntry.Ref)
	})

	t.Run("second claim conflicts", func(t *testing.T) {
		s := open(t)
		c := Seed(t, s, league.StatusRegistration, 2, 4)
		Persist(t, s, c)

		err := s.RunInTx(ctx, func(tx league.Tx) error {
			return tx.ClaimSchedule(ctx, c.ID, uuid.New())
		})
		assert.ErrorIs(t, err, league.ErrStateConflict)
	})

	t.Run("rollback leaves nothing behind", func(t *testing.T) {
		s := open(t)
		c := Seed(t, s, league.StatusRegistration, 2, 4)
		boom := errors.New("boom")

		err := s.RunInTx(ctx, func(tx league.Tx) error {
			if err := tx.ClaimSchedule(ctx, c.ID, uuid.New()); err != nil {
				return err
			}
			if _, err := tx.Calendar().CreateEntries(ctx, []league.CalendarEntry{{
				Ref: uuid.New(), CompetitionID: c.ID, Title: "A vs B", Kind: "LEAGUE_MATCH",
				StartsAt: time.Now(), CourtID: 1, Capacity: 2, Filled: 2,
			}}); err != nil {
				return err
			}
			return boom
		})
		assert.ErrorIs(t, err, boom)

		n, err := s.CountMatches(ctx, c.ID)
		require.NoError(t, err)
		assert.Zero(t, n)

		// The claim was rolled back too, so a fresh attempt succeeds.
		assert.Len(t, Persist(t, s, c), 1)
	})

	t.Run("score update guarded by status", func(t *testing.T) {
		s := open(t)
		c := Seed(t, s, league.StatusRegistration, 2, 4)
		m := Persist(t, s, c)[0]

		err := s.UpdateScore(ctx, m.ID, 3, 1)
		assert.ErrorIs(t, err, league.ErrStateConflict)

		require.NoError(t, s.SetCompetitionStatus(ctx, c.ID, league.StatusActive))
		require.NoError(t, s.UpdateScore(ctx, m.ID, 3, 1))
		require.NoError(t, s.UpdateScore(ctx, m.ID, 3, 1), "same score twice")

		got, err := s.GetMatch(ctx, m.ID)
		require.NoError(t, err)
		require.NotNil(t, got.HomeScore)
		require.NotNil(t, got.AwayScore)
		assert.Equal(t, 3, *got.HomeScore)
		assert.Equal(t, 1, *got.AwayScore)

		require.NoError(t, s.UpdateScore(ctx, m.ID, 2, 2))
		got, err = s.GetMatch(ctx, m.ID)
		require.NoError(t, err)
		assert.Equal(t, 2, *got.HomeScore)
		assert.Equal(t, 2, *got.AwayScore)

		require.NoError(t, s.SetCompetitionStatus(ctx, c.ID, league.StatusCompleted))
		err = s.UpdateScore(ctx, m.ID, 9, 9)
		assert.ErrorIs(t, err, league.ErrStateConflict)

		got, err = s.GetMatch(ctx, m.ID)
		require.NoError(t, err)
		assert.Equal(t, 2, *got.HomeScore, "scores unchanged after rejected update")

		err = s.UpdateScore(ctx, 999999, 1, 1)
		assert.ErrorIs(t, err, league.ErrNotFound)
	})
}
