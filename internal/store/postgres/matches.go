package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/derekprior/fixtures/internal/league"
)

type calendarStore struct {
	q querier
}

// CreateEntries inserts entries in one batch round trip.
func (c calendarStore) CreateEntries(ctx context.Context, entries []league.CalendarEntry) ([]league.CalendarEntry, error) {
	const op = "create calendar entries"

	out := make([]league.CalendarEntry, len(entries))
	batch := &pgx.Batch{}
	for i, e := range entries {
		if e.Ref == uuid.Nil {
			e.Ref = uuid.New()
		}
		out[i] = e
		batch.Queue(`
			INSERT INTO calendar_entries (ref, competition_id, title, kind, starts_at, court_id, capacity, filled)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			RETURNING id`,
			e.Ref, e.CompetitionID, e.Title, e.Kind, e.StartsAt.UTC(), e.CourtID, e.Capacity, e.Filled)
	}

	br := c.q.SendBatch(ctx, batch)
	for i := range out {
		if err := br.QueryRow().Scan(&out[i].ID); err != nil {
			_ = br.Close()
			return nil, classify(op, err)
		}
	}
	if err := br.Close(); err != nil {
		return nil, classify(op, err)
	}
	return out, nil
}

type matchStore struct {
	q querier
}

func (m matchStore) CreateMany(ctx context.Context, matches []league.Match) ([]league.Match, error) {
	const op = "create matches"

	out := make([]league.Match, len(matches))
	batch := &pgx.Batch{}
	for i, mt := range matches {
		out[i] = mt
		batch.Queue(`
			INSERT INTO matches (competition_id, home_team_id, away_team_id, round_number,
				scheduled_date, time_slot, court_id, home_score, away_score, calendar_entry_id)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			RETURNING id`,
			mt.CompetitionID, mt.HomeTeamID, mt.AwayTeamID, mt.RoundNumber,
			civilDate(mt), mt.TimeSlot, mt.CourtID, mt.HomeScore, mt.AwayScore, mt.CalendarEntryID)
	}

	br := m.q.SendBatch(ctx, batch)
	for i := range out {
		if err := br.QueryRow().Scan(&out[i].ID); err != nil {
			_ = br.Close()
			return nil, classify(op, err)
		}
	}
	if err := br.Close(); err != nil {
		return nil, classify(op, err)
	}
	return out, nil
}

// civilDate is the match day as a DATE, independent of the location the
// caller built it in.
func civilDate(m league.Match) string {
	return m.ScheduledDate.Format("2006-01-02")
}

func (m matchStore) UpdateScore(ctx context.Context, matchID int64, home, away int) error {
	return updateScore(ctx, m.q, matchID, home, away)
}

func updateScore(ctx context.Context, q querier, matchID int64, home, away int) error {
	const op = "update score"

	tag, err := q.Exec(ctx, `
		UPDATE matches SET home_score = $1, away_score = $2
		WHERE id = $3 AND EXISTS (
			SELECT 1 FROM competitions c
			WHERE c.id = matches.competition_id AND c.status = $4
		)`, home, away, matchID, string(league.StatusActive))
	if err != nil {
		return classify(op, err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	var status string
	err = q.QueryRow(ctx, `
		SELECT c.status FROM matches m
		JOIN competitions c ON c.id = m.competition_id
		WHERE m.id = $1`, matchID).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return league.NotFound(op, "match %d not found", matchID)
	}
	if err != nil {
		return classify(op, err)
	}
	return league.StateConflict(op, "match %d belongs to a %s competition; scores can only be recorded while it is %s",
		matchID, status, league.StatusActive)
}

func (s *Store) UpdateScore(ctx context.Context, matchID int64, home, away int) error {
	return updateScore(ctx, s.pool, matchID, home, away)
}

const selectMatch = `
	SELECT m.id, m.competition_id, m.home_team_id, m.away_team_id, m.round_number,
		m.scheduled_date, m.time_slot, m.court_id, m.home_score, m.away_score, m.calendar_entry_id,
		e.ref, e.title, e.kind, e.starts_at, e.capacity, e.filled
	FROM matches m
	JOIN calendar_entries e ON e.id = m.calendar_entry_id`

func scanMatch(row pgx.Row) (league.Match, error) {
	var (
		m league.Match
		e league.CalendarEntry
	)
	err := row.Scan(&m.ID, &m.CompetitionID, &m.HomeTeamID, &m.AwayTeamID, &m.RoundNumber,
		&m.ScheduledDate, &m.TimeSlot, &m.CourtID, &m.HomeScore, &m.AwayScore, &m.CalendarEntryID,
		&e.Ref, &e.Title, &e.Kind, &e.StartsAt, &e.Capacity, &e.Filled)
	if err != nil {
		return m, err
	}

	e.StartsAt = e.StartsAt.UTC()
	e.ID = m.CalendarEntryID
	e.CompetitionID = m.CompetitionID
	e.CourtID = m.CourtID
	m.CalendarEntry = &e
	return m, nil
}

func (s *Store) GetMatch(ctx context.Context, id int64) (*league.Match, error) {
	const op = "get match"

	m, err := scanMatch(s.pool.QueryRow(ctx, selectMatch+` WHERE m.id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, league.NotFound(op, "match %d not found", id)
	}
	if err != nil {
		return nil, classify(op, err)
	}
	return &m, nil
}

func (s *Store) ListMatches(ctx context.Context, competitionID int64) ([]league.Match, error) {
	const op = "list matches"

	rows, err := s.pool.Query(ctx, selectMatch+` WHERE m.competition_id = $1 ORDER BY m.round_number, m.id`, competitionID)
	if err != nil {
		return nil, classify(op, err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (league.Match, error) {
		return scanMatch(row)
	})
	if err != nil {
		return nil, classify(op, err)
	}
	return out, nil
}

func (s *Store) CountMatches(ctx context.Context, competitionID int64) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM matches WHERE competition_id = $1`, competitionID).Scan(&n)
	if err != nil {
		return 0, classify("count matches", err)
	}
	return n, nil
}
