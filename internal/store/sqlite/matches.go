package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/derekprior/fixtures/internal/league"
)

const dateLayout = "2006-01-02"

type calendarStore struct {
	q dbtx
}

func (c calendarStore) CreateEntries(ctx context.Context, entries []league.CalendarEntry) ([]league.CalendarEntry, error) {
	const op = "create calendar entries"

	stmt, err := c.q.PrepareContext(ctx, `
		INSERT INTO calendar_entries (ref, competition_id, title, kind, starts_at, court_id, capacity, filled)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return nil, classify(op, err)
	}
	defer stmt.Close()

	out := make([]league.CalendarEntry, len(entries))
	for i, e := range entries {
		if e.Ref == uuid.Nil {
			e.Ref = uuid.New()
		}
		res, err := stmt.ExecContext(ctx,
			e.Ref.String(), e.CompetitionID, e.Title, e.Kind,
			e.StartsAt.UTC().Format(time.RFC3339), e.CourtID, e.Capacity, e.Filled)
		if err != nil {
			return nil, classify(op, err)
		}
		if e.ID, err = res.LastInsertId(); err != nil {
			return nil, classify(op, err)
		}
		out[i] = e
	}
	return out, nil
}

type matchStore struct {
	q dbtx
}

func (m matchStore) CreateMany(ctx context.Context, matches []league.Match) ([]league.Match, error) {
	const op = "create matches"

	stmt, err := m.q.PrepareContext(ctx, `
		INSERT INTO matches (competition_id, home_team_id, away_team_id, round_number,
			scheduled_date, time_slot, court_id, home_score, away_score, calendar_entry_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return nil, classify(op, err)
	}
	defer stmt.Close()

	out := make([]league.Match, len(matches))
	for i, mt := range matches {
		res, err := stmt.ExecContext(ctx,
			mt.CompetitionID, mt.HomeTeamID, mt.AwayTeamID, mt.RoundNumber,
			mt.ScheduledDate.Format(dateLayout), mt.TimeSlot, mt.CourtID,
			mt.HomeScore, mt.AwayScore, mt.CalendarEntryID)
		if err != nil {
			return nil, classify(op, err)
		}
		if mt.ID, err = res.LastInsertId(); err != nil {
			return nil, classify(op, err)
		}
		out[i] = mt
	}
	return out, nil
}

func (m matchStore) UpdateScore(ctx context.Context, matchID int64, home, away int) error {
	return updateScore(ctx, m.q, matchID, home, away)
}

// updateScore writes both scores in one statement that only matches while
// the competition is ACTIVE. When nothing matched, a follow-up read tells a
// missing match apart from a competition in the wrong state.
func updateScore(ctx context.Context, q dbtx, matchID int64, home, away int) error {
	const op = "update score"

	res, err := q.ExecContext(ctx, `
		UPDATE matches SET home_score = ?, away_score = ?
		WHERE id = ? AND EXISTS (
			SELECT 1 FROM competitions c
			WHERE c.id = matches.competition_id AND c.status = ?
		)`, home, away, matchID, league.StatusActive)
	if err != nil {
		return classify(op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return classify(op, err)
	}
	if n > 0 {
		return nil
	}

	var status league.Status
	err = q.QueryRowContext(ctx, `
		SELECT c.status FROM matches m
		JOIN competitions c ON c.id = m.competition_id
		WHERE m.id = ?`, matchID).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return league.NotFound(op, "match %d not found", matchID)
	}
	if err != nil {
		return classify(op, err)
	}
	return league.StateConflict(op, "match %d belongs to a %s competition; scores can only be recorded while it is %s",
		matchID, status, league.StatusActive)
}

func (s *Store) UpdateScore(ctx context.Context, matchID int64, home, away int) error {
	return updateScore(ctx, s.db, matchID, home, away)
}

const selectMatch = `
	SELECT m.id, m.competition_id, m.home_team_id, m.away_team_id, m.round_number,
		m.scheduled_date, m.time_slot, m.court_id, m.home_score, m.away_score, m.calendar_entry_id,
		e.ref, e.title, e.kind, e.starts_at, e.capacity, e.filled
	FROM matches m
	JOIN calendar_entries e ON e.id = m.calendar_entry_id`

func scanMatch(row interface{ Scan(...any) error }) (league.Match, error) {
	var (
		m              league.Match
		e              league.CalendarEntry
		date, startsAt string
		ref            string
		home, away     sql.NullInt64
	)
	err := row.Scan(&m.ID, &m.CompetitionID, &m.HomeTeamID, &m.AwayTeamID, &m.RoundNumber,
		&date, &m.TimeSlot, &m.CourtID, &home, &away, &m.CalendarEntryID,
		&ref, &e.Title, &e.Kind, &startsAt, &e.Capacity, &e.Filled)
	if err != nil {
		return m, err
	}

	if m.ScheduledDate, err = time.Parse(dateLayout, date); err != nil {
		return m, err
	}
	if e.StartsAt, err = time.Parse(time.RFC3339, startsAt); err != nil {
		return m, err
	}
	if e.Ref, err = uuid.Parse(ref); err != nil {
		return m, err
	}
	if home.Valid {
		h := int(home.Int64)
		m.HomeScore = &h
	}
	if away.Valid {
		a := int(away.Int64)
		m.AwayScore = &a
	}

	e.ID = m.CalendarEntryID
	e.CompetitionID = m.CompetitionID
	e.CourtID = m.CourtID
	m.CalendarEntry = &e
	return m, nil
}

func (s *Store) GetMatch(ctx context.Context, id int64) (*league.Match, error) {
	const op = "get match"

	m, err := scanMatch(s.db.QueryRowContext(ctx, selectMatch+` WHERE m.id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, league.NotFound(op, "match %d not found", id)
	}
	if err != nil {
		return nil, classify(op, err)
	}
	return &m, nil
}

// ListMatches returns a competition's matches in creation order, which is
// round order with each round's best slot first.
func (s *Store) ListMatches(ctx context.Context, competitionID int64) ([]league.Match, error) {
	const op = "list matches"

	rows, err := s.db.QueryContext(ctx, selectMatch+` WHERE m.competition_id = ? ORDER BY m.round_number, m.id`, competitionID)
	if err != nil {
		return nil, classify(op, err)
	}
	defer rows.Close()

	var out []league.Match
	for rows.Next() {
		m, err := scanMatch(rows)
		if err != nil {
			return nil, classify(op, err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(op, err)
	}
	return out, nil
}

func (s *Store) CountMatches(ctx context.Context, competitionID int64) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM matches WHERE competition_id = ?`, competitionID).Scan(&n)
	if err != nil {
		return 0, classify("count matches", err)
	}
	return n, nil
}
