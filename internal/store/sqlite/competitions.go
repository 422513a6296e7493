package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/derekprior/fixtures/internal/league"
)

func (s *Store) GetCompetition(ctx context.Context, id int64) (*league.Competition, error) {
	const op = "get competition"

	var c league.Competition
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, format, kind, status FROM competitions WHERE id = ?`, id,
	).Scan(&c.ID, &c.Name, &c.Format, &c.Kind, &c.Status)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, league.NotFound(op, "competition %d not found", id)
	}
	if err != nil {
		return nil, classify(op, err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name FROM teams WHERE competition_id = ? ORDER BY position, id`, id)
	if err != nil {
		return nil, classify(op, err)
	}
	defer rows.Close()

	for rows.Next() {
		var t league.Team
		if err := rows.Scan(&t.ID, &t.Name); err != nil {
			return nil, classify(op, err)
		}
		c.Teams = append(c.Teams, t)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(op, err)
	}
	return &c, nil
}

func (s *Store) CountRosterSize(ctx context.Context, teamID int64) (int, error) {
	const op = "count roster"

	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT (SELECT COUNT(*) FROM roster_members r WHERE r.team_id = t.id) FROM teams t WHERE t.id = ?`,
		teamID,
	).Scan(&n)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, league.NotFound(op, "team %d not found", teamID)
	}
	if err != nil {
		return 0, classify(op, err)
	}
	return n, nil
}

// CreateCompetition inserts a competition with its teams and rosters in one
// transaction.
func (s *Store) CreateCompetition(ctx context.Context, nc league.NewCompetition) (*league.Competition, error) {
	const op = "create competition"

	if nc.Status == "" {
		nc.Status = league.StatusDraft
	}
	if nc.Kind == "" {
		nc.Kind = league.KindLeague
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, classify(op, err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO competitions (name, format, kind, status) VALUES (?, ?, ?, ?)`,
		nc.Name, nc.Format, nc.Kind, nc.Status)
	if err != nil {
		return nil, classify(op, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, classify(op, err)
	}

	c := &league.Competition{ID: id, Name: nc.Name, Format: nc.Format, Kind: nc.Kind, Status: nc.Status}
	for i, t := range nc.Teams {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO teams (competition_id, name, position) VALUES (?, ?, ?)`, id, t.Name, i)
		if err != nil {
			if isUniqueViolation(err) {
				return nil, league.Validation(op, "team %q appears more than once", t.Name)
			}
			return nil, classify(op, err)
		}
		teamID, err := res.LastInsertId()
		if err != nil {
			return nil, classify(op, err)
		}
		for _, member := range t.Roster {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO roster_members (team_id, name) VALUES (?, ?)`, teamID, member); err != nil {
				return nil, classify(op, err)
			}
		}
		c.Teams = append(c.Teams, league.Team{ID: teamID, Name: t.Name})
	}

	if err := tx.Commit(); err != nil {
		return nil, classify(op, err)
	}
	return c, nil
}

func (s *Store) SetCompetitionStatus(ctx context.Context, id int64, status league.Status) error {
	const op = "set competition status"

	res, err := s.db.ExecContext(ctx, `UPDATE competitions SET status = ? WHERE id = ?`, status, id)
	if err != nil {
		return classify(op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return classify(op, err)
	}
	if n == 0 {
		return league.NotFound(op, "competition %d not found", id)
	}
	return nil
}

func (t *txStore) ClaimSchedule(ctx context.Context, competitionID int64, runID uuid.UUID) error {
	const op = "claim schedule"

	_, err := t.tx.ExecContext(ctx,
		`INSERT INTO competition_schedules (competition_id, run_id) VALUES (?, ?)`,
		competitionID, runID.String())
	if isUniqueViolation(err) {
		return league.StateConflict(op, "competition %d already has a schedule", competitionID)
	}
	if err != nil {
		return classify(op, fmt.Errorf("competition %d: %w", competitionID, err))
	}
	return nil
}
