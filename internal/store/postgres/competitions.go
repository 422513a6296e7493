package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/derekprior/fixtures/internal/league"
)

func (s *Store) GetCompetition(ctx context.Context, id int64) (*league.Competition, error) {
	const op = "get competition"

	var c league.Competition
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, format, kind, status FROM competitions WHERE id = $1`, id,
	).Scan(&c.ID, &c.Name, &c.Format, &c.Kind, &c.Status)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, league.NotFound(op, "competition %d not found", id)
	}
	if err != nil {
		return nil, classify(op, err)
	}

	rows, err := s.pool.Query(ctx,
		`SELECT id, name FROM teams WHERE competition_id = $1 ORDER BY position, id`, id)
	if err != nil {
		return nil, classify(op, err)
	}
	teams, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (league.Team, error) {
		var t league.Team
		err := row.Scan(&t.ID, &t.Name)
		return t, err
	})
	if err != nil {
		return nil, classify(op, err)
	}
	c.Teams = teams
	return &c, nil
}

func (s *Store) CountRosterSize(ctx context.Context, teamID int64) (int, error) {
	const op = "count roster"

	var n int
	err := s.pool.QueryRow(ctx,
		`SELECT (SELECT COUNT(*) FROM roster_members r WHERE r.team_id = t.id) FROM teams t WHERE t.id = $1`,
		teamID,
	).Scan(&n)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, league.NotFound(op, "team %d not found", teamID)
	}
	if err != nil {
		return 0, classify(op, err)
	}
	return n, nil
}

func (s *Store) CreateCompetition(ctx context.Context, nc league.NewCompetition) (*league.Competition, error) {
	const op = "create competition"

	if nc.Status == "" {
		nc.Status = league.StatusDraft
	}
	if nc.Kind == "" {
		nc.Kind = league.KindLeague
	}

	var c *league.Competition
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		var id int64
		if err := tx.QueryRow(ctx,
			`INSERT INTO competitions (name, format, kind, status) VALUES ($1, $2, $3, $4) RETURNING id`,
			nc.Name, string(nc.Format), string(nc.Kind), string(nc.Status),
		).Scan(&id); err != nil {
			return err
		}

		c = &league.Competition{ID: id, Name: nc.Name, Format: nc.Format, Kind: nc.Kind, Status: nc.Status}
		for i, t := range nc.Teams {
			var teamID int64
			if err := tx.QueryRow(ctx,
				`INSERT INTO teams (competition_id, name, position) VALUES ($1, $2, $3) RETURNING id`,
				id, t.Name, i,
			).Scan(&teamID); err != nil {
				if isUniqueViolation(err) {
					return league.Validation(op, "team %q appears more than once", t.Name)
				}
				return err
			}
			if len(t.Roster) > 0 {
				rows := make([][]any, len(t.Roster))
				for j, member := range t.Roster {
					rows[j] = []any{teamID, member}
				}
				if _, err := tx.CopyFrom(ctx, pgx.Identifier{"roster_members"},
					[]string{"team_id", "name"}, pgx.CopyFromRows(rows)); err != nil {
					return err
				}
			}
			c.Teams = append(c.Teams, league.Team{ID: teamID, Name: t.Name})
		}
		return nil
	})
	if err != nil {
		return nil, classify(op, err)
	}
	return c, nil
}

func (s *Store) SetCompetitionStatus(ctx context.Context, id int64, status league.Status) error {
	const op = "set competition status"

	tag, err := s.pool.Exec(ctx, `UPDATE competitions SET status = $1 WHERE id = $2`, string(status), id)
	if err != nil {
		return classify(op, err)
	}
	if tag.RowsAffected() == 0 {
		return league.NotFound(op, "competition %d not found", id)
	}
	return nil
}

func (t *txStore) ClaimSchedule(ctx context.Context, competitionID int64, runID uuid.UUID) error {
	const op = "claim schedule"

	_, err := t.tx.Exec(ctx,
		`INSERT INTO competition_schedules (competition_id, run_id) VALUES ($1, $2)`,
		competitionID, runID)
	if isUniqueViolation(err) {
		return league.StateConflict(op, "competition %d already has a schedule", competitionID)
	}
	return classify(op, err)
}
