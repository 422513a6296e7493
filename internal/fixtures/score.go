package fixtures

import (
	"context"

	"github.com/derekprior/fixtures/internal/league"
)

// RecordScore overwrites both scores of a match. The competition must be
// ACTIVE; concurrent writers to the same match are last-write-wins.
func (s *Service) RecordScore(ctx context.Context, matchID int64, home, away int) (_ *league.Match, err error) {
	const op = "record score"

	defer func() { s.metrics.ObserveScore(outcome(err)) }()

	if home < 0 || away < 0 {
		return nil, league.Validation(op, "scores must be non-negative, got %d-%d", home, away)
	}

	if err := s.store.UpdateScore(ctx, matchID, home, away); err != nil {
		return nil, err
	}

	m, err := s.store.GetMatch(ctx, matchID)
	if err != nil {
		return nil, err
	}
	s.logger.Info().
		Int64("match_id", matchID).
		Int64("competition_id", m.CompetitionID).
		Int("home_score", home).
		Int("away_score", away).
		Msg("Score recorded")
	return m, nil
}

// Matches returns a competition with its scheduled matches in round order.
func (s *Service) Matches(ctx context.Context, competitionID int64) (*league.Competition, []league.Match, error) {
	comp, err := s.store.GetCompetition(ctx, competitionID)
	if err != nil {
		return nil, nil, err
	}
	matches, err := s.store.ListMatches(ctx, competitionID)
	if err != nil {
		return nil, nil, err
	}
	return comp, matches, nil
}
