// Package pairing builds round-robin pairings with the circle method.
package pairing

import "iter"

// Bye marks the padding position used when the team count is odd.
const Bye int64 = -1

// Pairing is a single matchup within a round.
type Pairing struct {
	Home int64
	Away int64
}

// Cycle is one full round-robin cycle over a fixed team order. It holds no
// rotation state; every round is rebuilt from the original order.
type Cycle struct {
	teams []int64 // padded to an even length
}

// New returns the cycle for teams in the given order. Odd counts are padded
// with a bye.
func New(teamIDs []int64) *Cycle {
	teams := make([]int64, len(teamIDs), len(teamIDs)+1)
	copy(teams, teamIDs)
	if len(teams)%2 == 1 {
		teams = append(teams, Bye)
	}
	return &Cycle{teams: teams}
}

// Len returns the number of rounds in one cycle.
func (c *Cycle) Len() int {
	if len(c.teams) < 2 {
		return 0
	}
	return len(c.teams) - 1
}

// at returns the team at position k after r rotations. Position 0 never
// moves; each rotation moves the last position to position 1.
func (c *Cycle) at(r, k int) int64 {
	if k == 0 {
		return c.teams[0]
	}
	m := len(c.teams) - 1
	idx := ((k-1-r)%m + m) % m
	return c.teams[1+idx]
}

// Round returns the pairings for round r (0-based), or nil when r is outside
// the cycle. Odd rounds swap home and away.
func (c *Cycle) Round(r int) []Pairing {
	if r < 0 || r >= c.Len() {
		return nil
	}
	n := len(c.teams)
	out := make([]Pairing, 0, n/2)
	for i := range n / 2 {
		home, away := c.at(r, i), c.at(r, n-1-i)
		if home == Bye || away == Bye {
			continue
		}
		if r%2 == 1 {
			home, away = away, home
		}
		out = append(out, Pairing{Home: home, Away: away})
	}
	return out
}

// Bye reports which team sits out round r, if any.
func (c *Cycle) Bye(r int) (int64, bool) {
	if r < 0 || r >= c.Len() {
		return 0, false
	}
	n := len(c.teams)
	for i := range n / 2 {
		a, b := c.at(r, i), c.at(r, n-1-i)
		switch {
		case a == Bye:
			return b, true
		case b == Bye:
			return a, true
		}
	}
	return 0, false
}

// Rounds yields (index, pairings) for the first min(requested, Len()) rounds.
// Each range over the sequence starts again from round 0.
func (c *Cycle) Rounds(requested int) iter.Seq2[int, []Pairing] {
	count := min(requested, c.Len())
	return func(yield func(int, []Pairing) bool) {
		for r := range count {
			if !yield(r, c.Round(r)) {
				return
			}
		}
	}
}
