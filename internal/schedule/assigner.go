package schedule

import (
	"cmp"
	"fmt"
	"slices"
	"time"

	"github.com/derekprior/fixtures/internal/pairing"
)

// Round is one matchday of pairings.
type Round struct {
	Number   int // 1-based
	Date     time.Time
	Pairings []pairing.Pairing
}

// Assignment places a pairing in a time slot on a court.
type Assignment struct {
	Round     int
	Date      time.Time
	Pairing   pairing.Pairing
	Slot      TimeSlot
	SlotIndex int
	CourtID   int64
}

// StartsAt returns the kickoff instant of the assignment.
func (a Assignment) StartsAt() time.Time {
	return a.Slot.On(a.Date)
}

// TeamMetrics holds per-team schedule statistics.
type TeamMetrics struct {
	Matches    int
	Home       int
	Away       int
	SlotCounts []int // indexed like the slot table
	Debt       float64
}

// Result is the output of slot assignment.
type Result struct {
	Assignments []Assignment
	Debt        map[int64]float64
	TeamMetrics map[int64]*TeamMetrics
}

// Assign distributes each round's pairings across slots and courts.
//
// Every team carries a slot debt, starting at zero for this call. Within a
// round the pairings with the highest combined debt pick first; position p
// gets slot p / len(courts) and court courts[p mod len(courts)]. Both teams
// then add mean weight minus slot weight to their debt, so a team handed a
// poor slot is served earlier next round.
//
// A round with more pairings than slots times courts uses every slot once
// per court per full pass, and the leftover pairings go to the best slots
// while the league as a whole is owed time and to the worst ones otherwise.
// The resulting slot list is handed out best first, so debt stays bounded.
// Pairings sharing a slot rotate through the courts and may share a court.
func Assign(rounds []Round, slots SlotTable, courts []int64) (*Result, error) {
	if err := slots.Validate(); err != nil {
		return nil, err
	}
	if len(courts) == 0 {
		return nil, fmt.Errorf("at least one court is required")
	}

	a := &assigner{
		slots:   slots,
		courts:  courts,
		mean:    slots.Mean(),
		debt:    make(map[int64]float64),
		metrics: make(map[int64]*TeamMetrics),
	}
	for _, r := range rounds {
		a.assignRound(r)
	}

	for id, m := range a.metrics {
		m.Debt = a.debt[id]
	}
	return &Result{
		Assignments: a.assignments,
		Debt:        a.debt,
		TeamMetrics: a.metrics,
	}, nil
}

type assigner struct {
	slots  SlotTable
	courts []int64
	mean   float64

	debt        map[int64]float64
	total       float64 // sum of debt, kept in assignment order
	metrics     map[int64]*TeamMetrics
	assignments []Assignment
}

func (a *assigner) assignRound(r Round) {
	order := make([]pairing.Pairing, len(r.Pairings))
	copy(order, r.Pairings)
	slices.SortStableFunc(order, func(x, y pairing.Pairing) int {
		return cmp.Compare(a.combined(y), a.combined(x))
	})

	indexes := a.slotIndexes(len(order))
	court := 0
	for p, pr := range order {
		idx := indexes[p]
		if p > 0 && indexes[p-1] != idx {
			court = 0
		}
		slot := a.slots[idx]
		a.assignments = append(a.assignments, Assignment{
			Round:     r.Number,
			Date:      r.Date,
			Pairing:   pr,
			Slot:      slot,
			SlotIndex: idx,
			CourtID:   a.courts[court%len(a.courts)],
		})
		court++

		for _, team := range []int64{pr.Home, pr.Away} {
			a.debt[team] += a.mean - slot.Weight
			a.total += a.mean - slot.Weight
			m := a.teamMetrics(team)
			m.Matches++
			m.SlotCounts[idx]++
		}
		a.teamMetrics(pr.Home).Home++
		a.teamMetrics(pr.Away).Away++
	}
}

// slotIndexes returns the slot index for each of n sorted positions, in
// ascending order.
func (a *assigner) slotIndexes(n int) []int {
	k, c := len(a.slots), len(a.courts)
	indexes := make([]int, 0, n)
	if n <= k*c {
		for p := range n {
			indexes = append(indexes, p/c)
		}
		return indexes
	}

	passes, rest := n/(k*c), n%(k*c)
	for idx := range k {
		for range passes * c {
			indexes = append(indexes, idx)
		}
	}
	owed := a.total > 0
	for p := range rest {
		idx := p / c
		if !owed {
			idx = k - 1 - idx
		}
		indexes = append(indexes, idx)
	}
	slices.Sort(indexes)
	return indexes
}

func (a *assigner) combined(p pairing.Pairing) float64 {
	return a.debt[p.Home] + a.debt[p.Away]
}

func (a *assigner) teamMetrics(team int64) *TeamMetrics {
	m, ok := a.metrics[team]
	if !ok {
		m = &TeamMetrics{SlotCounts: make([]int, len(a.slots))}
		a.metrics[team] = m
	}
	return m
}

// MaxAbsDebt returns the largest absolute debt in the result.
func (r *Result) MaxAbsDebt() float64 {
	var worst float64
	for _, d := range r.Debt {
		if d < 0 {
			d = -d
		}
		worst = max(worst, d)
	}
	return worst
}
