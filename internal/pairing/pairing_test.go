package pairing

import (
	"testing"
)

func ids(n int) []int64 {
	out := make([]int64, n)
	for i := range out {
		out[i] = int64(i + 1)
	}
	return out
}

type pair struct{ a, b int64 }

func normalize(a, b int64) pair {
	if a > b {
		a, b = b, a
	}
	return pair{a, b}
}

func TestFullCycle(t *testing.T) {
	for n := 2; n <= 24; n++ {
		c := New(ids(n))
		seen := make(map[pair]int)
		rounds := 0
		for r, ps := range c.Rounds(n) {
			rounds++
			inRound := make(map[int64]bool)
			for _, p := range ps {
				if inRound[p.Home] || inRound[p.Away] {
					t.Errorf("n=%d round %d: team plays twice", n, r)
				}
				inRound[p.Home] = true
				inRound[p.Away] = true
				seen[normalize(p.Home, p.Away)]++
			}
			if want := n / 2; len(ps) != want {
				t.Errorf("n=%d round %d: %d matches, want %d", n, r, len(ps), want)
			}
			if n%2 == 1 && len(inRound) != n-1 {
				t.Errorf("n=%d round %d: %d teams active, want %d", n, r, len(inRound), n-1)
			}
		}

		wantRounds := n - 1
		if n%2 == 1 {
			wantRounds = n
		}
		if rounds != wantRounds {
			t.Errorf("n=%d: %d rounds, want %d", n, rounds, wantRounds)
		}
		if want := n * (n - 1) / 2; len(seen) != want {
			t.Errorf("n=%d: %d distinct pairs, want %d", n, len(seen), want)
		}
		for p, count := range seen {
			if count != 1 {
				t.Errorf("n=%d: %d vs %d played %d times", n, p.a, p.b, count)
			}
		}
	}
}

func TestFourTeams(t *testing.T) {
	const a, b, c, d = 1, 2, 3, 4
	cyc := New([]int64{a, b, c, d})

	// The second round is odd, so home and away swap: C-A and B-D, not the
	// unrotated A-C and D-B. Alternating keeps team A from hosting every
	// round.
	want := [][]Pairing{
		{{a, d}, {b, c}},
		{{c, a}, {b, d}},
		{{a, b}, {c, d}},
	}
	if cyc.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", cyc.Len())
	}
	for r, w := range want {
		got := cyc.Round(r)
		if len(got) != len(w) {
			t.Fatalf("round %d: %v, want %v", r, got, w)
		}
		for i := range w {
			if got[i] != w[i] {
				t.Errorf("round %d match %d = %v, want %v", r, i, got[i], w[i])
			}
		}
	}
}

func TestOddCountHasOneBye(t *testing.T) {
	c := New(ids(5))
	if c.Len() != 5 {
		t.Fatalf("Len() = %d, want 5", c.Len())
	}

	byes := make(map[int64]int)
	for r := range c.Len() {
		team, ok := c.Bye(r)
		if !ok {
			t.Fatalf("round %d: no bye", r)
		}
		for _, p := range c.Round(r) {
			if p.Home == team || p.Away == team {
				t.Errorf("round %d: bye team %d is playing", r, team)
			}
		}
		byes[team]++
	}
	for team, n := range byes {
		if n != 1 {
			t.Errorf("team %d has %d byes, want 1", team, n)
		}
	}

	t.Run("first four rounds", func(t *testing.T) {
		count := 0
		for _, ps := range c.Rounds(4) {
			count++
			if len(ps) != 2 {
				t.Errorf("round has %d matches, want 2", len(ps))
			}
		}
		if count != 4 {
			t.Errorf("got %d rounds, want 4", count)
		}
	})
}

func TestEvenCountHasNoBye(t *testing.T) {
	c := New(ids(6))
	for r := range c.Len() {
		if _, ok := c.Bye(r); ok {
			t.Errorf("round %d reports a bye", r)
		}
	}
}

func TestTwoTeams(t *testing.T) {
	c := New([]int64{7, 9})
	if c.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", c.Len())
	}
	got := c.Round(0)
	if len(got) != 1 || got[0] != (Pairing{7, 9}) {
		t.Errorf("Round(0) = %v", got)
	}
}

func TestRoundsCappedAtCycle(t *testing.T) {
	c := New(ids(4))
	count := 0
	for range c.Rounds(52) {
		count++
	}
	if count != 3 {
		t.Errorf("got %d rounds, want 3", count)
	}
}

func TestRoundsRestartable(t *testing.T) {
	c := New(ids(8))
	seq := c.Rounds(7)

	var first [][]Pairing
	for _, ps := range seq {
		first = append(first, ps)
	}

	i := 0
	for r, ps := range seq {
		if r != i {
			t.Fatalf("second pass index = %d, want %d", r, i)
		}
		for j := range ps {
			if ps[j] != first[i][j] {
				t.Errorf("round %d differs between passes", r)
			}
		}
		i++
	}

	t.Run("single round recomputed independently", func(t *testing.T) {
		for r := range c.Len() {
			got := c.Round(r)
			for j := range got {
				if got[j] != first[r][j] {
					t.Errorf("Round(%d) differs from sequence", r)
				}
			}
		}
	})

	t.Run("early break", func(t *testing.T) {
		n := 0
		for range seq {
			n++
			if n == 2 {
				break
			}
		}
		if n != 2 {
			t.Errorf("iterated %d rounds, want 2", n)
		}
	})
}

func TestHomeAwayBalance(t *testing.T) {
	c := New(ids(10))
	home := make(map[int64]int)
	away := make(map[int64]int)
	for _, ps := range c.Rounds(c.Len()) {
		for _, p := range ps {
			home[p.Home]++
			away[p.Away]++
		}
	}
	for _, id := range ids(10) {
		if diff := home[id] - away[id]; diff < -3 || diff > 3 {
			t.Errorf("team %d: %d home, %d away", id, home[id], away[id])
		}
	}
}

func TestOutOfRange(t *testing.T) {
	c := New(ids(4))
	if c.Round(-1) != nil || c.Round(3) != nil {
		t.Error("out-of-range round should be nil")
	}
	if _, ok := c.Bye(10); ok {
		t.Error("out-of-range bye should be false")
	}
}

func TestInputNotAliased(t *testing.T) {
	in := []int64{1, 2, 3}
	c := New(in)
	in[0] = 99
	for _, p := range c.Round(0) {
		if p.Home == 99 || p.Away == 99 {
			t.Fatal("cycle aliases the caller's slice")
		}
	}
}
