package schedule

import (
	"testing"
	"time"
)

func date(y, m, d int) time.Time {
	return time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
}

func TestFirstMatchday(t *testing.T) {
	tests := []struct {
		name    string
		start   time.Time
		weekday time.Weekday
		want    time.Time
	}{
		{"start already matches", date(2026, 4, 21), time.Tuesday, date(2026, 4, 21)},
		{"later in same week", date(2026, 4, 20), time.Thursday, date(2026, 4, 23)},
		{"wraps to next week", date(2026, 4, 24), time.Monday, date(2026, 4, 27)},
		{"day before", date(2026, 4, 25), time.Friday, date(2026, 5, 1)},
		{"across year end", date(2026, 12, 30), time.Saturday, date(2027, 1, 2)},
		{"drops time of day", time.Date(2026, 4, 21, 18, 30, 0, 0, time.UTC), time.Tuesday, date(2026, 4, 21)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FirstMatchday(tt.start, tt.weekday)
			if !got.Equal(tt.want) {
				t.Errorf("FirstMatchday() = %s, want %s", got.Format("2006-01-02"), tt.want.Format("2006-01-02"))
			}
		})
	}
}

func TestRoundDates(t *testing.T) {
	dates := RoundDates(date(2026, 4, 22), time.Tuesday, 10)

	t.Run("count", func(t *testing.T) {
		if len(dates) != 10 {
			t.Fatalf("got %d dates, want 10", len(dates))
		}
	})

	t.Run("first date weekday", func(t *testing.T) {
		if dates[0].Weekday() != time.Tuesday {
			t.Errorf("first date is %s", dates[0].Weekday())
		}
		if !dates[0].Equal(date(2026, 4, 28)) {
			t.Errorf("first date = %s, want 2026-04-28", dates[0].Format("2006-01-02"))
		}
	})

	t.Run("weekly spacing", func(t *testing.T) {
		for i := 1; i < len(dates); i++ {
			if want := dates[i-1].AddDate(0, 0, 7); !dates[i].Equal(want) {
				t.Errorf("date %d = %s, want %s", i, dates[i].Format("2006-01-02"), want.Format("2006-01-02"))
			}
			if dates[i].Weekday() != time.Tuesday {
				t.Errorf("date %d falls on %s", i, dates[i].Weekday())
			}
		}
	})

	t.Run("zero count", func(t *testing.T) {
		if got := RoundDates(date(2026, 4, 22), time.Tuesday, 0); got != nil {
			t.Errorf("RoundDates(0) = %v, want nil", got)
		}
	})
}

func TestRoundDatesAcrossDST(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	// DST starts 2026-03-08 in New York.
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, loc)
	dates := RoundDates(start, time.Sunday, 3)
	for i, d := range dates {
		if d.Hour() != 0 || d.Weekday() != time.Sunday {
			t.Errorf("date %d = %s, want midnight Sunday", i, d)
		}
	}
	if dates[1].Day() != 8 || dates[2].Day() != 15 {
		t.Errorf("dates = %v", dates)
	}
}
