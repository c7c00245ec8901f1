package domain_test

import (
	"testing"
	"time"

	"timeblock/internal/modules/timer/domain"
)

func TestEstimateRunningFirstThenOrder(t *testing.T) {
	t.Parallel()
	a := act("a", 0)
	b := act("b", 1)
	b.IsRunning, b.EndTime = true, at(30*time.Second)
	c := act("c", 2)
	c.Duration = 15

	got := domain.Estimate([]domain.Activity{a, b, c, done("x", 0)}, t0)
	if len(got) != 3 {
		t.Fatalf("projections = %+v", got)
	}
	want := []struct {
		id        string
		remaining int
		finish    time.Duration
	}{
		{"b", 30, 30 * time.Second},
		{"a", 60, 90 * time.Second},
		{"c", 15, 105 * time.Second},
	}
	for i, w := range want {
		p := got[i]
		if p.ActivityID != w.id || p.Remaining != w.remaining || !p.FinishAt.Equal(t0.Add(w.finish)) {
			t.Fatalf("projection %d = %+v, want %s/%d/%v", i, p, w.id, w.remaining, w.finish)
		}
	}

	byID := domain.ProjectionsByID(got)
	if byID["c"].Remaining != 15 {
		t.Fatalf("lookup = %+v", byID["c"])
	}
}

func TestEstimateEmptyBoard(t *testing.T) {
	t.Parallel()
	if got := domain.Estimate(nil, t0); len(got) != 0 {
		t.Fatalf("projections = %+v", got)
	}
}
