package domain

import (
	"sort"
	"time"
)

type Projection struct {
	ActivityID string
	Remaining  int
	FinishAt   time.Time
}

// Estimate walks the active partition, running activity first and then by
// order, accumulating remaining time from now. Each finish time includes
// the activity's own remaining time.
func Estimate(list []Activity, now time.Time) []Projection {
	active := SortPartition(list, PartitionActive)
	sort.SliceStable(active, func(i, j int) bool {
		return active[i].IsRunning && !active[j].IsRunning
	})
	out := make([]Projection, 0, len(active))
	cumulative := now
	for _, a := range active {
		remaining := RemainingTime(a, now)
		cumulative = cumulative.Add(time.Duration(remaining) * time.Second)
		out = append(out, Projection{ActivityID: a.ID, Remaining: remaining, FinishAt: cumulative})
	}
	return out
}

func ProjectionsByID(projections []Projection) map[string]Projection {
	out := make(map[string]Projection, len(projections))
	for _, p := range projections {
		out[p.ActivityID] = p
	}
	return out
}
