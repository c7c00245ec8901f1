package domain

import (
	"fmt"
	"sort"
	"strings"

	apperrors "timeblock/internal/platform/errors"
)

type Partition int

const (
	PartitionActive Partition = iota
	PartitionCompleted
)

func (p Partition) String() string {
	if p == PartitionCompleted {
		return "completed"
	}
	return "active"
}

func ParsePartition(s string) (Partition, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "active":
		return PartitionActive, nil
	case "completed", "done":
		return PartitionCompleted, nil
	default:
		return PartitionActive, fmt.Errorf("unknown partition %q: %w", s, apperrors.ErrInvalidInput)
	}
}

func SortPartition(list []Activity, p Partition) []Activity {
	out := make([]Activity, 0, len(list))
	for _, a := range list {
		if a.Partition() == p {
			out = append(out, a)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out
}

func SortBoard(list []Activity) []Activity {
	return append(SortPartition(list, PartitionActive), SortPartition(list, PartitionCompleted)...)
}

func less(a, b Activity) bool {
	if a.Order != b.Order {
		return a.Order < b.Order
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID < b.ID
}

func Find(list []Activity, id string) (Activity, bool) {
	for _, a := range list {
		if a.ID == id {
			return a, true
		}
	}
	return Activity{}, false
}

// ResolveRunning picks the authoritative running activity. More than one
// runner violates the single-runner invariant; the earliest endTime wins and
// the rest come back as stale.
func ResolveRunning(list []Activity) (Activity, []Activity, bool) {
	runners := make([]Activity, 0, 1)
	for _, a := range list {
		if a.IsRunning && !a.IsCompleted {
			runners = append(runners, a)
		}
	}
	if len(runners) == 0 {
		return Activity{}, nil, false
	}
	sort.SliceStable(runners, func(i, j int) bool {
		a, b := runners[i], runners[j]
		switch {
		case a.EndTime != nil && b.EndTime == nil:
			return true
		case a.EndTime == nil && b.EndTime != nil:
			return false
		case a.EndTime != nil && b.EndTime != nil && !a.EndTime.Equal(*b.EndTime):
			return a.EndTime.Before(*b.EndTime)
		}
		return less(a, b)
	})
	return runners[0], runners[1:], true
}

func TopTask(list []Activity) (Activity, bool) {
	active := SortPartition(list, PartitionActive)
	if len(active) == 0 {
		return Activity{}, false
	}
	return active[0], true
}

func NextAfter(list []Activity, current Activity) (Activity, bool) {
	for _, a := range SortPartition(list, PartitionActive) {
		if a.ID == current.ID {
			continue
		}
		if a.Order > current.Order {
			return a, true
		}
	}
	return Activity{}, false
}

func Renumber(sorted []Activity) []Change {
	changes := []Change{}
	for i, a := range sorted {
		if a.Order != i {
			changes = append(changes, Change{ID: a.ID, Patch: Patch{Order: Ptr(i)}})
		}
	}
	return changes
}

func CountPartition(list []Activity, p Partition) int {
	n := 0
	for _, a := range list {
		if a.Partition() == p {
			n++
		}
	}
	return n
}

func Without(list []Activity, id string) []Activity {
	out := make([]Activity, 0, len(list))
	for _, a := range list {
		if a.ID != id {
			out = append(out, a)
		}
	}
	return out
}
