package domain

import (
	"fmt"

	apperrors "timeblock/internal/platform/errors"
)

// Move relocates one activity. Indexes address the order-sorted partition
// lists; ActivityID, when set, must match the item found at FromIndex.
type Move struct {
	ActivityID string
	From       Partition
	FromIndex  int
	To         Partition
	ToIndex    int
}

// PlanMove computes the batch that realises m. A move onto its own position
// yields no changes.
func PlanMove(list []Activity, m Move) ([]Change, error) {
	source := SortPartition(list, m.From)
	if m.FromIndex < 0 || m.FromIndex >= len(source) {
		return nil, fmt.Errorf("source index %d out of range [0,%d): %w", m.FromIndex, len(source), apperrors.ErrInvalidMove)
	}
	moved := source[m.FromIndex]
	if m.ActivityID != "" && moved.ID != m.ActivityID {
		return nil, fmt.Errorf("activity %s is not at %s[%d]: %w", m.ActivityID, m.From, m.FromIndex, apperrors.ErrInvalidMove)
	}

	switch {
	case m.From == m.To:
		if m.FromIndex == m.ToIndex {
			return nil, nil
		}
		reordered := insertAt(Without(source, moved.ID), moved, m.ToIndex)
		return Renumber(reordered), nil

	case m.From == PartitionCompleted && m.To == PartitionActive:
		if moved.IsRunning {
			return nil, fmt.Errorf("activity %s: %w", moved.ID, apperrors.ErrActivityRunning)
		}
		remaining := Without(source, moved.ID)
		target := insertAt(SortPartition(list, PartitionActive), moved, m.ToIndex)

		changes := Renumber(remaining)
		for i, a := range target {
			if a.ID == moved.ID {
				changes = append(changes, Change{ID: a.ID, Patch: Patch{
					IsCompleted:  Ptr(false),
					IsRunning:    Ptr(false),
					Duration:     Ptr(a.InitialDuration),
					ClearEndTime: true,
					Order:        Ptr(i),
				}})
				continue
			}
			if a.Order != i {
				changes = append(changes, Change{ID: a.ID, Patch: Patch{Order: Ptr(i)}})
			}
		}
		return changes, nil

	default:
		return nil, fmt.Errorf("activities only complete through their timer: %w", apperrors.ErrInvalidMove)
	}
}

func insertAt(list []Activity, a Activity, index int) []Activity {
	if index < 0 {
		index = 0
	}
	if index > len(list) {
		index = len(list)
	}
	out := make([]Activity, 0, len(list)+1)
	out = append(out, list[:index]...)
	out = append(out, a)
	return append(out, list[index:]...)
}
