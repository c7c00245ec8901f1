package domain_test

import (
	"errors"
	"testing"
	"time"

	"timeblock/internal/modules/timer/domain"
	apperrors "timeblock/internal/platform/errors"
)

func TestSortBoardOrdersPartitions(t *testing.T) {
	t.Parallel()
	late := act("b", 0)
	late.CreatedAt = t0.Add(time.Minute)
	list := []domain.Activity{done("z", 0), act("c", 1), late, act("a", 0)}
	got := ids(domain.SortBoard(list))
	want := []string{"a", "b", "c", "z"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("board = %v, want %v", got, want)
		}
	}
}

func TestParsePartition(t *testing.T) {
	t.Parallel()
	for in, want := range map[string]domain.Partition{"": domain.PartitionActive, "Active": domain.PartitionActive, "done": domain.PartitionCompleted, " completed ": domain.PartitionCompleted} {
		got, err := domain.ParsePartition(in)
		if err != nil || got != want {
			t.Fatalf("ParsePartition(%q) = %v, %v", in, got, err)
		}
	}
	if _, err := domain.ParsePartition("archive"); !errors.Is(err, apperrors.ErrInvalidInput) {
		t.Fatalf("unknown partition error = %v", err)
	}
}

func TestResolveRunningPrefersEarliestEndTime(t *testing.T) {
	t.Parallel()
	a := act("a", 0)
	a.IsRunning, a.EndTime = true, at(40*time.Second)
	b := act("b", 1)
	b.IsRunning, b.EndTime = true, at(10*time.Second)
	c := act("c", 2)

	winner, stale, ok := domain.ResolveRunning([]domain.Activity{a, b, c})
	if !ok || winner.ID != "b" {
		t.Fatalf("winner = %+v, ok=%v", winner, ok)
	}
	if len(stale) != 1 || stale[0].ID != "a" {
		t.Fatalf("stale = %v", ids(stale))
	}

	if _, _, ok := domain.ResolveRunning([]domain.Activity{c}); ok {
		t.Fatal("idle board should have no runner")
	}
}

func TestNextAfterSkipsCurrentAndLowerOrders(t *testing.T) {
	t.Parallel()
	list := []domain.Activity{act("a", 0), act("b", 1), act("c", 2), done("x", 0)}
	current, _ := domain.Find(list, "b")
	next, ok := domain.NextAfter(list, current)
	if !ok || next.ID != "c" {
		t.Fatalf("next after b = %+v, ok=%v", next, ok)
	}
	last, _ := domain.Find(list, "c")
	if _, ok := domain.NextAfter(list, last); ok {
		t.Fatal("nothing follows the last active activity")
	}
	top, ok := domain.TopTask(list)
	if !ok || top.ID != "a" {
		t.Fatalf("top task = %+v", top)
	}
}

func TestRenumberOnlyReportsMovedEntries(t *testing.T) {
	t.Parallel()
	sorted := []domain.Activity{act("a", 0), act("b", 3), act("c", 7)}
	changes := domain.Renumber(sorted)
	if len(changes) != 2 || changes[0].ID != "b" || *changes[0].Patch.Order != 1 || changes[1].ID != "c" || *changes[1].Patch.Order != 2 {
		t.Fatalf("changes = %+v", changes)
	}
	if got := domain.Renumber(domain.SortPartition(domain.ApplyChanges(sorted, changes), domain.PartitionActive)); len(got) != 0 {
		t.Fatalf("second pass should be empty, got %+v", got)
	}
}
