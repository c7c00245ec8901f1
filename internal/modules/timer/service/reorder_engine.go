package service

import (
	"context"

	"timeblock/internal/modules/timer/domain"
)

type ReorderEngine struct {
	committer Committer
}

func NewReorderEngine(committer Committer) *ReorderEngine {
	return &ReorderEngine{committer: committer}
}

func (e *ReorderEngine) Move(ctx context.Context, snapshot []domain.Activity, m domain.Move) ([]domain.Change, error) {
	changes, err := domain.PlanMove(snapshot, m)
	if err != nil {
		return nil, err
	}
	if len(changes) == 0 {
		return nil, nil
	}
	if err := e.committer.Commit(ctx, "reorder activities", changes); err != nil {
		return nil, err
	}
	return changes, nil
}
