package in

import (
	"context"

	"timeblock/internal/modules/timer/dto"
)

type Usecase interface {
	Open(ctx context.Context) error
	Close() error
	Run(ctx context.Context, input dto.RunInput) error

	Board(ctx context.Context) (dto.Board, error)
	Changes() <-chan struct{}

	Add(ctx context.Context, input dto.AddInput) (dto.ActivityOutput, error)
	Edit(ctx context.Context, input dto.EditInput) (dto.ActivityOutput, error)
	Delete(ctx context.Context, id string) error
	Play(ctx context.Context, id string) error
	Pause(ctx context.Context, id string) error
	Reset(ctx context.Context, id string) error
	Move(ctx context.Context, input dto.MoveInput) error

	StartSession(ctx context.Context) error
	PauseSession(ctx context.Context) error
	ToggleSession(ctx context.Context) error

	Tick(ctx context.Context) error
	CatchUp(ctx context.Context) error
	DismissError(ctx context.Context) error

	Export(ctx context.Context, input dto.ExportInput) (dto.ExportOutput, error)
	Import(ctx context.Context, input dto.ImportInput) (dto.ImportOutput, error)
}
