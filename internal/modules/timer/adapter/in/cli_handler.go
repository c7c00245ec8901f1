package in

import (
	"context"

	timerdto "timeblock/internal/modules/timer/dto"
	timerin "timeblock/internal/modules/timer/port/in"
)

type CLIHandler struct {
	usecase timerin.Usecase
}

func NewCLIHandler(usecase timerin.Usecase) CLIHandler {
	return CLIHandler{usecase: usecase}
}

func (h CLIHandler) Open(ctx context.Context) error {
	return h.usecase.Open(ctx)
}

func (h CLIHandler) Close() error {
	return h.usecase.Close()
}

func (h CLIHandler) Run(ctx context.Context, input timerdto.RunInput) error {
	return h.usecase.Run(ctx, input)
}

func (h CLIHandler) List(ctx context.Context) (timerdto.Board, error) {
	return h.usecase.Board(ctx)
}

func (h CLIHandler) Add(ctx context.Context, title string, hours, minutes, seconds int) (timerdto.ActivityOutput, error) {
	return h.usecase.Add(ctx, timerdto.AddInput{Title: title, Hours: hours, Minutes: minutes, Seconds: seconds})
}

func (h CLIHandler) Edit(ctx context.Context, input timerdto.EditInput) (timerdto.ActivityOutput, error) {
	return h.usecase.Edit(ctx, input)
}

func (h CLIHandler) Delete(ctx context.Context, id string) error {
	return h.usecase.Delete(ctx, id)
}

func (h CLIHandler) Play(ctx context.Context, id string) error {
	return h.usecase.Play(ctx, id)
}

func (h CLIHandler) Pause(ctx context.Context, id string) error {
	return h.usecase.Pause(ctx, id)
}

func (h CLIHandler) Reset(ctx context.Context, id string) error {
	return h.usecase.Reset(ctx, id)
}

func (h CLIHandler) Move(ctx context.Context, id, to string, index int) error {
	return h.usecase.Move(ctx, timerdto.MoveInput{ID: id, To: to, ToIndex: index})
}

func (h CLIHandler) Session(ctx context.Context, action string) error {
	switch action {
	case "start":
		return h.usecase.StartSession(ctx)
	case "pause":
		return h.usecase.PauseSession(ctx)
	default:
		return h.usecase.ToggleSession(ctx)
	}
}

func (h CLIHandler) Export(ctx context.Context, format string) (timerdto.ExportOutput, error) {
	return h.usecase.Export(ctx, timerdto.ExportInput{Format: format})
}

func (h CLIHandler) Import(ctx context.Context, payload []byte) (timerdto.ImportOutput, error) {
	return h.usecase.Import(ctx, timerdto.ImportInput{Payload: payload})
}
