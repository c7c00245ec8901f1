package in

import (
	"context"

	timerdto "timeblock/internal/modules/timer/dto"
	timerin "timeblock/internal/modules/timer/port/in"
)

type TUIHandler struct {
	usecase timerin.Usecase
}

func NewTUIHandler(usecase timerin.Usecase) TUIHandler {
	return TUIHandler{usecase: usecase}
}

func (h TUIHandler) Board(ctx context.Context) (timerdto.Board, error) {
	return h.usecase.Board(ctx)
}

func (h TUIHandler) Changes() <-chan struct{} {
	return h.usecase.Changes()
}

func (h TUIHandler) Add(ctx context.Context, title string, seconds int) error {
	_, err := h.usecase.Add(ctx, timerdto.AddInput{Title: title, Seconds: seconds})
	return err
}

func (h TUIHandler) Rename(ctx context.Context, id, title string) error {
	_, err := h.usecase.Edit(ctx, timerdto.EditInput{ID: id, Title: &title})
	return err
}

func (h TUIHandler) Retime(ctx context.Context, id string, seconds int) error {
	_, err := h.usecase.Edit(ctx, timerdto.EditInput{ID: id, Seconds: &seconds})
	return err
}

func (h TUIHandler) Delete(ctx context.Context, id string) error {
	return h.usecase.Delete(ctx, id)
}

func (h TUIHandler) Toggle(ctx context.Context, id string, running bool) error {
	if running {
		return h.usecase.Pause(ctx, id)
	}
	return h.usecase.Play(ctx, id)
}

func (h TUIHandler) Reset(ctx context.Context, id string) error {
	return h.usecase.Reset(ctx, id)
}

func (h TUIHandler) Move(ctx context.Context, id, to string, index int) error {
	return h.usecase.Move(ctx, timerdto.MoveInput{ID: id, To: to, ToIndex: index})
}

func (h TUIHandler) ToggleSession(ctx context.Context) error {
	return h.usecase.ToggleSession(ctx)
}

func (h TUIHandler) Tick(ctx context.Context) error {
	return h.usecase.Tick(ctx)
}

func (h TUIHandler) CatchUp(ctx context.Context) error {
	return h.usecase.CatchUp(ctx)
}

func (h TUIHandler) DismissError(ctx context.Context) error {
	return h.usecase.DismissError(ctx)
}
