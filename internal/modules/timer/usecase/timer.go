package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"timeblock/internal/modules/timer/domain"
	timerdto "timeblock/internal/modules/timer/dto"
	timerin "timeblock/internal/modules/timer/port/in"
	timerout "timeblock/internal/modules/timer/port/out"
	"timeblock/internal/modules/timer/service"
	apperrors "timeblock/internal/platform/errors"
	"timeblock/internal/platform/logging"
)

// Interactor owns the subscription pump that feeds store snapshots into the
// scheduler, and maps use-case inputs onto scheduler operations.
type Interactor struct {
	scheduler *service.Scheduler
	store     timerout.ActivityStore
	scope     string
	exporters map[string]timerout.ActivityExporter
	importer  timerout.ActivityImporter
	logger    *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

type Options struct {
	Scheduler *service.Scheduler
	Store     timerout.ActivityStore
	Scope     string
	Exporters []timerout.ActivityExporter
	Importer  timerout.ActivityImporter
	Logger    *slog.Logger
}

func NewInteractor(opts Options) *Interactor {
	exporters := map[string]timerout.ActivityExporter{}
	for _, e := range opts.Exporters {
		exporters[e.Format()] = e
	}
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	return &Interactor{
		scheduler: opts.Scheduler,
		store:     opts.Store,
		scope:     opts.Scope,
		exporters: exporters,
		importer:  opts.Importer,
		logger:    opts.Logger,
	}
}

var _ timerin.Usecase = (*Interactor)(nil)

// Open subscribes to the store and blocks until the first snapshot has been
// applied, so every later call sees a loaded board.
func (i *Interactor) Open(ctx context.Context) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.cancel != nil {
		return nil
	}
	subCtx, cancel := context.WithCancel(context.Background())
	snapshots, err := i.store.Subscribe(subCtx, i.scope)
	if err != nil {
		cancel()
		return fmt.Errorf("subscribe activities: %w: %w", apperrors.ErrStoreUnavailable, err)
	}

	var first timerout.Snapshot
	select {
	case <-ctx.Done():
		cancel()
		return ctx.Err()
	case snap, ok := <-snapshots:
		if !ok {
			cancel()
			return fmt.Errorf("subscription closed before first snapshot: %w", apperrors.ErrStoreUnavailable)
		}
		first = snap
	}
	if first.Err != nil {
		cancel()
		return fmt.Errorf("load activities: %w: %w", apperrors.ErrStoreUnavailable, first.Err)
	}
	if err := i.scheduler.ApplySnapshot(ctx, first.Activities); err != nil {
		i.logger.Warn("initial snapshot follow-up failed", slog.Any("err", err))
	}
	i.scheduler.RequestPermission(ctx)

	i.cancel = cancel
	i.done = make(chan struct{})
	go i.pump(subCtx, snapshots, i.done)
	return nil
}

func (i *Interactor) pump(ctx context.Context, snapshots <-chan timerout.Snapshot, done chan<- struct{}) {
	defer close(done)
	for snap := range snapshots {
		if snap.Err != nil {
			i.scheduler.ApplyStreamError(snap.Err)
			continue
		}
		if err := i.scheduler.ApplySnapshot(ctx, snap.Activities); err != nil {
			i.logger.Warn("snapshot follow-up failed", slog.Any("err", err))
		}
	}
}

func (i *Interactor) Close() error {
	i.mu.Lock()
	cancel, done := i.cancel, i.done
	i.cancel, i.done = nil, nil
	i.mu.Unlock()
	if cancel == nil {
		return nil
	}
	cancel()
	<-done
	return nil
}

// Run ticks the scheduler until ctx ends. Trigger failures are logged and
// never stop the loop.
func (i *Interactor) Run(ctx context.Context, input timerdto.RunInput) error {
	interval := input.TickInterval
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := i.scheduler.Tick(ctx); err != nil {
				i.logger.Warn("tick failed", slog.Any("err", err))
			}
		case <-input.CatchUp:
			i.logger.Debug("catching up after resume")
			if err := i.scheduler.CatchUp(ctx); err != nil {
				i.logger.Warn("catch-up failed", slog.Any("err", err))
			}
		}
	}
}

func (i *Interactor) Board(_ context.Context) (timerdto.Board, error) {
	return toBoard(i.scheduler.View()), nil
}

func (i *Interactor) Changes() <-chan struct{} {
	return i.scheduler.Changed()
}

func (i *Interactor) Add(ctx context.Context, input timerdto.AddInput) (timerdto.ActivityOutput, error) {
	seconds, err := domain.TotalSeconds(input.Hours, input.Minutes, input.Seconds)
	if err != nil {
		return timerdto.ActivityOutput{}, err
	}
	activity, err := i.scheduler.Add(ctx, input.Title, seconds)
	if err != nil {
		return timerdto.ActivityOutput{}, err
	}
	return toOutput(activity, time.Time{}, nil), nil
}

func (i *Interactor) Edit(ctx context.Context, input timerdto.EditInput) (timerdto.ActivityOutput, error) {
	id, err := i.resolve(input.ID)
	if err != nil {
		return timerdto.ActivityOutput{}, err
	}
	var seconds *int
	if input.Hours != nil || input.Minutes != nil || input.Seconds != nil {
		total, err := domain.TotalSeconds(deref(input.Hours), deref(input.Minutes), deref(input.Seconds))
		if err != nil {
			return timerdto.ActivityOutput{}, err
		}
		seconds = &total
	}
	activity, err := i.scheduler.Edit(ctx, id, input.Title, seconds)
	if err != nil {
		return timerdto.ActivityOutput{}, err
	}
	return toOutput(activity, time.Time{}, nil), nil
}

func (i *Interactor) Delete(ctx context.Context, ref string) error {
	id, err := i.resolve(ref)
	if err != nil {
		return err
	}
	return i.scheduler.Delete(ctx, id)
}

func (i *Interactor) Play(ctx context.Context, ref string) error {
	id, err := i.resolve(ref)
	if err != nil {
		return err
	}
	return i.scheduler.Play(ctx, id)
}

func (i *Interactor) Pause(ctx context.Context, ref string) error {
	id, err := i.resolve(ref)
	if err != nil {
		return err
	}
	return i.scheduler.Pause(ctx, id)
}

func (i *Interactor) Reset(ctx context.Context, ref string) error {
	id, err := i.resolve(ref)
	if err != nil {
		return err
	}
	return i.scheduler.Reset(ctx, id)
}

// Move locates the activity's current slot on the board and moves it to
// input.ToIndex of the named partition.
func (i *Interactor) Move(ctx context.Context, input timerdto.MoveInput) error {
	id, err := i.resolve(input.ID)
	if err != nil {
		return err
	}
	view := i.scheduler.View()
	a, ok := domain.Find(view.Activities, id)
	if !ok {
		return fmt.Errorf("activity %s: %w", id, apperrors.ErrNotFound)
	}
	to := a.Partition()
	if strings.TrimSpace(input.To) != "" {
		to, err = domain.ParsePartition(input.To)
		if err != nil {
			return err
		}
	}
	fromIndex := -1
	for idx, member := range domain.SortPartition(view.Activities, a.Partition()) {
		if member.ID == id {
			fromIndex = idx
			break
		}
	}
	return i.scheduler.Move(ctx, domain.Move{
		ActivityID: id,
		From:       a.Partition(),
		FromIndex:  fromIndex,
		To:         to,
		ToIndex:    input.ToIndex,
	})
}

func (i *Interactor) StartSession(ctx context.Context) error {
	return i.scheduler.StartSession(ctx)
}

func (i *Interactor) PauseSession(ctx context.Context) error {
	return i.scheduler.PauseSession(ctx)
}

func (i *Interactor) ToggleSession(ctx context.Context) error {
	return i.scheduler.ToggleSession(ctx)
}

func (i *Interactor) Tick(ctx context.Context) error {
	return i.scheduler.Tick(ctx)
}

func (i *Interactor) CatchUp(ctx context.Context) error {
	return i.scheduler.CatchUp(ctx)
}

func (i *Interactor) DismissError(_ context.Context) error {
	i.scheduler.DismissError()
	return nil
}

func (i *Interactor) Export(ctx context.Context, input timerdto.ExportInput) (timerdto.ExportOutput, error) {
	format := strings.ToLower(strings.TrimSpace(input.Format))
	switch format {
	case "":
		format = "json"
	case "md":
		format = "markdown"
	}
	exporter, ok := i.exporters[format]
	if !ok {
		return timerdto.ExportOutput{}, fmt.Errorf("unknown export format %q: %w", input.Format, apperrors.ErrInvalidInput)
	}
	view := i.scheduler.View()
	if !view.Loaded {
		return timerdto.ExportOutput{}, apperrors.ErrNotLoaded
	}
	payload, err := exporter.Export(ctx, i.scope, view.Activities, view.Now)
	if err != nil {
		return timerdto.ExportOutput{}, err
	}
	return timerdto.ExportOutput{Format: format, Payload: payload}, nil
}

func (i *Interactor) Import(ctx context.Context, input timerdto.ImportInput) (timerdto.ImportOutput, error) {
	if i.importer == nil {
		return timerdto.ImportOutput{}, fmt.Errorf("import is not configured: %w", apperrors.ErrInvalidInput)
	}
	activities, err := i.importer.Import(ctx, input.Payload)
	if err != nil {
		return timerdto.ImportOutput{}, err
	}
	n, err := i.scheduler.Import(ctx, activities)
	return timerdto.ImportOutput{Imported: n}, err
}

// resolve accepts a full id or an unambiguous id prefix.
func (i *Interactor) resolve(ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", fmt.Errorf("activity id is required: %w", apperrors.ErrInvalidInput)
	}
	view := i.scheduler.View()
	if !view.Loaded {
		return "", apperrors.ErrNotLoaded
	}
	if _, ok := domain.Find(view.Activities, ref); ok {
		return ref, nil
	}
	match := ""
	for _, a := range view.Activities {
		if !strings.HasPrefix(a.ID, ref) {
			continue
		}
		if match != "" {
			return "", fmt.Errorf("activity prefix %q is ambiguous: %w", ref, apperrors.ErrInvalidInput)
		}
		match = a.ID
	}
	if match == "" {
		return "", fmt.Errorf("activity %s: %w", ref, apperrors.ErrNotFound)
	}
	return match, nil
}

func toBoard(view service.View) timerdto.Board {
	byID := domain.ProjectionsByID(view.Projections)
	board := timerdto.Board{
		Activities: make([]timerdto.ActivityOutput, 0, len(view.Activities)),
		Session:    view.Session.String(),
		Running:    view.Session == service.SessionRunning,
		Permission: string(view.Permission),
		Now:        view.Now,
		Loaded:     view.Loaded,
		LoadError:  errText(view.LoadErr),
		LastError:  errText(view.LastErr),
		Version:    view.Version,
	}
	for _, a := range view.Activities {
		var projection *domain.Projection
		if p, ok := byID[a.ID]; ok {
			projection = &p
		}
		board.Activities = append(board.Activities, toOutput(a, view.Now, projection))
	}
	for _, p := range view.Projections {
		board.RemainingTotal += p.Remaining
	}
	if n := len(view.Projections); n > 0 {
		finish := view.Projections[n-1].FinishAt
		board.ProjectedFinish = &finish
	}
	return board
}

func toOutput(a domain.Activity, now time.Time, projection *domain.Projection) timerdto.ActivityOutput {
	out := timerdto.ActivityOutput{
		ID:              a.ID,
		Title:           a.Title,
		Partition:       a.Partition().String(),
		Order:           a.Order,
		InitialDuration: a.InitialDuration,
		Remaining:       domain.RemainingTime(a, now),
		TimeSpent:       a.TimeSpent,
		IsRunning:       a.IsRunning,
		IsCompleted:     a.IsCompleted,
		EndTime:         a.EndTime,
		CreatedAt:       a.CreatedAt,
	}
	if projection != nil {
		finish := projection.FinishAt
		out.EstimatedFinish = &finish
		out.Remaining = projection.Remaining
	}
	return out
}

func errText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

func deref(v *int) int {
	if v == nil {
		return 0
	}
	return *v
}

func IsUserError(err error) bool {
	return errors.Is(err, apperrors.ErrInvalidInput) ||
		errors.Is(err, apperrors.ErrNotFound) ||
		errors.Is(err, apperrors.ErrInvalidMove) ||
		errors.Is(err, apperrors.ErrActivityRunning) ||
		errors.Is(err, apperrors.ErrActivityCompleted) ||
		errors.Is(err, apperrors.ErrDurationExceeded)
}
