package usecase_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"timeblock/internal/modules/timer/adapter/out"
	"timeblock/internal/modules/timer/domain"
	timerdto "timeblock/internal/modules/timer/dto"
	timerout "timeblock/internal/modules/timer/port/out"
	"timeblock/internal/modules/timer/service"
	"timeblock/internal/modules/timer/usecase"
	"timeblock/internal/platform/clock"
	apperrors "timeblock/internal/platform/errors"
	"timeblock/internal/platform/id"
)

const scope = "test-scope"

var t0 = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

func seed(id, title string, seconds, order int) domain.Activity {
	return domain.Activity{ID: id, Title: title, InitialDuration: seconds, Duration: seconds, Order: order, CreatedAt: t0}
}

func openInteractor(t *testing.T, clk clock.Clock, activities ...domain.Activity) (*usecase.Interactor, *out.MemoryActivityStore) {
	t.Helper()
	ctx := context.Background()
	store := out.NewMemoryActivityStore(&id.Sequence{})
	for _, a := range activities {
		if _, err := store.Create(ctx, scope, a); err != nil {
			t.Fatalf("seed %s: %v", a.ID, err)
		}
	}
	codec := out.NewJSONCodec()
	interactor := usecase.NewInteractor(usecase.Options{
		Scheduler: service.NewScheduler(service.Options{Scope: scope, Clock: clk, IDs: &id.Sequence{Prefix: "new"}, Store: store, Notifier: out.DisabledNotifier{}, Audio: out.Silent{}}),
		Store:     store,
		Scope:     scope,
		Exporters: []timerout.ActivityExporter{codec, out.NewMarkdownAgenda()},
		Importer:  codec,
	})
	if err := interactor.Open(ctx); err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = interactor.Close() })
	return interactor, store
}

// eventually polls the board until cond holds.
func eventually(t *testing.T, i *usecase.Interactor, cond func(timerdto.Board) bool) timerdto.Board {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for {
		board, err := i.Board(context.Background())
		if err != nil {
			t.Fatalf("board: %v", err)
		}
		if cond(board) {
			return board
		}
		if time.Now().After(deadline) {
			t.Fatalf("condition never held; last board: %+v", board)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func find(board timerdto.Board, id string) (timerdto.ActivityOutput, bool) {
	for _, a := range board.Activities {
		if a.ID == id {
			return a, true
		}
	}
	return timerdto.ActivityOutput{}, false
}

func TestOpenLoadsBoard(t *testing.T) {
	t.Parallel()
	i, _ := openInteractor(t, clock.NewManual(t0), seed("b", "Read", 60, 1), seed("a", "Write", 120, 0))
	board, err := i.Board(context.Background())
	if err != nil {
		t.Fatalf("board: %v", err)
	}
	if !board.Loaded || len(board.Activities) != 2 || board.Activities[0].ID != "a" {
		t.Fatalf("board = %+v", board)
	}
	if board.Session != "paused" || board.Running {
		t.Fatalf("session = %s", board.Session)
	}
	if board.RemainingTotal != 180 || board.ProjectedFinish == nil || !board.ProjectedFinish.Equal(t0.Add(3*time.Minute)) {
		t.Fatalf("projection = %d, %v", board.RemainingTotal, board.ProjectedFinish)
	}
	if got := board.Activities[1].EstimatedFinish; got == nil || !got.Equal(t0.Add(3*time.Minute)) {
		t.Fatalf("estimated finish = %v", got)
	}
}

type brokenStore struct {
	timerout.ActivityStore
}

func (brokenStore) Subscribe(ctx context.Context, scope string) (<-chan timerout.Snapshot, error) {
	ch := make(chan timerout.Snapshot, 1)
	ch <- timerout.Snapshot{Err: errors.New("disk on fire")}
	return ch, nil
}

func TestOpenFailsWhenFirstSnapshotFails(t *testing.T) {
	t.Parallel()
	store := brokenStore{}
	i := usecase.NewInteractor(usecase.Options{
		Scheduler: service.NewScheduler(service.Options{Scope: scope, Store: store}),
		Store:     store,
		Scope:     scope,
	})
	if err := i.Open(context.Background()); !errors.Is(err, apperrors.ErrStoreUnavailable) {
		t.Fatalf("open = %v", err)
	}
}

func TestAddAndEditThroughPump(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	i, _ := openInteractor(t, clock.NewManual(t0))

	added, err := i.Add(ctx, timerdto.AddInput{Title: "Deep work", Minutes: 25})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if added.InitialDuration != 1500 || added.Partition != "active" {
		t.Fatalf("added = %+v", added)
	}
	eventually(t, i, func(b timerdto.Board) bool { _, ok := find(b, added.ID); return ok })

	if _, err := i.Add(ctx, timerdto.AddInput{Title: "Nothing"}); !errors.Is(err, apperrors.ErrInvalidInput) {
		t.Fatalf("zero duration = %v", err)
	}
	if _, err := i.Add(ctx, timerdto.AddInput{Title: "Negative", Minutes: -1}); !errors.Is(err, apperrors.ErrInvalidInput) {
		t.Fatalf("negative part = %v", err)
	}

	two := 2
	title := "Shallow work"
	if _, err := i.Edit(ctx, timerdto.EditInput{ID: added.ID, Title: &title, Minutes: &two}); err != nil {
		t.Fatalf("edit: %v", err)
	}
	eventually(t, i, func(b timerdto.Board) bool {
		a, _ := find(b, added.ID)
		return a.Title == "Shallow work" && a.InitialDuration == 120 && a.Remaining == 120
	})
}

func TestIDPrefixResolution(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	i, _ := openInteractor(t, clock.NewManual(t0), seed("alpha", "A", 60, 0), seed("alpine", "B", 60, 1), seed("beta", "C", 60, 2))

	if err := i.Play(ctx, "alp"); !errors.Is(err, apperrors.ErrInvalidInput) {
		t.Fatalf("ambiguous prefix = %v", err)
	}
	if err := i.Play(ctx, "zzz"); !errors.Is(err, apperrors.ErrNotFound) {
		t.Fatalf("unknown prefix = %v", err)
	}
	if err := i.Play(ctx, " "); !errors.Is(err, apperrors.ErrInvalidInput) {
		t.Fatalf("blank ref = %v", err)
	}
	if err := i.Play(ctx, "be"); err != nil {
		t.Fatalf("play by prefix: %v", err)
	}
	board := eventually(t, i, func(b timerdto.Board) bool { a, _ := find(b, "beta"); return a.IsRunning })
	if !board.Running {
		t.Fatal("playing an activity runs the session")
	}
	if err := i.Pause(ctx, "alpha"); err != nil {
		t.Fatalf("pause idle exact id: %v", err)
	}
}

func TestMoveByID(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	done := seed("d", "Done", 60, 0)
	done.IsCompleted, done.Duration, done.TimeSpent = true, 0, 60
	i, _ := openInteractor(t, clock.NewManual(t0), seed("a", "A", 60, 0), seed("b", "B", 60, 1), done)

	if err := i.Move(ctx, timerdto.MoveInput{ID: "b", ToIndex: 0}); err != nil {
		t.Fatalf("move: %v", err)
	}
	eventually(t, i, func(b timerdto.Board) bool { return b.Activities[0].ID == "b" && b.Activities[1].ID == "a" })

	if err := i.Move(ctx, timerdto.MoveInput{ID: "d", To: "active", ToIndex: 1}); err != nil {
		t.Fatalf("restore: %v", err)
	}
	board := eventually(t, i, func(b timerdto.Board) bool { return len(b.Active()) == 3 })
	if board.Active()[1].ID != "d" || board.Active()[1].Remaining != 60 {
		t.Fatalf("active = %+v", board.Active())
	}

	if err := i.Move(ctx, timerdto.MoveInput{ID: "a", To: "completed"}); !errors.Is(err, apperrors.ErrInvalidMove) {
		t.Fatalf("move into completed = %v", err)
	}
	if err := i.Move(ctx, timerdto.MoveInput{ID: "a", To: "archive"}); !errors.Is(err, apperrors.ErrInvalidInput) {
		t.Fatalf("unknown partition = %v", err)
	}
}

func TestExportAndImport(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	i, _ := openInteractor(t, clock.NewManual(t0), seed("a", "Write", 60, 0))

	exported, err := i.Export(ctx, timerdto.ExportInput{})
	if err != nil || exported.Format != "json" {
		t.Fatalf("export = %s, %v", exported.Format, err)
	}
	md, err := i.Export(ctx, timerdto.ExportInput{Format: "md"})
	if err != nil || md.Format != "markdown" || !strings.Contains(string(md.Payload), "- [ ] Write") {
		t.Fatalf("markdown export = %s, %v", md.Payload, err)
	}
	if _, err := i.Export(ctx, timerdto.ExportInput{Format: "csv"}); !errors.Is(err, apperrors.ErrInvalidInput) {
		t.Fatalf("unknown format = %v", err)
	}

	res, err := i.Import(ctx, timerdto.ImportInput{Payload: exported.Payload})
	if err != nil || res.Imported != 1 {
		t.Fatalf("import = %+v, %v", res, err)
	}
	board := eventually(t, i, func(b timerdto.Board) bool { return len(b.Activities) == 2 })
	for idx, a := range board.Active() {
		if a.Order != idx {
			t.Fatalf("orders after import = %+v", board.Active())
		}
	}
}

func TestRunCatchUpCompletesExpired(t *testing.T) {
	t.Parallel()
	clk := clock.NewManual(t0)
	end := t0.Add(5 * time.Second)
	running := seed("a", "Write", 5, 0)
	running.IsRunning, running.EndTime = true, &end
	i, _ := openInteractor(t, clk, running, seed("b", "Read", 60, 1))

	ctx, cancel := context.WithCancel(context.Background())
	catchUp := make(chan struct{}, 1)
	result := make(chan error, 1)
	go func() {
		result <- i.Run(ctx, timerdto.RunInput{TickInterval: time.Hour, CatchUp: catchUp})
	}()

	clk.Advance(30 * time.Second)
	catchUp <- struct{}{}
	board := eventually(t, i, func(b timerdto.Board) bool {
		a, _ := find(b, "a")
		next, _ := find(b, "b")
		return a.IsCompleted && next.IsRunning
	})
	if next, _ := find(board, "b"); next.EndTime == nil || !next.EndTime.Equal(t0.Add(90*time.Second)) {
		t.Fatalf("b endTime = %v", next.EndTime)
	}

	cancel()
	if err := <-result; err != nil {
		t.Fatalf("run: %v", err)
	}
}

func TestIsUserError(t *testing.T) {
	t.Parallel()
	if !usecase.IsUserError(apperrors.ErrInvalidMove) || usecase.IsUserError(errors.New("boom")) || usecase.IsUserError(apperrors.ErrStoreUnavailable) {
		t.Fatal("IsUserError misclassifies")
	}
}
