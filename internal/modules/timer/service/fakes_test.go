package service_test

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"timeblock/internal/modules/timer/domain"
	timerout "timeblock/internal/modules/timer/port/out"
	"timeblock/internal/modules/timer/service"
	"timeblock/internal/platform/clock"
	apperrors "timeblock/internal/platform/errors"
	"timeblock/internal/platform/id"
)

var t0 = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

type write struct {
	op      string
	changes []domain.Change
}

// fakeStore applies writes immediately but only delivers them when the test
// feeds list() back into the scheduler.
type fakeStore struct {
	mu       sync.Mutex
	items    map[string]domain.Activity
	writes   []write
	attempts int
	failNext error
	gate     chan struct{}
	entered  chan struct{}
}

func newFakeStore(seed ...domain.Activity) *fakeStore {
	f := &fakeStore{items: map[string]domain.Activity{}}
	for _, a := range seed {
		f.items[a.ID] = a
	}
	return f
}

func (f *fakeStore) Subscribe(ctx context.Context, scope string) (<-chan timerout.Snapshot, error) {
	ch := make(chan timerout.Snapshot, 1)
	ch <- timerout.Snapshot{Activities: f.list()}
	return ch, nil
}

func (f *fakeStore) Create(ctx context.Context, scope string, a domain.Activity) (string, error) {
	if err := f.begin(); err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items[a.ID] = a
	f.writes = append(f.writes, write{op: "create", changes: []domain.Change{{ID: a.ID}}})
	return a.ID, nil
}

func (f *fakeStore) Update(ctx context.Context, scope, id string, patch domain.Patch) error {
	return f.apply("update", []domain.Change{{ID: id, Patch: patch}})
}

func (f *fakeStore) BatchUpdate(ctx context.Context, scope string, changes []domain.Change) error {
	return f.apply("batch", changes)
}

func (f *fakeStore) Delete(ctx context.Context, scope, id string) error {
	if err := f.begin(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.items[id]; !ok {
		return apperrors.ErrNotFound
	}
	delete(f.items, id)
	f.writes = append(f.writes, write{op: "delete", changes: []domain.Change{{ID: id}}})
	return nil
}

func (f *fakeStore) apply(op string, changes []domain.Change) error {
	if err := f.begin(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range changes {
		if _, ok := f.items[c.ID]; !ok {
			return fmt.Errorf("%s: %w", c.ID, apperrors.ErrNotFound)
		}
	}
	for _, c := range changes {
		f.items[c.ID] = c.Patch.Apply(f.items[c.ID])
	}
	f.writes = append(f.writes, write{op: op, changes: changes})
	return nil
}

// begin counts the attempt, parks on an armed gate and consumes a queued failure.
func (f *fakeStore) begin() error {
	f.mu.Lock()
	f.attempts++
	gate, entered := f.gate, f.entered
	f.gate, f.entered = nil, nil
	f.mu.Unlock()
	if gate != nil {
		close(entered)
		<-gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	err := f.failNext
	f.failNext = nil
	return err
}

func (f *fakeStore) failWith(err error) {
	f.mu.Lock()
	f.failNext = err
	f.mu.Unlock()
}

// hold parks the next write until release is closed.
func (f *fakeStore) hold() (entered <-chan struct{}, release chan<- struct{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gate = make(chan struct{})
	f.entered = make(chan struct{})
	return f.entered, f.gate
}

func (f *fakeStore) list() []domain.Activity {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.Activity, 0, len(f.items))
	for _, a := range f.items {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (f *fakeStore) get(t *testing.T, id string) domain.Activity {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.items[id]
	if !ok {
		t.Fatalf("store has no activity %s", id)
	}
	return a
}

func (f *fakeStore) writeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.writes)
}

func (f *fakeStore) attemptCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.attempts
}

// completions counts successful writes that completed id.
func (f *fakeStore) completions(id string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, w := range f.writes {
		for _, c := range w.changes {
			if c.ID == id && c.Patch.IsCompleted != nil && *c.Patch.IsCompleted {
				n++
			}
		}
	}
	return n
}

type recordingNotifier struct {
	mu     sync.Mutex
	titles []string
}

func (n *recordingNotifier) Notify(ctx context.Context, title, body string) error {
	n.mu.Lock()
	n.titles = append(n.titles, title)
	n.mu.Unlock()
	return nil
}

func (n *recordingNotifier) RequestPermission(ctx context.Context) timerout.Permission {
	return timerout.PermissionGranted
}

func (n *recordingNotifier) count(title string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	c := 0
	for _, got := range n.titles {
		if got == title {
			c++
		}
	}
	return c
}

type countingAudio struct {
	mu    sync.Mutex
	plays int
}

func (a *countingAudio) Play(ctx context.Context) error {
	a.mu.Lock()
	a.plays++
	a.mu.Unlock()
	return nil
}

func (a *countingAudio) count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.plays
}

type harness struct {
	clock *clock.Manual
	store *fakeStore
	notes *recordingNotifier
	audio *countingAudio
	guard *service.CompletionGuard
	sched *service.Scheduler
}

func newHarness(t *testing.T, seed ...domain.Activity) *harness {
	t.Helper()
	h := &harness{
		clock: clock.NewManual(t0),
		store: newFakeStore(seed...),
		notes: &recordingNotifier{},
		audio: &countingAudio{},
		guard: service.NewCompletionGuard(),
	}
	h.sched = service.NewScheduler(service.Options{
		Scope:    "test",
		Clock:    h.clock,
		IDs:      &id.Sequence{},
		Store:    h.store,
		Notifier: h.notes,
		Audio:    h.audio,
		Guard:    h.guard,
	})
	h.sched.RequestPermission(context.Background())
	return h
}

// settle feeds store state back until the scheduler stops writing.
func (h *harness) settle(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	for i := 0; i < 10; i++ {
		before := h.store.writeCount()
		_ = h.sched.ApplySnapshot(ctx, h.store.list())
		if h.store.writeCount() == before {
			return
		}
	}
	t.Fatal("scheduler kept writing after 10 snapshots")
}

func (h *harness) view(t *testing.T, id string) domain.Activity {
	t.Helper()
	a, ok := domain.Find(h.sched.View().Activities, id)
	if !ok {
		t.Fatalf("view has no activity %s", id)
	}
	return a
}

func block(id string, seconds, order int) domain.Activity {
	return domain.Activity{ID: id, Title: id, InitialDuration: seconds, Duration: seconds, Order: order, CreatedAt: t0}
}
