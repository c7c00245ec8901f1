package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"timeblock/internal/modules/timer/domain"
	timerout "timeblock/internal/modules/timer/port/out"
	"timeblock/internal/platform/clock"
	apperrors "timeblock/internal/platform/errors"
	"timeblock/internal/platform/id"
	"timeblock/internal/platform/logging"
)

const DefaultIntentTTL = 10 * time.Second

type Trigger string

const (
	TriggerTick     Trigger = "tick"
	TriggerCatchUp  Trigger = "catch-up"
	TriggerSnapshot Trigger = "snapshot"
)

type Options struct {
	Scope     string
	Clock     clock.Clock
	IDs       id.Generator
	Store     timerout.ActivityStore
	Notifier  timerout.NotificationSink
	Audio     timerout.AudioCue
	Guard     Guard
	Logger    *slog.Logger
	IntentTTL time.Duration
}

// View is a consistent read of the scheduler: the confirmed snapshot with
// pending writes applied, plus derived projections.
type View struct {
	Activities  []domain.Activity
	Projections []domain.Projection
	Session     SessionState
	Permission  timerout.Permission
	Now         time.Time
	Loaded      bool
	LoadErr     error
	LastErr     error
	Version     uint64
}

// intent is a write submitted to the store whose echo has not arrived yet.
type intent struct {
	seq         uint64
	changes     []domain.Change
	deletes     []string
	submittedAt time.Time
}

// Scheduler is the context every trigger and user action runs against. The
// in-memory snapshot only changes through store deliveries; local writes
// are layered on top as intents until the store confirms or rejects them.
type Scheduler struct {
	scope     string
	clock     clock.Clock
	ids       id.Generator
	store     timerout.ActivityStore
	guard     Guard
	session   *SessionController
	sequencer *Sequencer
	reorder   *ReorderEngine
	logger    *slog.Logger
	intentTTL time.Duration

	mu        sync.Mutex
	confirmed []domain.Activity
	intents   []intent
	nextSeq   uint64
	blocked   map[string]struct{}
	finished  map[string]time.Time
	loaded    bool
	loadErr   error
	lastErr   error
	version   uint64
	changed   chan struct{}
}

func NewScheduler(opts Options) *Scheduler {
	if opts.Clock == nil {
		opts.Clock = clock.SystemClock{}
	}
	if opts.IDs == nil {
		opts.IDs = id.UUID{}
	}
	if opts.Guard == nil {
		opts.Guard = NewCompletionGuard()
	}
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	if opts.IntentTTL <= 0 {
		opts.IntentTTL = DefaultIntentTTL
	}
	s := &Scheduler{
		scope:     opts.Scope,
		clock:     opts.Clock,
		ids:       opts.IDs,
		store:     opts.Store,
		guard:     opts.Guard,
		session:   NewSessionController(),
		logger:    opts.Logger.With(slog.String("scope", opts.Scope)),
		intentTTL: opts.IntentTTL,
		blocked:   map[string]struct{}{},
		finished:  map[string]time.Time{},
		changed:   make(chan struct{}, 1),
	}
	s.sequencer = NewSequencer(opts.Clock, s, s.session, opts.Notifier, opts.Audio, s.logger)
	s.reorder = NewReorderEngine(s)
	return s
}

func (s *Scheduler) Changed() <-chan struct{} {
	return s.changed
}

func (s *Scheduler) RequestPermission(ctx context.Context) timerout.Permission {
	p := s.sequencer.RequestPermission(ctx)
	s.mu.Lock()
	s.bumpLocked()
	s.mu.Unlock()
	return p
}

func (s *Scheduler) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.clock.Now()
	view := s.viewLocked()
	return View{
		Activities:  domain.SortBoard(view),
		Projections: domain.Estimate(view, now),
		Session:     s.session.State(),
		Permission:  s.sequencer.Permission(),
		Now:         now,
		Loaded:      s.loaded,
		LoadErr:     s.loadErr,
		LastErr:     s.lastErr,
		Version:     s.version,
	}
}

// ApplySnapshot replaces the confirmed snapshot wholesale, drops intents the
// store has caught up with, then reconciles and checks for expiry.
func (s *Scheduler) ApplySnapshot(ctx context.Context, activities []domain.Activity) error {
	now := s.clock.Now()
	s.mu.Lock()
	previous := s.confirmed
	s.confirmed = append([]domain.Activity(nil), activities...)
	s.loaded = true
	s.loadErr = nil
	s.blocked = map[string]struct{}{}
	s.pruneIntentsLocked(now)
	if s.stoppedElsewhereLocked(previous) {
		s.session.ForcePaused()
		s.logger.Info("session paused by another client")
	}
	s.bumpLocked()
	s.mu.Unlock()

	reconcileErr := s.reconcile(ctx)
	expiryErr := s.checkExpiry(ctx, TriggerSnapshot)
	return errors.Join(reconcileErr, expiryErr)
}

// ApplyStreamError records a subscription failure. Mutations are refused
// until a snapshot arrives again.
func (s *Scheduler) ApplyStreamError(err error) {
	s.mu.Lock()
	s.loadErr = err
	s.bumpLocked()
	s.mu.Unlock()
	s.logger.Error("activity subscription failed", slog.Any("err", err))
}

func (s *Scheduler) Tick(ctx context.Context) error {
	return s.checkExpiry(ctx, TriggerTick)
}

func (s *Scheduler) CatchUp(ctx context.Context) error {
	expiryErr := s.checkExpiry(ctx, TriggerCatchUp)
	return errors.Join(expiryErr, s.reconcile(ctx))
}

func (s *Scheduler) DismissError() {
	s.mu.Lock()
	s.lastErr = nil
	s.blocked = map[string]struct{}{}
	s.bumpLocked()
	s.mu.Unlock()
}

func (s *Scheduler) StartSession(ctx context.Context) error {
	view, now, err := s.mutableView()
	if err != nil {
		return err
	}
	changes, err := s.session.Start(view, now)
	if err != nil {
		return s.fail("start session", err)
	}
	return s.Commit(ctx, "start session", changes)
}

func (s *Scheduler) PauseSession(ctx context.Context) error {
	view, now, err := s.mutableView()
	if err != nil {
		return err
	}
	return s.Commit(ctx, "pause session", s.session.Pause(view, now))
}

func (s *Scheduler) ToggleSession(ctx context.Context) error {
	view, now, err := s.mutableView()
	if err != nil {
		return err
	}
	changes, err := s.session.Toggle(view, now)
	if err != nil {
		return s.fail("toggle session", err)
	}
	return s.Commit(ctx, "toggle session", changes)
}

func (s *Scheduler) Play(ctx context.Context, activityID string) error {
	view, now, err := s.mutableView()
	if err != nil {
		return err
	}
	changes, err := s.session.PlayActivity(view, activityID, now)
	if err != nil {
		return s.fail("play activity", err)
	}
	return s.Commit(ctx, "play activity", changes)
}

func (s *Scheduler) Pause(ctx context.Context, activityID string) error {
	view, now, err := s.mutableView()
	if err != nil {
		return err
	}
	changes, err := s.session.PauseActivity(view, activityID, now)
	if err != nil {
		return s.fail("pause activity", err)
	}
	return s.Commit(ctx, "pause activity", changes)
}

// Reset restores the full duration. A running activity keeps running from
// its full duration; a completed one rejoins the end of the active list.
func (s *Scheduler) Reset(ctx context.Context, activityID string) error {
	view, now, err := s.mutableView()
	if err != nil {
		return err
	}
	a, ok := domain.Find(view, activityID)
	if !ok {
		return s.fail("reset activity", fmt.Errorf("activity %s: %w", activityID, apperrors.ErrNotFound))
	}
	if a.IsCompleted {
		index := -1
		for i, c := range domain.SortPartition(view, domain.PartitionCompleted) {
			if c.ID == a.ID {
				index = i
			}
		}
		_, err := s.reorder.Move(ctx, view, domain.Move{
			ActivityID: a.ID,
			From:       domain.PartitionCompleted,
			FromIndex:  index,
			To:         domain.PartitionActive,
			ToIndex:    domain.CountPartition(view, domain.PartitionActive),
		})
		return err
	}
	patch := domain.Patch{Duration: domain.Ptr(a.InitialDuration), ClearEndTime: true}
	if a.IsRunning {
		endTime := now.Add(time.Duration(a.InitialDuration) * time.Second).Truncate(time.Millisecond)
		patch = domain.Patch{Duration: domain.Ptr(a.InitialDuration), EndTime: &endTime}
	}
	return s.Commit(ctx, "reset activity", []domain.Change{{ID: a.ID, Patch: patch}})
}

func (s *Scheduler) Move(ctx context.Context, m domain.Move) error {
	view, _, err := s.mutableView()
	if err != nil {
		return err
	}
	if _, err := s.reorder.Move(ctx, view, m); err != nil {
		if errors.Is(err, apperrors.ErrInvalidMove) || errors.Is(err, apperrors.ErrActivityRunning) {
			return s.fail("reorder activities", err)
		}
		return err
	}
	return nil
}

// Add validates before any write; the new activity shows up once the
// store echoes it.
func (s *Scheduler) Add(ctx context.Context, title string, seconds int) (domain.Activity, error) {
	view, now, err := s.mutableView()
	if err != nil {
		return domain.Activity{}, err
	}
	activity, err := domain.NewActivity(s.ids.New(), title, seconds, domain.CountPartition(view, domain.PartitionActive), now)
	if err != nil {
		return domain.Activity{}, s.fail("add activity", err)
	}
	newID, err := s.store.Create(ctx, s.scope, activity)
	if err != nil {
		return domain.Activity{}, s.fail("add activity", err)
	}
	activity.ID = newID
	s.logger.Info("activity added", slog.String("activity_id", newID), slog.Int("seconds", seconds))
	return activity, nil
}

func (s *Scheduler) Import(ctx context.Context, activities []domain.Activity) (int, error) {
	view, now, err := s.mutableView()
	if err != nil {
		return 0, err
	}
	offsets := map[domain.Partition]int{
		domain.PartitionActive:    domain.CountPartition(view, domain.PartitionActive),
		domain.PartitionCompleted: domain.CountPartition(view, domain.PartitionCompleted),
	}
	imported := 0
	for _, a := range domain.SortBoard(activities) {
		if _, exists := domain.Find(view, a.ID); exists || a.ID == "" {
			a.ID = s.ids.New()
		}
		if a.CreatedAt.IsZero() {
			a.CreatedAt = now
		}
		p := a.Partition()
		a.Order = offsets[p]
		offsets[p]++
		if err := a.Validate(); err != nil {
			return imported, s.fail("import activities", err)
		}
		if _, err := s.store.Create(ctx, s.scope, a); err != nil {
			return imported, s.fail("import activities", err)
		}
		imported++
	}
	return imported, nil
}

// Edit changes the title and/or initial duration. A new duration is refused
// while the activity runs and otherwise replaces the remaining time.
func (s *Scheduler) Edit(ctx context.Context, activityID string, title *string, seconds *int) (domain.Activity, error) {
	view, _, err := s.mutableView()
	if err != nil {
		return domain.Activity{}, err
	}
	a, ok := domain.Find(view, activityID)
	if !ok {
		return domain.Activity{}, s.fail("edit activity", fmt.Errorf("activity %s: %w", activityID, apperrors.ErrNotFound))
	}
	patch := domain.Patch{}
	if title != nil {
		clean, err := domain.ValidateTitle(*title)
		if err != nil {
			return domain.Activity{}, s.fail("edit activity", err)
		}
		patch.Title = &clean
	}
	if seconds != nil && *seconds != a.InitialDuration {
		if err := domain.ValidateDuration(*seconds); err != nil {
			return domain.Activity{}, s.fail("edit activity", err)
		}
		if a.IsRunning {
			return domain.Activity{}, s.fail("edit activity", fmt.Errorf("activity %s: %w", a.ID, apperrors.ErrActivityRunning))
		}
		if a.IsCompleted {
			return domain.Activity{}, s.fail("edit activity", fmt.Errorf("activity %s: %w", a.ID, apperrors.ErrActivityCompleted))
		}
		patch.InitialDuration = seconds
		patch.Duration = seconds
	}
	if patch.Empty() {
		return a, nil
	}
	if err := s.Commit(ctx, "edit activity", []domain.Change{{ID: a.ID, Patch: patch}}); err != nil {
		return domain.Activity{}, err
	}
	return patch.Apply(a), nil
}

func (s *Scheduler) Delete(ctx context.Context, activityID string) error {
	view, _, err := s.mutableView()
	if err != nil {
		return err
	}
	a, ok := domain.Find(view, activityID)
	if !ok {
		return s.fail("delete activity", fmt.Errorf("activity %s: %w", activityID, apperrors.ErrNotFound))
	}
	renumber := domain.Renumber(domain.Without(domain.SortPartition(view, a.Partition()), a.ID))

	seq := s.pushIntent(renumber, []string{a.ID})
	if err := s.store.Delete(ctx, s.scope, a.ID); err != nil {
		s.dropIntent(seq)
		return s.fail("delete activity", err)
	}
	if len(renumber) > 0 {
		if err := s.store.BatchUpdate(ctx, s.scope, renumber); err != nil {
			s.dropIntent(seq)
			return s.fail("delete activity", err)
		}
	}
	s.mu.Lock()
	delete(s.finished, a.ID)
	s.mu.Unlock()
	s.logger.Info("activity deleted", slog.String("activity_id", a.ID))
	return nil
}

// Commit records changes as a pending intent and writes them to the store.
// On failure the intent is discarded, which rolls the view back to the
// last confirmed snapshot.
func (s *Scheduler) Commit(ctx context.Context, reason string, changes []domain.Change) error {
	batch := make([]domain.Change, 0, len(changes))
	for _, c := range domain.CoalesceChanges(changes) {
		if !c.Patch.Empty() {
			batch = append(batch, c)
		}
	}
	if len(batch) == 0 {
		return nil
	}
	seq := s.pushIntent(batch, nil)
	var err error
	if len(batch) == 1 {
		err = s.store.Update(ctx, s.scope, batch[0].ID, batch[0].Patch)
	} else {
		err = s.store.BatchUpdate(ctx, s.scope, batch)
	}
	if err != nil {
		s.dropIntent(seq)
		return s.fail(reason, err)
	}
	s.logger.Debug("changes committed", slog.String("reason", reason), slog.Int("changes", len(batch)))
	return nil
}

func (s *Scheduler) checkExpiry(ctx context.Context, trigger Trigger) error {
	s.mu.Lock()
	if !s.loaded || s.loadErr != nil {
		s.mu.Unlock()
		return nil
	}
	view := s.viewLocked()
	running, _, ok := domain.ResolveRunning(view)
	if !ok || domain.RemainingTime(running, s.clock.Now()) > 0 {
		s.mu.Unlock()
		return nil
	}
	if _, blocked := s.blocked[running.ID]; blocked {
		s.mu.Unlock()
		return nil
	}
	if s.finishedLocked(running) {
		s.mu.Unlock()
		s.logger.Debug("run already completed", slog.String("activity_id", running.ID), slog.String("trigger", string(trigger)))
		return nil
	}
	if !s.guard.TryAcquire(running.ID) {
		s.mu.Unlock()
		s.logger.Debug("completion already in flight", slog.String("activity_id", running.ID), slog.String("trigger", string(trigger)))
		return nil
	}
	sessionWasRunning := s.session.Running()
	s.mu.Unlock()
	defer s.guard.Release(running.ID)

	outcome, err := s.sequencer.Complete(ctx, running, view, sessionWasRunning)
	if err != nil {
		s.mu.Lock()
		s.blocked[running.ID] = struct{}{}
		s.mu.Unlock()
		return err
	}
	if running.EndTime != nil {
		s.mu.Lock()
		s.finished[running.ID] = *running.EndTime
		s.mu.Unlock()
	}
	s.logger.Info("activity completed",
		slog.String("activity_id", running.ID),
		slog.String("trigger", string(trigger)),
		slog.Int("spent_seconds", outcome.SpentRun),
		slog.String("next_id", outcome.NextID),
		slog.Bool("next_started", outcome.Started),
		slog.Bool("all_complete", outcome.AllComplete),
	)
	return nil
}

func (s *Scheduler) reconcile(ctx context.Context) error {
	s.mu.Lock()
	if !s.loaded || s.loadErr != nil {
		s.mu.Unlock()
		return nil
	}
	view := s.viewLocked()
	now := s.clock.Now()
	s.mu.Unlock()

	changes, err := s.session.Reconcile(view, now)
	commitErr := s.Commit(ctx, "reconcile session", changes)
	if err != nil {
		return s.fail("reconcile session", err)
	}
	return commitErr
}

// finishedLocked reports whether this exact run was already completed here.
// A late snapshot can still show it running.
func (s *Scheduler) finishedLocked(running domain.Activity) bool {
	endTime, ok := s.finished[running.ID]
	return ok && running.EndTime != nil && running.EndTime.Equal(endTime)
}

// stoppedElsewhereLocked reports whether the runner of the previous snapshot
// was paused by another client: it is still active, nothing runs now and no
// local write is pending for it.
func (s *Scheduler) stoppedElsewhereLocked(previous []domain.Activity) bool {
	if !s.session.Running() {
		return false
	}
	before, _, ok := domain.ResolveRunning(previous)
	if !ok {
		return false
	}
	if _, _, still := domain.ResolveRunning(s.confirmed); still {
		return false
	}
	after, present := domain.Find(s.confirmed, before.ID)
	if !present || after.IsCompleted {
		return false
	}
	for _, in := range s.intents {
		for _, c := range in.changes {
			if c.ID == before.ID {
				return false
			}
		}
	}
	return true
}

func (s *Scheduler) mutableView() ([]domain.Activity, time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.loaded || s.loadErr != nil {
		return nil, time.Time{}, apperrors.ErrNotLoaded
	}
	return s.viewLocked(), s.clock.Now(), nil
}

func (s *Scheduler) viewLocked() []domain.Activity {
	view := append([]domain.Activity(nil), s.confirmed...)
	for _, in := range s.intents {
		for _, gone := range in.deletes {
			view = domain.Without(view, gone)
		}
		view = domain.ApplyChanges(view, in.changes)
	}
	return view
}

func (s *Scheduler) pruneIntentsLocked(now time.Time) {
	kept := s.intents[:0]
	for _, in := range s.intents {
		if now.Sub(in.submittedAt) >= s.intentTTL || s.coveredLocked(in) {
			continue
		}
		kept = append(kept, in)
	}
	s.intents = kept
}

func (s *Scheduler) coveredLocked(in intent) bool {
	for _, gone := range in.deletes {
		if _, present := domain.Find(s.confirmed, gone); present {
			return false
		}
	}
	for _, c := range in.changes {
		a, present := domain.Find(s.confirmed, c.ID)
		if present && !c.Patch.Covers(a) {
			return false
		}
	}
	return true
}

func (s *Scheduler) pushIntent(changes []domain.Change, deletes []string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextSeq++
	s.intents = append(s.intents, intent{seq: s.nextSeq, changes: changes, deletes: deletes, submittedAt: s.clock.Now()})
	s.bumpLocked()
	return s.nextSeq
}

func (s *Scheduler) dropIntent(seq uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, in := range s.intents {
		if in.seq == seq {
			s.intents = append(s.intents[:i], s.intents[i+1:]...)
			break
		}
	}
	s.bumpLocked()
}

// fail records err as the dismissible error and returns it wrapped.
func (s *Scheduler) fail(reason string, err error) error {
	wrapped := fmt.Errorf("%s: %w", reason, err)
	s.mu.Lock()
	s.lastErr = wrapped
	s.bumpLocked()
	s.mu.Unlock()
	s.logger.Warn("operation failed", slog.String("reason", reason), slog.Any("err", err))
	return wrapped
}

func (s *Scheduler) bumpLocked() {
	s.version++
	select {
	case s.changed <- struct{}{}:
	default:
	}
}
