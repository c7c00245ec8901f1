package service

import (
	"fmt"
	"sync"
	"time"

	"timeblock/internal/modules/timer/domain"
	apperrors "timeblock/internal/platform/errors"
)

type SessionState int

const (
	SessionPaused SessionState = iota
	SessionRunning
)

func (s SessionState) String() string {
	if s == SessionRunning {
		return "running"
	}
	return "paused"
}

// SessionController owns the global run/pause toggle. Every method returns
// the changes needed to keep at most one activity running; the caller
// commits them.
type SessionController struct {
	mu    sync.Mutex
	state SessionState
}

func NewSessionController() *SessionController {
	return &SessionController{state: SessionPaused}
}

func (c *SessionController) State() SessionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *SessionController) Running() bool {
	return c.State() == SessionRunning
}

// ForcePaused ends the session without touching any activity.
func (c *SessionController) ForcePaused() {
	c.mu.Lock()
	c.state = SessionPaused
	c.mu.Unlock()
}

// StartChange derives endTime from the current remaining time, never from
// initialDuration, so partially-run activities resume where they stopped.
func StartChange(a domain.Activity, now time.Time) (domain.Change, error) {
	if a.IsCompleted {
		return domain.Change{}, fmt.Errorf("start %s: %w", a.ID, apperrors.ErrActivityCompleted)
	}
	remaining := domain.RemainingTime(a, now)
	if remaining > a.InitialDuration {
		return domain.Change{}, fmt.Errorf("start %s: %ds remaining but initial duration is %ds: %w", a.ID, remaining, a.InitialDuration, apperrors.ErrDurationExceeded)
	}
	endTime := now.Add(time.Duration(remaining) * time.Second).Truncate(time.Millisecond)
	return domain.Change{ID: a.ID, Patch: domain.Patch{
		IsRunning: domain.Ptr(true),
		EndTime:   &endTime,
	}}, nil
}

func PauseChange(a domain.Activity, now time.Time) domain.Change {
	return domain.Change{ID: a.ID, Patch: domain.Patch{
		Duration:     domain.Ptr(domain.RemainingTime(a, now)),
		ClearEndTime: true,
		IsRunning:    domain.Ptr(false),
	}}
}

func (c *SessionController) Start(snapshot []domain.Activity, now time.Time) ([]domain.Change, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = SessionRunning
	return c.reconcileLocked(snapshot, now)
}

func (c *SessionController) Pause(snapshot []domain.Activity, now time.Time) []domain.Change {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = SessionPaused
	changes := []domain.Change{}
	for _, a := range snapshot {
		if a.IsRunning {
			changes = append(changes, PauseChange(a, now))
		}
	}
	return changes
}

func (c *SessionController) Toggle(snapshot []domain.Activity, now time.Time) ([]domain.Change, error) {
	if c.Running() {
		return c.Pause(snapshot, now), nil
	}
	return c.Start(snapshot, now)
}

// PlayActivity runs id, pausing whatever else is running, and marks the
// session running.
func (c *SessionController) PlayActivity(snapshot []domain.Activity, id string, now time.Time) ([]domain.Change, error) {
	target, ok := domain.Find(snapshot, id)
	if !ok {
		return nil, fmt.Errorf("activity %s: %w", id, apperrors.ErrNotFound)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if target.IsRunning {
		c.state = SessionRunning
		return nil, nil
	}
	start, err := StartChange(target, now)
	if err != nil {
		return nil, err
	}
	changes := []domain.Change{}
	for _, a := range snapshot {
		if a.IsRunning && a.ID != id {
			changes = append(changes, PauseChange(a, now))
		}
	}
	c.state = SessionRunning
	return append(changes, start), nil
}

// PauseActivity pauses id. Pausing the running activity pauses the session,
// otherwise reconciliation would immediately start the top task again.
func (c *SessionController) PauseActivity(snapshot []domain.Activity, id string, now time.Time) ([]domain.Change, error) {
	target, ok := domain.Find(snapshot, id)
	if !ok {
		return nil, fmt.Errorf("activity %s: %w", id, apperrors.ErrNotFound)
	}
	if !target.IsRunning {
		return nil, nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = SessionPaused
	return []domain.Change{PauseChange(target, now)}, nil
}

// Reconcile brings the snapshot in line with the session state: stale
// runners are paused, an already-running activity is adopted, and a running
// session with nothing running starts the top task or stops if none is left.
func (c *SessionController) Reconcile(snapshot []domain.Activity, now time.Time) ([]domain.Change, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reconcileLocked(snapshot, now)
}

func (c *SessionController) reconcileLocked(snapshot []domain.Activity, now time.Time) ([]domain.Change, error) {
	changes := []domain.Change{}
	_, stale, running := domain.ResolveRunning(snapshot)
	for _, a := range stale {
		changes = append(changes, PauseChange(a, now))
	}
	if running {
		c.state = SessionRunning
		return changes, nil
	}
	if c.state != SessionRunning {
		return changes, nil
	}
	top, ok := domain.TopTask(snapshot)
	if !ok {
		c.state = SessionPaused
		return changes, nil
	}
	start, err := StartChange(top, now)
	if err != nil {
		c.state = SessionPaused
		return changes, err
	}
	return append(changes, start), nil
}
