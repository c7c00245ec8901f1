package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"timeblock/internal/modules/timer/domain"
	timerout "timeblock/internal/modules/timer/port/out"
	"timeblock/internal/platform/clock"
)

type Committer interface {
	Commit(ctx context.Context, reason string, changes []domain.Change) error
}

type Outcome struct {
	Completed   domain.Activity
	SpentRun    int
	NextID      string
	Started     bool
	AllComplete bool
}

type Sequencer struct {
	clock     clock.Clock
	committer Committer
	session   *SessionController
	notifier  timerout.NotificationSink
	audio     timerout.AudioCue
	logger    *slog.Logger

	mu         sync.Mutex
	permission timerout.Permission
}

func NewSequencer(clk clock.Clock, committer Committer, session *SessionController, notifier timerout.NotificationSink, audio timerout.AudioCue, logger *slog.Logger) *Sequencer {
	return &Sequencer{
		clock:      clk,
		committer:  committer,
		session:    session,
		notifier:   notifier,
		audio:      audio,
		logger:     logger,
		permission: timerout.PermissionDefault,
	}
}

func (s *Sequencer) RequestPermission(ctx context.Context) timerout.Permission {
	if s.notifier == nil {
		return timerout.PermissionDenied
	}
	p := s.notifier.RequestPermission(ctx)
	s.mu.Lock()
	s.permission = p
	s.mu.Unlock()
	return p
}

func (s *Sequencer) Permission() timerout.Permission {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.permission
}

// Complete marks activity done and, when the session was running, starts
// the active activity that follows it by order. snapshot is the view the
// caller observed when it detected expiry.
func (s *Sequencer) Complete(ctx context.Context, activity domain.Activity, snapshot []domain.Activity, sessionWasRunning bool) (Outcome, error) {
	now := s.clock.Now()
	remaining := domain.RemainingTime(activity, now)
	spent := activity.InitialDuration - remaining
	if spent < 0 {
		spent = 0
	}

	done := domain.Patch{
		IsRunning:    domain.Ptr(false),
		IsCompleted:  domain.Ptr(true),
		ClearEndTime: true,
		Duration:     domain.Ptr(0),
		TimeSpent:    domain.Ptr(activity.TimeSpent + spent),
		Order:        domain.Ptr(domain.CountPartition(domain.Without(snapshot, activity.ID), domain.PartitionCompleted)),
	}
	changes := []domain.Change{{ID: activity.ID, Patch: done}}
	changes = append(changes, domain.Renumber(domain.Without(domain.SortPartition(snapshot, domain.PartitionActive), activity.ID))...)

	outcome := Outcome{Completed: done.Apply(activity), SpentRun: spent}
	next, hasNext := domain.NextAfter(snapshot, activity)
	if hasNext {
		outcome.NextID = next.ID
		if sessionWasRunning {
			start, err := StartChange(next, now)
			if err != nil {
				s.logger.Warn("next activity cannot start", slog.String("activity_id", next.ID), slog.Any("err", err))
			} else {
				changes = append(changes, start)
				outcome.Started = true
			}
		}
	}

	if err := s.committer.Commit(ctx, "complete activity", domain.CoalesceChanges(changes)); err != nil {
		return Outcome{}, fmt.Errorf("complete %s: %w", activity.ID, err)
	}

	s.notify(ctx, "Time's up: "+activity.Title, fmt.Sprintf("%s finished after %s.", activity.Title, domain.FormatClock(activity.InitialDuration)))
	if s.audio != nil {
		if err := s.audio.Play(ctx); err != nil {
			s.logger.Warn("audio cue failed", slog.Any("err", err))
		}
	}
	if !hasNext {
		outcome.AllComplete = true
		s.session.ForcePaused()
		s.notify(ctx, "All blocks complete", "Every queued activity has finished.")
	}
	return outcome, nil
}

func (s *Sequencer) notify(ctx context.Context, title, body string) {
	if s.notifier == nil || s.Permission() != timerout.PermissionGranted {
		return
	}
	if err := s.notifier.Notify(ctx, title, body); err != nil {
		s.logger.Warn("notification failed", slog.String("title", title), slog.Any("err", err))
	}
}
