package out

import (
	"context"
	"fmt"
	"sync"

	"timeblock/internal/modules/timer/domain"
	timerout "timeblock/internal/modules/timer/port/out"
	apperrors "timeblock/internal/platform/errors"
	"timeblock/internal/platform/id"
)

// MemoryActivityStore keeps activities in process memory. Every write is
// echoed to subscribers of the scope.
type MemoryActivityStore struct {
	mu     sync.Mutex
	ids    id.Generator
	scopes map[string]map[string]domain.Activity
	hub    *hub
}

func NewMemoryActivityStore(ids id.Generator) *MemoryActivityStore {
	if ids == nil {
		ids = id.UUID{}
	}
	return &MemoryActivityStore{ids: ids, scopes: map[string]map[string]domain.Activity{}, hub: newHub()}
}

var _ timerout.ActivityStore = (*MemoryActivityStore)(nil)

func (s *MemoryActivityStore) Subscribe(ctx context.Context, scope string) (<-chan timerout.Snapshot, error) {
	s.mu.Lock()
	key, ch := s.hub.add(scope)
	s.hub.publishTo(scope, key, timerout.Snapshot{Activities: s.listLocked(scope)})
	s.mu.Unlock()
	go func() {
		<-ctx.Done()
		s.hub.remove(scope, key)
	}()
	return ch, nil
}

func (s *MemoryActivityStore) Create(_ context.Context, scope string, activity domain.Activity) (string, error) {
	s.mu.Lock()
	if activity.ID == "" {
		activity.ID = s.ids.New()
	}
	items := s.scopeLocked(scope)
	if _, exists := items[activity.ID]; exists {
		s.mu.Unlock()
		return "", fmt.Errorf("create activity %s: already exists: %w", activity.ID, apperrors.ErrInvalidInput)
	}
	items[activity.ID] = activity
	s.echoLocked(scope)
	s.mu.Unlock()
	return activity.ID, nil
}

func (s *MemoryActivityStore) Update(ctx context.Context, scope, activityID string, patch domain.Patch) error {
	return s.BatchUpdate(ctx, scope, []domain.Change{{ID: activityID, Patch: patch}})
}

func (s *MemoryActivityStore) BatchUpdate(_ context.Context, scope string, changes []domain.Change) error {
	s.mu.Lock()
	items := s.scopeLocked(scope)
	for _, c := range changes {
		if _, ok := items[c.ID]; !ok {
			s.mu.Unlock()
			return fmt.Errorf("update activity %s: %w", c.ID, apperrors.ErrNotFound)
		}
	}
	for _, c := range changes {
		items[c.ID] = c.Patch.Apply(items[c.ID])
	}
	s.echoLocked(scope)
	s.mu.Unlock()
	return nil
}

func (s *MemoryActivityStore) Delete(_ context.Context, scope, activityID string) error {
	s.mu.Lock()
	items := s.scopeLocked(scope)
	if _, ok := items[activityID]; !ok {
		s.mu.Unlock()
		return fmt.Errorf("delete activity %s: %w", activityID, apperrors.ErrNotFound)
	}
	delete(items, activityID)
	s.echoLocked(scope)
	s.mu.Unlock()
	return nil
}

func (s *MemoryActivityStore) List(scope string) []domain.Activity {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listLocked(scope)
}

func (s *MemoryActivityStore) listLocked(scope string) []domain.Activity {
	items := s.scopeLocked(scope)
	out := make([]domain.Activity, 0, len(items))
	for _, a := range items {
		out = append(out, a)
	}
	return domain.SortBoard(out)
}

func (s *MemoryActivityStore) echoLocked(scope string) {
	s.hub.publish(scope, timerout.Snapshot{Activities: s.listLocked(scope)})
}

func (s *MemoryActivityStore) scopeLocked(scope string) map[string]domain.Activity {
	items := s.scopes[scope]
	if items == nil {
		items = map[string]domain.Activity{}
		s.scopes[scope] = items
	}
	return items
}
