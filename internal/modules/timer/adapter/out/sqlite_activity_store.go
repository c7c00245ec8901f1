package out

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"timeblock/internal/modules/timer/domain"
	timerout "timeblock/internal/modules/timer/port/out"
	apperrors "timeblock/internal/platform/errors"
	"timeblock/internal/platform/id"
	"timeblock/internal/platform/logging"

	_ "modernc.org/sqlite"
)

// SQLiteActivityStore persists activities in SQLite. Subscribers are fed
// after every local write and whenever PRAGMA data_version reports a commit
// from another connection, which covers other timeblock processes sharing
// the database file.
type SQLiteActivityStore struct {
	db     *sql.DB
	ids    id.Generator
	poll   time.Duration
	logger *slog.Logger
	hub    *hub

	stop      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

var _ timerout.ActivityStore = (*SQLiteActivityStore)(nil)

func NewSQLiteActivityStore(dbPath string, ids id.Generator, poll time.Duration, logger *slog.Logger) (*SQLiteActivityStore, error) {
	if strings.TrimSpace(dbPath) == "" || dbPath == ":memory:" {
		return nil, fmt.Errorf("sqlite store needs a database file: %w", apperrors.ErrInvalidInput)
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}
	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if ids == nil {
		ids = id.UUID{}
	}
	if poll <= 0 {
		poll = 500 * time.Millisecond
	}
	if logger == nil {
		logger = logging.Discard()
	}
	store := &SQLiteActivityStore{db: db, ids: ids, poll: poll, logger: logger, hub: newHub(), stop: make(chan struct{})}
	if err := store.ensureSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (s *SQLiteActivityStore) ensureSchema(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS activities (
  scope TEXT NOT NULL,
  id TEXT NOT NULL,
  title TEXT NOT NULL,
  initial_duration INTEGER NOT NULL,
  duration INTEGER NOT NULL,
  end_time_ms INTEGER,
  is_running INTEGER NOT NULL DEFAULT 0,
  is_completed INTEGER NOT NULL DEFAULT 0,
  sort_order INTEGER NOT NULL DEFAULT 0,
  time_spent INTEGER NOT NULL DEFAULT 0,
  created_at_ms INTEGER NOT NULL,
  updated_at_ms INTEGER NOT NULL,
  PRIMARY KEY (scope, id)
);
CREATE INDEX IF NOT EXISTS activities_scope_order ON activities (scope, is_completed, sort_order);
`
	if _, err := s.db.ExecContext(ctx, `PRAGMA journal_mode=WAL`); err != nil {
		return fmt.Errorf("enable wal: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("create activities table: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, fmt.Sprintf(`PRAGMA user_version=%d`, domain.SchemaVersion)); err != nil {
		return fmt.Errorf("set schema version: %w", err)
	}
	return nil
}

// Close stops every watcher before closing the database.
func (s *SQLiteActivityStore) Close() error {
	s.closeOnce.Do(func() { close(s.stop) })
	s.wg.Wait()
	return s.db.Close()
}

// Subscribe delivers the current list immediately, then on every change
// until ctx ends. Load failures are delivered as Snapshot.Err.
func (s *SQLiteActivityStore) Subscribe(ctx context.Context, scope string) (<-chan timerout.Snapshot, error) {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("open watch connection: %w", err)
	}
	version, err := dataVersion(ctx, conn)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	key, ch := s.hub.add(scope)
	s.hub.publishTo(scope, key, s.snapshot(ctx, scope))

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.hub.remove(scope, key)
		defer conn.Close()
		ticker := time.NewTicker(s.poll)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stop:
				return
			case <-ticker.C:
			}
			current, err := dataVersion(ctx, conn)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				s.hub.publishTo(scope, key, timerout.Snapshot{Err: err})
				continue
			}
			if current == version {
				continue
			}
			version = current
			s.hub.publishTo(scope, key, s.snapshot(ctx, scope))
		}
	}()
	return ch, nil
}

func (s *SQLiteActivityStore) Create(ctx context.Context, scope string, activity domain.Activity) (string, error) {
	if activity.ID == "" {
		activity.ID = s.ids.New()
	}
	now := time.Now().UTC().UnixMilli()
	const stmt = `
INSERT INTO activities (scope, id, title, initial_duration, duration, end_time_ms, is_running, is_completed, sort_order, time_spent, created_at_ms, updated_at_ms)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, stmt,
		scope,
		activity.ID,
		activity.Title,
		activity.InitialDuration,
		activity.Duration,
		nullableMillis(activity.EndTime),
		activity.IsRunning,
		activity.IsCompleted,
		activity.Order,
		activity.TimeSpent,
		activity.CreatedAt.UTC().UnixMilli(),
		now,
	)
	if err != nil {
		return "", fmt.Errorf("insert activity: %w", err)
	}
	s.echo(ctx, scope)
	return activity.ID, nil
}

func (s *SQLiteActivityStore) Update(ctx context.Context, scope, activityID string, patch domain.Patch) error {
	return s.BatchUpdate(ctx, scope, []domain.Change{{ID: activityID, Patch: patch}})
}

// BatchUpdate applies every change inside one transaction.
func (s *SQLiteActivityStore) BatchUpdate(ctx context.Context, scope string, changes []domain.Change) error {
	if len(changes) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin batch: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC().UnixMilli()
	for _, c := range changes {
		sets, args := assignments(c.Patch)
		sets = append(sets, "updated_at_ms = ?")
		args = append(args, now, scope, c.ID)
		res, err := tx.ExecContext(ctx, `UPDATE activities SET `+strings.Join(sets, ", ")+` WHERE scope = ? AND id = ?`, args...)
		if err != nil {
			return fmt.Errorf("update activity %s: %w", c.ID, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("update activity %s: %w", c.ID, err)
		}
		if n == 0 {
			return fmt.Errorf("update activity %s: %w", c.ID, apperrors.ErrNotFound)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit batch: %w", err)
	}
	s.echo(ctx, scope)
	return nil
}

func (s *SQLiteActivityStore) Delete(ctx context.Context, scope, activityID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM activities WHERE scope = ? AND id = ?`, scope, activityID)
	if err != nil {
		return fmt.Errorf("delete activity %s: %w", activityID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete activity %s: %w", activityID, err)
	}
	if n == 0 {
		return fmt.Errorf("delete activity %s: %w", activityID, apperrors.ErrNotFound)
	}
	s.echo(ctx, scope)
	return nil
}

func (s *SQLiteActivityStore) List(ctx context.Context, scope string) ([]domain.Activity, error) {
	const query = `
SELECT id, title, initial_duration, duration, end_time_ms, is_running, is_completed, sort_order, time_spent, created_at_ms
FROM activities WHERE scope = ?`
	rows, err := s.db.QueryContext(ctx, query, scope)
	if err != nil {
		return nil, fmt.Errorf("query activities: %w", err)
	}
	defer rows.Close()

	out := []domain.Activity{}
	for rows.Next() {
		var (
			a         domain.Activity
			endTime   sql.NullInt64
			createdAt int64
		)
		if err := rows.Scan(&a.ID, &a.Title, &a.InitialDuration, &a.Duration, &endTime, &a.IsRunning, &a.IsCompleted, &a.Order, &a.TimeSpent, &createdAt); err != nil {
			return nil, fmt.Errorf("scan activity: %w", err)
		}
		if endTime.Valid {
			t := time.UnixMilli(endTime.Int64).UTC()
			a.EndTime = &t
		}
		a.CreatedAt = time.UnixMilli(createdAt).UTC()
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate activities: %w", err)
	}
	return domain.SortBoard(out), nil
}

func (s *SQLiteActivityStore) echo(ctx context.Context, scope string) {
	if !s.hub.has(scope) {
		return
	}
	s.hub.publish(scope, s.snapshot(ctx, scope))
}

func (s *SQLiteActivityStore) snapshot(ctx context.Context, scope string) timerout.Snapshot {
	activities, err := s.List(ctx, scope)
	if err != nil {
		s.logger.Warn("load activities", slog.String("scope", scope), slog.Any("err", err))
		return timerout.Snapshot{Err: err}
	}
	return timerout.Snapshot{Activities: activities}
}

func dataVersion(ctx context.Context, conn *sql.Conn) (int64, error) {
	var v int64
	if err := conn.QueryRowContext(ctx, `PRAGMA data_version`).Scan(&v); err != nil {
		if errors.Is(err, sql.ErrConnDone) {
			return 0, fmt.Errorf("watch connection closed: %w", apperrors.ErrStoreUnavailable)
		}
		return 0, fmt.Errorf("read data_version: %w", err)
	}
	return v, nil
}

func assignments(p domain.Patch) ([]string, []any) {
	sets := []string{}
	args := []any{}
	add := func(column string, value any) {
		sets = append(sets, column+" = ?")
		args = append(args, value)
	}
	if p.Title != nil {
		add("title", *p.Title)
	}
	if p.InitialDuration != nil {
		add("initial_duration", *p.InitialDuration)
	}
	if p.Duration != nil {
		add("duration", *p.Duration)
	}
	if p.ClearEndTime {
		add("end_time_ms", nil)
	} else if p.EndTime != nil {
		add("end_time_ms", p.EndTime.UTC().UnixMilli())
	}
	if p.IsRunning != nil {
		add("is_running", *p.IsRunning)
	}
	if p.IsCompleted != nil {
		add("is_completed", *p.IsCompleted)
	}
	if p.Order != nil {
		add("sort_order", *p.Order)
	}
	if p.TimeSpent != nil {
		add("time_spent", *p.TimeSpent)
	}
	return sets, args
}

func nullableMillis(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().UnixMilli()
}
