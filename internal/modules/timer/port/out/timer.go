package out

import (
	"context"
	"time"

	"timeblock/internal/modules/timer/domain"
)

// Snapshot is one delivery of the full activity list for a scope. A
// non-nil Err means the subscription failed and Activities is empty.
type Snapshot struct {
	Activities []domain.Activity
	Err        error
}

// ActivityStore is the system of record. A write returns once accepted; the
// authoritative state arrives later as a snapshot on the subscription.
type ActivityStore interface {
	Subscribe(ctx context.Context, scope string) (<-chan Snapshot, error)
	Create(ctx context.Context, scope string, activity domain.Activity) (string, error)
	Update(ctx context.Context, scope, id string, patch domain.Patch) error
	BatchUpdate(ctx context.Context, scope string, changes []domain.Change) error
	Delete(ctx context.Context, scope, id string) error
}

type Permission string

const (
	PermissionGranted Permission = "granted"
	PermissionDenied  Permission = "denied"
	PermissionDefault Permission = "default"
)

type NotificationSink interface {
	Notify(ctx context.Context, title, body string) error
	RequestPermission(ctx context.Context) Permission
}

type AudioCue interface {
	Play(ctx context.Context) error
}

type ActivityExporter interface {
	Format() string
	Export(ctx context.Context, scope string, activities []domain.Activity, now time.Time) ([]byte, error)
}

type ActivityImporter interface {
	Import(ctx context.Context, payload []byte) ([]domain.Activity, error)
}
