package ports

import (
	"context"

	"visionstream/internal/domain"
)

// CameraRepository persists camera configuration. Create returns
// domain.ErrAlreadyExists on a duplicate name; lookups return
// domain.ErrNotFound for missing ids.
type CameraRepository interface {
	Create(ctx context.Context, camera domain.Camera) (domain.Camera, error)
	Get(ctx context.Context, id int64) (domain.Camera, error)
	List(ctx context.Context, filter domain.CameraFilter) ([]domain.Camera, error)
	Update(ctx context.Context, camera domain.Camera) error
	UpdateStatus(ctx context.Context, id int64, status domain.CameraStatus) error
	Delete(ctx context.Context, id int64) error
}

// RuleRepository persists event rules.
type RuleRepository interface {
	Create(ctx context.Context, rule domain.Rule) (domain.Rule, error)
	Get(ctx context.Context, id int64) (domain.Rule, error)
	List(ctx context.Context, filter domain.RuleFilter) ([]domain.Rule, error)
	Update(ctx context.Context, rule domain.Rule) error
	Delete(ctx context.Context, id int64) error
}

// EventRepository persists emitted events. UpdateClipPath records the
// evidence clip location once extraction finishes; events created before
// extraction carry an empty clip path.
type EventRepository interface {
	Create(ctx context.Context, event domain.Event) (domain.Event, error)
	Get(ctx context.Context, id int64) (domain.Event, error)
	List(ctx context.Context, filter domain.EventFilter) ([]domain.Event, error)
	Acknowledge(ctx context.Context, id int64, userID int64) error
	UpdateClipPath(ctx context.Context, id int64, clipPath string) error
	CountBySeverity(ctx context.Context, filter domain.EventFilter) (map[domain.Severity]int64, error)
}

// AlertRepository persists pending notifications.
type AlertRepository interface {
	Create(ctx context.Context, alert domain.Alert) (domain.Alert, error)
	Get(ctx context.Context, id int64) (domain.Alert, error)
	List(ctx context.Context, filter domain.AlertFilter) ([]domain.Alert, error)
	UpdateStatus(ctx context.Context, id int64, status domain.AlertStatus) error
}
