package notification

import (
	"context"
	"time"

	"lessonhub/models"
)

// Dispatcher emits domain events fire-and-forget. The core never waits for
// delivery confirmation; a failed dispatch is logged and dropped. DispatchAt
// defers delivery to a future instant, used for lesson reminders.
type Dispatcher interface {
	Dispatch(ctx context.Context, event models.Event)
	DispatchAt(ctx context.Context, event models.Event, at time.Time)
}
