package notification

import (
	"context"
	"encoding/json"
	"time"

	"lessonhub/models"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

// TypeNotifyEvent is the asynq task type carrying dispatched events.
const TypeNotifyEvent = "notify:event"

// AsynqDispatcher queues events onto the shared asynq client. The client is
// constructed at startup and injected; Close is owned by main.
type AsynqDispatcher struct {
	client *asynq.Client
	logger *zap.Logger
}

func NewAsynqDispatcher(client *asynq.Client, logger *zap.Logger) *AsynqDispatcher {
	return &AsynqDispatcher{client: client, logger: logger}
}

// Dispatch enqueues the event and returns immediately. Enqueue failures are
// logged, never propagated: notification delivery must not affect booking or
// payment outcomes.
func (d *AsynqDispatcher) Dispatch(ctx context.Context, event models.Event) {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.EmittedAt.IsZero() {
		event.EmittedAt = time.Now().UTC()
	}

	payload, err := json.Marshal(event)
	if err != nil {
		d.logger.Error("failed to marshal event", zap.String("type", event.Type), zap.Error(err))
		return
	}
	task := asynq.NewTask(TypeNotifyEvent, payload, asynq.MaxRetry(3), asynq.Timeout(10*time.Second))
	if _, err := d.client.EnqueueContext(ctx, task); err != nil {
		d.logger.Warn("failed to enqueue event",
			zap.String("type", event.Type),
			zap.String("bookingId", event.BookingID),
			zap.Error(err),
		)
	}
}

// DispatchAt enqueues the event for delivery at a future instant. An instant
// already in the past degrades to an immediate dispatch.
func (d *AsynqDispatcher) DispatchAt(ctx context.Context, event models.Event, at time.Time) {
	if !at.After(time.Now()) {
		d.Dispatch(ctx, event)
		return
	}
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.EmittedAt.IsZero() {
		event.EmittedAt = time.Now().UTC()
	}

	payload, err := json.Marshal(event)
	if err != nil {
		d.logger.Error("failed to marshal event", zap.String("type", event.Type), zap.Error(err))
		return
	}
	task := asynq.NewTask(TypeNotifyEvent, payload, asynq.MaxRetry(3), asynq.Timeout(10*time.Second))
	if _, err := d.client.EnqueueContext(ctx, task, asynq.ProcessAt(at)); err != nil {
		d.logger.Warn("failed to enqueue deferred event",
			zap.String("type", event.Type),
			zap.String("bookingId", event.BookingID),
			zap.Error(err),
		)
	}
}

// NopDispatcher discards events; used in tests.
type NopDispatcher struct{}

func (NopDispatcher) Dispatch(ctx context.Context, event models.Event) {}

func (NopDispatcher) DispatchAt(ctx context.Context, event models.Event, at time.Time) {}
