package cron

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"lessonhub/config"
	"lessonhub/models"
	"lessonhub/services/availability"
	"lessonhub/services/notification"
	"lessonhub/services/payment"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

// Task types handled by the payment worker.
const (
	TypeAuthorizeBooking  = "payment:authorize"
	TypeCaptureLateCancel = "payment:capture_late"
	TypeProcessScheduled  = "payment:process_scheduled"
	TypeRetryFailed       = "payment:retry_failed"
	TypeCaptureCompleted  = "payment:capture_completed"
	TypeCompleteElapsed   = "payment:complete_elapsed"
	TypeAvailabilityPurge = "availability:purge"
)

type bookingPayload struct {
	BookingID string `json:"bookingId"`
}

// Enqueuer hands booking-specific payment tasks to the worker queue. It is
// the asynq-backed implementation of the booking service's TaskEnqueuer port.
type Enqueuer struct {
	client *asynq.Client
}

func NewEnqueuer(client *asynq.Client) *Enqueuer {
	return &Enqueuer{client: client}
}

func (e *Enqueuer) enqueue(ctx context.Context, taskType, bookingID string) error {
	payload, err := json.Marshal(bookingPayload{BookingID: bookingID})
	if err != nil {
		return err
	}
	task := asynq.NewTask(taskType, payload, asynq.MaxRetry(3), asynq.Timeout(time.Minute))
	_, err = e.client.EnqueueContext(ctx, task)
	return err
}

func (e *Enqueuer) EnqueueImmediateAuthorization(ctx context.Context, bookingID string) error {
	return e.enqueue(ctx, TypeAuthorizeBooking, bookingID)
}

func (e *Enqueuer) EnqueueLateCancellationCapture(ctx context.Context, bookingID string) error {
	return e.enqueue(ctx, TypeCaptureLateCancel, bookingID)
}

// Worker owns the asynq server and periodic scheduler for the payment
// workflow. Construct with NewWorker, start with Run, stop with Shutdown.
type Worker struct {
	server    *asynq.Server
	scheduler *asynq.Scheduler
	mux       *asynq.ServeMux
	logger    *zap.Logger
}

// NewWorker wires the payment engine's jobs and the availability retention
// purge onto the worker queue and registers their cron-like periodic triggers.
func NewWorker(engine *payment.WorkflowEngine, availabilitySvc availability.AvailabilityService, logger *zap.Logger) *Worker {
	redisOpts := asynq.RedisClientOpt{
		Addr:     config.AppConfig.RedisAddr,
		Password: config.AppConfig.RedisPassword,
		DB:       config.AppConfig.RedisQueueDB,
	}

	srv := asynq.NewServer(
		redisOpts,
		asynq.Config{
			Concurrency: 10,
			Queues: map[string]int{
				"default": 1,
			},
		},
	)

	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeAuthorizeBooking, func(ctx context.Context, task *asynq.Task) error {
		var p bookingPayload
		if err := json.Unmarshal(task.Payload(), &p); err != nil {
			return err
		}
		engine.AuthorizeBooking(ctx, p.BookingID)
		return nil
	})
	mux.HandleFunc(TypeCaptureLateCancel, func(ctx context.Context, task *asynq.Task) error {
		var p bookingPayload
		if err := json.Unmarshal(task.Payload(), &p); err != nil {
			return err
		}
		engine.CaptureLateCancellation(ctx, p.BookingID)
		return nil
	})
	mux.HandleFunc(TypeProcessScheduled, func(ctx context.Context, _ *asynq.Task) error {
		engine.ProcessScheduledAuthorizations(ctx)
		return nil
	})
	mux.HandleFunc(TypeRetryFailed, func(ctx context.Context, _ *asynq.Task) error {
		engine.RetryFailedAuthorizations(ctx)
		return nil
	})
	mux.HandleFunc(TypeCaptureCompleted, func(ctx context.Context, _ *asynq.Task) error {
		engine.CaptureCompletedLessons(ctx)
		return nil
	})
	mux.HandleFunc(TypeCompleteElapsed, func(ctx context.Context, _ *asynq.Task) error {
		engine.CompleteElapsedLessons(ctx)
		return nil
	})
	mux.HandleFunc(TypeAvailabilityPurge, func(ctx context.Context, _ *asynq.Task) error {
		_, err := availabilitySvc.PurgeExpired(ctx)
		return err
	})
	mux.HandleFunc(notification.TypeNotifyEvent, handleNotifyTask(logger))

	scheduler := asynq.NewScheduler(redisOpts, &asynq.SchedulerOpts{Location: time.UTC})

	return &Worker{server: srv, scheduler: scheduler, mux: mux, logger: logger}
}

// Run starts the worker and the periodic triggers in the background, with
// capped startup retries.
func (w *Worker) Run() {
	entries := []struct {
		spec     string
		taskType string
	}{
		{"*/5 * * * *", TypeProcessScheduled},
		{"*/10 * * * *", TypeRetryFailed},
		{"*/15 * * * *", TypeCaptureCompleted},
		{"*/5 * * * *", TypeCompleteElapsed},
		{"0 4 * * *", TypeAvailabilityPurge},
	}
	for _, entry := range entries {
		if _, err := w.scheduler.Register(entry.spec, asynq.NewTask(entry.taskType, nil)); err != nil {
			log.Fatalf("[PaymentWorker] failed to register periodic task %s: %v", entry.taskType, err)
		}
	}

	go func() {
		if err := w.scheduler.Run(); err != nil {
			log.Fatalf("[PaymentWorker] scheduler stopped: %v", err)
		}
	}()

	go func() {
		w.logger.Info("payment worker starting")
		const maxAttempts = 5
		for attempts := 1; attempts <= maxAttempts; attempts++ {
			if err := w.server.Run(w.mux); err != nil {
				w.logger.Error("payment worker failed to start",
					zap.Int("attempt", attempts), zap.Error(err))
				if attempts == maxAttempts {
					log.Fatal("[PaymentWorker] max retry attempts reached, exiting")
				}
				time.Sleep(time.Duration(attempts*2) * time.Second)
			} else {
				break
			}
		}
	}()
}

// Shutdown stops the scheduler and drains the worker.
func (w *Worker) Shutdown() {
	w.scheduler.Shutdown()
	w.server.Shutdown()
}

// handleNotifyTask forwards dispatched events to the delivery layer. Delivery
// mechanics (push, email) live outside the core; the handler logs the event
// and hands it off fire-and-forget.
func handleNotifyTask(logger *zap.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, task *asynq.Task) error {
		var event models.Event
		if err := json.Unmarshal(task.Payload(), &event); err != nil {
			logger.Error("invalid event payload", zap.Error(err))
			return err
		}
		logger.Info("event dispatched",
			zap.String("type", event.Type),
			zap.String("bookingId", event.BookingID),
			zap.String("recipient", event.Recipient),
		)
		return nil
	}
}
