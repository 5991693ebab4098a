// File: lessonhub/main.go
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"lessonhub/config"
	"lessonhub/cron"
	"lessonhub/database"
	availabilityRepo "lessonhub/database/repository/availability"
	bookingRepo "lessonhub/database/repository/booking"
	instructorRepo "lessonhub/database/repository/instructor"
	"lessonhub/handlers"
	"lessonhub/routes"
	"lessonhub/services/availability"
	"lessonhub/services/booking"
	"lessonhub/services/notification"
	"lessonhub/services/payment"
	"lessonhub/services/refund"
	"lessonhub/utils"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/hibiken/asynq"
	stripe "github.com/stripe/stripe-go/v76"
)

func main() {
	config.LoadConfig()
	logger := utils.GetLogger()

	database.InitDB()
	defer database.CloseDB()

	// Redis clients are constructed once here and injected; their lifecycle
	// is explicit.
	cacheClient, err := utils.NewRedisClient(config.AppConfig.RedisAddr, config.AppConfig.RedisPassword, config.AppConfig.RedisCacheDB)
	if err != nil {
		logger.Sugar().Fatalf("main: failed to connect to Redis (cache): %v", err)
	}
	defer cacheClient.Close()
	lockClient, err := utils.NewRedisClient(config.AppConfig.RedisAddr, config.AppConfig.RedisPassword, config.AppConfig.RedisLockDB)
	if err != nil {
		logger.Sugar().Fatalf("main: failed to connect to Redis (locks): %v", err)
	}
	defer lockClient.Close()

	queueClient := asynq.NewClient(asynq.RedisClientOpt{
		Addr:     config.AppConfig.RedisAddr,
		Password: config.AppConfig.RedisPassword,
		DB:       config.AppConfig.RedisQueueDB,
	})
	defer queueClient.Close()

	stripe.Key = config.AppConfig.StripeKey

	// Repositories.
	availRepo := availabilityRepo.NewMongoAvailabilityRepo()
	bkRepo := bookingRepo.NewMongoBookingRepo()
	instRepo := instructorRepo.NewMongoInstructorRepo()
	if err := availRepo.EnsureIndexes(); err != nil {
		logger.Sugar().Fatalf("main: failed to ensure availability indexes: %v", err)
	}
	if err := bkRepo.EnsureIndexes(); err != nil {
		logger.Sugar().Fatalf("main: failed to ensure booking indexes: %v", err)
	}

	// Shared components.
	cache := utils.NewCache(cacheClient)
	locker := utils.NewLockManager(lockClient)
	dispatcher := notification.NewAsynqDispatcher(queueClient, logger)
	enqueuer := cron.NewEnqueuer(queueClient)
	gateway := payment.NewStripeGateway(15 * time.Second)

	// Services.
	availabilityService := &availability.DefaultAvailabilityService{
		Repo:          availRepo,
		Cache:         cache,
		Logger:        logger,
		RetentionDays: config.AppConfig.AvailabilityRetentionDays,
	}

	arbiter := &booking.ConflictArbiter{
		AvailabilityRepo: availRepo,
		BookingRepo:      bkRepo,
		Logger:           logger,
	}

	bookingService := &booking.DefaultBookingService{
		Repo:                bkRepo,
		InstructorRepo:      instRepo,
		Arbiter:             arbiter,
		Dispatcher:          dispatcher,
		Tasks:               enqueuer,
		Locker:              locker,
		Logger:              logger,
		MinAdvanceNotice:    time.Duration(config.AppConfig.MinAdvanceNoticeHours) * time.Hour,
		AuthorizationWindow: config.AuthorizationWindow(),
		PlatformFeeRate:     config.AppConfig.PlatformFeeRate,
	}

	engine := &payment.WorkflowEngine{
		Repo:                bkRepo,
		Gateway:             gateway,
		Locker:              locker,
		Dispatcher:          dispatcher,
		Logger:              logger,
		AuthorizationWindow: config.AuthorizationWindow(),
		RetryDeadline:       config.RetryDeadline(),
		CaptureHold:         config.CaptureHold(),
		MaxAuthAttempts:     config.AppConfig.MaxAuthAttempts,
		BatchSize:           config.AppConfig.JobBatchSize,
	}

	refundService := &refund.DefaultRefundService{
		Repo:       bkRepo,
		Gateway:    gateway,
		Cache:      cache,
		Locker:     locker,
		Dispatcher: dispatcher,
		Logger:     logger,
	}

	// Background worker for the payment workflow and retention purge.
	worker := cron.NewWorker(engine, availabilityService, logger)
	worker.Run()
	defer worker.Shutdown()

	utils.StartHealthMonitor([]*redis.Client{cacheClient, lockClient}, database.MongoClient)

	// HTTP surface.
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(utils.ErrorHandler())
	router.Use(gin.Logger())

	routes.Register(
		router,
		handlers.NewBookingHandler(bookingService, logger),
		handlers.NewAvailabilityHandler(availabilityService, logger),
		handlers.NewRefundHandler(refundService, logger),
		handlers.NewPaymentHandler(engine, logger),
	)

	srv := &http.Server{
		Addr:    ":" + config.AppConfig.AppPort,
		Handler: router,
	}

	go func() {
		logger.Sugar().Infof("main: listening on :%s", config.AppConfig.AppPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Sugar().Fatalf("main: server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("main: shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Sugar().Errorf("main: forced shutdown: %v", err)
	}
}
