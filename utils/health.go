package utils

import (
	"context"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// HealthStatus is the latest probe result for the service's backing stores.
type HealthStatus struct {
	Mongo     bool      `json:"mongo"`
	Redis     []bool    `json:"redis"`
	Healthy   bool      `json:"healthy"`
	CheckedAt time.Time `json:"checkedAt"`
}

var (
	healthMu      sync.RWMutex
	currentHealth HealthStatus
)

// GetHealthStatus returns the latest stored health snapshot.
func GetHealthStatus() HealthStatus {
	healthMu.RLock()
	defer healthMu.RUnlock()
	return currentHealth
}

// StartHealthMonitor probes the backing stores immediately and then once a
// minute, keeping an in-memory snapshot for the health endpoint. Transitions
// are logged; steady state is not.
func StartHealthMonitor(redisClients []*redis.Client, mongoClient *mongo.Client) {
	probe := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		status := HealthStatus{Healthy: true, CheckedAt: time.Now().UTC()}
		for _, client := range redisClients {
			ok := client.Ping(ctx).Err() == nil
			status.Redis = append(status.Redis, ok)
			status.Healthy = status.Healthy && ok
		}
		status.Mongo = mongoClient.Ping(ctx, nil) == nil
		status.Healthy = status.Healthy && status.Mongo

		healthMu.Lock()
		changed := currentHealth.Healthy != status.Healthy && !currentHealth.CheckedAt.IsZero()
		currentHealth = status
		healthMu.Unlock()

		if changed {
			GetLogger().Warn("backing store health changed",
				zap.Bool("healthy", status.Healthy),
				zap.Bool("mongo", status.Mongo),
				zap.Bools("redis", status.Redis),
			)
		}
	}

	go func() {
		probe()
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for range ticker.C {
			probe()
		}
	}()
}
