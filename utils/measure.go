// File: utils/measure.go
package utils

import (
	"time"

	"go.uber.org/zap"
)

// Measure times fn and logs its duration and outcome under name. It is
// applied explicitly at call sites (scheduler jobs, gateway calls) instead of
// wrapping service methods behind interception.
func Measure(logger *zap.Logger, name string, fn func() error) error {
	start := time.Now()
	err := fn()
	elapsed := time.Since(start)
	if err != nil {
		logger.Warn("operation failed",
			zap.String("op", name),
			zap.Duration("elapsed", elapsed),
			zap.Error(err),
		)
		return err
	}
	logger.Info("operation completed",
		zap.String("op", name),
		zap.Duration("elapsed", elapsed),
	)
	return nil
}
