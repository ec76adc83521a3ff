package observability

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// FlushTelemetry flushes telemetry before process exit. When metricsPath is set the
// registry is written there first; the logger is synced last so write failures are logged.
func FlushTelemetry(ctx context.Context, logger *zap.Logger, metricsPath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	var metricsErr error
	if metricsPath != "" {
		metricsErr = WriteTextfile(metricsPath)
		if metricsErr != nil && logger != nil {
			logger.Warn("metrics textfile", zap.String("path", metricsPath), zap.Error(metricsErr))
		}
	}
	if logger != nil {
		if err := logger.Sync(); err != nil {
			return fmt.Errorf("flush logs: %w", err)
		}
	}
	return metricsErr
}
