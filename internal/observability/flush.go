package observability

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// FlushTelemetry exports pending spans and syncs the logger before process exit.
// shutdownTracing may be nil when tracing is disabled. Prometheus is pull-based and needs no flush.
func FlushTelemetry(ctx context.Context, logger *zap.Logger, shutdownTracing func(context.Context) error) error {
	var errs []error
	if shutdownTracing != nil {
		if err := shutdownTracing(ctx); err != nil {
			errs = append(errs, fmt.Errorf("flush traces: %w", err))
		}
	}
	if logger != nil {
		if err := logger.Sync(); err != nil {
			errs = append(errs, fmt.Errorf("flush logs: %w", err))
		}
	}
	return errors.Join(errs...)
}
