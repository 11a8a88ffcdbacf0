package application

import (
	"context"
	"errors"
	"log/slog"

	"github.com/example/erp-automation/internal/logging"
)

func defaultLogger(logger *slog.Logger) *slog.Logger {
	if logger != nil {
		return logger
	}
	return slog.Default()
}

// serviceLogger prefers the request logger carried by ctx over base and
// tags it with the service, the operation and attrs.
func serviceLogger(ctx context.Context, base *slog.Logger, service, operation string, attrs ...any) *slog.Logger {
	logger := logging.FromContext(ctx)
	if logger == nil {
		logger = defaultLogger(base)
	}

	args := make([]any, 0, 4+len(attrs))
	args = append(args, "service", service)
	if operation != "" {
		args = append(args, "operation", operation)
	}
	return logger.With(append(args, attrs...)...)
}

// ErrorKind maps sentinel and validation errors to a stable logging label.
// Job runs cut short by their deadline report "timeout".
func ErrorKind(err error) string {
	var (
		rowErr *BatchRowError
		vErr   *ValidationError
	)
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrAlreadyExists):
		return "already_exists"
	case errors.Is(err, ErrTransient):
		return "transient"
	case errors.As(err, &rowErr):
		return "batch_row"
	case errors.As(err, &vErr):
		return "validation"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "unexpected"
	}
}
