package http

import (
	"context"
	"log/slog"

	chimw "github.com/go-chi/chi/v5/middleware"
)

func defaultLogger(logger *slog.Logger) *slog.Logger {
	if logger != nil {
		return logger
	}
	return slog.Default()
}

// handlerLogger prefers the request logger installed by RequestLogger. When a
// handler runs without it, the request id is attached here instead.
func handlerLogger(ctx context.Context, fallback *slog.Logger, handlerName, operation string, attrs ...any) *slog.Logger {
	logger := LoggerFromContext(ctx)
	pairs := []any{"handler", handlerName}
	if logger == nil {
		logger = defaultLogger(fallback)
		if id := chimw.GetReqID(ctx); id != "" {
			pairs = append(pairs, "request_id", id)
		}
	}

	if operation != "" {
		pairs = append(pairs, "operation", operation)
	}
	if len(attrs) > 0 {
		pairs = append(pairs, attrs...)
	}
	return logger.With(pairs...)
}
