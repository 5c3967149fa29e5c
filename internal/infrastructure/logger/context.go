package logger

import (
	"context"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type contextKey string

const (
	loggerKey      contextKey = "logger"
	userIDKey      contextKey = "user_id"
	operationIDKey contextKey = "operation_id"
)

// WithContext returns a new context with the logger attached
func WithContext(ctx context.Context, logger *zap.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// FromContext returns the logger attached to ctx, or a no-op logger.
// The result carries the actor, operation and trace ids found in ctx.
func FromContext(ctx context.Context) *zap.Logger {
	logger, ok := ctx.Value(loggerKey).(*zap.Logger)
	if !ok || logger == nil {
		return zap.NewNop()
	}
	return WithTraceContext(ctx, logger)
}

// WithUserID attaches the acting user to ctx and to the context logger
func WithUserID(ctx context.Context, userID string) context.Context {
	ctx = context.WithValue(ctx, userIDKey, userID)
	if logger, ok := ctx.Value(loggerKey).(*zap.Logger); ok {
		ctx = WithContext(ctx, logger.With(zap.String("user_id", userID)))
	}
	return ctx
}

// GetUserID returns the acting user attached to ctx
func GetUserID(ctx context.Context) string {
	userID, _ := ctx.Value(userIDKey).(string)
	return userID
}

// WithOperationID tags ctx with an id shared by every log line of one operation (a sweep run, a command)
func WithOperationID(ctx context.Context, operationID string) context.Context {
	ctx = context.WithValue(ctx, operationIDKey, operationID)
	if logger, ok := ctx.Value(loggerKey).(*zap.Logger); ok {
		ctx = WithContext(ctx, logger.With(zap.String("operation_id", operationID)))
	}
	return ctx
}

// GetOperationID returns the operation id attached to ctx
func GetOperationID(ctx context.Context) string {
	id, _ := ctx.Value(operationIDKey).(string)
	return id
}

// WithTraceContext adds trace_id and span_id from the span in ctx.
// Without a valid span the logger is returned unchanged.
func WithTraceContext(ctx context.Context, logger *zap.Logger) *zap.Logger {
	spanCtx := trace.SpanContextFromContext(ctx)
	if !spanCtx.IsValid() {
		return logger
	}
	return logger.With(
		zap.String("trace_id", spanCtx.TraceID().String()),
		zap.String("span_id", spanCtx.SpanID().String()),
	)
}

// ContextActorResolver reads the actor from the context user id.
// Operations without a user are attributed to Fallback.
type ContextActorResolver struct {
	Fallback string
}

// ActorID implements shared.ActorResolver
func (r ContextActorResolver) ActorID(ctx context.Context) string {
	if userID := GetUserID(ctx); userID != "" {
		return userID
	}
	return r.Fallback
}
