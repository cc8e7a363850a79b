package logger

import (
	"context"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Scope identifies who a request acts for. It travels on the context and is
// stamped on every entry logged through L.
type Scope struct {
	RequestID    string
	RestaurantID string
	UserID       string
	Platform     string
}

// merge overlays the non-empty fields of o
func (s Scope) merge(o Scope) Scope {
	if o.RequestID != "" {
		s.RequestID = o.RequestID
	}
	if o.RestaurantID != "" {
		s.RestaurantID = o.RestaurantID
	}
	if o.UserID != "" {
		s.UserID = o.UserID
	}
	if o.Platform != "" {
		s.Platform = o.Platform
	}
	return s
}

func (s Scope) fields() []zap.Field {
	fields := make([]zap.Field, 0, 4)
	if s.RequestID != "" {
		fields = append(fields, zap.String("request_id", s.RequestID))
	}
	if s.RestaurantID != "" {
		fields = append(fields, zap.String("restaurant_id", s.RestaurantID))
	}
	if s.UserID != "" {
		fields = append(fields, zap.String("user_id", s.UserID))
	}
	if s.Platform != "" {
		fields = append(fields, zap.String("platform", s.Platform))
	}
	return fields
}

type ctxKey int

const (
	loggerKey ctxKey = iota
	scopeKey
)

// WithContext returns a new context with the logger attached
func WithContext(ctx context.Context, log *zap.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, log)
}

// FromContext retrieves the logger from context, or a no-op logger
func FromContext(ctx context.Context) *zap.Logger {
	if log, ok := ctx.Value(loggerKey).(*zap.Logger); ok {
		return log
	}
	return zap.NewNop()
}

// HasLogger reports whether ctx carries a logger
func HasLogger(ctx context.Context) bool {
	_, ok := ctx.Value(loggerKey).(*zap.Logger)
	return ok
}

// ScopeFrom returns the scope carried by ctx
func ScopeFrom(ctx context.Context) Scope {
	s, _ := ctx.Value(scopeKey).(Scope)
	return s
}

// WithScope merges the non-empty fields of s into the scope of ctx
func WithScope(ctx context.Context, s Scope) context.Context {
	return context.WithValue(ctx, scopeKey, ScopeFrom(ctx).merge(s))
}

// WithRequestID sets the request ID of the scope
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return WithScope(ctx, Scope{RequestID: requestID})
}

// WithRestaurantID sets the restaurant of the scope
func WithRestaurantID(ctx context.Context, restaurantID string) context.Context {
	return WithScope(ctx, Scope{RestaurantID: restaurantID})
}

// WithPlatform sets the delivery platform of the scope
func WithPlatform(ctx context.Context, platform string) context.Context {
	return WithScope(ctx, Scope{Platform: platform})
}

// GetRequestID retrieves the request ID from context
func GetRequestID(ctx context.Context) string {
	return ScopeFrom(ctx).RequestID
}

// GetRestaurantID retrieves the restaurant ID from context
func GetRestaurantID(ctx context.Context) string {
	return ScopeFrom(ctx).RestaurantID
}

// GetTraceID returns the trace ID of the span in ctx, or ""
func GetTraceID(ctx context.Context) string {
	spanCtx := trace.SpanContextFromContext(ctx)
	if !spanCtx.IsValid() {
		return ""
	}
	return spanCtx.TraceID().String()
}

// L returns the context logger stamped with the trace, span and scope of ctx.
//
//	logger.L(ctx).Info("Sync finished", zap.Int("items_synced", n))
func L(ctx context.Context) *zap.Logger {
	return stamp(ctx, FromContext(ctx))
}

// LOr is L for code that also runs outside requests, such as cron jobs. It
// stamps fallback when ctx carries no logger.
func LOr(ctx context.Context, fallback *zap.Logger) *zap.Logger {
	if HasLogger(ctx) {
		return L(ctx)
	}
	if fallback == nil {
		fallback = zap.NewNop()
	}
	return stamp(ctx, fallback)
}

func stamp(ctx context.Context, log *zap.Logger) *zap.Logger {
	fields := ScopeFrom(ctx).fields()
	if spanCtx := trace.SpanContextFromContext(ctx); spanCtx.IsValid() {
		fields = append(fields,
			zap.String("trace_id", spanCtx.TraceID().String()),
			zap.String("span_id", spanCtx.SpanID().String()),
		)
	}
	if len(fields) == 0 {
		return log
	}
	return log.With(fields...)
}
