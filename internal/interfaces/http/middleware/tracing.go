// Package middleware provides the HTTP middleware of the delivery sync API.
package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// MaxRequestIDLength bounds caller-supplied request ids copied onto spans
const MaxRequestIDLength = 128

// TracingConfig holds configuration for the tracing middleware.
type TracingConfig struct {
	ServiceName string
	Enabled     bool
}

// TracingWithConfig returns OpenTelemetry tracing middleware. Span names
// follow "HTTP METHOD route_pattern" and carry the request id.
func TracingWithConfig(cfg TracingConfig) gin.HandlerFunc {
	if !cfg.Enabled {
		return func(c *gin.Context) {
			c.Next()
		}
	}

	return otelgin.Middleware(cfg.ServiceName)
}

// SpanAttributes copies the request and restaurant ids onto the active span.
// It belongs after RequestID and the auth chain.
func SpanAttributes() gin.HandlerFunc {
	return func(c *gin.Context) {
		span := trace.SpanFromContext(c.Request.Context())
		if span.IsRecording() {
			if requestID := c.GetString(RequestIDKey); requestID != "" {
				if len(requestID) > MaxRequestIDLength {
					requestID = requestID[:MaxRequestIDLength]
				}
				span.SetAttributes(attribute.String("request_id", requestID))
			}
			if restaurantID := GetRestaurantID(c); restaurantID != "" {
				span.SetAttributes(attribute.String("restaurant_id", restaurantID))
			}
			if userID := c.GetString(JWTUserIDKey); userID != "" {
				span.SetAttributes(attribute.String("user_id", userID))
			}
		}
		c.Next()
	}
}

// SpanErrorMarker marks spans of 4xx and 5xx responses with error status.
// It belongs after TracingWithConfig.
func SpanErrorMarker() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		span := trace.SpanFromContext(c.Request.Context())
		if !span.IsRecording() {
			return
		}

		status := c.Writer.Status()
		if status < http.StatusBadRequest {
			return
		}
		// otelgin overwrites the description after this returns
		span.SetStatus(codes.Error, http.StatusText(status))
		span.SetAttributes(
			attribute.Int("http.status_code", status),
			attribute.String("http.status_text", http.StatusText(status)),
		)
	}
}
