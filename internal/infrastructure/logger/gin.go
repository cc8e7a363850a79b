package logger

import (
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ginOptions configures GinMiddleware
type ginOptions struct {
	quietPaths map[string]struct{}
}

// GinOption configures GinMiddleware
type GinOption func(*ginOptions)

// WithQuietPaths logs successful requests to paths at debug level. Probes
// such as /health would otherwise drown the access log.
func WithQuietPaths(paths ...string) GinOption {
	return func(o *ginOptions) {
		for _, p := range paths {
			o.quietPaths[p] = struct{}{}
		}
	}
}

// GinMiddleware attaches log to the request context, scoped by the request
// ID set by the request ID middleware, and writes one access entry per
// request. Entries carry the route template, so IDs in paths are not logged.
func GinMiddleware(log *zap.Logger, opts ...GinOption) gin.HandlerFunc {
	o := ginOptions{quietPaths: map[string]struct{}{}}
	for _, opt := range opts {
		opt(&o)
	}

	return func(c *gin.Context) {
		start := time.Now()

		ctx := WithContext(c.Request.Context(), log)
		if requestID := c.GetString("request_id"); requestID != "" {
			ctx = WithRequestID(ctx, requestID)
		}
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		status := c.Writer.Status()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}

		level := zapcore.InfoLevel
		switch {
		case status >= http.StatusInternalServerError:
			level = zapcore.ErrorLevel
		case status >= http.StatusBadRequest:
			level = zapcore.WarnLevel
		default:
			if _, quiet := o.quietPaths[c.Request.URL.Path]; quiet {
				level = zapcore.DebugLevel
			}
		}

		// the auth chain adds the restaurant to the scope after this
		// middleware ran, so stamp from the final request context
		entry := L(c.Request.Context())
		ce := entry.Check(level, "HTTP request")
		if ce == nil {
			return
		}
		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("route", route),
			zap.Int("status", status),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
			zap.Int("body_size", c.Writer.Size()),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.Strings("errors", c.Errors.Errors()))
		}
		ce.Write(fields...)
	}
}

// Recovery turns a handler panic into a bare 500 and logs it with the stack.
// Broken client connections are left to gin.
func Recovery(log *zap.Logger) gin.HandlerFunc {
	return gin.CustomRecoveryWithWriter(io.Discard, func(c *gin.Context, recovered any) {
		LOr(c.Request.Context(), log).Error("Panic recovered",
			zap.String("method", c.Request.Method),
			zap.String("route", c.FullPath()),
			zap.Any("error", recovered),
			zap.Stack("stacktrace"),
		)
		c.AbortWithStatus(http.StatusInternalServerError)
	})
}

// FromGin returns the request-scoped logger of c
func FromGin(c *gin.Context) *zap.Logger {
	return L(c.Request.Context())
}
