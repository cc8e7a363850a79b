// Package telemetry wires OpenTelemetry traces, metrics and logs.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/contrib/bridges/otelzap"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/log/global"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.37.0"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const shutdownTimeout = 10 * time.Second

// Config selects the signals exported to the collector. All signals share
// one OTLP gRPC endpoint.
type Config struct {
	CollectorEndpoint string
	Insecure          bool
	ServiceName       string
	ServiceVersion    string
	Environment       string

	Traces        bool
	SamplingRatio float64

	Metrics         bool
	MetricsInterval time.Duration

	// Logs tees zap records into the collector through the otelzap bridge
	Logs bool
}

// Providers owns the SDK providers of the enabled signals. A disabled signal
// keeps the global no-op implementation.
type Providers struct {
	cfg    Config
	log    *zap.Logger
	traces *sdktrace.TracerProvider
	meters *sdkmetric.MeterProvider
	logs   *sdklog.LoggerProvider
}

// Setup starts the enabled providers and installs them globally. When one
// provider fails the ones already started are shut down again.
func Setup(ctx context.Context, cfg Config, log *zap.Logger) (*Providers, error) {
	p := &Providers{cfg: cfg, log: log}
	if !cfg.Traces && !cfg.Metrics && !cfg.Logs {
		log.Info("Telemetry disabled")
		return p, nil
	}

	res, err := newResource(cfg)
	if err != nil {
		return nil, err
	}

	if cfg.Traces {
		if err := p.startTraces(ctx, res); err != nil {
			return nil, p.abort(ctx, err)
		}
	}
	if cfg.Metrics {
		if err := p.startMetrics(ctx, res); err != nil {
			return nil, p.abort(ctx, err)
		}
	}
	if cfg.Logs {
		if err := p.startLogs(ctx, res); err != nil {
			return nil, p.abort(ctx, err)
		}
	}

	log.Info("Telemetry initialized",
		zap.String("collector_endpoint", cfg.CollectorEndpoint),
		zap.Bool("traces", cfg.Traces),
		zap.Bool("metrics", cfg.Metrics),
		zap.Bool("logs", cfg.Logs),
	)
	return p, nil
}

func (p *Providers) abort(ctx context.Context, cause error) error {
	return errors.Join(cause, p.Shutdown(ctx))
}

func (p *Providers) startTraces(ctx context.Context, res *resource.Resource) error {
	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(p.cfg.CollectorEndpoint)}
	if p.cfg.Insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}
	exporter, err := otlptracegrpc.New(ctx, opts...)
	if err != nil {
		return fmt.Errorf("create trace exporter: %w", err)
	}

	p.traces = sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(samplerFor(p.cfg.SamplingRatio)),
	)
	otel.SetTracerProvider(p.traces)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	return nil
}

func (p *Providers) startMetrics(ctx context.Context, res *resource.Resource) error {
	opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(p.cfg.CollectorEndpoint)}
	if p.cfg.Insecure {
		opts = append(opts, otlpmetricgrpc.WithInsecure())
	}
	exporter, err := otlpmetricgrpc.New(ctx, opts...)
	if err != nil {
		return fmt.Errorf("create metric exporter: %w", err)
	}

	interval := p.cfg.MetricsInterval
	if interval <= 0 {
		interval = time.Minute
	}
	p.meters = sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(interval))),
	)
	otel.SetMeterProvider(p.meters)
	return nil
}

func (p *Providers) startLogs(ctx context.Context, res *resource.Resource) error {
	opts := []otlploggrpc.Option{otlploggrpc.WithEndpoint(p.cfg.CollectorEndpoint)}
	if p.cfg.Insecure {
		opts = append(opts, otlploggrpc.WithInsecure())
	}
	exporter, err := otlploggrpc.New(ctx, opts...)
	if err != nil {
		return fmt.Errorf("create log exporter: %w", err)
	}

	p.logs = sdklog.NewLoggerProvider(
		sdklog.WithResource(res),
		sdklog.WithProcessor(sdklog.NewBatchProcessor(exporter)),
	)
	global.SetLoggerProvider(p.logs)
	return nil
}

// samplerFor maps a ratio to a parent-based sampler so spans started inside
// an incoming trace follow the caller's decision
func samplerFor(ratio float64) sdktrace.Sampler {
	switch {
	case ratio >= 1.0:
		return sdktrace.ParentBased(sdktrace.AlwaysSample())
	case ratio <= 0.0:
		return sdktrace.ParentBased(sdktrace.NeverSample())
	default:
		return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))
	}
}

func newResource(cfg Config) (*resource.Resource, error) {
	attrs := []attribute.KeyValue{semconv.ServiceName(cfg.ServiceName)}
	if cfg.ServiceVersion != "" {
		attrs = append(attrs, semconv.ServiceVersion(cfg.ServiceVersion))
	}
	if cfg.Environment != "" {
		attrs = append(attrs, attribute.String("deployment.environment.name", cfg.Environment))
	}
	res, err := resource.Merge(resource.Default(), resource.NewWithAttributes(semconv.SchemaURL, attrs...))
	if err != nil {
		return nil, fmt.Errorf("create telemetry resource: %w", err)
	}
	return res, nil
}

// Meter returns a named meter. Without metrics export it comes from the
// global provider, which is a no-op unless a test installed one.
func (p *Providers) Meter(name string, opts ...metric.MeterOption) metric.Meter {
	if p == nil || p.meters == nil {
		return otel.GetMeterProvider().Meter(name, opts...)
	}
	return p.meters.Meter(name, opts...)
}

// TracesEnabled reports whether spans are exported
func (p *Providers) TracesEnabled() bool {
	return p != nil && p.traces != nil
}

// LogsEnabled reports whether zap records are bridged to the collector
func (p *Providers) LogsEnabled() bool {
	return p != nil && p.logs != nil
}

// ZapCore returns a core that forwards records at or above level to the
// collector. Tee it with the stdout core through logger.New.
func (p *Providers) ZapCore(level zapcore.Level) zapcore.Core {
	if !p.LogsEnabled() {
		return zapcore.NewNopCore()
	}
	core := otelzap.NewCore(p.cfg.ServiceName, otelzap.WithLoggerProvider(p.logs))
	return &levelFilterCore{Core: core, minLevel: level}
}

// Shutdown flushes and stops every started provider. Errors of all
// providers are joined.
func (p *Providers) Shutdown(ctx context.Context) error {
	if p == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	var errs []error
	if p.traces != nil {
		if err := p.traces.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown tracer provider: %w", err))
		}
		p.traces = nil
	}
	if p.meters != nil {
		if err := p.meters.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown meter provider: %w", err))
		}
		p.meters = nil
	}
	if p.logs != nil {
		if err := p.logs.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown logger provider: %w", err))
		}
		p.logs = nil
	}
	return errors.Join(errs...)
}

// levelFilterCore drops records below minLevel before they reach the bridge
type levelFilterCore struct {
	zapcore.Core
	minLevel zapcore.Level
}

func (c *levelFilterCore) Enabled(lvl zapcore.Level) bool {
	return lvl >= c.minLevel && c.Core.Enabled(lvl)
}

func (c *levelFilterCore) Check(entry zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if !c.Enabled(entry.Level) {
		return ce
	}
	return c.Core.Check(entry, ce)
}

func (c *levelFilterCore) With(fields []zapcore.Field) zapcore.Core {
	return &levelFilterCore{Core: c.Core.With(fields), minLevel: c.minLevel}
}
