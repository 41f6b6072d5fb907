package observability

// https://opentelemetry.io/docs/languages/go/exporters/

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/zap"

	"github.com/benz9527/xavl/lib/infra"
	"github.com/benz9527/xavl/xlog"
)

type MetricsExporterType string

const (
	NoneExporter       MetricsExporterType = "none"
	ConsoleExporter    MetricsExporterType = "console"
	PrometheusExporter MetricsExporterType = "prometheus"
)

// ParseMetricsExporter maps the configured exporter name, none by default.
func ParseMetricsExporter(name string) (MetricsExporterType, error) {
	switch typ := MetricsExporterType(strings.ToLower(strings.TrimSpace(name))); typ {
	case "", NoneExporter:
		return NoneExporter, nil
	case ConsoleExporter, PrometheusExporter:
		return typ, nil
	default:
	}
	return NoneExporter, infra.NewErrorStack("unknown metrics exporter " + name)
}

type ExporterConfig struct {
	Type     MetricsExporterType
	Interval time.Duration
	Timeout  time.Duration
	// Address serves the prometheus scrape endpoint.
	Address string
	// Logger reports a scrape endpoint that stopped serving, optional.
	Logger xlog.XLogger
}

// InitMetricsExporter installs the global meter provider. The returned
// callback flushes and shuts the exporter down.
func InitMetricsExporter(cfg ExporterConfig) (func(ctx context.Context) error, error) {
	switch cfg.Type {
	case ConsoleExporter:
		if cfg.Interval <= 0 {
			cfg.Interval = 10 * time.Second
		}
		if cfg.Timeout <= 0 {
			cfg.Timeout = cfg.Interval
		}
		return newConsoleMetricsExporter(cfg.Interval, cfg.Timeout)
	case PrometheusExporter:
		return newPrometheusMetricsExporter(cfg.Address, cfg.Logger)
	default:
	}
	return func(context.Context) error { return nil }, nil
}

// Serves for test/dev environment.
func newConsoleMetricsExporter(interval, timeout time.Duration, opts ...stdoutmetric.Option) (func(ctx context.Context) error, error) {
	exporter, err := stdoutmetric.New(opts...)
	if err != nil {
		return nil, err
	}
	mp := metric.NewMeterProvider(metric.WithReader(metric.NewPeriodicReader(
		exporter,
		metric.WithInterval(interval),
		metric.WithTimeout(timeout),
	)))
	callback := mp.Shutdown
	otel.SetMeterProvider(mp)
	return callback, nil
}

// Serves for the product environment and fetch stats metrics by HTTP.
func newPrometheusMetricsExporter(addr string, logger xlog.XLogger) (func(ctx context.Context) error, error) {
	exporter, err := prometheus.New()
	if err != nil {
		return nil, err
	}
	mp := metric.NewMeterProvider(metric.WithReader(exporter))
	otel.SetMeterProvider(mp)
	if len(addr) == 0 {
		return mp.Shutdown, nil
	}

	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, errors.Join(err, mp.Shutdown(context.Background()))
	}
	stop := serveMetrics(lis, logger)
	return func(ctx context.Context) error {
		return errors.Join(stop(ctx), mp.Shutdown(ctx))
	}, nil
}

// serveMetrics serves /metrics on lis until the returned callback is
// called. The callback returns the serve error, if any, other than the
// server being closed.
func serveMetrics(lis net.Listener, logger xlog.XLogger) func(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	served := make(chan error, 1)
	go func() {
		err := srv.Serve(lis)
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		if err != nil && logger != nil {
			logger.Error(err, "metrics endpoint stopped", zap.String("address", lis.Addr().String()))
		}
		served <- err
	}()
	return func(ctx context.Context) error {
		err := srv.Shutdown(ctx)
		select {
		case serveErr := <-served:
			return errors.Join(serveErr, err)
		case <-ctx.Done():
			return errors.Join(err, ctx.Err())
		}
	}
}
