package main

import (
	"context"
	"errors"
	"fmt"
	"runtime"

	"go.uber.org/automaxprocs/maxprocs"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	glogger "gorm.io/gorm/logger"

	"github.com/benz9527/xavl/observability"
	"github.com/benz9527/xavl/stress"
	"github.com/benz9527/xavl/xlog"
)

type banner struct{}

func (banner) JSON() string {
	return fmt.Sprintf(`{"app":"avlstress","version":%q,"commit":%q}`, Version, Commit)
}

func (banner) PlainText() string {
	return fmt.Sprintf("avlstress %s (%s)", Version, Commit)
}

func newLogger(lc fx.Lifecycle, cfg *stress.Config) xlog.XLogger {
	logger := xlog.NewXLogger(
		xlog.WithXLoggerLevel(xlog.ParseLogLevel(cfg.Logging.Level)),
		xlog.WithXLoggerEncoder(xlog.ParseLogEncoder(cfg.Logging.Format)),
		xlog.WithXLoggerContextFieldExtract(stress.CtxRunID),
		xlog.WithXLoggerContextFieldExtract(stress.CtxWorker),
	)
	logger.Banner(banner{})
	lc.Append(fx.StopHook(func() {
		_ = logger.Sync()
	}))
	return logger
}

// newStats is nil without an exporter.
func newStats(lc fx.Lifecycle, cfg *stress.Config, logger xlog.XLogger) (*observability.StressStats, error) {
	typ, err := observability.ParseMetricsExporter(cfg.Metrics.Exporter)
	if err != nil {
		return nil, err
	}
	if typ == observability.NoneExporter {
		return nil, nil
	}
	shutdown, err := observability.InitMetricsExporter(observability.ExporterConfig{
		Type:     typ,
		Interval: cfg.Metrics.Interval,
		Address:  cfg.Metrics.Address,
		Logger:   logger,
	})
	if err != nil {
		return nil, err
	}
	if err = observability.StartRuntimeStats(); err != nil {
		return nil, errors.Join(err, shutdown(context.Background()))
	}
	lc.Append(fx.StopHook(shutdown))
	logger.Info("metrics exporter started",
		zap.String("exporter", string(typ)),
		zap.String("address", cfg.Metrics.Address),
	)
	return observability.NewStressStats("avlstress"), nil
}

// newReportStore is nil without a report db.
func newReportStore(lc fx.Lifecycle, cfg *stress.Config, logger xlog.XLogger) (*stress.ReportStore, error) {
	if len(cfg.ReportDB) == 0 {
		return nil, nil
	}
	store, err := stress.OpenReportStore(cfg.ReportDB, xlog.NewGormXLogger(logger,
		xlog.WithGormXLoggerLogLevel(glogger.Warn),
		xlog.WithGormXLoggerIgnoreRecord404Err(),
	))
	if err != nil {
		return nil, err
	}
	lc.Append(fx.StopHook(store.Close))
	return store, nil
}

func newRunner(
	lc fx.Lifecycle,
	cfg *stress.Config,
	logger xlog.XLogger,
	stats *observability.StressStats,
	store *stress.ReportStore,
) (*stress.Runner, error) {
	undo, err := maxprocs.Set(maxprocs.Logger(func(format string, args ...any) {
		logger.Logf(zapcore.InfoLevel, format, args...)
	}))
	if err != nil {
		logger.Warn("GOMAXPROCS left unchanged", zap.Error(err))
	}
	runner, err := stress.NewRunner(cfg, logger, stats, store)
	if err != nil {
		undo()
		return nil, err
	}
	lc.Append(fx.StopHook(undo))
	lc.Append(fx.StopHook(runner.Release))
	logger.Info("runner ready",
		zap.Int("gomaxprocs", runtime.GOMAXPROCS(0)),
		zap.Int("workers", cfg.Workers),
	)
	return runner, nil
}

func newApp(cfg *stress.Config, runner **stress.Runner) *fx.App {
	return fx.New(
		fx.Supply(cfg),
		fx.Provide(
			newLogger,
			newStats,
			newReportStore,
			newRunner,
		),
		fx.WithLogger(func(logger xlog.XLogger) fxevent.Logger {
			return xlog.NewFxXLogger(logger)
		}),
		fx.Populate(runner),
	)
}

// runStress starts the app, runs the rounds and stops the app. The error
// holds the violations, the stop errors are joined.
func runStress(ctx context.Context, cfg *stress.Config) (*stress.RunReport, error) {
	var runner *stress.Runner
	app := newApp(cfg, &runner)
	if err := app.Start(ctx); err != nil {
		return nil, err
	}
	report, runErr := runner.Run(ctx)
	stopErr := app.Stop(context.WithoutCancel(ctx))
	return report, errors.Join(runErr, stopErr)
}
