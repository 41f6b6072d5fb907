package observability

import (
	"context"
	"os"
	"runtime"
	"strings"
	"sync/atomic"

	"github.com/samber/lo"
	"github.com/shirou/gopsutil/v3/process"
	otelruntime "go.opentelemetry.io/contrib/instrumentation/runtime"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	StressStatsName = "xavl/stress"
)

// StressStats records the randomized tree runs. All the methods are nil
// safe, a run without metrics passes a nil *StressStats.
type StressStats struct {
	roundCounter     atomic.Int64
	violationCounter atomic.Int64
	rounds           metric.Int64Counter
	inserts          metric.Int64Counter
	removes          metric.Int64Counter
	lookups          metric.Int64Counter
	violations       metric.Int64Counter
	treeHeights      metric.Int64Histogram
	violationRatio   metric.Float64ObservableGauge
	goroutines       metric.Int64ObservableGauge
	rss              metric.Int64ObservableGauge
}

func (stats *StressStats) RecordRound(ctx context.Context, worker int, inserts, removes int64) {
	if stats == nil {
		return
	}
	stats.roundCounter.Add(1)
	stats.rounds.Add(ctx, 1, metric.WithAttributes(attribute.Int("xavl.stress.worker", worker)))
	stats.inserts.Add(ctx, inserts)
	stats.removes.Add(ctx, removes)
}

func (stats *StressStats) RecordLookups(ctx context.Context, count int64) {
	if stats == nil || count <= 0 {
		return
	}
	stats.lookups.Add(ctx, count)
}

func (stats *StressStats) RecordTreeHeight(ctx context.Context, height int) {
	if stats == nil {
		return
	}
	stats.treeHeights.Record(ctx, int64(height))
}

func (stats *StressStats) RecordViolation(ctx context.Context, kind string) {
	if stats == nil {
		return
	}
	stats.violationCounter.Add(1)
	stats.violations.Add(ctx, 1, metric.WithAttributes(attribute.String("xavl.stress.violation", kind)))
}

func meterName(name string) string {
	builder := &strings.Builder{}
	builder.WriteString(StressStatsName)
	builder.WriteString("/")
	if len(strings.TrimSpace(name)) > 0 {
		builder.WriteString(name)
	} else {
		builder.WriteString("default")
	}
	return builder.String()
}

// NewStressStats registers the instruments on the global meter provider.
func NewStressStats(name string) *StressStats {
	return NewStressStatsWithMeter(otel.Meter(
		meterName(name),
		metric.WithInstrumentationVersion(otelruntime.Version()),
	))
}

func NewStressStatsWithMeter(meter metric.Meter) *StressStats {
	proc := lo.Must[*process.Process](process.NewProcess(int32(os.Getpid())))
	stats := &StressStats{
		rounds: lo.Must[metric.Int64Counter](meter.Int64Counter(
			"xavl.stress.rounds",
			metric.WithDescription("The number of insert and remove rounds."),
		)),
		inserts: lo.Must[metric.Int64Counter](meter.Int64Counter(
			"xavl.stress.inserts",
			metric.WithDescription("The number of inserted nodes."),
		)),
		removes: lo.Must[metric.Int64Counter](meter.Int64Counter(
			"xavl.stress.removes",
			metric.WithDescription("The number of removed nodes."),
		)),
		lookups: lo.Must[metric.Int64Counter](meter.Int64Counter(
			"xavl.stress.lookups",
			metric.WithDescription("The number of lookups."),
		)),
		violations: lo.Must[metric.Int64Counter](meter.Int64Counter(
			"xavl.stress.violations",
			metric.WithDescription("The number of avltree rule violations."),
		)),
		treeHeights: lo.Must[metric.Int64Histogram](meter.Int64Histogram(
			"xavl.stress.tree.height",
			metric.WithDescription("The height of the full tree in each round."),
			metric.WithExplicitBucketBoundaries(1, 2, 3, 4, 5, 6, 7, 8, 10, 12, 16, 24, 32),
		)),
	}
	stats.violationRatio = lo.Must[metric.Float64ObservableGauge](meter.Float64ObservableGauge(
		"xavl.stress.violation.ratio",
		metric.WithDescription("The violations per round."),
		metric.WithFloat64Callback(func(ctx context.Context, ob metric.Float64Observer) error {
			ratio := 0.0
			if rounds := stats.roundCounter.Load(); rounds > 0 {
				ratio = float64(stats.violationCounter.Load()) / float64(rounds)
			}
			ob.Observe(ratio)
			return nil
		}),
	))
	stats.goroutines = lo.Must[metric.Int64ObservableGauge](meter.Int64ObservableGauge(
		"xavl.process.goroutines",
		metric.WithDescription("The application goroutines' info."),
		metric.WithInt64Callback(func(ctx context.Context, ob metric.Int64Observer) error {
			ob.Observe(int64(runtime.NumGoroutine()))
			return nil
		}),
	))
	stats.rss = lo.Must[metric.Int64ObservableGauge](meter.Int64ObservableGauge(
		"xavl.process.rss",
		metric.WithDescription("The resident set size of the process."),
		metric.WithUnit("By"),
		metric.WithInt64Callback(func(ctx context.Context, ob metric.Int64Observer) error {
			mem, err := proc.MemoryInfoWithContext(ctx)
			if err != nil {
				return err
			}
			ob.Observe(int64(mem.RSS))
			return nil
		}),
	))
	return stats
}

// StartRuntimeStats starts the go runtime instrumentation on the global
// meter provider.
func StartRuntimeStats() error {
	return otelruntime.Start(otelruntime.WithMeterProvider(otel.GetMeterProvider()))
}
