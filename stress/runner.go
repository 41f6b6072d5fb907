package stress

import (
	"context"
	"errors"
	"fmt"
	randv2 "math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	antsv2 "github.com/panjf2000/ants/v2"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/benz9527/xavl/lib/infra"
	"github.com/benz9527/xavl/observability"
	"github.com/benz9527/xavl/xlog"
)

const (
	CtxRunID  = "runID"
	CtxWorker = "worker"
)

// Runner spreads the rounds over independent trees, one per worker.
// A tree is never shared, each worker owns its arena and its root.
type Runner struct {
	cfg    *Config
	logger xlog.XLogger
	stats  *observability.StressStats
	pool   *antsv2.Pool
	store  *ReportStore
}

// NewRunner stats and store are optional.
func NewRunner(cfg *Config, logger xlog.XLogger, stats *observability.StressStats, store *ReportStore) (*Runner, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	pool, err := antsv2.NewPool(cfg.Workers,
		antsv2.WithLogger(xlog.NewAntsXLogger(logger)),
		antsv2.WithPreAlloc(true),
	)
	if err != nil {
		return nil, infra.WrapErrorStack(err, "[stress] new worker pool")
	}
	return &Runner{
		cfg:    cfg,
		logger: logger.Named("stress"),
		stats:  stats,
		pool:   pool,
		store:  store,
	}, nil
}

func (r *Runner) Release() {
	r.pool.Release()
}

type runTotals struct {
	rounds    atomic.Int64
	inserts   atomic.Int64
	removes   atomic.Int64
	lookups   atomic.Int64
	maxHeight atomic.Int64
}

func (t *runTotals) add(stats RoundStats) {
	t.rounds.Add(1)
	t.inserts.Add(stats.Inserts)
	t.removes.Add(stats.Removes)
	t.lookups.Add(stats.Lookups)
	for h := int64(stats.MaxHeight); ; {
		prev := t.maxHeight.Load()
		if h <= prev || t.maxHeight.CompareAndSwap(prev, h) {
			break
		}
	}
}

// Run blocks until every round is done, the first violation is found or
// ctx is done. The report is saved whatever the outcome, the returned
// error holds the violations.
func (r *Runner) Run(ctx context.Context) (*RunReport, error) {
	report := newRunReport(r.cfg)
	ctx = context.WithValue(ctx, xlog.ContextKey(CtxRunID), report.ID)
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	r.logger.InfoContext(ctx, "stress run start",
		zap.Int64("seed", r.cfg.Seed),
		zap.Int("workers", r.cfg.Workers),
		zap.Int64("iterations", r.cfg.Iterations),
		zap.Int("maxNodes", r.cfg.MaxNodes),
		zap.Bool("verify", r.cfg.Verify),
	)

	var (
		begin   = time.Now()
		totals  = &runTotals{}
		done    = &atomic.Int64{}
		lock    = sync.Mutex{}
		merr    error
		wg      = sync.WaitGroup{}
		workers = r.cfg.Workers
	)
	if int64(workers) > r.cfg.Iterations {
		workers = int(r.cfg.Iterations)
	}
	for w := 0; w < workers; w++ {
		from := r.cfg.Iterations * int64(w) / int64(workers)
		to := r.cfg.Iterations * int64(w+1) / int64(workers)
		worker := w
		wg.Add(1)
		err := r.pool.Submit(func() {
			defer wg.Done()
			wctx := context.WithValue(runCtx, xlog.ContextKey(CtxWorker), worker)
			if err := r.work(wctx, worker, to-from, totals, done); err != nil {
				lock.Lock()
				merr = multierr.Append(merr, err)
				lock.Unlock()
				cancel()
			}
		})
		if err != nil {
			wg.Done()
			lock.Lock()
			merr = multierr.Append(merr, infra.WrapErrorStack(err, "[stress] submit worker"))
			lock.Unlock()
			cancel()
			break
		}
	}
	wg.Wait()

	report.Rounds = totals.rounds.Load()
	report.Inserts = totals.inserts.Load()
	report.Removes = totals.removes.Load()
	report.Lookups = totals.lookups.Load()
	report.MaxHeight = int(totals.maxHeight.Load())
	report.Duration = time.Since(begin)
	switch {
	case merr != nil:
		report.Status = RunFailed
		report.Error = merr.Error()
	case ctx.Err() != nil:
		report.Status = RunCancelled
		report.Error = ctx.Err().Error()
		merr = ctx.Err()
	default:
	}

	fields := []zap.Field{
		zap.String("status", string(report.Status)),
		zap.Int64("rounds", report.Rounds),
		zap.Int64("inserts", report.Inserts),
		zap.Int64("lookups", report.Lookups),
		zap.Int("maxHeight", report.MaxHeight),
		zap.Duration("elapsed", report.Duration),
	}
	if report.Status == RunFailed {
		for _, err := range multierr.Errors(merr) {
			r.logger.ErrorStack(err, "stress run violation", zap.String(CtxRunID, report.ID))
		}
		r.logger.ErrorContext(ctx, merr, "stress run failed", fields...)
	} else {
		r.logger.InfoContext(ctx, "stress run done", fields...)
	}

	// Keep the report of a cancelled run too.
	if err := r.store.Save(context.WithoutCancel(ctx), report); err != nil {
		r.logger.ErrorStack(err, "stress run report dropped", zap.String(CtxRunID, report.ID))
	}
	return report, merr
}

func (r *Runner) work(ctx context.Context, worker int, iterations int64, totals *runTotals, done *atomic.Int64) error {
	rng := randv2.New(randv2.NewPCG(uint64(r.cfg.Seed), uint64(worker)))
	data := make([]int, r.cfg.MaxNodes)
	for i := range data {
		data[i] = i
	}
	round := NewRound(rng, NewArena(r.cfg.MaxNodes), r.cfg.Verify)

	for i := int64(0); i < iterations; i++ {
		if ctx.Err() != nil {
			return nil
		}
		if n := done.Add(1) - 1; r.cfg.ProgressEvery > 0 && n%r.cfg.ProgressEvery == 0 {
			r.logger.InfoContext(ctx, "stress progress",
				zap.String("iteration", fmt.Sprintf("%d/%d", n, r.cfg.Iterations)),
			)
		}

		stats, err := round.Run(data, rng.IntN(r.cfg.MaxNodes))
		totals.add(stats)
		r.stats.RecordRound(ctx, worker, stats.Inserts, stats.Removes)
		r.stats.RecordLookups(ctx, stats.Lookups)
		r.stats.RecordTreeHeight(ctx, stats.MaxHeight)
		if err != nil {
			var v *Violation
			if errors.As(err, &v) {
				r.stats.RecordViolation(ctx, string(v.Kind))
			}
			return fmt.Errorf("worker %d round %d seed %d: %w", worker, i, r.cfg.Seed, err)
		}
		r.shuffle(rng, data)
	}
	return nil
}

func (r *Runner) shuffle(rng *randv2.Rand, data []int) {
	rng.Shuffle(len(data), func(i, j int) {
		data[i], data[j] = data[j], data[i]
	})
}
