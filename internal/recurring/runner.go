package recurring

import (
	"context"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"
)

// Sweeper materializes due rules for every user.
type Sweeper interface {
	SweepAll(ctx context.Context) (RunResult, error)
}

// RunnerConfig controls the background sweep schedule.
type RunnerConfig struct {
	JitterMin time.Duration
	JitterMax time.Duration
	// Interval between sweeps after the first one. Zero runs a single sweep.
	Interval time.Duration
}

// Runner sweeps once after a random startup delay and then periodically.
type Runner struct {
	sweeper Sweeper
	cfg     RunnerConfig
	log     *zap.SugaredLogger
	jitter  func(lo, hi time.Duration) time.Duration
}

// NewRunner creates a Runner.
func NewRunner(sweeper Sweeper, cfg RunnerConfig, log *zap.SugaredLogger) *Runner {
	if cfg.JitterMax < cfg.JitterMin {
		cfg.JitterMax = cfg.JitterMin
	}
	return &Runner{sweeper: sweeper, cfg: cfg, log: log, jitter: randomJitter}
}

func randomJitter(lo, hi time.Duration) time.Duration {
	if hi <= lo {
		return lo
	}
	return lo + rand.N(hi-lo)
}

// Start runs the schedule in a goroutine until ctx is cancelled.
func (r *Runner) Start(ctx context.Context) {
	go r.Run(ctx)
}

// Run blocks until ctx is cancelled, or until the single sweep finishes
// when no interval is configured.
func (r *Runner) Run(ctx context.Context) {
	delay := r.jitter(r.cfg.JitterMin, r.cfg.JitterMax)
	r.log.Infow("recurring sweep scheduled", "delay", delay.String(), "interval", r.cfg.Interval.String())

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return
	case <-timer.C:
	}

	r.sweep(ctx)
	if r.cfg.Interval <= 0 {
		return
	}

	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.sweep(ctx)
		}
	}
}

func (r *Runner) sweep(ctx context.Context) {
	start := time.Now()
	result, err := r.sweeper.SweepAll(ctx)
	if err != nil {
		r.log.Errorw("recurring sweep failed", "error", err)
		return
	}
	r.log.Infow("recurring sweep completed",
		"processed", result.Processed,
		"skipped", result.Skipped,
		"errors", result.Errors,
		"duration_ms", time.Since(start).Milliseconds(),
	)
}
