package reconciler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cuemby/brigade/pkg/deduction"
	"github.com/cuemby/brigade/pkg/log"
	"github.com/cuemby/brigade/pkg/metrics"
	"github.com/cuemby/brigade/pkg/types"
	"github.com/go-co-op/gocron"
	"github.com/rs/zerolog"
)

// EffectSource lists outbox effects that have not completed
type EffectSource interface {
	ListPendingEffects(ctx context.Context, createdBefore time.Time, maxAttempts int) ([]*types.Effect, error)
}

// EffectRunner re-executes a single outbox effect
type EffectRunner interface {
	RunEffect(ctx context.Context, effect *types.Effect) error
}

// Sweeper deducts fulfilled orders whose stock was never consumed
type Sweeper interface {
	Reconcile(ctx context.Context) (deduction.ReconcileResult, error)
}

// Config tunes the reconciliation cycle
type Config struct {
	Interval    time.Duration // Time between cycles
	RetryAfter  time.Duration // Minimum effect age before it is retried
	MaxAttempts int           // 0 retries forever
	Timeout     time.Duration // Upper bound for one cycle
}

// Result summarizes one cycle
type Result struct {
	EffectsRetried int                       `json:"effects_retried"`
	EffectsFailed  int                       `json:"effects_failed"`
	Sweep          deduction.ReconcileResult `json:"sweep"`
}

// Reconciler retries pending order side effects and repairs missing
// inventory deductions on a fixed schedule
type Reconciler struct {
	effects EffectSource
	runner  EffectRunner
	sweeper Sweeper
	cfg     Config
	logger  zerolog.Logger
	now     func() time.Time

	mu        sync.Mutex
	scheduler *gocron.Scheduler
}

// NewReconciler creates a new reconciler
func NewReconciler(effects EffectSource, runner EffectRunner, sweeper Sweeper, cfg Config) *Reconciler {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if cfg.RetryAfter < 0 {
		cfg.RetryAfter = 0
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = cfg.Interval
	}
	return &Reconciler{
		effects: effects,
		runner:  runner,
		sweeper: sweeper,
		cfg:     cfg,
		logger:  log.WithComponent("reconciler"),
		now:     time.Now,
	}
}

// Start schedules the reconciliation cycle. The first cycle runs
// immediately.
func (r *Reconciler) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.scheduler != nil {
		return fmt.Errorf("reconciler already started")
	}

	s := gocron.NewScheduler(time.UTC)
	_, err := s.Every(r.cfg.Interval).SingletonMode().Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), r.cfg.Timeout)
		defer cancel()
		if _, err := r.RunOnce(ctx); err != nil {
			r.logger.Error().Err(err).Msg("Reconciliation cycle failed")
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule reconciler: %w", err)
	}
	s.StartAsync()
	r.scheduler = s

	r.logger.Info().Dur("interval", r.cfg.Interval).Msg("Reconciler started")
	return nil
}

// Stop stops the reconciler
func (r *Reconciler) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.scheduler == nil {
		return
	}
	r.scheduler.Stop()
	r.scheduler = nil
}

// RunOnce performs one reconciliation cycle: pending effects first, then
// the deduction sweep
func (r *Reconciler) RunOnce(ctx context.Context) (Result, error) {
	timer := metrics.NewTimer()
	defer func() {
		timer.ObserveDuration(metrics.ReconciliationDuration)
		metrics.ReconciliationCyclesTotal.Inc()
	}()

	var res Result
	if err := r.retryEffects(ctx, &res); err != nil {
		return res, err
	}

	sweep, err := r.sweeper.Reconcile(ctx)
	res.Sweep = sweep
	if err != nil {
		return res, fmt.Errorf("deduction sweep: %w", err)
	}

	r.logger.Debug().
		Int("effects_retried", res.EffectsRetried).
		Int("effects_failed", res.EffectsFailed).
		Int("orders_repaired", sweep.Repaired).
		Dur("duration", timer.Duration()).
		Msg("Reconciliation cycle complete")
	return res, nil
}

func (r *Reconciler) retryEffects(ctx context.Context, res *Result) error {
	pending, err := r.effects.ListPendingEffects(ctx, r.now().Add(-r.cfg.RetryAfter), r.cfg.MaxAttempts)
	if err != nil {
		return fmt.Errorf("failed to list pending effects: %w", err)
	}

	for _, effect := range pending {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		res.EffectsRetried++
		if err := r.runner.RunEffect(ctx, effect); err != nil {
			res.EffectsFailed++
			r.logger.Warn().
				Err(err).
				Str("effect_id", effect.ID).
				Str("order_id", effect.OrderID).
				Int("attempts", effect.Attempts+1).
				Msg("Effect retry failed")
		}
	}
	return nil
}
