package health

import (
	"context"
	"time"

	"github.com/cuemby/brigade/pkg/log"
	"github.com/cuemby/brigade/pkg/metrics"
)

// CheckType represents the type of health check
type CheckType string

const (
	CheckTypeHTTP CheckType = "http"
	CheckTypeTCP  CheckType = "tcp"
)

// Result represents the outcome of a health check
type Result struct {
	Healthy   bool
	Message   string
	CheckedAt time.Time
	Duration  time.Duration
}

// Checker is implemented by every dependency check
type Checker interface {
	Check(ctx context.Context) Result
	Type() CheckType
}

// Config controls how often a dependency is checked and how many failures
// it takes to report it down
type Config struct {
	Interval time.Duration
	Timeout  time.Duration
	Retries  int
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() Config {
	return Config{
		Interval: 30 * time.Second,
		Timeout:  5 * time.Second,
		Retries:  3,
	}
}

// Status tracks consecutive results for one dependency
type Status struct {
	ConsecutiveFailures  int
	ConsecutiveSuccesses int
	LastResult           Result
	Healthy              bool
}

// NewStatus starts out healthy
func NewStatus() *Status {
	return &Status{Healthy: true}
}

// Update folds result into the status. A single success restores health;
// it takes cfg.Retries failures in a row to lose it.
func (s *Status) Update(result Result, cfg Config) {
	s.LastResult = result

	if result.Healthy {
		s.ConsecutiveSuccesses++
		s.ConsecutiveFailures = 0
		s.Healthy = true
		return
	}

	s.ConsecutiveFailures++
	s.ConsecutiveSuccesses = 0
	if s.ConsecutiveFailures >= cfg.Retries {
		s.Healthy = false
	}
}

// Watch checks a dependency every cfg.Interval and mirrors the outcome to
// the named health component until ctx is done.
func Watch(ctx context.Context, name string, critical bool, checker Checker, cfg Config) {
	def := DefaultConfig()
	if cfg.Interval <= 0 {
		cfg.Interval = def.Interval
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.Retries <= 0 {
		cfg.Retries = def.Retries
	}

	logger := log.WithComponent("health").With().Str("dependency", name).Str("check", string(checker.Type())).Logger()
	metrics.RegisterComponent(name, critical, true, "pending")

	status := NewStatus()
	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()

	for {
		cctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
		result := checker.Check(cctx)
		cancel()
		if ctx.Err() != nil {
			return
		}

		was := status.Healthy
		status.Update(result, cfg)
		metrics.UpdateComponent(name, status.Healthy, result.Message)

		switch {
		case was && !status.Healthy:
			logger.Warn().Int("failures", status.ConsecutiveFailures).Msg(result.Message)
		case !was && status.Healthy:
			logger.Info().Msg("Dependency recovered")
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
