package expiry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"studybuddy/internal/metrics"
	"studybuddy/internal/service"

	"github.com/go-redsync/redsync/v4"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Locker serialises sweeps across orchestrator replicas. *redsync.Mutex
// satisfies it.
type Locker interface {
	TryLockContext(ctx context.Context) error
	UnlockContext(ctx context.Context) (bool, error)
}

// Runner executes expiry sweeps, optionally under a distributed lock.
type Runner struct {
	svc     service.ExpiryService
	lock    Locker
	timeout time.Duration
	metrics *metrics.EntitlementMetrics
	logger  zerolog.Logger
}

// NewRunner creates a Runner. lock and m may be nil.
func NewRunner(svc service.ExpiryService, lock Locker, timeout time.Duration, m *metrics.EntitlementMetrics, logger zerolog.Logger) *Runner {
	return &Runner{
		svc:     svc,
		lock:    lock,
		timeout: timeout,
		metrics: m,
		logger:  logger.With().Str("orchestrator", "expiry").Logger(),
	}
}

// ErrLockHeld reports that another replica is already sweeping.
var ErrLockHeld = errors.New("expiry sweep lock held elsewhere")

func (r *Runner) observeLock(result string) {
	if r.metrics != nil {
		r.metrics.LockAcquireTotal.WithLabelValues(result).Inc()
	}
}

// RunOnce performs a single sweep and returns the number of downgraded
// subscriptions. It returns ErrLockHeld without sweeping when another
// replica holds the lock.
func (r *Runner) RunOnce(ctx context.Context) (int, error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	if r.lock != nil {
		if err := r.lock.TryLockContext(ctx); err != nil {
			var taken *redsync.ErrTaken
			if errors.Is(err, redsync.ErrFailed) || errors.As(err, &taken) {
				r.observeLock("skipped")
				return 0, ErrLockHeld
			}
			r.observeLock("failed")
			return 0, fmt.Errorf("acquire sweep lock: %w", err)
		}
		r.observeLock("success")
		defer func() {
			// The sweep context may already be done; release on a fresh one.
			unlockCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if _, err := r.lock.UnlockContext(unlockCtx); err != nil {
				r.logger.Warn().Err(err).Msg("Failed to release sweep lock")
			}
		}()
	}

	return r.svc.SweepExpired(ctx)
}

func (r *Runner) tick(ctx context.Context) {
	start := time.Now()
	n, err := r.RunOnce(ctx)
	switch {
	case errors.Is(err, ErrLockHeld):
		r.logger.Info().Msg("Sweep skipped; another replica holds the lock")
	case err != nil:
		r.logger.Error().Err(err).Msg("Expiry sweep failed")
	default:
		r.logger.Info().Int("expired_count", n).Dur("duration", time.Since(start)).Msg("Expiry sweep completed")
	}
}

// Run schedules sweeps on the 6-field cron spec until ctx is cancelled.
// Overlapping ticks are skipped rather than queued.
func Run(ctx context.Context, r *Runner, schedule string) error {
	c := cron.New(
		cron.WithSeconds(),
		cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
	)
	if _, err := c.AddFunc(schedule, func() { r.tick(ctx) }); err != nil {
		return fmt.Errorf("invalid sweep schedule %q: %w", schedule, err)
	}

	r.logger.Info().Str("schedule", schedule).Msg("Starting expiry orchestrator")
	c.Start()
	<-ctx.Done()

	r.logger.Info().Msg("Shutting down expiry orchestrator")
	<-c.Stop().Done()
	return nil
}
