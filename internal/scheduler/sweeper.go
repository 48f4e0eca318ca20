package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"mall/internal/monitor"
	"mall/pkg/lock"
	"mall/pkg/log"
)

const lockKey = "mall:lock:sweep"

// TeamExpirer fails expired teams and returns the ids needing refund flagging
type TeamExpirer interface {
	ExpireSweep(ctx context.Context) ([]uint64, error)
}

// RefundFlagger flags the paid orders of a failed team for refund
type RefundFlagger interface {
	FlagTeamRefunds(ctx context.Context, teamID uint64) (int, error)
}

// BargainExpirer fails bargain sessions past their campaign stop time
type BargainExpirer interface {
	ExpireSweep(ctx context.Context) (int64, error)
}

// Config sweeper settings
type Config struct {
	Interval time.Duration
	LockTTL  time.Duration
}

// Report outcome of one sweep
type Report struct {
	Skipped         bool
	TeamsFailed     int
	OrdersFlagged   int
	SessionsExpired int64
}

// Sweeper drives the expiry sweeps on a ticker. Only the instance holding the
// redis lock sweeps; with no redis client every instance sweeps.
type Sweeper struct {
	client   redis.Cmdable
	teams    TeamExpirer
	orders   RefundFlagger
	bargains BargainExpirer
	metrics  *monitor.MetricsCollector
	cfg      Config

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewSweeper creates a sweeper
func NewSweeper(client redis.Cmdable, teams TeamExpirer, orders RefundFlagger, bargains BargainExpirer,
	metrics *monitor.MetricsCollector, cfg Config) *Sweeper {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = cfg.Interval
	}
	return &Sweeper{
		client:   client,
		teams:    teams,
		orders:   orders,
		bargains: bargains,
		metrics:  metrics,
		cfg:      cfg,
		stopCh:   make(chan struct{}),
	}
}

// Start runs a sweep every interval until Stop or ctx is done
func (s *Sweeper) Start(ctx context.Context) {
	log.WithField("interval", s.cfg.Interval.String()).Info("Starting expiry sweeper")

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.cfg.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-s.stopCh:
				log.Info("Expiry sweeper stopped")
				return
			case <-ctx.Done():
				log.Info("Expiry sweeper context cancelled")
				return
			case <-ticker.C:
				if _, err := s.RunOnce(ctx); err != nil {
					log.WithError(err).Error("Expiry sweep failed")
				}
			}
		}
	}()
}

// Stop stops the ticker loop and waits for a running sweep
func (s *Sweeper) Stop() {
	close(s.stopCh)
	s.wg.Wait()
}

// RunOnce performs one sweep: team expiry, refund flagging for the failed
// teams, then bargain expiry
func (s *Sweeper) RunOnce(ctx context.Context) (*Report, error) {
	if s.client != nil {
		l := lock.NewRedisLock(s.client, lockKey, s.cfg.LockTTL)
		if err := l.Lock(ctx); err != nil {
			if errors.Is(err, lock.ErrNotAcquired) {
				log.Debug("Sweep lock held by another instance")
				return &Report{Skipped: true}, nil
			}
			return nil, err
		}
		defer func() {
			if err := l.Unlock(context.Background()); err != nil && !errors.Is(err, lock.ErrNotHeld) {
				log.WithError(err).Warn("Failed to release sweep lock")
			}
		}()
	}

	report := &Report{}
	failed, err := s.teams.ExpireSweep(ctx)
	if err != nil {
		return nil, err
	}
	report.TeamsFailed = len(failed)

	for _, teamID := range failed {
		n, err := s.orders.FlagTeamRefunds(ctx, teamID)
		if err != nil {
			// one team failing to flag does not block the others
			log.WithFields(log.Fields{"team_id": teamID, "error": err.Error()}).Error("Failed to flag team refunds")
			continue
		}
		report.OrdersFlagged += n
	}
	s.metrics.RecordSweep("order_refund", report.OrdersFlagged)

	report.SessionsExpired, err = s.bargains.ExpireSweep(ctx)
	if err != nil {
		return report, err
	}

	if report.TeamsFailed > 0 || report.SessionsExpired > 0 {
		log.WithFields(log.Fields{
			"teams_failed":     report.TeamsFailed,
			"orders_flagged":   report.OrdersFlagged,
			"sessions_expired": report.SessionsExpired,
		}).Info("Expiry sweep finished")
	}
	return report, nil
}
