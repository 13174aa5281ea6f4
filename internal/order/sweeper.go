package order

import (
	"context"
	"fmt"
	"time"

	"ms-topup/internal/logger"
)

// Locker hands out a cluster-wide lock; see internal/order/redis.
type Locker interface {
	TryAcquire(ctx context.Context) (release func(context.Context) error, ok bool, err error)
}

// Sweeper runs the expiry sweep on a fixed interval. With a Locker only one
// replica sweeps per tick. The sweep itself is a conditional update, so
// when the lock backend is unreachable every replica sweeps.
type Sweeper struct {
	service  *OrderService
	lock     Locker
	interval time.Duration
	logger   *logger.Logger
}

func NewSweeper(service *OrderService, lock Locker, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Sweeper{service: service, lock: lock, interval: interval, logger: service.Logger}
}

// Run sweeps once immediately and then on every tick until ctx is done.
func (sw *Sweeper) Run(ctx context.Context) error {
	sw.logger.Info("SWEEP", fmt.Sprintf("Expiry sweeper started (interval %s)", sw.interval))
	ticker := time.NewTicker(sw.interval)
	defer ticker.Stop()

	for {
		if _, _, err := sw.Tick(ctx); err != nil {
			sw.logger.Warn("SWEEP", fmt.Sprintf("tick failed: %v", err))
		}
		select {
		case <-ctx.Done():
			sw.logger.Info("SWEEP", "Expiry sweeper stopped")
			return nil
		case <-ticker.C:
		}
	}
}

// Tick performs one sweep attempt. ran is false when another replica held
// the lock.
func (sw *Sweeper) Tick(ctx context.Context) (res *SweepResult, ran bool, err error) {
	if sw.lock != nil {
		release, ok, lockErr := sw.lock.TryAcquire(ctx)
		switch {
		case lockErr != nil:
			sw.logger.Warn("SWEEP", fmt.Sprintf("lock unavailable, sweeping without it: %v", lockErr))
		case !ok:
			sw.logger.Debug("SWEEP", "another replica holds the sweep lock")
			return nil, false, nil
		default:
			defer func() {
				if err := release(context.WithoutCancel(ctx)); err != nil {
					sw.logger.Warn("SWEEP", fmt.Sprintf("failed to release lock: %v", err))
				}
			}()
		}
	}

	res, err = sw.service.sweepExpired(ctx, sw.service.now(), TriggerTimer)
	return res, err == nil, err
}
