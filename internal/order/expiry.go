package order

import (
	"context"
	"fmt"
	"strings"
	"time"

	"ms-topup/internal/apperr"
)

type SweepTrigger string

const (
	TriggerManual SweepTrigger = "manual"
	TriggerTimer  SweepTrigger = "timer"
	TriggerList   SweepTrigger = "list"
)

type SweepResult struct {
	UpdatedCount int
	OrderIDs     []string
}

// SweepExpired fails every pending order whose payment deadline is
// strictly before now. Finding nothing to expire is a normal result, and
// running it again for the same instant changes nothing.
func (s *OrderService) SweepExpired(ctx context.Context, now time.Time) (*SweepResult, error) {
	return s.sweepExpired(ctx, now, TriggerManual)
}

func (s *OrderService) sweepExpired(ctx context.Context, now time.Time, trigger SweepTrigger) (*SweepResult, error) {
	now = now.UTC()
	ids, err := s.DB.ExpirePendingOrders(ctx, now)
	if err != nil {
		s.Metrics.SweepFinished(string(trigger), 0, err)
		s.Logger.Error("SWEEP", fmt.Sprintf("[%s] expiry sweep failed: %v", trigger, err))
		return nil, apperr.FromStorage(err, "failed to expire pending orders")
	}
	if ids == nil {
		ids = []string{}
	}

	s.Metrics.SweepFinished(string(trigger), len(ids), nil)
	if len(ids) > 0 {
		s.Logger.LogSweep(string(trigger), len(ids))
		s.Logger.Debug("SWEEP", fmt.Sprintf("expired: %s", strings.Join(ids, ", ")))
		s.Events.OrdersExpired(ctx, ids, now)
	}
	return &SweepResult{UpdatedCount: len(ids), OrderIDs: ids}, nil
}
