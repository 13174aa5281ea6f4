package order

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"ms-topup/internal/apperr"
	"ms-topup/internal/models"
	"ms-topup/internal/order/db"
)

var (
	ErrVerifyForbidden = apperr.Forbidden("only administrators can verify orders")
	ErrInvalidTarget   = apperr.Validation("INVALID_STATUS", "status must be one of processing, completed, failed")
)

type VerifyResult struct {
	Order   *models.Order
	Updated bool
}

// VerifyOrder moves an order to req.Status on behalf of an administrator.
// The change only applies while the row is in a status that may legally
// move there; otherwise the current order is returned with Updated false.
func (s *OrderService) VerifyOrder(ctx context.Context, p models.Principal, orderID string, req models.VerifyOrderRequest) (*VerifyResult, error) {
	if !p.Role.IsAdministrative() {
		s.Logger.LogSecurity("VERIFY_ORDER", fmt.Sprintf("user %d with role %q tried to verify %s", p.ID, p.Role, orderID))
		return nil, ErrVerifyForbidden
	}

	target, ok := models.ParseOrderStatus(strings.ToLower(strings.TrimSpace(req.Status)))
	if !ok || target == models.OrderPending {
		return nil, ErrInvalidTarget
	}
	orderID = strings.TrimSpace(orderID)

	verifier := p.ID
	changed, err := s.DB.TransitionOrder(ctx, db.Transition{
		OrderID:    orderID,
		From:       models.SourcesFor(target),
		To:         target,
		VerifiedBy: &verifier,
		Notes:      trimmedOrNil(req.Notes),
		At:         s.now().UTC(),
	})
	if err != nil {
		s.Logger.Error("ORDER", fmt.Sprintf("verify %s failed: %v", orderID, err))
		return nil, apperr.FromStorage(err, "failed to verify order")
	}

	o, err := s.DB.GetOrderByOrderID(ctx, orderID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, apperr.FromStorage(err, "failed to fetch order")
	}

	if changed {
		s.Metrics.StatusChanged(string(target))
		s.Logger.LogOrder("VERIFY", o.OrderID, fmt.Sprintf("status=%s by=%d", target, p.ID))
		s.Events.OrderUpdated(ctx, o)
	} else {
		s.Logger.Info("ORDER", fmt.Sprintf("verify %s to %s skipped, order is %s", o.OrderID, target, o.Status))
	}
	return &VerifyResult{Order: o, Updated: changed}, nil
}
