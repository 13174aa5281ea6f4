package order

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"ms-topup/internal/apperr"
	"ms-topup/internal/models"

	"golang.org/x/sync/errgroup"
)

const (
	defaultPageLimit = 20
	maxPageLimit     = 100
)

var (
	ErrInvalidStatus = apperr.Validation("INVALID_STATUS", "status must be one of pending, processing, completed, failed")
	ErrOrderNotFound = apperr.NotFound("ORDER_NOT_FOUND", "order not found")
)

// ListFilter is the caller's listing request before scoping. Admin asks for
// every user's orders and only takes effect for administrative roles.
type ListFilter struct {
	Page   int
	Limit  int
	Status string
	Admin  bool
}

type OrderPage struct {
	Orders     []models.OrderView
	Page       int
	Limit      int
	Total      int
	TotalPages int
}

// ListOrders returns one page of orders visible to p, newest first.
func (s *OrderService) ListOrders(ctx context.Context, p models.Principal, f ListFilter) (*OrderPage, error) {
	page, limit := f.Page, f.Limit
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = defaultPageLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}

	filter := models.OrderFilter{Limit: limit, Offset: (page - 1) * limit}
	if st := strings.TrimSpace(f.Status); st != "" {
		status, ok := models.ParseOrderStatus(st)
		if !ok {
			return nil, ErrInvalidStatus
		}
		filter.Status = status
	}
	if !f.Admin || !p.Role.IsAdministrative() {
		filter.UserID = p.ID
	}

	if s.cfg.SweepOnList {
		if _, err := s.sweepExpired(ctx, s.now(), TriggerList); err != nil {
			s.Logger.Warn("SWEEP", fmt.Sprintf("pre-list sweep failed, listing anyway: %v", err))
		}
	}

	var (
		orders []models.OrderView
		total  int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		orders, err = s.DB.ListOrders(gctx, filter)
		return err
	})
	g.Go(func() error {
		var err error
		total, err = s.DB.CountOrders(gctx, filter)
		return err
	})
	if err := g.Wait(); err != nil {
		s.Logger.Error("ORDER", fmt.Sprintf("list orders for user %d failed: %v", p.ID, err))
		return nil, apperr.FromStorage(err, "failed to fetch orders")
	}
	if orders == nil {
		orders = []models.OrderView{}
	}

	return &OrderPage{
		Orders:     orders,
		Page:       page,
		Limit:      limit,
		Total:      total,
		TotalPages: (total + limit - 1) / limit,
	}, nil
}

// GetOrder returns one order to its owner or to an administrative role.
// Anyone else sees the same NotFound an unknown id would produce.
func (s *OrderService) GetOrder(ctx context.Context, p models.Principal, orderID string) (*models.Order, error) {
	o, err := s.DB.GetOrderByOrderID(ctx, strings.TrimSpace(orderID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, apperr.FromStorage(err, "failed to fetch order")
	}
	if !p.CanSee(o) {
		s.Logger.LogSecurity("GET_ORDER", fmt.Sprintf("user %d asked for order %s owned by %d", p.ID, o.OrderID, o.UserID))
		return nil, ErrOrderNotFound
	}
	return o, nil
}
