package order

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"ms-topup/internal/apperr"
	"ms-topup/internal/config"
	"ms-topup/internal/logger"
	"ms-topup/internal/metrics"
	"ms-topup/internal/models"
	"ms-topup/internal/order/db"
	"ms-topup/internal/order/discount"
	"ms-topup/internal/utils"

	"github.com/shopspring/decimal"
)

var (
	ErrCustomerOnly   = apperr.Unauthorized("only customers can create orders")
	ErrMissingFields  = apperr.Validation("MISSING_FIELDS", "gameId, playerId and amount are required")
	ErrInvalidAmount  = apperr.Validation("INVALID_AMOUNT", "amount must be a number greater than zero")
	ErrGameNotFound   = apperr.NotFound("GAME_NOT_FOUND", "game not found")
	ErrGameInactive   = apperr.Validation("GAME_INACTIVE", "game is not active")
	ErrDiscountTotal  = apperr.Validation("DISCOUNT_EXCEEDS_TOTAL", "order total after discount must be greater than zero")
	ErrOrderIDExhaust = apperr.New(apperr.KindConflict, "ORDER_ID_CONFLICT", "could not allocate a unique order id")
)

// Store is the persistence the order service reads and writes through.
type Store interface {
	GetGame(ctx context.Context, id int64) (*models.Game, error)
	CreateOrder(ctx context.Context, order *models.Order) error
	GetOrderByOrderID(ctx context.Context, orderID string) (*models.Order, error)
	ListOrders(ctx context.Context, f models.OrderFilter) ([]models.OrderView, error)
	CountOrders(ctx context.Context, f models.OrderFilter) (int, error)
	ExpirePendingOrders(ctx context.Context, now time.Time) ([]string, error)
	TransitionOrder(ctx context.Context, t db.Transition) (bool, error)
	FindValidVoucher(ctx context.Context, code string, now time.Time) (*models.Voucher, error)
	IncrementVoucherUsage(ctx context.Context, id int64, now time.Time) (bool, error)
}

// Gateway is a Store that can also open a transaction.
type Gateway interface {
	Store
	RunInTx(ctx context.Context, fn func(ctx context.Context, tx *db.DB) error) error
}

type EventPublisher interface {
	OrderCreated(ctx context.Context, o *models.Order)
	OrderUpdated(ctx context.Context, o *models.Order)
	OrdersExpired(ctx context.Context, orderIDs []string, at time.Time)
}

type noopEvents struct{}

func (noopEvents) OrderCreated(context.Context, *models.Order)        {}
func (noopEvents) OrderUpdated(context.Context, *models.Order)        {}
func (noopEvents) OrdersExpired(context.Context, []string, time.Time) {}

// Publishers sends every event to each publisher in turn.
type Publishers []EventPublisher

func (ps Publishers) OrderCreated(ctx context.Context, o *models.Order) {
	for _, p := range ps {
		p.OrderCreated(ctx, o)
	}
}

func (ps Publishers) OrderUpdated(ctx context.Context, o *models.Order) {
	for _, p := range ps {
		p.OrderUpdated(ctx, o)
	}
}

func (ps Publishers) OrdersExpired(ctx context.Context, orderIDs []string, at time.Time) {
	for _, p := range ps {
		p.OrdersExpired(ctx, orderIDs, at)
	}
}

type OrderService struct {
	DB       Gateway
	Vouchers *discount.Engine
	Events   EventPublisher
	Metrics  *metrics.Metrics
	Logger   *logger.Logger

	cfg   config.OrderConfig
	now   func() time.Time
	newID func(time.Time) (string, error)
}

func NewOrderService(gw Gateway, vouchers *discount.Engine, events EventPublisher, m *metrics.Metrics, log *logger.Logger, cfg config.OrderConfig) *OrderService {
	if events == nil {
		events = noopEvents{}
	}
	if log == nil {
		log = logger.NewNop()
	}
	if vouchers == nil {
		vouchers = discount.NewEngine(gw, log, m)
	}
	if cfg.PaymentWindow <= 0 {
		cfg.PaymentWindow = 10 * time.Minute
	}
	if cfg.IDRetries <= 0 {
		cfg.IDRetries = 3
	}
	return &OrderService{
		DB:       gw,
		Vouchers: vouchers,
		Events:   events,
		Metrics:  m,
		Logger:   log,
		cfg:      cfg,
		now:      time.Now,
		newID:    utils.GenerateOrderID,
	}
}

// WithClock replaces the time source for the service and its voucher engine.
func (s *OrderService) WithClock(now func() time.Time) *OrderService {
	s.now = now
	s.Vouchers.WithClock(now)
	return s
}

// WithIDGenerator replaces the order id source.
func (s *OrderService) WithIDGenerator(gen func(time.Time) (string, error)) *OrderService {
	s.newID = gen
	return s
}

// CreatedOrder is a freshly persisted order plus the game it was placed for.
type CreatedOrder struct {
	Order    *models.Order
	GameName string
}

// ---------------- CREATE ----------------

// CreateOrder validates req against the catalog and persists a pending
// order whose payment deadline is creation time plus the payment window.
func (s *OrderService) CreateOrder(ctx context.Context, p models.Principal, req models.CreateOrderRequest) (*CreatedOrder, error) {
	if p.Role != models.RoleCustomer {
		s.Logger.LogSecurity("CREATE_ORDER", fmt.Sprintf("user %d with role %q tried to create an order", p.ID, p.Role))
		return nil, ErrCustomerOnly
	}

	playerID := strings.TrimSpace(req.PlayerID)
	if req.GameID == 0 || playerID == "" || req.Amount == nil {
		return nil, ErrMissingFields
	}
	amount := req.Amount.Round(2)
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}

	game, err := s.DB.GetGame(ctx, req.GameID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrGameNotFound
		}
		return nil, apperr.FromStorage(err, "failed to create order")
	}
	if !game.IsActive {
		return nil, ErrGameInactive
	}

	now := s.now().UTC()
	o := &models.Order{
		UserID:           p.ID,
		GameID:           game.ID,
		PlayerID:         playerID,
		ServerID:         trimmedOrNil(req.ServerID),
		ProductID:        req.ProductID,
		Amount:           amount,
		OriginalAmount:   amount,
		DiscountAmount:   decimal.Zero,
		PaymentMethod:    strings.TrimSpace(req.PaymentMethod),
		PaymentMethodID:  req.PaymentMethodID,
		Status:           models.OrderPending,
		PaymentExpiresAt: now.Add(s.cfg.PaymentWindow),
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	code := ""
	if req.VoucherCode != nil {
		code = strings.TrimSpace(*req.VoucherCode)
	}

	switch {
	case code == "":
		err = s.insertOrder(ctx, s.DB, o, now)
	case s.cfg.RedeemVoucher:
		err = s.DB.RunInTx(ctx, func(ctx context.Context, tx *db.DB) error {
			res, err := s.Vouchers.ValidateWith(ctx, tx, code, amount)
			if err != nil {
				return err
			}
			if err := applyVoucher(o, res); err != nil {
				return err
			}
			ok, err := tx.IncrementVoucherUsage(ctx, res.Voucher.ID, now)
			if err != nil {
				return err
			}
			if !ok {
				return discount.ErrVoucherInvalid
			}
			return s.insertOrder(ctx, savepointStore{tx}, o, now)
		})
	default:
		var res *discount.Result
		if res, err = s.Vouchers.Validate(ctx, code, amount); err == nil {
			if err = applyVoucher(o, res); err == nil {
				err = s.insertOrder(ctx, s.DB, o, now)
			}
		}
	}
	if err != nil {
		if _, ok := apperr.As(err); !ok {
			s.Logger.Error("ORDER", fmt.Sprintf("create order for user %d failed: %v", p.ID, err))
		}
		return nil, apperr.FromStorage(err, "failed to create order")
	}

	s.Metrics.OrderCreated(o.VoucherCode != nil)
	s.Logger.LogOrder("CREATE", o.OrderID, fmt.Sprintf("user=%d game=%d amount=%s expires=%s", o.UserID, o.GameID, o.Amount.StringFixed(2), utils.ISOTime(o.PaymentExpiresAt)))
	s.Events.OrderCreated(ctx, o)

	return &CreatedOrder{Order: o, GameName: game.Name}, nil
}

func applyVoucher(o *models.Order, res *discount.Result) error {
	if !res.FinalAmount.IsPositive() {
		return ErrDiscountTotal
	}
	code := res.Voucher.Code
	o.VoucherCode = &code
	o.OriginalAmount = res.Amount
	o.DiscountAmount = res.Discount
	o.Amount = res.FinalAmount
	return nil
}

// insertOrder mints an id and inserts o, minting a fresh id whenever the
// previous one collided with an existing order.
func (s *OrderService) insertOrder(ctx context.Context, store Store, o *models.Order, now time.Time) error {
	for attempt := 1; ; attempt++ {
		id, err := s.newID(now)
		if err != nil {
			return apperr.Wrap(apperr.KindPersistence, "ORDER_ID_FAILED", "failed to generate order id", err)
		}
		o.OrderID = id

		err = store.CreateOrder(ctx, o)
		if err == nil {
			return nil
		}
		if !apperr.IsUniqueViolation(err) {
			return err
		}
		s.Logger.Warn("ORDER", fmt.Sprintf("order id %s already taken (attempt %d/%d)", id, attempt, s.cfg.IDRetries))
		if attempt >= s.cfg.IDRetries {
			return ErrOrderIDExhaust
		}
	}
}

// savepointStore runs each insert in a nested transaction so a duplicate
// key rolls back only that insert, not the surrounding Postgres transaction.
type savepointStore struct {
	*db.DB
}

func (s savepointStore) CreateOrder(ctx context.Context, o *models.Order) error {
	return s.DB.RunInTx(ctx, func(ctx context.Context, sp *db.DB) error {
		return sp.CreateOrder(ctx, o)
	})
}

func trimmedOrNil(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}
