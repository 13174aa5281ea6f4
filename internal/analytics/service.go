package analytics

import (
	"context"
	"fmt"
	"sort"
	"time"

	"ms-topup/internal/apperr"
	"ms-topup/internal/logger"
	"ms-topup/internal/models"

	"github.com/shopspring/decimal"
)

const (
	defaultWindow = 30 * 24 * time.Hour
	maxWindow     = 366 * 24 * time.Hour
)

var (
	ErrForbidden    = apperr.Forbidden("only administrators can view order analytics")
	ErrInvalidRange = apperr.Validation("INVALID_RANGE", "from must be before to and the range at most one year")
)

type Store interface {
	OrdersBetween(ctx context.Context, from, to time.Time, gameID int64) ([]models.Order, error)
}

// Service handles analytics operations
type Service struct {
	db     Store
	logger *logger.Logger
	now    func() time.Time
}

// NewService creates a new analytics service
func NewService(db Store, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewNop()
	}
	return &Service{db: db, logger: log, now: time.Now}
}

func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Query selects the orders a report covers. Zero times default to the
// thirty days ending now.
type Query struct {
	From   time.Time
	To     time.Time
	GameID int64
}

// Report aggregates orders over a time window. Revenue only counts
// completed orders.
type Report struct {
	From              time.Time
	To                time.Time
	GameID            int64
	TotalOrders       int
	ByStatus          map[models.OrderStatus]int
	Revenue           decimal.Decimal
	RevenueBeforeDisc decimal.Decimal
	DiscountGiven     decimal.Decimal
	DailySales        []DailySales
	VoucherUsage      []VoucherUsage
}

// DailySales contains metrics for a single UTC day
type DailySales struct {
	Date      string
	Orders    int
	Completed int
	Revenue   decimal.Decimal
}

// VoucherUsage tracks how often a code was used on completed orders.
type VoucherUsage struct {
	Code          string
	Orders        int
	TotalDiscount decimal.Decimal
}

// OrderReport builds a Report for administrators.
func (s *Service) OrderReport(ctx context.Context, p models.Principal, q Query) (*Report, error) {
	if !p.Role.IsAdministrative() {
		return nil, ErrForbidden
	}

	to := q.To
	if to.IsZero() {
		to = s.now()
	}
	from := q.From
	if from.IsZero() {
		from = to.Add(-defaultWindow)
	}
	from, to = from.UTC(), to.UTC()
	if !from.Before(to) || to.Sub(from) > maxWindow {
		return nil, ErrInvalidRange
	}

	orders, err := s.db.OrdersBetween(ctx, from, to, q.GameID)
	if err != nil {
		s.logger.Error("ANALYTICS", fmt.Sprintf("failed to load orders %s..%s: %v", from, to, err))
		return nil, apperr.FromStorage(err, "failed to build order report")
	}

	report := aggregate(orders)
	report.From, report.To, report.GameID = from, to, q.GameID
	s.logger.Debug("ANALYTICS", fmt.Sprintf("report for %d orders by user %d", report.TotalOrders, p.ID))
	return report, nil
}

func aggregate(orders []models.Order) *Report {
	r := &Report{
		ByStatus: map[models.OrderStatus]int{
			models.OrderPending:    0,
			models.OrderProcessing: 0,
			models.OrderCompleted:  0,
			models.OrderFailed:     0,
		},
		Revenue:           decimal.Zero,
		RevenueBeforeDisc: decimal.Zero,
		DiscountGiven:     decimal.Zero,
		DailySales:        []DailySales{},
		VoucherUsage:      []VoucherUsage{},
	}

	days := map[string]*DailySales{}
	vouchers := map[string]*VoucherUsage{}

	for i := range orders {
		o := &orders[i]
		r.TotalOrders++
		r.ByStatus[o.Status]++

		date := o.CreatedAt.UTC().Format("2006-01-02")
		day, ok := days[date]
		if !ok {
			day = &DailySales{Date: date, Revenue: decimal.Zero}
			days[date] = day
		}
		day.Orders++

		if o.Status != models.OrderCompleted {
			continue
		}
		day.Completed++
		day.Revenue = day.Revenue.Add(o.Amount)
		r.Revenue = r.Revenue.Add(o.Amount)
		r.RevenueBeforeDisc = r.RevenueBeforeDisc.Add(o.OriginalAmount)
		r.DiscountGiven = r.DiscountGiven.Add(o.DiscountAmount)

		if o.VoucherCode != nil {
			v, ok := vouchers[*o.VoucherCode]
			if !ok {
				v = &VoucherUsage{Code: *o.VoucherCode, TotalDiscount: decimal.Zero}
				vouchers[*o.VoucherCode] = v
			}
			v.Orders++
			v.TotalDiscount = v.TotalDiscount.Add(o.DiscountAmount)
		}
	}

	for _, d := range days {
		r.DailySales = append(r.DailySales, *d)
	}
	sort.Slice(r.DailySales, func(i, j int) bool { return r.DailySales[i].Date < r.DailySales[j].Date })

	for _, v := range vouchers {
		r.VoucherUsage = append(r.VoucherUsage, *v)
	}
	sort.Slice(r.VoucherUsage, func(i, j int) bool {
		if r.VoucherUsage[i].Orders != r.VoucherUsage[j].Orders {
			return r.VoucherUsage[i].Orders > r.VoucherUsage[j].Orders
		}
		return r.VoucherUsage[i].Code < r.VoucherUsage[j].Code
	})
	return r
}
