package analytics_api

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"ms-topup/internal/analytics"
	"ms-topup/internal/apperr"
	"ms-topup/internal/auth"
	"ms-topup/internal/logger"
	"ms-topup/internal/utils"

	"github.com/go-chi/chi/v5"
)

const dateLayout = "2006-01-02"

var ErrInvalidQuery = apperr.Validation("INVALID_QUERY", "from/to must be YYYY-MM-DD and gameId a number")

// Handler handles analytics HTTP endpoints
type Handler struct {
	Service *analytics.Service
	Logger  *logger.Logger
}

// NewHandler creates a new analytics handler
func NewHandler(service *analytics.Service, log *logger.Logger) *Handler {
	if log == nil {
		log = logger.NewNop()
	}
	return &Handler{Service: service, Logger: log}
}

// RegisterRoutes registers the analytics routes on a chi router
func (h *Handler) RegisterRoutes(r chi.Router, requireAuth func(http.Handler) http.Handler) {
	r.With(requireAuth).Get("/analytics/orders", h.GetOrderReport)
}

type DailySalesResponse struct {
	Date      string  `json:"date"`
	Orders    int     `json:"orders"`
	Completed int     `json:"completed"`
	Revenue   float64 `json:"revenue"`
}

type VoucherUsageResponse struct {
	Code          string  `json:"code"`
	Orders        int     `json:"orders"`
	TotalDiscount float64 `json:"totalDiscount"`
}

type ReportResponse struct {
	From              string                 `json:"from"`
	To                string                 `json:"to"`
	GameID            *int64                 `json:"gameId,omitempty"`
	TotalOrders       int                    `json:"totalOrders"`
	ByStatus          map[string]int         `json:"byStatus"`
	Revenue           float64                `json:"revenue"`
	RevenueBeforeDisc float64                `json:"revenueBeforeDiscounts"`
	DiscountGiven     float64                `json:"discountGiven"`
	DailySales        []DailySalesResponse   `json:"dailySales"`
	VoucherUsage      []VoucherUsageResponse `json:"voucherUsage"`
}

func toReport(r *analytics.Report) ReportResponse {
	resp := ReportResponse{
		From:              utils.ISOTime(r.From),
		To:                utils.ISOTime(r.To),
		TotalOrders:       r.TotalOrders,
		ByStatus:          make(map[string]int, len(r.ByStatus)),
		Revenue:           r.Revenue.InexactFloat64(),
		RevenueBeforeDisc: r.RevenueBeforeDisc.InexactFloat64(),
		DiscountGiven:     r.DiscountGiven.InexactFloat64(),
		DailySales:        make([]DailySalesResponse, 0, len(r.DailySales)),
		VoucherUsage:      make([]VoucherUsageResponse, 0, len(r.VoucherUsage)),
	}
	if r.GameID != 0 {
		id := r.GameID
		resp.GameID = &id
	}
	for status, n := range r.ByStatus {
		resp.ByStatus[string(status)] = n
	}
	for _, d := range r.DailySales {
		resp.DailySales = append(resp.DailySales, DailySalesResponse{
			Date: d.Date, Orders: d.Orders, Completed: d.Completed, Revenue: d.Revenue.InexactFloat64(),
		})
	}
	for _, v := range r.VoucherUsage {
		resp.VoucherUsage = append(resp.VoucherUsage, VoucherUsageResponse{
			Code: v.Code, Orders: v.Orders, TotalDiscount: v.TotalDiscount.InexactFloat64(),
		})
	}
	return resp
}

// GetOrderReport serves the admin dashboard. to is an inclusive date.
func (h *Handler) GetOrderReport(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.PrincipalFrom(r.Context())

	q, err := parseQuery(r)
	if err != nil {
		h.writeError(w, err)
		return
	}

	report, err := h.Service.OrderReport(r.Context(), p, q)
	if err != nil {
		h.writeError(w, err)
		return
	}
	_ = utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("", toReport(report)))
}

func parseQuery(r *http.Request) (analytics.Query, error) {
	var q analytics.Query
	values := r.URL.Query()

	if s := values.Get("from"); s != "" {
		t, err := time.Parse(dateLayout, s)
		if err != nil {
			return q, ErrInvalidQuery
		}
		q.From = t
	}
	if s := values.Get("to"); s != "" {
		t, err := time.Parse(dateLayout, s)
		if err != nil {
			return q, ErrInvalidQuery
		}
		q.To = t.Add(24 * time.Hour)
	}
	if s := values.Get("gameId"); s != "" {
		id, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return q, ErrInvalidQuery
		}
		q.GameID = id
	}
	return q, nil
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	e, ok := apperr.As(err)
	if !ok {
		e = apperr.Wrap(apperr.KindPersistence, "INTERNAL_ERROR", "internal server error", err)
	}
	if e.HTTPStatus() >= http.StatusInternalServerError {
		h.Logger.Error("ANALYTICS", fmt.Sprintf("%s: %v", e.Code, err))
	}
	_ = utils.WriteJSON(w, e.HTTPStatus(), utils.ErrorResponse(e.Code, e.Message))
}
