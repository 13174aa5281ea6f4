package order_api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"ms-topup/internal/apperr"
	"ms-topup/internal/auth"
	"ms-topup/internal/logger"
	"ms-topup/internal/models"
	"ms-topup/internal/order"
	"ms-topup/internal/order/discount"
	"ms-topup/internal/sse"
	"ms-topup/internal/utils"

	"github.com/go-chi/chi/v5"
)

var ErrInvalidBody = apperr.Validation("INVALID_BODY", "request body must be valid JSON")

type Handler struct {
	OrderService *order.OrderService
	Vouchers     *discount.Engine
	Logger       *logger.Logger
	Stream       *sse.OrderEmitter
	// ShowDetails adds the underlying cause to error envelopes.
	ShowDetails bool
}

func NewHandler(orderService *order.OrderService, log *logger.Logger, showDetails bool) *Handler {
	if log == nil {
		log = logger.NewNop()
	}
	return &Handler{
		OrderService: orderService,
		Vouchers:     orderService.Vouchers,
		Logger:       log,
		ShowDetails:  showDetails,
	}
}

// WithStream enables the per-order status stream.
func (h *Handler) WithStream(e *sse.OrderEmitter) *Handler {
	h.Stream = e
	return h
}

// Routes mounts the order and voucher endpoints. requireAuth guards every
// route that needs a caller identity.
func (h *Handler) Routes(r chi.Router, requireAuth func(http.Handler) http.Handler) {
	r.Route("/orders", func(r chi.Router) {
		r.Post("/check-expired", h.CheckExpired)

		r.Group(func(r chi.Router) {
			r.Use(requireAuth)
			r.Post("/", h.CreateOrder)
			r.Get("/", h.ListOrders)
			r.Get("/{orderId}", h.GetOrder)
			r.Patch("/{orderId}/verify", h.VerifyOrder)
			if h.Stream != nil {
				r.Get("/{orderId}/events", h.StreamOrder)
			}
		})
	})
	r.Post("/voucher-promos/validate", h.ValidateVoucher)
}

func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.PrincipalFrom(r.Context())

	var req models.CreateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Logger.Warn("API", fmt.Sprintf("CreateOrder: failed to decode request body: %v", err))
		h.writeError(w, ErrInvalidBody)
		return
	}

	created, err := h.OrderService.CreateOrder(r.Context(), p, req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, utils.SuccessResponse("Order created", toCreatedOrder(created)))
}

func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.PrincipalFrom(r.Context())
	q := r.URL.Query()

	// unparseable numbers fall back to the defaults
	page, _ := strconv.Atoi(q.Get("page"))
	limit, _ := strconv.Atoi(q.Get("limit"))
	admin, _ := strconv.ParseBool(q.Get("admin"))

	result, err := h.OrderService.ListOrders(r.Context(), p, order.ListFilter{
		Page:   page,
		Limit:  limit,
		Status: q.Get("status"),
		Admin:  admin,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, utils.SuccessResponse("", toOrderList(result)))
}

func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.PrincipalFrom(r.Context())
	orderID := chi.URLParam(r, "orderId")

	o, err := h.OrderService.GetOrder(r.Context(), p, orderID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, utils.SuccessResponse("", toOrder(o)))
}

func (h *Handler) VerifyOrder(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.PrincipalFrom(r.Context())
	orderID := chi.URLParam(r, "orderId")

	var req models.VerifyOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, ErrInvalidBody)
		return
	}

	res, err := h.OrderService.VerifyOrder(r.Context(), p, orderID, req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	msg := "Order status updated"
	if !res.Updated {
		msg = "Order status unchanged"
	}
	h.writeJSON(w, http.StatusOK, utils.SuccessResponse(msg, VerifyResponse{Updated: res.Updated, Order: toOrder(res.Order)}))
}

func (h *Handler) CheckExpired(w http.ResponseWriter, r *http.Request) {
	res, err := h.OrderService.SweepExpired(r.Context(), time.Now())
	if err != nil {
		h.writeError(w, err)
		return
	}
	msg := "No expired orders"
	if res.UpdatedCount > 0 {
		msg = fmt.Sprintf("%d expired orders marked as failed", res.UpdatedCount)
	}
	h.writeJSON(w, http.StatusOK, utils.SuccessResponse(msg, SweepResponse{Updated: res.UpdatedCount, OrderIDs: res.OrderIDs}))
}

func (h *Handler) ValidateVoucher(w http.ResponseWriter, r *http.Request) {
	var req ValidateVoucherRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, ErrInvalidBody)
		return
	}
	if strings.TrimSpace(req.Code) == "" {
		h.writeError(w, discount.ErrCodeRequired)
		return
	}
	if req.Amount == nil {
		h.writeError(w, discount.ErrInvalidAmount)
		return
	}

	res, err := h.Vouchers.Validate(r.Context(), req.Code, *req.Amount)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, utils.SuccessResponse("Voucher is valid", toVoucher(res)))
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	if err := utils.WriteJSON(w, status, v); err != nil {
		h.Logger.Error("API", fmt.Sprintf("failed to encode response: %v", err))
	}
}

// writeError renders err as an error envelope. Unclassified errors become
// a generic 500 so driver text never reaches the client in production.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	e, ok := apperr.As(err)
	if !ok {
		e = apperr.Wrap(apperr.KindPersistence, "INTERNAL_ERROR", "internal server error", err)
	}

	resp := utils.ErrorResponse(e.Code, e.Message)
	if h.ShowDetails {
		resp.Details = e.Detail()
	}
	if e.MinPurchase != nil {
		resp.Data = map[string]float64{"minPurchase": money(*e.MinPurchase)}
	}
	if e.HTTPStatus() >= http.StatusInternalServerError {
		h.Logger.Error("API", fmt.Sprintf("%s: %v", e.Code, err))
	}
	h.writeJSON(w, e.HTTPStatus(), resp)
}
