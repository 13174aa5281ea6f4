package order_api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"ms-topup/internal/apperr"
	"ms-topup/internal/auth"
	"ms-topup/internal/sse"

	"github.com/go-chi/chi/v5"
)

var ErrStreamingUnsupported = apperr.New(apperr.KindPersistence, "STREAMING_UNSUPPORTED", "streaming is not supported")

// StreamOrder pushes status changes of one order as server-sent events.
// The stream ends once the order reaches completed or failed, or when the
// client disconnects.
func (h *Handler) StreamOrder(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.PrincipalFrom(r.Context())
	orderID := chi.URLParam(r, "orderId")

	flusher, ok := w.(http.Flusher)
	if !ok {
		h.writeError(w, ErrStreamingUnsupported)
		return
	}

	ctx := r.Context()
	// subscribe before reading the row so a change in between is not lost
	updates := h.Stream.Subscribe(ctx, orderID)

	o, err := h.OrderService.GetOrder(ctx, p, orderID)
	if err != nil {
		h.writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	current := sse.StatusUpdate{OrderID: o.OrderID, Status: o.Status, At: o.UpdatedAt}
	if err := h.writeEvent(w, current); err != nil {
		return
	}
	flusher.Flush()
	h.Logger.Debug("SSE", fmt.Sprintf("user %d watching order %s", p.ID, orderID))

	for !current.Status.IsTerminal() {
		select {
		case u, ok := <-updates:
			if !ok {
				return
			}
			if u.Status == current.Status {
				continue
			}
			current = u
			if err := h.writeEvent(w, u); err != nil {
				return
			}
			flusher.Flush()
		case <-ctx.Done():
			h.Logger.Debug("SSE", fmt.Sprintf("client left stream for order %s", orderID))
			return
		}
	}
}

func (h *Handler) writeEvent(w http.ResponseWriter, u sse.StatusUpdate) error {
	data, err := json.Marshal(u)
	if err != nil {
		h.Logger.Error("SSE", fmt.Sprintf("failed to serialize status update: %v", err))
		return err
	}
	_, err = fmt.Fprintf(w, "event: status\ndata: %s\n\n", data)
	return err
}
