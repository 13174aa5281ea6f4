package order_api_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"ms-topup/internal/auth"
	"ms-topup/internal/config"
	"ms-topup/internal/logger"
	"ms-topup/internal/models"
	"ms-topup/internal/order"
	"ms-topup/internal/order/db"
	"ms-topup/internal/order/db/dbtest"
	"ms-topup/internal/order/order_api"
	"ms-topup/internal/sse"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStreamServer(t *testing.T) (*testServer, *order.OrderService, *sse.OrderEmitter) {
	t.Helper()
	bunDB := dbtest.Open(t)
	gw := db.New(bunDB, time.Second)
	stream := sse.NewOrderEmitter()
	svc := order.NewOrderService(gw, nil, stream, nil, nil, config.OrderConfig{})

	resolver := auth.NewJWTResolver("test-secret", "token")
	h := order_api.NewHandler(svc, nil, false).WithStream(stream)

	r := chi.NewRouter()
	r.Route("/api", func(r chi.Router) {
		h.Routes(r, auth.Middleware(resolver, logger.NewNop()))
	})
	return &testServer{router: r, bun: bunDB, gw: gw, resolver: resolver}, svc, stream
}

func (s *testServer) stream(t *testing.T, ctx context.Context, orderID string, p models.Principal) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/api/orders/"+orderID+"/events", nil).WithContext(ctx)
	req.Header.Set("Authorization", "Bearer "+s.token(t, p))
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func TestStreamOrder_PushesUntilSettled(t *testing.T) {
	s, svc, stream := newStreamServer(t)
	dbtest.Insert(t, s.bun, dbtest.PendingOrder("ORD-S1", alice.ID, 1, 20000, time.Now().UTC()))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	done := make(chan *httptest.ResponseRecorder, 1)
	go func() { done <- s.stream(t, ctx, "ORD-S1", alice) }()

	require.Eventually(t, func() bool { return stream.ClientCount("ORD-S1") == 1 }, 2*time.Second, 5*time.Millisecond)

	_, err := svc.VerifyOrder(ctx, boss, "ORD-S1", models.VerifyOrderRequest{Status: "completed"})
	require.NoError(t, err)

	var rec *httptest.ResponseRecorder
	select {
	case rec = <-done:
	case <-ctx.Done():
		t.Fatal("stream did not end after the order settled")
	}

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	// the first event is pending unless the update landed before the row was read
	body := rec.Body.String()
	events := strings.Count(body, "event: status")
	assert.True(t, events == 1 || events == 2, body)
	last := body[strings.LastIndex(body, "data: "):]
	assert.Contains(t, last, `"status":"completed"`)
}

func TestStreamOrder_SettledOrderSendsOnce(t *testing.T) {
	s, _, _ := newStreamServer(t)
	o := dbtest.PendingOrder("ORD-S2", alice.ID, 1, 20000, time.Now().UTC())
	o.Status = models.OrderFailed
	dbtest.Insert(t, s.bun, o)

	rec := s.stream(t, context.Background(), "ORD-S2", alice)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, strings.Count(rec.Body.String(), "event: status"))
	assert.Contains(t, rec.Body.String(), `"status":"failed"`)
}

func TestStreamOrder_HiddenFromOtherCustomers(t *testing.T) {
	s, _, _ := newStreamServer(t)
	dbtest.Insert(t, s.bun, dbtest.PendingOrder("ORD-S3", alice.ID, 1, 20000, time.Now().UTC()))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rec := s.stream(t, ctx, "ORD-S3", bob)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "ORDER_NOT_FOUND")
}
