package order_api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
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

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
)

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Code    string          `json:"code"`
	Details string          `json:"details"`
}

type testServer struct {
	router   http.Handler
	bun      *bun.DB
	gw       *db.DB
	resolver *auth.JWTResolver
}

func newTestServer(t *testing.T, showDetails bool, tables ...interface{}) *testServer {
	t.Helper()
	bunDB := dbtest.Open(t, tables...)
	gw := db.New(bunDB, time.Second)
	svc := order.NewOrderService(gw, nil, nil, nil, nil, config.OrderConfig{})

	resolver := auth.NewJWTResolver("test-secret", "token")
	h := order_api.NewHandler(svc, nil, showDetails)

	r := chi.NewRouter()
	r.Use(order_api.RequestLogger(logger.NewNop()))
	r.Route("/api", func(r chi.Router) {
		h.Routes(r, auth.Middleware(resolver, logger.NewNop()))
	})
	return &testServer{router: r, bun: bunDB, gw: gw, resolver: resolver}
}

func (s *testServer) token(t *testing.T, p models.Principal) string {
	t.Helper()
	tok, err := s.resolver.Sign(p, jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))})
	require.NoError(t, err)
	return tok
}

func (s *testServer) do(t *testing.T, method, path, body string, p *models.Principal) (int, envelope) {
	t.Helper()
	var reader *bytes.Reader
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if p != nil {
		req.Header.Set("Authorization", "Bearer "+s.token(t, *p))
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return rec.Code, env
}

var (
	alice = models.Principal{ID: 1, Role: models.RoleCustomer}
	bob   = models.Principal{ID: 2, Role: models.RoleCustomer}
	boss  = models.Principal{ID: 99, Role: models.RoleAdmin}
)

func TestCreateOrderEndpoint(t *testing.T) {
	s := newTestServer(t, false)
	g := dbtest.SeedGame(t, s.bun, "Mobile Legends", true)

	body := `{"gameId":` + jsonInt(g.ID) + `,"playerId":" 998877 ","amount":25000,"paymentMethod":"QRIS"}`
	code, env := s.do(t, http.MethodPost, "/api/orders", body, &alice)
	require.Equal(t, http.StatusCreated, code, env.Error)
	assert.True(t, env.Success)

	var data order_api.CreatedOrderResponse
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, "pending", data.Status)
	assert.Equal(t, "Mobile Legends", data.Game)
	assert.Equal(t, "998877", data.PlayerID)
	assert.Equal(t, 25000.0, data.Amount)
	_, err := time.Parse(time.RFC3339, data.PaymentExpiresAt)
	assert.NoError(t, err)

	o, err := s.gw.GetOrderByOrderID(context.Background(), data.OrderID)
	require.NoError(t, err)
	assert.Equal(t, alice.ID, o.UserID)
}

func TestCreateOrderEndpoint_Errors(t *testing.T) {
	s := newTestServer(t, false)
	g := dbtest.SeedGame(t, s.bun, "Retired", false)

	code, env := s.do(t, http.MethodPost, "/api/orders", `{"gameId":1,"playerId":"p","amount":10}`, nil)
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.False(t, env.Success)

	code, env = s.do(t, http.MethodPost, "/api/orders", `{"gameId":1,"playerId":"p","amount":10}`, &boss)
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "UNAUTHORIZED", env.Code)

	code, env = s.do(t, http.MethodPost, "/api/orders", `{not json`, &alice)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "INVALID_BODY", env.Code)

	code, env = s.do(t, http.MethodPost, "/api/orders", `{"gameId":1,"playerId":"p","amount":-1}`, &alice)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "INVALID_AMOUNT", env.Code)

	code, env = s.do(t, http.MethodPost, "/api/orders", `{"gameId":`+jsonInt(g.ID)+`,"playerId":"p","amount":10}`, &alice)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "GAME_INACTIVE", env.Code)

	code, env = s.do(t, http.MethodPost, "/api/orders", `{"gameId":12345,"playerId":"p","amount":10}`, &alice)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "GAME_NOT_FOUND", env.Code)
}

func TestCreateOrderEndpoint_MissingSchemaIs503(t *testing.T) {
	for _, showDetails := range []bool{false, true} {
		s := newTestServer(t, showDetails, (*models.Game)(nil))
		g := dbtest.SeedGame(t, s.bun, "ML", true)

		code, env := s.do(t, http.MethodPost, "/api/orders", `{"gameId":`+jsonInt(g.ID)+`,"playerId":"p","amount":10}`, &alice)
		assert.Equal(t, http.StatusServiceUnavailable, code)
		assert.Equal(t, "SCHEMA_MISSING", env.Code)
		if showDetails {
			assert.Contains(t, env.Details, "no such table")
		} else {
			assert.Empty(t, env.Details)
		}
	}
}

func TestListOrdersEndpoint(t *testing.T) {
	s := newTestServer(t, false)
	now := time.Now().UTC()
	for i, owner := range []int64{alice.ID, alice.ID, bob.ID} {
		o := dbtest.PendingOrder("ORD-"+jsonInt(int64(i)), owner, 1, 100, now.Add(time.Duration(i)*time.Second))
		require.NoError(t, s.gw.CreateOrder(context.Background(), o))
	}

	code, env := s.do(t, http.MethodGet, "/api/orders?admin=true&limit=1&page=2", "", &alice)
	require.Equal(t, http.StatusOK, code, env.Error)
	var list order_api.OrderListResponse
	require.NoError(t, json.Unmarshal(env.Data, &list))
	assert.Equal(t, order_api.Pagination{Page: 2, Limit: 1, Total: 2, TotalPages: 2}, list.Pagination)
	require.Len(t, list.Orders, 1)
	assert.Equal(t, "ORD-0", list.Orders[0].OrderID)

	code, env = s.do(t, http.MethodGet, "/api/orders?admin=true", "", &boss)
	require.Equal(t, http.StatusOK, code)
	require.NoError(t, json.Unmarshal(env.Data, &list))
	assert.Equal(t, 3, list.Pagination.Total)
	assert.Equal(t, "ORD-2", list.Orders[0].OrderID)

	code, env = s.do(t, http.MethodGet, "/api/orders?status=bogus", "", &alice)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "INVALID_STATUS", env.Code)

	code, _ = s.do(t, http.MethodGet, "/api/orders", "", nil)
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestGetAndVerifyOrderEndpoints(t *testing.T) {
	s := newTestServer(t, false)
	require.NoError(t, s.gw.CreateOrder(context.Background(), dbtest.PendingOrder("ORD-X", alice.ID, 1, 100, time.Now().UTC())))

	code, env := s.do(t, http.MethodGet, "/api/orders/ORD-X", "", &alice)
	require.Equal(t, http.StatusOK, code)
	var o order_api.OrderResponse
	require.NoError(t, json.Unmarshal(env.Data, &o))
	assert.Equal(t, "pending", o.Status)

	code, env = s.do(t, http.MethodGet, "/api/orders/ORD-X", "", &bob)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "ORDER_NOT_FOUND", env.Code)

	code, env = s.do(t, http.MethodPatch, "/api/orders/ORD-X/verify", `{"status":"completed"}`, &alice)
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, "FORBIDDEN", env.Code)

	code, env = s.do(t, http.MethodPatch, "/api/orders/ORD-X/verify", `{"status":"completed","notes":"ok"}`, &boss)
	require.Equal(t, http.StatusOK, code, env.Error)
	var vr order_api.VerifyResponse
	require.NoError(t, json.Unmarshal(env.Data, &vr))
	assert.True(t, vr.Updated)
	assert.Equal(t, "completed", vr.Order.Status)
	require.NotNil(t, vr.Order.VerifiedBy)
	assert.Equal(t, boss.ID, *vr.Order.VerifiedBy)

	code, env = s.do(t, http.MethodPatch, "/api/orders/ORD-X/verify", `{"status":"failed"}`, &boss)
	require.Equal(t, http.StatusOK, code)
	require.NoError(t, json.Unmarshal(env.Data, &vr))
	assert.False(t, vr.Updated)
	assert.Equal(t, "completed", vr.Order.Status)
}

func TestCheckExpiredEndpoint(t *testing.T) {
	s := newTestServer(t, false)
	old := time.Now().UTC().Add(-time.Hour)
	require.NoError(t, s.gw.CreateOrder(context.Background(), dbtest.PendingOrder("ORD-OLD", alice.ID, 1, 100, old)))
	require.NoError(t, s.gw.CreateOrder(context.Background(), dbtest.PendingOrder("ORD-NEW", alice.ID, 1, 100, time.Now().UTC())))

	code, env := s.do(t, http.MethodPost, "/api/orders/check-expired", "", nil)
	require.Equal(t, http.StatusOK, code)
	var sr order_api.SweepResponse
	require.NoError(t, json.Unmarshal(env.Data, &sr))
	assert.Equal(t, 1, sr.Updated)
	assert.Equal(t, []string{"ORD-OLD"}, sr.OrderIDs)

	code, env = s.do(t, http.MethodPost, "/api/orders/check-expired", "", nil)
	require.Equal(t, http.StatusOK, code)
	require.NoError(t, json.Unmarshal(env.Data, &sr))
	assert.Zero(t, sr.Updated)
	assert.Equal(t, []string{}, sr.OrderIDs)
	assert.Equal(t, "No expired orders", env.Message)
}

func TestValidateVoucherEndpoint(t *testing.T) {
	s := newTestServer(t, false)
	dbtest.Insert(t, s.bun, &models.Voucher{
		Code: "DISKON10", Name: "Diskon 10%", DiscountType: models.PERCENTAGE,
		DiscountValue: decimal.NewFromInt(10), MinPurchase: decimal.NewFromInt(50000),
		MaxDiscount: decimal.NewNullDecimal(decimal.NewFromInt(5000)), IsActive: true,
		CreatedAt: time.Now().UTC(), UpdatedAt: time.Now().UTC(),
	})

	code, env := s.do(t, http.MethodPost, "/api/voucher-promos/validate", `{"code":"diskon10","amount":100000}`, nil)
	require.Equal(t, http.StatusOK, code, env.Error)
	var data map[string]order_api.VoucherResponse
	require.NoError(t, json.Unmarshal(env.Data, &data))
	v := data["voucher"]
	assert.Equal(t, "DISKON10", v.Code)
	assert.Equal(t, "PERCENTAGE", v.DiscountType)
	assert.Equal(t, 5000.0, v.Discount)
	assert.Equal(t, 95000.0, v.FinalAmount)
	assert.Equal(t, 50000.0, v.MinPurchase)

	code, env = s.do(t, http.MethodPost, "/api/voucher-promos/validate", `{"code":"DISKON10","amount":30000}`, nil)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "VOUCHER_BELOW_MINIMUM", env.Code)
	assert.Contains(t, env.Error, "50000.00")
	assert.JSONEq(t, `{"minPurchase":50000}`, string(env.Data))

	code, env = s.do(t, http.MethodPost, "/api/voucher-promos/validate", `{"code":"NOPE","amount":100}`, nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "voucher invalid or expired", env.Error)

	code, env = s.do(t, http.MethodPost, "/api/voucher-promos/validate", `{"amount":100}`, nil)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "VOUCHER_CODE_REQUIRED", env.Code)
}

func jsonInt(v int64) string {
	b, _ := json.Marshal(v)
	return string(b)
}
