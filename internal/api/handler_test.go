package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"order-engine/internal/service"
	"order-engine/internal/store/memstore"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type apiEnv struct {
	store  *memstore.Store
	router *gin.Engine
}

func newAPIEnv(t *testing.T, checks map[string]ReadinessCheck) *apiEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	st := memstore.New()
	ledger := service.NewStockLedger(st, nil, nil)
	svc := Services{
		Validator: service.NewCartValidator(st),
		Builder:   service.NewOrderBuilder(st, ledger, nil, nil, nil, service.BuilderConfig{}),
		Orders:    service.NewOrderStateMachine(st, ledger, nil, nil),
		Ledger:    ledger,
		Guard:     service.NewCatalogGuard(st, ledger, nil, nil),
		Products:  service.NewProductReader(st, nil),
	}

	router := gin.New()
	NewHandler(svc, checks).SetupRoutes(router)
	return &apiEnv{store: st, router: router}
}

func (e *apiEnv) do(t *testing.T, method, path string, body interface{}, headers ...string) (int, map[string]interface{}) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)

	var out map[string]interface{}
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	}
	return w.Code, out
}

func checkoutBody() map[string]interface{} {
	return map[string]interface{}{
		"shipping_address": map[string]string{
			"full_name":   "Grace Hopper",
			"phone":       "+1 555 0100",
			"line1":       "1 Navy Way",
			"city":        "Arlington",
			"postal_code": "22202",
			"country":     "US",
		},
	}
}

func TestHealthAndReadiness(t *testing.T) {
	env := newAPIEnv(t, map[string]ReadinessCheck{
		"database": func(ctx context.Context) error { return nil },
	})

	code, body := env.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "healthy", body["status"])

	code, body = env.do(t, http.MethodGet, "/ready", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ready", body["status"])

	failing := newAPIEnv(t, map[string]ReadinessCheck{
		"redis": func(ctx context.Context) error { return errors.New("connection refused") },
	})
	code, body = failing.do(t, http.MethodGet, "/ready", nil)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, map[string]interface{}{"redis": "connection refused"}, body["failures"])
}

func TestPlaceOrderEndpoint(t *testing.T) {
	env := newAPIEnv(t, nil)
	p := env.store.SeedProduct("Tea", "3.50", 5)
	env.store.AddCartItem(7, p.ID, 2)

	code, body := env.do(t, http.MethodPost, "/api/v1/users/7/orders", checkoutBody(), "Idempotency-Key", "checkout-1")
	require.Equal(t, http.StatusCreated, code)
	assert.Equal(t, "PENDING", body["status"])
	assert.Equal(t, "COD", body["payment_method"])
	assert.Equal(t, "7", body["total_amount"])
	assert.Len(t, body["items"], 1)

	orderID := body["id"]

	// Same key replays the first order.
	code, body = env.do(t, http.MethodPost, "/api/v1/users/7/orders", checkoutBody(), "Idempotency-Key", "checkout-1")
	require.Equal(t, http.StatusCreated, code)
	assert.Equal(t, orderID, body["id"])
	assert.Equal(t, 1, env.store.OrderCount(7))

	code, body = env.do(t, http.MethodGet, fmt.Sprintf("/api/v1/products/%d/availability", p.ID), nil)
	require.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 3, body["quantity"])
	assert.Equal(t, true, body["is_active"])
}

func TestPlaceOrderErrors(t *testing.T) {
	env := newAPIEnv(t, nil)
	p := env.store.SeedProduct("Tea", "3.50", 1)

	code, body := env.do(t, http.MethodPost, "/api/v1/users/7/orders", checkoutBody())
	assert.Equal(t, http.StatusUnprocessableEntity, code)
	assert.Equal(t, "empty_cart", body["error"])

	env.store.AddCartItem(7, p.ID, 4)
	code, body = env.do(t, http.MethodPost, "/api/v1/users/7/orders", checkoutBody())
	assert.Equal(t, http.StatusUnprocessableEntity, code)
	assert.Equal(t, "insufficient_stock", body["error"])
	details := body["details"].(map[string]interface{})
	shortages := details["shortages"].([]interface{})
	require.Len(t, shortages, 1)
	shortage := shortages[0].(map[string]interface{})
	assert.EqualValues(t, 4, shortage["requested"])
	assert.EqualValues(t, 1, shortage["available"])

	code, body = env.do(t, http.MethodPost, "/api/v1/users/7/orders", map[string]interface{}{})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "validation", body["error"])

	code, body = env.do(t, http.MethodPost, "/api/v1/users/abc/orders", checkoutBody())
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, map[string]interface{}{"field": "userId"}, body["details"])
}

func TestValidateCartEndpoint(t *testing.T) {
	env := newAPIEnv(t, nil)
	p := env.store.SeedProduct("Tea", "3.50", 1)
	env.store.AddCartItem(3, p.ID, 2)

	code, body := env.do(t, http.MethodGet, "/api/v1/users/3/cart/validation", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["has_blocking_issues"])
	lines := body["lines"].([]interface{})
	require.Len(t, lines, 1)
	assert.Equal(t, "EXCEEDS_STOCK", lines[0].(map[string]interface{})["verdict"])
}

func TestOrderStatusEndpoints(t *testing.T) {
	env := newAPIEnv(t, nil)
	p := env.store.SeedProduct("Tea", "3.50", 5)
	env.store.AddCartItem(7, p.ID, 1)

	code, body := env.do(t, http.MethodPost, "/api/v1/users/7/orders", checkoutBody())
	require.Equal(t, http.StatusCreated, code)
	path := fmt.Sprintf("/api/v1/admin/orders/%v", body["id"])

	code, body = env.do(t, http.MethodPatch, path+"/status", map[string]string{"status": "SHIPPED"})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "SHIPPED", body["status"])

	code, body = env.do(t, http.MethodPatch, path+"/status", map[string]string{"status": "PENDING"})
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "invalid_transition", body["error"])
	assert.Equal(t, map[string]interface{}{"track": "fulfillment", "from": "SHIPPED", "to": "PENDING"}, body["details"])

	code, body = env.do(t, http.MethodPatch, path+"/payment-status", map[string]string{"status": "PAID"})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "PAID", body["payment_status"])

	code, _ = env.do(t, http.MethodPatch, path+"/status", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, code)

	code, body = env.do(t, http.MethodGet, "/api/v1/orders/9999", nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "not_found", body["error"])
}

func TestStockAndProductEndpoints(t *testing.T) {
	env := newAPIEnv(t, nil)
	p := env.store.SeedProduct("Tea", "3.50", 5)
	env.store.AddReview(p.ID, 1, 5, "lovely")
	unused := env.store.SeedProduct("Coffee", "4.00", 2)

	stockPath := fmt.Sprintf("/api/v1/admin/products/%d/stock", p.ID)

	code, body := env.do(t, http.MethodPatch, stockPath, map[string]int{"delta": -8})
	require.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 0, body["stock_count"])
	assert.Equal(t, false, body["in_stock"])

	code, body = env.do(t, http.MethodPatch, stockPath, map[string]int{"stock_count": 12})
	require.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 12, body["stock_count"])

	code, _ = env.do(t, http.MethodPatch, stockPath, map[string]int{"delta": 1, "stock_count": 1})
	assert.Equal(t, http.StatusBadRequest, code)

	code, body = env.do(t, http.MethodGet, fmt.Sprintf("/api/v1/products/%d", p.ID), nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Tea", body["name"])

	code, body = env.do(t, http.MethodDelete, fmt.Sprintf("/api/v1/admin/products/%d", p.ID), nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "deactivated", body["action"])

	code, body = env.do(t, http.MethodDelete, fmt.Sprintf("/api/v1/admin/products/%d", unused.ID), nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "deleted", body["action"])

	code, body = env.do(t, http.MethodGet, fmt.Sprintf("/api/v1/products/%d", unused.ID), nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "not_found", body["error"])
}
