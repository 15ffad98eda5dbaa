package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	models "github.com/sagrvma/bookstore/model"
	"github.com/sagrvma/bookstore/service"
	"github.com/sagrvma/bookstore/store"
)

type response struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type client struct {
	t      *testing.T
	router http.Handler
}

func newClient(t *testing.T, svc service.ServiceInterface) *client {
	logger, _ := logtest.NewNullLogger()
	return &client{t: t, router: NewHandler(svc, logger).Router()}
}

func newMemoryClient(t *testing.T) (*client, *store.MemoryStore) {
	mem := store.NewMemoryStore(
		models.Book{ID: 1, Title: "Dune", Author: "Frank Herbert", Price: decimal.RequireFromString("499.50"), Stock: 3},
		models.Book{ID: 2, Title: "Emma", Author: "Jane Austen", Price: decimal.RequireFromString("250"), Stock: 1},
	)
	now := func() time.Time { return time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC) }
	logger, _ := logtest.NewNullLogger()
	return newClient(t, service.NewService(mem, service.WithClock(now), service.WithLogger(logger))), mem
}

func (c *client) do(method, path string, headers map[string]string, body interface{}) (*httptest.ResponseRecorder, response) {
	c.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(c.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	c.router.ServeHTTP(rec, req)

	var resp response
	if rec.Body.Len() > 0 && rec.Header().Get("Content-Type") == "application/json" {
		require.NoError(c.t, json.Unmarshal(rec.Body.Bytes(), &resp))
	}
	return rec, resp
}

func as(user string) map[string]string { return map[string]string{HeaderUserID: user} }

func asAdmin() map[string]string {
	return map[string]string{HeaderUserID: "root", HeaderUserRole: "admin"}
}

var shipTo = map[string]string{
	"fullName": "Asha Rao",
	"street":   "12 MG Road",
	"city":     "Bengaluru",
	"state":    "KA",
	"pinCode":  "560001",
	"country":  "India",
	"phone":    "+91-9000000000",
}

func TestHealthAndRequestID(t *testing.T) {
	c, _ := newMemoryClient(t)

	rec, resp := c.do(http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, resp.Success)
	assert.NotEmpty(t, rec.Header().Get(HeaderRequestID))

	rec, _ = c.do(http.MethodGet, "/health", map[string]string{HeaderRequestID: "abc"}, nil)
	assert.Equal(t, "abc", rec.Header().Get(HeaderRequestID))
}

func TestAPIRequiresUser(t *testing.T) {
	c, _ := newMemoryClient(t)
	rec, resp := c.do(http.MethodGet, "/api/cart", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.False(t, resp.Success)
}

func TestCheckoutAndCancelFlow(t *testing.T) {
	c, mem := newMemoryClient(t)

	rec, resp := c.do(http.MethodPost, "/api/cart", as("u1"), map[string]interface{}{"bookId": 1, "quantity": 2})
	require.Equal(t, http.StatusOK, rec.Code, resp.Message)
	var cart struct {
		Items []struct {
			Subtotal string `json:"subtotal"`
		} `json:"items"`
		TotalQuantity int    `json:"totalQuantity"`
		TotalPrice    string `json:"totalPrice"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &cart))
	require.Len(t, cart.Items, 1)
	assert.Equal(t, "999", cart.Items[0].Subtotal)
	assert.Equal(t, 2, cart.TotalQuantity)
	assert.Equal(t, "999", cart.TotalPrice)

	rec, resp = c.do(http.MethodPost, "/api/orders", as("u1"), map[string]interface{}{
		"shippingAddress": shipTo,
		"paymentMethod":   "card",
	})
	require.Equal(t, http.StatusCreated, rec.Code, resp.Message)
	var order models.Order
	require.NoError(t, json.Unmarshal(resp.Data, &order))
	assert.Equal(t, "ORD-20260302-001", order.OrderNumber)
	assert.Equal(t, models.PaymentCard, order.PaymentMethod)
	assert.True(t, decimal.RequireFromString("999").Equal(order.Total))

	b, err := mem.GetBook(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 1, b.Stock)

	rec, resp = c.do(http.MethodGet, "/api/orders", as("u1"), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var page service.OrderPage
	require.NoError(t, json.Unmarshal(resp.Data, &page))
	assert.Equal(t, 1, page.Pagination.TotalOrders)

	rec, _ = c.do(http.MethodGet, "/api/orders/1", as("u2"), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, resp = c.do(http.MethodPatch, "/api/orders/1/cancel", as("u1"), nil)
	require.Equal(t, http.StatusOK, rec.Code, resp.Message)
	b, err = mem.GetBook(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 3, b.Stock)

	rec, resp = c.do(http.MethodPatch, "/api/orders/1/cancel", as("u1"), nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "can't cancel order with status: cancelled", resp.Message)
}

func TestCheckoutRejections(t *testing.T) {
	c, mem := newMemoryClient(t)

	rec, resp := c.do(http.MethodPost, "/api/orders", as("u1"), map[string]interface{}{"shippingAddress": shipTo})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Cart is empty", resp.Message)

	rec, _ = c.do(http.MethodPost, "/api/cart", as("u1"), map[string]interface{}{"bookId": 2, "quantity": 1})
	require.Equal(t, http.StatusOK, rec.Code)
	mem.PutBook(models.Book{ID: 2, Title: "Emma", Price: decimal.RequireFromString("250"), Stock: 0})

	rec, resp = c.do(http.MethodPost, "/api/orders", as("u1"), map[string]interface{}{"shippingAddress": shipTo})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, resp.Message, "insufficient stock")

	rec, _ = c.do(http.MethodPost, "/api/orders", as("u1"), map[string]interface{}{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = c.do(http.MethodPost, "/api/cart", as("u1"), map[string]interface{}{"bookId": 99})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCartItemRoutes(t *testing.T) {
	c, _ := newMemoryClient(t)
	c.do(http.MethodPost, "/api/cart", as("u1"), map[string]interface{}{"bookId": 1})

	rec, _ := c.do(http.MethodPatch, "/api/cart/items/1", as("u1"), map[string]interface{}{"quantity": 3})
	assert.Equal(t, http.StatusOK, rec.Code)
	rec, _ = c.do(http.MethodPatch, "/api/cart/items/1", as("u1"), map[string]interface{}{"quantity": 11})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec, _ = c.do(http.MethodDelete, "/api/cart/items/1", as("u1"), nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec, _ = c.do(http.MethodDelete, "/api/cart/items/1", as("u1"), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec, _ = c.do(http.MethodDelete, "/api/cart", as("u1"), nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAdminRoutes(t *testing.T) {
	c, _ := newMemoryClient(t)
	c.do(http.MethodPost, "/api/cart", as("u1"), map[string]interface{}{"bookId": 1})
	rec, _ := c.do(http.MethodPost, "/api/orders", as("u1"), map[string]interface{}{"shippingAddress": shipTo})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec, _ = c.do(http.MethodGet, "/api/orders/admin/all", as("u1"), nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, resp := c.do(http.MethodGet, "/api/orders/admin/all?status=pending", asAdmin(), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var page service.OrderPage
	require.NoError(t, json.Unmarshal(resp.Data, &page))
	assert.Equal(t, 1, page.Pagination.TotalOrders)

	rec, _ = c.do(http.MethodPatch, "/api/orders/admin/1/status", asAdmin(), map[string]string{"status": "confirmed"})
	assert.Equal(t, http.StatusOK, rec.Code)
	rec, _ = c.do(http.MethodPatch, "/api/orders/admin/1/status", asAdmin(), map[string]string{"status": "delivered"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// fakeService answers PlaceOrder from PlaceOrderFn; other methods are not used.
type fakeService struct {
	service.ServiceInterface
	PlaceOrderFn func(ctx context.Context, userID string, in service.PlaceOrderInput) (*models.Order, error)
}

func (f *fakeService) PlaceOrder(ctx context.Context, userID string, in service.PlaceOrderInput) (*models.Order, error) {
	return f.PlaceOrderFn(ctx, userID, in)
}

func TestErrorMapping(t *testing.T) {
	cases := []struct {
		name       string
		err        error
		code       int
		retryAfter string
	}{
		{"conflict", &service.TransactionConflictError{Op: "place order", Err: store.ErrConflict}, http.StatusConflict, "1"},
		{"unavailable", &service.TransactionConflictError{Op: "place order", Err: store.ErrUnavailable}, http.StatusServiceUnavailable, "30"},
		{"unexpected", &service.UnexpectedError{Op: "place order", Err: errors.New("boom")}, http.StatusInternalServerError, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := newClient(t, &fakeService{
				PlaceOrderFn: func(context.Context, string, service.PlaceOrderInput) (*models.Order, error) {
					return nil, tc.err
				},
			})
			rec, resp := c.do(http.MethodPost, "/api/orders", as("u1"), map[string]interface{}{"shippingAddress": shipTo})
			assert.Equal(t, tc.code, rec.Code)
			assert.Equal(t, tc.retryAfter, rec.Header().Get("Retry-After"))
			assert.NotContains(t, resp.Message, "boom")
		})
	}
}

func TestOversizedBodyIsRejected(t *testing.T) {
	c, mem := newMemoryClient(t)
	c.do(http.MethodPost, "/api/cart", as("u1"), map[string]interface{}{"bookId": 1})

	rec, resp := c.do(http.MethodPost, "/api/orders", as("u1"), map[string]interface{}{
		"shippingAddress": shipTo,
		"notes":           strings.Repeat("x", maxBodyBytes+1),
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid json", resp.Message)

	b, err := mem.GetBook(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 3, b.Stock)
}

func TestTimeoutMapsToConflict(t *testing.T) {
	c := newClient(t, &fakeService{
		PlaceOrderFn: func(context.Context, string, service.PlaceOrderInput) (*models.Order, error) {
			return nil, &service.TransactionConflictError{Op: "place order", Err: context.DeadlineExceeded}
		},
	})
	rec, _ := c.do(http.MethodPost, "/api/orders", as("u1"), map[string]interface{}{"shippingAddress": shipTo})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))
}
