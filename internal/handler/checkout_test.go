package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nordkart/checkout-api/internal/domain/catalog"
	"github.com/nordkart/checkout-api/internal/domain/checkout"
	"github.com/nordkart/checkout-api/internal/domain/order"
	"github.com/nordkart/checkout-api/internal/payment"
	"github.com/nordkart/checkout-api/internal/storage/memory"
)

type captureSink struct {
	orders []*order.Order
}

func (s *captureSink) Persist(_ context.Context, o *order.Order) (*order.Order, error) {
	s.orders = append(s.orders, o)
	return o, nil
}

func newTestServer(t *testing.T) (*httptest.Server, *captureSink) {
	t.Helper()
	cat := memory.NewCatalog(
		catalog.Item{SKU: "sku-sweater", Name: "Wool Sweater", UnitAmount: 10000, Currency: "NOK", Stock: 10},
		catalog.Item{SKU: "sku-socks", Name: "Socks", UnitAmount: 3990, Currency: "NOK", Stock: 2},
	)
	sink := &captureSink{}
	engine := checkout.NewService(
		checkout.NewCalculator(cat),
		memory.NewSessionStore(),
		sink,
		payment.NewGateway("https://pay.test/session"),
	)
	srv := httptest.NewServer(New(Config{}, engine).Routes())
	t.Cleanup(srv.Close)
	return srv, sink
}

func doJSON(t *testing.T, method, url string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })

	var decoded map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	return resp, decoded
}

func createSessionHTTP(t *testing.T, srv *httptest.Server) map[string]any {
	t.Helper()
	resp, body := doJSON(t, http.MethodPost, srv.URL+"/checkout_sessions", map[string]any{
		"items":            []map[string]any{{"sku": "sku-sweater", "quantity": 1}},
		"shipping_address": map[string]any{"postal_code": "0150", "country": "NO"},
		"currency":         "NOK",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	return body
}

func TestCreateSession(t *testing.T) {
	srv, _ := newTestServer(t)

	body := createSessionHTTP(t, srv)

	id, _ := body["id"].(string)
	assert.True(t, len(id) > 3 && id[:3] == "cs_", "id %q should carry the cs_ prefix", id)
	assert.Equal(t, "created", body["status"])
	assert.Equal(t, "NOK", body["currency"])
	assert.EqualValues(t, 10000, body["subtotal"])
	assert.EqualValues(t, 4900, body["shipping_amount"])
	assert.EqualValues(t, 2500, body["vat_amount"])
	assert.EqualValues(t, 17400, body["grand_total"])
}

func TestCreateSession_InvalidJSON(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Post(srv.URL+"/checkout_sessions", "application/json", bytes.NewBufferString("{nope"))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "invalid_json", body["code"])
}

func TestCreateSession_EmptyItems(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/checkout_sessions", map[string]any{
		"items":    []map[string]any{},
		"currency": "NOK",
	})

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "invalid_request", body["code"])
}

func TestCreateSession_UnsupportedCurrency(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/checkout_sessions", map[string]any{
		"items":    []map[string]any{{"sku": "sku-sweater", "quantity": 1}},
		"currency": "USD",
	})

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "unsupported_currency", body["code"])
}

func TestGetSession(t *testing.T) {
	srv, _ := newTestServer(t)
	created := createSessionHTTP(t, srv)

	resp, body := doJSON(t, http.MethodGet, srv.URL+"/checkout_sessions/"+created["id"].(string), nil)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, created["id"], body["id"])
	assert.EqualValues(t, 17400, body["grand_total"])
}

func TestGetSession_NotFound(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, body := doJSON(t, http.MethodGet, srv.URL+"/checkout_sessions/cs_missing", nil)

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "not_found", body["code"])
}

func TestUpdateSession_ShippingOption(t *testing.T) {
	srv, _ := newTestServer(t)
	created := createSessionHTTP(t, srv)

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/checkout_sessions/"+created["id"].(string), map[string]any{
		"shipping_option": "express",
	})

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "updated", body["status"])
	assert.Equal(t, "express", body["selected_shipping"])
	assert.EqualValues(t, 9900, body["shipping_amount"])
	assert.EqualValues(t, 22400, body["grand_total"])
}

func TestUpdateSession_NoFields(t *testing.T) {
	srv, _ := newTestServer(t)
	created := createSessionHTTP(t, srv)

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/checkout_sessions/"+created["id"].(string), map[string]any{})

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "invalid_request", body["code"])
}

func TestUpdateSession_NotFound(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/checkout_sessions/cs_missing", map[string]any{
		"shipping_option": "express",
	})

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "not_found", body["code"])
}

func TestCompleteSession_WithToken(t *testing.T) {
	srv, sink := newTestServer(t)
	created := createSessionHTTP(t, srv)
	id := created["id"].(string)

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/checkout_sessions/"+id+"/complete", map[string]any{
		"payment_token": "tok_visa",
		"email":         "ola@example.no",
	})

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, body["order_id"])
	assert.Equal(t, "completed", body["status"])
	assert.Equal(t, "NOK", body["currency"])
	assert.NotContains(t, body, "payment_url")

	total, ok := body["total"].(map[string]any)
	require.True(t, ok, "total must be an object")
	assert.EqualValues(t, 10000, total["subtotal"])
	assert.EqualValues(t, 4900, total["shipping"])
	assert.EqualValues(t, 2500, total["vat"])
	assert.EqualValues(t, 17400, total["grand_total"])

	require.Len(t, sink.orders, 1)
	assert.Equal(t, "ola@example.no", sink.orders[0].CustomerEmail)
	assert.Equal(t, id, sink.orders[0].SessionID)
}

func TestCompleteSession_HostedFlow(t *testing.T) {
	srv, _ := newTestServer(t)
	created := createSessionHTTP(t, srv)

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/checkout_sessions/"+created["id"].(string)+"/complete", map[string]any{})

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	url, _ := body["payment_url"].(string)
	assert.Contains(t, url, "https://pay.test/session/")
}

func TestCompleteSession_AlreadyCompleted(t *testing.T) {
	srv, _ := newTestServer(t)
	created := createSessionHTTP(t, srv)
	id := created["id"].(string)

	resp, _ := doJSON(t, http.MethodPost, srv.URL+"/checkout_sessions/"+id+"/complete", map[string]any{
		"payment_token": "tok_visa",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/checkout_sessions/"+id+"/complete", map[string]any{
		"payment_token": "tok_visa",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "already_completed", body["code"])
}

func TestCompleteSession_Declined(t *testing.T) {
	srv, sink := newTestServer(t)
	created := createSessionHTTP(t, srv)
	id := created["id"].(string)

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/checkout_sessions/"+id+"/complete", map[string]any{
		"payment_token": payment.DeclinedToken,
	})
	assert.Equal(t, http.StatusPaymentRequired, resp.StatusCode)
	assert.Equal(t, "payment_declined", body["code"])
	assert.Empty(t, sink.orders)

	// Session must remain completable after a decline.
	getResp, got := doJSON(t, http.MethodGet, srv.URL+"/checkout_sessions/"+id, nil)
	require.Equal(t, http.StatusOK, getResp.StatusCode)
	assert.Equal(t, "created", got["status"])
}
