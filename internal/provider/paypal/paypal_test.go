package paypal

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"pasarela/internal/credentials"
	"pasarela/internal/domain/charge"
	"pasarela/internal/provider"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func testResolver() *credentials.Resolver {
	return credentials.NewResolver(map[string]credentials.Company{
		"ACME": {PayPal: &credentials.PayPal{ClientID: "id", ClientSecret: "secret"}},
	})
}

func captureRequest(orderID string) charge.Request {
	amt, _ := decimal.NewFromString("150.00")
	half, _ := decimal.NewFromString("75.00")
	return charge.Request{
		CompanyCode: "ACME",
		Amount:      amt,
		Currency:    "USD",
		Method:      charge.MethodPayPal,
		OrderID:     orderID,
		Allocations: []charge.Allocation{
			{InvoiceNo: "F-1", Amount: half},
			{InvoiceNo: "F-2", Amount: half},
		},
		Customer: charge.Customer{Email: "ana@example.com"},
	}
}

func TestCreateOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v2/checkout/orders", r.URL.Path)
		var payload map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		require.Equal(t, "CAPTURE", payload["intent"])

		units := payload["purchase_units"].([]any)
		unit := units[0].(map[string]any)
		require.Equal(t, "F-1,F-2", unit["invoice_id"])
		require.Equal(t, "150.00", unit["amount"].(map[string]any)["value"])

		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id": "ORD-1", "status": "CREATED",
			"links": []map[string]string{{"href": "https://paypal.test/approve", "rel": "approve"}},
		})
	}))
	defer srv.Close()

	c := New(srv.URL, 5*time.Second, testResolver(), provider.NewTokenSource(time.Minute))
	tok := provider.Token{AccessToken: "tok", ExpiresAt: time.Now().Add(time.Hour)}

	order, err := c.CreateOrder(context.Background(), tok, captureRequest(""))
	require.NoError(t, err)
	require.Equal(t, "ORD-1", order.ID)
	require.Equal(t, "https://paypal.test/approve", order.ApproveLink())
}

func TestChargeIdempotentPerOrderID(t *testing.T) {
	var captures atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v2/checkout/orders/ORD-1/capture", r.URL.Path)
		require.Equal(t, "ORD-1", r.Header.Get("Paypal-Request-Id"))
		captures.Add(1)
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id": "ORD-1", "status": "COMPLETED",
			"purchase_units": []map[string]any{{
				"payments": map[string]any{
					"captures": []map[string]string{{"id": "CAP-1", "status": "COMPLETED"}},
				},
			}},
		})
	}))
	defer srv.Close()

	c := New(srv.URL, 5*time.Second, testResolver(), provider.NewTokenSource(time.Minute))
	tok := provider.Token{AccessToken: "tok", ExpiresAt: time.Now().Add(time.Hour)}

	first, err := c.Charge(context.Background(), tok, captureRequest("ORD-1"))
	require.NoError(t, err)
	second, err := c.Charge(context.Background(), tok, captureRequest("ORD-1"))
	require.NoError(t, err)

	require.Equal(t, first, second, "a retried capture must replay the original outcome")
	require.Equal(t, "CAP-1", first.ProviderTxID)
	require.Equal(t, int64(1), captures.Load(), "the wire must see exactly one capture")
}

func TestChargeReplayGuardExpiresAndSweeps(t *testing.T) {
	var captures atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captures.Add(1)
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id": "ORD-1", "status": "COMPLETED",
			"purchase_units": []map[string]any{{
				"payments": map[string]any{
					"captures": []map[string]string{{"id": "CAP-1", "status": "COMPLETED"}},
				},
			}},
		})
	}))
	defer srv.Close()

	c := New(srv.URL, 5*time.Second, testResolver(), provider.NewTokenSource(time.Minute))
	tok := provider.Token{AccessToken: "tok", ExpiresAt: time.Now().Add(time.Hour)}

	_, err := c.Charge(context.Background(), tok, captureRequest("ORD-1"))
	require.NoError(t, err)
	require.Equal(t, int64(1), captures.Load())

	// Age the entry past the window: the retry goes back to the wire and the
	// stale entry is swept rather than retained.
	c.mu.Lock()
	entry := c.captured["ORD-1"]
	entry.at = time.Now().Add(-2 * c.ttl)
	c.captured["ORD-1"] = entry
	c.mu.Unlock()

	_, err = c.Charge(context.Background(), tok, captureRequest("ORD-1"))
	require.NoError(t, err)
	require.Equal(t, int64(2), captures.Load(), "an expired entry must not replay")

	c.mu.Lock()
	require.Len(t, c.captured, 1, "sweeping must drop expired entries")
	c.mu.Unlock()
}

func TestChargeAlreadyCapturedIsSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"name":    "UNPROCESSABLE_ENTITY",
			"details": []map[string]string{{"issue": "ORDER_ALREADY_CAPTURED"}},
		})
	}))
	defer srv.Close()

	c := New(srv.URL, 5*time.Second, testResolver(), provider.NewTokenSource(time.Minute))
	tok := provider.Token{AccessToken: "tok", ExpiresAt: time.Now().Add(time.Hour)}

	res, err := c.Charge(context.Background(), tok, captureRequest("ORD-2"))
	require.NoError(t, err)
	require.Equal(t, provider.StatusApproved, res.Status)
}

func TestChargeInstrumentDeclined(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"name":    "UNPROCESSABLE_ENTITY",
			"details": []map[string]string{{"issue": "INSTRUMENT_DECLINED"}},
		})
	}))
	defer srv.Close()

	c := New(srv.URL, 5*time.Second, testResolver(), provider.NewTokenSource(time.Minute))
	tok := provider.Token{AccessToken: "tok", ExpiresAt: time.Now().Add(time.Hour)}

	res, err := c.Charge(context.Background(), tok, captureRequest("ORD-3"))
	require.NoError(t, err)
	require.Equal(t, provider.StatusDeclined, res.Status)
	require.Equal(t, "INSTRUMENT_DECLINED", res.ResponseCode)
}

func TestChargeWithoutOrderID(t *testing.T) {
	c := New("http://unused", 5*time.Second, testResolver(), provider.NewTokenSource(time.Minute))
	tok := provider.Token{AccessToken: "tok", ExpiresAt: time.Now().Add(time.Hour)}

	_, err := c.Charge(context.Background(), tok, captureRequest(""))
	require.Error(t, err)
}
