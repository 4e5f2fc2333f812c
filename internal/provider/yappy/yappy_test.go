package yappy

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
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
		"ACME": {Yappy: &credentials.Yappy{
			MerchantID: "M-1", SecretKey: "s3cret", Domain: "https://pay.acme.example",
		}},
	})
}

func yappyRequest() charge.Request {
	amt, _ := decimal.NewFromString("40.00")
	tax, _ := decimal.NewFromString("2.80")
	return charge.Request{
		CompanyCode: "ACME",
		Amount:      amt,
		Currency:    "USD",
		Method:      charge.MethodYappy,
		Tax:         tax,
		Allocations: []charge.Allocation{{InvoiceNo: "F-1", Amount: amt}},
		Customer:    charge.Customer{Email: "rosa@example.com", Phone: "+5076000000"},
	}
}

func TestAuthenticateValidatesMerchantAndDomain(t *testing.T) {
	var validations int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/payments/validate/merchant", r.URL.Path)
		var payload map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		require.Equal(t, "M-1", payload["merchantId"])
		require.Equal(t, "https://pay.acme.example", payload["urlDomain"])
		validations++
		_ = json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"body":    map[string]any{"token": "val-tok", "epochTime": time.Now().UnixMilli()},
		})
	}))
	defer srv.Close()

	c := New(srv.URL, 5*time.Second, testResolver())

	tok, err := c.Authenticate(context.Background(), "ACME")
	require.NoError(t, err)
	require.Equal(t, "val-tok", tok.AccessToken)

	// No caching: every flow validates again.
	_, err = c.Authenticate(context.Background(), "ACME")
	require.NoError(t, err)
	require.Equal(t, 2, validations)
}

func TestAuthenticateMerchantNotValidated(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"success": false})
	}))
	defer srv.Close()

	c := New(srv.URL, 5*time.Second, testResolver())
	_, err := c.Authenticate(context.Background(), "ACME")
	require.Equal(t, provider.ClassAuth, provider.ClassOf(err))
}

func TestChargeSignsOrder(t *testing.T) {
	var payload map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/payments/payment-wc", r.URL.Path)
		require.Equal(t, "Bearer val-tok", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		_ = json.NewEncoder(w).Encode(map[string]any{"transactionId": "YT-1", "status": "E"})
	}))
	defer srv.Close()

	c := New(srv.URL, 5*time.Second, testResolver())
	tok := provider.Token{AccessToken: "val-tok", ExpiresAt: time.Now().Add(5 * time.Minute)}

	res, err := c.Charge(context.Background(), tok, yappyRequest())
	require.NoError(t, err)
	require.Equal(t, provider.StatusApproved, res.Status)
	require.Equal(t, "YT-1", res.ProviderTxID)

	require.Equal(t, "37.20", payload["subtotal"])
	require.Equal(t, "2.80", payload["taxes"])
	require.Equal(t, "40.00", payload["total"])

	// The signature must cover merchant, order id, total and the epoch sent.
	epoch := int64(payload["paymentDate"].(float64))
	mac := hmac.New(sha256.New, []byte("s3cret"))
	mac.Write([]byte("M-1" + payload["orderId"].(string) + "40.00" + strconv.FormatInt(epoch, 10)))
	require.Equal(t, hex.EncodeToString(mac.Sum(nil)), payload["signature"])
}

func TestChargeStatusMapping(t *testing.T) {
	cases := []struct {
		wire string
		want provider.Status
	}{
		{"E", provider.StatusApproved},
		{"R", provider.StatusDeclined},
		{"C", provider.StatusDeclined},
		{"X", provider.StatusError},
	}
	for _, tc := range cases {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewEncoder(w).Encode(map[string]any{"transactionId": "YT", "status": tc.wire})
		}))
		c := New(srv.URL, 5*time.Second, testResolver())
		tok := provider.Token{AccessToken: "t", ExpiresAt: time.Now().Add(5 * time.Minute)}

		res, err := c.Charge(context.Background(), tok, yappyRequest())
		require.NoError(t, err)
		require.Equal(t, tc.want, res.Status, "wire status %q", tc.wire)
		srv.Close()
	}
}

func TestChargeFreshOrderIDPerAttempt(t *testing.T) {
	var orders []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]any
		_ = json.NewDecoder(r.Body).Decode(&payload)
		orders = append(orders, payload["orderId"].(string))
		_ = json.NewEncoder(w).Encode(map[string]any{"transactionId": "YT", "status": "E"})
	}))
	defer srv.Close()

	c := New(srv.URL, 5*time.Second, testResolver())
	tok := provider.Token{AccessToken: "t", ExpiresAt: time.Now().Add(5 * time.Minute)}

	_, err := c.Charge(context.Background(), tok, yappyRequest())
	require.NoError(t, err)
	_, err = c.Charge(context.Background(), tok, yappyRequest())
	require.NoError(t, err)

	require.Len(t, orders, 2)
	require.NotEqual(t, orders[0], orders[1])
}
