package erp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestGetClient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/1/ACME/CUVc", r.URL.Path)
		require.NotEmpty(t, r.Header.Get("Authorization"))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]string{{"code": "C-9", "name": "Ana Morales", "email": "ana@example.com"}},
		})
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, "user", "pass", 5*time.Second)
	cl, err := c.GetClient(context.Background(), "ACME", "C-9")
	require.NoError(t, err)
	require.Equal(t, "Ana Morales", cl.Name)
}

func TestGetClientNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"data": []any{}})
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, "user", "pass", 5*time.Second)
	_, err := c.GetClient(context.Background(), "ACME", "NADIE")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestGetInvoicesFilters(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/1/ACME/IVVc", r.URL.Path)
		q := r.URL.Query()
		require.Equal(t, "C-9", q.Get("filter.CustCode"))
		require.Equal(t, "2026-01-01", q.Get("filter.InvDate.from"))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{{"number": "F-100", "clientCode": "C-9", "total": "100.00", "balance": "100.00"}},
		})
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, "user", "pass", 5*time.Second)
	from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	invoices, err := c.GetInvoices(context.Background(), "ACME", "C-9", from, from.AddDate(0, 6, 0))
	require.NoError(t, err)
	require.Len(t, invoices, 1)
	require.Equal(t, "F-100", invoices[0].Number)
	require.True(t, invoices[0].Total.Equal(dec("100.00")))
}

func TestWriteReceipt(t *testing.T) {
	var got ReceiptRecord
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/1/ACME/IPVc", r.URL.Path)
		require.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]string{"number": "R-77"})
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, "user", "pass", 5*time.Second)
	no, err := c.WriteReceipt(context.Background(), ReceiptRecord{
		CompanyCode: "ACME",
		ClientCode:  "C-9",
		PayMode:     "paypal",
		Reference:   "CAP-1",
		Currency:    "USD",
		Total:       dec("150.00"),
		Lines: []ReceiptLine{
			{InvoiceNo: "F-100", Amount: dec("100.00")},
			{InvoiceNo: "F-101", Amount: dec("50.00")},
		},
	})
	require.NoError(t, err)
	require.Equal(t, "R-77", no)
	require.Len(t, got.Lines, 2)
	require.Equal(t, "CAP-1", got.Reference)
}

func TestWriteReceiptConflict(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, "user", "pass", 5*time.Second)
	_, err := c.WriteReceipt(context.Background(), ReceiptRecord{CompanyCode: "ACME"})
	require.ErrorIs(t, err, ErrConflict)
}

// staticCache is an in-memory ClientCache for decorator tests.
type staticCache struct {
	mu    sync.Mutex
	items map[string]Client
	gets  int
	puts  int
}

func (s *staticCache) Get(ctx context.Context, companyCode, clientCode string) (Client, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gets++
	c, ok := s.items[companyCode+":"+clientCode]
	return c, ok, nil
}

func (s *staticCache) Put(ctx context.Context, companyCode, clientCode string, c Client) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.puts++
	if s.items == nil {
		s.items = map[string]Client{}
	}
	s.items[companyCode+":"+clientCode] = c
	return nil
}

func TestWithClientCache(t *testing.T) {
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]string{{"code": "C-9", "name": "Ana Morales"}},
		})
	}))
	defer srv.Close()

	cache := &staticCache{}
	h := WithClientCache(NewHTTPClient(srv.URL, "u", "p", 5*time.Second), cache)

	first, err := h.GetClient(context.Background(), "ACME", "C-9")
	require.NoError(t, err)
	second, err := h.GetClient(context.Background(), "ACME", "C-9")
	require.NoError(t, err)

	require.Equal(t, first, second)
	require.Equal(t, 1, hits, "the second lookup must come from the cache")
	require.Equal(t, 1, cache.puts)
}
