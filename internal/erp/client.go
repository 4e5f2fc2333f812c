package erp

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/url"
	"time"

	"pasarela/internal/provider/base"
)

// Hansa exposes its registers over HTTP: IVVc (invoices), CUVc (contacts),
// IPVc (receipts). The HTTP client maps those registers onto the typed
// records above; no untyped map crosses this boundary.
type HTTPClient struct {
	http *base.HTTPClient
	auth string
}

func NewHTTPClient(baseURL, username, password string, timeout time.Duration) *HTTPClient {
	h := base.NewHTTPClient("hansa", timeout)
	h.SetBaseURL(baseURL)
	return &HTTPClient{
		http: h,
		auth: "Basic " + base64.StdEncoding.EncodeToString([]byte(username+":"+password)),
	}
}

func (c *HTTPClient) headers() map[string]string {
	return map[string]string{"Authorization": c.auth, "Accept": "application/json"}
}

func (c *HTTPClient) GetClient(ctx context.Context, companyCode, clientCode string) (Client, error) {
	endpoint := fmt.Sprintf("/api/1/%s/CUVc?range=%s", url.PathEscape(companyCode), url.QueryEscape(clientCode))
	resp, err := c.http.Get(ctx, endpoint, c.headers())
	if err != nil {
		return Client{}, fmt.Errorf("erp get client: %w", err)
	}
	if resp.StatusCode == 404 {
		return Client{}, ErrNotFound
	}
	if !resp.IsSuccess() {
		return Client{}, fmt.Errorf("erp get client: status %d", resp.StatusCode)
	}

	var out struct {
		Data []Client `json:"data"`
	}
	if err := resp.UnmarshalJSON(&out); err != nil {
		return Client{}, fmt.Errorf("erp get client: %w", err)
	}
	if len(out.Data) == 0 {
		return Client{}, ErrNotFound
	}
	return out.Data[0], nil
}

func (c *HTTPClient) GetInvoices(ctx context.Context, companyCode, clientCode string, from, to time.Time) ([]Invoice, error) {
	endpoint := fmt.Sprintf("/api/1/%s/IVVc?filter.CustCode=%s&filter.InvDate.from=%s&filter.InvDate.to=%s",
		url.PathEscape(companyCode), url.QueryEscape(clientCode),
		from.Format("2006-01-02"), to.Format("2006-01-02"))
	resp, err := c.http.Get(ctx, endpoint, c.headers())
	if err != nil {
		return nil, fmt.Errorf("erp get invoices: %w", err)
	}
	if !resp.IsSuccess() {
		return nil, fmt.Errorf("erp get invoices: status %d", resp.StatusCode)
	}

	var out struct {
		Data []Invoice `json:"data"`
	}
	if err := resp.UnmarshalJSON(&out); err != nil {
		return nil, fmt.Errorf("erp get invoices: %w", err)
	}
	return out.Data, nil
}

func (c *HTTPClient) GetInstallments(ctx context.Context, companyCode, invoiceNo string) ([]Installment, error) {
	endpoint := fmt.Sprintf("/api/1/%s/IVVc/%s/installments",
		url.PathEscape(companyCode), url.PathEscape(invoiceNo))
	resp, err := c.http.Get(ctx, endpoint, c.headers())
	if err != nil {
		return nil, fmt.Errorf("erp get installments: %w", err)
	}
	if resp.StatusCode == 404 {
		return nil, ErrNotFound
	}
	if !resp.IsSuccess() {
		return nil, fmt.Errorf("erp get installments: status %d", resp.StatusCode)
	}

	var out struct {
		Data []Installment `json:"data"`
	}
	if err := resp.UnmarshalJSON(&out); err != nil {
		return nil, fmt.Errorf("erp get installments: %w", err)
	}
	return out.Data, nil
}

func (c *HTTPClient) GetReceipts(ctx context.Context, companyCode, clientCode string, from, to time.Time) ([]Receipt, error) {
	endpoint := fmt.Sprintf("/api/1/%s/IPVc?filter.CustCode=%s&filter.TransDate.from=%s&filter.TransDate.to=%s",
		url.PathEscape(companyCode), url.QueryEscape(clientCode),
		from.Format("2006-01-02"), to.Format("2006-01-02"))
	resp, err := c.http.Get(ctx, endpoint, c.headers())
	if err != nil {
		return nil, fmt.Errorf("erp get receipts: %w", err)
	}
	if !resp.IsSuccess() {
		return nil, fmt.Errorf("erp get receipts: status %d", resp.StatusCode)
	}

	var out struct {
		Data []Receipt `json:"data"`
	}
	if err := resp.UnmarshalJSON(&out); err != nil {
		return nil, fmt.Errorf("erp get receipts: %w", err)
	}
	return out.Data, nil
}

func (c *HTTPClient) WriteReceipt(ctx context.Context, rec ReceiptRecord) (string, error) {
	endpoint := fmt.Sprintf("/api/1/%s/IPVc", url.PathEscape(rec.CompanyCode))
	resp, err := c.http.PostJSON(ctx, endpoint, rec, c.headers())
	if err != nil {
		return "", fmt.Errorf("erp write receipt: %w", err)
	}
	switch {
	case resp.StatusCode == 409:
		return "", ErrConflict
	case resp.StatusCode == 404:
		return "", ErrNotFound
	case !resp.IsSuccess():
		return "", fmt.Errorf("erp write receipt: status %d: %s", resp.StatusCode, resp.String())
	}

	var out struct {
		Number string `json:"number"`
	}
	if err := resp.UnmarshalJSON(&out); err != nil {
		return "", fmt.Errorf("erp write receipt: %w", err)
	}
	return out.Number, nil
}
