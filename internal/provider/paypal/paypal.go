package paypal

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"pasarela/internal/credentials"
	"pasarela/internal/domain/charge"
	"pasarela/internal/provider"
	"pasarela/internal/provider/base"

	"github.com/rs/zerolog/log"
)

// replayTTL bounds the local capture-replay guard. Retries that matter arrive
// within minutes; after the window the PayPal-Request-Id header still covers
// the replay server-side.
const replayTTL = time.Hour

type capturedEntry struct {
	result provider.Result
	at     time.Time
}

// Client implements the PayPal adapter: order creation during the approval
// flow, then an idempotent capture keyed by order id.
type Client struct {
	http     *base.HTTPClient
	resolver *credentials.Resolver
	tokens   *provider.TokenSource

	// captured replays finished captures so a retried capture for the same
	// order id returns the original outcome instead of hitting the wire again.
	// Entries expire after replayTTL and are swept on insert so the map stays
	// bounded by recent traffic.
	mu       sync.Mutex
	captured map[string]capturedEntry
	ttl      time.Duration
}

func New(baseURL string, timeout time.Duration, resolver *credentials.Resolver, tokens *provider.TokenSource) *Client {
	h := base.NewHTTPClient("paypal", timeout)
	h.SetBaseURL(baseURL)
	return &Client{
		http:     h,
		resolver: resolver,
		tokens:   tokens,
		captured: make(map[string]capturedEntry),
		ttl:      replayTTL,
	}
}

func (c *Client) Name() string { return "PayPal" }

func (c *Client) Authenticate(ctx context.Context, companyCode string) (provider.Token, error) {
	creds, ok := c.resolver.PayPal(companyCode)
	if !ok {
		return provider.Token{}, &provider.Error{
			Class:   provider.ClassAuth,
			Code:    "missing_credentials",
			Message: "no paypal credentials for company " + companyCode,
		}
	}

	return c.tokens.Get(ctx, "paypal", companyCode, func(ctx context.Context) (provider.Token, error) {
		return c.fetchToken(ctx, creds)
	})
}

func (c *Client) fetchToken(ctx context.Context, creds credentials.PayPal) (provider.Token, error) {
	basic := base64.StdEncoding.EncodeToString([]byte(creds.ClientID + ":" + creds.ClientSecret))
	form := url.Values{"grant_type": {"client_credentials"}}

	resp, err := c.http.PostForm(ctx, "/v1/oauth2/token", form, map[string]string{
		"Authorization": "Basic " + basic,
	})
	if err != nil {
		return provider.Token{}, provider.ClassifyTransport(err)
	}
	if !resp.IsSuccess() {
		return provider.Token{}, &provider.Error{
			Class:   provider.ClassAuth,
			Code:    fmt.Sprintf("http_%d", resp.StatusCode),
			Message: "paypal token endpoint rejected credentials",
		}
	}

	var body struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	if err := resp.UnmarshalJSON(&body); err != nil {
		return provider.Token{}, &provider.Error{
			Class: provider.ClassAuth, Code: "bad_token_response",
			Message: "cannot parse paypal token response", Err: err,
		}
	}
	return provider.Token{
		AccessToken: body.AccessToken,
		TokenType:   body.TokenType,
		ExpiresAt:   time.Now().Add(time.Duration(body.ExpiresIn) * time.Second),
	}, nil
}

// Link is a HATEOAS link returned with a created order; the "approve" rel is
// what the payer is redirected to.
type Link struct {
	Href string `json:"href"`
	Rel  string `json:"rel"`
}

// Order is a created-but-uncaptured PayPal order.
type Order struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Links  []Link `json:"links"`
}

// ApproveLink returns the payer-approval URL, if present.
func (o Order) ApproveLink() string {
	for _, l := range o.Links {
		if l.Rel == "approve" {
			return l.Href
		}
	}
	return ""
}

// CreateOrder starts the two-phase flow. The returned order id is what a later
// charge request must carry for capture.
func (c *Client) CreateOrder(ctx context.Context, token provider.Token, req charge.Request) (Order, error) {
	var refs []string
	for _, a := range req.Allocations {
		refs = append(refs, a.InvoiceNo)
	}
	payload := map[string]any{
		"intent": "CAPTURE",
		"purchase_units": []map[string]any{{
			"reference_id": req.CompanyCode,
			"invoice_id":   strings.Join(refs, ","),
			"amount": map[string]any{
				"currency_code": req.Currency,
				"value":         req.Amount.StringFixed(2),
			},
		}},
	}

	resp, err := c.http.PostJSON(ctx, "/v2/checkout/orders", payload, map[string]string{
		"Authorization": "Bearer " + token.AccessToken,
	})
	if err != nil {
		return Order{}, provider.ClassifyTransport(err)
	}
	if !resp.IsSuccess() {
		return Order{}, &provider.Error{
			Class:   provider.ClassRejected,
			Code:    fmt.Sprintf("http_%d", resp.StatusCode),
			Message: "paypal create order failed: " + resp.String(),
		}
	}

	var order Order
	if err := resp.UnmarshalJSON(&order); err != nil {
		return Order{}, &provider.Error{
			Class: provider.ClassRejected, Code: "bad_response",
			Message: "cannot parse paypal order response", Err: err,
		}
	}

	log.Info().
		Str("provider", "paypal").
		Str("order_id", order.ID).
		Str("status", order.Status).
		Msg("paypal order created")

	return order, nil
}

type captureResponse struct {
	ID            string `json:"id"`
	Status        string `json:"status"`
	PurchaseUnits []struct {
		Payments struct {
			Captures []struct {
				ID     string `json:"id"`
				Status string `json:"status"`
			} `json:"captures"`
		} `json:"payments"`
	} `json:"purchase_units"`
	Name    string `json:"name"`
	Details []struct {
		Issue string `json:"issue"`
	} `json:"details"`
}

// Charge captures the order named by req.OrderID. Capture is idempotent under
// caller retry: the same order id yields the same outcome and is never
// double-captured. The PayPal-Request-Id header pins the server-side
// idempotence window and a local replay map guards repeated calls within this
// process.
func (c *Client) Charge(ctx context.Context, token provider.Token, req charge.Request) (provider.Result, error) {
	if req.OrderID == "" {
		return provider.Result{}, &provider.Error{
			Class: provider.ClassRejected, Code: "missing_order_id",
			Message: "paypal capture without order id",
		}
	}

	c.mu.Lock()
	if prev, ok := c.captured[req.OrderID]; ok && time.Since(prev.at) < c.ttl {
		c.mu.Unlock()
		return prev.result, nil
	}
	c.mu.Unlock()

	resp, err := c.http.PostJSON(ctx, "/v2/checkout/orders/"+req.OrderID+"/capture", map[string]any{}, map[string]string{
		"Authorization":     "Bearer " + token.AccessToken,
		"PayPal-Request-Id": req.OrderID,
	})
	if err != nil {
		return provider.Result{}, provider.ClassifyTransport(err)
	}
	if resp.StatusCode == 401 {
		return provider.Result{}, &provider.Error{
			Class: provider.ClassAuth, Code: "token_rejected",
			Message: "paypal rejected the bearer token",
		}
	}

	var body captureResponse
	if err := resp.UnmarshalJSON(&body); err != nil {
		return provider.Result{}, &provider.Error{
			Class: provider.ClassRejected, Code: "bad_response",
			Message: "cannot parse paypal capture response", Err: err,
		}
	}

	// A replayed capture against an already-captured order is a success from
	// the caller's point of view.
	if !resp.IsSuccess() && !alreadyCaptured(body) {
		if body.Status == "DECLINED" || hasIssue(body, "INSTRUMENT_DECLINED") {
			result := provider.Result{
				ProviderTxID: req.OrderID,
				Status:       provider.StatusDeclined,
				ResponseCode: "INSTRUMENT_DECLINED",
				Raw:          resp.Body,
			}
			c.remember(req.OrderID, result)
			return result, nil
		}
		return provider.Result{}, &provider.Error{
			Class:   provider.ClassRejected,
			Code:    fmt.Sprintf("http_%d", resp.StatusCode),
			Message: "paypal capture failed: " + resp.String(),
		}
	}

	captureID := req.OrderID
	for _, pu := range body.PurchaseUnits {
		for _, cap := range pu.Payments.Captures {
			if cap.ID != "" {
				captureID = cap.ID
			}
		}
	}

	result := provider.Result{
		ProviderTxID: captureID,
		Status:       provider.StatusApproved,
		ResponseCode: body.Status,
		Raw:          resp.Body,
	}
	c.remember(req.OrderID, result)

	log.Info().
		Str("provider", "paypal").
		Str("order_id", req.OrderID).
		Str("capture_id", captureID).
		Str("status", body.Status).
		Msg("paypal order captured")

	return result, nil
}

func (c *Client) remember(orderID string, result provider.Result) {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := time.Now()
	for id, entry := range c.captured {
		if now.Sub(entry.at) >= c.ttl {
			delete(c.captured, id)
		}
	}
	c.captured[orderID] = capturedEntry{result: result, at: now}
}

func alreadyCaptured(body captureResponse) bool {
	return hasIssue(body, "ORDER_ALREADY_CAPTURED")
}

func hasIssue(body captureResponse, issue string) bool {
	for _, d := range body.Details {
		if d.Issue == issue {
			return true
		}
	}
	return false
}
