package cobalt

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/url"
	"time"

	"pasarela/internal/credentials"
	"pasarela/internal/domain/charge"
	"pasarela/internal/provider"
	"pasarela/internal/provider/base"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Client implements the Cobalt card-processing adapter: OAuth2
// client-credentials for tokens, then a direct card sale call.
type Client struct {
	http     *base.HTTPClient
	resolver *credentials.Resolver
	tokens   *provider.TokenSource
}

func New(baseURL string, timeout time.Duration, resolver *credentials.Resolver, tokens *provider.TokenSource) *Client {
	h := base.NewHTTPClient("cobalt", timeout)
	h.SetBaseURL(baseURL)
	return &Client{http: h, resolver: resolver, tokens: tokens}
}

func (c *Client) Name() string { return "Cobalt Card Processing" }

// Authenticate runs the client-credentials grant, caching the token per
// company under single-flight.
func (c *Client) Authenticate(ctx context.Context, companyCode string) (provider.Token, error) {
	creds, ok := c.resolver.Cobalt(companyCode)
	if !ok {
		return provider.Token{}, &provider.Error{
			Class:   provider.ClassAuth,
			Code:    "missing_credentials",
			Message: "no cobalt credentials for company " + companyCode,
		}
	}

	return c.tokens.Get(ctx, "cobalt", companyCode, func(ctx context.Context) (provider.Token, error) {
		return c.fetchToken(ctx, creds)
	})
}

func (c *Client) fetchToken(ctx context.Context, creds credentials.Cobalt) (provider.Token, error) {
	basic := base64.StdEncoding.EncodeToString([]byte(creds.ClientID + ":" + creds.ClientSecret))
	form := url.Values{"grant_type": {"client_credentials"}}

	resp, err := c.http.PostForm(ctx, "/oauth/token", form, map[string]string{
		"Authorization": "Basic " + basic,
	})
	if err != nil {
		return provider.Token{}, provider.ClassifyTransport(err)
	}
	if !resp.IsSuccess() {
		return provider.Token{}, &provider.Error{
			Class:   provider.ClassAuth,
			Code:    fmt.Sprintf("http_%d", resp.StatusCode),
			Message: "cobalt token endpoint rejected credentials",
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
			Message: "cannot parse cobalt token response", Err: err,
		}
	}
	if body.ExpiresIn == 0 {
		body.ExpiresIn = 3600
	}
	return provider.Token{
		AccessToken: body.AccessToken,
		TokenType:   body.TokenType,
		ExpiresAt:   time.Now().Add(time.Duration(body.ExpiresIn) * time.Second),
	}, nil
}

// saleResponse is Cobalt's wire shape for a sale.
type saleResponse struct {
	TransactionID     string `json:"transactionId"`
	ResponseCode      string `json:"responseCode"`
	ResponseMessage   string `json:"responseMessage"`
	AuthorizationCode string `json:"authorizationCode"`
	ErrorCode         string `json:"errorCode"`
	ErrorMessage      string `json:"errorMessage"`
}

// Charge submits a card sale. Every submission carries a fresh order number:
// a caller retry must look like a new transaction to the processor, so an
// ambiguous duplicate is never silently replayed.
func (c *Client) Charge(ctx context.Context, token provider.Token, req charge.Request) (provider.Result, error) {
	if req.Card == nil {
		return provider.Result{}, &provider.Error{
			Class: provider.ClassRejected, Code: "missing_card",
			Message: "cobalt charge without card details",
		}
	}

	orderNumber := "CB-" + uuid.NewString()
	payload := map[string]any{
		"pan":            req.Card.Number,
		"expirationDate": req.Card.Expiry,
		"cvv":            req.Card.CVV,
		"cardHolderName": req.Card.HolderName,
		"amount":         req.Amount.StringFixed(2),
		"taxAmount":      req.Tax.StringFixed(2),
		"tipAmount":      req.Tip.StringFixed(2),
		"currencyCode":   req.Currency,
		"orderNumber":    orderNumber,
		"description":    req.Description,
	}

	resp, err := c.http.PostJSON(ctx, "/api/v1/transactions/sale", payload, map[string]string{
		"Authorization": "Bearer " + token.AccessToken,
	})
	if err != nil {
		return provider.Result{}, provider.ClassifyTransport(err)
	}
	if resp.StatusCode == 401 {
		return provider.Result{}, &provider.Error{
			Class: provider.ClassAuth, Code: "token_rejected",
			Message: "cobalt rejected the bearer token",
		}
	}
	if !resp.IsSuccess() {
		return provider.Result{}, &provider.Error{
			Class:   provider.ClassRejected,
			Code:    fmt.Sprintf("http_%d", resp.StatusCode),
			Message: "cobalt sale endpoint returned " + resp.String(),
		}
	}

	var sale saleResponse
	if err := resp.UnmarshalJSON(&sale); err != nil {
		return provider.Result{}, &provider.Error{
			Class: provider.ClassRejected, Code: "bad_response",
			Message: "cannot parse cobalt sale response", Err: err,
		}
	}
	if sale.ErrorCode != "" {
		return provider.Result{}, &provider.Error{
			Class: provider.ClassRejected, Code: sale.ErrorCode, Message: sale.ErrorMessage,
		}
	}

	result := provider.Result{
		ProviderTxID: sale.TransactionID,
		ResponseCode: sale.ResponseCode,
		AuthCode:     sale.AuthorizationCode,
		Raw:          resp.Body,
	}
	if sale.ResponseCode == "00" {
		result.Status = provider.StatusApproved
	} else {
		result.Status = provider.StatusDeclined
	}

	log.Info().
		Str("provider", "cobalt").
		Str("order_number", orderNumber).
		Str("transaction_id", sale.TransactionID).
		Str("response_code", sale.ResponseCode).
		Msg("cobalt sale submitted")

	return result, nil
}
