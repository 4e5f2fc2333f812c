package yappy

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"time"

	"pasarela/internal/credentials"
	"pasarela/internal/domain/charge"
	"pasarela/internal/provider"
	"pasarela/internal/provider/base"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Client implements the Yappy mobile-payments adapter. Every order flow
// starts with a merchant/domain validation whose token is short-lived and
// must not be reused outside that single flow, so nothing is cached here.
type Client struct {
	http     *base.HTTPClient
	resolver *credentials.Resolver
}

func New(baseURL string, timeout time.Duration, resolver *credentials.Resolver) *Client {
	h := base.NewHTTPClient("yappy", timeout)
	h.SetBaseURL(baseURL)
	return &Client{http: h, resolver: resolver}
}

func (c *Client) Name() string { return "Yappy" }

// Authenticate validates the merchant and registered domain. The returned
// token is only good for the order that immediately follows.
func (c *Client) Authenticate(ctx context.Context, companyCode string) (provider.Token, error) {
	creds, ok := c.resolver.Yappy(companyCode)
	if !ok {
		return provider.Token{}, &provider.Error{
			Class:   provider.ClassAuth,
			Code:    "missing_credentials",
			Message: "no yappy credentials for company " + companyCode,
		}
	}

	payload := map[string]any{
		"merchantId": creds.MerchantID,
		"urlDomain":  creds.Domain,
	}
	resp, err := c.http.PostJSON(ctx, "/payments/validate/merchant", payload, nil)
	if err != nil {
		return provider.Token{}, provider.ClassifyTransport(err)
	}
	if !resp.IsSuccess() {
		return provider.Token{}, &provider.Error{
			Class:   provider.ClassAuth,
			Code:    fmt.Sprintf("http_%d", resp.StatusCode),
			Message: "yappy merchant validation failed",
		}
	}

	var body struct {
		Success bool `json:"success"`
		Body    struct {
			Token     string `json:"token"`
			EpochTime int64  `json:"epochTime"`
		} `json:"body"`
	}
	if err := resp.UnmarshalJSON(&body); err != nil {
		return provider.Token{}, &provider.Error{
			Class: provider.ClassAuth, Code: "bad_validation_response",
			Message: "cannot parse yappy validation response", Err: err,
		}
	}
	if !body.Success || body.Body.Token == "" {
		return provider.Token{}, &provider.Error{
			Class: provider.ClassAuth, Code: "merchant_not_validated",
			Message: "yappy did not validate merchant/domain",
		}
	}

	return provider.Token{
		AccessToken: body.Body.Token,
		TokenType:   "Bearer",
		ExpiresAt:   time.Now().Add(5 * time.Minute),
	}, nil
}

type orderResponse struct {
	TransactionID string `json:"transactionId"`
	Status        string `json:"status"`
	Message       string `json:"message"`
}

// Charge creates a signed order. Each submission gets a fresh order id so a
// caller retry never collides with the processor's duplicate detection.
func (c *Client) Charge(ctx context.Context, token provider.Token, req charge.Request) (provider.Result, error) {
	creds, ok := c.resolver.Yappy(req.CompanyCode)
	if !ok {
		return provider.Result{}, &provider.Error{
			Class:   provider.ClassAuth,
			Code:    "missing_credentials",
			Message: "no yappy credentials for company " + req.CompanyCode,
		}
	}

	orderID := "YP-" + uuid.NewString()
	epoch := time.Now().UnixMilli()
	subtotal := req.Amount.Sub(req.Tax)

	payload := map[string]any{
		"merchantId":  creds.MerchantID,
		"orderId":     orderID,
		"domain":      creds.Domain,
		"paymentDate": epoch,
		"aliasYappy":  req.Customer.Phone,
		"subtotal":    subtotal.StringFixed(2),
		"taxes":       req.Tax.StringFixed(2),
		"total":       req.Amount.StringFixed(2),
		"signature":   sign(creds.SecretKey, creds.MerchantID, orderID, req.Amount.StringFixed(2), epoch),
	}

	resp, err := c.http.PostJSON(ctx, "/payments/payment-wc", payload, map[string]string{
		"Authorization": "Bearer " + token.AccessToken,
	})
	if err != nil {
		return provider.Result{}, provider.ClassifyTransport(err)
	}
	if resp.StatusCode == 401 {
		return provider.Result{}, &provider.Error{
			Class: provider.ClassAuth, Code: "token_rejected",
			Message: "yappy rejected the validation token",
		}
	}
	if !resp.IsSuccess() {
		return provider.Result{}, &provider.Error{
			Class:   provider.ClassRejected,
			Code:    fmt.Sprintf("http_%d", resp.StatusCode),
			Message: "yappy order creation failed: " + resp.String(),
		}
	}

	var order orderResponse
	if err := resp.UnmarshalJSON(&order); err != nil {
		return provider.Result{}, &provider.Error{
			Class: provider.ClassRejected, Code: "bad_response",
			Message: "cannot parse yappy order response", Err: err,
		}
	}

	result := provider.Result{
		ProviderTxID: order.TransactionID,
		ResponseCode: order.Status,
		Raw:          resp.Body,
	}
	switch order.Status {
	case "E": // ejecutado
		result.Status = provider.StatusApproved
	case "R", "C": // rechazado, cancelado
		result.Status = provider.StatusDeclined
	default:
		result.Status = provider.StatusError
	}

	log.Info().
		Str("provider", "yappy").
		Str("order_id", orderID).
		Str("transaction_id", order.TransactionID).
		Str("status", order.Status).
		Msg("yappy order submitted")

	return result, nil
}

// sign computes the HMAC-SHA256 order signature over the merchant, order,
// total and epoch timestamp.
func sign(secret, merchantID, orderID, total string, epoch int64) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(merchantID + orderID + total + strconv.FormatInt(epoch, 10)))
	return hex.EncodeToString(mac.Sum(nil))
}
