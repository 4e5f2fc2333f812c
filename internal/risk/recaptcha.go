package risk

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"pasarela/internal/provider/base"
)

// Assessment is the outcome of a risk check.
type Assessment struct {
	Valid   bool
	Score   float64
	Action  string
	Reasons []string
}

// Scorer verifies a client-supplied risk token against an expected action.
// A nil Scorer disables the gate.
type Scorer interface {
	Verify(ctx context.Context, token, expectedAction string) (Assessment, error)
}

// Recaptcha calls the siteverify endpoint.
type Recaptcha struct {
	http     *base.HTTPClient
	secret   string
	minScore float64
}

func NewRecaptcha(secret string, minScore float64) *Recaptcha {
	h := base.NewHTTPClient("recaptcha", 10*time.Second)
	h.SetBaseURL("https://www.google.com")
	return &Recaptcha{http: h, secret: secret, minScore: minScore}
}

func (r *Recaptcha) Verify(ctx context.Context, token, expectedAction string) (Assessment, error) {
	form := url.Values{
		"secret":   {r.secret},
		"response": {token},
	}
	resp, err := r.http.PostForm(ctx, "/recaptcha/api/siteverify", form, nil)
	if err != nil {
		return Assessment{}, fmt.Errorf("recaptcha verify: %w", err)
	}

	var body struct {
		Success    bool     `json:"success"`
		Score      float64  `json:"score"`
		Action     string   `json:"action"`
		ErrorCodes []string `json:"error-codes"`
	}
	if err := resp.UnmarshalJSON(&body); err != nil {
		return Assessment{}, fmt.Errorf("recaptcha verify: %w", err)
	}

	a := Assessment{
		Valid:   body.Success && body.Score >= r.minScore,
		Score:   body.Score,
		Action:  body.Action,
		Reasons: body.ErrorCodes,
	}
	if expectedAction != "" && body.Action != expectedAction {
		a.Valid = false
		a.Reasons = append(a.Reasons, "action_mismatch")
	}
	return a, nil
}
