package verification

import (
	"context"
	"fmt"
	"time"

	"pasarela/internal/audit"
	"pasarela/internal/domain/verification"
	"pasarela/internal/notify"

	"github.com/rs/zerolog/log"
)

// Store persists verification codes. Find must match all four fields of the
// tuple plus the code itself; anything less returns the domain not-found
// error.
type Store interface {
	SupersedeActive(ctx context.Context, email, clientCode string, queryType verification.QueryType) error
	Create(ctx context.Context, code verification.Code) (int64, error)
	Find(ctx context.Context, email, clientCode string, queryType verification.QueryType, code string) (verification.Code, error)

	// ConsumeOnce marks the code used if and only if it is still unused,
	// reporting whether this call won the consume. Single-use is enforced
	// here, under the store's atomicity, not in application memory.
	ConsumeOnce(ctx context.Context, id int64) (bool, error)
}

// Service issues and verifies one-time codes gating sensitive ERP queries.
type Service struct {
	store      Store
	dispatcher *notify.Dispatcher
	audit      *audit.Resilient
	ttl        time.Duration
}

func NewService(store Store, dispatcher *notify.Dispatcher, sink *audit.Resilient, ttl time.Duration) *Service {
	if ttl == 0 {
		ttl = 10 * time.Minute
	}
	if sink == nil {
		sink = audit.NewResilient(nil)
	}
	return &Service{store: store, dispatcher: dispatcher, audit: sink, ttl: ttl}
}

// Issue generates a fresh code for the tuple, superseding any prior unused
// code for the same (email, clientCode, queryType), and emails it.
func (s *Service) Issue(ctx context.Context, email, clientCode string, queryType verification.QueryType) (verification.Code, error) {
	code, err := verification.New(email, clientCode, queryType, s.ttl)
	if err != nil {
		return verification.Code{}, err
	}

	if err := s.store.SupersedeActive(ctx, code.Email, code.ClientCode, queryType); err != nil {
		return verification.Code{}, fmt.Errorf("supersede prior codes: %w", err)
	}
	id, err := s.store.Create(ctx, code)
	if err != nil {
		return verification.Code{}, fmt.Errorf("store verification code: %w", err)
	}
	code.ID = id

	s.audit.Record(ctx, audit.Event{
		Type:      audit.EventVerificationIssued,
		Reference: fmt.Sprintf("%d", id),
		Detail: map[string]any{
			"email":       code.Email,
			"client_code": code.ClientCode,
			"query_type":  string(queryType),
			"expires_at":  code.ExpiresAt,
		},
	})

	if s.dispatcher != nil {
		s.dispatcher.Dispatch(ctx, notify.Message{
			To:      code.Email,
			Subject: "Código de verificación",
			HTMLBody: fmt.Sprintf(
				"<p>Su código de verificación es <b>%s</b>. Vence en %d minutos.</p>",
				code.Code, int(s.ttl.Minutes()),
			),
		})
	}

	return code, nil
}

// Verify consumes a code. All of email, code, clientCode and queryType must
// match the stored record; on success the code is marked used exactly once.
// Superseded codes verify as not found: the caller learns nothing about
// whether an older code ever existed.
func (s *Service) Verify(ctx context.Context, email, code, clientCode string, queryType verification.QueryType) error {
	stored, err := s.store.Find(ctx, email, clientCode, queryType, code)
	if err != nil {
		return err
	}

	if err := stored.Consumable(time.Now()); err != nil {
		return err
	}

	won, err := s.store.ConsumeOnce(ctx, stored.ID)
	if err != nil {
		return fmt.Errorf("consume verification code: %w", err)
	}
	if !won {
		return verification.ErrAlreadyUsed
	}

	s.audit.Record(ctx, audit.Event{
		Type:      audit.EventVerificationConsumed,
		Reference: fmt.Sprintf("%d", stored.ID),
		Detail: map[string]any{
			"email":       stored.Email,
			"client_code": stored.ClientCode,
			"query_type":  string(queryType),
		},
	})

	log.Debug().
		Str("email", stored.Email).
		Str("client_code", stored.ClientCode).
		Msg("verification code consumed")

	return nil
}
