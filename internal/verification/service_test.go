package verification

import (
	"context"
	"sync"
	"testing"
	"time"

	domver "pasarela/internal/domain/verification"

	"github.com/stretchr/testify/require"
)

// memoryStore mimics the relational store's semantics, including the
// conditional consume.
type memoryStore struct {
	mu    sync.Mutex
	seq   int64
	codes map[int64]*domver.Code
}

func newMemoryStore() *memoryStore {
	return &memoryStore{codes: map[int64]*domver.Code{}}
}

func (m *memoryStore) SupersedeActive(ctx context.Context, email, clientCode string, queryType domver.QueryType) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.codes {
		if c.Email == email && c.ClientCode == clientCode && c.QueryType == queryType &&
			c.Status == domver.StatusActive && !c.Used {
			c.Status = domver.StatusSuperseded
		}
	}
	return nil
}

func (m *memoryStore) Create(ctx context.Context, code domver.Code) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	code.ID = m.seq
	m.codes[code.ID] = &code
	return code.ID, nil
}

func (m *memoryStore) Find(ctx context.Context, email, clientCode string, queryType domver.QueryType, code string) (domver.Code, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var best *domver.Code
	for _, c := range m.codes {
		if c.Email == email && c.ClientCode == clientCode && c.QueryType == queryType && c.Code == code {
			if best == nil || c.ID > best.ID {
				best = c
			}
		}
	}
	if best == nil || best.Status == domver.StatusSuperseded {
		return domver.Code{}, domver.ErrNotFound
	}
	return *best, nil
}

func (m *memoryStore) ConsumeOnce(ctx context.Context, id int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.codes[id]
	if !ok || c.Used {
		return false, nil
	}
	c.Used = true
	return true, nil
}

func TestIssueAndVerify(t *testing.T) {
	store := newMemoryStore()
	svc := NewService(store, nil, nil, 10*time.Minute)

	code, err := svc.Issue(context.Background(), "Ana@Example.com", "C-9", domver.QueryInvoices)
	require.NoError(t, err)
	require.Len(t, code.Code, 6)

	// Email was normalized on issue; verify with the normalized form.
	err = svc.Verify(context.Background(), "ana@example.com", code.Code, "C-9", domver.QueryInvoices)
	require.NoError(t, err)
}

func TestVerifySingleUse(t *testing.T) {
	store := newMemoryStore()
	svc := NewService(store, nil, nil, 10*time.Minute)

	code, err := svc.Issue(context.Background(), "ana@example.com", "C-9", domver.QueryInvoices)
	require.NoError(t, err)

	require.NoError(t, svc.Verify(context.Background(), "ana@example.com", code.Code, "C-9", domver.QueryInvoices))

	err = svc.Verify(context.Background(), "ana@example.com", code.Code, "C-9", domver.QueryInvoices)
	require.ErrorIs(t, err, domver.ErrAlreadyUsed)
}

func TestVerifySupersededCodeIsNotFound(t *testing.T) {
	store := newMemoryStore()
	svc := NewService(store, nil, nil, 10*time.Minute)

	old, err := svc.Issue(context.Background(), "ana@example.com", "C-9", domver.QueryInvoices)
	require.NoError(t, err)
	fresh, err := svc.Issue(context.Background(), "ana@example.com", "C-9", domver.QueryInvoices)
	require.NoError(t, err)

	// The superseded code verifies as if it never existed.
	if old.Code != fresh.Code {
		err = svc.Verify(context.Background(), "ana@example.com", old.Code, "C-9", domver.QueryInvoices)
		require.ErrorIs(t, err, domver.ErrNotFound)
	}

	require.NoError(t, svc.Verify(context.Background(), "ana@example.com", fresh.Code, "C-9", domver.QueryInvoices))
}

func TestVerifyTupleMismatchFailsClosed(t *testing.T) {
	store := newMemoryStore()
	svc := NewService(store, nil, nil, 10*time.Minute)

	code, err := svc.Issue(context.Background(), "ana@example.com", "C-9", domver.QueryInvoices)
	require.NoError(t, err)

	cases := []struct {
		email, clientCode string
		qt                domver.QueryType
	}{
		{"otra@example.com", "C-9", domver.QueryInvoices},
		{"ana@example.com", "C-10", domver.QueryInvoices},
		{"ana@example.com", "C-9", domver.QueryReceipts},
	}
	for _, tc := range cases {
		err := svc.Verify(context.Background(), tc.email, code.Code, tc.clientCode, tc.qt)
		require.ErrorIs(t, err, domver.ErrNotFound)
	}

	// The mismatched attempts must not burn the real code.
	require.NoError(t, svc.Verify(context.Background(), "ana@example.com", code.Code, "C-9", domver.QueryInvoices))
}

func TestVerifyExpiredCode(t *testing.T) {
	store := newMemoryStore()
	svc := NewService(store, nil, nil, -time.Minute)

	code, err := svc.Issue(context.Background(), "ana@example.com", "C-9", domver.QueryReceipts)
	require.NoError(t, err)

	err = svc.Verify(context.Background(), "ana@example.com", code.Code, "C-9", domver.QueryReceipts)
	require.ErrorIs(t, err, domver.ErrExpired)
}
