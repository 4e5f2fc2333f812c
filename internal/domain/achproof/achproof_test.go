package achproof

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func amount(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func validProof(t *testing.T) *Proof {
	t.Helper()
	p, err := New("ACME", "C-9", "F-100", "ACH-555", amount("120.00"), []byte{0xff, 0xd8}, "image/jpeg")
	require.NoError(t, err)
	return p
}

func TestNewStartsPending(t *testing.T) {
	p := validProof(t)
	require.Equal(t, StatusPending, p.Status)
	require.False(t, p.Terminal())
	require.Nil(t, p.DecidedAt)
}

func TestNewValidation(t *testing.T) {
	_, err := New("", "C-9", "F-100", "", amount("10.00"), []byte{1}, "image/png")
	require.Error(t, err)

	_, err = New("ACME", "C-9", "F-100", "", amount("0"), []byte{1}, "image/png")
	require.Error(t, err)

	_, err = New("ACME", "C-9", "F-100", "", amount("10.00"), nil, "image/png")
	require.Error(t, err)
}

func TestDecideApprove(t *testing.T) {
	p := validProof(t)
	require.NoError(t, p.Decide(true, "matched against statement"))
	require.Equal(t, StatusProcessed, p.Status)
	require.True(t, p.Terminal())
	require.NotNil(t, p.DecidedAt)
}

func TestDecideReject(t *testing.T) {
	p := validProof(t)
	require.NoError(t, p.Decide(false, "amount does not match"))
	require.Equal(t, StatusRejected, p.Status)
	require.True(t, p.Terminal())
}

func TestDecideIsTerminal(t *testing.T) {
	p := validProof(t)
	require.NoError(t, p.Decide(true, ""))

	// A decided proof is immutable; a second decision must not flip it.
	err := p.Decide(false, "changed my mind")
	require.Error(t, err)
	require.Equal(t, StatusProcessed, p.Status)
}
