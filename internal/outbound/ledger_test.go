package outbound

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLedgerClaimIsSingleShot(t *testing.T) {
	l := NewLedger()
	l.Add("req-1")

	assert.True(t, l.Claim("req-1"))
	// Whoever came second sees the entry already claimed.
	assert.False(t, l.Claim("req-1"))
	assert.Equal(t, 0, l.Len())
}

func TestLedgerClaimUnknownID(t *testing.T) {
	l := NewLedger()
	assert.False(t, l.Claim("never-added"))
}
