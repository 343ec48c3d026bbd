package relayer

import (
	"math/big"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chainsafe/bridge-relayer/pkg/queue"
)

func TestJobFactory_Build(t *testing.T) {
	bounds, err := NewBounds("1", "1000")
	require.NoError(t, err)
	f := NewJobFactory(newFakeChain(queue.DirectionSourceToDestination), 18, 9, bounds)

	job := f.Build(&Event{
		Key:       "7",
		TxRef:     "0xabc",
		Position:  120,
		Amount:    tokens(100),
		Sender:    "0xsender",
		Recipient: "wallet",
	}, testEpoch)

	assert.Equal(t, "s2d:7", job.ID)
	assert.Equal(t, queue.DirectionSourceToDestination, job.Direction)
	assert.Equal(t, queue.StatusPending, job.Status)
	assert.Equal(t, tokens(100).String(), job.SourceAmount)
	assert.Equal(t, "100000000000", job.Amount)
	assert.Equal(t, uint64(120), job.SourcePosition)
	assert.Equal(t, testEpoch, job.NextAttemptAt)
	assert.Zero(t, job.Attempts)
}

func TestJobFactory_BuildRejects(t *testing.T) {
	bounds, err := NewBounds("1", "1000")
	require.NoError(t, err)
	f := NewJobFactory(newFakeChain(queue.DirectionSourceToDestination), 18, 9, bounds)

	tests := []struct {
		name      string
		amount    *big.Int
		recipient string
	}{
		{"invalid recipient", tokens(5), "invalid"},
		{"empty recipient", tokens(5), ""},
		{"below minimum", big.NewInt(1), "wallet"},
		{"above maximum", tokens(1001), "wallet"},
		{"nil amount", nil, "wallet"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			job := f.Build(&Event{Key: "k", Amount: tt.amount, Recipient: tt.recipient}, testEpoch)
			assert.Equal(t, queue.StatusFailed, job.Status)
			assert.NotEmpty(t, job.LastError)
			require.NotNil(t, job.FailedAt)
		})
	}
}

func TestJobFactory_ZeroAfterConversion(t *testing.T) {
	f := NewJobFactory(newFakeChain(queue.DirectionSourceToDestination), 18, 9, Bounds{})
	job := f.Build(&Event{Key: "dust", Amount: big.NewInt(999_999_999), Recipient: "wallet"}, testEpoch)

	assert.Equal(t, queue.StatusFailed, job.Status)
	assert.Contains(t, job.LastError, "converts to zero")
}

func TestJobFactory_Validate(t *testing.T) {
	f := NewJobFactory(newFakeChain(queue.DirectionSourceToDestination), 18, 9, Bounds{})
	job := f.Build(&Event{Key: "1", Amount: tokens(1), Recipient: "wallet"}, testEpoch)
	require.NoError(t, f.Validate(job))

	job.Recipient = "invalid"
	assert.ErrorIs(t, f.Validate(job), errInvalidRecipient)

	job.Recipient = "wallet"
	job.Amount = "abc"
	assert.ErrorIs(t, f.Validate(job), errInvalidAmount)
}

func TestJobFactory_HostileRecipient(t *testing.T) {
	f := NewJobFactory(newFakeChain(queue.DirectionSourceToDestination), 18, 9, Bounds{})

	for name, recipient := range map[string]string{
		"oversized": strings.Repeat("w", 300),
		"binary":    "\xff\x00",
	} {
		t.Run(name, func(t *testing.T) {
			job := f.Build(&Event{Key: name, Amount: tokens(1), Recipient: recipient}, testEpoch)

			assert.Equal(t, queue.StatusFailed, job.Status)
			assert.Contains(t, job.LastError, "not a printable address")
			assert.LessOrEqual(t, len(job.Recipient), queue.MaxRecipientLen)
			assert.True(t, utf8.ValidString(job.Recipient))
			assert.True(t, utf8.ValidString(job.LastError))
			assert.NotContains(t, job.LastError, "\x00")
		})
	}
}
