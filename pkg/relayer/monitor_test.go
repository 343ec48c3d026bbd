package relayer

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chainsafe/bridge-relayer/pkg/queue"
)

func TestMonitor_Snapshot(t *testing.T) {
	ctx := context.Background()
	chain := newFakeChain(queue.DirectionSourceToDestination)
	h := newHarness(t, chain)
	h.lock("ok", 5, tokens(1), "wallet")
	h.lock("bad", 6, tokens(1), "invalid")
	h.tick(t)

	_, err := h.store.CreateJob(ctx, newTestJob(queue.DirectionSourceToDestination, "queued", "100"))
	require.NoError(t, err)
	h.clock.Advance(10 * time.Minute)

	snap, err := h.monitor.Snapshot(ctx)
	require.NoError(t, err)

	assert.Equal(t, 1, snap.Counts[queue.StatusCompleted])
	assert.Equal(t, 1, snap.Counts[queue.StatusFailed])
	assert.Equal(t, 1, snap.Counts[queue.StatusPending])
	assert.Equal(t, 0, snap.Counts[queue.StatusProcessing])
	assert.Equal(t, uint64(6), snap.Positions[h.watcher.Name()])
	assert.InDelta(t, 600, snap.OldestPendingAge, 0.001)
	require.NotNil(t, snap.NextRetryAt)

	require.Len(t, snap.Balances, 1)
	assert.Equal(t, "5", snap.Balances[0].Amount)
	assert.False(t, snap.Balances[0].Low)

	assert.True(t, snap.Alert)
	assert.Equal(t, []string{"1 failed job(s)"}, snap.AlertReasons)
}

func TestMonitor_LowBalance(t *testing.T) {
	chain := newFakeChain(queue.DirectionSourceToDestination)
	chain.balance = big.NewInt(100_000_000)
	h := newHarness(t, chain)

	snap, err := h.monitor.Snapshot(context.Background())
	require.NoError(t, err)

	require.Len(t, snap.Balances, 1)
	assert.Equal(t, "0.1", snap.Balances[0].Amount)
	assert.True(t, snap.Balances[0].Low)
	assert.True(t, snap.Alert)
	require.Len(t, snap.AlertReasons, 1)
	assert.Contains(t, snap.AlertReasons[0], "balance 0.1 below 1")
}

func TestMonitor_BalanceErrorIsReported(t *testing.T) {
	chain := newFakeChain(queue.DirectionSourceToDestination)
	chain.BalanceErr = errors.New("rpc down")
	h := newHarness(t, chain)

	snap, err := h.monitor.Snapshot(context.Background())
	require.NoError(t, err)
	require.Len(t, snap.Balances, 1)
	assert.Equal(t, "rpc down", snap.Balances[0].Error)
	assert.False(t, snap.Alert)
}
