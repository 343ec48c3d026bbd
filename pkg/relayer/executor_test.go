package relayer

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chainsafe/bridge-relayer/pkg/queue"
)

const testOwner = "worker-1"

// leasedJob stores a fresh job and claims it for testOwner
func leasedJob(t *testing.T, h *harness, key string) *queue.Job {
	t.Helper()
	job := newTestJob(h.target.Direction(), key, "100")
	created, err := h.store.CreateJob(context.Background(), job)
	require.NoError(t, err)
	require.True(t, created)
	return h.claim(t, job.ID, testOwner)
}

func TestExecutor_PersistsBeforeBroadcast(t *testing.T) {
	ctx := context.Background()
	chain := newFakeChain(queue.DirectionSourceToDestination)
	h := newHarness(t, chain)
	job := leasedJob(t, h, "1")

	var persisted string
	chain.BroadcastFunc = func(_ int, tx *PreparedTx) error {
		stored, err := h.store.GetJob(ctx, job.ID)
		if err != nil {
			return err
		}
		persisted = stored.SubmittedTxRef
		return nil
	}

	ref, err := h.executor.Execute(ctx, job, testOwner)
	require.NoError(t, err)
	assert.Equal(t, "tx-1", ref)
	assert.Equal(t, "tx-1", persisted, "submission must be stored before broadcast")
	assert.Equal(t, uint64(101), h.job(t, job.ID).SubmittedExpiry)
}

func TestExecutor_AmbiguousBroadcastIsNotRepeated(t *testing.T) {
	ctx := context.Background()
	chain := newFakeChain(queue.DirectionSourceToDestination)
	h := newHarness(t, chain)
	job := leasedJob(t, h, "1")

	chain.BroadcastFunc = func(n int, tx *PreparedTx) error {
		if n == 1 {
			// the node accepted the action but the response was lost
			chain.land(tx.Ref)
			return Transient("rpc_timeout", errors.New("context deadline exceeded"))
		}
		return nil
	}

	_, err := h.executor.Execute(ctx, job, testOwner)
	require.Error(t, err)
	class, kind := Classify(err)
	assert.Equal(t, ClassTransient, class)
	assert.Equal(t, "rpc_timeout", kind)

	job = h.job(t, job.ID)
	require.Equal(t, "tx-1", job.SubmittedTxRef)

	ref, err := h.executor.Execute(ctx, job, testOwner)
	require.NoError(t, err)
	assert.Equal(t, "tx-1", ref)
	assert.Equal(t, 1, chain.Broadcasts())
	assert.Equal(t, 1, chain.Prepares())
}

func TestExecutor_DroppedSubmissionIsReplaced(t *testing.T) {
	ctx := context.Background()
	chain := newFakeChain(queue.DirectionSourceToDestination)
	h := newHarness(t, chain)
	job := leasedJob(t, h, "1")

	chain.BroadcastFunc = func(n int, _ *PreparedTx) error {
		if n == 1 {
			return Transient("rpc_error", errors.New("connection reset"))
		}
		return nil
	}

	_, err := h.executor.Execute(ctx, job, testOwner)
	require.Error(t, err)

	job = h.job(t, job.ID)
	require.Equal(t, "tx-1", job.SubmittedTxRef)

	ref, err := h.executor.Execute(ctx, job, testOwner)
	require.NoError(t, err)
	assert.Equal(t, "tx-2", ref)
	assert.Equal(t, "tx-2", h.job(t, job.ID).SubmittedTxRef)
}

func TestExecutor_PermanentBroadcastClearsSubmission(t *testing.T) {
	ctx := context.Background()
	chain := newFakeChain(queue.DirectionSourceToDestination)
	h := newHarness(t, chain)
	job := leasedJob(t, h, "1")

	chain.BroadcastFunc = func(int, *PreparedTx) error {
		return Permanent("invalid_account", errors.New("account not owned by token program"))
	}

	_, err := h.executor.Execute(ctx, job, testOwner)
	require.Error(t, err)
	class, kind := Classify(err)
	assert.Equal(t, ClassPermanent, class)
	assert.Equal(t, "invalid_account", kind)
	assert.Empty(t, h.job(t, job.ID).SubmittedTxRef)
}

func TestExecutor_ConfirmationTimeoutKeepsSubmission(t *testing.T) {
	ctx := context.Background()
	chain := newFakeChain(queue.DirectionSourceToDestination)
	h := newHarness(t, chain)
	job := leasedJob(t, h, "1")

	chain.StatusFunc = func(string) (*TxResult, error) {
		return &TxResult{State: TxPending}, nil
	}

	_, err := h.executor.Execute(ctx, job, testOwner)
	require.Error(t, err)
	class, kind := Classify(err)
	assert.Equal(t, ClassTransient, class)
	assert.Equal(t, "confirmation_timeout", kind)
	assert.Equal(t, "tx-1", h.job(t, job.ID).SubmittedTxRef)
}

func TestExecutor_FailedOnChain(t *testing.T) {
	ctx := context.Background()
	chain := newFakeChain(queue.DirectionSourceToDestination)
	h := newHarness(t, chain)
	job := leasedJob(t, h, "1")

	chain.StatusFunc = func(string) (*TxResult, error) {
		return &TxResult{State: TxFailed, Reason: Permanent("custom_program_error", errors.New("0x1"))}, nil
	}

	_, err := h.executor.Execute(ctx, job, testOwner)
	require.Error(t, err)
	class, kind := Classify(err)
	assert.Equal(t, ClassPermanent, class)
	assert.Equal(t, "custom_program_error", kind)
	assert.Empty(t, h.job(t, job.ID).SubmittedTxRef)
}

func TestExecutor_DroppedWhileWaiting(t *testing.T) {
	ctx := context.Background()
	chain := newFakeChain(queue.DirectionSourceToDestination)
	h := newHarness(t, chain)
	job := leasedJob(t, h, "1")

	chain.StatusFunc = func(string) (*TxResult, error) {
		return &TxResult{State: TxDropped}, nil
	}

	_, err := h.executor.Execute(ctx, job, testOwner)
	class, kind := Classify(err)
	assert.Equal(t, ClassTransient, class)
	assert.Equal(t, "tx_dropped", kind)
	assert.Empty(t, h.job(t, job.ID).SubmittedTxRef)
}

func TestExecutor_ResumePending(t *testing.T) {
	ctx := context.Background()
	chain := newFakeChain(queue.DirectionSourceToDestination)
	h := newHarness(t, chain)
	job := leasedJob(t, h, "1")
	require.NoError(t, h.store.RecordSubmission(ctx, job.ID, testOwner, "tx-earlier", 500, testEpoch))
	job = h.job(t, job.ID)

	var calls atomic.Int32
	chain.StatusFunc = func(ref string) (*TxResult, error) {
		if ref != "tx-earlier" {
			return nil, errors.New("unexpected ref " + ref)
		}
		if calls.Add(1) < 3 {
			return &TxResult{State: TxPending}, nil
		}
		return &TxResult{State: TxConfirmed}, nil
	}

	ref, err := h.executor.Execute(ctx, job, testOwner)
	require.NoError(t, err)
	assert.Equal(t, "tx-earlier", ref)
	assert.Zero(t, chain.Prepares())
	assert.Zero(t, chain.Broadcasts())
}

func TestExecutor_ResumeStatusUnknown(t *testing.T) {
	ctx := context.Background()
	chain := newFakeChain(queue.DirectionSourceToDestination)
	h := newHarness(t, chain)
	job := leasedJob(t, h, "1")
	require.NoError(t, h.store.RecordSubmission(ctx, job.ID, testOwner, "tx-earlier", 500, testEpoch))
	job = h.job(t, job.ID)

	chain.StatusFunc = func(string) (*TxResult, error) {
		return nil, errors.New("node unreachable")
	}

	_, err := h.executor.Execute(ctx, job, testOwner)
	class, kind := Classify(err)
	assert.Equal(t, ClassTransient, class)
	assert.Equal(t, "status_unknown", kind)
	assert.Zero(t, chain.Prepares(), "nothing is sent while the earlier action is unresolved")
	assert.Equal(t, "tx-earlier", h.job(t, job.ID).SubmittedTxRef)
}

func TestExecutor_PrepareError(t *testing.T) {
	ctx := context.Background()
	chain := newFakeChain(queue.DirectionSourceToDestination)
	chain.PrepareErr = Transient("blockhash_unavailable", errors.New("no blockhash"))
	h := newHarness(t, chain)
	job := leasedJob(t, h, "1")

	_, err := h.executor.Execute(ctx, job, testOwner)
	_, kind := Classify(err)
	assert.Equal(t, "blockhash_unavailable", kind)
	assert.Empty(t, h.job(t, job.ID).SubmittedTxRef)
	assert.Zero(t, chain.Broadcasts())
}

func TestExecutor_UnknownDirection(t *testing.T) {
	h := newHarness(t, newFakeChain(queue.DirectionSourceToDestination))
	job := newTestJob(queue.DirectionDestinationToSource, "x", "1")

	_, err := h.executor.Execute(context.Background(), job, testOwner)
	class, kind := Classify(err)
	assert.Equal(t, ClassPermanent, class)
	assert.Equal(t, "no_target", kind)
}
