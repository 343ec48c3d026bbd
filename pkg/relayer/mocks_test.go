package relayer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"github.com/chainsafe/bridge-relayer/pkg/ethereum"
	"github.com/chainsafe/bridge-relayer/pkg/queue"
	"github.com/chainsafe/bridge-relayer/pkg/solana"
)

var testEpoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// testClock is a virtual clock shared by every component of a harness
type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func newTestClock() *testClock {
	return &testClock{t: testEpoch}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// fakeSource serves a fixed list of events. Position on each event decides the range it
// belongs to.
type fakeSource struct {
	mu       sync.Mutex
	name     string
	dir      queue.Direction
	head     uint64
	depth    uint64
	start    uint64
	maxRange uint64
	events   []*Event

	HeadErr   error
	FetchErr  error
	FetchFunc func(from, to uint64) ([]*Event, error)
	fetches   [][2]uint64
}

func newFakeSource(dir queue.Direction) *fakeSource {
	return &fakeSource{name: "fake_" + dir.Short(), dir: dir}
}

func (s *fakeSource) Name() string { return s.name }
func (s *fakeSource) Direction() queue.Direction { return s.dir }
func (s *fakeSource) ConfirmationDepth() uint64 { return s.depth }
func (s *fakeSource) StartPosition() uint64 { return s.start }
func (s *fakeSource) MaxRange() uint64 { return s.maxRange }

func (s *fakeSource) Head(_ context.Context) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.head, s.HeadErr
}

func (s *fakeSource) SetHead(h uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.head = h
}

func (s *fakeSource) Emit(ev *Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
}

func (s *fakeSource) FetchEvents(_ context.Context, from, to uint64) ([]*Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fetches = append(s.fetches, [2]uint64{from, to})
	if s.FetchFunc != nil {
		return s.FetchFunc(from, to)
	}
	if s.FetchErr != nil {
		return nil, s.FetchErr
	}
	var out []*Event
	for _, ev := range s.events {
		if ev.Position >= from && ev.Position <= to {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (s *fakeSource) Fetches() [][2]uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][2]uint64(nil), s.fetches...)
}

// fakeChain is a destination chain. A broadcast action lands immediately unless
// BroadcastFunc or StatusFunc say otherwise.
type fakeChain struct {
	mu        sync.Mutex
	dir       queue.Direction
	seq       int
	prepared  map[string]*queue.Job
	landed    map[string]*Action
	history   []*Action
	balance   *big.Int
	prepares  int
	broadcast int

	PrepareErr    error
	BroadcastFunc func(n int, tx *PreparedTx) error
	StatusFunc    func(ref string) (*TxResult, error)
	BalanceErr    error
	HistoryErr    error
}

func newFakeChain(dir queue.Direction) *fakeChain {
	return &fakeChain{
		dir:      dir,
		prepared: make(map[string]*queue.Job),
		landed:   make(map[string]*Action),
		balance:  big.NewInt(5_000_000_000),
	}
}

func (c *fakeChain) Chain() string { return "fake" }
func (c *fakeChain) Direction() queue.Direction { return c.dir }
func (c *fakeChain) NativeDecimals() int32 { return 9 }

func (c *fakeChain) ValidateRecipient(recipient string) error {
	if recipient == "" || recipient == "invalid" {
		return errors.New("malformed address")
	}
	return nil
}

func (c *fakeChain) Prepare(_ context.Context, job *queue.Job) (*PreparedTx, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.prepares++
	if c.PrepareErr != nil {
		return nil, c.PrepareErr
	}
	c.seq++
	ref := fmt.Sprintf("tx-%d", c.seq)
	c.prepared[ref] = job.Clone()
	return &PreparedTx{Ref: ref, Expiry: uint64(c.seq) + 100, Payload: job.ID}, nil
}

func (c *fakeChain) Broadcast(_ context.Context, tx *PreparedTx) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.broadcast++
	if c.BroadcastFunc != nil {
		if err := c.BroadcastFunc(c.broadcast, tx); err != nil {
			return err
		}
	}
	c.land(tx.Ref)
	return nil
}

func (c *fakeChain) land(ref string) {
	job := c.prepared[ref]
	amount, _ := new(big.Int).SetString(job.Amount, 10)
	c.landed[ref] = &Action{TxRef: ref, Amount: amount, Memos: []string{ActionMemo(job.ID)}}
}

func (c *fakeChain) Status(_ context.Context, ref string, _ uint64) (*TxResult, error) {
	if c.StatusFunc != nil {
		return c.StatusFunc(ref)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.landed[ref]; ok {
		return &TxResult{State: TxConfirmed}, nil
	}
	return &TxResult{State: TxDropped}, nil
}

func (c *fakeChain) OperatingBalance(_ context.Context) (*big.Int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.BalanceErr != nil {
		return nil, c.BalanceErr
	}
	return new(big.Int).Set(c.balance), nil
}

// RecentActions returns landed actions newest first, followed by the seeded history
func (c *fakeChain) RecentActions(_ context.Context, _ string, window int) ([]*Action, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.HistoryErr != nil {
		return nil, c.HistoryErr
	}
	var out []*Action
	for i := c.seq; i > 0; i-- {
		if a, ok := c.landed[fmt.Sprintf("tx-%d", i)]; ok {
			out = append(out, a)
		}
	}
	out = append(out, c.history...)
	if window > 0 && len(out) > window {
		out = out[:window]
	}
	return out, nil
}

// AddHistory seeds an action that the relayer did not send in this test
func (c *fakeChain) AddHistory(a *Action) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.history = append(c.history, a)
}

// LandSilently marks a prepared action as landed without counting a broadcast
func (c *fakeChain) LandSilently(ref string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.land(ref)
}

func (c *fakeChain) Broadcasts() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.broadcast
}

func (c *fakeChain) Prepares() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.prepares
}

// fakeLedgerChain records processed source event keys on chain, like the unlock contract
type fakeLedgerChain struct {
	*fakeChain
	processed map[string]bool
	CheckErr  error
}

func newFakeLedgerChain(dir queue.Direction) *fakeLedgerChain {
	return &fakeLedgerChain{fakeChain: newFakeChain(dir), processed: make(map[string]bool)}
}

func (c *fakeLedgerChain) Broadcast(ctx context.Context, tx *PreparedTx) error {
	if err := c.fakeChain.Broadcast(ctx, tx); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.processed[c.prepared[tx.Ref].SourceEventKey] = true
	return nil
}

func (c *fakeLedgerChain) IsProcessed(_ context.Context, job *queue.Job) (bool, error) {
	if c.CheckErr != nil {
		return false, c.CheckErr
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.processed[job.SourceEventKey], nil
}

func (c *fakeLedgerChain) MarkProcessed(eventKey string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.processed[eventKey] = true
}

// claimCountingStore counts ClaimJob calls per job
type claimCountingStore struct {
	queue.Store
	mu     sync.Mutex
	claims map[string]int
}

func newClaimCountingStore(inner queue.Store) *claimCountingStore {
	return &claimCountingStore{Store: inner, claims: make(map[string]int)}
}

func (s *claimCountingStore) ClaimJob(ctx context.Context, id, owner string, now, leaseUntil time.Time) (*queue.Job, error) {
	s.mu.Lock()
	s.claims[id]++
	s.mu.Unlock()
	return s.Store.ClaimJob(ctx, id, owner, now, leaseUntil)
}

func (s *claimCountingStore) Claims(id string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.claims[id]
}

// contextStore rejects calls on a done context, like a database driver
type contextStore struct {
	queue.Store
}

func (s contextStore) GetJob(ctx context.Context, id string) (*queue.Job, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.Store.GetJob(ctx, id)
}

func (s contextStore) ClaimForRescue(ctx context.Context, id, owner string, now, leaseUntil time.Time) (*queue.Job, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.Store.ClaimForRescue(ctx, id, owner, now, leaseUntil)
}

func (s contextStore) RecordSubmission(ctx context.Context, id, owner, txRef string, expiry uint64, now time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.Store.RecordSubmission(ctx, id, owner, txRef, expiry, now)
}

func (s contextStore) CompleteJob(ctx context.Context, id, owner, destTxRef string, verifiedBy queue.VerifiedBy, now time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.Store.CompleteJob(ctx, id, owner, destTxRef, verifiedBy, now)
}

func (s contextStore) RetryJob(ctx context.Context, id, owner string, attempts int, nextAttemptAt time.Time, lastErr string, now time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.Store.RetryJob(ctx, id, owner, attempts, nextAttemptAt, lastErr, now)
}

func (s contextStore) FailJob(ctx context.Context, id, owner, reason string, now time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.Store.FailJob(ctx, id, owner, reason, now)
}

var testSchedule = Schedule{time.Minute, 5 * time.Minute, 15 * time.Minute}

// harness wires one direction of the relayer over a memory store and a virtual clock.
// Source events carry 18 decimals and actions 9.
type harness struct {
	clock      *testClock
	store      *claimCountingStore
	source     *fakeSource
	target     Target
	watcher    *Watcher
	reconciler *Reconciler
	executor   *Executor
	pipeline   *Pipeline
	scheduler  *Scheduler
	rescuer    *Rescuer
	monitor    *Monitor
	auditor    *Auditor
}

type harnessOption func(*harnessOptions)

type harnessOptions struct {
	heuristic  HeuristicConfig
	executor   ExecutorConfig
	bounds     Bounds
	contextual bool
}

func withHeuristic(h HeuristicConfig) harnessOption {
	return func(o *harnessOptions) { o.heuristic = h }
}

func withExecutor(cfg ExecutorConfig) harnessOption {
	return func(o *harnessOptions) { o.executor = cfg }
}

func withBounds(b Bounds) harnessOption {
	return func(o *harnessOptions) { o.bounds = b }
}

// withContextStore makes store writes fail on a done context
func withContextStore() harnessOption {
	return func(o *harnessOptions) { o.contextual = true }
}

func newHarness(t *testing.T, target Target, opts ...harnessOption) *harness {
	t.Helper()
	o := harnessOptions{
		heuristic: HeuristicConfig{Enabled: true, Window: 20, Tolerance: 0},
		executor: ExecutorConfig{
			RPCTimeout:          time.Second,
			ConfirmationTimeout: 200 * time.Millisecond,
			PollInterval:        time.Millisecond,
		},
	}
	for _, opt := range opts {
		opt(&o)
	}

	logger := zap.NewNop()
	clock := newTestClock()
	var inner queue.Store = queue.NewMemoryStore()
	if o.contextual {
		inner = contextStore{inner}
	}
	store := newClaimCountingStore(inner)
	source := newFakeSource(target.Direction())
	source.start = 1

	factory := NewJobFactory(target, 18, 9, o.bounds)
	watcher := NewWatcher(source, factory, store, logger)
	watcher.now = clock.Now

	reconciler := NewReconciler(store, []Target{target}, o.heuristic, logger)
	executor := NewExecutor(store, []Target{target}, o.executor, logger)
	executor.now = clock.Now
	pipeline := NewPipeline(store, reconciler, executor, testSchedule, logger)
	pipeline.now = clock.Now

	scheduler := NewScheduler(store, []*Watcher{watcher}, pipeline, SchedulerConfig{
		Workers:       4,
		BatchSize:     50,
		LeaseDuration: time.Minute,
	}, logger)
	scheduler.now = clock.Now

	rescuer := NewRescuer(store, reconciler, pipeline, "operator-test", time.Minute, logger)
	rescuer.now = clock.Now
	monitor := NewMonitor(store, []*Watcher{watcher}, []BalanceWatch{{Target: target, Threshold: "1"}}, logger)
	monitor.now = clock.Now

	return &harness{
		clock:      clock,
		store:      store,
		source:     source,
		target:     target,
		watcher:    watcher,
		reconciler: reconciler,
		executor:   executor,
		pipeline:   pipeline,
		scheduler:  scheduler,
		rescuer:    rescuer,
		monitor:    monitor,
		auditor:    NewAuditor(store, []*Watcher{watcher}, reconciler),
	}
}

// lock emits a source event at position and moves the head past the confirmation depth
func (h *harness) lock(key string, position uint64, amount *big.Int, recipient string) {
	h.source.Emit(&Event{
		Key:       key,
		TxRef:     "src-" + key,
		Position:  position,
		Amount:    amount,
		Sender:    "sender",
		Recipient: recipient,
	})
	if h.source.head < position+h.source.depth {
		h.source.SetHead(position + h.source.depth)
	}
}

func (h *harness) tick(t *testing.T) TickSummary {
	t.Helper()
	summary, err := h.scheduler.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce failed: %v", err)
	}
	return summary
}

func (h *harness) job(t *testing.T, id string) *queue.Job {
	t.Helper()
	job, err := h.store.GetJob(context.Background(), id)
	if err != nil {
		t.Fatalf("GetJob(%s) failed: %v", id, err)
	}
	return job
}

// claim leases a job directly, the way a worker would
func (h *harness) claim(t *testing.T, id, owner string) *queue.Job {
	t.Helper()
	now := h.clock.Now()
	job, err := h.store.Store.ClaimJob(context.Background(), id, owner, now, now.Add(time.Minute))
	if err != nil {
		t.Fatalf("ClaimJob(%s) failed: %v", id, err)
	}
	return job
}

// tokens returns n whole tokens with 18 decimals
func tokens(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil))
}

type mockMintClient struct {
	AssociatedTokenAccountFunc func(owner solana.PublicKey) (solana.PublicKey, error)
	PrepareMintFunc            func(ctx context.Context, owner solana.PublicKey, amount uint64, memo string) (*solana.PreparedMint, error)
	SendFunc                   func(ctx context.Context, tx *solana.Transaction) (string, error)
	TxStatusFunc               func(ctx context.Context, signature string, lastValidBlockHeight uint64) (solana.TxStatus, json.RawMessage, error)
	BalanceFunc                func(ctx context.Context) (uint64, error)
	RecentMintsFunc            func(ctx context.Context, account solana.PublicKey, window int) ([]*solana.MintRecord, error)
}

func (m *mockMintClient) AssociatedTokenAccount(owner solana.PublicKey) (solana.PublicKey, error) {
	if m.AssociatedTokenAccountFunc != nil {
		return m.AssociatedTokenAccountFunc(owner)
	}
	return owner, nil
}

func (m *mockMintClient) PrepareMint(ctx context.Context, owner solana.PublicKey, amount uint64, memo string) (*solana.PreparedMint, error) {
	if m.PrepareMintFunc != nil {
		return m.PrepareMintFunc(ctx, owner, amount, memo)
	}
	return nil, errors.New("PrepareMint not mocked")
}

func (m *mockMintClient) Send(ctx context.Context, tx *solana.Transaction) (string, error) {
	if m.SendFunc != nil {
		return m.SendFunc(ctx, tx)
	}
	return "", nil
}

func (m *mockMintClient) TxStatus(ctx context.Context, signature string, lastValidBlockHeight uint64) (solana.TxStatus, json.RawMessage, error) {
	if m.TxStatusFunc != nil {
		return m.TxStatusFunc(ctx, signature, lastValidBlockHeight)
	}
	return solana.TxPending, nil, nil
}

func (m *mockMintClient) Balance(ctx context.Context) (uint64, error) {
	if m.BalanceFunc != nil {
		return m.BalanceFunc(ctx)
	}
	return 0, nil
}

func (m *mockMintClient) RecentMints(ctx context.Context, account solana.PublicKey, window int) ([]*solana.MintRecord, error) {
	if m.RecentMintsFunc != nil {
		return m.RecentMintsFunc(ctx, account, window)
	}
	return nil, nil
}

type mockUnlockClient struct {
	BuildUnlockFunc     func(ctx context.Context, recipient common.Address, amount *big.Int, burnID [32]byte) (*types.Transaction, error)
	SendFunc            func(ctx context.Context, tx *types.Transaction) error
	TxStatusFunc        func(ctx context.Context, hash common.Hash) (ethereum.TxStatus, *types.Receipt, error)
	IsBurnProcessedFunc func(ctx context.Context, burnID [32]byte) (bool, error)
	BalanceFunc         func(ctx context.Context) (*big.Int, error)
}

func (m *mockUnlockClient) BuildUnlock(ctx context.Context, recipient common.Address, amount *big.Int, burnID [32]byte) (*types.Transaction, error) {
	if m.BuildUnlockFunc != nil {
		return m.BuildUnlockFunc(ctx, recipient, amount, burnID)
	}
	return nil, errors.New("BuildUnlock not mocked")
}

func (m *mockUnlockClient) Send(ctx context.Context, tx *types.Transaction) error {
	if m.SendFunc != nil {
		return m.SendFunc(ctx, tx)
	}
	return nil
}

func (m *mockUnlockClient) TxStatus(ctx context.Context, hash common.Hash) (ethereum.TxStatus, *types.Receipt, error) {
	if m.TxStatusFunc != nil {
		return m.TxStatusFunc(ctx, hash)
	}
	return ethereum.TxPending, nil, nil
}

func (m *mockUnlockClient) IsBurnProcessed(ctx context.Context, burnID [32]byte) (bool, error) {
	if m.IsBurnProcessedFunc != nil {
		return m.IsBurnProcessedFunc(ctx, burnID)
	}
	return false, nil
}

func (m *mockUnlockClient) Balance(ctx context.Context) (*big.Int, error) {
	if m.BalanceFunc != nil {
		return m.BalanceFunc(ctx)
	}
	return big.NewInt(0), nil
}

type mockLockScanner struct {
	HeadFunc       func(ctx context.Context) (uint64, error)
	FetchLocksFunc func(ctx context.Context, from, to uint64) ([]*ethereum.LockEvent, error)
}

func (m *mockLockScanner) Head(ctx context.Context) (uint64, error) {
	if m.HeadFunc != nil {
		return m.HeadFunc(ctx)
	}
	return 0, nil
}

func (m *mockLockScanner) FetchLocks(ctx context.Context, from, to uint64) ([]*ethereum.LockEvent, error) {
	if m.FetchLocksFunc != nil {
		return m.FetchLocksFunc(ctx, from, to)
	}
	return nil, nil
}

type mockBurnScanner struct {
	HeadFunc       func(ctx context.Context) (uint64, error)
	FetchBurnsFunc func(ctx context.Context, from, to uint64) ([]*solana.BurnEvent, error)
}

func (m *mockBurnScanner) Head(ctx context.Context) (uint64, error) {
	if m.HeadFunc != nil {
		return m.HeadFunc(ctx)
	}
	return 0, nil
}

func (m *mockBurnScanner) FetchBurns(ctx context.Context, from, to uint64) ([]*solana.BurnEvent, error) {
	if m.FetchBurnsFunc != nil {
		return m.FetchBurnsFunc(ctx, from, to)
	}
	return nil, nil
}
