package relayer

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/chainsafe/bridge-relayer/internal/metrics"
	"github.com/chainsafe/bridge-relayer/pkg/queue"
)

// BalanceStatus is a relayer operating balance on one chain
type BalanceStatus struct {
	Chain     string `json:"chain"`
	Raw       string `json:"raw,omitempty"`
	Amount    string `json:"amount,omitempty"`
	Threshold string `json:"threshold"`
	Low       bool   `json:"low"`
	Error     string `json:"error,omitempty"`
}

// Snapshot is the read-only view exposed to dashboards and operators
type Snapshot struct {
	Counts           map[queue.Status]int `json:"counts"`
	Balances         []BalanceStatus      `json:"balances"`
	OldestPendingAt  *time.Time           `json:"oldest_pending_at,omitempty"`
	OldestPendingAge float64              `json:"oldest_pending_age_seconds"`
	NextRetryAt      *time.Time           `json:"next_retry_at,omitempty"`
	Positions        map[string]uint64    `json:"positions"`
	Alert            bool                 `json:"alert"`
	AlertReasons     []string             `json:"alert_reasons,omitempty"`
	GeneratedAt      time.Time            `json:"generated_at"`
}

// BalanceWatch pairs a target with its low balance threshold in native units
type BalanceWatch struct {
	Target    Target
	Threshold string
}

// Monitor aggregates queue and balance state
type Monitor struct {
	store    queue.Store
	watchers []*Watcher
	balances []BalanceWatch
	logger   *zap.Logger
	now      func() time.Time
}

// NewMonitor creates a monitor
func NewMonitor(store queue.Store, watchers []*Watcher, balances []BalanceWatch, logger *zap.Logger) *Monitor {
	return &Monitor{
		store:    store,
		watchers: watchers,
		balances: balances,
		logger:   logger,
		now:      time.Now,
	}
}

// Snapshot gathers the current state and refreshes the exported gauges. Balance lookups
// that fail are reported in the snapshot rather than failing it.
func (m *Monitor) Snapshot(ctx context.Context) (*Snapshot, error) {
	now := m.now().UTC()
	stats, err := m.store.Stats(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("failed to load queue stats: %w", err)
	}

	snap := &Snapshot{
		Counts:          stats.Counts,
		OldestPendingAt: stats.OldestPendingAt,
		NextRetryAt:     stats.NextRetryAt,
		Positions:       make(map[string]uint64, len(m.watchers)),
		GeneratedAt:     now,
	}
	if stats.OldestPendingAt != nil {
		snap.OldestPendingAge = now.Sub(*stats.OldestPendingAt).Seconds()
	}
	if failed := stats.Counts[queue.StatusFailed]; failed > 0 {
		snap.AlertReasons = append(snap.AlertReasons, fmt.Sprintf("%d failed job(s)", failed))
	}

	for _, w := range m.watchers {
		pos, err := w.Position(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to load position of %s: %w", w.Name(), err)
		}
		snap.Positions[w.Name()] = pos
	}

	for _, b := range m.balances {
		status := m.balance(ctx, b)
		if status.Low {
			snap.AlertReasons = append(snap.AlertReasons, fmt.Sprintf("%s balance %s below %s", status.Chain, status.Amount, status.Threshold))
		}
		snap.Balances = append(snap.Balances, status)
	}
	snap.Alert = len(snap.AlertReasons) > 0

	for _, s := range queue.AllStatuses {
		metrics.QueueDepth.WithLabelValues(string(s)).Set(float64(snap.Counts[s]))
	}
	if snap.Alert {
		metrics.Alert.Set(1)
	} else {
		metrics.Alert.Set(0)
	}
	return snap, nil
}

func (m *Monitor) balance(ctx context.Context, b BalanceWatch) BalanceStatus {
	decimals := b.Target.NativeDecimals()
	status := BalanceStatus{Chain: b.Target.Chain(), Threshold: b.Threshold}

	raw, err := b.Target.OperatingBalance(ctx)
	if err != nil {
		m.logger.Warn("Failed to read operating balance", zap.String("chain", status.Chain), zap.Error(err))
		status.Error = err.Error()
		return status
	}
	status.Raw = raw.String()
	status.Amount = ToUnits(raw, decimals)

	metrics.OperatingBalance.WithLabelValues(status.Chain).Set(decimal.NewFromBigInt(raw, -decimals).InexactFloat64())

	threshold, err := ParseUnits(b.Threshold, decimals)
	if err == nil && raw.Cmp(threshold) < 0 {
		status.Low = true
	}
	return status
}
