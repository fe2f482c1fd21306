// Package reconcile merges the warehouse's authoritative active-order set
// with locally tracked lifecycle state and drives the periodic sync loop.
package reconcile

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/jmedranoh/go-fulfillment-tracker/internal/lifecycle"
	"github.com/jmedranoh/go-fulfillment-tracker/internal/metrics"
	"github.com/jmedranoh/go-fulfillment-tracker/internal/rules"
	"github.com/jmedranoh/go-fulfillment-tracker/internal/warehouse"
)

// Order is the unified per-order view: warehouse identity plus local
// lifecycle fields. An order with no local record is simply pending.
type Order struct {
	OrderID     string        `json:"order_id"`
	ObservedAt  time.Time     `json:"observed_at"`
	RequestedAt *time.Time    `json:"requested_at,omitempty"`
	Deadline    *time.Time    `json:"deadline,omitempty"`
	DeliveredAt *time.Time    `json:"delivered_at,omitempty"`
	Compliance  rules.Verdict `json:"compliance"`
}

// OrderSource yields the authoritative active orders for a date range.
type OrderSource interface {
	FetchActive(ctx context.Context, r warehouse.DateRange) ([]warehouse.ActiveOrder, error)
}

// RecordStore is the read side of the lifecycle store the engine needs.
type RecordStore interface {
	Get(ctx context.Context, orderID string) (*lifecycle.Record, error)
}

// Dispatcher handles one newly detected order, either by enqueueing a
// pending notification or by sending it inline.
type Dispatcher interface {
	Dispatch(ctx context.Context, orderID string) error
}

// CycleMetrics receives per-cycle statistics.
type CycleMetrics interface {
	PublishCycle(ctx context.Context, stats metrics.CycleStats) error
}

// Config wires an Engine.
type Config struct {
	Source     OrderSource
	Records    RecordStore
	Dispatcher Dispatcher
	Metrics    CycleMetrics // optional
	Logger     *zap.Logger

	// Interval is the full sleep between sync iterations; a slow cycle
	// delays the next one rather than overlapping it.
	Interval time.Duration
	// CallTimeout bounds each remote call made from the loop.
	CallTimeout time.Duration
}

// Engine owns the poll-to-poll baseline and performs reconciliation.
type Engine struct {
	source      OrderSource
	records     RecordStore
	dispatcher  Dispatcher
	metrics     CycleMetrics
	logger      *zap.Logger
	interval    time.Duration
	callTimeout time.Duration
	nowFunc     func() time.Time
}

// NewEngine returns a configured Engine.
func NewEngine(cfg Config) *Engine {
	if cfg.Interval <= 0 {
		cfg.Interval = 60 * time.Second
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = 15 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Engine{
		source:      cfg.Source,
		records:     cfg.Records,
		dispatcher:  cfg.Dispatcher,
		metrics:     cfg.Metrics,
		logger:      cfg.Logger,
		interval:    cfg.Interval,
		callTimeout: cfg.CallTimeout,
		nowFunc:     time.Now,
	}
}

// Reconcile fetches the active orders for r and merges each with its local
// record. Output preserves the warehouse ordering (newest first).
func (e *Engine) Reconcile(ctx context.Context, r warehouse.DateRange) ([]Order, error) {
	active, err := e.source.FetchActive(ctx, r)
	if err != nil {
		return nil, err
	}

	orders := make([]Order, 0, len(active))
	for _, a := range active {
		o := Order{
			OrderID:    a.OrderID,
			ObservedAt: a.ObservedAt,
			Compliance: rules.VerdictPending,
		}
		rec, err := e.records.Get(ctx, a.OrderID)
		if err != nil {
			return nil, err
		}
		if rec != nil {
			o.RequestedAt = rec.RequestedAt
			o.Deadline = rec.Deadline
			o.DeliveredAt = rec.DeliveredAt
			if rec.Compliance != "" {
				o.Compliance = rec.Compliance
			}
		}
		orders = append(orders, o)
	}
	return orders, nil
}

// DetectNew returns the ids in current that are absent from previous,
// preserving current's order.
func DetectNew(previous map[string]struct{}, current []Order) []string {
	var fresh []string
	for _, o := range current {
		if _, seen := previous[o.OrderID]; !seen {
			fresh = append(fresh, o.OrderID)
		}
	}
	return fresh
}

// RunSync runs the fixed-interval sync loop until ctx is canceled. The
// baseline set lives here: a restart re-treats every active order as new,
// and the per-day dedup marker bounds the resulting duplicate sends.
func (e *Engine) RunSync(ctx context.Context) {
	seen := map[string]struct{}{}
	for {
		seen = e.runCycle(ctx, seen)
		select {
		case <-ctx.Done():
			e.logger.Info("sync loop stopped")
			return
		case <-time.After(e.interval):
		}
	}
}

// runCycle performs one reconcile/detect/dispatch pass and returns the new
// baseline. No error escapes it; every failure is logged and the loop keeps
// its schedule.
func (e *Engine) runCycle(ctx context.Context, seen map[string]struct{}) map[string]struct{} {
	start := e.nowFunc()

	cctx, cancel := context.WithTimeout(ctx, e.callTimeout)
	orders, err := e.Reconcile(cctx, warehouse.Today(start))
	cancel()
	if err != nil {
		if errors.Is(err, warehouse.ErrSourceUnavailable) {
			e.logger.Warn("warehouse unavailable, empty cycle", zap.Error(err))
		} else {
			e.logger.Error("reconcile failed, empty cycle", zap.Error(err))
		}
		orders = nil
	}

	fresh := DetectNew(seen, orders)
	var sent, failed int
	for _, id := range fresh {
		dctx, cancel := context.WithTimeout(ctx, e.callTimeout)
		err := e.dispatcher.Dispatch(dctx, id)
		cancel()
		if err != nil {
			failed++
			e.logger.Warn("dispatch failed", zap.String("order_id", id), zap.Error(err))
			continue
		}
		sent++
	}

	if len(fresh) > 0 {
		e.logger.Info("new orders detected",
			zap.Int("count", len(fresh)),
			zap.Int("dispatched", sent),
			zap.Int("failed", failed))
	} else {
		e.logger.Debug("no new orders this cycle", zap.Int("active", len(orders)))
	}

	if e.metrics != nil {
		mctx, cancel := context.WithTimeout(ctx, e.callTimeout)
		if err := e.metrics.PublishCycle(mctx, metrics.CycleStats{
			OrdersFetched:       len(orders),
			NewDetected:         len(fresh),
			NotificationsSent:   sent,
			NotificationsFailed: failed,
			Duration:            e.nowFunc().Sub(start),
		}); err != nil {
			e.logger.Warn("metrics publish failed", zap.Error(err))
		}
		cancel()
	}

	next := make(map[string]struct{}, len(orders))
	for _, o := range orders {
		next[o.OrderID] = struct{}{}
	}
	return next
}
