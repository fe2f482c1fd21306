// Package handlers exposes the dashboard API: the reconciled order view,
// the two operator actions, KPI totals, and the spreadsheet download.
package handlers

import (
	"context"
	"errors"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	validatorv10 "github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/jmedranoh/go-fulfillment-tracker/internal/export"
	"github.com/jmedranoh/go-fulfillment-tracker/internal/lifecycle"
	"github.com/jmedranoh/go-fulfillment-tracker/internal/reconcile"
	"github.com/jmedranoh/go-fulfillment-tracker/internal/rules"
	"github.com/jmedranoh/go-fulfillment-tracker/internal/validation"
	"github.com/jmedranoh/go-fulfillment-tracker/internal/warehouse"
)

// Reconciler is the engine surface the handlers consume.
type Reconciler interface {
	Reconcile(ctx context.Context, r warehouse.DateRange) ([]reconcile.Order, error)
}

// LifecycleWriter is the operator-action surface of the lifecycle store.
type LifecycleWriter interface {
	MarkRequested(ctx context.Context, orderID string, at time.Time) (*lifecycle.Record, error)
	MarkDelivered(ctx context.Context, orderID string, at time.Time) (*lifecycle.Record, error)
}

// HandlerConfig groups dependencies for the dashboard routes.
type HandlerConfig struct {
	Engine  Reconciler
	Records LifecycleWriter
	Logger  *zap.Logger
	NowFunc func() time.Time
}

// orderView is the wire projection of a reconciled order.
type orderView struct {
	OrderID     string `json:"order_id"`
	ObservedAt  string `json:"observed_at"`
	RequestedAt string `json:"requested_at,omitempty"`
	Deadline    string `json:"deadline,omitempty"`
	DeliveredAt string `json:"delivered_at,omitempty"`
	Compliance  string `json:"compliance"`
}

// RegisterRoutes registers the dashboard API on r.
func RegisterRoutes(r *gin.Engine, cfg HandlerConfig) {
	v := validation.New()
	if cfg.NowFunc == nil {
		cfg.NowFunc = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/orders", func(c *gin.Context) {
		orders, ok := reconciledOrders(c, cfg, v)
		if !ok {
			return
		}
		views := make([]orderView, 0, len(orders))
		for _, o := range orders {
			views = append(views, toView(o))
		}
		c.JSON(http.StatusOK, gin.H{"orders": views, "count": len(views)})
	})

	r.POST("/orders/:id/requested", func(c *gin.Context) {
		orderID := c.Param("id")
		rec, err := cfg.Records.MarkRequested(c.Request.Context(), orderID, cfg.NowFunc())
		if err != nil {
			if errors.Is(err, lifecycle.ErrAlreadyRequested) {
				c.JSON(http.StatusConflict, gin.H{"error": "already_requested"})
				return
			}
			cfg.Logger.Error("mark requested failed", zap.String("order_id", orderID), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "mark_requested_failed"})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status":       "success",
			"requested_at": rules.FormatTimestamp(*rec.RequestedAt),
			"deadline":     rules.FormatTimestamp(*rec.Deadline),
		})
	})

	r.POST("/orders/:id/delivered", func(c *gin.Context) {
		orderID := c.Param("id")
		rec, err := cfg.Records.MarkDelivered(c.Request.Context(), orderID, cfg.NowFunc())
		if err != nil {
			if errors.Is(err, lifecycle.ErrOrderNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "order_not_requested"})
				return
			}
			cfg.Logger.Error("mark delivered failed", zap.String("order_id", orderID), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "mark_delivered_failed"})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status":       "success",
			"delivered_at": rules.FormatTimestamp(*rec.DeliveredAt),
			"compliance":   rec.Compliance,
			"on_time":      rec.Compliance == rules.VerdictCompliant,
		})
	})

	r.GET("/kpi", func(c *gin.Context) {
		orders, ok := reconciledOrders(c, cfg, v)
		if !ok {
			return
		}
		c.JSON(http.StatusOK, computeKPI(orders))
	})

	r.GET("/export", func(c *gin.Context) {
		orders, ok := reconciledOrders(c, cfg, v)
		if !ok {
			return
		}
		buf, err := export.WriteReport(orders)
		if err != nil {
			cfg.Logger.Error("export failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "export_failed"})
			return
		}
		c.Header("Content-Disposition", `attachment; filename="`+export.Filename(cfg.NowFunc())+`"`)
		c.Data(http.StatusOK,
			"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
			buf.Bytes())
	})
}

// reconciledOrders binds the common range/search query, runs reconciliation,
// and applies the id filter. A false return means a response was written.
func reconciledOrders(c *gin.Context, cfg HandlerConfig, v *validatorv10.Validate) ([]reconcile.Order, bool) {
	var q validation.ListOrdersQuery
	if err := validation.BindQueryAndValidate(c, &q, v); err != nil {
		// BindQueryAndValidate already wrote a 400
		return nil, false
	}

	r, err := queryRange(q, cfg.NowFunc)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_range", "msg": err.Error()})
		return nil, false
	}

	orders, err := cfg.Engine.Reconcile(c.Request.Context(), r)
	if err != nil {
		if errors.Is(err, warehouse.ErrSourceUnavailable) {
			// Degrade to an empty view instead of a hard failure.
			cfg.Logger.Warn("warehouse unavailable for dashboard query", zap.Error(err))
			return nil, true
		}
		cfg.Logger.Error("reconcile failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "reconcile_failed"})
		return nil, false
	}

	if q.Search != "" {
		filtered := orders[:0]
		for _, o := range orders {
			if strings.Contains(strings.ToLower(o.OrderID), strings.ToLower(q.Search)) {
				filtered = append(filtered, o)
			}
		}
		orders = filtered
	}
	return orders, true
}

func queryRange(q validation.ListOrdersQuery, now func() time.Time) (warehouse.DateRange, error) {
	if q.Start == "" && q.End == "" {
		return warehouse.Today(now()), nil
	}
	var r warehouse.DateRange
	var err error
	if q.Start != "" {
		if r.Start, err = time.ParseInLocation(validation.DateLayout, q.Start, time.Local); err != nil {
			return r, err
		}
	}
	if q.End != "" {
		if r.End, err = time.ParseInLocation(validation.DateLayout, q.End, time.Local); err != nil {
			return r, err
		}
	}
	if r.Start.IsZero() {
		r.Start = r.End
	}
	if r.End.IsZero() {
		r.End = r.Start
	}
	return r, nil
}

func computeKPI(orders []reconcile.Order) gin.H {
	var compliant, nonCompliant, pending int
	var minutes []float64
	for _, o := range orders {
		switch o.Compliance {
		case rules.VerdictCompliant:
			compliant++
		case rules.VerdictNonCompliant:
			nonCompliant++
		default:
			pending++
		}
		if o.RequestedAt != nil && o.DeliveredAt != nil {
			minutes = append(minutes, o.DeliveredAt.Sub(*o.RequestedAt).Minutes())
		}
	}

	total := len(orders)
	var pct, avg float64
	if total > 0 {
		pct = round2(float64(compliant) / float64(total) * 100)
	}
	if len(minutes) > 0 {
		var sum float64
		for _, m := range minutes {
			sum += m
		}
		avg = round2(sum / float64(len(minutes)))
	}
	return gin.H{
		"total":          total,
		"compliant":      compliant,
		"non_compliant":  nonCompliant,
		"pending":        pending,
		"compliance_pct": pct,
		"avg_minutes":    avg,
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func toView(o reconcile.Order) orderView {
	view := orderView{
		OrderID:    o.OrderID,
		ObservedAt: rules.FormatTimestamp(o.ObservedAt),
		Compliance: string(o.Compliance),
	}
	if o.RequestedAt != nil {
		view.RequestedAt = rules.FormatTimestamp(*o.RequestedAt)
	}
	if o.Deadline != nil {
		view.Deadline = rules.FormatTimestamp(*o.Deadline)
	}
	if o.DeliveredAt != nil {
		view.DeliveredAt = rules.FormatTimestamp(*o.DeliveredAt)
	}
	return view
}
