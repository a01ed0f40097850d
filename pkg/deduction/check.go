package deduction

import (
	"context"
	"errors"
	"time"

	"github.com/cuemby/brigade/pkg/metrics"
	"github.com/cuemby/brigade/pkg/types"
	"github.com/cuemby/brigade/pkg/units"
)

// Shortage is an item an order needs more of than is in stock
type Shortage struct {
	ItemID    string     `json:"item_id"`
	Name      string     `json:"name"`
	Unit      units.Unit `json:"unit"`
	Required  float64    `json:"required"`
	Available float64    `json:"available"`
	Optional  bool       `json:"optional"` // Only optional recipe entries need it
}

// CheckStock runs the deduction aggregation without mutating anything and
// returns the items that would be short. Shortages of optional entries are
// reported but do not make Blocking true.
func (e *Engine) CheckStock(ctx context.Context, items []*types.OrderItem) ([]Shortage, error) {
	reqs, err := e.resolver.Resolve(ctx, items)
	if err != nil {
		return nil, err
	}

	shortages := []Shortage{}
	for _, req := range reqs {
		item, err := e.ledger.GetItem(ctx, req.ItemID)
		if errors.Is(err, types.ErrNotFound) {
			// Deduction drops these too
			continue
		}
		if err != nil {
			return nil, err
		}
		total, _ := req.InStockUnit(item)
		if total > item.Quantity {
			shortages = append(shortages, Shortage{
				ItemID:    item.ID,
				Name:      item.Name,
				Unit:      item.Unit,
				Required:  total,
				Available: item.Quantity,
				Optional:  req.Optional(),
			})
		}
	}
	return shortages, nil
}

// Blocking reports whether any shortage involves a required ingredient
func Blocking(shortages []Shortage) bool {
	for _, s := range shortages {
		if !s.Optional {
			return true
		}
	}
	return false
}

// ReconcileResult counts the outcome of a sweep
type ReconcileResult struct {
	Scanned  int `json:"scanned"`
	Repaired int `json:"repaired"`
	Skipped  int `json:"skipped"`
	Failed   int `json:"failed"`
}

// Reconcile finds orders in a fulfilled status that never had their stock
// consumed and deducts them. Failures are logged and counted; the sweep
// continues with the next order.
func (e *Engine) Reconcile(ctx context.Context) (ReconcileResult, error) {
	var res ReconcileResult
	start := time.Now()

	orders, err := e.orders.ListOrdersMissingDeduction(ctx, []types.StatusID{types.StatusReady, types.StatusPaid})
	if err != nil {
		return res, err
	}

	for _, order := range orders {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		res.Scanned++
		out, err := e.deduct(ctx, order, "")
		switch {
		case err != nil:
			res.Failed++
			e.logger.Error().Err(err).Str("order_id", order.ID).Msg("Reconciliation deduction failed")
		case out.Skipped:
			res.Skipped++
		default:
			res.Repaired++
			metrics.SweepRepairedTotal.Inc()
		}
	}

	e.logger.Info().
		Int("scanned", res.Scanned).
		Int("repaired", res.Repaired).
		Int("failed", res.Failed).
		Dur("duration", time.Since(start)).
		Msg("Reconciliation sweep complete")
	return res, nil
}
