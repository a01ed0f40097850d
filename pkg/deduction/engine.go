package deduction

import (
	"context"
	"errors"
	"fmt"

	"github.com/cuemby/brigade/pkg/alerts"
	"github.com/cuemby/brigade/pkg/ledger"
	"github.com/cuemby/brigade/pkg/log"
	"github.com/cuemby/brigade/pkg/metrics"
	"github.com/cuemby/brigade/pkg/recipe"
	"github.com/cuemby/brigade/pkg/types"
	"github.com/rs/zerolog"
)

// OrderSource reads the orders the engine deducts for
type OrderSource interface {
	GetOrder(ctx context.Context, id string) (*types.Order, error)
	ListOrdersMissingDeduction(ctx context.Context, statuses []types.StatusID) ([]*types.Order, error)
}

// Dispatcher raises alerts
type Dispatcher interface {
	Dispatch(ctx context.Context, req alerts.Request) (*alerts.Delivery, error)
}

// Result describes one Deduct call
type Result struct {
	OrderID string
	Skipped bool // Stock was already consumed for this order
	Changes []ledger.Change
	Dropped []recipe.Dropped
	Alerts  []*alerts.Delivery
}

// Engine consumes stock for fulfilled orders
type Engine struct {
	orders   OrderSource
	resolver *recipe.Resolver
	ledger   *ledger.Ledger
	alerts   Dispatcher
	logger   zerolog.Logger
}

// NewEngine creates a deduction engine. dispatcher may be nil, in which
// case threshold crossings are only logged.
func NewEngine(orders OrderSource, resolver *recipe.Resolver, l *ledger.Ledger, dispatcher Dispatcher) *Engine {
	return &Engine{
		orders:   orders,
		resolver: resolver,
		ledger:   l,
		alerts:   dispatcher,
		logger:   log.WithComponent("deduction"),
	}
}

// Deduct consumes the recipe stock of an order. Calling it again for the
// same order is a no-op reported through Result.Skipped. Insufficient stock
// never fails: the item is emptied and a warning is logged.
func (e *Engine) Deduct(ctx context.Context, orderID, actorID string) (*Result, error) {
	done, err := e.ledger.Deducted(ctx, orderID)
	if err != nil {
		metrics.DeductionsTotal.WithLabelValues("failed").Inc()
		return nil, err
	}
	if done {
		metrics.DeductionsTotal.WithLabelValues("skipped").Inc()
		return &Result{OrderID: orderID, Skipped: true}, nil
	}

	order, err := e.orders.GetOrder(ctx, orderID)
	if err != nil {
		metrics.DeductionsTotal.WithLabelValues("failed").Inc()
		return nil, err
	}
	return e.deduct(ctx, order, actorID)
}

func (e *Engine) deduct(ctx context.Context, order *types.Order, actorID string) (*Result, error) {
	logger := log.WithOrderID(order.ID).With().Str("component", "deduction").Logger()
	res := &Result{OrderID: order.ID}

	lines, dropped, err := e.consumption(ctx, order.Items)
	if err != nil {
		metrics.DeductionsTotal.WithLabelValues("failed").Inc()
		return nil, err
	}
	res.Dropped = dropped
	for _, d := range dropped {
		metrics.UnitConversionDrops.Inc()
		logger.Warn().
			Err(d.Err).
			Str("ingredient_id", d.IngredientID).
			Str("product_id", d.ProductID).
			Str("quantity", d.Quantity.String()).
			Msg("Recipe quantity cannot be expressed in the stock unit, skipped")
	}

	changes, err := e.ledger.ApplyDeduction(ctx, order.ID, actorID, lines)
	if errors.Is(err, ledger.ErrAlreadyDeducted) {
		metrics.DeductionsTotal.WithLabelValues("skipped").Inc()
		res.Skipped = true
		return res, nil
	}
	if err != nil {
		metrics.DeductionsTotal.WithLabelValues("failed").Inc()
		return nil, err
	}
	res.Changes = changes
	metrics.DeductionsTotal.WithLabelValues("applied").Inc()

	for _, change := range changes {
		req, ok := thresholdAlert(change, actorID)
		if !ok {
			continue
		}
		if e.alerts == nil {
			logger.Warn().Str("item_id", change.Item.ID).Msg(req.Message)
			continue
		}
		delivery, err := e.alerts.Dispatch(ctx, req)
		if err != nil {
			logger.Error().Err(err).Str("item_id", change.Item.ID).Msg("Failed to raise stock alert")
			continue
		}
		res.Alerts = append(res.Alerts, delivery)
	}

	logger.Info().
		Int("items", len(changes)).
		Int("dropped", len(dropped)).
		Int("alerts", len(res.Alerts)).
		Msg("Inventory deducted")
	return res, nil
}

// consumption resolves recipes and converts each requirement into its
// item's stock unit
func (e *Engine) consumption(ctx context.Context, items []*types.OrderItem) ([]ledger.Consumption, []recipe.Dropped, error) {
	reqs, err := e.resolver.Resolve(ctx, items)
	if err != nil {
		return nil, nil, err
	}

	var lines []ledger.Consumption
	var dropped []recipe.Dropped
	for _, req := range reqs {
		item, err := e.ledger.GetItem(ctx, req.ItemID)
		if errors.Is(err, types.ErrNotFound) {
			for _, c := range req.Contributions {
				dropped = append(dropped, recipe.Dropped{Contribution: c, Err: err})
			}
			continue
		}
		if err != nil {
			return nil, nil, fmt.Errorf("failed to load inventory item %s: %w", req.ItemID, err)
		}

		total, d := req.InStockUnit(item)
		dropped = append(dropped, d...)
		if total > 0 {
			lines = append(lines, ledger.Consumption{ItemID: item.ID, Quantity: total})
		}
	}
	return lines, dropped, nil
}
