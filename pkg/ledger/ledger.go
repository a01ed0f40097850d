// Package ledger is the only writer of inventory quantities. Every change
// is recorded as a movement in the same transaction.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cuemby/brigade/pkg/events"
	"github.com/cuemby/brigade/pkg/log"
	"github.com/cuemby/brigade/pkg/metrics"
	"github.com/cuemby/brigade/pkg/storage"
	"github.com/cuemby/brigade/pkg/types"
	"github.com/cuemby/brigade/pkg/units"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// ErrAlreadyDeducted is returned by ApplyDeduction for an order whose stock
// was already consumed
var ErrAlreadyDeducted = errors.New("order already deducted")

// Consumption is the stock an order needs from one item, in the stock unit
type Consumption struct {
	ItemID   string
	Quantity float64
}

// Change is the outcome of one stock mutation
type Change struct {
	Item      *types.InventoryItem
	Before    float64
	Requested float64
	Movement  *types.InventoryMovement
}

// Clamped reports whether the mutation asked for more than was in stock
func (c Change) Clamped() bool {
	return c.Movement.Kind == types.MovementOut && c.Requested > c.Before
}

// MovementRequest is a manual stock movement
type MovementRequest struct {
	ItemID   string                `json:"-"`
	Kind     types.MovementKind    `json:"kind"`
	Origin   types.MovementOrigin  `json:"origin"`
	Quantity float64               `json:"quantity"` // Positive amount for in/out, new absolute quantity for adjustment
	UnitCost *decimal.Decimal      `json:"unit_cost,omitempty"`
	Reason   string                `json:"reason"`
	ActorID  string                `json:"-"`
}

// Ledger is the only writer of inventory quantities
type Ledger struct {
	store     storage.InventoryStore
	publisher events.Publisher
	logger    zerolog.Logger
	now       func() time.Time
}

// New creates a ledger. publisher may be nil.
func New(store storage.InventoryStore, publisher events.Publisher) *Ledger {
	return &Ledger{
		store:     store,
		publisher: publisher,
		logger:    log.WithComponent("ledger"),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func newID() string {
	return uuid.Must(uuid.NewV7()).String()
}

// CreateItem validates and stores a new inventory item. A positive initial
// quantity is booked as a purchase movement.
func (l *Ledger) CreateItem(ctx context.Context, item *types.InventoryItem, actorID string) (*types.InventoryItem, error) {
	if err := validateItem(item); err != nil {
		return nil, err
	}

	initial := item.Quantity
	now := l.now()
	item.ID = newID()
	item.Unit = item.Unit.Canonical()
	item.Quantity = 0
	item.Active = true
	item.CreatedAt = now
	item.UpdatedAt = now
	if item.ContentPerPiece != nil {
		item.ContentPerPiece.Unit = item.ContentPerPiece.Unit.Canonical()
	}

	if err := l.store.CreateInventoryItem(ctx, item); err != nil {
		return nil, fmt.Errorf("failed to create inventory item: %w", err)
	}

	if initial > 0 {
		change, err := l.Record(ctx, MovementRequest{
			ItemID:   item.ID,
			Kind:     types.MovementIn,
			Origin:   types.OriginPurchase,
			Quantity: initial,
			UnitCost: &item.UnitCost,
			Reason:   "initial stock",
			ActorID:  actorID,
		})
		if err != nil {
			return nil, err
		}
		return change.Item, nil
	}

	l.publish(item)
	return item, nil
}

func validateItem(item *types.InventoryItem) error {
	if strings.TrimSpace(item.Name) == "" {
		return types.Validationf("name is required")
	}
	if !item.Unit.Valid() {
		return types.Validationf("unknown unit %q", item.Unit)
	}
	if item.Quantity < 0 || item.MinStock < 0 || item.MaxStock < 0 {
		return types.Validationf("quantities must not be negative")
	}
	if item.MaxStock > 0 && item.MaxStock < item.MinStock {
		return types.Validationf("max stock %g is below min stock %g", item.MaxStock, item.MinStock)
	}
	if c := item.ContentPerPiece; c != nil {
		if item.Unit.Family() != units.FamilyCount {
			return types.Validationf("content per piece requires a piece unit, got %q", item.Unit)
		}
		if c.Value <= 0 || !c.Unit.Valid() || c.Unit.Family() == units.FamilyCount {
			return types.Validationf("invalid content per piece %s", c)
		}
	}
	return nil
}

// GetItem returns one inventory item
func (l *Ledger) GetItem(ctx context.Context, id string) (*types.InventoryItem, error) {
	return l.store.GetInventoryItem(ctx, id)
}

// ListItems returns active items, or all items when includeInactive is set
func (l *Ledger) ListItems(ctx context.Context, includeInactive bool) ([]*types.InventoryItem, error) {
	return l.store.ListInventoryItems(ctx, includeInactive)
}

// Deactivate soft-deletes an item
func (l *Ledger) Deactivate(ctx context.Context, id string) error {
	return l.store.DeactivateInventoryItem(ctx, id)
}

// Movements returns an item's movements, newest first
func (l *Ledger) Movements(ctx context.Context, itemID string, limit int) ([]*types.InventoryMovement, error) {
	if _, err := l.store.GetInventoryItem(ctx, itemID); err != nil {
		return nil, err
	}
	return l.store.ListMovements(ctx, itemID, limit)
}

// Deducted reports whether stock was already consumed for orderID
func (l *Ledger) Deducted(ctx context.Context, orderID string) (bool, error) {
	_, err := l.store.GetDeduction(ctx, orderID)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, types.ErrNotFound):
		return false, nil
	default:
		return false, err
	}
}

// ApplyDeduction consumes stock for an order. The deduction marker, every
// decrement and every movement are written in one store transaction, so a
// concurrent or repeated call for the same order fails with
// ErrAlreadyDeducted and changes nothing. Decrements clamp at zero; the
// movement records the requested quantity.
func (l *Ledger) ApplyDeduction(ctx context.Context, orderID, actorID string, lines []Consumption) ([]Change, error) {
	now := l.now()
	batch := &storage.StockBatch{
		Deduction: &types.Deduction{
			OrderID:     orderID,
			ActorID:     actorID,
			MovementIDs: []string{},
			CreatedAt:   now,
		},
	}

	for _, line := range lines {
		if line.Quantity <= 0 {
			continue
		}
		m := &types.InventoryMovement{
			ID:        newID(),
			ItemID:    line.ItemID,
			Kind:      types.MovementOut,
			Quantity:  -units.Round(line.Quantity),
			Reason:    "order consumption",
			Origin:    types.OriginConsumption,
			OrderID:   orderID,
			ActorID:   actorID,
			CreatedAt: now,
		}
		// The store rewrites Quantity to the amount actually removed
		batch.Deduction.MovementIDs = append(batch.Deduction.MovementIDs, m.ID)
		batch.Mutations = append(batch.Mutations, storage.StockMutation{
			Op:       storage.OpDecrement,
			Amount:   units.Round(line.Quantity),
			Movement: m,
		})
	}

	results, err := l.store.ApplyStock(ctx, batch)
	if errors.Is(err, storage.ErrAlreadyApplied) {
		return nil, ErrAlreadyDeducted
	}
	if err != nil {
		return nil, fmt.Errorf("failed to apply deduction: %w", err)
	}

	changes := make([]Change, len(results))
	for i, res := range results {
		mut := batch.Mutations[i]
		changes[i] = Change{Item: res.Item, Before: res.Before, Requested: mut.Amount, Movement: mut.Movement}
		metrics.InventoryMovementsTotal.WithLabelValues(string(types.MovementOut), string(types.OriginConsumption)).Inc()
		if changes[i].Clamped() {
			metrics.StockClampsTotal.Inc()
			l.logger.Warn().
				Str("order_id", orderID).
				Str("item_id", res.Item.ID).
				Float64("requested", mut.Amount).
				Float64("available", res.Before).
				Msg("insufficient stock, deduction clamped at zero")
		}
		l.publish(res.Item)
	}
	return changes, nil
}

// Record applies a manual movement: purchases and returns add stock, "out"
// removes it (clamped at zero) and adjustments set an absolute count.
func (l *Ledger) Record(ctx context.Context, req MovementRequest) (*Change, error) {
	op, err := normalize(&req)
	if err != nil {
		return nil, err
	}

	item, err := l.store.GetInventoryItem(ctx, req.ItemID)
	if err != nil {
		return nil, err
	}
	if !item.Active {
		return nil, types.Validationf("inventory item %s is inactive", item.ID)
	}

	m := &types.InventoryMovement{
		ID:        newID(),
		ItemID:    req.ItemID,
		Kind:      req.Kind,
		UnitCost:  req.UnitCost,
		Reason:    req.Reason,
		Origin:    req.Origin,
		ActorID:   req.ActorID,
		CreatedAt: l.now(),
	}
	switch req.Kind {
	case types.MovementIn:
		m.Quantity = units.Round(req.Quantity)
	case types.MovementOut:
		m.Quantity = -units.Round(req.Quantity)
	}

	results, err := l.store.ApplyStock(ctx, &storage.StockBatch{
		Mutations: []storage.StockMutation{{Op: op, Amount: units.Round(req.Quantity), Movement: m}},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to record movement: %w", err)
	}

	res := results[0]
	metrics.InventoryMovementsTotal.WithLabelValues(string(m.Kind), string(m.Origin)).Inc()
	itemLogger := log.WithItemID(req.ItemID)
	itemLogger.Info().
		Str("component", "ledger").
		Str("kind", string(m.Kind)).
		Float64("quantity", m.Quantity).
		Float64("stock", res.Item.Quantity).
		Msg("inventory movement recorded")
	l.publish(res.Item)

	return &Change{Item: res.Item, Before: res.Before, Requested: req.Quantity, Movement: m}, nil
}

func normalize(req *MovementRequest) (storage.StockOp, error) {
	if req.Quantity < 0 {
		return "", types.Validationf("quantity must not be negative")
	}
	switch req.Kind {
	case types.MovementIn:
		if req.Origin == "" {
			req.Origin = types.OriginPurchase
		}
		if req.Origin != types.OriginPurchase && req.Origin != types.OriginReturn {
			return "", types.Validationf("origin %q not allowed for stock in", req.Origin)
		}
		if req.Quantity == 0 {
			return "", types.Validationf("quantity must be positive")
		}
		return storage.OpIncrement, nil
	case types.MovementOut:
		// consumption is reserved for order deductions
		if req.Origin == "" {
			req.Origin = types.OriginAdjustment
		}
		if req.Origin != types.OriginAdjustment {
			return "", types.Validationf("origin %q not allowed for manual stock out", req.Origin)
		}
		if req.Quantity == 0 {
			return "", types.Validationf("quantity must be positive")
		}
		return storage.OpDecrement, nil
	case types.MovementAdjustment:
		if req.Origin == "" {
			req.Origin = types.OriginAdjustment
		}
		if req.Origin != types.OriginAdjustment {
			return "", types.Validationf("origin %q not allowed for adjustment", req.Origin)
		}
		return storage.OpSet, nil
	default:
		return "", types.Validationf("unknown movement kind %q", req.Kind)
	}
}

func (l *Ledger) publish(item *types.InventoryItem) {
	if l.publisher == nil {
		return
	}
	l.publisher.Publish(&events.Event{
		Type:      events.EventInventoryUpdated,
		Broadcast: true,
		Payload:   item,
	})
}
