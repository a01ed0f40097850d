package storage

import (
	"context"
	"errors"
	"time"

	"github.com/cuemby/brigade/pkg/types"
)

// ErrAlreadyApplied is returned by ApplyStock when the batch carries a
// Deduction for an order that already has one. Nothing was written.
var ErrAlreadyApplied = errors.New("stock batch already applied for order")

// StockOp is how a stock mutation changes an item's quantity
type StockOp string

const (
	// OpDecrement subtracts Amount, clamped at zero
	OpDecrement StockOp = "decrement"
	// OpIncrement adds Amount
	OpIncrement StockOp = "increment"
	// OpSet replaces the quantity with Amount
	OpSet StockOp = "set"
)

// StockMutation is one item change plus the movement that records it
type StockMutation struct {
	Op       StockOp
	Amount   float64
	Movement *types.InventoryMovement
}

// StockBatch is applied in a single store transaction. When Deduction is set
// the batch is keyed by Deduction.OrderID.
type StockBatch struct {
	Deduction *types.Deduction
	Mutations []StockMutation
}

// StockResult reports an item before and after a mutation
type StockResult struct {
	Before float64
	Item   *types.InventoryItem
}

// OrderFilter narrows ListOrders
type OrderFilter struct {
	StatusIDs []types.StatusID
	Limit     int
}

// AlertFilter narrows ListAlerts
type AlertFilter struct {
	Types      []types.AlertType
	UnreadOnly bool
	ToUserID   string // When set, include only broadcasts and alerts addressed to this user
	Limit      int
}

// OrderStore persists orders, their items, status history and outbox rows
type OrderStore interface {
	CreateOrder(ctx context.Context, order *types.Order) error
	GetOrder(ctx context.Context, id string) (*types.Order, error)
	ListOrders(ctx context.Context, filter OrderFilter) ([]*types.Order, error)

	// AppendOrderItems stores new items and the order's recomputed totals.
	// Fails with types.ErrConflict when the stored status differs from
	// order.StatusID or is terminal.
	AppendOrderItems(ctx context.Context, order *types.Order, items []*types.OrderItem) error

	// TransitionOrder moves an order from one status to another, appending
	// the history row and outbox effects in the same transaction. Fails with
	// types.ErrConflict when the stored status is no longer from.
	TransitionOrder(ctx context.Context, id string, from types.StatusID, to types.StatusID, closedBy string, change *types.StatusChange, effects []*types.Effect) (*types.Order, error)
	ListStatusChanges(ctx context.Context, orderID string) ([]*types.StatusChange, error)

	ListPendingEffects(ctx context.Context, createdBefore time.Time, maxAttempts int) ([]*types.Effect, error)
	CompleteEffect(ctx context.Context, id string, at time.Time) error
	FailEffect(ctx context.Context, id string, reason string) error
}

// InventoryStore persists stock, movements and recipes
type InventoryStore interface {
	CreateInventoryItem(ctx context.Context, item *types.InventoryItem) error
	GetInventoryItem(ctx context.Context, id string) (*types.InventoryItem, error)
	ListInventoryItems(ctx context.Context, includeInactive bool) ([]*types.InventoryItem, error)
	DeactivateInventoryItem(ctx context.Context, id string) error
	ListMovements(ctx context.Context, itemID string, limit int) ([]*types.InventoryMovement, error)

	// ApplyStock applies every mutation of the batch and appends its
	// movements atomically. Results are returned in mutation order.
	ApplyStock(ctx context.Context, batch *StockBatch) ([]StockResult, error)
	GetDeduction(ctx context.Context, orderID string) (*types.Deduction, error)
	ListOrdersMissingDeduction(ctx context.Context, statuses []types.StatusID) ([]*types.Order, error)

	CreateIngredient(ctx context.Context, ing *types.Ingredient) error
	ListIngredients(ctx context.Context, productIDs []string) ([]*types.Ingredient, error)
}

// AlertStore persists the alert log
type AlertStore interface {
	CreateAlert(ctx context.Context, alert *types.Alert) error
	GetAlert(ctx context.Context, id string) (*types.Alert, error)
	ListAlerts(ctx context.Context, filter AlertFilter) ([]*types.Alert, error)
	MarkAlertRead(ctx context.Context, id string, userID string, at time.Time) (*types.Alert, error)
	MarkAllAlertsRead(ctx context.Context, filter AlertFilter, userID string, at time.Time) (int, error)
}

// Store is the full persistence surface
type Store interface {
	OrderStore
	InventoryStore
	AlertStore

	// Ping checks the backing database is reachable
	Ping(ctx context.Context) error
	Close() error
}
