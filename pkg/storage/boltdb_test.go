package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cuemby/brigade/pkg/types"
	"github.com/cuemby/brigade/pkg/units"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *BoltStore {
	t.Helper()
	s, err := NewBoltStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func id() string {
	return uuid.Must(uuid.NewV7()).String()
}

func seedItem(t *testing.T, s *BoltStore, qty float64) *types.InventoryItem {
	t.Helper()
	item := &types.InventoryItem{ID: id(), Name: "flour", Unit: units.Kilogram, Quantity: qty, MinStock: 2, Active: true}
	require.NoError(t, s.CreateInventoryItem(context.Background(), item))
	return item
}

func seedOrder(t *testing.T, s *BoltStore, status types.StatusID) *types.Order {
	t.Helper()
	now := time.Now().UTC()
	order := &types.Order{ID: id(), StatusID: status, CreatedBy: "u-1", CreatedAt: now, UpdatedAt: now}
	require.NoError(t, s.CreateOrder(context.Background(), order))
	return order
}

func outMovement(itemID, orderID string, qty float64) *types.InventoryMovement {
	return &types.InventoryMovement{
		ID: id(), ItemID: itemID, Kind: types.MovementOut, Quantity: -qty,
		Origin: types.OriginConsumption, OrderID: orderID, CreatedAt: time.Now().UTC(),
	}
}

func TestApplyStockDeductionOnce(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	item := seedItem(t, s, 10)
	order := seedOrder(t, s, types.StatusReady)

	batch := func() *StockBatch {
		m := outMovement(item.ID, order.ID, 3)
		return &StockBatch{
			Deduction: &types.Deduction{OrderID: order.ID, MovementIDs: []string{m.ID}, CreatedAt: time.Now()},
			Mutations: []StockMutation{{Op: OpDecrement, Amount: 3, Movement: m}},
		}
	}

	results, err := s.ApplyStock(ctx, batch())
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, 10.0, results[0].Before)
	assert.Equal(t, 7.0, results[0].Item.Quantity)

	_, err = s.ApplyStock(ctx, batch())
	assert.True(t, errors.Is(err, ErrAlreadyApplied))

	stored, err := s.GetInventoryItem(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, 7.0, stored.Quantity)

	movements, err := s.ListMovements(ctx, item.ID, 0)
	require.NoError(t, err)
	assert.Len(t, movements, 1)

	d, err := s.GetDeduction(ctx, order.ID)
	require.NoError(t, err)
	assert.Len(t, d.MovementIDs, 1)
}

func TestApplyStockOps(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	tests := []struct {
		name     string
		start    float64
		op       StockOp
		amount   float64
		expected float64
		movement float64
	}{
		{name: "decrement clamps at zero", start: 2, op: OpDecrement, amount: 5, expected: 0, movement: -2},
		{name: "decrement", start: 4, op: OpDecrement, amount: 1.5, expected: 2.5, movement: -1.5},
		{name: "increment", start: 2, op: OpIncrement, amount: 1.5, expected: 3.5, movement: 1.5},
		{name: "set records the delta", start: 8, op: OpSet, amount: 5, expected: 5, movement: -3},
		{name: "set never goes negative", start: 1, op: OpSet, amount: -4, expected: 0, movement: -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			item := seedItem(t, s, tt.start)
			m := &types.InventoryMovement{ID: id(), ItemID: item.ID, Kind: types.MovementAdjustment, Quantity: tt.movement, Origin: types.OriginAdjustment}
			if tt.op != OpIncrement {
				m.Quantity = 0
			}

			results, err := s.ApplyStock(ctx, &StockBatch{Mutations: []StockMutation{{Op: tt.op, Amount: tt.amount, Movement: m}}})
			require.NoError(t, err)
			assert.Equal(t, tt.start, results[0].Before)
			assert.Equal(t, tt.expected, results[0].Item.Quantity)
			assert.Equal(t, tt.movement, m.Quantity)
		})
	}
}

func TestApplyStockRollsBackOnMissingItem(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	item := seedItem(t, s, 10)
	order := seedOrder(t, s, types.StatusReady)

	_, err := s.ApplyStock(ctx, &StockBatch{
		Deduction: &types.Deduction{OrderID: order.ID},
		Mutations: []StockMutation{
			{Op: OpDecrement, Amount: 1, Movement: outMovement(item.ID, order.ID, 1)},
			{Op: OpDecrement, Amount: 1, Movement: outMovement("missing", order.ID, 1)},
		},
	})
	assert.ErrorIs(t, err, types.ErrNotFound)

	stored, err := s.GetInventoryItem(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, 10.0, stored.Quantity)

	_, err = s.GetDeduction(ctx, order.ID)
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestTransitionOrder(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	order := seedOrder(t, s, types.StatusOpen)
	now := time.Now().UTC()

	change := &types.StatusChange{ID: id(), OrderID: order.ID, From: types.StatusOpen, To: types.StatusPreparing, ChangedAt: now}
	effect := &types.Effect{ID: id(), OrderID: order.ID, Kind: types.EffectPreparingAlert, CreatedAt: now.Add(-time.Minute)}

	updated, err := s.TransitionOrder(ctx, order.ID, types.StatusOpen, types.StatusPreparing, "", change, []*types.Effect{effect})
	require.NoError(t, err)
	assert.Equal(t, types.StatusPreparing, updated.StatusID)
	assert.Empty(t, updated.ClosedBy)

	// stale from status
	_, err = s.TransitionOrder(ctx, order.ID, types.StatusOpen, types.StatusCancelled, "u-2",
		&types.StatusChange{ID: id(), OrderID: order.ID, ChangedAt: now}, nil)
	assert.ErrorIs(t, err, types.ErrConflict)

	_, err = s.TransitionOrder(ctx, "nope", types.StatusOpen, types.StatusPreparing, "",
		&types.StatusChange{ID: id()}, nil)
	assert.ErrorIs(t, err, types.ErrNotFound)

	history, err := s.ListStatusChanges(ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, types.StatusPreparing, history[0].To)

	pending, err := s.ListPendingEffects(ctx, now, 3)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	require.NoError(t, s.FailEffect(ctx, effect.ID, "broker down"))
	pending, err = s.ListPendingEffects(ctx, now, 3)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, 1, pending[0].Attempts)
	assert.Equal(t, "broker down", pending[0].LastError)

	require.NoError(t, s.CompleteEffect(ctx, effect.ID, now))
	pending, err = s.ListPendingEffects(ctx, now, 3)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestAppendOrderItemsRejectsTerminal(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	order := seedOrder(t, s, types.StatusPaid)

	err := s.AppendOrderItems(ctx, order, []*types.OrderItem{{ID: id(), OrderID: order.ID, ProductID: "p-1", Quantity: 1}})
	assert.ErrorIs(t, err, types.ErrConflict)

	open := seedOrder(t, s, types.StatusOpen)
	require.NoError(t, s.AppendOrderItems(ctx, open, []*types.OrderItem{{ID: id(), OrderID: open.ID, ProductID: "p-1", Quantity: 2}}))
	stored, err := s.GetOrder(ctx, open.ID)
	require.NoError(t, err)
	assert.Len(t, stored.Items, 1)
}

func TestListOrdersMissingDeduction(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	item := seedItem(t, s, 10)

	ready := seedOrder(t, s, types.StatusReady)
	paid := seedOrder(t, s, types.StatusPaid)
	seedOrder(t, s, types.StatusOpen)

	_, err := s.ApplyStock(ctx, &StockBatch{
		Deduction: &types.Deduction{OrderID: paid.ID},
		Mutations: []StockMutation{{Op: OpDecrement, Amount: 1, Movement: outMovement(item.ID, paid.ID, 1)}},
	})
	require.NoError(t, err)

	orders, err := s.ListOrdersMissingDeduction(ctx, []types.StatusID{types.StatusReady, types.StatusPaid})
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, ready.ID, orders[0].ID)
}

func TestInventoryBarcodeUnique(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	a := &types.InventoryItem{ID: id(), Name: "milk", Barcode: "750100", Unit: units.Liter, Active: true}
	b := &types.InventoryItem{ID: id(), Name: "milk 2", Barcode: "750100", Unit: units.Liter, Active: true}
	require.NoError(t, s.CreateInventoryItem(ctx, a))
	assert.ErrorIs(t, s.CreateInventoryItem(ctx, b), types.ErrConflict)

	require.NoError(t, s.DeactivateInventoryItem(ctx, a.ID))
	active, err := s.ListInventoryItems(ctx, false)
	require.NoError(t, err)
	assert.Empty(t, active)
	all, err := s.ListInventoryItems(ctx, true)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestIngredientsByProduct(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	item := seedItem(t, s, 10)

	require.NoError(t, s.CreateIngredient(ctx, &types.Ingredient{ID: id(), ProductID: "p1", InventoryItemID: item.ID, QuantityPerUnit: 1, Unit: units.Gram}))
	require.NoError(t, s.CreateIngredient(ctx, &types.Ingredient{ID: id(), ProductID: "p10", InventoryItemID: item.ID, QuantityPerUnit: 1, Unit: units.Gram}))
	err := s.CreateIngredient(ctx, &types.Ingredient{ID: id(), ProductID: "p1", InventoryItemID: "ghost", QuantityPerUnit: 1, Unit: units.Gram})
	assert.ErrorIs(t, err, types.ErrNotFound)

	ings, err := s.ListIngredients(ctx, []string{"p1"})
	require.NoError(t, err)
	assert.Len(t, ings, 1)
}

func TestAlertReadState(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	now := time.Now().UTC()

	inv := &types.Alert{ID: id(), Type: types.AlertInventory, Message: "low stock", Priority: types.PriorityMedium, CreatedAt: now}
	op := &types.Alert{ID: id(), Type: types.AlertOperational, Message: "order ready", Priority: types.PriorityMedium, CreatedAt: now}
	direct := &types.Alert{ID: id(), Type: types.AlertMessage, Message: "hi", ToUserID: "u-2", Priority: types.PriorityLow, CreatedAt: now}
	for _, a := range []*types.Alert{inv, op, direct} {
		require.NoError(t, s.CreateAlert(ctx, a))
	}

	list, err := s.ListAlerts(ctx, AlertFilter{Types: []types.AlertType{types.AlertInventory}})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, inv.ID, list[0].ID)

	list, err = s.ListAlerts(ctx, AlertFilter{ToUserID: "u-3"})
	require.NoError(t, err)
	assert.Len(t, list, 2)

	// newest first
	list, err = s.ListAlerts(ctx, AlertFilter{Limit: 1})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, direct.ID, list[0].ID)

	read, err := s.MarkAlertRead(ctx, inv.ID, "u-1", now)
	require.NoError(t, err)
	assert.True(t, read.Read)
	assert.Equal(t, "u-1", read.ReadBy)

	// first reader wins
	read, err = s.MarkAlertRead(ctx, inv.ID, "u-9", now)
	require.NoError(t, err)
	assert.Equal(t, "u-1", read.ReadBy)

	n, err := s.MarkAllAlertsRead(ctx, AlertFilter{ToUserID: "u-1"}, "u-1", now)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	unread, err := s.ListAlerts(ctx, AlertFilter{UnreadOnly: true})
	require.NoError(t, err)
	require.Len(t, unread, 1)
	assert.Equal(t, direct.ID, unread[0].ID)
}
