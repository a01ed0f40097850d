package orders

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/cuemby/brigade/pkg/alerts"
	"github.com/cuemby/brigade/pkg/deduction"
	"github.com/cuemby/brigade/pkg/events"
	"github.com/cuemby/brigade/pkg/storage"
	"github.com/cuemby/brigade/pkg/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDeductor struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (f *fakeDeductor) Deduct(ctx context.Context, orderID, actorID string) (*deduction.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, orderID)
	if f.err != nil {
		return nil, f.err
	}
	return &deduction.Result{OrderID: orderID}, nil
}

type fakeDispatcher struct {
	mu       sync.Mutex
	requests []alerts.Request
}

func (f *fakeDispatcher) Dispatch(ctx context.Context, req alerts.Request) (*alerts.Delivery, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	return &alerts.Delivery{Alert: &types.Alert{ID: "a", Type: req.Type, Message: req.Message}, Persisted: true}, nil
}

type recorder struct {
	mu     sync.Mutex
	events []*events.Event
}

func (r *recorder) Publish(e *events.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) types() []events.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []events.EventType
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

type harness struct {
	store    *storage.BoltStore
	deductor *fakeDeductor
	alerts   *fakeDispatcher
	events   *recorder
	machine  *Machine
}

var (
	waiter  = types.Actor{UserID: "waiter-1", Role: types.RoleWaiter}
	cook    = types.Actor{UserID: "cook-1", Role: types.RoleKitchen, Station: types.StationHotLine}
	cashier = types.Actor{UserID: "cashier-1", Role: types.RoleCashier}
)

func newHarness(t *testing.T) *harness {
	t.Helper()
	store, err := storage.NewBoltStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	h := &harness{store: store, deductor: &fakeDeductor{}, alerts: &fakeDispatcher{}, events: &recorder{}}
	h.machine = NewMachine(store, h.deductor, h.alerts, h.events, Pricing{
		TaxRate: decimal.RequireFromString("0.16"),
		TipRate: decimal.RequireFromString("0.10"),
	})
	return h
}

func (h *harness) open(t *testing.T) *types.Order {
	t.Helper()
	order, err := h.machine.Create(context.Background(), CreateRequest{
		TableID:          "4",
		EstimatedMinutes: 15,
		Items:            []ItemRequest{{ProductID: "pizza", Quantity: 1, UnitPrice: decimal.NewFromInt(10)}},
	}, waiter)
	require.NoError(t, err)
	return order
}

func (h *harness) move(t *testing.T, id string, actor types.Actor, statuses ...types.StatusID) *types.Order {
	t.Helper()
	var order *types.Order
	for _, s := range statuses {
		var err error
		order, err = h.machine.Transition(context.Background(), id, TransitionRequest{StatusID: s}, actor)
		require.NoError(t, err)
	}
	return order
}

func TestCreateComputesTotals(t *testing.T) {
	h := newHarness(t)

	order, err := h.machine.Create(context.Background(), CreateRequest{
		TableID:  "7",
		Discount: decimal.RequireFromString("0.50"),
		Items: []ItemRequest{
			{ProductID: "pizza", Quantity: 2, UnitPrice: decimal.NewFromInt(10)},
			{ProductID: "soda", Quantity: 1, UnitPrice: decimal.NewFromInt(5), Modifiers: []types.Modifier{
				{OptionID: "lemon", PriceDelta: decimal.RequireFromString("0.50")},
			}},
		},
	}, waiter)
	require.NoError(t, err)

	assert.Equal(t, types.StatusOpen, order.StatusID)
	assert.Equal(t, "waiter-1", order.CreatedBy)
	assert.Equal(t, "25.5", order.Subtotal.String())
	assert.Equal(t, "4", order.Tax.String())
	assert.Equal(t, "2.5", order.Tip.String())
	assert.Equal(t, "31.5", order.Total.String())
	assert.Equal(t, []events.EventType{events.EventOrderCreated}, h.events.types())
}

func TestCreateValidation(t *testing.T) {
	h := newHarness(t)

	tests := []struct {
		name string
		req  CreateRequest
	}{
		{"no items", CreateRequest{}},
		{"missing product", CreateRequest{Items: []ItemRequest{{Quantity: 1}}}},
		{"zero quantity", CreateRequest{Items: []ItemRequest{{ProductID: "pizza"}}}},
		{"negative price", CreateRequest{Items: []ItemRequest{{ProductID: "pizza", Quantity: 1, UnitPrice: decimal.NewFromInt(-1)}}}},
		{"negative discount", CreateRequest{Discount: decimal.NewFromInt(-1), Items: []ItemRequest{{ProductID: "pizza", Quantity: 1}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.machine.Create(context.Background(), tt.req, waiter)
			assert.ErrorIs(t, err, types.ErrValidation)
		})
	}
}

func TestTransitionEdges(t *testing.T) {
	tests := []struct {
		name    string
		path    []types.StatusID
		next    types.StatusID
		allowed bool
	}{
		{"open to preparing", nil, types.StatusPreparing, true},
		{"open to ready", nil, types.StatusReady, false},
		{"open to paid", nil, types.StatusPaid, false},
		{"open to cancelled", nil, types.StatusCancelled, true},
		{"preparing to ready", []types.StatusID{types.StatusPreparing}, types.StatusReady, true},
		{"preparing to open", []types.StatusID{types.StatusPreparing}, types.StatusOpen, false},
		{"ready to paid", []types.StatusID{types.StatusPreparing, types.StatusReady}, types.StatusPaid, true},
		{"ready to cancelled", []types.StatusID{types.StatusPreparing, types.StatusReady}, types.StatusCancelled, true},
		{"paid to closed", []types.StatusID{types.StatusPreparing, types.StatusReady, types.StatusPaid}, types.StatusClosed, true},
		{"paid to cancelled", []types.StatusID{types.StatusPreparing, types.StatusReady, types.StatusPaid}, types.StatusCancelled, false},
		{"cancelled to closed", []types.StatusID{types.StatusCancelled}, types.StatusClosed, true},
		{"closed to open", []types.StatusID{types.StatusCancelled, types.StatusClosed}, types.StatusOpen, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			order := h.open(t)
			h.move(t, order.ID, cook, tt.path...)

			_, err := h.machine.Transition(context.Background(), order.ID, TransitionRequest{StatusID: tt.next}, cook)
			if tt.allowed {
				assert.NoError(t, err)
				assert.True(t, CanTransition(expectedFrom(tt.path), tt.next))
			} else {
				assert.ErrorIs(t, err, types.ErrInvalidTransition)
				assert.ErrorIs(t, err, types.ErrValidation)
			}
		})
	}
}

func expectedFrom(path []types.StatusID) types.StatusID {
	if len(path) == 0 {
		return types.StatusOpen
	}
	return path[len(path)-1]
}

func TestTransitionUnknownStatus(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	order := h.open(t)

	_, err := h.machine.Transition(ctx, order.ID, TransitionRequest{StatusID: 99}, cook)
	assert.ErrorIs(t, err, types.ErrValidation)

	stored, err := h.machine.Get(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusOpen, stored.StatusID)
	assert.Empty(t, h.alerts.requests)

	_, err = h.machine.Transition(ctx, "missing", TransitionRequest{StatusID: types.StatusPreparing}, cook)
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestTransitionToPreparing(t *testing.T) {
	h := newHarness(t)
	order := h.open(t)

	updated := h.move(t, order.ID, cook, types.StatusPreparing)
	assert.Equal(t, types.StatusPreparing, updated.StatusID)
	assert.Empty(t, updated.ClosedBy)

	require.Len(t, h.alerts.requests, 1)
	req := h.alerts.requests[0]
	assert.Equal(t, "preparing", req.State)
	assert.Contains(t, req.Message, "estimated time 15 min")
	assert.ElementsMatch(t, []types.Role{types.RoleWaiter, types.RoleCaptain, types.RoleAdmin}, req.TargetRoles)
	assert.Equal(t, []events.EventType{events.EventOrderCreated, events.EventOrderUpdated}, h.events.types())
	assert.Empty(t, h.deductor.calls)
}

func TestTransitionToReadyDeducts(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	order := h.open(t)

	h.move(t, order.ID, cook, types.StatusPreparing, types.StatusReady)
	assert.Equal(t, []string{order.ID}, h.deductor.calls)
	require.Len(t, h.alerts.requests, 2)
	assert.Equal(t, "ready", h.alerts.requests[1].State)

	pending, err := h.store.ListPendingEffects(ctx, time.Now().Add(time.Hour), 0)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestDeductionFailureKeepsStatus(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.deductor.err = errors.New("database is locked")
	order := h.open(t)

	updated := h.move(t, order.ID, cook, types.StatusPreparing, types.StatusReady)
	assert.Equal(t, types.StatusReady, updated.StatusID)

	pending, err := h.store.ListPendingEffects(ctx, time.Now().Add(time.Hour), 0)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, types.EffectDeductInventory, pending[0].Kind)
	assert.Equal(t, 1, pending[0].Attempts)
	assert.Equal(t, "database is locked", pending[0].LastError)

	h.deductor.err = nil
	require.NoError(t, h.machine.RunEffect(ctx, pending[0]))
	pending, err = h.store.ListPendingEffects(ctx, time.Now().Add(time.Hour), 0)
	require.NoError(t, err)
	assert.Empty(t, pending)
	assert.Len(t, h.deductor.calls, 2)
}

func TestCancellation(t *testing.T) {
	h := newHarness(t)
	byKitchen := h.open(t)
	byWaiter := h.open(t)

	cancelled, err := h.machine.Transition(context.Background(), byKitchen.ID, TransitionRequest{StatusID: types.StatusCancelled, Reason: "out of dough"}, cook)
	require.NoError(t, err)
	assert.Equal(t, "cook-1", cancelled.ClosedBy)

	_, err = h.machine.Transition(context.Background(), byWaiter.ID, TransitionRequest{StatusID: types.StatusCancelled, Reason: "out of dough"}, waiter)
	require.NoError(t, err)

	require.Len(t, h.alerts.requests, 2)
	kitchenReq, waiterReq := h.alerts.requests[0], h.alerts.requests[1]
	assert.Equal(t, types.AlertCancellation, kitchenReq.Type)
	assert.Contains(t, kitchenReq.Message, "The kitchen cannot complete")
	assert.Contains(t, waiterReq.Message, "cancelled by waiter")
	assert.Contains(t, kitchenReq.Message, "out of dough")
	assert.Contains(t, waiterReq.Message, "out of dough")
	assert.ElementsMatch(t, []types.Role{types.RoleWaiter, types.RoleCaptain, types.RoleKitchen}, kitchenReq.TargetRoles)

	assert.Contains(t, h.events.types(), events.EventOrderCancelled)
}

func TestCancellationAlertPhrasing(t *testing.T) {
	order := &types.Order{ID: "0190c1b2-aaaa-7bbb-8ccc-1234567890ab", TableID: "9"}
	kitchen := CancellationAlert(order, types.RoleKitchen, "burnt")
	captain := CancellationAlert(order, types.RoleCaptain, "burnt")

	assert.NotEqual(t, kitchen.Message, captain.Message)
	assert.Equal(t, types.PriorityHigh, kitchen.Priority)
	assert.Equal(t, types.PriorityMedium, captain.Priority)
	assert.Contains(t, kitchen.Message, "table 9")

	blank := CancellationAlert(order, "", " ")
	assert.Contains(t, blank.Message, "cancelled by staff: no reason given")
}

func TestClosedByStamp(t *testing.T) {
	h := newHarness(t)
	order := h.open(t)

	ready := h.move(t, order.ID, cook, types.StatusPreparing, types.StatusReady)
	assert.Empty(t, ready.ClosedBy)

	paid := h.move(t, order.ID, cashier, types.StatusPaid)
	assert.Equal(t, "cashier-1", paid.ClosedBy)

	closed := h.move(t, order.ID, waiter, types.StatusClosed)
	assert.Equal(t, "cashier-1", closed.ClosedBy)
}

func TestAddItems(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	order := h.open(t)
	h.move(t, order.ID, cook, types.StatusPreparing, types.StatusReady)

	updated, err := h.machine.AddItems(ctx, order.ID, []ItemRequest{
		{ProductID: "soda", Quantity: 2, UnitPrice: decimal.NewFromInt(5)},
	}, waiter)
	require.NoError(t, err)
	assert.Len(t, updated.Items, 2)
	assert.Equal(t, "20", updated.Subtotal.String())
	assert.Equal(t, "25.2", updated.Total.String())
	assert.Len(t, h.deductor.calls, 1, "adding items never deducts again")

	stored, err := h.machine.Get(ctx, order.ID)
	require.NoError(t, err)
	assert.Len(t, stored.Items, 2)
	assert.True(t, stored.Total.Equal(updated.Total))

	h.move(t, order.ID, cashier, types.StatusPaid)
	_, err = h.machine.AddItems(ctx, order.ID, []ItemRequest{{ProductID: "soda", Quantity: 1}}, waiter)
	assert.ErrorIs(t, err, types.ErrValidation)
}

func TestHistory(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	order := h.open(t)
	h.move(t, order.ID, cook, types.StatusPreparing, types.StatusReady)

	history, err := h.machine.History(ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, types.StatusOpen, history[0].From)
	assert.Equal(t, types.StatusPreparing, history[0].To)
	assert.Equal(t, types.StatusReady, history[1].To)
	assert.Equal(t, "cook-1", history[1].ChangedBy)

	_, err = h.machine.History(ctx, "missing")
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestList(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	first := h.open(t)
	second := h.open(t)
	h.move(t, second.ID, cook, types.StatusPreparing)

	all, err := h.machine.List(ctx, storage.OrderFilter{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, second.ID, all[0].ID)

	open, err := h.machine.List(ctx, storage.OrderFilter{StatusIDs: []types.StatusID{types.StatusOpen}})
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, first.ID, open[0].ID)

	_, err = h.machine.List(ctx, storage.OrderFilter{StatusIDs: []types.StatusID{42}})
	assert.ErrorIs(t, err, types.ErrValidation)
}
