package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cuemby/brigade/pkg/alerts"
	"github.com/cuemby/brigade/pkg/deduction"
	"github.com/cuemby/brigade/pkg/events"
	"github.com/cuemby/brigade/pkg/log"
	"github.com/cuemby/brigade/pkg/metrics"
	"github.com/cuemby/brigade/pkg/storage"
	"github.com/cuemby/brigade/pkg/types"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Deductor consumes stock for a fulfilled order
type Deductor interface {
	Deduct(ctx context.Context, orderID, actorID string) (*deduction.Result, error)
}

// Dispatcher raises alerts
type Dispatcher interface {
	Dispatch(ctx context.Context, req alerts.Request) (*alerts.Delivery, error)
}

// ItemRequest is one line to add to an order
type ItemRequest struct {
	ProductID string           `json:"product_id"`
	SizeID    string           `json:"size_id,omitempty"`
	Quantity  int              `json:"quantity"`
	UnitPrice decimal.Decimal  `json:"unit_price"`
	Note      string           `json:"note,omitempty"`
	Modifiers []types.Modifier `json:"modifiers,omitempty"`
}

// CreateRequest opens a new order
type CreateRequest struct {
	TableID          string          `json:"table_id,omitempty"`
	CustomerName     string          `json:"customer_name,omitempty"`
	CustomerPhone    string          `json:"customer_phone,omitempty"`
	Items            []ItemRequest   `json:"items"`
	Discount         decimal.Decimal `json:"discount"`
	EstimatedMinutes int             `json:"estimated_minutes,omitempty"`
}

// TransitionRequest asks for a status change
type TransitionRequest struct {
	StatusID types.StatusID `json:"status_id"`
	Reason   string         `json:"reason,omitempty"`
}

// Machine applies order status transitions and their side effects
type Machine struct {
	store     storage.OrderStore
	deductor  Deductor
	alerts    Dispatcher
	publisher events.Publisher
	pricing   Pricing
	logger    zerolog.Logger
	now       func() time.Time
}

// NewMachine creates an order state machine. publisher may be nil.
func NewMachine(store storage.OrderStore, deductor Deductor, dispatcher Dispatcher, publisher events.Publisher, pricing Pricing) *Machine {
	return &Machine{
		store:     store,
		deductor:  deductor,
		alerts:    dispatcher,
		publisher: publisher,
		pricing:   pricing,
		logger:    log.WithComponent("orders"),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func newID() string {
	return uuid.Must(uuid.NewV7()).String()
}

func (m *Machine) buildItems(orderID string, reqs []ItemRequest) ([]*types.OrderItem, error) {
	if len(reqs) == 0 {
		return nil, types.Validationf("at least one item is required")
	}
	now := m.now()
	items := make([]*types.OrderItem, 0, len(reqs))
	for i, r := range reqs {
		if strings.TrimSpace(r.ProductID) == "" {
			return nil, types.Validationf("item %d: product_id is required", i)
		}
		if r.Quantity <= 0 {
			return nil, types.Validationf("item %d: quantity must be positive", i)
		}
		if r.UnitPrice.IsNegative() {
			return nil, types.Validationf("item %d: unit_price must not be negative", i)
		}
		items = append(items, &types.OrderItem{
			ID:        newID(),
			OrderID:   orderID,
			ProductID: r.ProductID,
			SizeID:    r.SizeID,
			Quantity:  r.Quantity,
			UnitPrice: r.UnitPrice,
			Note:      r.Note,
			Modifiers: r.Modifiers,
			CreatedAt: now,
		})
	}
	return items, nil
}

// Create opens an order in the open status
func (m *Machine) Create(ctx context.Context, req CreateRequest, actor types.Actor) (*types.Order, error) {
	if req.Discount.IsNegative() {
		return nil, types.Validationf("discount must not be negative")
	}
	if req.EstimatedMinutes < 0 {
		return nil, types.Validationf("estimated_minutes must not be negative")
	}

	now := m.now()
	order := &types.Order{
		ID:               newID(),
		TableID:          req.TableID,
		CustomerName:     req.CustomerName,
		CustomerPhone:    req.CustomerPhone,
		StatusID:         types.StatusOpen,
		Discount:         req.Discount,
		CreatedBy:        actor.UserID,
		EstimatedMinutes: req.EstimatedMinutes,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	items, err := m.buildItems(order.ID, req.Items)
	if err != nil {
		return nil, err
	}
	order.Items = items
	m.pricing.Recalculate(order)

	if err := m.store.CreateOrder(ctx, order); err != nil {
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	metrics.OrdersCreatedTotal.Inc()
	m.logger.Info().
		Str("order_id", order.ID).
		Str("table_id", order.TableID).
		Str("total", order.Total.StringFixed(2)).
		Msg("Order created")
	m.publish(events.EventOrderCreated, order)
	return order, nil
}

// Get returns one order
func (m *Machine) Get(ctx context.Context, id string) (*types.Order, error) {
	return m.store.GetOrder(ctx, id)
}

// List returns orders newest first
func (m *Machine) List(ctx context.Context, filter storage.OrderFilter) ([]*types.Order, error) {
	for _, s := range filter.StatusIDs {
		if !s.Valid() {
			return nil, types.Validationf("unknown status id %d", s)
		}
	}
	return m.store.ListOrders(ctx, filter)
}

// History returns the status changes of an order, oldest first
func (m *Machine) History(ctx context.Context, id string) ([]*types.StatusChange, error) {
	if _, err := m.store.GetOrder(ctx, id); err != nil {
		return nil, err
	}
	return m.store.ListStatusChanges(ctx, id)
}

// AddItems appends lines to a non-terminal order and recomputes its totals.
// Stock is not deducted again for orders already past ready.
func (m *Machine) AddItems(ctx context.Context, orderID string, reqs []ItemRequest, actor types.Actor) (*types.Order, error) {
	order, err := m.store.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.StatusID.IsTerminal() {
		return nil, types.Validationf("order %s is %s and accepts no items", order.ID, order.StatusID)
	}

	items, err := m.buildItems(order.ID, reqs)
	if err != nil {
		return nil, err
	}
	order.Items = append(order.Items, items...)
	order.UpdatedAt = m.now()
	m.pricing.Recalculate(order)

	if err := m.store.AppendOrderItems(ctx, order, items); err != nil {
		return nil, fmt.Errorf("failed to add items: %w", err)
	}

	m.logger.Info().
		Str("order_id", order.ID).
		Str("user_id", actor.UserID).
		Int("added", len(items)).
		Msg("Items added to order")
	m.publish(events.EventOrderUpdated, order)
	return order, nil
}

// Transition moves an order to req.StatusID. The status change, its history
// row and its outbox effects are stored together; the effects then run
// inline. A failing effect is logged and left for the reconciler, the
// updated order is still returned.
func (m *Machine) Transition(ctx context.Context, orderID string, req TransitionRequest, actor types.Actor) (*types.Order, error) {
	if !req.StatusID.Valid() {
		metrics.OrderTransitionsRejected.WithLabelValues("unknown_status").Inc()
		return nil, types.Validationf("unknown status id %d", req.StatusID)
	}

	order, err := m.store.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	from := order.StatusID
	if !CanTransition(from, req.StatusID) {
		metrics.OrderTransitionsRejected.WithLabelValues("not_allowed").Inc()
		return nil, fmt.Errorf("%w: %s to %s", types.ErrInvalidTransition, from, req.StatusID)
	}

	now := m.now()
	change := &types.StatusChange{
		ID:        newID(),
		OrderID:   orderID,
		From:      from,
		To:        req.StatusID,
		ChangedBy: actor.UserID,
		Note:      req.Reason,
		ChangedAt: now,
	}

	var effects []*types.Effect
	for _, kind := range effectsFor(req.StatusID) {
		effects = append(effects, &types.Effect{
			ID:        newID(),
			OrderID:   orderID,
			Kind:      kind,
			ActorID:   actor.UserID,
			ActorRole: actor.Role,
			Reason:    req.Reason,
			CreatedAt: now,
		})
	}

	var closedBy string
	if req.StatusID == types.StatusPaid || req.StatusID == types.StatusCancelled {
		closedBy = actor.UserID
	}

	updated, err := m.store.TransitionOrder(ctx, orderID, from, req.StatusID, closedBy, change, effects)
	if err != nil {
		if errors.Is(err, types.ErrConflict) {
			metrics.OrderTransitionsRejected.WithLabelValues("conflict").Inc()
		}
		return nil, fmt.Errorf("failed to transition order: %w", err)
	}

	metrics.OrderTransitionsTotal.WithLabelValues(from.String(), req.StatusID.String()).Inc()
	m.logger.Info().
		Str("order_id", orderID).
		Str("from", from.String()).
		Str("to", req.StatusID.String()).
		Str("user_id", actor.UserID).
		Msg("Order status changed")

	m.publish(events.EventOrderUpdated, updated)
	if req.StatusID == types.StatusCancelled {
		m.publish(events.EventOrderCancelled, updated)
	}

	for _, effect := range effects {
		m.complete(ctx, updated, effect)
	}
	return updated, nil
}

// RunEffect executes a pending outbox effect and records the outcome. It is
// used by the reconciler for effects that did not complete inline.
func (m *Machine) RunEffect(ctx context.Context, effect *types.Effect) error {
	order, err := m.store.GetOrder(ctx, effect.OrderID)
	if err != nil {
		return err
	}
	return m.complete(ctx, order, effect)
}

func (m *Machine) complete(ctx context.Context, order *types.Order, effect *types.Effect) error {
	err := m.execute(ctx, order, effect)
	if err != nil {
		metrics.OutboxEffectsTotal.WithLabelValues(string(effect.Kind), "failed").Inc()
		m.logger.Error().
			Err(err).
			Str("order_id", order.ID).
			Str("effect_id", effect.ID).
			Str("effect", string(effect.Kind)).
			Msg("Order side effect failed")
		if ferr := m.store.FailEffect(ctx, effect.ID, err.Error()); ferr != nil {
			m.logger.Error().Err(ferr).Str("effect_id", effect.ID).Msg("Failed to record effect failure")
		}
		return err
	}

	metrics.OutboxEffectsTotal.WithLabelValues(string(effect.Kind), "done").Inc()
	if cerr := m.store.CompleteEffect(ctx, effect.ID, m.now()); cerr != nil {
		m.logger.Error().Err(cerr).Str("effect_id", effect.ID).Msg("Failed to complete effect")
	}
	return nil
}

func (m *Machine) publish(eventType events.EventType, order *types.Order) {
	if m.publisher == nil {
		return
	}
	m.publisher.Publish(&events.Event{
		Type:      eventType,
		Rooms:     []events.Room{events.OrderRoom(order.ID)},
		Broadcast: true,
		Payload:   order,
	})
}
