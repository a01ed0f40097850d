package types

import (
	"encoding/json"
	"time"

	"github.com/cuemby/brigade/pkg/units"
	"github.com/shopspring/decimal"
)

// Order is a table or counter order
type Order struct {
	ID               string          `json:"id"`
	TableID          string          `json:"table_id,omitempty"`
	CustomerName     string          `json:"customer_name,omitempty"`
	CustomerPhone    string          `json:"customer_phone,omitempty"`
	Items            []*OrderItem    `json:"items"`
	StatusID         StatusID        `json:"status_id"`
	Subtotal         decimal.Decimal `json:"subtotal"`
	Discount         decimal.Decimal `json:"discount"`
	Tax              decimal.Decimal `json:"tax"`
	Tip              decimal.Decimal `json:"tip"`
	Total            decimal.Decimal `json:"total"`
	CreatedBy        string          `json:"created_by"`
	ClosedBy         string          `json:"closed_by,omitempty"`
	EstimatedMinutes int             `json:"estimated_minutes,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// OrderItem is a single product line on an order
type OrderItem struct {
	ID        string          `json:"id"`
	OrderID   string          `json:"order_id"`
	ProductID string          `json:"product_id"`
	SizeID    string          `json:"size_id,omitempty"` // Empty means the product has no size variants
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Note      string          `json:"note,omitempty"`
	Modifiers []Modifier      `json:"modifiers,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// Modifier is a selected product option with its price delta
type Modifier struct {
	OptionID   string          `json:"option_id"`
	PriceDelta decimal.Decimal `json:"price_delta"`
}

// LineTotal returns (unit price + modifier deltas) x quantity
func (i *OrderItem) LineTotal() decimal.Decimal {
	price := i.UnitPrice
	for _, m := range i.Modifiers {
		price = price.Add(m.PriceDelta)
	}
	return price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// StatusChange is one row of an order's status history
type StatusChange struct {
	ID        string    `json:"id"`
	OrderID   string    `json:"order_id"`
	From      StatusID  `json:"from_status_id"`
	To        StatusID  `json:"to_status_id"`
	ChangedBy string    `json:"changed_by"`
	Note      string    `json:"note,omitempty"`
	ChangedAt time.Time `json:"changed_at"`
}

// InventoryItem is a raw material tracked in stock
type InventoryItem struct {
	ID              string          `json:"id"`
	Name            string          `json:"name"`
	Barcode         string          `json:"barcode,omitempty"`
	Category        string          `json:"category,omitempty"`
	Unit            units.Unit      `json:"unit"`
	Quantity        float64         `json:"quantity"`
	MinStock        float64         `json:"min_stock"`
	MaxStock        float64         `json:"max_stock,omitempty"`
	UnitCost        decimal.Decimal `json:"unit_cost"`
	ContentPerPiece *units.Quantity `json:"content_per_piece,omitempty"` // Set when stocked by piece but consumed by weight/volume
	Active          bool            `json:"active"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// MovementKind is the direction of a stock movement
type MovementKind string

const (
	MovementIn         MovementKind = "in"
	MovementOut        MovementKind = "out"
	MovementAdjustment MovementKind = "adjustment"
)

// MovementOrigin records why stock moved
type MovementOrigin string

const (
	OriginPurchase    MovementOrigin = "purchase"
	OriginConsumption MovementOrigin = "consumption"
	OriginAdjustment  MovementOrigin = "adjustment"
	OriginReturn      MovementOrigin = "return"
)

// InventoryMovement is an append-only ledger entry
type InventoryMovement struct {
	ID        string           `json:"id"`
	ItemID    string           `json:"item_id"`
	Kind      MovementKind     `json:"kind"`
	Quantity  float64          `json:"quantity"` // Signed: negative for stock leaving
	UnitCost  *decimal.Decimal `json:"unit_cost,omitempty"`
	Reason    string           `json:"reason,omitempty"`
	Origin    MovementOrigin   `json:"origin"`
	OrderID   string           `json:"order_id,omitempty"`
	ActorID   string           `json:"actor_id,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
}

// Ingredient links a product (optionally one size) to the stock it consumes
type Ingredient struct {
	ID              string     `json:"id"`
	ProductID       string     `json:"product_id"`
	SizeID          string     `json:"size_id,omitempty"` // Empty applies to every size
	InventoryItemID string     `json:"inventory_item_id"`
	QuantityPerUnit float64    `json:"quantity_per_unit"`
	Unit            units.Unit `json:"unit"`
	AutoDeduct      bool       `json:"auto_deduct"`
	Optional        bool       `json:"optional"`
}

// Deduction marks an order whose stock consumption has been applied
type Deduction struct {
	OrderID     string    `json:"order_id"`
	ActorID     string    `json:"actor_id,omitempty"`
	MovementIDs []string  `json:"movement_ids"`
	CreatedAt   time.Time `json:"created_at"`
}

// Alert is a persisted staff notification
type Alert struct {
	ID         string          `json:"id"`
	Type       AlertType       `json:"type"`
	Message    string          `json:"message"`
	OrderID    string          `json:"order_id,omitempty"`
	TableID    string          `json:"table_id,omitempty"`
	ProductID  string          `json:"product_id,omitempty"`
	FromUserID string          `json:"from_user_id,omitempty"`
	ToUserID   string          `json:"to_user_id,omitempty"` // Empty broadcasts to the routed roles
	Priority   Priority        `json:"priority"`
	Read       bool            `json:"read"`
	ReadBy     string          `json:"read_by,omitempty"`
	ReadAt     *time.Time      `json:"read_at,omitempty"`
	Metadata   json.RawMessage `json:"metadata,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
}

// AlertType categorizes alerts
type AlertType string

const (
	AlertOperational  AlertType = "operational"
	AlertSystem       AlertType = "system"
	AlertInventory    AlertType = "inventory"
	AlertMessage      AlertType = "message"
	AlertCancellation AlertType = "cancellation"
)

// Valid reports whether t is a known alert type
func (t AlertType) Valid() bool {
	switch t {
	case AlertOperational, AlertSystem, AlertInventory, AlertMessage, AlertCancellation:
		return true
	}
	return false
}

// Priority is the urgency of an alert
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// Valid reports whether p is a known priority
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// Role is a staff job role
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleCaptain Role = "captain"
	RoleWaiter  Role = "waiter"
	RoleKitchen Role = "kitchen"
	RoleCashier Role = "cashier"
)

// Valid reports whether r is a known role
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleCaptain, RoleWaiter, RoleKitchen, RoleCashier:
		return true
	}
	return false
}

// Station is a kitchen sub-area
type Station string

const (
	StationHotLine   Station = "hot-line"
	StationColdLine  Station = "cold-line"
	StationBeverages Station = "beverages"
	StationPastry    Station = "pastry"
)

// Valid reports whether s is a known station
func (s Station) Valid() bool {
	switch s {
	case StationHotLine, StationColdLine, StationBeverages, StationPastry:
		return true
	}
	return false
}

// Actor identifies who triggered an operation
type Actor struct {
	UserID  string
	Role    Role
	Station Station
}

// EffectKind names a side effect queued by an order transition
type EffectKind string

const (
	EffectPreparingAlert    EffectKind = "preparing-alert"
	EffectReadyAlert        EffectKind = "ready-alert"
	EffectCancellationAlert EffectKind = "cancellation-alert"
	EffectDeductInventory   EffectKind = "deduct-inventory"
)

// Effect is an outbox row written together with a status change
type Effect struct {
	ID        string     `json:"id"`
	OrderID   string     `json:"order_id"`
	Kind      EffectKind `json:"kind"`
	ActorID   string     `json:"actor_id,omitempty"`
	ActorRole Role       `json:"actor_role,omitempty"`
	Reason    string     `json:"reason,omitempty"`
	Attempts  int        `json:"attempts"`
	LastError string     `json:"last_error,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	DoneAt    *time.Time `json:"done_at,omitempty"`
}

// Pending reports whether the effect still has to run
func (e *Effect) Pending() bool {
	return e.DoneAt == nil
}
