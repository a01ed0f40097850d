package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"path/filepath"
	"slices"
	"time"

	"github.com/cuemby/brigade/pkg/types"
	"github.com/cuemby/brigade/pkg/units"
	bolt "go.etcd.io/bbolt"
)

var (
	// Bucket names
	bucketOrders        = []byte("orders")
	bucketStatusChanges = []byte("status_changes")
	bucketEffects       = []byte("effects")
	bucketInventory     = []byte("inventory_items")
	bucketMovements     = []byte("inventory_movements")
	bucketDeductions    = []byte("inventory_deductions")
	bucketIngredients   = []byte("ingredients")
	bucketAlerts        = []byte("alerts")
)

// BoltStore implements Store using BoltDB. Records are JSON values keyed by
// id; child rows (history, movements) are keyed "<parent>/<id>" so a prefix
// scan returns them in id order. Ids are UUIDv7 and sort by creation time.
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore creates a new BoltDB-backed store
func NewBoltStore(dataDir string) (*BoltStore, error) {
	dbPath := filepath.Join(dataDir, "brigade.db")

	db, err := bolt.Open(dbPath, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		buckets := [][]byte{
			bucketOrders,
			bucketStatusChanges,
			bucketEffects,
			bucketInventory,
			bucketMovements,
			bucketDeductions,
			bucketIngredients,
			bucketAlerts,
		}

		for _, bucket := range buckets {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
			}
		}
		return nil
	})

	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStore{db: db}, nil
}

// Close closes the database
func (s *BoltStore) Close() error {
	return s.db.Close()
}

// Ping checks the database file is still open
func (s *BoltStore) Ping(ctx context.Context) error {
	return s.db.View(func(tx *bolt.Tx) error {
		if tx.Bucket(bucketOrders) == nil {
			return fmt.Errorf("bucket %s missing", bucketOrders)
		}
		return nil
	})
}

func put(b *bolt.Bucket, key string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return b.Put([]byte(key), data)
}

func get(b *bolt.Bucket, kind, key string, v interface{}) error {
	data := b.Get([]byte(key))
	if data == nil {
		return types.NotFound(kind, key)
	}
	return json.Unmarshal(data, v)
}

func childKey(parent, id string) string {
	return parent + "/" + id
}

// scanPrefix calls fn for every key under prefix in key order
func scanPrefix(b *bolt.Bucket, prefix string, fn func(v []byte) error) error {
	p := []byte(prefix + "/")
	c := b.Cursor()
	for k, v := c.Seek(p); k != nil && bytes.HasPrefix(k, p); k, v = c.Next() {
		if err := fn(v); err != nil {
			return err
		}
	}
	return nil
}

// Order operations
func (s *BoltStore) CreateOrder(ctx context.Context, order *types.Order) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketOrders)
		if b.Get([]byte(order.ID)) != nil {
			return fmt.Errorf("order %s: %w", order.ID, types.ErrConflict)
		}
		return put(b, order.ID, order)
	})
}

func (s *BoltStore) GetOrder(ctx context.Context, id string) (*types.Order, error) {
	var order types.Order
	err := s.db.View(func(tx *bolt.Tx) error {
		return get(tx.Bucket(bucketOrders), "order", id, &order)
	})
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (s *BoltStore) ListOrders(ctx context.Context, filter OrderFilter) ([]*types.Order, error) {
	var orders []*types.Order
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketOrders).Cursor()
		// newest first
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			var order types.Order
			if err := json.Unmarshal(v, &order); err != nil {
				return err
			}
			if len(filter.StatusIDs) > 0 && !slices.Contains(filter.StatusIDs, order.StatusID) {
				continue
			}
			orders = append(orders, &order)
			if filter.Limit > 0 && len(orders) >= filter.Limit {
				return nil
			}
		}
		return nil
	})
	return orders, err
}

func (s *BoltStore) AppendOrderItems(ctx context.Context, order *types.Order, items []*types.OrderItem) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketOrders)
		var stored types.Order
		if err := get(b, "order", order.ID, &stored); err != nil {
			return err
		}
		if stored.StatusID != order.StatusID || stored.StatusID.IsTerminal() {
			return fmt.Errorf("order %s is %s: %w", order.ID, stored.StatusID, types.ErrConflict)
		}

		stored.Items = append(stored.Items, items...)
		stored.Subtotal = order.Subtotal
		stored.Discount = order.Discount
		stored.Tax = order.Tax
		stored.Tip = order.Tip
		stored.Total = order.Total
		stored.UpdatedAt = order.UpdatedAt
		return put(b, order.ID, &stored)
	})
}

func (s *BoltStore) TransitionOrder(ctx context.Context, id string, from, to types.StatusID, closedBy string, change *types.StatusChange, effects []*types.Effect) (*types.Order, error) {
	var order types.Order
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketOrders)
		if err := get(b, "order", id, &order); err != nil {
			return err
		}
		if order.StatusID != from {
			return fmt.Errorf("order %s is %s, expected %s: %w", id, order.StatusID, from, types.ErrConflict)
		}

		order.StatusID = to
		order.UpdatedAt = change.ChangedAt
		if closedBy != "" {
			order.ClosedBy = closedBy
		}
		if err := put(b, id, &order); err != nil {
			return err
		}

		if err := put(tx.Bucket(bucketStatusChanges), childKey(id, change.ID), change); err != nil {
			return err
		}

		eb := tx.Bucket(bucketEffects)
		for _, e := range effects {
			if err := put(eb, e.ID, e); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (s *BoltStore) ListStatusChanges(ctx context.Context, orderID string) ([]*types.StatusChange, error) {
	var changes []*types.StatusChange
	err := s.db.View(func(tx *bolt.Tx) error {
		return scanPrefix(tx.Bucket(bucketStatusChanges), orderID, func(v []byte) error {
			var change types.StatusChange
			if err := json.Unmarshal(v, &change); err != nil {
				return err
			}
			changes = append(changes, &change)
			return nil
		})
	})
	return changes, err
}

// Outbox operations
func (s *BoltStore) ListPendingEffects(ctx context.Context, createdBefore time.Time, maxAttempts int) ([]*types.Effect, error) {
	var effects []*types.Effect
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketEffects).ForEach(func(k, v []byte) error {
			var e types.Effect
			if err := json.Unmarshal(v, &e); err != nil {
				return err
			}
			if !e.Pending() || !e.CreatedAt.Before(createdBefore) {
				return nil
			}
			if maxAttempts > 0 && e.Attempts >= maxAttempts {
				return nil
			}
			effects = append(effects, &e)
			return nil
		})
	})
	return effects, err
}

func (s *BoltStore) CompleteEffect(ctx context.Context, id string, at time.Time) error {
	return s.updateEffect(id, func(e *types.Effect) {
		e.Attempts++
		e.DoneAt = &at
		e.LastError = ""
	})
}

func (s *BoltStore) FailEffect(ctx context.Context, id string, reason string) error {
	return s.updateEffect(id, func(e *types.Effect) {
		e.Attempts++
		e.LastError = reason
	})
}

func (s *BoltStore) updateEffect(id string, fn func(*types.Effect)) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketEffects)
		var e types.Effect
		if err := get(b, "effect", id, &e); err != nil {
			return err
		}
		fn(&e)
		return put(b, id, &e)
	})
}

// Inventory operations
func (s *BoltStore) CreateInventoryItem(ctx context.Context, item *types.InventoryItem) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketInventory)
		if b.Get([]byte(item.ID)) != nil {
			return fmt.Errorf("inventory item %s: %w", item.ID, types.ErrConflict)
		}
		if item.Barcode != "" {
			err := b.ForEach(func(k, v []byte) error {
				var other types.InventoryItem
				if err := json.Unmarshal(v, &other); err != nil {
					return err
				}
				if other.Barcode == item.Barcode {
					return fmt.Errorf("barcode %s already used by %s: %w", item.Barcode, other.ID, types.ErrConflict)
				}
				return nil
			})
			if err != nil {
				return err
			}
		}
		return put(b, item.ID, item)
	})
}

func (s *BoltStore) GetInventoryItem(ctx context.Context, id string) (*types.InventoryItem, error) {
	var item types.InventoryItem
	err := s.db.View(func(tx *bolt.Tx) error {
		return get(tx.Bucket(bucketInventory), "inventory item", id, &item)
	})
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *BoltStore) ListInventoryItems(ctx context.Context, includeInactive bool) ([]*types.InventoryItem, error) {
	var items []*types.InventoryItem
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketInventory).ForEach(func(k, v []byte) error {
			var item types.InventoryItem
			if err := json.Unmarshal(v, &item); err != nil {
				return err
			}
			if item.Active || includeInactive {
				items = append(items, &item)
			}
			return nil
		})
	})
	return items, err
}

func (s *BoltStore) DeactivateInventoryItem(ctx context.Context, id string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketInventory)
		var item types.InventoryItem
		if err := get(b, "inventory item", id, &item); err != nil {
			return err
		}
		item.Active = false
		item.UpdatedAt = time.Now().UTC()
		return put(b, id, &item)
	})
}

func (s *BoltStore) ListMovements(ctx context.Context, itemID string, limit int) ([]*types.InventoryMovement, error) {
	var movements []*types.InventoryMovement
	err := s.db.View(func(tx *bolt.Tx) error {
		return scanPrefix(tx.Bucket(bucketMovements), itemID, func(v []byte) error {
			var m types.InventoryMovement
			if err := json.Unmarshal(v, &m); err != nil {
				return err
			}
			movements = append(movements, &m)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	slices.Reverse(movements)
	if limit > 0 && len(movements) > limit {
		movements = movements[:limit]
	}
	return movements, nil
}

func (s *BoltStore) ApplyStock(ctx context.Context, batch *StockBatch) ([]StockResult, error) {
	var results []StockResult
	err := s.db.Update(func(tx *bolt.Tx) error {
		db := tx.Bucket(bucketDeductions)
		if batch.Deduction != nil && db.Get([]byte(batch.Deduction.OrderID)) != nil {
			return ErrAlreadyApplied
		}

		ib := tx.Bucket(bucketInventory)
		mb := tx.Bucket(bucketMovements)
		results = make([]StockResult, 0, len(batch.Mutations))

		for _, mut := range batch.Mutations {
			m := mut.Movement
			var item types.InventoryItem
			if err := get(ib, "inventory item", m.ItemID, &item); err != nil {
				return err
			}

			before := item.Quantity
			item.Quantity = nextQuantity(mut.Op, before, mut.Amount)
			item.UpdatedAt = m.CreatedAt
			if mut.Op == OpSet || mut.Op == OpDecrement {
				m.Quantity = units.Round(item.Quantity - before)
			}

			if err := put(ib, item.ID, &item); err != nil {
				return err
			}
			if err := put(mb, childKey(m.ItemID, m.ID), m); err != nil {
				return err
			}
			results = append(results, StockResult{Before: before, Item: &item})
		}

		if batch.Deduction != nil {
			return put(db, batch.Deduction.OrderID, batch.Deduction)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

func nextQuantity(op StockOp, before, amount float64) float64 {
	switch op {
	case OpDecrement:
		return units.Round(math.Max(before-amount, 0))
	case OpIncrement:
		return units.Round(before + amount)
	default:
		return units.Round(math.Max(amount, 0))
	}
}

func (s *BoltStore) GetDeduction(ctx context.Context, orderID string) (*types.Deduction, error) {
	var d types.Deduction
	err := s.db.View(func(tx *bolt.Tx) error {
		return get(tx.Bucket(bucketDeductions), "deduction", orderID, &d)
	})
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (s *BoltStore) ListOrdersMissingDeduction(ctx context.Context, statuses []types.StatusID) ([]*types.Order, error) {
	var orders []*types.Order
	err := s.db.View(func(tx *bolt.Tx) error {
		db := tx.Bucket(bucketDeductions)
		return tx.Bucket(bucketOrders).ForEach(func(k, v []byte) error {
			if db.Get(k) != nil {
				return nil
			}
			var order types.Order
			if err := json.Unmarshal(v, &order); err != nil {
				return err
			}
			if slices.Contains(statuses, order.StatusID) {
				orders = append(orders, &order)
			}
			return nil
		})
	})
	return orders, err
}

// Recipe operations
func (s *BoltStore) CreateIngredient(ctx context.Context, ing *types.Ingredient) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		if tx.Bucket(bucketInventory).Get([]byte(ing.InventoryItemID)) == nil {
			return types.NotFound("inventory item", ing.InventoryItemID)
		}
		return put(tx.Bucket(bucketIngredients), childKey(ing.ProductID, ing.ID), ing)
	})
}

func (s *BoltStore) ListIngredients(ctx context.Context, productIDs []string) ([]*types.Ingredient, error) {
	var ingredients []*types.Ingredient
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketIngredients)
		for _, productID := range productIDs {
			err := scanPrefix(b, productID, func(v []byte) error {
				var ing types.Ingredient
				if err := json.Unmarshal(v, &ing); err != nil {
					return err
				}
				ingredients = append(ingredients, &ing)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	return ingredients, err
}

// Alert operations
func (s *BoltStore) CreateAlert(ctx context.Context, alert *types.Alert) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return put(tx.Bucket(bucketAlerts), alert.ID, alert)
	})
}

func (s *BoltStore) GetAlert(ctx context.Context, id string) (*types.Alert, error) {
	var alert types.Alert
	err := s.db.View(func(tx *bolt.Tx) error {
		return get(tx.Bucket(bucketAlerts), "alert", id, &alert)
	})
	if err != nil {
		return nil, err
	}
	return &alert, nil
}

func (s *BoltStore) ListAlerts(ctx context.Context, filter AlertFilter) ([]*types.Alert, error) {
	var alerts []*types.Alert
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketAlerts).Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			var alert types.Alert
			if err := json.Unmarshal(v, &alert); err != nil {
				return err
			}
			if !filter.matches(&alert) {
				continue
			}
			alerts = append(alerts, &alert)
			if filter.Limit > 0 && len(alerts) >= filter.Limit {
				return nil
			}
		}
		return nil
	})
	return alerts, err
}

func (f AlertFilter) matches(a *types.Alert) bool {
	if len(f.Types) > 0 && !slices.Contains(f.Types, a.Type) {
		return false
	}
	if f.UnreadOnly && a.Read {
		return false
	}
	if f.ToUserID != "" && a.ToUserID != "" && a.ToUserID != f.ToUserID {
		return false
	}
	return true
}

func (s *BoltStore) MarkAlertRead(ctx context.Context, id string, userID string, at time.Time) (*types.Alert, error) {
	var alert types.Alert
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketAlerts)
		if err := get(b, "alert", id, &alert); err != nil {
			return err
		}
		if alert.Read {
			return nil
		}
		markRead(&alert, userID, at)
		return put(b, id, &alert)
	})
	if err != nil {
		return nil, err
	}
	return &alert, nil
}

func (s *BoltStore) MarkAllAlertsRead(ctx context.Context, filter AlertFilter, userID string, at time.Time) (int, error) {
	filter.UnreadOnly = true
	count := 0
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketAlerts)
		updated := make(map[string]*types.Alert)
		err := b.ForEach(func(k, v []byte) error {
			var alert types.Alert
			if err := json.Unmarshal(v, &alert); err != nil {
				return err
			}
			if filter.matches(&alert) {
				markRead(&alert, userID, at)
				updated[alert.ID] = &alert
			}
			return nil
		})
		if err != nil {
			return err
		}
		// bbolt forbids writes while iterating with ForEach
		for id, alert := range updated {
			if err := put(b, id, alert); err != nil {
				return err
			}
		}
		count = len(updated)
		return nil
	})
	return count, err
}

func markRead(a *types.Alert, userID string, at time.Time) {
	a.Read = true
	a.ReadBy = userID
	a.ReadAt = &at
}
