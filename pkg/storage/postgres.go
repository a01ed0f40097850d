package storage

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cuemby/brigade/pkg/types"
	"github.com/cuemby/brigade/pkg/units"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed schema.sql
var schemaSQL string

// Schema returns the DDL applied by Migrate
func Schema() string {
	return schemaSQL
}

// querier is satisfied by both *pgxpool.Pool and pgx.Tx
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore implements Store on PostgreSQL through a pgx pool
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects to dsn and verifies the connection
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

// Migrate applies the embedded schema. Statements are idempotent.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) inTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func translate(err error, kind, id string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return types.NotFound(kind, id)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return fmt.Errorf("%s %s: %s: %w", kind, id, pgErr.ConstraintName, types.ErrConflict)
	}
	return err
}

// Orders

const orderColumns = `id, COALESCE(table_id, ''), COALESCE(customer_name, ''), COALESCE(customer_phone, ''),
	status_id, subtotal, discount, tax, tip, total, created_by, COALESCE(closed_by, ''),
	estimated_minutes, created_at, updated_at`

func scanOrder(row pgx.Row) (*types.Order, error) {
	var o types.Order
	err := row.Scan(&o.ID, &o.TableID, &o.CustomerName, &o.CustomerPhone,
		&o.StatusID, &o.Subtotal, &o.Discount, &o.Tax, &o.Tip, &o.Total, &o.CreatedBy, &o.ClosedBy,
		&o.EstimatedMinutes, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func insertItems(ctx context.Context, q querier, items []*types.OrderItem) error {
	for _, item := range items {
		modifiers, err := json.Marshal(item.Modifiers)
		if err != nil {
			return err
		}
		_, err = q.Exec(ctx, `
			INSERT INTO order_items (id, order_id, product_id, size_id, quantity, unit_price, note, modifiers, created_at)
			VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6, NULLIF($7, ''), $8, $9)`,
			item.ID, item.OrderID, item.ProductID, item.SizeID, item.Quantity, item.UnitPrice, item.Note, modifiers, item.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to insert item: %w", err)
		}
	}
	return nil
}

func loadItems(ctx context.Context, q querier, orders []*types.Order) error {
	if len(orders) == 0 {
		return nil
	}
	byID := make(map[string]*types.Order, len(orders))
	ids := make([]string, 0, len(orders))
	for _, o := range orders {
		o.Items = []*types.OrderItem{}
		byID[o.ID] = o
		ids = append(ids, o.ID)
	}

	rows, err := q.Query(ctx, `
		SELECT id, order_id, product_id, COALESCE(size_id, ''), quantity, unit_price, COALESCE(note, ''), modifiers, created_at
		FROM order_items WHERE order_id = ANY($1) ORDER BY created_at, id`, ids)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var item types.OrderItem
		var modifiers []byte
		if err := rows.Scan(&item.ID, &item.OrderID, &item.ProductID, &item.SizeID, &item.Quantity,
			&item.UnitPrice, &item.Note, &modifiers, &item.CreatedAt); err != nil {
			return err
		}
		if err := json.Unmarshal(modifiers, &item.Modifiers); err != nil {
			return fmt.Errorf("item %s modifiers: %w", item.ID, err)
		}
		byID[item.OrderID].Items = append(byID[item.OrderID].Items, &item)
	}
	return rows.Err()
}

func getOrder(ctx context.Context, q querier, id string) (*types.Order, error) {
	order, err := scanOrder(q.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id))
	if err != nil {
		return nil, translate(err, "order", id)
	}
	if err := loadItems(ctx, q, []*types.Order{order}); err != nil {
		return nil, err
	}
	return order, nil
}

func queryOrders(ctx context.Context, q querier, sql string, args ...any) ([]*types.Order, error) {
	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []*types.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()

	if err := loadItems(ctx, q, orders); err != nil {
		return nil, err
	}
	return orders, nil
}

func statusInts(ids []types.StatusID) []int {
	out := make([]int, len(ids))
	for i, id := range ids {
		out[i] = int(id)
	}
	return out
}

func (s *PostgresStore) CreateOrder(ctx context.Context, order *types.Order) error {
	return s.inTx(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO orders (id, table_id, customer_name, customer_phone, status_id, subtotal, discount, tax, tip, total,
				created_by, estimated_minutes, created_at, updated_at)
			VALUES ($1, NULLIF($2, ''), NULLIF($3, ''), NULLIF($4, ''), $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
			order.ID, order.TableID, order.CustomerName, order.CustomerPhone, order.StatusID,
			order.Subtotal, order.Discount, order.Tax, order.Tip, order.Total,
			order.CreatedBy, order.EstimatedMinutes, order.CreatedAt, order.UpdatedAt)
		if err != nil {
			return translate(err, "order", order.ID)
		}
		return insertItems(ctx, tx, order.Items)
	})
}

func (s *PostgresStore) GetOrder(ctx context.Context, id string) (*types.Order, error) {
	return getOrder(ctx, s.pool, id)
}

func (s *PostgresStore) ListOrders(ctx context.Context, filter OrderFilter) ([]*types.Order, error) {
	sql := `SELECT ` + orderColumns + ` FROM orders`
	var args []any
	if len(filter.StatusIDs) > 0 {
		args = append(args, statusInts(filter.StatusIDs))
		sql += ` WHERE status_id = ANY($1)`
	}
	sql += ` ORDER BY created_at DESC`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		sql += fmt.Sprintf(` LIMIT $%d`, len(args))
	}
	return queryOrders(ctx, s.pool, sql, args...)
}

func (s *PostgresStore) AppendOrderItems(ctx context.Context, order *types.Order, items []*types.OrderItem) error {
	return s.inTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE orders SET subtotal = $3, discount = $4, tax = $5, tip = $6, total = $7, updated_at = $8
			WHERE id = $1 AND status_id = $2 AND status_id NOT IN (4, 5, 6)`,
			order.ID, order.StatusID, order.Subtotal, order.Discount, order.Tax, order.Tip, order.Total, order.UpdatedAt)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return s.missingOrConflict(ctx, tx, order.ID)
		}
		return insertItems(ctx, tx, items)
	})
}

func (s *PostgresStore) missingOrConflict(ctx context.Context, q querier, id string) error {
	var status types.StatusID
	err := q.QueryRow(ctx, `SELECT status_id FROM orders WHERE id = $1`, id).Scan(&status)
	if err != nil {
		return translate(err, "order", id)
	}
	return fmt.Errorf("order %s is %s: %w", id, status, types.ErrConflict)
}

func (s *PostgresStore) TransitionOrder(ctx context.Context, id string, from, to types.StatusID, closedBy string, change *types.StatusChange, effects []*types.Effect) (*types.Order, error) {
	var order *types.Order
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE orders SET status_id = $3, closed_by = COALESCE(NULLIF($4, ''), closed_by), updated_at = $5
			WHERE id = $1 AND status_id = $2`,
			id, from, to, closedBy, change.ChangedAt)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return s.missingOrConflict(ctx, tx, id)
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO order_status_log (id, order_id, from_status, to_status, changed_by, note, changed_at)
			VALUES ($1, $2, $3, $4, NULLIF($5, ''), NULLIF($6, ''), $7)`,
			change.ID, id, change.From, change.To, change.ChangedBy, change.Note, change.ChangedAt)
		if err != nil {
			return fmt.Errorf("failed to insert order status log: %w", err)
		}

		for _, e := range effects {
			_, err = tx.Exec(ctx, `
				INSERT INTO order_effects (id, order_id, kind, actor_id, actor_role, reason, attempts, created_at)
				VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), NULLIF($6, ''), $7, $8)`,
				e.ID, e.OrderID, e.Kind, e.ActorID, e.ActorRole, e.Reason, e.Attempts, e.CreatedAt)
			if err != nil {
				return fmt.Errorf("failed to insert effect: %w", err)
			}
		}

		order, err = getOrder(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

func (s *PostgresStore) ListStatusChanges(ctx context.Context, orderID string) ([]*types.StatusChange, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, order_id, from_status, to_status, COALESCE(changed_by, ''), COALESCE(note, ''), changed_at
		FROM order_status_log WHERE order_id = $1 ORDER BY changed_at, id`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var changes []*types.StatusChange
	for rows.Next() {
		var c types.StatusChange
		if err := rows.Scan(&c.ID, &c.OrderID, &c.From, &c.To, &c.ChangedBy, &c.Note, &c.ChangedAt); err != nil {
			return nil, err
		}
		changes = append(changes, &c)
	}
	return changes, rows.Err()
}

// Outbox

func (s *PostgresStore) ListPendingEffects(ctx context.Context, createdBefore time.Time, maxAttempts int) ([]*types.Effect, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, order_id, kind, COALESCE(actor_id, ''), COALESCE(actor_role, ''), COALESCE(reason, ''),
			attempts, COALESCE(last_error, ''), created_at, done_at
		FROM order_effects
		WHERE done_at IS NULL AND created_at < $1 AND ($2 <= 0 OR attempts < $2)
		ORDER BY created_at`, createdBefore, maxAttempts)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var effects []*types.Effect
	for rows.Next() {
		var e types.Effect
		if err := rows.Scan(&e.ID, &e.OrderID, &e.Kind, &e.ActorID, &e.ActorRole, &e.Reason,
			&e.Attempts, &e.LastError, &e.CreatedAt, &e.DoneAt); err != nil {
			return nil, err
		}
		effects = append(effects, &e)
	}
	return effects, rows.Err()
}

func (s *PostgresStore) CompleteEffect(ctx context.Context, id string, at time.Time) error {
	return s.execOne(ctx, "effect", id,
		`UPDATE order_effects SET attempts = attempts + 1, done_at = $2, last_error = NULL WHERE id = $1`, id, at)
}

func (s *PostgresStore) FailEffect(ctx context.Context, id string, reason string) error {
	return s.execOne(ctx, "effect", id,
		`UPDATE order_effects SET attempts = attempts + 1, last_error = $2 WHERE id = $1`, id, reason)
}

func (s *PostgresStore) execOne(ctx context.Context, kind, id, sql string, args ...any) error {
	tag, err := s.pool.Exec(ctx, sql, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return types.NotFound(kind, id)
	}
	return nil
}

// Inventory

const itemColumns = `id, name, COALESCE(barcode, ''), COALESCE(category, ''), unit, quantity, min_stock, max_stock,
	unit_cost, content_quantity, content_unit, active, created_at, updated_at`

func scanItem(row pgx.Row) (*types.InventoryItem, error) {
	var item types.InventoryItem
	var contentQty *float64
	var contentUnit *string
	err := row.Scan(&item.ID, &item.Name, &item.Barcode, &item.Category, &item.Unit, &item.Quantity,
		&item.MinStock, &item.MaxStock, &item.UnitCost, &contentQty, &contentUnit, &item.Active,
		&item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if contentQty != nil && contentUnit != nil {
		item.ContentPerPiece = &units.Quantity{Value: *contentQty, Unit: units.Unit(*contentUnit)}
	}
	return &item, nil
}

func getItem(ctx context.Context, q querier, id string) (*types.InventoryItem, error) {
	item, err := scanItem(q.QueryRow(ctx, `SELECT `+itemColumns+` FROM inventory_items WHERE id = $1`, id))
	if err != nil {
		return nil, translate(err, "inventory item", id)
	}
	return item, nil
}

func (s *PostgresStore) CreateInventoryItem(ctx context.Context, item *types.InventoryItem) error {
	var contentQty *float64
	var contentUnit *string
	if item.ContentPerPiece != nil {
		v, u := item.ContentPerPiece.Value, string(item.ContentPerPiece.Unit)
		contentQty, contentUnit = &v, &u
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO inventory_items (id, name, barcode, category, unit, quantity, min_stock, max_stock, unit_cost,
			content_quantity, content_unit, active, created_at, updated_at)
		VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''), $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		item.ID, item.Name, item.Barcode, item.Category, item.Unit, item.Quantity, item.MinStock, item.MaxStock,
		item.UnitCost, contentQty, contentUnit, item.Active, item.CreatedAt, item.UpdatedAt)
	return translate(err, "inventory item", item.ID)
}

func (s *PostgresStore) GetInventoryItem(ctx context.Context, id string) (*types.InventoryItem, error) {
	return getItem(ctx, s.pool, id)
}

func (s *PostgresStore) ListInventoryItems(ctx context.Context, includeInactive bool) ([]*types.InventoryItem, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+itemColumns+` FROM inventory_items WHERE active OR $1 ORDER BY name`, includeInactive)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*types.InventoryItem
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (s *PostgresStore) DeactivateInventoryItem(ctx context.Context, id string) error {
	return s.execOne(ctx, "inventory item", id,
		`UPDATE inventory_items SET active = FALSE, updated_at = now() WHERE id = $1`, id)
}

func (s *PostgresStore) ListMovements(ctx context.Context, itemID string, limit int) ([]*types.InventoryMovement, error) {
	sql := `
		SELECT id, item_id, kind, quantity, unit_cost, COALESCE(reason, ''), origin, COALESCE(order_id, ''),
			COALESCE(actor_id, ''), created_at
		FROM inventory_movements WHERE item_id = $1 ORDER BY created_at DESC, id DESC`
	args := []any{itemID}
	if limit > 0 {
		sql += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var movements []*types.InventoryMovement
	for rows.Next() {
		var m types.InventoryMovement
		if err := rows.Scan(&m.ID, &m.ItemID, &m.Kind, &m.Quantity, &m.UnitCost, &m.Reason, &m.Origin,
			&m.OrderID, &m.ActorID, &m.CreatedAt); err != nil {
			return nil, err
		}
		movements = append(movements, &m)
	}
	return movements, rows.Err()
}

// stockUpdates holds the relative update for each op; the sub-select locks
// the row and exposes the previous quantity.
var stockUpdates = map[StockOp]string{
	OpDecrement: `GREATEST(i.quantity - $2, 0)`,
	OpIncrement: `i.quantity + $2`,
	OpSet:       `GREATEST($2::numeric, 0)`,
}

func (s *PostgresStore) ApplyStock(ctx context.Context, batch *StockBatch) ([]StockResult, error) {
	var results []StockResult
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		if d := batch.Deduction; d != nil {
			tag, err := tx.Exec(ctx, `
				INSERT INTO inventory_deductions (order_id, actor_id, movement_ids, created_at)
				VALUES ($1, NULLIF($2, ''), $3, $4)
				ON CONFLICT (order_id) DO NOTHING`,
				d.OrderID, d.ActorID, d.MovementIDs, d.CreatedAt)
			if err != nil {
				return fmt.Errorf("failed to insert deduction: %w", err)
			}
			if tag.RowsAffected() == 0 {
				return ErrAlreadyApplied
			}
		}

		results = make([]StockResult, 0, len(batch.Mutations))
		for _, mut := range batch.Mutations {
			m := mut.Movement
			expr, ok := stockUpdates[mut.Op]
			if !ok {
				return fmt.Errorf("unknown stock op %q", mut.Op)
			}

			var before, after float64
			err := tx.QueryRow(ctx, `
				UPDATE inventory_items i SET quantity = `+expr+`, updated_at = $3
				FROM (SELECT id, quantity FROM inventory_items WHERE id = $1 FOR UPDATE) prev
				WHERE i.id = prev.id
				RETURNING prev.quantity, i.quantity`,
				m.ItemID, mut.Amount, m.CreatedAt).Scan(&before, &after)
			if err != nil {
				return translate(err, "inventory item", m.ItemID)
			}
			if mut.Op == OpSet || mut.Op == OpDecrement {
				m.Quantity = units.Round(after - before)
			}

			_, err = tx.Exec(ctx, `
				INSERT INTO inventory_movements (id, item_id, kind, quantity, unit_cost, reason, origin, order_id, actor_id, created_at)
				VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7, NULLIF($8, ''), NULLIF($9, ''), $10)`,
				m.ID, m.ItemID, m.Kind, m.Quantity, m.UnitCost, m.Reason, m.Origin, m.OrderID, m.ActorID, m.CreatedAt)
			if err != nil {
				return fmt.Errorf("failed to insert movement: %w", err)
			}

			item, err := getItem(ctx, tx, m.ItemID)
			if err != nil {
				return err
			}
			results = append(results, StockResult{Before: before, Item: item})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

func (s *PostgresStore) GetDeduction(ctx context.Context, orderID string) (*types.Deduction, error) {
	var d types.Deduction
	err := s.pool.QueryRow(ctx, `
		SELECT order_id, COALESCE(actor_id, ''), movement_ids, created_at
		FROM inventory_deductions WHERE order_id = $1`, orderID).
		Scan(&d.OrderID, &d.ActorID, &d.MovementIDs, &d.CreatedAt)
	if err != nil {
		return nil, translate(err, "deduction", orderID)
	}
	return &d, nil
}

func (s *PostgresStore) ListOrdersMissingDeduction(ctx context.Context, statuses []types.StatusID) ([]*types.Order, error) {
	return queryOrders(ctx, s.pool, `
		SELECT `+orderColumns+` FROM orders o
		WHERE o.status_id = ANY($1)
			AND NOT EXISTS (SELECT 1 FROM inventory_deductions d WHERE d.order_id = o.id)
		ORDER BY o.created_at`, statusInts(statuses))
}

// Recipes

func (s *PostgresStore) CreateIngredient(ctx context.Context, ing *types.Ingredient) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO ingredients (id, product_id, size_id, inventory_item_id, quantity_per_unit, unit, auto_deduct, optional)
		VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6, $7, $8)`,
		ing.ID, ing.ProductID, ing.SizeID, ing.InventoryItemID, ing.QuantityPerUnit, ing.Unit, ing.AutoDeduct, ing.Optional)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23503" {
		return types.NotFound("inventory item", ing.InventoryItemID)
	}
	return translate(err, "ingredient", ing.ID)
}

func (s *PostgresStore) ListIngredients(ctx context.Context, productIDs []string) ([]*types.Ingredient, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, product_id, COALESCE(size_id, ''), inventory_item_id, quantity_per_unit, unit, auto_deduct, optional
		FROM ingredients WHERE product_id = ANY($1) ORDER BY product_id, id`, productIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ingredients []*types.Ingredient
	for rows.Next() {
		var ing types.Ingredient
		if err := rows.Scan(&ing.ID, &ing.ProductID, &ing.SizeID, &ing.InventoryItemID, &ing.QuantityPerUnit,
			&ing.Unit, &ing.AutoDeduct, &ing.Optional); err != nil {
			return nil, err
		}
		ingredients = append(ingredients, &ing)
	}
	return ingredients, rows.Err()
}

// Alerts

const alertColumns = `id, type, message, COALESCE(order_id, ''), COALESCE(table_id, ''), COALESCE(product_id, ''),
	COALESCE(from_user_id, ''), COALESCE(to_user_id, ''), priority, read, COALESCE(read_by, ''), read_at, metadata, created_at`

func scanAlert(row pgx.Row) (*types.Alert, error) {
	var a types.Alert
	var metadata []byte
	err := row.Scan(&a.ID, &a.Type, &a.Message, &a.OrderID, &a.TableID, &a.ProductID,
		&a.FromUserID, &a.ToUserID, &a.Priority, &a.Read, &a.ReadBy, &a.ReadAt, &metadata, &a.CreatedAt)
	if err != nil {
		return nil, err
	}
	if len(metadata) > 0 {
		a.Metadata = json.RawMessage(metadata)
	}
	return &a, nil
}

func (s *PostgresStore) CreateAlert(ctx context.Context, alert *types.Alert) error {
	var metadata []byte
	if len(alert.Metadata) > 0 {
		metadata = alert.Metadata
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO alerts (id, type, message, order_id, table_id, product_id, from_user_id, to_user_id, priority,
			read, metadata, created_at)
		VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), NULLIF($6, ''), NULLIF($7, ''), NULLIF($8, ''), $9,
			$10, $11, $12)`,
		alert.ID, alert.Type, alert.Message, alert.OrderID, alert.TableID, alert.ProductID, alert.FromUserID,
		alert.ToUserID, alert.Priority, alert.Read, metadata, alert.CreatedAt)
	return translate(err, "alert", alert.ID)
}

func (s *PostgresStore) GetAlert(ctx context.Context, id string) (*types.Alert, error) {
	a, err := scanAlert(s.pool.QueryRow(ctx, `SELECT `+alertColumns+` FROM alerts WHERE id = $1`, id))
	if err != nil {
		return nil, translate(err, "alert", id)
	}
	return a, nil
}

// where renders the filter as a SQL condition with positional args
func (f AlertFilter) where(args []any) (string, []any) {
	conds := []string{"TRUE"}
	if len(f.Types) > 0 {
		ts := make([]string, len(f.Types))
		for i, t := range f.Types {
			ts[i] = string(t)
		}
		args = append(args, ts)
		conds = append(conds, fmt.Sprintf("type = ANY($%d)", len(args)))
	}
	if f.UnreadOnly {
		conds = append(conds, "NOT read")
	}
	if f.ToUserID != "" {
		args = append(args, f.ToUserID)
		conds = append(conds, fmt.Sprintf("(to_user_id IS NULL OR to_user_id = $%d)", len(args)))
	}
	return strings.Join(conds, " AND "), args
}

func (s *PostgresStore) ListAlerts(ctx context.Context, filter AlertFilter) ([]*types.Alert, error) {
	cond, args := filter.where(nil)
	sql := `SELECT ` + alertColumns + ` FROM alerts WHERE ` + cond + ` ORDER BY created_at DESC, id DESC`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		sql += fmt.Sprintf(` LIMIT $%d`, len(args))
	}

	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var alerts []*types.Alert
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, err
		}
		alerts = append(alerts, a)
	}
	return alerts, rows.Err()
}

func (s *PostgresStore) MarkAlertRead(ctx context.Context, id string, userID string, at time.Time) (*types.Alert, error) {
	a, err := scanAlert(s.pool.QueryRow(ctx, `
		UPDATE alerts SET read = TRUE,
			read_by = CASE WHEN read THEN read_by ELSE NULLIF($2, '') END,
			read_at = CASE WHEN read THEN read_at ELSE $3 END
		WHERE id = $1
		RETURNING `+alertColumns, id, userID, at))
	if err != nil {
		return nil, translate(err, "alert", id)
	}
	return a, nil
}

func (s *PostgresStore) MarkAllAlertsRead(ctx context.Context, filter AlertFilter, userID string, at time.Time) (int, error) {
	filter.UnreadOnly = true
	cond, args := filter.where([]any{userID, at})
	tag, err := s.pool.Exec(ctx, `
		UPDATE alerts SET read = TRUE, read_by = NULLIF($1, ''), read_at = $2 WHERE `+cond, args...)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}
