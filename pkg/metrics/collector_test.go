package metrics

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cuemby/brigade/pkg/storage"
	"github.com/cuemby/brigade/pkg/types"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

type fakeSource struct {
	orders  []*types.Order
	items   []*types.InventoryItem
	effects []*types.Effect
	itemErr error
}

func (f *fakeSource) ListOrders(ctx context.Context, filter storage.OrderFilter) ([]*types.Order, error) {
	return f.orders, nil
}

func (f *fakeSource) ListInventoryItems(ctx context.Context, includeInactive bool) ([]*types.InventoryItem, error) {
	return f.items, f.itemErr
}

func (f *fakeSource) ListPendingEffects(ctx context.Context, createdBefore time.Time, maxAttempts int) ([]*types.Effect, error) {
	return f.effects, nil
}

func TestCollectorCollect(t *testing.T) {
	src := &fakeSource{
		orders: []*types.Order{
			{ID: "a", StatusID: types.StatusOpen},
			{ID: "b", StatusID: types.StatusOpen},
			{ID: "c", StatusID: types.StatusReady},
		},
		items: []*types.InventoryItem{
			{ID: "flour", Quantity: 1, MinStock: 2},
			{ID: "salt", Quantity: 2, MinStock: 2},
			{ID: "milk", Quantity: 9, MinStock: 2},
		},
		effects: []*types.Effect{{ID: "e1"}},
	}

	NewCollector(src, 0).Collect(context.Background())

	assert.Equal(t, 2.0, testutil.ToFloat64(OrdersByStatus.WithLabelValues("open")))
	assert.Equal(t, 0.0, testutil.ToFloat64(OrdersByStatus.WithLabelValues("preparing")))
	assert.Equal(t, 1.0, testutil.ToFloat64(OrdersByStatus.WithLabelValues("ready")))
	assert.Equal(t, 2.0, testutil.ToFloat64(LowStockItems))
	assert.Equal(t, 1.0, testutil.ToFloat64(PendingEffects))
}

func TestCollectorKeepsGaugeOnError(t *testing.T) {
	LowStockItems.Set(5)
	src := &fakeSource{itemErr: errors.New("database closed")}

	NewCollector(src, time.Minute).Collect(context.Background())

	assert.Equal(t, 5.0, testutil.ToFloat64(LowStockItems))
	assert.Equal(t, 0.0, testutil.ToFloat64(PendingEffects))
}
