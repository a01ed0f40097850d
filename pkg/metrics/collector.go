package metrics

import (
	"context"
	"time"

	"github.com/cuemby/brigade/pkg/log"
	"github.com/cuemby/brigade/pkg/storage"
	"github.com/cuemby/brigade/pkg/types"
)

// Source is the read-only store surface the collector samples
type Source interface {
	ListOrders(ctx context.Context, filter storage.OrderFilter) ([]*types.Order, error)
	ListInventoryItems(ctx context.Context, includeInactive bool) ([]*types.InventoryItem, error)
	ListPendingEffects(ctx context.Context, createdBefore time.Time, maxAttempts int) ([]*types.Effect, error)
}

// Collector periodically refreshes gauges from the store
type Collector struct {
	source   Source
	interval time.Duration
	stopCh   chan struct{}
}

// NewCollector creates a new metrics collector
func NewCollector(source Source, interval time.Duration) *Collector {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	return &Collector{
		source:   source,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Start begins collecting metrics
func (c *Collector) Start() {
	ticker := time.NewTicker(c.interval)
	go func() {
		c.Collect(context.Background())

		for {
			select {
			case <-ticker.C:
				c.Collect(context.Background())
			case <-c.stopCh:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop stops the collector
func (c *Collector) Stop() {
	close(c.stopCh)
}

// Collect samples the store once
func (c *Collector) Collect(ctx context.Context) {
	logger := log.WithComponent("metrics")

	orders, err := c.source.ListOrders(ctx, storage.OrderFilter{
		StatusIDs: []types.StatusID{types.StatusOpen, types.StatusPreparing, types.StatusReady},
	})
	if err != nil {
		logger.Error().Err(err).Msg("failed to sample orders")
	} else {
		counts := map[types.StatusID]int{types.StatusOpen: 0, types.StatusPreparing: 0, types.StatusReady: 0}
		for _, o := range orders {
			counts[o.StatusID]++
		}
		for status, n := range counts {
			OrdersByStatus.WithLabelValues(status.String()).Set(float64(n))
		}
	}

	items, err := c.source.ListInventoryItems(ctx, false)
	if err != nil {
		logger.Error().Err(err).Msg("failed to sample inventory")
	} else {
		low := 0
		for _, item := range items {
			if item.Quantity <= item.MinStock {
				low++
			}
		}
		LowStockItems.Set(float64(low))
	}

	effects, err := c.source.ListPendingEffects(ctx, time.Now(), 0)
	if err != nil {
		logger.Error().Err(err).Msg("failed to sample outbox")
	} else {
		PendingEffects.Set(float64(len(effects)))
	}
}
