package deduction

import (
	"fmt"

	"github.com/cuemby/brigade/pkg/alerts"
	"github.com/cuemby/brigade/pkg/ledger"
	"github.com/cuemby/brigade/pkg/types"
)

// Crossing is the threshold a stock change went through
type Crossing int

const (
	CrossingNone Crossing = iota
	CrossingLowStock
	CrossingOutOfStock
)

// Cross reports which threshold a change from before to after crossed.
// Out of stock wins when both are crossed at once.
func Cross(before, after, minStock float64) Crossing {
	switch {
	case before > 0 && after <= 0:
		return CrossingOutOfStock
	case before > minStock && after <= minStock:
		return CrossingLowStock
	default:
		return CrossingNone
	}
}

var stockAudience = []types.Role{types.RoleAdmin, types.RoleKitchen}

func thresholdAlert(change ledger.Change, actorID string) (alerts.Request, bool) {
	item := change.Item
	req := alerts.Request{
		Type:        types.AlertInventory,
		FromUserID:  actorID,
		TargetRoles: stockAudience,
		Metadata: map[string]interface{}{
			"item_id":   item.ID,
			"quantity":  item.Quantity,
			"min_stock": item.MinStock,
			"unit":      string(item.Unit),
		},
	}

	switch Cross(change.Before, item.Quantity, item.MinStock) {
	case CrossingOutOfStock:
		req.Priority = types.PriorityHigh
		req.State = "out_of_stock"
		req.Message = fmt.Sprintf("%s is out of stock", item.Name)
	case CrossingLowStock:
		req.Priority = types.PriorityMedium
		req.State = "low_stock"
		req.Message = fmt.Sprintf("Low stock: %s has %g %s left (minimum %g)", item.Name, item.Quantity, item.Unit, item.MinStock)
	default:
		return req, false
	}
	return req, true
}
