package recipe

import (
	"context"
	"fmt"
	"sort"

	"github.com/cuemby/brigade/pkg/types"
	"github.com/cuemby/brigade/pkg/units"
)

// Source returns the recipe links of a set of products
type Source interface {
	ListIngredients(ctx context.Context, productIDs []string) ([]*types.Ingredient, error)
}

// Contribution is what one order line consumes of one inventory item, in
// the ingredient's own unit
type Contribution struct {
	IngredientID string
	ProductID    string
	Quantity     units.Quantity
	Optional     bool
}

// Requirement aggregates every contribution against one inventory item
type Requirement struct {
	ItemID        string
	Contributions []Contribution
}

// Optional reports whether every contribution comes from optional recipe entries
func (r Requirement) Optional() bool {
	for _, c := range r.Contributions {
		if !c.Optional {
			return false
		}
	}
	return len(r.Contributions) > 0
}

// Dropped is a contribution that could not be expressed in the stock unit
type Dropped struct {
	Contribution
	Err error
}

// InStockUnit converts every contribution into the unit item is stocked in
// and sums them. Each converted contribution is rounded before summation.
// Contributions in an incompatible unit are returned as dropped.
func (r Requirement) InStockUnit(item *types.InventoryItem) (float64, []Dropped) {
	var total float64
	var dropped []Dropped
	for _, c := range r.Contributions {
		v, err := units.ToStock(c.Quantity, item.Unit, item.ContentPerPiece)
		if err != nil {
			dropped = append(dropped, Dropped{Contribution: c, Err: err})
			continue
		}
		total += v
	}
	return units.Round(total), dropped
}

// Resolver turns order lines into per-item requirements
type Resolver struct {
	source Source
}

// NewResolver creates a resolver reading recipes from source
func NewResolver(source Source) *Resolver {
	return &Resolver{source: source}
}

// Resolve loads the recipes of the ordered products and aggregates them
func (r *Resolver) Resolve(ctx context.Context, items []*types.OrderItem) ([]Requirement, error) {
	seen := make(map[string]bool)
	var productIDs []string
	for _, item := range items {
		if !seen[item.ProductID] {
			seen[item.ProductID] = true
			productIDs = append(productIDs, item.ProductID)
		}
	}
	if len(productIDs) == 0 {
		return nil, nil
	}

	ingredients, err := r.source.ListIngredients(ctx, productIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to load recipes: %w", err)
	}
	return Aggregate(items, ingredients), nil
}

// Aggregate applies the recipe of each line: entries for the line's size and
// entries for all sizes contribute quantity_per_unit x line quantity. A
// size-specific entry replaces the all-sizes entry for the same inventory
// item. Entries that are not auto-deducted are skipped. Requirements are
// returned sorted by item id.
func Aggregate(items []*types.OrderItem, ingredients []*types.Ingredient) []Requirement {
	byProduct := make(map[string][]*types.Ingredient)
	for _, ing := range ingredients {
		if !ing.AutoDeduct || ing.QuantityPerUnit <= 0 {
			continue
		}
		byProduct[ing.ProductID] = append(byProduct[ing.ProductID], ing)
	}

	buckets := make(map[string]*Requirement)
	for _, item := range items {
		if item.Quantity <= 0 {
			continue
		}
		for _, ing := range applicable(byProduct[item.ProductID], item.SizeID) {
			req, ok := buckets[ing.InventoryItemID]
			if !ok {
				req = &Requirement{ItemID: ing.InventoryItemID}
				buckets[ing.InventoryItemID] = req
			}
			req.Contributions = append(req.Contributions, Contribution{
				IngredientID: ing.ID,
				ProductID:    item.ProductID,
				Quantity: units.Quantity{
					Value: units.Round(ing.QuantityPerUnit * float64(item.Quantity)),
					Unit:  ing.Unit,
				},
				Optional: ing.Optional,
			})
		}
	}

	out := make([]Requirement, 0, len(buckets))
	for _, req := range buckets {
		out = append(out, *req)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ItemID < out[j].ItemID })
	return out
}

func applicable(ingredients []*types.Ingredient, sizeID string) []*types.Ingredient {
	specific := make(map[string]bool)
	if sizeID != "" {
		for _, ing := range ingredients {
			if ing.SizeID == sizeID {
				specific[ing.InventoryItemID] = true
			}
		}
	}

	var out []*types.Ingredient
	for _, ing := range ingredients {
		switch {
		case ing.SizeID == "" && !specific[ing.InventoryItemID]:
			out = append(out, ing)
		case ing.SizeID != "" && ing.SizeID == sizeID:
			out = append(out, ing)
		}
	}
	return out
}
