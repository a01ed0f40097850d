package recipe

import (
	"context"
	"strings"

	"github.com/cuemby/brigade/pkg/log"
	"github.com/cuemby/brigade/pkg/types"
	"github.com/cuemby/brigade/pkg/units"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Store is the persistence a Catalog needs
type Store interface {
	Source
	CreateIngredient(ctx context.Context, ing *types.Ingredient) error
	GetInventoryItem(ctx context.Context, id string) (*types.InventoryItem, error)
}

// Catalog manages the recipe links between products and inventory items
type Catalog struct {
	store  Store
	logger zerolog.Logger
}

// NewCatalog creates a recipe catalog
func NewCatalog(store Store) *Catalog {
	return &Catalog{store: store, logger: log.WithComponent("recipe")}
}

// AddIngredient links an inventory item to a product. The unit must be
// convertible into the item's stock unit.
func (c *Catalog) AddIngredient(ctx context.Context, ing *types.Ingredient) (*types.Ingredient, error) {
	ing.ProductID = strings.TrimSpace(ing.ProductID)
	if ing.ProductID == "" {
		return nil, types.Validationf("product_id is required")
	}
	if ing.InventoryItemID == "" {
		return nil, types.Validationf("inventory_item_id is required")
	}
	if ing.QuantityPerUnit <= 0 {
		return nil, types.Validationf("quantity_per_unit must be positive")
	}
	if !ing.Unit.Valid() {
		return nil, types.Validationf("unknown unit %q", ing.Unit)
	}

	item, err := c.store.GetInventoryItem(ctx, ing.InventoryItemID)
	if err != nil {
		return nil, err
	}
	if _, err := units.ToStock(units.Quantity{Value: 1, Unit: ing.Unit}, item.Unit, item.ContentPerPiece); err != nil {
		return nil, types.Validationf("%s cannot be consumed in %s: %v", item.Name, ing.Unit, err)
	}

	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	ing.ID = id.String()
	ing.Unit = ing.Unit.Canonical()
	if err := c.store.CreateIngredient(ctx, ing); err != nil {
		return nil, err
	}

	c.logger.Info().
		Str("product_id", ing.ProductID).
		Str("item_id", ing.InventoryItemID).
		Str("quantity", units.Quantity{Value: ing.QuantityPerUnit, Unit: ing.Unit}.String()).
		Msg("Recipe ingredient added")
	return ing, nil
}

// Ingredients returns the recipe of a product
func (c *Catalog) Ingredients(ctx context.Context, productID string) ([]*types.Ingredient, error) {
	ingredients, err := c.store.ListIngredients(ctx, []string{productID})
	if err != nil {
		return nil, err
	}
	if ingredients == nil {
		ingredients = []*types.Ingredient{}
	}
	return ingredients, nil
}
