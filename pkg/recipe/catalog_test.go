package recipe

import (
	"context"
	"testing"

	"github.com/cuemby/brigade/pkg/storage"
	"github.com/cuemby/brigade/pkg/types"
	"github.com/cuemby/brigade/pkg/units"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCatalog(t *testing.T) (*Catalog, *storage.BoltStore) {
	t.Helper()
	store, err := storage.NewBoltStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	ctx := context.Background()
	require.NoError(t, store.CreateInventoryItem(ctx, &types.InventoryItem{ID: "flour", Name: "Flour", Unit: units.Kilogram, Active: true}))
	require.NoError(t, store.CreateInventoryItem(ctx, &types.InventoryItem{
		ID: "mozzarella", Name: "Mozzarella", Unit: units.Piece, Active: true,
		ContentPerPiece: &units.Quantity{Value: 2, Unit: units.Kilogram},
	}))
	return NewCatalog(store), store
}

func TestAddIngredient(t *testing.T) {
	catalog, _ := newTestCatalog(t)
	ctx := context.Background()

	ing, err := catalog.AddIngredient(ctx, &types.Ingredient{
		ProductID: "margherita", InventoryItemID: "flour", QuantityPerUnit: 250, Unit: "grams", AutoDeduct: true,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, ing.ID)
	assert.Equal(t, units.Gram, ing.Unit)

	// mass is accepted for a piece item with declared content
	_, err = catalog.AddIngredient(ctx, &types.Ingredient{
		ProductID: "margherita", InventoryItemID: "mozzarella", QuantityPerUnit: 120, Unit: units.Gram, AutoDeduct: true,
	})
	require.NoError(t, err)

	recipe, err := catalog.Ingredients(ctx, "margherita")
	require.NoError(t, err)
	assert.Len(t, recipe, 2)

	empty, err := catalog.Ingredients(ctx, "calzone")
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}

func TestAddIngredientValidation(t *testing.T) {
	catalog, _ := newTestCatalog(t)

	tests := []struct {
		name string
		ing  types.Ingredient
		is   error
	}{
		{"missing product", types.Ingredient{InventoryItemID: "flour", QuantityPerUnit: 1, Unit: units.Gram}, types.ErrValidation},
		{"missing item", types.Ingredient{ProductID: "p", QuantityPerUnit: 1, Unit: units.Gram}, types.ErrValidation},
		{"zero quantity", types.Ingredient{ProductID: "p", InventoryItemID: "flour", Unit: units.Gram}, types.ErrValidation},
		{"unknown unit", types.Ingredient{ProductID: "p", InventoryItemID: "flour", QuantityPerUnit: 1, Unit: "cup"}, types.ErrValidation},
		{"incompatible unit", types.Ingredient{ProductID: "p", InventoryItemID: "flour", QuantityPerUnit: 1, Unit: units.Milliliter}, types.ErrValidation},
		{"unknown item", types.Ingredient{ProductID: "p", InventoryItemID: "sugar", QuantityPerUnit: 1, Unit: units.Gram}, types.ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ing := tt.ing
			_, err := catalog.AddIngredient(context.Background(), &ing)
			assert.ErrorIs(t, err, tt.is)
		})
	}
}
