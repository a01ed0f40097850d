package recipe

import (
	"context"
	"errors"
	"testing"

	"github.com/cuemby/brigade/pkg/types"
	"github.com/cuemby/brigade/pkg/units"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ingredient(id, product, size, item string, qty float64, unit units.Unit) *types.Ingredient {
	return &types.Ingredient{
		ID: id, ProductID: product, SizeID: size, InventoryItemID: item,
		QuantityPerUnit: qty, Unit: unit, AutoDeduct: true,
	}
}

func TestAggregate(t *testing.T) {
	ingredients := []*types.Ingredient{
		ingredient("i1", "pizza", "", "flour", 200, units.Gram),
		ingredient("i2", "pizza", "", "cheese", 100, units.Gram),
		ingredient("i3", "pizza", "large", "cheese", 0.2, units.Kilogram),
		ingredient("i4", "pizza", "small", "flour", 120, units.Gram),
		ingredient("i5", "bread", "", "flour", 0.5, units.Kilogram),
	}
	manual := ingredient("i6", "pizza", "", "basil", 5, units.Gram)
	manual.AutoDeduct = false
	ingredients = append(ingredients, manual)

	items := []*types.OrderItem{
		{ProductID: "pizza", SizeID: "large", Quantity: 2},
		{ProductID: "pizza", SizeID: "small", Quantity: 1},
		{ProductID: "bread", Quantity: 3},
		{ProductID: "water", Quantity: 4},
	}

	reqs := Aggregate(items, ingredients)
	require.Len(t, reqs, 2)

	cheese := reqs[0]
	assert.Equal(t, "cheese", cheese.ItemID)
	assert.Equal(t, []Contribution{
		// large overrides the all-sizes cheese entry
		{IngredientID: "i3", ProductID: "pizza", Quantity: units.Quantity{Value: 0.4, Unit: units.Kilogram}},
		{IngredientID: "i2", ProductID: "pizza", Quantity: units.Quantity{Value: 100, Unit: units.Gram}},
	}, cheese.Contributions)

	flour := reqs[1]
	assert.Equal(t, "flour", flour.ItemID)
	assert.Equal(t, []Contribution{
		{IngredientID: "i1", ProductID: "pizza", Quantity: units.Quantity{Value: 400, Unit: units.Gram}},
		{IngredientID: "i4", ProductID: "pizza", Quantity: units.Quantity{Value: 120, Unit: units.Gram}},
		{IngredientID: "i5", ProductID: "bread", Quantity: units.Quantity{Value: 1.5, Unit: units.Kilogram}},
	}, flour.Contributions)
}

func TestInStockUnit(t *testing.T) {
	req := Requirement{
		ItemID: "cheese",
		Contributions: []Contribution{
			{Quantity: units.Quantity{Value: 0.4, Unit: units.Kilogram}},
			{Quantity: units.Quantity{Value: 100, Unit: units.Gram}},
			{Quantity: units.Quantity{Value: 1, Unit: units.Liter}},
		},
	}

	t.Run("mass stock", func(t *testing.T) {
		total, dropped := req.InStockUnit(&types.InventoryItem{Unit: units.Kilogram})
		assert.InDelta(t, 0.5, total, 1e-9)
		require.Len(t, dropped, 1)
		assert.Equal(t, units.Liter, dropped[0].Quantity.Unit)
		assert.Error(t, dropped[0].Err)
	})

	t.Run("piece stock with content", func(t *testing.T) {
		item := &types.InventoryItem{Unit: units.Piece, ContentPerPiece: &units.Quantity{Value: 5, Unit: units.Kilogram}}
		total, dropped := req.InStockUnit(item)
		assert.InDelta(t, 0.1, total, 1e-9)
		assert.Len(t, dropped, 1)
	})

	t.Run("piece stock without content drops mass", func(t *testing.T) {
		total, dropped := req.InStockUnit(&types.InventoryItem{Unit: units.Piece})
		assert.Zero(t, total)
		assert.Len(t, dropped, 3)
	})
}

func TestRequirementOptional(t *testing.T) {
	assert.False(t, Requirement{}.Optional())
	assert.True(t, Requirement{Contributions: []Contribution{{Optional: true}}}.Optional())
	assert.False(t, Requirement{Contributions: []Contribution{{Optional: true}, {}}}.Optional())
}

type stubSource struct {
	ingredients []*types.Ingredient
	err         error
	asked       []string
}

func (s *stubSource) ListIngredients(ctx context.Context, productIDs []string) ([]*types.Ingredient, error) {
	s.asked = productIDs
	return s.ingredients, s.err
}

func TestResolver(t *testing.T) {
	src := &stubSource{ingredients: []*types.Ingredient{ingredient("i1", "latte", "", "milk", 250, units.Milliliter)}}
	r := NewResolver(src)

	reqs, err := r.Resolve(context.Background(), []*types.OrderItem{
		{ProductID: "latte", Quantity: 2},
		{ProductID: "latte", Quantity: 1},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"latte"}, src.asked)
	require.Len(t, reqs, 1)
	total, _ := reqs[0].InStockUnit(&types.InventoryItem{Unit: units.Liter})
	assert.InDelta(t, 0.75, total, 1e-9)

	reqs, err = r.Resolve(context.Background(), nil)
	assert.NoError(t, err)
	assert.Empty(t, reqs)

	src.err = errors.New("connection reset")
	_, err = r.Resolve(context.Background(), []*types.OrderItem{{ProductID: "latte", Quantity: 1}})
	assert.ErrorContains(t, err, "connection reset")
}
