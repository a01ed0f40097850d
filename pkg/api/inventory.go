package api

import (
	"net/http"

	"github.com/cuemby/brigade/pkg/auth"
	"github.com/cuemby/brigade/pkg/ledger"
	"github.com/cuemby/brigade/pkg/types"
	"github.com/gin-gonic/gin"
)

func (s *Server) listInventory(c *gin.Context) {
	items, err := s.svc.Ledger.ListItems(c.Request.Context(), queryBool(c, "include_inactive"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, items)
}

func (s *Server) getInventoryItem(c *gin.Context) {
	item, err := s.svc.Ledger.GetItem(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

func (s *Server) createInventoryItem(c *gin.Context) {
	var item types.InventoryItem
	if !bind(c, &item) {
		return
	}
	created, err := s.svc.Ledger.CreateItem(c.Request.Context(), &item, auth.ActorFrom(c).UserID)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (s *Server) deactivateInventoryItem(c *gin.Context) {
	if err := s.svc.Ledger.Deactivate(c.Request.Context(), c.Param("id")); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) listMovements(c *gin.Context) {
	limit, err := queryInt(c, "limit")
	if err != nil {
		s.fail(c, err)
		return
	}
	movements, err := s.svc.Ledger.Movements(c.Request.Context(), c.Param("id"), limit)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, movements)
}

// POST /api/v1/inventory/:id/movements records a receipt, return, manual
// removal or count adjustment
func (s *Server) recordMovement(c *gin.Context) {
	var req ledger.MovementRequest
	if !bind(c, &req) {
		return
	}
	req.ItemID = c.Param("id")
	req.ActorID = auth.ActorFrom(c).UserID

	change, err := s.svc.Ledger.Record(c.Request.Context(), req)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"item":     change.Item,
		"movement": change.Movement,
		"clamped":  change.Clamped(),
	})
}

func (s *Server) listIngredients(c *gin.Context) {
	ingredients, err := s.svc.Recipes.Ingredients(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, ingredients)
}

func (s *Server) addIngredient(c *gin.Context) {
	var ing types.Ingredient
	if !bind(c, &ing) {
		return
	}
	ing.ProductID = c.Param("id")
	created, err := s.svc.Recipes.AddIngredient(c.Request.Context(), &ing)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}
