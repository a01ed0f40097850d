package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/cuemby/brigade/pkg/auth"
	"github.com/cuemby/brigade/pkg/deduction"
	"github.com/cuemby/brigade/pkg/orders"
	"github.com/cuemby/brigade/pkg/storage"
	"github.com/cuemby/brigade/pkg/types"
	"github.com/gin-gonic/gin"
)

// GET /api/v1/orders?status=1,2&limit=50
func (s *Server) listOrders(c *gin.Context) {
	limit, err := queryInt(c, "limit")
	if err != nil {
		s.fail(c, err)
		return
	}
	filter := storage.OrderFilter{Limit: limit}
	if raw := c.Query("status"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			id, err := strconv.Atoi(strings.TrimSpace(part))
			if err != nil {
				s.fail(c, types.Validationf("invalid status %q", part))
				return
			}
			filter.StatusIDs = append(filter.StatusIDs, types.StatusID(id))
		}
	}

	list, err := s.svc.Orders.List(c.Request.Context(), filter)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (s *Server) getOrder(c *gin.Context) {
	order, err := s.svc.Orders.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (s *Server) createOrder(c *gin.Context) {
	var req orders.CreateRequest
	if !bind(c, &req) {
		return
	}
	order, err := s.svc.Orders.Create(c.Request.Context(), req, auth.ActorFrom(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, order)
}

type addItemsRequest struct {
	Items []orders.ItemRequest `json:"items"`
}

func (s *Server) addOrderItems(c *gin.Context) {
	var req addItemsRequest
	if !bind(c, &req) {
		return
	}
	order, err := s.svc.Orders.AddItems(c.Request.Context(), c.Param("id"), req.Items, auth.ActorFrom(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

// PATCH /api/v1/orders/:id/status {"status_id": 3, "reason": "..."}
func (s *Server) transitionOrder(c *gin.Context) {
	var req orders.TransitionRequest
	if !bind(c, &req) {
		return
	}
	order, err := s.svc.Orders.Transition(c.Request.Context(), c.Param("id"), req, auth.ActorFrom(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (s *Server) orderHistory(c *gin.Context) {
	history, err := s.svc.Orders.History(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, history)
}

type stockCheckResponse struct {
	OrderID   string               `json:"order_id"`
	Blocking  bool                 `json:"blocking"`
	Shortages []deduction.Shortage `json:"shortages"`
}

// GET /api/v1/orders/:id/stock-check reports what the order would be short
// of. Shortages never block the order.
func (s *Server) stockCheck(c *gin.Context) {
	order, err := s.svc.Orders.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	shortages, err := s.svc.Engine.CheckStock(c.Request.Context(), order.Items)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, stockCheckResponse{
		OrderID:   order.ID,
		Blocking:  deduction.Blocking(shortages),
		Shortages: shortages,
	})
}
