package api

import (
	"net/http"

	"github.com/cuemby/brigade/pkg/alerts"
	"github.com/cuemby/brigade/pkg/auth"
	"github.com/cuemby/brigade/pkg/events"
	"github.com/cuemby/brigade/pkg/types"
	"github.com/gin-gonic/gin"
)

func (s *Server) alertQuery(c *gin.Context) (alerts.ListRequest, error) {
	actor := auth.ActorFrom(c)
	limit, err := queryInt(c, "limit")
	if err != nil {
		return alerts.ListRequest{}, err
	}
	return alerts.ListRequest{
		Role:       actor.Role,
		UserID:     actor.UserID,
		Type:       types.AlertType(c.Query("type")),
		UnreadOnly: queryBool(c, "unread"),
		Limit:      limit,
	}, nil
}

// GET /api/v1/alerts?type=inventory&unread=true&limit=20
func (s *Server) listAlerts(c *gin.Context) {
	req, err := s.alertQuery(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	list, err := s.svc.Alerts.List(c.Request.Context(), req)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

type createAlertRequest struct {
	Type        types.AlertType        `json:"type"`
	Message     string                 `json:"message"`
	OrderID     string                 `json:"order_id,omitempty"`
	TableID     string                 `json:"table_id,omitempty"`
	ProductID   string                 `json:"product_id,omitempty"`
	Priority    types.Priority         `json:"priority,omitempty"`
	ToUserID    string                 `json:"to_user_id,omitempty"`
	Station     types.Station          `json:"station,omitempty"`
	TargetRoles []types.Role           `json:"target_roles,omitempty"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
}

func (s *Server) createAlert(c *gin.Context) {
	var req createAlertRequest
	if !bind(c, &req) {
		return
	}
	actor := auth.ActorFrom(c)
	delivery, err := s.svc.Alerts.Dispatch(c.Request.Context(), alerts.Request{
		Type:        req.Type,
		Message:     req.Message,
		OrderID:     req.OrderID,
		TableID:     req.TableID,
		ProductID:   req.ProductID,
		Priority:    req.Priority,
		FromUserID:  actor.UserID,
		FromRole:    actor.Role,
		ToUserID:    req.ToUserID,
		Station:     req.Station,
		TargetRoles: req.TargetRoles,
		Metadata:    req.Metadata,
	})
	if err != nil {
		s.fail(c, err)
		return
	}

	// The alert was delivered even when the log write failed
	code := http.StatusCreated
	if !delivery.Persisted {
		code = http.StatusAccepted
	}
	c.JSON(code, gin.H{
		"alert":     delivery.Alert,
		"rooms":     events.Topics(delivery.Rooms),
		"broadcast": delivery.Broadcast,
		"persisted": delivery.Persisted,
	})
}

func (s *Server) markAlertRead(c *gin.Context) {
	alert, err := s.svc.Alerts.MarkRead(c.Request.Context(), c.Param("id"), auth.ActorFrom(c).UserID)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, alert)
}

func (s *Server) markAllAlertsRead(c *gin.Context) {
	req, err := s.alertQuery(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	n, err := s.svc.Alerts.MarkAllRead(c.Request.Context(), req)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"updated": n})
}
