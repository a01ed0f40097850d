package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/cuemby/brigade/pkg/alerts"
	"github.com/cuemby/brigade/pkg/events"
	"github.com/cuemby/brigade/pkg/types"
)

const handlerTimeout = 5 * time.Second

type kitchenAlertData struct {
	OrderID  string          `json:"order_id"`
	TableID  string          `json:"table_id,omitempty"`
	Station  types.Station   `json:"station,omitempty"`
	Type     types.AlertType `json:"type"`
	Message  string          `json:"message"`
	Priority types.Priority  `json:"priority"`
}

type acknowledgeData struct {
	AlertID string `json:"alert_id"`
	OrderID string `json:"order_id"`
}

type orderData struct {
	OrderID string `json:"order_id"`
}

func (g *Gateway) handle(c *conn, msg message) error {
	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()

	switch msg.Event {
	case EventCreateKitchenAlert:
		if c.actor.Role != types.RoleWaiter && c.actor.Role != types.RoleCaptain {
			return fmt.Errorf("role %s cannot create kitchen alerts", c.actor.Role)
		}
		var data kitchenAlertData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			return fmt.Errorf("invalid payload: %w", err)
		}
		if data.Type == "" {
			data.Type = types.AlertOperational
		}
		_, err := g.alerts.Dispatch(ctx, alerts.Request{
			Type:        data.Type,
			Message:     data.Message,
			OrderID:     data.OrderID,
			TableID:     data.TableID,
			Priority:    data.Priority,
			FromUserID:  c.actor.UserID,
			FromRole:    c.actor.Role,
			Station:     data.Station,
			TargetRoles: []types.Role{types.RoleKitchen},
			State:       "kitchen_request",
		})
		return err

	case EventAcknowledgeAlert:
		var data acknowledgeData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			return fmt.Errorf("invalid payload: %w", err)
		}
		if data.AlertID == "" {
			return fmt.Errorf("alert_id is required")
		}
		_, err := g.alerts.Acknowledge(ctx, data.AlertID, data.OrderID, c.actor)
		return err

	case EventJoinOrder, EventLeaveOrder:
		var data orderData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			return fmt.Errorf("invalid payload: %w", err)
		}
		if strings.TrimSpace(data.OrderID) == "" {
			return fmt.Errorf("order_id is required")
		}
		room := events.OrderRoom(data.OrderID)
		if msg.Event == EventJoinOrder {
			c.sub.Join(room)
			c.reply(EventJoined, map[string]string{"room": room.Topic()})
		} else {
			c.sub.Leave(room)
			c.reply(EventLeft, map[string]string{"room": room.Topic()})
		}
		return nil

	default:
		return fmt.Errorf("unknown event %q", msg.Event)
	}
}
