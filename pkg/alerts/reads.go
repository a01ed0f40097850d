package alerts

import (
	"context"
	"encoding/json"
	"slices"
	"strings"

	"github.com/cuemby/brigade/pkg/events"
	"github.com/cuemby/brigade/pkg/storage"
	"github.com/cuemby/brigade/pkg/types"
)

// EventAlertAcknowledged tells the sender that the kitchen has seen an alert
const EventAlertAcknowledged events.EventType = "alert-acknowledged"

// visibleTypes lists the alert types each role reads. Admins see everything.
var visibleTypes = map[types.Role][]types.AlertType{
	types.RoleKitchen: {types.AlertOperational, types.AlertMessage, types.AlertCancellation, types.AlertInventory},
	types.RoleCaptain: {types.AlertOperational, types.AlertMessage, types.AlertCancellation, types.AlertInventory},
	types.RoleWaiter:  {types.AlertOperational, types.AlertMessage, types.AlertCancellation},
	types.RoleCashier: {types.AlertOperational, types.AlertMessage},
}

// ListRequest narrows List for a reader
type ListRequest struct {
	Role       types.Role
	UserID     string
	Type       types.AlertType // Optional, intersected with the role's types
	UnreadOnly bool
	Limit      int
}

func (req ListRequest) filter() (storage.AlertFilter, error) {
	filter := storage.AlertFilter{UnreadOnly: req.UnreadOnly, ToUserID: req.UserID, Limit: req.Limit}
	if req.Role != "" && !req.Role.Valid() {
		return filter, types.Validationf("unknown role %q", req.Role)
	}
	if req.Type != "" && !req.Type.Valid() {
		return filter, types.Validationf("unknown alert type %q", req.Type)
	}
	if filter.Limit <= 0 || filter.Limit > 200 {
		filter.Limit = 50
	}

	allowed, scoped := visibleTypes[req.Role]
	switch {
	case req.Type != "" && scoped && !slices.Contains(allowed, req.Type):
		// Nothing this role may read; an empty non-nil set matches nothing
		filter.Types = []types.AlertType{}
	case req.Type != "":
		filter.Types = []types.AlertType{req.Type}
	case scoped:
		filter.Types = allowed
	}
	return filter, nil
}

// List returns the alerts a reader may see, newest first
func (r *Router) List(ctx context.Context, req ListRequest) ([]*types.Alert, error) {
	filter, err := req.filter()
	if err != nil {
		return nil, err
	}
	if filter.Types != nil && len(filter.Types) == 0 {
		return []*types.Alert{}, nil
	}
	alerts, err := r.store.ListAlerts(ctx, filter)
	if err != nil {
		return nil, err
	}
	for _, a := range alerts {
		withInferredMetadata(a)
	}
	return alerts, nil
}

// Get returns one alert
func (r *Router) Get(ctx context.Context, id string) (*types.Alert, error) {
	alert, err := r.store.GetAlert(ctx, id)
	if err != nil {
		return nil, err
	}
	withInferredMetadata(alert)
	return alert, nil
}

// MarkRead marks an alert read by userID. The first reader is kept.
func (r *Router) MarkRead(ctx context.Context, id, userID string) (*types.Alert, error) {
	alert, err := r.store.MarkAlertRead(ctx, id, userID, r.now())
	if err != nil {
		return nil, err
	}
	withInferredMetadata(alert)
	return alert, nil
}

// MarkAllRead marks every unread alert visible to the reader and returns
// how many changed
func (r *Router) MarkAllRead(ctx context.Context, req ListRequest) (int, error) {
	filter, err := req.filter()
	if err != nil {
		return 0, err
	}
	if filter.Types != nil && len(filter.Types) == 0 {
		return 0, nil
	}
	filter.Limit = 0
	return r.store.MarkAllAlertsRead(ctx, filter, req.UserID, r.now())
}

// Acknowledge marks an alert read on behalf of the kitchen and tells the
// sender and the order's followers
func (r *Router) Acknowledge(ctx context.Context, alertID, orderID string, actor types.Actor) (*types.Alert, error) {
	if actor.Role != types.RoleKitchen {
		return nil, types.Validationf("role %q cannot acknowledge alerts", actor.Role)
	}
	alert, err := r.MarkRead(ctx, alertID, actor.UserID)
	if err != nil {
		return nil, err
	}
	if orderID == "" {
		orderID = alert.OrderID
	}

	var rooms []events.Room
	if alert.FromUserID != "" {
		rooms = append(rooms, events.UserRoom(alert.FromUserID))
	}
	if orderID != "" {
		rooms = append(rooms, events.OrderRoom(orderID))
	}
	if r.publisher != nil && len(rooms) > 0 {
		r.publisher.Publish(&events.Event{
			Type:  EventAlertAcknowledged,
			Rooms: rooms,
			Payload: map[string]interface{}{
				"alert_id": alert.ID,
				"order_id": orderID,
				"by":       actor.UserID,
				"at":       alert.ReadAt,
			},
		})
	}
	return alert, nil
}

// stateKeywords is scanned in order; the first match wins
var stateKeywords = []struct {
	state    string
	keywords []string
}{
	{"out_of_stock", []string{"out of stock", "agotado", "sin stock"}},
	{"low_stock", []string{"low stock", "stock bajo", "bajo stock"}},
	{"cancelled", []string{"cancel"}},
	{"ready", []string{"ready", "listo", "lista"}},
	{"preparing", []string{"preparing", "preparando", "en preparación"}},
}

// InferState guesses an alert state from free text. Only used for records
// written without metadata.
func InferState(message string) string {
	text := strings.ToLower(message)
	for _, sk := range stateKeywords {
		for _, kw := range sk.keywords {
			if strings.Contains(text, kw) {
				return sk.state
			}
		}
	}
	return ""
}

func withInferredMetadata(a *types.Alert) {
	if len(a.Metadata) > 0 && string(a.Metadata) != "null" {
		return
	}
	md := map[string]interface{}{"inferred": true}
	if state := InferState(a.Message); state != "" {
		md["state"] = state
	}
	data, err := json.Marshal(md)
	if err != nil {
		return
	}
	a.Metadata = data
}
