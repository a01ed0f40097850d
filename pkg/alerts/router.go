package alerts

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/cuemby/brigade/pkg/events"
	"github.com/cuemby/brigade/pkg/log"
	"github.com/cuemby/brigade/pkg/metrics"
	"github.com/cuemby/brigade/pkg/storage"
	"github.com/cuemby/brigade/pkg/types"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Request describes an alert to route
type Request struct {
	Type        types.AlertType
	Message     string
	OrderID     string
	TableID     string
	ProductID   string
	Priority    types.Priority
	FromUserID  string
	FromRole    types.Role
	ToUserID    string
	Station     types.Station
	TargetRoles []types.Role
	State       string                 // Machine-readable state stored in metadata, e.g. "ready"
	Metadata    map[string]interface{} // Extra structured fields
}

// Delivery is the outcome of Dispatch. Persisted is false when the alert
// reached connected clients but could not be written to the log.
type Delivery struct {
	Alert     *types.Alert
	Rooms     []events.Room
	Broadcast bool
	Persisted bool
}

// Router routes alerts to rooms and keeps the durable alert log
type Router struct {
	store     storage.AlertStore
	publisher events.Publisher
	logger    zerolog.Logger
	now       func() time.Time
}

// NewRouter creates an alert router
func NewRouter(store storage.AlertStore, publisher events.Publisher) *Router {
	return &Router{
		store:     store,
		publisher: publisher,
		logger:    log.WithComponent("alerts"),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (req *Request) validate() error {
	if !req.Type.Valid() {
		return types.Validationf("unknown alert type %q", req.Type)
	}
	if strings.TrimSpace(req.Message) == "" {
		return types.Validationf("alert message is required")
	}
	if req.Priority == "" {
		req.Priority = types.PriorityMedium
	}
	if !req.Priority.Valid() {
		return types.Validationf("unknown priority %q", req.Priority)
	}
	if req.Station != "" && !req.Station.Valid() {
		return types.Validationf("unknown station %q", req.Station)
	}
	if req.FromRole != "" && !req.FromRole.Valid() {
		return types.Validationf("unknown role %q", req.FromRole)
	}
	for _, role := range req.TargetRoles {
		if !role.Valid() {
			return types.Validationf("unknown target role %q", role)
		}
	}
	return nil
}

// Route computes the rooms an alert is delivered to and whether it is
// broadcast to every connected client
func Route(req Request) ([]events.Room, bool) {
	var rooms []events.Room
	seen := make(map[events.Room]bool)
	add := func(r events.Room) {
		if !seen[r] {
			seen[r] = true
			rooms = append(rooms, r)
		}
	}

	for _, role := range req.TargetRoles {
		add(events.RoleRoom(role))
	}
	if req.Priority == types.PriorityHigh || req.Priority == types.PriorityUrgent || req.Type == types.AlertCancellation {
		add(events.RoleRoom(types.RoleAdmin))
	}
	if req.Station != "" {
		add(events.StationRoom(req.Station))
	}
	if req.ToUserID != "" {
		add(events.UserRoom(req.ToUserID))
	}
	if req.OrderID != "" {
		add(events.OrderRoom(req.OrderID))
	}
	return rooms, req.Priority == types.PriorityUrgent
}

// Dispatch validates, emits and then persists an alert. Only validation
// errors are returned; a failed write is logged and reported through
// Delivery.Persisted.
func (r *Router) Dispatch(ctx context.Context, req Request) (*Delivery, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	rooms, broadcast := Route(req)
	metadata, err := buildMetadata(req, rooms)
	if err != nil {
		return nil, types.Validationf("invalid metadata: %v", err)
	}

	alert := &types.Alert{
		ID:         uuid.Must(uuid.NewV7()).String(),
		Type:       req.Type,
		Message:    req.Message,
		OrderID:    req.OrderID,
		TableID:    req.TableID,
		ProductID:  req.ProductID,
		FromUserID: req.FromUserID,
		ToUserID:   req.ToUserID,
		Priority:   req.Priority,
		Metadata:   metadata,
		CreatedAt:  r.now(),
	}

	if r.publisher != nil {
		r.publisher.Publish(&events.Event{
			ID:        alert.ID,
			Type:      events.AlertEvent(string(alert.Type)),
			Rooms:     rooms,
			Broadcast: broadcast,
			Payload:   alert,
		})
	}
	metrics.AlertsDispatchedTotal.WithLabelValues(string(alert.Type), string(alert.Priority)).Inc()

	delivery := &Delivery{Alert: alert, Rooms: rooms, Broadcast: broadcast}
	if err := r.store.CreateAlert(ctx, alert); err != nil {
		metrics.AlertPersistFailures.Inc()
		alertLogger := log.WithAlertID(alert.ID)
		alertLogger.Error().
			Err(err).
			Str("component", "alerts").
			Str("type", string(alert.Type)).
			Str("order_id", alert.OrderID).
			Strs("rooms", events.Topics(rooms)).
			Msg("Alert delivered but not persisted")
		return delivery, nil
	}
	delivery.Persisted = true

	r.logger.Debug().
		Str("alert_id", alert.ID).
		Str("type", string(alert.Type)).
		Str("priority", string(alert.Priority)).
		Strs("rooms", events.Topics(rooms)).
		Bool("broadcast", broadcast).
		Msg("Alert dispatched")
	return delivery, nil
}

func buildMetadata(req Request, rooms []events.Room) (json.RawMessage, error) {
	md := make(map[string]interface{}, len(req.Metadata)+3)
	for k, v := range req.Metadata {
		md[k] = v
	}
	state := req.State
	if state == "" {
		state = string(req.Type)
	}
	md["state"] = state
	md["rooms"] = events.Topics(rooms)
	if req.Station != "" {
		md["station"] = string(req.Station)
	} else {
		md["station"] = nil
	}
	data, err := json.Marshal(md)
	if err != nil {
		return nil, fmt.Errorf("failed to encode metadata: %w", err)
	}
	return data, nil
}
