package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/cuemby/brigade/pkg/alerts"
	"github.com/cuemby/brigade/pkg/auth"
	"github.com/cuemby/brigade/pkg/events"
	"github.com/cuemby/brigade/pkg/log"
	"github.com/cuemby/brigade/pkg/metrics"
	"github.com/cuemby/brigade/pkg/types"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 8 << 10
	replyBuffer    = 16
)

// Inbound event names
const (
	EventCreateKitchenAlert = "create-kitchen-alert"
	EventAcknowledgeAlert   = "acknowledge-alert"
	EventJoinOrder          = "join-order"
	EventLeaveOrder         = "leave-order"
)

// Reply event names
const (
	EventJoined events.EventType = "joined"
	EventLeft   events.EventType = "left"
	EventError  events.EventType = "error"
)

// AlertService is what connected clients can do with alerts
type AlertService interface {
	Dispatch(ctx context.Context, req alerts.Request) (*alerts.Delivery, error)
	Acknowledge(ctx context.Context, alertID, orderID string, actor types.Actor) (*types.Alert, error)
}

// Options tunes the gateway
type Options struct {
	MessagesPerSecond float64
	Burst             int
	AllowedOrigins    []string // Empty allows any origin
}

// Gateway upgrades authenticated requests to websockets and joins each
// connection to its user, role and station rooms
type Gateway struct {
	broker   *events.Broker
	auth     *auth.Authenticator
	alerts   AlertService
	upgrader websocket.Upgrader
	limit    rate.Limit
	burst    int
	logger   zerolog.Logger
}

// NewGateway creates a websocket gateway
func NewGateway(broker *events.Broker, authn *auth.Authenticator, svc AlertService, opts Options) *Gateway {
	if opts.MessagesPerSecond <= 0 {
		opts.MessagesPerSecond = 5
	}
	if opts.Burst <= 0 {
		opts.Burst = 10
	}
	origins := opts.AllowedOrigins
	return &Gateway{
		broker: broker,
		auth:   authn,
		alerts: svc,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				if len(origins) == 0 {
					return true
				}
				origin := r.Header.Get("Origin")
				for _, o := range origins {
					if o == origin {
						return true
					}
				}
				return false
			},
		},
		limit:  rate.Limit(opts.MessagesPerSecond),
		burst:  opts.Burst,
		logger: log.WithComponent("realtime"),
	}
}

// Rooms returns the rooms a connection joins on connect
func Rooms(actor types.Actor) []events.Room {
	rooms := []events.Room{events.UserRoom(actor.UserID), events.RoleRoom(actor.Role)}
	if actor.Station != "" {
		rooms = append(rooms, events.StationRoom(actor.Station))
	}
	return rooms
}

type conn struct {
	ws      *websocket.Conn
	sub     *events.Subscriber
	actor   types.Actor
	replies chan *events.Event
	limiter *rate.Limiter
	logger  zerolog.Logger
}

// ServeHTTP handles GET /ws
func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	claims, err := g.auth.Parse(auth.TokenFromRequest(r))
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}
	actor := claims.Actor()

	// Subscribe before the handshake completes so nothing published after
	// the client sees the upgrade is missed
	sub := g.broker.Subscribe(Rooms(actor)...)
	ws, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.broker.Unsubscribe(sub)
		g.logger.Warn().Err(err).Str("user_id", actor.UserID).Msg("Websocket upgrade failed")
		return
	}

	c := &conn{
		ws:      ws,
		sub:     sub,
		actor:   actor,
		replies: make(chan *events.Event, replyBuffer),
		limiter: rate.NewLimiter(g.limit, g.burst),
		logger:  g.logger.With().Str("user_id", actor.UserID).Str("role", string(actor.Role)).Logger(),
	}
	metrics.WebsocketConnections.Inc()
	c.logger.Debug().Msg("Client connected")

	done := make(chan struct{})
	go func() {
		g.writePump(c, done)
		metrics.WebsocketConnections.Dec()
	}()
	g.readPump(c)

	close(done)
	g.broker.Unsubscribe(sub)
	c.logger.Debug().Msg("Client disconnected")
}

func (g *Gateway) writePump(c *conn, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.ws.Close()
	}()

	write := func(e *events.Event) bool {
		c.ws.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.ws.WriteJSON(e); err != nil {
			c.logger.Debug().Err(err).Msg("Websocket write failed")
			return false
		}
		return true
	}

	for {
		select {
		case e, ok := <-c.sub.C:
			if !ok {
				return
			}
			if !write(e) {
				return
			}
		case e := <-c.replies:
			if !write(e) {
				return
			}
		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

// message is the envelope clients send
type message struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

func (g *Gateway) readPump(c *conn) {
	c.ws.SetReadLimit(maxMessageSize)
	c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg message
		if err := c.ws.ReadJSON(&msg); err != nil {
			var syntaxErr *json.SyntaxError
			var typeErr *json.UnmarshalTypeError
			if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
				c.reply(EventError, map[string]string{"error": "malformed message"})
				continue
			}
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.Debug().Err(err).Msg("Websocket closed unexpectedly")
			}
			return
		}
		if !c.limiter.Allow() {
			c.reply(EventError, map[string]string{"event": msg.Event, "error": "rate limit exceeded"})
			continue
		}
		if err := g.handle(c, msg); err != nil {
			c.reply(EventError, map[string]string{"event": msg.Event, "error": err.Error()})
		}
	}
}

func (c *conn) reply(t events.EventType, payload interface{}) {
	e := &events.Event{Type: t, Timestamp: time.Now(), Payload: payload}
	select {
	case c.replies <- e:
	default:
		c.logger.Warn().Str("type", string(t)).Msg("Reply buffer full, dropping")
	}
}
