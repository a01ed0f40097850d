package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cuemby/brigade/pkg/events"
	"github.com/cuemby/brigade/pkg/log"
	"github.com/cuemby/brigade/pkg/metrics"
	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

const routingPrefix = "brigade."

// Config configures the cross-instance relay
type Config struct {
	URL               string
	Exchange          string
	InstanceID        string // Generated when empty
	ReconnectInterval time.Duration
	PublishTimeout    time.Duration
}

// envelope is the wire format on the exchange
type envelope struct {
	Origin string        `json:"origin"`
	Event  *events.Event `json:"event"`
}

// Relay forwards locally published events to a RabbitMQ topic exchange and
// republishes events from other instances on the local broker, so rooms
// span every instance.
type Relay struct {
	cfg    Config
	broker *events.Broker
	logger zerolog.Logger

	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel
}

// New creates a relay for broker
func New(cfg Config, broker *events.Broker) *Relay {
	if cfg.Exchange == "" {
		cfg.Exchange = "brigade.events"
	}
	if cfg.InstanceID == "" {
		cfg.InstanceID = uuid.NewString()
	}
	if cfg.ReconnectInterval <= 0 {
		cfg.ReconnectInterval = 5 * time.Second
	}
	if cfg.PublishTimeout <= 0 {
		cfg.PublishTimeout = 5 * time.Second
	}
	return &Relay{
		cfg:    cfg,
		broker: broker,
		logger: log.WithComponent("relay").With().Str("instance_id", cfg.InstanceID).Logger(),
	}
}

// InstanceID identifies this process on the exchange
func (r *Relay) InstanceID() string {
	return r.cfg.InstanceID
}

// RoutingKey is the exchange routing key for an event, e.g.
// "brigade.alert.inventory"
func RoutingKey(e *events.Event) string {
	return routingPrefix + strings.ReplaceAll(string(e.Type), ":", ".")
}

func (r *Relay) encode(e *events.Event) ([]byte, error) {
	return json.Marshal(envelope{Origin: r.cfg.InstanceID, Event: e})
}

// decode returns the event carried by body, or nil when it came from this
// instance
func (r *Relay) decode(body []byte) (*events.Event, error) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("failed to decode relay message: %w", err)
	}
	if env.Event == nil {
		return nil, errors.New("relay message without event")
	}
	if env.Origin == r.cfg.InstanceID {
		return nil, nil
	}
	env.Event.Remote = true
	return env.Event, nil
}

// Run connects and relays until ctx is done, reconnecting after failures
func (r *Relay) Run(ctx context.Context) error {
	sub := r.broker.SubscribeAll()
	defer r.broker.Unsubscribe(sub)

	ticker := time.NewTicker(r.cfg.ReconnectInterval)
	defer ticker.Stop()

	for {
		err := r.session(ctx, sub)
		if ctx.Err() != nil {
			r.close()
			return nil
		}
		r.logger.Warn().Err(err).Dur("retry_in", r.cfg.ReconnectInterval).Msg("Relay disconnected")
		metrics.UpdateComponent("relay", false, err.Error())

		select {
		case <-ticker.C:
		case <-ctx.Done():
			r.close()
			return nil
		}
	}
}

func (r *Relay) connect() (*amqp.Channel, error) {
	conn, err := amqp.Dial(r.cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	err = ch.ExchangeDeclare(
		r.cfg.Exchange, // name
		"topic",        // type
		true,           // durable
		false,          // auto-deleted
		false,          // internal
		false,          // no-wait
		nil,            // arguments
	)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}

	r.mu.Lock()
	r.conn, r.ch = conn, ch
	r.mu.Unlock()
	return ch, nil
}

// session runs one connection until it fails or ctx is done
func (r *Relay) session(ctx context.Context, sub *events.Subscriber) error {
	ch, err := r.connect()
	if err != nil {
		return err
	}
	defer r.close()

	// Exclusive per-instance queue, removed by the server on disconnect
	q, err := ch.QueueDeclare("", false, true, true, false, nil)
	if err != nil {
		return fmt.Errorf("failed to declare queue: %w", err)
	}
	if err := ch.QueueBind(q.Name, routingPrefix+"#", r.cfg.Exchange, false, nil); err != nil {
		return fmt.Errorf("failed to bind queue: %w", err)
	}
	deliveries, err := ch.ConsumeWithContext(ctx, q.Name, "brigade-"+r.cfg.InstanceID, true, true, false, false, nil)
	if err != nil {
		return fmt.Errorf("failed to consume: %w", err)
	}

	closed := ch.NotifyClose(make(chan *amqp.Error, 1))
	metrics.UpdateComponent("relay", true, "connected")
	r.logger.Info().Str("exchange", r.cfg.Exchange).Msg("Relay connected")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case amqpErr, ok := <-closed:
			if !ok || amqpErr == nil {
				return errors.New("channel closed")
			}
			return amqpErr

		case d, ok := <-deliveries:
			if !ok {
				return errors.New("delivery channel closed")
			}
			r.receive(d.Body)

		case e, ok := <-sub.C:
			if !ok {
				return errors.New("broker stopped")
			}
			if e.Remote {
				continue
			}
			if err := r.publish(ctx, ch, e); err != nil {
				metrics.RelayMessagesTotal.WithLabelValues("out", "error").Inc()
				r.logger.Error().Err(err).Str("event_type", string(e.Type)).Msg("Failed to relay event")
				return err
			}
			metrics.RelayMessagesTotal.WithLabelValues("out", "ok").Inc()
		}
	}
}

func (r *Relay) publish(ctx context.Context, ch *amqp.Channel, e *events.Event) error {
	body, err := r.encode(e)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, r.cfg.PublishTimeout)
	defer cancel()

	return ch.PublishWithContext(ctx,
		r.cfg.Exchange, // exchange
		RoutingKey(e),  // routing key
		false,          // mandatory
		false,          // immediate
		amqp.Publishing{
			DeliveryMode: amqp.Persistent,
			ContentType:  "application/json",
			MessageId:    e.ID,
			Timestamp:    e.Timestamp,
			AppId:        r.cfg.InstanceID,
			Body:         body,
		})
}

func (r *Relay) receive(body []byte) {
	e, err := r.decode(body)
	switch {
	case err != nil:
		metrics.RelayMessagesTotal.WithLabelValues("in", "error").Inc()
		r.logger.Warn().Err(err).Msg("Dropping malformed relay message")
	case e == nil:
		metrics.RelayMessagesTotal.WithLabelValues("in", "skipped").Inc()
	default:
		metrics.RelayMessagesTotal.WithLabelValues("in", "ok").Inc()
		r.broker.Publish(e)
	}
}

func (r *Relay) close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ch != nil && !r.ch.IsClosed() {
		r.ch.Close()
	}
	if r.conn != nil && !r.conn.IsClosed() {
		r.conn.Close()
	}
	r.ch, r.conn = nil, nil
}
