package events

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// EventType is the real-time event name clients listen for
type EventType string

const (
	EventOrderCreated     EventType = "order-created"
	EventOrderUpdated     EventType = "order-updated"
	EventOrderCancelled   EventType = "order-cancelled"
	EventInventoryUpdated EventType = "inventory-updated"

	alertEventPrefix = "alert:"
)

// AlertEvent returns the event name for an alert type, e.g. "alert:inventory"
func AlertEvent(alertType string) EventType {
	return EventType(alertEventPrefix + alertType)
}

// Event is a message for connected clients
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Rooms     []Room      `json:"rooms,omitempty"`
	Broadcast bool        `json:"broadcast,omitempty"` // Deliver to every subscriber regardless of rooms
	Payload   interface{} `json:"payload"`

	// Remote is set on events received from another instance so they are
	// not relayed again.
	Remote bool `json:"-"`
}

// Publisher accepts events for delivery
type Publisher interface {
	Publish(event *Event)
}

// Subscriber receives events for the rooms it has joined
type Subscriber struct {
	C chan *Event

	mu    sync.RWMutex
	rooms map[Room]struct{}
	all   bool
}

// Join adds the subscriber to a room
func (s *Subscriber) Join(room Room) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rooms[room] = struct{}{}
}

// Leave removes the subscriber from a room
func (s *Subscriber) Leave(room Room) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rooms, room)
}

// In reports whether the subscriber has joined room
func (s *Subscriber) In(room Room) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.rooms[room]
	return ok
}

func (s *Subscriber) wants(event *Event) bool {
	if s.all || event.Broadcast {
		return true
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range event.Rooms {
		if _, ok := s.rooms[r]; ok {
			return true
		}
	}
	return false
}

// Broker fans events out to subscribers by room
type Broker struct {
	subscribers map[*Subscriber]bool
	mu          sync.RWMutex
	eventCh     chan *Event
	stopCh      chan struct{}
	stopOnce    sync.Once
	dropped     func(*Event)
}

// NewBroker creates a new event broker
func NewBroker() *Broker {
	return &Broker{
		subscribers: make(map[*Subscriber]bool),
		eventCh:     make(chan *Event, 100), // Buffer up to 100 events
		stopCh:      make(chan struct{}),
	}
}

// OnDrop registers a callback invoked when a subscriber buffer is full.
// Must be called before Start.
func (b *Broker) OnDrop(fn func(*Event)) {
	b.dropped = fn
}

// Start begins the broker's event distribution loop
func (b *Broker) Start() {
	go b.run()
}

// Stop stops the broker
func (b *Broker) Stop() {
	b.stopOnce.Do(func() { close(b.stopCh) })
}

// Subscribe creates a subscription joined to the given rooms
func (b *Broker) Subscribe(rooms ...Room) *Subscriber {
	return b.subscribe(false, rooms)
}

// SubscribeAll creates a subscription that receives every event
func (b *Broker) SubscribeAll() *Subscriber {
	return b.subscribe(true, nil)
}

func (b *Broker) subscribe(all bool, rooms []Room) *Subscriber {
	sub := &Subscriber{
		C:     make(chan *Event, 50), // Buffer per subscriber
		rooms: make(map[Room]struct{}, len(rooms)),
		all:   all,
	}
	for _, r := range rooms {
		sub.rooms[r] = struct{}{}
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[sub] = true
	return sub
}

// Unsubscribe removes a subscription
func (b *Broker) Unsubscribe(sub *Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.subscribers[sub]; !ok {
		return
	}
	delete(b.subscribers, sub)
	close(sub.C)
}

// Publish queues an event for delivery
func (b *Broker) Publish(event *Event) {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	select {
	case b.eventCh <- event:
	case <-b.stopCh:
	}
}

func (b *Broker) run() {
	for {
		select {
		case event := <-b.eventCh:
			b.deliver(event)
		case <-b.stopCh:
			return
		}
	}
}

func (b *Broker) deliver(event *Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for sub := range b.subscribers {
		if !sub.wants(event) {
			continue
		}
		select {
		case sub.C <- event:
		default:
			// Subscriber buffer full, skip
			if b.dropped != nil {
				b.dropped(event)
			}
		}
	}
}

// SubscriberCount returns the number of active subscribers
func (b *Broker) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}
