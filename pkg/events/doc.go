/*
Package events provides the in-memory broker that fans brigade events out
to rooms.

# Architecture

	┌──────────────────── EVENT BROKER ────────────────────────┐
	│                                                            │
	│  Publisher → event channel (buffer: 100)                   │
	│                    │                                       │
	│                    ▼                                       │
	│             delivery loop                                  │
	│                    │  event.Broadcast, or any              │
	│                    │  event.Rooms joined by the subscriber │
	│                    ▼                                       │
	│  subscriber channels (buffer: 50 each)                     │
	│    ws conn user:waiter-1 role:waiter                       │
	│    ws conn user:cook-1 role:kitchen station:hot-line       │
	│    relay   (SubscribeAll, forwards to RabbitMQ)            │
	└────────────────────────────────────────────────────────────┘

Publish blocks only until the event is queued. Delivery never blocks: when a
subscriber's buffer is full the event is dropped for that subscriber and the
OnDrop callback fires (serve counts these in a Prometheus counter).

# Rooms

A Room is a (kind, name) pair and is rendered as a "kind:name" topic only
at the transport boundary:

	role:kitchen       every connection of a staff role (lower-case)
	station:hot-line   kitchen staff at one station
	user:<id>          a single staff member
	order:<id>         clients following one order (join-order)

# Event types

	order-created, order-updated, order-cancelled   payload: full order
	inventory-updated                               payload: item snapshot
	alert:<type>                                    payload: alert record

Example:

	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()

	sub := broker.Subscribe(events.RoleRoom(types.RoleKitchen))
	defer broker.Unsubscribe(sub)

	broker.Publish(&events.Event{
		Type:    events.AlertEvent("operational"),
		Rooms:   []events.Room{events.RoleRoom(types.RoleKitchen)},
		Payload: alert,
	})
	e := <-sub.C
*/
package events
