package events

import (
	"fmt"
	"strings"

	"github.com/cuemby/brigade/pkg/types"
)

// RoomKind discriminates the Room union
type RoomKind string

const (
	RoomRole    RoomKind = "role"
	RoomStation RoomKind = "station"
	RoomUser    RoomKind = "user"
	RoomOrder   RoomKind = "order"
)

// Room is a delivery scope. Routing code works on Rooms; only transports
// turn them into topic strings.
type Room struct {
	Kind RoomKind `json:"kind"`
	Name string   `json:"name"`
}

// RoleRoom groups every connection of a job role
func RoleRoom(role types.Role) Room {
	return Room{Kind: RoomRole, Name: strings.ToLower(string(role))}
}

// StationRoom groups the connections working a kitchen station
func StationRoom(station types.Station) Room {
	return Room{Kind: RoomStation, Name: string(station)}
}

// UserRoom holds every connection of one user
func UserRoom(userID string) Room {
	return Room{Kind: RoomUser, Name: userID}
}

// OrderRoom holds connections following one order
func OrderRoom(orderID string) Room {
	return Room{Kind: RoomOrder, Name: orderID}
}

// Topic renders the room as a transport topic, e.g. "role:kitchen"
func (r Room) Topic() string {
	return string(r.Kind) + ":" + r.Name
}

func (r Room) String() string {
	return r.Topic()
}

// ParseRoom is the inverse of Topic
func ParseRoom(topic string) (Room, error) {
	kind, name, ok := strings.Cut(topic, ":")
	if !ok || name == "" {
		return Room{}, fmt.Errorf("malformed room topic %q", topic)
	}
	switch RoomKind(kind) {
	case RoomRole, RoomStation, RoomUser, RoomOrder:
		return Room{Kind: RoomKind(kind), Name: name}, nil
	}
	return Room{}, fmt.Errorf("unknown room kind %q", kind)
}

// Topics renders a room set for transports and metadata
func Topics(rooms []Room) []string {
	out := make([]string, len(rooms))
	for i, r := range rooms {
		out[i] = r.Topic()
	}
	return out
}
