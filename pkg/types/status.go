package types

import "fmt"

// StatusID is the numeric order status used on the wire
type StatusID int

const (
	StatusOpen      StatusID = 1
	StatusPreparing StatusID = 2
	StatusReady     StatusID = 3
	StatusPaid      StatusID = 4
	StatusCancelled StatusID = 5
	StatusClosed    StatusID = 6
)

// Status is an entry of the order status catalog
type Status struct {
	ID       StatusID `json:"id"`
	Name     string   `json:"name"`
	Terminal bool     `json:"terminal"`
}

var statusCatalog = map[StatusID]Status{
	StatusOpen:      {ID: StatusOpen, Name: "open"},
	StatusPreparing: {ID: StatusPreparing, Name: "preparing"},
	StatusReady:     {ID: StatusReady, Name: "ready"},
	StatusPaid:      {ID: StatusPaid, Name: "paid", Terminal: true},
	StatusCancelled: {ID: StatusCancelled, Name: "cancelled", Terminal: true},
	StatusClosed:    {ID: StatusClosed, Name: "closed", Terminal: true},
}

// LookupStatus returns the catalog entry for id
func LookupStatus(id StatusID) (Status, bool) {
	s, ok := statusCatalog[id]
	return s, ok
}

// Statuses returns the catalog ordered by id
func Statuses() []Status {
	out := make([]Status, 0, len(statusCatalog))
	for id := StatusOpen; id <= StatusClosed; id++ {
		out = append(out, statusCatalog[id])
	}
	return out
}

// Valid reports whether s is in the catalog
func (s StatusID) Valid() bool {
	_, ok := statusCatalog[s]
	return ok
}

// IsTerminal reports whether an order in s accepts no more items
func (s StatusID) IsTerminal() bool {
	return statusCatalog[s].Terminal
}

// IsFulfilled reports whether stock for an order in s must have been consumed
func (s StatusID) IsFulfilled() bool {
	return s == StatusReady || s == StatusPaid
}

func (s StatusID) String() string {
	if st, ok := statusCatalog[s]; ok {
		return st.Name
	}
	return fmt.Sprintf("status(%d)", int(s))
}
