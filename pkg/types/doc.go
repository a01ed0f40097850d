/*
Package types defines the domain model shared by every brigade package.

Order statuses are numeric so they round-trip through clients and storage
unchanged:

	1 open → 2 preparing → 3 ready → 4 paid ──→ 6 closed
	   │          │           │                 ▲
	   └──────────┴───────────┴──→ 5 cancelled ─┘

Paid, cancelled and closed are terminal: the order accepts no more items.
Closed only archives an order that was already settled or cancelled.

errors.go holds the sentinel errors callers branch on with errors.Is:
ErrValidation (and ErrInvalidTransition, which wraps it), ErrNotFound and
ErrConflict.
*/
package types
