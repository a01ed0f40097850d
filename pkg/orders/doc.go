/*
Package orders implements the order state machine.

# Transitions

	open ──────→ preparing ──────→ ready ──────→ paid ──→ closed
	  │              │               │                      ▲
	  └──────────────┴───────────────┴────→ cancelled ──────┘

Transition validates the target against the status catalog first, so an
unknown status id is a validation error and leaves the stored order
untouched. A disallowed edge wraps types.ErrInvalidTransition.

The closing actor is stamped only when moving to paid or cancelled.

# Side effects

Each accepted transition stores, in the same transaction as the status
change, the effects it implies:

	preparing   preparing alert to waiters, captains and admins
	ready       ready alert to the same audience, then inventory deduction
	cancelled   cancellation alert to waiters, captains and the kitchen

Effects run inline after the commit. A failing effect is logged and left
pending in the outbox; the transition itself still succeeds. The
reconciler retries pending effects through RunEffect. Deduction is
idempotent per order and alerts carry their own ids, so a retry after a
partial run is harmless.

The cancellation alert depends on who cancelled: the kitchen cancelling
tells the floor to inform the guests (high priority), anyone else
cancelling tells the kitchen to stop preparing (medium priority).

# Totals

	subtotal = Σ (unit price + modifier deltas) × quantity
	discount = min(discount, subtotal)
	tax      = (subtotal − discount) × tax rate
	tip      = (subtotal − discount) × suggested tip rate
	total    = subtotal − discount + tax + tip

All amounts are shopspring decimals rounded to cents, recomputed whenever
items change.
*/
package orders
