/*
Package storage persists brigade state.

Two implementations satisfy Store:

  - BoltStore keeps everything in a single bbolt file (<dataDir>/brigade.db).
    It is the default for single-instance deployments and backs the tests.
  - PostgresStore uses a pgx pool against the schema in schema.sql, applied
    with "brigade migrate".

# Layout

	bucket / table                       key
	orders         / orders, order_items    order id (UUIDv7, time ordered)
	status_changes / order_status_log       order id + change id
	effects        / order_effects          effect id
	inventory_items                         item id
	inventory_movements                     item id + movement id
	inventory_deductions                    order id (one row per order)
	ingredients                             product id + ingredient id
	alerts                                  alert id

Values in bolt are JSON. Because ids are UUIDv7, a reverse cursor lists
orders, movements and alerts newest first without a secondary index.

# Transactions

Every multi-row write happens in one transaction:

	TransitionOrder    status check, status update, history row, outbox effects
	ApplyStock         deduction row, every item update, every movement
	AppendOrderItems   status check, new items, recomputed totals

TransitionOrder and AppendOrderItems compare the stored status with the
caller's view and fail with types.ErrConflict when it moved underneath.
ApplyStock fails with ErrAlreadyApplied when the batch carries a deduction
for an order that already has one, which makes inventory consumption
exactly-once per order even with concurrent callers.

Decrements are clamped at zero; the movement records what was actually
removed.
*/
package storage
