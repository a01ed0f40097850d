/*
Package deduction consumes inventory for fulfilled orders.

Deduct runs when an order becomes ready:

 1. Skip when the order already has a deduction record.
 2. Resolve the recipe of every line (package recipe): size-specific
    entries replace all-sizes entries for the same item, quantities are
    multiplied by the line quantity.
 3. Convert each contribution into the item's stock unit (package units).
    Contributions that cannot be converted are dropped with a warning.
    Items missing from inventory are skipped.
 4. Apply every decrement and the deduction record in one store
    transaction (package ledger). Quantities are clamped at zero.
 5. Raise a threshold alert for each item that crossed its minimum or ran
    out during this deduction.

Step 4 is the idempotency guard: a concurrent second call loses on the
deduction record and is reported as skipped.

# Thresholds

	before > 0        and after ≤ 0          out of stock (high priority)
	before > minimum  and after ≤ minimum    low stock (medium priority)

Out of stock wins when both hold. Items already below the threshold do not
alert again.

Insufficient stock never blocks an order. CheckStock reports shortages
ahead of time, and Reconcile deducts ready or paid orders that were missed.
*/
package deduction
