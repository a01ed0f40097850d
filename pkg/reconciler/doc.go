/*
Package reconciler repairs work that did not finish inline.

Order transitions persist their side effects (alerts, inventory deduction)
in an outbox together with the status change. They normally run right
after the commit; when one fails, or the process stops first, the effect
stays pending. Each cycle the reconciler:

 1. Retries pending effects older than Config.RetryAfter, up to
    Config.MaxAttempts attempts each.
 2. Runs the deduction sweep, which deducts ready or paid orders that
    have no recorded deduction.

Both steps are idempotent, so overlapping with inline execution is safe.
Cycles are scheduled with gocron in singleton mode; a slow cycle delays
the next one instead of running concurrently.

	rec := reconciler.NewReconciler(store, machine, engine, reconciler.Config{
		Interval:    time.Minute,
		RetryAfter:  30 * time.Second,
		MaxAttempts: 10,
	})
	if err := rec.Start(); err != nil {
		return err
	}
	defer rec.Stop()

RunOnce executes a single cycle and backs the "brigade reconcile" command.
*/
package reconciler
