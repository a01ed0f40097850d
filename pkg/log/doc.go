/*
Package log provides structured logging for brigade using zerolog.

Init configures the global Logger once at startup. Components derive their
own logger in their constructor so every entry carries the component name:

	log.Init(log.Config{Level: log.InfoLevel, JSONOutput: true})

	logger := log.WithComponent("deduction")
	logger.Warn().
		Str("order_id", orderID).
		Str("item_id", itemID).
		Float64("requested", 3).
		Float64("available", 1.5).
		Msg("Stock clamped at zero")

JSON output, one object per line:

	{"level":"warn","component":"deduction","order_id":"0192…","item_id":"0192…",
	 "requested":3,"available":1.5,"time":"2026-03-01T20:15:04Z","message":"Stock clamped at zero"}

Console output (the default) is meant for development.

# Helpers

WithComponent, WithOrderID, WithAlertID and WithItemID return child loggers
with the field preset. Loggers created before Init write nowhere, so commands
call Init before constructing any component.

# Levels

	debug   per-request and per-event detail
	info    lifecycle: started, stopped, order transitions
	warn    degraded but handled: clamps, dropped unit conversions, retries
	error   a side effect failed and was left for the reconciler
*/
package log
