/*
Package realtime is the websocket gateway.

Clients connect to /ws with a token in the "token" query parameter or the
Authorization header and are joined to user:<id>, role:<role> and, for
kitchen staff, station:<station>. Outbound messages are events.Event values
as JSON. Inbound messages are {"event": "...", "data": {...}}:

	create-kitchen-alert   waiter, captain    {order_id, table_id, station, type, message, priority}
	acknowledge-alert      kitchen            {alert_id, order_id}
	join-order             any                {order_id}
	leave-order            any                {order_id}

Failures are answered with an "error" event on the same connection.
Inbound messages are rate limited per connection.
*/
package realtime
