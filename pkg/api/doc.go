/*
Package api implements the brigade HTTP API and the gRPC health service.

The HTTP surface is a gin router. Every route under /api/v1 requires a
bearer token (see package auth); some routes additionally require a role.

	GET    /api/v1/orders                       ?status=1,2&limit=50
	POST   /api/v1/orders                       waiter, captain, cashier, admin
	GET    /api/v1/orders/:id
	PATCH  /api/v1/orders/:id/status            {"status_id": 3, "reason": "..."}
	POST   /api/v1/orders/:id/items             waiter, captain, admin
	GET    /api/v1/orders/:id/history
	GET    /api/v1/orders/:id/stock-check

	GET    /api/v1/inventory                    ?include_inactive=true
	POST   /api/v1/inventory                    admin
	GET    /api/v1/inventory/:id
	DELETE /api/v1/inventory/:id                admin (deactivates)
	GET    /api/v1/inventory/:id/movements      ?limit=100
	POST   /api/v1/inventory/:id/movements      admin, kitchen

	GET    /api/v1/products/:id/ingredients
	POST   /api/v1/products/:id/ingredients     admin

	GET    /api/v1/alerts                       ?type=inventory&unread=true
	POST   /api/v1/alerts
	PATCH  /api/v1/alerts/:id/read
	PATCH  /api/v1/alerts/read-all

	GET    /health, /ready, /metrics
	GET    /ws                                  websocket gateway, when configured

# Errors

Failures are answered as {"error": "..."}:

	malformed JSON             400
	types.ErrValidation        422 (includes invalid status transitions)
	types.ErrNotFound          404
	types.ErrConflict          409 (the order changed concurrently; retry)
	anything else              500, logged, message hidden

# gRPC

HealthServer serves grpc.health.v1.Health. Its serving status mirrors
/ready and is refreshed on an interval, so orchestrators can probe either
protocol.
*/
package api
