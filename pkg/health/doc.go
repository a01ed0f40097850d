/*
Package health checks the external dependencies Brigade talks to.

Two checkers are provided. TCPChecker dials an address and is used to
watch the RabbitMQ broker behind the event relay. HTTPChecker requests a
URL and is used by `brigade healthcheck` to probe a running instance's
/ready endpoint from a container HEALTHCHECK.

Watch runs a checker on an interval and mirrors its state into the
metrics health registry, so the dependency shows up under /health:

	addr, _ := health.BrokerAddress(cfg.Broker.URL)
	go health.Watch(ctx, "rabbitmq", false, health.NewTCPChecker(addr), health.DefaultConfig())

A dependency is reported down only after Config.Retries consecutive
failures. One success brings it back.
*/
package health
