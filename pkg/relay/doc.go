// Package relay bridges the local event broker to a RabbitMQ topic exchange
// so several brigade instances share rooms.
package relay
