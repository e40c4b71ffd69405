// Package rabbitmq carries the sweep trigger channel: settings updates
// publish sweep requests onto the ops topic exchange, and the service's
// consumer drains them.
package rabbitmq

import (
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	// Exchange is the topic exchange all sweep traffic moves through.
	Exchange = "ops"
	// SweepQueue collects every sweep.* routing key for this service.
	SweepQueue = "cleanops.sweeps"

	sweepBinding = "sweep.*"
)

// open dials the broker and returns a channel with the ops exchange
// declared. The caller owns both and closes them through its wrapper.
func open(url string) (*amqp.Connection, *amqp.Channel, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, nil, fmt.Errorf("rabbitmq dial: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("rabbitmq channel: %w", err)
	}

	if err := ch.ExchangeDeclare(Exchange, "topic", true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, nil, fmt.Errorf("declare exchange %s: %w", Exchange, err)
	}
	return conn, ch, nil
}
