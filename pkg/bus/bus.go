// Package bus fans store change events out to interested processes. The
// store publishes every applied mutation on a subject of the form
// claimdeck.change.{table}.{op}; sibling processes (reporting exporters,
// audit tails) subscribe with wildcards. The default implementation is
// in-memory; deployments with more than one process use NATS.
package bus

import (
	"context"
	"errors"
)

// ErrClosed is returned when operating on a closed bus or subscription.
var ErrClosed = errors.New("bus: closed")

// Message is one delivered event.
type Message struct {
	Subject string
	Data    []byte
}

// Handler processes delivered messages. Called on a delivery goroutine.
type Handler func(msg *Message)

// Bus is the change-event fan-out. Implementations must be safe for
// concurrent use.
type Bus interface {
	// Publish sends to all subscribers of the subject. Non-blocking; slow
	// subscribers drop rather than stall publishers.
	Publish(ctx context.Context, subject string, data []byte) error

	// Subscribe registers a handler. Subjects support NATS-style wildcards:
	// "*" matches one token, ">" matches the rest.
	Subscribe(ctx context.Context, subject string, handler Handler) (Subscription, error)

	// Close shuts down the bus and every subscription.
	Close() error
}

// Subscription is an active subscription.
type Subscription interface {
	Unsubscribe() error
	Subject() string
}

// ChangeSubject builds the publish subject for one store mutation.
func ChangeSubject(table, op string) string {
	if table == "" {
		table = "store"
	}
	return "claimdeck.change." + table + "." + op
}
