package bus

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/nats-io/nats.go"
)

// NATSBus delivers change events over a NATS server, for deployments where
// the exporter or audit tail runs as a separate process.
type NATSBus struct {
	nc     *nats.Conn
	closed atomic.Bool
}

// NewNATSBus connects to the given NATS URL (nats://host:port).
func NewNATSBus(url string) (*NATSBus, error) {
	nc, err := nats.Connect(url,
		nats.Name("claimdeck"),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	return &NATSBus{nc: nc}, nil
}

func (b *NATSBus) Publish(ctx context.Context, subject string, data []byte) error {
	if b.closed.Load() {
		return ErrClosed
	}
	return b.nc.Publish(subject, data)
}

func (b *NATSBus) Subscribe(ctx context.Context, subject string, handler Handler) (Subscription, error) {
	if b.closed.Load() {
		return nil, ErrClosed
	}
	sub, err := b.nc.Subscribe(subject, func(m *nats.Msg) {
		handler(&Message{Subject: m.Subject, Data: m.Data})
	})
	if err != nil {
		return nil, err
	}
	return &natsSubscription{sub: sub, subject: subject}, nil
}

func (b *NATSBus) Close() error {
	if b.closed.Swap(true) {
		return ErrClosed
	}
	if err := b.nc.Drain(); err != nil {
		b.nc.Close()
		return err
	}
	return nil
}

type natsSubscription struct {
	sub     *nats.Subscription
	subject string
}

func (s *natsSubscription) Unsubscribe() error { return s.sub.Unsubscribe() }
func (s *natsSubscription) Subject() string    { return s.subject }
