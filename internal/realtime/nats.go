package realtime

import (
	"context"
	"fmt"
	"sync"

	"github.com/nats-io/nats.go"
)

// NatsBroker uses core NATS subjects. Notifications are fire-and-forget, so
// JetStream persistence is not needed.
type NatsBroker struct {
	nc *nats.Conn
}

func NewNatsBroker(url string) (*NatsBroker, error) {
	nc, err := nats.Connect(url, nats.Name("tutorhub"))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return &NatsBroker{nc: nc}, nil
}

func (b *NatsBroker) Ping(ctx context.Context) error {
	return b.nc.FlushWithContext(ctx)
}

func (b *NatsBroker) Close() error {
	if b.nc != nil {
		b.nc.Close()
	}
	return nil
}

func (b *NatsBroker) Notify(_ context.Context, topic string) error {
	if err := b.nc.Publish(topic, nil); err != nil {
		return fmt.Errorf("failed to publish to subject '%s': %w", topic, err)
	}
	return nil
}

func (b *NatsBroker) Listen(ctx context.Context, topic string) (Listener, error) {
	sig := newSignal()

	sub, err := b.nc.Subscribe(topic, func(*nats.Msg) {
		sig.fire()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to subject '%s': %w", topic, err)
	}

	// make sure the server registered interest before returning
	if err := b.nc.FlushWithContext(ctx); err != nil {
		_ = sub.Unsubscribe()
		return nil, err
	}

	return &natsListener{sub: sub, sig: sig}, nil
}

type natsListener struct {
	sub  *nats.Subscription
	sig  signal
	once sync.Once
}

func (l *natsListener) C() <-chan struct{} { return l.sig.ch }

func (l *natsListener) Close() error {
	var err error
	l.once.Do(func() {
		err = l.sub.Unsubscribe()
	})
	return err
}
