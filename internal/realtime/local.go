package realtime

import (
	"context"
	"log/slog"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

// LocalBroker keeps notifications inside the process. It backs single
// instance deployments, the terminal client and tests.
type LocalBroker struct {
	pubsub *gochannel.GoChannel
}

func NewLocalBroker(logger *slog.Logger) *LocalBroker {
	if logger == nil {
		logger = slog.Default()
	}
	return &LocalBroker{
		pubsub: gochannel.NewGoChannel(
			gochannel.Config{OutputChannelBuffer: 16},
			watermill.NewSlogLogger(logger),
		),
	}
}

func (b *LocalBroker) Close() error {
	return b.pubsub.Close()
}

func (b *LocalBroker) Notify(_ context.Context, topic string) error {
	return b.pubsub.Publish(topic, message.NewMessage(watermill.NewUUID(), nil))
}

func (b *LocalBroker) Listen(_ context.Context, topic string) (Listener, error) {
	// the subscription outlives the setup ctx; Close ends it
	subCtx, cancel := context.WithCancel(context.Background())

	msgs, err := b.pubsub.Subscribe(subCtx, topic)
	if err != nil {
		cancel()
		return nil, err
	}

	l := &localListener{cancel: cancel, sig: newSignal()}
	l.wg.Add(1)
	go l.pump(msgs)
	return l, nil
}

type localListener struct {
	cancel context.CancelFunc
	sig    signal
	once   sync.Once
	wg     sync.WaitGroup
}

func (l *localListener) pump(msgs <-chan *message.Message) {
	defer l.wg.Done()
	for m := range msgs {
		m.Ack()
		l.sig.fire()
	}
}

func (l *localListener) C() <-chan struct{} { return l.sig.ch }

func (l *localListener) Close() error {
	l.once.Do(func() {
		l.cancel()
		l.wg.Wait()
	})
	return nil
}
