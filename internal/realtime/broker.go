package realtime

import (
	"context"
	"errors"
)

var ErrClosed = errors.New("broker closed")

// Broker carries change notifications, not data. A listener that sees a
// signal reloads whatever the topic names from the store, so dropped or
// merged signals never lose state.
type Broker interface {
	Notify(ctx context.Context, topic string) error
	Listen(ctx context.Context, topic string) (Listener, error)
	Close() error
}

// Listener lives until Close; the ctx passed to Listen only bounds setup.
type Listener interface {
	// C fires at least once after any number of notifications on the topic.
	C() <-chan struct{}
	Close() error
}

const topicPrefix = "tutorhub."

func ConversationTopic(conversationID string) string {
	return topicPrefix + "conversation." + conversationID
}

// signal is a one-slot mailbox. Bursts collapse into a single pending wake-up.
type signal struct {
	ch chan struct{}
}

func newSignal() signal {
	return signal{ch: make(chan struct{}, 1)}
}

func (s signal) fire() {
	select {
	case s.ch <- struct{}{}:
	default:
	}
}
