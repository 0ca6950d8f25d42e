package backend

import "sync"

// Subscription is a handle to a live feed. Unsubscribe stops it exactly once;
// later calls are no-ops. When Unsubscribe returns no further callback runs.
// It must not be called from inside the feed's own callback.
type Subscription struct {
	once sync.Once
	stop func()
}

func newSubscription(stop func()) *Subscription {
	return &Subscription{stop: stop}
}

func (s *Subscription) Unsubscribe() {
	if s == nil {
		return
	}
	s.once.Do(s.stop)
}
