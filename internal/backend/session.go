package backend

import (
	"context"
	"sync"

	"github.com/geocoder89/tutorhub/internal/domain/user"
)

// Session is one client's auth state on top of the stateless Service. It is
// what an interactive client holds; the HTTP API uses tokens instead.
type Session struct {
	svc *Service

	// notifyMu is held from a state change until every listener has seen it,
	// so listeners observe transitions in the order they happened.
	notifyMu sync.Mutex

	mu        sync.Mutex
	identity  *user.Identity
	current   user.Profile
	listeners map[int]func(user.Profile)
	nextID    int
}

func NewSession(svc *Service) *Session {
	return &Session{
		svc:       svc,
		listeners: make(map[int]func(user.Profile)),
	}
}

// Current returns a copy of the resolved profile, or nil when signed out or
// when the account has no profile.
func (s *Session) Current() user.Profile {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current == nil {
		return nil
	}
	return user.Clone(s.current)
}

// Identity returns the signed-in identity even before a profile exists.
func (s *Session) Identity() (user.Identity, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.identity == nil {
		return user.Identity{}, false
	}
	return *s.identity, true
}

func (s *Session) SignIn(ctx context.Context, email, password string) (user.Profile, error) {
	res, err := s.svc.SignInWithPassword(ctx, email, password)
	if err != nil {
		return nil, err
	}
	s.transition(&res.Identity, res.Profile)
	return res.Profile, nil
}

func (s *Session) SignUp(ctx context.Context, req user.SignUpRequest) (user.Profile, error) {
	res, err := s.svc.SignUpWithPassword(ctx, req)
	if err != nil {
		return nil, err
	}
	s.transition(&res.Identity, res.Profile)
	return res.Profile, nil
}

func (s *Session) SignInFederated(ctx context.Context, code, state string) (user.Profile, error) {
	res, err := s.svc.SignInWithFederatedProvider(ctx, code, state)
	if err != nil {
		return nil, err
	}
	s.transition(&res.Identity, res.Profile)
	return res.Profile, nil
}

func (s *Session) SignOut(_ context.Context) error {
	s.transition(nil, nil)
	return nil
}

// Reload re-reads the signed-in profile and notifies listeners with it. It
// is a no-op when the session signs out or changes account meanwhile.
func (s *Session) Reload(ctx context.Context) (user.Profile, error) {
	id, ok := s.Identity()
	if !ok {
		return nil, nil
	}

	p, _, err := s.svc.GetUserProfile(ctx, id.ID)
	if err != nil {
		return nil, err
	}

	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	still := s.identity != nil && s.identity.ID == id.ID
	s.mu.Unlock()
	if !still {
		return nil, nil
	}

	s.notifyLocked(&id, p)
	return p, nil
}

func (s *Session) transition(id *user.Identity, p user.Profile) {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.notifyLocked(id, p)
}

// notifyLocked expects notifyMu to be held.
func (s *Session) notifyLocked(id *user.Identity, p user.Profile) {
	s.mu.Lock()
	s.identity = id
	s.current = p
	listeners := make([]func(user.Profile), 0, len(s.listeners))
	for _, fn := range s.listeners {
		listeners = append(listeners, fn)
	}
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(cloneOrNil(p))
		s.svc.prom.SnapshotDelivered("auth")
	}
}

// SubscribeAuthState calls fn with the current user right away and again
// after every sign-in, sign-up, sign-out or reload. fn receives nil while
// signed out. fn must not call back into the Session's sign-in methods.
func (s *Session) SubscribeAuthState(fn func(user.Profile)) *Subscription {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	current := s.current
	s.mu.Unlock()

	s.svc.prom.SubscriptionOpened("auth")
	fn(cloneOrNil(current))
	s.svc.prom.SnapshotDelivered("auth")

	return newSubscription(func() {
		// waiting for notifyMu lets an in-flight delivery finish first
		s.notifyMu.Lock()
		defer s.notifyMu.Unlock()

		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
		s.svc.prom.SubscriptionClosed("auth")
	})
}

func cloneOrNil(p user.Profile) user.Profile {
	if p == nil {
		return nil
	}
	return user.Clone(p)
}
