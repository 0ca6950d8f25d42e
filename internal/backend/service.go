package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/geocoder89/tutorhub/internal/domain/chat"
	"github.com/geocoder89/tutorhub/internal/domain/user"
	"github.com/geocoder89/tutorhub/internal/federated"
	"github.com/geocoder89/tutorhub/internal/observability"
	"github.com/geocoder89/tutorhub/internal/realtime"
	"github.com/geocoder89/tutorhub/internal/security"
	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel/attribute"
)

var ErrInvalidRequest = errors.New("invalid request")

// FallbackDisplayName names a federated account whose provider gave no name.
const FallbackDisplayName = "New User"

// Service is the stateless data access facade. Every view and the
// controller reach storage, auth and push only through it.
type Service struct {
	users    ProfileStore
	creds    CredentialStore
	chats    ChatStore
	broker   realtime.Broker
	provider federated.Provider
	prom     *observability.Prom
	logger   *slog.Logger
	validate *validator.Validate
}

type Deps struct {
	Users       ProfileStore
	Credentials CredentialStore
	Chats       ChatStore
	Broker      realtime.Broker
	// Provider is optional; without it federated sign-in is unavailable.
	Provider federated.Provider
	Prom     *observability.Prom
	Logger   *slog.Logger
}

func NewService(d Deps) *Service {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}

	// domain requests carry gin's "binding" tags; reuse them outside HTTP
	v := validator.New()
	v.SetTagName("binding")

	return &Service{
		users:    d.Users,
		creds:    d.Credentials,
		chats:    d.Chats,
		broker:   d.Broker,
		provider: d.Provider,
		prom:     d.Prom,
		logger:   logger,
		validate: v,
	}
}

func (s *Service) check(req any) error {
	if err := s.validate.Struct(req); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	return nil
}

// AuthResult is a signed-in identity with its profile. Profile is nil when the
// account has no profile yet.
type AuthResult struct {
	Identity user.Identity
	Profile  user.Profile
}

// Profiles

// GetUserProfile reports a missing profile as (nil, false, nil).
func (s *Service) GetUserProfile(ctx context.Context, id string) (user.Profile, bool, error) {
	p, err := s.users.Get(ctx, id)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("get profile %s: %w", id, err)
	}
	return p, true, nil
}

// CreateUserProfile provisions the default profile for an identity. Calling it
// again for the same identity returns the existing profile.
func (s *Service) CreateUserProfile(ctx context.Context, id user.Identity, req user.NewProfileRequest) (user.Profile, error) {
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return nil, fmt.Errorf("%w: name must not be blank", ErrInvalidRequest)
	}

	p, err := user.NewProfile(id, req)
	if err != nil {
		return nil, err
	}

	stored, created, err := s.users.Create(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("create profile %s: %w", id.ID, err)
	}

	if created {
		s.logger.InfoContext(ctx, "profile created",
			"user_id", id.ID,
			"role", req.Role,
		)
	}
	return stored, nil
}

func (s *Service) ListAllUsers(ctx context.Context) ([]user.Profile, error) {
	all, err := s.users.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return all, nil
}

// UpdateUserProfile merges a partial update. Identity fields and fields of the
// other variant are dropped before anything is written.
func (s *Service) UpdateUserProfile(ctx context.Context, id string, patch user.Patch) (_ user.Profile, err error) {
	ctx, end := observability.StartSpan(ctx, "backend.UpdateUserProfile", attribute.String("user.id", id))
	defer func() { end(err) }()

	current, err := s.users.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	normalized, err := patch.Normalize(current.Account().Role)
	if err != nil {
		return nil, err
	}
	if normalized.IsEmpty() {
		return current, nil
	}

	updated, err := s.users.Update(ctx, id, normalized)
	if err != nil {
		return nil, fmt.Errorf("update profile %s: %w", id, err)
	}
	return updated, nil
}

// SearchTeachers filters the current directory the way the search page does.
func (s *Service) SearchTeachers(ctx context.Context, term, subject string) ([]*user.Teacher, error) {
	all, err := s.ListAllUsers(ctx)
	if err != nil {
		return nil, err
	}
	return user.SearchTeachers(all, term, subject), nil
}

func (s *Service) AddReview(ctx context.Context, teacherID string, req user.NewReviewRequest) (_ *user.Teacher, err error) {
	ctx, end := observability.StartSpan(ctx, "backend.AddReview", attribute.String("teacher.id", teacherID))
	defer func() { end(err) }()

	if err := s.check(req); err != nil {
		return nil, err
	}

	t, err := s.users.AddReview(ctx, teacherID, req)
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "review added", "teacher_id", teacherID, "rating", req.Rating)
	return t, nil
}

func (s *Service) RecordProfileView(ctx context.Context, teacherID string) error {
	return s.users.IncrementProfileViews(ctx, teacherID)
}

// Auth

func (s *Service) SignInWithPassword(ctx context.Context, email, password string) (AuthResult, error) {
	c, err := s.creds.GetByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, user.ErrCredentialNotFound) {
			return AuthResult{}, user.ErrInvalidCredentials
		}
		return AuthResult{}, fmt.Errorf("sign in: %w", err)
	}

	if err := security.CheckPassword(c.PasswordHash, password); err != nil {
		return AuthResult{}, user.ErrInvalidCredentials
	}

	return s.resolve(ctx, c.Identity())
}

// SignUpWithPassword creates the credential, then the profile. The two writes
// are not atomic: if the second fails the account exists without a profile
// and the failure is only logged.
func (s *Service) SignUpWithPassword(ctx context.Context, req user.SignUpRequest) (_ AuthResult, err error) {
	ctx, end := observability.StartSpan(ctx, "backend.SignUpWithPassword", attribute.String("user.role", string(req.Role)))
	defer func() { end(err) }()

	req.Email = strings.TrimSpace(req.Email)
	if err := s.check(req); err != nil {
		return AuthResult{}, err
	}

	hash, err := security.HashPassword(req.Password)
	if err != nil {
		return AuthResult{}, fmt.Errorf("hash password: %w", err)
	}

	c, err := s.creds.Create(ctx, user.Credential{
		Email:        req.Email,
		PasswordHash: hash,
		Provider:     user.ProviderPassword,
	})
	if err != nil {
		if errors.Is(err, user.ErrEmailTaken) {
			return AuthResult{}, err
		}
		return AuthResult{}, fmt.Errorf("create credential: %w", err)
	}

	id := c.Identity()
	p, err := s.CreateUserProfile(ctx, id, user.NewProfileRequest{Name: req.Name, Role: req.Role})
	if err != nil {
		s.logger.ErrorContext(ctx, "sign-up left account without profile",
			"user_id", id.ID,
			"err", err,
		)
		return AuthResult{}, err
	}

	return AuthResult{Identity: id, Profile: p}, nil
}

// SignInWithFederatedProvider exchanges an authorization code with the
// configured identity provider. A first login gets a Student profile.
func (s *Service) SignInWithFederatedProvider(ctx context.Context, code, state string) (_ AuthResult, err error) {
	ctx, end := observability.StartSpan(ctx, "backend.SignInWithFederatedProvider")
	defer func() { end(err) }()

	if s.provider == nil {
		return AuthResult{}, user.ErrProviderUnavailable
	}

	fid, err := s.provider.Exchange(ctx, code, state)
	if err != nil {
		return AuthResult{}, err
	}

	c, err := s.federatedCredential(ctx, fid)
	if err != nil {
		return AuthResult{}, err
	}

	id := c.Identity()
	id.Name = fid.DisplayName
	id.AvatarURL = fid.AvatarURL

	res, err := s.resolve(ctx, id)
	if err != nil || res.Profile != nil {
		return res, err
	}

	name := strings.TrimSpace(fid.DisplayName)
	if name == "" {
		name = FallbackDisplayName
	}

	p, err := s.CreateUserProfile(ctx, id, user.NewProfileRequest{Name: name, Role: user.RoleStudent})
	if err != nil {
		return AuthResult{}, err
	}
	return AuthResult{Identity: id, Profile: p}, nil
}

func (s *Service) federatedCredential(ctx context.Context, fid federated.Identity) (user.Credential, error) {
	c, err := s.creds.GetByProviderSubject(ctx, fid.Provider, fid.Subject)
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, user.ErrCredentialNotFound) {
		return user.Credential{}, fmt.Errorf("lookup federated credential: %w", err)
	}

	c, err = s.creds.Create(ctx, user.Credential{
		Email:    fid.Email,
		Provider: fid.Provider,
		Subject:  fid.Subject,
	})
	if errors.Is(err, user.ErrCredentialExists) {
		// a concurrent first login won
		return s.creds.GetByProviderSubject(ctx, fid.Provider, fid.Subject)
	}
	if err != nil {
		return user.Credential{}, fmt.Errorf("create federated credential: %w", err)
	}
	return c, nil
}

func (s *Service) resolve(ctx context.Context, id user.Identity) (AuthResult, error) {
	p, ok, err := s.GetUserProfile(ctx, id.ID)
	if err != nil {
		return AuthResult{}, err
	}
	if !ok {
		return AuthResult{Identity: id}, nil
	}
	return AuthResult{Identity: id, Profile: p}, nil
}

// Chat

// FindOrCreateConversation returns the single conversation for an unordered
// pair of users, creating it on first contact.
func (s *Service) FindOrCreateConversation(ctx context.Context, userA, userB string) (_ chat.Conversation, err error) {
	ctx, end := observability.StartSpan(ctx, "backend.FindOrCreateConversation")
	defer func() { end(err) }()

	pair, err := chat.CanonicalPair(userA, userB)
	if err != nil {
		return chat.Conversation{}, err
	}

	for _, id := range pair.IDs() {
		if _, err := s.users.Get(ctx, id); err != nil {
			return chat.Conversation{}, fmt.Errorf("participant %s: %w", id, err)
		}
	}

	c, created, err := s.chats.FindOrCreate(ctx, pair)
	if err != nil {
		return chat.Conversation{}, fmt.Errorf("find or create conversation: %w", err)
	}

	if created {
		s.logger.InfoContext(ctx, "conversation created",
			"conversation_id", c.ID,
			"participants", pair.Key(),
		)
	}
	return c, nil
}

func (s *Service) ListConversationsForUser(ctx context.Context, userID string) ([]chat.Conversation, error) {
	out, err := s.chats.ListForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	chat.SortByActivity(out)
	return out, nil
}

func (s *Service) GetConversation(ctx context.Context, id string) (chat.Conversation, error) {
	return s.chats.Get(ctx, id)
}

func (s *Service) ListMessages(ctx context.Context, conversationID string) ([]chat.Message, error) {
	msgs, err := s.chats.List(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	chat.SortMessages(msgs)
	return msgs, nil
}

// SendMessage appends a message and signals subscribers. The message is
// durable once stored, so a failed notification is logged, not returned.
func (s *Service) SendMessage(ctx context.Context, conversationID, text, senderID string) (_ chat.Message, err error) {
	ctx, end := observability.StartSpan(ctx, "backend.SendMessage", attribute.String("conversation.id", conversationID))
	defer func() { end(err) }()

	if err := chat.ValidateText(text); err != nil {
		return chat.Message{}, err
	}

	m, err := s.chats.Append(ctx, conversationID, senderID, text)
	if err != nil {
		return chat.Message{}, err
	}
	s.prom.MessageSent()

	if err := s.broker.Notify(ctx, realtime.ConversationTopic(conversationID)); err != nil {
		s.logger.WarnContext(ctx, "message change notification failed",
			"conversation_id", conversationID,
			"err", err,
		)
	}
	return m, nil
}

// SubscribeMessages delivers the full ordered message list now and after
// every change. Deliveries are serialised on one goroutine per subscription.
// A failed first load is returned and no subscription is opened.
func (s *Service) SubscribeMessages(ctx context.Context, conversationID string, onSnapshot func([]chat.Message)) (*Subscription, error) {
	if _, err := s.chats.Get(ctx, conversationID); err != nil {
		return nil, err
	}

	// listen before the first load so a message sent in between still wakes us
	l, err := s.broker.Listen(ctx, realtime.ConversationTopic(conversationID))
	if err != nil {
		return nil, fmt.Errorf("listen on conversation %s: %w", conversationID, err)
	}

	first, err := s.ListMessages(ctx, conversationID)
	if err != nil {
		_ = l.Close()
		return nil, fmt.Errorf("load conversation %s: %w", conversationID, err)
	}

	subCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	done := make(chan struct{})

	s.prom.SubscriptionOpened("messages")

	go func() {
		defer close(done)
		defer s.prom.SubscriptionClosed("messages")

		emit := func(msgs []chat.Message) {
			if subCtx.Err() != nil {
				return
			}
			onSnapshot(msgs)
			s.prom.SnapshotDelivered("messages")
		}

		emit(first)
		for {
			select {
			case <-subCtx.Done():
				return
			case <-l.C():
				msgs, err := s.ListMessages(subCtx, conversationID)
				if err != nil {
					if subCtx.Err() == nil {
						s.logger.WarnContext(subCtx, "message snapshot reload failed",
							"conversation_id", conversationID,
							"err", err,
						)
					}
					continue
				}
				emit(msgs)
			}
		}
	}()

	return newSubscription(func() {
		cancel()
		_ = l.Close()
		<-done
	}), nil
}
