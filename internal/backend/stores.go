package backend

import (
	"context"

	"github.com/geocoder89/tutorhub/internal/domain/chat"
	"github.com/geocoder89/tutorhub/internal/domain/user"
)

// The store contracts are satisfied by both repo/postgres and repo/memory.

type ProfileStore interface {
	Get(ctx context.Context, id string) (user.Profile, error)
	Create(ctx context.Context, p user.Profile) (user.Profile, bool, error)
	List(ctx context.Context) ([]user.Profile, error)
	Update(ctx context.Context, id string, patch user.Patch) (user.Profile, error)
	AddReview(ctx context.Context, teacherID string, req user.NewReviewRequest) (*user.Teacher, error)
	IncrementProfileViews(ctx context.Context, teacherID string) error
}

type CredentialStore interface {
	Create(ctx context.Context, c user.Credential) (user.Credential, error)
	GetByEmail(ctx context.Context, email string) (user.Credential, error)
	GetByProviderSubject(ctx context.Context, provider, subject string) (user.Credential, error)
}

type ChatStore interface {
	FindOrCreate(ctx context.Context, pair chat.Pair) (chat.Conversation, bool, error)
	Get(ctx context.Context, id string) (chat.Conversation, error)
	ListForUser(ctx context.Context, userID string) ([]chat.Conversation, error)
	Append(ctx context.Context, conversationID, senderID, text string) (chat.Message, error)
	List(ctx context.Context, conversationID string) ([]chat.Message, error)
}
