package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/geocoder89/tutorhub/internal/domain/user"
	"github.com/google/uuid"
)

type CredentialsRepo struct {
	mu    sync.RWMutex
	items map[string]user.Credential // by id
}

func NewCredentialsRepo() *CredentialsRepo {
	return &CredentialsRepo{
		items: make(map[string]user.Credential),
	}
}

// Create enforces the same uniqueness the database does: one password
// credential per email, one credential per provider subject.
func (r *CredentialsRepo) Create(_ context.Context, c user.Credential) (user.Credential, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.items {
		if c.Provider == user.ProviderPassword && existing.Provider == user.ProviderPassword &&
			strings.EqualFold(existing.Email, c.Email) {
			return user.Credential{}, user.ErrEmailTaken
		}
		if c.Provider != user.ProviderPassword && existing.Provider == c.Provider && existing.Subject == c.Subject {
			return user.Credential{}, user.ErrCredentialExists
		}
	}

	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}

	r.items[c.ID] = c
	return c, nil
}

func (r *CredentialsRepo) GetByEmail(_ context.Context, email string) (user.Credential, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, c := range r.items {
		if c.Provider == user.ProviderPassword && strings.EqualFold(c.Email, email) {
			return c, nil
		}
	}
	return user.Credential{}, user.ErrCredentialNotFound
}

func (r *CredentialsRepo) GetByProviderSubject(_ context.Context, provider, subject string) (user.Credential, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, c := range r.items {
		if c.Provider == provider && c.Subject == subject {
			return c, nil
		}
	}
	return user.Credential{}, user.ErrCredentialNotFound
}
