package memory

import (
	"context"
	"sync"
	"time"

	"github.com/geocoder89/tutorhub/internal/auth"
)

type RefreshTokensRepo struct {
	mu    sync.Mutex
	items map[string]auth.RefreshToken
}

func NewRefreshTokensRepo() *RefreshTokensRepo {
	return &RefreshTokensRepo{
		items: make(map[string]auth.RefreshToken),
	}
}

func (r *RefreshTokensRepo) Create(_ context.Context, row auth.RefreshToken) error {
	r.mu.Lock()
	r.items[row.ID] = row
	r.mu.Unlock()
	return nil
}

// Rotate checks the current row and swaps it for next in one critical section,
// so two refreshes racing on the same token cannot both succeed.
func (r *RefreshTokensRepo) Rotate(_ context.Context, id string, check func(auth.RefreshToken) error, next auth.RefreshToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	row, ok := r.items[id]
	if !ok {
		return auth.ErrRefreshTokenNotFound
	}
	if err := check(row); err != nil {
		return err
	}

	now := time.Now().UTC()
	row.RevokedAt = &now
	row.ReplacedBy = &next.ID
	r.items[id] = row
	r.items[next.ID] = next
	return nil
}

func (r *RefreshTokensRepo) Revoke(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	row, ok := r.items[id]
	if !ok || row.RevokedAt != nil {
		return nil
	}
	now := time.Now().UTC()
	row.RevokedAt = &now
	r.items[id] = row
	return nil
}
