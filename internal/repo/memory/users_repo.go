package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/geocoder89/tutorhub/internal/domain/user"
)

// UsersRepo keeps profiles in a map. Every read and write copies, so callers
// never share slices with the store.
type UsersRepo struct {
	mu    sync.RWMutex
	items map[string]user.Profile
}

func NewUsersRepo() *UsersRepo {
	return &UsersRepo{
		items: make(map[string]user.Profile),
	}
}

func (r *UsersRepo) Get(_ context.Context, id string) (user.Profile, error) {
	r.mu.RLock()
	p, ok := r.items[id]
	r.mu.RUnlock()

	if !ok {
		return nil, user.ErrNotFound
	}
	return user.Clone(p), nil
}

// Create stores p unless a profile with the same id exists, in which case the
// existing one is returned with created=false.
func (r *UsersRepo) Create(_ context.Context, p user.Profile) (user.Profile, bool, error) {
	id := p.Account().ID

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.items[id]; ok {
		return user.Clone(existing), false, nil
	}

	r.items[id] = user.Clone(p)
	return user.Clone(p), true, nil
}

func (r *UsersRepo) List(_ context.Context) ([]user.Profile, error) {
	r.mu.RLock()
	out := make([]user.Profile, 0, len(r.items))
	for _, p := range r.items {
		out = append(out, user.Clone(p))
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].Account(), out[j].Account()
		if an, bn := strings.ToLower(a.Name), strings.ToLower(b.Name); an != bn {
			return an < bn
		}
		return a.ID < b.ID
	})
	return out, nil
}

func (r *UsersRepo) Update(_ context.Context, id string, patch user.Patch) (user.Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.items[id]
	if !ok {
		return nil, user.ErrNotFound
	}

	merged := user.Apply(p, patch)
	r.items[id] = merged
	return user.Clone(merged), nil
}

func (r *UsersRepo) AddReview(_ context.Context, teacherID string, req user.NewReviewRequest) (*user.Teacher, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.items[teacherID]
	if !ok {
		return nil, user.ErrNotFound
	}
	t, ok := p.(*user.Teacher)
	if !ok {
		return nil, user.ErrNotTeacher
	}

	updated, err := user.AddReview(t, req)
	if err != nil {
		return nil, err
	}

	r.items[teacherID] = updated
	return user.Clone(updated).(*user.Teacher), nil
}

func (r *UsersRepo) IncrementProfileViews(_ context.Context, teacherID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.items[teacherID]
	if !ok {
		return user.ErrNotFound
	}
	t, ok := p.(*user.Teacher)
	if !ok {
		return user.ErrNotTeacher
	}

	t.ProfileViews++
	return nil
}
