package handlers

import (
	"context"
	"time"

	"github.com/geocoder89/tutorhub/internal/cache"
	"github.com/geocoder89/tutorhub/internal/domain/user"
	"github.com/geocoder89/tutorhub/internal/utils"
)

type DirectoryReader interface {
	ListAllUsers(ctx context.Context) ([]user.Profile, error)
}

// Directory serves the user list and teacher searches from a short-lived
// snapshot. Handlers that write profiles call Invalidate.
type Directory struct {
	svc      DirectoryReader
	snapshot *cache.Cache[[]user.Profile]
	searches *cache.Cache[[]*user.Teacher]
}

func NewDirectory(svc DirectoryReader, ttl time.Duration) *Directory {
	return &Directory{
		svc:      svc,
		snapshot: cache.New[[]user.Profile](ttl),
		searches: cache.New[[]*user.Teacher](ttl),
	}
}

func (d *Directory) All(ctx context.Context) ([]user.Profile, error) {
	if all, ok := d.snapshot.Get(utils.DirectoryCacheKey); ok {
		return all, nil
	}

	all, err := d.svc.ListAllUsers(ctx)
	if err != nil {
		return nil, err
	}

	d.snapshot.Set(utils.DirectoryCacheKey, all)
	return all, nil
}

func (d *Directory) SearchTeachers(ctx context.Context, term, subject string) ([]*user.Teacher, error) {
	key := utils.BuildTeacherSearchCacheKey(term, subject)
	if hits, ok := d.searches.Get(key); ok {
		return hits, nil
	}

	all, err := d.All(ctx)
	if err != nil {
		return nil, err
	}

	hits := user.SearchTeachers(all, term, subject)
	d.searches.Set(key, hits)
	return hits, nil
}

func (d *Directory) Invalidate() {
	d.snapshot.Clear()
	d.searches.Clear()
}
