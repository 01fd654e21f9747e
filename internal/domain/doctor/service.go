package doctor

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/labdesk/labdesk/internal/platform/cache"
)

const cacheKey = "doctors:all"

// Directory serves the doctor list through a cache-aside layer. Cache
// failures are logged and fall through to the repository.
type Directory struct {
	repo   Repository
	cache  cache.Cache
	ttl    time.Duration
	logger zerolog.Logger
}

func NewDirectory(repo Repository, c cache.Cache, ttl time.Duration, logger zerolog.Logger) *Directory {
	return &Directory{repo: repo, cache: c, ttl: ttl, logger: logger}
}

func (d *Directory) List(ctx context.Context) ([]*Doctor, error) {
	if d.cache != nil {
		var cached []*Doctor
		hit, err := cache.GetJSON(ctx, d.cache, cacheKey, &cached)
		if err != nil {
			d.logger.Warn().Err(err).Msg("doctor cache read failed")
		}
		if hit {
			return cached, nil
		}
	}

	docs, err := d.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	if docs == nil {
		docs = []*Doctor{}
	}

	if d.cache != nil {
		if err := cache.SetJSON(ctx, d.cache, cacheKey, docs, d.ttl); err != nil {
			d.logger.Warn().Err(err).Msg("doctor cache write failed")
		}
	}
	return docs, nil
}

// Names returns the ID to name index of all doctors.
func (d *Directory) Names(ctx context.Context) (Names, error) {
	docs, err := d.List(ctx)
	if err != nil {
		return nil, err
	}
	return NewNames(docs), nil
}

// NamesOrEmpty is Names for display paths: a lookup failure is logged and an
// empty index returned, so every order resolves to UnknownName.
func (d *Directory) NamesOrEmpty(ctx context.Context) Names {
	names, err := d.Names(ctx)
	if err != nil {
		d.logger.Warn().Err(err).Msg("doctor lookup failed, showing unresolved names")
		return Names{}
	}
	return names
}

func (d *Directory) Get(ctx context.Context, id string) (*Doctor, error) {
	return d.repo.Get(ctx, id)
}

func (d *Directory) Create(ctx context.Context, doc *Doctor) error {
	if err := doc.Validate(); err != nil {
		return err
	}
	if err := d.repo.Create(ctx, doc); err != nil {
		return err
	}
	d.Invalidate(ctx)
	return nil
}

// Invalidate drops the cached list.
func (d *Directory) Invalidate(ctx context.Context) {
	if d.cache == nil {
		return
	}
	if err := d.cache.Delete(ctx, cacheKey); err != nil {
		d.logger.Warn().Err(err).Str("key", cacheKey).Msg("doctor cache invalidation failed")
	}
}
