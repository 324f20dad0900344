package usercache

import (
	"context"
	"log/slog"

	"github.com/Proton-105/billsafe/internal/domain"
	"github.com/Proton-105/billsafe/internal/repository"
)

// CachedUserRepository reads users through the cache and drops cached
// entries on every write. Cache failures are logged and fall through to
// the wrapped repository.
type CachedUserRepository struct {
	repository.UserRepository
	cache *Cache
	log   *slog.Logger
}

var _ repository.UserRepository = (*CachedUserRepository)(nil)

func NewCachedUserRepository(next repository.UserRepository, cache *Cache, log *slog.Logger) *CachedUserRepository {
	if log == nil {
		log = slog.Default()
	}

	return &CachedUserRepository{
		UserRepository: next,
		cache:          cache,
		log:            log,
	}
}

func (r *CachedUserRepository) FindByID(ctx context.Context, id string) (*domain.User, error) {
	cached, err := r.cache.Get(ctx, id)
	if err != nil {
		r.log.Warn("user cache read failed", slog.String("user_id", id), slog.Any("error", err))
	}
	if cached != nil {
		return cached, nil
	}

	user, err := r.UserRepository.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := r.cache.Set(ctx, user); err != nil {
		r.log.Warn("user cache write failed", slog.String("user_id", id), slog.Any("error", err))
	}
	return user, nil
}

func (r *CachedUserRepository) Create(ctx context.Context, user *domain.User) error {
	if err := r.UserRepository.Create(ctx, user); err != nil {
		return err
	}
	r.invalidate(ctx, user.ID)
	return nil
}

func (r *CachedUserRepository) Update(ctx context.Context, user *domain.User) error {
	if err := r.UserRepository.Update(ctx, user); err != nil {
		return err
	}
	r.invalidate(ctx, user.ID)
	return nil
}

func (r *CachedUserRepository) Relink(ctx context.Context, oldID, newID string) error {
	if err := r.UserRepository.Relink(ctx, oldID, newID); err != nil {
		return err
	}
	r.invalidate(ctx, oldID)
	r.invalidate(ctx, newID)
	return nil
}

func (r *CachedUserRepository) invalidate(ctx context.Context, id string) {
	if err := r.cache.Invalidate(ctx, id); err != nil {
		r.log.Warn("user cache invalidation failed", slog.String("user_id", id), slog.Any("error", err))
	}
}
