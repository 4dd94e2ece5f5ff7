package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/fairyhunter13/ai-video-generator/internal/adapter/catalogcache"
	"github.com/fairyhunter13/ai-video-generator/internal/domain"
)

// CatalogService serves provider catalogs through a server-side cache so
// avatar/voice/balance reads rarely consume provider quota.
type CatalogService struct {
	Provider domain.VideoProvider
	Cache    domain.CatalogCache
	TTL      time.Duration
}

// NewCatalogService constructs a CatalogService.
func NewCatalogService(p domain.VideoProvider, c domain.CatalogCache, ttl time.Duration) CatalogService {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return CatalogService{Provider: p, Cache: c, TTL: ttl}
}

// Avatars returns the avatar catalog, cache-first.
func (s CatalogService) Avatars(ctx context.Context) ([]domain.Avatar, error) {
	var cached []domain.Avatar
	if hit := s.tryGet(ctx, catalogcache.KeyAvatars, &cached); hit {
		return cached, nil
	}
	avatars, err := s.Provider.ListAvatars(ctx)
	if err != nil {
		return nil, err
	}
	s.trySet(ctx, catalogcache.KeyAvatars, avatars)
	return avatars, nil
}

// Voices returns the flattened voice catalog, cache-first.
func (s CatalogService) Voices(ctx context.Context) ([]domain.Voice, error) {
	var cached []domain.Voice
	if hit := s.tryGet(ctx, catalogcache.KeyVoices, &cached); hit {
		return cached, nil
	}
	voices, err := s.Provider.ListVoices(ctx)
	if err != nil {
		return nil, err
	}
	s.trySet(ctx, catalogcache.KeyVoices, voices)
	return voices, nil
}

// CreditBalance returns the provider account balance, cache-first.
func (s CatalogService) CreditBalance(ctx context.Context) (domain.CreditBalance, error) {
	var cached domain.CreditBalance
	if hit := s.tryGet(ctx, catalogcache.KeyCredits, &cached); hit {
		return cached, nil
	}
	bal, err := s.Provider.GetCreditBalance(ctx)
	if err != nil {
		return domain.CreditBalance{}, err
	}
	s.trySet(ctx, catalogcache.KeyCredits, bal)
	return bal, nil
}

// Cache failures degrade to pass-through, never to request failure.
func (s CatalogService) tryGet(ctx context.Context, key string, v any) bool {
	hit, err := s.Cache.Get(ctx, key, v)
	if err != nil {
		slog.Warn("catalog cache read failed", slog.String("key", key), slog.Any("error", err))
		return false
	}
	return hit
}

func (s CatalogService) trySet(ctx context.Context, key string, v any) {
	if err := s.Cache.Set(ctx, key, v, s.TTL); err != nil {
		slog.Warn("catalog cache write failed", slog.String("key", key), slog.Any("error", err))
	}
}
