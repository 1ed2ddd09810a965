package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/noah-isme/college-timetable-api/internal/models"
	appErrors "github.com/noah-isme/college-timetable-api/pkg/errors"
)

const referenceCacheKey = "reference:set"

// ReferenceSource reads raw reference entities from a database or directory.
type ReferenceSource interface {
	Load(ctx context.Context) (models.ReferenceSet, error)
}

// ReferenceService builds lookup maps from a source, caching the raw set.
type ReferenceService struct {
	source ReferenceSource
	loader *ReferenceLoader
	cache  *CacheService
	logger *zap.Logger
}

// NewReferenceService constructs a reference service. cache may be nil.
func NewReferenceService(source ReferenceSource, loader *ReferenceLoader, cache *CacheService, logger *zap.Logger) *ReferenceService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if loader == nil {
		loader = NewReferenceLoader(nil, logger)
	}
	return &ReferenceService{source: source, loader: loader, cache: cache, logger: logger}
}

// Load returns lookup maps for the current reference entities.
func (s *ReferenceService) Load(ctx context.Context) (*ReferenceData, error) {
	var set models.ReferenceSet
	if s.cache.Get(ctx, referenceCacheKey, &set) {
		return s.loader.Load(set), nil
	}
	if s.source == nil {
		return EmptyReferenceData(), nil
	}
	set, err := s.source.Load(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load reference data")
	}
	s.cache.Set(ctx, referenceCacheKey, set, 0)
	return s.loader.Load(set), nil
}

// Invalidate drops the cached reference set.
func (s *ReferenceService) Invalidate(ctx context.Context) error {
	return s.cache.Invalidate(ctx, referenceCacheKey)
}
