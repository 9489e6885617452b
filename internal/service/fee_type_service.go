package service

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/smartcampusmng/campus-fees-api/internal/models"
	appErrors "github.com/smartcampusmng/campus-fees-api/pkg/errors"
)

const (
	feeTypeListCacheKey  = "feetypes:all"
	feeTypeCachePattern  = "feetypes:*"
	feeTypeListQueryName = "fee_types.list"
	feeTypeGetQueryName  = "fee_types.find_by_id"
)

// FeeTypeService exposes the institution fee template catalogue. The
// catalogue changes rarely and is read on every schedule run, so the
// list is served through the cache.
type FeeTypeService struct {
	feeTypes feeTypeReader
	cache    *CacheService
	cacheTTL time.Duration
	logger   *zap.Logger
	metrics  *MetricsService
}

// NewFeeTypeService constructs FeeTypeService.
func NewFeeTypeService(feeTypes feeTypeReader, cache *CacheService, cacheTTL time.Duration, logger *zap.Logger) *FeeTypeService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FeeTypeService{feeTypes: feeTypes, cache: cache, cacheTTL: cacheTTL, logger: logger}
}

// WithMetrics attaches Prometheus instrumentation.
func (s *FeeTypeService) WithMetrics(m *MetricsService) *FeeTypeService {
	s.metrics = m
	return s
}

// List returns all fee templates, cache-first.
func (s *FeeTypeService) List(ctx context.Context) ([]models.FeeType, error) {
	var cached []models.FeeType
	if hit, err := s.cache.Get(ctx, feeTypeListCacheKey, &cached); err == nil && hit {
		return cached, nil
	}
	start := time.Now()
	feeTypes, err := s.feeTypes.List(ctx)
	s.metrics.ObserveDBQuery(feeTypeListQueryName, time.Since(start))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list fee types")
	}
	if err := s.cache.Set(ctx, feeTypeListCacheKey, feeTypes, s.cacheTTL); err != nil {
		s.logger.Warn("failed to cache fee types", zap.Error(err))
	}
	return feeTypes, nil
}

// Get returns a single fee template.
func (s *FeeTypeService) Get(ctx context.Context, id string) (*models.FeeType, error) {
	if id == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "fee type id is required")
	}
	key := fmt.Sprintf("feetypes:%s", id)
	var cached models.FeeType
	if hit, err := s.cache.Get(ctx, key, &cached); err == nil && hit {
		return &cached, nil
	}
	start := time.Now()
	feeType, err := s.feeTypes.FindByID(ctx, id)
	s.metrics.ObserveDBQuery(feeTypeGetQueryName, time.Since(start))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "fee type not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load fee type")
	}
	if err := s.cache.Set(ctx, key, feeType, s.cacheTTL); err != nil {
		s.logger.Warn("failed to cache fee type", zap.String("id", id), zap.Error(err))
	}
	return feeType, nil
}

// InvalidateCache drops every cached fee template. The catalogue is
// maintained directly in the database, so after an out-of-band change
// an admin busts the cache instead of waiting out the TTL.
func (s *FeeTypeService) InvalidateCache(ctx context.Context) error {
	if err := s.cache.Invalidate(ctx, feeTypeCachePattern); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to invalidate fee type cache")
	}
	s.logger.Info("fee type cache invalidated")
	return nil
}
