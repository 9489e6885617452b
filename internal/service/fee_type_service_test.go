package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/smartcampusmng/campus-fees-api/internal/models"
	appErrors "github.com/smartcampusmng/campus-fees-api/pkg/errors"
)

type mockCacheRepo struct {
	entries map[string][]byte
	purged  []string
}

func (m *mockCacheRepo) Get(ctx context.Context, key string, dest interface{}) error {
	payload, ok := m.entries[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(payload, dest)
}

func (m *mockCacheRepo) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if m.entries == nil {
		m.entries = make(map[string][]byte)
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.entries[key] = payload
	return nil
}

func (m *mockCacheRepo) DeleteByPattern(ctx context.Context, pattern string) error {
	m.purged = append(m.purged, pattern)
	m.entries = make(map[string][]byte)
	return nil
}

type countingFeeTypeReader struct {
	mockFeeTypeReader
	listCalls int
	findCalls int
}

func (c *countingFeeTypeReader) List(ctx context.Context) ([]models.FeeType, error) {
	c.listCalls++
	return c.mockFeeTypeReader.List(ctx)
}

func (c *countingFeeTypeReader) FindByID(ctx context.Context, id string) (*models.FeeType, error) {
	c.findCalls++
	return c.mockFeeTypeReader.FindByID(ctx, id)
}

func TestFeeTypeListServedFromCache(t *testing.T) {
	reader := &countingFeeTypeReader{mockFeeTypeReader: mockFeeTypeReader{types: []models.FeeType{
		{ID: "ft1", Name: "Tuition", Amount: 1500, Frequency: models.FrequencySemester},
	}}}
	cacheSvc := NewCacheService(&mockCacheRepo{}, nil, time.Minute, zap.NewNop(), true)
	svc := NewFeeTypeService(reader, cacheSvc, time.Minute, zap.NewNop())

	first, err := svc.List(context.Background())
	require.NoError(t, err)
	require.Len(t, first, 1)

	second, err := svc.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, reader.listCalls)
}

func TestFeeTypeGetCachesPerID(t *testing.T) {
	reader := &countingFeeTypeReader{mockFeeTypeReader: mockFeeTypeReader{types: []models.FeeType{
		{ID: "ft1", Name: "Tuition", Amount: 1500, Frequency: models.FrequencySemester},
	}}}
	cacheSvc := NewCacheService(&mockCacheRepo{}, nil, time.Minute, zap.NewNop(), true)
	svc := NewFeeTypeService(reader, cacheSvc, time.Minute, zap.NewNop())

	ft, err := svc.Get(context.Background(), "ft1")
	require.NoError(t, err)
	assert.Equal(t, "Tuition", ft.Name)

	_, err = svc.Get(context.Background(), "ft1")
	require.NoError(t, err)
	assert.Equal(t, 1, reader.findCalls)
}

func TestFeeTypeGetNotFound(t *testing.T) {
	reader := &countingFeeTypeReader{}
	svc := NewFeeTypeService(reader, nil, time.Minute, zap.NewNop())

	_, err := svc.Get(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestFeeTypeInvalidateCacheForcesReload(t *testing.T) {
	reader := &countingFeeTypeReader{mockFeeTypeReader: mockFeeTypeReader{types: []models.FeeType{
		{ID: "ft1", Name: "Tuition", Amount: 1500, Frequency: models.FrequencySemester},
	}}}
	cacheRepo := &mockCacheRepo{}
	cacheSvc := NewCacheService(cacheRepo, nil, time.Minute, zap.NewNop(), true)
	svc := NewFeeTypeService(reader, cacheSvc, time.Minute, zap.NewNop()).WithMetrics(NewMetricsService())

	_, err := svc.List(context.Background())
	require.NoError(t, err)
	_, err = svc.Get(context.Background(), "ft1")
	require.NoError(t, err)

	require.NoError(t, svc.InvalidateCache(context.Background()))
	assert.Equal(t, []string{"feetypes:*"}, cacheRepo.purged)

	_, err = svc.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, reader.listCalls)
}

func TestFeeTypeListWithoutCache(t *testing.T) {
	reader := &countingFeeTypeReader{mockFeeTypeReader: mockFeeTypeReader{types: []models.FeeType{
		{ID: "ft1", Name: "Tuition", Amount: 1500, Frequency: models.FrequencySemester},
	}}}
	svc := NewFeeTypeService(reader, nil, time.Minute, zap.NewNop())

	list, err := svc.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, list, 1)

	_, err = svc.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, reader.listCalls)
}
