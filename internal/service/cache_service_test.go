package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type brokenCacheRepo struct{}

func (brokenCacheRepo) Get(ctx context.Context, key string, dest interface{}) error {
	return errors.New("redis down")
}

func (brokenCacheRepo) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	return errors.New("redis down")
}

func (brokenCacheRepo) DeleteByPattern(ctx context.Context, pattern string) error {
	return errors.New("redis down")
}

func TestCacheServiceRemember(t *testing.T) {
	repo := newMemoryCacheRepo()
	svc := NewCacheService(repo, NewMetricsService(), time.Minute, zap.NewNop(), true)
	loads := 0
	load := func(dest *[]int) func(context.Context) error {
		return func(context.Context) error {
			loads++
			*dest = []int{1, 2, 3}
			return nil
		}
	}

	var first []int
	require.NoError(t, svc.Remember(context.Background(), "k", 0, &first, load(&first)))
	var second []int
	require.NoError(t, svc.Remember(context.Background(), "k", 0, &second, load(&second)))

	assert.Equal(t, 1, loads)
	assert.Equal(t, first, second)
}

func TestCacheServiceRememberPropagatesLoadError(t *testing.T) {
	svc := NewCacheService(newMemoryCacheRepo(), nil, time.Minute, nil, true)
	var dest []int

	err := svc.Remember(context.Background(), "k", 0, &dest, func(context.Context) error {
		return errors.New("boom")
	})

	assert.EqualError(t, err, "boom")
}

func TestCacheServiceDisabled(t *testing.T) {
	repo := newMemoryCacheRepo()
	svc := NewCacheService(repo, nil, time.Minute, nil, false)

	require.NoError(t, svc.Set(context.Background(), "k", 1, 0))
	hit, err := svc.Get(context.Background(), "k", new(int))

	require.NoError(t, err)
	assert.False(t, hit)
	assert.False(t, repo.has("k"))

	var nilSvc *CacheService
	assert.False(t, nilSvc.Enabled())
}

func TestCacheServiceBackendFailuresDegradeToLoad(t *testing.T) {
	svc := NewCacheService(brokenCacheRepo{}, NewMetricsService(), time.Minute, zap.NewNop(), true)
	var dest string

	err := svc.Remember(context.Background(), "k", 0, &dest, func(context.Context) error {
		dest = "fresh"
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, "fresh", dest)
	assert.Error(t, svc.Invalidate(context.Background(), "k*"))
}
