package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolvePageSize(t *testing.T) {
	cacheSvc := NewCacheService(newMemoryCache(), nil, 0, nil, true)
	svc := NewPreferenceService(cacheSvc, 0, 10, 100)
	ctx := context.Background()

	assert.Equal(t, 10, svc.ResolvePageSize(ctx, "u1", ""))
	assert.Equal(t, 20, svc.ResolvePageSize(ctx, "u1", "20"))
	assert.Equal(t, 20, svc.ResolvePageSize(ctx, "u1", ""), "remembered from the previous request")
	assert.Equal(t, 20, svc.ResolvePageSize(ctx, "u1", "0"), "invalid values fall back to the stored one")
	assert.Equal(t, 20, svc.ResolvePageSize(ctx, "u1", "abc"))
	assert.Equal(t, 10, svc.ResolvePageSize(ctx, "u2", ""), "preferences are per user")
}

func TestResolvePageSizeWithoutCache(t *testing.T) {
	svc := NewPreferenceService(nil, 0, 0, 0)
	assert.Equal(t, 10, svc.DefaultPageSize())
	assert.Equal(t, 5, svc.ResolvePageSize(context.Background(), "u1", "5"))
	assert.Equal(t, 10, svc.ResolvePageSize(context.Background(), "u1", ""))
}

func TestParsePageSize(t *testing.T) {
	svc := NewPreferenceService(nil, 0, 10, 50)
	size, ok := svc.ParsePageSize(" 50 ")
	assert.True(t, ok)
	assert.Equal(t, 50, size)

	_, ok = svc.ParsePageSize("51")
	assert.False(t, ok)
	_, ok = svc.ParsePageSize("-1")
	assert.False(t, ok)
}
