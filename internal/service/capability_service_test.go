package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/noticeboard/internal/models"
)

func TestSuperuserHoldsEveryCapability(t *testing.T) {
	store := newMemoryStore()
	svc := NewCapabilityService(store, nil, 0, nil)

	ok, err := svc.HasCapability(context.Background(), models.Principal{UserID: "x", IsSuperuser: true}, models.ActionDelete, models.ResourceGroup)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Zero(t, store.capLookups)
}

func TestCapabilitiesComeFromGroups(t *testing.T) {
	store := newMemoryStore()
	user := store.addUser("editor")
	store.grant(user.UserID, models.Capability{Action: models.ActionEdit, Resource: models.ResourceAnnouncement})
	svc := NewCapabilityService(store, nil, 0, nil)

	ok, err := svc.HasCapability(context.Background(), user, models.ActionEdit, models.ResourceAnnouncement)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = svc.HasCapability(context.Background(), user, models.ActionDelete, models.ResourceAnnouncement)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = svc.HasCapability(context.Background(), models.Principal{}, models.ActionView, models.ResourceAnnouncement)
	require.NoError(t, err)
	assert.False(t, ok, "anonymous principals hold nothing")
}

func TestCapabilitiesAreCachedUntilInvalidated(t *testing.T) {
	store := newMemoryStore()
	user := store.addUser("editor")
	cacheSvc := NewCacheService(newMemoryCache(), nil, 0, nil, true)
	svc := NewCapabilityService(store, cacheSvc, 0, nil)

	for i := 0; i < 3; i++ {
		_, err := svc.HasCapability(context.Background(), user, models.ActionCreate, models.ResourceAnnouncement)
		require.NoError(t, err)
	}
	assert.Equal(t, 1, store.capLookups)

	store.grant(user.UserID, models.Capability{Action: models.ActionCreate, Resource: models.ResourceAnnouncement})
	svc.Invalidate(context.Background())
	ok, err := svc.HasCapability(context.Background(), user, models.ActionCreate, models.ResourceAnnouncement)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 2, store.capLookups)
}

func TestIsManager(t *testing.T) {
	store := newMemoryStore()
	svc := NewCapabilityService(store, nil, 0, nil)
	author := store.addUser("author")
	store.grant(author.UserID, models.Capability{Action: models.ActionCreate, Resource: models.ResourceAnnouncement})
	editor := store.addUser("editor")
	store.grant(editor.UserID, models.Capability{Action: models.ActionEdit, Resource: models.ResourceAnnouncement})

	ok, err := IsManager(context.Background(), svc, author)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = IsManager(context.Background(), svc, editor)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = IsManager(context.Background(), svc, models.Principal{UserID: "root", IsSuperuser: true})
	require.NoError(t, err)
	assert.True(t, ok)
}
