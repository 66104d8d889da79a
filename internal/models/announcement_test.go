package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmergencyOrdinal(t *testing.T) {
	assert.Equal(t, 4, EmergencyUrgent.Ordinal())
	assert.Equal(t, 3, EmergencyHigh.Ordinal())
	assert.Equal(t, 2, EmergencyMedium.Ordinal())
	assert.Equal(t, 1, EmergencyLow.Ordinal())
	assert.Equal(t, 0, EmergencyLevel("critical").Ordinal())
	assert.False(t, EmergencyLevel("critical").Valid())
}

func TestParseEmergencyLevel(t *testing.T) {
	level, err := ParseEmergencyLevel(" URGENT ")
	require.NoError(t, err)
	assert.Equal(t, EmergencyUrgent, level)

	level, err = ParseEmergencyLevel("")
	require.NoError(t, err)
	assert.Equal(t, EmergencyLow, level)

	_, err = ParseEmergencyLevel("severe")
	assert.Error(t, err)
}

func TestSyncOrdinalFollowsLevel(t *testing.T) {
	a := &Announcement{EmergencyLevel: EmergencyLow}
	a.SyncOrdinal()
	assert.Equal(t, 1, a.EmergencyOrdinal)

	a.EmergencyLevel = EmergencyUrgent
	a.SyncOrdinal()
	assert.Equal(t, 4, a.EmergencyOrdinal)
}

func TestIsPublished(t *testing.T) {
	now := time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)
	assert.True(t, (&Announcement{PublishAt: now}).IsPublished(now))
	assert.True(t, (&Announcement{PublishAt: now.Add(-time.Hour)}).IsPublished(now))
	assert.False(t, (&Announcement{PublishAt: now.Add(time.Second)}).IsPublished(now))
}

func TestParseReadState(t *testing.T) {
	assert.Equal(t, ReadStateRead, ParseReadState("READ"))
	assert.Equal(t, ReadStateUnread, ParseReadState("unread"))
	assert.Equal(t, ReadStateAll, ParseReadState(""))
	assert.Equal(t, ReadStateAll, ParseReadState("whatever"))
}

func TestPaginationTotalPages(t *testing.T) {
	assert.Equal(t, 1, Pagination{PageSize: 10}.TotalPages())
	assert.Equal(t, 3, Pagination{PageSize: 10, TotalCount: 21}.TotalPages())
}
