package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/noticeboard/internal/dto"
	"github.com/noah-isme/noticeboard/internal/models"
	appErrors "github.com/noah-isme/noticeboard/pkg/errors"
)

var allAnnouncementCaps = []models.Capability{
	{Action: models.ActionView, Resource: models.ResourceAnnouncement},
	{Action: models.ActionCreate, Resource: models.ResourceAnnouncement},
	{Action: models.ActionEdit, Resource: models.ResourceAnnouncement},
	{Action: models.ActionDelete, Resource: models.ResourceAnnouncement},
}

type announcementFixture struct {
	store   *memoryStore
	svc     *AnnouncementService
	reads   *ReadStatusService
	now     time.Time
	author  models.Principal
	staffID string
	inStaff models.Principal
	outside models.Principal
}

func newAnnouncementFixture(t *testing.T) *announcementFixture {
	t.Helper()
	store := newMemoryStore()
	now := time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)

	staff := store.addGroup("Staff")
	author := store.addUser("author")
	store.grant(author.UserID, allAnnouncementCaps...)

	caps := NewCapabilityService(store, nil, 0, nil)
	svc := NewAnnouncementService(store, AnnouncementTargets{
		Memberships: store,
		Users:       userCounter{store},
		Groups:      groupCounter{store},
		Categories:  categoryStore{store},
	}, readStore{store}, caps, nil, nil, nil)
	svc.now = func() time.Time { return now }
	reads := NewReadStatusService(readStore{store}, svc, nil, nil)
	reads.now = svc.now

	return &announcementFixture{
		store:   store,
		svc:     svc,
		reads:   reads,
		now:     now,
		author:  author,
		staffID: staff,
		inStaff: store.addUser("u", staff),
		outside: store.addUser("v"),
	}
}

func (f *announcementFixture) create(t *testing.T, req dto.AnnouncementRequest) *models.Announcement {
	t.Helper()
	if req.Content == "" {
		req.Content = "body"
	}
	if req.PublishAt == nil {
		published := f.now.Add(-time.Hour)
		req.PublishAt = &published
	}
	a, err := f.svc.Create(context.Background(), f.author, req)
	require.NoError(t, err)
	return a
}

func titles(items []models.Announcement) []string {
	out := make([]string, 0, len(items))
	for _, a := range items {
		out = append(out, a.Title)
	}
	return out
}

func assertAppError(t *testing.T, err error, template *appErrors.Error) {
	t.Helper()
	require.Error(t, err)
	assert.True(t, errors.Is(err, template), "expected %s, got %v", template.Code, err)
}

func TestUntargetedAnnouncementVisibleToEveryone(t *testing.T) {
	f := newAnnouncementFixture(t)
	f.create(t, dto.AnnouncementRequest{Title: "Everyone"})

	for _, p := range []models.Principal{f.inStaff, f.outside, f.author} {
		items, pagination, err := f.svc.List(context.Background(), p, dto.AnnouncementQuery{})
		require.NoError(t, err)
		assert.Equal(t, []string{"Everyone"}, titles(items))
		assert.Equal(t, 1, pagination.TotalCount)
	}
}

func TestGroupTargetedScenario(t *testing.T) {
	f := newAnnouncementFixture(t)
	yesterday := f.now.Add(-24 * time.Hour)
	f.create(t, dto.AnnouncementRequest{Title: "Staff only", PublishAt: &yesterday, TargetGroupIDs: []string{f.staffID}})

	items, _, err := f.svc.List(context.Background(), f.inStaff, dto.AnnouncementQuery{})
	require.NoError(t, err)
	assert.Equal(t, []string{"Staff only"}, titles(items))

	items, _, err = f.svc.List(context.Background(), f.outside, dto.AnnouncementQuery{})
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestUserTargetingOrGroupTargeting(t *testing.T) {
	f := newAnnouncementFixture(t)
	f.create(t, dto.AnnouncementRequest{Title: "Direct", TargetUserIDs: []string{f.outside.UserID}})
	f.create(t, dto.AnnouncementRequest{Title: "Mixed", TargetUserIDs: []string{f.outside.UserID}, TargetGroupIDs: []string{f.staffID}})

	items, _, err := f.svc.List(context.Background(), f.outside, dto.AnnouncementQuery{})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"Direct", "Mixed"}, titles(items))

	items, _, err = f.svc.List(context.Background(), f.inStaff, dto.AnnouncementQuery{})
	require.NoError(t, err)
	assert.Equal(t, []string{"Mixed"}, titles(items))

	items, _, err = f.svc.List(context.Background(), f.author, dto.AnnouncementQuery{})
	require.NoError(t, err)
	assert.Empty(t, items, "authors are not implicit recipients")
}

func TestFutureAnnouncementsHiddenFromRecipients(t *testing.T) {
	f := newAnnouncementFixture(t)
	tomorrow := f.now.Add(24 * time.Hour)
	future := f.create(t, dto.AnnouncementRequest{Title: "Later", PublishAt: &tomorrow})

	for _, p := range []models.Principal{f.inStaff, f.author} {
		items, _, err := f.svc.List(context.Background(), p, dto.AnnouncementQuery{})
		require.NoError(t, err)
		assert.Empty(t, items)
	}

	_, err := f.svc.Get(context.Background(), f.inStaff, future.ID)
	assertAppError(t, err, appErrors.ErrNotVisible)
	read, err := f.reads.IsRead(context.Background(), f.inStaff, future.ID)
	require.NoError(t, err)
	assert.False(t, read, "hidden content must never be marked read")
}

func TestOrderingByEmergencyLevel(t *testing.T) {
	f := newAnnouncementFixture(t)
	same := f.now.Add(-time.Hour)
	f.create(t, dto.AnnouncementRequest{Title: "low", EmergencyLevel: "low", PublishAt: &same})
	f.create(t, dto.AnnouncementRequest{Title: "urgent", EmergencyLevel: "urgent", PublishAt: &same})
	f.create(t, dto.AnnouncementRequest{Title: "medium", EmergencyLevel: "medium", PublishAt: &same})

	items, _, err := f.svc.List(context.Background(), f.inStaff, dto.AnnouncementQuery{})
	require.NoError(t, err)
	assert.Equal(t, []string{"urgent", "medium", "low"}, titles(items))
}

func TestOrderingFallsBackToPublishTime(t *testing.T) {
	f := newAnnouncementFixture(t)
	older := f.now.Add(-2 * time.Hour)
	newer := f.now.Add(-time.Hour)
	f.create(t, dto.AnnouncementRequest{Title: "older", PublishAt: &older})
	f.create(t, dto.AnnouncementRequest{Title: "newer", PublishAt: &newer})

	items, _, err := f.svc.List(context.Background(), f.inStaff, dto.AnnouncementQuery{})
	require.NoError(t, err)
	assert.Equal(t, []string{"newer", "older"}, titles(items))
}

func TestRaisingEmergencyLevelReordersList(t *testing.T) {
	f := newAnnouncementFixture(t)
	same := f.now.Add(-time.Hour)
	low := f.create(t, dto.AnnouncementRequest{Title: "was low", EmergencyLevel: "low", PublishAt: &same})
	f.create(t, dto.AnnouncementRequest{Title: "high", EmergencyLevel: "high", PublishAt: &same})
	assert.Equal(t, 1, low.EmergencyOrdinal)

	urgent := "urgent"
	updated, err := f.svc.Patch(context.Background(), f.author, low.ID, dto.AnnouncementPatch{EmergencyLevel: &urgent})
	require.NoError(t, err)
	assert.Equal(t, models.EmergencyUrgent, updated.EmergencyLevel)
	assert.Equal(t, 4, updated.EmergencyOrdinal)

	items, _, err := f.svc.List(context.Background(), f.inStaff, dto.AnnouncementQuery{})
	require.NoError(t, err)
	assert.Equal(t, []string{"was low", "high"}, titles(items))
}

func TestSearchIsCaseInsensitiveAndIntersectsVisibility(t *testing.T) {
	f := newAnnouncementFixture(t)
	f.create(t, dto.AnnouncementRequest{Title: "Urgent Maintenance tonight"})
	f.create(t, dto.AnnouncementRequest{Title: "Lunch", Content: "after the URGENT MAINTENANCE window"})
	f.create(t, dto.AnnouncementRequest{Title: "Staff urgent maintenance", TargetGroupIDs: []string{f.staffID}})
	f.create(t, dto.AnnouncementRequest{Title: "Unrelated"})

	items, _, err := f.svc.List(context.Background(), f.outside, dto.AnnouncementQuery{Search: "urgent maintenance"})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"Urgent Maintenance tonight", "Lunch"}, titles(items))
}

func TestReadFilterAppliesAfterVisibility(t *testing.T) {
	f := newAnnouncementFixture(t)
	seen := f.create(t, dto.AnnouncementRequest{Title: "seen"})
	f.create(t, dto.AnnouncementRequest{Title: "unseen"})
	f.create(t, dto.AnnouncementRequest{Title: "hidden", TargetGroupIDs: []string{f.staffID}})

	_, err := f.svc.Get(context.Background(), f.outside, seen.ID)
	require.NoError(t, err)

	items, _, err := f.svc.List(context.Background(), f.outside, dto.AnnouncementQuery{ReadState: "unread"})
	require.NoError(t, err)
	assert.Equal(t, []string{"unseen"}, titles(items))

	items, _, err = f.svc.List(context.Background(), f.outside, dto.AnnouncementQuery{ReadState: "read"})
	require.NoError(t, err)
	assert.Equal(t, []string{"seen"}, titles(items))
	assert.True(t, items[0].IsRead)
}

func TestGetMarksReadOnlyOnce(t *testing.T) {
	f := newAnnouncementFixture(t)
	a := f.create(t, dto.AnnouncementRequest{Title: "Read me"})

	got, err := f.svc.Get(context.Background(), f.inStaff, a.ID)
	require.NoError(t, err)
	assert.True(t, got.IsRead)
	first, _, err := f.reads.repo.ListForUser(context.Background(), models.ReadStatusFilter{UserID: f.inStaff.UserID})
	require.NoError(t, err)
	require.Len(t, first, 1)

	f.svc.now = func() time.Time { return f.now.Add(time.Hour) }
	f.reads.now = f.svc.now
	_, err = f.svc.Get(context.Background(), f.inStaff, a.ID)
	require.NoError(t, err)
	status, created, err := f.reads.MarkRead(context.Background(), f.inStaff, a.ID)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first[0].ReadAt, status.ReadAt)

	all, total, err := f.reads.repo.ListForUser(context.Background(), models.ReadStatusFilter{UserID: f.inStaff.UserID})
	require.NoError(t, err)
	assert.Len(t, all, 1)
	assert.Equal(t, 1, total)
}

func TestGetUnknownAndHidden(t *testing.T) {
	f := newAnnouncementFixture(t)
	hidden := f.create(t, dto.AnnouncementRequest{Title: "Staff", TargetGroupIDs: []string{f.staffID}})

	_, err := f.svc.Get(context.Background(), f.outside, uuid.NewString())
	assertAppError(t, err, appErrors.ErrNotFound)

	_, err = f.svc.Get(context.Background(), f.outside, "not-a-uuid")
	assertAppError(t, err, appErrors.ErrNotFound)

	_, err = f.svc.Get(context.Background(), f.outside, hidden.ID)
	assertAppError(t, err, appErrors.ErrNotVisible)
}

func TestCreateRequiresCapabilityAndSetsAuthor(t *testing.T) {
	f := newAnnouncementFixture(t)
	_, err := f.svc.Create(context.Background(), f.inStaff, dto.AnnouncementRequest{Title: "Nope", Content: "x"})
	assertAppError(t, err, appErrors.ErrForbidden)

	a, err := f.svc.Create(context.Background(), f.author, dto.AnnouncementRequest{Title: "Mine", Content: "x"})
	require.NoError(t, err)
	assert.Equal(t, f.author.UserID, a.AuthorID)
	assert.Equal(t, "author", a.AuthorUsername)
	assert.Equal(t, models.EmergencyLow, a.EmergencyLevel)
	assert.Equal(t, f.now, a.PublishAt, "publish_at defaults to creation time")
}

func TestSuperuserMayCreateWithoutGroups(t *testing.T) {
	f := newAnnouncementFixture(t)
	admin := f.store.addUser("admin")
	admin.IsSuperuser = true
	_, err := f.svc.Create(context.Background(), admin, dto.AnnouncementRequest{Title: "Admin", Content: "x"})
	require.NoError(t, err)
}

func TestCreateValidation(t *testing.T) {
	f := newAnnouncementFixture(t)
	cases := map[string]dto.AnnouncementRequest{
		"missing title":    {Content: "x"},
		"bad level":        {Title: "t", Content: "x", EmergencyLevel: "critical"},
		"unknown user":     {Title: "t", Content: "x", TargetUserIDs: []string{uuid.NewString()}},
		"unknown group":    {Title: "t", Content: "x", TargetGroupIDs: []string{uuid.NewString()}},
		"malformed id":     {Title: "t", Content: "x", TargetUserIDs: []string{"abc"}},
		"unknown category": {Title: "t", Content: "x", CategoryID: ptr(uuid.NewString())},
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := f.svc.Create(context.Background(), f.author, req)
			assertAppError(t, err, appErrors.ErrValidation)
		})
	}
}

func TestUpdateRequiresEditAndReplacesTargets(t *testing.T) {
	f := newAnnouncementFixture(t)
	a := f.create(t, dto.AnnouncementRequest{Title: "Before", TargetGroupIDs: []string{f.staffID}})

	_, err := f.svc.Update(context.Background(), f.inStaff, a.ID, dto.AnnouncementRequest{Title: "x", Content: "x"})
	assertAppError(t, err, appErrors.ErrForbidden)

	updated, err := f.svc.Update(context.Background(), f.author, a.ID, dto.AnnouncementRequest{Title: "After", Content: "new"})
	require.NoError(t, err)
	assert.Equal(t, "After", updated.Title)
	assert.Empty(t, updated.TargetGroups)
	assert.Equal(t, a.PublishAt, updated.PublishAt)

	items, _, err := f.svc.List(context.Background(), f.outside, dto.AnnouncementQuery{})
	require.NoError(t, err)
	assert.Equal(t, []string{"After"}, titles(items))
}

func TestPatchKeepsOmittedTargets(t *testing.T) {
	f := newAnnouncementFixture(t)
	a := f.create(t, dto.AnnouncementRequest{Title: "Staff", TargetGroupIDs: []string{f.staffID}})

	title := "Renamed"
	updated, err := f.svc.Patch(context.Background(), f.author, a.ID, dto.AnnouncementPatch{Title: &title})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", updated.Title)
	require.Len(t, updated.TargetGroups, 1)
	assert.Equal(t, f.staffID, updated.TargetGroups[0].ID)

	cleared := []string{}
	updated, err = f.svc.Patch(context.Background(), f.author, a.ID, dto.AnnouncementPatch{TargetGroupIDs: &cleared})
	require.NoError(t, err)
	assert.Empty(t, updated.TargetGroups)

	blank := "   "
	_, err = f.svc.Patch(context.Background(), f.author, a.ID, dto.AnnouncementPatch{Title: &blank})
	assertAppError(t, err, appErrors.ErrValidation)
}

func TestDeleteRequiresCapability(t *testing.T) {
	f := newAnnouncementFixture(t)
	a := f.create(t, dto.AnnouncementRequest{Title: "Doomed"})

	err := f.svc.Delete(context.Background(), f.inStaff, a.ID)
	assertAppError(t, err, appErrors.ErrForbidden)

	require.NoError(t, f.svc.Delete(context.Background(), f.author, a.ID))
	err = f.svc.Delete(context.Background(), f.author, a.ID)
	assertAppError(t, err, appErrors.ErrNotFound)
}

func TestGetForEditAndDeleteBypassVisibility(t *testing.T) {
	f := newAnnouncementFixture(t)
	tomorrow := f.now.Add(24 * time.Hour)
	a := f.create(t, dto.AnnouncementRequest{Title: "Draft", PublishAt: &tomorrow, TargetUserIDs: []string{f.inStaff.UserID}})

	got, err := f.svc.GetForEdit(context.Background(), f.author, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "Draft", got.Title)

	got, err = f.svc.GetForDelete(context.Background(), f.author, a.ID)
	require.NoError(t, err)
	assert.Equal(t, a.ID, got.ID)

	_, err = f.svc.GetForDelete(context.Background(), f.inStaff, a.ID)
	assertAppError(t, err, appErrors.ErrForbidden)
	_, err = f.svc.GetForEdit(context.Background(), f.author, "nope")
	assertAppError(t, err, appErrors.ErrNotFound)
}

func TestDeletingTargetGroupShrinksRelation(t *testing.T) {
	f := newAnnouncementFixture(t)
	a := f.create(t, dto.AnnouncementRequest{Title: "Staff", TargetGroupIDs: []string{f.staffID}})

	delete(f.store.groups, f.staffID)
	f.store.targetGroups[a.ID] = nil

	got, err := f.svc.Get(context.Background(), f.outside, a.ID)
	require.NoError(t, err, "an announcement whose targets were all deleted is addressed to everyone")
	assert.Empty(t, got.TargetGroups)
}

func TestManageScopes(t *testing.T) {
	f := newAnnouncementFixture(t)
	tomorrow := f.now.Add(24 * time.Hour)
	f.create(t, dto.AnnouncementRequest{Title: "Draft", PublishAt: &tomorrow, TargetUserIDs: []string{f.inStaff.UserID}})

	_, _, err := f.svc.Manage(context.Background(), f.inStaff, dto.AnnouncementQuery{Scope: "all"})
	assertAppError(t, err, appErrors.ErrForbidden)

	items, _, err := f.svc.Manage(context.Background(), f.inStaff, dto.AnnouncementQuery{Scope: "mine"})
	require.NoError(t, err)
	assert.Empty(t, items)

	items, _, err = f.svc.Manage(context.Background(), f.author, dto.AnnouncementQuery{Scope: "mine"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Draft"}, titles(items))

	editor := f.store.addUser("editor")
	f.store.grant(editor.UserID, models.Capability{Action: models.ActionEdit, Resource: models.ResourceAnnouncement})
	items, _, err = f.svc.Manage(context.Background(), editor, dto.AnnouncementQuery{Scope: "ALL"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Draft"}, titles(items))

	items, _, err = f.svc.List(context.Background(), editor, dto.AnnouncementQuery{})
	require.NoError(t, err)
	assert.Empty(t, items, "the recipient list never includes management results")
}

func TestPagination(t *testing.T) {
	f := newAnnouncementFixture(t)
	for i := 0; i < 7; i++ {
		f.create(t, dto.AnnouncementRequest{Title: uuid.NewString()})
	}
	items, pagination, err := f.svc.List(context.Background(), f.inStaff, dto.AnnouncementQuery{Page: 2, PageSize: 5})
	require.NoError(t, err)
	assert.Len(t, items, 2)
	assert.Equal(t, models.Pagination{Page: 2, PageSize: 5, TotalCount: 7}, pagination)
	assert.Equal(t, 2, pagination.TotalPages())
}

func ptr(s string) *string { return &s }
