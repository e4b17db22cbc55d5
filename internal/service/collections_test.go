package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tripmate/server/internal/docstore"
	"tripmate/server/internal/identity"
	"tripmate/server/internal/models"
	"tripmate/server/internal/push"
)

func ptr[T any](v T) *T { return &v }

func TestSortAnnouncements(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	items := []models.Announcement{
		{ID: "old-pinned", IsPinned: true, CreatedAt: base},
		{ID: "new", CreatedAt: base.Add(3 * time.Hour)},
		{ID: "newer-pinned", IsPinned: true, CreatedAt: base.Add(time.Hour)},
		{ID: "newest", CreatedAt: base.Add(4 * time.Hour)},
	}
	SortAnnouncements(items)

	ids := make([]string, len(items))
	for i, a := range items {
		ids[i] = a.ID
	}
	assert.Equal(t, []string{"newer-pinned", "old-pinned", "newest", "new"}, ids)
}

type recordingPush struct {
	push.Noop
	mu   sync.Mutex
	sent []push.Notification
}

func (p *recordingPush) Publish(_ context.Context, n push.Notification) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sent = append(p.sent, n)
}

func TestAnnouncementLifecycle(t *testing.T) {
	store := docstore.NewMemoryStore()
	defer store.Close()
	gateway := &recordingPush{}
	svc := NewAnnouncementService(store, gateway)
	ctx := context.Background()
	ana := identity.Identity{Name: "Ana"}

	_, err := svc.Add(ctx, "g1", models.AnnouncementInput{Title: "", Content: "x"}, ana)
	assert.ErrorIs(t, err, ErrValidation)

	first, err := svc.Add(ctx, "g1", models.AnnouncementInput{Title: "Bus", Content: "8am"}, ana)
	require.NoError(t, err)
	_, err = svc.Add(ctx, "g1", models.AnnouncementInput{Title: "Dinner", Content: "7pm"}, ana)
	require.NoError(t, err)

	require.NoError(t, svc.SetPinned(ctx, "g1", first.ID, true))
	list, err := svc.List(ctx, "g1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Bus", list[0].Title)
	assert.True(t, list[0].IsPinned)
	assert.Equal(t, "Dinner", list[1].Title)

	require.Len(t, gateway.sent, 2)
	assert.Equal(t, "g1", gateway.sent[0].GroupID)
	assert.Equal(t, "Ana", gateway.sent[0].Author)

	require.NoError(t, svc.Delete(ctx, "g1", first.ID))
	list, err = svc.List(ctx, "g1")
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestScheduleOrderingAndUpdate(t *testing.T) {
	store := docstore.NewMemoryStore()
	defer store.Close()
	svc := NewScheduleService(store)
	ctx := context.Background()
	ana := identity.Identity{Name: "Ana"}

	add := func(title, date, at string) models.Schedule {
		s, err := svc.Add(ctx, "g1", models.ScheduleInput{Title: ptr(title), Date: ptr(date), Time: ptr(at)}, ana)
		require.NoError(t, err)
		return s
	}
	add("dinner", "2026-07-01", "19:00")
	breakfast := add("breakfast", "2026-07-02", "08:00")
	add("flight", "2026-07-01", "06:30")

	list, err := svc.List(ctx, "g1")
	require.NoError(t, err)
	titles := []string{list[0].Title, list[1].Title, list[2].Title}
	assert.Equal(t, []string{"flight", "dinner", "breakfast"}, titles)
	assert.Equal(t, models.ScheduleActivity, breakfast.Type)

	updated, err := svc.Update(ctx, "g1", breakfast.ID, models.ScheduleInput{Type: ptr(models.ScheduleMeal), Date: ptr("2026-06-30")})
	require.NoError(t, err)
	assert.Equal(t, models.ScheduleMeal, updated.Type)
	assert.Equal(t, "breakfast", updated.Title)

	list, err = svc.List(ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, "breakfast", list[0].Title)

	_, err = svc.Update(ctx, "g1", breakfast.ID, models.ScheduleInput{Time: ptr("25:99")})
	assert.ErrorIs(t, err, ErrValidation)
	_, err = svc.Update(ctx, "g1", "missing", models.ScheduleInput{Title: ptr("x")})
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = svc.Add(ctx, "g1", models.ScheduleInput{Title: ptr("x"), Date: ptr("2026-07-01"), Time: ptr("10:00"), Type: ptr(models.ScheduleType("party"))}, ana)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestMenuToggleAndFilter(t *testing.T) {
	store := docstore.NewMemoryStore()
	defer store.Close()
	svc := NewMenuService(store)
	ctx := context.Background()
	ana := identity.Identity{Name: "Ana"}

	_, err := svc.Add(ctx, "g1", models.MenuInput{Restaurant: "Warung", Items: []models.MenuItemInput{{Name: " "}}}, ana)
	assert.ErrorIs(t, err, ErrValidation)

	m, err := svc.Add(ctx, "g1", models.MenuInput{ScheduleID: "s1", Restaurant: "Warung", Items: []models.MenuItemInput{{Name: "Nasi", Price: 3}, {Name: "Sate", Price: 4}}}, ana)
	require.NoError(t, err)
	_, err = svc.Add(ctx, "g1", models.MenuInput{Restaurant: "Cafe", Items: []models.MenuItemInput{{Name: "Kopi"}}}, ana)
	require.NoError(t, err)

	m, err = svc.ToggleSelection(ctx, "g1", m.ID, "Nasi", ana)
	require.NoError(t, err)
	m, err = svc.ToggleSelection(ctx, "g1", m.ID, "Sate", identity.Identity{Name: "Budi"})
	require.NoError(t, err)
	assert.Equal(t, 2, m.SelectionCount())

	m, err = svc.ToggleSelection(ctx, "g1", m.ID, "Nasi", ana)
	require.NoError(t, err)
	assert.Empty(t, m.Items[0].SelectedBy)
	assert.Equal(t, 1, m.SelectionCount())

	_, err = svc.ToggleSelection(ctx, "g1", m.ID, "Pizza", ana)
	assert.ErrorIs(t, err, ErrUnknownMenuItem)

	all, err := svc.List(ctx, "g1", "")
	require.NoError(t, err)
	assert.Len(t, all, 2)
	forSchedule, err := svc.List(ctx, "g1", "s1")
	require.NoError(t, err)
	require.Len(t, forSchedule, 1)
	assert.Equal(t, "Warung", forSchedule[0].Restaurant)
}

func TestScheduleDeleteKeepsMenus(t *testing.T) {
	store := docstore.NewMemoryStore()
	defer store.Close()
	schedules := NewScheduleService(store)
	menus := NewMenuService(store)
	ctx := context.Background()
	ana := identity.Identity{Name: "Ana"}

	s, err := schedules.Add(ctx, "g1", models.ScheduleInput{Title: ptr("lunch"), Date: ptr("2026-07-01"), Time: ptr("12:00")}, ana)
	require.NoError(t, err)
	_, err = menus.Add(ctx, "g1", models.MenuInput{ScheduleID: s.ID, Restaurant: "Warung", Items: []models.MenuItemInput{{Name: "Nasi"}}}, ana)
	require.NoError(t, err)

	require.NoError(t, schedules.Delete(ctx, "g1", s.ID))
	left, err := menus.List(ctx, "g1", s.ID)
	require.NoError(t, err)
	assert.Len(t, left, 1)
}

func TestSubscribeDeliversSortedSnapshots(t *testing.T) {
	store := docstore.NewMemoryStore()
	defer store.Close()
	svc := NewAnnouncementService(store, push.Noop{})
	ctx := context.Background()
	ana := identity.Identity{Name: "Ana"}

	var (
		mu   sync.Mutex
		last []models.Announcement
	)
	unsub, err := svc.Subscribe(ctx, "g1", func(items []models.Announcement) {
		mu.Lock()
		last = items
		mu.Unlock()
	})
	require.NoError(t, err)
	defer unsub()

	a, err := svc.Add(ctx, "g1", models.AnnouncementInput{Title: "a", Content: "a", IsPinned: true}, ana)
	require.NoError(t, err)
	_, err = svc.Add(ctx, "g1", models.AnnouncementInput{Title: "b", Content: "b"}, ana)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(last) == 2 && last[0].ID == a.ID
	}, time.Second, 5*time.Millisecond)
}
