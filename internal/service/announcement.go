package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"tripmate/server/internal/docstore"
	"tripmate/server/internal/identity"
	"tripmate/server/internal/models"
	"tripmate/server/internal/push"
)

// AnnouncementService manages a group's notice board.
type AnnouncementService struct {
	store docstore.Store
	push  push.Gateway
}

func NewAnnouncementService(store docstore.Store, gateway push.Gateway) *AnnouncementService {
	return &AnnouncementService{store: store, push: gateway}
}

func announcementsOf(groupID string) string {
	return models.GroupCollection(groupID, models.AnnouncementsCollection)
}

// SortAnnouncements puts pinned announcements first, newest first within each band.
func SortAnnouncements(items []models.Announcement) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if a.IsPinned != b.IsPinned {
			return a.IsPinned
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID > b.ID
	})
}

func (s *AnnouncementService) Add(ctx context.Context, groupID string, in models.AnnouncementInput, actor identity.Identity) (models.Announcement, error) {
	a := models.Announcement{
		Title:    strings.TrimSpace(in.Title),
		Content:  strings.TrimSpace(in.Content),
		Author:   actor.Name,
		IsPinned: in.IsPinned,
	}
	if a.Title == "" {
		return models.Announcement{}, invalid("title", "Title is required")
	}
	if a.Content == "" {
		return models.Announcement{}, invalid("content", "Content is required")
	}

	data, err := docstore.Encode(a)
	if err != nil {
		return models.Announcement{}, err
	}
	id, err := s.store.Add(ctx, announcementsOf(groupID), data)
	if err != nil {
		return models.Announcement{}, fmt.Errorf("add announcement: %w", err)
	}
	created, err := getAs[models.Announcement](ctx, s.store, docstore.Join(announcementsOf(groupID), id))
	if err != nil {
		return models.Announcement{}, err
	}

	s.push.Publish(ctx, push.Notification{
		GroupID:   groupID,
		Title:     created.Title,
		Body:      created.Content,
		Author:    created.Author,
		Kind:      "announcement",
		CreatedAt: time.Now(),
	})
	return created, nil
}

func (s *AnnouncementService) SetPinned(ctx context.Context, groupID, id string, pinned bool) error {
	return s.store.Update(ctx, docstore.Join(announcementsOf(groupID), id), map[string]any{"isPinned": pinned})
}

func (s *AnnouncementService) Delete(ctx context.Context, groupID, id string) error {
	return s.store.Delete(ctx, docstore.Join(announcementsOf(groupID), id))
}

func (s *AnnouncementService) List(ctx context.Context, groupID string) ([]models.Announcement, error) {
	return listAs(ctx, s.store, docstore.Query{Collection: announcementsOf(groupID)}, SortAnnouncements)
}

func (s *AnnouncementService) Subscribe(ctx context.Context, groupID string, fn func([]models.Announcement)) (docstore.Unsubscribe, error) {
	return subscribeAs(ctx, s.store, docstore.Query{Collection: announcementsOf(groupID)}, SortAnnouncements, fn)
}
