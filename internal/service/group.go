package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"tripmate/server/internal/docstore"
	"tripmate/server/internal/identity"
	"tripmate/server/internal/models"
)

// GroupService manages trip groups and membership.
type GroupService struct {
	store docstore.Store
}

func NewGroupService(store docstore.Store) *GroupService {
	return &GroupService{store: store}
}

// Create stores a new group with the actor as creator and only member.
// The returned identity has joined the group.
func (s *GroupService) Create(ctx context.Context, in models.GroupInput, actor identity.Identity) (models.Group, identity.Identity, error) {
	if !actor.Valid() {
		return models.Group{}, actor, invalid("actor", "Set a display name first")
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return models.Group{}, actor, invalid("name", "Group name is required")
	}
	start, err := time.Parse(models.DateLayout, in.StartDate)
	if err != nil {
		return models.Group{}, actor, invalid("startDate", "Start date must be YYYY-MM-DD")
	}
	end, err := time.Parse(models.DateLayout, in.EndDate)
	if err != nil {
		return models.Group{}, actor, invalid("endDate", "End date must be YYYY-MM-DD")
	}
	if end.Before(start) {
		return models.Group{}, actor, invalid("endDate", "End date cannot be before start date")
	}

	group := models.Group{
		ID:          uuid.NewString(),
		Name:        name,
		Description: strings.TrimSpace(in.Description),
		StartDate:   in.StartDate,
		EndDate:     in.EndDate,
		Members:     []string{actor.Name},
		CreatedBy:   actor.Name,
	}
	data, err := docstore.Encode(group)
	if err != nil {
		return models.Group{}, actor, err
	}
	if err := s.store.Set(ctx, models.GroupPath(group.ID), data); err != nil {
		return models.Group{}, actor, fmt.Errorf("create group: %w", err)
	}

	created, err := s.Get(ctx, group.ID)
	if err != nil {
		return models.Group{}, actor, err
	}
	slog.Info("group created", "group_id", group.ID, "creator", actor.Name)
	return created, actor.AddGroup(group.ID), nil
}

// Get returns one group
func (s *GroupService) Get(ctx context.Context, groupID string) (models.Group, error) {
	return getAs[models.Group](ctx, s.store, models.GroupPath(groupID))
}

// Subscribe streams the group document; nil means it does not exist.
func (s *GroupService) Subscribe(ctx context.Context, groupID string, fn func(*models.Group)) (docstore.Unsubscribe, error) {
	return s.store.SubscribeDocument(ctx, models.GroupPath(groupID), func(doc *docstore.Document) {
		if doc == nil {
			fn(nil)
			return
		}
		var g models.Group
		if err := docstore.Decode(doc, &g); err != nil {
			slog.Warn("skipping undecodable group", "group_id", groupID, "error", err)
			return
		}
		fn(&g)
	})
}

// ListForIdentity returns the groups the identity has joined, skipping ones that no longer exist.
func (s *GroupService) ListForIdentity(ctx context.Context, id identity.Identity) ([]models.Group, error) {
	groups := make([]models.Group, 0, len(id.GroupIDs))
	for _, gid := range id.GroupIDs {
		g, err := s.Get(ctx, gid)
		if errors.Is(err, docstore.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		groups = append(groups, g)
	}
	return groups, nil
}

// Join adds the actor to the group's members and posts a join notice.
// The member update and the notice are independent writes.
func (s *GroupService) Join(ctx context.Context, groupID string, actor identity.Identity) (models.Group, identity.Identity, error) {
	if !actor.Valid() {
		return models.Group{}, actor, invalid("actor", "Set a display name first")
	}
	group, err := s.Get(ctx, groupID)
	if err != nil {
		return models.Group{}, actor, err
	}
	joined := actor.AddGroup(groupID)
	if group.HasMember(actor.Name) {
		return group, joined, nil
	}

	if err := s.store.Update(ctx, models.GroupPath(groupID), map[string]any{
		"members": docstore.ArrayUnion(actor.Name),
	}); err != nil {
		return models.Group{}, actor, fmt.Errorf("join group: %w", err)
	}

	notice, err := docstore.Encode(models.Message{
		GroupID: groupID,
		Content: fmt.Sprintf("%s joined the group", actor.Name),
		Type:    models.KindSystem,
		Author:  models.SystemAuthor,
		ReadBy:  []string{},
	})
	if err == nil {
		_, err = s.store.Add(ctx, models.GroupCollection(groupID, models.MessagesCollection), notice)
	}
	if err != nil {
		slog.Warn("join notice not posted", "group_id", groupID, "member", actor.Name, "error", err)
	}

	group.Members = append(group.Members, actor.Name)
	slog.Info("group joined", "group_id", groupID, "member", actor.Name)
	return group, joined, nil
}
