package service

import (
	"context"
	"fmt"
	"strings"

	"tripmate/server/internal/docstore"
	"tripmate/server/internal/identity"
	"tripmate/server/internal/models"
)

// MenuService manages restaurant pre-selection lists.
type MenuService struct {
	store docstore.Store
}

func NewMenuService(store docstore.Store) *MenuService {
	return &MenuService{store: store}
}

func menusOf(groupID string) string {
	return models.GroupCollection(groupID, models.MenusCollection)
}

func (s *MenuService) Add(ctx context.Context, groupID string, in models.MenuInput, actor identity.Identity) (models.Menu, error) {
	restaurant := strings.TrimSpace(in.Restaurant)
	if restaurant == "" {
		return models.Menu{}, invalid("restaurant", "Restaurant is required")
	}

	items := make([]models.MenuItem, 0, len(in.Items))
	seen := make(map[string]bool, len(in.Items))
	for _, it := range in.Items {
		name := strings.TrimSpace(it.Name)
		if name == "" {
			continue
		}
		if seen[name] {
			return models.Menu{}, invalid("items", fmt.Sprintf("Duplicate item %q", name))
		}
		if it.Price < 0 {
			return models.Menu{}, invalid("items", "Price cannot be negative")
		}
		seen[name] = true
		items = append(items, models.MenuItem{Name: name, Price: it.Price, SelectedBy: []string{}})
	}
	if len(items) == 0 {
		return models.Menu{}, invalid("items", "At least one item is required")
	}

	m := models.Menu{
		ScheduleID: strings.TrimSpace(in.ScheduleID),
		Restaurant: restaurant,
		Items:      items,
		CreatedBy:  actor.Name,
	}
	data, err := docstore.Encode(m)
	if err != nil {
		return models.Menu{}, err
	}
	id, err := s.store.Add(ctx, menusOf(groupID), data)
	if err != nil {
		return models.Menu{}, fmt.Errorf("add menu: %w", err)
	}
	return getAs[models.Menu](ctx, s.store, docstore.Join(menusOf(groupID), id))
}

// ToggleSelection adds the user to the item's selections, or removes them if already there.
func (s *MenuService) ToggleSelection(ctx context.Context, groupID, menuID, item string, actor identity.Identity) (models.Menu, error) {
	if !actor.Valid() {
		return models.Menu{}, invalid("actor", "Set a display name first")
	}
	path := docstore.Join(menusOf(groupID), menuID)
	err := mutate(ctx, s.store, path, func(doc *docstore.Document) (map[string]any, error) {
		var m models.Menu
		if err := docstore.Decode(doc, &m); err != nil {
			return nil, err
		}
		items, err := ToggleItem(m.Items, item, actor.Name)
		if err != nil {
			return nil, err
		}
		return map[string]any{"items": items}, nil
	})
	if err != nil {
		return models.Menu{}, err
	}
	return getAs[models.Menu](ctx, s.store, path)
}

// ToggleItem returns a copy of items with user toggled on the named item.
func ToggleItem(items []models.MenuItem, item, user string) ([]models.MenuItem, error) {
	out := make([]models.MenuItem, len(items))
	found := false
	for i, it := range items {
		out[i] = it
		if it.Name != item {
			continue
		}
		found = true
		if contains(it.SelectedBy, user) {
			out[i].SelectedBy = without(it.SelectedBy, user)
		} else {
			out[i].SelectedBy = append(append([]string{}, it.SelectedBy...), user)
		}
	}
	if !found {
		return nil, ErrUnknownMenuItem
	}
	return out, nil
}

func (s *MenuService) Delete(ctx context.Context, groupID, id string) error {
	return s.store.Delete(ctx, docstore.Join(menusOf(groupID), id))
}

// List returns the group's menus, restricted to one schedule entry when scheduleID is set.
func (s *MenuService) List(ctx context.Context, groupID, scheduleID string) ([]models.Menu, error) {
	return listAs[models.Menu](ctx, s.store, menuQuery(groupID, scheduleID), nil)
}

func (s *MenuService) Subscribe(ctx context.Context, groupID, scheduleID string, fn func([]models.Menu)) (docstore.Unsubscribe, error) {
	return subscribeAs[models.Menu](ctx, s.store, menuQuery(groupID, scheduleID), nil, fn)
}

func menuQuery(groupID, scheduleID string) docstore.Query {
	q := docstore.Query{Collection: menusOf(groupID)}
	if scheduleID != "" {
		q.Filters = []docstore.Filter{{Field: "scheduleId", Value: scheduleID}}
	}
	return q
}
