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
)

// ScheduleService manages a group's itinerary.
type ScheduleService struct {
	store docstore.Store
}

func NewScheduleService(store docstore.Store) *ScheduleService {
	return &ScheduleService{store: store}
}

func schedulesOf(groupID string) string {
	return models.GroupCollection(groupID, models.SchedulesCollection)
}

// SortSchedules orders entries chronologically by date, then time of day.
func SortSchedules(items []models.Schedule) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if a.Date != b.Date {
			return a.Date < b.Date
		}
		if a.Time != b.Time {
			return a.Time < b.Time
		}
		return a.CreatedAt.Before(b.CreatedAt)
	})
}

// Add creates a schedule entry. Type defaults to activity.
func (s *ScheduleService) Add(ctx context.Context, groupID string, in models.ScheduleInput, actor identity.Identity) (models.Schedule, error) {
	entry := models.Schedule{Type: models.ScheduleActivity, CreatedBy: actor.Name}
	if err := applySchedule(&entry, in); err != nil {
		return models.Schedule{}, err
	}
	if entry.Title == "" {
		return models.Schedule{}, invalid("title", "Title is required")
	}
	if entry.Date == "" {
		return models.Schedule{}, invalid("date", "Date is required")
	}
	if entry.Time == "" {
		return models.Schedule{}, invalid("time", "Time is required")
	}

	data, err := docstore.Encode(entry)
	if err != nil {
		return models.Schedule{}, err
	}
	id, err := s.store.Add(ctx, schedulesOf(groupID), data)
	if err != nil {
		return models.Schedule{}, fmt.Errorf("add schedule: %w", err)
	}
	return getAs[models.Schedule](ctx, s.store, docstore.Join(schedulesOf(groupID), id))
}

// Update applies the non-nil fields of in.
func (s *ScheduleService) Update(ctx context.Context, groupID, id string, in models.ScheduleInput) (models.Schedule, error) {
	path := docstore.Join(schedulesOf(groupID), id)
	current, err := getAs[models.Schedule](ctx, s.store, path)
	if err != nil {
		return models.Schedule{}, err
	}
	if err := applySchedule(&current, in); err != nil {
		return models.Schedule{}, err
	}
	if current.Title == "" {
		return models.Schedule{}, invalid("title", "Title is required")
	}

	fields := map[string]any{}
	if in.Title != nil {
		fields["title"] = current.Title
	}
	if in.Description != nil {
		fields["description"] = current.Description
	}
	if in.Date != nil {
		fields["date"] = current.Date
	}
	if in.Time != nil {
		fields["time"] = current.Time
	}
	if in.Location != nil {
		fields["location"] = current.Location
	}
	if in.Type != nil {
		fields["type"] = current.Type
	}
	if in.NotificationTime != nil {
		fields["notificationTime"] = current.NotificationTime
	}
	if len(fields) == 0 {
		return current, nil
	}
	if err := s.store.Update(ctx, path, fields); err != nil {
		return models.Schedule{}, fmt.Errorf("update schedule: %w", err)
	}
	return getAs[models.Schedule](ctx, s.store, path)
}

// Delete removes a schedule entry. Menus referencing it are left untouched.
func (s *ScheduleService) Delete(ctx context.Context, groupID, id string) error {
	return s.store.Delete(ctx, docstore.Join(schedulesOf(groupID), id))
}

func (s *ScheduleService) List(ctx context.Context, groupID string) ([]models.Schedule, error) {
	return listAs(ctx, s.store, docstore.Query{Collection: schedulesOf(groupID)}, SortSchedules)
}

func (s *ScheduleService) Subscribe(ctx context.Context, groupID string, fn func([]models.Schedule)) (docstore.Unsubscribe, error) {
	return subscribeAs(ctx, s.store, docstore.Query{Collection: schedulesOf(groupID)}, SortSchedules, fn)
}

func applySchedule(dst *models.Schedule, in models.ScheduleInput) error {
	if in.Title != nil {
		dst.Title = strings.TrimSpace(*in.Title)
	}
	if in.Description != nil {
		dst.Description = strings.TrimSpace(*in.Description)
	}
	if in.Location != nil {
		dst.Location = strings.TrimSpace(*in.Location)
	}
	if in.Date != nil {
		if _, err := time.Parse(models.DateLayout, *in.Date); err != nil {
			return invalid("date", "Date must be YYYY-MM-DD")
		}
		dst.Date = *in.Date
	}
	if in.Time != nil {
		if _, err := time.Parse("15:04", *in.Time); err != nil {
			return invalid("time", "Time must be HH:mm")
		}
		dst.Time = *in.Time
	}
	if in.Type != nil {
		if !in.Type.Valid() {
			return invalid("type", "Type must be meal, activity, transport or accommodation")
		}
		dst.Type = *in.Type
	}
	if in.NotificationTime != nil {
		if *in.NotificationTime < 0 {
			return invalid("notificationTime", "Notification time cannot be negative")
		}
		dst.NotificationTime = *in.NotificationTime
	}
	return nil
}
