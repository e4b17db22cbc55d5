package models

import "time"

// ScheduleType categorizes an itinerary entry
type ScheduleType string

const (
	ScheduleMeal          ScheduleType = "meal"
	ScheduleActivity      ScheduleType = "activity"
	ScheduleTransport     ScheduleType = "transport"
	ScheduleAccommodation ScheduleType = "accommodation"
)

// Valid reports whether t is a known schedule type
func (t ScheduleType) Valid() bool {
	switch t {
	case ScheduleMeal, ScheduleActivity, ScheduleTransport, ScheduleAccommodation:
		return true
	}
	return false
}

// Schedule is one itinerary entry. Time is "HH:mm"; NotificationTime is minutes before start.
type Schedule struct {
	ID               string       `json:"id"`
	Title            string       `json:"title"`
	Description      string       `json:"description"`
	Date             string       `json:"date"`
	Time             string       `json:"time"`
	Location         string       `json:"location"`
	Type             ScheduleType `json:"type"`
	NotificationTime int          `json:"notificationTime"`
	CreatedBy        string       `json:"createdBy"`
	CreatedAt        time.Time    `json:"createdAt"`
}

// ScheduleInput is the request body for creating or updating a schedule
type ScheduleInput struct {
	Title            *string       `json:"title"`
	Description      *string       `json:"description"`
	Date             *string       `json:"date"`
	Time             *string       `json:"time"`
	Location         *string       `json:"location"`
	Type             *ScheduleType `json:"type"`
	NotificationTime *int          `json:"notificationTime"`
}
