package models

import "time"

// Menu is a restaurant pre-selection list, optionally tied to a schedule entry
type Menu struct {
	ID         string     `json:"id"`
	ScheduleID string     `json:"scheduleId"`
	Restaurant string     `json:"restaurant"`
	Items      []MenuItem `json:"items"`
	CreatedBy  string     `json:"createdBy"`
	CreatedAt  time.Time  `json:"createdAt"`
}

// MenuItem tracks who pre-selected a dish
type MenuItem struct {
	Name       string   `json:"name"`
	Price      float64  `json:"price"`
	SelectedBy []string `json:"selectedBy"`
}

// SelectionCount is the total number of selections across all items
func (m *Menu) SelectionCount() int {
	n := 0
	for _, item := range m.Items {
		n += len(item.SelectedBy)
	}
	return n
}

// MenuInput is the request body for creating a menu
type MenuInput struct {
	ScheduleID string `json:"scheduleId"`
	Restaurant string `json:"restaurant"`
	Items      []MenuItemInput `json:"items"`
}

// MenuItemInput is one dish in a MenuInput
type MenuItemInput struct {
	Name  string  `json:"name"`
	Price float64 `json:"price"`
}
