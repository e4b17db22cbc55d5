package models

import "time"

// MessageKind is the type of a chat message
type MessageKind string

const (
	KindText   MessageKind = "text"
	KindImage  MessageKind = "image"
	KindSystem MessageKind = "system"
)

// SystemAuthor is the author name of generated messages
const SystemAuthor = "system"

// Message represents a chat message
type Message struct {
	ID            string         `json:"id"`
	GroupID       string         `json:"groupId"`
	Content       string         `json:"content"`
	Type          MessageKind    `json:"type"`
	Author        string         `json:"author"`
	CreatedAt     time.Time      `json:"createdAt"`
	UpdatedAt     *time.Time     `json:"updatedAt,omitempty"`
	IsEdited      bool           `json:"isEdited"`
	ImageURL      string         `json:"imageUrl,omitempty"`
	ImageMetadata *ImageMetadata `json:"imageMetadata,omitempty"`
	ReadBy        []string       `json:"readBy"`
}

// ImageMetadata describes the original upload of an image message
type ImageMetadata struct {
	Name string `json:"name"`
	Size int64  `json:"size"`
	Type string `json:"type"`
}

// IsReadBy reports whether name is in the reader set
func (m *Message) IsReadBy(name string) bool {
	for _, r := range m.ReadBy {
		if r == name {
			return true
		}
	}
	return false
}

// TypingStatus is the ephemeral typing record of one user in a group
type TypingStatus struct {
	UserName   string    `json:"userName"`
	GroupID    string    `json:"groupId"`
	LastTyping time.Time `json:"lastTyping"`
}
