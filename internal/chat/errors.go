package chat

import "tripmate/server/internal/service"

// MaxImageSize is the largest accepted image attachment
const MaxImageSize = 5 * 1024 * 1024 // 5MB

// Validation failures; all of them match service.ErrValidation.
var (
	ErrEmptyMessage  error = &service.ValidationError{Field: "content", Message: "Message cannot be empty"}
	ErrImageTooLarge error = &service.ValidationError{Field: "image", Message: "Image size exceeds limit of 5MB"}
	ErrNotImage      error = &service.ValidationError{Field: "image", Message: "Only image files can be attached"}
	ErrNotEditable   error = &service.ValidationError{Field: "type", Message: "Only text messages can be edited"}
	ErrNoAuthor      error = &service.ValidationError{Field: "author", Message: "Set a display name first"}
)
