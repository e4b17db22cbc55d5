package chat

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"tripmate/server/internal/blobstore"
	"tripmate/server/internal/docstore"
	"tripmate/server/internal/identity"
	"tripmate/server/internal/metrics"
	"tripmate/server/internal/models"
	"tripmate/server/internal/push"
)

// Progress is the coarse state of an image send
type Progress int

const (
	ProgressValidated Progress = iota + 1
	ProgressUploaded
	ProgressPersisted
)

// Image is an attachment waiting to be uploaded
type Image struct {
	Name        string
	Size        int64
	ContentType string
	Body        io.Reader
}

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9._-]`)

// SanitizeName replaces every character outside [A-Za-z0-9._-] with an underscore.
func SanitizeName(s string) string {
	return unsafeName.ReplaceAllString(s, "_")
}

// ImagePath is the blob path of an image sent by author at t.
func ImagePath(groupID, author, filename string, t time.Time) string {
	return fmt.Sprintf("groups/%s/chat-images/%d_%s_%s", groupID, t.UnixMilli(), SanitizeName(author), SanitizeName(filename))
}

// Actions performs the writes of a group chat.
type Actions struct {
	store   docstore.Store
	blobs   blobstore.Store
	push    push.Gateway
	groupID string
	now     func() time.Time
}

func NewActions(store docstore.Store, blobs blobstore.Store, gateway push.Gateway, groupID string) *Actions {
	return &Actions{store: store, blobs: blobs, push: gateway, groupID: groupID, now: time.Now}
}

func (a *Actions) messages() string {
	return models.GroupCollection(a.groupID, models.MessagesCollection)
}

// SendMessage persists a text message; the author counts as a reader.
func (a *Actions) SendMessage(ctx context.Context, content string, author identity.Identity) (string, error) {
	if !author.Valid() {
		return "", ErrNoAuthor
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return "", ErrEmptyMessage
	}
	id, err := a.persist(ctx, models.Message{
		GroupID: a.groupID,
		Content: content,
		Type:    models.KindText,
		Author:  author.Name,
		ReadBy:  []string{author.Name},
	})
	if err != nil {
		return "", err
	}
	a.notify(ctx, author.Name, content)
	return id, nil
}

// SendImageMessage validates, uploads and persists an image message.
// Validation happens before any remote call.
func (a *Actions) SendImageMessage(ctx context.Context, img Image, author identity.Identity, progress func(Progress)) (string, error) {
	if progress == nil {
		progress = func(Progress) {}
	}
	if !author.Valid() {
		return "", ErrNoAuthor
	}
	if img.Size > MaxImageSize {
		return "", ErrImageTooLarge
	}
	if !strings.HasPrefix(strings.ToLower(img.ContentType), "image/") {
		return "", ErrNotImage
	}
	progress(ProgressValidated)

	path := ImagePath(a.groupID, author.Name, img.Name, a.now())
	handle, err := a.blobs.Upload(ctx, path, img.ContentType, img.Body, img.Size)
	if err != nil {
		return "", fmt.Errorf("upload image: %w", err)
	}
	url, err := a.blobs.URL(ctx, handle)
	if err != nil {
		a.discard(handle)
		return "", fmt.Errorf("upload image: %w", err)
	}
	progress(ProgressUploaded)

	id, err := a.persist(ctx, models.Message{
		GroupID:  a.groupID,
		Type:     models.KindImage,
		Author:   author.Name,
		ImageURL: url,
		ImageMetadata: &models.ImageMetadata{
			Name: img.Name,
			Size: img.Size,
			Type: img.ContentType,
		},
		ReadBy: []string{author.Name},
	})
	if err != nil {
		a.discard(handle)
		return "", err
	}
	progress(ProgressPersisted)
	a.notify(ctx, author.Name, "sent a photo")
	return id, nil
}

// EditMessage replaces the content of a text message.
func (a *Actions) EditMessage(ctx context.Context, id, content string) error {
	content = strings.TrimSpace(content)
	if content == "" {
		return ErrEmptyMessage
	}
	path := docstore.Join(a.messages(), id)
	doc, err := a.store.Get(ctx, path)
	if err != nil {
		return err
	}
	var m models.Message
	if err := docstore.Decode(doc, &m); err != nil {
		return err
	}
	if m.Type != models.KindText {
		return ErrNotEditable
	}
	return a.store.Update(ctx, path, map[string]any{
		"content":   content,
		"isEdited":  true,
		"updatedAt": a.now().UTC(),
	})
}

// DeleteMessage removes a message permanently.
func (a *Actions) DeleteMessage(ctx context.Context, id string) error {
	return a.store.Delete(ctx, docstore.Join(a.messages(), id))
}

func (a *Actions) persist(ctx context.Context, m models.Message) (string, error) {
	data, err := docstore.Encode(m)
	if err != nil {
		return "", err
	}
	id, err := a.store.Add(ctx, a.messages(), data)
	if err != nil {
		return "", fmt.Errorf("send message: %w", err)
	}
	metrics.MessagesSent.WithLabelValues(string(m.Type)).Inc()
	return id, nil
}

func (a *Actions) notify(ctx context.Context, author, body string) {
	a.push.Publish(ctx, push.Notification{
		GroupID:   a.groupID,
		Title:     author,
		Body:      body,
		Author:    author,
		Kind:      "message",
		CreatedAt: a.now(),
	})
}

// discard removes an upload whose message could not be stored.
func (a *Actions) discard(h blobstore.Handle) {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	if err := a.blobs.Delete(ctx, h); err != nil {
		slog.Warn("orphaned chat image", "path", h.Path, "error", err)
	}
}
