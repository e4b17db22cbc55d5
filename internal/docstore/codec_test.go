package docstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type note struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	Tags      []string  `json:"tags"`
	CreatedAt time.Time `json:"createdAt"`
}

func TestEncodeStripsReservedFields(t *testing.T) {
	data, err := Encode(note{ID: "x", Text: "hello", Tags: []string{"a"}})
	require.NoError(t, err)
	assert.NotContains(t, data, "id")
	assert.NotContains(t, data, "createdAt")
	assert.Equal(t, "hello", data["text"])
}

func TestEncodeRejectsNonObject(t *testing.T) {
	_, err := Encode([]string{"a"})
	assert.Error(t, err)
}

func TestDecodeInjectsStoreFields(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	defer s.Close()

	data, err := Encode(note{Text: "hello"})
	require.NoError(t, err)
	id, err := s.Add(ctx, "notes", data)
	require.NoError(t, err)

	docs, err := s.Query(ctx, Query{Collection: "notes"})
	require.NoError(t, err)
	notes, err := DecodeAll[note](docs)
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, id, notes[0].ID)
	assert.Equal(t, "hello", notes[0].Text)
	assert.True(t, notes[0].CreatedAt.Equal(docs[0].CreateTime))
}
