package identity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddGroupIsIdempotent(t *testing.T) {
	id := Identity{Name: "Ana"}
	id = id.AddGroup("g1").AddGroup("g1").AddGroup("g2")
	assert.Equal(t, []string{"g1", "g2"}, id.GroupIDs)
	assert.True(t, id.HasGroup("g2"))
	assert.False(t, id.HasGroup("g3"))
}

func TestAddGroupDoesNotAliasOriginal(t *testing.T) {
	base := Identity{Name: "Ana", GroupIDs: make([]string, 1, 4)}
	base.GroupIDs[0] = "g1"
	a := base.AddGroup("g2")
	b := base.AddGroup("g3")
	assert.Equal(t, []string{"g1", "g2"}, a.GroupIDs)
	assert.Equal(t, []string{"g1", "g3"}, b.GroupIDs)
}

func TestValid(t *testing.T) {
	assert.False(t, Identity{Name: "   "}.Valid())
	assert.True(t, Identity{Name: "Budi"}.Valid())
	assert.Equal(t, "Budi", Identity{}.Rename("  Budi ").Name)
}

func TestCodecRoundTrip(t *testing.T) {
	c := NewCodec("secret")
	in := Identity{Name: "Ana", GroupIDs: []string{"g1"}}

	token, err := c.Encode(in)
	require.NoError(t, err)

	out, err := c.Decode(token)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestCodecRejects(t *testing.T) {
	c := NewCodec("secret")
	token, err := c.Encode(Identity{Name: "Ana"})
	require.NoError(t, err)

	t.Run("wrong secret", func(t *testing.T) {
		_, err := NewCodec("other").Decode(token)
		assert.ErrorIs(t, err, ErrInvalid)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := c.Decode("not-a-token")
		assert.ErrorIs(t, err, ErrInvalid)
	})

	t.Run("expired", func(t *testing.T) {
		late := NewCodec("secret")
		late.now = func() time.Time { return time.Now().Add(TTL + time.Hour) }
		_, err := late.Decode(token)
		assert.ErrorIs(t, err, ErrInvalid)
	})
}
