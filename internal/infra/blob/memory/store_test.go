package memory

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"organcore/internal/blob/core"
)

func TestMemoryStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	s := New()
	assert.Equal(t, core.DriverMemory, s.Driver())

	info, err := s.Put(ctx, "organs/1.md", strings.NewReader("first"), core.PutOptions{ContentType: "text/markdown"})
	require.NoError(t, err)
	assert.Equal(t, int64(5), info.Size)

	_, err = s.Put(ctx, "organs/1.md", strings.NewReader("second"), core.PutOptions{})
	require.NoError(t, err, "put replaces")

	_, rc, err := s.Get(ctx, "organs/1.md")
	require.NoError(t, err)
	b, _ := io.ReadAll(rc)
	assert.Equal(t, "second", string(b))

	_, err = s.Put(ctx, "events/2.md", strings.NewReader("e"), core.PutOptions{})
	require.NoError(t, err)
	list, err := s.List(ctx, "organs/")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "organs/1.md", list[0].Key)

	ok, err := s.Delete(ctx, "organs/1.md")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = s.Delete(ctx, "organs/1.md")
	require.NoError(t, err)
	assert.False(t, ok)

	_, _, err = s.Get(ctx, "organs/1.md")
	assert.ErrorIs(t, err, core.ErrNotFound)

	_, err = s.Put(ctx, " ", strings.NewReader("x"), core.PutOptions{})
	assert.Error(t, err)
}
