package fs

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"organcore/internal/blob/core"
)

func TestSanitizeKey(t *testing.T) {
	for _, bad := range []string{"", "  ", "/abs", "../escape", "a/../../b"} {
		_, err := sanitizeKey(bad)
		assert.Error(t, err, bad)
	}
	k, err := sanitizeKey("organs/./1.md")
	require.NoError(t, err)
	assert.Equal(t, "organs/1.md", k)
}

func TestFilesystemStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s, err := New(dir)
	require.NoError(t, err)
	assert.Equal(t, core.DriverFilesystem, s.Driver())

	info, err := s.Put(ctx, "organs/1.md", strings.NewReader("# Ada"), core.PutOptions{ContentType: "text/markdown"})
	require.NoError(t, err)
	assert.Equal(t, int64(5), info.Size)
	assert.NotEmpty(t, info.ETag)
	_, err = os.Stat(filepath.Join(dir, "organs", "1.md"))
	require.NoError(t, err)

	_, err = s.Put(ctx, "organs/1.md", strings.NewReader("# Ada Lovelace"), core.PutOptions{})
	require.NoError(t, err)
	_, rc, err := s.Get(ctx, "organs/1.md")
	require.NoError(t, err)
	b, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, "# Ada Lovelace", string(b))

	_, err = s.Put(ctx, "events/3.md", strings.NewReader(""), core.PutOptions{})
	require.NoError(t, err)
	list, err := s.List(ctx, "")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "events/3.md", list[0].Key)

	ok, err := s.Delete(ctx, "organs/1.md")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = s.Delete(ctx, "organs/1.md")
	require.NoError(t, err)
	assert.False(t, ok)

	_, _, err = s.Get(ctx, "organs/1.md")
	assert.ErrorIs(t, err, core.ErrNotFound)
	_, _, err = s.Get(ctx, "../x")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, core.ErrNotFound)
}
