package airgap

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSession_CreateAndClose(t *testing.T) {
	root := t.TempDir()

	s, err := NewSession(root)
	require.NoError(t, err)
	assert.DirExists(t, s.Dir())
	assert.Equal(t, root, filepath.Dir(s.Dir()))

	// Close removes the whole subtree even when it has content.
	require.NoError(t, os.WriteFile(filepath.Join(s.Dir(), "file"), []byte("x"), 0644))
	require.NoError(t, os.MkdirAll(filepath.Join(s.Dir(), "nested/dir"), 0755))

	require.NoError(t, s.Close())
	assert.NoDirExists(t, s.Dir())
}

func TestSession_UniqueDirs(t *testing.T) {
	root := t.TempDir()

	a, err := NewSession(root)
	require.NoError(t, err)
	defer a.Close()

	b, err := NewSession(root)
	require.NoError(t, err)
	defer b.Close()

	assert.NotEqual(t, a.Dir(), b.Dir())
}
