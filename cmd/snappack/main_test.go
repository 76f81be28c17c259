package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeblock-sh/codeblock/internal/vfs"
)

func TestCollectFiles(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "src"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "empty"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, ".git", "objects"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "src", "main.go"), []byte("package main"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, ".git", "HEAD"), []byte("ref"), 0o644))
	// WriteFile perms pass through the umask; pin them for the assertion.
	require.NoError(t, os.Chmod(filepath.Join(root, "src", "main.go"), 0o644))

	files, err := collectFiles(root)
	require.NoError(t, err)

	paths := make([]string, len(files))
	byPath := make(map[string]uint32, len(files))
	for i, f := range files {
		paths[i] = f.Path
		byPath[f.Path] = f.Mode
	}

	// Sorted, parents before children, .git pruned, empty dir kept.
	assert.Equal(t, []string{"/empty", "/src", "/src/main.go"}, paths)

	assert.Equal(t, vfs.TypeDirectory, vfs.TypeFromMode(byPath["/empty"]))
	assert.Equal(t, vfs.TypeDirectory, vfs.TypeFromMode(byPath["/src"]))
	assert.Equal(t, vfs.TypeFile, vfs.TypeFromMode(byPath["/src/main.go"]))
	assert.Equal(t, vfs.ModeRegular|0o644, byPath["/src/main.go"])

	for _, f := range files {
		if f.Path == "/src/main.go" {
			assert.Equal(t, []byte("package main"), f.Data)
		} else {
			assert.Empty(t, f.Data)
		}
	}
}
