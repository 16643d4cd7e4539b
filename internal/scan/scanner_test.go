package scan

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Zuo-Peng/mmem/internal/parse"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestWalk_FindsSupportedFormats(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.jsonl"), "{}\n")
	writeFile(t, filepath.Join(root, "nested", "deeper", "b.JSON"), "{}")
	writeFile(t, filepath.Join(root, "nested", "c.md"), "user: hi")
	writeFile(t, filepath.Join(root, "nested", "ignore.txt"), "nope")
	writeFile(t, filepath.Join(root, "noext"), "nope")

	files, err := Walk(root)
	require.NoError(t, err)
	require.Len(t, files, 3)

	assert.Equal(t, filepath.Join(root, "a.jsonl"), files[0].Path)
	assert.Equal(t, parse.FormatJSONL, files[0].Format)
	assert.Equal(t, int64(3), files[0].Size)
	assert.NotZero(t, files[0].Mtime)

	assert.Equal(t, filepath.Join(root, "nested", "c.md"), files[1].Path)
	assert.Equal(t, parse.FormatMarkdown, files[1].Format)

	assert.Equal(t, filepath.Join(root, "nested", "deeper", "b.JSON"), files[2].Path)
	assert.Equal(t, parse.FormatJSON, files[2].Format)
}

func TestWalk_MissingRoot(t *testing.T) {
	_, err := Walk(filepath.Join(t.TempDir(), "absent"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestWalk_RootIsFile(t *testing.T) {
	p := filepath.Join(t.TempDir(), "x.jsonl")
	writeFile(t, p, "")
	_, err := Walk(p)
	assert.Error(t, err)
}
