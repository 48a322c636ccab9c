package dataset

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeCaptions writes a caption table for images images with five caption
// rows each, returning the data directory to pass to Open.
func writeCaptions(t *testing.T, images int) string {
	t.Helper()

	dataDir := t.TempDir()
	dir := filepath.Join(dataDir, "flickr8k")
	require.NoError(t, os.MkdirAll(dir, 0o755))

	var sb strings.Builder
	sb.WriteString("image,caption\n")
	for i := 0; i < images; i++ {
		for j := 0; j < CaptionsPerImage; j++ {
			fmt.Fprintf(&sb, "img%d.jpg,\"A dog runs, caption %d!\"\n", i, j)
		}
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "captions.txt"), []byte(sb.String()), 0o644))
	return dataDir
}

func TestOpenUnknownDataset(t *testing.T) {
	_, err := Open("imagenet", t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "imagenet")
	assert.Contains(t, err.Error(), "flickr8k")
	assert.Contains(t, err.Error(), "flickr30k")
}

func TestOpenMissingTable(t *testing.T) {
	_, err := Open("flickr8k", t.TempDir())
	require.Error(t, err)
}

func TestDatasetLen(t *testing.T) {
	ds, err := Open("flickr8k", writeCaptions(t, 3))
	require.NoError(t, err)

	assert.Equal(t, 15, ds.Rows())
	assert.Equal(t, 3, ds.Len())
}

func TestDatasetLenIgnoresPartialGroup(t *testing.T) {
	dataDir := writeCaptions(t, 2)
	path := filepath.Join(dataDir, "flickr8k", "captions.txt")
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString("img9.jpg,a stray caption\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	ds, err := Open("flickr8k", dataDir)
	require.NoError(t, err)
	assert.Equal(t, 11, ds.Rows())
	assert.Equal(t, 2, ds.Len(), "a trailing partial group must not add an image")
}

func TestDatasetItem(t *testing.T) {
	dataDir := writeCaptions(t, 2)
	ds, err := Open("flickr8k", dataDir)
	require.NoError(t, err)

	path, captions := ds.Item(1)
	assert.Equal(t, filepath.Join(dataDir, "flickr8k", "Images", "img1.jpg"), path)
	require.Len(t, captions, CaptionsPerImage)
	for _, c := range captions {
		assert.True(t, strings.HasPrefix(c, StartToken+" "), "caption %q must start with the start token", c)
		assert.True(t, strings.HasSuffix(c, " "+EndToken), "caption %q must end with the end token", c)
		assert.NotContains(t, c, ",", "captions must be preprocessed at load time")
	}
}

func TestDatasetItemOutOfRange(t *testing.T) {
	ds, err := Open("flickr8k", writeCaptions(t, 1))
	require.NoError(t, err)

	assert.Panics(t, func() { ds.Item(1) })
	assert.Panics(t, func() { ds.Item(-1) })
}

func TestDatasetPreprocessedOnce(t *testing.T) {
	ds, err := Open("flickr8k", writeCaptions(t, 1))
	require.NoError(t, err)

	// Preprocess is idempotent only up to sentinel wrapping: a caption that
	// went through twice would carry doubled sentinels.
	for _, c := range ds.Captions() {
		assert.Equal(t, 1, strings.Count(c, StartToken), "caption %q", c)
		assert.Equal(t, 1, strings.Count(c, EndToken), "caption %q", c)
	}
}
