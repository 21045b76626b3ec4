package media

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/newswire/core"
)

func TestMergeText(t *testing.T) {
	tests := []struct {
		name      string
		content   string
		extracted string
		want      string
	}{
		{"both parts", "caption", "chart text", "caption\n\n[text from images]:\nchart text"},
		{"no extraction", "caption", "", "caption"},
		{"image only", "", "chart text", "chart text"},
		{"nothing", "", "", ""},
		{"whitespace trimmed", " caption \n", " chart text ", "caption\n\n[text from images]:\nchart text"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MergeText(tt.content, tt.extracted))
		})
	}
}

func TestCleanupItem(t *testing.T) {
	dir := t.TempDir()
	existing := filepath.Join(dir, "photo.jpg")
	require.NoError(t, os.WriteFile(existing, []byte("jpeg"), 0o600))

	item := &core.ContentItem{
		Id:         "telegram_chan_1",
		HasMedia:   true,
		MediaFiles: []string{existing, filepath.Join(dir, "already-gone.jpg")},
	}
	require.NoError(t, CleanupItem(item))

	assert.NoFileExists(t, existing)
	assert.Nil(t, item.MediaFiles)

	// nothing left to do
	assert.NoError(t, CleanupItem(item))
}
