package workspace

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/worksonmyai/relay/internal/protocol"
)

func writeItem(t *testing.T, dir, name, content string) {
	t.Helper()
	itemsDir := filepath.Join(dir, ".relay", "items")
	require.NoError(t, os.MkdirAll(itemsDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(itemsDir, name), []byte(content), 0o644))
}

func TestListGeneratedItems(t *testing.T) {
	dir := t.TempDir()
	writeItem(t, dir, "02-api.md", "# Build the API layer\n\ndetails\n")
	writeItem(t, dir, "01-schema.md", "## Define the schema\n")
	writeItem(t, dir, "03-ui.md", "no heading here\n")

	ws := New(dir)
	items, err := ws.ListGeneratedItems(protocol.ItemsGlob)
	require.NoError(t, err)
	require.Len(t, items, 3)

	// Filename order, not creation order.
	assert.Equal(t, "01-schema", items[0].ID)
	assert.Equal(t, "Define the schema", items[0].Label)
	assert.Equal(t, "02-api", items[1].ID)
	assert.Equal(t, "Build the API layer", items[1].Label)
	assert.Equal(t, "03-ui", items[2].ID)
	assert.Equal(t, "03-ui", items[2].Label, "label falls back to ID without a heading")

	for _, it := range items {
		assert.Equal(t, protocol.ItemPending, it.Status)
	}
}

func TestListGeneratedItems_Empty(t *testing.T) {
	ws := New(t.TempDir())
	items, err := ws.ListGeneratedItems(protocol.ItemsGlob)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestReadText(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ctx.md"), []byte("context doc"), 0o644))

	ws := New(dir)
	content, ok := ws.ReadText("ctx.md")
	assert.True(t, ok)
	assert.Equal(t, "context doc", content)

	_, ok = ws.ReadText("missing.md")
	assert.False(t, ok)
}
