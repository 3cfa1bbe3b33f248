package ingest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestExtractPagesTextFile(t *testing.T) {
	r := NewPDFReader(zap.NewNop())

	path := filepath.Join(t.TempDir(), "receipt.txt")
	content := "Biedronka\nMleko 3,49\nSUMA 3,49\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	pages, err := r.ExtractPages(path)
	require.NoError(t, err)
	require.Len(t, pages, 1)
	assert.Equal(t, content, pages[0])
}

func TestExtractPagesMissingFile(t *testing.T) {
	r := NewPDFReader(zap.NewNop())

	_, err := r.ExtractPages(filepath.Join(t.TempDir(), "nope.pdf"))
	assert.Error(t, err)
}

func TestExtractPagesUnsupportedType(t *testing.T) {
	r := NewPDFReader(zap.NewNop())

	path := filepath.Join(t.TempDir(), "receipt.png")
	require.NoError(t, os.WriteFile(path, []byte{1, 2, 3}, 0644))

	_, err := r.ExtractPages(path)
	assert.Error(t, err)
}
