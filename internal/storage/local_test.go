package storage

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStorageRoundTrip(t *testing.T) {
	s, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	ctx := context.Background()
	err = s.Upload(ctx, "uploads", "job-1/scan.png", strings.NewReader("png bytes"), "image/png")
	require.NoError(t, err)

	rc, err := s.Download(ctx, "uploads", "job-1/scan.png")
	require.NoError(t, err)
	defer rc.Close()

	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "png bytes", string(data))
}

func TestLocalStorageDelete(t *testing.T) {
	s, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, s.Upload(ctx, "uploads", "doc.pdf", strings.NewReader("pdf"), "application/pdf"))
	require.NoError(t, s.Delete(ctx, "uploads", "doc.pdf"))

	_, err = s.Download(ctx, "uploads", "doc.pdf")
	assert.Error(t, err)

	// Deleting a missing object is not an error.
	assert.NoError(t, s.Delete(ctx, "uploads", "doc.pdf"))
}

func TestLocalStorageRejectsPathEscape(t *testing.T) {
	s, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	ctx := context.Background()
	err = s.Upload(ctx, "uploads", "../../etc/passwd", strings.NewReader("x"), "text/plain")
	assert.Error(t, err)

	_, err = s.Download(ctx, "..", "..")
	assert.Error(t, err)
}
