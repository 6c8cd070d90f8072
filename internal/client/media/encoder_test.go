package media

import (
	"context"
	"encoding/base64"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/resolve-ai/internal/domain/repair"
)

// 1x1 transparent PNG
var pngBytes, _ = base64.StdEncoding.DecodeString(
	"iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAYAAAAfFcSJAAAADUlEQVR42mNkYPhfDwAChwGA60e6kgAAAABJRU5ErkJggg==")

func TestEncode_Declared(t *testing.T) {
	e := NewEncoder()
	item, err := e.Encode(Blob{Name: "a.webm", MIMEType: "video/webm", Data: []byte("xyz")})
	require.NoError(t, err)
	assert.Equal(t, repair.MediaVideo, item.Kind)
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("xyz")), item.Data)
	assert.Equal(t, "data:video/webm;base64,eHl6", item.PreviewURL)
	assert.NotEmpty(t, item.ID)
	require.NoError(t, item.Validate())
}

func TestEncode_SniffsUnknownType(t *testing.T) {
	item, err := NewEncoder().Encode(Blob{Name: "frame", MIMEType: "application/octet-stream", Data: pngBytes})
	require.NoError(t, err)
	assert.Equal(t, "image/png", item.MIMEType)
	assert.Equal(t, repair.MediaImage, item.Kind)
}

func TestEncode_Rejects(t *testing.T) {
	e := NewEncoder()
	_, err := e.Encode(Blob{Name: "empty"})
	assert.Error(t, err)

	_, err = e.Encode(Blob{Name: "notes", Data: []byte("plain text, not a picture")})
	assert.Error(t, err)

	e.MaxBytes = 2
	_, err = e.Encode(Blob{Name: "big", MIMEType: "image/png", Data: pngBytes})
	var tooLarge *TooLargeError
	require.True(t, errors.As(err, &tooLarge))
	assert.Equal(t, 2, tooLarge.Limit)
}

func TestEncodeFiles_PartialFailureKeepsSuccesses(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.png")
	b := filepath.Join(dir, "b.png")
	require.NoError(t, os.WriteFile(a, pngBytes, 0o644))
	require.NoError(t, os.WriteFile(b, pngBytes, 0o644))
	missing := filepath.Join(dir, "missing.jpg")

	items, errs := NewEncoder().EncodeFiles(context.Background(), []string{a, missing, b})
	require.Len(t, items, 2)
	require.Len(t, errs, 1)
	var fe *FileError
	require.True(t, errors.As(errs[0], &fe))
	assert.Equal(t, missing, fe.Path)
	assert.NotEqual(t, items[0].ID, items[1].ID)
}

func TestReadFile(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "clip.mp4")
	require.NoError(t, os.WriteFile(p, []byte("fake"), 0o644))

	blob, err := ReadFile(p)
	require.NoError(t, err)
	assert.Equal(t, "video/mp4", blob.MIMEType)
	assert.Equal(t, "clip.mp4", blob.Name)
}
