// Package media turns captured or uploaded bytes into transport-ready MediaItems.
package media

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"golang.org/x/sync/errgroup"

	"github.com/bryanwahyu/resolve-ai/internal/domain/repair"
)

// DefaultMaxBytes caps a single blob.
const DefaultMaxBytes = 20 << 20

// Blob is raw captured content with its declared type.
type Blob struct {
	Name     string
	MIMEType string
	Data     []byte
}

// TooLargeError is returned for blobs above the encoder limit.
type TooLargeError struct {
	Name  string
	Size  int
	Limit int
}

func (e *TooLargeError) Error() string {
	return fmt.Sprintf("%s is %d bytes, limit is %d", e.Name, e.Size, e.Limit)
}

// Encoder has no mutable state; one value can serve concurrent callers.
type Encoder struct {
	MaxBytes    int
	Concurrency int
	NewID       func() string
}

func NewEncoder() *Encoder {
	return &Encoder{MaxBytes: DefaultMaxBytes, Concurrency: 4, NewID: uuid.NewString}
}

// Encode base64-encodes the blob and attaches a data URL preview.
func (e *Encoder) Encode(b Blob) (repair.MediaItem, error) {
	if len(b.Data) == 0 {
		return repair.MediaItem{}, eris.Errorf("%s: empty blob", b.Name)
	}
	if limit := e.MaxBytes; limit > 0 && len(b.Data) > limit {
		return repair.MediaItem{}, &TooLargeError{Name: b.Name, Size: len(b.Data), Limit: limit}
	}

	mimeType := normalizeMIME(b.MIMEType)
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = normalizeMIME(mimetype.Detect(b.Data).String())
	}
	kind := repair.KindForMIME(mimeType)
	if kind == repair.MediaImage && !strings.HasPrefix(mimeType, "image/") {
		return repair.MediaItem{}, eris.Errorf("%s: unsupported media type %s", b.Name, mimeType)
	}

	newID := e.NewID
	if newID == nil {
		newID = uuid.NewString
	}
	item := repair.MediaItem{
		ID:       newID(),
		Data:     base64.StdEncoding.EncodeToString(b.Data),
		MIMEType: mimeType,
		Kind:     kind,
	}
	item.PreviewURL = item.DataURL()
	return item, nil
}

// FileError ties a failure to its input path.
type FileError struct {
	Path string
	Err  error
}

func (e *FileError) Error() string { return e.Path + ": " + e.Err.Error() }
func (e *FileError) Unwrap() error { return e.Err }

// EncodeFiles reads and encodes paths concurrently. Successes keep input order;
// each failure is reported without discarding the rest.
func (e *Encoder) EncodeFiles(ctx context.Context, paths []string) ([]repair.MediaItem, []error) {
	results := make([]*repair.MediaItem, len(paths))
	errs := make([]error, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	limit := e.Concurrency
	if limit <= 0 {
		limit = 4
	}
	g.SetLimit(limit)

	for i, p := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				errs[i] = &FileError{Path: p, Err: err}
				return nil
			}
			blob, err := ReadFile(p)
			if err != nil {
				errs[i] = &FileError{Path: p, Err: err}
				return nil // satu file gagal tidak membatalkan batch
			}
			item, err := e.Encode(blob)
			if err != nil {
				errs[i] = &FileError{Path: p, Err: err}
				return nil
			}
			results[i] = &item
			return nil
		})
	}
	_ = g.Wait()

	var items []repair.MediaItem
	var failures []error
	for i := range paths {
		if results[i] != nil {
			items = append(items, *results[i])
		}
		if errs[i] != nil {
			failures = append(failures, errs[i])
		}
	}
	return items, failures
}

// ReadFile loads a blob from disk, declaring the type by extension.
func ReadFile(path string) (Blob, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Blob{}, eris.Wrapf(err, "read %s", path)
	}
	return Blob{Name: filepath.Base(path), MIMEType: mimeByExt(path), Data: data}, nil
}

func normalizeMIME(m string) string {
	if i := strings.IndexByte(m, ';'); i >= 0 {
		m = m[:i]
	}
	return strings.ToLower(strings.TrimSpace(m))
}

func mimeByExt(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".webp":
		return "image/webp"
	case ".heic":
		return "image/heic"
	case ".mp4":
		return "video/mp4"
	case ".webm":
		return "video/webm"
	case ".mov":
		return "video/quicktime"
	}
	return ""
}
