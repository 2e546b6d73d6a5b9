// Package objectstore uploads binary blobs (post images, profile photos) and
// returns stable retrieval URLs. Objects are deleted by the URL they were
// published under.
package objectstore

import (
	"context"
	"errors"
	"io"
	"path"
	"strings"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned when the object a URL refers to does not exist.
	ErrNotFound = errors.New("objectstore: object not found")
	// ErrForeignURL is returned for URLs this store did not issue.
	ErrForeignURL = errors.New("objectstore: url not issued by this store")
)

// ProgressFunc receives the number of bytes sent so far and the expected total
// (0 when unknown). Calls are advisory.
type ProgressFunc func(written, total int64)

// UploadOptions describes one upload.
type UploadOptions struct {
	ContentType string
	Size        int64
	Progress    ProgressFunc
}

// Store is implemented by every object backend.
type Store interface {
	Upload(ctx context.Context, name string, r io.Reader, opts UploadOptions) (string, error)
	Delete(ctx context.Context, url string) error
}

// ObjectName builds "<prefix...>/<uuid><ext>" for an uploaded file, keeping the
// extension of the original file name.
func ObjectName(original string, prefix ...string) string {
	ext := strings.ToLower(path.Ext(original))
	segs := append(append([]string{}, prefix...), uuid.NewString()+ext)
	return strings.Join(segs, "/")
}

// countingReader reports progress as the backend consumes the body.
type countingReader struct {
	r        io.Reader
	n        int64
	total    int64
	progress ProgressFunc
}

func newCountingReader(r io.Reader, opts UploadOptions) io.Reader {
	if opts.Progress == nil {
		return r
	}
	return &countingReader{r: r, total: opts.Size, progress: opts.Progress}
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	if n > 0 {
		c.n += int64(n)
		c.progress(c.n, c.total)
	}
	return n, err
}
