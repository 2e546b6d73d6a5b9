package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	gcs "cloud.google.com/go/storage"
	"github.com/google/uuid"
)

// DefaultChunkSize is the resumable upload chunk size. Each chunk is retried
// independently by the client library.
const DefaultChunkSize = 256 * 1024

const firebaseHost = "firebasestorage.googleapis.com"

// FirebaseStore writes objects to a Firebase Storage (GCS) bucket and publishes
// them under persistent download-token URLs.
type FirebaseStore struct {
	bucket     *gcs.BucketHandle
	bucketName string
	chunkSize  int
}

// NewFirebaseStore wraps a bucket handle obtained from the Firebase app.
func NewFirebaseStore(bucket *gcs.BucketHandle, bucketName string) *FirebaseStore {
	return &FirebaseStore{bucket: bucket, bucketName: bucketName, chunkSize: DefaultChunkSize}
}

// Upload streams r in resumable chunks.
func (s *FirebaseStore) Upload(ctx context.Context, name string, r io.Reader, opts UploadOptions) (string, error) {
	token := uuid.NewString()
	w := s.bucket.Object(name).NewWriter(ctx)
	w.ChunkSize = s.chunkSize
	w.ContentType = opts.ContentType
	w.Metadata = map[string]string{"firebaseStorageDownloadTokens": token}
	if opts.Progress != nil {
		total := opts.Size
		w.ProgressFunc = func(n int64) { opts.Progress(n, total) }
	}

	if _, err := io.Copy(w, r); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("objectstore: upload %s: %w", name, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("objectstore: finalize %s: %w", name, err)
	}
	return FirebaseDownloadURL(s.bucketName, name, token), nil
}

// Delete removes the object referenced by a download URL.
func (s *FirebaseStore) Delete(ctx context.Context, rawURL string) error {
	bucket, name, err := ParseFirebaseURL(rawURL)
	if err != nil {
		return err
	}
	if bucket != s.bucketName {
		return ErrForeignURL
	}
	if err := s.bucket.Object(name).Delete(ctx); err != nil {
		if errors.Is(err, gcs.ErrObjectNotExist) {
			return ErrNotFound
		}
		return err
	}
	return nil
}

// FirebaseDownloadURL formats the public URL of an object with a download token.
func FirebaseDownloadURL(bucket, name, token string) string {
	return fmt.Sprintf("https://%s/v0/b/%s/o/%s?alt=media&token=%s",
		firebaseHost, bucket, url.PathEscape(name), url.QueryEscape(token))
}

// ParseFirebaseURL extracts the bucket and object name from a download URL.
func ParseFirebaseURL(rawURL string) (bucket, name string, err error) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host != firebaseHost {
		return "", "", ErrForeignURL
	}
	// /v0/b/<bucket>/o/<escaped name>
	parts := strings.SplitN(strings.TrimPrefix(u.EscapedPath(), "/"), "/", 5)
	if len(parts) != 5 || parts[0] != "v0" || parts[1] != "b" || parts[3] != "o" {
		return "", "", ErrForeignURL
	}
	name, err = url.PathUnescape(parts[4])
	if err != nil || name == "" {
		return "", "", ErrForeignURL
	}
	return parts[2], name, nil
}
