package objectstore

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFirebaseURLRoundTrip(t *testing.T) {
	u := FirebaseDownloadURL("demo.appspot.com", "posts/u1/p1/a b.png", "tok-1")
	assert.Equal(t, "https://firebasestorage.googleapis.com/v0/b/demo.appspot.com/o/posts%2Fu1%2Fp1%2Fa%20b.png?alt=media&token=tok-1", u)

	bucket, name, err := ParseFirebaseURL(u)
	require.NoError(t, err)
	assert.Equal(t, "demo.appspot.com", bucket)
	assert.Equal(t, "posts/u1/p1/a b.png", name)
}

func TestParseFirebaseURL_Rejects(t *testing.T) {
	for _, raw := range []string{
		"https://example.com/v0/b/x/o/y",
		"https://firebasestorage.googleapis.com/v1/b/x/o/y",
		"https://firebasestorage.googleapis.com/v0/b/x/o/",
		"::bad",
	} {
		_, _, err := ParseFirebaseURL(raw)
		assert.ErrorIs(t, err, ErrForeignURL, raw)
	}
}

func TestCloudinaryPublicID(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"https://res.cloudinary.com/demo/image/upload/v1700000000/posts/u1/abc.png", "posts/u1/abc"},
		{"https://res.cloudinary.com/demo/image/upload/avatars/u2.jpg", "avatars/u2"},
	}
	for _, tt := range tests {
		got, err := CloudinaryPublicID(tt.url)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}

	_, err := CloudinaryPublicID("https://example.com/image/upload/x.png")
	assert.ErrorIs(t, err, ErrForeignURL)
}

func TestObjectName(t *testing.T) {
	name := ObjectName("Photo.JPG", "posts", "u1", "p1")
	assert.True(t, strings.HasPrefix(name, "posts/u1/p1/"))
	assert.True(t, strings.HasSuffix(name, ".jpg"))
}

func TestMemoryStore_UploadReportsProgressAndDeletes(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	var last, total int64
	u, err := s.Upload(ctx, "posts/a.png", strings.NewReader("hello"), UploadOptions{
		ContentType: "image/png",
		Size:        5,
		Progress:    func(w, tot int64) { last, total = w, tot },
	})
	require.NoError(t, err)
	assert.Equal(t, "mem://posts/a.png", u)
	assert.Equal(t, int64(5), last)
	assert.Equal(t, int64(5), total)
	assert.True(t, s.Has(u))

	require.NoError(t, s.Delete(ctx, u))
	assert.False(t, s.Has(u))
	assert.ErrorIs(t, s.Delete(ctx, u), ErrNotFound)
	assert.ErrorIs(t, s.Delete(ctx, "https://elsewhere/x"), ErrForeignURL)
}

func TestMemoryStore_InjectedFailure(t *testing.T) {
	s := NewMemoryStore()
	s.FailUpload = func(name string) error { return errors.New("quota") }
	_, err := s.Upload(context.Background(), "x", strings.NewReader("1"), UploadOptions{})
	assert.EqualError(t, err, "quota")
	assert.Zero(t, s.Len())
}
