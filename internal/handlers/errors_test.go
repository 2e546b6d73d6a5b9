package handlers

import (
	"bytes"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"

	"github.com/Ahnjunghyeon/test-login-sub000/internal/models"
	"github.com/Ahnjunghyeon/test-login-sub000/internal/observability"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func statusOf(t *testing.T, err error) int {
	t.Helper()
	var he *echo.HTTPError
	require.True(t, errors.As(err, &he), "expected echo.HTTPError, got %T", err)
	return he.Code
}

func TestHTTPError(t *testing.T) {
	logger := observability.Discard()
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"validation", models.NewValidationError("bad"), http.StatusBadRequest},
		{"not found", models.NewNotFoundError("post", "p1"), http.StatusNotFound},
		{"unauthorized", models.NewUnauthorizedError("no"), http.StatusUnauthorized},
		{"forbidden", models.NewForbiddenError("no"), http.StatusForbidden},
		{"conflict", models.NewConflictError("dup"), http.StatusConflict},
		{"wrapped", fmt.Errorf("save: %w", models.NewValidationError("bad")), http.StatusBadRequest},
		{"internal", models.NewInternalError(errors.New("disk")), http.StatusInternalServerError},
		{"plain", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, statusOf(t, httpError(logger, tt.err)))
		})
	}
}

func TestHTTPError_HidesInternalDetails(t *testing.T) {
	err := httpError(observability.Discard(), errors.New("connection refused to 10.0.0.3"))
	var he *echo.HTTPError
	require.ErrorAs(t, err, &he)
	assert.Equal(t, "Internal server error", he.Message)
}

func TestPageFrom(t *testing.T) {
	e := echo.New()
	ctxFor := func(query string) echo.Context {
		req := httptest.NewRequest(http.MethodGet, "/x?"+query, nil)
		return e.NewContext(req, httptest.NewRecorder())
	}

	page, err := pageFrom(ctxFor(""), 20)
	require.NoError(t, err)
	assert.Equal(t, 20, page.Limit)
	assert.True(t, page.Before.IsZero())

	page, err = pageFrom(ctxFor("limit=5&before=1700000000000"), 20)
	require.NoError(t, err)
	assert.Equal(t, 5, page.Limit)
	assert.Equal(t, int64(1700000000000), page.Before.Millis())

	for _, q := range []string{"limit=-1", "limit=101", "limit=abc", "before=0", "before=yesterday"} {
		_, err := pageFrom(ctxFor(q), 20)
		assert.Equal(t, http.StatusBadRequest, statusOf(t, err), q)
	}
}

func fileHeader(t *testing.T, name, contentType string, size int) *multipart.FileHeader {
	t.Helper()
	body, ct := multipartBody(t, name, contentType, size)
	req := httptest.NewRequest(http.MethodPost, "/", body)
	req.Header.Set(echo.HeaderContentType, ct)
	require.NoError(t, req.ParseMultipartForm(32<<20))
	return req.MultipartForm.File["photo"][0]
}

func TestOpenImage(t *testing.T) {
	fh := fileHeader(t, "me.jpg", "image/jpeg", 64)
	upload, closeFn, err := openImage(fh, 1)
	require.NoError(t, err)
	defer closeFn()
	assert.Equal(t, "me.jpg", upload.Filename)
	assert.Equal(t, "image/jpeg", upload.ContentType)
	assert.Equal(t, int64(64), upload.Size)

	_, _, err = openImage(fileHeader(t, "big.png", "image/png", 2<<20), 1)
	assert.Equal(t, http.StatusRequestEntityTooLarge, statusOf(t, err))

	_, _, err = openImage(fileHeader(t, "a.pdf", "application/pdf", 10), 1)
	assert.Equal(t, http.StatusBadRequest, statusOf(t, err))
}

func TestNonEmpty(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, nonEmpty([]string{" a ", "", "  ", "b"}))
	assert.Empty(t, nonEmpty(nil))
}

func multipartBody(t *testing.T, name, contentType string, size int) (*bytes.Buffer, string) {
	t.Helper()
	buf := &bytes.Buffer{}
	mw := multipart.NewWriter(buf)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="photo"; filename=%q`, name))
	h.Set("Content-Type", contentType)
	part, err := mw.CreatePart(h)
	require.NoError(t, err)
	_, err = part.Write(make([]byte, size))
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return buf, mw.FormDataContentType()
}
