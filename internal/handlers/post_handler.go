package handlers

import (
	"fmt"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/Ahnjunghyeon/test-login-sub000/internal/identity"
	"github.com/Ahnjunghyeon/test-login-sub000/internal/models"
	"github.com/Ahnjunghyeon/test-login-sub000/internal/service"
	"github.com/labstack/echo/v4"
)

// maxImagesPerPost bounds the "images" files of one create or edit request.
const maxImagesPerPost = 10

// PostHandler handles HTTP requests related to posts
type PostHandler struct {
	editor      *service.Editor
	maxUploadMB int64
	logger      *slog.Logger
}

// NewPostHandler creates a new PostHandler
func NewPostHandler(editor *service.Editor, maxUploadMB int64, logger *slog.Logger) *PostHandler {
	return &PostHandler{editor: editor, maxUploadMB: maxUploadMB, logger: logger}
}

// RegisterPostRoutes registers post-related routes
func (h *PostHandler) RegisterPostRoutes(g *echo.Group) {
	g.POST("/posts", h.CreatePost)
	g.PUT("/posts/:post_id", h.UpdatePost)
	g.DELETE("/posts/:post_id", h.DeletePost)
	g.GET("/users/:uid/posts", h.GetUserPosts)
	g.GET("/users/:uid/posts/:post_id", h.GetPost)
}

// CreatePost handles the multipart creation form
func (h *PostHandler) CreatePost(c echo.Context) error {
	return h.save(c, "", http.StatusCreated)
}

// UpdatePost edits a post owned by the current user
func (h *PostHandler) UpdatePost(c echo.Context) error {
	return h.save(c, c.Param("post_id"), http.StatusOK)
}

func (h *PostHandler) save(c echo.Context, postID string, status int) error {
	var req models.SavePostRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid form data")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	in := service.PostInput{
		PostID:        postID,
		Title:         req.Title,
		Content:       req.Content,
		Category:      models.Category(req.Category),
		KeepImageURLs: nonEmpty(req.KeepImageURLs),
	}

	var files []*multipart.FileHeader
	if form, err := c.MultipartForm(); err == nil {
		files = form.File["images"]
	}
	if len(files) > maxImagesPerPost {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("at most %d images per post", maxImagesPerPost))
	}
	for _, fh := range files {
		upload, closeFn, err := openImage(fh, h.maxUploadMB)
		if err != nil {
			return err
		}
		defer closeFn()
		in.NewImages = append(in.NewImages, upload)
	}

	ctx := c.Request().Context()
	post, err := h.editor.Save(ctx, identity.SessionFrom(ctx), in)
	if err != nil {
		return httpError(h.logger, err)
	}
	return c.JSON(status, post)
}

// DeletePost removes a post with its images, likes and comments
func (h *PostHandler) DeletePost(c echo.Context) error {
	ctx := c.Request().Context()
	if err := h.editor.Delete(ctx, identity.SessionFrom(ctx), c.Param("post_id")); err != nil {
		return httpError(h.logger, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// GetUserPosts lists a user's posts, newest first
func (h *PostHandler) GetUserPosts(c echo.Context) error {
	page, err := pageFrom(c, 20)
	if err != nil {
		return err
	}
	posts, err := h.editor.ListByOwner(c.Request().Context(), c.Param("uid"), page)
	if err != nil {
		return httpError(h.logger, err)
	}
	return c.JSON(http.StatusOK, posts)
}

// GetPost returns a single post
func (h *PostHandler) GetPost(c echo.Context) error {
	ref := models.PostRef{OwnerID: c.Param("uid"), PostID: c.Param("post_id")}
	post, err := h.editor.Get(c.Request().Context(), ref)
	if err != nil {
		return httpError(h.logger, err)
	}
	return c.JSON(http.StatusOK, post)
}

// openImage checks a multipart file and opens it for upload.
func openImage(fh *multipart.FileHeader, maxUploadMB int64) (service.ImageUpload, func(), error) {
	if fh.Size > maxUploadMB<<20 {
		return service.ImageUpload{}, nil, echo.NewHTTPError(http.StatusRequestEntityTooLarge,
			fmt.Sprintf("%s exceeds %d MB", fh.Filename, maxUploadMB))
	}
	ct := fh.Header.Get("Content-Type")
	if ct != "" && !strings.HasPrefix(ct, "image/") {
		return service.ImageUpload{}, nil, echo.NewHTTPError(http.StatusBadRequest,
			fmt.Sprintf("%s is not an image", fh.Filename))
	}
	f, err := fh.Open()
	if err != nil {
		return service.ImageUpload{}, nil, echo.NewHTTPError(http.StatusBadRequest, "Failed to read upload")
	}
	return service.ImageUpload{
		Filename:    fh.Filename,
		ContentType: ct,
		Size:        fh.Size,
		Reader:      f,
	}, func() { f.Close() }, nil
}

func nonEmpty(values []string) []string {
	out := values[:0:0]
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
