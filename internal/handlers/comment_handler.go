package handlers

import (
	"log/slog"
	"net/http"

	"github.com/Ahnjunghyeon/test-login-sub000/internal/identity"
	"github.com/Ahnjunghyeon/test-login-sub000/internal/models"
	"github.com/Ahnjunghyeon/test-login-sub000/internal/service"
	"github.com/labstack/echo/v4"
)

// CommentHandler handles HTTP requests related to comments
type CommentHandler struct {
	tracker *service.Tracker
	logger  *slog.Logger
}

// NewCommentHandler creates a new CommentHandler
func NewCommentHandler(tracker *service.Tracker, logger *slog.Logger) *CommentHandler {
	return &CommentHandler{tracker: tracker, logger: logger}
}

// RegisterCommentRoutes registers comment-related routes
func (h *CommentHandler) RegisterCommentRoutes(g *echo.Group) {
	g.GET("/users/:uid/posts/:post_id/comments", h.GetCommentsForPost)
	g.POST("/users/:uid/posts/:post_id/comments", h.CreateComment)
	g.PUT("/users/:uid/posts/:post_id/comments/:comment_id", h.UpdateComment)
	g.DELETE("/users/:uid/posts/:post_id/comments/:comment_id", h.DeleteComment)
}

// CreateComment handles creating a new comment on a post
func (h *CommentHandler) CreateComment(c echo.Context) error {
	var req models.CreateCommentRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	ctx := c.Request().Context()
	comment, err := h.tracker.AddComment(ctx, identity.SessionFrom(ctx), postRef(c), req.Content)
	if err != nil {
		return httpError(h.logger, err)
	}
	return c.JSON(http.StatusCreated, comment)
}

// GetCommentsForPost lists the comments of a post, oldest first
func (h *CommentHandler) GetCommentsForPost(c echo.Context) error {
	comments, err := h.tracker.ListComments(c.Request().Context(), postRef(c))
	if err != nil {
		return httpError(h.logger, err)
	}
	return c.JSON(http.StatusOK, comments)
}

// UpdateComment changes the text of the caller's own comment
func (h *CommentHandler) UpdateComment(c echo.Context) error {
	var req models.UpdateCommentRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	ctx := c.Request().Context()
	comment, err := h.tracker.UpdateComment(ctx, identity.SessionFrom(ctx), postRef(c), c.Param("comment_id"), req.Content)
	if err != nil {
		return httpError(h.logger, err)
	}
	return c.JSON(http.StatusOK, comment)
}

// DeleteComment removes the caller's own comment
func (h *CommentHandler) DeleteComment(c echo.Context) error {
	ctx := c.Request().Context()
	if err := h.tracker.DeleteComment(ctx, identity.SessionFrom(ctx), postRef(c), c.Param("comment_id")); err != nil {
		return httpError(h.logger, err)
	}
	return c.NoContent(http.StatusNoContent)
}
