package handlers

import (
	"log/slog"
	"net/http"

	"github.com/Ahnjunghyeon/test-login-sub000/internal/identity"
	"github.com/Ahnjunghyeon/test-login-sub000/internal/models"
	"github.com/Ahnjunghyeon/test-login-sub000/internal/service"
	"github.com/labstack/echo/v4"
)

// LikeHandler handles HTTP requests related to likes
type LikeHandler struct {
	tracker *service.Tracker
	logger  *slog.Logger
}

// NewLikeHandler creates a new LikeHandler
func NewLikeHandler(tracker *service.Tracker, logger *slog.Logger) *LikeHandler {
	return &LikeHandler{tracker: tracker, logger: logger}
}

// RegisterLikeRoutes registers like-related routes
func (h *LikeHandler) RegisterLikeRoutes(g *echo.Group) {
	g.POST("/users/:uid/posts/:post_id/like", h.ToggleLike)
	g.GET("/users/:uid/posts/:post_id/likes", h.GetLikeState)
}

func postRef(c echo.Context) models.PostRef {
	return models.PostRef{OwnerID: c.Param("uid"), PostID: c.Param("post_id")}
}

// ToggleLike likes the post, or removes the like when present
func (h *LikeHandler) ToggleLike(c echo.Context) error {
	ctx := c.Request().Context()
	state, err := h.tracker.ToggleLike(ctx, identity.SessionFrom(ctx), postRef(c))
	if err != nil {
		return httpError(h.logger, err)
	}
	return c.JSON(http.StatusOK, state)
}

// GetLikeState returns the like count and whether the caller liked the post
func (h *LikeHandler) GetLikeState(c echo.Context) error {
	ctx := c.Request().Context()
	state, err := h.tracker.LikeState(ctx, identity.SessionFrom(ctx), postRef(c))
	if err != nil {
		return httpError(h.logger, err)
	}
	return c.JSON(http.StatusOK, state)
}
