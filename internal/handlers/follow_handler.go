package handlers

import (
	"log/slog"
	"net/http"

	"github.com/Ahnjunghyeon/test-login-sub000/internal/identity"
	"github.com/Ahnjunghyeon/test-login-sub000/internal/service"
	"github.com/labstack/echo/v4"
)

// FollowHandler handles HTTP requests related to follow edges
type FollowHandler struct {
	follows *service.FollowService
	logger  *slog.Logger
}

// NewFollowHandler creates a new FollowHandler
func NewFollowHandler(follows *service.FollowService, logger *slog.Logger) *FollowHandler {
	return &FollowHandler{follows: follows, logger: logger}
}

// RegisterFollowRoutes registers follow-related routes
func (h *FollowHandler) RegisterFollowRoutes(g *echo.Group) {
	g.POST("/users/:uid/follow", h.FollowUser)
	g.DELETE("/users/:uid/follow", h.UnfollowUser)
	g.GET("/users/:uid/following", h.GetFollowing)
	g.GET("/users/:uid/followers", h.GetFollowers)
}

// FollowUser makes the current user follow :uid
func (h *FollowHandler) FollowUser(c echo.Context) error {
	ctx := c.Request().Context()
	if err := h.follows.Follow(ctx, identity.SessionFrom(ctx), c.Param("uid")); err != nil {
		return httpError(h.logger, err)
	}
	return c.JSON(http.StatusOK, map[string]bool{"following": true})
}

// UnfollowUser removes the follow edge to :uid
func (h *FollowHandler) UnfollowUser(c echo.Context) error {
	ctx := c.Request().Context()
	if err := h.follows.Unfollow(ctx, identity.SessionFrom(ctx), c.Param("uid")); err != nil {
		return httpError(h.logger, err)
	}
	return c.JSON(http.StatusOK, map[string]bool{"following": false})
}

// GetFollowing lists who :uid follows
func (h *FollowHandler) GetFollowing(c echo.Context) error {
	users, err := h.follows.ListFollowing(c.Request().Context(), c.Param("uid"))
	if err != nil {
		return httpError(h.logger, err)
	}
	return c.JSON(http.StatusOK, users)
}

// GetFollowers lists who follows :uid
func (h *FollowHandler) GetFollowers(c echo.Context) error {
	users, err := h.follows.ListFollowers(c.Request().Context(), c.Param("uid"))
	if err != nil {
		return httpError(h.logger, err)
	}
	return c.JSON(http.StatusOK, users)
}
