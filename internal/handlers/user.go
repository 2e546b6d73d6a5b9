package handlers

import (
	"log/slog"
	"net/http"

	"github.com/Ahnjunghyeon/test-login-sub000/internal/identity"
	"github.com/Ahnjunghyeon/test-login-sub000/internal/models"
	"github.com/Ahnjunghyeon/test-login-sub000/internal/service"
	"github.com/labstack/echo/v4"
)

// UserHandler handles HTTP requests related to user profiles
type UserHandler struct {
	profiles    *service.ProfileService
	maxUploadMB int64
	logger      *slog.Logger
}

// NewUserHandler creates a new UserHandler
func NewUserHandler(profiles *service.ProfileService, maxUploadMB int64, logger *slog.Logger) *UserHandler {
	return &UserHandler{profiles: profiles, maxUploadMB: maxUploadMB, logger: logger}
}

// RegisterProfileRoutes registers user profile-related routes
func (h *UserHandler) RegisterProfileRoutes(g *echo.Group) {
	g.GET("/me", h.GetProfile)
	g.PUT("/me", h.UpdateProfile)
	g.POST("/me/photo", h.UploadPhoto)
	g.GET("/users/search", h.SearchUsers)
	g.GET("/users/:uid", h.GetUser)
}

// GetUser returns another user's profile; unknown users get a placeholder
func (h *UserHandler) GetUser(c echo.Context) error {
	ctx := c.Request().Context()
	profile, err := h.profiles.Get(ctx, identity.SessionFrom(ctx), c.Param("uid"))
	if err != nil {
		return httpError(h.logger, err)
	}
	return c.JSON(http.StatusOK, profile)
}

// GetProfile retrieves the authenticated user's profile
func (h *UserHandler) GetProfile(c echo.Context) error {
	ctx := c.Request().Context()
	sess := identity.SessionFrom(ctx)
	profile, err := h.profiles.Get(ctx, sess, sess.UserID)
	if err != nil {
		return httpError(h.logger, err)
	}
	return c.JSON(http.StatusOK, profile)
}

// UpdateProfile changes the display name and/or photo URL
func (h *UserHandler) UpdateProfile(c echo.Context) error {
	var req models.UpdateProfileRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	ctx := c.Request().Context()
	user, err := h.profiles.Update(ctx, identity.SessionFrom(ctx), req)
	if err != nil {
		return httpError(h.logger, err)
	}
	return c.JSON(http.StatusOK, user)
}

// UploadPhoto replaces the profile photo with the multipart "photo" file
func (h *UserHandler) UploadPhoto(c echo.Context) error {
	fh, err := c.FormFile("photo")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "photo file is required")
	}
	upload, closeFn, err := openImage(fh, h.maxUploadMB)
	if err != nil {
		return err
	}
	defer closeFn()

	ctx := c.Request().Context()
	user, err := h.profiles.UploadPhoto(ctx, identity.SessionFrom(ctx), upload)
	if err != nil {
		return httpError(h.logger, err)
	}
	return c.JSON(http.StatusOK, user)
}

// SearchUsers finds users by display name prefix
func (h *UserHandler) SearchUsers(c echo.Context) error {
	page, err := pageFrom(c, 20)
	if err != nil {
		return err
	}
	users, err := h.profiles.Search(c.Request().Context(), c.QueryParam("q"), page.Limit)
	if err != nil {
		return httpError(h.logger, err)
	}
	return c.JSON(http.StatusOK, users)
}
