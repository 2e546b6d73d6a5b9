package handlers

import (
	"log/slog"
	"net/http"

	"github.com/Ahnjunghyeon/test-login-sub000/internal/identity"
	"github.com/Ahnjunghyeon/test-login-sub000/internal/models"
	"github.com/Ahnjunghyeon/test-login-sub000/internal/service"
	"github.com/labstack/echo/v4"
)

// FeedHandler serves the composed home feed
type FeedHandler struct {
	composer *service.Composer
	logger   *slog.Logger
}

// NewFeedHandler creates a new FeedHandler
func NewFeedHandler(composer *service.Composer, logger *slog.Logger) *FeedHandler {
	return &FeedHandler{composer: composer, logger: logger}
}

// RegisterFeedRoutes registers the feed route; g should use optional auth
func (h *FeedHandler) RegisterFeedRoutes(g *echo.Group) {
	g.GET("/feed", h.GetFeed)
	g.GET("/categories", h.GetCategories)
}

// GetFeed composes the feed of the current user. Signed-out callers get an
// empty feed with signed_in=false.
func (h *FeedHandler) GetFeed(c echo.Context) error {
	page, err := pageFrom(c, 0)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	feed, err := h.composer.Compose(ctx, identity.SessionFrom(ctx), service.FeedOptions{
		Category: models.Category(c.QueryParam("category")),
		Limit:    page.Limit,
		Before:   page.Before,
	})
	if err != nil {
		return httpError(h.logger, err)
	}
	return c.JSON(http.StatusOK, feed)
}

// GetCategories lists the selectable post categories
func (h *FeedHandler) GetCategories(c echo.Context) error {
	return c.JSON(http.StatusOK, models.Categories)
}
