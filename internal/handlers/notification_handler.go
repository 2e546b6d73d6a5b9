package handlers

import (
	"log/slog"
	"net/http"

	"github.com/Ahnjunghyeon/test-login-sub000/internal/identity"
	"github.com/Ahnjunghyeon/test-login-sub000/internal/service"
	"github.com/labstack/echo/v4"
)

// NotificationHandler handles HTTP requests related to notifications
type NotificationHandler struct {
	notifications *service.NotificationService
	logger        *slog.Logger
}

// NewNotificationHandler creates a new NotificationHandler
func NewNotificationHandler(notifications *service.NotificationService, logger *slog.Logger) *NotificationHandler {
	return &NotificationHandler{notifications: notifications, logger: logger}
}

// RegisterNotificationRoutes registers notification-related routes
func (h *NotificationHandler) RegisterNotificationRoutes(g *echo.Group) {
	g.GET("/notifications", h.GetNotifications)
	g.GET("/notifications/unread-count", h.GetUnreadCount)
	g.PUT("/notifications/read-all", h.MarkAllAsRead)
	g.PUT("/notifications/:id/read", h.MarkAsRead)
	g.DELETE("/notifications/:id", h.DeleteNotification)
}

// GetNotifications lists the caller's notifications, newest first
func (h *NotificationHandler) GetNotifications(c echo.Context) error {
	page, err := pageFrom(c, 50)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	list, err := h.notifications.List(ctx, identity.SessionFrom(ctx), page)
	if err != nil {
		return httpError(h.logger, err)
	}
	return c.JSON(http.StatusOK, list)
}

// GetUnreadCount returns the number of unread notifications
func (h *NotificationHandler) GetUnreadCount(c echo.Context) error {
	ctx := c.Request().Context()
	n, err := h.notifications.UnreadCount(ctx, identity.SessionFrom(ctx))
	if err != nil {
		return httpError(h.logger, err)
	}
	return c.JSON(http.StatusOK, map[string]int{"unread": n})
}

// MarkAsRead marks one notification as read
func (h *NotificationHandler) MarkAsRead(c echo.Context) error {
	ctx := c.Request().Context()
	if err := h.notifications.MarkRead(ctx, identity.SessionFrom(ctx), c.Param("id")); err != nil {
		return httpError(h.logger, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// MarkAllAsRead marks every unread notification as read
func (h *NotificationHandler) MarkAllAsRead(c echo.Context) error {
	ctx := c.Request().Context()
	n, err := h.notifications.MarkAllRead(ctx, identity.SessionFrom(ctx))
	if err != nil {
		return httpError(h.logger, err)
	}
	return c.JSON(http.StatusOK, map[string]int{"updated": n})
}

// DeleteNotification removes one notification
func (h *NotificationHandler) DeleteNotification(c echo.Context) error {
	ctx := c.Request().Context()
	if err := h.notifications.Delete(ctx, identity.SessionFrom(ctx), c.Param("id")); err != nil {
		return httpError(h.logger, err)
	}
	return c.NoContent(http.StatusNoContent)
}
