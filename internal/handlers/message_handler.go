package handlers

import (
	"log/slog"
	"net/http"

	"github.com/Ahnjunghyeon/test-login-sub000/internal/identity"
	"github.com/Ahnjunghyeon/test-login-sub000/internal/models"
	"github.com/Ahnjunghyeon/test-login-sub000/internal/service"
	"github.com/labstack/echo/v4"
)

// MessageHandler handles direct messages
type MessageHandler struct {
	messages *service.MessageService
	logger   *slog.Logger
}

// NewMessageHandler creates a new MessageHandler
func NewMessageHandler(messages *service.MessageService, logger *slog.Logger) *MessageHandler {
	return &MessageHandler{messages: messages, logger: logger}
}

// RegisterMessageRoutes registers message-related routes
func (h *MessageHandler) RegisterMessageRoutes(g *echo.Group) {
	g.GET("/messages", h.GetConversation)
	g.GET("/messages/inbox", h.GetInbox)
	g.POST("/messages", h.SendMessage)
	g.DELETE("/messages/:id", h.DeleteMessage)
}

// SendMessage writes the message to both mailboxes. A 202 means the
// receiver's copy could not be written.
func (h *MessageHandler) SendMessage(c echo.Context) error {
	var req models.SendMessageRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	ctx := c.Request().Context()
	res, err := h.messages.Send(ctx, identity.SessionFrom(ctx), req.ReceiverID, req.Content)
	if err != nil {
		return httpError(h.logger, err)
	}
	status := http.StatusCreated
	if !res.Delivered {
		status = http.StatusAccepted
	}
	return c.JSON(status, res)
}

// GetConversation returns the caller's copy of the conversation with ?with=
func (h *MessageHandler) GetConversation(c echo.Context) error {
	peer := c.QueryParam("with")
	if peer == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "with is required")
	}
	ctx := c.Request().Context()
	msgs, err := h.messages.Conversation(ctx, identity.SessionFrom(ctx), peer)
	if err != nil {
		return httpError(h.logger, err)
	}
	return c.JSON(http.StatusOK, msgs)
}

// GetInbox lists the caller's mailbox, newest first
func (h *MessageHandler) GetInbox(c echo.Context) error {
	page, err := pageFrom(c, 50)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	msgs, err := h.messages.Inbox(ctx, identity.SessionFrom(ctx), page)
	if err != nil {
		return httpError(h.logger, err)
	}
	return c.JSON(http.StatusOK, msgs)
}

// DeleteMessage removes the caller's copy only
func (h *MessageHandler) DeleteMessage(c echo.Context) error {
	ctx := c.Request().Context()
	if err := h.messages.DeleteCopy(ctx, identity.SessionFrom(ctx), c.Param("id")); err != nil {
		return httpError(h.logger, err)
	}
	return c.NoContent(http.StatusNoContent)
}
