package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/Ahnjunghyeon/test-login-sub000/internal/identity"
	"github.com/Ahnjunghyeon/test-login-sub000/internal/observability"
	"github.com/Ahnjunghyeon/test-login-sub000/internal/service"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

const (
	writeWait  = 10 * time.Second
	pingPeriod = 30 * time.Second
)

// LiveHandler pushes like states and unread notifications over WebSocket.
// A stream ends when the client goes away or the session that opened it signs out.
type LiveHandler struct {
	tracker       *service.Tracker
	notifications *service.NotificationService
	events        *identity.Events
	upgrader      websocket.Upgrader
	logger        *slog.Logger
}

// NewLiveHandler creates a new LiveHandler. allowOrigin decides which
// browser origins may open a stream.
func NewLiveHandler(tracker *service.Tracker, notifications *service.NotificationService,
	events *identity.Events, allowOrigin func(origin string) bool, logger *slog.Logger) *LiveHandler {
	return &LiveHandler{
		tracker:       tracker,
		notifications: notifications,
		events:        events,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || allowOrigin(origin)
			},
		},
		logger: logger.With("component", "live"),
	}
}

// RegisterLiveRoutes registers the stream routes
func (h *LiveHandler) RegisterLiveRoutes(g *echo.Group) {
	g.GET("/users/:uid/posts/:post_id/likes/live", h.LikesLive)
	g.GET("/notifications/live", h.NotificationsLive)
}

// LikesLive streams the caller's like state of one post
func (h *LiveHandler) LikesLive(c echo.Context) error {
	ref := postRef(c)
	return serveLive(h, c, "likes", func(ctx context.Context, sess *identity.Session) (<-chan any, error) {
		states, err := h.tracker.WatchLikes(ctx, sess, ref)
		if err != nil {
			return nil, err
		}
		return forward(ctx, states), nil
	})
}

// NotificationsLive streams the caller's unread notifications
func (h *LiveHandler) NotificationsLive(c echo.Context) error {
	return serveLive(h, c, "notifications", func(ctx context.Context, sess *identity.Session) (<-chan any, error) {
		lists, err := h.notifications.Watch(ctx, sess)
		if err != nil {
			return nil, err
		}
		return forward(ctx, lists), nil
	})
}

func forward[T any](ctx context.Context, in <-chan T) <-chan any {
	out := make(chan any)
	go func() {
		defer close(out)
		for v := range in {
			select {
			case out <- v:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

type openFunc func(ctx context.Context, sess *identity.Session) (<-chan any, error)

func serveLive(h *LiveHandler, c echo.Context, kind string, open openFunc) error {
	sess := identity.SessionFrom(c.Request().Context())
	if sess == nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "Sign in required")
	}

	ctx, cancel := context.WithCancel(c.Request().Context())
	defer cancel()

	events, unsubscribe := h.events.Subscribe(sess.UserID)
	defer unsubscribe()

	updates, err := open(ctx, sess)
	if err != nil {
		return httpError(h.logger, err)
	}

	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "kind", kind, "error", err)
		return nil
	}
	defer conn.Close()

	gauge := observability.LiveStreams.WithLabelValues(kind)
	gauge.Inc()
	defer gauge.Dec()

	// Incoming frames are ignored; a read error means the client left.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-events:
			if ev.Ends(sess) {
				closeWith(conn, websocket.CloseNormalClosure, "signed out")
				return nil
			}
		case v, ok := <-updates:
			if !ok {
				closeWith(conn, websocket.CloseGoingAway, "stream ended")
				return nil
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(v); err != nil {
				h.logger.Debug("websocket write failed", "kind", kind, "error", err)
				return nil
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return nil
			}
		}
	}
}

func closeWith(conn *websocket.Conn, code int, reason string) {
	msg := websocket.FormatCloseMessage(code, reason)
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
}
