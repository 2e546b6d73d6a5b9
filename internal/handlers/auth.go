package handlers

import (
	"log/slog"
	"net/http"

	"github.com/Ahnjunghyeon/test-login-sub000/internal/identity"
	"github.com/Ahnjunghyeon/test-login-sub000/internal/models"
	"github.com/labstack/echo/v4"
)

// AuthHandler handles authentication-related HTTP requests
type AuthHandler struct {
	identity *identity.Service
	logger   *slog.Logger
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(svc *identity.Service, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{identity: svc, logger: logger}
}

// RegisterAuthRoutes registers the public sign-in routes
func (h *AuthHandler) RegisterAuthRoutes(g *echo.Group) {
	g.POST("/signup", h.Signup)
	g.POST("/signin", h.SignIn)
	g.POST("/firebase-login", h.FirebaseLogin)
}

// RegisterSessionRoutes registers routes that need a session
func (h *AuthHandler) RegisterSessionRoutes(g *echo.Group) {
	g.POST("/auth/signout", h.SignOut)
	g.GET("/auth/session", h.CurrentSession)
}

// Signup handles local user registration with email and password
func (h *AuthHandler) Signup(c echo.Context) error {
	var req models.SignUpRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	res, err := h.identity.SignUp(c.Request().Context(), req)
	if err != nil {
		return httpError(h.logger, err)
	}
	return c.JSON(http.StatusCreated, res)
}

// SignIn handles local user login with email and password
func (h *AuthHandler) SignIn(c echo.Context) error {
	var req models.SignInRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	res, err := h.identity.SignIn(c.Request().Context(), req)
	if err != nil {
		return httpError(h.logger, err)
	}
	return c.JSON(http.StatusOK, res)
}

// FirebaseLogin exchanges a Firebase ID token, obtained by the browser
// through a federated sign-in, for a session token.
func (h *AuthHandler) FirebaseLogin(c echo.Context) error {
	var req models.FirebaseLoginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	res, err := h.identity.FirebaseSignIn(c.Request().Context(), req.IDToken)
	if err != nil {
		return httpError(h.logger, err)
	}
	return c.JSON(http.StatusOK, res)
}

// SignOut revokes the current session token
func (h *AuthHandler) SignOut(c echo.Context) error {
	sess := identity.SessionFrom(c.Request().Context())
	if err := h.identity.SignOut(c.Request().Context(), sess); err != nil {
		return httpError(h.logger, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// CurrentSession returns the session resolved from the bearer token
func (h *AuthHandler) CurrentSession(c echo.Context) error {
	return c.JSON(http.StatusOK, identity.SessionFrom(c.Request().Context()))
}
