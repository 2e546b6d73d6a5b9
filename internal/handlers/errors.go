package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/Ahnjunghyeon/test-login-sub000/internal/models"
	"github.com/Ahnjunghyeon/test-login-sub000/internal/repositories"
	"github.com/labstack/echo/v4"
)

var statusByCode = map[string]int{
	models.CodeValidation:   http.StatusBadRequest,
	models.CodeNotFound:     http.StatusNotFound,
	models.CodeUnauthorized: http.StatusUnauthorized,
	models.CodeForbidden:    http.StatusForbidden,
	models.CodeConflict:     http.StatusConflict,
}

// httpError converts a service error into an echo.HTTPError. Internal details
// are logged, never returned.
func httpError(logger *slog.Logger, err error) error {
	if status, ok := statusByCode[models.ErrorCode(err)]; ok {
		return echo.NewHTTPError(status, messageOf(err))
	}
	logger.Error("request failed", "error", err)
	return echo.NewHTTPError(http.StatusInternalServerError, "Internal server error")
}

func messageOf(err error) string {
	var appErr *models.AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return err.Error()
}

// pageFrom reads limit and before (Unix milliseconds) query parameters.
func pageFrom(c echo.Context, defaultLimit int) (repositories.Page, error) {
	page := repositories.Page{Limit: defaultLimit}
	if v := c.QueryParam("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 || n > 100 {
			return page, echo.NewHTTPError(http.StatusBadRequest, "limit must be between 0 and 100")
		}
		page.Limit = n
	}
	if v := c.QueryParam("before"); v != "" {
		ms, err := strconv.ParseInt(v, 10, 64)
		if err != nil || ms <= 0 {
			return page, echo.NewHTTPError(http.StatusBadRequest, "before must be a millisecond timestamp")
		}
		page.Before = models.FromMillis(ms)
	}
	return page, nil
}
