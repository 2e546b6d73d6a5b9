package middleware

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/Ahnjunghyeon/test-login-sub000/internal/observability"
	"github.com/labstack/echo/v4"
)

// Metrics records request counts and latency by route template.
func Metrics() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			status := c.Response().Status
			var he *echo.HTTPError
			if errors.As(err, &he) {
				status = he.Code
			} else if err != nil {
				status = http.StatusInternalServerError
			}
			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			method := c.Request().Method
			observability.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
			observability.HTTPLatency.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
			return err
		}
	}
}
