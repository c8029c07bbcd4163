package api

import (
	"github.com/google/uuid"
	"github.com/labstack/echo/v5"
)

type apiError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

func writeError(c *echo.Context, status int, errType, msg string) error {
	return c.JSON(status, map[string]any{
		"error": apiError{
			Message: msg,
			Type:    errType,
		},
	})
}

// RequestID tags every response with a fresh request ID header.
func RequestID() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c *echo.Context) error {
			c.Response().Header().Set("X-Request-Id", "req_"+uuid.NewString())
			return next(c)
		}
	}
}
