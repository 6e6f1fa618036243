package api

import (
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

const (
	// HeaderCorrelationID carries a request-scoped identifier through the
	// service and back to the caller.
	HeaderCorrelationID = "X-Correlation-ID"

	// ContextKeyCorrelationID is the echo context key the middleware sets.
	ContextKeyCorrelationID = "correlation_id"
)

// CorrelationIDMiddleware reads the caller-supplied correlation ID or
// generates one, exposes it on the echo context and echoes it back in the
// response headers.
func CorrelationIDMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id := c.Request().Header.Get(HeaderCorrelationID)
			if id == "" {
				id = uuid.NewString()
			}
			c.Set(ContextKeyCorrelationID, id)
			c.Response().Header().Set(HeaderCorrelationID, id)
			return next(c)
		}
	}
}
