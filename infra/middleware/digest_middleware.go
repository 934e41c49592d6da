// Package middleware holds the fiber middleware chain: request ids,
// request logging, panic recovery, and the central error handler.
package middleware

import (
	"runtime/debug"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/jkoufopoulos/shopq-prototype-sub001/pkg/apperr"
	"github.com/jkoufopoulos/shopq-prototype-sub001/pkg/logger"
	"github.com/jkoufopoulos/shopq-prototype-sub001/pkg/response"
)

// RequestID assigns each request a unique id, echoes it in X-Request-ID,
// and threads it through the user context so downstream logs carry it.
func RequestID() fiber.Handler {
	return func(c *fiber.Ctx) error {
		requestID := c.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Locals("request_id", requestID)
		c.Set("X-Request-ID", requestID)
		c.SetUserContext(logger.WithRequestID(c.UserContext(), requestID))
		return c.Next()
	}
}

// RequestLogger logs one line per completed request.
func RequestLogger() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		log := logger.FromContext(c.UserContext())
		event := log.Info()
		switch {
		case status >= 500:
			event = log.Error()
		case status >= 400:
			event = log.Warn()
		}
		event.
			Str("method", c.Method()).
			Str("path", c.Path()).
			Int("status", status).
			Dur("elapsed", time.Since(start)).
			Str("ip", c.IP()).
			Msg("request complete")
		return err
	}
}

// Recover converts panics into 500 responses instead of dropped
// connections.
func Recover() fiber.Handler {
	return func(c *fiber.Ctx) error {
		defer func() {
			if r := recover(); r != nil {
				log := logger.FromContext(c.UserContext())
				log.Error().
					Interface("panic", r).
					Str("path", c.Path()).
					Str("stack", string(debug.Stack())).
					Msg("panic recovered")
				_ = response.Error(c, fiber.StatusInternalServerError,
					apperr.CodeInternalError, "an unexpected error occurred")
			}
		}()
		return c.Next()
	}
}

// ErrorHandler is the fiber app-level error handler.
func ErrorHandler() fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		if fe, ok := err.(*fiber.Error); ok {
			return response.Error(c, fe.Code, apperr.CodeInternalError, fe.Message)
		}
		return response.FromError(c, err)
	}
}
