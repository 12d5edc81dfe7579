package api

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"buyerportal/internal/logger"
)

// requestLogger writes one access log event per request.
func requestLogger() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			status = statusFor(err)
			if fe, ok := err.(*fiber.Error); ok {
				status = fe.Code
			}
		}

		log := requestLog(c)
		event := log.Info()
		if status >= fiber.StatusInternalServerError {
			event = log.Warn()
		}
		event.
			Str("method", c.Method()).
			Str("path", c.Path()).
			Int("status", status).
			Dur("duration", time.Since(start)).
			Msg("HTTP request")

		return err
	}
}

// requestLog returns the api logger tagged with the request id.
func requestLog(c *fiber.Ctx) zerolog.Logger {
	id, _ := c.Locals("requestid").(string)
	if id == "" {
		return logger.WithComponent("api")
	}
	return logger.WithRequestID("api", id)
}
