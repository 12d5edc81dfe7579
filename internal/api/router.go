// Package api exposes the buyer portal over HTTP under /api/v1.
//
// Every failure is answered as {"error": "<one line>"}. Intake failures after
// a successful OCR also carry the parsed fields.
package api

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"

	"buyerportal/internal/invoice"
)

// Config holds the HTTP settings.
type Config struct {
	// BodyLimitMB caps request bodies, uploads included. Default: 25.
	BodyLimitMB int

	// AllowOrigins is the CORS origin list. Default: "*".
	AllowOrigins string

	// FilesDir is served under /files when set.
	FilesDir string
}

// NewRouter builds the fiber app for svc.
func NewRouter(svc *invoice.Service, cfg Config) *fiber.App {
	if cfg.BodyLimitMB <= 0 {
		cfg.BodyLimitMB = 25
	}
	if cfg.AllowOrigins == "" {
		cfg.AllowOrigins = "*"
	}

	app := fiber.New(fiber.Config{
		AppName:               "buyerportal",
		BodyLimit:             cfg.BodyLimitMB * 1024 * 1024,
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler,
	})

	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(requestLogger())
	app.Use(cors.New(cors.Config{
		AllowOrigins: cfg.AllowOrigins,
		AllowMethods: "GET,POST,DELETE,OPTIONS",
		AllowHeaders: "Origin, Content-Type, Accept",
	}))

	if cfg.FilesDir != "" {
		app.Static("/files", cfg.FilesDir)
	}

	h := NewHandler(svc)

	v1 := app.Group("/api/v1")
	v1.Get("/health", h.Health)
	v1.Post("/extract", h.Extract)

	v1.Post("/invoices/upload", h.UploadInvoices)
	v1.Get("/invoices", h.ListInvoices)
	v1.Get("/invoices/export.csv", h.ExportCSV)
	v1.Get("/invoices/export.xlsx", h.ExportXLSX)
	v1.Get("/invoices/:id", h.GetInvoice)
	v1.Delete("/invoices/:id", h.DeleteInvoice)
	v1.Post("/invoices/:id/approve", h.ApproveInvoice)
	v1.Post("/invoices/:id/pay", h.PayInvoice)

	v1.Get("/dashboard/summary", h.Summary)
	v1.Get("/financing/options", h.FinancingOptions)
	v1.Post("/financing/quote", h.Quote)

	return app
}

func errorHandler(c *fiber.Ctx, err error) error {
	code := statusFor(err)

	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
	}

	if code >= fiber.StatusInternalServerError {
		log := requestLog(c)
		log.Error().Err(err).Int("status", code).Msg("Request failed")
	}

	return c.Status(code).JSON(fiber.Map{
		"error": err.Error(),
	})
}
