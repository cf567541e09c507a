// Package api serves a workflow.Store over HTTP with fiber.
//
// Routes:
//
//	GET    /api/workflows?agent_id=     list workflows
//	POST   /api/workflows               create a workflow
//	GET    /api/workflows/:id           load a workflow
//	PUT    /api/workflows/:id           apply the fields sent (name, description, agent_id, nodes, edges, workflow_markdown)
//	DELETE /api/workflows/:id           delete a workflow
//	GET    /api/components?type=&category=
//	GET    /api/components/tree
//	GET    /api/components/search?q=
//	GET    /api/components/:id
//	GET    /api/components/:id/export   component plus, for agents, its workflows
//	POST   /api/components
//	PUT    /api/components/:id
//	DELETE /api/components/:id
//	POST   /schema, DELETE /schema
//	GET    /metrics
package api

import (
	"errors"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	recoverer "github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/meikuraledutech/workflow"
)

type handler struct {
	store    workflow.Store
	log      *slog.Logger
	validate *validator.Validate
}

// New builds the fiber application serving store. A nil logger means
// slog.Default().
func New(store workflow.Store, logger *slog.Logger) *fiber.App {
	if logger == nil {
		logger = slog.Default()
	}
	h := &handler{store: store, log: logger, validate: validator.New()}

	app := fiber.New(fiber.Config{
		AppName:      "workflowd",
		ErrorHandler: h.errorHandler,
	})
	app.Use(recoverer.New())
	app.Use(requestLogger(logger))
	app.Use(instrument)

	app.Get("/metrics", metricsHandler())

	// ── Schema ────────────────────────────────────────────────────────
	app.Post("/schema", func(c fiber.Ctx) error {
		if err := store.CreateSchema(c.Context()); err != nil {
			return h.fail(c, err)
		}
		return c.JSON(fiber.Map{"message": "schema created"})
	})

	app.Delete("/schema", func(c fiber.Ctx) error {
		if err := store.DropSchema(c.Context()); err != nil {
			return h.fail(c, err)
		}
		return c.JSON(fiber.Map{"message": "schema dropped"})
	})

	r := app.Group("/api")

	// ── Workflows ─────────────────────────────────────────────────────
	r.Get("/workflows", h.listWorkflows)
	r.Post("/workflows", h.createWorkflow)
	r.Get("/workflows/:id", h.getWorkflow)
	r.Put("/workflows/:id", h.updateWorkflow)
	r.Delete("/workflows/:id", h.deleteWorkflow)

	// ── Components ────────────────────────────────────────────────────
	r.Get("/components", h.listComponents)
	r.Get("/components/tree", h.componentTree)
	r.Get("/components/search", h.searchComponents)
	r.Get("/components/:id", h.getComponent)
	r.Get("/components/:id/export", h.exportComponent)
	r.Post("/components", h.createComponent)
	r.Put("/components/:id", h.updateComponent)
	r.Delete("/components/:id", h.deleteComponent)

	return app
}

// statusOf maps store and model errors to HTTP status codes.
func statusOf(err error) int {
	switch {
	case errors.Is(err, workflow.ErrEmptyUpdate):
		return fiber.StatusBadRequest
	case errors.Is(err, workflow.ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, workflow.ErrDanglingEdge),
		errors.Is(err, workflow.ErrDuplicateID),
		errors.Is(err, workflow.ErrInvalidKind):
		return fiber.StatusUnprocessableEntity
	}
	return fiber.StatusInternalServerError
}

func (h *handler) fail(c fiber.Ctx, err error) error {
	status := statusOf(err)
	if status == fiber.StatusInternalServerError {
		h.log.Error("request failed", "method", c.Method(), "path", c.Path(), "error", err)
	}
	return c.Status(status).JSON(fiber.Map{"error": err.Error()})
}

func badRequest(c fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": msg})
}

func (h *handler) errorHandler(c fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
	}
	if code == fiber.StatusInternalServerError {
		h.log.Error("unhandled error", "method", c.Method(), "path", c.Path(), "error", err)
	}
	return c.Status(code).JSON(fiber.Map{"error": err.Error()})
}

func requestLogger(logger *slog.Logger) fiber.Handler {
	return func(c fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		logger.Info("request",
			"method", c.Method(),
			"path", c.Path(),
			"status", responseStatus(c, err),
			"latency", time.Since(start),
		)
		return err
	}
}

// responseStatus is the status the client will see, including errors the
// error handler has not written yet.
func responseStatus(c fiber.Ctx, err error) int {
	if err == nil {
		return c.Response().StatusCode()
	}
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return fe.Code
	}
	return fiber.StatusInternalServerError
}
