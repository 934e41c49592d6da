// Package http exposes the digest service over fiber.
package http

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/jkoufopoulos/shopq-prototype-sub001/core/service"
	"github.com/jkoufopoulos/shopq-prototype-sub001/pkg/response"
)

// maxBatchSize caps the email batch of one generate call.
const maxBatchSize = 500

// DigestHandler serves digest generation and history.
type DigestHandler struct {
	service *service.DigestService
}

func NewDigestHandler(svc *service.DigestService) *DigestHandler {
	return &DigestHandler{service: svc}
}

func (h *DigestHandler) Register(app *fiber.App) {
	v1 := app.Group("/v1")
	v1.Post("/digest", h.Generate)
	v1.Get("/digest/history", h.History)
}

// Generate runs the pipeline over the posted email batch. The response
// is always 200 with a digest; degraded runs are flagged in the body.
func (h *DigestHandler) Generate(c *fiber.Ctx) error {
	var req service.GenerateRequest
	if err := c.BodyParser(&req); err != nil {
		return response.Error(c, fiber.StatusBadRequest, "BAD_REQUEST", "invalid request body")
	}
	if len(req.Emails) == 0 {
		return response.Error(c, fiber.StatusBadRequest, "BAD_REQUEST", "emails must not be empty")
	}
	if len(req.Emails) > maxBatchSize {
		return response.Error(c, fiber.StatusBadRequest, "BAD_REQUEST", "email batch too large")
	}
	for i := range req.Emails {
		if req.Emails[i].ID == "" {
			return response.Error(c, fiber.StatusBadRequest, "BAD_REQUEST", "every email needs an id")
		}
	}

	if userID := c.Query("user_id"); userID != "" {
		h.service.ResolvePreferences(c.UserContext(), userID, &req)
	}

	resp := h.service.Generate(c.UserContext(), &req)
	return response.OK(c, resp)
}

// History returns recent digest runs, newest first.
func (h *DigestHandler) History(c *fiber.Ctx) error {
	limit, _ := strconv.Atoi(c.Query("limit", "20"))
	records, err := h.service.History(c.UserContext(), limit)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.OK(c, records)
}

// HealthHandler reports liveness and the pipeline's stage order.
type HealthHandler struct {
	service *service.DigestService
}

func NewHealthHandler(svc *service.DigestService) *HealthHandler {
	return &HealthHandler{service: svc}
}

func (h *HealthHandler) Register(app *fiber.App) {
	app.Get("/healthz", h.Health)
}

func (h *HealthHandler) Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":    "ok",
		"stages":    h.service.StageNames(),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
