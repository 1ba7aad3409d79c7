package http

import (
	"context"
	"fmt"

	"github.com/gofiber/fiber/v2"

	"github.com/melih/lighthouse-dash/internal/core/domain"
	"github.com/melih/lighthouse-dash/internal/core/services/lifecycle"
	"github.com/melih/lighthouse-dash/internal/core/services/system"
)

// Pruner removes unused runtime objects.
type Pruner interface {
	Prune(ctx context.Context, objects []string) (domain.PruneReport, error)
	Reject(ctx context.Context, err error)
}

type SystemHandler struct {
	pruner Pruner
}

func NewSystemHandler(pruner Pruner) *SystemHandler {
	return &SystemHandler{pruner: pruner}
}

type PruneRequest struct {
	ObjectsToPrune []string `json:"objectsToPrune"`
}

func (h *SystemHandler) Prune(c *fiber.Ctx) error {
	var req PruneRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			err = fmt.Errorf("%w: %v", lifecycle.ErrMalformedRequest, err)
			h.pruner.Reject(c.Context(), err)
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"message": "API error, please try again: " + err.Error(),
			})
		}
	}

	report, err := h.pruner.Prune(c.Context(), req.ObjectsToPrune)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "API error, please try again: " + err.Error(),
			"report":  report,
		})
	}
	return c.JSON(fiber.Map{
		"message": system.Summary(report),
		"report":  report,
	})
}
