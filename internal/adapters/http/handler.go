package http

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"github.com/melih/lighthouse-dash/internal/core/domain"
	"github.com/melih/lighthouse-dash/internal/core/ports"
	"github.com/melih/lighthouse-dash/internal/core/services/lifecycle"
)

// BatchDispatcher runs action batches and reports requests it refused.
type BatchDispatcher interface {
	Dispatch(ctx context.Context, req domain.ActionRequest) (*lifecycle.BatchResult, error)
	Reject(ctx context.Context, err error)
}

// IDsRequest is the body of every id based batch endpoint.
type IDsRequest struct {
	IDs []string `json:"ids"`
}

type ContainerHandler struct {
	service    ports.ContainerService
	dispatcher BatchDispatcher
	log        *slog.Logger
}

func NewContainerHandler(service ports.ContainerService, dispatcher BatchDispatcher, log *slog.Logger) *ContainerHandler {
	if log == nil {
		log = slog.Default()
	}
	return &ContainerHandler{service: service, dispatcher: dispatcher, log: log}
}

// Action applies the :action path parameter to every id in the body.
func (h *ContainerHandler) Action(c *fiber.Ctx) error {
	action := domain.Action(c.Params("action"))
	if !isContainerAction(action) {
		err := fmt.Errorf("%w: unknown container action %q", lifecycle.ErrMalformedRequest, action)
		h.dispatcher.Reject(c.Context(), err)
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"message": err.Error()})
	}
	return dispatchIDs(c, h.dispatcher, action)
}

type CreateContainerRequest struct {
	Image string `json:"image"`
}

// CreateContainer creates a container from an image, pulling it first if needed.
func (h *ContainerHandler) CreateContainer(c *fiber.Ctx) error {
	var req CreateContainerRequest
	if err := c.BodyParser(&req); err != nil {
		return reject(c, h.dispatcher, err)
	}
	return dispatch(c, h.dispatcher, domain.ActionRequest{
		Action:  domain.ActionCreate,
		Payload: &domain.Payload{Image: req.Image},
	})
}

// ListContainers lists containers. ?all=false restricts to running ones.
func (h *ContainerHandler) ListContainers(c *fiber.Ctx) error {
	containers, err := h.service.ListContainers(c.Context(), c.QueryBool("all", true))
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	if containers == nil {
		containers = []domain.Container{}
	}
	return c.JSON(containers)
}

// Info returns the runtime's full inspect payload for one container.
func (h *ContainerHandler) Info(c *fiber.Ctx) error {
	raw, err := h.service.InspectContainerRaw(c.Context(), c.Params("id"))
	if err != nil {
		status := fiber.StatusInternalServerError
		if errors.Is(err, ports.ErrNotFound) {
			status = fiber.StatusNotFound
		}
		return c.Status(status).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	return c.Send(raw)
}

func (h *ContainerHandler) GetContainerLogs(c *fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Container ID is required",
		})
	}

	logs, err := h.service.GetContainerLogs(c.Context(), id)
	if err != nil {
		status := fiber.StatusInternalServerError
		if errors.Is(err, ports.ErrNotFound) {
			status = fiber.StatusNotFound
		}
		return c.Status(status).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	// SendStream closes the reader once the body is written.
	c.Set(fiber.HeaderContentType, fiber.MIMETextPlainCharsetUTF8)
	return c.SendStream(logs)
}

func isContainerAction(a domain.Action) bool {
	for _, known := range domain.ContainerActions {
		if a == known {
			return true
		}
	}
	return false
}

// dispatchIDs parses an IDsRequest and runs action over it. A body without
// an ids field is malformed; an empty list is a no-op.
func dispatchIDs(c *fiber.Ctx, d BatchDispatcher, action domain.Action) error {
	var req IDsRequest
	if err := c.BodyParser(&req); err != nil {
		return reject(c, d, err)
	}
	if req.IDs == nil {
		return reject(c, d, errors.New("missing ids"))
	}
	return dispatch(c, d, domain.ActionRequest{IDs: req.IDs, Action: action})
}

// dispatch runs a batch and answers 200 when anything succeeded (or there was
// nothing to do) and 400 otherwise.
func dispatch(c *fiber.Ctx, d BatchDispatcher, req domain.ActionRequest) error {
	res, err := d.Dispatch(c.Context(), req)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "API error, please try again: " + err.Error(),
		})
	}
	status := fiber.StatusOK
	if !res.OK() {
		status = fiber.StatusBadRequest
	}
	return c.Status(status).JSON(fiber.Map{
		"message":  res.Message(),
		"batch_id": res.ID,
		"outcomes": res.Outcomes,
	})
}

// reject answers a request that could not be parsed.
func reject(c *fiber.Ctx, d BatchDispatcher, cause error) error {
	err := fmt.Errorf("%w: %v", lifecycle.ErrMalformedRequest, cause)
	d.Reject(c.Context(), err)
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"message": "API error, please try again: " + err.Error(),
	})
}
