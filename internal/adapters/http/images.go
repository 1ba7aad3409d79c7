package http

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"github.com/melih/lighthouse-dash/internal/core/domain"
	"github.com/melih/lighthouse-dash/internal/core/ports"
)

type ImageHandler struct {
	service    ports.ImageService
	dispatcher BatchDispatcher
	log        *slog.Logger
}

func NewImageHandler(service ports.ImageService, dispatcher BatchDispatcher, log *slog.Logger) *ImageHandler {
	if log == nil {
		log = slog.Default()
	}
	return &ImageHandler{service: service, dispatcher: dispatcher, log: log}
}

type PullImageRequest struct {
	Image string `json:"image"`
	Tag   string `json:"tag"`
}

type BuildImageRequest struct {
	Image   string `json:"image"`
	RepoURL string `json:"repo_url"`
}

func (h *ImageHandler) ListImages(c *fiber.Ctx) error {
	images, err := h.service.ListImages(c.Context())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	if images == nil {
		images = []domain.Image{}
	}
	return c.JSON(images)
}

// PullImage pulls image:tag; the tag defaults to latest.
func (h *ImageHandler) PullImage(c *fiber.Ctx) error {
	var req PullImageRequest
	if err := c.BodyParser(&req); err != nil {
		return reject(c, h.dispatcher, err)
	}
	return dispatch(c, h.dispatcher, domain.ActionRequest{
		Action:  domain.ActionPullImage,
		Payload: &domain.Payload{Image: req.Image, Tag: req.Tag},
	})
}

// DeleteImages force removes every image id in the body.
func (h *ImageHandler) DeleteImages(c *fiber.Ctx) error {
	return dispatchIDs(c, h.dispatcher, domain.ActionDeleteImage)
}

// BuildImage clones a repository and builds it. It blocks until the build ends.
func (h *ImageHandler) BuildImage(c *fiber.Ctx) error {
	var req BuildImageRequest
	if err := c.BodyParser(&req); err != nil {
		return reject(c, h.dispatcher, err)
	}
	return dispatch(c, h.dispatcher, domain.ActionRequest{
		Action:  domain.ActionBuildImage,
		Payload: &domain.Payload{Image: req.Image, RepoURL: req.RepoURL},
	})
}
