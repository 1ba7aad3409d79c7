// Package http exposes the dashboard API over Fiber.
package http

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

// Handlers groups everything the router mounts. Proxy is optional.
type Handlers struct {
	Containers *ContainerHandler
	Images     *ImageHandler
	System     *SystemHandler
	Streams    *StreamHandler
	Proxy      *ProxyHandler
}

// RouterConfig tunes the Fiber app.
type RouterConfig struct {
	// AccessLog enables per request logging.
	AccessLog bool
	Log       *slog.Logger
}

// NewRouter builds the Fiber app with every route under /api.
func NewRouter(h Handlers, cfg RouterConfig) *fiber.App {
	log := cfg.Log
	if log == nil {
		log = slog.Default()
	}
	app := fiber.New(fiber.Config{
		AppName:               "lighthouse-dash",
		DisableStartupMessage: true,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			if code >= fiber.StatusInternalServerError {
				log.Error("request failed", "method", c.Method(), "path", c.Path(), "err", err)
			}
			return c.Status(code).JSON(fiber.Map{"error": err.Error()})
		},
	})

	app.Use(recover.New())
	if cfg.AccessLog {
		app.Use(logger.New())
	}
	app.Use(cors.New())
	if h.Proxy != nil {
		app.Use(h.Proxy.ProxyRequest)
	}

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	api := app.Group("/api")

	containers := api.Group("/containers")
	containers.Get("/", h.Containers.ListContainers)
	containers.Get("/info/:id", h.Containers.Info)
	containers.Get("/:id/logs", h.Containers.GetContainerLogs)
	containers.Post("/create", h.Containers.CreateContainer)
	containers.Post("/:action", h.Containers.Action)

	images := api.Group("/images")
	images.Get("/", h.Images.ListImages)
	images.Post("/pull", h.Images.PullImage)
	images.Post("/delete", h.Images.DeleteImages)
	images.Post("/build", h.Images.BuildImage)

	api.Post("/system/prune", h.System.Prune)

	streams := api.Group("/streams")
	streams.Get("/containermetrics/:id", h.Streams.ContainerMetrics)
	streams.Get("/:name", h.Streams.Stream)

	return app
}
