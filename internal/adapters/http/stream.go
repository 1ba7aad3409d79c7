package http

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp"

	"github.com/melih/lighthouse-dash/internal/core/domain"
	"github.com/melih/lighthouse-dash/internal/core/services/events"
)

// streamChannels maps stream names to bus channels.
var streamChannels = map[string]string{
	"containerlist":  domain.ChannelContainerList,
	"servermessages": domain.ChannelServerMessages,
	"imagelist":      domain.ChannelImageList,
	"hostmetrics":    domain.ChannelHostMetrics,
}

// Relay forwards one bus channel to one client.
type Relay interface {
	Run(ctx context.Context, channel string, send func([]byte) error) error
}

// StreamHandler serves bus channels as server-sent events.
type StreamHandler struct {
	// base outlives single requests; it is cancelled on shutdown.
	base  context.Context
	relay Relay
	log   *slog.Logger
}

func NewStreamHandler(base context.Context, relay Relay, log *slog.Logger) *StreamHandler {
	if log == nil {
		log = slog.Default()
	}
	return &StreamHandler{base: base, relay: relay, log: log}
}

// Stream serves /streams/:name.
func (h *StreamHandler) Stream(c *fiber.Ctx) error {
	channel, ok := streamChannels[c.Params("name")]
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "unknown stream " + c.Params("name"),
		})
	}
	return h.serve(c, channel)
}

// ContainerMetrics serves /streams/containermetrics/:id.
func (h *StreamHandler) ContainerMetrics(c *fiber.Ctx) error {
	return h.serve(c, domain.ContainerMetricsChannel(c.Params("id")))
}

func (h *StreamHandler) serve(c *fiber.Ctx, channel string) error {
	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	// The writer runs after the handler returns; it must not touch c.
	base, relay, log := h.base, h.relay, h.log
	c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		err := relay.Run(base, channel, func(msg []byte) error {
			if err := writeEvent(w, msg); err != nil {
				return err
			}
			return w.Flush()
		})
		if err != nil && !errors.Is(err, events.ErrIdleTimeout) {
			log.Warn("stream ended with error", "channel", channel, "err", err)
		}
	}))
	return nil
}

// writeEvent frames msg as one event with a data line per payload line.
func writeEvent(w io.Writer, msg []byte) error {
	msg = bytes.TrimRight(msg, "\r\n")
	var buf bytes.Buffer
	for _, line := range bytes.Split(msg, []byte("\n")) {
		buf.WriteString("data: ")
		buf.Write(bytes.TrimSuffix(line, []byte("\r")))
		buf.WriteByte('\n')
	}
	buf.WriteByte('\n')
	_, err := w.Write(buf.Bytes())
	return err
}
