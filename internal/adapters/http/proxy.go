package http

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"github.com/melih/lighthouse-dash/internal/core/domain"
	"github.com/melih/lighthouse-dash/internal/core/ports"
)

// ProxyHandler reverse proxies <container-name>.<domain> to the container.
type ProxyHandler struct {
	service ports.ContainerService
	domain  string
	log     *slog.Logger
}

// NewProxyHandler creates a proxy for subdomains of domain.
func NewProxyHandler(service ports.ContainerService, domain string, log *slog.Logger) *ProxyHandler {
	if log == nil {
		log = slog.Default()
	}
	return &ProxyHandler{service: service, domain: strings.ToLower(strings.Trim(domain, ".")), log: log}
}

// subdomain returns the container name addressed by host, if any.
func (h *ProxyHandler) subdomain(host string) (string, bool) {
	host = strings.ToLower(host)
	if h.domain == "" || !strings.HasSuffix(host, "."+h.domain) {
		return "", false
	}
	name := strings.TrimSuffix(host, "."+h.domain)
	if name == "" || name == "www" || strings.Contains(name, ".") {
		return "", false
	}
	return name, true
}

// ProxyRequest intercepts requests to subdomains (e.g., app-name.localhost)
// and routes them to the corresponding container's internal IP. Everything
// else falls through to the API.
func (h *ProxyHandler) ProxyRequest(c *fiber.Ctx) error {
	name, ok := h.subdomain(c.Hostname())
	if !ok {
		return c.Next()
	}

	containers, err := h.service.ListContainers(c.Context(), false)
	if err != nil {
		h.log.Error("proxy failed to list containers", "err", err)
		return c.Status(fiber.StatusInternalServerError).SendString("Failed to list containers")
	}

	var targetIP string
	for _, container := range containers {
		if container.State != domain.StatusRunning {
			continue
		}
		for _, n := range container.Names {
			if n == name {
				targetIP = container.IPAddress
			}
		}
		if targetIP != "" {
			break
		}
	}

	if targetIP == "" {
		return c.Status(fiber.StatusNotFound).SendString(fmt.Sprintf("App '%s' not found or not running", name))
	}

	remote, err := url.Parse("http://" + targetIP)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).SendString("Invalid target URL")
	}

	proxy := httputil.NewSingleHostReverseProxy(remote)

	// The app inside sees an IP based Host header, not the public subdomain.
	originalDirector := proxy.Director
	proxy.Director = func(req *http.Request) {
		originalDirector(req)
		req.Host = remote.Host
	}
	proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		h.log.Warn("proxy upstream failed", "app", name, "target", targetIP, "err", err)
		w.WriteHeader(http.StatusBadGateway)
		fmt.Fprintf(w, "Proxy Info: target=%s error=%v", targetIP, err)
	}

	return adaptor.HTTPHandler(proxy)(c)
}
