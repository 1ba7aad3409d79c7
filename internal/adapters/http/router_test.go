package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/melih/lighthouse-dash/internal/adapters/memory"
	"github.com/melih/lighthouse-dash/internal/core/domain"
	"github.com/melih/lighthouse-dash/internal/core/ports"
	"github.com/melih/lighthouse-dash/internal/core/ports/portstest"
	"github.com/melih/lighthouse-dash/internal/core/services/events"
	"github.com/melih/lighthouse-dash/internal/core/services/lifecycle"
	"github.com/melih/lighthouse-dash/internal/core/services/system"
)

const (
	idA = "abc123456789aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	idB = "def987654321bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"
)

type testEnv struct {
	app     *fiber.App
	runtime *portstest.Runtime
	bus     *memory.Bus
	events  ports.Subscription
}

func newTestEnv(t *testing.T, containers map[string]domain.Status) *testEnv {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	rt := portstest.NewRuntime(containers)
	bus := memory.NewBus(0)
	t.Cleanup(func() { bus.Close() })

	sub, err := bus.Subscribe(context.Background(), domain.ChannelServerMessages)
	if err != nil {
		t.Fatal(err)
	}

	pub := events.NewPublisher(bus, "", log)
	d := lifecycle.NewDispatcher(lifecycle.NewExecutor(rt, log), pub, log)
	app := NewRouter(Handlers{
		Containers: NewContainerHandler(rt, d, log),
		Images:     NewImageHandler(rt, d, log),
		System:     NewSystemHandler(system.NewPruner(rt, pub, log)),
		Streams:    NewStreamHandler(context.Background(), events.NewRelay(bus, 100*time.Millisecond, log), log),
	}, RouterConfig{Log: log})

	return &testEnv{app: app, runtime: rt, bus: bus, events: sub}
}

func (e *testEnv) post(t *testing.T, path, body string) (int, map[string]any) {
	t.Helper()
	req := httptest.NewRequest("POST", path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := e.app.Test(req, 2000)
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	defer resp.Body.Close()
	var out map[string]any
	json.NewDecoder(resp.Body).Decode(&out)
	return resp.StatusCode, out
}

// nextEvent returns the next server message, or ok=false if none arrives shortly.
func (e *testEnv) nextEvent(t *testing.T) (domain.Event, bool) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	msg, err := e.events.Receive(ctx)
	if err != nil {
		return domain.Event{}, false
	}
	var ev domain.Event
	if err := json.Unmarshal(msg, &ev); err != nil {
		t.Fatalf("bad event %q: %v", msg, err)
	}
	return ev, true
}

func TestStopBatch(t *testing.T) {
	env := newTestEnv(t, map[string]domain.Status{idA: domain.StatusRunning, idB: domain.StatusRunning})

	code, body := env.post(t, "/api/containers/stop", `{"ids":["`+idA+`","`+idB+`"]}`)
	if code != fiber.StatusOK {
		t.Fatalf("status = %d, body = %v", code, body)
	}
	if outcomes, _ := body["outcomes"].([]any); len(outcomes) != 2 {
		t.Errorf("outcomes = %v", body["outcomes"])
	}
	ev, ok := env.nextEvent(t)
	if !ok || ev.Category != domain.CategorySuccess || !strings.HasPrefix(ev.Text, "Containers stopped (2): [") {
		t.Errorf("event = %+v (received %v)", ev, ok)
	}
}

func TestStopAlreadyStopped(t *testing.T) {
	env := newTestEnv(t, map[string]domain.Status{idA: domain.StatusExited})

	code, body := env.post(t, "/api/containers/stop", `{"ids":["`+idA+`"]}`)
	if code != fiber.StatusBadRequest {
		t.Fatalf("status = %d, want 400", code)
	}
	if msg, _ := body["message"].(string); !strings.Contains(msg, "abc123456789") {
		t.Errorf("message = %q", msg)
	}
	ev, ok := env.nextEvent(t)
	if !ok || ev.Category != domain.CategoryError || !strings.Contains(ev.Text, "abc123456789") {
		t.Errorf("event = %+v", ev)
	}
}

func TestEmptyIDsIsNoop(t *testing.T) {
	env := newTestEnv(t, nil)

	code, _ := env.post(t, "/api/containers/start", `{"ids":[]}`)
	if code != fiber.StatusOK {
		t.Errorf("status = %d, want 200", code)
	}
	if ev, ok := env.nextEvent(t); ok {
		t.Errorf("unexpected event %+v", ev)
	}
}

func TestMalformedBodies(t *testing.T) {
	env := newTestEnv(t, map[string]domain.Status{idA: domain.StatusRunning})

	for _, body := range []string{`{}`, `{"ids":"abc"}`, `not json`} {
		code, _ := env.post(t, "/api/containers/stop", body)
		if code != fiber.StatusBadRequest {
			t.Errorf("body %s: status = %d, want 400", body, code)
		}
		ev, ok := env.nextEvent(t)
		if !ok || ev.Category != domain.CategoryError || !strings.HasPrefix(ev.Text, "API error, please try again") {
			t.Errorf("body %s: event = %+v", body, ev)
		}
	}
	if len(env.runtime.Calls()) != 0 {
		t.Errorf("runtime touched: %v", env.runtime.Calls())
	}
}

func TestUnknownAction(t *testing.T) {
	env := newTestEnv(t, nil)
	code, _ := env.post(t, "/api/containers/explode", `{"ids":["x"]}`)
	if code != fiber.StatusNotFound {
		t.Errorf("status = %d, want 404", code)
	}
}

func TestCreateContainer(t *testing.T) {
	env := newTestEnv(t, nil)
	env.runtime.AddImage("nginx:latest")

	code, body := env.post(t, "/api/containers/create", `{"image":"nginx"}`)
	if code != fiber.StatusOK {
		t.Fatalf("status = %d, body = %v", code, body)
	}
	ev, _ := env.nextEvent(t)
	if !strings.HasPrefix(ev.Text, "Containers created (1)") {
		t.Errorf("event = %+v", ev)
	}
}

func TestPullImageDefaultsTag(t *testing.T) {
	env := newTestEnv(t, nil)

	code, _ := env.post(t, "/api/images/pull", `{"image":"redis"}`)
	if code != fiber.StatusOK {
		t.Fatalf("status = %d", code)
	}
	ev, _ := env.nextEvent(t)
	if ev.Text != "Image pulled (1): [Status: Downloaded newer image for redis:latest]" {
		t.Errorf("event = %q", ev.Text)
	}
}

func TestDeleteImages(t *testing.T) {
	env := newTestEnv(t, nil)
	env.runtime.AddImage("sha256:feed")

	code, _ := env.post(t, "/api/images/delete", `{"ids":["sha256:feed"]}`)
	if code != fiber.StatusOK {
		t.Fatalf("status = %d", code)
	}
	ev, _ := env.nextEvent(t)
	if ev.Text != "Images deleted (1): [feed]" {
		t.Errorf("event = %q", ev.Text)
	}
}

func TestBuildWithoutBuilderFails(t *testing.T) {
	env := newTestEnv(t, nil)
	code, _ := env.post(t, "/api/images/build", `{"image":"app","repo_url":"https://example.com/app.git"}`)
	if code != fiber.StatusBadRequest {
		t.Errorf("status = %d, want 400", code)
	}
}

func TestPrune(t *testing.T) {
	env := newTestEnv(t, nil)
	env.runtime.Pruned[domain.PruneContainers] = 2

	code, body := env.post(t, "/api/system/prune", `{"objectsToPrune":["containers"]}`)
	if code != fiber.StatusOK {
		t.Fatalf("status = %d, body = %v", code, body)
	}
	if msg, _ := body["message"].(string); !strings.HasPrefix(msg, "System pruned successfully: 2 objects deleted") {
		t.Errorf("message = %q", msg)
	}
	if ev, ok := env.nextEvent(t); !ok || ev.Category != domain.CategorySuccess {
		t.Errorf("success event = %+v (received %v)", ev, ok)
	}

	code, _ = env.post(t, "/api/system/prune", `{"objectsToPrune":["everything"]}`)
	if code != fiber.StatusBadRequest {
		t.Errorf("unknown target status = %d, want 400", code)
	}
	if ev, ok := env.nextEvent(t); !ok || ev.Category != domain.CategoryError {
		t.Errorf("unknown target event = %+v (received %v)", ev, ok)
	}
}

func TestPruneTruncatedBody(t *testing.T) {
	env := newTestEnv(t, nil)

	code, body := env.post(t, "/api/system/prune", `{"objectsToPrune":`)
	if code != fiber.StatusBadRequest {
		t.Fatalf("status = %d, want 400", code)
	}
	if msg, _ := body["message"].(string); !strings.HasPrefix(msg, "API error, please try again: ") {
		t.Errorf("message = %q", msg)
	}
	ev, ok := env.nextEvent(t)
	if !ok || ev.Category != domain.CategoryError || !strings.HasPrefix(ev.Text, "API error, please try again: ") {
		t.Errorf("event = %+v (received %v)", ev, ok)
	}
	if calls := env.runtime.Calls(); len(calls) != 0 {
		t.Errorf("runtime called %v", calls)
	}
}

func TestListAndInfo(t *testing.T) {
	env := newTestEnv(t, map[string]domain.Status{idA: domain.StatusRunning, idB: domain.StatusExited})

	resp, err := env.app.Test(httptest.NewRequest("GET", "/api/containers?all=false", nil), 2000)
	if err != nil {
		t.Fatal(err)
	}
	var list []domain.Container
	json.NewDecoder(resp.Body).Decode(&list)
	resp.Body.Close()
	if len(list) != 1 || list[0].ID != idA {
		t.Errorf("running list = %+v", list)
	}

	resp, _ = env.app.Test(httptest.NewRequest("GET", "/api/containers/info/"+idA, nil), 2000)
	if resp.StatusCode != fiber.StatusOK {
		t.Errorf("info status = %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp, _ = env.app.Test(httptest.NewRequest("GET", "/api/containers/info/missing", nil), 2000)
	if resp.StatusCode != fiber.StatusNotFound {
		t.Errorf("missing info status = %d, want 404", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestLogs(t *testing.T) {
	env := newTestEnv(t, map[string]domain.Status{idA: domain.StatusRunning})
	resp, err := env.app.Test(httptest.NewRequest("GET", "/api/containers/"+idA+"/logs", nil), 2000)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(b), "log line for "+idA) {
		t.Errorf("logs = %q", b)
	}
}

func TestServerMessagesStream(t *testing.T) {
	env := newTestEnv(t, nil)

	type result struct {
		body string
		err  error
	}
	done := make(chan result, 1)
	go func() {
		resp, err := env.app.Test(httptest.NewRequest("GET", "/api/streams/servermessages", nil), 3000)
		if err != nil {
			done <- result{err: err}
			return
		}
		defer resp.Body.Close()
		b, err := io.ReadAll(resp.Body)
		done <- result{body: string(b), err: err}
	}()

	// The test env holds one subscription already; wait for the stream's.
	deadline := time.Now().Add(time.Second)
	for env.bus.Subscribers(domain.ChannelServerMessages) < 2 {
		if time.Now().After(deadline) {
			t.Fatal("stream never subscribed")
		}
		time.Sleep(5 * time.Millisecond)
	}
	env.bus.Publish(context.Background(), domain.ChannelServerMessages, []byte(`{"text":"hi"}`))

	r := <-done
	if r.err != nil {
		t.Fatalf("stream: %v", r.err)
	}
	if !strings.Contains(r.body, "data: {\"text\":\"hi\"}\n\n") {
		t.Errorf("body = %q", r.body)
	}
	if n := env.bus.Subscribers(domain.ChannelServerMessages); n != 1 {
		t.Errorf("subscribers after idle close = %d, want 1", n)
	}
}

func TestUnknownStream(t *testing.T) {
	env := newTestEnv(t, nil)
	resp, _ := env.app.Test(httptest.NewRequest("GET", "/api/streams/nope", nil), 2000)
	if resp.StatusCode != fiber.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, nil)
	resp, _ := env.app.Test(httptest.NewRequest("GET", "/health", nil), 2000)
	if resp.StatusCode != fiber.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}
}
