package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc/panics"
	"github.com/sourcegraph/conc/pool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"

	"github.com/melih/lighthouse-dash/internal/core/domain"
)

// ErrMalformedRequest is returned for batches rejected before dispatch.
var ErrMalformedRequest = errors.New("malformed request")

// EventPublisher pushes a notice to live clients. Publishing is fire-and-forget.
type EventPublisher interface {
	Publish(ctx context.Context, text string, category domain.Category)
}

// BatchResult is everything a caller needs to answer the request.
type BatchResult struct {
	ID       string              `json:"batch_id"`
	Action   domain.Action       `json:"action"`
	Outcomes []domain.Outcome    `json:"outcomes"`
	Summary  domain.BatchSummary `json:"summary"`
	Notices  []Notice            `json:"-"`
}

// OK reports whether the batch counts as successful: it was empty, or at least one unit succeeded.
func (r *BatchResult) OK() bool {
	return len(r.Outcomes) == 0 || len(r.Summary.SuccessIDs) > 0
}

// Message joins the notices into a single line for the HTTP response.
func (r *BatchResult) Message() string {
	if len(r.Notices) == 0 {
		return "Nothing to do"
	}
	texts := make([]string, len(r.Notices))
	for i, n := range r.Notices {
		texts[i] = n.Text
	}
	return strings.Join(texts, "; ")
}

// Dispatcher fans a batch out to concurrent executor calls and joins all of them.
type Dispatcher struct {
	exec           *Executor
	events         EventPublisher
	log            *slog.Logger
	maxConcurrency int
	units          metric.Int64Counter
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithMaxConcurrency bounds the number of units running at once. n <= 0 means unbounded.
func WithMaxConcurrency(n int) DispatcherOption {
	return func(d *Dispatcher) { d.maxConcurrency = n }
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(exec *Executor, events EventPublisher, log *slog.Logger, opts ...DispatcherOption) *Dispatcher {
	if log == nil {
		log = slog.Default()
	}
	d := &Dispatcher{exec: exec, events: events, log: log}
	for _, o := range opts {
		o(d)
	}

	units, err := otel.Meter("github.com/melih/lighthouse-dash/lifecycle").Int64Counter(
		"lifecycle.units",
		metric.WithDescription("Units of work dispatched, by action and result."),
		metric.WithUnit("{unit}"),
	)
	if err != nil {
		log.Warn("failed to create units counter", "err", err)
		units = noop.Int64Counter{}
	}
	d.units = units
	return d
}

// Dispatch runs every unit of req to completion and publishes the summary.
//
// Units run on a context detached from ctx's cancellation: once submitted,
// a batch is not cancelled mid-way. The only error returned is a wrapped
// ErrMalformedRequest, in which case nothing was dispatched.
func (d *Dispatcher) Dispatch(ctx context.Context, req domain.ActionRequest) (*BatchResult, error) {
	if err := validate(req); err != nil {
		d.Reject(ctx, err)
		return nil, err
	}

	res := &BatchResult{ID: uuid.NewString(), Action: req.Action, Outcomes: []domain.Outcome{}}
	log := d.log.With("batch", res.ID, "action", req.Action)
	if req.Units() == 0 {
		log.Debug("empty batch, nothing dispatched")
		res.Summary = Aggregate(nil)
		return res, nil
	}

	runCtx := context.WithoutCancel(ctx)
	var mu sync.Mutex
	collect := func(o domain.Outcome) {
		mu.Lock()
		res.Outcomes = append(res.Outcomes, o)
		mu.Unlock()
		d.units.Add(runCtx, 1, metric.WithAttributes(
			attribute.String("action", string(req.Action)),
			attribute.String("result", string(o.Result)),
		))
	}

	p := pool.New()
	if d.maxConcurrency > 0 {
		p = p.WithMaxGoroutines(d.maxConcurrency)
	}
	for _, id := range req.IDs {
		p.Go(func() {
			collect(d.safely(id, func() domain.Outcome {
				return d.exec.Execute(runCtx, id, req.Action)
			}))
		})
	}
	if req.Payload != nil {
		payload := *req.Payload
		p.Go(func() {
			collect(d.safely(payload.Image, func() domain.Outcome {
				return d.exec.ExecutePayload(runCtx, req.Action, payload)
			}))
		})
	}
	p.Wait()

	res.Summary = Aggregate(res.Outcomes)
	res.Notices = Notices(req.Action, res.Summary)
	for _, n := range res.Notices {
		d.events.Publish(runCtx, n.Text, n.Category)
	}

	log.Info("batch finished",
		"units", len(res.Outcomes),
		"succeeded", len(res.Summary.SuccessIDs),
		"failed", len(res.Summary.ErrorMessages))
	return res, nil
}

// Reject publishes an error event for a request that never reached dispatch.
func (d *Dispatcher) Reject(ctx context.Context, err error) {
	d.log.Warn("batch rejected", "err", err)
	d.events.Publish(context.WithoutCancel(ctx), "API error, please try again: "+err.Error(), domain.CategoryError)
}

// safely turns a panicking unit into a failure so sibling units are unaffected.
func (d *Dispatcher) safely(id string, fn func() domain.Outcome) (out domain.Outcome) {
	var pc panics.Catcher
	pc.Try(func() { out = fn() })
	if r := pc.Recovered(); r != nil {
		d.log.Error("unit panicked", "id", domain.ShortID(id), "panic", r.Value)
		out = domain.RuntimeFailure(id, fmt.Errorf("internal error: %v", r.Value))
	}
	return out
}

func validate(req domain.ActionRequest) error {
	if !req.Action.Valid() {
		return fmt.Errorf("%w: unknown action %q", ErrMalformedRequest, req.Action)
	}
	if req.Action.NeedsPayload() {
		if req.Payload == nil || strings.TrimSpace(req.Payload.Image) == "" {
			return fmt.Errorf("%w: %s requires an image", ErrMalformedRequest, req.Action)
		}
		if req.Action == domain.ActionBuildImage && strings.TrimSpace(req.Payload.RepoURL) == "" {
			return fmt.Errorf("%w: build requires a repository url", ErrMalformedRequest)
		}
		if len(req.IDs) > 0 {
			return fmt.Errorf("%w: %s takes no ids", ErrMalformedRequest, req.Action)
		}
	} else if req.Payload != nil {
		return fmt.Errorf("%w: %s takes no payload", ErrMalformedRequest, req.Action)
	}
	for _, id := range req.IDs {
		if strings.TrimSpace(id) == "" {
			return fmt.Errorf("%w: empty id", ErrMalformedRequest)
		}
	}
	return nil
}
