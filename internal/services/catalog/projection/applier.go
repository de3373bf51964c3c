package projection

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tellingsounds/lama/internal/platform/logging"
	platformotel "github.com/tellingsounds/lama/internal/platform/otel"
	"github.com/tellingsounds/lama/internal/services/catalog/domain/event"
	"github.com/tellingsounds/lama/internal/services/catalog/relations"
	"github.com/tellingsounds/lama/internal/services/catalog/search"
	"github.com/tellingsounds/lama/internal/services/catalog/storage"
)

const tracerName = "github.com/tellingsounds/lama/internal/services/catalog/projection"

var (
	// ErrUnhandledEvent indicates an event type without a route.
	ErrUnhandledEvent = errors.New("unhandled projection event type")
	// ErrProjectionRequired indicates a missing projection store.
	ErrProjectionRequired = errors.New("projection store is required")
)

// Config wires an Applier.
type Config struct {
	Projection storage.ProjectionStore
	// Events gates versions; nil skips the gate.
	Events *event.Registry
	// Search is invalidated after entity changes commit. Optional.
	Search search.Invalidator
	// Relations receives relation changes after commit. Optional.
	Relations relations.Mirror
	Logger    logrus.FieldLogger
}

// Result is the outcome of one apply.
type Result struct {
	SubjectID string
	// Event is the event as the handlers saw it, after middleware rewrites
	// such as timecode upgrades and effective id enrichment.
	Event event.Event
}

// Applier routes events to handlers.
type Applier struct {
	projection storage.ProjectionStore
	events     *event.Registry
	search     search.Invalidator
	relations  relations.Mirror
	logger     logrus.FieldLogger
	tracer     trace.Tracer
	routes     map[event.Type]HandlerFunc
}

// New composes the route table.
func New(cfg Config) (*Applier, error) {
	if cfg.Projection == nil {
		return nil, ErrProjectionRequired
	}
	a := &Applier{
		projection: cfg.Projection,
		events:     cfg.Events,
		search:     cfg.Search,
		relations:  cfg.Relations,
		logger:     logging.OrDefault(cfg.Logger),
		tracer:     platformotel.Tracer(tracerName),
	}
	a.routes = a.buildRoutes()
	if cfg.Events != nil {
		for _, t := range cfg.Events.Types() {
			if _, ok := a.routes[t]; !ok {
				return nil, fmt.Errorf("%w: %s", ErrUnhandledEvent, t)
			}
		}
	}
	return a, nil
}

// Handles reports whether t has a route.
func (a *Applier) Handles(t event.Type) bool {
	_, ok := a.routes[t]
	return ok
}

// applyContext carries per-apply state through the handler chain.
type applyContext struct {
	docs        storage.DocumentStore
	replaying   bool
	logger      logrus.FieldLogger
	afterCommit []func(context.Context) error
}

// onCommit queues fn to run once the projection transaction commits.
func (c *applyContext) onCommit(fn func(context.Context) error) {
	c.afterCommit = append(c.afterCommit, fn)
}

// Apply runs evt through its handler chain in one projection transaction.
// While replaying, derived work that a rebuild performs once at the end is
// skipped and after-commit side effects are not queued.
func (a *Applier) Apply(ctx context.Context, evt event.Event, replaying bool) (Result, error) {
	ctx, span := a.tracer.Start(ctx, "catalog.apply_event", trace.WithAttributes(
		attribute.String("event.type", string(evt.Type)),
		attribute.Int64("event.id", evt.ID),
		attribute.Bool("replaying", replaying),
	))
	defer span.End()

	result, err := a.apply(ctx, evt, replaying)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return result, err
}

func (a *Applier) apply(ctx context.Context, evt event.Event, replaying bool) (Result, error) {
	route, ok := a.routes[evt.Type]
	if !ok {
		return Result{}, fmt.Errorf("%w: %s", ErrUnhandledEvent, evt.Type)
	}
	if a.events != nil {
		if err := a.events.CheckVersion(evt); err != nil {
			return Result{}, err
		}
	}

	working := evt
	working.Data = append([]byte(nil), evt.Data...)
	ac := &applyContext{
		replaying: replaying,
		logger:    a.logger.WithFields(logrus.Fields{"event_id": evt.ID, "event_type": evt.Type}),
	}
	err := a.projection.InTx(ctx, func(tx storage.DocumentStore) error {
		ac.docs = tx
		return route(ctx, ac, &working)
	})
	if err != nil {
		return Result{}, fmt.Errorf("apply %s: %w", evt.Type, err)
	}

	for _, hook := range ac.afterCommit {
		if err := hook(ctx); err != nil {
			ac.logger.WithError(err).Warn("after-commit side effect failed")
		}
	}
	return Result{SubjectID: working.SubjectID, Event: working}, nil
}
