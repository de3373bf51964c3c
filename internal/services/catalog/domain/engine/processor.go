package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	apperrors "github.com/tellingsounds/lama/internal/platform/errors"
	"github.com/tellingsounds/lama/internal/platform/id"
	"github.com/tellingsounds/lama/internal/platform/logging"
	platformotel "github.com/tellingsounds/lama/internal/platform/otel"
	"github.com/tellingsounds/lama/internal/services/catalog/domain/command"
	"github.com/tellingsounds/lama/internal/services/catalog/domain/event"
	"github.com/tellingsounds/lama/internal/services/catalog/projection"
	"github.com/tellingsounds/lama/internal/services/catalog/storage"
)

const tracerName = "github.com/tellingsounds/lama/internal/services/catalog/domain/engine"

var (
	// ErrCommandRegistryRequired indicates a missing command registry.
	ErrCommandRegistryRequired = errors.New("command registry is required")
	// ErrEventRegistryRequired indicates a missing event registry.
	ErrEventRegistryRequired = errors.New("event registry is required")
	// ErrEventStoreRequired indicates a missing event log.
	ErrEventStoreRequired = errors.New("event store is required")
	// ErrProjectionRequired indicates a missing projection reader.
	ErrProjectionRequired = errors.New("projection is required")
	// ErrApplierRequired indicates a missing event applier.
	ErrApplierRequired = errors.New("applier is required")
)

// EventLog is the part of the event store the processor writes to.
type EventLog interface {
	AppendEvent(ctx context.Context, evt event.Event) (event.Event, error)
	LatestEvent(ctx context.Context) (event.Event, error)
}

// Checker enforces command rules against the projection.
type Checker interface {
	Check(ctx context.Context, def command.Definition, cmd command.Command) error
}

// Applier applies one event to the projection.
type Applier interface {
	Apply(ctx context.Context, evt event.Event, replaying bool) (projection.Result, error)
}

// Config wires a Processor.
type Config struct {
	Commands   *command.Registry
	Events     *event.Registry
	Journal    EventLog
	Projection storage.DocumentReader
	// Checker is optional; without it only structural checks run.
	Checker Checker
	Applier Applier
	Now     func() time.Time
	Logger  logrus.FieldLogger
}

// Result is the outcome of one processed command.
type Result struct {
	SubjectID string
	Event     event.Event
}

// Processor runs the command pipeline. It is a single writer: callers must
// not run Process concurrently.
type Processor struct {
	commands   *command.Registry
	events     *event.Registry
	journal    EventLog
	projection storage.DocumentReader
	checker    Checker
	applier    Applier
	now        func() time.Time
	logger     logrus.FieldLogger
	tracer     trace.Tracer

	last       time.Time
	lastLoaded bool
}

// New validates cfg and returns a Processor.
func New(cfg Config) (*Processor, error) {
	switch {
	case cfg.Commands == nil:
		return nil, ErrCommandRegistryRequired
	case cfg.Events == nil:
		return nil, ErrEventRegistryRequired
	case cfg.Journal == nil:
		return nil, ErrEventStoreRequired
	case cfg.Projection == nil:
		return nil, ErrProjectionRequired
	case cfg.Applier == nil:
		return nil, ErrApplierRequired
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Processor{
		commands:   cfg.Commands,
		events:     cfg.Events,
		journal:    cfg.Journal,
		projection: cfg.Projection,
		checker:    cfg.Checker,
		applier:    cfg.Applier,
		now:        now,
		logger:     logging.OrDefault(cfg.Logger),
		tracer:     platformotel.Tracer(tracerName),
	}, nil
}

// Process validates cmd, applies the resulting event and appends it to the log.
//
// Validation and not-found failures leave both stores untouched. Failures
// while applying or appending are marked non-retryable.
func (p *Processor) Process(ctx context.Context, cmd command.Command) (Result, error) {
	ctx, span := p.tracer.Start(ctx, "catalog.process_command", trace.WithAttributes(
		attribute.String("command.type", string(cmd.Type)),
		attribute.String("actor.id", cmd.ActorID),
	))
	defer span.End()

	result, err := p.process(ctx, cmd)
	logger := p.logger.WithField("command_type", cmd.Type)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.WithError(err).Debug("command rejected")
		return Result{}, err
	}
	span.SetAttributes(attribute.String("subject.id", result.SubjectID), attribute.Int64("event.id", result.Event.ID))
	logger.WithFields(logrus.Fields{
		"event_id":   result.Event.ID,
		"event_type": result.Event.Type,
		"subject_id": result.SubjectID,
	}).Debug("command processed")
	return result, nil
}

func (p *Processor) process(ctx context.Context, cmd command.Command) (Result, error) {
	def, err := p.commands.Definition(cmd.Type)
	if err != nil {
		return Result{}, apperrors.Wrap(apperrors.CodeValidation, fmt.Sprintf("unknown command: %s", cmd.Type), err)
	}
	if !gjson.ValidBytes(cmd.Payload) || !gjson.ParseBytes(cmd.Payload).IsObject() {
		return Result{}, apperrors.Validation("payload must be a JSON object")
	}

	if p.checker != nil {
		if err := p.checker.Check(ctx, def, cmd); err != nil {
			if apperrors.GetCode(err) != apperrors.CodeUnknown {
				return Result{}, err
			}
			return Result{}, apperrors.Wrap(apperrors.CodeInternal, "error validating command", err)
		}
	}

	evt, err := p.buildEvent(ctx, def, cmd)
	if err != nil {
		return Result{}, err
	}
	if err := p.events.Validate(evt); err != nil {
		return Result{}, apperrors.Wrap(apperrors.CodeSchema, err.Error(), err)
	}

	applied, err := p.applier.Apply(ctx, evt, false)
	if err != nil {
		if apperrors.HasCode(err, apperrors.CodeNotFound) {
			return Result{}, wrapNonRetryable(err)
		}
		return Result{}, wrapNonRetryable(apperrors.Wrap(apperrors.CodeInternal, "error applying event", err))
	}

	stored, err := p.journal.AppendEvent(ctx, applied.Event)
	if err != nil {
		return Result{}, wrapNonRetryable(apperrors.Wrap(apperrors.CodeInternal, "error storing event", err))
	}
	p.last = stored.Timestamp
	return Result{SubjectID: stored.SubjectID, Event: stored}, nil
}

// buildEvent assigns identifiers, resolves the subject and captures its
// prior state.
func (p *Processor) buildEvent(ctx context.Context, def command.Definition, cmd command.Command) (event.Event, error) {
	data := append(json.RawMessage(nil), cmd.Payload...)

	var subjectID string
	var err error
	if def.Kind == command.KindCreate {
		subjectID, err = p.assignID(ctx, def, data)
		if err != nil {
			return event.Event{}, err
		}
		if data, err = sjson.SetBytes(data, "_id", subjectID); err != nil {
			return event.Event{}, fmt.Errorf("set _id: %w", err)
		}
	}
	if def.Type == command.TypeSetClipFavoriteStatus {
		if data, err = sjson.SetBytes(data, "userId", cmd.ActorID); err != nil {
			return event.Event{}, fmt.Errorf("set userId: %w", err)
		}
	}
	if subjectID == "" && def.SubjectField != "" {
		subjectID = strings.TrimSpace(gjson.GetBytes(data, def.SubjectField).String())
	}

	var previous json.RawMessage
	if def.CapturesPrevious() {
		previous, err = p.previousData(ctx, def, subjectID)
		if err != nil {
			return event.Event{}, err
		}
	}

	version, err := p.events.CurrentVersion(def.Event)
	if err != nil {
		return event.Event{}, fmt.Errorf("command %s: %w", def.Type, err)
	}
	ts, err := p.nextTimestamp(ctx)
	if err != nil {
		return event.Event{}, err
	}
	return event.Event{
		Timestamp:    ts,
		Type:         def.Event,
		Version:      version,
		ActorID:      cmd.ActorID,
		SubjectID:    subjectID,
		Data:         data,
		PreviousData: previous,
	}, nil
}

func (p *Processor) assignID(ctx context.Context, def command.Definition, data []byte) (string, error) {
	docType := strings.TrimSpace(gjson.GetBytes(data, "type").String())
	if docType == "" {
		return "", apperrors.Validation("type is required")
	}
	switch def.IDs {
	case command.IDHumanReadable:
		newID, err := id.NewHumanReadable(ctx, docType, gjson.GetBytes(data, "label").String(), p.projection.DocumentExists)
		if errors.Is(err, id.ErrEmptySlug) {
			return "", apperrors.Validation("label has no identifier characters")
		}
		return newID, err
	case command.IDOpaque:
		return id.NewOpaque(docType)
	default:
		return "", fmt.Errorf("command %s: no id strategy", def.Type)
	}
}

func (p *Processor) previousData(ctx context.Context, def command.Definition, subjectID string) (json.RawMessage, error) {
	if subjectID == "" {
		return nil, apperrors.Validation(fmt.Sprintf("%s is required", def.SubjectField))
	}
	doc, err := p.projection.GetDocument(ctx, subjectID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, apperrors.NotFound(subjectID)
	}
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", subjectID, err)
	}
	if def.Document != "" && doc.Kind() != def.Document {
		return nil, apperrors.Validation(fmt.Sprintf("%s: expected %s, got %s", subjectID, def.Document, doc.Kind()))
	}
	body, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", subjectID, err)
	}
	return body, nil
}

// nextTimestamp keeps event timestamps strictly increasing, seeding the
// clock from the log on first use.
func (p *Processor) nextTimestamp(ctx context.Context) (time.Time, error) {
	if !p.lastLoaded {
		latest, err := p.journal.LatestEvent(ctx)
		switch {
		case errors.Is(err, storage.ErrNotFound):
		case err != nil:
			return time.Time{}, fmt.Errorf("load latest event: %w", err)
		default:
			p.last = latest.Timestamp
		}
		p.lastLoaded = true
	}
	return event.NextTimestamp(p.last, p.now()), nil
}

// Reset forgets the cached log clock, for use after the log was replaced.
func (p *Processor) Reset() {
	p.last = time.Time{}
	p.lastLoaded = false
}
