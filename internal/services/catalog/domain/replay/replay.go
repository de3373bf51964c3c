// Package replay rebuilds the projection from the event log.
package replay

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/tellingsounds/lama/internal/platform/logging"
	platformotel "github.com/tellingsounds/lama/internal/platform/otel"
	"github.com/tellingsounds/lama/internal/services/catalog/domain/event"
	"github.com/tellingsounds/lama/internal/services/catalog/domain/usage"
	"github.com/tellingsounds/lama/internal/services/catalog/projection"
	"github.com/tellingsounds/lama/internal/services/catalog/search"
	"github.com/tellingsounds/lama/internal/services/catalog/storage"
)

const (
	defaultPageSize = 200
	tracerName      = "github.com/tellingsounds/lama/internal/services/catalog/domain/replay"
)

var (
	// ErrEventStoreRequired indicates a missing event store.
	ErrEventStoreRequired = errors.New("event store is required")
	// ErrProjectionRequired indicates a missing projection store.
	ErrProjectionRequired = errors.New("projection store is required")
	// ErrApplierRequired indicates a missing applier.
	ErrApplierRequired = errors.New("applier is required")
)

// EventStore lists events for replay.
type EventStore interface {
	ListEvents(ctx context.Context, after event.Cursor, limit int) ([]event.Event, error)
	LatestEventOfType(ctx context.Context, typ event.Type) (event.Event, error)
}

// Applier applies an event to the projection.
type Applier interface {
	Apply(ctx context.Context, evt event.Event, replaying bool) (projection.Result, error)
}

// Options configures a rebuild.
type Options struct {
	PageSize int
	// Search is invalidated once the rebuild completes. Optional.
	Search search.Invalidator
	Logger logrus.FieldLogger
}

// Result captures rebuild outcomes.
type Result struct {
	Applied int
	// Last is the position of the last applied event.
	Last event.Cursor
	// Baseline is the snapshot load the rebuild started from, if any.
	Baseline event.Cursor
}

// Rebuild clears the projection and replays the log into it.
//
// Replay starts at the most recent snapshot load, since that event replaces
// the whole projection and nothing before it can affect the result. Usage
// counts are recomputed once after the last event, and derived search state
// is dropped. Running Rebuild twice over the same log yields the same
// projection.
func Rebuild(ctx context.Context, store EventStore, docs storage.ProjectionStore, applier Applier, options Options) (Result, error) {
	if store == nil {
		return Result{}, ErrEventStoreRequired
	}
	if docs == nil {
		return Result{}, ErrProjectionRequired
	}
	if applier == nil {
		return Result{}, ErrApplierRequired
	}
	ctx, span := platformotel.Tracer(tracerName).Start(ctx, "catalog.rebuild")
	defer span.End()

	result, err := rebuild(ctx, store, docs, applier, options)
	span.SetAttributes(attribute.Int("events.applied", result.Applied))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return result, err
}

func rebuild(ctx context.Context, store EventStore, docs storage.ProjectionStore, applier Applier, options Options) (Result, error) {
	logger := logging.OrDefault(options.Logger)
	pageSize := options.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}

	if err := docs.Reset(ctx); err != nil {
		return Result{}, fmt.Errorf("reset projection: %w", err)
	}

	var result Result
	baseline, err := store.LatestEventOfType(ctx, event.TypeProjectionSnapshotLoaded)
	switch {
	case errors.Is(err, storage.ErrNotFound):
	case err != nil:
		return result, fmt.Errorf("find replay baseline: %w", err)
	default:
		result.Baseline = baseline.Cursor()
		// Position just before the snapshot event so it is the first one read.
		result.Last = event.Cursor{Timestamp: baseline.Timestamp, ID: baseline.ID - 1}
		logger.WithField("event_id", baseline.ID).Info("replaying from snapshot baseline")
	}

	for page := 1; ; page++ {
		events, err := store.ListEvents(ctx, result.Last, pageSize)
		if err != nil {
			return result, fmt.Errorf("list events: %w", err)
		}
		if len(events) == 0 {
			break
		}
		for _, evt := range events {
			if _, err := applier.Apply(ctx, evt, true); err != nil {
				return result, fmt.Errorf("replay event %d (%s): %w", evt.ID, evt.Type, err)
			}
			result.Last = evt.Cursor()
			result.Applied++
		}
		logger.WithFields(logrus.Fields{"page": page, "applied": result.Applied}).Debug("replayed page")
	}

	err = docs.InTx(ctx, func(tx storage.DocumentStore) error {
		return usage.RecomputeAll(ctx, tx)
	})
	if err != nil {
		return result, fmt.Errorf("recompute usage counts: %w", err)
	}
	if options.Search != nil {
		if err := options.Search.Invalidate(ctx); err != nil {
			logger.WithError(err).Warn("search invalidation after rebuild failed")
		}
	}
	logger.WithFields(logrus.Fields{"applied": result.Applied, "last_event_id": result.Last.ID}).Info("projection rebuilt")
	return result, nil
}
