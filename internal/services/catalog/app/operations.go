package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	apperrors "github.com/tellingsounds/lama/internal/platform/errors"
	"github.com/tellingsounds/lama/internal/services/catalog/domain/command"
	"github.com/tellingsounds/lama/internal/services/catalog/domain/engine"
	"github.com/tellingsounds/lama/internal/services/catalog/domain/replay"
	"github.com/tellingsounds/lama/internal/services/catalog/interchange"
	"github.com/tellingsounds/lama/internal/services/catalog/relations"
)

// Rebuild replays the whole log into the live projection.
func (r *Runtime) Rebuild(ctx context.Context) (replay.Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rebuild(ctx)
}

func (r *Runtime) rebuild(ctx context.Context) (replay.Result, error) {
	result, err := replay.Rebuild(ctx, r.events, r.projections, r.applier, replay.Options{
		Search: r.search,
		Logger: r.logger,
	})
	r.processor.Reset()
	return result, err
}

// ExportEvents writes the whole log as XML.
func (r *Runtime) ExportEvents(ctx context.Context, w io.Writer) (int, error) {
	return interchange.ExportEvents(ctx, r.events, w)
}

// ImportEvents replaces the log with the events read from in and rebuilds
// the projection from them. Nothing is replaced when any event has an
// unknown type, a version newer than this build understands, or data that
// fails its schema.
func (r *Runtime) ImportEvents(ctx context.Context, in io.Reader) (replay.Result, error) {
	events, err := interchange.ReadEvents(in)
	if err != nil {
		return replay.Result{}, apperrors.Wrap(apperrors.CodeValidation, "invalid event log", err)
	}
	for _, evt := range events {
		if err := r.eventTypes.CheckVersion(evt); err != nil {
			return replay.Result{}, apperrors.Wrap(apperrors.CodeValidation,
				fmt.Sprintf("event %d cannot be replayed", evt.ID), err)
		}
		if err := r.eventTypes.Validate(evt); err != nil {
			return replay.Result{}, apperrors.Wrap(apperrors.CodeSchema,
				fmt.Sprintf("event %d: %v", evt.ID, err), err)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.events.ReplaceEvents(ctx, events); err != nil {
		return replay.Result{}, fmt.Errorf("replace events: %w", err)
	}
	r.logger.WithField("events", len(events)).Info("event log replaced")
	return r.rebuild(ctx)
}

// ExportSnapshot writes the projection as JSON.
func (r *Runtime) ExportSnapshot(ctx context.Context, w io.Writer) (int, error) {
	return interchange.ExportSnapshot(ctx, r.projections, w)
}

// ImportSnapshot loads the snapshot read from in through a LoadSnapshot
// command, so the replacement is itself recorded in the log.
func (r *Runtime) ImportSnapshot(ctx context.Context, actorID string, in io.Reader) (engine.Result, error) {
	snap, err := interchange.ReadSnapshot(in)
	if err != nil {
		return engine.Result{}, apperrors.Wrap(apperrors.CodeValidation, "invalid snapshot", err)
	}
	payload, err := json.Marshal(snap)
	if err != nil {
		return engine.Result{}, fmt.Errorf("encode snapshot: %w", err)
	}
	return r.ProcessCommand(ctx, command.Command{
		Type:    command.TypeLoadSnapshot,
		ActorID: actorID,
		Payload: payload,
	})
}

// ResyncRelations rebuilds the relation mirror from the log and writes it
// to w as N-Triples. It returns the number of statements written.
func (r *Runtime) ResyncRelations(ctx context.Context, w io.Writer) (int, error) {
	mirror, err := relations.Resync(ctx, r.events)
	if err != nil {
		return 0, err
	}
	triples := mirror.Triples()
	if err := relations.WriteNTriples(w, triples); err != nil {
		return 0, fmt.Errorf("write triples: %w", err)
	}
	return len(triples), nil
}
