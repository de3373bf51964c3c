package projection

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/sirupsen/logrus"

	"github.com/tellingsounds/lama/internal/services/catalog/domain/document"
	"github.com/tellingsounds/lama/internal/services/catalog/domain/event"
	"github.com/tellingsounds/lama/internal/services/catalog/storage"
)

var nullValue = json.RawMessage("null")

// applyRenameMerge points every reference to old at new and removes old.
// When new does not exist yet, old is carried over under the new id.
func applyRenameMerge(ctx context.Context, ac *applyContext, evt *event.Event) error {
	var payload event.RenamePayload
	if err := json.Unmarshal(evt.Data, &payload); err != nil {
		return fmt.Errorf("decode %s: %w", evt.Type, err)
	}
	stored, err := loadKind(ctx, ac.docs, document.KindEntity, payload.Old)
	if err != nil {
		return err
	}
	evt.SubjectID = payload.Old

	if err := renameClipReferences(ctx, ac.docs, payload.Old, payload.New); err != nil {
		return err
	}
	if err := renameAnnotationReferences(ctx, ac.docs, payload.Old, payload.New); err != nil {
		return err
	}

	exists, err := ac.docs.DocumentExists(ctx, payload.New)
	if err != nil {
		return err
	}
	if !exists {
		copied, err := document.Clone(stored)
		if err != nil {
			return err
		}
		copied.(*document.Entity).ID = payload.New
		if err := ac.docs.InsertDocument(ctx, copied); err != nil {
			return err
		}
	}
	return ac.docs.DeleteDocument(ctx, payload.Old)
}

func renameClipReferences(ctx context.Context, docs storage.DocumentStore, from, to string) error {
	changed := make(map[string]*document.Clip)
	for _, field := range []string{"platform", "language", "clipType", "collections"} {
		clips, err := storage.FindAs[document.Clip](ctx, docs, document.KindClip, field, from)
		if err != nil {
			return err
		}
		for _, clip := range clips {
			if prev, ok := changed[clip.ID]; ok {
				clip = prev
			}
			switch field {
			case "platform":
				clip.Platform = to
			case "language":
				clip.Language = replaceID(clip.Language, from, to)
			case "clipType":
				clip.ClipType = replaceID(clip.ClipType, from, to)
			case "collections":
				clip.Collections = replaceID(clip.Collections, from, to)
			}
			changed[clip.ID] = clip
		}
	}
	for _, clip := range changed {
		if err := docs.PutDocument(ctx, clip); err != nil {
			return err
		}
	}
	return nil
}

func renameAnnotationReferences(ctx context.Context, docs storage.DocumentStore, from, to string) error {
	changed := make(map[string]*document.Annotation)
	for _, field := range []string{"target", "role", "instrument"} {
		annotations, err := storage.FindAs[document.Annotation](ctx, docs, document.KindAnnotation, field, from)
		if err != nil {
			return err
		}
		for _, a := range annotations {
			if prev, ok := changed[a.ID]; ok {
				a = prev
			}
			switch field {
			case "target":
				a.Target = to
			case "role":
				a.Role = to
			case "instrument":
				a.Instrument = to
			}
			changed[a.ID] = a
		}
	}
	for _, a := range changed {
		if err := docs.PutDocument(ctx, a); err != nil {
			return err
		}
	}
	return nil
}

// replaceID swaps from for to in ids, dropping a duplicate of to.
func replaceID(ids []string, from, to string) []string {
	out := make([]string, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if id == from {
			id = to
		}
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

// applyRelationRenamed relabels every annotation using the old relation.
func applyRelationRenamed(ctx context.Context, ac *applyContext, evt *event.Event) error {
	var payload event.RenamePayload
	if err := json.Unmarshal(evt.Data, &payload); err != nil {
		return fmt.Errorf("decode %s: %w", evt.Type, err)
	}
	annotations, err := storage.FindAs[document.Annotation](ctx, ac.docs, document.KindAnnotation, "relation", payload.Old)
	if err != nil {
		return err
	}
	for _, a := range annotations {
		a.Relation = payload.New
		if err := ac.docs.PutDocument(ctx, a); err != nil {
			return err
		}
	}
	ac.logger.WithField("annotations", len(annotations)).Debug("relation renamed")
	return nil
}

// applyFieldAdded sets field to the default on every document of a collection.
func applyFieldAdded(ctx context.Context, ac *applyContext, evt *event.Event) error {
	var payload event.FieldAddedPayload
	if err := json.Unmarshal(evt.Data, &payload); err != nil {
		return fmt.Errorf("decode %s: %w", evt.Type, err)
	}
	kind, ok := document.ParseCollection(payload.Collection)
	if !ok {
		return fmt.Errorf("%s: unknown collection %q", evt.Type, payload.Collection)
	}
	evt.SubjectID = payload.Collection
	value := payload.Default
	if len(value) == 0 {
		value = nullValue
	}
	n, err := ac.docs.SetDocumentField(ctx, kind, "", payload.Field, value)
	if err != nil {
		return err
	}
	ac.logger.WithField("documents", n).Debug("field added")
	return nil
}

// applyFieldValueSet writes one field of one document.
func applyFieldValueSet(ctx context.Context, ac *applyContext, evt *event.Event) error {
	var payload event.FieldValuePayload
	if err := json.Unmarshal(evt.Data, &payload); err != nil {
		return fmt.Errorf("decode %s: %w", evt.Type, err)
	}
	kind, ok := document.ParseCollection(payload.Collection)
	if !ok {
		return fmt.Errorf("%s: unknown collection %q", evt.Type, payload.Collection)
	}
	evt.SubjectID = payload.ID
	value := payload.Value
	if len(value) == 0 {
		value = nullValue
	}
	n, err := ac.docs.SetDocumentField(ctx, kind, payload.ID, payload.Field, value)
	if err != nil {
		return err
	}
	if n == 0 {
		ac.logger.WithField("document_id", payload.ID).Warn("field value set on missing document")
	}
	return nil
}

// applySnapshot replaces the whole projection with the snapshot.
func applySnapshot(ctx context.Context, ac *applyContext, evt *event.Event) error {
	var snap event.SnapshotPayload
	if err := json.Unmarshal(evt.Data, &snap); err != nil {
		return fmt.Errorf("decode %s: %w", evt.Type, err)
	}
	if err := ac.docs.ClearDocuments(ctx); err != nil {
		return err
	}
	for _, doc := range snap.Documents() {
		if err := ac.docs.InsertDocument(ctx, doc); err != nil {
			if errors.Is(err, storage.ErrAlreadyExists) {
				return fmt.Errorf("%s: duplicate id %s: %w", evt.Type, doc.DocumentID(), err)
			}
			return err
		}
	}
	ac.logger.WithField("documents", snap.Len()).Info("projection snapshot loaded")
	return nil
}

// applyAnalysisCats sets analysis categories and attributes per entity.
// Only topics take them; any other entity is left unchanged with a warning.
func applyAnalysisCats(ctx context.Context, ac *applyContext, evt *event.Event) error {
	var payload event.AnalysisCatsPayload
	if err := json.Unmarshal(evt.Data, &payload); err != nil {
		return fmt.Errorf("decode %s: %w", evt.Type, err)
	}
	for _, id := range slices.Sorted(maps.Keys(payload)) {
		fields := payload[id]
		entity, err := storage.GetAs[document.Entity](ctx, ac.docs, id)
		if errors.Is(err, storage.ErrNotFound) || errors.Is(err, storage.ErrKindMismatch) {
			ac.logger.WithField("entity_id", id).Warn("analysis categories skipped: no such entity")
			continue
		}
		if err != nil {
			return err
		}
		if entity.Type != document.TopicType {
			ac.logger.WithFields(logrus.Fields{
				"entity_id":   id,
				"entity_type": entity.Type,
			}).Warn("analysis categories skipped: entity is not a topic")
			continue
		}
		if fields.AnalysisCategories != nil {
			entity.AnalysisCategories = fields.AnalysisCategories
		}
		if fields.Attributes != nil {
			entity.Attributes = fields.Attributes
		}
		if err := ac.docs.PutDocument(ctx, entity); err != nil {
			return err
		}
	}
	return nil
}
