package projection

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	apperrors "github.com/tellingsounds/lama/internal/platform/errors"
	"github.com/tellingsounds/lama/internal/services/catalog/domain/document"
	"github.com/tellingsounds/lama/internal/services/catalog/domain/event"
	"github.com/tellingsounds/lama/internal/services/catalog/domain/usage"
	"github.com/tellingsounds/lama/internal/services/catalog/storage"
)

// cascadeFunc removes what depended on a deleted document.
type cascadeFunc func(ctx context.Context, ac *applyContext, id string) error

// createDocument inserts the event data as a new document of kind.
func createDocument(kind document.Kind) HandlerFunc {
	return func(ctx context.Context, ac *applyContext, evt *event.Event) error {
		doc, err := document.Decode(kind, evt.Data)
		if err != nil {
			return err
		}
		document.Normalize(doc)
		if doc.DocumentID() == "" {
			return fmt.Errorf("%s: _id is required", evt.Type)
		}
		doc.Metadata().Created(evt.Timestamp, evt.ActorID)
		switch d := doc.(type) {
		case *document.Entity:
			d.UsageCount = 0
		case *document.Clip:
			d.Touch(evt.Timestamp, evt.ActorID)
		}
		if err := ac.docs.InsertDocument(ctx, doc); err != nil {
			return err
		}
		evt.SubjectID = doc.DocumentID()
		if doc.Kind() == document.KindClip {
			return nil
		}
		return touchClip(ctx, ac, doc.ClipID(), evt.Timestamp, evt.ActorID)
	}
}

// updateDocument replaces a document of kind with the event data. Server
// owned fields are inherited from the stored copy, and an update that
// changes no content leaves the projection untouched.
func updateDocument(kind document.Kind) HandlerFunc {
	return func(ctx context.Context, ac *applyContext, evt *event.Event) error {
		doc, err := document.Decode(kind, evt.Data)
		if err != nil {
			return err
		}
		document.Normalize(doc)
		stored, err := loadKind(ctx, ac.docs, kind, doc.DocumentID())
		if err != nil {
			return err
		}
		evt.SubjectID = doc.DocumentID()

		doc.Inherit(stored)
		same, err := document.SameContent(doc, stored)
		if err != nil {
			return err
		}
		if same {
			return nil
		}
		doc.Metadata().Updated(evt.Timestamp, evt.ActorID)
		if clip, ok := doc.(*document.Clip); ok {
			clip.Touch(evt.Timestamp, evt.ActorID)
		}
		if err := ac.docs.PutDocument(ctx, doc); err != nil {
			return err
		}
		if doc.Kind() == document.KindClip {
			return nil
		}
		return touchClip(ctx, ac, doc.ClipID(), evt.Timestamp, evt.ActorID)
	}
}

// deleteDocument removes the document named by the event, then runs cascade.
func deleteDocument(kind document.Kind, cascade cascadeFunc) HandlerFunc {
	return func(ctx context.Context, ac *applyContext, evt *event.Event) error {
		var payload event.DeletedPayload
		if err := json.Unmarshal(evt.Data, &payload); err != nil {
			return fmt.Errorf("decode %s: %w", evt.Type, err)
		}
		stored, err := loadKind(ctx, ac.docs, kind, payload.ID)
		if err != nil {
			return err
		}
		evt.SubjectID = payload.ID
		if err := ac.docs.DeleteDocument(ctx, payload.ID); err != nil {
			return err
		}
		if cascade != nil {
			if err := cascade(ctx, ac, payload.ID); err != nil {
				return err
			}
		}
		if kind == document.KindClip {
			return nil
		}
		return touchClip(ctx, ac, stored.ClipID(), evt.Timestamp, evt.ActorID)
	}
}

// cascadeClip removes everything attached to a clip and drops it from
// favorites. Deleting many annotations shifts usage broadly, so every count
// is recomputed unless a replay will do it at the end.
func cascadeClip(ctx context.Context, ac *applyContext, id string) error {
	for _, kind := range []document.Kind{document.KindAnnotation, document.KindSegment, document.KindLayer, document.KindElement} {
		if _, err := deleteWhere(ctx, ac.docs, kind, "clip", id); err != nil {
			return err
		}
	}
	users, err := storage.FindAs[document.User](ctx, ac.docs, document.KindUser, "favoriteClips", id)
	if err != nil {
		return err
	}
	for _, user := range users {
		if user.SetFavorite(id, false) {
			if err := ac.docs.PutDocument(ctx, user); err != nil {
				return err
			}
		}
	}
	if ac.replaying {
		return nil
	}
	return usage.RecomputeAll(ctx, ac.docs)
}

// cascadeField removes annotations whose field names the deleted document
// and refreshes the usage of the entities they referenced.
func cascadeField(field string) cascadeFunc {
	return func(ctx context.Context, ac *applyContext, id string) error {
		removed, err := deleteWhere(ctx, ac.docs, document.KindAnnotation, field, id)
		if err != nil {
			return err
		}
		if ac.replaying || len(removed) == 0 {
			return nil
		}
		bodies := make([]json.RawMessage, 0, len(removed))
		for _, doc := range removed {
			body, err := json.Marshal(doc)
			if err != nil {
				return err
			}
			bodies = append(bodies, body)
		}
		return usage.Recompute(ctx, ac.docs, usage.Referenced(usage.AnnotationFields, bodies...), ac.logger)
	}
}

// deleteWhere deletes documents of kind whose field names value and returns them.
func deleteWhere(ctx context.Context, docs storage.DocumentStore, kind document.Kind, field, value string) ([]document.Document, error) {
	found, err := docs.FindDocuments(ctx, kind, field, value)
	if err != nil {
		return nil, err
	}
	for _, doc := range found {
		if err := docs.DeleteDocument(ctx, doc.DocumentID()); err != nil {
			return nil, err
		}
	}
	return found, nil
}

// touchClip marks activity on a clip's children. A missing clip is skipped.
func touchClip(ctx context.Context, ac *applyContext, clipID string, at time.Time, by string) error {
	if clipID == "" {
		return nil
	}
	clip, err := storage.GetAs[document.Clip](ctx, ac.docs, clipID)
	if errors.Is(err, storage.ErrNotFound) || errors.Is(err, storage.ErrKindMismatch) {
		ac.logger.WithField("clip_id", clipID).Debug("parent clip not found")
		return nil
	}
	if err != nil {
		return err
	}
	clip.Touch(at, by)
	return ac.docs.PutDocument(ctx, clip)
}

// loadKind loads id and checks that it is a kind document.
func loadKind(ctx context.Context, docs storage.DocumentReader, kind document.Kind, id string) (document.Document, error) {
	if id == "" {
		return nil, apperrors.Validation("_id is required")
	}
	stored, err := docs.GetDocument(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, apperrors.NotFound(id)
	}
	if err != nil {
		return nil, err
	}
	if stored.Kind() != kind {
		return nil, fmt.Errorf("%s is a %s, not a %s: %w", id, stored.Kind(), kind, storage.ErrKindMismatch)
	}
	return stored, nil
}
