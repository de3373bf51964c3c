package projection

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tellingsounds/lama/internal/services/catalog/domain/document"
	"github.com/tellingsounds/lama/internal/services/catalog/domain/event"
	"github.com/tellingsounds/lama/internal/services/catalog/storage"
)

// applyFavorite adds or removes a clip in a user's favorites, creating the
// user document on first use.
func applyFavorite(ctx context.Context, ac *applyContext, evt *event.Event) error {
	var payload event.FavoritePayload
	if err := json.Unmarshal(evt.Data, &payload); err != nil {
		return fmt.Errorf("decode %s: %w", evt.Type, err)
	}
	evt.SubjectID = payload.ClipID

	user, err := storage.GetAs[document.User](ctx, ac.docs, payload.UserID)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		user = &document.User{ID: payload.UserID, Type: string(document.KindUser), FavoriteClips: []string{}}
		user.Created(evt.Timestamp, evt.ActorID)
		user.SetFavorite(payload.ClipID, payload.IsFavorite)
		return ac.docs.InsertDocument(ctx, user)
	case err != nil:
		return err
	}
	if !user.SetFavorite(payload.ClipID, payload.IsFavorite) {
		return nil
	}
	user.Updated(evt.Timestamp, evt.ActorID)
	return ac.docs.PutDocument(ctx, user)
}

// applySegmentAnnotations merges the contained annotation list of a segment.
func applySegmentAnnotations(ctx context.Context, ac *applyContext, evt *event.Event) error {
	var payload event.SegmentAnnotationsPayload
	if err := json.Unmarshal(evt.Data, &payload); err != nil {
		return fmt.Errorf("decode %s: %w", evt.Type, err)
	}
	stored, err := loadKind(ctx, ac.docs, document.KindSegment, payload.Segment)
	if err != nil {
		return err
	}
	evt.SubjectID = payload.Segment

	segment := stored.(*document.Segment)
	segment.MergeContains(payload.Annotations, evt.Timestamp, evt.ActorID)
	segment.Updated(evt.Timestamp, evt.ActorID)
	if err := ac.docs.PutDocument(ctx, segment); err != nil {
		return err
	}
	return touchClip(ctx, ac, segment.Clip, evt.Timestamp, evt.ActorID)
}
