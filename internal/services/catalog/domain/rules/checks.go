package rules

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strings"

	apperrors "github.com/tellingsounds/lama/internal/platform/errors"
	"github.com/tellingsounds/lama/internal/platform/id"
	"github.com/tellingsounds/lama/internal/services/catalog/domain/document"
	"github.com/tellingsounds/lama/internal/services/catalog/domain/effectiveid"
	"github.com/tellingsounds/lama/internal/services/catalog/storage"
	"github.com/tidwall/gjson"
)

func str(payload []byte, path string) string {
	return strings.TrimSpace(gjson.GetBytes(payload, path).String())
}

func checkCreateEntity(_ context.Context, _ Checker, payload []byte) error {
	if str(payload, "label") == "" {
		return apperrors.Validation("label is required")
	}
	if typ := str(payload, "type"); !document.IsEntityType(typ) {
		return apperrors.Validation(fmt.Sprintf("unknown entity type %q", typ))
	}
	return nil
}

func checkDeleteEntity(ctx context.Context, c Checker, payload []byte) error {
	id := str(payload, "_id")
	clips, err := c.referencedBy(ctx, document.KindClip, id, "platform", "collections", "language", "clipType")
	if err != nil {
		return err
	}
	annotations, err := c.referencedBy(ctx, document.KindAnnotation, id, "target", "role", "instrument")
	if err != nil {
		return err
	}
	if used := append(clips, annotations...); len(used) > 0 {
		return apperrors.Validation(fmt.Sprintf("Cannot delete: (used in %s)", strings.Join(used, ", ")))
	}
	return nil
}

func checkEntityRelation(ctx context.Context, c Checker, payload []byte) error {
	if str(payload, "relation") == "" {
		return apperrors.Validation("relation is required")
	}
	if err := c.requireDocument(ctx, document.KindEntity, str(payload, "_id")); err != nil {
		return err
	}
	return c.requireDocument(ctx, document.KindEntity, str(payload, "target"))
}

func checkClipURL(ctx context.Context, c Checker, payload []byte) error {
	url := str(payload, "url")
	if url == "" {
		return nil
	}
	clips, err := c.Docs.FindDocuments(ctx, document.KindClip, "effectiveId", effectiveid.FromURL(url))
	if err != nil {
		return err
	}
	self := str(payload, "_id")
	for _, clip := range clips {
		if clip.DocumentID() != self {
			return apperrors.Validation("A clip with this URL already exists: " + clip.DocumentID())
		}
	}
	return nil
}

func checkFavorite(ctx context.Context, c Checker, payload []byte) error {
	if v := gjson.GetBytes(payload, "isFavorite"); !v.IsBool() {
		return apperrors.Validation("isFavorite must be a boolean")
	}
	return c.requireDocument(ctx, document.KindClip, str(payload, "clipId"))
}

func checkCreateAnnotation(ctx context.Context, c Checker, payload []byte) error {
	if err := c.requireDocument(ctx, document.KindClip, str(payload, "clip")); err != nil {
		return err
	}
	if err := c.optionalDocument(ctx, document.KindElement, str(payload, "element")); err != nil {
		return err
	}
	if err := c.optionalDocument(ctx, document.KindLayer, str(payload, "layer")); err != nil {
		return err
	}
	return c.optionalDocument(ctx, document.KindSegment, str(payload, "segment"))
}

func checkDeleteAnnotation(ctx context.Context, c Checker, payload []byte) error {
	id := str(payload, "_id")
	refs, err := c.referencedBy(ctx, document.KindAnnotation, id, "refersTo", "constitutedBy")
	if err != nil {
		return err
	}
	if len(refs) > 0 {
		return apperrors.Validation(fmt.Sprintf("Cannot delete: (annotation referenced in %s)", strings.Join(refs, ", ")))
	}

	annotation, err := storage.GetAs[document.Annotation](ctx, c.Docs, id)
	if err != nil {
		// Existence and kind are enforced when the subject is loaded.
		return nil
	}
	segments, err := storage.FindAs[document.Segment](ctx, c.Docs, document.KindSegment, "clip", annotation.Clip)
	if err != nil {
		return err
	}
	var usedIn []string
	for _, segment := range segments {
		for _, entry := range segment.Contains {
			if entry.Annotation == id {
				usedIn = append(usedIn, fmt.Sprintf("%s (%s)", segment.Label, segment.ID))
				break
			}
		}
	}
	if len(usedIn) > 0 {
		return apperrors.Validation("Cannot delete: annotation used in " + strings.Join(usedIn, ", "))
	}
	return nil
}

func checkClipChild(ctx context.Context, c Checker, payload []byte) error {
	return c.requireDocument(ctx, document.KindClip, str(payload, "clip"))
}

func checkCreateLayer(ctx context.Context, c Checker, payload []byte) error {
	if err := c.requireDocument(ctx, document.KindClip, str(payload, "clip")); err != nil {
		return err
	}
	return c.requireDocument(ctx, document.KindElement, str(payload, "element"))
}

func checkDeleteElement(ctx context.Context, c Checker, payload []byte) error {
	id := str(payload, "_id")
	for _, kind := range []document.Kind{document.KindLayer, document.KindAnnotation} {
		n, err := c.Docs.CountDocuments(ctx, kind, "element", id)
		if err != nil {
			return err
		}
		if n > 0 {
			return apperrors.Validation("Cannot delete: not empty")
		}
	}
	return nil
}

func checkDeleteLayer(ctx context.Context, c Checker, payload []byte) error {
	n, err := c.Docs.CountDocuments(ctx, document.KindAnnotation, "layer", str(payload, "_id"))
	if err != nil {
		return err
	}
	if n > 0 {
		return apperrors.Validation("Cannot delete: not empty")
	}
	return nil
}

func checkSegmentAnnotations(ctx context.Context, c Checker, payload []byte) error {
	list := gjson.GetBytes(payload, "annotations")
	if !list.IsArray() {
		return apperrors.Validation("annotations must be a list")
	}
	var err error
	list.ForEach(func(_, item gjson.Result) bool {
		err = c.requireDocument(ctx, document.KindAnnotation, strings.TrimSpace(item.String()))
		return err == nil
	})
	return err
}

func checkRenameMerge(ctx context.Context, c Checker, payload []byte) error {
	oldID, newID := str(payload, "old"), str(payload, "new")
	if newID == "" {
		return apperrors.Validation("new is required")
	}
	if oldID == newID {
		return apperrors.Validation("old and new must differ")
	}
	exists, err := c.Docs.DocumentExists(ctx, newID)
	if err != nil {
		return err
	}
	if exists {
		return c.requireDocument(ctx, document.KindEntity, newID)
	}
	// A new id must name the entity's own type.
	old, err := storage.GetAs[document.Entity](ctx, c.Docs, oldID)
	if err != nil {
		// A missing old entity is reported when its state is captured.
		return nil
	}
	if typ := id.TypeOf(newID); typ != old.Type {
		return apperrors.Validation(fmt.Sprintf("new id %s does not name a %s", newID, old.Type))
	}
	return nil
}

func checkRenameRelation(_ context.Context, _ Checker, payload []byte) error {
	oldName, newName := str(payload, "old"), str(payload, "new")
	if oldName == "" || newName == "" {
		return apperrors.Validation("old and new are required")
	}
	if oldName == newName {
		return apperrors.Validation("old and new must differ")
	}
	return nil
}

func checkField(kind, field string) (document.Kind, error) {
	k, ok := document.ParseCollection(kind)
	if !ok {
		return "", apperrors.Validation(fmt.Sprintf("unknown collection %q", kind))
	}
	if field == "_id" || field == "type" || !document.HasField(k, field) {
		return "", apperrors.Validation(fmt.Sprintf("%s has no settable field %q", k, field))
	}
	return k, nil
}

func checkAddField(_ context.Context, _ Checker, payload []byte) error {
	if _, err := checkField(str(payload, "collection"), str(payload, "field")); err != nil {
		return err
	}
	if d := gjson.GetBytes(payload, "default"); d.Exists() && !json.Valid([]byte(d.Raw)) {
		return apperrors.Validation("default must be JSON")
	}
	return nil
}

func checkSetFieldValue(ctx context.Context, c Checker, payload []byte) error {
	kind, err := checkField(str(payload, "collection"), str(payload, "field"))
	if err != nil {
		return err
	}
	if !gjson.GetBytes(payload, "value").Exists() {
		return apperrors.Validation("value is required")
	}
	return c.requireDocument(ctx, kind, str(payload, "_id"))
}

func checkSnapshot(_ context.Context, _ Checker, payload []byte) error {
	var snapshot document.Snapshot
	if err := json.Unmarshal(payload, &snapshot); err != nil {
		return apperrors.Validation("snapshot is malformed: " + err.Error())
	}
	seen := make(map[string]bool)
	for _, doc := range snapshot.Documents() {
		id := doc.DocumentID()
		if id == "" {
			return apperrors.Validation("snapshot contains a document without _id")
		}
		if seen[id] {
			return apperrors.Validation("snapshot contains duplicate id " + id)
		}
		seen[id] = true
	}
	return nil
}

func checkAnalysisCats(ctx context.Context, c Checker, payload []byte) error {
	byID := gjson.ParseBytes(payload).Map()
	if len(byID) == 0 {
		return apperrors.Validation("no entities given")
	}
	for _, id := range slices.Sorted(maps.Keys(byID)) {
		if !byID[id].IsObject() {
			return apperrors.Validation(id + ": fields must be an object")
		}
		if err := c.requireDocument(ctx, document.KindEntity, id); err != nil {
			return err
		}
	}
	return nil
}
