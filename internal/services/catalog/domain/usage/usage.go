// Package usage computes derived entity usage counts from the projection.
package usage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"
	"github.com/tellingsounds/lama/internal/platform/logging"
	"github.com/tellingsounds/lama/internal/services/catalog/domain/document"
	"github.com/tellingsounds/lama/internal/services/catalog/storage"
	"github.com/tidwall/gjson"
)

var (
	// ClipFields reference entities from a clip and feed usage tracking.
	ClipFields = []string{"platform", "language", "collections", "clipType"}
	// AnnotationFields reference entities from an annotation and feed usage tracking.
	AnnotationFields = []string{"target", "role"}

	clipCountFields = []string{"platform", "language", "collections"}
)

// Count returns how often entity is used. Collections and platforms count
// the clips naming them; every other type counts annotations targeting it,
// and contributor roles also count annotations using them as a role.
func Count(ctx context.Context, r storage.DocumentReader, entity *document.Entity) (int, error) {
	if document.CountsClipUsage(entity.Type) {
		return countClips(ctx, r, entity.ID)
	}
	total, err := r.CountDocuments(ctx, document.KindAnnotation, "target", entity.ID)
	if err != nil {
		return 0, err
	}
	if document.CountsRoleUsage(entity.Type) {
		roles, err := r.CountDocuments(ctx, document.KindAnnotation, "role", entity.ID)
		if err != nil {
			return 0, err
		}
		total += roles
	}
	return total, nil
}

// countClips counts distinct clips naming id in any counted field.
func countClips(ctx context.Context, r storage.DocumentReader, id string) (int, error) {
	seen := make(map[string]struct{})
	for _, field := range clipCountFields {
		docs, err := r.FindDocuments(ctx, document.KindClip, field, id)
		if err != nil {
			return 0, err
		}
		for _, doc := range docs {
			seen[doc.DocumentID()] = struct{}{}
		}
	}
	return len(seen), nil
}

// Recompute refreshes the stored count of each id. Ids that do not resolve
// to an entity are logged and skipped.
func Recompute(ctx context.Context, s storage.DocumentStore, ids []string, logger logrus.FieldLogger) error {
	logger = logging.OrDefault(logger)
	for _, id := range ids {
		entity, err := storage.GetAs[document.Entity](ctx, s, id)
		if errors.Is(err, storage.ErrNotFound) || errors.Is(err, storage.ErrKindMismatch) {
			logger.WithField("entity_id", id).Warn("usage count skipped: no such entity")
			continue
		}
		if err != nil {
			return fmt.Errorf("load entity %s: %w", id, err)
		}
		if err := store(ctx, s, entity); err != nil {
			return err
		}
	}
	return nil
}

// RecomputeAll refreshes the count of every entity.
func RecomputeAll(ctx context.Context, s storage.DocumentStore) error {
	entities, err := storage.ListAs[document.Entity](ctx, s, document.KindEntity)
	if err != nil {
		return fmt.Errorf("list entities: %w", err)
	}
	for _, entity := range entities {
		if err := store(ctx, s, entity); err != nil {
			return err
		}
	}
	return nil
}

func store(ctx context.Context, s storage.DocumentStore, entity *document.Entity) error {
	count, err := Count(ctx, s, entity)
	if err != nil {
		return fmt.Errorf("count usage of %s: %w", entity.ID, err)
	}
	if count == entity.UsageCount {
		return nil
	}
	entity.UsageCount = count
	if err := s.PutDocument(ctx, entity); err != nil {
		return fmt.Errorf("store usage of %s: %w", entity.ID, err)
	}
	return nil
}

// Referenced collects the distinct non-empty ids found at fields across
// bodies. Scalar and array fields are both accepted; nil bodies are skipped.
func Referenced(fields []string, bodies ...json.RawMessage) []string {
	seen := make(map[string]struct{})
	add := func(value gjson.Result) {
		if id := value.String(); value.Type == gjson.String && id != "" {
			seen[id] = struct{}{}
		}
	}
	for _, body := range bodies {
		if len(body) == 0 {
			continue
		}
		for _, field := range fields {
			value := gjson.GetBytes(body, field)
			if value.IsArray() {
				value.ForEach(func(_, item gjson.Result) bool {
					add(item)
					return true
				})
				continue
			}
			add(value)
		}
	}
	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
