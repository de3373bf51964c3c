// Package rules checks commands against the current projection before any
// event is produced.
package rules

import (
	"context"
	"errors"
	"fmt"
	"strings"

	apperrors "github.com/tellingsounds/lama/internal/platform/errors"
	"github.com/tellingsounds/lama/internal/services/catalog/domain/command"
	"github.com/tellingsounds/lama/internal/services/catalog/domain/document"
	"github.com/tellingsounds/lama/internal/services/catalog/storage"
)

type rule func(ctx context.Context, c Checker, payload []byte) error

var commandRules = map[command.Type]rule{
	command.TypeCreateEntity:             checkCreateEntity,
	command.TypeDeleteEntity:             checkDeleteEntity,
	command.TypeAddEntityRelation:        checkEntityRelation,
	command.TypeRemoveEntityRelation:     checkEntityRelation,
	command.TypeCreateClip:               checkClipURL,
	command.TypeUpdateClip:               checkClipURL,
	command.TypeSetClipFavoriteStatus:    checkFavorite,
	command.TypeCreateAnnotation:         checkCreateAnnotation,
	command.TypeDeleteAnnotation:         checkDeleteAnnotation,
	command.TypeCreateElement:            checkClipChild,
	command.TypeDeleteElement:            checkDeleteElement,
	command.TypeCreateLayer:              checkCreateLayer,
	command.TypeDeleteLayer:              checkDeleteLayer,
	command.TypeCreateSegment:            checkClipChild,
	command.TypeUpdateSegmentAnnotations: checkSegmentAnnotations,
	command.TypeRenameMergeEntity:        checkRenameMerge,
	command.TypeRenameRelation:           checkRenameRelation,
	command.TypeAddField:                 checkAddField,
	command.TypeSetFieldValue:            checkSetFieldValue,
	command.TypeLoadSnapshot:             checkSnapshot,
	command.TypeSetAnalysisCats:          checkAnalysisCats,
}

// Checker validates commands against the projection.
type Checker struct {
	Docs       storage.DocumentReader
	Privileges PrivilegeResolver
}

// Check enforces the privilege def demands and the command's domain rule.
// Rule violations are validation errors; store failures are returned as-is.
func (c Checker) Check(ctx context.Context, def command.Definition, cmd command.Command) error {
	if c.Docs == nil {
		return errors.New("document reader is required")
	}
	if def.Privilege > command.PrivilegeRead {
		if err := c.requirePrivilege(ctx, def, cmd.ActorID); err != nil {
			return err
		}
	}
	check, ok := commandRules[def.Type]
	if !ok {
		return nil
	}
	return check(ctx, c, cmd.Payload)
}

func (c Checker) requirePrivilege(ctx context.Context, def command.Definition, actorID string) error {
	if strings.TrimSpace(actorID) == "" {
		return apperrors.Validation("actor is required")
	}
	have := command.PrivilegeWrite
	if c.Privileges != nil {
		p, err := c.Privileges.Privilege(ctx, actorID)
		if err != nil {
			return fmt.Errorf("resolve privilege: %w", err)
		}
		have = p
	}
	if have < def.Privilege {
		return apperrors.WithMetadata(apperrors.CodeValidation,
			fmt.Sprintf("%s requires %s privilege", def.Type, privilegeName(def.Privilege)),
			map[string]string{"actor_id": actorID, "command_type": string(def.Type)})
	}
	return nil
}

func privilegeName(p command.Privilege) string {
	switch p {
	case command.PrivilegeAdmin:
		return "admin"
	case command.PrivilegeWrite:
		return "write"
	default:
		return "read"
	}
}

// requireDocument fails validation unless id names an existing document of
// kind. An empty id fails too.
func (c Checker) requireDocument(ctx context.Context, kind document.Kind, id string) error {
	if id == "" {
		return apperrors.Validation(strings.ToLower(string(kind)) + " is required")
	}
	doc, err := c.Docs.GetDocument(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return apperrors.Validation(fmt.Sprintf("%s does not exist: %s", strings.ToLower(string(kind)), id))
	}
	if err != nil {
		return err
	}
	if doc.Kind() != kind {
		return apperrors.Validation(fmt.Sprintf("%s: expected %s, got %s", id,
			strings.ToLower(string(kind)), strings.ToLower(string(doc.Kind()))))
	}
	return nil
}

// optionalDocument is requireDocument for fields that may be omitted.
func (c Checker) optionalDocument(ctx context.Context, kind document.Kind, id string) error {
	if id == "" {
		return nil
	}
	return c.requireDocument(ctx, kind, id)
}

// referencedBy lists ids of kind documents naming id in any of fields.
func (c Checker) referencedBy(ctx context.Context, kind document.Kind, id string, fields ...string) ([]string, error) {
	var ids []string
	seen := make(map[string]bool)
	for _, field := range fields {
		docs, err := c.Docs.FindDocuments(ctx, kind, field, id)
		if err != nil {
			return nil, err
		}
		for _, doc := range docs {
			if !seen[doc.DocumentID()] {
				seen[doc.DocumentID()] = true
				ids = append(ids, doc.DocumentID())
			}
		}
	}
	return ids, nil
}
