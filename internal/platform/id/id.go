// Package id assigns document identifiers. Identifiers are unique across all
// document types and always carry the document type: `_{type}_{suffix}`.
package id

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/tellingsounds/lama/internal/platform/textfold"
)

var (
	// ErrTypeRequired indicates an identifier was requested without a document type.
	ErrTypeRequired = errors.New("document type is required")
	// ErrEmptySlug indicates a label that folds to an empty slug.
	ErrEmptySlug = errors.New("label has no identifier characters")
)

// ExistsFunc reports whether an identifier is already taken anywhere.
type ExistsFunc func(ctx context.Context, id string) (bool, error)

// NewOpaque returns `_{type}_{uuid}`.
func NewOpaque(docType string) (string, error) {
	docType = strings.TrimSpace(docType)
	if docType == "" {
		return "", ErrTypeRequired
	}
	return "_" + docType + "_" + uuid.NewString(), nil
}

// NewHumanReadable returns `_{type}_{slug}`, appending `_1`, `_2`, ... until
// exists reports the identifier free.
func NewHumanReadable(ctx context.Context, docType, label string, exists ExistsFunc) (string, error) {
	docType = strings.TrimSpace(docType)
	if docType == "" {
		return "", ErrTypeRequired
	}
	if exists == nil {
		return "", errors.New("exists lookup is required")
	}
	slug := textfold.Slug(label)
	if slug == "" {
		return "", ErrEmptySlug
	}

	base := "_" + docType + "_" + slug
	candidate := base
	for i := 1; ; i++ {
		taken, err := exists(ctx, candidate)
		if err != nil {
			return "", fmt.Errorf("check id %s: %w", candidate, err)
		}
		if !taken {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s_%d", base, i)
	}
}

// TypeOf returns the document type segment of an identifier, or "" when the
// identifier does not follow the `_{type}_{suffix}` form.
func TypeOf(id string) string {
	if !strings.HasPrefix(id, "_") {
		return ""
	}
	rest := id[1:]
	idx := strings.Index(rest, "_")
	if idx <= 0 {
		return ""
	}
	return rest[:idx]
}
