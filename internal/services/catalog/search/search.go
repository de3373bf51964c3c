// Package search keeps a lazily built entity lookup index. The index is
// derived from the projection and is dropped whenever entities change.
package search

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/tellingsounds/lama/internal/platform/logging"
	"github.com/tellingsounds/lama/internal/platform/textfold"
	"github.com/tellingsounds/lama/internal/services/catalog/domain/document"
	"github.com/tellingsounds/lama/internal/services/catalog/storage"
)

// Entry is one indexed entity.
type Entry struct {
	ID         string `json:"id"`
	Type       string `json:"type"`
	Label      string `json:"label"`
	UsageCount int    `json:"usageCount"`
	// Key is the folded label used for matching.
	Key string `json:"key"`
}

// Invalidator drops derived search state.
type Invalidator interface {
	Invalidate(ctx context.Context) error
}

// backend stores built entries. Every drop advances a generation; save
// only stores entries built from the generation its load observed, and
// reports errStaleBuild otherwise.
type backend interface {
	load(ctx context.Context) (entries []Entry, generation int64, ok bool)
	save(ctx context.Context, entries []Entry, generation int64) error
	drop(ctx context.Context) error
}

// errStaleBuild reports that the index was invalidated while it was built.
var errStaleBuild = errors.New("search index invalidated during build")

// Index answers entity lookups from a cached list of entries.
type Index struct {
	source  storage.DocumentReader
	backend backend
	logger  logrus.FieldLogger
}

var _ Invalidator = (*Index)(nil)

func newIndex(source storage.DocumentReader, b backend, logger logrus.FieldLogger) *Index {
	if source == nil {
		panic("search: document source is nil")
	}
	return &Index{source: source, backend: b, logger: logging.OrDefault(logger)}
}

// Invalidate drops the cached entries; the next lookup rebuilds them.
func (i *Index) Invalidate(ctx context.Context) error {
	if err := i.backend.drop(ctx); err != nil {
		return fmt.Errorf("invalidate search index: %w", err)
	}
	return nil
}

// EnsureBuilt builds the entries unless a cached copy exists.
func (i *Index) EnsureBuilt(ctx context.Context) error {
	_, err := i.entries(ctx)
	return err
}

// Search returns entities whose folded label contains every folded token of
// query, most used first. A non-positive limit returns all matches.
func (i *Index) Search(ctx context.Context, query string, limit int) ([]Entry, error) {
	entries, err := i.entries(ctx)
	if err != nil {
		return nil, err
	}
	tokens := strings.Fields(textfold.Key(query))
	var matches []Entry
	for _, entry := range entries {
		if matchesAll(entry.Key, tokens) {
			matches = append(matches, entry)
			if limit > 0 && len(matches) == limit {
				break
			}
		}
	}
	return matches, nil
}

func matchesAll(key string, tokens []string) bool {
	for _, token := range tokens {
		if !strings.Contains(key, token) {
			return false
		}
	}
	return true
}

func (i *Index) entries(ctx context.Context) ([]Entry, error) {
	cached, generation, ok := i.backend.load(ctx)
	if ok {
		return cached, nil
	}
	built, err := Build(ctx, i.source)
	if err != nil {
		return nil, err
	}
	switch err := i.backend.save(ctx, built, generation); {
	case errors.Is(err, errStaleBuild):
		i.logger.Debug("search index changed during build; not cached")
	case err != nil:
		i.logger.WithError(err).Warn("search index not cached")
	}
	return built, nil
}

// Build reads every entity from source into entries ordered by usage count
// (descending), then label, then id.
func Build(ctx context.Context, source storage.DocumentReader) ([]Entry, error) {
	entities, err := storage.ListAs[document.Entity](ctx, source, document.KindEntity)
	if err != nil {
		return nil, fmt.Errorf("build search index: %w", err)
	}
	entries := make([]Entry, 0, len(entities))
	for _, e := range entities {
		entries = append(entries, Entry{
			ID:         e.ID,
			Type:       e.Type,
			Label:      e.Label,
			UsageCount: e.UsageCount,
			Key:        textfold.Key(e.Label),
		})
	}
	sort.SliceStable(entries, func(a, b int) bool {
		if entries[a].UsageCount != entries[b].UsageCount {
			return entries[a].UsageCount > entries[b].UsageCount
		}
		if entries[a].Key != entries[b].Key {
			return entries[a].Key < entries[b].Key
		}
		return entries[a].ID < entries[b].ID
	})
	return entries, nil
}
