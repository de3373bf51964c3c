package search

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/tellingsounds/lama/internal/services/catalog/storage"
)

// NewMemoryIndex returns an index cached in process memory.
func NewMemoryIndex(source storage.DocumentReader, logger logrus.FieldLogger) *Index {
	return newIndex(source, &memoryBackend{}, logger)
}

type memoryBackend struct {
	mu         sync.RWMutex
	entries    []Entry
	built      bool
	generation int64
}

func (m *memoryBackend) load(context.Context) ([]Entry, int64, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.entries, m.generation, m.built
}

func (m *memoryBackend) save(_ context.Context, entries []Entry, generation int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if generation != m.generation {
		return errStaleBuild
	}
	m.entries = entries
	m.built = true
	return nil
}

func (m *memoryBackend) drop(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = nil
	m.built = false
	m.generation++
	return nil
}
