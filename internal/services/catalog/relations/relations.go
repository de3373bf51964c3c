// Package relations mirrors entity-to-entity relations as SKOS triples for
// downstream graph consumers.
package relations

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/tellingsounds/lama/internal/services/catalog/domain/event"
)

const (
	PrefixSKOS   = "http://www.w3.org/2004/02/skos/core#"
	PrefixEntity = "https://tellingsounds.com/lama/entities#"
)

// Triple states that Subject relates to Target by Relation.
type Triple struct {
	Subject  string
	Relation string
	Target   string
}

// NTriple renders t as one N-Triples statement without a trailing newline.
func (t Triple) NTriple() string {
	return fmt.Sprintf("<%s%s> <%s%s> <%s%s> .",
		PrefixEntity, t.Subject, PrefixSKOS, t.Relation, PrefixEntity, t.Target)
}

// FromEvent extracts the triple of an EntityRelationAdded/Removed event.
func FromEvent(evt event.Event) (Triple, error) {
	var payload event.RelationPayload
	if err := json.Unmarshal(evt.Data, &payload); err != nil {
		return Triple{}, fmt.Errorf("decode relation event %d: %w", evt.ID, err)
	}
	return Triple{Subject: payload.ID, Relation: payload.Relation, Target: payload.Target}, nil
}

// Mirror receives relation changes.
type Mirror interface {
	Add(ctx context.Context, t Triple) error
	Remove(ctx context.Context, t Triple) error
}

// Memory is an in-process triple set.
type Memory struct {
	mu      sync.RWMutex
	triples map[Triple]struct{}
}

var _ Mirror = (*Memory)(nil)

// NewMemory returns an empty triple set.
func NewMemory() *Memory {
	return &Memory{triples: make(map[Triple]struct{})}
}

func (m *Memory) Add(_ context.Context, t Triple) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.triples[t] = struct{}{}
	return nil
}

func (m *Memory) Remove(_ context.Context, t Triple) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.triples, t)
	return nil
}

// Triples returns the set ordered by subject, relation, target.
func (m *Memory) Triples() []Triple {
	m.mu.RLock()
	out := make([]Triple, 0, len(m.triples))
	for t := range m.triples {
		out = append(out, t)
	}
	m.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Subject != b.Subject {
			return a.Subject < b.Subject
		}
		if a.Relation != b.Relation {
			return a.Relation < b.Relation
		}
		return a.Target < b.Target
	})
	return out
}

// Related groups the targets of subject by relation.
func (m *Memory) Related(subject string) map[string][]string {
	out := make(map[string][]string)
	for _, t := range m.Triples() {
		if t.Subject == subject {
			out[t.Relation] = append(out[t.Relation], t.Target)
		}
	}
	return out
}

// EventLister reads events of given types in log order.
type EventLister interface {
	ListEventsByType(ctx context.Context, types []event.Type, subjectID string) ([]event.Event, error)
}

// Resync replays every relation event of the log into a fresh set.
func Resync(ctx context.Context, events EventLister) (*Memory, error) {
	list, err := events.ListEventsByType(ctx,
		[]event.Type{event.TypeEntityRelationAdded, event.TypeEntityRelationRemoved}, "")
	if err != nil {
		return nil, fmt.Errorf("list relation events: %w", err)
	}
	mirror := NewMemory()
	for _, evt := range list {
		if err := Feed(ctx, mirror, evt); err != nil {
			return nil, err
		}
	}
	return mirror, nil
}

// Feed applies one relation event to mirror. Other event types are ignored.
func Feed(ctx context.Context, mirror Mirror, evt event.Event) error {
	var apply func(context.Context, Triple) error
	switch evt.Type {
	case event.TypeEntityRelationAdded:
		apply = mirror.Add
	case event.TypeEntityRelationRemoved:
		apply = mirror.Remove
	default:
		return nil
	}
	t, err := FromEvent(evt)
	if err != nil {
		return err
	}
	return apply(ctx, t)
}

// WriteNTriples writes one statement per line.
func WriteNTriples(w io.Writer, triples []Triple) error {
	bw := bufio.NewWriter(w)
	for _, t := range triples {
		if _, err := bw.WriteString(t.NTriple() + "\n"); err != nil {
			return err
		}
	}
	return bw.Flush()
}
