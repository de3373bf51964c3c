package document

import (
	"fmt"
	"sort"
)

// Snapshot is the whole projection grouped by kind.
type Snapshot struct {
	Annotations []*Annotation `json:"annotations"`
	Clips       []*Clip       `json:"clips"`
	Elements    []*Element    `json:"elements"`
	Entities    []*Entity     `json:"entities"`
	Layers      []*Layer      `json:"layers"`
	Segments    []*Segment    `json:"segments"`
	Users       []*User       `json:"users"`
}

// NewSnapshot groups docs by kind. Each group is ordered by id.
func NewSnapshot(docs []Document) (*Snapshot, error) {
	snap := &Snapshot{
		Annotations: []*Annotation{},
		Clips:       []*Clip{},
		Elements:    []*Element{},
		Entities:    []*Entity{},
		Layers:      []*Layer{},
		Segments:    []*Segment{},
		Users:       []*User{},
	}
	sorted := append([]Document(nil), docs...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].DocumentID() < sorted[j].DocumentID() })
	for _, doc := range sorted {
		if err := snap.add(doc); err != nil {
			return nil, err
		}
	}
	return snap, nil
}

func (s *Snapshot) add(doc Document) error {
	switch d := doc.(type) {
	case *Annotation:
		s.Annotations = append(s.Annotations, d)
	case *Clip:
		s.Clips = append(s.Clips, d)
	case *Element:
		s.Elements = append(s.Elements, d)
	case *Entity:
		s.Entities = append(s.Entities, d)
	case *Layer:
		s.Layers = append(s.Layers, d)
	case *Segment:
		s.Segments = append(s.Segments, d)
	case *User:
		s.Users = append(s.Users, d)
	default:
		return fmt.Errorf("unsupported document %T", doc)
	}
	return nil
}

// Documents flattens the snapshot in kind order, skipping null entries.
func (s *Snapshot) Documents() []Document {
	if s == nil {
		return nil
	}
	out := make([]Document, 0, s.Len())
	for _, d := range s.Annotations {
		if d != nil {
			out = append(out, d)
		}
	}
	for _, d := range s.Clips {
		if d != nil {
			out = append(out, d)
		}
	}
	for _, d := range s.Elements {
		if d != nil {
			out = append(out, d)
		}
	}
	for _, d := range s.Entities {
		if d != nil {
			out = append(out, d)
		}
	}
	for _, d := range s.Layers {
		if d != nil {
			out = append(out, d)
		}
	}
	for _, d := range s.Segments {
		if d != nil {
			out = append(out, d)
		}
	}
	for _, d := range s.Users {
		if d != nil {
			out = append(out, d)
		}
	}
	return out
}

// Len counts documents across all kinds.
func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Annotations) + len(s.Clips) + len(s.Elements) + len(s.Entities) +
		len(s.Layers) + len(s.Segments) + len(s.Users)
}
