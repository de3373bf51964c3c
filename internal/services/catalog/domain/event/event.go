// Package event defines the catalog event envelope, its type and version
// table, and the per-(type, version) payload schemas.
package event

import (
	"encoding/json"
	"time"
)

// Type identifies an event.
type Type string

const (
	TypeAnalysisCatsAttributesSet Type = "AnalysisCatsAttributesSet"
	TypeAnnotationCreated         Type = "AnnotationCreated"
	TypeAnnotationUpdated         Type = "AnnotationUpdated"
	TypeAnnotationDeleted         Type = "AnnotationDeleted"
	TypeClipCreated               Type = "ClipCreated"
	TypeClipUpdated               Type = "ClipUpdated"
	TypeClipDeleted               Type = "ClipDeleted"
	TypeClipFavoriteStatusSet     Type = "ClipFavoriteStatusSet"
	TypeElementCreated            Type = "ElementCreated"
	TypeElementUpdated            Type = "ElementUpdated"
	TypeElementDeleted            Type = "ElementDeleted"
	TypeEntityCreated             Type = "EntityCreated"
	TypeEntityUpdated             Type = "EntityUpdated"
	TypeEntityDeleted             Type = "EntityDeleted"
	TypeEntityRelationAdded       Type = "EntityRelationAdded"
	TypeEntityRelationRemoved     Type = "EntityRelationRemoved"
	TypeEntityRenamedMerged       Type = "EntityRenamedMerged"
	TypeFieldAdded                Type = "FieldAdded"
	TypeFieldValueSet             Type = "FieldValueSet"
	TypeLayerCreated              Type = "LayerCreated"
	TypeLayerUpdated              Type = "LayerUpdated"
	TypeLayerDeleted              Type = "LayerDeleted"
	TypeProjectionSnapshotLoaded  Type = "ProjectionSnapshotLoaded"
	TypeRelationRenamed           Type = "RelationRenamed"
	TypeSegmentAnnotationsUpdated Type = "SegmentAnnotationsUpdated"
	TypeSegmentCreated            Type = "SegmentCreated"
	TypeSegmentUpdated            Type = "SegmentUpdated"
	TypeSegmentDeleted            Type = "SegmentDeleted"
)

// Event is an immutable fact. ID is assigned by the log on append.
type Event struct {
	ID        int64
	Timestamp time.Time
	Type      Type
	Version   int
	ActorID   string
	// SubjectID is the document the event concerns, or for relation events
	// the acting entity.
	SubjectID string
	Data      json.RawMessage
	// PreviousData is the subject's projected state before the change; nil
	// when the event does not replace or remove an existing document.
	PreviousData json.RawMessage
}

// Cursor returns the log position of evt.
func (e Event) Cursor() Cursor {
	return Cursor{Timestamp: e.Timestamp, ID: e.ID}
}

// Cursor is a position in the log's (timestamp, id) order. The zero value
// is before the first event.
type Cursor struct {
	Timestamp time.Time
	ID        int64
}

// IsZero reports whether c points before the first event.
func (c Cursor) IsZero() bool {
	return c.ID == 0 && c.Timestamp.IsZero()
}

// NextTimestamp returns now truncated to milliseconds in UTC, bumped past
// last so that timestamps strictly increase in append order.
func NextTimestamp(last, now time.Time) time.Time {
	next := now.UTC().Truncate(time.Millisecond)
	if !last.IsZero() && !next.After(last) {
		next = last.UTC().Truncate(time.Millisecond).Add(time.Millisecond)
	}
	return next
}
