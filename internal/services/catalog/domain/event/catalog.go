package event

import (
	"github.com/go-playground/validator/v10"

	"github.com/tellingsounds/lama/internal/services/catalog/domain/document"
)

// Catalog returns the registry of every catalog event type.
//
// Element, Layer and Segment Created/Updated are at version 2 (timecode
// range lists); everything else is at version 1. Administrative events
// other than AnalysisCatsAttributesSet carry no schema.
func Catalog() (*Registry, error) {
	v := NewValidator()
	reg := NewRegistry()

	deleted := map[int]Schema{1: StructSchema[DeletedPayload](v)}
	defs := []Definition{
		docDef[document.Entity](v, TypeEntityCreated),
		docDef[document.Entity](v, TypeEntityUpdated),
		{Type: TypeEntityDeleted, Version: 1, Schemas: deleted},
		{Type: TypeEntityRelationAdded, Version: 1, Schemas: map[int]Schema{1: StructSchema[RelationPayload](v)}},
		{Type: TypeEntityRelationRemoved, Version: 1, Schemas: map[int]Schema{1: StructSchema[RelationPayload](v)}},

		docDef[document.Clip](v, TypeClipCreated),
		docDef[document.Clip](v, TypeClipUpdated),
		{Type: TypeClipDeleted, Version: 1, Schemas: deleted},
		{Type: TypeClipFavoriteStatusSet, Version: 1, Schemas: map[int]Schema{1: StructSchema[FavoritePayload](v)}},

		docDef[document.Annotation](v, TypeAnnotationCreated),
		docDef[document.Annotation](v, TypeAnnotationUpdated),
		{Type: TypeAnnotationDeleted, Version: 1, Schemas: deleted},

		timecodedDef[ElementV1, document.Element](v, TypeElementCreated),
		timecodedDef[ElementV1, document.Element](v, TypeElementUpdated),
		{Type: TypeElementDeleted, Version: 1, Schemas: deleted},

		{Type: TypeLayerCreated, Version: 2, Schemas: map[int]Schema{2: StructSchema[document.Layer](v)}},
		{Type: TypeLayerUpdated, Version: 2, Schemas: map[int]Schema{2: StructSchema[document.Layer](v)}},
		{Type: TypeLayerDeleted, Version: 1, Schemas: deleted},

		timecodedDef[SegmentV1, document.Segment](v, TypeSegmentCreated),
		timecodedDef[SegmentV1, document.Segment](v, TypeSegmentUpdated),
		{Type: TypeSegmentDeleted, Version: 1, Schemas: deleted},
		{Type: TypeSegmentAnnotationsUpdated, Version: 1, Schemas: map[int]Schema{1: StructSchema[SegmentAnnotationsPayload](v)}},

		{Type: TypeAnalysisCatsAttributesSet, Version: 1, Schemas: map[int]Schema{1: analysisCatsSchema(v)}},
		{Type: TypeEntityRenamedMerged, Version: 1},
		{Type: TypeRelationRenamed, Version: 1},
		{Type: TypeFieldAdded, Version: 1},
		{Type: TypeFieldValueSet, Version: 1},
		{Type: TypeProjectionSnapshotLoaded, Version: 1},
	}
	for _, def := range defs {
		if err := reg.Register(def); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

func docDef[T any](v *validator.Validate, t Type) Definition {
	return Definition{Type: t, Version: 1, Schemas: map[int]Schema{1: StructSchema[T](v)}}
}

func timecodedDef[V1, V2 any](v *validator.Validate, t Type) Definition {
	return Definition{Type: t, Version: 2, Schemas: map[int]Schema{
		1: StructSchema[V1](v),
		2: StructSchema[V2](v),
	}}
}
