package event

import (
	"encoding/json"

	"github.com/tellingsounds/lama/internal/services/catalog/domain/document"
)

// DeletedPayload is the data of every *Deleted event.
type DeletedPayload struct {
	ID string `json:"_id" validate:"required"`
}

// FavoritePayload is the data of ClipFavoriteStatusSet.
type FavoritePayload struct {
	ClipID     string `json:"clipId" validate:"required"`
	UserID     string `json:"userId" validate:"required"`
	IsFavorite bool   `json:"isFavorite"`
}

// RelationPayload is the data of EntityRelationAdded/Removed: the subject
// entity relates to the target entity.
type RelationPayload struct {
	ID       string `json:"_id" validate:"required"`
	Relation string `json:"relation" validate:"required"`
	Target   string `json:"target" validate:"required"`
}

// SegmentAnnotationsPayload is the data of SegmentAnnotationsUpdated.
type SegmentAnnotationsPayload struct {
	Segment     string   `json:"segment" validate:"required"`
	Annotations []string `json:"annotations" validate:"dive,required"`
}

// RenamePayload is the data of EntityRenamedMerged and RelationRenamed.
type RenamePayload struct {
	Old string `json:"old"`
	New string `json:"new"`
}

// FieldAddedPayload is the data of FieldAdded.
type FieldAddedPayload struct {
	Collection string          `json:"collection"`
	Field      string          `json:"field"`
	Default    json.RawMessage `json:"default"`
}

// FieldValuePayload is the data of FieldValueSet.
type FieldValuePayload struct {
	Collection string          `json:"collection"`
	ID         string          `json:"_id"`
	Field      string          `json:"field"`
	Value      json.RawMessage `json:"value"`
}

// AnalysisCatsFields are the fields AnalysisCatsAttributesSet sets on one
// topic. A nil field is left unchanged.
type AnalysisCatsFields struct {
	AnalysisCategories []string          `json:"analysisCategories,omitempty" validate:"omitempty,dive,analysiscat"`
	Attributes         map[string]string `json:"attributes,omitempty"`
}

// AnalysisCatsPayload is the data of AnalysisCatsAttributesSet, keyed by
// entity id.
type AnalysisCatsPayload map[string]AnalysisCatsFields

// SnapshotPayload is the data of ProjectionSnapshotLoaded.
type SnapshotPayload = document.Snapshot

// ElementV1 is the version 1 shape of ElementCreated/Updated, with a single
// timecode range stored as separate scalars.
type ElementV1 struct {
	ID            string `json:"_id" validate:"required"`
	Type          string `json:"type" validate:"oneof=Music Speech Noise Picture Structure"`
	Clip          string `json:"clip" validate:"required"`
	Label         string `json:"label" validate:"required"`
	Description   string `json:"description"`
	TimecodeStart *int   `json:"timecodeStart" validate:"omitempty,gte=0"`
	TimecodeEnd   *int   `json:"timecodeEnd" validate:"omitempty,gte=0"`
}

// SegmentV1 is the version 1 shape of SegmentCreated/Updated.
type SegmentV1 struct {
	ID            string                       `json:"_id" validate:"required"`
	Type          string                       `json:"type" validate:"eq=Segment"`
	Clip          string                       `json:"clip" validate:"required"`
	Label         string                       `json:"label" validate:"required"`
	Description   string                       `json:"description"`
	TimecodeStart *int                         `json:"timecodeStart" validate:"omitempty,gte=0"`
	TimecodeEnd   *int                         `json:"timecodeEnd" validate:"omitempty,gte=0"`
	Contains      []document.SegmentAnnotation `json:"segmentContains" validate:"dive"`
}
