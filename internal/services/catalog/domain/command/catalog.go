package command

import (
	"github.com/tellingsounds/lama/internal/services/catalog/domain/document"
	"github.com/tellingsounds/lama/internal/services/catalog/domain/event"
)

// Catalog returns the registry of every catalog command.
func Catalog() (*Registry, error) {
	reg := NewRegistry()
	defs := []Definition{
		{Type: TypeCreateEntity, Event: event.TypeEntityCreated, Kind: KindCreate, Document: document.KindEntity, IDs: IDHumanReadable},
		{Type: TypeUpdateEntity, Event: event.TypeEntityUpdated, Kind: KindUpdate, Document: document.KindEntity},
		{Type: TypeDeleteEntity, Event: event.TypeEntityDeleted, Kind: KindDelete, Document: document.KindEntity},
		{Type: TypeAddEntityRelation, Event: event.TypeEntityRelationAdded, Kind: KindOther, SubjectField: "_id"},
		{Type: TypeRemoveEntityRelation, Event: event.TypeEntityRelationRemoved, Kind: KindOther, SubjectField: "_id"},

		{Type: TypeCreateClip, Event: event.TypeClipCreated, Kind: KindCreate, Document: document.KindClip, IDs: IDOpaque},
		{Type: TypeUpdateClip, Event: event.TypeClipUpdated, Kind: KindUpdate, Document: document.KindClip},
		{Type: TypeDeleteClip, Event: event.TypeClipDeleted, Kind: KindDelete, Document: document.KindClip, Privilege: PrivilegeAdmin},
		{Type: TypeSetClipFavoriteStatus, Event: event.TypeClipFavoriteStatusSet, Kind: KindOther, SubjectField: "clipId"},

		{Type: TypeCreateAnnotation, Event: event.TypeAnnotationCreated, Kind: KindCreate, Document: document.KindAnnotation, IDs: IDOpaque},
		{Type: TypeUpdateAnnotation, Event: event.TypeAnnotationUpdated, Kind: KindUpdate, Document: document.KindAnnotation},
		{Type: TypeDeleteAnnotation, Event: event.TypeAnnotationDeleted, Kind: KindDelete, Document: document.KindAnnotation},

		{Type: TypeCreateElement, Event: event.TypeElementCreated, Kind: KindCreate, Document: document.KindElement, IDs: IDOpaque},
		{Type: TypeUpdateElement, Event: event.TypeElementUpdated, Kind: KindUpdate, Document: document.KindElement},
		{Type: TypeDeleteElement, Event: event.TypeElementDeleted, Kind: KindDelete, Document: document.KindElement},

		{Type: TypeCreateLayer, Event: event.TypeLayerCreated, Kind: KindCreate, Document: document.KindLayer, IDs: IDOpaque},
		{Type: TypeUpdateLayer, Event: event.TypeLayerUpdated, Kind: KindUpdate, Document: document.KindLayer},
		{Type: TypeDeleteLayer, Event: event.TypeLayerDeleted, Kind: KindDelete, Document: document.KindLayer},

		{Type: TypeCreateSegment, Event: event.TypeSegmentCreated, Kind: KindCreate, Document: document.KindSegment, IDs: IDOpaque},
		{Type: TypeUpdateSegment, Event: event.TypeSegmentUpdated, Kind: KindUpdate, Document: document.KindSegment},
		{Type: TypeDeleteSegment, Event: event.TypeSegmentDeleted, Kind: KindDelete, Document: document.KindSegment},
		{Type: TypeUpdateSegmentAnnotations, Event: event.TypeSegmentAnnotationsUpdated, Kind: KindUpdate, Document: document.KindSegment, SubjectField: "segment"},

		{Type: TypeRenameMergeEntity, Event: event.TypeEntityRenamedMerged, Kind: KindDelete, Document: document.KindEntity, SubjectField: "old", Privilege: PrivilegeAdmin},
		{Type: TypeRenameRelation, Event: event.TypeRelationRenamed, Kind: KindOther, Privilege: PrivilegeAdmin},
		{Type: TypeAddField, Event: event.TypeFieldAdded, Kind: KindOther, SubjectField: "collection", Privilege: PrivilegeAdmin},
		{Type: TypeSetFieldValue, Event: event.TypeFieldValueSet, Kind: KindUpdate, SubjectField: "_id", Privilege: PrivilegeAdmin},
		{Type: TypeLoadSnapshot, Event: event.TypeProjectionSnapshotLoaded, Kind: KindOther, Privilege: PrivilegeAdmin},
		{Type: TypeSetAnalysisCats, Event: event.TypeAnalysisCatsAttributesSet, Kind: KindOther, Privilege: PrivilegeAdmin},
	}
	for _, def := range defs {
		if def.Privilege == PrivilegeRead {
			def.Privilege = PrivilegeWrite
		}
		if err := reg.Register(def); err != nil {
			return nil, err
		}
	}
	return reg, nil
}
