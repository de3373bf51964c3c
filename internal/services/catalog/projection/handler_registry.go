package projection

import (
	"context"

	"github.com/tellingsounds/lama/internal/services/catalog/domain/document"
	"github.com/tellingsounds/lama/internal/services/catalog/domain/event"
	"github.com/tellingsounds/lama/internal/services/catalog/domain/usage"
)

// HandlerFunc mutates the projection for one event. Middleware may rewrite
// the event before passing it on.
type HandlerFunc func(ctx context.Context, ac *applyContext, evt *event.Event) error

// Middleware wraps a handler.
type Middleware func(HandlerFunc) HandlerFunc

// chain wraps h so that the first middleware runs outermost.
func chain(h HandlerFunc, mws ...Middleware) HandlerFunc {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

type route struct {
	handler    HandlerFunc
	middleware []Middleware
}

func (a *Applier) buildRoutes() map[event.Type]HandlerFunc {
	clipUsage := a.withUsageCounts(usage.ClipFields...)
	annotationUsage := a.withUsageCounts(usage.AnnotationFields...)
	entityUsage := a.withUsageCounts("_id")
	recount := a.withUsageRecount
	timecodes := withTimecodeUpgrade
	entitySearch := a.withSearchInvalidation
	relationMirror := a.withRelationMirror

	table := map[event.Type]route{
		event.TypeEntityCreated:         {createDocument(document.KindEntity), []Middleware{entitySearch, entityUsage}},
		event.TypeEntityUpdated:         {updateDocument(document.KindEntity), []Middleware{entitySearch, entityUsage}},
		event.TypeEntityDeleted:         {deleteDocument(document.KindEntity, nil), []Middleware{entitySearch}},
		event.TypeEntityRelationAdded:   {noop, []Middleware{relationMirror}},
		event.TypeEntityRelationRemoved: {noop, []Middleware{relationMirror}},
		event.TypeEntityRenamedMerged:   {applyRenameMerge, []Middleware{entitySearch, a.withUsageCounts("new")}},

		event.TypeClipCreated:           {createDocument(document.KindClip), []Middleware{clipUsage, withEffectiveID}},
		event.TypeClipUpdated:           {updateDocument(document.KindClip), []Middleware{clipUsage, withEffectiveID}},
		event.TypeClipDeleted:           {deleteDocument(document.KindClip, cascadeClip), []Middleware{entitySearch}},
		event.TypeClipFavoriteStatusSet: {applyFavorite, nil},

		event.TypeAnnotationCreated: {createDocument(document.KindAnnotation), []Middleware{annotationUsage}},
		event.TypeAnnotationUpdated: {updateDocument(document.KindAnnotation), []Middleware{annotationUsage}},
		event.TypeAnnotationDeleted: {deleteDocument(document.KindAnnotation, nil), []Middleware{annotationUsage}},

		event.TypeElementCreated: {createDocument(document.KindElement), []Middleware{timecodes}},
		event.TypeElementUpdated: {updateDocument(document.KindElement), []Middleware{timecodes}},
		event.TypeElementDeleted: {deleteDocument(document.KindElement, cascadeField("element")), nil},

		event.TypeLayerCreated: {createDocument(document.KindLayer), []Middleware{timecodes}},
		event.TypeLayerUpdated: {updateDocument(document.KindLayer), []Middleware{timecodes}},
		event.TypeLayerDeleted: {deleteDocument(document.KindLayer, cascadeField("layer")), nil},

		event.TypeSegmentCreated:            {createDocument(document.KindSegment), []Middleware{timecodes}},
		event.TypeSegmentUpdated:            {updateDocument(document.KindSegment), []Middleware{timecodes}},
		event.TypeSegmentDeleted:            {deleteDocument(document.KindSegment, cascadeField("segment")), nil},
		event.TypeSegmentAnnotationsUpdated: {applySegmentAnnotations, nil},

		event.TypeRelationRenamed:           {applyRelationRenamed, nil},
		event.TypeAnalysisCatsAttributesSet: {applyAnalysisCats, []Middleware{entitySearch}},
		event.TypeFieldAdded:                {applyFieldAdded, []Middleware{entitySearch, recount}},
		event.TypeFieldValueSet:             {applyFieldValueSet, []Middleware{entitySearch, recount}},
		event.TypeProjectionSnapshotLoaded:  {applySnapshot, []Middleware{entitySearch, recount}},
	}

	routes := make(map[event.Type]HandlerFunc, len(table))
	for t, r := range table {
		routes[t] = chain(r.handler, r.middleware...)
	}
	return routes
}

func noop(context.Context, *applyContext, *event.Event) error { return nil }
