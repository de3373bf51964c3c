// Package storage declares the persistence contracts of the catalog: an
// append-only event log and a document projection.
package storage

import (
	"context"
	"encoding/json"
	"errors"

	apperrors "github.com/tellingsounds/lama/internal/platform/errors"
	"github.com/tellingsounds/lama/internal/services/catalog/domain/document"
	"github.com/tellingsounds/lama/internal/services/catalog/domain/event"
)

// ErrNotFound indicates a requested record is missing.
var ErrNotFound = apperrors.New(apperrors.CodeNotFound, "record not found")

// ErrAlreadyExists indicates an insert collided with an existing id.
var ErrAlreadyExists = errors.New("record already exists")

// ErrKindMismatch indicates a stored document has a different kind than asked for.
var ErrKindMismatch = errors.New("document kind mismatch")

// DocumentReader reads projected documents.
type DocumentReader interface {
	GetDocument(ctx context.Context, id string) (document.Document, error)
	DocumentExists(ctx context.Context, id string) (bool, error)
	ListDocuments(ctx context.Context, kind document.Kind) ([]document.Document, error)
	// FindDocuments returns documents of kind whose field equals value or,
	// for array fields, contains value.
	FindDocuments(ctx context.Context, kind document.Kind, field, value string) ([]document.Document, error)
	// CountDocuments counts what FindDocuments would return.
	CountDocuments(ctx context.Context, kind document.Kind, field, value string) (int, error)
}

// DocumentWriter mutates projected documents.
type DocumentWriter interface {
	InsertDocument(ctx context.Context, doc document.Document) error
	// PutDocument replaces an existing document; ErrNotFound if absent.
	PutDocument(ctx context.Context, doc document.Document) error
	// DeleteDocument removes a document; missing ids are not an error.
	DeleteDocument(ctx context.Context, id string) error
	// SetDocumentField writes value at field for one document, or for every
	// document of kind when id is empty. It returns the affected row count.
	SetDocumentField(ctx context.Context, kind document.Kind, id, field string, value json.RawMessage) (int64, error)
	ClearDocuments(ctx context.Context) error
}

// DocumentStore combines document reads and writes.
type DocumentStore interface {
	DocumentReader
	DocumentWriter
}

// ProjectionStore is the materialized view of the event log.
type ProjectionStore interface {
	DocumentStore
	// InTx runs fn against a transactional view. Every write made through it
	// commits together or not at all.
	InTx(ctx context.Context, fn func(tx DocumentStore) error) error
	// Reset drops and recreates the projection schema.
	Reset(ctx context.Context) error
}

// EventStore is the append-only event log.
type EventStore interface {
	// AppendEvent persists evt and returns it with its id assigned.
	AppendEvent(ctx context.Context, evt event.Event) (event.Event, error)
	// ListEvents pages events in (timestamp, id) order strictly after cursor.
	ListEvents(ctx context.Context, after event.Cursor, limit int) ([]event.Event, error)
	// ListEventsByType returns events of the given types in log order,
	// optionally restricted to one subject.
	ListEventsByType(ctx context.Context, types []event.Type, subjectID string) ([]event.Event, error)
	// ReplaceEvents atomically swaps the whole log, keeping event ids.
	ReplaceEvents(ctx context.Context, events []event.Event) error
	LatestEvent(ctx context.Context) (event.Event, error)
	LatestEventOfType(ctx context.Context, typ event.Type) (event.Event, error)
	CountEvents(ctx context.Context) (int, error)
}

// GetAs loads a document and asserts its concrete type.
func GetAs[T any, PT document.Ptr[T]](ctx context.Context, r DocumentReader, id string) (PT, error) {
	doc, err := r.GetDocument(ctx, id)
	if err != nil {
		return nil, err
	}
	typed, ok := doc.(PT)
	if !ok {
		return nil, ErrKindMismatch
	}
	return typed, nil
}

// FindAs is FindDocuments with typed results.
func FindAs[T any, PT document.Ptr[T]](ctx context.Context, r DocumentReader, kind document.Kind, field, value string) ([]PT, error) {
	docs, err := r.FindDocuments(ctx, kind, field, value)
	if err != nil {
		return nil, err
	}
	return typed[T, PT](docs)
}

// ListAs is ListDocuments with typed results.
func ListAs[T any, PT document.Ptr[T]](ctx context.Context, r DocumentReader, kind document.Kind) ([]PT, error) {
	docs, err := r.ListDocuments(ctx, kind)
	if err != nil {
		return nil, err
	}
	return typed[T, PT](docs)
}

func typed[T any, PT document.Ptr[T]](docs []document.Document) ([]PT, error) {
	out := make([]PT, 0, len(docs))
	for _, doc := range docs {
		item, ok := doc.(PT)
		if !ok {
			return nil, ErrKindMismatch
		}
		out = append(out, item)
	}
	return out, nil
}

// Snapshot reads the whole projection grouped by kind.
func Snapshot(ctx context.Context, r DocumentReader) (*document.Snapshot, error) {
	var all []document.Document
	for _, kind := range document.Kinds {
		docs, err := r.ListDocuments(ctx, kind)
		if err != nil {
			return nil, err
		}
		all = append(all, docs...)
	}
	return document.NewSnapshot(all)
}
