// Package document defines the typed records held by the projection store.
//
// Every document is keyed by an identifier that is unique across all kinds,
// so a single lookup can resolve any id without knowing its kind first.
package document

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"time"
)

// Kind names a document collection.
type Kind string

const (
	KindAnnotation Kind = "Annotation"
	KindClip       Kind = "Clip"
	KindElement    Kind = "Element"
	KindEntity     Kind = "Entity"
	KindLayer      Kind = "Layer"
	KindSegment    Kind = "Segment"
	KindUser       Kind = "User"
)

// Kinds lists every document kind in a stable order.
var Kinds = []Kind{KindAnnotation, KindClip, KindElement, KindEntity, KindLayer, KindSegment, KindUser}

// ParseKind resolves a kind name.
func ParseKind(value string) (Kind, bool) {
	value = strings.TrimSpace(value)
	for _, k := range Kinds {
		if string(k) == value {
			return k, true
		}
	}
	return "", false
}

// Collection returns the plural collection name of k, e.g. "entities".
func (k Kind) Collection() string {
	if k == KindEntity {
		return "entities"
	}
	return strings.ToLower(string(k)) + "s"
}

// ParseCollection resolves a kind from its name or its collection name.
func ParseCollection(value string) (Kind, bool) {
	if k, ok := ParseKind(value); ok {
		return k, true
	}
	value = strings.TrimSpace(value)
	for _, k := range Kinds {
		if k.Collection() == value {
			return k, true
		}
	}
	return "", false
}

// Meta is the server-assigned provenance carried by every document.
type Meta struct {
	CreatedAt time.Time  `json:"createdAt"`
	CreatedBy string     `json:"createdBy"`
	UpdatedAt *time.Time `json:"updatedAt,omitempty"`
	UpdatedBy string     `json:"updatedBy,omitempty"`
}

// Metadata returns m itself so embedding types satisfy Document.
func (m *Meta) Metadata() *Meta { return m }

// Created stamps creation provenance and clears update provenance.
func (m *Meta) Created(at time.Time, by string) {
	m.CreatedAt = at
	m.CreatedBy = by
	m.UpdatedAt = nil
	m.UpdatedBy = ""
}

// Updated stamps update provenance.
func (m *Meta) Updated(at time.Time, by string) {
	m.UpdatedAt = &at
	m.UpdatedBy = by
}

// Document is one typed record in the projection.
type Document interface {
	DocumentID() string
	Kind() Kind
	// ClipID is the owning clip, or "" for documents outside a clip.
	ClipID() string
	Metadata() *Meta
	// Inherit copies server-owned fields from the stored version so that a
	// client payload cannot overwrite them.
	Inherit(stored Document)
}

// Ptr constrains T so that *T is a Document; used for generic decoding.
type Ptr[T any] interface {
	*T
	Document
}

// New returns an empty document of the given kind.
func New(kind Kind) (Document, error) {
	switch kind {
	case KindAnnotation:
		return &Annotation{}, nil
	case KindClip:
		return &Clip{}, nil
	case KindElement:
		return &Element{}, nil
	case KindEntity:
		return &Entity{}, nil
	case KindLayer:
		return &Layer{}, nil
	case KindSegment:
		return &Segment{}, nil
	case KindUser:
		return &User{}, nil
	default:
		return nil, fmt.Errorf("unknown document kind %q", kind)
	}
}

// Decode unmarshals body into a document of the given kind.
func Decode(kind Kind, body []byte) (Document, error) {
	doc, err := New(kind)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(body, doc); err != nil {
		return nil, fmt.Errorf("decode %s: %w", kind, err)
	}
	return doc, nil
}

// DecodeAs unmarshals body into a *T.
func DecodeAs[T any, PT Ptr[T]](body []byte) (PT, error) {
	var value T
	doc := PT(&value)
	if err := json.Unmarshal(body, doc); err != nil {
		return nil, fmt.Errorf("decode %s: %w", doc.Kind(), err)
	}
	return doc, nil
}

// Clone returns a deep copy of doc.
func Clone(doc Document) (Document, error) {
	body, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", doc.Kind(), err)
	}
	return Decode(doc.Kind(), body)
}

// SameContent reports whether a and b are equal ignoring updatedAt/updatedBy.
func SameContent(a, b Document) (bool, error) {
	if a == nil || b == nil {
		return a == nil && b == nil, nil
	}
	if a.Kind() != b.Kind() {
		return false, nil
	}
	left, err := contentMap(a)
	if err != nil {
		return false, err
	}
	right, err := contentMap(b)
	if err != nil {
		return false, err
	}
	return reflect.DeepEqual(left, right), nil
}

func contentMap(doc Document) (map[string]any, error) {
	body, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", doc.Kind(), err)
	}
	var fields map[string]any
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, fmt.Errorf("decode %s: %w", doc.Kind(), err)
	}
	delete(fields, "updatedAt")
	delete(fields, "updatedBy")
	return fields, nil
}

// Normalize trims surrounding whitespace from top-level string fields and
// string list elements.
func Normalize(doc Document) {
	v := reflect.ValueOf(doc)
	if v.Kind() != reflect.Pointer || v.IsNil() {
		return
	}
	trimFields(v.Elem())
}

func trimFields(v reflect.Value) {
	if v.Kind() != reflect.Struct {
		return
	}
	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		if !field.CanSet() {
			continue
		}
		switch field.Kind() {
		case reflect.String:
			field.SetString(strings.TrimSpace(field.String()))
		case reflect.Slice:
			if field.Type().Elem().Kind() == reflect.String {
				for j := 0; j < field.Len(); j++ {
					item := field.Index(j)
					item.SetString(strings.TrimSpace(item.String()))
				}
			}
		}
	}
}

// Fields lists the JSON field names a document of kind carries.
func Fields(kind Kind) []string {
	doc, err := New(kind)
	if err != nil {
		return nil
	}
	return jsonFields(reflect.TypeOf(doc).Elem())
}

// HasField reports whether field is part of kind's document model.
func HasField(kind Kind, field string) bool {
	for _, name := range Fields(kind) {
		if name == field {
			return true
		}
	}
	return false
}

func jsonFields(t reflect.Type) []string {
	var names []string
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if f.Anonymous && f.Type.Kind() == reflect.Struct {
			names = append(names, jsonFields(f.Type)...)
			continue
		}
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			continue
		}
		names = append(names, name)
	}
	return names
}
