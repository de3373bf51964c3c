package event

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrTypeRequired indicates a definition without a type.
	ErrTypeRequired = errors.New("event type is required")
	// ErrTypeUnknown indicates an event type with no definition.
	ErrTypeUnknown = errors.New("event type is not registered")
	// ErrVersionUnsupported indicates a version outside 1..current.
	ErrVersionUnsupported = errors.New("event version is not supported")
)

// Schema validates the data of one (type, version) pair.
type Schema func(data []byte) error

// Definition declares an event type: its current version and the schemas
// of every version it still accepts.
type Definition struct {
	Type    Type
	Version int
	Schemas map[int]Schema
}

// Registry is the event version table and schema validator.
type Registry struct {
	definitions map[Type]Definition
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{definitions: make(map[Type]Definition)}
}

// Register adds a definition.
func (r *Registry) Register(def Definition) error {
	if r == nil {
		return errors.New("registry is required")
	}
	def.Type = Type(strings.TrimSpace(string(def.Type)))
	if def.Type == "" {
		return ErrTypeRequired
	}
	if def.Version < 1 {
		return fmt.Errorf("event %s: version must be >= 1", def.Type)
	}
	for version := range def.Schemas {
		if version < 1 || version > def.Version {
			return fmt.Errorf("event %s: schema for version %d exceeds current version %d", def.Type, version, def.Version)
		}
	}
	if _, exists := r.definitions[def.Type]; exists {
		return fmt.Errorf("event %s already registered", def.Type)
	}
	r.definitions[def.Type] = def
	return nil
}

// Definition returns the definition for t.
func (r *Registry) Definition(t Type) (Definition, bool) {
	if r == nil {
		return Definition{}, false
	}
	def, ok := r.definitions[t]
	return def, ok
}

// CurrentVersion returns the version new events of type t are written with.
func (r *Registry) CurrentVersion(t Type) (int, error) {
	def, ok := r.Definition(t)
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrTypeUnknown, t)
	}
	return def.Version, nil
}

// CheckVersion rejects versions the current code cannot interpret.
func (r *Registry) CheckVersion(evt Event) error {
	current, err := r.CurrentVersion(evt.Type)
	if err != nil {
		return err
	}
	if evt.Version < 1 || evt.Version > current {
		return fmt.Errorf("%w: %s v%d (current v%d)", ErrVersionUnsupported, evt.Type, evt.Version, current)
	}
	return nil
}

// Validate runs the schema registered for the event's (type, version).
// Pairs without a schema pass unchecked.
func (r *Registry) Validate(evt Event) error {
	def, ok := r.Definition(evt.Type)
	if !ok {
		return nil
	}
	schema, ok := def.Schemas[evt.Version]
	if !ok || schema == nil {
		return nil
	}
	if err := schema(evt.Data); err != nil {
		return &SchemaError{Type: evt.Type, Version: evt.Version, Err: err}
	}
	return nil
}

// Types lists registered types in name order.
func (r *Registry) Types() []Type {
	if r == nil {
		return nil
	}
	types := make([]Type, 0, len(r.definitions))
	for t := range r.definitions {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}

// SchemaError reports event data that fails its (type, version) schema.
type SchemaError struct {
	Type    Type
	Version int
	Err     error
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("invalid %s v%d payload: %v", e.Type, e.Version, e.Err)
}

func (e *SchemaError) Unwrap() error { return e.Err }
