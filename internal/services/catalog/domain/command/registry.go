package command

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/tellingsounds/lama/internal/services/catalog/domain/document"
	"github.com/tellingsounds/lama/internal/services/catalog/domain/event"
)

var (
	// ErrTypeRequired indicates a missing command type.
	ErrTypeRequired = errors.New("command type is required")
	// ErrTypeUnknown indicates a command type with no definition.
	ErrTypeUnknown = errors.New("command type is not registered")
	// ErrEventRequired indicates a definition without an event type.
	ErrEventRequired = errors.New("command event type is required")
)

// Kind says how a command relates to its subject document.
type Kind int

const (
	// KindCreate makes a new subject and assigns its identifier.
	KindCreate Kind = iota + 1
	// KindUpdate replaces an existing subject; its prior state is captured.
	KindUpdate
	// KindDelete removes an existing subject; its prior state is captured.
	KindDelete
	// KindOther does not capture prior state.
	KindOther
)

// IDStrategy selects how a created subject is identified.
type IDStrategy int

const (
	IDNone IDStrategy = iota
	// IDHumanReadable is `_{type}_{slug(label)}` with a numeric suffix on collision.
	IDHumanReadable
	// IDOpaque is `_{type}_{uuid}`.
	IDOpaque
)

// Definition describes one command type.
type Definition struct {
	Type  Type
	Event event.Type
	Kind  Kind
	// Document is the kind the subject must have. Empty accepts any kind.
	Document document.Kind
	IDs      IDStrategy
	// SubjectField names the payload field holding the subject id. It
	// defaults to "_id" for update/delete commands; create commands use the
	// assigned identifier.
	SubjectField string
	Privilege    Privilege
}

// CapturesPrevious reports whether the subject's prior state is snapshotted.
func (d Definition) CapturesPrevious() bool {
	return d.Kind == KindUpdate || d.Kind == KindDelete
}

// Registry stores command definitions.
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
	if strings.TrimSpace(string(def.Event)) == "" {
		return ErrEventRequired
	}
	if def.Kind == 0 {
		return fmt.Errorf("command %s: kind is required", def.Type)
	}
	if def.Kind == KindCreate && def.IDs == IDNone {
		return fmt.Errorf("command %s: create commands need an id strategy", def.Type)
	}
	if def.SubjectField == "" && def.CapturesPrevious() {
		def.SubjectField = "_id"
	}
	if _, exists := r.definitions[def.Type]; exists {
		return fmt.Errorf("command %s already registered", def.Type)
	}
	r.definitions[def.Type] = def
	return nil
}

// Definition returns the definition for t.
func (r *Registry) Definition(t Type) (Definition, error) {
	if r == nil {
		return Definition{}, errors.New("registry is required")
	}
	t = Type(strings.TrimSpace(string(t)))
	if t == "" {
		return Definition{}, ErrTypeRequired
	}
	def, ok := r.definitions[t]
	if !ok {
		return Definition{}, fmt.Errorf("%w: %s", ErrTypeUnknown, t)
	}
	return def, nil
}

// Types lists registered command types in name order.
func (r *Registry) Types() []Type {
	types := make([]Type, 0, len(r.definitions))
	for t := range r.definitions {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}
