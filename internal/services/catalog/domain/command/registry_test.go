package command

import (
	"errors"
	"testing"

	"github.com/tellingsounds/lama/internal/services/catalog/domain/document"
	"github.com/tellingsounds/lama/internal/services/catalog/domain/event"
)

func TestCatalogDefinitions(t *testing.T) {
	reg, err := Catalog()
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	events, err := event.Catalog()
	if err != nil {
		t.Fatalf("event catalog: %v", err)
	}
	for _, typ := range reg.Types() {
		def, err := reg.Definition(typ)
		if err != nil {
			t.Fatalf("definition %s: %v", typ, err)
		}
		if _, ok := events.Definition(def.Event); !ok {
			t.Fatalf("%s emits unregistered event %s", typ, def.Event)
		}
		if def.Privilege < PrivilegeWrite {
			t.Fatalf("%s: expected at least write privilege", typ)
		}
	}

	def, err := reg.Definition(TypeCreateEntity)
	if err != nil {
		t.Fatalf("definition: %v", err)
	}
	if def.IDs != IDHumanReadable || def.Document != document.KindEntity {
		t.Fatalf("unexpected CreateEntity definition %+v", def)
	}

	def, _ = reg.Definition(TypeUpdateClip)
	if def.SubjectField != "_id" || !def.CapturesPrevious() {
		t.Fatalf("expected update to capture previous via _id, got %+v", def)
	}
	def, _ = reg.Definition(TypeUpdateSegmentAnnotations)
	if def.SubjectField != "segment" {
		t.Fatalf("expected segment subject field, got %q", def.SubjectField)
	}
	def, _ = reg.Definition(TypeDeleteClip)
	if def.Privilege != PrivilegeAdmin {
		t.Fatal("expected clip deletion to require admin")
	}
}

func TestDefinitionUnknown(t *testing.T) {
	reg := NewRegistry()
	if _, err := reg.Definition("Explode"); !errors.Is(err, ErrTypeUnknown) {
		t.Fatalf("expected ErrTypeUnknown, got %v", err)
	}
	if _, err := reg.Definition(" "); !errors.Is(err, ErrTypeRequired) {
		t.Fatalf("expected ErrTypeRequired, got %v", err)
	}
}

func TestRegisterValidation(t *testing.T) {
	reg := NewRegistry()
	tests := []struct {
		name string
		def  Definition
	}{
		{name: "missing type", def: Definition{Event: "X", Kind: KindOther}},
		{name: "missing event", def: Definition{Type: "X", Kind: KindOther}},
		{name: "missing kind", def: Definition{Type: "X", Event: "X"}},
		{name: "create without ids", def: Definition{Type: "X", Event: "X", Kind: KindCreate}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := reg.Register(tt.def); err == nil {
				t.Fatal("expected registration error")
			}
		})
	}
	if err := reg.Register(Definition{Type: "X", Event: "X", Kind: KindOther}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := reg.Register(Definition{Type: "X", Event: "X", Kind: KindOther}); err == nil {
		t.Fatal("expected duplicate registration error")
	}
}

func TestParsePrivilege(t *testing.T) {
	for _, tt := range []struct {
		in   string
		want Privilege
	}{{"r", PrivilegeRead}, {"w", PrivilegeWrite}, {"a", PrivilegeAdmin}} {
		got, err := ParsePrivilege(tt.in)
		if err != nil || got != tt.want {
			t.Fatalf("ParsePrivilege(%q) = %v, %v", tt.in, got, err)
		}
		if got.String() != tt.in {
			t.Fatalf("String() = %q, want %q", got.String(), tt.in)
		}
	}
	if _, err := ParsePrivilege("root"); err == nil {
		t.Fatal("expected unknown privilege error")
	}
	if !(PrivilegeAdmin > PrivilegeWrite && PrivilegeWrite > PrivilegeRead) {
		t.Fatal("expected ordered privileges")
	}
}
