package event

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/tellingsounds/lama/internal/services/catalog/domain/document"
)

func mustCatalog(t *testing.T) *Registry {
	t.Helper()
	reg, err := Catalog()
	if err != nil {
		t.Fatalf("catalog registry: %v", err)
	}
	return reg
}

func TestCatalogVersions(t *testing.T) {
	reg := mustCatalog(t)
	tests := map[Type]int{
		TypeElementCreated:           2,
		TypeElementUpdated:           2,
		TypeLayerCreated:             2,
		TypeSegmentUpdated:           2,
		TypeElementDeleted:           1,
		TypeClipCreated:              1,
		TypeProjectionSnapshotLoaded: 1,
	}
	for typ, want := range tests {
		got, err := reg.CurrentVersion(typ)
		if err != nil {
			t.Fatalf("%s: %v", typ, err)
		}
		if got != want {
			t.Fatalf("%s: version = %d, want %d", typ, got, want)
		}
	}
	if _, err := reg.CurrentVersion("Nope"); !errors.Is(err, ErrTypeUnknown) {
		t.Fatalf("expected ErrTypeUnknown, got %v", err)
	}
}

func TestRegisterRejectsBadDefinitions(t *testing.T) {
	reg := NewRegistry()
	if err := reg.Register(Definition{Type: " ", Version: 1}); !errors.Is(err, ErrTypeRequired) {
		t.Fatalf("expected ErrTypeRequired, got %v", err)
	}
	if err := reg.Register(Definition{Type: "X", Version: 0}); err == nil {
		t.Fatal("expected version error")
	}
	if err := reg.Register(Definition{Type: "X", Version: 1, Schemas: map[int]Schema{2: nil}}); err == nil {
		t.Fatal("expected schema beyond current version to be rejected")
	}
	if err := reg.Register(Definition{Type: "X", Version: 1}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := reg.Register(Definition{Type: "X", Version: 1}); err == nil {
		t.Fatal("expected duplicate registration error")
	}
}

func TestValidateSchemas(t *testing.T) {
	reg := mustCatalog(t)
	tests := []struct {
		name    string
		evt     Event
		wantErr string
	}{
		{
			name: "element v2 ok",
			evt:  Event{Type: TypeElementCreated, Version: 2, Data: json.RawMessage(`{"_id":"_Music_1","type":"Music","clip":"_Clip_1","label":"Intro","description":"","timecodes":[[0,5]]}`)},
		},
		{
			name:    "element v2 bad type",
			evt:     Event{Type: TypeElementCreated, Version: 2, Data: json.RawMessage(`{"_id":"_Song_1","type":"Song","clip":"_Clip_1","label":"Intro","timecodes":[]}`)},
			wantErr: "type failed oneof",
		},
		{
			name:    "element v2 reversed range",
			evt:     Event{Type: TypeElementUpdated, Version: 2, Data: json.RawMessage(`{"_id":"_Music_1","type":"Music","clip":"_Clip_1","label":"Intro","timecodes":[[9,3]]}`)},
			wantErr: "timecodes failed timecodes",
		},
		{
			name: "element v1 ok",
			evt:  Event{Type: TypeElementCreated, Version: 1, Data: json.RawMessage(`{"_id":"_Music_1","type":"Music","clip":"_Clip_1","label":"Intro","timecodeStart":10,"timecodeEnd":20}`)},
		},
		{
			name:    "entity unknown type",
			evt:     Event{Type: TypeEntityCreated, Version: 1, Data: json.RawMessage(`{"_id":"_Robot_r2","type":"Robot","label":"R2"}`)},
			wantErr: "type failed entitytype",
		},
		{
			name:    "clip file type",
			evt:     Event{Type: TypeClipCreated, Version: 1, Data: json.RawMessage(`{"_id":"_Clip_1","type":"Clip","title":"T","url":"u","platform":"_Platform_p","fileType":"x","duration":3}`)},
			wantErr: "fileType failed oneof=a v",
		},
		{
			name:    "deleted needs id",
			evt:     Event{Type: TypeClipDeleted, Version: 1, Data: json.RawMessage(`{}`)},
			wantErr: "_id failed required",
		},
		{
			name: "analysis cats ok",
			evt:  Event{Type: TypeAnalysisCatsAttributesSet, Version: 1, Data: json.RawMessage(`{"_Topic_jazz":{"analysisCategories":["AMedia","AMemory"],"attributes":{"era":"1970s"}}}`)},
		},
		{
			name:    "analysis cats unknown category",
			evt:     Event{Type: TypeAnalysisCatsAttributesSet, Version: 1, Data: json.RawMessage(`{"_Topic_jazz":{"analysisCategories":["AWeather"]}}`)},
			wantErr: "analysisCategories[0] failed analysiscat",
		},
		{
			name:    "analysis cats unknown field",
			evt:     Event{Type: TypeAnalysisCatsAttributesSet, Version: 1, Data: json.RawMessage(`{"_Topic_jazz":{"label":"Jazz"}}`)},
			wantErr: "unknown field",
		},
		{
			name:    "analysis cats empty",
			evt:     Event{Type: TypeAnalysisCatsAttributesSet, Version: 1, Data: json.RawMessage(`{}`)},
			wantErr: "no entities given",
		},
		{
			name: "admin events pass through",
			evt:  Event{Type: TypeFieldAdded, Version: 1, Data: json.RawMessage(`{"anything":true}`)},
		},
		{
			name:    "malformed json",
			evt:     Event{Type: TypeAnnotationCreated, Version: 1, Data: json.RawMessage(`{`)},
			wantErr: "decode payload",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := reg.Validate(tt.evt)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			var schemaErr *SchemaError
			if !errors.As(err, &schemaErr) {
				t.Fatalf("expected SchemaError, got %v", err)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected %q in %q", tt.wantErr, err.Error())
			}
		})
	}
}

func TestCheckVersion(t *testing.T) {
	reg := mustCatalog(t)
	if err := reg.CheckVersion(Event{Type: TypeElementCreated, Version: 1}); err != nil {
		t.Fatalf("v1 element should be accepted: %v", err)
	}
	if err := reg.CheckVersion(Event{Type: TypeElementCreated, Version: 3}); !errors.Is(err, ErrVersionUnsupported) {
		t.Fatalf("expected ErrVersionUnsupported, got %v", err)
	}
	if err := reg.CheckVersion(Event{Type: TypeClipCreated, Version: 0}); !errors.Is(err, ErrVersionUnsupported) {
		t.Fatalf("expected ErrVersionUnsupported, got %v", err)
	}
}

func TestUpgradeTimecodesEquivalence(t *testing.T) {
	v1 := Event{Type: TypeElementCreated, Version: 1, Data: json.RawMessage(`{"_id":"_Music_1","type":"Music","clip":"_Clip_1","label":"Intro","description":"","timecodeStart":10,"timecodeEnd":20}`)}
	v2 := Event{Type: TypeElementCreated, Version: 2, Data: json.RawMessage(`{"_id":"_Music_1","type":"Music","clip":"_Clip_1","label":"Intro","description":"","timecodes":[[10,20]]}`)}

	up1, err := UpgradeTimecodes(v1)
	if err != nil {
		t.Fatalf("upgrade v1: %v", err)
	}
	up2, err := UpgradeTimecodes(v2)
	if err != nil {
		t.Fatalf("upgrade v2: %v", err)
	}
	if up1.Version != 2 || up2.Version != 2 {
		t.Fatalf("expected version 2, got %d and %d", up1.Version, up2.Version)
	}

	var a, b document.Element
	if err := json.Unmarshal(up1.Data, &a); err != nil {
		t.Fatalf("decode upgraded v1: %v", err)
	}
	if err := json.Unmarshal(up2.Data, &b); err != nil {
		t.Fatalf("decode upgraded v2: %v", err)
	}
	same, err := document.SameContent(&a, &b)
	if err != nil || !same {
		t.Fatalf("expected identical elements, got %+v vs %+v (err %v)", a, b, err)
	}
	if strings.Contains(string(up1.Data), "timecodeStart") {
		t.Fatalf("expected legacy scalars removed, got %s", up1.Data)
	}
	if !strings.Contains(string(v1.Data), "timecodeStart") {
		t.Fatal("expected original event data untouched")
	}
}

func TestUpgradeTimecodesEdgeCases(t *testing.T) {
	missingEnd := Event{Type: TypeSegmentCreated, Version: 1, Data: json.RawMessage(`{"_id":"s","timecodeStart":0}`)}
	up, err := UpgradeTimecodes(missingEnd)
	if err != nil {
		t.Fatalf("upgrade: %v", err)
	}
	if got := string(up.Data); !strings.Contains(got, `"timecodes":[]`) {
		t.Fatalf("expected empty ranges, got %s", got)
	}

	unsorted := Event{Type: TypeLayerCreated, Version: 2, Data: json.RawMessage(`{"_id":"l","timecodes":[[30,40],[5,6]]}`)}
	up, err = UpgradeTimecodes(unsorted)
	if err != nil {
		t.Fatalf("upgrade: %v", err)
	}
	if got := string(up.Data); !strings.Contains(got, `"timecodes":[[5,6],[30,40]]`) {
		t.Fatalf("expected sorted ranges, got %s", got)
	}

	if _, err := UpgradeTimecodes(Event{Type: TypeLayerCreated, Version: 7, Data: json.RawMessage(`{}`)}); !errors.Is(err, ErrVersionUnsupported) {
		t.Fatalf("expected ErrVersionUnsupported, got %v", err)
	}
}

func TestNextTimestamp(t *testing.T) {
	last := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	later := last.Add(1500 * time.Microsecond)
	if got := NextTimestamp(last, later); !got.Equal(last.Add(time.Millisecond)) {
		t.Fatalf("expected truncation to ms, got %v", got)
	}
	if got := NextTimestamp(last, last.Add(-time.Hour)); !got.Equal(last.Add(time.Millisecond)) {
		t.Fatalf("expected bump past last on clock skew, got %v", got)
	}
	if got := NextTimestamp(time.Time{}, later); !got.Equal(later.Truncate(time.Millisecond)) {
		t.Fatalf("unexpected first timestamp %v", got)
	}
}
