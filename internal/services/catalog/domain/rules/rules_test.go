package rules

import (
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	apperrors "github.com/tellingsounds/lama/internal/platform/errors"
	"github.com/tellingsounds/lama/internal/services/catalog/domain/command"
	"github.com/tellingsounds/lama/internal/services/catalog/domain/document"
	"github.com/tellingsounds/lama/internal/services/catalog/storage/sqlite"
)

func seededChecker(t *testing.T) Checker {
	t.Helper()
	ctx := context.Background()
	store, err := sqlite.OpenProjections(ctx, filepath.Join(t.TempDir(), "projections.sqlite"))
	if err != nil {
		t.Fatalf("open projections: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	docs := []document.Document{
		&document.Entity{ID: "_Person_a", Type: "Person", Label: "A"},
		&document.Entity{ID: "_Person_unused", Type: "Person", Label: "Unused"},
		&document.Entity{ID: "_Platform_yt", Type: "Platform", Label: "YouTube"},
		&document.Clip{ID: "_Clip_1", Type: "Clip", URL: "https://youtu.be/abc", EffectiveID: "yt:abc", Platform: "_Platform_yt"},
		&document.Element{ID: "_Element_1", Type: "Music", Clip: "_Clip_1", Label: "E"},
		&document.Element{ID: "_Element_empty", Type: "Music", Clip: "_Clip_1", Label: "Empty"},
		&document.Layer{ID: "_Layer_1", Type: "MusicLayer", Clip: "_Clip_1", Element: "_Element_1", Label: "L"},
		&document.Annotation{ID: "_Annotation_1", Clip: "_Clip_1", Layer: "_Layer_1", Relation: "RDepicts", Target: "_Person_a"},
		&document.Annotation{ID: "_Annotation_2", Clip: "_Clip_1", Relation: "RRefers", RefersTo: "_Annotation_1"},
		&document.Annotation{ID: "_Annotation_3", Clip: "_Clip_1", Relation: "RFree"},
		&document.Annotation{ID: "_Annotation_4", Clip: "_Clip_1", Relation: "RFree"},
		&document.Segment{ID: "_Segment_1", Type: "Segment", Clip: "_Clip_1", Label: "Intro",
			Contains: []document.SegmentAnnotation{{Annotation: "_Annotation_3"}}},
	}
	for _, doc := range docs {
		if err := store.InsertDocument(ctx, doc); err != nil {
			t.Fatalf("seed %s: %v", doc.DocumentID(), err)
		}
	}
	return Checker{Docs: store, Privileges: NewStaticPrivileges([]string{"admin"})}
}

func TestCheck(t *testing.T) {
	checker := seededChecker(t)
	reg, err := command.Catalog()
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}

	tests := []struct {
		name    string
		typ     command.Type
		actor   string
		payload string
		wantErr string
	}{
		{"entity ok", command.TypeCreateEntity, "u", `{"label":"Wolfgang Ambros","type":"Person"}`, ""},
		{"entity without label", command.TypeCreateEntity, "u", `{"label":" ","type":"Person"}`, "label is required"},
		{"entity bad type", command.TypeCreateEntity, "u", `{"label":"X","type":"Robot"}`, "unknown entity type"},
		{"delete used entity", command.TypeDeleteEntity, "u", `{"_id":"_Person_a"}`, "used in _Annotation_1"},
		{"delete used platform", command.TypeDeleteEntity, "u", `{"_id":"_Platform_yt"}`, "used in _Clip_1"},
		{"delete unused entity", command.TypeDeleteEntity, "u", `{"_id":"_Person_unused"}`, ""},
		{"relation ok", command.TypeAddEntityRelation, "u", `{"_id":"_Person_a","relation":"RKnows","target":"_Person_unused"}`, ""},
		{"relation missing target", command.TypeAddEntityRelation, "u", `{"_id":"_Person_a","relation":"RKnows","target":"_Person_zz"}`, "entity does not exist"},
		{"relation to clip", command.TypeRemoveEntityRelation, "u", `{"_id":"_Person_a","relation":"RKnows","target":"_Clip_1"}`, "expected entity, got clip"},
		{"duplicate url", command.TypeCreateClip, "u", `{"url":"https://www.youtube.com/watch?v=abc"}`, "already exists: _Clip_1"},
		{"same clip url", command.TypeUpdateClip, "u", `{"_id":"_Clip_1","url":"https://youtu.be/abc"}`, ""},
		{"new url", command.TypeCreateClip, "u", `{"url":"https://youtu.be/other"}`, ""},
		{"delete clip as writer", command.TypeDeleteClip, "u", `{"_id":"_Clip_1"}`, "requires admin privilege"},
		{"delete clip as admin", command.TypeDeleteClip, "admin", `{"_id":"_Clip_1"}`, ""},
		{"no actor", command.TypeCreateClip, "", `{}`, "actor is required"},
		{"favorite ok", command.TypeSetClipFavoriteStatus, "u", `{"clipId":"_Clip_1","isFavorite":true}`, ""},
		{"favorite not bool", command.TypeSetClipFavoriteStatus, "u", `{"clipId":"_Clip_1","isFavorite":"yes"}`, "boolean"},
		{"annotation ok", command.TypeCreateAnnotation, "u", `{"clip":"_Clip_1","element":"_Element_1"}`, ""},
		{"annotation missing clip", command.TypeCreateAnnotation, "u", `{"clip":"_Clip_9"}`, "clip does not exist"},
		{"annotation missing element", command.TypeCreateAnnotation, "u", `{"clip":"_Clip_1","element":"_Element_9"}`, "element does not exist"},
		{"delete referenced annotation", command.TypeDeleteAnnotation, "u", `{"_id":"_Annotation_1"}`, "referenced in _Annotation_2"},
		{"delete contained annotation", command.TypeDeleteAnnotation, "u", `{"_id":"_Annotation_3"}`, "used in Intro (_Segment_1)"},
		{"delete free annotation", command.TypeDeleteAnnotation, "u", `{"_id":"_Annotation_4"}`, ""},
		{"delete element with layers", command.TypeDeleteElement, "u", `{"_id":"_Element_1"}`, "not empty"},
		{"delete empty element", command.TypeDeleteElement, "u", `{"_id":"_Element_empty"}`, ""},
		{"delete layer with annotations", command.TypeDeleteLayer, "u", `{"_id":"_Layer_1"}`, "not empty"},
		{"layer needs element", command.TypeCreateLayer, "u", `{"clip":"_Clip_1"}`, "element is required"},
		{"segment needs clip", command.TypeCreateSegment, "u", `{"clip":"_Clip_x"}`, "clip does not exist"},
		{"segment annotations ok", command.TypeUpdateSegmentAnnotations, "u", `{"segment":"_Segment_1","annotations":["_Annotation_3","_Annotation_4"]}`, ""},
		{"segment annotations missing", command.TypeUpdateSegmentAnnotations, "u", `{"segment":"_Segment_1","annotations":["_Annotation_9"]}`, "annotation does not exist"},
		{"segment annotations not list", command.TypeUpdateSegmentAnnotations, "u", `{"segment":"_Segment_1","annotations":"x"}`, "must be a list"},
		{"merge as writer", command.TypeRenameMergeEntity, "u", `{"old":"_Person_a","new":"_Person_b"}`, "requires admin"},
		{"merge ok", command.TypeRenameMergeEntity, "admin", `{"old":"_Person_a","new":"_Person_b"}`, ""},
		{"merge into clip", command.TypeRenameMergeEntity, "admin", `{"old":"_Person_a","new":"_Clip_1"}`, "expected entity, got clip"},
		{"merge into other type", command.TypeRenameMergeEntity, "admin", `{"old":"_Person_a","new":"_Group_a"}`, "does not name a Person"},
		{"merge into malformed id", command.TypeRenameMergeEntity, "admin", `{"old":"_Person_a","new":"person-a"}`, "does not name a Person"},
		{"merge into self", command.TypeRenameMergeEntity, "admin", `{"old":"_Person_a","new":"_Person_a"}`, "must differ"},
		{"rename relation", command.TypeRenameRelation, "admin", `{"old":"RDepicts","new":"RShows"}`, ""},
		{"add field ok", command.TypeAddField, "admin", `{"collection":"clips","field":"shelfmark","default":""}`, ""},
		{"add unknown field", command.TypeAddField, "admin", `{"collection":"clips","field":"colour","default":""}`, "no settable field"},
		{"add field bad collection", command.TypeAddField, "admin", `{"collection":"tapes","field":"x"}`, "unknown collection"},
		{"set field ok", command.TypeSetFieldValue, "admin", `{"collection":"Clip","_id":"_Clip_1","field":"shelfmark","value":"B-1"}`, ""},
		{"set field wrong kind", command.TypeSetFieldValue, "admin", `{"collection":"Entity","_id":"_Clip_1","field":"label","value":"B-1"}`, "expected entity, got clip"},
		{"analysis cats ok", command.TypeSetAnalysisCats, "admin", `{"_Person_a":{"analysisCategories":["AMedia"]}}`, ""},
		{"analysis cats as writer", command.TypeSetAnalysisCats, "u", `{"_Person_a":{}}`, "requires admin"},
		{"analysis cats missing entity", command.TypeSetAnalysisCats, "admin", `{"_Topic_zz":{}}`, "entity does not exist"},
		{"analysis cats on clip", command.TypeSetAnalysisCats, "admin", `{"_Clip_1":{}}`, "expected entity, got clip"},
		{"analysis cats empty", command.TypeSetAnalysisCats, "admin", `{}`, "no entities given"},
		{"snapshot ok", command.TypeLoadSnapshot, "admin", `{"clips":[{"_id":"_Clip_1"}]}`, ""},
		{"snapshot duplicate", command.TypeLoadSnapshot, "admin", `{"clips":[{"_id":"_X"}],"entities":[{"_id":"_X"}]}`, "duplicate id"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			def, err := reg.Definition(tt.typ)
			if err != nil {
				t.Fatalf("definition: %v", err)
			}
			err = checker.Check(context.Background(), def, command.Command{
				Type: tt.typ, ActorID: tt.actor, Payload: json.RawMessage(tt.payload),
			})
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("expected error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %q", tt.wantErr, err.Error())
			}
			if apperrors.GetCode(err) != apperrors.CodeValidation {
				t.Fatalf("expected validation code, got %s", apperrors.GetCode(err))
			}
		})
	}
}

func TestStaticPrivileges(t *testing.T) {
	p := NewStaticPrivileges([]string{" root ", ""})
	if got, _ := p.Privilege(context.Background(), "root"); got != command.PrivilegeAdmin {
		t.Fatalf("expected admin, got %s", got)
	}
	if got, _ := p.Privilege(context.Background(), "someone"); got != command.PrivilegeWrite {
		t.Fatalf("expected write, got %s", got)
	}
}
