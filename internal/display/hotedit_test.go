package display

import (
	"context"
	"testing"

	"go.uber.org/zap"

	"github.com/kingscribe/chancery/internal/entity"
	"github.com/kingscribe/chancery/model"
)

func editorFixture() (*HotEditor, *entity.MemoryRepository) {
	repo := entity.NewMemoryRepository("Structure")
	registry := entity.NewRegistry()
	registry.Register("Structure", repo)
	return NewHotEditor(registry, zap.NewNop()), repo
}

func TestEditable_eligibilityRules(t *testing.T) {
	cases := []struct {
		name  string
		field model.DisplayField
		want  bool
	}{
		{"editable string", model.DisplayField{IsEditableInDisplay: true, FieldName: "name", FieldType: "string"}, true},
		{"editable integer", model.DisplayField{IsEditableInDisplay: true, FieldName: "height", FieldType: "Integer"}, true},
		{"flag unset", model.DisplayField{FieldName: "name", FieldType: "string"}, false},
		{"related dedication", model.DisplayField{IsEditableInDisplay: true, FieldName: "name", FieldType: "string", RelatedEntityPropertyName: "district"}, false},
		{"template only", model.DisplayField{IsEditableInDisplay: true, TemplateText: "{name}", FieldType: "string"}, false},
		{"dotted path", model.DisplayField{IsEditableInDisplay: true, FieldName: "district.name", FieldType: "string"}, false},
		{"object type", model.DisplayField{IsEditableInDisplay: true, FieldName: "district", FieldType: "object"}, false},
		{"date type", model.DisplayField{IsEditableInDisplay: true, FieldName: "builtAt", FieldType: "datetime"}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Editable(&tc.field); got != tc.want {
				t.Errorf("Editable = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestHotEditor_commitAndRefetch(t *testing.T) {
	editor, repo := editorFixture()
	ctx := context.Background()
	rctx := &model.RequestContext{SubjectID: "steward"}

	repo.Seed(map[string]any{"id": "42", "name": "Old Mill", "height": 10})

	field := &model.DisplayField{IsEditableInDisplay: true, FieldName: "height", FieldType: "integer"}
	fresh, err := editor.Commit(ctx, rctx, "Structure", "42", field, " 15 ")
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if fresh["height"] != int64(15) {
		t.Errorf("height = %v (%T), want 15", fresh["height"], fresh["height"])
	}
	if fresh["name"] != "Old Mill" {
		t.Errorf("name = %v, want untouched fields preserved", fresh["name"])
	}
}

func TestHotEditor_rejectsNonNumericInput(t *testing.T) {
	editor, repo := editorFixture()
	ctx := context.Background()
	rctx := &model.RequestContext{SubjectID: "steward"}

	repo.Seed(map[string]any{"id": "42", "height": 10})

	field := &model.DisplayField{IsEditableInDisplay: true, FieldName: "height", FieldType: "integer"}
	_, err := editor.Commit(ctx, rctx, "Structure", "42", field, "tall")
	env, ok := err.(*model.ErrorEnvelope)
	if !ok || env.Code != model.ErrValidationError {
		t.Fatalf("err = %v, want VALIDATION_ERROR", err)
	}

	// The entity is untouched after a rejected coercion.
	current, _ := repo.GetByID(ctx, rctx, "42")
	if current["height"] != 10 {
		t.Errorf("height = %v, want 10", current["height"])
	}
}

func TestHotEditor_booleanCoercion(t *testing.T) {
	cases := []struct {
		raw  string
		want bool
	}{
		{"true", true},
		{"TRUE", true},
		{"1", true},
		{"Yes", true},
		{"false", false},
		{"0", false},
		{"anything else", false},
	}
	for _, tc := range cases {
		field := &model.DisplayField{FieldName: "isRuin", FieldType: "boolean"}
		got, err := coerce(field, tc.raw)
		if err != nil {
			t.Fatalf("coerce(%q): %v", tc.raw, err)
		}
		if got != tc.want {
			t.Errorf("coerce(%q) = %v, want %v", tc.raw, got, tc.want)
		}
	}
}

func TestHotEditor_rejectsIneligibleField(t *testing.T) {
	editor, repo := editorFixture()
	repo.Seed(map[string]any{"id": "42"})

	field := &model.DisplayField{FieldName: "name", FieldType: "string"}
	_, err := editor.Commit(context.Background(), &model.RequestContext{SubjectID: "s"}, "Structure", "42", field, "x")
	env, ok := err.(*model.ErrorEnvelope)
	if !ok || env.Code != model.ErrBadRequest {
		t.Errorf("err = %v, want BAD_REQUEST", err)
	}
}
