package builder

import (
	"context"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/kingscribe/chancery/internal/configstore"
	"github.com/kingscribe/chancery/model"
)

type stubMetadata struct {
	meta model.EntityMetadata
}

func (s stubMetadata) GetEntityMetadata(context.Context, string) (model.EntityMetadata, error) {
	return s.meta, nil
}

func townMetadata() model.EntityMetadata {
	return model.EntityMetadata{
		EntityName: "Town",
		Fields: []model.FieldMetadata{
			{FieldName: "name", FieldType: "string"},
			{FieldName: "population", FieldType: "integer"},
		},
	}
}

func TestFieldCompatibilityIssues_missingField(t *testing.T) {
	issues := FieldCompatibilityIssues(townMetadata(), model.FormField{
		FieldName: "motto", FieldType: model.FieldTypeString,
	})
	if len(issues) != 1 || !strings.Contains(issues[0], "no longer exists") {
		t.Errorf("issues = %v, want a missing-field issue", issues)
	}
}

func TestFieldCompatibilityIssues_typeDrift(t *testing.T) {
	issues := FieldCompatibilityIssues(townMetadata(), model.FormField{
		FieldName: "population", FieldType: model.FieldTypeBoolean,
	})
	if len(issues) != 1 {
		t.Errorf("issues = %v, want a type-drift issue", issues)
	}
}

func TestFieldCompatibilityIssues_compatible(t *testing.T) {
	cases := []model.FormField{
		{FieldName: "name", FieldType: model.FieldTypeString},
		{FieldName: "population", FieldType: model.FieldTypeDecimal},
		{FieldType: model.FieldTypeString}, // no binding, nothing to check
	}
	for _, f := range cases {
		if issues := FieldCompatibilityIssues(townMetadata(), f); issues != nil {
			t.Errorf("field %q: issues = %v, want none", f.FieldName, issues)
		}
	}
}

func TestAttachLinkedField_computesCompatibility(t *testing.T) {
	store := configstore.NewMemoryFormStore()
	svc := NewFormService(store, stubMetadata{meta: townMetadata()}, zap.NewNop())
	ctx := context.Background()

	source := townFormConfig("", "Templates", false)
	source.Steps[0].Fields = append(source.Steps[0].Fields, model.FormField{
		FieldName: "motto", FieldType: model.FieldTypeString, IsReusable: true,
	})
	source, err := svc.Create(ctx, source, false)
	if err != nil {
		t.Fatalf("create source: %v", err)
	}
	templateID := source.Steps[0].Fields[1].ID

	target, err := svc.Create(ctx, townFormConfig("", "Target", false), false)
	if err != nil {
		t.Fatalf("create target: %v", err)
	}

	updated, err := svc.AttachReusableField(ctx, nil, target.ID, target.Steps[0].ID, AttachRequest{
		SourceID: templateID,
		LinkMode: LinkModeLink,
	})
	if err != nil {
		t.Fatalf("AttachReusableField: %v", err)
	}

	var attached *model.FormField
	for i := range updated.Steps[0].Fields {
		if updated.Steps[0].Fields[i].SourceFieldID == templateID {
			attached = &updated.Steps[0].Fields[i]
		}
	}
	if attached == nil {
		t.Fatal("attached field not found")
	}
	if !attached.HasCompatibilityIssues || len(attached.CompatibilityIssues) != 1 {
		t.Errorf("linked field for a vanished property should carry issues, got %+v", attached)
	}

	// A copy of the same template stays clean.
	updated, err = svc.AttachReusableField(ctx, nil, target.ID, target.Steps[0].ID, AttachRequest{
		SourceID: templateID,
		LinkMode: LinkModeCopy,
	})
	if err != nil {
		t.Fatalf("AttachReusableField copy: %v", err)
	}
	last := updated.Steps[0].Fields[len(updated.Steps[0].Fields)-1]
	if last.HasCompatibilityIssues {
		t.Errorf("copied field must not carry issues: %+v", last)
	}
}
