package entity

import (
	"context"
	"testing"

	"github.com/kingscribe/chancery/internal/config"
)

func TestOpenAPIMetadataProvider_projectsSchema(t *testing.T) {
	p, err := NewOpenAPIMetadataProvider("testdata/backend-openapi.yaml", map[string]config.EntityConfig{
		"Structure": {ResourcePath: "/api/structures"},
	})
	if err != nil {
		t.Fatalf("NewOpenAPIMetadataProvider: %v", err)
	}

	meta, err := p.GetEntityMetadata(context.Background(), "Structure")
	if err != nil {
		t.Fatalf("GetEntityMetadata: %v", err)
	}
	if meta.EntityName != "Structure" {
		t.Errorf("EntityName = %q", meta.EntityName)
	}

	name := meta.Field("name")
	if name == nil || name.FieldType != "string" || name.IsNullable {
		t.Errorf("name = %+v, want required string", name)
	}

	builtAt := meta.Field("builtAt")
	if builtAt == nil || builtAt.FieldType != "datetime" {
		t.Errorf("builtAt = %+v, want datetime", builtAt)
	}

	districtID := meta.Field("districtId")
	if districtID == nil || !districtID.IsNullable {
		t.Errorf("districtId = %+v, want nullable", districtID)
	}

	district := meta.Field("district")
	if district == nil || !district.IsRelatedEntity || district.RelatedEntityType != "District" {
		t.Errorf("district = %+v, want related District", district)
	}

	tags := meta.Field("tags")
	if tags == nil || tags.FieldType != "array" || tags.RelatedEntityType != "Tag" {
		t.Errorf("tags = %+v, want array of Tag", tags)
	}

	// The $ref pair drives the navigation heuristic downstream.
	pairs := meta.NavigationPairs()
	if len(pairs) != 1 || pairs[0].ForeignKeyField != "districtId" {
		t.Errorf("NavigationPairs = %+v", pairs)
	}
}

func TestOpenAPIMetadataProvider_missingSchemaFails(t *testing.T) {
	_, err := NewOpenAPIMetadataProvider("testdata/backend-openapi.yaml", map[string]config.EntityConfig{
		"Castle": {ResourcePath: "/api/castles"},
	})
	if err == nil {
		t.Fatal("missing schema should fail the load")
	}
}
