package entity

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/kingscribe/chancery/internal/config"
	"github.com/kingscribe/chancery/model"
)

// OpenAPIMetadataProvider projects the backend's OpenAPI component
// schemas into EntityMetadata. The document is loaded and indexed once;
// lookups are read-only after that.
type OpenAPIMetadataProvider struct {
	mu       sync.RWMutex
	entities map[string]model.EntityMetadata // key: lowercased entity type
}

// NewOpenAPIMetadataProvider loads the backend spec file and indexes the
// schemas named by the entity configuration. An entity without a
// matching schema fails the load: serving a form builder with no field
// metadata is worse than failing at startup.
func NewOpenAPIMetadataProvider(specPath string, entities map[string]config.EntityConfig) (*OpenAPIMetadataProvider, error) {
	loader := openapi3.NewLoader()
	loader.IsExternalRefsAllowed = false

	doc, err := loader.LoadFromFile(specPath)
	if err != nil {
		return nil, fmt.Errorf("entity: loading backend spec %s: %w", specPath, err)
	}
	if err := doc.Validate(context.Background()); err != nil {
		return nil, fmt.Errorf("entity: validating backend spec: %w", err)
	}

	if doc.Components == nil {
		return nil, fmt.Errorf("entity: backend spec has no component schemas")
	}

	p := &OpenAPIMetadataProvider{entities: make(map[string]model.EntityMetadata, len(entities))}
	for name, ecfg := range entities {
		schemaName := ecfg.SchemaName
		if schemaName == "" {
			schemaName = name
		}
		ref, ok := doc.Components.Schemas[schemaName]
		if !ok || ref.Value == nil {
			return nil, fmt.Errorf("entity: schema %q for entity type %q not found in backend spec", schemaName, name)
		}
		p.entities[strings.ToLower(name)] = projectSchema(name, ref.Value)
	}
	return p, nil
}

// GetEntityMetadata returns the metadata for an entity type.
func (p *OpenAPIMetadataProvider) GetEntityMetadata(_ context.Context, entityType string) (model.EntityMetadata, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	meta, ok := p.entities[strings.ToLower(entityType)]
	if !ok {
		return model.EntityMetadata{}, model.NewNotFoundError(
			fmt.Sprintf("no metadata for entity type %q", entityType),
		)
	}
	return meta, nil
}

// projectSchema flattens one component schema into field metadata.
// $ref-typed properties and arrays of $refs become related-entity
// fields named after the referenced schema.
func projectSchema(entityName string, schema *openapi3.Schema) model.EntityMetadata {
	meta := model.EntityMetadata{
		EntityName:  entityName,
		DisplayName: schema.Title,
	}
	if meta.DisplayName == "" {
		meta.DisplayName = entityName
	}

	required := make(map[string]bool, len(schema.Required))
	for _, r := range schema.Required {
		required[r] = true
	}

	for propName, propRef := range schema.Properties {
		fm := model.FieldMetadata{
			FieldName:  propName,
			IsNullable: !required[propName],
		}

		if related := refSchemaName(propRef); related != "" {
			fm.FieldType = "object"
			fm.IsRelatedEntity = true
			fm.RelatedEntityType = related
		} else if propRef.Value != nil {
			fm.FieldType = schemaFieldType(propRef.Value)
			if fm.FieldType == "array" {
				if related := refSchemaName(propRef.Value.Items); related != "" {
					fm.IsRelatedEntity = true
					fm.RelatedEntityType = related
				}
			}
			if propRef.Value.Nullable {
				fm.IsNullable = true
			}
		}

		meta.Fields = append(meta.Fields, fm)
	}
	return meta
}

// refSchemaName extracts the component name from a $ref, or "" when the
// schema is inline.
func refSchemaName(ref *openapi3.SchemaRef) string {
	if ref == nil || ref.Ref == "" {
		return ""
	}
	parts := strings.Split(ref.Ref, "/")
	return parts[len(parts)-1]
}

func schemaFieldType(schema *openapi3.Schema) string {
	if schema.Type == nil {
		return "object"
	}
	switch {
	case schema.Type.Is(openapi3.TypeString):
		if schema.Format == "date-time" {
			return "datetime"
		}
		if schema.Format == "date" {
			return "date"
		}
		return "string"
	case schema.Type.Is(openapi3.TypeInteger):
		return "integer"
	case schema.Type.Is(openapi3.TypeNumber):
		return "number"
	case schema.Type.Is(openapi3.TypeBoolean):
		return "boolean"
	case schema.Type.Is(openapi3.TypeArray):
		return "array"
	default:
		return "object"
	}
}

// StaticMetadataProvider serves a fixed metadata set. For tests and
// local runs without a backend spec.
type StaticMetadataProvider struct {
	mu       sync.RWMutex
	entities map[string]model.EntityMetadata
}

// NewStaticMetadataProvider creates a provider over the given metadata.
func NewStaticMetadataProvider(metas ...model.EntityMetadata) *StaticMetadataProvider {
	p := &StaticMetadataProvider{entities: make(map[string]model.EntityMetadata, len(metas))}
	for _, m := range metas {
		p.entities[strings.ToLower(m.EntityName)] = m
	}
	return p
}

// GetEntityMetadata returns the metadata for an entity type.
func (p *StaticMetadataProvider) GetEntityMetadata(_ context.Context, entityType string) (model.EntityMetadata, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	meta, ok := p.entities[strings.ToLower(entityType)]
	if !ok {
		return model.EntityMetadata{}, model.NewNotFoundError(
			fmt.Sprintf("no metadata for entity type %q", entityType),
		)
	}
	return meta, nil
}
