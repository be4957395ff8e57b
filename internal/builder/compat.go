package builder

import (
	"context"
	"fmt"
	"strings"

	"github.com/kingscribe/chancery/model"
)

// MetadataSource supplies current entity metadata for compatibility
// checks on linked templates.
type MetadataSource interface {
	GetEntityMetadata(ctx context.Context, entityType string) (model.EntityMetadata, error)
}

// compatibleBackendTypes maps a configured field type to the backend
// metadata types it can bind without drift.
var compatibleBackendTypes = map[string][]string{
	model.FieldTypeString:           {"string"},
	model.FieldTypeInteger:          {"integer"},
	model.FieldTypeDecimal:          {"number", "integer"},
	model.FieldTypeBoolean:          {"boolean"},
	model.FieldTypeDateTime:         {"datetime", "date", "string"},
	model.FieldTypeEnum:             {"string", "integer"},
	model.FieldTypeObject:           {"object"},
	model.FieldTypeList:             {"array"},
	model.FieldTypeCatalogReference: {"object", "array", "string"},
}

// FieldCompatibilityIssues compares a form field against current entity
// metadata. Fields without a fieldName bind nothing and are always
// compatible.
func FieldCompatibilityIssues(meta model.EntityMetadata, f model.FormField) []string {
	if f.FieldName == "" {
		return nil
	}
	fm := meta.Field(f.FieldName)
	if fm == nil {
		return []string{fmt.Sprintf("field %q no longer exists on %s", f.FieldName, meta.EntityName)}
	}
	allowed, ok := compatibleBackendTypes[f.FieldType]
	if !ok {
		return nil
	}
	for _, t := range allowed {
		if strings.EqualFold(fm.FieldType, t) {
			return nil
		}
	}
	return []string{fmt.Sprintf("field %q is %s on %s but the template expects %s",
		f.FieldName, fm.FieldType, meta.EntityName, f.FieldType)}
}

// DisplayFieldCompatibilityIssues compares a display field against
// current entity metadata. Template-text fields and fields reading a
// related entity resolve elsewhere and are not checked here.
func DisplayFieldCompatibilityIssues(meta model.EntityMetadata, f model.DisplayField) []string {
	if f.FieldName == "" || f.RelatedEntityPropertyName != "" {
		return nil
	}
	// Dotted paths navigate off the root; only the first segment is the
	// root entity's property.
	name := f.FieldName
	if i := strings.IndexByte(name, '.'); i >= 0 {
		name = name[:i]
	}
	fm := meta.Field(name)
	if fm == nil {
		return []string{fmt.Sprintf("field %q no longer exists on %s", name, meta.EntityName)}
	}
	if f.FieldType == "" || strings.ContainsRune(f.FieldName, '.') {
		return nil
	}
	if strings.EqualFold(fm.FieldType, f.FieldType) {
		return nil
	}
	if isNumericType(fm.FieldType) && isNumericType(f.FieldType) {
		return nil
	}
	return []string{fmt.Sprintf("field %q is %s on %s but the template expects %s",
		name, fm.FieldType, meta.EntityName, f.FieldType)}
}

func isNumericType(t string) bool {
	return strings.EqualFold(t, "integer") || strings.EqualFold(t, "number")
}

// refreshFieldCompatibility recomputes the issue strings on a linked
// form field. Copies keep their cleared markers.
func refreshFieldCompatibility(meta model.EntityMetadata, f *model.FormField) {
	if !f.IsLinkedToSource {
		return
	}
	issues := FieldCompatibilityIssues(meta, *f)
	f.HasCompatibilityIssues = len(issues) > 0
	f.CompatibilityIssues = issues
}

func refreshStepCompatibility(meta model.EntityMetadata, step *model.FormStep) {
	for i := range step.Fields {
		refreshFieldCompatibility(meta, &step.Fields[i])
	}
}

// refreshSectionCompatibility recomputes issues on a linked display
// section and its linked fields. A section dedicated to a navigation
// property that no longer exists is itself incompatible.
func refreshSectionCompatibility(meta model.EntityMetadata, section *model.DisplaySection) {
	if section.IsLinkedToSource {
		var issues []string
		if section.RelatedEntityPropertyName != "" && meta.Field(section.RelatedEntityPropertyName) == nil {
			issues = append(issues, fmt.Sprintf("property %q no longer exists on %s",
				section.RelatedEntityPropertyName, meta.EntityName))
		}
		section.HasCompatibilityIssues = len(issues) > 0
		section.CompatibilityIssues = issues
	}

	// Fields of a dedicated section read the related entity, whose
	// metadata is not in scope here.
	if section.RelatedEntityPropertyName == "" {
		for i := range section.Fields {
			f := &section.Fields[i]
			if !f.IsLinkedToSource {
				continue
			}
			issues := DisplayFieldCompatibilityIssues(meta, *f)
			f.HasCompatibilityIssues = len(issues) > 0
			f.CompatibilityIssues = issues
		}
	}
	for i := range section.SubSections {
		refreshSectionCompatibility(meta, &section.SubSections[i])
	}
}

// refreshFormCompatibility recomputes issue strings across a form
// configuration. A nil source or missing metadata leaves the stored
// strings untouched rather than blocking the save.
func refreshFormCompatibility(ctx context.Context, src MetadataSource, cfg *model.FormConfiguration) {
	if src == nil {
		return
	}
	meta, err := src.GetEntityMetadata(ctx, cfg.EntityName)
	if err != nil {
		return
	}
	for i := range cfg.Steps {
		refreshStepCompatibility(meta, &cfg.Steps[i])
	}
}

// refreshDisplayCompatibility recomputes issue strings across a display
// configuration.
func refreshDisplayCompatibility(ctx context.Context, src MetadataSource, cfg *model.DisplayConfiguration) {
	if src == nil {
		return
	}
	meta, err := src.GetEntityMetadata(ctx, cfg.EntityTypeName)
	if err != nil {
		return
	}
	for i := range cfg.Sections {
		refreshSectionCompatibility(meta, &cfg.Sections[i])
	}
}
