// Package normalize converts the flat field-name to value maps the
// wizard collects into backend-ready entity payloads, flattening
// navigation objects to foreign-key scalars and arrays. The transform
// is pure and idempotent: normalizing its own output changes nothing.
package normalize

import (
	"strings"

	"go.uber.org/zap"

	"github.com/kingscribe/chancery/internal/naming"
	"github.com/kingscribe/chancery/model"
)

// Input bundles everything one normalization run needs. Metadata is
// optional; when present it classifies fields the configuration leaves
// untyped.
type Input struct {
	EntityTypeName string
	Configuration  *model.FormConfiguration
	RawValue       map[string]any
	Metadata       *model.EntityMetadata
}

// Normalizer flattens wizard submissions. It holds only a logger.
type Normalizer struct {
	log *zap.Logger
}

// NewNormalizer returns a Normalizer logging dropped values to log.
func NewNormalizer(log *zap.Logger) *Normalizer {
	return &Normalizer{log: log}
}

// Normalize produces the flat payload for the backend. Configuration
// fields drive the primary pass; raw keys the configuration does not
// cover pass through in a secondary pass, with defensive id extraction
// for *Id keys still holding objects.
func (n *Normalizer) Normalize(in Input) map[string]any {
	result := make(map[string]any, len(in.RawValue))
	covered := make(map[string]bool)

	for _, field := range uniqueFields(in.Configuration) {
		covered[field.FieldName] = true
		raw, present := in.RawValue[field.FieldName]
		if !present {
			continue
		}

		switch {
		case field.FieldType == model.FieldTypeCatalogReference:
			n.normalizeCatalog(result, field, raw)
		case n.isRelationship(field, in.Metadata):
			if field.FieldType == model.FieldTypeList {
				n.normalizeList(result, field.FieldName, raw)
			} else {
				n.normalizeObject(result, field.FieldName, raw)
			}
		default:
			result[field.FieldName] = raw
		}
	}

	for key, raw := range in.RawValue {
		if covered[key] {
			continue
		}
		if strings.HasSuffix(key, "Id") {
			if _, isObject := raw.(map[string]any); isObject {
				if id := extractID(raw); id != nil {
					result[key] = id
				} else {
					n.log.Debug("dropping idless object under id-suffixed key",
						zap.String("key", key))
				}
				continue
			}
		}
		result[key] = raw
	}

	return result
}

// isRelationship reports whether the field resolves to a foreign key:
// an Object field, a List with an object element type, or a field the
// entity metadata marks as related.
func (n *Normalizer) isRelationship(field model.FormField, meta *model.EntityMetadata) bool {
	switch field.FieldType {
	case model.FieldTypeObject:
		return true
	case model.FieldTypeList:
		if field.ObjectType != "" {
			return true
		}
	}
	if meta != nil {
		if fm := meta.Field(field.FieldName); fm != nil && fm.IsRelatedEntity {
			return true
		}
	}
	return false
}

func (n *Normalizer) normalizeObject(result map[string]any, fieldName string, raw any) {
	id := extractID(raw)
	if id == nil {
		n.log.Debug("dropping relationship without id", zap.String("field", fieldName))
		return
	}
	result[foreignKeyName(fieldName)] = id
}

func (n *Normalizer) normalizeList(result map[string]any, fieldName string, raw any) {
	items, ok := raw.([]any)
	if !ok {
		// Escape hatch: a non-array value passes through untouched.
		result[fieldName] = raw
		return
	}
	ids := make([]any, 0, len(items))
	for _, item := range items {
		if id := extractID(item); id != nil {
			ids = append(ids, id)
		}
	}
	result[collectionKeyName(fieldName)] = ids
}

// normalizeCatalog handles the hybrid catalog picker. An item may carry
// a persisted id, a namespace key, or both; the two outputs are
// populated independently so the backend can materialize catalog
// entries it has never seen.
func (n *Normalizer) normalizeCatalog(result map[string]any, field model.FormField, raw any) {
	if field.MultiSelect {
		items, ok := raw.([]any)
		if !ok {
			result[field.FieldName] = raw
			return
		}
		ids := make([]any, 0, len(items))
		keys := make([]any, 0, len(items))
		for _, item := range items {
			if id := extractID(item); id != nil {
				ids = append(ids, id)
			}
			if key := extractNamespaceKey(item); key != nil {
				keys = append(keys, key)
			}
		}
		base := singularBase(field.FieldName)
		result[base+"Ids"] = ids
		result[base+"NamespaceKeys"] = keys
		return
	}

	if id := extractID(raw); id != nil {
		result[foreignKeyName(field.FieldName)] = id
	}
	if key := extractNamespaceKey(raw); key != nil {
		result[strings.TrimSuffix(field.FieldName, "Id")+"NamespaceKey"] = key
	}
}

// extractID resolves a raw relationship value to its id. Objects
// contribute their lowercase "id" entry only; an idless object yields
// nil (drop, never null-write). Anything else is already an id.
func extractID(raw any) any {
	if raw == nil {
		return nil
	}
	if obj, ok := raw.(map[string]any); ok {
		return obj["id"]
	}
	return raw
}

func extractNamespaceKey(raw any) any {
	obj, ok := raw.(map[string]any)
	if !ok {
		return nil
	}
	return obj["namespaceKey"]
}

// foreignKeyName keeps names already ending in Id as-is, otherwise
// appends Id. The bare navigation-property name is never emitted.
func foreignKeyName(fieldName string) string {
	if strings.HasSuffix(fieldName, "Id") {
		return fieldName
	}
	return fieldName + "Id"
}

// collectionKeyName derives the plural foreign-key name: names already
// ending in Ids pass through, otherwise the singular base gets Ids
// appended. Irregular plurals beyond the ies/s suffixes are out of
// scope.
func collectionKeyName(fieldName string) string {
	if strings.HasSuffix(fieldName, "Ids") {
		return fieldName
	}
	return singularBase(fieldName) + "Ids"
}

func singularBase(fieldName string) string {
	base := strings.TrimSuffix(fieldName, "Ids")
	if strings.HasSuffix(base, "ies") {
		return base[:len(base)-3] + "y"
	}
	return strings.TrimSuffix(base, "s")
}

// uniqueFields returns the union of fields across all steps, first
// declaration wins on duplicate field names.
func uniqueFields(cfg *model.FormConfiguration) []model.FormField {
	if cfg == nil {
		return nil
	}
	seen := make(map[string]bool)
	var fields []model.FormField
	for _, step := range cfg.OrderedSteps() {
		for _, f := range step.Fields {
			if f.FieldName == "" || seen[f.FieldName] {
				continue
			}
			seen[f.FieldName] = true
			fields = append(fields, f)
		}
	}
	return fields
}

// StepData fills a step's data map so every declared field is present:
// the stored value when the user has one, the field default otherwise,
// nil as the last resort. Persisted step JSON is never trusted to
// already be complete.
func StepData(step *model.FormStep, data map[string]any) map[string]any {
	out := make(map[string]any, len(step.Fields))
	for _, f := range step.Fields {
		if f.FieldName == "" {
			continue
		}
		if v, ok := naming.Lookup(data, f.FieldName); ok {
			out[f.FieldName] = v
			continue
		}
		if f.DefaultValue != nil {
			out[f.FieldName] = f.DefaultValue
			continue
		}
		out[f.FieldName] = nil
	}
	return out
}
