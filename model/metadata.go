package model

import "strings"

// EntityMetadata describes an entity type as exposed by the game-content
// backend. It is read-only to the interpreters: field pickers and the
// navigation/foreign-key heuristics consume it, nothing mutates it.
type EntityMetadata struct {
	EntityName  string          `json:"entityName"`
	DisplayName string          `json:"displayName,omitempty"`
	Fields      []FieldMetadata `json:"fields"`
}

// FieldMetadata describes one property of an entity type.
type FieldMetadata struct {
	FieldName         string `json:"fieldName"`
	FieldType         string `json:"fieldType"`
	IsNullable        bool   `json:"isNullable,omitempty"`
	IsRelatedEntity   bool   `json:"isRelatedEntity,omitempty"`
	RelatedEntityType string `json:"relatedEntityType,omitempty"`
}

// Field returns the metadata for the named field using case-insensitive
// matching, or nil if the entity has no such field.
func (m *EntityMetadata) Field(name string) *FieldMetadata {
	for i := range m.Fields {
		if strings.EqualFold(m.Fields[i].FieldName, name) {
			return &m.Fields[i]
		}
	}
	return nil
}

// NavigationPair describes a navigation property and its foreign-key
// scalar counterpart, detected by the XId/X naming heuristic: a field
// named "districtId" paired with a navigation field named "district".
type NavigationPair struct {
	NavigationField string
	ForeignKeyField string
	RelatedType     string
}

// NavigationPairs scans the entity's fields for XId/X pairs. Irregular
// names that don't follow the heuristic are simply not paired.
func (m *EntityMetadata) NavigationPairs() []NavigationPair {
	byLower := make(map[string]*FieldMetadata, len(m.Fields))
	for i := range m.Fields {
		byLower[strings.ToLower(m.Fields[i].FieldName)] = &m.Fields[i]
	}

	var pairs []NavigationPair
	for i := range m.Fields {
		fk := &m.Fields[i]
		lower := strings.ToLower(fk.FieldName)
		if !strings.HasSuffix(lower, "id") || len(lower) <= 2 {
			continue
		}
		nav, ok := byLower[lower[:len(lower)-2]]
		if !ok || !nav.IsRelatedEntity {
			continue
		}
		pairs = append(pairs, NavigationPair{
			NavigationField: nav.FieldName,
			ForeignKeyField: fk.FieldName,
			RelatedType:     nav.RelatedEntityType,
		})
	}
	return pairs
}
