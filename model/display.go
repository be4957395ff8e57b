package model

import "encoding/json"

// DisplayConfiguration drives the read/hot-edit display renderer for one
// entity type. Like FormConfiguration it is mutable only through the
// builder's full-replace save and immutable once loaded by the renderer.
type DisplayConfiguration struct {
	ID                string           `json:"id"`
	ConfigurationGUID string           `json:"configurationGuid"`
	Name              string           `json:"name"`
	EntityTypeName    string           `json:"entityTypeName"`
	IsDefault         bool             `json:"isDefault"`
	IsDraft           bool             `json:"isDraft,omitempty"`
	Description       string           `json:"description,omitempty"`
	SectionOrder      []string         `json:"sectionOrder,omitempty"`
	Sections          []DisplaySection `json:"sections"`
}

// DisplaySection groups display fields. A section may be dedicated to a
// navigation property of the root entity, in which case all its fields
// read from that related object, or marked as a collection, in which case
// SubSections[0] acts as an item template repeated over an array value.
type DisplaySection struct {
	ID          string `json:"id"`
	SectionGUID string `json:"sectionGuid"`
	SectionName string `json:"sectionName"`
	Description string `json:"description,omitempty"`

	IsReusable             bool     `json:"isReusable,omitempty"`
	SourceSectionID        string   `json:"sourceSectionId,omitempty"`
	IsLinkedToSource       bool     `json:"isLinkedToSource,omitempty"`
	HasCompatibilityIssues bool     `json:"hasCompatibilityIssues,omitempty"`
	CompatibilityIssues    []string `json:"compatibilityIssues,omitempty"`

	FieldOrder []string `json:"fieldOrder,omitempty"`

	RelatedEntityPropertyName string `json:"relatedEntityPropertyName,omitempty"`
	RelatedEntityTypeName     string `json:"relatedEntityTypeName,omitempty"`

	IsCollection    bool           `json:"isCollection,omitempty"`
	ActionButtons   *ActionButtons `json:"actionButtonsConfig,omitempty"`
	ParentSectionID string         `json:"parentSectionId,omitempty"`

	Fields      []DisplayField   `json:"fields"`
	SubSections []DisplaySection `json:"subSections,omitempty"`
}

// DisplayField describes one rendered value. TemplateText and FieldName
// are mutually exclusive: template text interpolates {name} placeholders
// against the resolved source object, a field name is a property read.
type DisplayField struct {
	ID        string `json:"id"`
	FieldGUID string `json:"fieldGuid"`

	RelatedEntityPropertyName string `json:"relatedEntityPropertyName,omitempty"`
	RelatedEntityTypeName     string `json:"relatedEntityTypeName,omitempty"`

	FieldName    string `json:"fieldName,omitempty"`
	Label        string `json:"label,omitempty"`
	Description  string `json:"description,omitempty"`
	TemplateText string `json:"templateText,omitempty"`

	// FieldType is free-form at this layer; it only informs formatting and
	// hot-edit eligibility, compared case-insensitively.
	FieldType string `json:"fieldType,omitempty"`

	IsReusable             bool     `json:"isReusable,omitempty"`
	SourceFieldID          string   `json:"sourceFieldId,omitempty"`
	IsLinkedToSource       bool     `json:"isLinkedToSource,omitempty"`
	HasCompatibilityIssues bool     `json:"hasCompatibilityIssues,omitempty"`
	CompatibilityIssues    []string `json:"compatibilityIssues,omitempty"`

	IsEditableInDisplay bool `json:"isEditableInDisplay,omitempty"`
}

// ActionButtons is the parsed form of the persisted actionButtonsConfig
// flag object. Flag names follow the show<X>Button wire contract.
type ActionButtons struct {
	ShowViewButton   bool `json:"showViewButton,omitempty"`
	ShowEditButton   bool `json:"showEditButton,omitempty"`
	ShowCreateButton bool `json:"showCreateButton,omitempty"`
	ShowSelectButton bool `json:"showSelectButton,omitempty"`
	ShowUnlinkButton bool `json:"showUnlinkButton,omitempty"`
	ShowAddButton    bool `json:"showAddButton,omitempty"`
	ShowRemoveButton bool `json:"showRemoveButton,omitempty"`
}

// ParseActionButtons decodes the persisted JSON string form. Empty input
// or a decode failure yields nil (no buttons), matching the degrade-
// gracefully policy for malformed order JSON.
func ParseActionButtons(raw string) *ActionButtons {
	if raw == "" {
		return nil
	}
	var ab ActionButtons
	if err := json.Unmarshal([]byte(raw), &ab); err != nil {
		return nil
	}
	return &ab
}

// EncodeActionButtons produces the persisted JSON string form. A nil
// receiver encodes to the empty string.
func EncodeActionButtons(ab *ActionButtons) (string, error) {
	if ab == nil {
		return "", nil
	}
	b, err := json.Marshal(ab)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Action types emitted by the display renderer's button dispatch. The
// renderer only produces these descriptors; navigation and deletion are
// the caller's concern.
const (
	ActionView   = "view"
	ActionEdit   = "edit"
	ActionCreate = "create"
	ActionSelect = "select"
	ActionUnlink = "unlink"
	ActionAdd    = "add"
	ActionRemove = "remove"
)

// ActionDescriptor is a typed UI action resolved from a section's button
// flags and context.
type ActionDescriptor struct {
	Type       string `json:"type"`
	EntityType string `json:"entityType"`
	EntityID   string `json:"entityId,omitempty"`
	Label      string `json:"label"`
}

// RecoveryAction is a follow-up offered when a remove action fails due to
// referential constraints, e.g. viewing dependents or reassigning them to
// another parent.
type RecoveryAction struct {
	Type       string `json:"type"`
	EntityType string `json:"entityType"`
	EntityID   string `json:"entityId,omitempty"`
	Label      string `json:"label"`
}
