// Package model contains the configuration documents, descriptors, and
// shared types exchanged between the builder, the interpreters, and the
// HTTP transport. JSON tags follow the persisted wire contract
// (camelCase keys, PascalCase operator names).
package model

// Form field type constants. FieldType is stored as a string so that
// configurations authored against older releases keep loading; the
// interpreters normalize case before dispatching.
const (
	FieldTypeString   = "String"
	FieldTypeInteger  = "Integer"
	FieldTypeBoolean  = "Boolean"
	FieldTypeDateTime = "DateTime"
	FieldTypeDecimal  = "Decimal"
	FieldTypeEnum     = "Enum"
	FieldTypeObject   = "Object"
	FieldTypeList     = "List"

	// FieldTypeCatalogReference is the hybrid Minecraft catalog picker: a
	// selected item may carry a persisted id, a namespace key, or both.
	FieldTypeCatalogReference = "CatalogReference"
)

// FormConfiguration is the root document driving the multi-step form
// wizard for one entity type. It is authored by the builder and treated
// as an immutable snapshot by the wizard once loaded. Saves are full
// document replaces; there is no partial patch.
type FormConfiguration struct {
	ID                string     `json:"id"`
	EntityName        string     `json:"entityName"`
	ConfigurationName string     `json:"configurationName"`
	Description       string     `json:"description,omitempty"`
	IsDefault         bool       `json:"isDefault"`
	IsActive          bool       `json:"isActive"`
	StepOrder         []string   `json:"stepOrder,omitempty"`
	Steps             []FormStep `json:"steps"`
}

// FormStep is one page of the wizard.
type FormStep struct {
	ID          string `json:"id"`
	StepName    string `json:"stepName"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	Order       int    `json:"order"`
	FieldOrder  []string `json:"fieldOrder,omitempty"`

	// IsReusable marks the step as a template other configurations may
	// attach. SourceStepID records provenance when this step originated
	// from a template; for steps it is informational only.
	IsReusable   bool   `json:"isReusable,omitempty"`
	SourceStepID string `json:"sourceStepId,omitempty"`

	Fields     []FormField     `json:"fields"`
	Conditions []StepCondition `json:"conditions,omitempty"`
}

// FormField describes a single input within a step.
type FormField struct {
	ID          string `json:"id"`
	FieldName   string `json:"fieldName"`
	Label       string `json:"label,omitempty"`
	Placeholder string `json:"placeholder,omitempty"`
	Description string `json:"description,omitempty"`
	FieldType   string `json:"fieldType"`
	DefaultValue any   `json:"defaultValue,omitempty"`
	IsRequired  bool   `json:"isRequired,omitempty"`
	IsReadOnly  bool   `json:"isReadOnly,omitempty"`
	Order       int    `json:"order"`

	// DependencyCondition gates visibility of this field against the data
	// collected so far. A nil condition means always visible.
	DependencyCondition *ConditionSet `json:"dependencyCondition,omitempty"`

	// ObjectType names the related entity type for Object and
	// List-of-Object fields. ElementType names the scalar element type for
	// List-of-scalar fields.
	ObjectType  string `json:"objectType,omitempty"`
	ElementType string `json:"elementType,omitempty"`

	// IncrementValue is the step size for integer spinner controls.
	IncrementValue int `json:"incrementValue,omitempty"`

	// MultiSelect applies to CatalogReference fields: false emits a single
	// id/namespace-key pair, true emits paired arrays.
	MultiSelect bool `json:"multiSelect,omitempty"`

	IsReusable          bool     `json:"isReusable,omitempty"`
	SourceFieldID       string   `json:"sourceFieldId,omitempty"`
	IsLinkedToSource    bool     `json:"isLinkedToSource,omitempty"`
	HasCompatibilityIssues bool  `json:"hasCompatibilityIssues,omitempty"`
	CompatibilityIssues []string `json:"compatibilityIssues,omitempty"`

	Validations []FieldValidation `json:"validations,omitempty"`
}

// FieldValidation describes a declarative validation rule. Only the
// "Required" type is enforced by the wizard today; the rest are carried
// through for the authoring UI.
type FieldValidation struct {
	ID             string `json:"id,omitempty"`
	ValidationType string `json:"validationType"`
	Parameters     string `json:"parameters,omitempty"`
	Message        string `json:"message,omitempty"`
	IsActive       bool   `json:"isActive"`
}

// Step condition types. Entry gates whether a step is reachable at all;
// Completion gates whether Next may proceed past it.
const (
	StepConditionEntry      = "Entry"
	StepConditionCompletion = "Completion"
)

// StepCondition wraps a condition set with a type and an error message
// surfaced when a Completion condition blocks forward navigation.
type StepCondition struct {
	ID            string       `json:"id,omitempty"`
	ConditionType string       `json:"conditionType"`
	Conditions    ConditionSet `json:"conditions"`
	IsActive      bool         `json:"isActive"`
	ErrorMessage  string       `json:"errorMessage,omitempty"`
}

// FieldByID returns the field with the given id, or nil.
func (s *FormStep) FieldByID(id string) *FormField {
	for i := range s.Fields {
		if s.Fields[i].ID == id {
			return &s.Fields[i]
		}
	}
	return nil
}

// OrderedSteps returns the configuration's steps in StepOrder sequence.
// Identifiers without a matching step are dropped; an absent or empty
// StepOrder falls back to declaration order.
func (c *FormConfiguration) OrderedSteps() []FormStep {
	if len(c.StepOrder) == 0 {
		return c.Steps
	}
	byID := make(map[string]FormStep, len(c.Steps))
	for _, s := range c.Steps {
		byID[s.ID] = s
	}
	ordered := make([]FormStep, 0, len(c.Steps))
	for _, id := range c.StepOrder {
		if s, ok := byID[id]; ok {
			ordered = append(ordered, s)
		}
	}
	return ordered
}

// OrderedFields returns the step's fields in FieldOrder sequence with the
// same drop-unknown/fallback semantics as OrderedSteps.
func (s *FormStep) OrderedFields() []FormField {
	if len(s.FieldOrder) == 0 {
		return s.Fields
	}
	byID := make(map[string]FormField, len(s.Fields))
	for _, f := range s.Fields {
		byID[f.ID] = f
	}
	ordered := make([]FormField, 0, len(s.Fields))
	for _, id := range s.FieldOrder {
		if f, ok := byID[id]; ok {
			ordered = append(ordered, f)
		}
	}
	return ordered
}
