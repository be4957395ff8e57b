package model

import "encoding/json"

// Condition operators. The PascalCase values are part of the persisted
// wire contract and must not be renamed.
const (
	OpEquals      = "Equals"
	OpNotEquals   = "NotEquals"
	OpGreaterThan = "GreaterThan"
	OpLessThan    = "LessThan"
	OpContains    = "Contains"
	OpIsEmpty     = "IsEmpty"
	OpIsNotEmpty  = "IsNotEmpty"
)

// Condition combinators.
const (
	LogicAnd = "AND"
	LogicOr  = "OR"
)

// DependencyCondition is a single comparison against collected form data.
// When FromPreviousStep is set the field value is resolved by scanning
// committed step data from the most recent step backwards instead of the
// in-flight step.
type DependencyCondition struct {
	FieldName        string `json:"fieldName"`
	Operator         string `json:"operator"`
	Value            any    `json:"value,omitempty"`
	FromPreviousStep bool   `json:"fromPreviousStep,omitempty"`
}

// ConditionSet groups dependency conditions under a combinator. An empty
// Logic means AND.
type ConditionSet struct {
	Conditions []DependencyCondition `json:"conditions"`
	Logic      string                `json:"logic,omitempty"`
}

// ParseConditionSet decodes the persisted JSON string form of a condition
// set. Empty input yields a nil set (no gate). A decode failure is
// returned to the caller; interpreters treat it as fail-closed.
func ParseConditionSet(raw string) (*ConditionSet, error) {
	if raw == "" {
		return nil, nil
	}
	var set ConditionSet
	if err := json.Unmarshal([]byte(raw), &set); err != nil {
		return nil, err
	}
	return &set, nil
}

// EncodeConditionSet produces the persisted JSON string form. A nil set
// encodes to the empty string.
func EncodeConditionSet(set *ConditionSet) (string, error) {
	if set == nil {
		return "", nil
	}
	b, err := json.Marshal(set)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
