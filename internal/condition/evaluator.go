// Package condition evaluates dependency and completion conditions
// against collected wizard step data. Evaluation is pure and cheap; the
// wizard calls it on every visibility recomputation.
package condition

import (
	"reflect"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/kingscribe/chancery/model"
)

// Evaluator resolves condition sets against step data. The zero-cost
// contract: absent or empty conditions pass, malformed ones fail
// closed.
type Evaluator struct {
	log *zap.Logger
}

// NewEvaluator returns an Evaluator logging parse failures to log.
func NewEvaluator(log *zap.Logger) *Evaluator {
	return &Evaluator{log: log}
}

// EvaluateRaw parses the persistence-boundary string form and
// evaluates it. A parse failure is logged and fails closed: a
// malformed condition hides or blocks, it never exposes.
func (e *Evaluator) EvaluateRaw(raw string, current map[string]any, all map[string]map[string]any) bool {
	set, err := model.ParseConditionSet(raw)
	if err != nil {
		e.log.Warn("condition parse failed, failing closed", zap.Error(err))
		return false
	}
	return e.Evaluate(set, current, all)
}

// Evaluate applies the condition set against the current step's data
// and the committed data of all steps. A nil set or an empty condition
// list passes.
func (e *Evaluator) Evaluate(set *model.ConditionSet, current map[string]any, all map[string]map[string]any) bool {
	if set == nil || len(set.Conditions) == 0 {
		return true
	}

	logic := set.Logic
	if logic == "" {
		logic = model.LogicAnd
	}

	for _, c := range set.Conditions {
		ok := e.evaluateOne(c, current, all)
		if logic == model.LogicOr && ok {
			return true
		}
		if logic != model.LogicOr && !ok {
			return false
		}
	}
	return logic != model.LogicOr
}

func (e *Evaluator) evaluateOne(c model.DependencyCondition, current map[string]any, all map[string]map[string]any) bool {
	actual := resolveValue(c, current, all)

	switch c.Operator {
	case model.OpEquals:
		return looseEqual(actual, c.Value)
	case model.OpNotEquals:
		return !looseEqual(actual, c.Value)
	case model.OpGreaterThan:
		a, aok := toNumber(actual)
		b, bok := toNumber(c.Value)
		return aok && bok && a > b
	case model.OpLessThan:
		a, aok := toNumber(actual)
		b, bok := toNumber(c.Value)
		return aok && bok && a < b
	case model.OpContains:
		return strings.Contains(toString(actual), toString(c.Value))
	case model.OpIsEmpty:
		return isEmpty(actual)
	case model.OpIsNotEmpty:
		return !isEmpty(actual)
	default:
		e.log.Warn("unknown condition operator", zap.String("operator", string(c.Operator)))
		return false
	}
}

// resolveValue reads the condition's field from the current step, or,
// when FromPreviousStep is set, from the most recently committed step
// that defines the key. An explicitly stored null counts as defined.
func resolveValue(c model.DependencyCondition, current map[string]any, all map[string]map[string]any) any {
	if !c.FromPreviousStep {
		return current[c.FieldName]
	}

	indices := make([]int, 0, len(all))
	for key := range all {
		idx, err := strconv.Atoi(key)
		if err != nil {
			continue
		}
		indices = append(indices, idx)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(indices)))

	for _, idx := range indices {
		stepData := all[strconv.Itoa(idx)]
		if v, ok := stepData[c.FieldName]; ok {
			return v
		}
	}
	return nil
}

// looseEqual compares two JSON-decoded values. Numbers compare by
// value so a stored int matches a configured float; everything else is
// strict, so "5" never equals 5.
func looseEqual(a, b any) bool {
	an, aok := numericValue(a)
	bn, bok := numericValue(b)
	if aok || bok {
		return aok && bok && an == bn
	}
	return reflect.DeepEqual(a, b)
}

// numericValue is the strict variant of toNumber: actual numeric types
// only, no string parsing.
func numericValue(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

// toNumber coerces numeric types and numeric strings. Anything else
// is non-numeric and makes ordered comparisons fail.
func toNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

func toString(v any) string {
	if v == nil {
		return ""
	}
	switch s := v.(type) {
	case string:
		return s
	case bool:
		if s {
			return "true"
		}
		return "false"
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case int:
		return strconv.Itoa(s)
	default:
		return ""
	}
}

// isEmpty treats only nil and the empty string as empty. Zero and
// false are values an author may legitimately gate on.
func isEmpty(v any) bool {
	if v == nil {
		return true
	}
	s, ok := v.(string)
	return ok && s == ""
}
