package display

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/kingscribe/chancery/internal/entity"
	"github.com/kingscribe/chancery/model"
)

// HotEditor commits in-place edits to scalar entity fields from the
// display view. Every commit is a full merge-and-update followed by a
// refetch; there is no optimistic partial patch.
type HotEditor struct {
	registry *entity.Registry
	log      *zap.Logger
}

// NewHotEditor creates a hot-edit committer.
func NewHotEditor(registry *entity.Registry, log *zap.Logger) *HotEditor {
	return &HotEditor{registry: registry, log: log}
}

// Editable reports whether a display field accepts in-place edits: the
// flag must be set, the field must read a concrete scalar property of
// the root entity, and the type must be one the editor can coerce.
func Editable(f *model.DisplayField) bool {
	if !f.IsEditableInDisplay {
		return false
	}
	if f.RelatedEntityPropertyName != "" {
		return false
	}
	if f.FieldName == "" || strings.Contains(f.FieldName, ".") {
		return false
	}
	switch strings.ToLower(f.FieldType) {
	case "string", "integer", "number", "boolean":
		return true
	}
	return false
}

// Commit coerces the raw input per the field's type, merges it into the
// current entity, writes the update, and returns the refetched entity.
func (e *HotEditor) Commit(ctx context.Context, rctx *model.RequestContext, entityType, entityID string, field *model.DisplayField, raw string) (map[string]any, error) {
	if !Editable(field) {
		return nil, model.NewBadRequestError(
			fmt.Sprintf("field %q is not editable in display", field.FieldName),
		)
	}

	value, err := coerce(field, raw)
	if err != nil {
		return nil, err
	}

	repo, err := e.registry.Repository(entityType)
	if err != nil {
		return nil, err
	}
	current, err := repo.GetByID(ctx, rctx, entityID)
	if err != nil {
		return nil, err
	}

	merged := make(map[string]any, len(current)+2)
	for k, v := range current {
		merged[k] = v
	}
	merged[field.FieldName] = value
	merged["id"] = entityID

	if _, err := repo.Update(ctx, rctx, merged); err != nil {
		return nil, err
	}

	// Refetch so derived and related fields stay consistent with what the
	// backend actually stored.
	return repo.GetByID(ctx, rctx, entityID)
}

func coerce(field *model.DisplayField, raw string) (any, error) {
	switch strings.ToLower(field.FieldType) {
	case "integer":
		n, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
		if err != nil {
			return nil, invalidValue(field, "must be a whole number")
		}
		return n, nil
	case "number":
		n, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			return nil, invalidValue(field, "must be a number")
		}
		return n, nil
	case "boolean":
		switch strings.ToLower(strings.TrimSpace(raw)) {
		case "true", "1", "yes":
			return true, nil
		}
		return false, nil
	default:
		return raw, nil
	}
}

func invalidValue(field *model.DisplayField, msg string) error {
	return model.NewValidationError([]model.FieldError{
		{Field: field.FieldName, Code: "invalid_value", Message: msg},
	})
}
