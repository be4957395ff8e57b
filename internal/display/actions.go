package display

import (
	"fmt"

	"github.com/kingscribe/chancery/model"
)

// ButtonContext describes where a button row renders: the section or
// item it belongs to and whether a target entity is present.
type ButtonContext struct {
	EntityType   string
	EntityID     string
	IsCollection bool
	IsItemLevel  bool
	HasEntity    bool
}

// Buttons maps a section's flag set and context to the actions that
// render there. The renderer only emits descriptors; navigation and
// deletion belong to the caller.
func Buttons(ab *model.ActionButtons, ctx ButtonContext) []model.ActionDescriptor {
	if ab == nil {
		return nil
	}

	var out []model.ActionDescriptor
	add := func(actionType, label string, withID bool) {
		d := model.ActionDescriptor{Type: actionType, EntityType: ctx.EntityType, Label: label}
		if withID {
			d.EntityID = ctx.EntityID
		}
		out = append(out, d)
	}

	if ab.ShowViewButton && ctx.HasEntity {
		add(model.ActionView, "View", true)
	}
	if ab.ShowEditButton && ctx.HasEntity {
		add(model.ActionEdit, "Edit", true)
	}
	if ab.ShowCreateButton && !ctx.IsItemLevel {
		add(model.ActionCreate, "Create", false)
	}
	if ab.ShowSelectButton && !ctx.IsItemLevel {
		add(model.ActionSelect, "Select", false)
	}
	if ab.ShowUnlinkButton && ctx.HasEntity {
		add(model.ActionUnlink, "Unlink", true)
	}
	if ab.ShowAddButton && ctx.IsCollection && !ctx.IsItemLevel {
		add(model.ActionAdd, "Add", false)
	}
	if ab.ShowRemoveButton && ctx.IsItemLevel && ctx.EntityID != "" {
		add(model.ActionRemove, "Remove", true)
	}
	return out
}

// RecoveryHints maps an entity type to the follow-up actions offered
// when its delete is blocked by dependents, e.g. viewing the dependent
// records or reassigning them to another parent.
type RecoveryHints map[string][]model.RecoveryAction

// For returns the hints for an entity type with the blocked entity's id
// filled into actions that target it. Unknown types get a generic
// view-dependents hint.
func (h RecoveryHints) For(entityType, entityID string) []model.RecoveryAction {
	templates, ok := h[entityType]
	if !ok {
		return []model.RecoveryAction{
			{
				Type:       model.ActionView,
				EntityType: entityType,
				EntityID:   entityID,
				Label:      "View dependent records",
			},
		}
	}
	out := make([]model.RecoveryAction, len(templates))
	for i, tpl := range templates {
		out[i] = tpl
		if out[i].EntityID == "" {
			out[i].EntityID = entityID
		}
		if out[i].Label == "" {
			out[i].Label = fmt.Sprintf("View related %s records", tpl.EntityType)
		}
	}
	return out
}
