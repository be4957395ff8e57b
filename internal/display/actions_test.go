package display

import (
	"testing"

	"github.com/kingscribe/chancery/model"
)

func actionTypes(actions []model.ActionDescriptor) []string {
	out := make([]string, len(actions))
	for i, a := range actions {
		out[i] = a.Type
	}
	return out
}

func TestButtons_nilConfigRendersNothing(t *testing.T) {
	if got := Buttons(nil, ButtonContext{HasEntity: true}); got != nil {
		t.Errorf("Buttons = %+v, want nil", got)
	}
}

func TestButtons_entityGatedActions(t *testing.T) {
	ab := &model.ActionButtons{ShowViewButton: true, ShowEditButton: true, ShowUnlinkButton: true}

	with := Buttons(ab, ButtonContext{EntityType: "District", EntityID: "7", HasEntity: true})
	if len(with) != 3 {
		t.Fatalf("with entity = %v", actionTypes(with))
	}
	for _, a := range with {
		if a.EntityID != "7" {
			t.Errorf("%s EntityID = %q, want 7", a.Type, a.EntityID)
		}
	}

	// No entity present: nothing to view, edit, or unlink.
	without := Buttons(ab, ButtonContext{EntityType: "District"})
	if len(without) != 0 {
		t.Errorf("without entity = %v, want none", actionTypes(without))
	}
}

func TestButtons_collectionLevels(t *testing.T) {
	ab := &model.ActionButtons{ShowAddButton: true, ShowRemoveButton: true, ShowCreateButton: true}

	section := Buttons(ab, ButtonContext{EntityType: "Tag", IsCollection: true})
	types := actionTypes(section)
	if len(types) != 2 || types[0] != model.ActionCreate || types[1] != model.ActionAdd {
		t.Errorf("section row = %v, want create and add", types)
	}

	item := Buttons(ab, ButtonContext{EntityType: "Tag", EntityID: "1", IsItemLevel: true, HasEntity: true})
	types = actionTypes(item)
	if len(types) != 1 || types[0] != model.ActionRemove {
		t.Errorf("item row = %v, want remove only", types)
	}

	// Remove needs a target id.
	idless := Buttons(ab, ButtonContext{EntityType: "Tag", IsItemLevel: true, HasEntity: true})
	if len(idless) != 0 {
		t.Errorf("idless item row = %v, want none", actionTypes(idless))
	}
}

func TestRecoveryHints_specificAndGeneric(t *testing.T) {
	hints := RecoveryHints{
		"District": {
			{Type: model.ActionView, EntityType: "Structure", Label: "View structures in this district"},
			{Type: model.ActionEdit, EntityType: "District", Label: "Reassign structures to another district"},
		},
	}

	specific := hints.For("District", "7")
	if len(specific) != 2 || specific[0].EntityID != "7" {
		t.Errorf("specific = %+v, want the blocked id filled in", specific)
	}

	generic := hints.For("Gate", "3")
	if len(generic) != 1 || generic[0].Type != model.ActionView || generic[0].EntityID != "3" {
		t.Errorf("generic = %+v, want a view-dependents fallback", generic)
	}
}
