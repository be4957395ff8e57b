package integration

import (
	"net/http"
	"testing"

	"github.com/kingscribe/chancery/internal/display"
	"github.com/kingscribe/chancery/model"
)

func findFieldView(view *display.View, fieldName string) *display.FieldView {
	for si := range view.Sections {
		for fi := range view.Sections[si].Fields {
			if view.Sections[si].Fields[fi].FieldName == fieldName {
				return &view.Sections[si].Fields[fi]
			}
		}
	}
	return nil
}

// TestDisplayView_render loads an entity through the gateway and renders
// it with the default Structure display configuration.
func TestDisplayView_render(t *testing.T) {
	h := NewTestHarness(t)
	token := h.GenerateToken(PlayerClaims())

	h.Backend.OnOperation("getStructure").
		RespondWith(http.StatusOK, StructureFixture("42", "Old Mill", 12))

	var view display.View
	resp := h.GET("/ui/display/Structure/42", token)
	h.AssertJSON(t, resp, http.StatusOK, &view)

	if view.EntityTypeName != "Structure" || view.EntityID != "42" {
		t.Errorf("view identity = %s/%s, want Structure/42", view.EntityTypeName, view.EntityID)
	}
	if len(view.Sections) == 0 || view.Sections[0].Name != "General" {
		t.Fatalf("sections not rendered: %s", FormatJSON(view.Sections))
	}

	name := findFieldView(&view, "name")
	if name == nil || name.Value != "Old Mill" {
		t.Errorf("name field = %s, want value Old Mill", FormatJSON(name))
	}
	if name != nil && !name.Editable {
		t.Error("name field should be editable in display")
	}

	height := findFieldView(&view, "height")
	if height == nil || height.Value != "12" {
		t.Errorf("height field = %s, want value 12", FormatJSON(height))
	}

	h.Backend.AssertCalled(t, "getStructure", 1)
}

// TestDisplayView_unknownEntityType rejects types the gateway does not
// expose without touching the backend.
func TestDisplayView_unknownEntityType(t *testing.T) {
	h := NewTestHarness(t)
	token := h.GenerateToken(PlayerClaims())

	resp := h.GET("/ui/display/Dragon/7", token)
	h.AssertErrorCode(t, resp, http.StatusNotFound, model.ErrNotFound)
}

// TestDisplayView_entityMissing maps the backend's 404 straight through.
func TestDisplayView_entityMissing(t *testing.T) {
	h := NewTestHarness(t)
	token := h.GenerateToken(PlayerClaims())

	h.Backend.OnOperation("getStructure").
		RespondWithError(http.StatusNotFound, "structure 999 does not exist")

	resp := h.GET("/ui/display/Structure/999", token)
	h.AssertErrorCode(t, resp, http.StatusNotFound, model.ErrNotFound)
}

// TestHotEdit_updatesField edits a single field in place: fetch, merge,
// update, refetch.
func TestHotEdit_updatesField(t *testing.T) {
	h := NewTestHarness(t)
	token := h.GenerateToken(PlayerClaims())

	h.Backend.OnOperation("getStructure").
		RespondWith(http.StatusOK, StructureFixture("42", "Old Mill", 12)).
		RespondWith(http.StatusOK, StructureFixture("42", "New Mill", 12))
	h.Backend.OnOperation("updateStructure").
		RespondWith(http.StatusOK, StructureFixture("42", "New Mill", 12))

	var updated map[string]any
	resp := h.PATCH("/ui/display/Structure/42/field", map[string]any{
		"fieldGuid": "guid-name",
		"value":     "New Mill",
	}, token)
	h.AssertJSON(t, resp, http.StatusOK, &updated)

	if updated["name"] != "New Mill" {
		t.Errorf("refetched entity name = %v, want New Mill", updated["name"])
	}

	h.Backend.AssertCalled(t, "getStructure", 2)
	h.Backend.AssertCalled(t, "updateStructure", 1)
	req := h.Backend.LastRequest("updateStructure")
	if req.Body["id"] != "42" || req.Body["name"] != "New Mill" {
		t.Errorf("update payload = %s, want id 42 with new name merged", FormatJSON(req.Body))
	}
	// The merge must carry untouched fields, not send a sparse patch.
	if req.Body["height"] != float64(12) {
		t.Errorf("update payload dropped height: %s", FormatJSON(req.Body))
	}
}

// TestHotEdit_coercesIntegerValue verifies typed coercion of the raw
// string input before it reaches the backend.
func TestHotEdit_coercesIntegerValue(t *testing.T) {
	h := NewTestHarness(t)
	token := h.GenerateToken(PlayerClaims())

	h.Backend.OnOperation("getStructure").
		RespondWith(http.StatusOK, StructureFixture("42", "Old Mill", 12))
	h.Backend.OnOperation("updateStructure").
		RespondWith(http.StatusOK, StructureFixture("42", "Old Mill", 15))

	resp := h.PATCH("/ui/display/Structure/42/field", map[string]any{
		"fieldGuid": "guid-height",
		"value":     "15",
	}, token)
	h.AssertStatus(t, resp, http.StatusOK)
	resp.Body.Close()

	req := h.Backend.LastRequest("updateStructure")
	if req.Body["height"] != float64(15) {
		t.Errorf("height sent as %v (%T), want numeric 15", req.Body["height"], req.Body["height"])
	}
}

// TestHotEdit_rejectsBadInteger blocks an unparseable value before any
// backend write.
func TestHotEdit_rejectsBadInteger(t *testing.T) {
	h := NewTestHarness(t)
	token := h.GenerateToken(PlayerClaims())

	resp := h.PATCH("/ui/display/Structure/42/field", map[string]any{
		"fieldGuid": "guid-height",
		"value":     "tall",
	}, token)
	h.AssertErrorCode(t, resp, http.StatusUnprocessableEntity, model.ErrValidationError)

	h.Backend.AssertNotCalled(t, "updateStructure")
}

// TestHotEdit_rejectsNonEditableField rejects fields not flagged for
// in-display editing.
func TestHotEdit_rejectsNonEditableField(t *testing.T) {
	h := NewTestHarness(t)
	token := h.GenerateToken(PlayerClaims())

	resp := h.PATCH("/ui/display/Structure/42/field", map[string]any{
		"fieldGuid": "guid-ruin",
		"value":     "true",
	}, token)
	h.AssertErrorCode(t, resp, http.StatusBadRequest, model.ErrBadRequest)

	h.Backend.AssertNotCalled(t, "updateStructure")
}

// TestDisplayAction_remove dispatches a remove action to the backend.
func TestDisplayAction_remove(t *testing.T) {
	h := NewTestHarness(t)
	token := h.GenerateToken(PlayerClaims())

	h.Backend.OnOperation("deleteStructure").
		RespondWith(http.StatusNoContent, nil)

	resp := h.POST("/ui/display/Structure/42/actions", map[string]any{
		"action": model.ActionRemove,
	}, token)
	h.AssertStatus(t, resp, http.StatusNoContent)
	resp.Body.Close()

	h.Backend.AssertCalled(t, "deleteStructure", 1)
}

// TestDisplayAction_removeBlockedByDependents converts the backend's
// conflict into a reference conflict with recovery actions.
func TestDisplayAction_removeBlockedByDependents(t *testing.T) {
	h := NewTestHarness(t)
	token := h.GenerateToken(PlayerClaims())

	h.Backend.OnOperation("deleteStructure").
		RespondWithError(http.StatusConflict, "structure has resident villagers")

	resp := h.POST("/ui/display/Structure/42/actions", map[string]any{
		"action": model.ActionRemove,
	}, token)
	env := h.AssertErrorCode(t, resp, http.StatusConflict, model.ErrReferenceConflict)

	if len(env.Recovery) == 0 {
		t.Fatalf("conflict carries no recovery actions: %s", FormatJSON(env))
	}
	if env.Recovery[0].EntityType != "Structure" || env.Recovery[0].EntityID != "42" {
		t.Errorf("recovery target = %s, want Structure/42", FormatJSON(env.Recovery[0]))
	}
}

// TestDisplayAction_viewNotDispatched keeps navigation actions on the
// client side.
func TestDisplayAction_viewNotDispatched(t *testing.T) {
	h := NewTestHarness(t)
	token := h.GenerateToken(PlayerClaims())

	resp := h.POST("/ui/display/Structure/42/actions", map[string]any{
		"action": model.ActionView,
	}, token)
	h.AssertErrorCode(t, resp, http.StatusBadRequest, model.ErrBadRequest)
}
