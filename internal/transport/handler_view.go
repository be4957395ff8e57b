package transport

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kingscribe/chancery/internal/builder"
	"github.com/kingscribe/chancery/internal/display"
	"github.com/kingscribe/chancery/internal/observability"
	"github.com/kingscribe/chancery/model"
)

func handleRenderDisplay(renderer *display.Renderer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rctx := model.RequestContextFrom(r.Context())
		if rctx == nil {
			WriteError(w, model.NewUnauthorizedError("missing request context"))
			return
		}
		view, err := renderer.Render(r.Context(), rctx,
			chi.URLParam(r, "entityType"),
			chi.URLParam(r, "entityId"),
			r.URL.Query().Get("configurationId"))
		if err != nil {
			WriteError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, view)
	}
}

// hotEditRequest identifies the display field being edited and the raw
// input value.
type hotEditRequest struct {
	ConfigurationID string `json:"configurationId,omitempty"`
	FieldGUID       string `json:"fieldGuid,omitempty"`
	FieldName       string `json:"fieldName,omitempty"`
	Value           string `json:"value"`
}

func handleHotEdit(editor *display.HotEditor, displays *builder.DisplayService, metrics *observability.Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rctx := model.RequestContextFrom(r.Context())
		if rctx == nil {
			WriteError(w, model.NewUnauthorizedError("missing request context"))
			return
		}
		entityType := chi.URLParam(r, "entityType")
		entityID := chi.URLParam(r, "entityId")

		var req hotEditRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, model.NewBadRequestError("invalid request body"))
			return
		}

		cfg, err := loadDisplayConfiguration(r, displays, entityType, req.ConfigurationID)
		if err != nil {
			WriteError(w, err)
			return
		}
		field := findDisplayField(cfg.Sections, req.FieldGUID, req.FieldName)
		if field == nil {
			WriteError(w, model.NewNotFoundError("display field not found in configuration"))
			return
		}

		updated, err := editor.Commit(r.Context(), rctx, entityType, entityID, field, req.Value)
		if err != nil {
			if metrics != nil {
				metrics.RecordHotEdit(entityType, "error")
			}
			WriteError(w, err)
			return
		}
		if metrics != nil {
			metrics.RecordHotEdit(entityType, "ok")
		}
		WriteJSON(w, http.StatusOK, updated)
	}
}

// actionRequest is the typed dispatch payload for display actions. Only
// remove is executed server-side; the rest are navigation hints the
// client resolves itself.
type actionRequest struct {
	Action     string `json:"action"`
	EntityType string `json:"entityType,omitempty"`
	EntityID   string `json:"entityId,omitempty"`
}

func handleDisplayAction(renderer *display.Renderer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rctx := model.RequestContextFrom(r.Context())
		if rctx == nil {
			WriteError(w, model.NewUnauthorizedError("missing request context"))
			return
		}

		var req actionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, model.NewBadRequestError("invalid request body"))
			return
		}

		// Action targets default to the display's own entity.
		targetType := req.EntityType
		if targetType == "" {
			targetType = chi.URLParam(r, "entityType")
		}
		targetID := req.EntityID
		if targetID == "" {
			targetID = chi.URLParam(r, "entityId")
		}

		switch req.Action {
		case model.ActionRemove:
			if err := renderer.Remove(r.Context(), rctx, targetType, targetID); err != nil {
				WriteError(w, err)
				return
			}
			WriteJSON(w, http.StatusNoContent, nil)
		default:
			WriteError(w, model.NewBadRequestError(
				fmt.Sprintf("action %q is not dispatched server-side", req.Action)))
		}
	}
}

func loadDisplayConfiguration(r *http.Request, displays *builder.DisplayService, entityType, configurationID string) (model.DisplayConfiguration, error) {
	if configurationID != "" {
		return displays.Get(r.Context(), configurationID)
	}
	return displays.GetDefault(r.Context(), entityType)
}

// findDisplayField locates a field by GUID (preferred) or field name,
// searching sections depth-first.
func findDisplayField(sections []model.DisplaySection, guid, name string) *model.DisplayField {
	for i := range sections {
		for j := range sections[i].Fields {
			f := &sections[i].Fields[j]
			if guid != "" && (f.FieldGUID == guid || f.ID == guid) {
				return f
			}
			if guid == "" && name != "" && f.FieldName == name {
				return f
			}
		}
		if found := findDisplayField(sections[i].SubSections, guid, name); found != nil {
			return found
		}
	}
	return nil
}
