package transport

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kingscribe/chancery/internal/builder"
	"github.com/kingscribe/chancery/model"
)

func handleListDisplayConfigurations(displays *builder.DisplayService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		configs, err := displays.List(r.Context(), r.URL.Query().Get("entityType"))
		if err != nil {
			WriteError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, configs)
	}
}

func handleGetDisplayConfiguration(displays *builder.DisplayService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cfg, err := displays.Get(r.Context(), chi.URLParam(r, "configId"))
		if err != nil {
			WriteError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, cfg)
	}
}

func handleGetDefaultDisplayConfiguration(displays *builder.DisplayService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cfg, err := displays.GetDefault(r.Context(), chi.URLParam(r, "entityType"))
		if err != nil {
			WriteError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, cfg)
	}
}

func handleCreateDisplayConfiguration(displays *builder.DisplayService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var cfg model.DisplayConfiguration
		if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
			WriteError(w, model.NewBadRequestError("invalid request body"))
			return
		}
		created, err := displays.Create(r.Context(), cfg, confirmDefaultParam(r))
		if err != nil {
			WriteError(w, err)
			return
		}
		WriteJSON(w, http.StatusCreated, created)
	}
}

func handleUpdateDisplayConfiguration(displays *builder.DisplayService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var cfg model.DisplayConfiguration
		if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
			WriteError(w, model.NewBadRequestError("invalid request body"))
			return
		}
		cfg.ID = chi.URLParam(r, "configId")
		updated, err := displays.Update(r.Context(), cfg, confirmDefaultParam(r))
		if err != nil {
			WriteError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, updated)
	}
}

func handleDeleteDisplayConfiguration(displays *builder.DisplayService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := displays.Delete(r.Context(), chi.URLParam(r, "configId")); err != nil {
			WriteError(w, err)
			return
		}
		WriteJSON(w, http.StatusNoContent, nil)
	}
}

func handleListReusableSections(displays *builder.DisplayService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sections, err := displays.ListReusableSections(r.Context())
		if err != nil {
			WriteError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, sections)
	}
}

func handleAttachReusableSection(displays *builder.DisplayService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rctx := model.RequestContextFrom(r.Context())
		if rctx == nil {
			WriteError(w, model.NewUnauthorizedError("missing request context"))
			return
		}
		var req builder.AttachRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, model.NewBadRequestError("invalid request body"))
			return
		}
		cfg, err := displays.AttachReusableSection(r.Context(), rctx, chi.URLParam(r, "configId"), req)
		if err != nil {
			WriteError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, cfg)
	}
}
