package transport

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/kingscribe/chancery/internal/builder"
	"github.com/kingscribe/chancery/model"
)

func handleListFormConfigurations(forms *builder.FormService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		configs, err := forms.List(r.Context(), r.URL.Query().Get("entityType"))
		if err != nil {
			WriteError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, configs)
	}
}

func handleGetFormConfiguration(forms *builder.FormService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cfg, err := forms.Get(r.Context(), chi.URLParam(r, "configId"))
		if err != nil {
			WriteError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, cfg)
	}
}

func handleGetDefaultFormConfiguration(forms *builder.FormService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cfg, err := forms.GetDefault(r.Context(), chi.URLParam(r, "entityType"))
		if err != nil {
			WriteError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, cfg)
	}
}

func handleListFormEntityTypes(forms *builder.FormService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		types, err := forms.EntityTypes(r.Context())
		if err != nil {
			WriteError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, types)
	}
}

func handleCreateFormConfiguration(forms *builder.FormService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var cfg model.FormConfiguration
		if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
			WriteError(w, model.NewBadRequestError("invalid request body"))
			return
		}
		created, err := forms.Create(r.Context(), cfg, confirmDefaultParam(r))
		if err != nil {
			WriteError(w, err)
			return
		}
		WriteJSON(w, http.StatusCreated, created)
	}
}

func handleUpdateFormConfiguration(forms *builder.FormService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var cfg model.FormConfiguration
		if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
			WriteError(w, model.NewBadRequestError("invalid request body"))
			return
		}
		cfg.ID = chi.URLParam(r, "configId")
		updated, err := forms.Update(r.Context(), cfg, confirmDefaultParam(r))
		if err != nil {
			WriteError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, updated)
	}
}

func handleDeleteFormConfiguration(forms *builder.FormService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := forms.Delete(r.Context(), chi.URLParam(r, "configId")); err != nil {
			WriteError(w, err)
			return
		}
		WriteJSON(w, http.StatusNoContent, nil)
	}
}

func handleListReusableSteps(forms *builder.FormService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		steps, err := forms.ListReusableSteps(r.Context())
		if err != nil {
			WriteError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, steps)
	}
}

func handleListReusableFields(forms *builder.FormService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		fields, err := forms.ListReusableFields(r.Context())
		if err != nil {
			WriteError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, fields)
	}
}

func handleAttachReusableField(forms *builder.FormService) http.HandlerFunc {
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
		cfg, err := forms.AttachReusableField(r.Context(), rctx,
			chi.URLParam(r, "configId"), chi.URLParam(r, "stepId"), req)
		if err != nil {
			WriteError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, cfg)
	}
}

func handleAttachReusableStep(forms *builder.FormService) http.HandlerFunc {
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
		cfg, err := forms.AttachReusableStep(r.Context(), rctx, chi.URLParam(r, "configId"), req)
		if err != nil {
			WriteError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, cfg)
	}
}

// confirmDefaultParam reads the confirmDefault query flag used by the
// single-default handshake.
func confirmDefaultParam(r *http.Request) bool {
	ok, _ := strconv.ParseBool(r.URL.Query().Get("confirmDefault"))
	return ok
}
