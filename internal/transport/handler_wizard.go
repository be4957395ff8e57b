package transport

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kingscribe/chancery/internal/observability"
	"github.com/kingscribe/chancery/internal/wizard"
	"github.com/kingscribe/chancery/model"
)

// wizardStepRequest carries the current step's data for navigation and
// draft endpoints.
type wizardStepRequest struct {
	StepData map[string]any `json:"stepData"`
}

func handleWizardStart(engine *wizard.Engine, metrics *observability.Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rctx := model.RequestContextFrom(r.Context())
		if rctx == nil {
			WriteError(w, model.NewUnauthorizedError("missing request context"))
			return
		}
		var input wizard.StartInput
		if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
			WriteError(w, model.NewBadRequestError("invalid request body"))
			return
		}

		step, err := engine.Start(r.Context(), rctx, input)
		if err != nil {
			WriteError(w, err)
			return
		}
		if metrics != nil {
			metrics.RecordWizardStart(step.EntityTypeName, startMode(input))
		}
		WriteJSON(w, http.StatusOK, step)
	}
}

func handleWizardGet(engine *wizard.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rctx := model.RequestContextFrom(r.Context())
		if rctx == nil {
			WriteError(w, model.NewUnauthorizedError("missing request context"))
			return
		}
		step, err := engine.Get(r.Context(), rctx, chi.URLParam(r, "progressId"))
		if err != nil {
			WriteError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, step)
	}
}

func handleWizardDrafts(engine *wizard.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rctx := model.RequestContextFrom(r.Context())
		if rctx == nil {
			WriteError(w, model.NewUnauthorizedError("missing request context"))
			return
		}
		drafts, err := engine.ListDrafts(r.Context(), rctx, r.URL.Query().Get("entityType"))
		if err != nil {
			WriteError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, drafts)
	}
}

func handleWizardNext(engine *wizard.Engine, metrics *observability.Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rctx := model.RequestContextFrom(r.Context())
		if rctx == nil {
			WriteError(w, model.NewUnauthorizedError("missing request context"))
			return
		}
		var req wizardStepRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, model.NewBadRequestError("invalid request body"))
			return
		}

		result, err := engine.Next(r.Context(), rctx, chi.URLParam(r, "progressId"), req.StepData)
		if err != nil {
			if metrics != nil {
				if env, ok := err.(*model.ErrorEnvelope); ok && env.Code == model.ErrValidationError {
					metrics.RecordWizardValidationFailure()
				}
			}
			WriteError(w, err)
			return
		}
		if metrics != nil {
			if result.Completed {
				metrics.RecordWizardCompletion(result.Progress.EntityTypeName, result.Progress.Status)
			} else if result.Step != nil {
				metrics.RecordWizardAdvance(result.Step.EntityTypeName, "next")
			}
		}
		WriteJSON(w, http.StatusOK, result)
	}
}

func handleWizardPrevious(engine *wizard.Engine, metrics *observability.Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rctx := model.RequestContextFrom(r.Context())
		if rctx == nil {
			WriteError(w, model.NewUnauthorizedError("missing request context"))
			return
		}
		var req wizardStepRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, model.NewBadRequestError("invalid request body"))
			return
		}

		step, err := engine.Previous(r.Context(), rctx, chi.URLParam(r, "progressId"), req.StepData)
		if err != nil {
			WriteError(w, err)
			return
		}
		if metrics != nil {
			metrics.RecordWizardAdvance(step.EntityTypeName, "previous")
		}
		WriteJSON(w, http.StatusOK, step)
	}
}

func handleWizardSave(engine *wizard.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rctx := model.RequestContextFrom(r.Context())
		if rctx == nil {
			WriteError(w, model.NewUnauthorizedError("missing request context"))
			return
		}
		var req wizardStepRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, model.NewBadRequestError("invalid request body"))
			return
		}

		summary, err := engine.SaveDraft(r.Context(), rctx, chi.URLParam(r, "progressId"), req.StepData)
		if err != nil {
			WriteError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, summary)
	}
}

func handleWizardAbandon(engine *wizard.Engine, metrics *observability.Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rctx := model.RequestContextFrom(r.Context())
		if rctx == nil {
			WriteError(w, model.NewUnauthorizedError("missing request context"))
			return
		}
		summary, err := engine.Abandon(r.Context(), rctx, chi.URLParam(r, "progressId"))
		if err != nil {
			WriteError(w, err)
			return
		}
		if metrics != nil {
			metrics.RecordWizardCompletion(summary.EntityTypeName, summary.Status)
		}
		WriteJSON(w, http.StatusOK, summary)
	}
}

func startMode(input wizard.StartInput) string {
	switch {
	case input.ProgressID != "":
		return "resume"
	case input.EntityID != "":
		return "edit"
	default:
		return "create"
	}
}
