package transport

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/kingscribe/chancery/internal/builder"
	"github.com/kingscribe/chancery/internal/catalog"
	"github.com/kingscribe/chancery/internal/config"
	"github.com/kingscribe/chancery/internal/display"
	"github.com/kingscribe/chancery/internal/observability"
	"github.com/kingscribe/chancery/internal/wizard"
)

// Dependencies holds all injected dependencies for the HTTP transport layer.
type Dependencies struct {
	Config       *config.Config
	Log          *zap.Logger
	Authenticate func(http.Handler) http.Handler

	Engine    *wizard.Engine
	Renderer  *display.Renderer
	HotEditor *display.HotEditor
	Forms     *builder.FormService
	Displays  *builder.DisplayService
	Catalogs  *catalog.Service

	Metrics *observability.Metrics

	// Health, Ready, and MetricsHandler serve the public operational
	// endpoints; nil handlers fall back to trivial responses.
	Health         http.HandlerFunc
	Ready          http.HandlerFunc
	MetricsHandler http.Handler
}

// NewRouter creates a chi.Router with the full middleware pipeline and all
// route registrations. Health, readiness, and metrics endpoints bypass the
// authentication middleware.
func NewRouter(deps Dependencies) chi.Router {
	log := deps.Log
	if log == nil {
		log = zap.NewNop()
	}

	r := chi.NewRouter()

	// Global middleware: applied to all routes including health.
	r.Use(Recovery(log))
	r.Use(CORS(deps.Config.Server.CORS))
	r.Use(RequestID)
	r.Use(SecurityHeaders)

	// Public routes, no authentication.
	r.Get("/ui/health", orDefault(deps.Health, handleHealthFallback))
	r.Get("/ui/ready", orDefault(deps.Ready, handleReadyFallback))
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	// Authenticated routes get the full middleware chain.
	auth := deps.Authenticate
	if auth == nil {
		auth = func(next http.Handler) http.Handler { return next }
	}

	r.Group(func(r chi.Router) {
		r.Use(auth)
		r.Use(BuildRequestContext)
		r.Use(HandlerTimeout(deps.Config.Server.HandlerTimeout))
		r.Use(RequestLogging(log))

		r.Route("/ui/form-configurations", func(r chi.Router) {
			r.Get("/", handleListFormConfigurations(deps.Forms))
			r.Post("/", handleCreateFormConfiguration(deps.Forms))
			r.Get("/entity-types", handleListFormEntityTypes(deps.Forms))
			r.Get("/default/{entityType}", handleGetDefaultFormConfiguration(deps.Forms))
			r.Get("/reusable-steps", handleListReusableSteps(deps.Forms))
			r.Get("/reusable-fields", handleListReusableFields(deps.Forms))
			r.Get("/{configId}", handleGetFormConfiguration(deps.Forms))
			r.Put("/{configId}", handleUpdateFormConfiguration(deps.Forms))
			r.Delete("/{configId}", handleDeleteFormConfiguration(deps.Forms))
			r.Post("/{configId}/reusable-steps", handleAttachReusableStep(deps.Forms))
			r.Post("/{configId}/steps/{stepId}/reusable-fields", handleAttachReusableField(deps.Forms))
		})

		r.Route("/ui/display-configurations", func(r chi.Router) {
			r.Get("/", handleListDisplayConfigurations(deps.Displays))
			r.Post("/", handleCreateDisplayConfiguration(deps.Displays))
			r.Get("/default/{entityType}", handleGetDefaultDisplayConfiguration(deps.Displays))
			r.Get("/reusable-sections", handleListReusableSections(deps.Displays))
			r.Get("/{configId}", handleGetDisplayConfiguration(deps.Displays))
			r.Put("/{configId}", handleUpdateDisplayConfiguration(deps.Displays))
			r.Delete("/{configId}", handleDeleteDisplayConfiguration(deps.Displays))
			r.Post("/{configId}/reusable-sections", handleAttachReusableSection(deps.Displays))
		})

		r.Route("/ui/wizard", func(r chi.Router) {
			r.Get("/", handleWizardDrafts(deps.Engine))
			r.Post("/start", handleWizardStart(deps.Engine, deps.Metrics))
			r.Get("/{progressId}", handleWizardGet(deps.Engine))
			r.Post("/{progressId}/next", handleWizardNext(deps.Engine, deps.Metrics))
			r.Post("/{progressId}/previous", handleWizardPrevious(deps.Engine, deps.Metrics))
			r.Post("/{progressId}/save", handleWizardSave(deps.Engine))
			r.Post("/{progressId}/abandon", handleWizardAbandon(deps.Engine, deps.Metrics))
		})

		r.Route("/ui/display/{entityType}/{entityId}", func(r chi.Router) {
			r.Get("/", handleRenderDisplay(deps.Renderer))
			r.Patch("/field", handleHotEdit(deps.HotEditor, deps.Displays, deps.Metrics))
			r.Post("/actions", handleDisplayAction(deps.Renderer))
		})

		r.Route("/ui/catalogs", func(r chi.Router) {
			r.Get("/", handleListCatalogs(deps.Catalogs))
			r.Get("/{catalog}", handleSearchCatalog(deps.Catalogs, deps.Metrics))
		})
	})

	return r
}

func orDefault(h http.HandlerFunc, fallback http.HandlerFunc) http.HandlerFunc {
	if h != nil {
		return h
	}
	return fallback
}

func handleHealthFallback(w http.ResponseWriter, _ *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func handleReadyFallback(w http.ResponseWriter, _ *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
