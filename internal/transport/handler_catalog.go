package transport

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kingscribe/chancery/internal/catalog"
	"github.com/kingscribe/chancery/internal/observability"
)

func handleListCatalogs(catalogs *catalog.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		WriteJSON(w, http.StatusOK, catalogs.Catalogs())
	}
}

func handleSearchCatalog(catalogs *catalog.Service, metrics *observability.Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "catalog")
		start := time.Now()

		items, err := catalogs.Search(name, r.URL.Query().Get("q"))
		if err != nil {
			WriteError(w, err)
			return
		}
		if metrics != nil {
			metrics.RecordCatalogSearch(name, time.Since(start))
		}
		WriteJSON(w, http.StatusOK, items)
	}
}
