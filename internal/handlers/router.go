package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"github.com/xHacka/combined-log-analyzer/internal/ingest"
	"github.com/xHacka/combined-log-analyzer/internal/repository"
)

func NewRouter(repo repository.LogRepository, in *ingest.Ingester, log logrus.FieldLogger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestLogger(&middleware.DefaultLogFormatter{Logger: log, NoColor: true}))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Method(http.MethodPost, "/parse", &ParseHandler{})
		r.Method(http.MethodPost, "/upload", &UploadHandler{Ingester: in})
		r.Method(http.MethodGet, "/query", &QueryHandler{Repo: repo})
		r.Method(http.MethodGet, "/dashboard", &DashboardHandler{Repo: repo})
	})
	return r
}
