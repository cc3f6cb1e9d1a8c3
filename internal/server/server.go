// Package server exposes the workflow over HTTP: job creation and status,
// staged execution, artifact edits with cascades, regeneration tasks,
// document validation, and archive download.
package server

import (
	"context"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/ShayCichocki/storyforge/internal/cascade"
	"github.com/ShayCichocki/storyforge/internal/config"
	"github.com/ShayCichocki/storyforge/internal/pipeline"
)

// Server routes HTTP requests to the orchestrator and cascade analyzer.
type Server struct {
	cfg      *config.Config
	orch     *pipeline.Orchestrator
	analyzer *cascade.Analyzer
	router   chi.Router
}

// New creates a server and builds its routes.
func New(cfg *config.Config, orch *pipeline.Orchestrator, analyzer *cascade.Analyzer) *Server {
	s := &Server{
		cfg:      cfg,
		orch:     orch,
		analyzer: analyzer,
	}
	s.router = s.routes()
	return s
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe runs the server until ctx is canceled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:    s.cfg.Server.Addr,
		Handler: s.router,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("[server] listening on %s", s.cfg.Server.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return srv.Shutdown(context.Background())
	}
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Post("/jobs", s.handleCreateJob)
		r.Get("/jobs", s.handleListJobs)

		r.Route("/jobs/{jobID}", func(r chi.Router) {
			r.Get("/", s.handleGetJob)
			r.Get("/archive", s.handleDownloadArchive)
			r.Post("/stages/{stage}", s.handleAdvanceStage)
			r.Post("/validate", s.handleValidateDocument)
			r.Post("/gap-fixes/{fixID}", s.handleResolveGapFix)

			r.Put("/epics/{epicID}", s.handleEditEpic)
			r.Delete("/epics/{epicID}", s.handleDeleteEpic)
			r.Post("/epics/{epicID}/stories", s.handleGenerateMoreStories)

			r.Put("/stories/{storyID}", s.handleEditStory)
			r.Delete("/stories/{storyID}", s.handleDeleteStory)
			r.Put("/stories/{storyID}/criteria", s.handleEditCriteria)
			r.Get("/stories/{storyID}/impact", s.handleImpact)
			r.Post("/stories/{storyID}/regenerate", s.handleRegenerate)
			r.Post("/stories/{storyID}/tests", s.handleMoreTests)

			r.Delete("/tests/functional/{testID}", s.handleDeleteFunctionalTest)
			r.Delete("/tests/gherkin/{scenarioID}", s.handleDeleteScenario)
		})

		r.Get("/tasks/{taskID}", s.handleGetTask)
	})

	return r
}
