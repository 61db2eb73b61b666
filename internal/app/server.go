package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/danielokafor-dev/askbase/internal/api/handlers"
	"github.com/danielokafor-dev/askbase/internal/api/middlewares"
	"github.com/danielokafor-dev/askbase/internal/config"
	"github.com/danielokafor-dev/askbase/internal/services"
)

// Server wraps the HTTP server instance and its handlers.
type Server struct {
	httpServer *http.Server
	log        *zap.Logger
}

// NewServer builds and wires all routes.
func NewServer(cfg *config.Config, ingest *services.IngestService, rag *services.RAGService, sqlSvc *services.SQLService, log *zap.Logger) *Server {
	docHandler := handlers.NewDocumentHandler(ingest, log)
	queryHandler := handlers.NewQueryHandler(rag, log)
	sqlHandler := handlers.NewSQLHandler(sqlSvc, log)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middlewares.Logger(log))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(5 * time.Minute))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8888"},
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api", func(api chi.Router) {
		api.Post("/documents/upload", docHandler.UploadDocument)
		api.Get("/documents", docHandler.ListDocuments)
		api.Delete("/documents/{document_id}", docHandler.DeleteDocument)
		api.Get("/stats", docHandler.Stats)

		api.Post("/query", queryHandler.Query)
		api.Post("/query/similar", queryHandler.SimilarChunks)

		api.Post("/sql/generate", sqlHandler.Generate)
		api.Post("/sql/resolve", sqlHandler.Resolve)
		api.Get("/sql/pending", sqlHandler.Pending)
	})

	httpSrv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	return &Server{httpServer: httpSrv, log: log}
}

// Start runs the HTTP server until it is shut down.
func (s *Server) Start() error {
	s.log.Info("http server listening", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("shutting down http server")
	return s.httpServer.Shutdown(ctx)
}
