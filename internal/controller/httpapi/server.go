// Package httpapi exposes the Retrieval Controller's DRS surface over HTTP.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dmitrijs2005/ghgadelivery/internal/controller/services"
	"github.com/dmitrijs2005/ghgadelivery/internal/httpx"
	"github.com/dmitrijs2005/ghgadelivery/internal/logging"
)

// DataRepository is the service behind the handlers.
type DataRepository interface {
	GetMetadata(ctx context.Context, fileID string, wo *services.WorkOrder) (*services.MetadataResult, error)
	GetEnvelope(ctx context.Context, fileID string, wo *services.WorkOrder) ([]byte, error)
}

type HTTPServer struct {
	address   string
	service   DataRepository
	logger    logging.Logger
	jwtSecret []byte
}

func NewHTTPServer(a string, l logging.Logger, svc DataRepository, workOrderSecret string) *HTTPServer {
	return &HTTPServer{
		address:   a,
		logger:    l.With("module", "http_server"),
		service:   svc,
		jwtSecret: []byte(workOrderSecret),
	}
}

// Router builds the chi routing tree.
func (s *HTTPServer) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/health", httpx.Health)

	r.Route("/objects/{file_id}", func(r chi.Router) {
		r.Use(s.workOrderMiddleware)
		r.Get("/", s.getObject)
		r.Get("/envelopes", s.getEnvelope)
	})

	return r
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *HTTPServer) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.address,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", s.address)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
