// Package httpapi is the Envelope Custodian's internal HTTP surface.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dmitrijs2005/ghgadelivery/internal/custodian/services"
	"github.com/dmitrijs2005/ghgadelivery/internal/httpx"
	"github.com/dmitrijs2005/ghgadelivery/internal/logging"
)

// SecretManager is the secret lifecycle the handlers drive.
type SecretManager interface {
	Extract(ctx context.Context, filePart, submitterPublicKey []byte) (*services.Extracted, error)
	Personalize(ctx context.Context, secretID string, recipientPublicKey []byte) ([]byte, error)
	Delete(ctx context.Context, secretID string) error
}

type HTTPServer struct {
	address     string
	service     SecretManager
	logger      logging.Logger
	maxBodySize int64
}

func NewHTTPServer(a string, l logging.Logger, svc SecretManager, maxBodySize int64) *HTTPServer {
	return &HTTPServer{
		address:     a,
		logger:      l.With("module", "http_server"),
		service:     svc,
		maxBodySize: maxBodySize,
	}
}

func (s *HTTPServer) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/health", httpx.Health)

	r.Route("/secrets", func(r chi.Router) {
		r.Post("/", s.extractSecret)
		r.Delete("/{secret_id}", s.deleteSecret)
		r.Get("/{secret_id}/envelopes/{client_pk}", s.personalizeEnvelope)
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
