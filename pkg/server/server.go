// Package server exposes the triage pipeline over HTTP.
//
//	GET  /healthz                      liveness
//	POST /api/v1/notifications/ingest  store a notification, or speak a missed call
//	POST /api/v1/agent/query           answer a wake query with audio
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/m-mizutani/deepfocus/pkg/usecase/triage"
	"github.com/m-mizutani/deepfocus/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
)

const (
	maxBodyBytes    = 1 << 20
	shutdownTimeout = 10 * time.Second
)

type Server struct {
	uc          *triage.UseCase
	synth       *triage.Synthesizer
	corsOrigins []string
	handler     http.Handler
}

type Option func(*Server)

// WithCORSOrigins sets allowed origins. "*" allows any origin.
func WithCORSOrigins(origins []string) Option {
	return func(s *Server) {
		s.corsOrigins = origins
	}
}

func New(uc *triage.UseCase, synth *triage.Synthesizer, opts ...Option) *Server {
	s := &Server{
		uc:          uc,
		synth:       synth,
		corsOrigins: []string{"*"},
	}
	for _, opt := range opts {
		opt(s)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("POST /api/v1/notifications/ingest", s.handleIngest)
	mux.HandleFunc("POST /api/v1/agent/query", s.handleQuery)

	s.handler = recoverMiddleware(requestLogger(corsMiddleware(s.corsOrigins, mux)))
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// Run serves on addr until ctx is canceled, then shuts down gracefully
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}

	errCh := make(chan error, 1)
	go func() {
		logging.From(ctx).Info("server started", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return goerr.Wrap(err, "server stopped", goerr.V("addr", addr))
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return goerr.Wrap(err, "failed to shutdown server")
	}
	logging.From(ctx).Info("server stopped")
	return nil
}
