// Package server exposes the pipeline over HTTP: tenant management, graph
// mutation, transform previews, destination dispatch and trace reads.
package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type Server struct {
	Router *chi.Mux
	Port   int
}

func New(port int, logger *slog.Logger) *Server {
	r := chi.NewRouter()

	r.Use(RequestID)
	r.Use(RequestLogger(logger))
	r.Use(RequestTimeout(60 * time.Second))
	r.Use(middleware.Recoverer)

	// Wrap with OpenTelemetry HTTP instrumentation
	r.Use(func(next http.Handler) http.Handler {
		return otelhttp.NewHandler(next, "nexus-pipeline")
	})

	return &Server{
		Router: r,
		Port:   port,
	}
}
