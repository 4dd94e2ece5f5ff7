// Package app wires configuration, adapters, and services into runnable
// processes.
package app

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	httpserver "github.com/fairyhunter13/ai-video-generator/internal/adapter/httpserver"
	"github.com/fairyhunter13/ai-video-generator/internal/adapter/observability"
	"github.com/fairyhunter13/ai-video-generator/internal/config"
)

// ParseOrigins splits a comma-separated origin list into a slice, trimming spaces.
// If the input is empty, returns ["*"].
func ParseOrigins(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" || s == "*" {
		return []string{"*"}
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return []string{"*"}
	}
	return out
}

// BuildRouter constructs the HTTP handler with all middlewares and routes.
// assetDir, when non-empty, is served under /files/ for locally stored
// product images.
func BuildRouter(cfg config.Config, srv *httpserver.Server, assetDir string) http.Handler {
	r := chi.NewRouter()
	r.Use(httpserver.Recoverer())
	r.Use(httpserver.RequestID())
	r.Use(httpserver.TimeoutMiddleware(60 * time.Second))
	r.Use(httpserver.AccessLog())
	r.Use(observability.HTTPMetricsMiddleware)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   ParseOrigins(cfg.CORSAllowOrigins),
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Rate limit the mutating endpoints per client IP.
	r.Group(func(mr chi.Router) {
		mr.Use(httprate.LimitByIP(cfg.RateLimitPerMin, 1*time.Minute))
		mr.Post("/generate-video", srv.HandleGenerateVideo())
		mr.Post("/upload-product-image", srv.HandleUploadProductImage())
	})

	// Read-only surface.
	r.Post("/job-status", srv.HandleJobStatusPost())
	r.Get("/jobs/{id}", srv.HandleJobStatusGet())
	r.Post("/list-jobs", srv.HandleListJobs())
	r.Get("/list-avatars", srv.HandleListAvatars())
	r.Get("/list-voices", srv.HandleListVoices())
	r.Get("/credit-balance", srv.HandleCreditBalance())

	// Cron surface: single-shot worker triggers guarded by a shared token.
	r.Group(func(cr chi.Router) {
		cr.Use(httpserver.CronToken(cfg.CronToken))
		cr.Post("/submit-worker", srv.HandleSubmitWorker())
		cr.Post("/poll-worker", srv.HandlePollWorker())
	})

	// Locally stored assets.
	if assetDir != "" {
		fileServer := http.StripPrefix("/files/", http.FileServer(http.Dir(assetDir)))
		r.Get("/files/*", fileServer.ServeHTTP)
	}

	// Health and metrics.
	r.Get("/health", srv.HandleHealth())
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	r.Get("/readyz", srv.HandleHealth())
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) { promhttp.Handler().ServeHTTP(w, r) })

	return httpserver.SecurityHeaders(r)
}
