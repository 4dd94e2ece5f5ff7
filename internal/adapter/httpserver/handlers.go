package httpserver

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/fairyhunter13/ai-video-generator/internal/config"
	"github.com/fairyhunter13/ai-video-generator/internal/domain"
	"github.com/fairyhunter13/ai-video-generator/internal/usecase"
	"github.com/fairyhunter13/ai-video-generator/internal/worker"
)

// Server aggregates the application services behind HTTP handlers.
type Server struct {
	Cfg      config.Config
	Generate usecase.GenerateService
	Status   usecase.StatusService
	Catalog  usecase.CatalogService
	Upload   usecase.UploadService
	Submit   *worker.SubmitWorker
	Poll     *worker.PollWorker
}

// NewServer constructs a Server.
func NewServer(cfg config.Config, gen usecase.GenerateService, st usecase.StatusService, cat usecase.CatalogService, up usecase.UploadService, sub *worker.SubmitWorker, poll *worker.PollWorker) *Server {
	return &Server{Cfg: cfg, Generate: gen, Status: st, Catalog: cat, Upload: up, Submit: sub, Poll: poll}
}

// jobView is the external JSON shape of a job.
type jobView struct {
	JobID        string     `json:"jobId"`
	Status       string     `json:"status"`
	VideoURL     string     `json:"videoUrl,omitempty"`
	ThumbnailURL string     `json:"thumbnailUrl,omitempty"`
	CreditsUsed  *int       `json:"creditsUsed,omitempty"`
	ErrorMessage string     `json:"errorMessage,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
	CompletedAt  *time.Time `json:"completedAt,omitempty"`
}

func toJobView(j domain.Job) jobView {
	v := jobView{
		JobID:        j.ID,
		Status:       string(j.Status),
		VideoURL:     j.VideoURL,
		ThumbnailURL: j.ThumbnailURL,
		ErrorMessage: j.ErrorMessage,
		CreatedAt:    j.CreatedAt,
		UpdatedAt:    j.UpdatedAt,
		CompletedAt:  j.CompletedAt,
	}
	if j.CreditsUsed > 0 {
		credits := j.CreditsUsed
		v.CreditsUsed = &credits
	}
	return v
}

// HandleGenerateVideo accepts a render request and records a pending job.
func (s *Server) HandleGenerateVideo() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := r.Header.Get("x-user-id")
		var in usecase.GenerateInput
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			writeError(w, r, fmt.Errorf("%w: invalid JSON body", domain.ErrInvalidArgument), nil)
			return
		}
		id, err := s.Generate.Generate(r.Context(), userID, in)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]string{"jobId": id, "status": string(domain.JobPending)})
	}
}

// HandleJobStatusPost reads one job by the id in the request body.
func (s *Server) HandleJobStatusPost() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in struct {
			JobID string `json:"jobId"`
		}
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			writeError(w, r, fmt.Errorf("%w: invalid JSON body", domain.ErrInvalidArgument), nil)
			return
		}
		s.respondJob(w, r, in.JobID)
	}
}

// HandleJobStatusGet reads one job by path id.
func (s *Server) HandleJobStatusGet() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.respondJob(w, r, chi.URLParam(r, "id"))
	}
}

// respondJob writes a job view with cache headers cooperating with
// client-side polling: terminal states are immutable and cacheable at the
// edge, non-terminal states must always revalidate.
func (s *Server) respondJob(w http.ResponseWriter, r *http.Request, id string) {
	j, err := s.Status.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err, nil)
		return
	}
	if j.Status.Terminal() {
		w.Header().Set("Cache-Control", "public, s-maxage=60")
	} else {
		w.Header().Set("Cache-Control", "no-cache")
	}
	writeJSON(w, http.StatusOK, toJobView(j))
}

// HandleListJobs returns the caller's jobs, newest first.
func (s *Server) HandleListJobs() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := r.Header.Get("x-user-id")
		jobs, err := s.Status.List(r.Context(), userID, 0)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		views := make([]jobView, 0, len(jobs))
		for _, j := range jobs {
			views = append(views, toJobView(j))
		}
		writeJSON(w, http.StatusOK, map[string]any{"jobs": views})
	}
}

// HandleListAvatars serves the avatar catalog.
func (s *Server) HandleListAvatars() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		avatars, err := s.Catalog.Avatars(r.Context())
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"avatars": avatars})
	}
}

// HandleListVoices serves the flattened voice catalog.
func (s *Server) HandleListVoices() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		voices, err := s.Catalog.Voices(r.Context())
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"voices": voices})
	}
}

// HandleCreditBalance serves the provider account balance.
func (s *Server) HandleCreditBalance() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		bal, err := s.Catalog.CreditBalance(r.Context())
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, bal)
	}
}

// HandleUploadProductImage stores a base64 product image.
func (s *Server) HandleUploadProductImage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := r.Header.Get("x-user-id")
		var in struct {
			Base64   string `json:"base64"`
			MimeType string `json:"mimeType"`
		}
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			writeError(w, r, fmt.Errorf("%w: invalid JSON body", domain.ErrInvalidArgument), nil)
			return
		}
		url, err := s.Upload.UploadProductImage(r.Context(), userID, in.Base64)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]string{"url": url})
	}
}

// HandleHealth reports liveness plus configuration presence so deploy
// probes catch missing env before traffic does.
func (s *Server) HandleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"status": "ok",
			"env": map[string]bool{
				"providerConfigured": s.Cfg.ProviderConfigured(),
				"storeConfigured":    s.Cfg.StoreConfigured(),
			},
		})
	}
}

// HandleSubmitWorker runs one submit batch and returns its diagnostic.
func (s *Server) HandleSubmitWorker() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		report, err := s.Submit.RunOnce(r.Context())
		if err != nil {
			LoggerFrom(r).Error("submit run failed", slog.Any("error", err))
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, report)
	}
}

// HandlePollWorker runs one poll batch and returns its diagnostic.
func (s *Server) HandlePollWorker() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		report, err := s.Poll.RunOnce(r.Context())
		if err != nil {
			LoggerFrom(r).Error("poll run failed", slog.Any("error", err))
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, report)
	}
}
