// Package domain holds the core entities and ports of the video
// generation control plane. Adapters and usecases depend on this package;
// it depends on nothing but the standard library.
package domain

import (
	"context"
	"errors"
	"time"
)

// Error taxonomy (sentinels)
var (
	ErrInvalidArgument   = errors.New("invalid argument")
	ErrNotFound          = errors.New("not found")
	ErrConflict          = errors.New("conflict")
	ErrTooLarge          = errors.New("payload too large")
	ErrRateLimited       = errors.New("rate limited")
	ErrUpstreamTimeout   = errors.New("upstream timeout")
	ErrUpstreamRateLimit = errors.New("upstream rate limit")
	ErrInternal          = errors.New("internal error")
)

// JobStatus is the internal status vocabulary. The provider adapter is
// responsible for normalizing upstream statuses into this set.
type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobSubmitted JobStatus = "submitted"
	JobQueued    JobStatus = "queued"
	JobRendering JobStatus = "rendering"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"

	// JobCreated is a legacy synonym for pending still present in old rows.
	// It is honored on the read path only; new rows are written as pending.
	JobCreated JobStatus = "created"
)

// Terminal reports whether the status never re-enters the pipeline.
func (s JobStatus) Terminal() bool { return s == JobCompleted || s == JobFailed }

// InFlight reports whether the job is known to the provider and awaiting
// a terminal result (the poll worker's working set).
func (s JobStatus) InFlight() bool {
	return s == JobSubmitted || s == JobQueued || s == JobRendering
}

// Voice modes
const (
	VoiceModeTTS       = "tts"
	VoiceModeUserAudio = "user_audio"
)

// AllowedAspectRatios is the internal aspect-ratio vocabulary.
var AllowedAspectRatios = []string{"9:16", "1:1", "16:9"}

// VideoRequest is the render specification snapshot persisted with a job.
type VideoRequest struct {
	ScriptText      string `json:"script_text,omitempty"`
	AudioURL        string `json:"audio_url,omitempty"`
	VoiceMode       string `json:"voice_mode"`
	AvatarID        string `json:"avatar_id"`
	VoiceID         string `json:"voice_id"`
	Accent          string `json:"accent,omitempty"`
	ProductImageURL string `json:"product_image_url"`
	ProductName     string `json:"product_name,omitempty"`
	AspectRatio     string `json:"aspect_ratio"`
	CaptionsEnabled bool   `json:"captions_enabled"`
	CaptionStyle    string `json:"caption_style,omitempty"`
	VisualStyle     string `json:"visual_style,omitempty"`
}

// Job is a persistent record of one video-generation request through its
// lifecycle.
//
// Invariants:
//   - completed implies VideoURL and CompletedAt are set
//   - submitted/queued/rendering/completed imply ProviderJobID is set
//   - failed implies ErrorMessage is set
//   - terminal rows are immutable
type Job struct {
	ID            string
	UserID        string
	ProviderJobID string
	Status        JobStatus
	Request       VideoRequest
	VideoURL      string
	ThumbnailURL  string
	CreditsUsed   int
	ErrorMessage  string
	CreatedAt     time.Time
	UpdatedAt     time.Time
	CompletedAt   *time.Time
}

// JobUpdate is a partial patch applied by workers. Nil fields are left
// untouched. The store stamps updated_at on every patch and completed_at
// when the patch transitions the job to completed.
type JobUpdate struct {
	Status        *JobStatus
	ProviderJobID *string
	VideoURL      *string
	ThumbnailURL  *string
	CreditsUsed   *int
	ErrorMessage  *string
}

// ProviderJob is the provider's answer to a successful creation.
type ProviderJob struct {
	ProviderJobID string
	Status        JobStatus
}

// ProviderJobStatus is a normalized provider status snapshot.
type ProviderJobStatus struct {
	Status       JobStatus
	VideoURL     string
	ThumbnailURL string
	CreditsUsed  *int
	ErrorMessage string
	Progress     *int
}

// Avatar is a provider catalog entry.
type Avatar struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Gender     string `json:"gender,omitempty"`
	PreviewURL string `json:"preview_url,omitempty"`
}

// Voice is a provider catalog entry. Each (voice, accent) pair is
// flattened into a distinct item whose ID is the accent id.
type Voice struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Gender     string `json:"gender,omitempty"`
	AccentName string `json:"accent_name,omitempty"`
	PreviewURL string `json:"preview_url,omitempty"`
}

// CreditBalance is the provider account balance.
type CreditBalance struct {
	Credits float64 `json:"credits"`
}

// Repositories (ports)

// JobRepository is the durable job store.
type JobRepository interface {
	Create(ctx context.Context, j Job) (string, error)
	Get(ctx context.Context, id string) (Job, error)
	ListByUser(ctx context.Context, userID string, limit int) ([]Job, error)
	// SelectPending returns up to limit jobs awaiting submission,
	// oldest created_at first.
	SelectPending(ctx context.Context, limit int) ([]Job, error)
	// SelectActive returns up to limit in-flight jobs, oldest updated_at
	// first so no job starves under a bounded batch.
	SelectActive(ctx context.Context, limit int) ([]Job, error)
	Update(ctx context.Context, id string, patch JobUpdate) error
}

// RateLimitStore grants provider-call slots. AcquireSlots must execute as
// one atomic step: two concurrent callers can never both observe the same
// remaining capacity.
type RateLimitStore interface {
	// AcquireSlots returns granted in [0, requested] for the (api, caller)
	// budget. A missing budget row grants zero.
	AcquireSlots(ctx context.Context, api, caller string, requested int) (int, error)
}

// VideoProvider abstracts the upstream video generation service.
type VideoProvider interface {
	CreateJob(ctx context.Context, req VideoRequest) (ProviderJob, error)
	CheckJobStatus(ctx context.Context, providerJobID string) (ProviderJobStatus, error)
	ListAvatars(ctx context.Context) ([]Avatar, error)
	ListVoices(ctx context.Context) ([]Voice, error)
	GetCreditBalance(ctx context.Context) (CreditBalance, error)
}

// JobEvent is a lifecycle transition published for observers.
type JobEvent struct {
	JobID  string    `json:"job_id"`
	UserID string    `json:"user_id"`
	From   JobStatus `json:"from,omitempty"`
	To     JobStatus `json:"to"`
	At     time.Time `json:"at"`
}

// EventPublisher fans out job lifecycle events. Publishing is best-effort:
// callers log failures and move on.
type EventPublisher interface {
	PublishJobEvent(ctx context.Context, ev JobEvent) error
}

// CatalogCache caches provider catalog responses server-side.
type CatalogCache interface {
	Get(ctx context.Context, key string, v any) (bool, error)
	Set(ctx context.Context, key string, v any, ttl time.Duration) error
}

// AssetStore persists uploaded product images and returns a public URL.
type AssetStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
}
