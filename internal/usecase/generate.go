// Package usecase contains application services orchestrating the domain
// ports. Services are thin: validation, defaulting, and persistence
// sequencing live here; transport and storage details live in adapters.
package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/fairyhunter13/ai-video-generator/internal/config"
	"github.com/fairyhunter13/ai-video-generator/internal/domain"
)

// GenerateInput is the intake shape of a video generation request. All
// fields are optional; defaults fill the gaps before validation.
type GenerateInput struct {
	ScriptText      string `json:"scriptText" validate:"omitempty,max=5000"`
	AudioURL        string `json:"audioUrl" validate:"omitempty,url"`
	VoiceMode       string `json:"voiceMode" validate:"omitempty,oneof=tts user_audio"`
	AvatarID        string `json:"avatarId"`
	VoiceID         string `json:"voiceId"`
	Accent          string `json:"accent"`
	ProductImageURL string `json:"productImageUrl" validate:"omitempty,url"`
	ProductName     string `json:"productName" validate:"omitempty,max=200"`
	AspectRatio     string `json:"aspectRatio" validate:"omitempty,oneof=9:16 1:1 16:9"`
	CaptionsEnabled *bool  `json:"captionsEnabled"`
	CaptionStyle    string `json:"captionStyle"`
	VisualStyle     string `json:"visualStyle"`
}

// GenerateService accepts render requests and records them as pending
// jobs. It never talks to the provider: submission is the submit worker's
// job, so intake stays fast and unaffected by provider health.
type GenerateService struct {
	Jobs     domain.JobRepository
	Events   domain.EventPublisher
	Defaults config.RenderDefaults
	validate *validator.Validate
}

// NewGenerateService constructs a GenerateService.
func NewGenerateService(jobs domain.JobRepository, events domain.EventPublisher, defaults config.RenderDefaults) GenerateService {
	return GenerateService{
		Jobs:     jobs,
		Events:   events,
		Defaults: defaults,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// Generate fills defaults, validates the completed request, and inserts a
// pending job. Returns the new job id.
func (s GenerateService) Generate(ctx context.Context, userID string, in GenerateInput) (string, error) {
	if userID == "" {
		return "", fmt.Errorf("%w: missing user id", domain.ErrInvalidArgument)
	}
	if err := s.validate.Struct(in); err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrInvalidArgument, err)
	}

	req := s.applyDefaults(in)

	// Mode-conditional requirements hold after defaulting, so a minimal
	// tts request still passes via the default script.
	switch req.VoiceMode {
	case domain.VoiceModeTTS:
		if req.ScriptText == "" {
			return "", fmt.Errorf("%w: scriptText required for voiceMode=tts", domain.ErrInvalidArgument)
		}
	case domain.VoiceModeUserAudio:
		if req.AudioURL == "" {
			return "", fmt.Errorf("%w: audioUrl required for voiceMode=user_audio", domain.ErrInvalidArgument)
		}
	default:
		return "", fmt.Errorf("%w: unknown voiceMode %q", domain.ErrInvalidArgument, req.VoiceMode)
	}

	id, err := s.Jobs.Create(ctx, domain.Job{
		UserID:  userID,
		Status:  domain.JobPending,
		Request: req,
	})
	if err != nil {
		return "", err
	}

	// Best-effort: the job row is the system of record, the event stream
	// is an observer channel.
	if s.Events != nil {
		ev := domain.JobEvent{JobID: id, UserID: userID, To: domain.JobPending, At: time.Now().UTC()}
		if err := s.Events.PublishJobEvent(ctx, ev); err != nil {
			slog.Warn("job event publish failed", slog.String("job_id", id), slog.Any("error", err))
		}
	}
	return id, nil
}

func (s GenerateService) applyDefaults(in GenerateInput) domain.VideoRequest {
	d := s.Defaults
	req := domain.VideoRequest{
		ScriptText:      in.ScriptText,
		AudioURL:        in.AudioURL,
		VoiceMode:       in.VoiceMode,
		AvatarID:        in.AvatarID,
		VoiceID:         in.VoiceID,
		Accent:          in.Accent,
		ProductImageURL: in.ProductImageURL,
		ProductName:     in.ProductName,
		AspectRatio:     in.AspectRatio,
		CaptionStyle:    in.CaptionStyle,
		VisualStyle:     in.VisualStyle,
	}
	if req.VoiceMode == "" {
		req.VoiceMode = d.VoiceMode
	}
	if req.ScriptText == "" && req.VoiceMode == domain.VoiceModeTTS {
		req.ScriptText = d.ScriptText
	}
	if req.AvatarID == "" {
		req.AvatarID = d.AvatarID
	}
	if req.VoiceID == "" {
		req.VoiceID = d.VoiceID
	}
	if req.ProductImageURL == "" {
		req.ProductImageURL = d.ProductImageURL
	}
	if req.AspectRatio == "" {
		req.AspectRatio = d.AspectRatio
	}
	if in.CaptionsEnabled != nil {
		req.CaptionsEnabled = *in.CaptionsEnabled
	} else if d.CaptionsEnabled != nil {
		req.CaptionsEnabled = *d.CaptionsEnabled
	}
	if req.CaptionStyle == "" {
		req.CaptionStyle = d.CaptionStyle
	}
	if req.VisualStyle == "" {
		req.VisualStyle = d.VisualStyle
	}
	return req
}
