// Package real implements the upstream video generation client over HTTP.
package real

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	backoff "github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/fairyhunter13/ai-video-generator/internal/adapter/observability"
	"github.com/fairyhunter13/ai-video-generator/internal/config"
	"github.com/fairyhunter13/ai-video-generator/internal/domain"
)

// Client implements domain.VideoProvider against the upstream REST API.
//
// Two HTTP clients with different timeouts: job creation runs long enough
// that an HTTP-level retry after a timeout would risk creating a second
// provider job, so the submit path gets a generous deadline while the
// read-only paths stay short.
type Client struct {
	baseURL  string
	apiID    string
	apiKey   string
	submitHC *http.Client
	readHC   *http.Client
}

// New constructs a provider client from configuration.
func New(cfg config.Config) *Client {
	return &Client{
		baseURL:  strings.TrimRight(cfg.ProviderBaseURL, "/"),
		apiID:    cfg.ProviderAPIID,
		apiKey:   cfg.ProviderAPIKey,
		submitHC: &http.Client{Timeout: cfg.ProviderSubmitTimeout},
		readHC:   &http.Client{Timeout: cfg.ProviderPollTimeout},
	}
}

// mapStatus normalizes the upstream status vocabulary. Unknown values fall
// back to submitted: the job is known to the provider but its phase is not.
func mapStatus(s string) domain.JobStatus {
	switch strings.ToLower(s) {
	case "pending", "queued":
		return domain.JobQueued
	case "processing", "rendering":
		return domain.JobRendering
	case "done", "completed":
		return domain.JobCompleted
	case "failed", "error":
		return domain.JobFailed
	default:
		return domain.JobSubmitted
	}
}

// providerAspect converts the internal aspect form ("9:16") to the
// provider's ("9x16").
func providerAspect(ar string) string { return strings.ReplaceAll(ar, ":", "x") }

type createJobPayload struct {
	AvatarID        string `json:"avatar_id"`
	VoiceID         string `json:"voice_id,omitempty"`
	Text            string `json:"text,omitempty"`
	Accent          string `json:"accent,omitempty"`
	AudioURL        string `json:"audio_url,omitempty"`
	ProductImageURL string `json:"product_image_url"`
	ProductName     string `json:"product_name,omitempty"`
	AspectRatio     string `json:"aspect_ratio"`
	Captions        bool   `json:"captions"`
	CaptionStyle    string `json:"caption_style,omitempty"`
	VisualStyle     string `json:"visual_style,omitempty"`
}

type jobEnvelope struct {
	ID           string `json:"id"`
	Status       string `json:"status"`
	VideoURL     string `json:"video_url"`
	ThumbnailURL string `json:"thumbnail_url"`
	CreditsUsed  *int   `json:"credits_used"`
	Error        string `json:"error"`
	Progress     *int   `json:"progress"`
}

type apiError struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

func (e apiError) text() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Error
}

// CreateJob submits a render request and returns the provider's job id with
// a normalized status.
func (c *Client) CreateJob(ctx context.Context, req domain.VideoRequest) (domain.ProviderJob, error) {
	tracer := otel.Tracer("provider.real")
	ctx, span := tracer.Start(ctx, "provider.CreateJob")
	defer span.End()
	start := time.Now()

	payload := createJobPayload{
		AvatarID:        req.AvatarID,
		ProductImageURL: req.ProductImageURL,
		ProductName:     req.ProductName,
		AspectRatio:     providerAspect(req.AspectRatio),
		Captions:        req.CaptionsEnabled,
		CaptionStyle:    req.CaptionStyle,
		VisualStyle:     req.VisualStyle,
	}
	if req.VoiceMode == domain.VoiceModeUserAudio && req.AudioURL != "" {
		payload.AudioURL = req.AudioURL
	} else {
		payload.Text = req.ScriptText
		payload.VoiceID = req.VoiceID
		payload.Accent = req.Accent
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return domain.ProviderJob{}, fmt.Errorf("op=provider.create: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/videos", bytes.NewReader(body))
	if err != nil {
		return domain.ProviderJob{}, fmt.Errorf("op=provider.create: %w", err)
	}
	c.setHeaders(httpReq)

	resp, err := c.submitHC.Do(httpReq)
	if err != nil {
		observability.ProviderRequestsTotal.WithLabelValues("create", "error").Inc()
		if isTimeout(err) {
			return domain.ProviderJob{}, fmt.Errorf("op=provider.create: %w", domain.ErrUpstreamTimeout)
		}
		return domain.ProviderJob{}, fmt.Errorf("op=provider.create: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	observability.ProviderRequestDuration.WithLabelValues("create").Observe(time.Since(start).Seconds())

	if err := c.checkStatus(resp, "create"); err != nil {
		return domain.ProviderJob{}, err
	}

	var env jobEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return domain.ProviderJob{}, fmt.Errorf("op=provider.create: decode: %w", err)
	}
	if env.ID == "" {
		return domain.ProviderJob{}, fmt.Errorf("op=provider.create: empty job id in response")
	}
	observability.ProviderRequestsTotal.WithLabelValues("create", "ok").Inc()
	span.SetAttributes(attribute.String("provider.job_id", env.ID))
	return domain.ProviderJob{ProviderJobID: env.ID, Status: mapStatus(env.Status)}, nil
}

// CheckJobStatus reads one job's state and normalizes it.
func (c *Client) CheckJobStatus(ctx context.Context, providerJobID string) (domain.ProviderJobStatus, error) {
	tracer := otel.Tracer("provider.real")
	ctx, span := tracer.Start(ctx, "provider.CheckJobStatus")
	defer span.End()
	start := time.Now()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/videos/"+providerJobID, nil)
	if err != nil {
		return domain.ProviderJobStatus{}, fmt.Errorf("op=provider.check: %w", err)
	}
	c.setHeaders(httpReq)

	resp, err := c.readHC.Do(httpReq)
	if err != nil {
		observability.ProviderRequestsTotal.WithLabelValues("check", "error").Inc()
		if isTimeout(err) {
			return domain.ProviderJobStatus{}, fmt.Errorf("op=provider.check: %w", domain.ErrUpstreamTimeout)
		}
		return domain.ProviderJobStatus{}, fmt.Errorf("op=provider.check: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	observability.ProviderRequestDuration.WithLabelValues("check").Observe(time.Since(start).Seconds())

	if err := c.checkStatus(resp, "check"); err != nil {
		return domain.ProviderJobStatus{}, err
	}

	var env jobEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return domain.ProviderJobStatus{}, fmt.Errorf("op=provider.check: decode: %w", err)
	}
	observability.ProviderRequestsTotal.WithLabelValues("check", "ok").Inc()
	return domain.ProviderJobStatus{
		Status:       mapStatus(env.Status),
		VideoURL:     env.VideoURL,
		ThumbnailURL: env.ThumbnailURL,
		CreditsUsed:  env.CreditsUsed,
		ErrorMessage: env.Error,
		Progress:     env.Progress,
	}, nil
}

// ListAvatars returns the avatar catalog. Idempotent, so retried with
// exponential backoff on transient failures.
func (c *Client) ListAvatars(ctx context.Context) ([]domain.Avatar, error) {
	var out struct {
		Avatars []domain.Avatar `json:"avatars"`
	}
	if err := c.getJSON(ctx, "/v1/avatars", "avatars", &out); err != nil {
		return nil, err
	}
	return out.Avatars, nil
}

type voiceEntry struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Gender     string `json:"gender"`
	PreviewURL string `json:"preview_url"`
	Accents    []struct {
		ID         string `json:"id"`
		Name       string `json:"name"`
		PreviewURL string `json:"preview_url"`
	} `json:"accents"`
}

// ListVoices flattens each (voice, accent) pair into one item. The accent
// id becomes the item id because render requests address accents directly.
func (c *Client) ListVoices(ctx context.Context) ([]domain.Voice, error) {
	var out struct {
		Voices []voiceEntry `json:"voices"`
	}
	if err := c.getJSON(ctx, "/v1/voices", "voices", &out); err != nil {
		return nil, err
	}
	var voices []domain.Voice
	for _, v := range out.Voices {
		if len(v.Accents) == 0 {
			voices = append(voices, domain.Voice{ID: v.ID, Name: v.Name, Gender: v.Gender, PreviewURL: v.PreviewURL})
			continue
		}
		for _, a := range v.Accents {
			preview := a.PreviewURL
			if preview == "" {
				preview = v.PreviewURL
			}
			voices = append(voices, domain.Voice{
				ID:         a.ID,
				Name:       v.Name,
				Gender:     v.Gender,
				AccentName: a.Name,
				PreviewURL: preview,
			})
		}
	}
	return voices, nil
}

// GetCreditBalance reads the account's remaining credits.
func (c *Client) GetCreditBalance(ctx context.Context) (domain.CreditBalance, error) {
	var out domain.CreditBalance
	if err := c.getJSON(ctx, "/v1/credits", "credits", &out); err != nil {
		return domain.CreditBalance{}, err
	}
	return out, nil
}

// getJSON performs a retried catalog GET. Only idempotent reads go through
// here; job creation must never be retried at this layer.
func (c *Client) getJSON(ctx context.Context, path, op string, v any) error {
	tracer := otel.Tracer("provider.real")
	ctx, span := tracer.Start(ctx, "provider."+op)
	defer span.End()

	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = 500 * time.Millisecond
	expo.MaxInterval = 5 * time.Second
	expo.MaxElapsedTime = 20 * time.Second

	operation := func() error {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		c.setHeaders(httpReq)
		resp, err := c.readHC.Do(httpReq)
		if err != nil {
			if isTimeout(err) {
				return domain.ErrUpstreamTimeout
			}
			return err
		}
		defer func() { _ = resp.Body.Close() }()
		if err := c.checkStatus(resp, op); err != nil {
			// 4xx other than 429 will not heal on retry.
			if !errors.Is(err, domain.ErrUpstreamRateLimit) && resp.StatusCode < 500 {
				return backoff.Permanent(err)
			}
			return err
		}
		if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
			return backoff.Permanent(fmt.Errorf("decode: %w", err))
		}
		return nil
	}

	if err := backoff.Retry(operation, backoff.WithContext(expo, ctx)); err != nil {
		observability.ProviderRequestsTotal.WithLabelValues(op, "error").Inc()
		return fmt.Errorf("op=provider.%s: %w", op, err)
	}
	observability.ProviderRequestsTotal.WithLabelValues(op, "ok").Inc()
	return nil
}

// checkStatus maps non-2xx responses to domain errors. The response body is
// consumed on error.
func (c *Client) checkStatus(resp *http.Response, op string) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
	if resp.StatusCode == http.StatusTooManyRequests {
		observability.ProviderRequestsTotal.WithLabelValues(op, "rate_limited").Inc()
		return fmt.Errorf("op=provider.%s: %w", op, domain.ErrUpstreamRateLimit)
	}
	var apiErr apiError
	msg := strings.TrimSpace(string(snippet))
	if err := json.Unmarshal(snippet, &apiErr); err == nil && apiErr.text() != "" {
		msg = apiErr.text()
	}
	slog.Warn("provider request failed",
		slog.String("op", op),
		slog.Int("status", resp.StatusCode),
		slog.String("message", msg))
	observability.ProviderRequestsTotal.WithLabelValues(op, "error").Inc()
	return fmt.Errorf("op=provider.%s: status %d: %s", op, resp.StatusCode, msg)
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Api-Id", c.apiID)
	req.Header.Set("X-Api-Key", c.apiKey)
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne interface{ Timeout() bool }
	return errors.As(err, &ne) && ne.Timeout()
}
