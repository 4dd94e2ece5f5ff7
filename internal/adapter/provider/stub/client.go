// Package stub provides a deterministic in-process video provider for
// development and tests. Jobs advance one phase per status check:
// queued -> rendering -> completed.
package stub

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/fairyhunter13/ai-video-generator/internal/domain"
)

// Client implements domain.VideoProvider without network access.
type Client struct {
	mu    sync.Mutex
	jobs  map[string]int // checks observed so far
	seq   int
	Fail  bool // when set, CreateJob returns a fatal error
	Creds float64
}

// New constructs a stub provider with a default credit balance.
func New() *Client {
	return &Client{jobs: map[string]int{}, Creds: 100}
}

// CreateJob registers a fake provider job in the queued state.
func (c *Client) CreateJob(_ context.Context, _ domain.VideoRequest) (domain.ProviderJob, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Fail {
		return domain.ProviderJob{}, fmt.Errorf("op=provider.create: stub configured to fail")
	}
	c.seq++
	id := fmt.Sprintf("stub-%d-%s", c.seq, uuid.New().String()[:8])
	c.jobs[id] = 0
	return domain.ProviderJob{ProviderJobID: id, Status: domain.JobQueued}, nil
}

// CheckJobStatus advances the fake job one phase per call.
func (c *Client) CheckJobStatus(_ context.Context, providerJobID string) (domain.ProviderJobStatus, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	checks, ok := c.jobs[providerJobID]
	if !ok {
		return domain.ProviderJobStatus{}, fmt.Errorf("op=provider.check: %w", domain.ErrNotFound)
	}
	c.jobs[providerJobID] = checks + 1
	switch checks {
	case 0:
		return domain.ProviderJobStatus{Status: domain.JobRendering}, nil
	default:
		credits := 5
		return domain.ProviderJobStatus{
			Status:       domain.JobCompleted,
			VideoURL:     "https://stub.local/videos/" + providerJobID + ".mp4",
			ThumbnailURL: "https://stub.local/thumbs/" + providerJobID + ".jpg",
			CreditsUsed:  &credits,
		}, nil
	}
}

// ListAvatars returns a small fixed catalog.
func (c *Client) ListAvatars(_ context.Context) ([]domain.Avatar, error) {
	return []domain.Avatar{
		{ID: "avatar_default", Name: "Default Presenter", Gender: "female"},
		{ID: "avatar_alt", Name: "Alternate Presenter", Gender: "male"},
	}, nil
}

// ListVoices returns a small fixed catalog, already flattened per accent.
func (c *Client) ListVoices(_ context.Context) ([]domain.Voice, error) {
	return []domain.Voice{
		{ID: "voice_default", Name: "Narrator", Gender: "female", AccentName: "US"},
		{ID: "voice_default_uk", Name: "Narrator", Gender: "female", AccentName: "UK"},
	}, nil
}

// GetCreditBalance returns the configured balance.
func (c *Client) GetCreditBalance(_ context.Context) (domain.CreditBalance, error) {
	return domain.CreditBalance{Credits: c.Creds}, nil
}
