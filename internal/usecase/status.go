package usecase

import (
	"context"
	"fmt"

	"github.com/fairyhunter13/ai-video-generator/internal/domain"
)

// StatusService serves job reads straight from the store. Client polling
// never reaches the provider; the poll worker is the only status fetcher.
type StatusService struct {
	Jobs domain.JobRepository
}

// NewStatusService constructs a StatusService with the given repo.
func NewStatusService(jobs domain.JobRepository) StatusService { return StatusService{Jobs: jobs} }

// Get returns one job by id.
func (s StatusService) Get(ctx context.Context, jobID string) (domain.Job, error) {
	if jobID == "" {
		return domain.Job{}, fmt.Errorf("%w: missing job id", domain.ErrInvalidArgument)
	}
	return s.Jobs.Get(ctx, jobID)
}

// List returns the user's jobs, newest first.
func (s StatusService) List(ctx context.Context, userID string, limit int) ([]domain.Job, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: missing user id", domain.ErrInvalidArgument)
	}
	return s.Jobs.ListByUser(ctx, userID, limit)
}
