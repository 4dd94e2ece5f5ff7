package worker_test

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/fairyhunter13/ai-video-generator/internal/domain"
)

// memJobs is an in-memory JobRepository faithful to the store semantics
// the workers rely on: selection ordering, terminal immutability, and
// updated_at stamping.
type memJobs struct {
	jobs      map[string]*domain.Job
	selectErr error
	updateErr error
	clock     time.Time
}

func newMemJobs(jobs ...domain.Job) *memJobs {
	m := &memJobs{jobs: map[string]*domain.Job{}, clock: time.Now().UTC()}
	for i := range jobs {
		j := jobs[i]
		m.jobs[j.ID] = &j
	}
	return m
}

func (m *memJobs) tick() time.Time {
	m.clock = m.clock.Add(time.Second)
	return m.clock
}

func (m *memJobs) Create(_ context.Context, j domain.Job) (string, error) {
	m.jobs[j.ID] = &j
	return j.ID, nil
}

func (m *memJobs) Get(_ context.Context, id string) (domain.Job, error) {
	j, ok := m.jobs[id]
	if !ok {
		return domain.Job{}, domain.ErrNotFound
	}
	return *j, nil
}

func (m *memJobs) ListByUser(_ context.Context, _ string, _ int) ([]domain.Job, error) {
	return nil, nil
}

func (m *memJobs) SelectPending(_ context.Context, limit int) ([]domain.Job, error) {
	if m.selectErr != nil {
		return nil, m.selectErr
	}
	var out []domain.Job
	for _, j := range m.jobs {
		if j.Status == domain.JobPending || j.Status == domain.JobCreated {
			out = append(out, *j)
		}
	}
	sort.Slice(out, func(i, k int) bool { return out[i].CreatedAt.Before(out[k].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memJobs) SelectActive(_ context.Context, limit int) ([]domain.Job, error) {
	if m.selectErr != nil {
		return nil, m.selectErr
	}
	var out []domain.Job
	for _, j := range m.jobs {
		if j.Status.InFlight() {
			out = append(out, *j)
		}
	}
	sort.Slice(out, func(i, k int) bool { return out[i].UpdatedAt.Before(out[k].UpdatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memJobs) Update(_ context.Context, id string, patch domain.JobUpdate) error {
	if m.updateErr != nil {
		return m.updateErr
	}
	j, ok := m.jobs[id]
	if !ok || j.Status.Terminal() {
		return domain.ErrConflict
	}
	now := m.tick()
	j.UpdatedAt = now
	if patch.Status != nil {
		j.Status = *patch.Status
		if *patch.Status == domain.JobCompleted {
			j.CompletedAt = &now
		}
	}
	if patch.ProviderJobID != nil {
		j.ProviderJobID = *patch.ProviderJobID
	}
	if patch.VideoURL != nil {
		j.VideoURL = *patch.VideoURL
	}
	if patch.ThumbnailURL != nil {
		j.ThumbnailURL = *patch.ThumbnailURL
	}
	if patch.CreditsUsed != nil {
		j.CreditsUsed = *patch.CreditsUsed
	}
	if patch.ErrorMessage != nil {
		j.ErrorMessage = *patch.ErrorMessage
	}
	return nil
}

// memSlots is a windowless rate-limit stub: a fixed remaining budget
// drained per call.
type memSlots struct {
	remaining int
	err       error
	requests  []int
}

func (s *memSlots) AcquireSlots(_ context.Context, _, _ string, requested int) (int, error) {
	if s.err != nil {
		return 0, s.err
	}
	s.requests = append(s.requests, requested)
	granted := requested
	if granted > s.remaining {
		granted = s.remaining
	}
	s.remaining -= granted
	return granted, nil
}

// scriptedProvider returns canned answers per job id.
type scriptedProvider struct {
	createResults map[string]createResult // keyed by avatar id for determinism
	createDefault createResult
	checkResults  map[string]checkResult // keyed by provider job id
	createCalls   int
	checkCalls    []string
	seq           int
}

type createResult struct {
	job domain.ProviderJob
	err error
}

type checkResult struct {
	status domain.ProviderJobStatus
	err    error
}

func (p *scriptedProvider) CreateJob(_ context.Context, req domain.VideoRequest) (domain.ProviderJob, error) {
	p.createCalls++
	if r, ok := p.createResults[req.AvatarID]; ok {
		return r.job, r.err
	}
	if p.createDefault.err != nil || p.createDefault.job.ProviderJobID != "" {
		return p.createDefault.job, p.createDefault.err
	}
	p.seq++
	return domain.ProviderJob{ProviderJobID: fmt.Sprintf("p%d", p.seq), Status: domain.JobQueued}, nil
}

func (p *scriptedProvider) CheckJobStatus(_ context.Context, providerJobID string) (domain.ProviderJobStatus, error) {
	p.checkCalls = append(p.checkCalls, providerJobID)
	if r, ok := p.checkResults[providerJobID]; ok {
		return r.status, r.err
	}
	return domain.ProviderJobStatus{Status: domain.JobRendering}, nil
}

func (p *scriptedProvider) ListAvatars(_ context.Context) ([]domain.Avatar, error) { return nil, nil }
func (p *scriptedProvider) ListVoices(_ context.Context) ([]domain.Voice, error)   { return nil, nil }
func (p *scriptedProvider) GetCreditBalance(_ context.Context) (domain.CreditBalance, error) {
	return domain.CreditBalance{}, nil
}

type capturePublisher struct{ events []domain.JobEvent }

func (c *capturePublisher) PublishJobEvent(_ context.Context, ev domain.JobEvent) error {
	c.events = append(c.events, ev)
	return nil
}
