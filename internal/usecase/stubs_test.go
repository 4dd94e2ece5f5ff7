package usecase_test

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/fairyhunter13/ai-video-generator/internal/domain"
)

type stubJobRepo struct {
	created []domain.Job
	byID    map[string]domain.Job
	listed  []domain.Job
	err     error
	idSeq   int
}

func (r *stubJobRepo) Create(_ context.Context, j domain.Job) (string, error) {
	if r.err != nil {
		return "", r.err
	}
	r.idSeq++
	j.ID = fmt.Sprintf("job-%d", r.idSeq)
	r.created = append(r.created, j)
	return j.ID, nil
}

func (r *stubJobRepo) Get(_ context.Context, id string) (domain.Job, error) {
	if r.err != nil {
		return domain.Job{}, r.err
	}
	j, ok := r.byID[id]
	if !ok {
		return domain.Job{}, domain.ErrNotFound
	}
	return j, nil
}

func (r *stubJobRepo) ListByUser(_ context.Context, _ string, _ int) ([]domain.Job, error) {
	return r.listed, r.err
}

func (r *stubJobRepo) SelectPending(_ context.Context, _ int) ([]domain.Job, error) { return nil, nil }
func (r *stubJobRepo) SelectActive(_ context.Context, _ int) ([]domain.Job, error)  { return nil, nil }
func (r *stubJobRepo) Update(_ context.Context, _ string, _ domain.JobUpdate) error { return nil }

type stubPublisher struct {
	events []domain.JobEvent
	err    error
}

func (p *stubPublisher) PublishJobEvent(_ context.Context, ev domain.JobEvent) error {
	p.events = append(p.events, ev)
	return p.err
}

type stubProvider struct {
	avatars  []domain.Avatar
	voices   []domain.Voice
	balance  domain.CreditBalance
	err      error
	avCalls  int
	voCalls  int
	balCalls int
}

func (p *stubProvider) CreateJob(_ context.Context, _ domain.VideoRequest) (domain.ProviderJob, error) {
	return domain.ProviderJob{}, fmt.Errorf("unexpected provider call")
}

func (p *stubProvider) CheckJobStatus(_ context.Context, _ string) (domain.ProviderJobStatus, error) {
	return domain.ProviderJobStatus{}, fmt.Errorf("unexpected provider call")
}

func (p *stubProvider) ListAvatars(_ context.Context) ([]domain.Avatar, error) {
	p.avCalls++
	return p.avatars, p.err
}

func (p *stubProvider) ListVoices(_ context.Context) ([]domain.Voice, error) {
	p.voCalls++
	return p.voices, p.err
}

func (p *stubProvider) GetCreditBalance(_ context.Context) (domain.CreditBalance, error) {
	p.balCalls++
	return p.balance, p.err
}

type memCache struct {
	data   map[string][]byte
	getErr error
	setErr error
}

func newMemCache() *memCache { return &memCache{data: map[string][]byte{}} }

func (c *memCache) Get(_ context.Context, key string, v any) (bool, error) {
	if c.getErr != nil {
		return false, c.getErr
	}
	raw, ok := c.data[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, v)
}

func (c *memCache) Set(_ context.Context, key string, v any, _ time.Duration) error {
	if c.setErr != nil {
		return c.setErr
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.data[key] = raw
	return nil
}

type stubAssets struct {
	keys []string
	data [][]byte
	err  error
}

func (a *stubAssets) Put(_ context.Context, key string, data []byte, _ string) (string, error) {
	if a.err != nil {
		return "", a.err
	}
	a.keys = append(a.keys, key)
	a.data = append(a.data, data)
	return "http://localhost:8080/files/" + key, nil
}
