package worker_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/ai-video-generator/internal/domain"
	"github.com/fairyhunter13/ai-video-generator/internal/worker"
)

func activeJob(id, providerID string, status domain.JobStatus, age time.Duration) domain.Job {
	at := time.Now().UTC().Add(-age)
	return domain.Job{
		ID:            id,
		UserID:        "u1",
		ProviderJobID: providerID,
		Status:        status,
		CreatedAt:     at.Add(-time.Minute),
		UpdatedAt:     at,
	}
}

func newPollWorker(jobs *memJobs, slots *memSlots, prov *scriptedProvider) *worker.PollWorker {
	return &worker.PollWorker{
		Jobs:      jobs,
		Slots:     slots,
		Provider:  prov,
		Events:    &capturePublisher{},
		APIName:   "provider",
		BatchSize: 10,
	}
}

func TestPoll_CompletesJob(t *testing.T) {
	t.Parallel()
	credits := 5
	jobs := newMemJobs(activeJob("j1", "p1", domain.JobRendering, time.Minute))
	prov := &scriptedProvider{checkResults: map[string]checkResult{
		"p1": {status: domain.ProviderJobStatus{
			Status:       domain.JobCompleted,
			VideoURL:     "https://v/1.mp4",
			ThumbnailURL: "https://v/1.jpg",
			CreditsUsed:  &credits,
		}},
	}}
	w := newPollWorker(jobs, &memSlots{remaining: 10}, prov)

	report, err := w.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Polled)
	assert.Equal(t, 1, report.Completed)

	j, _ := jobs.Get(context.Background(), "j1")
	assert.Equal(t, domain.JobCompleted, j.Status)
	assert.Equal(t, "https://v/1.mp4", j.VideoURL)
	assert.Equal(t, 5, j.CreditsUsed)
	require.NotNil(t, j.CompletedAt)
}

func TestPoll_NoActiveJobs(t *testing.T) {
	t.Parallel()
	slots := &memSlots{remaining: 10}
	w := newPollWorker(newMemJobs(), slots, &scriptedProvider{})

	report, err := w.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, worker.ReasonNoActiveJobs, report.Reason)
	assert.Empty(t, slots.requests)
}

func TestPoll_RateLimited(t *testing.T) {
	t.Parallel()
	jobs := newMemJobs(activeJob("j1", "p1", domain.JobQueued, time.Minute))
	prov := &scriptedProvider{}
	w := newPollWorker(jobs, &memSlots{remaining: 0}, prov)

	report, err := w.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, worker.ReasonRateLimited, report.Reason)
	assert.Empty(t, prov.checkCalls)
}

func TestPoll_TransientErrorLeavesRowUntouched(t *testing.T) {
	t.Parallel()
	job := activeJob("j1", "p1", domain.JobRendering, time.Minute)
	jobs := newMemJobs(job)
	prov := &scriptedProvider{checkResults: map[string]checkResult{
		"p1": {err: domain.ErrUpstreamTimeout},
	}}
	w := newPollWorker(jobs, &memSlots{remaining: 10}, prov)

	report, err := w.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, report.Polled)

	got, _ := jobs.Get(context.Background(), "j1")
	assert.Equal(t, domain.JobRendering, got.Status)
	assert.Equal(t, job.UpdatedAt, got.UpdatedAt)

	// Next tick the provider recovers and the job completes.
	prov.checkResults["p1"] = checkResult{status: domain.ProviderJobStatus{
		Status:   domain.JobCompleted,
		VideoURL: "https://v/1.mp4",
	}}
	report, err = w.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Completed)
	got, _ = jobs.Get(context.Background(), "j1")
	assert.Equal(t, domain.JobCompleted, got.Status)
}

func TestPoll_FailedGetsDefaultMessage(t *testing.T) {
	t.Parallel()
	jobs := newMemJobs(activeJob("j1", "p1", domain.JobQueued, time.Minute))
	prov := &scriptedProvider{checkResults: map[string]checkResult{
		"p1": {status: domain.ProviderJobStatus{Status: domain.JobFailed}},
	}}
	w := newPollWorker(jobs, &memSlots{remaining: 10}, prov)

	report, err := w.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Failed)

	j, _ := jobs.Get(context.Background(), "j1")
	assert.Equal(t, domain.JobFailed, j.Status)
	assert.NotEmpty(t, j.ErrorMessage)
}

func TestPoll_GrantCapsWork(t *testing.T) {
	t.Parallel()
	jobs := newMemJobs(
		activeJob("j1", "p1", domain.JobRendering, 3*time.Minute),
		activeJob("j2", "p2", domain.JobRendering, 2*time.Minute),
		activeJob("j3", "p3", domain.JobRendering, time.Minute),
	)
	prov := &scriptedProvider{}
	w := newPollWorker(jobs, &memSlots{remaining: 2}, prov)

	_, err := w.RunOnce(context.Background())
	require.NoError(t, err)
	// Oldest-updated first, capped at the grant.
	assert.Equal(t, []string{"p1", "p2"}, prov.checkCalls)
}

func TestPoll_FairnessUnderBacklog(t *testing.T) {
	t.Parallel()
	// 30 active jobs, batch 10, budget 10 per run: after 3 runs every job
	// has been checked at least once because successful checks stamp
	// updated_at and push the job to the back of the queue.
	var seed []domain.Job
	for i := 0; i < 30; i++ {
		seed = append(seed, activeJob(
			fmt.Sprintf("j%02d", i),
			fmt.Sprintf("p%02d", i),
			domain.JobRendering,
			time.Duration(30-i)*time.Minute,
		))
	}
	jobs := newMemJobs(seed...)
	prov := &scriptedProvider{}
	w := newPollWorker(jobs, &memSlots{remaining: 30}, prov)

	for run := 0; run < 3; run++ {
		_, err := w.RunOnce(context.Background())
		require.NoError(t, err)
	}

	seen := map[string]bool{}
	for _, id := range prov.checkCalls {
		seen[id] = true
	}
	assert.Len(t, seen, 30)
}

func TestPoll_SkipsActiveRowWithoutProviderID(t *testing.T) {
	t.Parallel()
	broken := activeJob("j1", "", domain.JobSubmitted, time.Minute)
	jobs := newMemJobs(broken, activeJob("j2", "p2", domain.JobRendering, time.Second))
	prov := &scriptedProvider{}
	w := newPollWorker(jobs, &memSlots{remaining: 10}, prov)

	report, err := w.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Polled)
	assert.Equal(t, []string{"p2"}, prov.checkCalls)
}

func TestPoll_StoreErrorAborts(t *testing.T) {
	t.Parallel()
	jobs := newMemJobs(activeJob("j1", "p1", domain.JobRendering, time.Minute))
	jobs.updateErr = assert.AnError
	prov := &scriptedProvider{checkResults: map[string]checkResult{
		"p1": {status: domain.ProviderJobStatus{Status: domain.JobCompleted, VideoURL: "https://v/1.mp4"}},
	}}
	w := newPollWorker(jobs, &memSlots{remaining: 10}, prov)

	_, err := w.RunOnce(context.Background())
	require.Error(t, err)
}

func TestPoll_PublishesOnlyTransitions(t *testing.T) {
	t.Parallel()
	jobs := newMemJobs(
		activeJob("j1", "p1", domain.JobRendering, 2*time.Minute),
		activeJob("j2", "p2", domain.JobRendering, time.Minute),
	)
	prov := &scriptedProvider{checkResults: map[string]checkResult{
		"p1": {status: domain.ProviderJobStatus{Status: domain.JobRendering}},
		"p2": {status: domain.ProviderJobStatus{Status: domain.JobCompleted, VideoURL: "https://v/2.mp4"}},
	}}
	pub := &capturePublisher{}
	w := newPollWorker(jobs, &memSlots{remaining: 10}, prov)
	w.Events = pub

	_, err := w.RunOnce(context.Background())
	require.NoError(t, err)
	require.Len(t, pub.events, 1)
	assert.Equal(t, "j2", pub.events[0].JobID)
	assert.Equal(t, domain.JobCompleted, pub.events[0].To)
}
