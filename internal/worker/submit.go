// Package worker implements the two batch workers that move jobs through
// the pipeline: submit (pending -> provider) and poll (in-flight ->
// terminal). Both are single-shot: one RunOnce per cron tick or scheduler
// interval, gated by the shared rate-limit budget.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/fairyhunter13/ai-video-generator/internal/adapter/observability"
	"github.com/fairyhunter13/ai-video-generator/internal/domain"
)

// Callers used against the rate-limit store. Each worker has its own
// budget row so a poll surge can never starve submissions.
const (
	SubmitCaller = "submit-worker"
	PollCaller   = "poll-worker"
)

// Exit reasons reported when a run did no provider work.
const (
	ReasonNoPendingJobs = "no_pending_jobs"
	ReasonNoActiveJobs  = "no_active_jobs"
	ReasonRateLimited   = "rate_limited"
	reasonOK            = "ok"
)

// SubmitReport is the diagnostic returned by one submit run.
type SubmitReport struct {
	Submitted int    `json:"submitted"`
	Failed    int    `json:"failed"`
	Slots     int    `json:"slots"`
	Reason    string `json:"reason,omitempty"`
}

// SubmitWorker dispatches pending jobs to the provider.
type SubmitWorker struct {
	Jobs      domain.JobRepository
	Slots     domain.RateLimitStore
	Provider  domain.VideoProvider
	Events    domain.EventPublisher
	APIName   string
	BatchSize int
}

// RunOnce performs one submit batch: select pending, acquire exactly as
// many slots as there are candidates, and create provider jobs for the
// granted prefix. Never exceeds the granted slot count.
//
// Error disposition per job:
//   - upstream rate limit: stop the batch, jobs stay pending for the next
//     tick (the budget said yes but the provider said no; pushing on would
//     burn the rest of the batch too)
//   - any other provider error, including timeouts: mark the job failed
//     with the provider message. A timed-out create may still have built a
//     provider job we will never learn the id of; retrying would
//     double-create, so the row is closed out instead.
//   - store error: abort the whole run, the next tick retries.
func (w *SubmitWorker) RunOnce(ctx context.Context) (SubmitReport, error) {
	tracer := otel.Tracer("worker.submit")
	ctx, span := tracer.Start(ctx, "submit.RunOnce")
	defer span.End()

	candidates, err := w.Jobs.SelectPending(ctx, w.BatchSize)
	if err != nil {
		return SubmitReport{}, fmt.Errorf("op=submit.run: %w", err)
	}
	if len(candidates) == 0 {
		observability.WorkerRunsTotal.WithLabelValues(SubmitCaller, ReasonNoPendingJobs).Inc()
		return SubmitReport{Reason: ReasonNoPendingJobs}, nil
	}

	granted, err := w.Slots.AcquireSlots(ctx, w.APIName, SubmitCaller, len(candidates))
	if err != nil {
		return SubmitReport{}, fmt.Errorf("op=submit.run: %w", err)
	}
	span.SetAttributes(attribute.Int("submit.candidates", len(candidates)), attribute.Int("submit.granted", granted))
	if granted == 0 {
		observability.RateLimitExhaustedTotal.WithLabelValues(SubmitCaller).Inc()
		observability.WorkerRunsTotal.WithLabelValues(SubmitCaller, ReasonRateLimited).Inc()
		return SubmitReport{Reason: ReasonRateLimited}, nil
	}
	observability.RateLimitSlotsGranted.WithLabelValues(SubmitCaller).Add(float64(granted))

	report := SubmitReport{Slots: granted}
	for _, job := range candidates[:granted] {
		created, err := w.Provider.CreateJob(ctx, job.Request)
		if err != nil {
			if errors.Is(err, domain.ErrUpstreamRateLimit) {
				slog.Warn("provider rate limited, stopping submit batch", slog.String("job_id", job.ID))
				break
			}
			msg := err.Error()
			failed := domain.JobFailed
			if uerr := w.Jobs.Update(ctx, job.ID, domain.JobUpdate{Status: &failed, ErrorMessage: &msg}); uerr != nil {
				return report, fmt.Errorf("op=submit.run: %w", uerr)
			}
			slog.Error("job submission failed", slog.String("job_id", job.ID), slog.Any("error", err))
			observability.JobsFailedTotal.Inc()
			report.Failed++
			w.publish(ctx, job, domain.JobFailed)
			continue
		}

		status := created.Status
		if uerr := w.Jobs.Update(ctx, job.ID, domain.JobUpdate{Status: &status, ProviderJobID: &created.ProviderJobID}); uerr != nil {
			return report, fmt.Errorf("op=submit.run: %w", uerr)
		}
		slog.Info("job submitted",
			slog.String("job_id", job.ID),
			slog.String("provider_job_id", created.ProviderJobID),
			slog.String("status", string(status)))
		observability.JobsSubmittedTotal.Inc()
		report.Submitted++
		w.publish(ctx, job, status)
	}

	observability.WorkerRunsTotal.WithLabelValues(SubmitCaller, reasonOK).Inc()
	return report, nil
}

func (w *SubmitWorker) publish(ctx context.Context, job domain.Job, to domain.JobStatus) {
	if w.Events == nil {
		return
	}
	ev := domain.JobEvent{JobID: job.ID, UserID: job.UserID, From: job.Status, To: to, At: time.Now().UTC()}
	if err := w.Events.PublishJobEvent(ctx, ev); err != nil {
		slog.Warn("job event publish failed", slog.String("job_id", job.ID), slog.Any("error", err))
	}
}
