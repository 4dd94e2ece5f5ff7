package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/fairyhunter13/ai-video-generator/internal/adapter/observability"
	"github.com/fairyhunter13/ai-video-generator/internal/domain"
)

// PollReport is the diagnostic returned by one poll run.
type PollReport struct {
	Polled    int    `json:"polled"`
	Completed int    `json:"completed"`
	Failed    int    `json:"failed"`
	Slots     int    `json:"slots"`
	Reason    string `json:"reason,omitempty"`
}

// PollWorker advances in-flight jobs by reading provider status.
type PollWorker struct {
	Jobs      domain.JobRepository
	Slots     domain.RateLimitStore
	Provider  domain.VideoProvider
	Events    domain.EventPublisher
	APIName   string
	BatchSize int
}

// RunOnce performs one poll batch. Active jobs come back oldest-updated
// first, and every successful check patches the row (stamping updated_at),
// so a backlog larger than the batch still gets every job visited in
// bounded time.
//
// Transport errors (timeout, 5xx, upstream rate limit) skip the job
// without touching the row: the slot is spent but the job keeps its place
// near the front of the next batch.
func (w *PollWorker) RunOnce(ctx context.Context) (PollReport, error) {
	tracer := otel.Tracer("worker.poll")
	ctx, span := tracer.Start(ctx, "poll.RunOnce")
	defer span.End()

	candidates, err := w.Jobs.SelectActive(ctx, w.BatchSize)
	if err != nil {
		return PollReport{}, fmt.Errorf("op=poll.run: %w", err)
	}
	if len(candidates) == 0 {
		observability.WorkerRunsTotal.WithLabelValues(PollCaller, ReasonNoActiveJobs).Inc()
		return PollReport{Reason: ReasonNoActiveJobs}, nil
	}

	granted, err := w.Slots.AcquireSlots(ctx, w.APIName, PollCaller, len(candidates))
	if err != nil {
		return PollReport{}, fmt.Errorf("op=poll.run: %w", err)
	}
	span.SetAttributes(attribute.Int("poll.candidates", len(candidates)), attribute.Int("poll.granted", granted))
	if granted == 0 {
		observability.RateLimitExhaustedTotal.WithLabelValues(PollCaller).Inc()
		observability.WorkerRunsTotal.WithLabelValues(PollCaller, ReasonRateLimited).Inc()
		return PollReport{Reason: ReasonRateLimited}, nil
	}
	observability.RateLimitSlotsGranted.WithLabelValues(PollCaller).Add(float64(granted))

	report := PollReport{Slots: granted}
	for _, job := range candidates[:granted] {
		if job.ProviderJobID == "" {
			// In-flight without a provider id should not exist; skip rather
			// than burn the run.
			slog.Error("active job missing provider id", slog.String("job_id", job.ID))
			continue
		}

		st, err := w.Provider.CheckJobStatus(ctx, job.ProviderJobID)
		if err != nil {
			slog.Warn("status check failed, will retry next tick",
				slog.String("job_id", job.ID),
				slog.String("provider_job_id", job.ProviderJobID),
				slog.Any("error", err))
			continue
		}
		report.Polled++

		patch := domain.JobUpdate{Status: &st.Status}
		if st.VideoURL != "" {
			patch.VideoURL = &st.VideoURL
		}
		if st.ThumbnailURL != "" {
			patch.ThumbnailURL = &st.ThumbnailURL
		}
		if st.CreditsUsed != nil {
			patch.CreditsUsed = st.CreditsUsed
		}
		if st.Status == domain.JobFailed {
			msg := st.ErrorMessage
			if msg == "" {
				msg = "provider reported failure"
			}
			patch.ErrorMessage = &msg
		}

		if uerr := w.Jobs.Update(ctx, job.ID, patch); uerr != nil {
			return report, fmt.Errorf("op=poll.run: %w", uerr)
		}

		switch st.Status {
		case domain.JobCompleted:
			slog.Info("job completed",
				slog.String("job_id", job.ID),
				slog.String("video_url", st.VideoURL))
			observability.JobsCompletedTotal.Inc()
			report.Completed++
		case domain.JobFailed:
			slog.Warn("job failed upstream",
				slog.String("job_id", job.ID),
				slog.String("error_message", st.ErrorMessage))
			observability.JobsFailedTotal.Inc()
			report.Failed++
		}
		if st.Status != job.Status {
			w.publish(ctx, job, st.Status)
		}
	}

	observability.WorkerRunsTotal.WithLabelValues(PollCaller, reasonOK).Inc()
	return report, nil
}

func (w *PollWorker) publish(ctx context.Context, job domain.Job, to domain.JobStatus) {
	if w.Events == nil {
		return
	}
	ev := domain.JobEvent{JobID: job.ID, UserID: job.UserID, From: job.Status, To: to, At: time.Now().UTC()}
	if err := w.Events.PublishJobEvent(ctx, ev); err != nil {
		slog.Warn("job event publish failed", slog.String("job_id", job.ID), slog.Any("error", err))
	}
}
