package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"

	"github.com/fairyhunter13/ai-video-generator/internal/domain"
)

// JobRepo persists and loads video jobs from PostgreSQL using a minimal pgx pool.
type JobRepo struct{ Pool PgxPool }

// NewJobRepo constructs a JobRepo with the given pool.
func NewJobRepo(p PgxPool) *JobRepo { return &JobRepo{Pool: p} }

const jobColumns = `id, user_id, COALESCE(provider_job_id,''), status, request, COALESCE(video_url,''), COALESCE(thumbnail_url,''), COALESCE(credits_used,0), COALESCE(error_message,''), created_at, updated_at, completed_at`

func scanJob(row pgx.Row) (domain.Job, error) {
	var j domain.Job
	var reqRaw []byte
	if err := row.Scan(&j.ID, &j.UserID, &j.ProviderJobID, &j.Status, &reqRaw, &j.VideoURL, &j.ThumbnailURL, &j.CreditsUsed, &j.ErrorMessage, &j.CreatedAt, &j.UpdatedAt, &j.CompletedAt); err != nil {
		return domain.Job{}, err
	}
	if len(reqRaw) > 0 {
		if err := json.Unmarshal(reqRaw, &j.Request); err != nil {
			return domain.Job{}, fmt.Errorf("request decode: %w", err)
		}
	}
	return j, nil
}

// Create inserts a new pending job and returns its id.
func (r *JobRepo) Create(ctx context.Context, j domain.Job) (string, error) {
	tracer := otel.Tracer("repo.jobs")
	ctx, span := tracer.Start(ctx, "jobs.Create")
	defer span.End()
	id := j.ID
	if id == "" {
		id = uuid.New().String()
	}
	reqRaw, err := json.Marshal(j.Request)
	if err != nil {
		return "", fmt.Errorf("op=job.create: %w", err)
	}
	now := time.Now().UTC()
	q := `INSERT INTO jobs (id, user_id, provider_job_id, status, request, error_message, created_at, updated_at) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`
	_, err = r.Pool.Exec(ctx, q, id, j.UserID, j.ProviderJobID, j.Status, reqRaw, j.ErrorMessage, now, now)
	if err != nil {
		return "", fmt.Errorf("op=job.create: %w", err)
	}
	return id, nil
}

// Get loads a job by id.
func (r *JobRepo) Get(ctx context.Context, id string) (domain.Job, error) {
	tracer := otel.Tracer("repo.jobs")
	ctx, span := tracer.Start(ctx, "jobs.Get")
	defer span.End()
	q := `SELECT ` + jobColumns + ` FROM jobs WHERE id=$1`
	j, err := scanJob(r.Pool.QueryRow(ctx, q, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.Job{}, fmt.Errorf("op=job.get: %w", domain.ErrNotFound)
		}
		return domain.Job{}, fmt.Errorf("op=job.get: %w", err)
	}
	return j, nil
}

// ListByUser returns the user's jobs, newest first.
func (r *JobRepo) ListByUser(ctx context.Context, userID string, limit int) ([]domain.Job, error) {
	tracer := otel.Tracer("repo.jobs")
	ctx, span := tracer.Start(ctx, "jobs.ListByUser")
	defer span.End()
	if limit <= 0 {
		limit = 50
	}
	q := `SELECT ` + jobColumns + ` FROM jobs WHERE user_id=$1 ORDER BY created_at DESC LIMIT $2`
	rows, err := r.Pool.Query(ctx, q, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("op=job.list_by_user: %w", err)
	}
	defer rows.Close()
	return collectJobs(rows, "op=job.list_by_user")
}

// SelectPending returns up to limit jobs awaiting submission, oldest first.
// Legacy rows may carry the status "created"; both are picked up here so
// old rows are not stranded.
func (r *JobRepo) SelectPending(ctx context.Context, limit int) ([]domain.Job, error) {
	tracer := otel.Tracer("repo.jobs")
	ctx, span := tracer.Start(ctx, "jobs.SelectPending")
	defer span.End()
	q := `SELECT ` + jobColumns + ` FROM jobs WHERE status IN ('pending','created') ORDER BY created_at ASC LIMIT $1`
	rows, err := r.Pool.Query(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("op=job.select_pending: %w", err)
	}
	defer rows.Close()
	return collectJobs(rows, "op=job.select_pending")
}

// SelectActive returns up to limit in-flight jobs ordered by updated_at
// ascending, so the least-recently-checked job always gets the next turn.
func (r *JobRepo) SelectActive(ctx context.Context, limit int) ([]domain.Job, error) {
	tracer := otel.Tracer("repo.jobs")
	ctx, span := tracer.Start(ctx, "jobs.SelectActive")
	defer span.End()
	q := `SELECT ` + jobColumns + ` FROM jobs WHERE status IN ('submitted','queued','rendering') ORDER BY updated_at ASC LIMIT $1`
	rows, err := r.Pool.Query(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("op=job.select_active: %w", err)
	}
	defer rows.Close()
	return collectJobs(rows, "op=job.select_active")
}

// Update applies a partial patch. It stamps updated_at, stamps completed_at
// when the patch transitions the job to completed, and refuses to modify
// terminal rows (returns ErrConflict).
func (r *JobRepo) Update(ctx context.Context, id string, patch domain.JobUpdate) error {
	tracer := otel.Tracer("repo.jobs")
	ctx, span := tracer.Start(ctx, "jobs.Update")
	defer span.End()

	now := time.Now().UTC()
	set := []string{"updated_at=$2"}
	args := []any{id, now}
	add := func(col string, v any) {
		args = append(args, v)
		set = append(set, fmt.Sprintf("%s=$%d", col, len(args)))
	}
	if patch.Status != nil {
		add("status", *patch.Status)
		if *patch.Status == domain.JobCompleted {
			add("completed_at", now)
		}
	}
	if patch.ProviderJobID != nil {
		add("provider_job_id", *patch.ProviderJobID)
	}
	if patch.VideoURL != nil {
		add("video_url", *patch.VideoURL)
	}
	if patch.ThumbnailURL != nil {
		add("thumbnail_url", *patch.ThumbnailURL)
	}
	if patch.CreditsUsed != nil {
		add("credits_used", *patch.CreditsUsed)
	}
	if patch.ErrorMessage != nil {
		add("error_message", *patch.ErrorMessage)
	}

	q := `UPDATE jobs SET ` + strings.Join(set, ", ") + ` WHERE id=$1 AND status NOT IN ('completed','failed')`
	tag, err := r.Pool.Exec(ctx, q, args...)
	if err != nil {
		return fmt.Errorf("op=job.update: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Either the row does not exist or it is already terminal.
		return fmt.Errorf("op=job.update: %w", domain.ErrConflict)
	}
	return nil
}

func collectJobs(rows pgx.Rows, op string) ([]domain.Job, error) {
	var out []domain.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		out = append(out, j)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return out, nil
}
