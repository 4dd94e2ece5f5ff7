package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

// RateLimitRepo implements the shared windowed slot budget on top of a
// rate_limits row per (api, caller).
//
// AcquireSlots is the only synchronization point between the submit and
// poll workers: the grant executes as one transaction holding a row-level
// exclusive lock, so two concurrent callers can never both read calls_made
// before either writes. A read-then-write outside a lock would silently
// overrun the provider quota.
type RateLimitRepo struct{ Pool PgxPool }

// NewRateLimitRepo constructs a RateLimitRepo with the given pool.
func NewRateLimitRepo(p PgxPool) *RateLimitRepo { return &RateLimitRepo{Pool: p} }

// AcquireSlots grants up to requested slots from the (api, caller) window.
// A missing budget row grants zero. When the window has elapsed it is
// reset before granting.
func (r *RateLimitRepo) AcquireSlots(ctx context.Context, api, caller string, requested int) (int, error) {
	tracer := otel.Tracer("repo.ratelimit")
	ctx, span := tracer.Start(ctx, "ratelimit.AcquireSlots")
	defer span.End()
	span.SetAttributes(
		attribute.String("ratelimit.api", api),
		attribute.String("ratelimit.caller", caller),
		attribute.Int("ratelimit.requested", requested),
	)

	if requested <= 0 {
		return 0, nil
	}

	tx, err := r.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return 0, fmt.Errorf("op=ratelimit.acquire: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var windowStart time.Time
	var callsMade, maxCalls, windowSecs int
	row := tx.QueryRow(ctx, `SELECT window_start, calls_made, max_calls, window_secs FROM rate_limits WHERE api=$1 AND caller=$2 FOR UPDATE`, api, caller)
	if err := row.Scan(&windowStart, &callsMade, &maxCalls, &windowSecs); err != nil {
		if err == pgx.ErrNoRows {
			// Unseeded budget: nothing to grant, not an error.
			return 0, nil
		}
		return 0, fmt.Errorf("op=ratelimit.acquire: %w", err)
	}

	now := time.Now().UTC()
	granted := 0
	if now.Sub(windowStart) > time.Duration(windowSecs)*time.Second {
		granted = min(requested, maxCalls)
		if _, err := tx.Exec(ctx, `UPDATE rate_limits SET window_start=$3, calls_made=$4 WHERE api=$1 AND caller=$2`, api, caller, now, granted); err != nil {
			return 0, fmt.Errorf("op=ratelimit.acquire: %w", err)
		}
	} else {
		remaining := maxCalls - callsMade
		if remaining < 0 {
			remaining = 0
		}
		granted = min(requested, remaining)
		if granted > 0 {
			if _, err := tx.Exec(ctx, `UPDATE rate_limits SET calls_made=calls_made+$3 WHERE api=$1 AND caller=$2`, api, caller, granted); err != nil {
				return 0, fmt.Errorf("op=ratelimit.acquire: %w", err)
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("op=ratelimit.acquire: %w", err)
	}
	span.SetAttributes(attribute.Int("ratelimit.granted", granted))
	return granted, nil
}

// Seed upserts a budget row, preserving any in-progress window state so a
// restart never refunds already-consumed slots.
func (r *RateLimitRepo) Seed(ctx context.Context, api, caller string, maxCalls, windowSecs int) error {
	tracer := otel.Tracer("repo.ratelimit")
	ctx, span := tracer.Start(ctx, "ratelimit.Seed")
	defer span.End()
	q := `INSERT INTO rate_limits (api, caller, window_start, calls_made, max_calls, window_secs)
	      VALUES ($1, $2, $3, 0, $4, $5)
	      ON CONFLICT (api, caller) DO UPDATE SET max_calls = EXCLUDED.max_calls, window_secs = EXCLUDED.window_secs`
	if _, err := r.Pool.Exec(ctx, q, api, caller, time.Now().UTC(), maxCalls, windowSecs); err != nil {
		return fmt.Errorf("op=ratelimit.seed: %w", err)
	}
	return nil
}
