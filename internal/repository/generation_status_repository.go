package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/tutor-center-api/internal/models"
)

// GenerationStatusRepository persists the per-period generation ledger.
type GenerationStatusRepository struct {
	db *sqlx.DB
}

// NewGenerationStatusRepository constructs the repository.
func NewGenerationStatusRepository(db *sqlx.DB) *GenerationStatusRepository {
	return &GenerationStatusRepository{db: db}
}

// Find returns the ledger row for a period, or sql.ErrNoRows when absent.
func (r *GenerationStatusRepository) Find(ctx context.Context, month, year int) (*models.GenerationStatus, error) {
	const query = `SELECT year, month, generated_at, generated_by, count, is_complete, in_progress, run_token
        FROM generation_status WHERE year = $1 AND month = $2`
	var status models.GenerationStatus
	if err := r.db.GetContext(ctx, &status, query, year, month); err != nil {
		return nil, err
	}
	return &status, nil
}

// Claim atomically marks a period as in progress for the given run token.
// The upsert only transitions rows that are not complete and not held by a
// live run; a stale claim (older than the lease) may be taken over, and
// force additionally reopens a completed period. Returns false when the
// period is complete or another run holds it.
func (r *GenerationStatusRepository) Claim(ctx context.Context, month, year int, token, actor string, lease time.Duration, force bool) (bool, error) {
	const query = `INSERT INTO generation_status (year, month, generated_at, generated_by, count, is_complete, in_progress, run_token)
        VALUES ($1, $2, $3, $4, 0, FALSE, TRUE, $5)
        ON CONFLICT (year, month) DO UPDATE
        SET generated_at = EXCLUDED.generated_at,
            generated_by = EXCLUDED.generated_by,
            is_complete = FALSE,
            in_progress = TRUE,
            run_token = EXCLUDED.run_token
        WHERE (generation_status.is_complete = FALSE OR $7 = TRUE)
          AND (generation_status.in_progress = FALSE OR generation_status.generated_at < $6)
        RETURNING run_token`
	now := time.Now().UTC()
	var claimed string
	err := r.db.GetContext(ctx, &claimed, query, year, month, now, actor, token, now.Add(-lease), force)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("claim generation period %d-%02d: %w", year, month, err)
	}
	return claimed == token, nil
}

// Complete finalizes the ledger row for a successful run. The update is
// guarded by the run token so a superseded run cannot overwrite a newer one.
func (r *GenerationStatusRepository) Complete(ctx context.Context, month, year int, token string, count int) error {
	const query = `UPDATE generation_status
        SET is_complete = TRUE, in_progress = FALSE, count = $4, generated_at = $5
        WHERE year = $1 AND month = $2 AND run_token = $3`
	res, err := r.db.ExecContext(ctx, query, year, month, token, count, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("complete generation period %d-%02d: %w", year, month, err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return fmt.Errorf("complete generation period %d-%02d: claim lost", year, month)
	}
	return nil
}

// MarkFailed releases the claim leaving is_complete=false so the recovery
// scanner can pick the period up later.
func (r *GenerationStatusRepository) MarkFailed(ctx context.Context, month, year int, token string) error {
	const query = `UPDATE generation_status
        SET is_complete = FALSE, in_progress = FALSE
        WHERE year = $1 AND month = $2 AND run_token = $3`
	if _, err := r.db.ExecContext(ctx, query, year, month, token); err != nil {
		return fmt.Errorf("mark generation period %d-%02d failed: %w", year, month, err)
	}
	return nil
}

// ListPeriods returns ledger rows for the requested periods. Absent periods
// simply produce no row.
func (r *GenerationStatusRepository) ListPeriods(ctx context.Context, periods []models.BillingPeriod) ([]models.GenerationStatus, error) {
	if len(periods) == 0 {
		return nil, nil
	}
	tuples := make([]string, len(periods))
	args := make([]interface{}, 0, len(periods)*2)
	for i, p := range periods {
		tuples[i] = fmt.Sprintf("($%d, $%d)", len(args)+1, len(args)+2)
		args = append(args, p.Year, p.Month)
	}
	query := fmt.Sprintf(`SELECT year, month, generated_at, generated_by, count, is_complete, in_progress, run_token
        FROM generation_status WHERE (year, month) IN (%s)`, strings.Join(tuples, ","))
	var statuses []models.GenerationStatus
	if err := r.db.SelectContext(ctx, &statuses, query, args...); err != nil {
		return nil, fmt.Errorf("list generation periods: %w", err)
	}
	return statuses, nil
}
