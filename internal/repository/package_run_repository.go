package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rpattn/batchctl/internal/db"
	"github.com/rpattn/batchctl/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const packageRunColumns = `package_name, status, last_run_date, last_success_date,
	 records_extracted, records_loaded, records_rejected, created_at, updated_at`

type packageRunRepository struct {
	db db.DBTX
}

// NewPackageRunRepository wires a run-control repository backed by pgx.
func NewPackageRunRepository(exec db.DBTX) PackageRunRepository {
	return &packageRunRepository{db: exec}
}

func (r *packageRunRepository) Provision(ctx context.Context, name string) (domain.PackageRun, error) {
	row := r.db.QueryRow(
		ctx,
		`INSERT INTO package_runs (package_name)
		 VALUES ($1)
		 ON CONFLICT (package_name) DO UPDATE SET package_name = EXCLUDED.package_name
		 RETURNING `+packageRunColumns,
		name,
	)
	run, err := scanPackageRun(row)
	if err != nil {
		return domain.PackageRun{}, fmt.Errorf("failed to provision package run: %w", err)
	}
	return run, nil
}

func (r *packageRunRepository) Get(ctx context.Context, name string) (domain.PackageRun, error) {
	row := r.db.QueryRow(
		ctx,
		`SELECT `+packageRunColumns+` FROM package_runs WHERE package_name = $1`,
		name,
	)
	run, err := scanPackageRun(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.PackageRun{}, domain.ErrPackageNotFound
		}
		return domain.PackageRun{}, fmt.Errorf("failed to get package run: %w", err)
	}
	return run, nil
}

func (r *packageRunRepository) List(ctx context.Context) ([]domain.PackageRun, error) {
	rows, err := r.db.Query(
		ctx,
		`SELECT `+packageRunColumns+` FROM package_runs ORDER BY package_name`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list package runs: %w", err)
	}
	defer rows.Close()

	runs := []domain.PackageRun{}
	for rows.Next() {
		run, scanErr := scanPackageRun(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("failed to scan package run: %w", scanErr)
		}
		runs = append(runs, run)
	}
	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, fmt.Errorf("failed to iterate package runs: %w", rowsErr)
	}
	return runs, nil
}

// AcquireRun relies on a single guarded UPDATE for the compare-and-set: two
// concurrent callers for the same name serialize on the row lock and exactly
// one observes a non-RUNNING status.
func (r *packageRunRepository) AcquireRun(ctx context.Context, name string, startedAt time.Time) (domain.PackageRun, error) {
	row := r.db.QueryRow(
		ctx,
		`UPDATE package_runs
		 SET status = $2,
		     last_run_date = $3,
		     records_extracted = 0,
		     records_loaded = 0,
		     records_rejected = 0,
		     updated_at = $3
		 WHERE package_name = $1 AND status <> $2
		 RETURNING `+packageRunColumns,
		name,
		domain.RunStatusRunning,
		startedAt,
	)
	run, err := scanPackageRun(row)
	if err == nil {
		return run, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return domain.PackageRun{}, fmt.Errorf("failed to acquire run: %w", err)
	}

	// The guarded update matched nothing: either the package is missing or
	// another run holds it.
	if _, getErr := r.Get(ctx, name); getErr != nil {
		return domain.PackageRun{}, getErr
	}
	return domain.PackageRun{}, domain.ErrAlreadyRunning
}

func (r *packageRunRepository) FinishRun(ctx context.Context, name string, status domain.RunStatus, counts domain.RunCounts, endedAt time.Time) (domain.PackageRun, error) {
	row := r.db.QueryRow(
		ctx,
		`UPDATE package_runs
		 SET status = $2,
		     records_extracted = $3,
		     records_loaded = $4,
		     records_rejected = $5,
		     last_success_date = CASE WHEN $2 = 'SUCCESS' THEN $6 ELSE last_success_date END,
		     updated_at = $6
		 WHERE package_name = $1
		 RETURNING `+packageRunColumns,
		name,
		status,
		counts.Extracted,
		counts.Loaded,
		counts.Rejected,
		endedAt,
	)
	run, err := scanPackageRun(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.PackageRun{}, domain.ErrPackageNotFound
		}
		return domain.PackageRun{}, fmt.Errorf("failed to finish run: %w", err)
	}
	return run, nil
}

func scanPackageRun(row pgx.Row) (domain.PackageRun, error) {
	var (
		run         domain.PackageRun
		lastRun     pgtype.Timestamptz
		lastSuccess pgtype.Timestamptz
	)
	if err := row.Scan(
		&run.PackageName,
		&run.Status,
		&lastRun,
		&lastSuccess,
		&run.RecordsExtracted,
		&run.RecordsLoaded,
		&run.RecordsRejected,
		&run.CreatedAt,
		&run.UpdatedAt,
	); err != nil {
		return domain.PackageRun{}, err
	}
	if lastRun.Valid {
		value := lastRun.Time
		run.LastRunDate = &value
	}
	if lastSuccess.Valid {
		value := lastSuccess.Time
		run.LastSuccessDate = &value
	}
	return run, nil
}
