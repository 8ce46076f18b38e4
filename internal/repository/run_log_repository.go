package repository

import (
	"context"
	"fmt"

	"github.com/rpattn/batchctl/internal/db"
	"github.com/rpattn/batchctl/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const runLogColumns = `id, package_name, step_name, start_time, end_time,
	 status, records_processed, error_message`

type runLogRepository struct {
	db db.DBTX
}

// NewRunLogRepository wires the append-only run history backed by pgx.
func NewRunLogRepository(exec db.DBTX) RunLogRepository {
	return &runLogRepository{db: exec}
}

func (r *runLogRepository) Append(ctx context.Context, entry domain.LogEntry) (domain.LogEntry, error) {
	row := r.db.QueryRow(
		ctx,
		`INSERT INTO run_log (package_name, step_name, start_time, end_time, status, records_processed, error_message)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING `+runLogColumns,
		entry.PackageName,
		entry.StepName,
		entry.StartTime,
		entry.EndTime,
		entry.Status,
		entry.RecordsProcessed,
		entry.ErrorMessage,
	)
	appended, err := scanLogEntry(row)
	if err != nil {
		return domain.LogEntry{}, fmt.Errorf("failed to append run log entry: %w", err)
	}
	return appended, nil
}

func (r *runLogRepository) List(ctx context.Context, filter domain.LogFilter) ([]domain.LogEntry, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 200
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := `SELECT ` + runLogColumns + ` FROM run_log WHERE package_name = $1`
	args := []any{filter.PackageName}
	if filter.From != nil {
		args = append(args, *filter.From)
		query += fmt.Sprintf(` AND start_time >= $%d`, len(args))
	}
	if filter.To != nil {
		args = append(args, *filter.To)
		query += fmt.Sprintf(` AND start_time <= $%d`, len(args))
	}
	args = append(args, limit, offset)
	query += fmt.Sprintf(` ORDER BY start_time DESC, id DESC LIMIT $%d OFFSET $%d`, len(args)-1, len(args))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list run log entries: %w", err)
	}
	defer rows.Close()

	entries := []domain.LogEntry{}
	for rows.Next() {
		entry, scanErr := scanLogEntry(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("failed to scan run log entry: %w", scanErr)
		}
		entries = append(entries, entry)
	}
	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, fmt.Errorf("failed to iterate run log entries: %w", rowsErr)
	}
	return entries, nil
}

func scanLogEntry(row pgx.Row) (domain.LogEntry, error) {
	var (
		entry   domain.LogEntry
		endTime pgtype.Timestamptz
	)
	if err := row.Scan(
		&entry.ID,
		&entry.PackageName,
		&entry.StepName,
		&entry.StartTime,
		&endTime,
		&entry.Status,
		&entry.RecordsProcessed,
		&entry.ErrorMessage,
	); err != nil {
		return domain.LogEntry{}, err
	}
	if endTime.Valid {
		value := endTime.Time
		entry.EndTime = &value
	}
	return entry, nil
}
