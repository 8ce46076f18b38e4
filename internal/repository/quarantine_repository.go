package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rpattn/batchctl/internal/db"
	"github.com/rpattn/batchctl/internal/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const quarantineColumns = `id, staging_id, transaction_number, error_message,
	 resolution_status, resolved_by, resolved_date, created_at`

type quarantineRepository struct {
	db db.DBTX
}

// NewQuarantineRepository wires a quarantine store backed by pgx.
func NewQuarantineRepository(exec db.DBTX) QuarantineRepository {
	return &quarantineRepository{db: exec}
}

func (r *quarantineRepository) GetByID(ctx context.Context, id uuid.UUID) (domain.QuarantineEntry, error) {
	row := r.db.QueryRow(
		ctx,
		`SELECT `+quarantineColumns+` FROM quarantine_entries WHERE id = $1`,
		id,
	)
	entry, err := scanQuarantineEntry(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.QuarantineEntry{}, domain.ErrEntryNotFound
		}
		return domain.QuarantineEntry{}, fmt.Errorf("failed to get quarantine entry: %w", err)
	}
	return entry, nil
}

func (r *quarantineRepository) List(ctx context.Context, status *domain.ResolutionStatus, limit int, offset int) ([]domain.QuarantineEntry, error) {
	if limit <= 0 {
		limit = 200
	}
	if offset < 0 {
		offset = 0
	}

	query := `SELECT ` + quarantineColumns + ` FROM quarantine_entries`
	args := []any{}
	if status != nil {
		query += ` WHERE resolution_status = $1`
		args = append(args, *status)
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list quarantine entries: %w", err)
	}
	defer rows.Close()

	entries := []domain.QuarantineEntry{}
	for rows.Next() {
		entry, scanErr := scanQuarantineEntry(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("failed to scan quarantine entry: %w", scanErr)
		}
		entries = append(entries, entry)
	}
	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, fmt.Errorf("failed to iterate quarantine entries: %w", rowsErr)
	}
	return entries, nil
}

// Resolve guards the transition with the current status so a repeated
// resolution attempt surfaces as a conflict instead of silently restamping.
func (r *quarantineRepository) Resolve(ctx context.Context, id uuid.UUID, resolvedBy string) (domain.QuarantineEntry, error) {
	row := r.db.QueryRow(
		ctx,
		`UPDATE quarantine_entries
		 SET resolution_status = $2, resolved_by = $3, resolved_date = $4
		 WHERE id = $1 AND resolution_status = $5
		 RETURNING `+quarantineColumns,
		id,
		domain.ResolutionStatusResolved,
		resolvedBy,
		time.Now(),
		domain.ResolutionStatusUnresolved,
	)
	entry, err := scanQuarantineEntry(row)
	if err == nil {
		return entry, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return domain.QuarantineEntry{}, fmt.Errorf("failed to resolve quarantine entry: %w", err)
	}

	// Nothing matched: distinguish an unknown id from a repeated resolution.
	existing, getErr := r.GetByID(ctx, id)
	if getErr != nil {
		return domain.QuarantineEntry{}, getErr
	}
	if existing.ResolutionStatus == domain.ResolutionStatusResolved {
		return domain.QuarantineEntry{}, domain.ErrResolutionConflict
	}
	return domain.QuarantineEntry{}, fmt.Errorf("failed to resolve quarantine entry %s", id)
}

func scanQuarantineEntry(row pgx.Row) (domain.QuarantineEntry, error) {
	var (
		entry        domain.QuarantineEntry
		resolvedDate pgtype.Timestamptz
	)
	if err := row.Scan(
		&entry.ID,
		&entry.StagingID,
		&entry.TransactionNumber,
		&entry.ErrorMessage,
		&entry.ResolutionStatus,
		&entry.ResolvedBy,
		&resolvedDate,
		&entry.CreatedAt,
	); err != nil {
		return domain.QuarantineEntry{}, err
	}
	if resolvedDate.Valid {
		value := resolvedDate.Time
		entry.ResolvedDate = &value
	}
	return entry, nil
}
