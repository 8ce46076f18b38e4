package repository

import (
	"context"
	"fmt"

	"github.com/rpattn/batchctl/internal/db"
	"github.com/rpattn/batchctl/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const stagingColumns = `id, transaction_number, product_code, quantity, unit_price,
	 sale_date, processed_flag, error_flag, error_message, created_at`

type stagingRepository struct {
	conn *db.Connection
}

// NewStagingRepository wires a staging record repository. It holds the full
// connection rather than a bare executor because ApplyPartition owns a
// transaction boundary.
func NewStagingRepository(conn *db.Connection) StagingRepository {
	return &stagingRepository{conn: conn}
}

func (r *stagingRepository) InsertBatch(ctx context.Context, records []domain.StagingRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	inserted := 0
	err := r.conn.WithTx(ctx, func(tx pgx.Tx) error {
		for _, record := range records {
			_, execErr := tx.Exec(
				ctx,
				`INSERT INTO staging_records (transaction_number, product_code, quantity, unit_price, sale_date)
				 VALUES ($1, $2, $3, $4, $5)`,
				record.TransactionNumber,
				record.ProductCode,
				record.Quantity,
				record.UnitPrice,
				record.SaleDate,
			)
			if execErr != nil {
				return fmt.Errorf("failed to stage record: %w", execErr)
			}
			inserted++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return inserted, nil
}

func (r *stagingRepository) ListUnprocessed(ctx context.Context) ([]domain.StagingRecord, error) {
	return r.list(ctx, `SELECT `+stagingColumns+`
		 FROM staging_records
		 WHERE processed_flag = FALSE
		 ORDER BY id`)
}

func (r *stagingRepository) ListLoadable(ctx context.Context) ([]domain.StagingRecord, error) {
	return r.list(ctx, `SELECT `+stagingColumns+`
		 FROM staging_records
		 WHERE processed_flag = TRUE AND error_flag = FALSE
		 ORDER BY id`)
}

func (r *stagingRepository) list(ctx context.Context, query string) ([]domain.StagingRecord, error) {
	rows, err := r.conn.Pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list staging records: %w", err)
	}
	defer rows.Close()

	records := []domain.StagingRecord{}
	for rows.Next() {
		record, scanErr := scanStagingRecord(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("failed to scan staging record: %w", scanErr)
		}
		records = append(records, record)
	}
	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, fmt.Errorf("failed to iterate staging records: %w", rowsErr)
	}
	return records, nil
}

// ApplyPartition commits the two validation side effects as one unit: error
// flag writes plus quarantine inserts for every rejection, processed flag
// writes for every accepted record. A fault anywhere rolls the whole pass
// back, leaving every flag at its pre-pass value.
func (r *stagingRepository) ApplyPartition(ctx context.Context, outcome PartitionOutcome) error {
	err := r.conn.WithSerializableTx(ctx, func(tx pgx.Tx) error {
		for _, rejection := range outcome.Rejections {
			tag, execErr := tx.Exec(
				ctx,
				`UPDATE staging_records
				 SET error_flag = TRUE, error_message = $2
				 WHERE id = $1 AND processed_flag = FALSE`,
				rejection.Record.ID,
				rejection.Message,
			)
			if execErr != nil {
				return fmt.Errorf("failed to flag record %d: %w", rejection.Record.ID, execErr)
			}
			if tag.RowsAffected() != 1 {
				return fmt.Errorf("record %d changed since snapshot", rejection.Record.ID)
			}

			entry := domain.NewQuarantineEntry(rejection.Record, rejection.Message)
			if insErr := insertQuarantineEntry(ctx, tx, entry); insErr != nil {
				return insErr
			}
		}

		if len(outcome.ProcessedIDs) > 0 {
			tag, execErr := tx.Exec(
				ctx,
				`UPDATE staging_records
				 SET processed_flag = TRUE
				 WHERE id = ANY($1) AND processed_flag = FALSE AND error_flag = FALSE`,
				outcome.ProcessedIDs,
			)
			if execErr != nil {
				return fmt.Errorf("failed to mark records processed: %w", execErr)
			}
			if tag.RowsAffected() != int64(len(outcome.ProcessedIDs)) {
				return fmt.Errorf("expected %d records to process, matched %d", len(outcome.ProcessedIDs), tag.RowsAffected())
			}
		}

		return nil
	})
	if err != nil {
		return domain.NewTransactionError("staging partition", err)
	}
	return nil
}

// insertQuarantineEntry appends an entry unless the record already holds an
// unresolved one, which keeps a validation pass idempotent per record.
func insertQuarantineEntry(ctx context.Context, exec db.DBTX, entry domain.QuarantineEntry) error {
	_, err := exec.Exec(
		ctx,
		`INSERT INTO quarantine_entries (id, staging_id, transaction_number, error_message, resolution_status)
		 SELECT $1, $2, $3, $4, $5
		 WHERE NOT EXISTS (
		     SELECT 1 FROM quarantine_entries
		     WHERE staging_id = $2 AND resolution_status = $6
		 )`,
		entry.ID,
		entry.StagingID,
		entry.TransactionNumber,
		entry.ErrorMessage,
		domain.ResolutionStatusUnresolved,
		domain.ResolutionStatusUnresolved,
	)
	if err != nil {
		return fmt.Errorf("failed to quarantine record %d: %w", entry.StagingID, err)
	}
	return nil
}

func scanStagingRecord(row pgx.Row) (domain.StagingRecord, error) {
	var (
		record    domain.StagingRecord
		unitPrice pgtype.Numeric
		saleDate  pgtype.Timestamptz
	)
	if err := row.Scan(
		&record.ID,
		&record.TransactionNumber,
		&record.ProductCode,
		&record.Quantity,
		&unitPrice,
		&saleDate,
		&record.ProcessedFlag,
		&record.ErrorFlag,
		&record.ErrorMessage,
		&record.CreatedAt,
	); err != nil {
		return domain.StagingRecord{}, err
	}
	if unitPrice.Valid {
		value, err := unitPrice.Float64Value()
		if err != nil {
			return domain.StagingRecord{}, fmt.Errorf("failed to decode unit price: %w", err)
		}
		record.UnitPrice = value.Float64
	}
	if saleDate.Valid {
		value := saleDate.Time
		record.SaleDate = &value
	}
	return record, nil
}
