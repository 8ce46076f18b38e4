package staging

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rpattn/batchctl/internal/domain"
	"github.com/rpattn/batchctl/internal/repository"

	"github.com/xuri/excelize/v2"
)

var (
	// ErrUnsupportedFormat is returned when an uploaded file is not supported.
	ErrUnsupportedFormat = errors.New("unsupported file format")

	byteOrderMark = []byte{0xEF, 0xBB, 0xBF}

	timeLayouts = []string{
		time.RFC3339,
		"2006-01-02",
		"2006-01-02 15:04:05",
		"2006/01/02",
		"01/02/2006",
	}
)

// Loader stages extraction output (csv or xlsx) as staging records. Rows are
// staged even when individual fields fail to coerce; separating valid from
// invalid data is the validator's job, not intake's.
type Loader struct {
	staging repository.StagingRepository
	logs    repository.RunLogRepository
}

// NewLoader creates a batch intake loader.
func NewLoader(staging repository.StagingRepository, logs repository.RunLogRepository) *Loader {
	return &Loader{staging: staging, logs: logs}
}

// IntakeRequest describes one staged batch upload.
type IntakeRequest struct {
	PackageName string
	FileName    string
	Data        io.Reader
}

// IntakeSummary reports intake level metrics.
type IntakeSummary struct {
	TotalRows     int `json:"totalRows"`
	RowsStaged    int `json:"rowsStaged"`
	MalformedRows int `json:"malformedRows"`
}

// Load parses the uploaded file and stages every data row with both flags
// false. Unknown columns are skipped; fields that cannot be coerced keep
// their zero value and count the row as malformed, leaving rejection to the
// validation rules.
func (l *Loader) Load(ctx context.Context, req IntakeRequest) (IntakeSummary, error) {
	summary := IntakeSummary{}
	start := time.Now()

	if strings.TrimSpace(req.PackageName) == "" {
		return summary, errors.New("package name is required")
	}
	if req.Data == nil {
		return summary, errors.New("data reader is required")
	}

	payload, err := io.ReadAll(req.Data)
	if err != nil {
		return summary, fmt.Errorf("failed to read upload: %w", err)
	}
	if len(payload) == 0 {
		return summary, errors.New("file is empty")
	}

	rows, err := parseRows(req.FileName, payload)
	if err != nil {
		return summary, err
	}
	if len(rows) == 0 {
		return summary, errors.New("no rows found in file")
	}

	headers := sanitizeHeaders(rows[0])
	records := make([]domain.StagingRecord, 0, len(rows)-1)
	for _, row := range rows[1:] {
		if rowEmpty(row) {
			continue
		}
		record, malformed := buildRecord(headers, row)
		if malformed {
			summary.MalformedRows++
		}
		records = append(records, record)
	}
	summary.TotalRows = len(records)

	staged, err := l.staging.InsertBatch(ctx, records)
	if err != nil {
		l.logStep(ctx, req.PackageName, start, domain.StepStatusFailed, 0, err.Error())
		return summary, err
	}
	summary.RowsStaged = staged

	l.logStep(ctx, req.PackageName, start, domain.StepStatusSuccess, staged, "")
	return summary, nil
}

func parseRows(fileName string, payload []byte) ([][]string, error) {
	ext := strings.ToLower(filepath.Ext(fileName))
	switch ext {
	case ".csv":
		return parseCSV(payload)
	case ".xlsx":
		return parseExcel(payload)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, ext)
	}
}

func parseCSV(payload []byte) ([][]string, error) {
	reader := bufio.NewReader(bytes.NewReader(payload))
	if prefix, err := reader.Peek(len(byteOrderMark)); err == nil && bytes.Equal(prefix, byteOrderMark) {
		_, _ = reader.Discard(len(byteOrderMark))
	}

	csvReader := csv.NewReader(reader)
	csvReader.TrimLeadingSpace = true
	csvReader.FieldsPerRecord = -1

	records, err := csvReader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read csv: %w", err)
	}
	return records, nil
}

func parseExcel(payload []byte) ([][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to open xlsx: %w", err)
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.New("excel file has no sheets")
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read rows from xlsx: %w", err)
	}
	return rows, nil
}

func sanitizeHeaders(raw []string) []string {
	headers := make([]string, len(raw))
	for idx, value := range raw {
		name := strings.ToLower(strings.TrimSpace(value))
		name = strings.ReplaceAll(name, " ", "_")
		name = strings.ReplaceAll(name, ".", "_")
		name = strings.ReplaceAll(name, "-", "_")
		headers[idx] = strings.Trim(name, "_")
	}
	return headers
}

func buildRecord(headers []string, row []string) (domain.StagingRecord, bool) {
	var record domain.StagingRecord
	malformed := false

	for idx, header := range headers {
		if idx >= len(row) {
			continue
		}
		raw := strings.TrimSpace(row[idx])
		if raw == "" {
			continue
		}

		switch header {
		case "transaction_number":
			value := raw
			record.TransactionNumber = &value
		case "product_code":
			value := raw
			record.ProductCode = &value
		case "quantity":
			quantity, err := strconv.Atoi(raw)
			if err != nil {
				malformed = true
				continue
			}
			record.Quantity = quantity
		case "unit_price":
			price, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				malformed = true
				continue
			}
			record.UnitPrice = price
		case "sale_date":
			ts, err := parseTimestamp(raw)
			if err != nil {
				malformed = true
				continue
			}
			record.SaleDate = &ts
		}
	}

	return record, malformed
}

func rowEmpty(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

func parseTimestamp(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	for _, layout := range timeLayouts {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp format")
}

func (l *Loader) logStep(ctx context.Context, packageName string, start time.Time, status domain.StepStatus, staged int, errorMessage string) {
	if l.logs == nil {
		return
	}
	end := time.Now()
	entry := domain.LogEntry{
		PackageName:      packageName,
		StepName:         domain.StepIntake,
		StartTime:        start,
		EndTime:          &end,
		Status:           status,
		RecordsProcessed: staged,
	}
	if errorMessage != "" {
		entry.ErrorMessage = &errorMessage
	}
	if _, err := l.logs.Append(ctx, entry); err != nil {
		log.Printf("[INTAKE] failed to append run log entry for %s: %v", packageName, err)
	}
}
