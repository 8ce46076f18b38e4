package staging

import (
	"bytes"
	"context"
	"errors"
	"log"
	"os"
	"sort"
	"strings"
	"testing"

	"github.com/rpattn/batchctl/internal/domain"
	"github.com/rpattn/batchctl/internal/repository"
)

func strPtr(s string) *string { return &s }

func validRecord(id int64) domain.StagingRecord {
	return domain.StagingRecord{
		ID:                id,
		TransactionNumber: strPtr("TXN-1001"),
		Quantity:          5,
		UnitPrice:         19.99,
	}
}

type stubStagingRepo struct {
	records       map[int64]domain.StagingRecord
	quarantine    []domain.QuarantineEntry
	failPartition bool
	partitions    int
}

func newStubStagingRepo(records ...domain.StagingRecord) *stubStagingRepo {
	repo := &stubStagingRepo{records: map[int64]domain.StagingRecord{}}
	for _, record := range records {
		repo.records[record.ID] = record
	}
	return repo
}

func (s *stubStagingRepo) InsertBatch(_ context.Context, records []domain.StagingRecord) (int, error) {
	next := int64(len(s.records) + 1)
	for _, record := range records {
		record.ID = next
		s.records[next] = record
		next++
	}
	return len(records), nil
}

func (s *stubStagingRepo) ListUnprocessed(context.Context) ([]domain.StagingRecord, error) {
	result := []domain.StagingRecord{}
	for _, record := range s.records {
		if !record.ProcessedFlag {
			result = append(result, record)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (s *stubStagingRepo) ListLoadable(context.Context) ([]domain.StagingRecord, error) {
	result := []domain.StagingRecord{}
	for _, record := range s.records {
		if record.ProcessedFlag && !record.ErrorFlag {
			result = append(result, record)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

// ApplyPartition mirrors the real repository: stage every mutation, then
// commit all of it or none of it.
func (s *stubStagingRepo) ApplyPartition(_ context.Context, outcome repository.PartitionOutcome) error {
	s.partitions++
	if s.failPartition {
		return domain.NewTransactionError("staging partition", errors.New("injected fault"))
	}

	staged := make(map[int64]domain.StagingRecord, len(s.records))
	for id, record := range s.records {
		staged[id] = record
	}
	var quarantined []domain.QuarantineEntry

	for _, rejection := range outcome.Rejections {
		record, ok := staged[rejection.Record.ID]
		if !ok || record.ProcessedFlag {
			return domain.NewTransactionError("staging partition", errors.New("record changed since snapshot"))
		}
		record.ErrorFlag = true
		message := rejection.Message
		record.ErrorMessage = &message
		staged[record.ID] = record

		if !s.hasUnresolved(record.ID) {
			quarantined = append(quarantined, domain.NewQuarantineEntry(record, message))
		}
	}

	for _, id := range outcome.ProcessedIDs {
		record, ok := staged[id]
		if !ok || record.ProcessedFlag || record.ErrorFlag {
			return domain.NewTransactionError("staging partition", errors.New("record changed since snapshot"))
		}
		record.ProcessedFlag = true
		staged[id] = record
	}

	s.records = staged
	s.quarantine = append(s.quarantine, quarantined...)
	return nil
}

func (s *stubStagingRepo) hasUnresolved(stagingID int64) bool {
	for _, entry := range s.quarantine {
		if entry.StagingID == stagingID && entry.ResolutionStatus == domain.ResolutionStatusUnresolved {
			return true
		}
	}
	return false
}

func (s *stubStagingRepo) entriesFor(stagingID int64) []domain.QuarantineEntry {
	var result []domain.QuarantineEntry
	for _, entry := range s.quarantine {
		if entry.StagingID == stagingID {
			result = append(result, entry)
		}
	}
	return result
}

type stubLogRepo struct {
	entries []domain.LogEntry
}

func (s *stubLogRepo) Append(_ context.Context, entry domain.LogEntry) (domain.LogEntry, error) {
	entry.ID = int64(len(s.entries) + 1)
	s.entries = append(s.entries, entry)
	return entry, nil
}

func (s *stubLogRepo) List(context.Context, domain.LogFilter) ([]domain.LogEntry, error) {
	return s.entries, nil
}

func TestValidateAndPartitionSeparatesValidFromInvalid(t *testing.T) {
	invalidQuantity := validRecord(2)
	invalidQuantity.Quantity = 0
	missingTxn := validRecord(3)
	missingTxn.TransactionNumber = nil

	repo := newStubStagingRepo(validRecord(1), invalidQuantity, missingTxn)
	logs := &stubLogRepo{}
	validator := NewValidator(repo, logs)

	summary, err := validator.ValidateAndPartition(context.Background(), "sales_load")
	if err != nil {
		t.Fatalf("validate returned error: %v", err)
	}

	if summary.Processed != 1 || summary.Rejected != 2 {
		t.Fatalf("unexpected summary: %+v", summary)
	}

	valid := repo.records[1]
	if !valid.ProcessedFlag || valid.ErrorFlag {
		t.Fatalf("valid record flags wrong: %+v", valid)
	}
	if entries := repo.entriesFor(1); len(entries) != 0 {
		t.Fatalf("valid record should not be quarantined, got %d entries", len(entries))
	}

	rejected := repo.records[2]
	if rejected.ProcessedFlag || !rejected.ErrorFlag {
		t.Fatalf("rejected record flags wrong: %+v", rejected)
	}
	if rejected.ErrorMessage == nil || *rejected.ErrorMessage != ReasonInvalidQuantity {
		t.Fatalf("expected invalid quantity reason, got %v", rejected.ErrorMessage)
	}
	if entries := repo.entriesFor(2); len(entries) != 1 {
		t.Fatalf("expected one quarantine entry for record 2, got %d", len(entries))
	}

	missing := repo.records[3]
	if missing.ErrorMessage == nil || *missing.ErrorMessage != ReasonMissingTransactionNumber {
		t.Fatalf("expected missing transaction reason, got %v", missing.ErrorMessage)
	}
	if entries := repo.entriesFor(3); len(entries) != 1 {
		t.Fatalf("expected one quarantine entry for record 3, got %d", len(entries))
	}
}

func TestValidateAndPartitionRulePriority(t *testing.T) {
	// All three conditions at once: the missing transaction number wins.
	record := domain.StagingRecord{ID: 1, Quantity: -1, UnitPrice: -1}
	repo := newStubStagingRepo(record)
	validator := NewValidator(repo, &stubLogRepo{})

	if _, err := validator.ValidateAndPartition(context.Background(), "sales_load"); err != nil {
		t.Fatalf("validate returned error: %v", err)
	}

	got := repo.records[1]
	if got.ErrorMessage == nil || *got.ErrorMessage != ReasonMissingTransactionNumber {
		t.Fatalf("expected priority reason %q, got %v", ReasonMissingTransactionNumber, got.ErrorMessage)
	}

	// Quantity beats price when the transaction number is present.
	record = validRecord(1)
	record.Quantity = 0
	record.UnitPrice = -5
	repo = newStubStagingRepo(record)
	validator = NewValidator(repo, &stubLogRepo{})

	if _, err := validator.ValidateAndPartition(context.Background(), "sales_load"); err != nil {
		t.Fatalf("validate returned error: %v", err)
	}
	got = repo.records[1]
	if got.ErrorMessage == nil || *got.ErrorMessage != ReasonInvalidQuantity {
		t.Fatalf("expected priority reason %q, got %v", ReasonInvalidQuantity, got.ErrorMessage)
	}
}

func TestValidateAndPartitionExtraRuleFallsBackToUnknown(t *testing.T) {
	record := validRecord(1)
	repo := newStubStagingRepo(record)
	extra := Rule{Match: func(r domain.StagingRecord) bool { return r.ProductCode == nil }}
	validator := NewValidator(repo, &stubLogRepo{}, extra)

	summary, err := validator.ValidateAndPartition(context.Background(), "sales_load")
	if err != nil {
		t.Fatalf("validate returned error: %v", err)
	}
	if summary.Rejected != 1 {
		t.Fatalf("expected rejection from extra rule, got %+v", summary)
	}
	got := repo.records[1]
	if got.ErrorMessage == nil || *got.ErrorMessage != ReasonUnknown {
		t.Fatalf("expected unknown-error fallback, got %v", got.ErrorMessage)
	}
}

func TestValidateAndPartitionRollbackLeavesFlagsUntouched(t *testing.T) {
	invalid := validRecord(2)
	invalid.UnitPrice = 0

	repo := newStubStagingRepo(validRecord(1), invalid)
	repo.failPartition = true
	logs := &stubLogRepo{}
	validator := NewValidator(repo, logs)

	_, err := validator.ValidateAndPartition(context.Background(), "sales_load")
	if err == nil {
		t.Fatalf("expected partition fault")
	}
	var txErr *domain.TransactionError
	if !errors.As(err, &txErr) {
		t.Fatalf("expected TransactionError, got %T: %v", err, err)
	}

	for id, record := range repo.records {
		if record.ProcessedFlag || record.ErrorFlag || record.ErrorMessage != nil {
			t.Fatalf("record %d mutated despite rollback: %+v", id, record)
		}
	}
	if len(repo.quarantine) != 0 {
		t.Fatalf("quarantine written despite rollback: %d entries", len(repo.quarantine))
	}

	last := logs.entries[len(logs.entries)-1]
	if last.Status != domain.StepStatusFailed || last.StepName != domain.StepValidation {
		t.Fatalf("expected failed validation log entry, got %+v", last)
	}
}

func TestValidateAndPartitionSecondPassIsIdempotent(t *testing.T) {
	invalid := validRecord(1)
	invalid.Quantity = -3

	repo := newStubStagingRepo(invalid)
	validator := NewValidator(repo, &stubLogRepo{})

	for pass := 0; pass < 2; pass++ {
		if _, err := validator.ValidateAndPartition(context.Background(), "sales_load"); err != nil {
			t.Fatalf("pass %d returned error: %v", pass, err)
		}
	}

	if entries := repo.entriesFor(1); len(entries) != 1 {
		t.Fatalf("expected a single quarantine entry across passes, got %d", len(entries))
	}
}

type failingLogRepo struct {
	stubLogRepo
}

func (f *failingLogRepo) Append(context.Context, domain.LogEntry) (domain.LogEntry, error) {
	return domain.LogEntry{}, errors.New("log store offline")
}

func TestValidateAndPartitionReportsLogAppendFailure(t *testing.T) {
	repo := newStubStagingRepo(validRecord(1))
	validator := NewValidator(repo, &failingLogRepo{})

	var buf bytes.Buffer
	log.SetOutput(&buf)
	defer log.SetOutput(os.Stderr)

	summary, err := validator.ValidateAndPartition(context.Background(), "sales_load")
	if err != nil {
		t.Fatalf("a lost step log must not fail the pass: %v", err)
	}
	if summary.Processed != 1 {
		t.Fatalf("partition did not commit: %+v", summary)
	}
	if !strings.Contains(buf.String(), "log store offline") {
		t.Fatalf("append failure not reported in logs: %q", buf.String())
	}
}

func TestValidateAndPartitionEndToEndScenario(t *testing.T) {
	a := validRecord(1)
	b := validRecord(2)
	b.Quantity = 0
	c := validRecord(3)
	c.TransactionNumber = nil

	repo := newStubStagingRepo(a, b, c)
	logs := &stubLogRepo{}
	validator := NewValidator(repo, logs)

	summary, err := validator.ValidateAndPartition(context.Background(), "sales_load")
	if err != nil {
		t.Fatalf("validate returned error: %v", err)
	}
	if summary.Processed != 1 || summary.Rejected != 2 {
		t.Fatalf("expected counts {processed:1, rejected:2}, got %+v", summary)
	}

	gotA := repo.records[1]
	if !gotA.ProcessedFlag || gotA.ErrorFlag || len(repo.entriesFor(1)) != 0 {
		t.Fatalf("record A in wrong state: %+v", gotA)
	}
	gotB := repo.records[2]
	if !gotB.ErrorFlag || *gotB.ErrorMessage != ReasonInvalidQuantity || len(repo.entriesFor(2)) != 1 {
		t.Fatalf("record B in wrong state: %+v", gotB)
	}
	gotC := repo.records[3]
	if !gotC.ErrorFlag || *gotC.ErrorMessage != ReasonMissingTransactionNumber || len(repo.entriesFor(3)) != 1 {
		t.Fatalf("record C in wrong state: %+v", gotC)
	}

	loadable, err := validator.Loadable(context.Background())
	if err != nil {
		t.Fatalf("loadable returned error: %v", err)
	}
	if len(loadable) != 1 || loadable[0].ID != 1 {
		t.Fatalf("expected only record A loadable, got %+v", loadable)
	}

	last := logs.entries[len(logs.entries)-1]
	if last.Status != domain.StepStatusSuccess || last.RecordsProcessed != 1 {
		t.Fatalf("unexpected validation log entry: %+v", last)
	}
}
