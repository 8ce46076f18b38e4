package quarantine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rpattn/batchctl/internal/auth"
	"github.com/rpattn/batchctl/internal/domain"

	"github.com/google/uuid"
)

type stubQuarantineRepo struct {
	entries map[uuid.UUID]domain.QuarantineEntry
}

func newStubQuarantineRepo(entries ...domain.QuarantineEntry) *stubQuarantineRepo {
	repo := &stubQuarantineRepo{entries: map[uuid.UUID]domain.QuarantineEntry{}}
	for _, entry := range entries {
		repo.entries[entry.ID] = entry
	}
	return repo
}

func (s *stubQuarantineRepo) GetByID(_ context.Context, id uuid.UUID) (domain.QuarantineEntry, error) {
	entry, ok := s.entries[id]
	if !ok {
		return domain.QuarantineEntry{}, domain.ErrEntryNotFound
	}
	return entry, nil
}

func (s *stubQuarantineRepo) List(_ context.Context, status *domain.ResolutionStatus, _ int, _ int) ([]domain.QuarantineEntry, error) {
	result := []domain.QuarantineEntry{}
	for _, entry := range s.entries {
		if status == nil || entry.ResolutionStatus == *status {
			result = append(result, entry)
		}
	}
	return result, nil
}

func (s *stubQuarantineRepo) Resolve(_ context.Context, id uuid.UUID, resolvedBy string) (domain.QuarantineEntry, error) {
	entry, ok := s.entries[id]
	if !ok {
		return domain.QuarantineEntry{}, domain.ErrEntryNotFound
	}
	if entry.ResolutionStatus == domain.ResolutionStatusResolved {
		return domain.QuarantineEntry{}, domain.ErrResolutionConflict
	}
	now := time.Now()
	entry.ResolutionStatus = domain.ResolutionStatusResolved
	entry.ResolvedBy = &resolvedBy
	entry.ResolvedDate = &now
	s.entries[id] = entry
	return entry, nil
}

func unresolvedEntry() domain.QuarantineEntry {
	txn := "TXN-42"
	return domain.QuarantineEntry{
		ID:                uuid.New(),
		StagingID:         42,
		TransactionNumber: &txn,
		ErrorMessage:      "Invalid Quantity",
		ResolutionStatus:  domain.ResolutionStatusUnresolved,
		CreatedAt:         time.Now(),
	}
}

func TestResolveStampsResolver(t *testing.T) {
	entry := unresolvedEntry()
	repo := newStubQuarantineRepo(entry)
	service := NewService(repo)

	resolved, err := service.Resolve(context.Background(), entry.ID, "ops.alex")
	if err != nil {
		t.Fatalf("resolve returned error: %v", err)
	}
	if resolved.ResolutionStatus != domain.ResolutionStatusResolved {
		t.Fatalf("expected RESOLVED, got %s", resolved.ResolutionStatus)
	}
	if resolved.ResolvedBy == nil || *resolved.ResolvedBy != "ops.alex" {
		t.Fatalf("resolver not stamped: %+v", resolved)
	}
	if resolved.ResolvedDate == nil {
		t.Fatalf("resolution date not stamped")
	}
}

func TestResolveTwiceConflictsAndPreservesStamps(t *testing.T) {
	entry := unresolvedEntry()
	repo := newStubQuarantineRepo(entry)
	service := NewService(repo)

	first, err := service.Resolve(context.Background(), entry.ID, "ops.alex")
	if err != nil {
		t.Fatalf("first resolve returned error: %v", err)
	}

	_, err = service.Resolve(context.Background(), entry.ID, "ops.jordan")
	if !errors.Is(err, domain.ErrResolutionConflict) {
		t.Fatalf("expected ErrResolutionConflict, got %v", err)
	}

	current, _ := repo.GetByID(context.Background(), entry.ID)
	if *current.ResolvedBy != "ops.alex" {
		t.Fatalf("resolver overwritten by conflicting attempt: %s", *current.ResolvedBy)
	}
	if !current.ResolvedDate.Equal(*first.ResolvedDate) {
		t.Fatalf("resolution date overwritten by conflicting attempt")
	}
}

func TestResolveFallsBackToContextActor(t *testing.T) {
	entry := unresolvedEntry()
	repo := newStubQuarantineRepo(entry)
	service := NewService(repo)

	ctx := auth.ContextWithActor(context.Background(), "ops.sam")
	resolved, err := service.Resolve(ctx, entry.ID, "")
	if err != nil {
		t.Fatalf("resolve returned error: %v", err)
	}
	if resolved.ResolvedBy == nil || *resolved.ResolvedBy != "ops.sam" {
		t.Fatalf("actor not used as resolver: %+v", resolved)
	}
}

func TestResolveRequiresResolver(t *testing.T) {
	entry := unresolvedEntry()
	service := NewService(newStubQuarantineRepo(entry))

	if _, err := service.Resolve(context.Background(), entry.ID, ""); err == nil {
		t.Fatalf("expected error when no resolver available")
	}
}

func TestResolveUnknownEntry(t *testing.T) {
	service := NewService(newStubQuarantineRepo())

	_, err := service.Resolve(context.Background(), uuid.New(), "ops.alex")
	if !errors.Is(err, domain.ErrEntryNotFound) {
		t.Fatalf("expected ErrEntryNotFound, got %v", err)
	}
}
