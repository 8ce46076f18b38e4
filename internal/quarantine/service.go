// Package quarantine provides the triage surface over rejected records.
package quarantine

import (
	"context"
	"errors"
	"strings"

	"github.com/rpattn/batchctl/internal/auth"
	"github.com/rpattn/batchctl/internal/domain"
	"github.com/rpattn/batchctl/internal/repository"

	"github.com/google/uuid"
)

// Service exposes quarantine listing and resolution.
type Service struct {
	entries repository.QuarantineRepository
}

// NewService creates a quarantine service.
func NewService(entries repository.QuarantineRepository) *Service {
	return &Service{entries: entries}
}

// List returns entries, optionally filtered by resolution status.
func (s *Service) List(ctx context.Context, status *domain.ResolutionStatus, limit, offset int) ([]domain.QuarantineEntry, error) {
	return s.entries.List(ctx, status, limit, offset)
}

// Get returns one entry by id.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (domain.QuarantineEntry, error) {
	return s.entries.GetByID(ctx, id)
}

// Resolve marks an entry handled, attributing it to resolvedBy. When
// resolvedBy is empty the actor carried on the context is used. Resolving an
// already-resolved entry fails with domain.ErrResolutionConflict.
func (s *Service) Resolve(ctx context.Context, id uuid.UUID, resolvedBy string) (domain.QuarantineEntry, error) {
	resolvedBy = strings.TrimSpace(resolvedBy)
	if resolvedBy == "" {
		actor, ok := auth.ActorFromContext(ctx)
		if !ok {
			return domain.QuarantineEntry{}, errors.New("resolvedBy is required")
		}
		resolvedBy = actor
	}
	return s.entries.Resolve(ctx, id, resolvedBy)
}
