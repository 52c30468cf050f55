package service

import (
	"context"
	"fmt"

	"github.com/telhawk-systems/loginwatch/internal/models"
	"github.com/telhawk-systems/loginwatch/internal/repository"
)

// ErrInvalidStatus is returned when a status update names an unknown
// lifecycle value.
var ErrInvalidStatus = fmt.Errorf("status must be one of active, suspended, blocked")

// QueryService serves the read-side projections over stored events and
// identity summaries, plus identity lifecycle updates.
type QueryService struct {
	repo repository.Repository
}

func NewQueryService(repo repository.Repository) *QueryService {
	return &QueryService{repo: repo}
}

// ListEvents returns events matching the filter, newest insertion first.
func (s *QueryService) ListEvents(ctx context.Context, filter models.EventFilter) ([]models.Event, error) {
	return s.repo.ListEvents(ctx, filter)
}

// GetIdentity returns the summary for one computer.
func (s *QueryService) GetIdentity(ctx context.Context, computerName string) (*models.Identity, error) {
	return s.repo.GetIdentity(ctx, computerName)
}

// ListIdentities returns all summaries, most recently seen first.
func (s *QueryService) ListIdentities(ctx context.Context) ([]models.Identity, error) {
	return s.repo.ListIdentities(ctx)
}

// SetIdentityStatus updates the lifecycle flag on one summary. The flag is
// only ever changed here; ingestion never touches it.
func (s *QueryService) SetIdentityStatus(ctx context.Context, computerName string, status models.IdentityStatus) (*models.Identity, error) {
	if !status.Valid() {
		return nil, ErrInvalidStatus
	}
	return s.repo.SetIdentityStatus(ctx, computerName, status)
}
