package stations

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/police-records/registry/internal/shared"
)

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	List(ctx context.Context, villeID *int64) ([]Station, error)
	Get(ctx context.Context, id int64) (Station, error)
	HeadedBy(ctx context.Context, commissionerID int64) (Station, bool, error)
	Create(ctx context.Context, s Station) (Station, error)
	Update(ctx context.Context, s Station) (Station, error)
	SetHead(ctx context.Context, id, commissionerID int64) (Station, error)
	Delete(ctx context.Context, id int64) error
	VilleExists(ctx context.Context, id int64) (bool, error)
	CommissionerExists(ctx context.Context, id int64) (bool, error)
}

// Service manages stations.
type Service struct {
	repo   RepositoryPort
	logger *slog.Logger
}

// NewService constructs the service.
func NewService(repo RepositoryPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, logger: logger}
}

// List returns stations, optionally within one ville.
func (s *Service) List(ctx context.Context, villeID *int64) ([]Station, error) {
	return s.repo.List(ctx, villeID)
}

// Get returns one station.
func (s *Service) Get(ctx context.Context, id int64) (Station, error) {
	return s.repo.Get(ctx, id)
}

// Create validates and inserts a station.
func (s *Service) Create(ctx context.Context, st Station) (Station, error) {
	st.ID = 0
	if err := s.prepare(ctx, &st); err != nil {
		return Station{}, err
	}
	created, err := s.repo.Create(ctx, st)
	if err != nil {
		return Station{}, fmt.Errorf("stations: create: %w", err)
	}
	s.logger.Info("station created", slog.Int64("station_id", created.ID), slog.Int64("head_commissioner_id", created.HeadCommissionerID))
	return created, nil
}

// Update validates and rewrites a station.
func (s *Service) Update(ctx context.Context, id int64, st Station) (Station, error) {
	st.ID = id
	if err := s.prepare(ctx, &st); err != nil {
		return Station{}, err
	}
	updated, err := s.repo.Update(ctx, st)
	if err != nil {
		return Station{}, fmt.Errorf("stations: update %d: %w", id, err)
	}
	return updated, nil
}

// AssignHead makes a commissioner the head of a station. A commissioner heads
// at most one station.
func (s *Service) AssignHead(ctx context.Context, id, commissionerID int64) (Station, error) {
	if commissionerID <= 0 {
		return Station{}, shared.Invalid("head_commissioner_id", "is required")
	}
	if _, err := s.repo.Get(ctx, id); err != nil {
		return Station{}, err
	}
	if err := s.checkHead(ctx, id, commissionerID); err != nil {
		return Station{}, err
	}
	st, err := s.repo.SetHead(ctx, id, commissionerID)
	if err != nil {
		return Station{}, fmt.Errorf("stations: assign head of %d: %w", id, err)
	}
	s.logger.Info("station head assigned", slog.Int64("station_id", id), slog.Int64("head_commissioner_id", commissionerID))
	return st, nil
}

// Delete removes a station.
func (s *Service) Delete(ctx context.Context, id int64) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("stations: delete %d: %w", id, err)
	}
	return nil
}

func (s *Service) prepare(ctx context.Context, st *Station) error {
	if err := validateStation(st); err != nil {
		return err
	}
	ok, err := s.repo.VilleExists(ctx, st.VilleID)
	if err != nil {
		return err
	}
	if !ok {
		return shared.MissingReference("ville_id")
	}
	return s.checkHead(ctx, st.ID, st.HeadCommissionerID)
}

// checkHead rejects a commissioner that is missing or already heads another
// station. The unique index still catches concurrent assignments.
func (s *Service) checkHead(ctx context.Context, stationID, commissionerID int64) error {
	ok, err := s.repo.CommissionerExists(ctx, commissionerID)
	if err != nil {
		return err
	}
	if !ok {
		return shared.MissingReference("head_commissioner_id")
	}
	current, found, err := s.repo.HeadedBy(ctx, commissionerID)
	if err != nil {
		return err
	}
	if found && current.ID != stationID {
		return &shared.UniquenessViolation{Constraint: HeadConstraint}
	}
	return nil
}
