package service

import (
	"context"
	"errors"

	"github.com/VaniaEncinas/ProyectoGradoGPS/module/core/domain"
	"github.com/VaniaEncinas/ProyectoGradoGPS/module/core/internal/repository/database"
)

// LocationService answers read queries over stored fixes. Writes go through
// IngestService.
type LocationService struct {
	repo database.LocationRepository
}

func NewLocationService(repo database.LocationRepository) *LocationService {
	return &LocationService{repo: repo}
}

func (s *LocationService) GetLatest(ctx context.Context, entityID string) (*domain.LocationFix, error) {
	fix, err := s.repo.GetLatest(ctx, entityID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, &domain.NotFoundError{Resource: "location", ID: entityID}
		}
		return nil, &domain.RepositoryError{Op: "get latest location", Err: err}
	}
	return fix, nil
}

func (s *LocationService) GetHistory(ctx context.Context, query *domain.HistoryQuery) ([]domain.LocationFix, error) {
	if query.End.Before(query.Start) {
		return nil, &domain.ValidationError{Field: "end", Reason: "must not be before start"}
	}
	fixes, err := s.repo.GetHistory(ctx, query)
	if err != nil {
		return nil, &domain.RepositoryError{Op: "get location history", Err: err}
	}
	return fixes, nil
}
