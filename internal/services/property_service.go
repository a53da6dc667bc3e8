package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/dtorrez/rentora-api/internal/models"
	"github.com/dtorrez/rentora-api/internal/repository"

	"github.com/google/uuid"
)

type PropertyService struct {
	repo repository.PropertyRepository
}

func NewPropertyService(repo repository.PropertyRepository) *PropertyService {
	return &PropertyService{repo: repo}
}

func (s *PropertyService) FindByID(ctx context.Context, id uint) (*models.Property, error) {
	property, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, translateRepoError(err)
	}
	return property, nil
}

func (s *PropertyService) List(ctx context.Context, orgID uint, query *repository.ListQuery) ([]models.Property, int64, error) {
	return s.repo.List(ctx, orgID, query)
}

func (s *PropertyService) Create(ctx context.Context, property *models.Property) error {
	// Auto-generate GUID if not provided
	if property.GUID == "" {
		property.GUID = uuid.New().String()
	}

	// Auto-generate units if a unit count is specified; rents are set per
	// unit afterwards
	if property.UnitCount > 0 && len(property.Units) == 0 {
		property.Units = make([]models.Unit, 0, property.UnitCount)
		for i := 1; i <= property.UnitCount; i++ {
			property.Units = append(property.Units, models.Unit{
				Label:  fmt.Sprintf("Unidad %03d", i),
				Status: models.UnitStatusAvailable,
			})
		}
	}
	return s.repo.Create(ctx, property)
}

func (s *PropertyService) Update(ctx context.Context, property *models.Property) error {
	return s.repo.Update(ctx, property)
}

func (s *PropertyService) Delete(ctx context.Context, id uint) error {
	property, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return translateRepoError(err)
	}
	for _, unit := range property.Units {
		if unit.Status == models.UnitStatusOccupied {
			return fmt.Errorf("%w: la propiedad tiene unidades ocupadas", ErrBusinessRule)
		}
	}
	return s.repo.Delete(ctx, id)
}

type UnitService struct {
	repo         repository.UnitRepository
	propertyRepo repository.PropertyRepository
	leaseRepo    repository.LeaseRepository
}

func NewUnitService(repo repository.UnitRepository, propertyRepo repository.PropertyRepository, leaseRepo repository.LeaseRepository) *UnitService {
	return &UnitService{repo: repo, propertyRepo: propertyRepo, leaseRepo: leaseRepo}
}

func (s *UnitService) FindByID(ctx context.Context, id uint) (*models.Unit, error) {
	unit, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, translateRepoError(err)
	}
	return unit, nil
}

func (s *UnitService) List(ctx context.Context, propertyID uint, query *repository.ListQuery) ([]models.Unit, int64, error) {
	return s.repo.List(ctx, propertyID, query)
}

func (s *UnitService) Create(ctx context.Context, unit *models.Unit) error {
	if unit.MonthlyRent < 0 {
		return fmt.Errorf("%w: la renta mensual no puede ser negativa", ErrInvalidArgument)
	}
	if err := s.repo.Create(ctx, unit); err != nil {
		return err
	}
	// Keep property unit_count in sync
	property, err := s.propertyRepo.FindByID(ctx, unit.PropertyID)
	if err != nil {
		return err
	}
	property.UnitCount++
	return s.propertyRepo.Update(ctx, property)
}

func (s *UnitService) Update(ctx context.Context, unit *models.Unit) error {
	existingUnit, err := s.repo.FindByID(ctx, unit.ID)
	if err != nil {
		return translateRepoError(err)
	}

	// Preserve critical fields if not provided
	if unit.PropertyID == 0 {
		unit.PropertyID = existingUnit.PropertyID
	}
	if unit.Status == "" {
		unit.Status = existingUnit.Status
	}

	// An occupied unit cannot be freed while its lease is still active
	if existingUnit.Status == models.UnitStatusOccupied && unit.Status != models.UnitStatusOccupied {
		active, err := s.leaseRepo.FindActiveByUnit(ctx, unit.ID)
		if err == nil && active != nil {
			return fmt.Errorf("%w: la unidad %s tiene el contrato #%d activo", ErrBusinessRule, existingUnit.Label, active.ID)
		}
		if err != nil && !errors.Is(translateRepoError(err), ErrNotFound) {
			return err
		}
	}

	// Preserve metadata fields if not provided (zero/nil)
	if unit.Floor == nil {
		unit.Floor = existingUnit.Floor
	}
	if unit.Bedrooms == nil {
		unit.Bedrooms = existingUnit.Bedrooms
	}
	if unit.Bathrooms == nil {
		unit.Bathrooms = existingUnit.Bathrooms
	}
	if unit.Note == nil {
		unit.Note = existingUnit.Note
	}
	if unit.MonthlyRent == 0 {
		unit.MonthlyRent = existingUnit.MonthlyRent
	}
	if unit.Area == 0 {
		unit.Area = existingUnit.Area
	}

	// Carry over property association for ToResponse
	unit.Property = existingUnit.Property

	return s.repo.Update(ctx, unit)
}

func (s *UnitService) Delete(ctx context.Context, id uint) error {
	unit, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return translateRepoError(err)
	}
	taken, err := s.leaseRepo.HasActiveLeaseForUnit(ctx, id)
	if err != nil {
		return err
	}
	if taken {
		return fmt.Errorf("%w: la unidad %s tiene un contrato activo", ErrBusinessRule, unit.Label)
	}

	propertyID := unit.PropertyID
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	// Keep property unit_count in sync
	property, err := s.propertyRepo.FindByID(ctx, propertyID)
	if err != nil {
		return err
	}
	if property.UnitCount > 0 {
		property.UnitCount--
		return s.propertyRepo.Update(ctx, property)
	}
	return nil
}
