package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/noah-isme/tutor-center-api/internal/models"
	appErrors "github.com/noah-isme/tutor-center-api/pkg/errors"
)

type classRepository interface {
	List(ctx context.Context, filter models.ClassFilter) ([]models.Class, int, error)
	FindByID(ctx context.Context, id string) (*models.Class, error)
	Create(ctx context.Context, class *models.Class) error
	Update(ctx context.Context, class *models.Class) error
}

// CreateClassRequest describes class creation payload.
type CreateClassRequest struct {
	Name       string                `json:"name" validate:"required"`
	Subject    string                `json:"subject" validate:"required"`
	MonthlyFee decimal.Decimal       `json:"monthly_fee"`
	Schedule   []models.ScheduleSlot `json:"schedule" validate:"dive"`
	Capacity   int                   `json:"capacity" validate:"min=0"`
}

// UpdateClassRequest describes class update payload.
type UpdateClassRequest struct {
	Name       *string               `json:"name,omitempty"`
	Subject    *string               `json:"subject,omitempty"`
	MonthlyFee *decimal.Decimal      `json:"monthly_fee,omitempty"`
	Schedule   []models.ScheduleSlot `json:"schedule,omitempty" validate:"omitempty,dive"`
	Capacity   *int                  `json:"capacity,omitempty"`
	Active     *bool                 `json:"active,omitempty"`
}

// ClassService orchestrates class workflows.
type ClassService struct {
	repo      classRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewClassService constructs ClassService.
func NewClassService(repo classRepository, validate *validator.Validate, logger *zap.Logger) *ClassService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ClassService{repo: repo, validator: validate, logger: logger}
}

// List returns classes with pagination metadata.
func (s *ClassService) List(ctx context.Context, filter models.ClassFilter) ([]models.Class, *models.Pagination, error) {
	classes, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list classes")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	return classes, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns one class.
func (s *ClassService) Get(ctx context.Context, id string) (*models.Class, error) {
	class, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}
	return class, nil
}

// Create registers a new class.
func (s *ClassService) Create(ctx context.Context, req CreateClassRequest) (*models.Class, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid class payload")
	}
	if req.MonthlyFee.IsNegative() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "monthly fee must not be negative")
	}
	class := &models.Class{
		Name:       req.Name,
		Subject:    req.Subject,
		MonthlyFee: req.MonthlyFee,
		Schedule:   models.ScheduleSlots(req.Schedule),
		Capacity:   req.Capacity,
		Active:     true,
	}
	if err := s.repo.Create(ctx, class); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create class")
	}
	return class, nil
}

// Update applies partial changes to a class.
func (s *ClassService) Update(ctx context.Context, id string, req UpdateClassRequest) (*models.Class, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid class payload")
	}
	class, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Name != nil {
		class.Name = *req.Name
	}
	if req.Subject != nil {
		class.Subject = *req.Subject
	}
	if req.MonthlyFee != nil {
		if req.MonthlyFee.IsNegative() {
			return nil, appErrors.Clone(appErrors.ErrValidation, "monthly fee must not be negative")
		}
		class.MonthlyFee = *req.MonthlyFee
	}
	if req.Schedule != nil {
		class.Schedule = models.ScheduleSlots(req.Schedule)
	}
	if req.Capacity != nil {
		class.Capacity = *req.Capacity
	}
	if req.Active != nil {
		class.Active = *req.Active
	}
	if err := s.repo.Update(ctx, class); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update class")
	}
	return class, nil
}
