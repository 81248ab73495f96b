package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/tutor-center-api/internal/models"
	appErrors "github.com/noah-isme/tutor-center-api/pkg/errors"
	"github.com/noah-isme/tutor-center-api/pkg/export"
)

type paymentRepository interface {
	List(ctx context.Context, filter models.PaymentFilter) ([]models.Payment, int, error)
	FindByID(ctx context.Context, id string) (*models.Payment, error)
	UpdateStatus(ctx context.Context, id string, status models.PaymentStatus, method models.PaymentMethod, paidAt *time.Time) error
	MarkInvoiceSent(ctx context.Context, id string) error
	IncrementReminders(ctx context.Context, id string) (int, error)
}

type invoiceRenderer interface {
	Render(inv export.Invoice) ([]byte, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

// MarkPaidRequest records how a payment was settled.
type MarkPaidRequest struct {
	PaymentMethod string     `json:"payment_method" validate:"required"`
	PaidAt        *time.Time `json:"paid_at,omitempty"`
}

// PaymentService orchestrates payment collection workflows. Record creation
// is owned by the generation service; this service only transitions records
// that already exist.
type PaymentService struct {
	repo      paymentRepository
	invoices  invoiceRenderer
	csv       csvRenderer
	validator *validator.Validate
	logger    *zap.Logger
}

// NewPaymentService constructs PaymentService.
func NewPaymentService(repo paymentRepository, invoices invoiceRenderer, csv csvRenderer, validate *validator.Validate, logger *zap.Logger) *PaymentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PaymentService{repo: repo, invoices: invoices, csv: csv, validator: validate, logger: logger}
}

// List returns payments with pagination metadata.
func (s *PaymentService) List(ctx context.Context, filter models.PaymentFilter) ([]models.Payment, *models.Pagination, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "unknown payment status")
	}
	payments, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list payments")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	return payments, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns one payment.
func (s *PaymentService) Get(ctx context.Context, id string) (*models.Payment, error) {
	payment, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "payment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load payment")
	}
	return payment, nil
}

// MarkPaid settles a pending or overdue payment.
func (s *PaymentService) MarkPaid(ctx context.Context, id string, req MarkPaidRequest) (*models.Payment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payment payload")
	}
	method := models.PaymentMethod(req.PaymentMethod)
	if !method.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown payment method")
	}

	payment, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if payment.Status == models.PaymentStatusPaid {
		return nil, appErrors.Clone(appErrors.ErrConflict, "payment is already settled")
	}
	if payment.Status == models.PaymentStatusWaived {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "waived payments cannot be settled")
	}

	paidAt := time.Now().UTC()
	if req.PaidAt != nil {
		paidAt = req.PaidAt.UTC()
	}
	if err := s.repo.UpdateStatus(ctx, id, models.PaymentStatusPaid, method, &paidAt); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark payment paid")
	}
	return s.Get(ctx, id)
}

// Waive cancels the obligation without collecting it.
func (s *PaymentService) Waive(ctx context.Context, id string) (*models.Payment, error) {
	payment, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if payment.Status == models.PaymentStatusPaid {
		return nil, appErrors.Clone(appErrors.ErrConflict, "settled payments cannot be waived")
	}
	if err := s.repo.UpdateStatus(ctx, id, models.PaymentStatusWaived, payment.PaymentMethod, nil); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to waive payment")
	}
	return s.Get(ctx, id)
}

// SendReminder bumps the reminder counter for an outstanding payment.
func (s *PaymentService) SendReminder(ctx context.Context, id string) (int, error) {
	payment, err := s.Get(ctx, id)
	if err != nil {
		return 0, err
	}
	if payment.Status == models.PaymentStatusPaid || payment.Status == models.PaymentStatusWaived {
		return 0, appErrors.Clone(appErrors.ErrPreconditionFailed, "payment is not outstanding")
	}
	count, err := s.repo.IncrementReminders(ctx, id)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record reminder")
	}
	return count, nil
}

// RenderInvoice produces the invoice PDF for a payment and flips its
// invoice flag on success.
func (s *PaymentService) RenderInvoice(ctx context.Context, id string) ([]byte, *models.Payment, error) {
	payment, err := s.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	inv := export.Invoice{
		Number:       fmt.Sprintf("INV-%d%02d-%s", payment.Year, payment.Month, payment.ID[:8]),
		StudentName:  payment.StudentName,
		StudentEmail: payment.StudentEmail,
		ClassName:    payment.ClassName,
		PeriodLabel:  fmt.Sprintf("%s %d", time.Month(payment.Month), payment.Year),
		Amount:       payment.Amount.StringFixed(2),
		DueDate:      payment.DueDate,
		Status:       string(payment.Status),
		IssuedAt:     time.Now().UTC(),
	}
	pdf, err := s.invoices.Render(inv)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render invoice")
	}
	if err := s.repo.MarkInvoiceSent(ctx, id); err != nil {
		s.logger.Warn("failed to mark invoice sent", zap.String("payment_id", id), zap.Error(err))
	}
	return pdf, payment, nil
}

// ExportPeriodCSV renders every payment of one billing period as CSV.
func (s *PaymentService) ExportPeriodCSV(ctx context.Context, month, year int) ([]byte, error) {
	if month < 1 || month > 12 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "month must be between 1 and 12")
	}
	var payments []models.Payment
	for page := 1; ; page++ {
		batch, total, err := s.repo.List(ctx, models.PaymentFilter{
			Year:      year,
			Month:     month,
			Page:      page,
			PageSize:  100,
			SortBy:    "student_name",
			SortOrder: "ASC",
		})
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list payments")
		}
		payments = append(payments, batch...)
		if len(batch) == 0 || len(payments) >= total {
			break
		}
	}

	headers := []string{"Student", "Email", "Class", "Period", "Amount", "Due Date", "Status", "Paid At"}
	rows := make([]map[string]string, 0, len(payments))
	for _, p := range payments {
		paidAt := ""
		if p.PaidAt != nil {
			paidAt = p.PaidAt.Format("2006-01-02")
		}
		rows = append(rows, map[string]string{
			"Student":  p.StudentName,
			"Email":    p.StudentEmail,
			"Class":    p.ClassName,
			"Period":   fmt.Sprintf("%d-%02d", p.Year, p.Month),
			"Amount":   p.Amount.StringFixed(2),
			"Due Date": p.DueDate.Format("2006-01-02"),
			"Status":   string(p.Status),
			"Paid At":  paidAt,
		})
	}
	data, err := s.csv.Render(export.Dataset{Headers: headers, Rows: rows})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv")
	}
	return data, nil
}
