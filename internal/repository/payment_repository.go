package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/tutor-center-api/internal/models"
)

// PaymentRepository handles persistence of payment records.
type PaymentRepository struct {
	db *sqlx.DB
}

// NewPaymentRepository constructs the repository.
func NewPaymentRepository(db *sqlx.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

const paymentColumns = `id, student_id, student_name, student_email, class_id, class_name,
        year, month, amount, due_date, status, payment_method, paid_at, invoice_sent, reminders_sent,
        created_at, updated_at`

// List returns payments filtered by the provided criteria.
func (r *PaymentRepository) List(ctx context.Context, filter models.PaymentFilter) ([]models.Payment, int, error) {
	var conditions []string
	var args []interface{}

	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.ClassID != "" {
		conditions = append(conditions, fmt.Sprintf("class_id = $%d", len(args)+1))
		args = append(args, filter.ClassID)
	}
	if filter.Year != 0 {
		conditions = append(conditions, fmt.Sprintf("year = $%d", len(args)+1))
		args = append(args, filter.Year)
	}
	if filter.Month != 0 {
		conditions = append(conditions, fmt.Sprintf("month = $%d", len(args)+1))
		args = append(args, filter.Month)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	allowedSorts := map[string]string{
		"due_date":     "due_date",
		"amount":       "amount",
		"student_name": "student_name",
		"created_at":   "created_at",
	}
	orderBy := allowedSorts[filter.SortBy]
	if orderBy == "" {
		orderBy = "due_date"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT %s FROM payments%s ORDER BY %s %s LIMIT %d OFFSET %d`,
		paymentColumns, clause, orderBy, order, size, offset)

	var payments []models.Payment
	if err := r.db.SelectContext(ctx, &payments, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list payments: %w", err)
	}

	countQuery := "SELECT COUNT(*) FROM payments" + clause
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count payments: %w", err)
	}
	return payments, total, nil
}

// FindByID returns a payment by its ID.
func (r *PaymentRepository) FindByID(ctx context.Context, id string) (*models.Payment, error) {
	query := fmt.Sprintf(`SELECT %s FROM payments WHERE id = $1`, paymentColumns)
	var payment models.Payment
	if err := r.db.GetContext(ctx, &payment, query, id); err != nil {
		return nil, err
	}
	return &payment, nil
}

// Exists checks whether a payment already covers the (student, class, period)
// tuple. This is the per-record idempotency layer of the generator.
func (r *PaymentRepository) Exists(ctx context.Context, studentID, classID string, year, month int) (bool, error) {
	const query = `SELECT 1 FROM payments WHERE student_id = $1 AND class_id = $2 AND year = $3 AND month = $4 LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, studentID, classID, year, month); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("check payment existence: %w", err)
	}
	return true, nil
}

// InsertBatch inserts payments unordered: a failing row does not abort its
// siblings, and duplicate-key races fall through the unique constraint as
// no-ops. Returns the number of rows actually inserted alongside any joined
// row errors.
func (r *PaymentRepository) InsertBatch(ctx context.Context, payments []models.Payment) (int, error) {
	const query = `INSERT INTO payments (id, student_id, student_name, student_email, class_id, class_name,
        year, month, amount, due_date, status, payment_method, paid_at, invoice_sent, reminders_sent, created_at, updated_at)
        VALUES (:id, :student_id, :student_name, :student_email, :class_id, :class_name,
        :year, :month, :amount, :due_date, :status, :payment_method, :paid_at, :invoice_sent, :reminders_sent, :created_at, :updated_at)
        ON CONFLICT (student_id, class_id, year, month) DO NOTHING`

	inserted := 0
	var rowErrs []error
	for i := range payments {
		payment := &payments[i]
		if payment.ID == "" {
			payment.ID = uuid.NewString()
		}
		now := time.Now().UTC()
		if payment.CreatedAt.IsZero() {
			payment.CreatedAt = now
		}
		payment.UpdatedAt = now

		res, err := r.db.NamedExecContext(ctx, query, payment)
		if err != nil {
			rowErrs = append(rowErrs, fmt.Errorf("insert payment %s/%s %d-%02d: %w",
				payment.StudentID, payment.ClassID, payment.Year, payment.Month, err))
			continue
		}
		if affected, err := res.RowsAffected(); err == nil && affected > 0 {
			inserted++
		}
	}
	return inserted, errors.Join(rowErrs...)
}

// UpdateStatus records a collection-state transition on a payment.
func (r *PaymentRepository) UpdateStatus(ctx context.Context, id string, status models.PaymentStatus, method models.PaymentMethod, paidAt *time.Time) error {
	const query = `UPDATE payments SET status = $2, payment_method = $3, paid_at = $4, updated_at = $5 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, status, method, paidAt, time.Now().UTC()); err != nil {
		return fmt.Errorf("update payment status: %w", err)
	}
	return nil
}

// MarkInvoiceSent flips the invoice flag once an invoice has been delivered.
func (r *PaymentRepository) MarkInvoiceSent(ctx context.Context, id string) error {
	const query = `UPDATE payments SET invoice_sent = TRUE, updated_at = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, time.Now().UTC()); err != nil {
		return fmt.Errorf("mark invoice sent: %w", err)
	}
	return nil
}

// IncrementReminders bumps the reminder counter.
func (r *PaymentRepository) IncrementReminders(ctx context.Context, id string) (int, error) {
	const query = `UPDATE payments SET reminders_sent = reminders_sent + 1, updated_at = $2 WHERE id = $1 RETURNING reminders_sent`
	var count int
	if err := r.db.GetContext(ctx, &count, query, id, time.Now().UTC()); err != nil {
		return 0, fmt.Errorf("increment reminders: %w", err)
	}
	return count, nil
}
