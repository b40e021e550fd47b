package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/prhi-portal-api/internal/models"
)

// BatchEnrollment pairs a batch with one enrolled applicant email.
type BatchEnrollment struct {
	BatchID string `db:"batch_id"`
	Email   string `db:"email"`
}

// BatchRepository manages training_batches.
type BatchRepository struct {
	db *sqlx.DB
}

// NewBatchRepository creates a new instance of BatchRepository.
func NewBatchRepository(db *sqlx.DB) *BatchRepository {
	return &BatchRepository{db: db}
}

// List returns batches with the instructor's display name.
func (r *BatchRepository) List(ctx context.Context) ([]models.BatchRow, error) {
	const query = `SELECT b.id, b.name, b.instructor_id, p.full_name AS instructor_name, b.start_date, b.end_date, b.status, b.created_at
        FROM training_batches b
        LEFT JOIN profiles p ON p.id = b.instructor_id
        ORDER BY b.start_date ASC, b.created_at ASC`
	var rows []models.BatchRow
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("list batches: %w", err)
	}
	return rows, nil
}

// ListEnrollments returns applicant emails grouped by the batch they belong to.
func (r *BatchRepository) ListEnrollments(ctx context.Context) ([]BatchEnrollment, error) {
	const query = `SELECT batch_id, email FROM profiles WHERE role = $1 AND batch_id IS NOT NULL ORDER BY email ASC`
	var rows []BatchEnrollment
	if err := r.db.SelectContext(ctx, &rows, query, models.RoleStudentApplicant); err != nil {
		return nil, fmt.Errorf("list batch enrollments: %w", err)
	}
	return rows, nil
}

// Create inserts a batch and returns its id.
func (r *BatchRepository) Create(ctx context.Context, input models.BatchInput) (string, error) {
	id := uuid.NewString()
	const query = `INSERT INTO training_batches (id, name, instructor_id, start_date, end_date, status, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7)`
	if _, err := r.db.ExecContext(ctx, query, id, input.Name, input.InstructorID, input.StartDate, input.EndDate, input.Status, time.Now().UTC()); err != nil {
		return "", fmt.Errorf("create batch: %w", err)
	}
	return id, nil
}

// Update changes the instructor and dates; status is managed by the lifecycle operations.
func (r *BatchRepository) Update(ctx context.Context, id string, input models.BatchInput) error {
	const query = `UPDATE training_batches SET instructor_id = $2, start_date = $3, end_date = $4 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id, input.InstructorID, input.StartDate, input.EndDate)
	if err != nil {
		return fmt.Errorf("update batch: %w", err)
	}
	return requireRow(res)
}

// UpdateStatus moves a batch through its lifecycle.
func (r *BatchRepository) UpdateStatus(ctx context.Context, id string, status models.BatchStatus) error {
	const query = `UPDATE training_batches SET status = $2 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id, status)
	if err != nil {
		return fmt.Errorf("update batch status: %w", err)
	}
	return requireRow(res)
}

// Delete removes a batch; enrolled applicants keep their profile with batch_id cleared.
func (r *BatchRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM training_batches WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete batch: %w", err)
	}
	return nil
}

// HasInProgress reports whether the instructor already runs a batch.
func (r *BatchRepository) HasInProgress(ctx context.Context, instructorID string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM training_batches WHERE instructor_id = $1 AND status = $2)`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, instructorID, models.BatchInProgress); err != nil {
		return false, fmt.Errorf("check in progress batch: %w", err)
	}
	return exists, nil
}

// NextUpcoming returns the instructor's earliest Upcoming batch id, or "" when none exists.
func (r *BatchRepository) NextUpcoming(ctx context.Context, instructorID string) (string, error) {
	const query = `SELECT id FROM training_batches WHERE instructor_id = $1 AND status = $2 ORDER BY start_date ASC LIMIT 1`
	var id string
	if err := r.db.GetContext(ctx, &id, query, instructorID, models.BatchUpcoming); err != nil {
		if err == sql.ErrNoRows {
			return "", nil
		}
		return "", fmt.Errorf("find next upcoming batch: %w", err)
	}
	return id, nil
}

func requireRow(res sql.Result) error {
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
