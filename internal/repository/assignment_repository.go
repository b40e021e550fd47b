package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/prhi-portal-api/internal/models"
)

// AssignmentRepository manages assignments and their student routing.
type AssignmentRepository struct {
	db *sqlx.DB
}

// NewAssignmentRepository creates a new instance of AssignmentRepository.
func NewAssignmentRepository(db *sqlx.DB) *AssignmentRepository {
	return &AssignmentRepository{db: db}
}

// ListByInstructor returns an instructor's assignments, newest first.
func (r *AssignmentRepository) ListByInstructor(ctx context.Context, instructorID string) ([]models.AssignmentRow, error) {
	const query = `SELECT a.id, a.title, a.module_id, m.title AS module_title, a.instructor_id, a.due_date, a.file_urls, a.assigned_to_emails, a.created_at
        FROM assignments a
        LEFT JOIN training_modules m ON m.id = a.module_id
        WHERE a.instructor_id = $1
        ORDER BY a.created_at DESC`
	var rows []models.AssignmentRow
	if err := r.db.SelectContext(ctx, &rows, query, instructorID); err != nil {
		return nil, fmt.Errorf("list assignments: %w", err)
	}
	return rows, nil
}

// ListForStudent returns the assignments routed to the student through get_student_assignments.
func (r *AssignmentRepository) ListForStudent(ctx context.Context, studentID string) ([]models.StudentAssignmentRow, error) {
	const query = `SELECT id, title, due_date, file_urls, module_id, module_title FROM get_student_assignments($1)`
	var rows []models.StudentAssignmentRow
	if err := r.db.SelectContext(ctx, &rows, query, studentID); err != nil {
		if fix := fixRequired(err, "The function 'get_student_assignments' is missing. Apply the database migrations to see your assignments."); fix != nil {
			return nil, fix
		}
		if isResultMismatch(err) {
			return nil, configurationFix(err, "The 'get_student_assignments' function has a mismatch between its definition and its query. Apply the updated migration.")
		}
		return nil, fmt.Errorf("list student assignments: %w", err)
	}
	return rows, nil
}

// FindFiles returns the stored file list of an assignment.
func (r *AssignmentRepository) FindFiles(ctx context.Context, id string) (models.FileRefs, error) {
	var files models.FileRefs
	if err := r.db.GetContext(ctx, &files, `SELECT file_urls FROM assignments WHERE id = $1`, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find assignment files: %w", err)
	}
	return files, nil
}

// Create inserts an assignment with a caller-chosen id.
func (r *AssignmentRepository) Create(ctx context.Context, input models.AssignmentInput) error {
	const query = `INSERT INTO assignments (id, title, module_id, instructor_id, due_date, file_urls, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7)`
	if _, err := r.db.ExecContext(ctx, query, input.ID, input.Title, input.ModuleID, input.InstructorID, input.DueDate, input.Files, time.Now().UTC()); err != nil {
		return fmt.Errorf("create assignment: %w", err)
	}
	return nil
}

// Update rewrites the editable fields.
func (r *AssignmentRepository) Update(ctx context.Context, input models.AssignmentInput) error {
	const query = `UPDATE assignments SET title = $2, module_id = $3, instructor_id = $4, due_date = $5, file_urls = $6 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, input.ID, input.Title, input.ModuleID, input.InstructorID, input.DueDate, input.Files)
	if err != nil {
		return fmt.Errorf("update assignment: %w", err)
	}
	return requireRow(res)
}

// Delete removes an assignment.
func (r *AssignmentRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM assignments WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete assignment: %w", err)
	}
	return nil
}

// AssignStudents replaces the assignment's recipients via assign_students_to_assignment.
func (r *AssignmentRepository) AssignStudents(ctx context.Context, id string, emails []string) error {
	const query = `SELECT assign_students_to_assignment($1, $2)`
	if _, err := r.db.ExecContext(ctx, query, id, pq.Array(emails)); err != nil {
		if fix := fixRequired(err, "The function 'assign_students_to_assignment' is missing. Apply the database migrations to enable assigning students."); fix != nil {
			return fix
		}
		return fmt.Errorf("assign students: %w", err)
	}
	return nil
}
