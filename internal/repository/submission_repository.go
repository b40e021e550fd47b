package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/prhi-portal-api/internal/models"
)

// GradedSubmission identifies who a grade was given to.
type GradedSubmission struct {
	StudentEmail    string `db:"student_email"`
	AssignmentTitle string `db:"assignment_title"`
}

// SubmissionRepository manages assignment submissions.
type SubmissionRepository struct {
	db *sqlx.DB
}

// NewSubmissionRepository creates a new instance of SubmissionRepository.
func NewSubmissionRepository(db *sqlx.DB) *SubmissionRepository {
	return &SubmissionRepository{db: db}
}

// ListByStudent returns the student's submissions for the given assignments.
func (r *SubmissionRepository) ListByStudent(ctx context.Context, studentID string, assignmentIDs []string) ([]models.Submission, error) {
	if len(assignmentIDs) == 0 {
		return nil, nil
	}
	query, args, err := sqlx.In(`SELECT id, assignment_id, student_id, text_content, file_name, file_url, status, score, feedback, submitted_at
        FROM submissions WHERE student_id = ? AND assignment_id IN (?)`, studentID, assignmentIDs)
	if err != nil {
		return nil, fmt.Errorf("build submissions query: %w", err)
	}
	var rows []models.Submission
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("list student submissions: %w", err)
	}
	return rows, nil
}

// ListPendingForInstructor returns submissions awaiting review on the instructor's assignments.
func (r *SubmissionRepository) ListPendingForInstructor(ctx context.Context, instructorID string) ([]models.PendingSubmissionRow, error) {
	const query = `SELECT s.id, s.text_content, s.file_name, s.file_url, s.submitted_at,
            a.id AS assignment_id, a.title AS assignment_title, a.due_date,
            p.id AS student_id, p.full_name AS student_name, p.email AS student_email, p.avatar_url AS student_avatar_url
        FROM submissions s
        JOIN assignments a ON a.id = s.assignment_id
        JOIN profiles p ON p.id = s.student_id
        WHERE a.instructor_id = $1 AND s.status = $2
        ORDER BY s.submitted_at ASC`
	var rows []models.PendingSubmissionRow
	if err := r.db.SelectContext(ctx, &rows, query, instructorID, models.SubmissionPendingReview); err != nil {
		return nil, fmt.Errorf("list pending submissions: %w", err)
	}
	return rows, nil
}

// ListForAssignment returns every submission of an assignment, newest first.
func (r *SubmissionRepository) ListForAssignment(ctx context.Context, assignmentID string) ([]models.StudentSubmissionRow, error) {
	const query = `SELECT s.id, s.submitted_at, s.text_content, s.file_name, s.file_url, s.status, s.score, s.feedback,
            p.full_name AS student_name, p.avatar_url AS student_avatar_url
        FROM submissions s
        JOIN profiles p ON p.id = s.student_id
        WHERE s.assignment_id = $1
        ORDER BY s.submitted_at DESC`
	var rows []models.StudentSubmissionRow
	if err := r.db.SelectContext(ctx, &rows, query, assignmentID); err != nil {
		return nil, fmt.Errorf("list assignment submissions: %w", err)
	}
	return rows, nil
}

// Create inserts a submission; a second submission for the same assignment and student is rejected.
func (r *SubmissionRepository) Create(ctx context.Context, submission *models.Submission) error {
	if submission.ID == "" {
		submission.ID = uuid.NewString()
	}
	if submission.SubmittedAt.IsZero() {
		submission.SubmittedAt = time.Now().UTC()
	}
	if submission.Status == "" {
		submission.Status = models.SubmissionPendingReview
	}
	const query = `INSERT INTO submissions (id, assignment_id, student_id, text_content, file_name, file_url, status, submitted_at)
        VALUES (:id, :assignment_id, :student_id, :text_content, :file_name, :file_url, :status, :submitted_at)`
	if _, err := r.db.NamedExecContext(ctx, query, submission); err != nil {
		if IsUniqueViolation(err) {
			return fmt.Errorf("assignment already submitted")
		}
		return fmt.Errorf("create submission: %w", err)
	}
	return nil
}

// Grade records score and feedback and returns the graded student's email.
func (r *SubmissionRepository) Grade(ctx context.Context, id, score, feedback string) (*GradedSubmission, error) {
	const query = `UPDATE submissions s SET score = $2, feedback = $3, status = $4
        FROM profiles p, assignments a
        WHERE s.id = $1 AND p.id = s.student_id AND a.id = s.assignment_id
        RETURNING p.email AS student_email, a.title AS assignment_title`
	var graded GradedSubmission
	if err := r.db.GetContext(ctx, &graded, query, id, score, feedback, models.SubmissionGraded); err != nil {
		if IsNotFound(err) {
			return nil, err
		}
		return nil, fmt.Errorf("grade submission: %w", err)
	}
	return &graded, nil
}

// DeleteByAssignment removes every submission of an assignment.
func (r *SubmissionRepository) DeleteByAssignment(ctx context.Context, assignmentID string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM submissions WHERE assignment_id = $1`, assignmentID)
	if err != nil {
		return 0, fmt.Errorf("delete associated submissions: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
