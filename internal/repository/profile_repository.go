package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/prhi-portal-api/internal/models"
)

const profileColumns = `id, email, full_name, role, avatar_url, assessment_status, assessment_score, assessment_total, batch_id, documents, created_at, updated_at`

// ProfileRepository reads and writes the profiles table and its procedures.
type ProfileRepository struct {
	db *sqlx.DB
}

// NewProfileRepository creates a new instance of ProfileRepository.
func NewProfileRepository(db *sqlx.DB) *ProfileRepository {
	return &ProfileRepository{db: db}
}

// List returns every profile ordered by creation.
func (r *ProfileRepository) List(ctx context.Context) ([]models.Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM profiles ORDER BY created_at ASC`
	var profiles []models.Profile
	if err := r.db.SelectContext(ctx, &profiles, query); err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	return profiles, nil
}

// FindByID returns a profile; sql.ErrNoRows when absent.
func (r *ProfileRepository) FindByID(ctx context.Context, id string) (*models.Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM profiles WHERE id = $1 LIMIT 1`
	var profile models.Profile
	if err := r.db.GetContext(ctx, &profile, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, ClassifyProfileError(fmt.Errorf("find profile: %w", err))
	}
	return &profile, nil
}

// UpdateRole sets the role of an existing profile.
func (r *ProfileRepository) UpdateRole(ctx context.Context, id string, role models.Role) error {
	const query = `UPDATE profiles SET role = $2, updated_at = $3 WHERE id = $1`
	return r.execOne(ctx, "update role", query, id, role, time.Now().UTC())
}

// UpdateName sets the display name.
func (r *ProfileRepository) UpdateName(ctx context.Context, id, name string) error {
	const query = `UPDATE profiles SET full_name = $2, updated_at = $3 WHERE id = $1`
	return r.execOne(ctx, "update name", query, id, name, time.Now().UTC())
}

// UpdateAvatar stores the avatar URL.
func (r *ProfileRepository) UpdateAvatar(ctx context.Context, id, url string) error {
	const query = `UPDATE profiles SET avatar_url = $2, updated_at = $3 WHERE id = $1`
	return r.execOne(ctx, "update avatar", query, id, url, time.Now().UTC())
}

// UpdateAssessment records a quiz result.
func (r *ProfileRepository) UpdateAssessment(ctx context.Context, id string, status models.AssessmentStatus, score, total int) error {
	const query = `UPDATE profiles SET assessment_status = $2, assessment_score = $3, assessment_total = $4, updated_at = $5 WHERE id = $1`
	return r.execOne(ctx, "update assessment", query, id, status, score, total, time.Now().UTC())
}

// UpdateAssessmentStatus changes only the status, keeping the recorded score.
func (r *ProfileRepository) UpdateAssessmentStatus(ctx context.Context, id string, status models.AssessmentStatus) error {
	const query = `UPDATE profiles SET assessment_status = $2, updated_at = $3 WHERE id = $1`
	return r.execOne(ctx, "update assessment status", query, id, status, time.Now().UTC())
}

// UpdateDocuments replaces the document checklist.
func (r *ProfileRepository) UpdateDocuments(ctx context.Context, id string, docs models.RequiredDocs) error {
	const query = `UPDATE profiles SET documents = $2, updated_at = $3 WHERE id = $1`
	err := r.execOne(ctx, "update documents", query, id, docs, time.Now().UTC())
	if fix := fixRequired(err, "The 'documents' column is missing from the 'profiles' table. Add a 'documents' column of type 'jsonb'."); fix != nil {
		return fix
	}
	return err
}

// DeleteUser removes the account and its profile through delete_user_by_id.
func (r *ProfileRepository) DeleteUser(ctx context.Context, id string) error {
	const query = `SELECT delete_user_by_id($1)`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		if fix := fixRequired(err, fmt.Sprintf("Could not delete user. The required function 'delete_user_by_id' is missing. Original error: %s", err.Error())); fix != nil {
			return fix
		}
		return fmt.Errorf("delete user: %w", err)
	}
	return nil
}

// EnrollInBatch calls enroll_student_in_batch, which sets batch and status atomically.
func (r *ProfileRepository) EnrollInBatch(ctx context.Context, studentID, batchID string) error {
	const query = `SELECT enroll_student_in_batch($1, $2)`
	if _, err := r.db.ExecContext(ctx, query, studentID, batchID); err != nil {
		if fix := fixRequired(err, "The function 'enroll_student_in_batch' is missing. Apply the database migrations to fix enrollment."); fix != nil {
			return fix
		}
		return fmt.Errorf("enroll student: %w", err)
	}
	return nil
}

func (r *ProfileRepository) execOne(ctx context.Context, op, query string, args ...interface{}) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return requireRow(res)
}
