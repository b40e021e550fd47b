package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/prhi-portal-api/internal/models"
)

const moduleColumns = `m.id, m.title, m.description, m.duration_days, m.instructor_id, m.created_at`

// ModuleBatch is one module_batch_assignments row.
type ModuleBatch struct {
	ModuleID string `db:"module_id"`
	BatchID  string `db:"batch_id"`
}

// ModuleRepository manages training modules, their lessons and batch assignments.
type ModuleRepository struct {
	db *sqlx.DB
}

// NewModuleRepository creates a new instance of ModuleRepository.
func NewModuleRepository(db *sqlx.DB) *ModuleRepository {
	return &ModuleRepository{db: db}
}

// ListByInstructor returns an instructor's modules, oldest first.
func (r *ModuleRepository) ListByInstructor(ctx context.Context, instructorID string) ([]models.ModuleRow, error) {
	query := `SELECT ` + moduleColumns + ` FROM training_modules m WHERE m.instructor_id = $1 ORDER BY m.created_at ASC`
	var rows []models.ModuleRow
	if err := r.db.SelectContext(ctx, &rows, query, instructorID); err != nil {
		return nil, fmt.Errorf("list instructor modules: %w", err)
	}
	return rows, nil
}

// ListByBatch returns modules assigned to a batch.
func (r *ModuleRepository) ListByBatch(ctx context.Context, batchID string) ([]models.ModuleRow, error) {
	query := `SELECT ` + moduleColumns + ` FROM training_modules m
        JOIN module_batch_assignments mba ON mba.module_id = m.id
        WHERE mba.batch_id = $1 ORDER BY m.created_at ASC`
	var rows []models.ModuleRow
	if err := r.db.SelectContext(ctx, &rows, query, batchID); err != nil {
		if fix := fixRequired(err, "The 'module_batch_assignments' table is missing. Create it with 'module_id' (uuid) and 'batch_id' (uuid) columns to assign modules."); fix != nil {
			return nil, fix
		}
		return nil, fmt.Errorf("list batch modules: %w", err)
	}
	return rows, nil
}

// ListLessons returns lessons for the modules ordered by module and position.
func (r *ModuleRepository) ListLessons(ctx context.Context, moduleIDs []string) ([]models.Lesson, error) {
	if len(moduleIDs) == 0 {
		return nil, nil
	}
	query, args, err := sqlx.In(`SELECT id, module_id, position, title, type, url, duration, file_name, content FROM lessons WHERE module_id IN (?) ORDER BY module_id, position ASC`, moduleIDs)
	if err != nil {
		return nil, fmt.Errorf("build lessons query: %w", err)
	}
	var lessons []models.Lesson
	if err := r.db.SelectContext(ctx, &lessons, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("list lessons: %w", err)
	}
	return lessons, nil
}

// ListBatchAssignments returns the batches each module is assigned to.
func (r *ModuleRepository) ListBatchAssignments(ctx context.Context, moduleIDs []string) ([]ModuleBatch, error) {
	if len(moduleIDs) == 0 {
		return nil, nil
	}
	query, args, err := sqlx.In(`SELECT module_id, batch_id FROM module_batch_assignments WHERE module_id IN (?)`, moduleIDs)
	if err != nil {
		return nil, fmt.Errorf("build module batches query: %w", err)
	}
	var rows []ModuleBatch
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("list module batches: %w", err)
	}
	return rows, nil
}

// Save upserts the module and replaces its lessons in one transaction.
func (r *ModuleRepository) Save(ctx context.Context, module models.ModuleRow, lessons []models.Lesson) error {
	if module.CreatedAt.IsZero() {
		module.CreatedAt = time.Now().UTC()
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	const upsert = `INSERT INTO training_modules (id, title, description, duration_days, instructor_id, created_at)
        VALUES (:id, :title, :description, :duration_days, :instructor_id, :created_at)
        ON CONFLICT (id) DO UPDATE SET title = EXCLUDED.title, description = EXCLUDED.description,
            duration_days = EXCLUDED.duration_days, instructor_id = EXCLUDED.instructor_id`
	if _, err := tx.NamedExecContext(ctx, upsert, module); err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("save module: %w", err)
	}
	if err := r.replaceLessonsTx(ctx, tx, module.ID, lessons); err != nil {
		tx.Rollback() //nolint:errcheck
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit module: %w", err)
	}
	return nil
}

func (r *ModuleRepository) replaceLessonsTx(ctx context.Context, tx *sqlx.Tx, moduleID string, lessons []models.Lesson) error {
	if _, err := tx.ExecContext(ctx, "DELETE FROM lessons WHERE module_id = $1", moduleID); err != nil {
		return fmt.Errorf("clear old lessons: %w", err)
	}
	const insertLesson = `INSERT INTO lessons (id, module_id, position, title, type, url, duration, file_name, content)
        VALUES (:id, :module_id, :position, :title, :type, :url, :duration, :file_name, :content)`
	for i := range lessons {
		lesson := lessons[i]
		if lesson.ID == "" {
			lesson.ID = uuid.NewString()
		}
		lesson.ModuleID = moduleID
		lesson.Position = i
		if _, err := tx.NamedExecContext(ctx, insertLesson, lesson); err != nil {
			return fmt.Errorf("save lessons: %w", err)
		}
	}
	return nil
}

// Delete removes a module; lessons and batch assignments cascade.
func (r *ModuleRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM training_modules WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete module: %w", err)
	}
	return nil
}

// ReplaceBatches sets the module's batch assignments to exactly batchIDs.
func (r *ModuleRepository) ReplaceBatches(ctx context.Context, moduleID string, batchIDs []string) error {
	const missingTable = "The 'module_batch_assignments' table is missing. Create it with 'module_id' (uuid) and 'batch_id' (uuid) columns to assign modules."
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM module_batch_assignments WHERE module_id = $1`, moduleID); err != nil {
		tx.Rollback() //nolint:errcheck
		if fix := fixRequired(err, missingTable); fix != nil {
			return fix
		}
		return fmt.Errorf("clear old assignments: %w", err)
	}
	seen := make(map[string]struct{}, len(batchIDs))
	for _, batchID := range batchIDs {
		if _, dup := seen[batchID]; dup {
			continue
		}
		seen[batchID] = struct{}{}
		if _, err := tx.ExecContext(ctx, `INSERT INTO module_batch_assignments (module_id, batch_id) VALUES ($1, $2)`, moduleID, batchID); err != nil {
			tx.Rollback() //nolint:errcheck
			return fmt.Errorf("save new assignments: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit module batches: %w", err)
	}
	return nil
}
