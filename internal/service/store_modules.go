package service

import (
	"bytes"
	"context"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/prhi-portal-api/internal/models"
)

// LessonDraft is one lesson of a module being edited. Upload is set when a new file was chosen.
type LessonDraft struct {
	Title    string            `json:"title" validate:"required"`
	Type     models.LessonType `json:"type" validate:"required,oneof=video reading quiz file"`
	URL      string            `json:"url"`
	Duration string            `json:"duration"`
	FileName string            `json:"file_name"`
	Content  string            `json:"content"`
	Upload   *models.Upload    `json:"-"`
}

// ModuleDraft is the editable part of a training module.
type ModuleDraft struct {
	Title        string        `json:"title" validate:"required"`
	Description  string        `json:"description" validate:"required"`
	DurationDays int           `json:"duration_days" validate:"required,gt=0"`
	Lessons      []LessonDraft `json:"lessons" validate:"dive"`
}

// SaveTrainingModule creates or updates the current instructor's module. Lesson files are uploaded
// concurrently, then the module row and its ordered lessons are written together.
func (s *Store) SaveTrainingModule(ctx context.Context, draft ModuleDraft, editingID string) error {
	user, err := s.requireRole(models.RoleInstructor, "Only instructors can save modules.")
	if err != nil {
		return err
	}

	moduleID := editingID
	if moduleID == "" {
		moduleID = uuid.NewString()
	} else if err := s.requireOwnModule(editingID); err != nil {
		return err
	}

	lessons := make([]models.Lesson, len(draft.Lessons))
	g, gctx := errgroup.WithContext(ctx)
	for i, ld := range draft.Lessons {
		lessons[i] = models.Lesson{
			ModuleID: moduleID,
			Position: i,
			Title:    ld.Title,
			Type:     ld.Type,
			URL:      optional(ld.URL),
			Duration: ld.Duration,
			FileName: optional(ld.FileName),
			Content:  optional(ld.Content),
		}
		if ld.Type != models.LessonFile || ld.Upload == nil {
			continue
		}
		i, upload := i, *ld.Upload
		g.Go(func() error {
			key := fmt.Sprintf("modules/%s/lessons/%s", moduleID, upload.FileName)
			if err := s.gw.Files.Put(gctx, s.gw.Buckets.Public, key, bytes.NewReader(upload.Data), upload.Size(), upload.ContentType); err != nil {
				return failure(err, "Failed to upload lesson file %s", upload.FileName)
			}
			url := s.gw.Files.PublicURL(s.gw.Buckets.Public, key)
			name := upload.FileName
			lessons[i].URL = &url
			lessons[i].FileName = &name
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	row := models.ModuleRow{
		ID:           moduleID,
		Title:        draft.Title,
		Description:  draft.Description,
		DurationDays: draft.DurationDays,
		InstructorID: user.ID,
	}
	if err := s.gw.Modules.Save(ctx, row, lessons); err != nil {
		if editingID != "" {
			return failure(err, "Failed to update module")
		}
		return failure(err, "Failed to create module")
	}

	s.refresh(ctx, CollectionModules)
	return nil
}

// DeleteTrainingModule removes a module with its lessons.
func (s *Store) DeleteTrainingModule(ctx context.Context, id string) error {
	if _, err := s.requireRole(models.RoleInstructor, "Only instructors can delete modules."); err != nil {
		return err
	}
	if err := s.requireOwnModule(id); err != nil {
		return err
	}
	if err := s.gw.Modules.Delete(ctx, id); err != nil {
		return failure(err, "Failed to delete module")
	}
	s.refresh(ctx, CollectionModules)
	return nil
}

// AssignModuleToBatches replaces the set of batches a module is taught in.
func (s *Store) AssignModuleToBatches(ctx context.Context, moduleID string, batchIDs []string) error {
	if _, err := s.requireRole(models.RoleInstructor, "Only instructors can assign modules."); err != nil {
		return err
	}
	if err := s.requireOwnModule(moduleID); err != nil {
		return err
	}
	if err := s.gw.Modules.ReplaceBatches(ctx, moduleID, batchIDs); err != nil {
		return failure(err, "Failed to save new assignments")
	}
	s.refresh(ctx, CollectionModules)
	return nil
}

func (s *Store) hasModule(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, m := range s.modules {
		if m.ID == id {
			return true
		}
	}
	return false
}

func (s *Store) moduleByTitle(title string) (models.TrainingModule, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, m := range s.modules {
		if m.Title == title {
			return m.Clone(), true
		}
	}
	return models.TrainingModule{}, false
}

func optional(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}
