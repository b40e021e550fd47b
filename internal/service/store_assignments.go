package service

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/prhi-portal-api/internal/models"
	"github.com/noah-isme/prhi-portal-api/internal/realtime"
	appErrors "github.com/noah-isme/prhi-portal-api/pkg/errors"
	"github.com/noah-isme/prhi-portal-api/pkg/events"
)

// AssignmentDraft is the editable part of an assignment. Files lists the already stored file
// names to keep when editing.
type AssignmentDraft struct {
	Title   string    `json:"title" validate:"required"`
	Module  string    `json:"module" validate:"required"`
	DueDate time.Time `json:"due_date" validate:"required"`
	Files   []string  `json:"files"`
}

// SaveAssignment creates or updates an assignment of the current instructor, uploading new files
// to the public bucket.
func (s *Store) SaveAssignment(ctx context.Context, draft AssignmentDraft, editingID string, uploads []models.Upload) error {
	user, err := s.requireRole(models.RoleInstructor, "Only instructors can save assignments.")
	if err != nil {
		return err
	}
	if editingID != "" {
		if err := s.requireOwnAssignment(editingID); err != nil {
			return err
		}
	}
	module, ok := s.moduleByTitle(draft.Module)
	if !ok {
		return appErrors.Clone(appErrors.ErrNotFound, "Selected module not found.")
	}

	id := editingID
	if id == "" {
		id = uuid.NewString()
	}

	uploaded := make(models.FileRefs, len(uploads))
	g, gctx := errgroup.WithContext(ctx)
	for i, upload := range uploads {
		i, upload := i, upload
		g.Go(func() error {
			key := fmt.Sprintf("assignments/%s/%s", id, upload.FileName)
			if err := s.gw.Files.Put(gctx, s.gw.Buckets.Public, key, bytes.NewReader(upload.Data), upload.Size(), upload.ContentType); err != nil {
				return failure(err, "Failed to upload %s", upload.FileName)
			}
			uploaded[i] = models.FileRef{Name: upload.FileName, URL: s.gw.Files.PublicURL(s.gw.Buckets.Public, key)}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	files := uploaded
	if editingID != "" {
		existing, err := s.gw.Assignments.FindFiles(ctx, editingID)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "Could not fetch existing assignment files.")
		}
		keep := make(map[string]struct{}, len(draft.Files))
		for _, name := range draft.Files {
			keep[name] = struct{}{}
		}
		files = make(models.FileRefs, 0, len(existing)+len(uploaded))
		for _, f := range existing {
			if _, ok := keep[f.Name]; ok {
				files = append(files, f)
			}
		}
		files = append(files, uploaded...)
	}

	input := models.AssignmentInput{
		ID:           id,
		Title:        draft.Title,
		ModuleID:     module.ID,
		InstructorID: user.ID,
		DueDate:      draft.DueDate,
		Files:        files,
	}
	if editingID != "" {
		if err := s.gw.Assignments.Update(ctx, input); err != nil {
			return failure(err, "Failed to update assignment")
		}
		s.announce(ctx, tableAssignments, realtime.OpUpdate, id)
	} else {
		if err := s.gw.Assignments.Create(ctx, input); err != nil {
			return failure(err, "Failed to create assignment")
		}
		s.announce(ctx, tableAssignments, realtime.OpInsert, id)
	}

	s.refresh(ctx, CollectionAssignments)
	return nil
}

// DeleteAssignment removes an assignment with its submissions. Stored files are removed last and
// a cleanup failure does not fail the deletion.
func (s *Store) DeleteAssignment(ctx context.Context, id string) error {
	if _, err := s.requireRole(models.RoleInstructor, "Only instructors can delete assignments."); err != nil {
		return err
	}
	if err := s.requireOwnAssignment(id); err != nil {
		return err
	}
	if _, err := s.gw.Submissions.DeleteByAssignment(ctx, id); err != nil {
		return failure(err, "Failed to delete associated submissions")
	}

	folder := fmt.Sprintf("assignments/%s/", id)
	files, listErr := s.gw.Files.List(ctx, s.gw.Buckets.Public, folder)
	if listErr != nil {
		s.notifier.ShowInfo("Assignment deleted, but failed to clean up some storage files.")
		s.logger.Warn("could not list assignment files for deletion", zap.String("assignment_id", id), zap.Error(listErr))
	}

	if err := s.gw.Assignments.Delete(ctx, id); err != nil {
		return failure(err, "Failed to delete assignment")
	}
	s.announce(ctx, tableAssignments, realtime.OpDelete, id)

	if len(files) > 0 {
		keys := make([]string, len(files))
		for i, f := range files {
			keys[i] = f.Key
		}
		if err := s.gw.Files.Remove(ctx, s.gw.Buckets.Public, keys...); err != nil {
			s.notifier.ShowInfo("Assignment deleted, but failed to clean up some storage files.")
			s.logger.Warn("failed to delete assignment files", zap.String("assignment_id", id), zap.Error(err))
		}
	}

	s.refresh(ctx, CollectionAssignments, CollectionPendingSubmissions)
	return nil
}

// AssignStudentsToAssignment replaces the assignment's recipients.
func (s *Store) AssignStudentsToAssignment(ctx context.Context, id string, emails []string) error {
	if _, err := s.requireRole(models.RoleInstructor, "Only instructors can assign students."); err != nil {
		return err
	}
	if err := s.requireOwnAssignment(id); err != nil {
		return err
	}
	if err := s.gw.Assignments.AssignStudents(ctx, id, emails); err != nil {
		return failure(err, "Failed to assign students")
	}
	s.announce(ctx, tableAssignments, realtime.OpUpdate, id)
	s.refresh(ctx, CollectionAssignments)
	return nil
}

// GetSubmissionsForAssignment lists an assignment's submissions, newest first.
func (s *Store) GetSubmissionsForAssignment(ctx context.Context, id string) ([]models.StudentSubmission, error) {
	if _, err := s.requireRole(models.RoleInstructor, "Only instructors can view submissions."); err != nil {
		return nil, err
	}
	if err := s.requireOwnAssignment(id); err != nil {
		return nil, err
	}
	rows, err := s.gw.Submissions.ListForAssignment(ctx, id)
	if err != nil {
		return nil, failure(err, "Failed to fetch submissions")
	}
	out := make([]models.StudentSubmission, 0, len(rows))
	for _, row := range rows {
		out = append(out, models.StudentSubmission{
			SubmissionID:     row.ID,
			StudentName:      row.StudentName,
			StudentAvatarURL: row.StudentAvatarURL,
			SubmissionDate:   row.SubmittedAt,
			Submission:       models.SubmissionContent{Text: row.Text, FileName: row.FileName, FilePath: row.FilePath},
			Status:           row.Status,
			Score:            row.Score,
			Feedback:         row.Feedback,
		})
	}
	return out, nil
}

// SubmitAssignment records the current student's work. An attached file goes to the private bucket.
func (s *Store) SubmitAssignment(ctx context.Context, assignmentID, text string, upload *models.Upload) error {
	user, err := s.requireRole(models.RoleStudentApplicant, "Only students can submit assignments.")
	if err != nil {
		return err
	}
	if err := s.requireOwnAssignment(assignmentID); err != nil {
		return err
	}

	submission := &models.Submission{
		AssignmentID: assignmentID,
		StudentID:    user.ID,
		Text:         text,
		Status:       models.SubmissionPendingReview,
	}
	if upload != nil {
		key := fmt.Sprintf("submissions/%s/%s/%s", assignmentID, user.ID, upload.FileName)
		if err := s.gw.Files.Put(ctx, s.gw.Buckets.Private, key, bytes.NewReader(upload.Data), upload.Size(), upload.ContentType); err != nil {
			return failure(err, "Failed to upload submission file")
		}
		name := upload.FileName
		submission.FileName = &name
		submission.FilePath = &key
	}

	if err := s.gw.Submissions.Create(ctx, submission); err != nil {
		return failure(err, "Failed to submit assignment")
	}
	s.announce(ctx, tableSubmissions, realtime.OpInsert, submission.ID)
	s.refresh(ctx, CollectionAssignments)
	return nil
}

// GradeSubmission scores a submission and tells the student.
func (s *Store) GradeSubmission(ctx context.Context, id, score, feedback string) error {
	if _, err := s.requireRole(models.RoleInstructor, "Only instructors can grade submissions."); err != nil {
		return err
	}
	if err := s.requirePendingSubmission(id); err != nil {
		return err
	}
	graded, err := s.gw.Submissions.Grade(ctx, id, score, feedback)
	if err != nil {
		return failure(err, "Failed to grade submission")
	}
	s.announce(ctx, tableSubmissions, realtime.OpUpdate, id)
	s.events.Emit(events.TypeSubmissionGraded, id, graded.StudentEmail,
		fmt.Sprintf("Your submission for \"%s\" has been graded: %s.", graded.AssignmentTitle, score),
		map[string]string{"submission_id": id, "score": score, "student_email": graded.StudentEmail})

	s.refresh(ctx, CollectionPendingSubmissions, CollectionAssignments)
	return nil
}
