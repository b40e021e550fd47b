package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/prhi-portal-api/internal/models"
	"github.com/noah-isme/prhi-portal-api/internal/realtime"
	appErrors "github.com/noah-isme/prhi-portal-api/pkg/errors"
	"github.com/noah-isme/prhi-portal-api/pkg/events"
)

// BatchDraft is the editable part of a batch.
type BatchDraft struct {
	InstructorName string    `json:"instructor_name" validate:"required"`
	StartDate      time.Time `json:"start_date" validate:"required"`
	EndDate        time.Time `json:"end_date" validate:"required,gtefield=StartDate"`
}

// SaveBatch creates a batch or, when editingID is set, changes its instructor and dates.
// A new batch starts In Progress unless its instructor already runs one. A running batch moved
// to an instructor who already runs another batch goes back to Upcoming.
func (s *Store) SaveBatch(ctx context.Context, draft BatchDraft, editingID string) error {
	instructor, ok := s.instructorByName(draft.InstructorName)
	if !ok {
		return appErrors.Clone(appErrors.ErrNotFound, "Instructor not found. Please ensure an instructor is selected.")
	}
	input := models.BatchInput{InstructorID: instructor.ID, StartDate: draft.StartDate, EndDate: draft.EndDate}

	if editingID != "" {
		current, ok := s.Batch(editingID)
		if !ok {
			return appErrors.Clone(appErrors.ErrNotFound, "Batch not found.")
		}
		demote := false
		if current.Status == models.BatchInProgress && !sameInstructor(current, instructor.ID) {
			running, err := s.gw.Batches.HasInProgress(ctx, instructor.ID)
			if err != nil {
				return failure(err, "Could not check for existing batches")
			}
			demote = running
		}
		if err := s.gw.Batches.Update(ctx, editingID, input); err != nil {
			return failure(err, "Failed to update batch")
		}
		if demote {
			if err := s.gw.Batches.UpdateStatus(ctx, editingID, models.BatchUpcoming); err != nil {
				return failure(err, "Failed to update batch")
			}
		}
		s.announce(ctx, tableBatches, realtime.OpUpdate, editingID)
	} else {
		running, err := s.gw.Batches.HasInProgress(ctx, instructor.ID)
		if err != nil {
			return failure(err, "Could not check for existing batches")
		}
		input.Status = models.BatchInProgress
		if running {
			input.Status = models.BatchUpcoming
		}
		input.Name = nextBatchName(s.Batches(), s.now())
		id, err := s.gw.Batches.Create(ctx, input)
		if err != nil {
			return failure(err, "Failed to create batch")
		}
		s.announce(ctx, tableBatches, realtime.OpInsert, id)
	}

	s.refresh(ctx, CollectionBatches, CollectionUsers)
	return nil
}

// DeleteBatch removes a batch.
func (s *Store) DeleteBatch(ctx context.Context, id string) error {
	if err := s.gw.Batches.Delete(ctx, id); err != nil {
		return failure(err, "Failed to delete batch")
	}
	s.announce(ctx, tableBatches, realtime.OpDelete, id)
	s.refresh(ctx, CollectionBatches, CollectionUsers)
	return nil
}

// CompleteBatch marks a batch Completed and starts the instructor's earliest Upcoming batch.
// Anything failing after the batch was completed is reported as a partial failure.
func (s *Store) CompleteBatch(ctx context.Context, id string) error {
	batch, ok := s.Batch(id)
	if !ok {
		return appErrors.Clone(appErrors.ErrNotFound, "Batch not found.")
	}
	if batch.Status == models.BatchCompleted {
		return appErrors.Clone(appErrors.ErrPreconditionFailed, "Batch is already completed.")
	}
	instructor, ok := s.instructorByName(batch.InstructorName)
	if !ok {
		return appErrors.Clone(appErrors.ErrNotFound, "Instructor for the batch not found.")
	}

	if err := s.gw.Batches.UpdateStatus(ctx, id, models.BatchCompleted); err != nil {
		return failure(err, "Failed to complete batch")
	}
	s.announce(ctx, tableBatches, realtime.OpUpdate, id)
	s.events.Emit(events.TypeBatchCompleted, id, "", "", map[string]string{"batch_id": id, "batch_name": batch.Name})

	var promoteErr error
	if batch.Status == models.BatchInProgress {
		promoteErr = s.promoteNextBatch(ctx, instructor.ID)
	}
	s.refresh(ctx, CollectionBatches, CollectionUsers)
	if promoteErr != nil {
		s.logger.Error("next batch not started", zap.String("batch_id", id), zap.Error(promoteErr))
		partial := appErrors.Wrap(promoteErr, appErrors.ErrPartialFailure.Code, appErrors.ErrPartialFailure.Status,
			"Batch completed, but failed to automatically start the next one.")
		s.notifier.ShowCritical(partial.Message)
		return partial
	}
	return nil
}

// promoteNextBatch starts the instructor's earliest Upcoming batch unless one is already running.
func (s *Store) promoteNextBatch(ctx context.Context, instructorID string) error {
	running, err := s.gw.Batches.HasInProgress(ctx, instructorID)
	if err != nil {
		return err
	}
	if running {
		return nil
	}
	nextID, err := s.gw.Batches.NextUpcoming(ctx, instructorID)
	if err != nil {
		return err
	}
	if nextID == "" {
		return nil
	}
	if err := s.gw.Batches.UpdateStatus(ctx, nextID, models.BatchInProgress); err != nil {
		return fmt.Errorf("promote batch %s: %w", nextID, err)
	}
	s.announce(ctx, tableBatches, realtime.OpUpdate, nextID)
	return nil
}

func sameInstructor(b models.TrainingBatch, instructorID string) bool {
	return b.InstructorID != nil && *b.InstructorID == instructorID
}

func (s *Store) instructorByName(name string) (models.User, bool) {
	for _, u := range s.Instructors() {
		if u.Name == name {
			return u, true
		}
	}
	return models.User{}, false
}

// nextBatchName numbers a new batch one past the highest existing "Batch N" name.
func nextBatchName(batches []models.TrainingBatch, now time.Time) string {
	next := 1
	if len(batches) > 0 {
		highest, found := 0, false
		for _, b := range batches {
			parts := strings.Fields(b.Name)
			if len(parts) < 2 {
				continue
			}
			n, err := strconv.Atoi(parts[1])
			if err != nil {
				continue
			}
			if !found || n > highest {
				highest, found = n, true
			}
		}
		if found {
			next = highest + 1
		}
	}
	return fmt.Sprintf("Batch %d - %d", next, now.Year())
}
