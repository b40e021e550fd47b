package workflow

import (
	"context"
	"fmt"
	"strings"

	"github.com/noah-isme/prhi-portal-api/internal/models"
	"github.com/noah-isme/prhi-portal-api/internal/service"
)

// Editors builds the portal's forms against one Store and notification channel.
type Editors struct {
	store    *service.Store
	sessions *service.SessionManager
	notifier Notifier
}

// NewEditors binds the editors to a portal.
func NewEditors(store *service.Store, sessions *service.SessionManager, notifier Notifier) *Editors {
	return &Editors{store: store, sessions: sessions, notifier: notifier}
}

// ForPortal binds the editors to p.
func ForPortal(p *service.Portal) *Editors {
	return NewEditors(p.Store, p.Sessions, p.Notifier)
}

// Batch opens the batch editor. An empty editingID creates a batch.
func (e *Editors) Batch(draft service.BatchDraft, editingID string) *Form[service.BatchDraft] {
	return NewForm(draft, func(ctx context.Context, d service.BatchDraft) error {
		return e.store.SaveBatch(ctx, d, editingID)
	}, Options[service.BatchDraft]{
		Notifier: e.notifier,
		Success:  func(service.BatchDraft) string { return "Batch saved successfully." },
	})
}

// Module opens the module editor.
func (e *Editors) Module(draft service.ModuleDraft, editingID string) *Form[service.ModuleDraft] {
	return NewForm(draft, func(ctx context.Context, d service.ModuleDraft) error {
		return e.store.SaveTrainingModule(ctx, d, editingID)
	}, Options[service.ModuleDraft]{
		Notifier: e.notifier,
		Success:  func(service.ModuleDraft) string { return "Module saved successfully!" },
	})
}

// ModuleBatches is the batch assignment dialog of a module.
type ModuleBatches struct {
	ModuleID string   `validate:"required"`
	BatchIDs []string `validate:"dive,required"`
}

// ModuleBatches opens the dialog assigning a module to batches.
func (e *Editors) ModuleBatches(draft ModuleBatches) *Form[ModuleBatches] {
	return NewForm(draft, func(ctx context.Context, d ModuleBatches) error {
		return e.store.AssignModuleToBatches(ctx, d.ModuleID, d.BatchIDs)
	}, Options[ModuleBatches]{
		Notifier: e.notifier,
		Success:  func(ModuleBatches) string { return "Module batch assignments updated successfully!" },
	})
}

// AssignmentEdit is an assignment draft with the files chosen in this edit.
type AssignmentEdit struct {
	Draft   service.AssignmentDraft
	Uploads []models.Upload
}

// Assignment opens the assignment editor.
func (e *Editors) Assignment(draft AssignmentEdit, editingID string) *Form[AssignmentEdit] {
	return NewForm(draft, func(ctx context.Context, d AssignmentEdit) error {
		return e.store.SaveAssignment(ctx, d.Draft, editingID, d.Uploads)
	}, Options[AssignmentEdit]{
		Notifier: e.notifier,
		Success:  func(AssignmentEdit) string { return "Assignment saved successfully!" },
	})
}

// AssignmentStudents is the recipient picker of an assignment.
type AssignmentStudents struct {
	AssignmentID string   `validate:"required"`
	Emails       []string `validate:"dive,required,email"`
}

// AssignmentStudents opens the recipient picker.
func (e *Editors) AssignmentStudents(draft AssignmentStudents) *Form[AssignmentStudents] {
	return NewForm(draft, func(ctx context.Context, d AssignmentStudents) error {
		return e.store.AssignStudentsToAssignment(ctx, d.AssignmentID, d.Emails)
	}, Options[AssignmentStudents]{
		Notifier: e.notifier,
		Success: func(d AssignmentStudents) string {
			return fmt.Sprintf("Assignment updated for %d students.", len(d.Emails))
		},
	})
}

// Grade is the grading panel draft.
type Grade struct {
	SubmissionID string `validate:"required"`
	StudentName  string
	Score        string `validate:"required"`
	Feedback     string
}

// Grading opens the grading panel for one submission.
func (e *Editors) Grading(draft Grade) *Form[Grade] {
	return NewForm(draft, func(ctx context.Context, d Grade) error {
		return e.store.GradeSubmission(ctx, d.SubmissionID, strings.TrimSpace(d.Score), d.Feedback)
	}, Options[Grade]{
		Notifier: e.notifier,
		Success: func(d Grade) string {
			if d.StudentName == "" {
				return "Grade saved successfully!"
			}
			return fmt.Sprintf("Grade saved for %s.", d.StudentName)
		},
	})
}

// Enrollment is the enrollment dialog draft.
type Enrollment struct {
	ApplicantID   string `validate:"required"`
	ApplicantName string
	BatchID       string `validate:"required"`
}

// Enrollment opens the dialog enrolling an applicant in a batch.
func (e *Editors) Enrollment(draft Enrollment) *Form[Enrollment] {
	return NewForm(draft, func(ctx context.Context, d Enrollment) error {
		return e.store.EnrollStudent(ctx, d.ApplicantID, d.BatchID)
	}, Options[Enrollment]{
		Notifier: e.notifier,
		Success: func(d Enrollment) string {
			return fmt.Sprintf("%s has been enrolled successfully.", d.ApplicantName)
		},
	})
}

// Instructor opens the dialog creating an instructor account.
func (e *Editors) Instructor(draft service.InstructorAccountInput) *Form[service.InstructorAccountInput] {
	return NewForm(draft, func(ctx context.Context, d service.InstructorAccountInput) error {
		return e.sessions.CreateInstructorAccount(ctx, d)
	}, Options[service.InstructorAccountInput]{
		Notifier: e.notifier,
		Success: func(d service.InstructorAccountInput) string {
			return fmt.Sprintf("Instructor %s created successfully.", d.Name)
		},
	})
}
