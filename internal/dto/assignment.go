package dto

import (
	"fmt"

	"github.com/noah-isme/prhi-portal-api/internal/service"
)

// AssignmentRequest creates or edits an assignment. Files lists the already stored file
// names to keep; new files travel as multipart parts named files.
type AssignmentRequest struct {
	Title   string   `json:"title"`
	Module  string   `json:"module"`
	DueDate string   `json:"due_date"`
	Files   []string `json:"files"`
}

// ToDraft parses the due date into an assignment draft.
func (r AssignmentRequest) ToDraft() (service.AssignmentDraft, error) {
	due, err := parseDate(r.DueDate)
	if err != nil {
		return service.AssignmentDraft{}, fmt.Errorf("due_date: %w", err)
	}
	return service.AssignmentDraft{Title: r.Title, Module: r.Module, DueDate: due, Files: r.Files}, nil
}

// AssignStudentsRequest replaces an assignment's recipients.
type AssignStudentsRequest struct {
	Emails []string `json:"emails"`
}

// GradeRequest grades a submission.
type GradeRequest struct {
	Score    string `json:"score"`
	Feedback string `json:"feedback"`
}

// SubmitRequest is a student's written answer; a file may travel as the multipart part file.
type SubmitRequest struct {
	Text string `json:"text" form:"text"`
}
