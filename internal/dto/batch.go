package dto

import (
	"fmt"

	"github.com/noah-isme/prhi-portal-api/internal/service"
)

// BatchRequest creates or edits a training batch.
type BatchRequest struct {
	InstructorName string `json:"instructor_name"`
	StartDate      string `json:"start_date"`
	EndDate        string `json:"end_date"`
}

// ToDraft parses the dates into a batch draft.
func (r BatchRequest) ToDraft() (service.BatchDraft, error) {
	start, err := parseDate(r.StartDate)
	if err != nil {
		return service.BatchDraft{}, fmt.Errorf("start_date: %w", err)
	}
	end, err := parseDate(r.EndDate)
	if err != nil {
		return service.BatchDraft{}, fmt.Errorf("end_date: %w", err)
	}
	return service.BatchDraft{InstructorName: r.InstructorName, StartDate: start, EndDate: end}, nil
}
