package dto

import (
	"github.com/noah-isme/prhi-portal-api/internal/models"
	"github.com/noah-isme/prhi-portal-api/internal/service"
	"github.com/noah-isme/prhi-portal-api/pkg/export"
)

// EnrollRequest enrolls an applicant in a batch.
type EnrollRequest struct {
	BatchID string `json:"batch_id"`
}

// DocumentReviewRequest approves or rejects one uploaded document.
type DocumentReviewRequest struct {
	Document string `json:"document" binding:"required"`
	Approve  bool   `json:"approve"`
	Reason   string `json:"reason"`
}

// QuizSubmission carries one answer per placement question, in order.
type QuizSubmission struct {
	Answers []string `json:"answers"`
}

// InstructorRequest creates an instructor account.
type InstructorRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// ToInput maps the request onto the account dialog input.
func (r InstructorRequest) ToInput() service.InstructorAccountInput {
	return service.InstructorAccountInput{Name: r.Name, Email: r.Email, Password: r.Password}
}

// ResumeRequest is the resume builder form.
type ResumeRequest struct {
	export.Resume
}

// SignedURLResponse returns a time-limited document link.
type SignedURLResponse struct {
	URL string `json:"url"`
}

// InboxResponse lists a user's in-app notifications.
type InboxResponse struct {
	Items     []models.InAppNotification `json:"items"`
	HasUnread bool                       `json:"has_unread"`
}
