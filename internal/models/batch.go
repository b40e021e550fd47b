package models

import "time"

// BatchStatus is the lifecycle state of a training batch.
type BatchStatus string

const (
	BatchUpcoming   BatchStatus = "Upcoming"
	BatchInProgress BatchStatus = "In Progress"
	BatchCompleted  BatchStatus = "Completed"
)

// BatchRow is a training_batches row joined with the instructor's name.
type BatchRow struct {
	ID             string      `db:"id"`
	Name           string      `db:"name"`
	InstructorID   *string     `db:"instructor_id"`
	InstructorName *string     `db:"instructor_name"`
	StartDate      time.Time   `db:"start_date"`
	EndDate        time.Time   `db:"end_date"`
	Status         BatchStatus `db:"status"`
	CreatedAt      time.Time   `db:"created_at"`
}

// TrainingBatch is a cohort of enrolled applicants led by one instructor.
type TrainingBatch struct {
	ID             string      `json:"id"`
	Name           string      `json:"name"`
	InstructorID   *string     `json:"instructor_id,omitempty"`
	InstructorName string      `json:"instructor_name"`
	StartDate      time.Time   `json:"start_date"`
	EndDate        time.Time   `json:"end_date"`
	Status         BatchStatus `json:"status"`
	StudentEmails  []string    `json:"student_emails"`
}

// Active reports whether the batch is Upcoming or In Progress.
func (b TrainingBatch) Active() bool {
	return b.Status == BatchUpcoming || b.Status == BatchInProgress
}

// Clone deep-copies the batch.
func (b TrainingBatch) Clone() TrainingBatch {
	out := b
	out.StudentEmails = append([]string(nil), b.StudentEmails...)
	return out
}

// BatchInput carries the fields written when creating or editing a batch.
type BatchInput struct {
	Name         string
	InstructorID string
	StartDate    time.Time
	EndDate      time.Time
	Status       BatchStatus
}
