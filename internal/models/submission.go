package models

import "time"

// SubmissionStatus is the grading state of a submission.
type SubmissionStatus string

const (
	SubmissionPendingReview SubmissionStatus = "Pending Review"
	SubmissionGraded        SubmissionStatus = "Graded"
)

// OnTimeStatus compares submitted_at with the due date.
type OnTimeStatus string

const (
	OnTime OnTimeStatus = "On Time"
	Late   OnTimeStatus = "Late"
)

// Submission is a row of the submissions table.
type Submission struct {
	ID           string           `db:"id" json:"id"`
	AssignmentID string           `db:"assignment_id" json:"assignment_id"`
	StudentID    string           `db:"student_id" json:"student_id"`
	Text         string           `db:"text_content" json:"text"`
	FileName     *string          `db:"file_name" json:"file_name,omitempty"`
	FilePath     *string          `db:"file_url" json:"file_path,omitempty"`
	Status       SubmissionStatus `db:"status" json:"status"`
	Score        *string          `db:"score" json:"score,omitempty"`
	Feedback     *string          `db:"feedback" json:"feedback,omitempty"`
	SubmittedAt  time.Time        `db:"submitted_at" json:"submitted_at"`
}

// SubmissionContent is the student-authored part of a submission.
type SubmissionContent struct {
	Text     string  `json:"text"`
	FileName *string `json:"file_name,omitempty"`
	FilePath *string `json:"file_path,omitempty"`
}

// PendingSubmissionRow joins a submission with its assignment and student.
type PendingSubmissionRow struct {
	ID               string    `db:"id"`
	Text             string    `db:"text_content"`
	FileName         *string   `db:"file_name"`
	FilePath         *string   `db:"file_url"`
	SubmittedAt      time.Time `db:"submitted_at"`
	AssignmentID     string    `db:"assignment_id"`
	AssignmentTitle  string    `db:"assignment_title"`
	DueDate          time.Time `db:"due_date"`
	StudentID        string    `db:"student_id"`
	StudentName      string    `db:"student_name"`
	StudentEmail     string    `db:"student_email"`
	StudentAvatarURL *string   `db:"student_avatar_url"`
}

// PendingSubmission is the instructor's grading queue entry.
type PendingSubmission struct {
	SubmissionID        string            `json:"submission_id"`
	StudentName         string            `json:"student_name"`
	StudentEmail        string            `json:"student_email"`
	StudentAvatarURL    *string           `json:"student_avatar_url"`
	AssignmentTitle     string            `json:"assignment_title"`
	Submission          SubmissionContent `json:"submission"`
	SubmissionTimestamp time.Time         `json:"submission_timestamp"`
	OnTimeStatus        OnTimeStatus      `json:"on_time_status"`
}

// PendingFromRow maps a joined row; on time means submitted no later than the due date.
func PendingFromRow(row PendingSubmissionRow) PendingSubmission {
	status := OnTime
	if row.SubmittedAt.After(row.DueDate) {
		status = Late
	}
	return PendingSubmission{
		SubmissionID:     row.ID,
		StudentName:      row.StudentName,
		StudentEmail:     row.StudentEmail,
		StudentAvatarURL: row.StudentAvatarURL,
		AssignmentTitle:  row.AssignmentTitle,
		Submission: SubmissionContent{
			Text:     row.Text,
			FileName: row.FileName,
			FilePath: row.FilePath,
		},
		SubmissionTimestamp: row.SubmittedAt,
		OnTimeStatus:        status,
	}
}

// StudentSubmissionRow joins a submission with the student's profile.
type StudentSubmissionRow struct {
	ID               string           `db:"id"`
	SubmittedAt      time.Time        `db:"submitted_at"`
	Text             string           `db:"text_content"`
	FileName         *string          `db:"file_name"`
	FilePath         *string          `db:"file_url"`
	Status           SubmissionStatus `db:"status"`
	Score            *string          `db:"score"`
	Feedback         *string          `db:"feedback"`
	StudentName      string           `db:"student_name"`
	StudentAvatarURL *string          `db:"student_avatar_url"`
}

// StudentSubmission is one row of an assignment's grading list.
type StudentSubmission struct {
	SubmissionID     string            `json:"submission_id"`
	StudentName      string            `json:"student_name"`
	StudentAvatarURL *string           `json:"student_avatar_url"`
	SubmissionDate   time.Time         `json:"submission_date"`
	Submission       SubmissionContent `json:"submission"`
	Status           SubmissionStatus  `json:"status"`
	Score            *string           `json:"score,omitempty"`
	Feedback         *string           `json:"feedback,omitempty"`
}
