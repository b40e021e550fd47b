package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"
)

// AssignmentStatus is the student-side projection of an assignment.
type AssignmentStatus string

const (
	AssignmentUpcoming      AssignmentStatus = "Upcoming"
	AssignmentSubmitted     AssignmentStatus = "Submitted"
	AssignmentGraded        AssignmentStatus = "Graded"
	AssignmentPendingReview AssignmentStatus = "Pending Review"
)

// UncategorizedModule labels assignments whose module was removed.
const UncategorizedModule = "Uncategorized"

// FileRef names a stored file and its public URL.
type FileRef struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// FileRefs is the JSONB file_urls column.
type FileRefs []FileRef

// Names lists the file names in order.
func (f FileRefs) Names() []string {
	names := make([]string, len(f))
	for i, ref := range f {
		names[i] = ref.Name
	}
	return names
}

// Value implements driver.Valuer; nil encodes as an empty array.
func (f FileRefs) Value() (driver.Value, error) {
	if f == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(f)
}

// Scan implements sql.Scanner.
func (f *FileRefs) Scan(src interface{}) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*f = FileRefs{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("unsupported file_urls type %T", src)
	}
	if len(raw) == 0 || string(raw) == "null" {
		*f = FileRefs{}
		return nil
	}
	return json.Unmarshal(raw, f)
}

// AssignmentRow is an assignments row joined with its module title.
type AssignmentRow struct {
	ID           string         `db:"id"`
	Title        string         `db:"title"`
	ModuleID     *string        `db:"module_id"`
	ModuleTitle  *string        `db:"module_title"`
	InstructorID string         `db:"instructor_id"`
	DueDate      time.Time      `db:"due_date"`
	FileURLs     FileRefs       `db:"file_urls"`
	AssignedTo   pq.StringArray `db:"assigned_to_emails"`
	CreatedAt    time.Time      `db:"created_at"`
}

// StudentAssignmentRow is one row returned by get_student_assignments.
type StudentAssignmentRow struct {
	ID          string    `db:"id"`
	Title       string    `db:"title"`
	DueDate     time.Time `db:"due_date"`
	FileURLs    FileRefs  `db:"file_urls"`
	ModuleID    *string   `db:"module_id"`
	ModuleTitle *string   `db:"module_title"`
}

// SubmissionSummary is the student's own submission attached to an assignment.
type SubmissionSummary struct {
	Text        string    `json:"text"`
	FileName    *string   `json:"file_name,omitempty"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// Assignment is the role-dependent projection held by the store.
type Assignment struct {
	ID         string             `json:"id"`
	Title      string             `json:"title"`
	Module     string             `json:"module"`
	ModuleID   *string            `json:"module_id,omitempty"`
	DueDate    time.Time          `json:"due_date"`
	Files      FileRefs           `json:"files"`
	AssignedTo []string           `json:"assigned_to,omitempty"`
	Status     AssignmentStatus   `json:"status"`
	Submission *SubmissionSummary `json:"submission,omitempty"`
	Score      *string            `json:"score,omitempty"`
	Feedback   *string            `json:"feedback,omitempty"`
}

// FileNames lists the attached file names.
func (a Assignment) FileNames() []string {
	return a.Files.Names()
}

// Clone deep-copies the assignment.
func (a Assignment) Clone() Assignment {
	out := a
	out.Files = append(FileRefs(nil), a.Files...)
	out.AssignedTo = append([]string(nil), a.AssignedTo...)
	if a.Submission != nil {
		sub := *a.Submission
		out.Submission = &sub
	}
	return out
}

// AssignmentInput carries the fields written when creating or editing an assignment.
type AssignmentInput struct {
	ID           string
	Title        string
	ModuleID     string
	InstructorID string
	DueDate      time.Time
	Files        FileRefs
}
