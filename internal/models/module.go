package models

import "time"

// LessonType classifies lesson content.
type LessonType string

const (
	LessonVideo   LessonType = "video"
	LessonReading LessonType = "reading"
	LessonQuiz    LessonType = "quiz"
	LessonFile    LessonType = "file"
)

// Lesson is one ordered item of a module.
type Lesson struct {
	ID       string     `db:"id" json:"-"`
	ModuleID string     `db:"module_id" json:"-"`
	Position int        `db:"position" json:"-"`
	Title    string     `db:"title" json:"title"`
	Type     LessonType `db:"type" json:"type"`
	URL      *string    `db:"url" json:"url,omitempty"`
	Duration string     `db:"duration" json:"duration"`
	FileName *string    `db:"file_name" json:"file_name,omitempty"`
	Content  *string    `db:"content" json:"content,omitempty"`
}

// ModuleRow is a training_modules row.
type ModuleRow struct {
	ID           string    `db:"id"`
	Title        string    `db:"title"`
	Description  string    `db:"description"`
	DurationDays int       `db:"duration_days"`
	InstructorID string    `db:"instructor_id"`
	CreatedAt    time.Time `db:"created_at"`
}

// TrainingModule is a module with its lessons and batch assignments.
type TrainingModule struct {
	ID               string    `json:"id"`
	Title            string    `json:"title"`
	Description      string    `json:"description"`
	DurationDays     int       `json:"duration_days"`
	InstructorID     string    `json:"instructor_id"`
	Lessons          []Lesson  `json:"lessons"`
	AssignedBatchIDs []string  `json:"assigned_batch_ids"`
	CreatedAt        time.Time `json:"created_at"`
}

// Clone deep-copies the module.
func (m TrainingModule) Clone() TrainingModule {
	out := m
	out.Lessons = append([]Lesson(nil), m.Lessons...)
	out.AssignedBatchIDs = append([]string(nil), m.AssignedBatchIDs...)
	return out
}
