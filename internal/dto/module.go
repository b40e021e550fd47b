package dto

import (
	"github.com/noah-isme/prhi-portal-api/internal/models"
	"github.com/noah-isme/prhi-portal-api/internal/service"
)

// LessonRequest is one lesson of a module payload.
type LessonRequest struct {
	Title    string            `json:"title"`
	Type     models.LessonType `json:"type"`
	URL      string            `json:"url"`
	Duration string            `json:"duration"`
	FileName string            `json:"file_name"`
	Content  string            `json:"content"`
}

// ModuleRequest creates or edits a training module. Lesson files travel as multipart parts
// named lesson_file_<index>.
type ModuleRequest struct {
	Title        string          `json:"title"`
	Description  string          `json:"description"`
	DurationDays int             `json:"duration_days"`
	Lessons      []LessonRequest `json:"lessons"`
}

// ToDraft builds a module draft; uploads[i], when present, is attached to lesson i.
func (r ModuleRequest) ToDraft(uploads map[int]models.Upload) service.ModuleDraft {
	lessons := make([]service.LessonDraft, len(r.Lessons))
	for i, l := range r.Lessons {
		lessons[i] = service.LessonDraft{
			Title:    l.Title,
			Type:     l.Type,
			URL:      l.URL,
			Duration: l.Duration,
			FileName: l.FileName,
			Content:  l.Content,
		}
		if up, ok := uploads[i]; ok {
			up := up
			lessons[i].Upload = &up
			lessons[i].FileName = up.FileName
		}
	}
	return service.ModuleDraft{
		Title:        r.Title,
		Description:  r.Description,
		DurationDays: r.DurationDays,
		Lessons:      lessons,
	}
}

// ModuleBatchesRequest replaces a module's batch assignments.
type ModuleBatchesRequest struct {
	BatchIDs []string `json:"batch_ids"`
}
