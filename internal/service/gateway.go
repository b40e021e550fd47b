package service

import (
	"context"

	"github.com/noah-isme/prhi-portal-api/internal/models"
	"github.com/noah-isme/prhi-portal-api/internal/realtime"
	"github.com/noah-isme/prhi-portal-api/internal/repository"
	"github.com/noah-isme/prhi-portal-api/pkg/storage"
)

// ProfileGateway reads and writes profiles and the profile-level procedures.
type ProfileGateway interface {
	List(ctx context.Context) ([]models.Profile, error)
	FindByID(ctx context.Context, id string) (*models.Profile, error)
	UpdateRole(ctx context.Context, id string, role models.Role) error
	UpdateName(ctx context.Context, id, name string) error
	UpdateAvatar(ctx context.Context, id, url string) error
	UpdateAssessment(ctx context.Context, id string, status models.AssessmentStatus, score, total int) error
	UpdateAssessmentStatus(ctx context.Context, id string, status models.AssessmentStatus) error
	UpdateDocuments(ctx context.Context, id string, docs models.RequiredDocs) error
	DeleteUser(ctx context.Context, id string) error
	EnrollInBatch(ctx context.Context, studentID, batchID string) error
}

// BatchGateway manages training batches.
type BatchGateway interface {
	List(ctx context.Context) ([]models.BatchRow, error)
	ListEnrollments(ctx context.Context) ([]repository.BatchEnrollment, error)
	Create(ctx context.Context, input models.BatchInput) (string, error)
	Update(ctx context.Context, id string, input models.BatchInput) error
	UpdateStatus(ctx context.Context, id string, status models.BatchStatus) error
	Delete(ctx context.Context, id string) error
	HasInProgress(ctx context.Context, instructorID string) (bool, error)
	NextUpcoming(ctx context.Context, instructorID string) (string, error)
}

// ModuleGateway manages training modules and lessons.
type ModuleGateway interface {
	ListByInstructor(ctx context.Context, instructorID string) ([]models.ModuleRow, error)
	ListByBatch(ctx context.Context, batchID string) ([]models.ModuleRow, error)
	ListLessons(ctx context.Context, moduleIDs []string) ([]models.Lesson, error)
	ListBatchAssignments(ctx context.Context, moduleIDs []string) ([]repository.ModuleBatch, error)
	Save(ctx context.Context, module models.ModuleRow, lessons []models.Lesson) error
	Delete(ctx context.Context, id string) error
	ReplaceBatches(ctx context.Context, moduleID string, batchIDs []string) error
}

// AssignmentGateway manages assignments.
type AssignmentGateway interface {
	ListByInstructor(ctx context.Context, instructorID string) ([]models.AssignmentRow, error)
	ListForStudent(ctx context.Context, studentID string) ([]models.StudentAssignmentRow, error)
	FindFiles(ctx context.Context, id string) (models.FileRefs, error)
	Create(ctx context.Context, input models.AssignmentInput) error
	Update(ctx context.Context, input models.AssignmentInput) error
	Delete(ctx context.Context, id string) error
	AssignStudents(ctx context.Context, id string, emails []string) error
}

// SubmissionGateway manages assignment submissions.
type SubmissionGateway interface {
	ListByStudent(ctx context.Context, studentID string, assignmentIDs []string) ([]models.Submission, error)
	ListPendingForInstructor(ctx context.Context, instructorID string) ([]models.PendingSubmissionRow, error)
	ListForAssignment(ctx context.Context, assignmentID string) ([]models.StudentSubmissionRow, error)
	Create(ctx context.Context, submission *models.Submission) error
	Grade(ctx context.Context, id, score, feedback string) (*repository.GradedSubmission, error)
	DeleteByAssignment(ctx context.Context, assignmentID string) (int64, error)
}

// Buckets names the object store buckets.
type Buckets struct {
	Public  string
	Private string
	Avatars string
}

// DefaultBuckets matches the bucket names provisioned by the deployment.
func DefaultBuckets() Buckets {
	return Buckets{Public: "prhi-files", Private: "documents", Avatars: "profiles"}
}

// Gateway bundles every remote capability the portal depends on.
type Gateway struct {
	Profiles    ProfileGateway
	Batches     BatchGateway
	Modules     ModuleGateway
	Assignments AssignmentGateway
	Submissions SubmissionGateway
	Files       storage.ObjectStore
	Buckets     Buckets
	Feed        realtime.Feed
	// Changes is set when the feed does not observe the database itself.
	Changes realtime.Publisher
}

// NewGateway wires the sqlx repositories together with storage and the change feed.
func NewGateway(profiles ProfileGateway, batches BatchGateway, modules ModuleGateway,
	assignments AssignmentGateway, submissions SubmissionGateway,
	files storage.ObjectStore, buckets Buckets, feed realtime.Feed) Gateway {
	gw := Gateway{
		Profiles:    profiles,
		Batches:     batches,
		Modules:     modules,
		Assignments: assignments,
		Submissions: submissions,
		Files:       files,
		Buckets:     buckets,
		Feed:        feed,
	}
	if pub, ok := feed.(realtime.Publisher); ok {
		gw.Changes = pub
	}
	return gw
}
