package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/noah-isme/prhi-portal-api/internal/models"
	"github.com/noah-isme/prhi-portal-api/internal/realtime"
	appErrors "github.com/noah-isme/prhi-portal-api/pkg/errors"
)

var jan = time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)

func TestStudentDocumentsDefaultsToChecklist(t *testing.T) {
	h := newHarness(t)
	h.db.addProfile("s1", "Ana Cruz", "ana@example.com", models.RoleStudentApplicant)
	h.signInAs(t, "s1")

	docs := h.store.StudentDocuments()
	require.Len(t, docs, 5)
	assert.Equal(t, "Valid ID (Front)", docs[0].Name)
	assert.Equal(t, "Certificates (Optional)", docs[4].Name)
	for _, d := range docs {
		assert.Equal(t, models.DocumentPending, d.Status)
	}
	assert.Equal(t, models.AssessmentPending, h.store.AssessmentStatus())
	assert.Len(t, h.store.GetDocumentsForStudent("nobody@example.com"), 5)
}

func TestStudentSeesOnlyOwnProfile(t *testing.T) {
	h := newHarness(t)
	h.db.addProfile("s1", "Ana Cruz", "ana@example.com", models.RoleStudentApplicant)
	h.db.addProfile("s2", "Ben Uy", "ben@example.com", models.RoleStudentApplicant)
	h.signInAs(t, "s1")

	users := h.store.Users()
	require.Len(t, users, 1)
	assert.Equal(t, "s1", users[0].ID)
}

func TestSaveBatchNamesAndSchedulesSecondBatch(t *testing.T) {
	h := newHarness(t)
	h.db.addProfile("admin", "Admin", "admin@example.com", models.RoleAdmin)
	h.db.addProfile("i1", "Iris Tan", "iris@example.com", models.RoleInstructor)
	h.signInAs(t, "admin")
	h.store.now = func() time.Time { return jan }
	ctx := context.Background()

	require.NoError(t, h.store.SaveBatch(ctx, BatchDraft{InstructorName: "Iris Tan", StartDate: jan, EndDate: jan.AddDate(0, 2, 0)}, ""))
	require.NoError(t, h.store.SaveBatch(ctx, BatchDraft{InstructorName: "Iris Tan", StartDate: jan.AddDate(0, 3, 0), EndDate: jan.AddDate(0, 5, 0)}, ""))

	batches := h.store.Batches()
	require.Len(t, batches, 2)
	assert.Equal(t, "Batch 1 - 2024", batches[0].Name)
	assert.Equal(t, models.BatchInProgress, batches[0].Status)
	assert.Equal(t, "Batch 2 - 2024", batches[1].Name)
	assert.Equal(t, models.BatchUpcoming, batches[1].Status)
	assert.Equal(t, "Iris Tan", batches[1].InstructorName)
}

func TestSaveBatchUnknownInstructor(t *testing.T) {
	h := newHarness(t)
	h.db.addProfile("admin", "Admin", "admin@example.com", models.RoleAdmin)
	h.signInAs(t, "admin")

	err := h.store.SaveBatch(context.Background(), BatchDraft{InstructorName: "Ghost", StartDate: jan, EndDate: jan}, "")
	require.Error(t, err)
	assert.Equal(t, "Instructor not found. Please ensure an instructor is selected.", UserMessage(err))
	assert.Empty(t, h.store.Batches())
}

func TestNextBatchName(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, "Batch 1 - 2025", nextBatchName(nil, now))
	assert.Equal(t, "Batch 1 - 2025", nextBatchName([]models.TrainingBatch{{Name: "Pilot"}}, now))
	assert.Equal(t, "Batch 8 - 2025", nextBatchName([]models.TrainingBatch{{Name: "Batch 3 - 2024"}, {Name: "Batch 7 - 2024"}, {Name: "Odd"}}, now))
}

func TestCompleteBatchPromotesEarliestUpcoming(t *testing.T) {
	h := newHarness(t)
	h.db.addProfile("admin", "Admin", "admin@example.com", models.RoleAdmin)
	h.db.addProfile("i1", "Iris Tan", "iris@example.com", models.RoleInstructor)
	h.db.addBatch("b1", "Batch 1 - 2024", "i1", jan, models.BatchInProgress)
	h.db.addBatch("b3", "Batch 3 - 2024", "i1", jan.AddDate(0, 6, 0), models.BatchUpcoming)
	h.db.addBatch("b2", "Batch 2 - 2024", "i1", jan.AddDate(0, 3, 0), models.BatchUpcoming)
	h.signInAs(t, "admin")

	require.NoError(t, h.store.CompleteBatch(context.Background(), "b1"))

	assert.Equal(t, models.BatchCompleted, h.db.batch("b1").Status)
	assert.Equal(t, models.BatchInProgress, h.db.batch("b2").Status)
	assert.Equal(t, models.BatchUpcoming, h.db.batch("b3").Status)
	assert.Len(t, h.store.CompletedBatches(), 1)
	assert.Len(t, h.store.ActiveBatches(), 2)
}

func TestCompleteBatchPartialFailure(t *testing.T) {
	h := newHarness(t)
	h.db.addProfile("admin", "Admin", "admin@example.com", models.RoleAdmin)
	h.db.addProfile("i1", "Iris Tan", "iris@example.com", models.RoleInstructor)
	h.db.addBatch("b1", "Batch 1 - 2024", "i1", jan, models.BatchInProgress)
	h.db.addBatch("b2", "Batch 2 - 2024", "i1", jan.AddDate(0, 3, 0), models.BatchUpcoming)
	h.db.statusErr["b2"] = errors.New("connection reset")
	h.signInAs(t, "admin")

	err := h.store.CompleteBatch(context.Background(), "b1")
	require.Error(t, err)
	assert.True(t, appErrors.IsPartialFailure(err))
	assert.Equal(t, "Batch completed, but failed to automatically start the next one.", UserMessage(err))
	assert.Equal(t, models.BatchCompleted, h.db.batch("b1").Status)
	assert.Equal(t, models.BatchUpcoming, h.db.batch("b2").Status)
	assert.Equal(t, []string{"Batch completed, but failed to automatically start the next one."}, h.notificationsOf(models.NotificationCritical))
}

func TestCompleteBatchFailureIsNotPartial(t *testing.T) {
	h := newHarness(t)
	h.db.addProfile("admin", "Admin", "admin@example.com", models.RoleAdmin)
	h.db.addProfile("i1", "Iris Tan", "iris@example.com", models.RoleInstructor)
	h.db.addBatch("b1", "Batch 1 - 2024", "i1", jan, models.BatchInProgress)
	h.db.statusErr["b1"] = errors.New("permission denied")
	h.signInAs(t, "admin")

	err := h.store.CompleteBatch(context.Background(), "b1")
	require.Error(t, err)
	assert.False(t, appErrors.IsPartialFailure(err))
	assert.Equal(t, models.BatchInProgress, h.db.batch("b1").Status)
}

func TestSaveTrainingModuleKeepsLessonOrder(t *testing.T) {
	h := newHarness(t)
	h.db.addProfile("i1", "Iris Tan", "iris@example.com", models.RoleInstructor)
	h.signInAs(t, "i1")

	draft := ModuleDraft{
		Title:        "Grammar Basics",
		Description:  "Tenses and articles",
		DurationDays: 5,
		Lessons: []LessonDraft{
			{Title: "Intro", Type: models.LessonVideo, URL: "https://video.test/1", Duration: "10m"},
			{Title: "Worksheet", Type: models.LessonFile, Upload: &models.Upload{FileName: "sheet.pdf", ContentType: "application/pdf", Data: []byte("pdf")}},
			{Title: "Wrap up", Type: models.LessonReading, Content: "Read chapter 2"},
		},
	}
	require.NoError(t, h.store.SaveTrainingModule(context.Background(), draft, ""))

	modules := h.store.Modules()
	require.Len(t, modules, 1)
	lessons := modules[0].Lessons
	require.Len(t, lessons, 3)
	assert.Equal(t, []string{"Intro", "Worksheet", "Wrap up"}, []string{lessons[0].Title, lessons[1].Title, lessons[2].Title})
	require.NotNil(t, lessons[1].FileName)
	assert.Equal(t, "sheet.pdf", *lessons[1].FileName)
	key := "modules/" + modules[0].ID + "/lessons/sheet.pdf"
	assert.True(t, h.files.has("prhi-files", key))
	require.NotNil(t, lessons[1].URL)
	assert.Equal(t, h.files.PublicURL("prhi-files", key), *lessons[1].URL)
}

func TestSaveTrainingModuleRequiresInstructor(t *testing.T) {
	h := newHarness(t)
	h.db.addProfile("s1", "Ana Cruz", "ana@example.com", models.RoleStudentApplicant)
	h.signInAs(t, "s1")

	err := h.store.SaveTrainingModule(context.Background(), ModuleDraft{Title: "x"}, "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrForbidden))
	assert.Equal(t, "Only instructors can save modules.", UserMessage(err))
}

func TestEnrollStudentIsIdempotent(t *testing.T) {
	h := newHarness(t)
	h.db.addProfile("i1", "Iris Tan", "iris@example.com", models.RoleInstructor)
	h.db.addProfile("s1", "Ana Cruz", "ana@example.com", models.RoleStudentApplicant)
	h.db.addBatch("b1", "Batch 1 - 2024", "i1", jan, models.BatchInProgress)
	h.signInAs(t, "i1")
	ctx := context.Background()

	require.NoError(t, h.store.EnrollStudent(ctx, "s1", "b1"))
	require.NoError(t, h.store.EnrollStudent(ctx, "s1", "b1"))

	batch, ok := h.store.Batch("b1")
	require.True(t, ok)
	assert.Equal(t, []string{"ana@example.com"}, batch.StudentEmails)
	students := h.store.StudentsInBatch("b1")
	require.Len(t, students, 1)
	assert.Equal(t, models.AssessmentEnrolled, students[0].AssessmentStatus)
	assert.Equal(t, "Batch 1 - 2024", students[0].Batch)
	assert.Equal(t, 1, h.store.ApplicantStats().Enrolled)

	inbox := h.inbox.List("ana@example.com")
	require.NotEmpty(t, inbox)
	assert.Equal(t, "You have been enrolled in Batch 1 - 2024.", inbox[0].Message)
}

func TestEnrollUnknownApplicant(t *testing.T) {
	h := newHarness(t)
	h.db.addProfile("i1", "Iris Tan", "iris@example.com", models.RoleInstructor)
	h.signInAs(t, "i1")

	err := h.store.EnrollStudent(context.Background(), "nobody", "b1")
	require.Error(t, err)
	assert.Equal(t, "Applicant not found.", UserMessage(err))
}

func TestSubmitQuizPassAndFail(t *testing.T) {
	answers := []string{"goes", "in", "began", "an", "any", "He and I are good friends.", "were", "since", "isn't", "than"}

	t.Run("eight of ten passes", func(t *testing.T) {
		h := newHarness(t)
		h.db.addProfile("s1", "Ana Cruz", "ana@example.com", models.RoleStudentApplicant)
		h.signInAs(t, "s1")
		given := append([]string(nil), answers...)
		given[0], given[1] = "go", "on"

		result, err := h.store.SubmitQuiz(context.Background(), given)
		require.NoError(t, err)
		assert.Equal(t, QuizResult{Score: 8, Total: 10, Passed: true}, result)
		assert.Equal(t, models.AssessmentPassed, h.store.AssessmentStatus())
		p := h.db.profile("s1")
		assert.Equal(t, 8, *p.AssessmentScore)
		assert.Equal(t, 10, *p.AssessmentTotal)
	})

	t.Run("five of ten fails", func(t *testing.T) {
		h := newHarness(t)
		h.db.addProfile("s1", "Ana Cruz", "ana@example.com", models.RoleStudentApplicant)
		h.signInAs(t, "s1")
		given := append([]string(nil), answers...)
		for i := 0; i < 5; i++ {
			given[i] = "wrong"
		}

		result, err := h.store.SubmitQuiz(context.Background(), given)
		require.NoError(t, err)
		assert.Equal(t, 5, result.Score)
		assert.False(t, result.Passed)
		assert.Equal(t, models.AssessmentFailed, h.store.AssessmentStatus())
	})
}

func TestSubmitAssessmentFailureMessage(t *testing.T) {
	h := newHarness(t)
	h.db.addProfile("s1", "Ana Cruz", "ana@example.com", models.RoleStudentApplicant)
	h.signInAs(t, "s1")
	h.db.updateAssessErr = errors.New("timeout")
	core, logs := observer.New(zap.ErrorLevel)
	h.store.logger = zap.New(core)

	err := h.store.SubmitAssessment(context.Background(), "s1", 9, 10)
	require.Error(t, err)
	assert.Equal(t, "Failed to save your quiz result. Please try again.", UserMessage(err))
	assert.Equal(t, models.AssessmentPending, h.store.AssessmentStatus())

	entries := logs.FilterMessage("error updating assessment status").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "s1", fields["user_id"])
	assert.Equal(t, "timeout", fields["error"])
}

func TestGradeQuizValidatesAnswers(t *testing.T) {
	_, err := GradeQuiz([]string{"goes"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	questions := QuizQuestions()
	require.Len(t, questions, 10)
	assert.Equal(t, "She ___ to the store every day.", questions[0].Question)
	assert.Equal(t, []string{"then", "than", "as", "from"}, questions[9].Options)
}

func newAssignmentHarness(t *testing.T) *harness {
	t.Helper()
	h := newHarness(t)
	h.db.addProfile("i1", "Iris Tan", "iris@example.com", models.RoleInstructor)
	h.db.addProfile("s1", "Ana Cruz", "ana@example.com", models.RoleStudentApplicant)
	h.db.modules["m1"] = models.ModuleRow{ID: "m1", Title: "Grammar Basics", InstructorID: "i1"}
	h.signInAs(t, "i1")
	return h
}

func TestSaveAssignmentKeepsSelectedFiles(t *testing.T) {
	h := newAssignmentHarness(t)
	ctx := context.Background()
	draft := AssignmentDraft{Title: "Essay", Module: "Grammar Basics", DueDate: jan}
	require.NoError(t, h.store.SaveAssignment(ctx, draft, "", []models.Upload{
		{FileName: "brief.pdf", Data: []byte("a")},
		{FileName: "rubric.pdf", Data: []byte("b")},
	}))
	assignments := h.store.Assignments()
	require.Len(t, assignments, 1)
	id := assignments[0].ID
	assert.ElementsMatch(t, []string{"brief.pdf", "rubric.pdf"}, assignments[0].FileNames())
	assert.Equal(t, "Grammar Basics", assignments[0].Module)

	draft.Files = []string{"rubric.pdf"}
	require.NoError(t, h.store.SaveAssignment(ctx, draft, id, []models.Upload{{FileName: "extra.docx", Data: []byte("c")}}))
	assignments = h.store.Assignments()
	require.Len(t, assignments, 1)
	assert.Equal(t, []string{"rubric.pdf", "extra.docx"}, assignments[0].FileNames())
}

func TestSaveAssignmentUnknownModule(t *testing.T) {
	h := newAssignmentHarness(t)
	err := h.store.SaveAssignment(context.Background(), AssignmentDraft{Title: "Essay", Module: "Missing", DueDate: jan}, "", nil)
	require.Error(t, err)
	assert.Equal(t, "Selected module not found.", UserMessage(err))
}

func TestDeleteAssignmentSurvivesFileCleanupFailure(t *testing.T) {
	h := newAssignmentHarness(t)
	ctx := context.Background()
	require.NoError(t, h.store.SaveAssignment(ctx, AssignmentDraft{Title: "Essay", Module: "Grammar Basics", DueDate: jan}, "", []models.Upload{{FileName: "brief.pdf", Data: []byte("a")}}))
	id := h.store.Assignments()[0].ID
	seedSubmissions(h.db, id, "s1", "s2")
	h.files.removeErr = errors.New("bucket unavailable")

	require.NoError(t, h.store.DeleteAssignment(ctx, id))
	assert.Empty(t, h.store.Assignments())
	assert.Empty(t, h.db.submissions)
	assert.Equal(t, []string{"Assignment deleted, but failed to clean up some storage files."}, h.notificationsOf(models.NotificationInfo))
	assert.True(t, h.files.has("prhi-files", "assignments/"+id+"/brief.pdf"))
}

func TestDeleteAssignmentSurvivesFileListingFailure(t *testing.T) {
	h := newAssignmentHarness(t)
	ctx := context.Background()
	require.NoError(t, h.store.SaveAssignment(ctx, AssignmentDraft{Title: "Essay", Module: "Grammar Basics", DueDate: jan}, "", []models.Upload{{FileName: "brief.pdf", Data: []byte("a")}}))
	id := h.store.Assignments()[0].ID
	seedSubmissions(h.db, id, "s1", "s2")
	h.files.listErr = errors.New("bucket unavailable")

	require.NoError(t, h.store.DeleteAssignment(ctx, id))
	assert.Empty(t, h.store.Assignments())
	assert.Empty(t, h.db.submissions)
	assert.Equal(t, []string{"Assignment deleted, but failed to clean up some storage files."}, h.notificationsOf(models.NotificationInfo))
	assert.True(t, h.files.has("prhi-files", "assignments/"+id+"/brief.pdf"))
}

func seedSubmissions(db *fakeDB, assignmentID string, studentIDs ...string) {
	db.mu.Lock()
	defer db.mu.Unlock()
	for _, studentID := range studentIDs {
		id := assignmentID + "-" + studentID
		db.submissions[id] = models.Submission{ID: id, AssignmentID: assignmentID, StudentID: studentID, Status: models.SubmissionPendingReview, SubmittedAt: jan}
	}
}

func TestInstructorCannotTouchAnotherInstructorsRecords(t *testing.T) {
	h := newAssignmentHarness(t)
	ctx := context.Background()
	require.NoError(t, h.store.SaveAssignment(ctx, AssignmentDraft{Title: "Essay", Module: "Grammar Basics", DueDate: jan}, "", nil))
	id := h.store.Assignments()[0].ID
	seedSubmissions(h.db, id, "s1")
	h.db.addProfile("i2", "Noel Reyes", "noel@example.com", models.RoleInstructor)
	h.db.addProfile("s2", "Ben Lim", "ben@example.com", models.RoleStudentApplicant)

	h.signInAs(t, "i2")
	notFound := func(t *testing.T, err error, message string) {
		t.Helper()
		require.Error(t, err)
		assert.True(t, errors.Is(err, appErrors.ErrNotFound))
		assert.Equal(t, message, UserMessage(err))
	}

	notFound(t, h.store.DeleteAssignment(ctx, id), "Assignment not found.")
	notFound(t, h.store.SaveAssignment(ctx, AssignmentDraft{Title: "Taken", Module: "Grammar Basics", DueDate: jan}, id, nil), "Assignment not found.")
	notFound(t, h.store.AssignStudentsToAssignment(ctx, id, []string{"ben@example.com"}), "Assignment not found.")
	_, err := h.store.GetSubmissionsForAssignment(ctx, id)
	notFound(t, err, "Assignment not found.")
	notFound(t, h.store.GradeSubmission(ctx, id+"-s1", "10/10", ""), "Submission not found or already graded.")
	notFound(t, h.store.DeleteTrainingModule(ctx, "m1"), "Module not found.")
	notFound(t, h.store.AssignModuleToBatches(ctx, "m1", []string{"b1"}), "Module not found.")

	assert.Contains(t, h.db.assignments, id)
	assert.Equal(t, "Essay", h.db.assignments[id].Title)
	assert.Contains(t, h.db.modules, "m1")
	require.Contains(t, h.db.submissions, id+"-s1")
	assert.Equal(t, models.SubmissionPendingReview, h.db.submissions[id+"-s1"].Status)

	t.Run("student outside the recipients cannot submit", func(t *testing.T) {
		h.signInAs(t, "s2")
		notFound(t, h.store.SubmitAssignment(ctx, id, "Not mine", nil), "Assignment not found.")
		for _, sub := range h.db.submissions {
			assert.NotEqual(t, "s2", sub.StudentID)
		}
	})
}

func TestSubmitAndGradeAssignment(t *testing.T) {
	h := newAssignmentHarness(t)
	ctx := context.Background()
	require.NoError(t, h.store.SaveAssignment(ctx, AssignmentDraft{Title: "Essay", Module: "Grammar Basics", DueDate: time.Now().Add(24 * time.Hour)}, "", nil))
	id := h.store.Assignments()[0].ID
	require.NoError(t, h.store.AssignStudentsToAssignment(ctx, id, []string{"ana@example.com"}))

	h.signInAs(t, "s1")
	assignments := h.store.Assignments()
	require.Len(t, assignments, 1)
	assert.Equal(t, models.AssignmentUpcoming, assignments[0].Status)
	require.NoError(t, h.store.SubmitAssignment(ctx, id, "My essay", &models.Upload{FileName: "essay.docx", Data: []byte("x")}))
	assert.Equal(t, models.AssignmentSubmitted, h.store.Assignments()[0].Status)
	assert.True(t, h.files.has("documents", "submissions/"+id+"/s1/essay.docx"))

	err := h.store.GradeSubmission(ctx, "any", "9", "")
	require.Error(t, err)
	assert.Equal(t, "Only instructors can grade submissions.", UserMessage(err))

	h.signInAs(t, "i1")
	pending := h.store.PendingSubmissions()
	require.Len(t, pending, 1)
	assert.Equal(t, models.OnTime, pending[0].OnTimeStatus)
	require.NoError(t, h.store.GradeSubmission(ctx, pending[0].SubmissionID, "9/10", "Well done"))
	assert.Empty(t, h.store.PendingSubmissions())

	subs, err := h.store.GetSubmissionsForAssignment(ctx, id)
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, models.SubmissionGraded, subs[0].Status)

	inbox := h.inbox.List("ana@example.com")
	require.Len(t, inbox, 1)
	assert.Equal(t, `Your submission for "Essay" has been graded: 9/10.`, inbox[0].Message)
	assert.True(t, h.inbox.HasUnread("ana@example.com"))
}

func TestUploadAndReviewDocument(t *testing.T) {
	h := newHarness(t)
	h.db.addProfile("i1", "Iris Tan", "iris@example.com", models.RoleInstructor)
	h.db.addProfile("s1", "Ana Cruz", "ana@example.com", models.RoleStudentApplicant)
	h.signInAs(t, "s1")
	ctx := context.Background()

	require.NoError(t, h.store.UploadDocument(ctx, "Valid ID (Front)", models.Upload{FileName: "id.png", Data: []byte("img")}))
	docs := h.store.StudentDocuments()
	assert.Equal(t, models.DocumentUploaded, docs[0].Status)
	require.NotNil(t, docs[0].FilePath)
	assert.Equal(t, "user-documents/s1/Valid_ID__Front_-id.png", *docs[0].FilePath)

	data, err := h.store.DownloadPrivateFile(ctx, *docs[0].FilePath)
	require.NoError(t, err)
	assert.Equal(t, []byte("img"), data)
	_, err = h.store.DownloadPrivateFile(ctx, "user-documents/s2/other.png")
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrForbidden))

	h.signInAs(t, "i1")
	err = h.store.ReviewDocument(ctx, "s1", "Valid ID (Front)", false, " ")
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
	err = h.store.ReviewDocument(ctx, "s1", "2x2 Photo", true, "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrPreconditionFailed))

	require.NoError(t, h.store.ReviewDocument(ctx, "s1", "Valid ID (Front)", false, "Blurry"))
	reviewed := h.store.GetDocumentsForStudent("ana@example.com")
	assert.Equal(t, models.DocumentRejected, reviewed[0].Status)
	require.NotNil(t, reviewed[0].RejectionReason)
	assert.Equal(t, "Blurry", *reviewed[0].RejectionReason)

	url, err := h.store.GetSignedDocumentURL(ctx, "user-documents/s1/Valid_ID__Front_-id.png")
	require.NoError(t, err)
	assert.Contains(t, url, "ttl=3600")
}

func TestMissingPrivateFileIsNotFoundThroughWrappedErrors(t *testing.T) {
	h := newHarness(t)
	h.db.addProfile("s1", "Ana Cruz", "ana@example.com", models.RoleStudentApplicant)
	h.signInAs(t, "s1")
	h.files.wrapErr = func(err error) error { return fmt.Errorf("object store: %w", err) }
	ctx := context.Background()

	_, err := h.store.DownloadPrivateFile(ctx, "user-documents/s1/missing.png")
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))

	_, err = h.store.GetSignedDocumentURL(ctx, "user-documents/s1/missing.png")
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}

func TestUploadAvatarAndStoreURL(t *testing.T) {
	h := newHarness(t)
	h.db.addProfile("s1", "Ana Cruz", "ana@example.com", models.RoleStudentApplicant)
	h.signInAs(t, "s1")
	h.store.now = func() time.Time { return time.UnixMilli(1700000000000) }
	ctx := context.Background()

	url, err := h.store.UploadAvatar(ctx, "s1", models.Upload{FileName: "me.jpg", Data: []byte("jpg")})
	require.NoError(t, err)
	assert.Equal(t, "https://files.test/public/profiles/avatars/s1.jpg?t=1700000000000", url)

	require.NoError(t, h.store.UpdateUserAvatar(ctx, "s1", url))
	p := h.db.profile("s1")
	require.NotNil(t, p.AvatarURL)
	assert.Equal(t, "https://files.test/public/profiles/avatars/s1.jpg", *p.AvatarURL)

	_, err = h.store.UploadAvatar(ctx, "someone-else", models.Upload{FileName: "x.jpg"})
	assert.True(t, errors.Is(err, appErrors.ErrForbidden))
}

func TestEnrolledStudentsSearchAndSort(t *testing.T) {
	h := newHarness(t)
	h.db.addProfile("i1", "Iris Tan", "iris@example.com", models.RoleInstructor)
	h.db.addProfile("s1", "Carla Diaz", "carla@example.com", models.RoleStudentApplicant)
	h.db.addProfile("s2", "Ana Cruz", "ana@example.com", models.RoleStudentApplicant)
	h.db.addProfile("s3", "Ben Uy", "ben@example.com", models.RoleStudentApplicant)
	h.db.addBatch("b1", "Batch 1 - 2024", "i1", jan, models.BatchInProgress)
	h.db.addBatch("b2", "Batch 2 - 2024", "i1", jan.AddDate(0, 2, 0), models.BatchUpcoming)
	h.signInAs(t, "i1")
	ctx := context.Background()
	require.NoError(t, h.store.EnrollStudent(ctx, "s1", "b1"))
	require.NoError(t, h.store.EnrollStudent(ctx, "s2", "b2"))

	all := h.store.EnrolledStudents("", SortByName, "asc")
	require.Len(t, all, 2)
	assert.Equal(t, "Ana Cruz", all[0].Name)

	desc := h.store.EnrolledStudents("", SortByName, "desc")
	assert.Equal(t, "Carla Diaz", desc[0].Name)

	byBatch := h.store.EnrolledStudents("batch 1", SortByName, "asc")
	require.Len(t, byBatch, 1)
	assert.Equal(t, "Carla Diaz", byBatch[0].Name)

	assert.Len(t, h.store.AvailableBatchesForEnrollment(), 2)
}

func TestAnalyticsViews(t *testing.T) {
	h := newHarness(t)
	h.db.addProfile("admin", "Admin", "admin@example.com", models.RoleAdmin)
	h.db.addProfile("i1", "Iris Tan", "iris@example.com", models.RoleInstructor)
	for id, res := range map[string][2]int{"s1": {8, 10}, "s2": {5, 10}, "s3": {9, 10}} {
		h.db.addProfile(id, id, id+"@example.com", models.RoleStudentApplicant)
		status := models.AssessmentFailed
		if res[0] >= DefaultPassingScore {
			status = models.AssessmentPassed
		}
		require.NoError(t, fakeProfiles{h.db}.UpdateAssessment(context.Background(), id, status, res[0], res[1]))
	}
	h.db.addProfile("s4", "s4", "s4@example.com", models.RoleStudentApplicant)
	h.db.addBatch("b1", "Batch 1 - 2024", "i1", jan, models.BatchInProgress)
	h.signInAs(t, "admin")

	stats := h.store.ApplicantStats()
	assert.Equal(t, models.ApplicantStats{Total: 4, Pending: 1, Passed: 2, Failed: 1}, stats)
	perf := h.store.AssessmentPerformance()
	assert.Equal(t, 67, perf.PassRate)
	assert.Equal(t, 73, perf.AverageScore)
	assert.Equal(t, 3, perf.TotalAssessed)
	dash := h.store.DashboardStats()
	assert.Equal(t, models.DashboardStats{TotalApplicants: 4, ActiveBatches: 1, Instructors: 1, PassRate: 67}, dash)
	assert.Len(t, h.store.PendingReviewApplicants(), 3)
}

func TestConcurrentRefetchLastCompletedWins(t *testing.T) {
	h := newHarness(t)
	h.db.addProfile("i1", "Iris Tan", "iris@example.com", models.RoleInstructor)
	h.db.addBatch("b1", "Batch 1 - 2024", "i1", jan, models.BatchInProgress)
	ctx := context.Background()

	started := make(chan struct{})
	release := make(chan struct{})
	var calls atomic.Int32
	h.db.listBatchesHook = func() {
		if calls.Add(1) == 1 {
			close(started)
			<-release
		}
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = h.store.Refetch(ctx, CollectionBatches)
	}()
	<-started

	h.db.addBatch("b2", "Batch 2 - 2024", "i1", jan.AddDate(0, 2, 0), models.BatchUpcoming)
	require.NoError(t, h.store.Refetch(ctx, CollectionBatches))
	assert.Len(t, h.store.Batches(), 2)

	close(release)
	wg.Wait()
	assert.Len(t, h.store.Batches(), 1, "the slower fetch completed last and its snapshot is kept")
}

func TestChangeNotificationsCoalesce(t *testing.T) {
	h := newHarness(t)
	h.db.addProfile("i1", "Iris Tan", "iris@example.com", models.RoleInstructor)
	ctx := context.Background()
	h.store.SubscribeToChanges(ctx)
	defer h.store.UnsubscribeFromChanges()

	started := make(chan struct{})
	release := make(chan struct{})
	var calls atomic.Int32
	h.db.listBatchesHook = func() {
		if calls.Add(1) == 1 {
			close(started)
			<-release
		}
	}

	h.hub.Dispatch(realtime.Event{Table: "training_batches", Op: realtime.OpInsert, ID: "b1"})
	<-started
	for i := 0; i < 5; i++ {
		h.hub.Dispatch(realtime.Event{Table: "training_batches", Op: realtime.OpUpdate, ID: "b1"})
	}
	close(release)
	h.store.waitRefetches()

	assert.Equal(t, int32(2), calls.Load())
}

func TestUnrelatedTablesDoNotRefetch(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.store.SubscribeToChanges(ctx)
	defer h.store.UnsubscribeFromChanges()

	var calls atomic.Int32
	h.db.listBatchesHook = func() { calls.Add(1) }
	h.hub.Dispatch(realtime.Event{Table: "lessons", Op: realtime.OpInsert})
	h.store.waitRefetches()
	assert.Equal(t, int32(0), calls.Load())

	h.store.UnsubscribeFromChanges()
	h.hub.Dispatch(realtime.Event{Table: "training_batches", Op: realtime.OpInsert})
	h.store.waitRefetches()
	assert.Equal(t, int32(0), calls.Load())
}

func TestRefetchFailureKeepsPreviousValue(t *testing.T) {
	h := newHarness(t)
	h.db.addProfile("i1", "Iris Tan", "iris@example.com", models.RoleInstructor)
	h.db.addBatch("b1", "Batch 1 - 2024", "i1", jan, models.BatchInProgress)
	ctx := context.Background()
	require.NoError(t, h.store.Refetch(ctx, CollectionBatches))

	var notified []Collection
	cancel := h.store.Observe(func(c Collection) { notified = append(notified, c) })
	defer cancel()

	h.db.listBatchesErr = errors.New("network down")
	require.Error(t, h.store.Refetch(ctx, CollectionBatches))
	assert.Len(t, h.store.Batches(), 1)
	assert.Empty(t, notified)

	h.db.listBatchesErr = nil
	require.NoError(t, h.store.Refetch(ctx, CollectionBatches))
	assert.Equal(t, []Collection{CollectionBatches}, notified)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []realtime.Event
}

func (p *recordingPublisher) Publish(_ context.Context, e realtime.Event) error {
	p.mu.Lock()
	p.events = append(p.events, e)
	p.mu.Unlock()
	return nil
}

func TestWritesAreAnnouncedWhenFeedDoesNotWatchDatabase(t *testing.T) {
	h := newHarness(t)
	pub := &recordingPublisher{}
	h.store.gw.Changes = pub
	h.db.addProfile("admin", "Admin", "admin@example.com", models.RoleAdmin)
	h.db.addProfile("i1", "Iris Tan", "iris@example.com", models.RoleInstructor)
	h.signInAs(t, "admin")
	ctx := context.Background()

	require.NoError(t, h.store.SaveBatch(ctx, BatchDraft{InstructorName: "Iris Tan", StartDate: jan, EndDate: jan.AddDate(0, 1, 0)}, ""))
	id := h.store.Batches()[0].ID
	require.NoError(t, h.store.DeleteBatch(ctx, id))

	pub.mu.Lock()
	defer pub.mu.Unlock()
	require.Len(t, pub.events, 2)
	assert.Equal(t, realtime.Event{Table: tableBatches, Op: realtime.OpInsert, ID: id}, pub.events[0])
	assert.Equal(t, realtime.OpDelete, pub.events[1].Op)
}

func runningBatches(db *fakeDB, instructorID string) int {
	db.mu.Lock()
	defer db.mu.Unlock()
	n := 0
	for _, b := range db.batches {
		if b.InstructorID != nil && *b.InstructorID == instructorID && b.Status == models.BatchInProgress {
			n++
		}
	}
	return n
}

func TestBatchLifecycleKeepsOneRunningBatchPerInstructor(t *testing.T) {
	h := newHarness(t)
	h.db.addProfile("admin", "Admin", "admin@example.com", models.RoleAdmin)
	h.db.addProfile("i1", "Iris Tan", "iris@example.com", models.RoleInstructor)
	h.db.addProfile("i2", "Noel Reyes", "noel@example.com", models.RoleInstructor)
	h.db.addBatch("b1", "Batch 1 - 2024", "i1", jan, models.BatchInProgress)
	h.db.addBatch("b2", "Batch 2 - 2024", "i1", jan.AddDate(0, 3, 0), models.BatchUpcoming)
	h.db.addBatch("b3", "Batch 3 - 2024", "i1", jan.AddDate(0, 6, 0), models.BatchUpcoming)
	h.db.addBatch("b4", "Batch 4 - 2024", "i2", jan, models.BatchInProgress)
	h.signInAs(t, "admin")
	ctx := context.Background()

	t.Run("completing an upcoming batch promotes nothing", func(t *testing.T) {
		require.NoError(t, h.store.CompleteBatch(ctx, "b2"))
		assert.Equal(t, models.BatchCompleted, h.db.batch("b2").Status)
		assert.Equal(t, models.BatchUpcoming, h.db.batch("b3").Status)
		assert.Equal(t, 1, runningBatches(h.db, "i1"))
	})

	t.Run("completing twice is rejected", func(t *testing.T) {
		err := h.store.CompleteBatch(ctx, "b2")
		require.Error(t, err)
		assert.True(t, errors.Is(err, appErrors.ErrPreconditionFailed))
		assert.Equal(t, "Batch is already completed.", UserMessage(err))
		assert.Equal(t, 1, runningBatches(h.db, "i1"))
	})

	t.Run("moving a running batch to a busy instructor demotes it", func(t *testing.T) {
		draft := BatchDraft{InstructorName: "Iris Tan", StartDate: jan, EndDate: jan.AddDate(0, 2, 0)}
		require.NoError(t, h.store.SaveBatch(ctx, draft, "b4"))
		assert.Equal(t, "i1", *h.db.batch("b4").InstructorID)
		assert.Equal(t, models.BatchUpcoming, h.db.batch("b4").Status)
		assert.Equal(t, 1, runningBatches(h.db, "i1"))
	})

	t.Run("editing the running batch of the same instructor keeps it running", func(t *testing.T) {
		draft := BatchDraft{InstructorName: "Iris Tan", StartDate: jan, EndDate: jan.AddDate(0, 4, 0)}
		require.NoError(t, h.store.SaveBatch(ctx, draft, "b1"))
		assert.Equal(t, models.BatchInProgress, h.db.batch("b1").Status)
		assert.Equal(t, 1, runningBatches(h.db, "i1"))
	})

	t.Run("editing an unknown batch", func(t *testing.T) {
		draft := BatchDraft{InstructorName: "Iris Tan", StartDate: jan, EndDate: jan}
		err := h.store.SaveBatch(ctx, draft, "missing")
		require.Error(t, err)
		assert.Equal(t, "Batch not found.", UserMessage(err))
	})
}
