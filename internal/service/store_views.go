package service

import (
	"sort"
	"strings"

	"github.com/noah-isme/prhi-portal-api/internal/models"
)

// Sort keys accepted by EnrolledStudents.
const (
	SortByName             = "name"
	SortByEmail            = "email"
	SortByBatch            = "batch"
	SortByAssignmentsTotal = "assignments_total"
)

// StudentProgress is an enrolled applicant as listed for instructors.
type StudentProgress struct {
	ID               string  `json:"id"`
	Name             string  `json:"name"`
	Email            string  `json:"email"`
	AvatarURL        *string `json:"avatar_url"`
	Batch            string  `json:"batch"`
	AssignmentsTotal int     `json:"assignments_total"`
}

// Users returns every identity visible to the current role.
func (s *Store) Users() []models.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneUsers(s.users, nil)
}

// Instructors returns users with the Instructor role.
func (s *Store) Instructors() []models.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneUsers(s.users, func(u models.User) bool { return u.Role == models.RoleInstructor })
}

// Applicants returns users with the Student Applicant role.
func (s *Store) Applicants() []models.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneUsers(s.users, models.User.IsApplicant)
}

// Batches returns every training batch.
func (s *Store) Batches() []models.TrainingBatch {
	return s.filterBatches(nil)
}

// ActiveBatches returns Upcoming and In Progress batches.
func (s *Store) ActiveBatches() []models.TrainingBatch {
	return s.filterBatches(models.TrainingBatch.Active)
}

// CompletedBatches returns finished batches.
func (s *Store) CompletedBatches() []models.TrainingBatch {
	return s.filterBatches(func(b models.TrainingBatch) bool { return b.Status == models.BatchCompleted })
}

// BatchesForInstructor returns batches led by the named instructor.
func (s *Store) BatchesForInstructor(name string) []models.TrainingBatch {
	return s.filterBatches(func(b models.TrainingBatch) bool { return b.InstructorName == name })
}

// AvailableBatchesForEnrollment returns the current instructor's active batches.
func (s *Store) AvailableBatchesForEnrollment() []models.TrainingBatch {
	user, ok := s.state.CurrentUser()
	if !ok || user.Role != models.RoleInstructor {
		return []models.TrainingBatch{}
	}
	return s.filterBatches(func(b models.TrainingBatch) bool {
		return b.Active() && (b.InstructorName == user.Name || (b.InstructorID != nil && *b.InstructorID == user.ID))
	})
}

// Batch looks a batch up by id.
func (s *Store) Batch(id string) (models.TrainingBatch, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, b := range s.batches {
		if b.ID == id {
			return b.Clone(), true
		}
	}
	return models.TrainingBatch{}, false
}

// StudentsInBatch returns the applicants whose email is enrolled in the batch.
func (s *Store) StudentsInBatch(batchID string) []models.User {
	batch, ok := s.Batch(batchID)
	if !ok {
		return []models.User{}
	}
	emails := make(map[string]struct{}, len(batch.StudentEmails))
	for _, e := range batch.StudentEmails {
		emails[e] = struct{}{}
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneUsers(s.users, func(u models.User) bool {
		_, in := emails[u.Email]
		return u.IsApplicant() && in
	})
}

// PendingReviewApplicants returns applicants who took the quiz and await a decision.
func (s *Store) PendingReviewApplicants() []models.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneUsers(s.users, func(u models.User) bool {
		return u.IsApplicant() && (u.AssessmentStatus == models.AssessmentPassed || u.AssessmentStatus == models.AssessmentFailed)
	})
}

// EnrolledStudents lists enrolled applicants matching search on name or batch, sorted by key.
func (s *Store) EnrolledStudents(search, sortKey, direction string) []StudentProgress {
	s.mu.RLock()
	assigned := make(map[string]int)
	for _, a := range s.assignments {
		for _, email := range a.AssignedTo {
			assigned[email]++
		}
	}
	var out []StudentProgress
	term := strings.ToLower(strings.TrimSpace(search))
	for _, u := range s.users {
		if !u.IsApplicant() || u.AssessmentStatus != models.AssessmentEnrolled {
			continue
		}
		batch := u.Batch
		if batch == "" {
			batch = models.BatchLabelNotApplicable
		}
		if term != "" && !strings.Contains(strings.ToLower(u.Name), term) && !strings.Contains(strings.ToLower(batch), term) {
			continue
		}
		out = append(out, StudentProgress{
			ID:               u.ID,
			Name:             u.Name,
			Email:            u.Email,
			AvatarURL:        u.AvatarURL,
			Batch:            batch,
			AssignmentsTotal: assigned[u.Email],
		})
	}
	s.mu.RUnlock()

	less := func(a, b StudentProgress) int {
		switch sortKey {
		case SortByEmail:
			return strings.Compare(a.Email, b.Email)
		case SortByBatch:
			return strings.Compare(a.Batch, b.Batch)
		case SortByAssignmentsTotal:
			return a.AssignmentsTotal - b.AssignmentsTotal
		default:
			return strings.Compare(a.Name, b.Name)
		}
	}
	desc := strings.EqualFold(direction, "desc")
	sort.SliceStable(out, func(i, j int) bool {
		c := less(out[i], out[j])
		if desc {
			return c > 0
		}
		return c < 0
	})
	if out == nil {
		out = []StudentProgress{}
	}
	return out
}

// ApplicantStats counts applicants by status.
func (s *Store) ApplicantStats() models.ApplicantStats {
	var stats models.ApplicantStats
	for _, a := range s.Applicants() {
		stats.Total++
		switch a.AssessmentStatus {
		case models.AssessmentPending:
			stats.Pending++
		case models.AssessmentPassed:
			stats.Passed++
		case models.AssessmentFailed:
			stats.Failed++
		case models.AssessmentEnrolled:
			stats.Enrolled++
		}
	}
	return stats
}

// AssessmentPerformance summarises applicants who passed or failed the quiz.
func (s *Store) AssessmentPerformance() models.AssessmentPerformance {
	var passed, score, possible, assessed int
	for _, a := range s.Applicants() {
		if a.AssessmentStatus != models.AssessmentPassed && a.AssessmentStatus != models.AssessmentFailed {
			continue
		}
		assessed++
		if a.AssessmentStatus == models.AssessmentPassed {
			passed++
		}
		if a.AssessmentScore != nil {
			score += *a.AssessmentScore
		}
		if a.AssessmentTotal != nil {
			possible += *a.AssessmentTotal
		}
	}
	if assessed == 0 {
		return models.AssessmentPerformance{}
	}
	perf := models.AssessmentPerformance{PassRate: percent(passed, assessed), TotalAssessed: assessed}
	if possible > 0 {
		perf.AverageScore = percent(score, possible)
	}
	return perf
}

// DashboardStats is the admin landing summary.
func (s *Store) DashboardStats() models.DashboardStats {
	stats := s.ApplicantStats()
	return models.DashboardStats{
		TotalApplicants:  stats.Total,
		EnrolledStudents: stats.Enrolled,
		ActiveBatches:    len(s.ActiveBatches()),
		Instructors:      len(s.Instructors()),
		PassRate:         s.AssessmentPerformance().PassRate,
	}
}

// Analytics bundles the admin views.
func (s *Store) Analytics() models.Analytics {
	return models.Analytics{
		Applicants:  s.ApplicantStats(),
		Performance: s.AssessmentPerformance(),
		Dashboard:   s.DashboardStats(),
	}
}

// AssessmentStatus returns the current applicant's status, or "" for other roles.
func (s *Store) AssessmentStatus() models.AssessmentStatus {
	user, ok := s.state.CurrentUser()
	if !ok || !user.IsApplicant() {
		return ""
	}
	return user.AssessmentStatus
}

// StudentDocuments returns the current applicant's checklist.
func (s *Store) StudentDocuments() models.RequiredDocs {
	user, ok := s.state.CurrentUser()
	if !ok || !user.IsApplicant() {
		return models.RequiredDocs{}
	}
	return user.Documents.OrDefault()
}

// GetDocumentsForStudent returns an applicant's checklist by email, or the default checklist.
func (s *Store) GetDocumentsForStudent(email string) models.RequiredDocs {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.IsApplicant() && strings.EqualFold(u.Email, email) {
			return u.Documents.OrDefault()
		}
	}
	return models.DefaultDocuments()
}

// Modules returns the training modules visible to the current role.
func (s *Store) Modules() []models.TrainingModule {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.TrainingModule, len(s.modules))
	for i, m := range s.modules {
		out[i] = m.Clone()
	}
	return out
}

// Assignments returns the role-dependent assignment projection.
func (s *Store) Assignments() []models.Assignment {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Assignment, len(s.assignments))
	for i, a := range s.assignments {
		out[i] = a.Clone()
	}
	return out
}

// PendingSubmissions returns the instructor's grading queue.
func (s *Store) PendingSubmissions() []models.PendingSubmission {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.PendingSubmission{}, s.pending...)
}

func (s *Store) filterBatches(keep func(models.TrainingBatch) bool) []models.TrainingBatch {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.TrainingBatch, 0, len(s.batches))
	for _, b := range s.batches {
		if keep == nil || keep(b) {
			out = append(out, b.Clone())
		}
	}
	return out
}

func (s *Store) findUser(id string) (models.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.ID == id {
			return u.Clone(), true
		}
	}
	return models.User{}, false
}

func cloneUsers(users []models.User, keep func(models.User) bool) []models.User {
	out := make([]models.User, 0, len(users))
	for _, u := range users {
		if keep == nil || keep(u) {
			out = append(out, u.Clone())
		}
	}
	return out
}

func percent(part, whole int) int {
	if whole == 0 {
		return 0
	}
	return int(float64(part)/float64(whole)*100 + 0.5)
}
