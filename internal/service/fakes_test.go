package service

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/prhi-portal-api/internal/models"
	"github.com/noah-isme/prhi-portal-api/internal/realtime"
	"github.com/noah-isme/prhi-portal-api/internal/repository"
	"github.com/noah-isme/prhi-portal-api/pkg/storage"
)

// fakeDB is an in-memory stand-in for the portal schema.
type fakeDB struct {
	mu sync.Mutex

	profiles    map[string]models.Profile
	batches     map[string]models.BatchRow
	modules     map[string]models.ModuleRow
	lessons     map[string][]models.Lesson
	moduleLinks map[string][]string
	assignments map[string]models.AssignmentRow
	submissions map[string]models.Submission
	seq         int

	findProfileErr  error
	findProfileHold chan struct{}
	listProfilesErr error
	updateRoleErr   error
	deleteUserErr   error
	updateAssessErr error
	nextUpcomingErr error
	statusErr       map[string]error
	listBatchesErr  error
	createBatchErr  error

	// listBatchesHook runs after List has read its rows, used to interleave concurrent fetches.
	listBatchesHook func()

	deletedUsers []string
}

func newFakeDB() *fakeDB {
	return &fakeDB{
		profiles:    map[string]models.Profile{},
		batches:     map[string]models.BatchRow{},
		modules:     map[string]models.ModuleRow{},
		lessons:     map[string][]models.Lesson{},
		moduleLinks: map[string][]string{},
		assignments: map[string]models.AssignmentRow{},
		submissions: map[string]models.Submission{},
		statusErr:   map[string]error{},
	}
}

func (db *fakeDB) nextID(prefix string) string {
	db.seq++
	return fmt.Sprintf("%s-%d", prefix, db.seq)
}

func (db *fakeDB) addProfile(id, name, email string, role models.Role) models.Profile {
	db.mu.Lock()
	defer db.mu.Unlock()
	p := models.Profile{ID: id, FullName: name, Email: email, Role: role, CreatedAt: time.Now()}
	db.profiles[id] = p
	return p
}

func (db *fakeDB) addBatch(id, name, instructorID string, start time.Time, status models.BatchStatus) {
	db.mu.Lock()
	defer db.mu.Unlock()
	iid := instructorID
	db.batches[id] = models.BatchRow{ID: id, Name: name, InstructorID: &iid, StartDate: start, EndDate: start.AddDate(0, 1, 0), Status: status, CreatedAt: time.Now()}
}

func (db *fakeDB) profile(id string) models.Profile {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.profiles[id]
}

func (db *fakeDB) batch(id string) models.BatchRow {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.batches[id]
}

type fakeProfiles struct{ db *fakeDB }

func (f fakeProfiles) List(ctx context.Context) ([]models.Profile, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	if f.db.listProfilesErr != nil {
		return nil, f.db.listProfilesErr
	}
	out := make([]models.Profile, 0, len(f.db.profiles))
	for _, p := range f.db.profiles {
		p.Documents = p.Documents.Clone()
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	return out, nil
}

func (f fakeProfiles) FindByID(ctx context.Context, id string) (*models.Profile, error) {
	if hold := f.db.findProfileHold; hold != nil {
		select {
		case <-hold:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	if f.db.findProfileErr != nil {
		return nil, f.db.findProfileErr
	}
	p, ok := f.db.profiles[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	p.Documents = p.Documents.Clone()
	return &p, nil
}

func (f fakeProfiles) update(id string, fn func(*models.Profile)) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	p, ok := f.db.profiles[id]
	if !ok {
		return sql.ErrNoRows
	}
	fn(&p)
	f.db.profiles[id] = p
	return nil
}

func (f fakeProfiles) UpdateRole(ctx context.Context, id string, role models.Role) error {
	if f.db.updateRoleErr != nil {
		return f.db.updateRoleErr
	}
	return f.update(id, func(p *models.Profile) { p.Role = role })
}

func (f fakeProfiles) UpdateName(ctx context.Context, id, name string) error {
	return f.update(id, func(p *models.Profile) { p.FullName = name })
}

func (f fakeProfiles) UpdateAvatar(ctx context.Context, id, url string) error {
	return f.update(id, func(p *models.Profile) { p.AvatarURL = &url })
}

func (f fakeProfiles) UpdateAssessment(ctx context.Context, id string, status models.AssessmentStatus, score, total int) error {
	if f.db.updateAssessErr != nil {
		return f.db.updateAssessErr
	}
	return f.update(id, func(p *models.Profile) {
		s := string(status)
		p.AssessmentStatus = &s
		p.AssessmentScore = &score
		p.AssessmentTotal = &total
	})
}

func (f fakeProfiles) UpdateAssessmentStatus(ctx context.Context, id string, status models.AssessmentStatus) error {
	return f.update(id, func(p *models.Profile) {
		s := string(status)
		p.AssessmentStatus = &s
	})
}

func (f fakeProfiles) UpdateDocuments(ctx context.Context, id string, docs models.RequiredDocs) error {
	return f.update(id, func(p *models.Profile) { p.Documents = docs.Clone() })
}

func (f fakeProfiles) DeleteUser(ctx context.Context, id string) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	if f.db.deleteUserErr != nil {
		return f.db.deleteUserErr
	}
	delete(f.db.profiles, id)
	f.db.deletedUsers = append(f.db.deletedUsers, id)
	return nil
}

func (f fakeProfiles) EnrollInBatch(ctx context.Context, studentID, batchID string) error {
	return f.update(studentID, func(p *models.Profile) {
		b := batchID
		s := string(models.AssessmentEnrolled)
		p.BatchID = &b
		p.AssessmentStatus = &s
	})
}

type fakeBatches struct{ db *fakeDB }

func (f fakeBatches) List(ctx context.Context) ([]models.BatchRow, error) {
	out, err := f.snapshot()
	if f.db.listBatchesHook != nil {
		f.db.listBatchesHook()
	}
	return out, err
}

func (f fakeBatches) snapshot() ([]models.BatchRow, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	if f.db.listBatchesErr != nil {
		return nil, f.db.listBatchesErr
	}
	out := make([]models.BatchRow, 0, len(f.db.batches))
	for _, b := range f.db.batches {
		if b.InstructorID != nil {
			if p, ok := f.db.profiles[*b.InstructorID]; ok {
				name := p.FullName
				b.InstructorName = &name
			}
		}
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartDate.Before(out[j].StartDate) })
	return out, nil
}

func (f fakeBatches) ListEnrollments(ctx context.Context) ([]repository.BatchEnrollment, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	var out []repository.BatchEnrollment
	for _, p := range f.db.profiles {
		if p.Role == models.RoleStudentApplicant && p.BatchID != nil {
			out = append(out, repository.BatchEnrollment{BatchID: *p.BatchID, Email: p.Email})
		}
	}
	return out, nil
}

func (f fakeBatches) Create(ctx context.Context, input models.BatchInput) (string, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	if f.db.createBatchErr != nil {
		return "", f.db.createBatchErr
	}
	id := f.db.nextID("batch")
	iid := input.InstructorID
	f.db.batches[id] = models.BatchRow{ID: id, Name: input.Name, InstructorID: &iid, StartDate: input.StartDate, EndDate: input.EndDate, Status: input.Status, CreatedAt: time.Now()}
	return id, nil
}

func (f fakeBatches) Update(ctx context.Context, id string, input models.BatchInput) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	b, ok := f.db.batches[id]
	if !ok {
		return sql.ErrNoRows
	}
	iid := input.InstructorID
	b.InstructorID = &iid
	b.StartDate, b.EndDate = input.StartDate, input.EndDate
	f.db.batches[id] = b
	return nil
}

func (f fakeBatches) UpdateStatus(ctx context.Context, id string, status models.BatchStatus) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	if err := f.db.statusErr[id]; err != nil {
		return err
	}
	b, ok := f.db.batches[id]
	if !ok {
		return sql.ErrNoRows
	}
	b.Status = status
	f.db.batches[id] = b
	return nil
}

func (f fakeBatches) Delete(ctx context.Context, id string) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	delete(f.db.batches, id)
	for pid, p := range f.db.profiles {
		if p.BatchID != nil && *p.BatchID == id {
			p.BatchID = nil
			f.db.profiles[pid] = p
		}
	}
	return nil
}

func (f fakeBatches) HasInProgress(ctx context.Context, instructorID string) (bool, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	for _, b := range f.db.batches {
		if b.InstructorID != nil && *b.InstructorID == instructorID && b.Status == models.BatchInProgress {
			return true, nil
		}
	}
	return false, nil
}

func (f fakeBatches) NextUpcoming(ctx context.Context, instructorID string) (string, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	if f.db.nextUpcomingErr != nil {
		return "", f.db.nextUpcomingErr
	}
	var best *models.BatchRow
	for _, b := range f.db.batches {
		b := b
		if b.InstructorID == nil || *b.InstructorID != instructorID || b.Status != models.BatchUpcoming {
			continue
		}
		if best == nil || b.StartDate.Before(best.StartDate) {
			best = &b
		}
	}
	if best == nil {
		return "", nil
	}
	return best.ID, nil
}

type fakeModules struct{ db *fakeDB }

func (f fakeModules) ListByInstructor(ctx context.Context, instructorID string) ([]models.ModuleRow, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	var out []models.ModuleRow
	for _, m := range f.db.modules {
		if m.InstructorID == instructorID {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Title < out[j].Title })
	return out, nil
}

func (f fakeModules) ListByBatch(ctx context.Context, batchID string) ([]models.ModuleRow, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	var out []models.ModuleRow
	for id, batches := range f.db.moduleLinks {
		for _, b := range batches {
			if b == batchID {
				out = append(out, f.db.modules[id])
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Title < out[j].Title })
	return out, nil
}

// ListLessons returns lessons in reverse insertion order so callers must sort by position.
func (f fakeModules) ListLessons(ctx context.Context, moduleIDs []string) ([]models.Lesson, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	var out []models.Lesson
	for _, id := range moduleIDs {
		ls := f.db.lessons[id]
		for i := len(ls) - 1; i >= 0; i-- {
			out = append(out, ls[i])
		}
	}
	return out, nil
}

func (f fakeModules) ListBatchAssignments(ctx context.Context, moduleIDs []string) ([]repository.ModuleBatch, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	var out []repository.ModuleBatch
	for _, id := range moduleIDs {
		for _, b := range f.db.moduleLinks[id] {
			out = append(out, repository.ModuleBatch{ModuleID: id, BatchID: b})
		}
	}
	return out, nil
}

func (f fakeModules) Save(ctx context.Context, module models.ModuleRow, lessons []models.Lesson) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	f.db.modules[module.ID] = module
	stored := make([]models.Lesson, len(lessons))
	for i, l := range lessons {
		l.ModuleID = module.ID
		l.Position = i
		l.ID = fmt.Sprintf("%s-lesson-%d", module.ID, i)
		stored[i] = l
	}
	f.db.lessons[module.ID] = stored
	return nil
}

func (f fakeModules) Delete(ctx context.Context, id string) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	delete(f.db.modules, id)
	delete(f.db.lessons, id)
	delete(f.db.moduleLinks, id)
	return nil
}

func (f fakeModules) ReplaceBatches(ctx context.Context, moduleID string, batchIDs []string) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	f.db.moduleLinks[moduleID] = append([]string(nil), batchIDs...)
	return nil
}

type fakeAssignments struct{ db *fakeDB }

func (f fakeAssignments) moduleTitle(id *string) *string {
	if id == nil {
		return nil
	}
	m, ok := f.db.modules[*id]
	if !ok {
		return nil
	}
	title := m.Title
	return &title
}

func (f fakeAssignments) ListByInstructor(ctx context.Context, instructorID string) ([]models.AssignmentRow, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	var out []models.AssignmentRow
	for _, a := range f.db.assignments {
		if a.InstructorID == instructorID {
			a.ModuleTitle = f.moduleTitle(a.ModuleID)
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Title < out[j].Title })
	return out, nil
}

func (f fakeAssignments) ListForStudent(ctx context.Context, studentID string) ([]models.StudentAssignmentRow, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	email := f.db.profiles[studentID].Email
	var out []models.StudentAssignmentRow
	for _, a := range f.db.assignments {
		for _, e := range a.AssignedTo {
			if e == email {
				out = append(out, models.StudentAssignmentRow{ID: a.ID, Title: a.Title, DueDate: a.DueDate, FileURLs: a.FileURLs, ModuleID: a.ModuleID, ModuleTitle: f.moduleTitle(a.ModuleID)})
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Title < out[j].Title })
	return out, nil
}

func (f fakeAssignments) FindFiles(ctx context.Context, id string) (models.FileRefs, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	a, ok := f.db.assignments[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return append(models.FileRefs(nil), a.FileURLs...), nil
}

func (f fakeAssignments) Create(ctx context.Context, input models.AssignmentInput) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	mid := input.ModuleID
	f.db.assignments[input.ID] = models.AssignmentRow{ID: input.ID, Title: input.Title, ModuleID: &mid, InstructorID: input.InstructorID, DueDate: input.DueDate, FileURLs: input.Files, CreatedAt: time.Now()}
	return nil
}

func (f fakeAssignments) Update(ctx context.Context, input models.AssignmentInput) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	a, ok := f.db.assignments[input.ID]
	if !ok {
		return sql.ErrNoRows
	}
	mid := input.ModuleID
	a.Title, a.ModuleID, a.DueDate, a.FileURLs = input.Title, &mid, input.DueDate, input.Files
	f.db.assignments[input.ID] = a
	return nil
}

func (f fakeAssignments) Delete(ctx context.Context, id string) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	delete(f.db.assignments, id)
	return nil
}

func (f fakeAssignments) AssignStudents(ctx context.Context, id string, emails []string) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	a, ok := f.db.assignments[id]
	if !ok {
		return sql.ErrNoRows
	}
	a.AssignedTo = append([]string(nil), emails...)
	f.db.assignments[id] = a
	return nil
}

type fakeSubmissions struct{ db *fakeDB }

func (f fakeSubmissions) ListByStudent(ctx context.Context, studentID string, assignmentIDs []string) ([]models.Submission, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	var out []models.Submission
	for _, s := range f.db.submissions {
		if s.StudentID != studentID {
			continue
		}
		for _, id := range assignmentIDs {
			if s.AssignmentID == id {
				out = append(out, s)
			}
		}
	}
	return out, nil
}

func (f fakeSubmissions) ListPendingForInstructor(ctx context.Context, instructorID string) ([]models.PendingSubmissionRow, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	var out []models.PendingSubmissionRow
	for _, s := range f.db.submissions {
		a := f.db.assignments[s.AssignmentID]
		if a.InstructorID != instructorID || s.Status != models.SubmissionPendingReview {
			continue
		}
		p := f.db.profiles[s.StudentID]
		out = append(out, models.PendingSubmissionRow{
			ID: s.ID, Text: s.Text, FileName: s.FileName, FilePath: s.FilePath, SubmittedAt: s.SubmittedAt,
			AssignmentID: a.ID, AssignmentTitle: a.Title, DueDate: a.DueDate,
			StudentID: p.ID, StudentName: p.FullName, StudentEmail: p.Email,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SubmittedAt.Before(out[j].SubmittedAt) })
	return out, nil
}

func (f fakeSubmissions) ListForAssignment(ctx context.Context, assignmentID string) ([]models.StudentSubmissionRow, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	var out []models.StudentSubmissionRow
	for _, s := range f.db.submissions {
		if s.AssignmentID != assignmentID {
			continue
		}
		p := f.db.profiles[s.StudentID]
		out = append(out, models.StudentSubmissionRow{ID: s.ID, SubmittedAt: s.SubmittedAt, Text: s.Text, FileName: s.FileName, FilePath: s.FilePath, Status: s.Status, Score: s.Score, Feedback: s.Feedback, StudentName: p.FullName})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SubmittedAt.After(out[j].SubmittedAt) })
	return out, nil
}

func (f fakeSubmissions) Create(ctx context.Context, submission *models.Submission) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	for _, s := range f.db.submissions {
		if s.AssignmentID == submission.AssignmentID && s.StudentID == submission.StudentID {
			return errors.New("assignment already submitted")
		}
	}
	if submission.ID == "" {
		submission.ID = f.db.nextID("submission")
	}
	if submission.SubmittedAt.IsZero() {
		submission.SubmittedAt = time.Now()
	}
	f.db.submissions[submission.ID] = *submission
	return nil
}

func (f fakeSubmissions) Grade(ctx context.Context, id, score, feedback string) (*repository.GradedSubmission, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	s, ok := f.db.submissions[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	s.Score, s.Feedback, s.Status = &score, &feedback, models.SubmissionGraded
	f.db.submissions[id] = s
	return &repository.GradedSubmission{StudentEmail: f.db.profiles[s.StudentID].Email, AssignmentTitle: f.db.assignments[s.AssignmentID].Title}, nil
}

func (f fakeSubmissions) DeleteByAssignment(ctx context.Context, assignmentID string) (int64, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	var n int64
	for id, s := range f.db.submissions {
		if s.AssignmentID == assignmentID {
			delete(f.db.submissions, id)
			n++
		}
	}
	return n, nil
}

// memFiles is an in-memory ObjectStore.
type memFiles struct {
	mu        sync.Mutex
	objects   map[string]map[string][]byte
	putErr    error
	removeErr error
	listErr   error
	wrapErr   func(error) error
	signed    int
}

func newMemFiles() *memFiles {
	return &memFiles{objects: map[string]map[string][]byte{}}
}

func (m *memFiles) Put(ctx context.Context, bucket, key string, r io.Reader, size int64, contentType string) error {
	if m.putErr != nil {
		return m.putErr
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.objects[bucket] == nil {
		m.objects[bucket] = map[string][]byte{}
	}
	m.objects[bucket][key] = data
	return nil
}

func (m *memFiles) Get(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[bucket][key]
	if !ok {
		return nil, m.notFound()
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *memFiles) Remove(ctx context.Context, bucket string, keys ...string) error {
	if m.removeErr != nil {
		return m.removeErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.objects[bucket], k)
	}
	return nil
}

func (m *memFiles) List(ctx context.Context, bucket, prefix string) ([]storage.Object, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []storage.Object
	for k, data := range m.objects[bucket] {
		if strings.HasPrefix(k, prefix) {
			out = append(out, storage.Object{Key: k, Name: storage.BaseName(k), Size: int64(len(data))})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (m *memFiles) PublicURL(bucket, key string) string {
	return "https://files.test/public/" + bucket + "/" + key
}

func (m *memFiles) SignedURL(ctx context.Context, bucket, key string, ttl time.Duration) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.objects[bucket][key]; !ok {
		return "", m.notFound()
	}
	m.signed++
	return fmt.Sprintf("https://files.test/signed/%s/%s?ttl=%d", bucket, key, int(ttl.Seconds())), nil
}

func (m *memFiles) notFound() error {
	if m.wrapErr != nil {
		return m.wrapErr(storage.ErrObjectNotFound)
	}
	return storage.ErrObjectNotFound
}

func (m *memFiles) has(bucket, key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objects[bucket][key]
	return ok
}

// harness bundles a Store wired to in-memory collaborators.
type harness struct {
	db       *fakeDB
	files    *memFiles
	hub      *realtime.Hub
	gw       Gateway
	state    *AppState
	notifier *NotificationService
	inbox    *InAppNotificationService
	events   *EventService
	store    *Store
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	db := newFakeDB()
	files := newMemFiles()
	hub := realtime.NewHub(zap.NewNop())
	gw := NewGateway(fakeProfiles{db}, fakeBatches{db}, fakeModules{db}, fakeAssignments{db}, fakeSubmissions{db}, files, DefaultBuckets(), hub)
	state := NewAppState()
	notifier := NewNotificationService(time.Minute, nil)
	inbox := NewInAppNotificationService(0)
	evts := NewEventService(nil, inbox, nil, EventConfig{Workers: 1}, zap.NewNop())
	evts.Start(context.Background())
	t.Cleanup(func() {
		_ = evts.Stop(context.Background())
		notifier.Close()
	})
	store := NewStore(StoreDeps{Gateway: gw, State: state, Notifier: notifier, Events: evts, Logger: zap.NewNop()}, StoreConfig{})
	return &harness{db: db, files: files, hub: hub, gw: gw, state: state, notifier: notifier, inbox: inbox, events: evts, store: store}
}

// signInAs makes the profile the current identity and loads the store.
func (h *harness) signInAs(t *testing.T, id string) {
	t.Helper()
	p := h.db.profile(id)
	if p.ID == "" {
		t.Fatalf("no profile %s", id)
	}
	h.state.SetUser(models.UserFromProfile(p, nil))
	h.store.LoadAll(context.Background())
}

func (h *harness) notificationsOf(kind models.NotificationType) []string {
	var out []string
	for _, n := range h.notifier.List() {
		if n.Type == kind {
			out = append(out, n.Message)
		}
	}
	return out
}
