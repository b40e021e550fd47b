package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/prhi-portal-api/internal/models"
	"github.com/noah-isme/prhi-portal-api/internal/realtime"
	appErrors "github.com/noah-isme/prhi-portal-api/pkg/errors"
)

// Collection names a dataset held by the Store.
type Collection string

const (
	CollectionUsers              Collection = "users"
	CollectionBatches            Collection = "batches"
	CollectionModules            Collection = "modules"
	CollectionAssignments        Collection = "assignments"
	CollectionPendingSubmissions Collection = "pending_submissions"
)

// Tables observed on the change feed.
const (
	tableProfiles    = "profiles"
	tableBatches     = "training_batches"
	tableAssignments = "assignments"
	tableSubmissions = "submissions"
)

// DefaultPassingScore is the minimum placement quiz score for a pass.
const DefaultPassingScore = 7

// StoreConfig tunes Store behaviour.
type StoreConfig struct {
	PassingScore int
	SignedURLTTL time.Duration
}

// Store owns the portal's role-scoped collections. Readers get copies; writers go through the
// Gateway and then wait for an authoritative refetch.
type Store struct {
	gw       Gateway
	state    *AppState
	notifier *NotificationService
	events   *EventService
	cache    *CacheService
	metrics  *MetricsService
	logger   *zap.Logger
	cfg      StoreConfig
	now      func() time.Time

	mu          sync.RWMutex
	users       []models.User
	batches     []models.TrainingBatch
	modules     []models.TrainingModule
	assignments []models.Assignment
	pending     []models.PendingSubmission

	obsMu     sync.Mutex
	nextObs   int
	observers map[int]func(Collection)

	subMu      sync.Mutex
	feedCancel func()
	subCancel  context.CancelFunc
	groups     []*coalescer
}

// StoreDeps are the collaborators of a Store. Events, Cache and Metrics are optional.
type StoreDeps struct {
	Gateway  Gateway
	State    *AppState
	Notifier *NotificationService
	Events   *EventService
	Cache    *CacheService
	Metrics  *MetricsService
	Logger   *zap.Logger
}

// NewStore constructs an empty store.
func NewStore(deps StoreDeps, cfg StoreConfig) *Store {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.State == nil {
		deps.State = NewAppState()
	}
	if deps.Notifier == nil {
		deps.Notifier = NewNotificationService(0, deps.Metrics)
	}
	if cfg.PassingScore <= 0 {
		cfg.PassingScore = DefaultPassingScore
	}
	if cfg.SignedURLTTL <= 0 {
		cfg.SignedURLTTL = time.Hour
	}
	return &Store{
		gw:        deps.Gateway,
		state:     deps.State,
		notifier:  deps.Notifier,
		events:    deps.Events,
		cache:     deps.Cache,
		metrics:   deps.Metrics,
		logger:    deps.Logger.With(zap.String("component", "store")),
		cfg:       cfg,
		now:       time.Now,
		observers: make(map[int]func(Collection)),
	}
}

// Observe registers fn to run after every collection swap.
func (s *Store) Observe(fn func(Collection)) func() {
	s.obsMu.Lock()
	s.nextObs++
	id := s.nextObs
	s.observers[id] = fn
	s.obsMu.Unlock()
	return func() {
		s.obsMu.Lock()
		delete(s.observers, id)
		s.obsMu.Unlock()
	}
}

func (s *Store) changed(c Collection) {
	s.obsMu.Lock()
	fns := make([]func(Collection), 0, len(s.observers))
	for _, fn := range s.observers {
		fns = append(fns, fn)
	}
	s.obsMu.Unlock()
	for _, fn := range fns {
		fn(c)
	}
}

// LoadAll fetches every collection in order. A failed fetch keeps the previous value.
func (s *Store) LoadAll(ctx context.Context) {
	s.refresh(ctx, CollectionBatches, CollectionUsers, CollectionModules, CollectionAssignments, CollectionPendingSubmissions)
}

// Clear empties every collection.
func (s *Store) Clear() {
	s.mu.Lock()
	s.users, s.batches, s.modules, s.assignments, s.pending = nil, nil, nil, nil, nil
	s.mu.Unlock()
	for _, c := range []Collection{CollectionUsers, CollectionBatches, CollectionModules, CollectionAssignments, CollectionPendingSubmissions} {
		s.changed(c)
	}
}

// Refetch reloads one collection, returning the fetch error.
func (s *Store) Refetch(ctx context.Context, c Collection) error {
	start := time.Now()
	var err error
	switch c {
	case CollectionUsers:
		err = s.fetchUsers(ctx)
	case CollectionBatches:
		err = s.fetchBatches(ctx)
	case CollectionModules:
		err = s.fetchModules(ctx)
	case CollectionAssignments:
		err = s.fetchAssignments(ctx)
	case CollectionPendingSubmissions:
		err = s.fetchPendingSubmissions(ctx)
	default:
		err = fmt.Errorf("unknown collection %q", c)
	}
	s.metrics.ObserveRefetch(string(c), time.Since(start), err)
	if err != nil {
		s.logger.Warn("refetch failed", zap.String("collection", string(c)), zap.Error(err))
		return err
	}
	s.changed(c)
	return nil
}

func (s *Store) refresh(ctx context.Context, collections ...Collection) {
	for _, c := range collections {
		_ = s.Refetch(ctx, c)
	}
}

func (s *Store) fetchBatches(ctx context.Context) error {
	rows, err := s.gw.Batches.List(ctx)
	if err != nil {
		return err
	}
	enrollments, err := s.gw.Batches.ListEnrollments(ctx)
	if err != nil {
		return err
	}
	emails := make(map[string]map[string]struct{})
	for _, e := range enrollments {
		if emails[e.BatchID] == nil {
			emails[e.BatchID] = make(map[string]struct{})
		}
		emails[e.BatchID][e.Email] = struct{}{}
	}

	batches := make([]models.TrainingBatch, 0, len(rows))
	for _, row := range rows {
		batch := models.TrainingBatch{
			ID:            row.ID,
			Name:          row.Name,
			InstructorID:  row.InstructorID,
			StartDate:     row.StartDate,
			EndDate:       row.EndDate,
			Status:        row.Status,
			StudentEmails: sortedKeys(emails[row.ID]),
		}
		if row.InstructorName != nil {
			batch.InstructorName = *row.InstructorName
		}
		batches = append(batches, batch)
	}

	s.mu.Lock()
	s.batches = batches
	s.mu.Unlock()
	return nil
}

func (s *Store) fetchUsers(ctx context.Context) error {
	current, ok := s.state.CurrentUser()
	if !ok {
		s.mu.Lock()
		s.users = nil
		s.mu.Unlock()
		return nil
	}

	var profiles []models.Profile
	if current.Role == models.RoleStudentApplicant {
		p, err := s.gw.Profiles.FindByID(ctx, current.ID)
		if err != nil {
			return err
		}
		profiles = []models.Profile{*p}
	} else {
		list, err := s.gw.Profiles.List(ctx)
		if err != nil {
			return err
		}
		profiles = list
	}

	names := s.batchNames()
	users := make([]models.User, 0, len(profiles))
	var self *models.User
	for _, p := range profiles {
		u := models.UserFromProfile(p, names)
		users = append(users, u)
		if u.ID == current.ID {
			found := u.Clone()
			self = &found
		}
	}

	s.mu.Lock()
	s.users = users
	s.mu.Unlock()

	if self != nil {
		s.state.SetUser(*self)
	}
	return nil
}

func (s *Store) fetchModules(ctx context.Context) error {
	current, ok := s.state.CurrentUser()
	var rows []models.ModuleRow
	var err error
	switch {
	case !ok:
	case current.Role == models.RoleInstructor:
		rows, err = s.gw.Modules.ListByInstructor(ctx, current.ID)
	case current.Role == models.RoleStudentApplicant && current.BatchID != nil:
		rows, err = s.gw.Modules.ListByBatch(ctx, *current.BatchID)
	}
	if err != nil {
		return err
	}

	ids := make([]string, len(rows))
	for i, row := range rows {
		ids[i] = row.ID
	}
	lessons, err := s.gw.Modules.ListLessons(ctx, ids)
	if err != nil {
		return err
	}
	links, err := s.gw.Modules.ListBatchAssignments(ctx, ids)
	if err != nil {
		return err
	}

	lessonsByModule := make(map[string][]models.Lesson)
	for _, l := range lessons {
		lessonsByModule[l.ModuleID] = append(lessonsByModule[l.ModuleID], l)
	}
	batchesByModule := make(map[string][]string)
	for _, link := range links {
		batchesByModule[link.ModuleID] = append(batchesByModule[link.ModuleID], link.BatchID)
	}

	modules := make([]models.TrainingModule, 0, len(rows))
	for _, row := range rows {
		ls := lessonsByModule[row.ID]
		sort.SliceStable(ls, func(i, j int) bool { return ls[i].Position < ls[j].Position })
		if ls == nil {
			ls = []models.Lesson{}
		}
		assigned := batchesByModule[row.ID]
		if assigned == nil {
			assigned = []string{}
		}
		modules = append(modules, models.TrainingModule{
			ID:               row.ID,
			Title:            row.Title,
			Description:      row.Description,
			DurationDays:     row.DurationDays,
			InstructorID:     row.InstructorID,
			Lessons:          ls,
			AssignedBatchIDs: assigned,
			CreatedAt:        row.CreatedAt,
		})
	}

	s.mu.Lock()
	s.modules = modules
	s.mu.Unlock()
	return nil
}

func (s *Store) fetchAssignments(ctx context.Context) error {
	current, ok := s.state.CurrentUser()
	var assignments []models.Assignment
	switch {
	case !ok:
	case current.Role == models.RoleInstructor:
		rows, err := s.gw.Assignments.ListByInstructor(ctx, current.ID)
		if err != nil {
			return err
		}
		assignments = make([]models.Assignment, 0, len(rows))
		for _, row := range rows {
			module := models.UncategorizedModule
			if row.ModuleTitle != nil {
				module = *row.ModuleTitle
			}
			assigned := []string(row.AssignedTo)
			if assigned == nil {
				assigned = []string{}
			}
			assignments = append(assignments, models.Assignment{
				ID:         row.ID,
				Title:      row.Title,
				Module:     module,
				ModuleID:   row.ModuleID,
				DueDate:    row.DueDate,
				Files:      row.FileURLs,
				AssignedTo: assigned,
				Status:     models.AssignmentUpcoming,
			})
		}
	case current.Role == models.RoleStudentApplicant:
		rows, err := s.gw.Assignments.ListForStudent(ctx, current.ID)
		if err != nil {
			return err
		}
		ids := make([]string, len(rows))
		for i, row := range rows {
			ids[i] = row.ID
		}
		submissions := map[string]models.Submission{}
		if len(ids) > 0 {
			subs, err := s.gw.Submissions.ListByStudent(ctx, current.ID, ids)
			if err != nil {
				return err
			}
			for _, sub := range subs {
				submissions[sub.AssignmentID] = sub
			}
		}
		assignments = make([]models.Assignment, 0, len(rows))
		for _, row := range rows {
			module := models.UncategorizedModule
			if row.ModuleTitle != nil {
				module = *row.ModuleTitle
			}
			a := models.Assignment{
				ID:       row.ID,
				Title:    row.Title,
				Module:   module,
				ModuleID: row.ModuleID,
				DueDate:  row.DueDate,
				Files:    row.FileURLs,
				Status:   models.AssignmentUpcoming,
			}
			if sub, ok := submissions[row.ID]; ok {
				a.Status = models.AssignmentSubmitted
				if sub.Status == models.SubmissionGraded {
					a.Status = models.AssignmentGraded
				}
				a.Submission = &models.SubmissionSummary{Text: sub.Text, FileName: sub.FileName, SubmittedAt: sub.SubmittedAt}
				a.Score = sub.Score
				a.Feedback = sub.Feedback
			}
			assignments = append(assignments, a)
		}
	}

	s.mu.Lock()
	s.assignments = assignments
	s.mu.Unlock()
	return nil
}

func (s *Store) fetchPendingSubmissions(ctx context.Context) error {
	current, ok := s.state.CurrentUser()
	var pending []models.PendingSubmission
	if ok && current.Role == models.RoleInstructor {
		rows, err := s.gw.Submissions.ListPendingForInstructor(ctx, current.ID)
		if err != nil {
			return err
		}
		pending = make([]models.PendingSubmission, 0, len(rows))
		for _, row := range rows {
			pending = append(pending, models.PendingFromRow(row))
		}
	}

	s.mu.Lock()
	s.pending = pending
	s.mu.Unlock()
	return nil
}

// SubscribeToChanges listens for assignment, submission and batch changes and refetches the
// affected collections in the background. Notifications arriving during a refetch coalesce into one follow-up.
func (s *Store) SubscribeToChanges(ctx context.Context) {
	s.UnsubscribeFromChanges()
	if s.gw.Feed == nil {
		return
	}

	bg, cancel := context.WithCancel(context.WithoutCancel(ctx))
	work := newCoalescer(func(ctx context.Context) {
		s.refresh(ctx, CollectionAssignments, CollectionPendingSubmissions)
	})
	roster := newCoalescer(func(ctx context.Context) {
		s.refresh(ctx, CollectionBatches, CollectionUsers)
	})

	unsubscribe := s.gw.Feed.Subscribe(func(e realtime.Event) {
		switch e.Table {
		case tableAssignments, tableSubmissions:
			work.Trigger(bg)
		case tableBatches:
			roster.Trigger(bg)
		}
	}, realtime.Filter{Table: tableAssignments}, realtime.Filter{Table: tableSubmissions}, realtime.Filter{Table: tableBatches})

	s.subMu.Lock()
	s.feedCancel = unsubscribe
	s.subCancel = cancel
	s.groups = []*coalescer{work, roster}
	s.subMu.Unlock()
}

// UnsubscribeFromChanges stops listening. Refetches already running finish on their own.
func (s *Store) UnsubscribeFromChanges() {
	s.subMu.Lock()
	unsubscribe, cancel := s.feedCancel, s.subCancel
	s.feedCancel, s.subCancel = nil, nil
	s.subMu.Unlock()
	if unsubscribe != nil {
		unsubscribe()
	}
	if cancel != nil {
		cancel()
	}
}

func (s *Store) waitRefetches() {
	s.subMu.Lock()
	groups := append([]*coalescer(nil), s.groups...)
	s.subMu.Unlock()
	for _, g := range groups {
		g.Wait()
	}
}

// announce tells feeds that do not watch the database about a write.
func (s *Store) announce(ctx context.Context, table, op, id string) {
	if s.gw.Changes == nil {
		return
	}
	if err := s.gw.Changes.Publish(ctx, realtime.Event{Table: table, Op: op, ID: id}); err != nil {
		s.logger.Warn("change announce failed", zap.String("table", table), zap.Error(err))
	}
}

func (s *Store) batchNames() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make(map[string]string, len(s.batches))
	for _, b := range s.batches {
		names[b.ID] = b.Name
	}
	return names
}

// requireOwnAssignment admits the caller only for an assignment in their loaded collection:
// an instructor's own assignments or those routed to a student.
func (s *Store) requireOwnAssignment(id string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, a := range s.assignments {
		if a.ID == id {
			return nil
		}
	}
	return appErrors.Clone(appErrors.ErrNotFound, "Assignment not found.")
}

func (s *Store) requireOwnModule(id string) error {
	if !s.hasModule(id) {
		return appErrors.Clone(appErrors.ErrNotFound, "Module not found.")
	}
	return nil
}

func (s *Store) requirePendingSubmission(id string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.pending {
		if p.SubmissionID == id {
			return nil
		}
	}
	return appErrors.Clone(appErrors.ErrNotFound, "Submission not found or already graded.")
}

func (s *Store) requireRole(role models.Role, message string) (models.User, error) {
	user, ok := s.state.CurrentUser()
	if !ok || user.Role != role {
		return models.User{}, appErrors.Clone(appErrors.ErrForbidden, message)
	}
	return user, nil
}

// coalescer runs fn at most once at a time. Triggers during a run schedule exactly one more run.
type coalescer struct {
	fn      func(context.Context)
	mu      sync.Mutex
	running bool
	dirty   bool
	wg      sync.WaitGroup
}

func newCoalescer(fn func(context.Context)) *coalescer {
	return &coalescer{fn: fn}
}

func (c *coalescer) Trigger(ctx context.Context) {
	c.mu.Lock()
	if c.running {
		c.dirty = true
		c.mu.Unlock()
		return
	}
	c.running = true
	c.wg.Add(1)
	c.mu.Unlock()
	go c.loop(ctx)
}

func (c *coalescer) loop(ctx context.Context) {
	defer c.wg.Done()
	for {
		if ctx.Err() == nil {
			c.fn(ctx)
		}
		c.mu.Lock()
		if !c.dirty {
			c.running = false
			c.mu.Unlock()
			return
		}
		c.dirty = false
		c.mu.Unlock()
	}
}

// Wait blocks until no run is in flight.
func (c *coalescer) Wait() {
	c.wg.Wait()
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// failure wraps an external error with the user-facing message; typed errors pass through.
func failure(err error, format string, args ...interface{}) error {
	var appErr *appErrors.Error
	if errors.As(err, &appErr) {
		return err
	}
	message := fmt.Sprintf(format, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Wrap(err, appErrors.ErrNotFound.Code, appErrors.ErrNotFound.Status, message+": not found")
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, message+": "+err.Error())
}

// UserMessage returns the text shown to the user for err.
func UserMessage(err error) string {
	var appErr *appErrors.Error
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return strings.TrimSpace(err.Error())
}
