package service

import (
	"sync"
	"time"

	"github.com/noah-isme/prhi-portal-api/internal/models"
)

// DefaultNotificationTTL is how long a transient notification stays visible.
const DefaultNotificationTTL = 5 * time.Second

// NotificationService is the portal's transient message channel.
type NotificationService struct {
	mu        sync.Mutex
	ttl       time.Duration
	nextID    int64
	items     []models.Notification
	timers    map[int64]*time.Timer
	nextObs   int
	observers map[int]func([]models.Notification)
	metrics   *MetricsService
	closed    bool
}

// NewNotificationService builds a channel whose entries expire after ttl.
func NewNotificationService(ttl time.Duration, metrics *MetricsService) *NotificationService {
	if ttl <= 0 {
		ttl = DefaultNotificationTTL
	}
	return &NotificationService{
		ttl:       ttl,
		timers:    make(map[int64]*time.Timer),
		observers: make(map[int]func([]models.Notification)),
		metrics:   metrics,
	}
}

// Show appends a notification and schedules its removal.
func (s *NotificationService) Show(message string, kind models.NotificationType) int64 {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return 0
	}
	s.nextID++
	id := s.nextID
	s.items = append(s.items, models.Notification{ID: id, Message: message, Type: kind})
	s.timers[id] = time.AfterFunc(s.ttl, func() { s.Remove(id) })
	snapshot, observers := s.snapshot()
	s.mu.Unlock()

	s.metrics.RecordNotification(string(kind))
	notify(observers, snapshot)
	return id
}

func (s *NotificationService) ShowSuccess(message string) int64 {
	return s.Show(message, models.NotificationSuccess)
}

func (s *NotificationService) ShowError(message string) int64 {
	return s.Show(message, models.NotificationError)
}

func (s *NotificationService) ShowInfo(message string) int64 {
	return s.Show(message, models.NotificationInfo)
}

func (s *NotificationService) ShowCritical(message string) int64 {
	return s.Show(message, models.NotificationCritical)
}

// Remove dismisses a notification; unknown ids are ignored.
func (s *NotificationService) Remove(id int64) bool {
	s.mu.Lock()
	idx := -1
	for i, n := range s.items {
		if n.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		s.mu.Unlock()
		return false
	}
	items := make([]models.Notification, 0, len(s.items)-1)
	items = append(items, s.items[:idx]...)
	s.items = append(items, s.items[idx+1:]...)
	if t, ok := s.timers[id]; ok {
		t.Stop()
		delete(s.timers, id)
	}
	snapshot, observers := s.snapshot()
	s.mu.Unlock()

	notify(observers, snapshot)
	return true
}

// List returns the live notifications, oldest first.
func (s *NotificationService) List() []models.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Notification(nil), s.items...)
}

// Observe registers fn to receive the full list after every change.
func (s *NotificationService) Observe(fn func([]models.Notification)) func() {
	s.mu.Lock()
	s.nextObs++
	id := s.nextObs
	s.observers[id] = fn
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		delete(s.observers, id)
		s.mu.Unlock()
	}
}

// Close stops pending expiry timers. Later calls to Show are ignored.
func (s *NotificationService) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	for id, t := range s.timers {
		t.Stop()
		delete(s.timers, id)
	}
}

func (s *NotificationService) snapshot() ([]models.Notification, []func([]models.Notification)) {
	items := append([]models.Notification(nil), s.items...)
	observers := make([]func([]models.Notification), 0, len(s.observers))
	for _, fn := range s.observers {
		observers = append(observers, fn)
	}
	return items, observers
}

func notify(observers []func([]models.Notification), items []models.Notification) {
	for _, fn := range observers {
		fn(append([]models.Notification(nil), items...))
	}
}
