package service

import (
	"strings"
	"sync"
	"time"

	"github.com/noah-isme/prhi-portal-api/internal/models"
)

const defaultInboxLimit = 100

// InAppNotificationService keeps a per-user inbox shared by every portal on this instance.
type InAppNotificationService struct {
	mu     sync.Mutex
	nextID int64
	limit  int
	inbox  map[string][]models.InAppNotification
	now    func() time.Time
}

// NewInAppNotificationService builds an inbox keeping at most limit entries per user.
func NewInAppNotificationService(limit int) *InAppNotificationService {
	if limit <= 0 {
		limit = defaultInboxLimit
	}
	return &InAppNotificationService{
		limit: limit,
		inbox: make(map[string][]models.InAppNotification),
		now:   time.Now,
	}
}

// Add prepends an unread entry for email.
func (s *InAppNotificationService) Add(email, message string) models.InAppNotification {
	key := inboxKey(email)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	entry := models.InAppNotification{
		ID:        s.nextID,
		UserEmail: email,
		Message:   message,
		Timestamp: s.now().UTC(),
	}
	list := append([]models.InAppNotification{entry}, s.inbox[key]...)
	if len(list) > s.limit {
		list = list[:s.limit]
	}
	s.inbox[key] = list
	return entry
}

// List returns the user's entries, newest first.
func (s *InAppNotificationService) List(email string) []models.InAppNotification {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.InAppNotification{}, s.inbox[inboxKey(email)]...)
}

// HasUnread reports whether any entry is unread.
func (s *InAppNotificationService) HasUnread(email string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, n := range s.inbox[inboxKey(email)] {
		if !n.IsRead {
			return true
		}
	}
	return false
}

// MarkAllRead flags every entry as read and returns how many changed.
func (s *InAppNotificationService) MarkAllRead(email string) int {
	key := inboxKey(email)
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.inbox[key]
	if len(list) == 0 {
		return 0
	}
	updated := make([]models.InAppNotification, len(list))
	changed := 0
	for i, n := range list {
		if !n.IsRead {
			n.IsRead = true
			changed++
		}
		updated[i] = n
	}
	s.inbox[key] = updated
	return changed
}

func inboxKey(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
