package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/prhi-portal-api/internal/models"
)

// Portal is one signed-in application context: a session, its identity and its collections.
type Portal struct {
	Auth     *AuthClient
	State    *AppState
	Sessions *SessionManager
	Store    *Store
	Notifier *NotificationService

	mu       sync.Mutex
	lastSeen time.Time
}

// Touch marks the portal as used.
func (p *Portal) Touch(now time.Time) {
	p.mu.Lock()
	p.lastSeen = now
	p.mu.Unlock()
}

// LastSeen reports when the portal last served a request.
func (p *Portal) LastSeen() time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastSeen
}

// Close releases the portal's subscriptions and timers.
func (p *Portal) Close() {
	p.Sessions.Close()
	p.Notifier.Close()
}

// PortalConfig tunes how portals are built and evicted.
type PortalConfig struct {
	IdleTTL         time.Duration
	SweepInterval   time.Duration
	NotificationTTL time.Duration
	Store           StoreConfig
}

// PortalRegistry maps session ids to portals.
type PortalRegistry struct {
	provider AuthProvider
	gw       Gateway
	events   *EventService
	cache    *CacheService
	metrics  *MetricsService
	logger   *zap.Logger
	cfg      PortalConfig
	now      func() time.Time

	mu      sync.RWMutex
	portals map[string]*Portal
}

// NewPortalRegistry builds an empty registry.
func NewPortalRegistry(provider AuthProvider, gw Gateway, events *EventService, cache *CacheService, metrics *MetricsService, cfg PortalConfig, logger *zap.Logger) *PortalRegistry {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = 30 * time.Minute
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = time.Minute
	}
	return &PortalRegistry{
		provider: provider,
		gw:       gw,
		events:   events,
		cache:    cache,
		metrics:  metrics,
		logger:   logger,
		cfg:      cfg,
		now:      time.Now,
		portals:  make(map[string]*Portal),
	}
}

// New builds a portal that is not yet registered under any session.
func (r *PortalRegistry) New(meta ClientMeta) *Portal {
	state := NewAppState()
	notifier := NewNotificationService(r.cfg.NotificationTTL, r.metrics)
	store := NewStore(StoreDeps{
		Gateway:  r.gw,
		State:    state,
		Notifier: notifier,
		Events:   r.events,
		Cache:    r.cache,
		Metrics:  r.metrics,
		Logger:   r.logger,
	}, r.cfg.Store)
	auth := NewAuthClient(r.provider, meta)
	sessions := NewSessionManager(auth, state, store, r.gw, notifier, r.logger)
	return &Portal{Auth: auth, State: state, Sessions: sessions, Store: store, Notifier: notifier, lastSeen: r.now()}
}

// Register stores p under sessionID, closing any portal it replaces.
func (r *PortalRegistry) Register(sessionID string, p *Portal) {
	p.Touch(r.now())
	r.mu.Lock()
	old, replaced := r.portals[sessionID]
	r.portals[sessionID] = p
	r.mu.Unlock()
	if replaced && old != p {
		old.Close()
		r.metrics.PortalClosed()
	}
	if !replaced || old != p {
		r.metrics.PortalOpened()
	}
}

// Get returns the portal of a session and marks it used.
func (r *PortalRegistry) Get(sessionID string) (*Portal, bool) {
	r.mu.RLock()
	p, ok := r.portals[sessionID]
	r.mu.RUnlock()
	if ok {
		p.Touch(r.now())
	}
	return p, ok
}

// Remove closes and forgets a session's portal.
func (r *PortalRegistry) Remove(sessionID string) {
	r.mu.Lock()
	p, ok := r.portals[sessionID]
	delete(r.portals, sessionID)
	r.mu.Unlock()
	if ok {
		p.Close()
		r.metrics.PortalClosed()
	}
}

// Len returns the number of live portals.
func (r *PortalRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.portals)
}

// Sweep evicts portals idle for longer than the configured TTL and returns how many were evicted.
func (r *PortalRegistry) Sweep() int {
	cutoff := r.now().Add(-r.cfg.IdleTTL)
	var idle []*Portal
	r.mu.Lock()
	for sid, p := range r.portals {
		if p.LastSeen().Before(cutoff) {
			idle = append(idle, p)
			delete(r.portals, sid)
		}
	}
	r.mu.Unlock()
	for _, p := range idle {
		p.Close()
		r.metrics.PortalClosed()
	}
	return len(idle)
}

// Run sweeps idle portals until ctx is done, then closes every portal.
func (r *PortalRegistry) Run(ctx context.Context) {
	ticker := time.NewTicker(r.cfg.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			r.closeAll()
			return
		case <-ticker.C:
			if n := r.Sweep(); n > 0 {
				r.logger.Info("evicted idle portals", zap.Int("count", n))
			}
		}
	}
}

func (r *PortalRegistry) closeAll() {
	r.mu.Lock()
	portals := r.portals
	r.portals = make(map[string]*Portal)
	r.mu.Unlock()
	for _, p := range portals {
		p.Close()
		r.metrics.PortalClosed()
	}
}

// CurrentUser is a convenience for handlers.
func (p *Portal) CurrentUser() (models.User, bool) {
	return p.State.CurrentUser()
}
