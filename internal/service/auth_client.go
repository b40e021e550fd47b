package service

import (
	"context"
	"sync"

	"github.com/noah-isme/prhi-portal-api/internal/models"
	appErrors "github.com/noah-isme/prhi-portal-api/pkg/errors"
)

// AuthEvent is a transition of the client's active session.
type AuthEvent string

const (
	AuthSignedIn       AuthEvent = "SIGNED_IN"
	AuthInitialSession AuthEvent = "INITIAL_SESSION"
	AuthSignedOut      AuthEvent = "SIGNED_OUT"
	AuthTokenRefreshed AuthEvent = "TOKEN_REFRESHED"
	AuthUserUpdated    AuthEvent = "USER_UPDATED"
)

// AuthListener receives session transitions. Session is nil after sign-out.
type AuthListener func(ctx context.Context, event AuthEvent, session *models.Session)

// AuthProvider is the remote auth capability behind a client.
type AuthProvider interface {
	SignIn(ctx context.Context, email, password string, meta ClientMeta) (*models.Session, error)
	SignUp(ctx context.Context, input models.SignUpInput, meta ClientMeta) (*models.Session, error)
	Refresh(ctx context.Context, refreshToken, sessionID string, meta ClientMeta) (*models.Session, error)
	SignOut(ctx context.Context, refreshToken string) error
	VerifyPassword(ctx context.Context, userID, password string) error
	UpdatePassword(ctx context.Context, userID, newPassword string) error
	Reissue(ctx context.Context, userID, sessionID string, meta ClientMeta) (*models.Session, error)
	ValidateToken(token string) (*models.JWTClaims, error)
}

// AuthClient holds one active session and tells listeners when it changes.
// Every sign-in or sign-up replaces the active session, including sign-ups made on behalf of someone else.
type AuthClient struct {
	provider AuthProvider
	meta     ClientMeta

	mu        sync.Mutex
	session   *models.Session
	nextID    int
	listeners map[int]AuthListener
	muted     int
}

// NewAuthClient builds a client with no session.
func NewAuthClient(provider AuthProvider, meta ClientMeta) *AuthClient {
	return &AuthClient{provider: provider, meta: meta, listeners: make(map[int]AuthListener)}
}

// OnAuthStateChange registers l and returns its cancel func.
func (c *AuthClient) OnAuthStateChange(l AuthListener) func() {
	c.mu.Lock()
	c.nextID++
	id := c.nextID
	c.listeners[id] = l
	c.mu.Unlock()
	return func() {
		c.mu.Lock()
		delete(c.listeners, id)
		c.mu.Unlock()
	}
}

// Session returns a copy of the active session.
func (c *AuthClient) Session() *models.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return nil
	}
	s := *c.session
	return &s
}

// SignInWithPassword opens a session for the credentials.
func (c *AuthClient) SignInWithPassword(ctx context.Context, email, password string) (*models.Session, error) {
	session, err := c.provider.SignIn(ctx, email, password, c.meta)
	if err != nil {
		return nil, err
	}
	c.replace(ctx, session, AuthSignedIn)
	return session, nil
}

// SignUp registers a new account and makes it the active session.
func (c *AuthClient) SignUp(ctx context.Context, input models.SignUpInput) (*models.Session, error) {
	session, err := c.provider.SignUp(ctx, input, c.meta)
	if err != nil {
		return nil, err
	}
	c.replace(ctx, session, AuthSignedIn)
	return session, nil
}

// SetSession reinstates a previously issued session. The access token must still verify, otherwise
// the refresh token is exchanged for a new pair bound to the same session id.
func (c *AuthClient) SetSession(ctx context.Context, session models.Session) (*models.Session, error) {
	restored := session
	if _, err := c.provider.ValidateToken(session.AccessToken); err != nil {
		refreshed, refreshErr := c.provider.Refresh(ctx, session.RefreshToken, session.SessionID, c.meta)
		if refreshErr != nil {
			return nil, refreshErr
		}
		refreshed.User.FullName = session.User.FullName
		restored = *refreshed
	}
	c.replace(ctx, &restored, AuthSignedIn)
	return &restored, nil
}

// Restore resumes a session from a refresh token, as done when a client reconnects.
func (c *AuthClient) Restore(ctx context.Context, refreshToken string) (*models.Session, error) {
	session, err := c.provider.Refresh(ctx, refreshToken, "", c.meta)
	if err != nil {
		return nil, err
	}
	c.replace(ctx, session, AuthInitialSession)
	return session, nil
}

// RefreshSession rotates the active session's tokens.
func (c *AuthClient) RefreshSession(ctx context.Context) (*models.Session, error) {
	current := c.Session()
	if current == nil {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "Auth session missing!")
	}
	session, err := c.provider.Refresh(ctx, current.RefreshToken, current.SessionID, c.meta)
	if err != nil {
		return nil, err
	}
	session.User.FullName = current.User.FullName
	c.replace(ctx, session, AuthTokenRefreshed)
	return session, nil
}

// SignOut revokes the active session. Listeners are told even when revocation fails.
func (c *AuthClient) SignOut(ctx context.Context) error {
	c.mu.Lock()
	current := c.session
	c.session = nil
	c.mu.Unlock()

	var err error
	if current != nil {
		err = c.provider.SignOut(ctx, current.RefreshToken)
	}
	c.emit(ctx, AuthSignedOut, nil)
	return err
}

// VerifyPassword re-checks the active user's password.
func (c *AuthClient) VerifyPassword(ctx context.Context, password string) error {
	current := c.Session()
	if current == nil {
		return appErrors.Clone(appErrors.ErrUnauthorized, "Auth session missing!")
	}
	return c.provider.VerifyPassword(ctx, current.User.ID, password)
}

// UpdatePassword changes the active user's password. Outstanding refresh tokens are revoked,
// so the active session gets a new pair under the same session id.
func (c *AuthClient) UpdatePassword(ctx context.Context, newPassword string) error {
	current := c.Session()
	if current == nil {
		return appErrors.Clone(appErrors.ErrUnauthorized, "Auth session missing!")
	}
	if err := c.provider.UpdatePassword(ctx, current.User.ID, newPassword); err != nil {
		return err
	}
	session, err := c.provider.Reissue(ctx, current.User.ID, current.SessionID, c.meta)
	if err != nil {
		return err
	}
	session.User.FullName = current.User.FullName
	c.replace(ctx, session, AuthUserUpdated)
	return nil
}

// Revoke signs a session out at the provider without touching the active one.
func (c *AuthClient) Revoke(ctx context.Context, session *models.Session) error {
	if session == nil {
		return nil
	}
	return c.provider.SignOut(ctx, session.RefreshToken)
}

// Mute suppresses listener delivery until the returned func is called. Calls nest.
func (c *AuthClient) Mute() func() {
	c.mu.Lock()
	c.muted++
	c.mu.Unlock()
	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			c.muted--
			c.mu.Unlock()
		})
	}
}

func (c *AuthClient) replace(ctx context.Context, session *models.Session, event AuthEvent) {
	copied := *session
	c.mu.Lock()
	c.session = &copied
	c.mu.Unlock()
	c.emit(ctx, event, &copied)
}

func (c *AuthClient) emit(ctx context.Context, event AuthEvent, session *models.Session) {
	c.mu.Lock()
	if c.muted > 0 {
		c.mu.Unlock()
		return
	}
	listeners := make([]AuthListener, 0, len(c.listeners))
	for _, l := range c.listeners {
		listeners = append(listeners, l)
	}
	c.mu.Unlock()

	for _, l := range listeners {
		var s *models.Session
		if session != nil {
			copied := *session
			s = &copied
		}
		l(ctx, event, s)
	}
}
