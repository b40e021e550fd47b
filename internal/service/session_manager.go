package service

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/noah-isme/prhi-portal-api/internal/models"
	"github.com/noah-isme/prhi-portal-api/internal/realtime"
	"github.com/noah-isme/prhi-portal-api/internal/repository"
	appErrors "github.com/noah-isme/prhi-portal-api/pkg/errors"
)

// RegisterInput is the self-service sign-up form.
type RegisterInput struct {
	FirstName  string
	MiddleName string
	LastName   string
	Email      string
	Password   string
}

// FullName joins the non-empty name parts.
func (in RegisterInput) FullName() string {
	parts := make([]string, 0, 3)
	for _, p := range []string{in.FirstName, in.MiddleName, in.LastName} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, " ")
}

// InstructorAccountInput is the admin form for creating an instructor.
type InstructorAccountInput struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

// SessionManager keeps the current identity in step with the auth client's session.
type SessionManager struct {
	auth     *AuthClient
	state    *AppState
	store    *Store
	profiles ProfileGateway
	feed     realtime.Feed
	notifier *NotificationService
	logger   *zap.Logger

	mu           sync.Mutex
	profileWatch *profileWatch
	stopAuth     func()
}

// profileWatch refreshes one user's identity off the feed's dispatch path.
type profileWatch struct {
	unsubscribe func()
	cancel      context.CancelFunc
	refresh     *coalescer
}

func (w *profileWatch) stop() {
	w.unsubscribe()
	w.cancel()
	w.refresh.Wait()
}

// NewSessionManager wires the manager to the client's auth events.
func NewSessionManager(auth *AuthClient, state *AppState, store *Store, gw Gateway, notifier *NotificationService, logger *zap.Logger) *SessionManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &SessionManager{
		auth:     auth,
		state:    state,
		store:    store,
		profiles: gw.Profiles,
		feed:     gw.Feed,
		notifier: notifier,
		logger:   logger.With(zap.String("component", "session")),
	}
	m.stopAuth = auth.OnAuthStateChange(m.OnAuthEvent)
	return m
}

// OnAuthEvent reacts to a session transition.
func (m *SessionManager) OnAuthEvent(ctx context.Context, event AuthEvent, session *models.Session) {
	switch event {
	case AuthSignedIn, AuthInitialSession:
		if session == nil {
			return
		}
		m.signedIn(ctx, session.User.ID)
	case AuthSignedOut:
		m.signedOut()
	}
}

func (m *SessionManager) signedIn(ctx context.Context, userID string) {
	profile, err := m.profiles.FindByID(ctx, userID)
	if err != nil {
		m.logger.Error("error fetching user profile", zap.String("user_id", userID), zap.Error(err))
		unmute := m.auth.Mute()
		_ = m.auth.SignOut(ctx)
		unmute()
		m.signedOut()
		if repository.IsPolicyRecursion(err) {
			m.notifier.ShowCritical(repository.PolicyRecursionMessage)
			return
		}
		if appErrors.HasCode(err, appErrors.ErrConfigurationFix.Code) {
			m.notifier.ShowCritical(UserMessage(err))
			return
		}
		m.notifier.ShowError(fmt.Sprintf("Failed to load your profile: %s", UserMessage(err)))
		return
	}

	m.state.SetUser(models.UserFromProfile(*profile, m.store.batchNames()))
	m.watchProfile(ctx, userID)
	m.store.SubscribeToChanges(ctx)
	m.store.LoadAll(ctx)
}

// watchProfile keeps the current identity fresh when its profile row is updated elsewhere.
// Bursts of updates collapse into one reload.
func (m *SessionManager) watchProfile(ctx context.Context, userID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopProfileWatch()
	if m.feed == nil {
		return
	}
	watchCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	refresh := newCoalescer(func(ctx context.Context) {
		profile, err := m.profiles.FindByID(ctx, userID)
		if err != nil {
			m.logger.Warn("profile refresh failed", zap.String("user_id", userID), zap.Error(err))
			return
		}
		if ctx.Err() != nil {
			return
		}
		if current, ok := m.state.CurrentUser(); ok && current.ID == userID {
			m.state.SetUser(models.UserFromProfile(*profile, m.store.batchNames()))
		}
	})
	unsubscribe := m.feed.Subscribe(func(realtime.Event) {
		refresh.Trigger(watchCtx)
	}, realtime.Filter{Table: tableProfiles, Op: realtime.OpUpdate, ID: userID})
	m.profileWatch = &profileWatch{unsubscribe: unsubscribe, cancel: cancel, refresh: refresh}
}

// stopProfileWatch must be called with m.mu held.
func (m *SessionManager) stopProfileWatch() {
	if m.profileWatch != nil {
		m.profileWatch.stop()
		m.profileWatch = nil
	}
}

// waitProfileRefresh blocks until a pending identity reload has finished.
func (m *SessionManager) waitProfileRefresh() {
	m.mu.Lock()
	w := m.profileWatch
	m.mu.Unlock()
	if w != nil {
		w.refresh.Wait()
	}
}

func (m *SessionManager) signedOut() {
	m.mu.Lock()
	m.stopProfileWatch()
	m.mu.Unlock()
	m.store.UnsubscribeFromChanges()
	m.state.Clear()
	m.store.Clear()
}

// Login signs in and reports whether an identity is now active.
func (m *SessionManager) Login(ctx context.Context, email, password string) bool {
	if _, err := m.auth.SignInWithPassword(ctx, email, password); err != nil {
		m.logger.Info("login failed", zap.String("email", email), zap.Error(err))
		return false
	}
	_, ok := m.state.CurrentUser()
	return ok
}

// Restore resumes a session from a refresh token.
func (m *SessionManager) Restore(ctx context.Context, refreshToken string) (*models.Session, error) {
	session, err := m.auth.Restore(ctx, refreshToken)
	if err != nil {
		return nil, err
	}
	if _, ok := m.state.CurrentUser(); !ok {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "Failed to load your profile.")
	}
	return session, nil
}

// Register creates an applicant account and signs it in.
func (m *SessionManager) Register(ctx context.Context, input RegisterInput) (models.User, error) {
	session, err := m.auth.SignUp(ctx, models.SignUpInput{
		Email:    input.Email,
		Password: input.Password,
		FullName: input.FullName(),
	})
	if err != nil {
		return models.User{}, err
	}
	if user, ok := m.state.CurrentUser(); ok {
		return user, nil
	}
	return models.User{
		ID:               session.User.ID,
		Name:             input.FullName(),
		Email:            session.User.Email,
		Role:             models.RoleStudentApplicant,
		AssessmentStatus: models.AssessmentPending,
		Documents:        models.DefaultDocuments(),
	}, nil
}

// Logout ends the session. Local state is cleared even when revocation fails.
func (m *SessionManager) Logout(ctx context.Context) error {
	return m.auth.SignOut(ctx)
}

// ChangePassword re-verifies the current password before setting a new one.
func (m *SessionManager) ChangePassword(ctx context.Context, currentPassword, newPassword string) error {
	if _, ok := m.state.CurrentUser(); !ok {
		return appErrors.Clone(appErrors.ErrUnauthorized, "User not authenticated.")
	}
	if err := m.auth.VerifyPassword(ctx, currentPassword); err != nil {
		if appErrors.HasCode(err, appErrors.ErrInvalidCredentials.Code) {
			return appErrors.Wrap(err, appErrors.ErrInvalidCredentials.Code, appErrors.ErrInvalidCredentials.Status, "Incorrect current password.")
		}
		return err
	}
	if err := m.auth.UpdatePassword(ctx, newPassword); err != nil {
		status := appErrors.FromError(err).Status
		return appErrors.Wrap(err, appErrors.FromError(err).Code, status, "Failed to update password: "+UserMessage(err))
	}
	return nil
}

// UpdateProfileName renames a user.
func (m *SessionManager) UpdateProfileName(ctx context.Context, userID, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return appErrors.Clone(appErrors.ErrValidation, "Please fill out all required fields.")
	}
	if err := m.store.requireSelfOrAdmin(userID); err != nil {
		return err
	}
	if err := m.profiles.UpdateName(ctx, userID, name); err != nil {
		return failure(err, "Failed to update user")
	}
	if current, ok := m.state.CurrentUser(); ok && current.ID == userID {
		current.Name = name
		m.state.SetUser(current)
	}
	m.store.refresh(ctx, CollectionUsers)
	return nil
}

// CreateInstructorAccount signs up an account on the admin's behalf, restores the admin's
// session and promotes the new profile. A failed promotion deletes the new account.
func (m *SessionManager) CreateInstructorAccount(ctx context.Context, input InstructorAccountInput) error {
	if strings.TrimSpace(input.Email) == "" || input.Password == "" {
		return appErrors.Clone(appErrors.ErrValidation, "Email and password are required to create an instructor.")
	}
	admin := m.auth.Session()
	if admin == nil {
		return appErrors.Clone(appErrors.ErrUnauthorized, "Could not get current admin session. Cannot create user.")
	}

	unmute := m.auth.Mute()
	created, err := m.auth.SignUp(ctx, models.SignUpInput{Email: input.Email, Password: input.Password, FullName: input.Name})
	if err != nil {
		if _, restoreErr := m.auth.SetSession(ctx, *admin); restoreErr != nil {
			m.logger.Warn("admin session restore failed after sign up error", zap.Error(restoreErr))
		}
		unmute()
		return err
	}
	if _, err := m.auth.SetSession(ctx, *admin); err != nil {
		unmute()
		_ = m.auth.SignOut(ctx)
		partial := appErrors.Wrap(err, appErrors.ErrPartialFailure.Code, appErrors.ErrPartialFailure.Status,
			"User created, but failed to restore your session. Please log in again.")
		m.notifier.ShowCritical(partial.Message)
		return partial
	}
	unmute()

	defer func() {
		if err := m.auth.Revoke(ctx, created); err != nil {
			m.logger.Warn("failed to revoke instructor sign-up session", zap.Error(err))
		}
	}()

	if err := m.profiles.UpdateRole(ctx, created.User.ID, models.RoleInstructor); err != nil {
		reason := UserMessage(err)
		if delErr := m.profiles.DeleteUser(ctx, created.User.ID); delErr != nil {
			m.logger.Error("instructor compensation failed", zap.String("user_id", created.User.ID), zap.Error(delErr))
			partial := appErrors.Wrap(delErr, appErrors.ErrPartialFailure.Code, appErrors.ErrPartialFailure.Status,
				fmt.Sprintf("Failed to set instructor role: %s. The new account %s could not be removed and must be deleted manually.", reason, created.User.Email))
			m.notifier.ShowCritical(partial.Message)
			return partial
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status,
			fmt.Sprintf("Failed to set instructor role: %s. The new user has been deleted.", reason))
	}

	m.store.refresh(ctx, CollectionUsers)
	return nil
}

// DeleteAccount removes a user and their profile.
func (m *SessionManager) DeleteAccount(ctx context.Context, userID string) error {
	if user, ok := m.state.CurrentUser(); !ok || user.Role != models.RoleAdmin {
		return appErrors.Clone(appErrors.ErrForbidden, "Only admins can delete users.")
	}
	if err := m.profiles.DeleteUser(ctx, userID); err != nil {
		return failure(err, "Failed to delete user")
	}
	m.store.refresh(ctx, CollectionUsers)
	return nil
}

// Close detaches the manager from its auth client and feed.
func (m *SessionManager) Close() {
	if m.stopAuth != nil {
		m.stopAuth()
	}
	m.mu.Lock()
	m.stopProfileWatch()
	m.mu.Unlock()
	m.store.UnsubscribeFromChanges()
}
