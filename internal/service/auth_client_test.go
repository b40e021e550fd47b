package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/prhi-portal-api/internal/models"
)

type recordedEvent struct {
	event  AuthEvent
	userID string
}

func recordEvents(client *AuthClient) (*[]recordedEvent, func()) {
	var got []recordedEvent
	stop := client.OnAuthStateChange(func(_ context.Context, e AuthEvent, s *models.Session) {
		id := ""
		if s != nil {
			id = s.User.ID
		}
		got = append(got, recordedEvent{e, id})
	})
	return &got, stop
}

func TestAuthClientEmitsTransitions(t *testing.T) {
	repo := newMockAuthRepo()
	repo.addIdentity(t, "u1", "user@example.com", "password")
	client := NewAuthClient(newTestAuthService(repo), ClientMeta{})
	got, stop := recordEvents(client)
	ctx := context.Background()

	_, err := client.SignInWithPassword(ctx, "user@example.com", "password")
	require.NoError(t, err)
	_, err = client.RefreshSession(ctx)
	require.NoError(t, err)
	require.NoError(t, client.SignOut(ctx))

	stop()
	_, err = client.SignInWithPassword(ctx, "user@example.com", "password")
	require.NoError(t, err)

	assert.Equal(t, []recordedEvent{{AuthSignedIn, "u1"}, {AuthTokenRefreshed, "u1"}, {AuthSignedOut, ""}}, *got)
}

func TestAuthClientFailedSignInKeepsSession(t *testing.T) {
	repo := newMockAuthRepo()
	repo.addIdentity(t, "u1", "user@example.com", "password")
	client := NewAuthClient(newTestAuthService(repo), ClientMeta{})
	ctx := context.Background()

	_, err := client.SignInWithPassword(ctx, "user@example.com", "password")
	require.NoError(t, err)
	_, err = client.SignInWithPassword(ctx, "user@example.com", "bad")
	require.Error(t, err)
	require.NotNil(t, client.Session())
	assert.Equal(t, "u1", client.Session().User.ID)
}

func TestAuthClientMuteSuppressesEvents(t *testing.T) {
	repo := newMockAuthRepo()
	repo.addIdentity(t, "u1", "user@example.com", "password")
	client := NewAuthClient(newTestAuthService(repo), ClientMeta{})
	got, stop := recordEvents(client)
	defer stop()
	ctx := context.Background()

	outer := client.Mute()
	inner := client.Mute()
	_, err := client.SignInWithPassword(ctx, "user@example.com", "password")
	require.NoError(t, err)
	inner()
	inner()
	require.NoError(t, client.SignOut(ctx))
	outer()
	assert.Empty(t, *got)

	_, err = client.SignInWithPassword(ctx, "user@example.com", "password")
	require.NoError(t, err)
	assert.Len(t, *got, 1)
}

func TestAuthClientSetSessionRefreshesExpiredToken(t *testing.T) {
	repo := newMockAuthRepo()
	repo.addIdentity(t, "u1", "user@example.com", "password")
	client := NewAuthClient(newTestAuthService(repo), ClientMeta{})
	ctx := context.Background()

	session, err := client.SignInWithPassword(ctx, "user@example.com", "password")
	require.NoError(t, err)

	stale := *session
	stale.AccessToken = "garbage"
	restored, err := client.SetSession(ctx, stale)
	require.NoError(t, err)
	assert.Equal(t, session.SessionID, restored.SessionID)
	assert.NotEqual(t, "garbage", restored.AccessToken)
	assert.True(t, repo.revoked(session.RefreshToken))
}

func TestAuthClientRequiresSession(t *testing.T) {
	client := NewAuthClient(newTestAuthService(newMockAuthRepo()), ClientMeta{})
	ctx := context.Background()

	assert.Equal(t, "Auth session missing!", UserMessage(client.VerifyPassword(ctx, "x")))
	assert.Equal(t, "Auth session missing!", UserMessage(client.UpdatePassword(ctx, "x")))
	_, err := client.RefreshSession(ctx)
	assert.Error(t, err)
	assert.NoError(t, client.SignOut(ctx))
}
