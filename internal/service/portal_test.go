package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/prhi-portal-api/internal/models"
)

func newTestRegistry(t *testing.T) (*PortalRegistry, *harness, *mockAuthRepo) {
	t.Helper()
	h := newHarness(t)
	repo := newMockAuthRepo()
	registry := NewPortalRegistry(newTestAuthService(repo), h.gw, h.events, nil, nil, PortalConfig{IdleTTL: time.Minute}, zap.NewNop())
	return registry, h, repo
}

func TestPortalRegistryLifecycle(t *testing.T) {
	registry, h, repo := newTestRegistry(t)
	repo.addIdentity(t, "s1", "ana@example.com", "password")
	h.db.addProfile("s1", "Ana Cruz", "ana@example.com", models.RoleStudentApplicant)

	portal := registry.New(ClientMeta{})
	require.True(t, portal.Sessions.Login(context.Background(), "ana@example.com", "password"))
	sid := portal.Auth.Session().SessionID
	registry.Register(sid, portal)
	assert.Equal(t, 1, registry.Len())

	got, ok := registry.Get(sid)
	require.True(t, ok)
	user, ok := got.CurrentUser()
	require.True(t, ok)
	assert.Equal(t, "s1", user.ID)

	registry.Remove(sid)
	_, ok = registry.Get(sid)
	assert.False(t, ok)
	assert.Zero(t, registry.Len())
}

func TestPortalRegistryReplaceClosesOld(t *testing.T) {
	registry, _, _ := newTestRegistry(t)
	old := registry.New(ClientMeta{})
	registry.Register("sid", old)
	registry.Register("sid", registry.New(ClientMeta{}))

	assert.Equal(t, 1, registry.Len())
	assert.Zero(t, old.Notifier.ShowInfo("closed"))
}

func TestPortalRegistrySweepEvictsIdle(t *testing.T) {
	registry, _, _ := newTestRegistry(t)
	now := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	registry.now = func() time.Time { return now }

	registry.Register("idle", registry.New(ClientMeta{}))
	registry.Register("busy", registry.New(ClientMeta{}))

	now = now.Add(50 * time.Second)
	_, ok := registry.Get("busy")
	require.True(t, ok)

	now = now.Add(30 * time.Second)
	assert.Equal(t, 1, registry.Sweep())
	_, ok = registry.Get("idle")
	assert.False(t, ok)
	_, ok = registry.Get("busy")
	assert.True(t, ok)
}

func TestPortalRegistryRunClosesOnShutdown(t *testing.T) {
	registry, _, _ := newTestRegistry(t)
	registry.cfg.SweepInterval = 10 * time.Millisecond
	registry.Register("sid", registry.New(ClientMeta{}))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		registry.Run(ctx)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("registry did not stop")
	}
	assert.Zero(t, registry.Len())
}
