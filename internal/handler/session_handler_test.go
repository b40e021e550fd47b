package handler

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/prhi-portal-api/internal/dto"
	"github.com/noah-isme/prhi-portal-api/internal/models"
	"github.com/noah-isme/prhi-portal-api/internal/service"
)

type fakeRegistry struct {
	built      []*service.Portal
	registered map[string]*service.Portal
	removed    []string
}

func (f *fakeRegistry) New(service.ClientMeta) *service.Portal {
	p := testPortal(models.User{})
	f.built = append(f.built, p)
	return p
}

func (f *fakeRegistry) Register(sessionID string, p *service.Portal) {
	if f.registered == nil {
		f.registered = make(map[string]*service.Portal)
	}
	f.registered[sessionID] = p
}

func (f *fakeRegistry) Remove(sessionID string) {
	f.removed = append(f.removed, sessionID)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	registry := &fakeRegistry{}
	h := NewSessionHandler(registry, nil)

	rec := call(nil, http.MethodPost, "/session/login", jsonBody(t, dto.LoginRequest{Email: "ana@prhi.test", Password: "nope"}), h.Login)

	assertStatus(t, http.StatusUnauthorized, rec)
	env := decode(t, rec)
	require.NotNil(t, env.Error)
	assert.Equal(t, "Invalid login credentials", env.Error.Message)
	assert.Len(t, registry.built, 1)
	assert.Empty(t, registry.registered)
}

func TestLoginValidatesPayload(t *testing.T) {
	registry := &fakeRegistry{}
	h := NewSessionHandler(registry, nil)

	rec := call(nil, http.MethodPost, "/session/login", jsonBody(t, map[string]string{"email": "ana@prhi.test"}), h.Login)

	assertStatus(t, http.StatusBadRequest, rec)
	assert.Empty(t, registry.built)
}

func TestMeRequiresPortal(t *testing.T) {
	h := NewSessionHandler(&fakeRegistry{}, nil)

	rec := call(nil, http.MethodGet, "/session/me", nil, h.Me)
	assertStatus(t, http.StatusUnauthorized, rec)

	rec = call(testPortal(models.User{}), http.MethodGet, "/session/me", nil, h.Me)
	assertStatus(t, http.StatusUnauthorized, rec)
}

func TestMeReturnsIdentity(t *testing.T) {
	h := NewSessionHandler(&fakeRegistry{}, nil)

	rec := call(testPortal(applicant()), http.MethodGet, "/session/me", nil, h.Me)

	assertStatus(t, http.StatusOK, rec)
	assert.Contains(t, string(decode(t, rec).Data), `"email":"ana@prhi.test"`)
}

func TestUpdateProfileRejectsBlankName(t *testing.T) {
	h := NewSessionHandler(&fakeRegistry{}, nil)
	p := testPortal(applicant())

	rec := call(p, http.MethodPut, "/session/profile", jsonBody(t, dto.UpdateProfileRequest{Name: "   "}), h.UpdateProfile)

	assertStatus(t, http.StatusBadRequest, rec)
	assert.Equal(t, []string{"Please fill out all required fields."}, messages(decode(t, rec)))
}

func TestUploadAvatarRequiresFile(t *testing.T) {
	h := NewSessionHandler(&fakeRegistry{}, nil)

	rec := call(testPortal(applicant()), http.MethodPost, "/session/avatar", nil, h.UploadAvatar)

	assertStatus(t, http.StatusBadRequest, rec)
}
