package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/prhi-portal-api/internal/middleware"
	"github.com/noah-isme/prhi-portal-api/internal/models"
	"github.com/noah-isme/prhi-portal-api/internal/service"
	appErrors "github.com/noah-isme/prhi-portal-api/pkg/errors"
)

type responseEnvelope struct {
	Data          json.RawMessage       `json:"data"`
	Error         *appErrors.Error      `json:"error"`
	Notifications []models.Notification `json:"notifications"`
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) responseEnvelope {
	t.Helper()
	var env responseEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env
}

func messages(env responseEnvelope) []string {
	out := make([]string, 0, len(env.Notifications))
	for _, n := range env.Notifications {
		out = append(out, n.Message)
	}
	return out
}

type rejectingProvider struct {
	service.AuthProvider
}

func (rejectingProvider) SignIn(context.Context, string, string, service.ClientMeta) (*models.Session, error) {
	return nil, appErrors.ErrInvalidCredentials
}

// testPortal builds a portal with an empty store. A zero user leaves it signed out.
func testPortal(user models.User) *service.Portal {
	state := service.NewAppState()
	if user.ID != "" {
		state.SetUser(user)
	}
	notifier := service.NewNotificationService(0, nil)
	store := service.NewStore(service.StoreDeps{State: state, Notifier: notifier}, service.StoreConfig{})
	auth := service.NewAuthClient(rejectingProvider{}, service.ClientMeta{})
	sessions := service.NewSessionManager(auth, state, store, service.Gateway{}, notifier, nil)
	return &service.Portal{Auth: auth, State: state, Sessions: sessions, Store: store, Notifier: notifier}
}

func admin() models.User {
	return models.User{ID: "admin-1", Name: "Ada Admin", Email: "admin@prhi.test", Role: models.RoleAdmin}
}

func applicant() models.User {
	return models.User{
		ID:               "app-1",
		Name:             "Ana Cruz",
		Email:            "ana@prhi.test",
		Role:             models.RoleStudentApplicant,
		AssessmentStatus: models.AssessmentPending,
		Documents:        models.DefaultDocuments(),
	}
}

// call runs h with p attached, as the portal middleware would.
func call(p *service.Portal, method, target string, body io.Reader, h gin.HandlerFunc, params ...gin.Param) *httptest.ResponseRecorder {
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(method, target, body)
	if body != nil {
		c.Request.Header.Set("Content-Type", "application/json")
	}
	c.Params = params
	if p != nil {
		middleware.AttachPortal(c, "sid-1", p)
	}
	h(c)
	// Flush a status-only response, as gin's engine does after the handler chain.
	c.Writer.WriteHeaderNow()
	return rec
}

func jsonBody(t *testing.T, v interface{}) io.Reader {
	t.Helper()
	raw, err := json.Marshal(v)
	require.NoError(t, err)
	return bytes.NewReader(raw)
}

func assertStatus(t *testing.T, want int, rec *httptest.ResponseRecorder) {
	t.Helper()
	require.Equalf(t, want, rec.Code, "body: %s", rec.Body.String())
}

func jsonUnmarshal(raw json.RawMessage, dst interface{}) error {
	return json.Unmarshal(raw, dst)
}
