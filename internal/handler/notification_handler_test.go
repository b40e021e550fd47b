package handler

import (
	"net/http"
	"strconv"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/prhi-portal-api/internal/dto"
	"github.com/noah-isme/prhi-portal-api/internal/service"
)

func TestNotificationListAndDismiss(t *testing.T) {
	h := NewNotificationHandler(service.NewInAppNotificationService(0))
	p := testPortal(admin())
	id := p.Notifier.ShowSuccess("Batch saved successfully.")

	rec := call(p, http.MethodGet, "/notifications", nil, h.List)
	assertStatus(t, http.StatusOK, rec)
	assert.Equal(t, []string{"Batch saved successfully."}, messages(decode(t, rec)))

	rec = call(p, http.MethodDelete, "/notifications/x", nil, h.Dismiss, gin.Param{Key: "id", Value: "x"})
	assertStatus(t, http.StatusBadRequest, rec)

	rec = call(p, http.MethodDelete, "/notifications/99", nil, h.Dismiss, gin.Param{Key: "id", Value: "99"})
	assertStatus(t, http.StatusNotFound, rec)

	rec = call(p, http.MethodDelete, "/notifications/1", nil, h.Dismiss, gin.Param{Key: "id", Value: strconv.FormatInt(id, 10)})
	assertStatus(t, http.StatusNoContent, rec)
	assert.Empty(t, p.Notifier.List())
}

func TestInboxAndMarkRead(t *testing.T) {
	inbox := service.NewInAppNotificationService(0)
	inbox.Add("ANA@prhi.test", "You have been enrolled in Batch 1.")
	inbox.Add("someone@prhi.test", "Not yours.")
	h := NewNotificationHandler(inbox)
	p := testPortal(applicant())

	rec := call(p, http.MethodGet, "/inbox", nil, h.Inbox)
	assertStatus(t, http.StatusOK, rec)
	var body dto.InboxResponse
	require.NoError(t, jsonUnmarshal(decode(t, rec).Data, &body))
	require.Len(t, body.Items, 1)
	assert.Equal(t, "You have been enrolled in Batch 1.", body.Items[0].Message)
	assert.True(t, body.HasUnread)

	rec = call(p, http.MethodPost, "/inbox/read", nil, h.MarkRead)
	assertStatus(t, http.StatusOK, rec)
	assert.False(t, inbox.HasUnread("ana@prhi.test"))
}
