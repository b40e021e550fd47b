package workflow

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/prhi-portal-api/internal/service"
	appErrors "github.com/noah-isme/prhi-portal-api/pkg/errors"
)

type recordingNotifier struct {
	mu        sync.Mutex
	successes []string
	errors    []string
}

func (n *recordingNotifier) ShowSuccess(message string) int64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.successes = append(n.successes, message)
	return int64(len(n.successes))
}

func (n *recordingNotifier) ShowError(message string) int64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.errors = append(n.errors, message)
	return int64(len(n.errors))
}

type noteDraft struct {
	Title string `validate:"required"`
	Body  string
}

func TestFormSubmitValidatesBeforeMutation(t *testing.T) {
	notifier := &recordingNotifier{}
	calls := 0
	form := NewForm(noteDraft{}, func(context.Context, noteDraft) error {
		calls++
		return nil
	}, Options[noteDraft]{Notifier: notifier})

	err := form.Submit(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
	assert.Equal(t, RequiredFieldsMessage, service.UserMessage(err))
	assert.Zero(t, calls)
	assert.Equal(t, []string{RequiredFieldsMessage}, notifier.errors)
	assert.True(t, form.Open())
}

func TestFormSubmitSuccessCloses(t *testing.T) {
	notifier := &recordingNotifier{}
	closed := 0
	var got noteDraft
	form := NewForm(noteDraft{}, func(_ context.Context, d noteDraft) error {
		got = d
		return nil
	}, Options[noteDraft]{
		Notifier: notifier,
		Success:  func(d noteDraft) string { return "Saved " + d.Title },
		OnClose:  func() { closed++ },
	})

	require.NoError(t, form.Edit(func(d *noteDraft) { d.Title = "Week 1" }))
	assert.True(t, form.Dirty())
	require.NoError(t, form.Submit(context.Background()))

	assert.Equal(t, "Week 1", got.Title)
	assert.Equal(t, []string{"Saved Week 1"}, notifier.successes)
	assert.False(t, form.Open())
	assert.False(t, form.Dirty())
	assert.Equal(t, 1, closed)
	assert.ErrorIs(t, form.Edit(func(d *noteDraft) {}), ErrClosed)
	assert.ErrorIs(t, form.Submit(context.Background()), ErrClosed)
}

func TestFormSubmitFailureKeepsFormOpen(t *testing.T) {
	notifier := &recordingNotifier{}
	form := NewForm(noteDraft{Title: "x"}, func(context.Context, noteDraft) error {
		return appErrors.Clone(appErrors.ErrInternal, "Failed to save batch: boom")
	}, Options[noteDraft]{Notifier: notifier})

	require.Error(t, form.Submit(context.Background()))
	assert.Equal(t, []string{"Failed to save batch: boom"}, notifier.errors)
	assert.True(t, form.Open())
	assert.False(t, form.Submitting())
}

func TestFormPartialFailureIsNotRepeated(t *testing.T) {
	notifier := &recordingNotifier{}
	form := NewForm(noteDraft{Title: "x"}, func(context.Context, noteDraft) error {
		return appErrors.Clone(appErrors.ErrPartialFailure, "manual cleanup needed")
	}, Options[noteDraft]{Notifier: notifier})

	err := form.Submit(context.Background())
	assert.True(t, appErrors.IsPartialFailure(err))
	assert.Empty(t, notifier.errors)
}

func TestFormLocksEditsWhileSubmitting(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	form := NewForm(noteDraft{Title: "x"}, func(context.Context, noteDraft) error {
		close(started)
		<-release
		return nil
	}, Options[noteDraft]{})

	done := make(chan error, 1)
	go func() { done <- form.Submit(context.Background()) }()
	<-started

	assert.True(t, form.Submitting())
	assert.ErrorIs(t, form.Edit(func(d *noteDraft) { d.Title = "late" }), ErrSubmitting)
	assert.ErrorIs(t, form.Submit(context.Background()), ErrSubmitting)
	assert.False(t, form.RequestClose(func(string, string) bool { return true }))

	close(release)
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("submit did not finish")
	}
	assert.Equal(t, "x", form.Draft().Title)
}

func TestRequestCloseConfirmsOnlyWhenDirty(t *testing.T) {
	asked := 0
	decline := func(title, message string) bool {
		asked++
		assert.Equal(t, DiscardTitle, title)
		assert.Equal(t, DiscardMessage, message)
		return false
	}

	clean := NewForm(noteDraft{}, func(context.Context, noteDraft) error { return nil }, Options[noteDraft]{})
	assert.True(t, clean.RequestClose(decline))
	assert.Zero(t, asked)

	dirty := NewForm(noteDraft{}, func(context.Context, noteDraft) error { return nil }, Options[noteDraft]{})
	require.NoError(t, dirty.Edit(func(d *noteDraft) { d.Body = "draft" }))
	assert.False(t, dirty.RequestClose(decline))
	assert.Equal(t, 1, asked)
	assert.True(t, dirty.Open())

	assert.True(t, dirty.RequestClose(func(string, string) bool { return true }))
	assert.False(t, dirty.Open())
}
