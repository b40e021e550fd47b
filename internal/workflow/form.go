// Package workflow holds the edit-and-submit plumbing shared by the portal's editors.
package workflow

import (
	"context"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/prhi-portal-api/internal/service"
	appErrors "github.com/noah-isme/prhi-portal-api/pkg/errors"
)

// Texts shown by every form.
const (
	DiscardTitle          = "Discard Changes?"
	DiscardMessage        = "You have unsaved changes. Are you sure you want to discard them?"
	RequiredFieldsMessage = "Please fill out all required fields."
)

var (
	// ErrSubmitting is returned while a submission is in flight.
	ErrSubmitting = appErrors.Clone(appErrors.ErrConflict, "A submission is already in progress.")
	// ErrClosed is returned by a form that was closed.
	ErrClosed = appErrors.Clone(appErrors.ErrPreconditionFailed, "This form has been closed.")
)

// Notifier receives the outcome of a submission.
type Notifier interface {
	ShowSuccess(message string) int64
	ShowError(message string) int64
}

// Confirmer asks the user to approve discarding changes.
type Confirmer func(title, message string) bool

// SubmitFunc performs the mutation for a validated draft.
type SubmitFunc[T any] func(ctx context.Context, draft T) error

// Options configures a Form.
type Options[T any] struct {
	Notifier Notifier
	Validate *validator.Validate
	// Success builds the success notification; empty means none.
	Success func(draft T) string
	OnClose func()
}

// Form is an open editor over a draft of T.
type Form[T any] struct {
	mu         sync.Mutex
	draft      T
	dirty      bool
	open       bool
	submitting bool

	submit SubmitFunc[T]
	opts   Options[T]
}

var defaultValidate = validator.New()

// NewForm opens a form on initial.
func NewForm[T any](initial T, submit SubmitFunc[T], opts Options[T]) *Form[T] {
	if opts.Validate == nil {
		opts.Validate = defaultValidate
	}
	return &Form[T]{draft: initial, open: true, submit: submit, opts: opts}
}

// Draft returns the current draft.
func (f *Form[T]) Draft() T {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.draft
}

// Edit applies fn to the draft and marks the form dirty.
func (f *Form[T]) Edit(fn func(draft *T)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.open {
		return ErrClosed
	}
	if f.submitting {
		return ErrSubmitting
	}
	fn(&f.draft)
	f.dirty = true
	return nil
}

// Dirty reports unsaved edits.
func (f *Form[T]) Dirty() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.dirty
}

// Open reports whether the form still accepts edits.
func (f *Form[T]) Open() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.open
}

// Submitting reports whether a submission is in flight.
func (f *Form[T]) Submitting() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.submitting
}

// RequestClose closes the form, asking confirm first when there are unsaved edits.
// It returns false when the user keeps editing or a submission is in flight.
func (f *Form[T]) RequestClose(confirm Confirmer) bool {
	f.mu.Lock()
	if !f.open {
		f.mu.Unlock()
		return true
	}
	if f.submitting {
		f.mu.Unlock()
		return false
	}
	dirty := f.dirty
	f.mu.Unlock()

	if dirty && (confirm == nil || !confirm(DiscardTitle, DiscardMessage)) {
		return false
	}
	f.close()
	return true
}

// Submit validates the draft and runs the mutation. Edits are rejected until it returns.
// On success the form closes.
func (f *Form[T]) Submit(ctx context.Context) error {
	f.mu.Lock()
	if !f.open {
		f.mu.Unlock()
		return ErrClosed
	}
	if f.submitting {
		f.mu.Unlock()
		return ErrSubmitting
	}
	draft := f.draft
	f.submitting = true
	f.mu.Unlock()

	err := f.run(ctx, draft)

	f.mu.Lock()
	f.submitting = false
	f.mu.Unlock()
	if err != nil {
		return err
	}
	if f.opts.Success != nil {
		if msg := f.opts.Success(draft); msg != "" {
			f.showSuccess(msg)
		}
	}
	f.close()
	return nil
}

func (f *Form[T]) run(ctx context.Context, draft T) error {
	if err := f.opts.Validate.Struct(draft); err != nil {
		f.showError(RequiredFieldsMessage)
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, RequiredFieldsMessage)
	}
	if err := f.submit(ctx, draft); err != nil {
		// partial failures already raised a critical notice
		if !appErrors.IsPartialFailure(err) {
			f.showError(service.UserMessage(err))
		}
		return err
	}
	return nil
}

func (f *Form[T]) close() {
	f.mu.Lock()
	wasOpen := f.open
	f.open = false
	f.dirty = false
	f.mu.Unlock()
	if wasOpen && f.opts.OnClose != nil {
		f.opts.OnClose()
	}
}

func (f *Form[T]) showSuccess(msg string) {
	if f.opts.Notifier != nil {
		f.opts.Notifier.ShowSuccess(msg)
	}
}

func (f *Form[T]) showError(msg string) {
	if f.opts.Notifier != nil {
		f.opts.Notifier.ShowError(msg)
	}
}
