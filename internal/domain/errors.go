package domain

import "errors"

var (
	ErrValidation = errors.New("validation error")
	ErrNotFound   = errors.New("not found")

	// Startup preconditions; any of these aborts a run before a recipient is touched.
	ErrRecipientSourceMissing = errors.New("recipient source is missing")
	ErrMissingCredentials     = errors.New("transport credentials are missing")
	ErrNoTemplates            = errors.New("no templates available")
	ErrNoAttachments          = errors.New("no attachments available")
)

// IsPrecondition reports whether err is a startup precondition failure.
func IsPrecondition(err error) bool {
	return errors.Is(err, ErrRecipientSourceMissing) ||
		errors.Is(err, ErrMissingCredentials) ||
		errors.Is(err, ErrNoTemplates) ||
		errors.Is(err, ErrNoAttachments)
}
