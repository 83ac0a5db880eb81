package llm

import "errors"

// Completion failures split into two classes. Transient failures (network
// errors, rate limits, 5xx) may clear on a retry or on a fallback endpoint.
// Fatal failures (bad credentials, rejected request bodies) will fail the
// same way everywhere, so the client surfaces them immediately and the
// scoring pipeline marks the dimension failed.

// TransientError wraps a failure worth another attempt.
type TransientError struct {
	err error
}

// NewTransientError wraps err as transient.
func NewTransientError(err error) error {
	return &TransientError{err: err}
}

func (e *TransientError) Error() string { return e.err.Error() }

func (e *TransientError) Unwrap() error { return e.err }

// FatalError wraps a failure that retrying cannot fix.
type FatalError struct {
	err error
}

// NewFatalError wraps err as fatal.
func NewFatalError(err error) error {
	return &FatalError{err: err}
}

func (e *FatalError) Error() string { return e.err.Error() }

func (e *FatalError) Unwrap() error { return e.err }

// IsTransient reports whether err is classified transient.
func IsTransient(err error) bool {
	var transient *TransientError
	return errors.As(err, &transient)
}

// IsFatal reports whether err is classified fatal.
func IsFatal(err error) bool {
	var fatal *FatalError
	return errors.As(err, &fatal)
}
