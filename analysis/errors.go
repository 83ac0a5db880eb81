package analysis

import (
	"errors"
	"fmt"

	"github.com/c360studio/coach/rubric"
)

// Kind classifies analysis failures so callers can pattern-match on the
// failure mode instead of string-parsing error text.
type Kind string

const (
	// KindValidation covers request-scoped problems (unknown dimension or
	// role, empty transcript). Rejected before any pipeline starts.
	KindValidation Kind = "validation"

	// KindRubricNotFound means no active rubric exists for the requested
	// role and dimension. Dimension-scoped.
	KindRubricNotFound Kind = "rubric_not_found"

	// KindMissingKnowledgeBase means the product-knowledge dimension was
	// requested without the required knowledge-base content. Raised before
	// the LLM is invoked.
	KindMissingKnowledgeBase Kind = "missing_knowledge_base"

	// KindLLMUnavailable means the model could not be reached after retries
	// and fallbacks were exhausted.
	KindLLMUnavailable Kind = "llm_unavailable"

	// KindMalformedResponse means the model returned text that does not
	// parse into a valid dimension result. Never cached.
	KindMalformedResponse Kind = "malformed_response"

	// KindCacheBackendUnavailable is logged, never surfaced to callers; the
	// system degrades to always-miss behavior.
	KindCacheBackendUnavailable Kind = "cache_backend_unavailable"
)

// Error is an analysis failure tagged with its kind and, for
// dimension-scoped failures, the dimension it belongs to.
type Error struct {
	Kind      Kind
	Dimension rubric.Dimension
	Err       error
}

func (e *Error) Error() string {
	if e.Dimension != "" {
		return fmt.Sprintf("%s (%s): %v", e.Kind, e.Dimension, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError wraps err with an analysis kind.
func NewError(kind Kind, dimension rubric.Dimension, err error) *Error {
	return &Error{Kind: kind, Dimension: dimension, Err: err}
}

// KindOf extracts the Kind from err, or "" if err carries none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
