// Package apperr classifies errors so the HTTP layer can map them to
// the right status code without inspecting message strings.
package apperr

import "errors"

// Kind categorizes an error.
type Kind int

const (
	// KindUnknown is any error the application did not classify.
	KindUnknown Kind = iota
	// KindInvalid marks bad client input. Mapped to 400.
	KindInvalid
	// KindNotFound marks a missing resource. Mapped to 404.
	KindNotFound
	// KindUnavailable marks an external backend failure. Mapped to 500.
	KindUnavailable
)

// E is a classified application error.
type E struct {
	ErrKind Kind
	Message string
	Err     error
}

func (e *E) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *E) Unwrap() error { return e.Err }

// Invalid reports bad client input.
func Invalid(message string) error {
	return &E{ErrKind: KindInvalid, Message: message}
}

// NotFound reports a missing resource.
func NotFound(message string) error {
	return &E{ErrKind: KindNotFound, Message: message}
}

// Unavailable reports an external backend failure, wrapping its cause.
func Unavailable(message string, err error) error {
	return &E{ErrKind: KindUnavailable, Message: message, Err: err}
}

// KindOf extracts the classification of err, or KindUnknown.
func KindOf(err error) Kind {
	var e *E
	if errors.As(err, &e) {
		return e.ErrKind
	}
	return KindUnknown
}
