package user

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

// Sentinels for the expected, user-facing outcomes of directory operations.
// The HTTP layer maps them to status codes; they are never logged as system
// errors.
var (
	// ErrNotFound marks lookups and mutations addressing an absent id.
	ErrNotFound = errors.New("user not found")
	// ErrConflict marks uniqueness violations on create or update. Concrete
	// conflict errors carry their own message ("username already exists")
	// and match ErrConflict via errors.Is.
	ErrConflict = errors.New("conflict")
	// ErrValidation marks malformed input that reached the service, such as
	// a non-numeric id in the request path.
	ErrValidation = errors.New("invalid request")
)

// classified is an error that carries its own user-facing message while
// matching one of the sentinels above. Classification goes through the Is
// method, so both the standard library's errors.Is and the cockroachdb
// package agree on it.
type classified struct {
	msg  string
	kind error
}

func (e *classified) Error() string { return e.msg }

func (e *classified) Is(target error) bool { return target == e.kind }

// conflict builds a user-facing conflict error with the given message.
func conflict(msg string) error {
	return &classified{msg: msg, kind: ErrConflict}
}

// Validationf builds a user-facing validation error with the given message.
func Validationf(format string, args ...any) error {
	return &classified{msg: fmt.Sprintf(format, args...), kind: ErrValidation}
}
