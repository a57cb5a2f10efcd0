package chat

import (
	"errors"
	"fmt"
)

// Sentinel error kinds for the messaging core. Callers branch with
// errors.Is; the REST and socket layers map them onto their own surfaces.
// Idempotent re-invocations (toggle already in requested state, repeated
// MarkRead) are deliberately not errors.
var (
	// ErrAuth covers bad/expired tokens and inactive accounts.
	ErrAuth = errors.New("authentication failed")
	// ErrNotFound covers missing conversations, messages and participants.
	ErrNotFound = errors.New("not found")
	// ErrForbidden covers non-participants, wrong roles and blocked conversations.
	ErrForbidden = errors.New("forbidden")
	// ErrValidation covers missing or malformed fields.
	ErrValidation = errors.New("validation failed")
)

func authErr(format string, args ...interface{}) error {
	return fmt.Errorf("%w: "+format, append([]interface{}{ErrAuth}, args...)...)
}

func notFoundErr(format string, args ...interface{}) error {
	return fmt.Errorf("%w: "+format, append([]interface{}{ErrNotFound}, args...)...)
}

func forbiddenErr(format string, args ...interface{}) error {
	return fmt.Errorf("%w: "+format, append([]interface{}{ErrForbidden}, args...)...)
}

func validationErr(format string, args ...interface{}) error {
	return fmt.Errorf("%w: "+format, append([]interface{}{ErrValidation}, args...)...)
}
