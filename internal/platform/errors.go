package platform

import (
	"errors"
	"fmt"
)

// ConflictReasonUsername marks a create rejected because the username is
// already taken remotely. It is the only recoverable error reason.
const ConflictReasonUsername = "username_exists"

// LookupError wraps a failed existence check. A missing record is not a
// LookupError; clients signal that with a nil record.
type LookupError struct {
	Platform string
	Err      error
}

func (e *LookupError) Error() string {
	return fmt.Sprintf("%s lookup failed: %v", e.Platform, e.Err)
}

func (e *LookupError) Unwrap() error { return e.Err }

// ConflictError is returned when the remote rejects a create due to a
// uniqueness collision.
type ConflictError struct {
	Reason   string
	Username string
}

func (e *ConflictError) Error() string {
	if e.Username != "" {
		return fmt.Sprintf("conflict: %s (%s)", e.Reason, e.Username)
	}
	return "conflict: " + e.Reason
}

// RemoteError covers every other remote-call failure: auth, rate limits,
// remote-side validation, 5xx.
type RemoteError struct {
	Platform string
	Status   int
	Body     string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("%s returned %d: %s", e.Platform, e.Status, e.Body)
}

// IsUsernameConflict reports whether err is a username-collision conflict.
func IsUsernameConflict(err error) bool {
	var conflict *ConflictError
	return errors.As(err, &conflict) && conflict.Reason == ConflictReasonUsername
}

// IsLookupError reports whether err came from a failed existence check.
func IsLookupError(err error) bool {
	var lookup *LookupError
	return errors.As(err, &lookup)
}
