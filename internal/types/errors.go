package types

import (
	"errors"
	"fmt"
)

// Sentinel errors for common failure modes.
var (
	ErrLoginFormNotFound   = errors.New("login form not found")
	ErrCredentialsRejected = errors.New("credentials rejected")
	ErrSessionExpired      = errors.New("session expired")
	ErrEndOfFeed           = errors.New("feed did not extend")
	ErrNoPostIdentity      = errors.New("post has neither id nor url")
)

// LaunchError means the browser engine could not be started. Fatal: there is
// no recovery within the run and no output is produced.
type LaunchError struct {
	Err error
}

func (e *LaunchError) Error() string {
	return fmt.Sprintf("browser launch failed: %v", e.Err)
}

func (e *LaunchError) Unwrap() error { return e.Err }

// AuthError means the login form was unreachable within the timeout or the
// credentials were rejected. Fatal after browser teardown.
type AuthError struct {
	URL string
	Err error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("authentication failed at %s: %v", e.URL, e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

// NavigationError means the target page was unreachable, never settled, or
// the session was invalidated mid-run. Fatal, but records collected before
// the failure remain exportable.
type NavigationError struct {
	URL string
	Err error
}

func (e *NavigationError) Error() string {
	return fmt.Sprintf("navigation failed for %s: %v", e.URL, e.Err)
}

func (e *NavigationError) Unwrap() error { return e.Err }

// ExportError means an output destination could not be created or written.
// Fatal; exporters must never leave a truncated file behind.
type ExportError struct {
	Backend string
	Path    string
	Err     error
}

func (e *ExportError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("export error (%s) writing %s: %v", e.Backend, e.Path, e.Err)
	}
	return fmt.Sprintf("export error (%s): %v", e.Backend, e.Err)
}

func (e *ExportError) Unwrap() error { return e.Err }

// IsFatal reports whether err is a session-level failure that should abort
// the run. Per-field and per-post parse trouble never reaches this level.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	var (
		launch *LaunchError
		auth   *AuthError
		nav    *NavigationError
		export *ExportError
	)
	return errors.As(err, &launch) ||
		errors.As(err, &auth) ||
		errors.As(err, &nav) ||
		errors.As(err, &export)
}
