// api/schemas/errors.go
package schemas

import (
	"errors"
	"fmt"
)

// The pipeline's error taxonomy. Every failure a user can see maps to one
// of these categories; callers pick the status string off the type.

// AuthError covers bad credentials and revoked refresh tokens. It forces a
// logout and a fresh login prompt and is never retried automatically.
type AuthError struct {
	// Message is the provider's own wording, surfaced verbatim.
	Message string
}

func (e *AuthError) Error() string {
	if e.Message == "" {
		return "authentication failed"
	}
	return e.Message
}

// FetchError covers a non-success status, an unreachable network, or a
// download that turned out to be HTML instead of a document.
type FetchError struct {
	Status int
	Reason string
}

func (e *FetchError) Error() string {
	switch {
	case e.Status != 0 && e.Reason != "":
		return fmt.Sprintf("download failed: %s (status %d)", e.Reason, e.Status)
	case e.Status != 0:
		return fmt.Sprintf("download failed: status %d", e.Status)
	default:
		return fmt.Sprintf("download failed: %s", e.Reason)
	}
}

// IntegrityError reports a binary signature mismatch. Kept distinct from
// FetchError so the user can tell a corrupt document from a failed download.
type IntegrityError struct {
	Expected string
	Got      string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("document failed integrity check: expected signature %q, got %q", e.Expected, e.Got)
}

// NoTargetError means the page offered nothing to attach to: no upload
// control, no text target, and no way to present the document.
type NoTargetError struct {
	Reason string
}

func (e *NoTargetError) Error() string {
	if e.Reason == "" {
		return "nothing to attach to"
	}
	return "nothing to attach to: " + e.Reason
}

// ChannelError means a message was sent to a context with no listener.
// The popup retries once after injecting the content script; a second
// failure surfaces this error.
type ChannelError struct {
	Address string
}

func (e *ChannelError) Error() string {
	return fmt.Sprintf("no listener registered at %q", e.Address)
}

// IsAuthError reports whether err is, or wraps, an AuthError.
func IsAuthError(err error) bool {
	var ae *AuthError
	return errors.As(err, &ae)
}

// IsChannelError reports whether err is, or wraps, a ChannelError.
func IsChannelError(err error) bool {
	var ce *ChannelError
	return errors.As(err, &ce)
}
