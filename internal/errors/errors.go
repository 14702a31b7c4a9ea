// internal/errors/errors.go
package errors

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound is returned by stores when no record exists for a key.
	ErrNotFound = errors.New("record not found")
	// ErrMissingToken is returned when no GitHub token is configured.
	ErrMissingToken = errors.New("github token not set")
)

// ErrInvalidUsername is returned when a requested username is empty or
// malformed.
type ErrInvalidUsername struct {
	Username string
}

func (e *ErrInvalidUsername) Error() string {
	return fmt.Sprintf("invalid github username: %q", e.Username)
}

// RemoteErrorKind classifies failures of the GitHub gateway.
type RemoteErrorKind string

const (
	KindTransport RemoteErrorKind = "transport"
	KindAPI       RemoteErrorKind = "api"
	KindNotFound  RemoteErrorKind = "not_found"
)

// RemoteError is returned by the GitHub gateway. API errors carry the
// messages reported in the GraphQL "errors" array.
type RemoteError struct {
	Op       string
	Kind     RemoteErrorKind
	Messages []string
	Err      error
}

func (e *RemoteError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: github %s error", e.Op, e.Kind)
	if len(e.Messages) > 0 {
		fmt.Fprintf(&b, ": %s", strings.Join(e.Messages, "; "))
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *RemoteError) Unwrap() error {
	return e.Err
}

// IsNotFound reports whether err is a remote not-found error or a store miss.
func IsNotFound(err error) bool {
	if errors.Is(err, ErrNotFound) {
		return true
	}
	var remoteErr *RemoteError
	return errors.As(err, &remoteErr) && remoteErr.Kind == KindNotFound
}
