package git

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-git/go-git/v5/plumbing/transport"
)

// Typed remote failures. Each keeps the operation and remote URL and wraps the go-git error.
type AuthError struct {
	Op, URL string
	Err     error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("%s auth error for %s: %v", e.Op, e.URL, e.Err)
}
func (e *AuthError) Unwrap() error { return e.Err }

type NotFoundError struct {
	Op, URL string
	Err     error
}

func (e *NotFoundError) Error() string { return fmt.Sprintf("%s not found %s: %v", e.Op, e.URL, e.Err) }
func (e *NotFoundError) Unwrap() error { return e.Err }

type UnsupportedProtocolError struct {
	Op, URL string
	Err     error
}

func (e *UnsupportedProtocolError) Error() string {
	return fmt.Sprintf("%s unsupported protocol %s: %v", e.Op, e.URL, e.Err)
}
func (e *UnsupportedProtocolError) Unwrap() error { return e.Err }

type RemoteDivergedError struct {
	Op, URL, Branch string
	Err             error
}

func (e *RemoteDivergedError) Error() string {
	return fmt.Sprintf("%s remote diverged %s@%s: %v", e.Op, e.URL, e.Branch, e.Err)
}
func (e *RemoteDivergedError) Unwrap() error { return e.Err }

type NetworkTimeoutError struct {
	Op, URL string
	Err     error
}

func (e *NetworkTimeoutError) Error() string {
	return fmt.Sprintf("%s network timeout %s: %v", e.Op, e.URL, e.Err)
}
func (e *NetworkTimeoutError) Unwrap() error { return e.Err }

// classifyRemoteError maps go-git transport failures onto the typed errors.
// Unknown failures are wrapped with the operation and URL.
func classifyRemoteError(op, url string, err error) error {
	switch {
	case errors.Is(err, transport.ErrAuthenticationRequired), errors.Is(err, transport.ErrAuthorizationFailed):
		return &AuthError{Op: op, URL: url, Err: err}
	case errors.Is(err, transport.ErrRepositoryNotFound):
		return &NotFoundError{Op: op, URL: url, Err: err}
	case errors.Is(err, context.DeadlineExceeded):
		return &NetworkTimeoutError{Op: op, URL: url, Err: err}
	}
	l := strings.ToLower(err.Error())
	switch {
	case strings.Contains(l, "authentication") || strings.Contains(l, "invalid username or password"):
		return &AuthError{Op: op, URL: url, Err: err}
	case strings.Contains(l, "repository not found") || strings.Contains(l, "repository does not exist"):
		return &NotFoundError{Op: op, URL: url, Err: err}
	case strings.Contains(l, "unsupported protocol") || strings.Contains(l, "protocol not supported"):
		return &UnsupportedProtocolError{Op: op, URL: url, Err: err}
	case strings.Contains(l, "non-fast-forward"):
		return &RemoteDivergedError{Op: op, URL: url, Branch: Branch, Err: err}
	case strings.Contains(l, "i/o timeout") || strings.Contains(l, "timeout"):
		return &NetworkTimeoutError{Op: op, URL: url, Err: err}
	}
	return fmt.Errorf("git %s %s: %w", op, url, err)
}

// IsPermanent reports failures that repeating the operation will not fix.
func IsPermanent(err error) bool {
	var (
		authErr     *AuthError
		notFoundErr *NotFoundError
		protoErr    *UnsupportedProtocolError
		divergedErr *RemoteDivergedError
	)
	return errors.As(err, &authErr) || errors.As(err, &notFoundErr) ||
		errors.As(err, &protoErr) || errors.As(err, &divergedErr)
}
