package mailbox

import (
	"errors"
	"fmt"
)

// ConnectionError indicates that the server could not be reached.
type ConnectionError struct {
	Addr string
	Err  error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connecting to %s: %v", e.Addr, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// TLSError indicates that the TLS handshake or STARTTLS upgrade failed.
type TLSError struct {
	Addr string
	Err  error
}

func (e *TLSError) Error() string {
	return fmt.Sprintf("tls with %s: %v", e.Addr, e.Err)
}

func (e *TLSError) Unwrap() error { return e.Err }

// AuthError indicates that the server rejected the credentials.
type AuthError struct {
	Username string
	Err      error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("authentication failed for %s: %v", e.Username, e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

// AppendError indicates that a message could not be stored.
type AppendError struct {
	Folder string
	Err    error
}

func (e *AppendError) Error() string {
	return fmt.Sprintf("appending to %s: %v", e.Folder, e.Err)
}

func (e *AppendError) Unwrap() error { return e.Err }

// IsConnectionError reports whether err (or any error in its chain) is a ConnectionError.
func IsConnectionError(err error) bool {
	var connErr *ConnectionError
	return errors.As(err, &connErr)
}

// IsTLSError reports whether err (or any error in its chain) is a TLSError.
func IsTLSError(err error) bool {
	var tlsErr *TLSError
	return errors.As(err, &tlsErr)
}

// IsAuthError reports whether err (or any error in its chain) is an AuthError.
func IsAuthError(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr)
}

// IsAppendError reports whether err (or any error in its chain) is an AppendError.
func IsAppendError(err error) bool {
	var appendErr *AppendError
	return errors.As(err, &appendErr)
}
