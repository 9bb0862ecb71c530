// Package errdefs defines the error kinds shared by every layer of the tunnel.
//
// Each kind is a sentinel matched with errors.Is. The constructors wrap both
// the kind and the formatted cause, so callers can keep using %w for the
// underlying error.
package errdefs

import (
	"errors"
	"fmt"
)

var (
	// ErrConfig reports missing or malformed configuration. Fatal at startup.
	ErrConfig = errors.New("config error")
	// ErrAuth reports a rejected handshake. Fatal for the connection.
	ErrAuth = errors.New("auth error")
	// ErrProtocol reports a malformed, out of sequence or unauthenticated frame.
	// Fatal for the connection and every session it carries.
	ErrProtocol = errors.New("protocol error")
	// ErrNetwork reports a target or relay I/O failure. Fatal for one session only.
	ErrNetwork = errors.New("network error")
	// ErrTimeout reports an exceeded handshake or connect deadline.
	ErrTimeout = errors.New("timeout error")
	// ErrClosed is returned by operations on a torn down connection or session.
	ErrClosed = errors.New("closed")
)

func wrap(kind error, format string, args ...any) error {
	return fmt.Errorf("%w: %w", kind, fmt.Errorf(format, args...))
}

// Config returns an ErrConfig wrapping the formatted cause.
func Config(format string, args ...any) error {
	return wrap(ErrConfig, format, args...)
}

// Auth returns an ErrAuth wrapping the formatted cause.
func Auth(format string, args ...any) error {
	return wrap(ErrAuth, format, args...)
}

// Protocol returns an ErrProtocol wrapping the formatted cause.
func Protocol(format string, args ...any) error {
	return wrap(ErrProtocol, format, args...)
}

// Network returns an ErrNetwork wrapping the formatted cause.
func Network(format string, args ...any) error {
	return wrap(ErrNetwork, format, args...)
}

// Timeout returns an ErrTimeout wrapping the formatted cause.
func Timeout(format string, args ...any) error {
	return wrap(ErrTimeout, format, args...)
}

// IsConnectionFatal reports whether err must tear down the owning tunnel
// connection rather than a single session.
func IsConnectionFatal(err error) bool {
	return errors.Is(err, ErrProtocol) || errors.Is(err, ErrAuth)
}

// Kind returns a short name for the kind of err, or "unknown".
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrConfig):
		return "config"
	case errors.Is(err, ErrAuth):
		return "auth"
	case errors.Is(err, ErrProtocol):
		return "protocol"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrNetwork):
		return "network"
	case errors.Is(err, ErrClosed):
		return "closed"
	default:
		return "unknown"
	}
}
