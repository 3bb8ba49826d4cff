// Package errorkinds holds the error values shared by the session and all backends.
package errorkinds

import "errors"

// Session errors.
var (
	ErrSessionNotExist    = errors.New("session does not exist")
	ErrSessionAlreadyOpen = errors.New("session already has an open backend")
)

// Backend resolution errors.
var (
	ErrBackendInvalid        = errors.New("backend identifier is invalid")
	ErrBackendNotFound       = errors.New("backend not found")
	ErrBackendNotImplemented = errors.New("backend not implemented")
	ErrBackendInit           = errors.New("backend initialization failed")
)

// Directory and decode errors.
var (
	ErrAdapterNotFound = errors.New("adapter not found")
	ErrDeviceNotFound  = errors.New("device not found")
	ErrDecode          = errors.New("malformed object tree")
)

// Call errors.
var (
	ErrMethodCall    = errors.New("method call failed")
	ErrMethodTimeout = errors.New("method call timed out")
	ErrCommandFailed = errors.New("command terminated abnormally")
)
