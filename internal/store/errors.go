package store

import "errors"

var (
	ErrClientNotFound    = errors.New("client not found")
	ErrClientInactive    = errors.New("client inactive")
	ErrBiometricRequired = errors.New("biometric verification required for first check-in")
	ErrSessionNotFound   = errors.New("session not found")
	ErrSessionExpired    = errors.New("session expired")
	ErrAccessDenied      = errors.New("access denied")
	// ErrRequestIDConflict means the request id already belongs to another
	// client's check-in.
	ErrRequestIDConflict = errors.New("request id already used by another client")
)
