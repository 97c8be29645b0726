package services

import "errors"

// Workflow error taxonomy. Every failure of the contact-disclosure
// workflow maps to exactly one of these (or a storage sentinel), so
// handlers can translate them to status codes with errors.Is.
var (
	// ErrInvalidInput is a malformed request the caller can correct
	ErrInvalidInput = errors.New("invalid input")

	// ErrSessionExpired covers both wall-clock expiry and any terminal
	// session (verified, expired, exhausted). Terminal for this session;
	// the scanner must request a new challenge.
	ErrSessionExpired = errors.New("session expired")

	// ErrAttemptsExceeded is returned when the attempt cap is hit.
	// Terminal; the scanner must request a new challenge.
	ErrAttemptsExceeded = errors.New("too many attempts")

	// ErrInvalidPasscode is recoverable; the scanner may retry while
	// attempts remain under the cap.
	ErrInvalidPasscode = errors.New("invalid passcode")
)
