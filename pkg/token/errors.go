package token

import "errors"

// Token store errors.
var (
	// ErrTokenNotFound is returned when a token record does not exist.
	ErrTokenNotFound = errors.New("token not found")

	// ErrDuplicateToken is returned when a token ID already exists.
	ErrDuplicateToken = errors.New("token already exists")

	// ErrInvalidToken is returned when a presented token matches no active record.
	ErrInvalidToken = errors.New("invalid or expired token")
)

// Management passphrase errors.
var (
	// ErrInvalidPassphrase is returned when the presented passphrase does not match.
	ErrInvalidPassphrase = errors.New("invalid passphrase")

	// ErrPassphraseNotSet is returned when no management record exists yet.
	ErrPassphraseNotSet = errors.New("management passphrase not set")

	// ErrPassphraseTooShort is returned when a new passphrase is too short.
	ErrPassphraseTooShort = errors.New("passphrase must be at least 8 characters")

	// ErrManagementLocked is returned while the lockout window is in effect.
	ErrManagementLocked = errors.New("management record locked after repeated failures")
)
