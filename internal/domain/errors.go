package domain

import "errors"

var (
	// ErrPermissionDenied reports that the host refused microphone access.
	ErrPermissionDenied = errors.New("microphone access denied")
	// ErrProviderUnauthorized reports that the recognition service rejected the credentials.
	ErrProviderUnauthorized = errors.New("recognition service rejected credentials")
)
