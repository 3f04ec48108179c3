package store

import (
	"errors"
)

// Sentinel errors for common error conditions
var (
	ErrProcessNotFound    = errors.New("signing process not found")
	ErrSignatoryNotFound  = errors.New("signatory not found")
	ErrTokenNotFound      = errors.New("token not found")
	ErrTokenAlreadyExists = errors.New("token already exists")
	ErrPositionConflict   = errors.New("current position has already moved")
	ErrProcessTerminal    = errors.New("signing process is no longer pending")
	ErrIntentNotFound     = errors.New("notification intent not found")
)
