package signing

import (
	"errors"
)

// Errors returned by the orchestrator. The messages are shown to end users.
var (
	ErrNotFound   = errors.New("invalid or expired link")
	ErrForbidden  = errors.New("it is not yet your turn to sign")
	ErrConflict   = errors.New("this document was already processed, refresh and retry")
	ErrGone       = errors.New("this signing request is no longer active")
	ErrValidation = errors.New("invalid request")
	ErrSealing    = errors.New("unable to process your signature, contact support")
)
