package server

import (
	"errors"
	"net/http"

	"connectrpc.com/connect"
	"github.com/eduzen/cascadesign/internal/signing"
	"github.com/eduzen/cascadesign/internal/store"
)

// notFound reports errors that mean the addressed resource does not exist,
// including store lookups that reached a handler without translation.
func notFound(err error) bool {
	return errors.Is(err, signing.ErrNotFound) ||
		errors.Is(err, store.ErrProcessNotFound) ||
		errors.Is(err, store.ErrSignatoryNotFound) ||
		errors.Is(err, store.ErrTokenNotFound)
}

// connectError maps orchestrator errors to connect codes. Unknown errors are
// internal and their message is not returned to the caller.
func connectError(err error) *connect.Error {
	switch {
	case errors.Is(err, signing.ErrValidation):
		return connect.NewError(connect.CodeInvalidArgument, err)
	case errors.Is(err, signing.ErrNotFound):
		return connect.NewError(connect.CodeNotFound, err)
	case notFound(err):
		return connect.NewError(connect.CodeNotFound, signing.ErrNotFound)
	case errors.Is(err, signing.ErrForbidden):
		return connect.NewError(connect.CodePermissionDenied, err)
	case errors.Is(err, signing.ErrConflict):
		return connect.NewError(connect.CodeAborted, err)
	case errors.Is(err, signing.ErrGone):
		return connect.NewError(connect.CodeFailedPrecondition, err)
	default:
		return connect.NewError(connect.CodeInternal, errors.New("internal error"))
	}
}

// httpStatus maps orchestrator errors to signer API status codes and the message
// shown to the signer.
func httpStatus(err error) (int, string) {
	switch {
	case errors.Is(err, signing.ErrValidation):
		return http.StatusBadRequest, err.Error()
	case notFound(err):
		return http.StatusNotFound, signing.ErrNotFound.Error()
	case errors.Is(err, signing.ErrForbidden):
		return http.StatusForbidden, signing.ErrForbidden.Error()
	case errors.Is(err, signing.ErrConflict):
		return http.StatusConflict, signing.ErrConflict.Error()
	case errors.Is(err, signing.ErrGone):
		return http.StatusGone, signing.ErrGone.Error()
	case errors.Is(err, signing.ErrSealing):
		return http.StatusUnprocessableEntity, signing.ErrSealing.Error()
	default:
		return http.StatusInternalServerError, "internal error"
	}
}
