package dispatch

import (
	"github.com/chachabrian/wastepickup-backend/internal/services"
	"github.com/cockroachdb/errors"
)

var (
	ErrNotFound       = errors.New("pickup request not found")
	ErrForbidden      = errors.New("not allowed to act on this pickup request")
	ErrInvalidState   = errors.New("pickup request is not in a state that allows this action")
	ErrConflict       = errors.New("already accepted by another driver")
	ErrValidation     = errors.New("invalid pickup request")
	ErrDriverNotFound = errors.New("driver profile not found")

	// ErrTransportUnavailable is logged by the coordinator and never returned
	ErrTransportUnavailable = services.ErrTransportUnavailable
)

func validationf(format string, args ...any) error {
	return errors.Mark(errors.Newf(format, args...), ErrValidation)
}

func invalidStatef(format string, args ...any) error {
	return errors.Mark(errors.Newf(format, args...), ErrInvalidState)
}
