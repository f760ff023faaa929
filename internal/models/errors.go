package models

import "errors"

// Lifecycle errors. Handlers map these to HTTP status codes; everything else
// is reported as an internal error.
var (
	ErrNotFound           = errors.New("not found")
	ErrNotAuthorized      = errors.New("not authorized")
	ErrInvalidTransition  = errors.New("invalid transition")
	ErrVehicleUnavailable = errors.New("vehicle unavailable")
	ErrValidation         = errors.New("validation error")
)

// ErrorCode returns the stable machine-readable code for a lifecycle error.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrNotFound):
		return "NotFound"
	case errors.Is(err, ErrNotAuthorized):
		return "NotAuthorized"
	case errors.Is(err, ErrInvalidTransition):
		return "InvalidTransition"
	case errors.Is(err, ErrVehicleUnavailable):
		return "VehicleUnavailable"
	case errors.Is(err, ErrValidation):
		return "ValidationError"
	default:
		return "Internal"
	}
}
