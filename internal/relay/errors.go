package relay

import (
	"errors"
	"fmt"
	"net/http"

	"securechat/internal/domain"
)

// Reasons carried in ErrorDetail.Reason.
const (
	ReasonNotFound            = "not_found"
	ReasonInvalidParticipants = "invalid_participants"
	ReasonInvalidArgument     = "invalid_argument"
	ReasonUnauthorized        = "unauthorized"
	ReasonNotSecure           = "session_not_secure"
	ReasonInternal            = "internal"
)

// Describe maps a domain error to the error detail a relay answers with.
func Describe(err error) ErrorDetail {
	d := ErrorDetail{Message: err.Error()}
	switch {
	case errors.Is(err, domain.ErrNotFound):
		d.Code, d.Reason = http.StatusNotFound, ReasonNotFound
	case errors.Is(err, domain.ErrInvalidParticipants):
		d.Code, d.Reason = http.StatusBadRequest, ReasonInvalidParticipants
	case errors.Is(err, domain.ErrInvalidArgument):
		d.Code, d.Reason = http.StatusBadRequest, ReasonInvalidArgument
	case errors.Is(err, domain.ErrUnauthorized):
		d.Code, d.Reason = http.StatusUnauthorized, ReasonUnauthorized
	case errors.Is(err, domain.ErrSessionNotSecure):
		d.Code, d.Reason = http.StatusConflict, ReasonNotSecure
	default:
		d.Code, d.Reason, d.Message = http.StatusInternalServerError, ReasonInternal, "internal error"
	}
	return d
}

// ErrorFor rebuilds a domain error from a relay error response.
func ErrorFor(d ErrorDetail) error {
	var sentinel error
	switch {
	case d.Reason == ReasonInvalidParticipants:
		sentinel = domain.ErrInvalidParticipants
	case d.Code == http.StatusNotFound:
		sentinel = domain.ErrNotFound
	case d.Code == http.StatusBadRequest:
		sentinel = domain.ErrInvalidArgument
	case d.Code == http.StatusUnauthorized, d.Code == http.StatusForbidden:
		sentinel = domain.ErrUnauthorized
	case d.Code == http.StatusConflict:
		sentinel = domain.ErrSessionNotSecure
	default:
		return fmt.Errorf("relay: %d %s", d.Code, d.Message)
	}
	if d.Message == "" {
		return sentinel
	}
	return fmt.Errorf("%w: %s", sentinel, d.Message)
}
