package roundsync

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrInvalidRequest = errors.New("invalid_request")
	ErrNotFound       = errors.New("not_found")
	ErrForbidden      = errors.New("forbidden")
	ErrInvalidState   = errors.New("invalid_state")
	ErrConflict       = errors.New("conflict")
	ErrBusy           = errors.New("busy")

	ErrNotEligible       = fmt.Errorf("%w: must finish round before readying", ErrInvalidState)
	ErrRoundNotOpen      = fmt.Errorf("%w: round has not started", ErrInvalidState)
	ErrDuplicateGuess    = fmt.Errorf("%w: duplicate submission", ErrConflict)
	ErrOperationInFlight = fmt.Errorf("%w: operation in progress", ErrConflict)
)

// MapError translates engine errors into an HTTP status and a stable
// machine-readable code.
func MapError(err error) (int, string) {
	switch {
	case err == nil:
		return http.StatusOK, ""
	case errors.Is(err, ErrInvalidRequest):
		return http.StatusBadRequest, "invalid_request"
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden, "not_a_participant"
	case errors.Is(err, ErrNotEligible):
		return http.StatusConflict, "must_finish_round_first"
	case errors.Is(err, ErrRoundNotOpen):
		return http.StatusConflict, "round_not_open"
	case errors.Is(err, ErrInvalidState):
		return http.StatusConflict, "game_not_in_progress"
	case errors.Is(err, ErrDuplicateGuess):
		return http.StatusConflict, "already_submitted"
	case errors.Is(err, ErrConflict):
		return http.StatusConflict, "operation_in_progress"
	case errors.Is(err, ErrBusy):
		return http.StatusServiceUnavailable, "busy"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}
