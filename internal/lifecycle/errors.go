package lifecycle

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound         = errors.New("appointment not found")
	ErrForbidden        = errors.New("not allowed to act on this appointment")
	ErrInvalidReference = errors.New("referenced user does not exist or has the wrong role")
	ErrInvalidInput     = errors.New("invalid input")

	// ErrIntegrityViolation covers requests that would corrupt appointment
	// state: illegal transitions and payment amounts that do not match.
	ErrIntegrityViolation = errors.New("integrity violation")
	ErrInvalidTransition  = fmt.Errorf("%w: status transition not allowed", ErrIntegrityViolation)
	ErrAmountMismatch     = fmt.Errorf("%w: payment amount does not match", ErrIntegrityViolation)
)
