// Package clinical manages the documentation attached to appointments:
// SOAP notes written by the treating doctor and uploaded reports.
package clinical

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"clinic-booking-server/internal/models"
	"clinic-booking-server/internal/store"
)

var (
	ErrNotFound     = errors.New("clinical record not found")
	ErrForbidden    = errors.New("not allowed to access this clinical record")
	ErrInvalidInput = errors.New("invalid clinical record")
	ErrDuplicate    = errors.New("appointment already has a SOAP note")
	// ErrSigned is returned for any change to a signed note.
	ErrSigned = errors.New("SOAP note is signed and can no longer be changed")
)

// Service implements SOAP note and report operations.
type Service struct {
	store store.Store
	log   zerolog.Logger
	now   func() time.Time
}

func NewService(st store.Store, log zerolog.Logger) *Service {
	return &Service{
		store: st,
		log:   log.With().Str("component", "clinical").Logger(),
		now:   time.Now,
	}
}

func (s *Service) appointment(ctx context.Context, id string) (*models.Appointment, error) {
	appt, err := s.store.Appointments().GetByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: appointment %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("load appointment: %w", err)
	}
	return appt, nil
}

func notFound(err error, what, id string) error {
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%w: %s %s", ErrNotFound, what, id)
	}
	return fmt.Errorf("load %s: %w", what, err)
}
