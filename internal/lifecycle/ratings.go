package lifecycle

import (
	"context"
	"fmt"

	"clinic-booking-server/internal/models"
)

// RateAppointment records the patient's score for a completed appointment.
// Resubmitting overwrites the previous score and review.
func (m *Manager) RateAppointment(ctx context.Context, actor models.Actor, appointmentID string, score int, review string) (*models.Rating, error) {
	if score < 1 || score > 5 {
		return nil, fmt.Errorf("%w: score must be between 1 and 5", ErrInvalidInput)
	}
	appt, err := m.load(ctx, appointmentID)
	if err != nil {
		return nil, err
	}
	if !actor.IsPatient() || appt.PatientID != actor.ID {
		return nil, ErrForbidden
	}
	if appt.Status != models.StatusCompleted {
		return nil, fmt.Errorf("%w: only completed appointments can be rated", ErrInvalidTransition)
	}

	rating := &models.Rating{
		AppointmentID: appt.ID,
		PatientID:     appt.PatientID,
		DoctorID:      appt.DoctorID,
		Score:         score,
		Review:        review,
	}
	if err := m.store.Ratings().Upsert(ctx, rating); err != nil {
		return nil, fmt.Errorf("save rating: %w", err)
	}
	return rating, nil
}
