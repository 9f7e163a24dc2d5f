package lifecycle

import (
	"fmt"

	"clinic-booking-server/internal/models"
)

var statusTransitions = map[models.AppointmentStatus][]models.AppointmentStatus{
	models.StatusPending:         {models.StatusApproved, models.StatusRejected, models.StatusPendingApproval, models.StatusCancelled},
	models.StatusPendingApproval: {models.StatusApproved, models.StatusRejected, models.StatusCancelled},
	models.StatusApproved:        {models.StatusCompleted, models.StatusExpired, models.StatusMissed, models.StatusCancelled},
}

var paymentTransitions = map[models.PaymentStatus][]models.PaymentStatus{
	models.PaymentPending: {models.PaymentPaid, models.PaymentFailed},
	models.PaymentPaid:    {models.PaymentRefunded},
	models.PaymentFailed:  {models.PaymentPending},
}

// CanTransition reports whether the status axis allows from -> to.
// Terminal states have no outgoing edges.
func CanTransition(from, to models.AppointmentStatus) bool {
	for _, next := range statusTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// CanTransitionPayment reports whether the payment axis allows from -> to.
func CanTransitionPayment(from, to models.PaymentStatus) bool {
	for _, next := range paymentTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func setStatus(appt *models.Appointment, to models.AppointmentStatus) error {
	if !CanTransition(appt.Status, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, appt.Status, to)
	}
	appt.Status = to
	return nil
}

func setPaymentStatus(appt *models.Appointment, to models.PaymentStatus) error {
	if !CanTransitionPayment(appt.PaymentStatus, to) {
		return fmt.Errorf("%w: payment %s -> %s", ErrInvalidTransition, appt.PaymentStatus, to)
	}
	appt.PaymentStatus = to
	return nil
}
