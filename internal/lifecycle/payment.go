package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"clinic-booking-server/internal/models"
	"clinic-booking-server/internal/notify"
)

// GatewayStatus values reported by the payment gateway. Anything else is
// treated as still pending.
const (
	GatewayComplete = "COMPLETE"
	GatewayCanceled = "CANCELED"
	GatewayFailure  = "FAILURE"
)

// PaymentOutcome is the result class of a payment report, used to pick the
// user-facing redirect.
type PaymentOutcome string

const (
	OutcomePaid           PaymentOutcome = "paid"
	OutcomeAmountMismatch PaymentOutcome = "amount_mismatch"
	OutcomeCancelled      PaymentOutcome = "cancelled"
	OutcomePending        PaymentOutcome = "pending"
)

// PaymentReport is what the gateway told us about one transaction.
type PaymentReport struct {
	TransactionRef       string
	Amount               float64
	GatewayStatus        string
	GatewayTransactionID string
}

// PaymentResult describes how a report was applied. Applied is false when
// the report repeated an already-recorded state.
type PaymentResult struct {
	Outcome     PaymentOutcome
	Appointment *models.Appointment
	Applied     bool
}

// centTolerance absorbs float error so that amounts a whole cent apart,
// such as 1500 and 1499.99, never match.
const centTolerance = 1e-6

// AmountsMatch reports whether received pays expected to the cent: the two
// must differ by less than one cent in either direction, so a half-cent
// difference passes. NaN and infinities never match.
func AmountsMatch(expected, received float64) bool {
	for _, v := range []float64{expected, received} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return math.Abs(expected-received)*100 < 1-centTolerance
}

// NormalizeGatewayStatus maps the gateway's status spellings onto
// GatewayComplete, GatewayCanceled and GatewayFailure. Unknown statuses are
// returned upper-cased.
func NormalizeGatewayStatus(s string) string {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "COMPLETE", "COMPLETED", "SUCCESS":
		return GatewayComplete
	case "CANCELED", "CANCELLED":
		return GatewayCanceled
	case "FAILURE", "FAILED":
		return GatewayFailure
	}
	return strings.ToUpper(strings.TrimSpace(s))
}

// BeginPayment records the intent to pay appointment id under transaction
// reference ref, which the gateway echoes back in its callback. While the
// payment is pending an existing reference is kept; a failed payment is
// reset to pending under the new reference.
func (m *Manager) BeginPayment(ctx context.Context, actor models.Actor, id, ref string) (*models.Appointment, error) {
	if ref == "" {
		return nil, fmt.Errorf("%w: empty transaction reference", ErrInvalidInput)
	}
	appt, _, err := m.mutate(ctx, m.byID(id), func(a *models.Appointment) (bool, error) {
		if !actor.IsAdmin() && !(actor.IsPatient() && a.PatientID == actor.ID) {
			return false, ErrForbidden
		}
		if a.Status.IsTerminal() {
			return false, fmt.Errorf("%w: appointment is %s", ErrInvalidTransition, a.Status)
		}
		switch a.PaymentStatus {
		case models.PaymentPending:
			if a.PaymentID != "" {
				return false, nil
			}
		case models.PaymentFailed:
			if err := setPaymentStatus(a, models.PaymentPending); err != nil {
				return false, err
			}
		default:
			return false, fmt.Errorf("%w: payment already %s", ErrInvalidTransition, a.PaymentStatus)
		}
		a.PaymentID = ref
		a.GatewayTransactionID = ""
		return true, nil
	})
	return appt, err
}

// RecordPayment applies a gateway report to the appointment holding
// report.TransactionRef. A completed payment of the right amount marks the
// appointment paid and moves a pending appointment to pending_approval; a
// wrong amount is rejected with ErrAmountMismatch and changes nothing; a
// cancelled or failed payment marks it failed. Replayed reports are no-ops.
func (m *Manager) RecordPayment(ctx context.Context, report PaymentReport) (PaymentResult, error) {
	status := NormalizeGatewayStatus(report.GatewayStatus)
	var outcome PaymentOutcome

	appt, changed, err := m.mutate(ctx, m.byPaymentID(report.TransactionRef), func(a *models.Appointment) (bool, error) {
		switch status {
		case GatewayComplete:
			outcome = OutcomePaid
			return m.applyPaid(a, report.Amount, report.GatewayTransactionID)
		case GatewayCanceled, GatewayFailure:
			outcome = OutcomeCancelled
			switch a.PaymentStatus {
			case models.PaymentFailed:
				return false, nil
			case models.PaymentPaid, models.PaymentRefunded:
				m.log.Warn().Str("appointment_id", a.ID).Str("gateway_status", status).
					Str("payment_status", string(a.PaymentStatus)).Msg("ignoring failure report for settled payment")
				outcome = OutcomePaid
				return false, nil
			}
			if err := setPaymentStatus(a, models.PaymentFailed); err != nil {
				return false, err
			}
			a.GatewayTransactionID = report.GatewayTransactionID
			return true, nil
		default:
			outcome = OutcomePending
			return false, nil
		}
	})
	if errors.Is(err, ErrAmountMismatch) {
		return PaymentResult{Outcome: OutcomeAmountMismatch, Appointment: appt}, err
	}
	if err != nil {
		return PaymentResult{}, err
	}

	if changed && outcome == OutcomePaid {
		m.notifyPaid(ctx, appt)
	}
	m.log.Info().Str("appointment_id", appt.ID).Str("transaction_ref", report.TransactionRef).
		Str("gateway_status", status).Str("outcome", string(outcome)).Bool("applied", changed).Msg("payment report processed")
	return PaymentResult{Outcome: outcome, Appointment: appt, Applied: changed}, nil
}

// ConfirmPayment is the manual path for payments whose callback never
// arrived. Admins only; the amount must match like a gateway report.
func (m *Manager) ConfirmPayment(ctx context.Context, actor models.Actor, id string, amount float64, reference string) (*models.Appointment, error) {
	if !actor.IsAdmin() {
		return nil, ErrForbidden
	}
	if reference == "" {
		reference = "manual:" + actor.ID
	}
	appt, changed, err := m.mutate(ctx, m.byID(id), func(a *models.Appointment) (bool, error) {
		return m.applyPaid(a, amount, reference)
	})
	if err != nil {
		return nil, err
	}
	if changed {
		m.notifyPaid(ctx, appt)
	}
	return appt, nil
}

// Refund marks a paid appointment refunded. Admins only.
func (m *Manager) Refund(ctx context.Context, actor models.Actor, id string) (*models.Appointment, error) {
	if !actor.IsAdmin() {
		return nil, ErrForbidden
	}
	appt, _, err := m.mutate(ctx, m.byID(id), func(a *models.Appointment) (bool, error) {
		if a.PaymentStatus == models.PaymentRefunded {
			return false, nil
		}
		if err := setPaymentStatus(a, models.PaymentRefunded); err != nil {
			return false, err
		}
		return true, nil
	})
	return appt, err
}

func (m *Manager) applyPaid(a *models.Appointment, amount float64, gatewayRef string) (bool, error) {
	switch a.PaymentStatus {
	case models.PaymentPaid, models.PaymentRefunded:
		return false, nil
	case models.PaymentFailed:
		// A late success for an attempt already reported failed.
		if err := setPaymentStatus(a, models.PaymentPending); err != nil {
			return false, err
		}
	}
	if !AmountsMatch(a.Amount, amount) {
		m.log.Error().Str("appointment_id", a.ID).Float64("expected", a.Amount).
			Float64("received", amount).Msg("payment amount mismatch")
		return false, fmt.Errorf("%w: expected %.2f, received %.2f", ErrAmountMismatch, a.Amount, amount)
	}
	if err := setPaymentStatus(a, models.PaymentPaid); err != nil {
		return false, err
	}
	now := m.opts.Now()
	a.PaymentDate = &now
	a.GatewayTransactionID = gatewayRef
	if a.Status == models.StatusPending {
		if err := setStatus(a, models.StatusPendingApproval); err != nil {
			return false, err
		}
	} else if a.Status.IsTerminal() {
		m.log.Warn().Str("appointment_id", a.ID).Str("status", string(a.Status)).
			Msg("payment received for closed appointment, refund may be due")
	}
	return true, nil
}

func (m *Manager) notifyPaid(ctx context.Context, appt *models.Appointment) {
	body := fmt.Sprintf("Payment of %.2f for the appointment on %s at %s was received.", appt.Amount, appt.Date, appt.Time)
	m.notify(ctx, notify.Message{
		UserID: appt.PatientID, Kind: models.KindPaymentConfirmed, AppointmentID: appt.ID,
		Title: "Payment confirmed", Body: body + " It is now awaiting approval.",
	})
	m.notify(ctx, notify.Message{
		UserID: appt.DoctorID, Kind: models.KindPaymentConfirmed, AppointmentID: appt.ID,
		Title: "Appointment paid", Body: body,
	})
}
