// Package lifecycle owns the status and payment-status transitions of
// appointments. Every write goes through Manager so the two state machines
// and the derived fields (meeting room, timestamps) stay consistent.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"clinic-booking-server/internal/models"
	"clinic-booking-server/internal/notify"
	"clinic-booking-server/internal/store"
)

const (
	// FallbackConsultationFee applies when neither the doctor nor the
	// configuration supplies a fee.
	FallbackConsultationFee = 500.0

	consultationLength = 30 * time.Minute
	maxSaveAttempts    = 3
)

// Notifier delivers best-effort messages. Errors and panics from it are
// logged and never reach the caller of a lifecycle operation.
type Notifier interface {
	Notify(ctx context.Context, msg notify.Message) error
}

// Options tune the Manager. Zero values fall back to defaults.
type Options struct {
	DefaultFee  float64
	MissedGrace time.Duration
	ApprovalTTL time.Duration
	Location    *time.Location
	Now         func() time.Time
}

// Manager implements the appointment lifecycle on top of a store.
type Manager struct {
	store    store.Store
	notifier Notifier
	log      zerolog.Logger
	opts     Options
}

// NewManager builds a Manager.
func NewManager(st store.Store, notifier Notifier, log zerolog.Logger, opts Options) *Manager {
	if opts.DefaultFee <= 0 {
		opts.DefaultFee = FallbackConsultationFee
	}
	if opts.MissedGrace <= 0 {
		opts.MissedGrace = time.Hour
	}
	if opts.ApprovalTTL <= 0 {
		opts.ApprovalTTL = 7 * 24 * time.Hour
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Manager{
		store:    st,
		notifier: notifier,
		log:      log.With().Str("component", "lifecycle").Logger(),
		opts:     opts,
	}
}

// CreateInput is a booking request.
type CreateInput struct {
	PatientID string
	DoctorID  string
	Date      string
	Time      string
	Reason    string
}

// Create books a new appointment in status pending / payment pending. The
// amount is the doctor's consultation fee, or the configured default.
// Overlapping bookings of the same slot are not rejected.
func (m *Manager) Create(ctx context.Context, actor models.Actor, in CreateInput) (*models.Appointment, error) {
	if actor.IsPatient() {
		if in.PatientID == "" {
			in.PatientID = actor.ID
		}
		if in.PatientID != actor.ID {
			return nil, fmt.Errorf("%w: patients can only book for themselves", ErrForbidden)
		}
	}
	if strings.TrimSpace(in.Date) == "" || strings.TrimSpace(in.Time) == "" {
		return nil, fmt.Errorf("%w: date and time are required", ErrInvalidInput)
	}

	doctor, err := m.lookupUser(ctx, in.DoctorID, models.RoleDoctor)
	if err != nil {
		return nil, err
	}
	if _, err := m.lookupUser(ctx, in.PatientID, models.RolePatient); err != nil {
		return nil, err
	}

	amount := m.opts.DefaultFee
	if fee, ok := doctor.ConsultationFee(); ok {
		amount = fee
	}

	appt := &models.Appointment{
		PatientID:     in.PatientID,
		DoctorID:      in.DoctorID,
		Date:          strings.TrimSpace(in.Date),
		Time:          strings.TrimSpace(in.Time),
		Reason:        in.Reason,
		Status:        models.StatusPending,
		PaymentStatus: models.PaymentPending,
		Amount:        amount,
	}
	if err := m.store.Appointments().Create(ctx, appt); err != nil {
		return nil, fmt.Errorf("create appointment: %w", err)
	}
	m.log.Info().Str("appointment_id", appt.ID).Str("doctor_id", appt.DoctorID).
		Str("patient_id", appt.PatientID).Float64("amount", amount).Msg("appointment created")
	return appt, nil
}

func (m *Manager) lookupUser(ctx context.Context, id string, role models.Role) (*models.User, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: missing %s id", ErrInvalidReference, role)
	}
	user, err := m.store.Users().GetByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s %s", ErrInvalidReference, role, id)
	}
	if err != nil {
		return nil, fmt.Errorf("lookup %s: %w", role, err)
	}
	if user.Role != role {
		return nil, fmt.Errorf("%w: user %s is not a %s", ErrInvalidReference, id, role)
	}
	return user, nil
}

// Get returns the appointment if actor is involved in it or is an admin.
func (m *Manager) Get(ctx context.Context, actor models.Actor, id string) (*models.Appointment, error) {
	appt, err := m.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && !appt.Involves(actor.ID) {
		return nil, ErrForbidden
	}
	return appt, nil
}

// List returns the appointments visible to actor: own ones for patients and
// doctors, all for admins.
func (m *Manager) List(ctx context.Context, actor models.Actor, statuses []models.AppointmentStatus) ([]models.Appointment, error) {
	filter := store.AppointmentFilter{Statuses: statuses}
	switch actor.Role {
	case models.RolePatient:
		filter.PatientID = actor.ID
	case models.RoleDoctor:
		filter.DoctorID = actor.ID
	case models.RoleAdmin:
	default:
		return nil, ErrForbidden
	}
	return m.store.Appointments().List(ctx, filter)
}

// Approve moves a pending or paid-and-awaiting appointment to approved and
// assigns its meeting room. Allowed for the assigned doctor and admins.
func (m *Manager) Approve(ctx context.Context, actor models.Actor, id string) (*models.Appointment, error) {
	appt, changed, err := m.mutate(ctx, m.byID(id), func(a *models.Appointment) (bool, error) {
		if !isDoctorOf(actor, a) && !actor.IsAdmin() {
			return false, ErrForbidden
		}
		if a.Status == models.StatusApproved {
			return false, nil
		}
		if err := setStatus(a, models.StatusApproved); err != nil {
			return false, err
		}
		now := m.opts.Now()
		a.ApprovedAt = &now
		a.MeetingRoom = MeetingRoom(a.ID)
		if at, ok := ScheduledAt(a.Date, a.Time, m.opts.Location); ok {
			start, end := at, at.Add(consultationLength)
			a.MeetingStart, a.MeetingEnd = &start, &end
			expires := at.Add(m.opts.MissedGrace)
			a.ExpiresAt = &expires
		} else {
			expires := now.Add(m.opts.ApprovalTTL)
			a.ExpiresAt = &expires
		}
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	if changed {
		m.notify(ctx, notify.Message{
			UserID: appt.PatientID, Kind: models.KindAppointmentApproved, AppointmentID: appt.ID,
			Title: "Appointment approved",
			Body:  fmt.Sprintf("Your appointment on %s at %s has been approved. Meeting room: %s.", appt.Date, appt.Time, appt.MeetingRoom),
		})
	}
	return appt, nil
}

// Reject moves a pending or paid-and-awaiting appointment to rejected.
func (m *Manager) Reject(ctx context.Context, actor models.Actor, id, reason string) (*models.Appointment, error) {
	appt, changed, err := m.mutate(ctx, m.byID(id), func(a *models.Appointment) (bool, error) {
		if !isDoctorOf(actor, a) && !actor.IsAdmin() {
			return false, ErrForbidden
		}
		if a.Status == models.StatusRejected {
			return false, nil
		}
		if err := setStatus(a, models.StatusRejected); err != nil {
			return false, err
		}
		a.RejectionReason = reason
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	if changed {
		body := fmt.Sprintf("Your appointment on %s at %s was rejected.", appt.Date, appt.Time)
		if reason != "" {
			body += " Reason: " + reason
		}
		m.notify(ctx, notify.Message{
			UserID: appt.PatientID, Kind: models.KindAppointmentRejected, AppointmentID: appt.ID,
			Title: "Appointment rejected", Body: body,
		})
	}
	return appt, nil
}

// Complete marks an approved appointment completed. Only the assigned doctor
// may do this; the scheduled time is not checked.
func (m *Manager) Complete(ctx context.Context, actor models.Actor, id string) (*models.Appointment, error) {
	appt, changed, err := m.mutate(ctx, m.byID(id), func(a *models.Appointment) (bool, error) {
		if !isDoctorOf(actor, a) {
			return false, ErrForbidden
		}
		if a.Status == models.StatusCompleted {
			return false, nil
		}
		if err := setStatus(a, models.StatusCompleted); err != nil {
			return false, err
		}
		now := m.opts.Now()
		a.CompletedAt = &now
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	if changed {
		m.notify(ctx, notify.Message{
			UserID: appt.PatientID, Kind: models.KindAppointmentCompleted, AppointmentID: appt.ID,
			Title: "Appointment completed",
			Body:  "Your consultation has been marked as completed. You can now rate your visit.",
		})
	}
	return appt, nil
}

// Cancel soft-cancels an appointment. The record is kept so ratings,
// reports and notes that reference it stay valid.
func (m *Manager) Cancel(ctx context.Context, actor models.Actor, id, reason string) (*models.Appointment, error) {
	appt, changed, err := m.mutate(ctx, m.byID(id), func(a *models.Appointment) (bool, error) {
		if !actor.IsAdmin() && !(actor.IsPatient() && a.PatientID == actor.ID) {
			return false, ErrForbidden
		}
		if a.Status == models.StatusCancelled {
			return false, nil
		}
		if err := setStatus(a, models.StatusCancelled); err != nil {
			return false, err
		}
		a.CancellationReason = reason
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	if changed {
		m.notify(ctx, notify.Message{
			UserID: appt.DoctorID, Kind: models.KindAppointmentCancelled, AppointmentID: appt.ID,
			Title: "Appointment cancelled",
			Body:  fmt.Sprintf("The appointment on %s at %s has been cancelled.", appt.Date, appt.Time),
		})
	}
	return appt, nil
}

func isDoctorOf(actor models.Actor, a *models.Appointment) bool {
	return actor.IsDoctor() && a.DoctorID == actor.ID
}

type loader func(ctx context.Context) (*models.Appointment, error)

func (m *Manager) byID(id string) loader {
	return func(ctx context.Context) (*models.Appointment, error) { return m.load(ctx, id) }
}

func (m *Manager) byPaymentID(ref string) loader {
	return func(ctx context.Context) (*models.Appointment, error) {
		appt, err := m.store.Appointments().GetByPaymentID(ctx, ref)
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: transaction %q", ErrNotFound, ref)
		}
		return appt, err
	}
}

func (m *Manager) load(ctx context.Context, id string) (*models.Appointment, error) {
	appt, err := m.store.Appointments().GetByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("load appointment: %w", err)
	}
	return appt, nil
}

// mutate loads an appointment, applies fn and saves it when fn reports a
// change. A lost optimistic-version race reloads and re-applies fn.
func (m *Manager) mutate(ctx context.Context, load loader, fn func(*models.Appointment) (bool, error)) (*models.Appointment, bool, error) {
	for attempt := 1; ; attempt++ {
		appt, err := load(ctx)
		if err != nil {
			return nil, false, err
		}
		changed, err := fn(appt)
		if err != nil || !changed {
			return appt, false, err
		}
		err = m.store.Appointments().Save(ctx, appt)
		if errors.Is(err, store.ErrConflict) && attempt < maxSaveAttempts {
			m.log.Debug().Str("appointment_id", appt.ID).Int("attempt", attempt).Msg("version conflict, retrying")
			continue
		}
		if err != nil {
			return nil, false, fmt.Errorf("save appointment: %w", err)
		}
		return appt, true, nil
	}
}

// notify hands msg to the notifier and swallows every failure.
func (m *Manager) notify(ctx context.Context, msg notify.Message) {
	if m.notifier == nil || msg.UserID == "" {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			m.log.Error().Interface("panic", r).Str("kind", string(msg.Kind)).Msg("notifier panicked")
		}
	}()
	if err := m.notifier.Notify(ctx, msg); err != nil {
		m.log.Warn().Err(err).Str("kind", string(msg.Kind)).Str("user_id", msg.UserID).Msg("notification dropped")
	}
}
