package lifecycle

import (
	"context"
	"fmt"

	"clinic-booking-server/internal/models"
	"clinic-booking-server/internal/notify"
	"clinic-booking-server/internal/store"
)

// SweepResult summarizes one ExpireStale run.
type SweepResult struct {
	Scanned  int
	Missed   int
	Expired  int
	Failures map[string]error
}

// ExpireStale closes approved appointments whose time has passed. An
// appointment whose scheduled start plus the grace period lies in the past
// becomes missed; one that cannot be placed on the calendar but whose
// expiresAt has passed becomes expired. Missed wins when both apply. Each
// appointment is handled on its own, so one failure does not stop the rest,
// and appointments already closed are left untouched.
func (m *Manager) ExpireStale(ctx context.Context) (SweepResult, error) {
	res := SweepResult{Failures: map[string]error{}}
	approved, err := m.store.Appointments().List(ctx, store.AppointmentFilter{
		Statuses: []models.AppointmentStatus{models.StatusApproved},
	})
	if err != nil {
		return res, fmt.Errorf("list approved appointments: %w", err)
	}

	for i := range approved {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		res.Scanned++
		id := approved[i].ID
		var target models.AppointmentStatus
		appt, changed, err := m.mutate(ctx, m.byID(id), func(a *models.Appointment) (bool, error) {
			target = m.staleTarget(a)
			if target == "" || a.Status != models.StatusApproved {
				return false, nil
			}
			return true, setStatus(a, target)
		})
		if err != nil {
			res.Failures[id] = err
			m.log.Error().Err(err).Str("appointment_id", id).Msg("sweep failed for appointment")
			continue
		}
		if !changed {
			continue
		}
		switch target {
		case models.StatusMissed:
			res.Missed++
			m.notifyMissed(ctx, appt)
		case models.StatusExpired:
			res.Expired++
		}
	}

	m.log.Info().Int("scanned", res.Scanned).Int("missed", res.Missed).
		Int("expired", res.Expired).Int("failed", len(res.Failures)).Msg("stale appointment sweep finished")
	return res, nil
}

func (m *Manager) staleTarget(a *models.Appointment) models.AppointmentStatus {
	now := m.opts.Now()
	if at, ok := ScheduledAt(a.Date, a.Time, m.opts.Location); ok {
		if now.After(at.Add(m.opts.MissedGrace)) {
			return models.StatusMissed
		}
		return ""
	}
	if a.ExpiresAt != nil && now.After(*a.ExpiresAt) {
		return models.StatusExpired
	}
	return ""
}

func (m *Manager) notifyMissed(ctx context.Context, appt *models.Appointment) {
	body := fmt.Sprintf("The appointment on %s at %s was not completed and has been marked as missed.", appt.Date, appt.Time)
	for _, userID := range []string{appt.PatientID, appt.DoctorID} {
		m.notify(ctx, notify.Message{
			UserID: userID, Kind: models.KindAppointmentMissed, AppointmentID: appt.ID,
			Title: "Appointment missed", Body: body,
		})
	}
}
