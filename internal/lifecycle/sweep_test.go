package lifecycle

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clinic-booking-server/internal/models"
	"clinic-booking-server/internal/store"
)

func (f *fixture) seedApproved(t *testing.T, date, clock string, expiresAt *time.Time) *models.Appointment {
	t.Helper()
	appt := &models.Appointment{
		PatientID: f.patient.ID, DoctorID: f.doctor.ID, Date: date, Time: clock,
		Status: models.StatusApproved, PaymentStatus: models.PaymentPaid, Amount: 1500, ExpiresAt: expiresAt,
	}
	require.NoError(t, f.st.Appointments().Create(context.Background(), appt))
	return appt
}

func TestExpireStaleMissedTakesPrecedence(t *testing.T) {
	f := newFixture(t)
	past := testNow.Add(-time.Hour)
	appt := f.seedApproved(t, "2026-03-01", "10:00", &past)

	res, err := f.mgr.ExpireStale(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Missed)
	assert.Equal(t, 0, res.Expired)
	assert.Equal(t, models.StatusMissed, f.reload(t, appt.ID).Status)
	assert.Equal(t, []models.NotificationKind{models.KindAppointmentMissed, models.KindAppointmentMissed}, f.notes.kinds())
}

func TestExpireStaleUnscheduledExpires(t *testing.T) {
	f := newFixture(t)
	past := testNow.Add(-time.Minute)
	future := testNow.Add(time.Hour)
	stale := f.seedApproved(t, "whenever", "soon", &past)
	fresh := f.seedApproved(t, "whenever", "soon", &future)
	noExpiry := f.seedApproved(t, "whenever", "soon", nil)

	res, err := f.mgr.ExpireStale(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Expired)
	assert.Equal(t, models.StatusExpired, f.reload(t, stale.ID).Status)
	assert.Equal(t, models.StatusApproved, f.reload(t, fresh.ID).Status)
	assert.Equal(t, models.StatusApproved, f.reload(t, noExpiry.ID).Status)
	assert.Empty(t, f.notes.kinds())
}

func TestExpireStaleRespectsGrace(t *testing.T) {
	f := newFixture(t)
	// Started 30 minutes ago, grace is one hour.
	appt := f.seedApproved(t, "2026-03-10", "08:30", nil)

	res, err := f.mgr.ExpireStale(context.Background())
	require.NoError(t, err)
	assert.Zero(t, res.Missed)
	assert.Equal(t, models.StatusApproved, f.reload(t, appt.ID).Status)
}

func TestExpireStaleIsIdempotent(t *testing.T) {
	f := newFixture(t)
	past := testNow.Add(-time.Hour)
	f.seedApproved(t, "2026-03-01", "10:00", nil)
	f.seedApproved(t, "someday", "", &past)
	f.seedApproved(t, "2026-03-20", "10:00", nil)
	f.seed(t, models.StatusPending, models.PaymentPending)
	f.seed(t, models.StatusCompleted, models.PaymentPaid)
	f.seed(t, models.StatusCancelled, models.PaymentFailed)

	snapshot := func() map[string]models.AppointmentStatus {
		list, err := f.st.Appointments().List(context.Background(), store.AppointmentFilter{})
		require.NoError(t, err)
		out := map[string]models.AppointmentStatus{}
		for _, a := range list {
			out[a.ID] = a.Status
		}
		return out
	}

	_, err := f.mgr.ExpireStale(context.Background())
	require.NoError(t, err)
	once := snapshot()
	notified := len(f.notes.kinds())

	res, err := f.mgr.ExpireStale(context.Background())
	require.NoError(t, err)
	assert.Equal(t, once, snapshot())
	assert.Zero(t, res.Missed+res.Expired)
	assert.Len(t, f.notes.kinds(), notified)
}
