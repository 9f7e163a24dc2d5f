package memstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clinic-booking-server/internal/models"
	"clinic-booking-server/internal/store"
)

func TestAppointmentSaveDetectsStaleVersion(t *testing.T) {
	st := New()
	ctx := context.Background()
	appt := &models.Appointment{PatientID: "p", DoctorID: "d", Status: models.StatusPending}
	require.NoError(t, st.Appointments().Create(ctx, appt))

	first, err := st.Appointments().GetByID(ctx, appt.ID)
	require.NoError(t, err)
	second, err := st.Appointments().GetByID(ctx, appt.ID)
	require.NoError(t, err)

	first.Status = models.StatusApproved
	require.NoError(t, st.Appointments().Save(ctx, first))
	assert.Equal(t, 1, first.Version)

	second.Status = models.StatusRejected
	assert.ErrorIs(t, st.Appointments().Save(ctx, second), store.ErrConflict)

	stored, err := st.Appointments().GetByID(ctx, appt.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, stored.Status)
}

func TestGetByPaymentID(t *testing.T) {
	st := New()
	ctx := context.Background()
	require.NoError(t, st.Appointments().Create(ctx, &models.Appointment{PatientID: "p"}))
	withRef := &models.Appointment{PatientID: "p", PaymentID: "260310-090000-abcd1234"}
	require.NoError(t, st.Appointments().Create(ctx, withRef))

	got, err := st.Appointments().GetByPaymentID(ctx, "260310-090000-abcd1234")
	require.NoError(t, err)
	assert.Equal(t, withRef.ID, got.ID)

	_, err = st.Appointments().GetByPaymentID(ctx, "")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestUserDeleteCascades(t *testing.T) {
	st := New()
	ctx := context.Background()
	patient := &models.User{Email: "p@clinic.test", Role: models.RolePatient}
	other := &models.User{Email: "o@clinic.test", Role: models.RolePatient}
	require.NoError(t, st.Users().Create(ctx, patient))
	require.NoError(t, st.Users().Create(ctx, other))

	mine := &models.Appointment{PatientID: patient.ID, DoctorID: "d"}
	theirs := &models.Appointment{PatientID: other.ID, DoctorID: "d"}
	require.NoError(t, st.Appointments().Create(ctx, mine))
	require.NoError(t, st.Appointments().Create(ctx, theirs))
	require.NoError(t, st.Ratings().Upsert(ctx, &models.Rating{AppointmentID: mine.ID, PatientID: patient.ID, DoctorID: "d", Score: 4}))
	require.NoError(t, st.Notifications().Create(ctx, &models.Notification{UserID: patient.ID}))

	require.NoError(t, st.Users().Delete(ctx, patient.ID))

	_, err := st.Users().GetByID(ctx, patient.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = st.Appointments().GetByID(ctx, mine.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = st.Appointments().GetByID(ctx, theirs.ID)
	assert.NoError(t, err)
	ratings, _ := st.Ratings().ListByDoctor(ctx, "d")
	assert.Empty(t, ratings)
	notes, _ := st.Notifications().ListForUser(ctx, patient.ID, false)
	assert.Empty(t, notes)

	assert.ErrorIs(t, st.Users().Delete(ctx, patient.ID), store.ErrNotFound)
}

func TestRatingUpsertKeepsOnePerAppointment(t *testing.T) {
	st := New()
	ctx := context.Background()
	first := &models.Rating{AppointmentID: "a1", DoctorID: "d", Score: 5}
	require.NoError(t, st.Ratings().Upsert(ctx, first))
	second := &models.Rating{AppointmentID: "a1", DoctorID: "d", Score: 2, Review: "late"}
	require.NoError(t, st.Ratings().Upsert(ctx, second))
	assert.Equal(t, first.ID, second.ID)

	avg, n, err := st.Ratings().AverageForDoctor(ctx, "d")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Equal(t, 2.0, avg)
}

func TestUsersListFilters(t *testing.T) {
	st := New()
	ctx := context.Background()
	require.NoError(t, st.Users().Create(ctx, &models.User{Email: "a@clinic.test", FirstName: "Ana", Role: models.RoleDoctor,
		Doctor: &models.DoctorProfile{Specialization: "Dermatology"}}))
	require.NoError(t, st.Users().Create(ctx, &models.User{Email: "b@clinic.test", FirstName: "Ben", Role: models.RoleDoctor,
		Doctor: &models.DoctorProfile{Specialization: "Cardiology"}}))
	require.NoError(t, st.Users().Create(ctx, &models.User{Email: "c@clinic.test", FirstName: "Cy", Role: models.RolePatient}))

	doctors, err := st.Users().List(ctx, store.UserFilter{Role: models.RoleDoctor})
	require.NoError(t, err)
	assert.Len(t, doctors, 2)

	derm, err := st.Users().List(ctx, store.UserFilter{Role: models.RoleDoctor, Specialization: "dermatology"})
	require.NoError(t, err)
	require.Len(t, derm, 1)
	assert.Equal(t, "Ana", derm[0].FirstName)

	byName, err := st.Users().List(ctx, store.UserFilter{Query: "BEN"})
	require.NoError(t, err)
	require.Len(t, byName, 1)

	err = st.Users().Create(ctx, &models.User{Email: "A@clinic.test", Role: models.RolePatient})
	assert.ErrorIs(t, err, store.ErrDuplicate)
}
