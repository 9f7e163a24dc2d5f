package lifecycle

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clinic-booking-server/internal/models"
)

func TestRatingAfterCompletionUpserts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	appt := f.book(t, "2026-03-12", "10:00")

	_, err := f.mgr.RateAppointment(ctx, f.patient, appt.ID, 5, "early")
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = f.mgr.Approve(ctx, f.doctor, appt.ID)
	require.NoError(t, err)
	_, err = f.mgr.Complete(ctx, f.doctor, appt.ID)
	require.NoError(t, err)

	first, err := f.mgr.RateAppointment(ctx, f.patient, appt.ID, 4, "good")
	require.NoError(t, err)
	second, err := f.mgr.RateAppointment(ctx, f.patient, appt.ID, 2, "changed my mind")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	ratings, err := f.st.Ratings().ListByDoctor(ctx, f.doctor.ID)
	require.NoError(t, err)
	require.Len(t, ratings, 1)
	assert.Equal(t, 2, ratings[0].Score)
	assert.Equal(t, "changed my mind", ratings[0].Review)
}

func TestRatingValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	appt := f.seed(t, models.StatusCompleted, models.PaymentPaid)

	_, err := f.mgr.RateAppointment(ctx, f.patient, appt.ID, 6, "")
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = f.mgr.RateAppointment(ctx, f.patient, appt.ID, 0, "")
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = f.mgr.RateAppointment(ctx, f.doctor, appt.ID, 5, "")
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = f.mgr.RateAppointment(ctx, f.patient, "missing", 5, "")
	assert.ErrorIs(t, err, ErrNotFound)
}
