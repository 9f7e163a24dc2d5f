package lifecycle

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clinic-booking-server/internal/models"
)

func (f *fixture) bookAndBegin(t *testing.T, ref string) *models.Appointment {
	t.Helper()
	appt := f.book(t, "2026-03-12", "10:00")
	appt, err := f.mgr.BeginPayment(context.Background(), f.patient, appt.ID, ref)
	require.NoError(t, err)
	require.Equal(t, ref, appt.PaymentID)
	return appt
}

func TestRecordPaymentComplete(t *testing.T) {
	f := newFixture(t)
	appt := f.bookAndBegin(t, "260310-090000-aaaa0001")

	res, err := f.mgr.RecordPayment(context.Background(), PaymentReport{
		TransactionRef: "260310-090000-aaaa0001", Amount: 1500, GatewayStatus: "COMPLETE", GatewayTransactionID: "000AB12",
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomePaid, res.Outcome)
	assert.True(t, res.Applied)

	stored := f.reload(t, appt.ID)
	assert.Equal(t, models.PaymentPaid, stored.PaymentStatus)
	assert.Equal(t, models.StatusPendingApproval, stored.Status)
	assert.Equal(t, "000AB12", stored.GatewayTransactionID)
	require.NotNil(t, stored.PaymentDate)
	assert.Equal(t, testNow, *stored.PaymentDate)
	assert.Equal(t, []models.NotificationKind{models.KindPaymentConfirmed, models.KindPaymentConfirmed}, f.notes.kinds())
}

func TestRecordPaymentReplayIsNoop(t *testing.T) {
	f := newFixture(t)
	f.bookAndBegin(t, "ref-replay")
	report := PaymentReport{TransactionRef: "ref-replay", Amount: 1500, GatewayStatus: "COMPLETE"}

	_, err := f.mgr.RecordPayment(context.Background(), report)
	require.NoError(t, err)
	res, err := f.mgr.RecordPayment(context.Background(), report)
	require.NoError(t, err)
	assert.Equal(t, OutcomePaid, res.Outcome)
	assert.False(t, res.Applied)
	assert.Len(t, f.notes.kinds(), 2)
}

func TestRecordPaymentCancelled(t *testing.T) {
	f := newFixture(t)
	appt := f.bookAndBegin(t, "ref-cancel")

	res, err := f.mgr.RecordPayment(context.Background(), PaymentReport{
		TransactionRef: "ref-cancel", Amount: 1500, GatewayStatus: "CANCELED",
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomeCancelled, res.Outcome)

	stored := f.reload(t, appt.ID)
	assert.Equal(t, models.PaymentFailed, stored.PaymentStatus)
	assert.Equal(t, models.StatusPending, stored.Status)
	assert.Empty(t, f.notes.kinds())
}

func TestRecordPaymentAmountMismatch(t *testing.T) {
	f := newFixture(t)
	appt := f.bookAndBegin(t, "ref-short")

	res, err := f.mgr.RecordPayment(context.Background(), PaymentReport{
		TransactionRef: "ref-short", Amount: 1499.99, GatewayStatus: "COMPLETE",
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrIntegrityViolation)
	assert.ErrorIs(t, err, ErrAmountMismatch)
	assert.Equal(t, OutcomeAmountMismatch, res.Outcome)

	stored := f.reload(t, appt.ID)
	assert.Equal(t, models.PaymentPending, stored.PaymentStatus)
	assert.Equal(t, models.StatusPending, stored.Status)
	assert.Empty(t, f.notes.kinds())
}

func TestRecordPaymentUnknownReference(t *testing.T) {
	f := newFixture(t)
	_, err := f.mgr.RecordPayment(context.Background(), PaymentReport{TransactionRef: "nope", Amount: 1500, GatewayStatus: "COMPLETE"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRecordPaymentUnknownStatusLeavesPending(t *testing.T) {
	f := newFixture(t)
	appt := f.bookAndBegin(t, "ref-ambiguous")

	res, err := f.mgr.RecordPayment(context.Background(), PaymentReport{TransactionRef: "ref-ambiguous", Amount: 1500, GatewayStatus: "AMBIGUOUS"})
	require.NoError(t, err)
	assert.Equal(t, OutcomePending, res.Outcome)
	assert.Equal(t, models.PaymentPending, f.reload(t, appt.ID).PaymentStatus)
}

func TestFailedPaymentNeverLeadsDirectlyToApproved(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	appt := f.bookAndBegin(t, "ref-retry-1")

	_, err := f.mgr.RecordPayment(ctx, PaymentReport{TransactionRef: "ref-retry-1", Amount: 1500, GatewayStatus: "FAILURE"})
	require.NoError(t, err)

	retried, err := f.mgr.BeginPayment(ctx, f.patient, appt.ID, "ref-retry-2")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentPending, retried.PaymentStatus)

	_, err = f.mgr.RecordPayment(ctx, PaymentReport{TransactionRef: "ref-retry-2", Amount: 1500, GatewayStatus: "COMPLETE"})
	require.NoError(t, err)
	stored := f.reload(t, appt.ID)
	assert.Equal(t, models.PaymentPaid, stored.PaymentStatus)
	assert.Equal(t, models.StatusPendingApproval, stored.Status)
}

func TestLateFailureAfterPaidIsIgnored(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	appt := f.bookAndBegin(t, "ref-late")

	_, err := f.mgr.RecordPayment(ctx, PaymentReport{TransactionRef: "ref-late", Amount: 1500, GatewayStatus: "COMPLETE"})
	require.NoError(t, err)
	res, err := f.mgr.RecordPayment(ctx, PaymentReport{TransactionRef: "ref-late", Amount: 1500, GatewayStatus: "CANCELED"})
	require.NoError(t, err)
	assert.Equal(t, OutcomePaid, res.Outcome)
	assert.Equal(t, models.PaymentPaid, f.reload(t, appt.ID).PaymentStatus)
}

func TestBeginPaymentKeepsPendingReference(t *testing.T) {
	f := newFixture(t)
	appt := f.bookAndBegin(t, "ref-first")

	again, err := f.mgr.BeginPayment(context.Background(), f.patient, appt.ID, "ref-second")
	require.NoError(t, err)
	assert.Equal(t, "ref-first", again.PaymentID)

	_, err = f.mgr.BeginPayment(context.Background(), models.Actor{ID: "x", Role: models.RolePatient}, appt.ID, "ref-third")
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestConfirmPaymentAdminOnly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	appt := f.book(t, "2026-03-12", "10:00")

	_, err := f.mgr.ConfirmPayment(ctx, f.doctor, appt.ID, 1500, "")
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = f.mgr.ConfirmPayment(ctx, f.admin, appt.ID, 1000, "")
	assert.ErrorIs(t, err, ErrAmountMismatch)

	paid, err := f.mgr.ConfirmPayment(ctx, f.admin, appt.ID, 1500, "bank-slip-7")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentPaid, paid.PaymentStatus)
	assert.Equal(t, models.StatusPendingApproval, paid.Status)
	assert.Equal(t, "bank-slip-7", paid.GatewayTransactionID)
}

func TestRefund(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	appt := f.book(t, "2026-03-12", "10:00")

	_, err := f.mgr.Refund(ctx, f.admin, appt.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = f.mgr.ConfirmPayment(ctx, f.admin, appt.ID, 1500, "")
	require.NoError(t, err)
	refunded, err := f.mgr.Refund(ctx, f.admin, appt.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentRefunded, refunded.PaymentStatus)
}

func TestAmountsMatch(t *testing.T) {
	assert.True(t, AmountsMatch(1500, 1500))
	assert.True(t, AmountsMatch(1500, 1500.001))
	assert.True(t, AmountsMatch(0.1+0.2, 0.3))
	assert.False(t, AmountsMatch(1500, 1499.99))
	assert.False(t, AmountsMatch(1500, 1500.01))
	assert.False(t, AmountsMatch(1500, math.NaN()))
	assert.False(t, AmountsMatch(1500, math.Inf(1)))
	assert.False(t, AmountsMatch(math.NaN(), 1500))

	// Half a cent either way is tolerated, symmetrically.
	assert.True(t, AmountsMatch(500, 499.995))
	assert.True(t, AmountsMatch(500, 500.005))
	assert.Equal(t, AmountsMatch(500, 499.995), AmountsMatch(500, 500.005))
	assert.False(t, AmountsMatch(500, 499.99))
	assert.False(t, AmountsMatch(500, 500.01))

	for i := 0; i < 2000; i++ {
		expected := float64(i)*0.37 + 0.5
		for _, delta := range []float64{0.01, 0.011, 0.02, 0.5, 1, -0.01, -0.015, -1} {
			received := expected + delta
			if math.Abs(expected-received) >= 0.01 {
				assert.False(t, AmountsMatch(expected, received), "%v vs %v", expected, received)
			}
		}
	}
}
