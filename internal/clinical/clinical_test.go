package clinical

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"clinic-booking-server/internal/models"
	"clinic-booking-server/internal/store"
	"clinic-booking-server/internal/store/memstore"
)

type fixture struct {
	svc     *Service
	st      *memstore.Store
	doctor  models.Actor
	patient models.Actor
	admin   models.Actor
	appt    *models.Appointment
}

func newFixture(t *testing.T, status models.AppointmentStatus) *fixture {
	t.Helper()
	ctx := context.Background()
	st := memstore.New()
	doctor := &models.User{Email: "doc@clinic.test", Role: models.RoleDoctor, Doctor: &models.DoctorProfile{}}
	patient := &models.User{Email: "pat@clinic.test", Role: models.RolePatient}
	require.NoError(t, st.Users().Create(ctx, doctor))
	require.NoError(t, st.Users().Create(ctx, patient))
	appt := &models.Appointment{PatientID: patient.ID, DoctorID: doctor.ID, Date: "2026-03-12", Time: "10:00",
		Status: status, PaymentStatus: models.PaymentPaid, Amount: 500}
	require.NoError(t, st.Appointments().Create(ctx, appt))
	return &fixture{
		svc:     NewService(st, zerolog.Nop()),
		st:      st,
		doctor:  models.Actor{ID: doctor.ID, Role: models.RoleDoctor},
		patient: models.Actor{ID: patient.ID, Role: models.RolePatient},
		admin:   models.Actor{ID: "admin-1", Role: models.RoleAdmin},
		appt:    appt,
	}
}

func fullNote() NoteInput {
	return NoteInput{
		Subjective:  "headache for 3 days",
		Objective:   "afebrile",
		Assessment:  "tension headache",
		Plan:        "rest, fluids",
		Vitals:      map[string]interface{}{"bp": "120/80", "pulse": 72},
		Diagnoses:   datatypes.JSON(`[{"code":"G44.2","label":"Tension-type headache"}]`),
		Medications: datatypes.JSON(`[{"name":"ibuprofen","dose":"400mg"}]`),
	}
}

func TestNoteLifecycle(t *testing.T) {
	f := newFixture(t, models.StatusCompleted)
	ctx := context.Background()

	note, err := f.svc.CreateNote(ctx, f.doctor, f.appt.ID, NoteInput{Subjective: "draft"})
	require.NoError(t, err)
	assert.Equal(t, models.SOAPDraft, note.Status)
	assert.Equal(t, f.patient.ID, note.PatientID)

	_, err = f.svc.CreateNote(ctx, f.doctor, f.appt.ID, fullNote())
	assert.ErrorIs(t, err, ErrDuplicate)

	_, err = f.svc.SignNote(ctx, f.doctor, note.ID)
	assert.ErrorIs(t, err, ErrInvalidInput)

	updated, err := f.svc.UpdateNote(ctx, f.doctor, note.ID, fullNote())
	require.NoError(t, err)
	assert.Equal(t, "tension headache", updated.Assessment)
	assert.Equal(t, "120/80", updated.Vitals["bp"])

	signed, err := f.svc.SignNote(ctx, f.doctor, note.ID)
	require.NoError(t, err)
	assert.True(t, signed.IsSigned())
	assert.NotNil(t, signed.SignedAt)

	_, err = f.svc.UpdateNote(ctx, f.doctor, note.ID, fullNote())
	assert.ErrorIs(t, err, ErrSigned)
	assert.ErrorIs(t, f.svc.DeleteNote(ctx, f.admin, note.ID), ErrSigned)

	got, err := f.svc.NoteForAppointment(ctx, f.patient, f.appt.ID)
	require.NoError(t, err)
	assert.Equal(t, note.ID, got.ID)
}

func TestNoteAccess(t *testing.T) {
	f := newFixture(t, models.StatusApproved)
	ctx := context.Background()

	_, err := f.svc.CreateNote(ctx, f.patient, f.appt.ID, fullNote())
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = f.svc.CreateNote(ctx, models.Actor{ID: "other", Role: models.RoleDoctor}, f.appt.ID, fullNote())
	assert.ErrorIs(t, err, ErrForbidden)

	note, err := f.svc.CreateNote(ctx, f.doctor, f.appt.ID, fullNote())
	require.NoError(t, err)

	_, err = f.svc.GetNote(ctx, models.Actor{ID: "stranger", Role: models.RolePatient}, note.ID)
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = f.svc.GetNote(ctx, f.admin, note.ID)
	assert.NoError(t, err)
	_, err = f.svc.GetNote(ctx, f.admin, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	mine, err := f.svc.NotesForPatient(ctx, models.Actor{ID: "other", Role: models.RoleDoctor}, f.patient.ID)
	require.NoError(t, err)
	assert.Empty(t, mine)
	_, err = f.svc.NotesForPatient(ctx, models.Actor{ID: "stranger", Role: models.RolePatient}, f.patient.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	require.NoError(t, f.svc.DeleteNote(ctx, f.doctor, note.ID))
	_, err = f.svc.GetNote(ctx, f.doctor, note.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestNoteRequiresConsultation(t *testing.T) {
	f := newFixture(t, models.StatusPending)
	_, err := f.svc.CreateNote(context.Background(), f.doctor, f.appt.ID, fullNote())
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestReports(t *testing.T) {
	f := newFixture(t, models.StatusCompleted)
	ctx := context.Background()

	_, err := f.svc.CreateReport(ctx, f.patient, ReportInput{PatientID: f.patient.ID, Title: "x", FileURL: "https://files.test/x.pdf"})
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = f.svc.CreateReport(ctx, f.doctor, ReportInput{PatientID: f.doctor.ID, Title: "x", FileURL: "https://files.test/x.pdf"})
	assert.ErrorIs(t, err, ErrInvalidInput)

	report, err := f.svc.CreateReport(ctx, f.doctor, ReportInput{
		PatientID: f.patient.ID, AppointmentID: f.appt.ID, Title: "Blood panel", FileURL: "https://files.test/labs/panel.pdf",
	})
	require.NoError(t, err)
	assert.Equal(t, "panel.pdf", report.FileName)

	list, err := f.svc.ListReports(ctx, f.patient, store.ReportFilter{PatientID: "ignored"})
	require.NoError(t, err)
	require.Len(t, list, 1)

	_, err = f.svc.GetReport(ctx, models.Actor{ID: "other", Role: models.RoleDoctor}, report.ID)
	assert.ErrorIs(t, err, ErrForbidden)
}
