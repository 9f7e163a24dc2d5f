package clinical

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/datatypes"

	"clinic-booking-server/internal/models"
	"clinic-booking-server/internal/store"
)

// NoteInput carries the editable parts of a SOAP note.
type NoteInput struct {
	Subjective  string
	Objective   string
	Assessment  string
	Plan        string
	Vitals      map[string]interface{}
	Diagnoses   datatypes.JSON
	Medications datatypes.JSON
	FollowUp    string
}

func (in NoteInput) apply(n *models.SOAPNote) {
	n.Subjective = in.Subjective
	n.Objective = in.Objective
	n.Assessment = in.Assessment
	n.Plan = in.Plan
	n.Vitals = datatypes.JSONMap(in.Vitals)
	n.Diagnoses = in.Diagnoses
	n.Medications = in.Medications
	n.FollowUp = in.FollowUp
}

// CreateNote starts the draft note of an appointment. Only the assigned
// doctor writes notes, and only for approved or completed appointments.
func (s *Service) CreateNote(ctx context.Context, actor models.Actor, appointmentID string, in NoteInput) (*models.SOAPNote, error) {
	appt, err := s.appointment(ctx, appointmentID)
	if err != nil {
		return nil, err
	}
	if !actor.IsDoctor() || appt.DoctorID != actor.ID {
		return nil, ErrForbidden
	}
	if appt.Status != models.StatusApproved && appt.Status != models.StatusCompleted {
		return nil, fmt.Errorf("%w: appointment is %s", ErrInvalidInput, appt.Status)
	}

	if _, err := s.store.SOAPNotes().GetByAppointment(ctx, appt.ID); err == nil {
		return nil, ErrDuplicate
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("check existing note: %w", err)
	}

	note := &models.SOAPNote{
		AppointmentID: appt.ID,
		PatientID:     appt.PatientID,
		DoctorID:      appt.DoctorID,
		Status:        models.SOAPDraft,
	}
	in.apply(note)
	if err := s.store.SOAPNotes().Create(ctx, note); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, ErrDuplicate
		}
		return nil, fmt.Errorf("create note: %w", err)
	}
	return note, nil
}

// GetNote returns a note to its author, its patient or an admin.
func (s *Service) GetNote(ctx context.Context, actor models.Actor, id string) (*models.SOAPNote, error) {
	note, err := s.store.SOAPNotes().GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err, "note", id)
	}
	if !canRead(actor, note.PatientID, note.DoctorID) {
		return nil, ErrForbidden
	}
	return note, nil
}

// NoteForAppointment returns the note written for an appointment.
func (s *Service) NoteForAppointment(ctx context.Context, actor models.Actor, appointmentID string) (*models.SOAPNote, error) {
	note, err := s.store.SOAPNotes().GetByAppointment(ctx, appointmentID)
	if err != nil {
		return nil, notFound(err, "note for appointment", appointmentID)
	}
	if !canRead(actor, note.PatientID, note.DoctorID) {
		return nil, ErrForbidden
	}
	return note, nil
}

// UpdateNote replaces the content of a draft note.
func (s *Service) UpdateNote(ctx context.Context, actor models.Actor, id string, in NoteInput) (*models.SOAPNote, error) {
	note, err := s.authoredDraft(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	in.apply(note)
	if err := s.store.SOAPNotes().Save(ctx, note); err != nil {
		return nil, fmt.Errorf("save note: %w", err)
	}
	return note, nil
}

// SignNote locks a note. All four SOAP sections must be filled in.
func (s *Service) SignNote(ctx context.Context, actor models.Actor, id string) (*models.SOAPNote, error) {
	note, err := s.authoredDraft(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	for name, v := range map[string]string{
		"subjective": note.Subjective, "objective": note.Objective,
		"assessment": note.Assessment, "plan": note.Plan,
	} {
		if strings.TrimSpace(v) == "" {
			return nil, fmt.Errorf("%w: %s is empty", ErrInvalidInput, name)
		}
	}
	now := s.now()
	note.Status = models.SOAPSigned
	note.SignedAt = &now
	if err := s.store.SOAPNotes().Save(ctx, note); err != nil {
		return nil, fmt.Errorf("save note: %w", err)
	}
	s.log.Info().Str("note_id", note.ID).Str("appointment_id", note.AppointmentID).Msg("SOAP note signed")
	return note, nil
}

// DeleteNote removes a draft note. Admins may delete any draft.
func (s *Service) DeleteNote(ctx context.Context, actor models.Actor, id string) error {
	note, err := s.store.SOAPNotes().GetByID(ctx, id)
	if err != nil {
		return notFound(err, "note", id)
	}
	if !actor.IsAdmin() && !(actor.IsDoctor() && note.DoctorID == actor.ID) {
		return ErrForbidden
	}
	if note.IsSigned() {
		return ErrSigned
	}
	return s.store.SOAPNotes().Delete(ctx, id)
}

// NotesForPatient lists a patient's notes. Doctors only see notes they wrote.
func (s *Service) NotesForPatient(ctx context.Context, actor models.Actor, patientID string) ([]models.SOAPNote, error) {
	if actor.IsPatient() && actor.ID != patientID {
		return nil, ErrForbidden
	}
	notes, err := s.store.SOAPNotes().ListByPatient(ctx, patientID)
	if err != nil {
		return nil, err
	}
	if !actor.IsDoctor() {
		return notes, nil
	}
	out := notes[:0]
	for _, n := range notes {
		if n.DoctorID == actor.ID {
			out = append(out, n)
		}
	}
	return out, nil
}

func (s *Service) authoredDraft(ctx context.Context, actor models.Actor, id string) (*models.SOAPNote, error) {
	note, err := s.store.SOAPNotes().GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err, "note", id)
	}
	if !actor.IsDoctor() || note.DoctorID != actor.ID {
		return nil, ErrForbidden
	}
	if note.IsSigned() {
		return nil, ErrSigned
	}
	return note, nil
}

func canRead(actor models.Actor, patientID, doctorID string) bool {
	switch actor.Role {
	case models.RoleAdmin:
		return true
	case models.RoleDoctor:
		return actor.ID == doctorID
	case models.RolePatient:
		return actor.ID == patientID
	}
	return false
}
