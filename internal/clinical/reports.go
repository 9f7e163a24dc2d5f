package clinical

import (
	"context"
	"fmt"
	"strings"

	"clinic-booking-server/internal/models"
	"clinic-booking-server/internal/store"
)

// ReportInput describes an uploaded artifact.
type ReportInput struct {
	PatientID     string
	AppointmentID string
	Title         string
	Description   string
	FileName      string
	FileType      string
	FileURL       string
}

// CreateReport records a report a doctor issued for a patient. When an
// appointment is given it must be between the same doctor and patient.
func (s *Service) CreateReport(ctx context.Context, actor models.Actor, in ReportInput) (*models.Report, error) {
	if !actor.IsDoctor() {
		return nil, ErrForbidden
	}
	if strings.TrimSpace(in.Title) == "" || strings.TrimSpace(in.FileURL) == "" {
		return nil, fmt.Errorf("%w: title and file url are required", ErrInvalidInput)
	}
	patient, err := s.store.Users().GetByID(ctx, in.PatientID)
	if err != nil {
		return nil, notFound(err, "patient", in.PatientID)
	}
	if patient.Role != models.RolePatient {
		return nil, fmt.Errorf("%w: user %s is not a patient", ErrInvalidInput, in.PatientID)
	}
	if in.AppointmentID != "" {
		appt, err := s.appointment(ctx, in.AppointmentID)
		if err != nil {
			return nil, err
		}
		if appt.DoctorID != actor.ID || appt.PatientID != patient.ID {
			return nil, fmt.Errorf("%w: appointment belongs to someone else", ErrForbidden)
		}
	}
	if in.FileName == "" {
		in.FileName = in.FileURL[strings.LastIndex(in.FileURL, "/")+1:]
	}

	report := &models.Report{
		PatientID:     patient.ID,
		DoctorID:      actor.ID,
		AppointmentID: in.AppointmentID,
		Title:         in.Title,
		Description:   in.Description,
		FileName:      in.FileName,
		FileType:      in.FileType,
		FileURL:       in.FileURL,
	}
	if err := s.store.Reports().Create(ctx, report); err != nil {
		return nil, fmt.Errorf("create report: %w", err)
	}
	return report, nil
}

func (s *Service) GetReport(ctx context.Context, actor models.Actor, id string) (*models.Report, error) {
	report, err := s.store.Reports().GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err, "report", id)
	}
	if !canRead(actor, report.PatientID, report.DoctorID) {
		return nil, ErrForbidden
	}
	return report, nil
}

// ListReports narrows filter to what actor may see.
func (s *Service) ListReports(ctx context.Context, actor models.Actor, filter store.ReportFilter) ([]models.Report, error) {
	switch actor.Role {
	case models.RolePatient:
		filter.PatientID = actor.ID
	case models.RoleDoctor:
		filter.DoctorID = actor.ID
	case models.RoleAdmin:
	default:
		return nil, ErrForbidden
	}
	return s.store.Reports().List(ctx, filter)
}
