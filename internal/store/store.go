// Package store defines the repository contracts the domain packages depend
// on, and the gorm-backed implementation used in production.
package store

import (
	"context"
	"errors"

	"clinic-booking-server/internal/models"
)

var (
	// ErrNotFound is returned when a lookup matches no record.
	ErrNotFound = errors.New("record not found")
	// ErrConflict is returned when a save lost an optimistic version check.
	ErrConflict = errors.New("record was modified concurrently")
	// ErrDuplicate is returned when a unique key is already taken.
	ErrDuplicate = errors.New("record already exists")
)

// UserFilter narrows user listings. Zero values match everything.
type UserFilter struct {
	Role           models.Role
	Specialization string
	Query          string
}

// AppointmentFilter narrows appointment listings.
type AppointmentFilter struct {
	PatientID string
	DoctorID  string
	Statuses  []models.AppointmentStatus
}

// ReportFilter narrows report listings.
type ReportFilter struct {
	PatientID     string
	DoctorID      string
	AppointmentID string
}

// AppointmentStats summarizes appointments for the admin dashboard.
type AppointmentStats struct {
	ByStatus    map[models.AppointmentStatus]int64 `json:"byStatus"`
	PaidCount   int64                              `json:"paidCount"`
	PaidRevenue float64                            `json:"paidRevenue"`
}

type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	Update(ctx context.Context, user *models.User) error
	List(ctx context.Context, filter UserFilter) ([]models.User, error)
	// Delete removes the user together with their appointments, ratings,
	// reports, SOAP notes, notifications and refresh tokens.
	Delete(ctx context.Context, id string) error
}

type AppointmentRepository interface {
	Create(ctx context.Context, appt *models.Appointment) error
	GetByID(ctx context.Context, id string) (*models.Appointment, error)
	GetByPaymentID(ctx context.Context, paymentID string) (*models.Appointment, error)
	// Save writes every field of appt if the stored version still equals
	// appt.Version, then increments appt.Version. Otherwise ErrConflict.
	Save(ctx context.Context, appt *models.Appointment) error
	List(ctx context.Context, filter AppointmentFilter) ([]models.Appointment, error)
	Stats(ctx context.Context) (AppointmentStats, error)
}

type RatingRepository interface {
	GetByAppointment(ctx context.Context, appointmentID string) (*models.Rating, error)
	// Upsert creates the rating or overwrites Score and Review of the
	// existing rating for the same appointment. On return rating holds the
	// stored record.
	Upsert(ctx context.Context, rating *models.Rating) error
	ListByDoctor(ctx context.Context, doctorID string) ([]models.Rating, error)
	AverageForDoctor(ctx context.Context, doctorID string) (float64, int64, error)
}

type SOAPNoteRepository interface {
	Create(ctx context.Context, note *models.SOAPNote) error
	GetByID(ctx context.Context, id string) (*models.SOAPNote, error)
	GetByAppointment(ctx context.Context, appointmentID string) (*models.SOAPNote, error)
	Save(ctx context.Context, note *models.SOAPNote) error
	Delete(ctx context.Context, id string) error
	ListByPatient(ctx context.Context, patientID string) ([]models.SOAPNote, error)
}

type ReportRepository interface {
	Create(ctx context.Context, report *models.Report) error
	GetByID(ctx context.Context, id string) (*models.Report, error)
	List(ctx context.Context, filter ReportFilter) ([]models.Report, error)
}

type NotificationRepository interface {
	Create(ctx context.Context, n *models.Notification) error
	ListForUser(ctx context.Context, userID string, unreadOnly bool) ([]models.Notification, error)
	MarkRead(ctx context.Context, userID, id string) error
	MarkAllRead(ctx context.Context, userID string) (int64, error)
}

type RefreshTokenRepository interface {
	Create(ctx context.Context, token *models.RefreshToken) error
	FindByToken(ctx context.Context, token string) (*models.RefreshToken, error)
	Revoke(ctx context.Context, id string) error
}

// Store groups the repositories of one backend.
type Store interface {
	Users() UserRepository
	Appointments() AppointmentRepository
	Ratings() RatingRepository
	SOAPNotes() SOAPNoteRepository
	Reports() ReportRepository
	Notifications() NotificationRepository
	RefreshTokens() RefreshTokenRepository
}
