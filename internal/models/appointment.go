package models

import (
	"time"
)

// AppointmentStatus represents the clinical status of an appointment
type AppointmentStatus string

const (
	StatusPending         AppointmentStatus = "pending"
	StatusPendingApproval AppointmentStatus = "pending_approval"
	StatusApproved        AppointmentStatus = "approved"
	StatusRejected        AppointmentStatus = "rejected"
	StatusCompleted       AppointmentStatus = "completed"
	StatusCancelled       AppointmentStatus = "cancelled"
	StatusExpired         AppointmentStatus = "expired"
	StatusMissed          AppointmentStatus = "missed"
)

// IsTerminal reports whether no further status transition is accepted.
func (s AppointmentStatus) IsTerminal() bool {
	switch s {
	case StatusRejected, StatusCompleted, StatusCancelled, StatusExpired, StatusMissed:
		return true
	}
	return false
}

// Valid reports whether s is a known status value.
func (s AppointmentStatus) Valid() bool {
	switch s {
	case StatusPending, StatusPendingApproval, StatusApproved:
		return true
	}
	return s.IsTerminal()
}

// AllStatuses lists every appointment status.
func AllStatuses() []AppointmentStatus {
	return []AppointmentStatus{
		StatusPending, StatusPendingApproval, StatusApproved, StatusRejected,
		StatusCompleted, StatusCancelled, StatusExpired, StatusMissed,
	}
}

// PaymentStatus represents the payment axis of an appointment
type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentPaid     PaymentStatus = "paid"
	PaymentFailed   PaymentStatus = "failed"
	PaymentRefunded PaymentStatus = "refunded"
)

// Appointment represents a booking of one patient with one doctor. Status and
// PaymentStatus are independent axes; Version guards concurrent saves.
type Appointment struct {
	BaseModel
	PatientID string `gorm:"size:36;index" json:"patientId"`
	DoctorID  string `gorm:"size:36;index" json:"doctorId"`
	Date      string `gorm:"size:32" json:"date"`
	Time      string `gorm:"size:32" json:"time"`
	Reason    string `gorm:"size:500" json:"reason"`

	Status        AppointmentStatus `gorm:"size:20;index;default:'pending'" json:"status"`
	PaymentStatus PaymentStatus     `gorm:"size:20;index;default:'pending'" json:"paymentStatus"`

	Amount               float64    `json:"amount"`
	PaymentID            string     `gorm:"size:64;index" json:"paymentId,omitempty"`
	GatewayTransactionID string     `gorm:"size:64" json:"gatewayTransactionId,omitempty"`
	PaymentDate          *time.Time `json:"paymentDate,omitempty"`

	MeetingRoom  string     `gorm:"size:100" json:"meetingRoom,omitempty"`
	MeetingStart *time.Time `json:"meetingStart,omitempty"`
	MeetingEnd   *time.Time `json:"meetingEnd,omitempty"`

	RejectionReason    string     `gorm:"size:500" json:"rejectionReason,omitempty"`
	CancellationReason string     `gorm:"size:500" json:"cancellationReason,omitempty"`
	ApprovedAt         *time.Time `json:"approvedAt,omitempty"`
	CompletedAt        *time.Time `json:"completedAt,omitempty"`
	ExpiresAt          *time.Time `gorm:"index" json:"expiresAt,omitempty"`

	Version int `gorm:"not null;default:0" json:"version"`
}

// Involves reports whether userID is the patient or the doctor of the appointment.
func (a *Appointment) Involves(userID string) bool {
	return userID != "" && (a.PatientID == userID || a.DoctorID == userID)
}
