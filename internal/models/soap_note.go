package models

import (
	"time"

	"gorm.io/datatypes"
)

// SOAPNoteStatus is draft until the authoring doctor signs the note.
type SOAPNoteStatus string

const (
	SOAPDraft  SOAPNoteStatus = "draft"
	SOAPSigned SOAPNoteStatus = "signed"
)

// SOAPNote is the clinical documentation of one appointment.
type SOAPNote struct {
	BaseModel
	AppointmentID string `gorm:"size:36;uniqueIndex" json:"appointmentId"`
	PatientID     string `gorm:"size:36;index" json:"patientId"`
	DoctorID      string `gorm:"size:36;index" json:"doctorId"`

	Subjective string `gorm:"type:text;not null" json:"subjective"`
	Objective  string `gorm:"type:text;not null" json:"objective"`
	Assessment string `gorm:"type:text;not null" json:"assessment"`
	Plan       string `gorm:"type:text;not null" json:"plan"`

	Vitals      datatypes.JSONMap `json:"vitals,omitempty"`
	Diagnoses   datatypes.JSON    `json:"diagnoses,omitempty"`
	Medications datatypes.JSON    `json:"medications,omitempty"`
	FollowUp    string            `gorm:"size:255" json:"followUp,omitempty"`

	Status   SOAPNoteStatus `gorm:"size:10;default:'draft'" json:"status"`
	SignedAt *time.Time     `json:"signedAt,omitempty"`
}

// IsSigned reports whether the note is locked.
func (n *SOAPNote) IsSigned() bool {
	return n.Status == SOAPSigned
}
