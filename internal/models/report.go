package models

// Report links an uploaded artifact to a patient and, optionally, an
// appointment. Reports are not edited after creation.
type Report struct {
	BaseModel
	PatientID     string `gorm:"size:36;index" json:"patientId"`
	DoctorID      string `gorm:"size:36;index" json:"doctorId"`
	AppointmentID string `gorm:"size:36;index" json:"appointmentId,omitempty"`
	Title         string `gorm:"size:255;not null" json:"title"`
	Description   string `gorm:"type:text" json:"description,omitempty"`
	FileName      string `gorm:"size:255;not null" json:"fileName"`
	FileType      string `gorm:"size:100" json:"fileType,omitempty"`
	FileURL       string `gorm:"size:500;not null" json:"fileUrl"`
}
