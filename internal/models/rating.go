package models

// Rating is a patient's score for a completed appointment. There is at most
// one per appointment; resubmission overwrites Score and Review.
type Rating struct {
	BaseModel
	AppointmentID string `gorm:"size:36;uniqueIndex" json:"appointmentId"`
	PatientID     string `gorm:"size:36;index" json:"patientId"`
	DoctorID      string `gorm:"size:36;index" json:"doctorId"`
	Score         int    `json:"score"`
	Review        string `gorm:"type:text" json:"review,omitempty"`
}
