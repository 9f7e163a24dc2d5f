package models

// NotificationKind identifies the event a notification was created for.
type NotificationKind string

const (
	KindAppointmentApproved  NotificationKind = "appointment_approved"
	KindAppointmentRejected  NotificationKind = "appointment_rejected"
	KindAppointmentCompleted NotificationKind = "appointment_completed"
	KindAppointmentCancelled NotificationKind = "appointment_cancelled"
	KindAppointmentMissed    NotificationKind = "appointment_missed"
	KindPaymentConfirmed     NotificationKind = "payment_confirmed"
	KindAdmin                NotificationKind = "admin"
)

// Notification is a user-scoped message. Only Read changes after creation.
type Notification struct {
	BaseModel
	UserID        string           `gorm:"size:36;index" json:"userId"`
	Kind          NotificationKind `gorm:"size:40" json:"kind"`
	Title         string           `gorm:"size:255" json:"title"`
	Message       string           `gorm:"type:text" json:"message"`
	AppointmentID string           `gorm:"size:36" json:"appointmentId,omitempty"`
	Read          bool             `gorm:"default:false;index" json:"read"`
}
