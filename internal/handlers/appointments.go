package handlers

import (
	"strings"

	"github.com/gin-gonic/gin"

	"clinic-booking-server/internal/lifecycle"
	"clinic-booking-server/internal/middleware"
	"clinic-booking-server/internal/models"
	"clinic-booking-server/internal/utils"
)

// AppointmentHandler exposes the appointment lifecycle over HTTP.
type AppointmentHandler struct {
	Lifecycle *lifecycle.Manager
}

// NewAppointmentHandler creates a new AppointmentHandler.
func NewAppointmentHandler(mgr *lifecycle.Manager) *AppointmentHandler {
	return &AppointmentHandler{Lifecycle: mgr}
}

// CreateAppointmentRequest represents the request body for creating an appointment.
type CreateAppointmentRequest struct {
	DoctorID  string `json:"doctorId" binding:"required"`
	PatientID string `json:"patientId"`
	Date      string `json:"date" binding:"required"`
	Time      string `json:"time" binding:"required"`
	Reason    string `json:"reason"`
}

// CreateAppointment books an appointment. Patients book for themselves;
// admins and doctors name the patient.
func (h *AppointmentHandler) CreateAppointment(c *gin.Context) {
	var req CreateAppointmentRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}
	actor, _ := middleware.ActorFrom(c)
	appt, err := h.Lifecycle.Create(c.Request.Context(), actor, lifecycle.CreateInput{
		PatientID: req.PatientID,
		DoctorID:  req.DoctorID,
		Date:      req.Date,
		Time:      req.Time,
		Reason:    req.Reason,
	})
	if err != nil {
		utils.FromError(c, err)
		return
	}
	utils.Created(c, "Appointment created successfully", appt)
}

// GetAppointmentsForUser lists the caller's appointments, optionally
// filtered by ?status=approved,completed.
func (h *AppointmentHandler) GetAppointmentsForUser(c *gin.Context) {
	actor, _ := middleware.ActorFrom(c)
	var statuses []models.AppointmentStatus
	if raw := c.Query("status"); raw != "" {
		for _, s := range strings.Split(raw, ",") {
			status := models.AppointmentStatus(strings.ToLower(strings.TrimSpace(s)))
			if !status.Valid() {
				utils.BadRequest(c, "unknown status "+s)
				return
			}
			statuses = append(statuses, status)
		}
	}
	appts, err := h.Lifecycle.List(c.Request.Context(), actor, statuses)
	if err != nil {
		utils.FromError(c, err)
		return
	}
	utils.Success(c, "Appointments fetched successfully", appts)
}

// GetAppointmentByID handles fetching a single appointment by its ID.
func (h *AppointmentHandler) GetAppointmentByID(c *gin.Context) {
	actor, _ := middleware.ActorFrom(c)
	appt, err := h.Lifecycle.Get(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		utils.FromError(c, err)
		return
	}
	utils.Success(c, "Appointment fetched successfully", appt)
}

// ReasonRequest carries an optional free-text reason.
type ReasonRequest struct {
	Reason string `json:"reason"`
}

func optionalReason(c *gin.Context) (string, bool) {
	var req ReasonRequest
	if c.Request.ContentLength == 0 {
		return "", true
	}
	if !utils.BindAndValidate(c, &req) {
		return "", false
	}
	return strings.TrimSpace(req.Reason), true
}

func (h *AppointmentHandler) ApproveAppointment(c *gin.Context) {
	actor, _ := middleware.ActorFrom(c)
	appt, err := h.Lifecycle.Approve(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		utils.FromError(c, err)
		return
	}
	utils.Success(c, "Appointment approved", appt)
}

func (h *AppointmentHandler) RejectAppointment(c *gin.Context) {
	reason, ok := optionalReason(c)
	if !ok {
		return
	}
	actor, _ := middleware.ActorFrom(c)
	appt, err := h.Lifecycle.Reject(c.Request.Context(), actor, c.Param("id"), reason)
	if err != nil {
		utils.FromError(c, err)
		return
	}
	utils.Success(c, "Appointment rejected", appt)
}

func (h *AppointmentHandler) CompleteAppointment(c *gin.Context) {
	actor, _ := middleware.ActorFrom(c)
	appt, err := h.Lifecycle.Complete(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		utils.FromError(c, err)
		return
	}
	utils.Success(c, "Appointment completed", appt)
}

// CancelAppointment soft-cancels. Both the POST route and DELETE route land
// here; the record is never removed.
func (h *AppointmentHandler) CancelAppointment(c *gin.Context) {
	reason, ok := optionalReason(c)
	if !ok {
		return
	}
	actor, _ := middleware.ActorFrom(c)
	appt, err := h.Lifecycle.Cancel(c.Request.Context(), actor, c.Param("id"), reason)
	if err != nil {
		utils.FromError(c, err)
		return
	}
	utils.Success(c, "Appointment cancelled", appt)
}

// RateRequest is a patient's rating of a completed appointment.
type RateRequest struct {
	Score  int    `json:"score" binding:"required,min=1,max=5"`
	Review string `json:"review" binding:"max=2000"`
}

// RateAppointment creates or overwrites the caller's rating.
func (h *AppointmentHandler) RateAppointment(c *gin.Context) {
	var req RateRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}
	actor, _ := middleware.ActorFrom(c)
	rating, err := h.Lifecycle.RateAppointment(c.Request.Context(), actor, c.Param("id"), req.Score, req.Review)
	if err != nil {
		utils.FromError(c, err)
		return
	}
	utils.Success(c, "Rating saved", rating)
}

// SweepStale runs the stale-appointment sweep on demand (admin).
func (h *AppointmentHandler) SweepStale(c *gin.Context) {
	res, err := h.Lifecycle.ExpireStale(c.Request.Context())
	if err != nil {
		utils.FromError(c, err)
		return
	}
	failed := make(map[string]string, len(res.Failures))
	for id, err := range res.Failures {
		failed[id] = err.Error()
	}
	utils.Success(c, "Sweep finished", gin.H{
		"scanned": res.Scanned, "missed": res.Missed, "expired": res.Expired, "failed": failed,
	})
}
