package handlers

import (
	"github.com/gin-gonic/gin"
	"gorm.io/datatypes"

	"clinic-booking-server/internal/clinical"
	"clinic-booking-server/internal/middleware"
	"clinic-booking-server/internal/store"
	"clinic-booking-server/internal/utils"
)

// MedicalRecordHandler serves SOAP notes and issued reports.
type MedicalRecordHandler struct {
	Clinical *clinical.Service
}

// NewMedicalRecordHandler creates a new MedicalRecordHandler.
func NewMedicalRecordHandler(svc *clinical.Service) *MedicalRecordHandler {
	return &MedicalRecordHandler{Clinical: svc}
}

// SOAPNoteRequest represents the request body for creating or editing a note.
type SOAPNoteRequest struct {
	Subjective  string                 `json:"subjective"`
	Objective   string                 `json:"objective"`
	Assessment  string                 `json:"assessment"`
	Plan        string                 `json:"plan"`
	Vitals      map[string]interface{} `json:"vitals"`
	Diagnoses   datatypes.JSON         `json:"diagnoses"`
	Medications datatypes.JSON         `json:"medications"`
	FollowUp    string                 `json:"followUp"`
}

func (r SOAPNoteRequest) input() clinical.NoteInput {
	return clinical.NoteInput{
		Subjective:  r.Subjective,
		Objective:   r.Objective,
		Assessment:  r.Assessment,
		Plan:        r.Plan,
		Vitals:      r.Vitals,
		Diagnoses:   r.Diagnoses,
		Medications: r.Medications,
		FollowUp:    r.FollowUp,
	}
}

// CreateSOAPNote starts the note of appointment :id. Only the assigned doctor.
func (h *MedicalRecordHandler) CreateSOAPNote(c *gin.Context) {
	var req SOAPNoteRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}
	actor, _ := middleware.ActorFrom(c)
	note, err := h.Clinical.CreateNote(c.Request.Context(), actor, c.Param("id"), req.input())
	if err != nil {
		utils.FromError(c, err)
		return
	}
	utils.Created(c, "SOAP note created", note)
}

func (h *MedicalRecordHandler) GetSOAPNoteForAppointment(c *gin.Context) {
	actor, _ := middleware.ActorFrom(c)
	note, err := h.Clinical.NoteForAppointment(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		utils.FromError(c, err)
		return
	}
	utils.Success(c, "SOAP note fetched", note)
}

func (h *MedicalRecordHandler) GetSOAPNote(c *gin.Context) {
	actor, _ := middleware.ActorFrom(c)
	note, err := h.Clinical.GetNote(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		utils.FromError(c, err)
		return
	}
	utils.Success(c, "SOAP note fetched", note)
}

// UpdateSOAPNote replaces the contents of a draft note.
func (h *MedicalRecordHandler) UpdateSOAPNote(c *gin.Context) {
	var req SOAPNoteRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}
	actor, _ := middleware.ActorFrom(c)
	note, err := h.Clinical.UpdateNote(c.Request.Context(), actor, c.Param("id"), req.input())
	if err != nil {
		utils.FromError(c, err)
		return
	}
	utils.Success(c, "SOAP note updated", note)
}

// SignSOAPNote finalizes a note. Signed notes are read-only.
func (h *MedicalRecordHandler) SignSOAPNote(c *gin.Context) {
	actor, _ := middleware.ActorFrom(c)
	note, err := h.Clinical.SignNote(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		utils.FromError(c, err)
		return
	}
	utils.Success(c, "SOAP note signed", note)
}

func (h *MedicalRecordHandler) DeleteSOAPNote(c *gin.Context) {
	actor, _ := middleware.ActorFrom(c)
	if err := h.Clinical.DeleteNote(c.Request.Context(), actor, c.Param("id")); err != nil {
		utils.FromError(c, err)
		return
	}
	utils.Success(c, "SOAP note deleted", nil)
}

// GetSOAPNotesForPatient lists the notes of :patientId visible to the caller.
func (h *MedicalRecordHandler) GetSOAPNotesForPatient(c *gin.Context) {
	actor, _ := middleware.ActorFrom(c)
	notes, err := h.Clinical.NotesForPatient(c.Request.Context(), actor, c.Param("patientId"))
	if err != nil {
		utils.FromError(c, err)
		return
	}
	utils.Success(c, "SOAP notes fetched", notes)
}

// CreateReportRequest represents the request body for issuing a report.
// The file itself is hosted elsewhere; only its URL is stored.
type CreateReportRequest struct {
	PatientID     string `json:"patientId" binding:"required"`
	AppointmentID string `json:"appointmentId"`
	Title         string `json:"title" binding:"required"`
	Description   string `json:"description"`
	FileName      string `json:"fileName"`
	FileType      string `json:"fileType"`
	FileURL       string `json:"fileUrl" binding:"required,url"`
}

func (h *MedicalRecordHandler) CreateReport(c *gin.Context) {
	var req CreateReportRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}
	actor, _ := middleware.ActorFrom(c)
	report, err := h.Clinical.CreateReport(c.Request.Context(), actor, clinical.ReportInput{
		PatientID:     req.PatientID,
		AppointmentID: req.AppointmentID,
		Title:         req.Title,
		Description:   req.Description,
		FileName:      req.FileName,
		FileType:      req.FileType,
		FileURL:       req.FileURL,
	})
	if err != nil {
		utils.FromError(c, err)
		return
	}
	utils.Created(c, "Report created", report)
}

// GetReports lists reports; ?patientId= and ?appointmentId= narrow the result.
func (h *MedicalRecordHandler) GetReports(c *gin.Context) {
	actor, _ := middleware.ActorFrom(c)
	reports, err := h.Clinical.ListReports(c.Request.Context(), actor, store.ReportFilter{
		PatientID:     c.Query("patientId"),
		AppointmentID: c.Query("appointmentId"),
	})
	if err != nil {
		utils.FromError(c, err)
		return
	}
	utils.Success(c, "Reports fetched", reports)
}

func (h *MedicalRecordHandler) GetReportByID(c *gin.Context) {
	actor, _ := middleware.ActorFrom(c)
	report, err := h.Clinical.GetReport(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		utils.FromError(c, err)
		return
	}
	utils.Success(c, "Report fetched", report)
}
