package utils

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"clinic-booking-server/internal/clinical"
	"clinic-booking-server/internal/lifecycle"
	"clinic-booking-server/internal/models"
	"clinic-booking-server/internal/store"
)

// ResponseData represents the structure of a standard API response.
type ResponseData struct {
	Success bool        `json:"success"`
	Status  int         `json:"status"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// Success sends a standard success response.
func Success(c *gin.Context, message string, data interface{}) {
	c.JSON(http.StatusOK, ResponseData{
		Success: true,
		Status:  http.StatusOK,
		Message: message,
		Data:    data,
	})
}

// Created sends a standard resource created response.
func Created(c *gin.Context, message string, data interface{}) {
	c.JSON(http.StatusCreated, ResponseData{
		Success: true,
		Status:  http.StatusCreated,
		Message: message,
		Data:    data,
	})
}

// Error sends a standard error response.
func Error(c *gin.Context, statusCode int, errorMessage string) {
	c.AbortWithStatusJSON(statusCode, ResponseData{
		Success: false,
		Status:  statusCode,
		Message: http.StatusText(statusCode),
		Error:   errorMessage,
	})
}

// BadRequest sends a 400 Bad Request error response.
func BadRequest(c *gin.Context, errorMessage string) {
	Error(c, http.StatusBadRequest, errorMessage)
}

// Unauthorized sends a 401 Unauthorized error response.
func Unauthorized(c *gin.Context, errorMessage string) {
	Error(c, http.StatusUnauthorized, errorMessage)
}

// Forbidden sends a 403 Forbidden error response.
func Forbidden(c *gin.Context, errorMessage string) {
	Error(c, http.StatusForbidden, errorMessage)
}

// NotFound sends a 404 Not Found error response.
func NotFound(c *gin.Context, errorMessage string) {
	Error(c, http.StatusNotFound, errorMessage)
}

// Conflict sends a 409 Conflict error response.
func Conflict(c *gin.Context, errorMessage string) {
	Error(c, http.StatusConflict, errorMessage)
}

// InternalServerError sends a 500 Internal Server Error response.
func InternalServerError(c *gin.Context, errorMessage string) {
	Error(c, http.StatusInternalServerError, errorMessage)
}

// StatusFor maps domain errors to HTTP status codes.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, lifecycle.ErrNotFound), errors.Is(err, clinical.ErrNotFound), errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, lifecycle.ErrForbidden), errors.Is(err, clinical.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, lifecycle.ErrIntegrityViolation), errors.Is(err, clinical.ErrSigned):
		return http.StatusUnprocessableEntity
	case errors.Is(err, store.ErrConflict), errors.Is(err, store.ErrDuplicate), errors.Is(err, clinical.ErrDuplicate):
		return http.StatusConflict
	case errors.Is(err, lifecycle.ErrInvalidInput), errors.Is(err, lifecycle.ErrInvalidReference),
		errors.Is(err, clinical.ErrInvalidInput), errors.Is(err, models.ErrProfileRoleMismatch):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// FromError renders err with the status StatusFor picks. Internal errors are
// not echoed to the client.
func FromError(c *gin.Context, err error) {
	status := StatusFor(err)
	_ = c.Error(err)
	if status == http.StatusInternalServerError {
		InternalServerError(c, "internal server error")
		return
	}
	Error(c, status, err.Error())
}
