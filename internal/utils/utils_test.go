package utils

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clinic-booking-server/internal/clinical"
	"clinic-booking-server/internal/config"
	"clinic-booking-server/internal/lifecycle"
	"clinic-booking-server/internal/models"
	"clinic-booking-server/internal/store"
)

func TestTokensRoundTrip(t *testing.T) {
	cfg := &config.Config{JWTSecret: "a", JWTRefreshSecret: "b", JWTExpirationMinutes: 5, JWTRefreshExpirationHours: 1}
	user := &models.User{BaseModel: models.BaseModel{ID: "u1"}, FirstName: "Ada", Role: models.RoleAdmin}

	access, refresh, err := GenerateTokens(user, cfg)
	require.NoError(t, err)
	assert.NotEqual(t, access, refresh)

	claims, err := ValidateToken(access, cfg.JWTSecret)
	require.NoError(t, err)
	assert.Equal(t, models.Actor{ID: "u1", Role: models.RoleAdmin, Name: "Ada"}, claims.Actor())

	_, err = ValidateToken(access, cfg.JWTRefreshSecret)
	assert.Error(t, err)
	claims, err = ValidateToken(refresh, cfg.JWTRefreshSecret)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.Subject)
	assert.NotEmpty(t, claims.ID)
}

func TestExpiredTokenRejected(t *testing.T) {
	cfg := &config.Config{JWTSecret: "a", JWTRefreshSecret: "b", JWTExpirationMinutes: -1, JWTRefreshExpirationHours: 1}
	access, _, err := GenerateTokens(&models.User{BaseModel: models.BaseModel{ID: "u1"}, Role: models.RolePatient}, cfg)
	require.NoError(t, err)
	_, err = ValidateToken(access, cfg.JWTSecret)
	assert.Error(t, err)
}

func TestStatusFor(t *testing.T) {
	cases := map[error]int{
		lifecycle.ErrNotFound:                                  http.StatusNotFound,
		fmt.Errorf("wrap: %w", store.ErrNotFound):              http.StatusNotFound,
		lifecycle.ErrForbidden:                                 http.StatusForbidden,
		clinical.ErrForbidden:                                  http.StatusForbidden,
		lifecycle.ErrInvalidTransition:                         http.StatusUnprocessableEntity,
		lifecycle.ErrAmountMismatch:                            http.StatusUnprocessableEntity,
		clinical.ErrSigned:                                     http.StatusUnprocessableEntity,
		store.ErrConflict:                                      http.StatusConflict,
		clinical.ErrDuplicate:                                  http.StatusConflict,
		lifecycle.ErrInvalidReference:                          http.StatusBadRequest,
		fmt.Errorf("%w: bad date", lifecycle.ErrInvalidInput): http.StatusBadRequest,
		errors.New("disk on fire"):                             http.StatusInternalServerError,
	}
	for err, want := range cases {
		assert.Equal(t, want, StatusFor(err), err.Error())
	}
}

type sample struct {
	Email string `json:"email" validate:"required,email"`
	Score int    `json:"score" validate:"min=1,max=5"`
}

func TestValidate(t *testing.T) {
	assert.NoError(t, Validate(sample{Email: "a@b.co", Score: 3}))
	err := Validate(sample{Email: "nope", Score: 9})
	require.Error(t, err)
	msg := FormatValidationError(err)
	assert.Contains(t, msg, "Email must satisfy email")
	assert.Contains(t, msg, "Score must satisfy max=5")
}
