package models

import (
	"errors"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// Role enum
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleDoctor  Role = "doctor"
	RolePatient Role = "patient"
)

// ParseRole normalizes a role name as sent by clients ("DOCTOR", "Doctor", ...).
func ParseRole(s string) (Role, bool) {
	switch Role(strings.ToLower(strings.TrimSpace(s))) {
	case RoleAdmin:
		return RoleAdmin, true
	case RoleDoctor:
		return RoleDoctor, true
	case RolePatient:
		return RolePatient, true
	}
	return "", false
}

// ErrProfileRoleMismatch is returned when a doctor profile is attached to a
// non-doctor account or a doctor has none.
var ErrProfileRoleMismatch = errors.New("doctor profile is only valid for doctor accounts")

// User represents a user in the system. The doctor-only attributes live in
// DoctorProfile, which is present exactly when Role is RoleDoctor.
type User struct {
	BaseModel
	Email        string         `gorm:"uniqueIndex;size:255;not null" json:"email"`
	Password     string         `gorm:"size:255;not null" json:"-"`
	FirstName    string         `gorm:"size:100" json:"firstName"`
	LastName     string         `gorm:"size:100" json:"lastName"`
	Role         Role           `gorm:"size:20;index;default:'patient'" json:"role"`
	PhoneNumber  string         `gorm:"size:40" json:"phoneNumber,omitempty"`
	Address      string         `gorm:"size:255" json:"address,omitempty"`
	ProfileImage string         `gorm:"size:255" json:"profileImage,omitempty"`
	Doctor       *DoctorProfile `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"doctor,omitempty"`
}

// DoctorProfile holds the attributes only doctors carry.
type DoctorProfile struct {
	UserID          string  `gorm:"primaryKey;size:36" json:"-"`
	Specialization  string  `gorm:"size:100;index" json:"specialization"`
	Experience      int     `json:"experience"`
	Qualification   string  `gorm:"size:255" json:"qualification"`
	ConsultationFee float64 `json:"consultationFee"`
	Bio             string  `gorm:"type:text" json:"bio,omitempty"`
	Picture         string  `gorm:"size:255" json:"picture,omitempty"`
}

// UserSanitized represents the user data that is safe to send in API responses.
type UserSanitized struct {
	ID           string         `json:"id"`
	Email        string         `json:"email"`
	FirstName    string         `json:"firstName"`
	LastName     string         `json:"lastName"`
	Role         Role           `json:"role"`
	PhoneNumber  string         `json:"phoneNumber,omitempty"`
	Address      string         `json:"address,omitempty"`
	ProfileImage string         `json:"profileImage,omitempty"`
	Doctor       *DoctorProfile `json:"doctor,omitempty"`
	CreatedAt    time.Time      `json:"createdAt"`
	UpdatedAt    time.Time      `json:"updatedAt"`
}

// SetPassword hashes a password and sets it on the user
func (u *User) SetPassword(password string) error {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.Password = string(hashedPassword)
	return nil
}

// CheckPassword compares a password with the user's hashed password
func (u *User) CheckPassword(password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(password)) == nil
}

// FullName joins first and last name.
func (u *User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// IsDoctor reports whether the account is a doctor with a profile.
func (u *User) IsDoctor() bool {
	return u.Role == RoleDoctor && u.Doctor != nil
}

// ConsultationFee returns the doctor's fee; ok is false for non-doctors and
// for doctors who have not set one.
func (u *User) ConsultationFee() (fee float64, ok bool) {
	if !u.IsDoctor() || u.Doctor.ConsultationFee <= 0 {
		return 0, false
	}
	return u.Doctor.ConsultationFee, true
}

// CheckProfile enforces that only doctors carry a DoctorProfile.
func (u *User) CheckProfile() error {
	if (u.Role == RoleDoctor) != (u.Doctor != nil) {
		return ErrProfileRoleMismatch
	}
	return nil
}

// Sanitize creates a UserSanitized struct from a User model, excluding sensitive data.
func (u *User) Sanitize() UserSanitized {
	return UserSanitized{
		ID:           u.ID,
		Email:        u.Email,
		FirstName:    u.FirstName,
		LastName:     u.LastName,
		Role:         u.Role,
		PhoneNumber:  u.PhoneNumber,
		Address:      u.Address,
		ProfileImage: u.ProfileImage,
		Doctor:       u.Doctor,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}
