package handlers

import (
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"clinic-booking-server/internal/config"
	"clinic-booking-server/internal/middleware"
	"clinic-booking-server/internal/models"
	"clinic-booking-server/internal/store"
	"clinic-booking-server/internal/utils"
)

// AuthHandler handles authentication-related requests.
type AuthHandler struct {
	Store store.Store
	Cfg   *config.Config
	Log   zerolog.Logger
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(st store.Store, cfg *config.Config, log zerolog.Logger) *AuthHandler {
	return &AuthHandler{Store: st, Cfg: cfg, Log: log}
}

// DoctorProfileRequest carries the doctor-only registration fields.
type DoctorProfileRequest struct {
	Specialization  string  `json:"specialization" binding:"required"`
	Experience      int     `json:"experience" binding:"min=0"`
	Qualification   string  `json:"qualification"`
	ConsultationFee float64 `json:"consultationFee" binding:"min=0"`
	Bio             string  `json:"bio"`
	Picture         string  `json:"picture"`
}

func (p *DoctorProfileRequest) toModel() *models.DoctorProfile {
	return &models.DoctorProfile{
		Specialization:  p.Specialization,
		Experience:      p.Experience,
		Qualification:   p.Qualification,
		ConsultationFee: p.ConsultationFee,
		Bio:             p.Bio,
		Picture:         p.Picture,
	}
}

// RegisterRequest represents the request body for user registration.
type RegisterRequest struct {
	FirstName   string                `json:"firstName" binding:"required"`
	LastName    string                `json:"lastName" binding:"required"`
	Email       string                `json:"email" binding:"required,email"`
	Password    string                `json:"password" binding:"required,min=8"`
	Role        string                `json:"role"`
	PhoneNumber string                `json:"phoneNumber"`
	Address     string                `json:"address"`
	Doctor      *DoctorProfileRequest `json:"doctor"`
}

// Register handles user registration. Patients and doctors register
// themselves; admin accounts are created from the command line.
func (h *AuthHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	role := models.RolePatient
	if req.Role != "" {
		var ok bool
		if role, ok = models.ParseRole(req.Role); !ok || role == models.RoleAdmin {
			utils.BadRequest(c, "role must be patient or doctor")
			return
		}
	}

	user := models.User{
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		Email:       req.Email,
		Role:        role,
		PhoneNumber: req.PhoneNumber,
		Address:     req.Address,
	}
	if role == models.RoleDoctor {
		if req.Doctor == nil {
			utils.BadRequest(c, "doctor registration requires a doctor profile")
			return
		}
		user.Doctor = req.Doctor.toModel()
	}
	if err := user.CheckProfile(); err != nil {
		utils.FromError(c, err)
		return
	}
	if err := user.SetPassword(req.Password); err != nil {
		utils.InternalServerError(c, "Failed to hash password")
		return
	}

	if err := h.Store.Users().Create(c.Request.Context(), &user); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			utils.Conflict(c, "User with this email already exists")
			return
		}
		utils.FromError(c, err)
		return
	}

	h.Log.Info().Str("user_id", user.ID).Str("role", string(user.Role)).Msg("user registered")
	utils.Created(c, "User registered successfully", user.Sanitize())
}

// LoginRequest represents the request body for user login.
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// LoginResponse represents the response body for successful login.
type LoginResponse struct {
	AccessToken  string               `json:"accessToken"`
	RefreshToken string               `json:"refreshToken"`
	User         models.UserSanitized `json:"user"`
}

// Login handles user login.
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	user, err := h.Store.Users().GetByEmail(c.Request.Context(), req.Email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			utils.Unauthorized(c, "Invalid email or password")
			return
		}
		utils.FromError(c, err)
		return
	}
	if !user.CheckPassword(req.Password) {
		utils.Unauthorized(c, "Invalid email or password")
		return
	}

	access, refresh, ok := h.issueTokens(c, user)
	if !ok {
		return
	}
	utils.Success(c, "Login successful", LoginResponse{
		AccessToken:  access,
		RefreshToken: refresh,
		User:         user.Sanitize(),
	})
}

// issueTokens signs a token pair, stores the refresh token and sets the
// refresh cookie.
func (h *AuthHandler) issueTokens(c *gin.Context, user *models.User) (string, string, bool) {
	access, refresh, err := utils.GenerateTokens(user, h.Cfg)
	if err != nil {
		utils.InternalServerError(c, "Failed to generate tokens")
		return "", "", false
	}
	stored := models.RefreshToken{
		UserID:    user.ID,
		Token:     refresh,
		ExpiresAt: time.Now().Add(time.Duration(h.Cfg.JWTRefreshExpirationHours) * time.Hour),
	}
	if err := h.Store.RefreshTokens().Create(c.Request.Context(), &stored); err != nil {
		utils.FromError(c, err)
		return "", "", false
	}
	h.setRefreshCookie(c, refresh, h.Cfg.JWTRefreshExpirationHours*60*60)
	return access, refresh, true
}

func (h *AuthHandler) setRefreshCookie(c *gin.Context, value string, maxAge int) {
	c.SetCookie("refresh_token", value, maxAge, "/", "", h.Cfg.Environment != "development", true)
}

// RefreshTokenRequest represents the request body for token refresh.
type RefreshTokenRequest struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
}

// RefreshTokenResponse represents the response body for successful token refresh.
type RefreshTokenResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// RefreshToken rotates a refresh token: the presented one is revoked and a
// new pair is issued.
func (h *AuthHandler) RefreshToken(c *gin.Context) {
	presented, err := c.Cookie("refresh_token")
	if err != nil || presented == "" {
		var req RefreshTokenRequest
		if !utils.BindAndValidate(c, &req) {
			return
		}
		presented = req.RefreshToken
	}

	claims, err := utils.ValidateToken(presented, h.Cfg.JWTRefreshSecret)
	if err != nil {
		utils.Unauthorized(c, "Invalid refresh token")
		return
	}

	ctx := c.Request.Context()
	stored, err := h.Store.RefreshTokens().FindByToken(ctx, presented)
	if err != nil || stored.UserID != claims.UserID || !stored.Usable(time.Now()) {
		utils.Unauthorized(c, "Refresh token not found, expired, or revoked")
		return
	}
	user, err := h.Store.Users().GetByID(ctx, claims.UserID)
	if err != nil {
		utils.Unauthorized(c, "Account no longer exists")
		return
	}
	if err := h.Store.RefreshTokens().Revoke(ctx, stored.ID); err != nil {
		utils.FromError(c, err)
		return
	}

	access, refresh, ok := h.issueTokens(c, user)
	if !ok {
		return
	}
	utils.Success(c, "Access token refreshed successfully", RefreshTokenResponse{
		AccessToken:  access,
		RefreshToken: refresh,
	})
}

// LogoutRequest represents the request body for user logout.
type LogoutRequest struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
}

// Logout revokes the refresh token. Unknown tokens are not an error.
func (h *AuthHandler) Logout(c *gin.Context) {
	var req LogoutRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	ctx := c.Request.Context()
	stored, err := h.Store.RefreshTokens().FindByToken(ctx, req.RefreshToken)
	switch {
	case errors.Is(err, store.ErrNotFound):
	case err != nil:
		utils.FromError(c, err)
		return
	case !stored.IsRevoked:
		if err := h.Store.RefreshTokens().Revoke(ctx, stored.ID); err != nil {
			utils.FromError(c, err)
			return
		}
	}

	h.setRefreshCookie(c, "", -1)
	utils.Success(c, "Logout successful", nil)
}

// GetProfile handles fetching the currently authenticated user's profile.
func (h *AuthHandler) GetProfile(c *gin.Context) {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		utils.Unauthorized(c, "User not authenticated")
		return
	}
	user, err := h.Store.Users().GetByID(c.Request.Context(), actor.ID)
	if err != nil {
		utils.FromError(c, err)
		return
	}
	utils.Success(c, "Profile fetched successfully", user.Sanitize())
}

// UpdateProfileRequest represents the request body for updating user profile.
type UpdateProfileRequest struct {
	FirstName    string                `json:"firstName"`
	LastName     string                `json:"lastName"`
	PhoneNumber  string                `json:"phoneNumber"`
	Address      string                `json:"address"`
	ProfileImage string                `json:"profileImage"`
	Doctor       *DoctorProfileRequest `json:"doctor"`
}

// UpdateProfile updates the caller's own profile. Doctor fields are only
// accepted from doctors.
func (h *AuthHandler) UpdateProfile(c *gin.Context) {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		utils.Unauthorized(c, "User not authenticated")
		return
	}
	var req UpdateProfileRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	ctx := c.Request.Context()
	user, err := h.Store.Users().GetByID(ctx, actor.ID)
	if err != nil {
		utils.FromError(c, err)
		return
	}
	if req.FirstName != "" {
		user.FirstName = req.FirstName
	}
	if req.LastName != "" {
		user.LastName = req.LastName
	}
	if req.PhoneNumber != "" {
		user.PhoneNumber = req.PhoneNumber
	}
	if req.Address != "" {
		user.Address = req.Address
	}
	if req.ProfileImage != "" {
		user.ProfileImage = req.ProfileImage
	}
	if req.Doctor != nil {
		if user.Role != models.RoleDoctor {
			utils.BadRequest(c, "only doctors have a doctor profile")
			return
		}
		user.Doctor = req.Doctor.toModel()
	}

	if err := h.Store.Users().Update(ctx, user); err != nil {
		utils.FromError(c, err)
		return
	}
	utils.Success(c, "Profile updated successfully", user.Sanitize())
}
