package handlers

import (
	"errors"
	"math"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"clinic-booking-server/internal/middleware"
	"clinic-booking-server/internal/models"
	"clinic-booking-server/internal/store"
	"clinic-booking-server/internal/utils"
)

// UserHandler handles user-related requests (typically admin operations).
type UserHandler struct {
	Store store.Store
	Log   zerolog.Logger
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(st store.Store, log zerolog.Logger) *UserHandler {
	return &UserHandler{Store: st, Log: log}
}

// CreateUserRequest represents the request body for creating a user by an admin.
type CreateUserRequest struct {
	FirstName string                `json:"firstName" binding:"required"`
	LastName  string                `json:"lastName" binding:"required"`
	Email     string                `json:"email" binding:"required,email"`
	Password  string                `json:"password" binding:"required,min=8"`
	Role      string                `json:"role" binding:"required"`
	Doctor    *DoctorProfileRequest `json:"doctor"`
}

// CreateUser handles creating a new user (admin).
func (h *UserHandler) CreateUser(c *gin.Context) {
	var req CreateUserRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}
	role, ok := models.ParseRole(req.Role)
	if !ok {
		utils.BadRequest(c, "role must be admin, doctor or patient")
		return
	}

	user := models.User{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Role:      role,
	}
	if req.Doctor != nil {
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

	utils.Created(c, "User created successfully", user.Sanitize())
}

func sanitizeAll(users []models.User) []models.UserSanitized {
	out := make([]models.UserSanitized, len(users))
	for i := range users {
		out[i] = users[i].Sanitize()
	}
	return out
}

// GetUsers lists users, optionally filtered by ?role= and ?q= (admin).
func (h *UserHandler) GetUsers(c *gin.Context) {
	filter := store.UserFilter{Query: c.Query("q")}
	if r := c.Query("role"); r != "" {
		role, ok := models.ParseRole(r)
		if !ok {
			utils.BadRequest(c, "unknown role "+r)
			return
		}
		filter.Role = role
	}
	users, err := h.Store.Users().List(c.Request.Context(), filter)
	if err != nil {
		utils.FromError(c, err)
		return
	}
	utils.Success(c, "Users fetched successfully", sanitizeAll(users))
}

// GetUserByID handles fetching a single user by ID (admin).
func (h *UserHandler) GetUserByID(c *gin.Context) {
	user, err := h.Store.Users().GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		utils.FromError(c, err)
		return
	}
	utils.Success(c, "User fetched successfully", user.Sanitize())
}

// UpdateUserRequest represents the request body for updating a user by an admin.
type UpdateUserRequest struct {
	FirstName string                `json:"firstName"`
	LastName  string                `json:"lastName"`
	Email     string                `json:"email" binding:"omitempty,email"`
	Role      string                `json:"role"`
	Doctor    *DoctorProfileRequest `json:"doctor"`
}

// UpdateUser updates a user by ID (admin). Changing a role to doctor needs a
// doctor profile; changing it away from doctor drops the profile.
func (h *UserHandler) UpdateUser(c *gin.Context) {
	var req UpdateUserRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	ctx := c.Request.Context()
	user, err := h.Store.Users().GetByID(ctx, c.Param("id"))
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
	if req.Email != "" {
		user.Email = req.Email
	}
	if req.Role != "" {
		role, ok := models.ParseRole(req.Role)
		if !ok {
			utils.BadRequest(c, "role must be admin, doctor or patient")
			return
		}
		user.Role = role
		if role != models.RoleDoctor {
			user.Doctor = nil
		}
	}
	if req.Doctor != nil {
		user.Doctor = req.Doctor.toModel()
	}
	if err := user.CheckProfile(); err != nil {
		utils.FromError(c, err)
		return
	}

	if err := h.Store.Users().Update(ctx, user); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			utils.Conflict(c, "New email is already in use")
			return
		}
		utils.FromError(c, err)
		return
	}
	utils.Success(c, "User updated successfully", user.Sanitize())
}

// DeleteUser deletes a user together with their appointments, ratings,
// reports, SOAP notes and notifications (admin).
func (h *UserHandler) DeleteUser(c *gin.Context) {
	actor, _ := middleware.ActorFrom(c)
	id := c.Param("id")
	if id == actor.ID {
		utils.BadRequest(c, "Admins cannot delete their own account")
		return
	}
	if err := h.Store.Users().Delete(c.Request.Context(), id); err != nil {
		utils.FromError(c, err)
		return
	}
	h.Log.Info().Str("user_id", id).Str("by", actor.ID).Msg("user deleted")
	utils.Success(c, "User deleted successfully", nil)
}

// DoctorListing is a doctor as shown in the public directory.
type DoctorListing struct {
	models.UserSanitized
	AverageRating float64 `json:"averageRating"`
	RatingCount   int64   `json:"ratingCount"`
}

func (h *UserHandler) listing(c *gin.Context, doctor *models.User) (DoctorListing, error) {
	avg, count, err := h.Store.Ratings().AverageForDoctor(c.Request.Context(), doctor.ID)
	if err != nil {
		return DoctorListing{}, err
	}
	return DoctorListing{
		UserSanitized: doctor.Sanitize(),
		AverageRating: math.Round(avg*10) / 10,
		RatingCount:   count,
	}, nil
}

// GetDoctors searches the doctor directory by ?specialization= and ?q=.
func (h *UserHandler) GetDoctors(c *gin.Context) {
	doctors, err := h.Store.Users().List(c.Request.Context(), store.UserFilter{
		Role:           models.RoleDoctor,
		Specialization: c.Query("specialization"),
		Query:          c.Query("q"),
	})
	if err != nil {
		utils.FromError(c, err)
		return
	}
	out := make([]DoctorListing, 0, len(doctors))
	for i := range doctors {
		l, err := h.listing(c, &doctors[i])
		if err != nil {
			utils.FromError(c, err)
			return
		}
		out = append(out, l)
	}
	utils.Success(c, "Doctors fetched successfully", out)
}

// GetDoctor returns one doctor with their reviews.
func (h *UserHandler) GetDoctor(c *gin.Context) {
	ctx := c.Request.Context()
	doctor, err := h.Store.Users().GetByID(ctx, c.Param("id"))
	if err != nil {
		utils.FromError(c, err)
		return
	}
	if doctor.Role != models.RoleDoctor {
		utils.NotFound(c, "Doctor not found")
		return
	}
	l, err := h.listing(c, doctor)
	if err != nil {
		utils.FromError(c, err)
		return
	}
	ratings, err := h.Store.Ratings().ListByDoctor(ctx, doctor.ID)
	if err != nil {
		utils.FromError(c, err)
		return
	}
	utils.Success(c, "Doctor fetched successfully", gin.H{"doctor": l, "ratings": ratings})
}

// GetDoctorPatients lists patients for doctors and admins.
func (h *UserHandler) GetDoctorPatients(c *gin.Context) {
	patients, err := h.Store.Users().List(c.Request.Context(), store.UserFilter{Role: models.RolePatient, Query: c.Query("q")})
	if err != nil {
		utils.FromError(c, err)
		return
	}
	utils.Success(c, "Patients fetched successfully", sanitizeAll(patients))
}

// GetStats returns appointment counts and revenue for the admin dashboard.
func (h *UserHandler) GetStats(c *gin.Context) {
	ctx := c.Request.Context()
	stats, err := h.Store.Appointments().Stats(ctx)
	if err != nil {
		utils.FromError(c, err)
		return
	}
	counts := map[models.Role]int{}
	for _, role := range []models.Role{models.RoleAdmin, models.RoleDoctor, models.RolePatient} {
		users, err := h.Store.Users().List(ctx, store.UserFilter{Role: role})
		if err != nil {
			utils.FromError(c, err)
			return
		}
		counts[role] = len(users)
	}
	utils.Success(c, "Stats fetched successfully", gin.H{"appointments": stats, "users": counts})
}
