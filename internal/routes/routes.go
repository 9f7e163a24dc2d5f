package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"clinic-booking-server/internal/clinical"
	"clinic-booking-server/internal/config"
	"clinic-booking-server/internal/handlers"
	"clinic-booking-server/internal/lifecycle"
	"clinic-booking-server/internal/middleware"
	"clinic-booking-server/internal/models"
	"clinic-booking-server/internal/payment"
	"clinic-booking-server/internal/store"
)

// Deps are the services the routes are built on.
type Deps struct {
	Store     store.Store
	Lifecycle *lifecycle.Manager
	Clinical  *clinical.Service
	Gateway   *payment.Gateway
	Config    *config.Config
	Log       zerolog.Logger
}

// SetupRoutes configures the application routes.
func SetupRoutes(router *gin.Engine, d Deps) {
	authHandler := handlers.NewAuthHandler(d.Store, d.Config, d.Log)
	userHandler := handlers.NewUserHandler(d.Store, d.Log)
	appointmentHandler := handlers.NewAppointmentHandler(d.Lifecycle)
	paymentHandler := handlers.NewPaymentHandler(d.Lifecycle, d.Gateway, d.Log)
	medicalRecordHandler := handlers.NewMedicalRecordHandler(d.Clinical)
	notificationHandler := handlers.NewNotificationHandler(d.Store)

	adminOnly := middleware.RoleAuthMiddleware(models.RoleAdmin)
	doctorOnly := middleware.RoleAuthMiddleware(models.RoleDoctor)

	// Public routes (no authentication required)
	public := router.Group("/api/v1")
	{
		authRoutes := public.Group("/auth")
		{
			authRoutes.POST("/register", authHandler.Register)
			authRoutes.POST("/login", authHandler.Login)
			authRoutes.POST("/refresh-token", authHandler.RefreshToken)
		}

		public.GET("/doctors", userHandler.GetDoctors)
		public.GET("/doctors/:id", userHandler.GetDoctor)

		// The gateway redirects the browser here with either method.
		public.GET("/payments/callback", paymentHandler.Callback)
		public.POST("/payments/callback", paymentHandler.Callback)
	}

	private := router.Group("/api/v1")
	private.Use(middleware.AuthMiddleware(d.Config.JWTSecret))
	{
		authRoutesPrivate := private.Group("/auth")
		{
			authRoutesPrivate.POST("/logout", authHandler.Logout)
			authRoutesPrivate.GET("/profile", authHandler.GetProfile)
			authRoutesPrivate.PUT("/profile", authHandler.UpdateProfile)
		}

		userRoutes := private.Group("/users")
		{
			userRoutes.GET("/doctor-patients", middleware.RoleAuthMiddleware(models.RoleDoctor, models.RoleAdmin), userHandler.GetDoctorPatients)

			adminRoutes := userRoutes.Group("")
			adminRoutes.Use(adminOnly)
			{
				adminRoutes.POST("", userHandler.CreateUser)
				adminRoutes.GET("", userHandler.GetUsers)
				adminRoutes.GET("/:id", userHandler.GetUserByID)
				adminRoutes.PUT("/:id", userHandler.UpdateUser)
				adminRoutes.DELETE("/:id", userHandler.DeleteUser)
			}
		}

		appointmentRoutes := private.Group("/appointments")
		{
			// Ownership and role rules live in the lifecycle.
			appointmentRoutes.POST("", appointmentHandler.CreateAppointment)
			appointmentRoutes.GET("", appointmentHandler.GetAppointmentsForUser)
			appointmentRoutes.GET("/:id", appointmentHandler.GetAppointmentByID)
			appointmentRoutes.POST("/:id/approve", appointmentHandler.ApproveAppointment)
			appointmentRoutes.POST("/:id/reject", appointmentHandler.RejectAppointment)
			appointmentRoutes.POST("/:id/complete", appointmentHandler.CompleteAppointment)
			appointmentRoutes.POST("/:id/cancel", appointmentHandler.CancelAppointment)
			appointmentRoutes.DELETE("/:id", appointmentHandler.CancelAppointment)
			appointmentRoutes.POST("/:id/rating", appointmentHandler.RateAppointment)

			appointmentRoutes.POST("/:id/payment", paymentHandler.InitiatePayment)
			appointmentRoutes.POST("/:id/payment/confirm", adminOnly, paymentHandler.ConfirmPayment)
			appointmentRoutes.POST("/:id/payment/refund", adminOnly, paymentHandler.RefundPayment)

			appointmentRoutes.POST("/:id/soap-note", doctorOnly, medicalRecordHandler.CreateSOAPNote)
			appointmentRoutes.GET("/:id/soap-note", medicalRecordHandler.GetSOAPNoteForAppointment)
		}

		soapRoutes := private.Group("/soap-notes")
		{
			soapRoutes.GET("/patient/:patientId", medicalRecordHandler.GetSOAPNotesForPatient)
			soapRoutes.GET("/:id", medicalRecordHandler.GetSOAPNote)
			soapRoutes.PUT("/:id", doctorOnly, medicalRecordHandler.UpdateSOAPNote)
			soapRoutes.POST("/:id/sign", doctorOnly, medicalRecordHandler.SignSOAPNote)
			soapRoutes.DELETE("/:id", middleware.RoleAuthMiddleware(models.RoleDoctor, models.RoleAdmin), medicalRecordHandler.DeleteSOAPNote)
		}

		reportRoutes := private.Group("/reports")
		{
			reportRoutes.POST("", doctorOnly, medicalRecordHandler.CreateReport)
			reportRoutes.GET("", medicalRecordHandler.GetReports)
			reportRoutes.GET("/:id", medicalRecordHandler.GetReportByID)
		}

		notificationRoutes := private.Group("/notifications")
		{
			notificationRoutes.GET("", notificationHandler.GetNotifications)
			notificationRoutes.PATCH("/read-all", notificationHandler.MarkAllAsRead)
			notificationRoutes.PATCH("/:id/read", notificationHandler.MarkNotificationAsRead)
		}

		adminGroup := private.Group("/admin")
		adminGroup.Use(adminOnly)
		{
			adminGroup.GET("/stats", userHandler.GetStats)
			adminGroup.POST("/sweep", appointmentHandler.SweepStale)
		}
	}

	// Simple health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "UP"})
	})
}
