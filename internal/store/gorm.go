package store

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"clinic-booking-server/internal/models"
)

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	DSN string
}

// Open connects to MySQL and migrates every model.
func Open(config DatabaseConfig) (*gorm.DB, error) {
	db, err := gorm.Open(mysql.Open(config.DSN), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

// Migrate runs AutoMigrate over all models.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(models.All()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}

// GormStore implements Store on top of a *gorm.DB.
type GormStore struct {
	DB *gorm.DB
}

// NewGormStore wraps db.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{DB: db}
}

var _ Store = (*GormStore)(nil)

func (s *GormStore) Users() UserRepository                 { return gormUsers{s.DB} }
func (s *GormStore) Appointments() AppointmentRepository   { return gormAppointments{s.DB} }
func (s *GormStore) Ratings() RatingRepository             { return gormRatings{s.DB} }
func (s *GormStore) SOAPNotes() SOAPNoteRepository         { return gormSOAPNotes{s.DB} }
func (s *GormStore) Reports() ReportRepository             { return gormReports{s.DB} }
func (s *GormStore) Notifications() NotificationRepository { return gormNotifications{s.DB} }
func (s *GormStore) RefreshTokens() RefreshTokenRepository { return gormRefreshTokens{s.DB} }

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return ErrDuplicate
	}
	return err
}

// --- users ---

type gormUsers struct{ db *gorm.DB }

func (r gormUsers) Create(ctx context.Context, user *models.User) error {
	return translate(r.db.WithContext(ctx).Create(user).Error)
}

func (r gormUsers) GetByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Preload("Doctor").First(&user, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

func (r gormUsers) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Preload("Doctor").Where("email = ?", email).First(&user).Error; err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

func (r gormUsers) Update(ctx context.Context, user *models.User) error {
	return translate(r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if user.Doctor == nil {
			if err := tx.Where("user_id = ?", user.ID).Delete(&models.DoctorProfile{}).Error; err != nil {
				return err
			}
		} else {
			user.Doctor.UserID = user.ID
		}
		return tx.Session(&gorm.Session{FullSaveAssociations: true}).Save(user).Error
	}))
}

func (r gormUsers) List(ctx context.Context, filter UserFilter) ([]models.User, error) {
	q := r.db.WithContext(ctx).Preload("Doctor").Order("users.first_name asc")
	if filter.Role != "" {
		q = q.Where("users.role = ?", filter.Role)
	}
	if filter.Specialization != "" {
		q = q.Joins("JOIN doctor_profiles ON doctor_profiles.user_id = users.id").
			Where("doctor_profiles.specialization = ?", filter.Specialization)
	}
	if filter.Query != "" {
		like := "%" + filter.Query + "%"
		q = q.Where("users.first_name LIKE ? OR users.last_name LIKE ? OR users.email LIKE ?", like, like, like)
	}
	var users []models.User
	if err := q.Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

func (r gormUsers) Delete(ctx context.Context, id string) error {
	return translate(r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Delete(&models.User{}, "id = ?", id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		owned := []interface{}{&models.Appointment{}, &models.Rating{}, &models.Report{}, &models.SOAPNote{}}
		for _, m := range owned {
			if err := tx.Where("patient_id = ? OR doctor_id = ?", id, id).Delete(m).Error; err != nil {
				return err
			}
		}
		if err := tx.Where("user_id = ?", id).Delete(&models.Notification{}).Error; err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", id).Delete(&models.RefreshToken{}).Error; err != nil {
			return err
		}
		return tx.Where("user_id = ?", id).Delete(&models.DoctorProfile{}).Error
	}))
}

// --- appointments ---

type gormAppointments struct{ db *gorm.DB }

func (r gormAppointments) Create(ctx context.Context, appt *models.Appointment) error {
	return translate(r.db.WithContext(ctx).Create(appt).Error)
}

func (r gormAppointments) GetByID(ctx context.Context, id string) (*models.Appointment, error) {
	var appt models.Appointment
	if err := r.db.WithContext(ctx).First(&appt, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &appt, nil
}

func (r gormAppointments) GetByPaymentID(ctx context.Context, paymentID string) (*models.Appointment, error) {
	if paymentID == "" {
		return nil, ErrNotFound
	}
	var appt models.Appointment
	if err := r.db.WithContext(ctx).Where("payment_id = ?", paymentID).First(&appt).Error; err != nil {
		return nil, translate(err)
	}
	return &appt, nil
}

func (r gormAppointments) Save(ctx context.Context, appt *models.Appointment) error {
	prev := appt.Version
	appt.Version = prev + 1
	res := r.db.WithContext(ctx).Model(&models.Appointment{}).
		Where("id = ? AND version = ?", appt.ID, prev).
		Select("*").Omit("id", "created_at").
		Updates(appt)
	if res.Error != nil {
		appt.Version = prev
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		appt.Version = prev
		var count int64
		if err := r.db.WithContext(ctx).Model(&models.Appointment{}).Where("id = ?", appt.ID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return ErrNotFound
		}
		return ErrConflict
	}
	return nil
}

func (r gormAppointments) List(ctx context.Context, filter AppointmentFilter) ([]models.Appointment, error) {
	q := r.db.WithContext(ctx).Order("date asc, time asc")
	if filter.PatientID != "" {
		q = q.Where("patient_id = ?", filter.PatientID)
	}
	if filter.DoctorID != "" {
		q = q.Where("doctor_id = ?", filter.DoctorID)
	}
	if len(filter.Statuses) > 0 {
		q = q.Where("status IN ?", filter.Statuses)
	}
	var appts []models.Appointment
	if err := q.Find(&appts).Error; err != nil {
		return nil, err
	}
	return appts, nil
}

func (r gormAppointments) Stats(ctx context.Context) (AppointmentStats, error) {
	stats := AppointmentStats{ByStatus: map[models.AppointmentStatus]int64{}}
	var rows []struct {
		Status models.AppointmentStatus
		Count  int64
	}
	if err := r.db.WithContext(ctx).Model(&models.Appointment{}).
		Select("status, count(*) as count").Group("status").Scan(&rows).Error; err != nil {
		return stats, err
	}
	for _, row := range rows {
		stats.ByStatus[row.Status] = row.Count
	}
	var paid struct {
		Count int64
		Total float64
	}
	if err := r.db.WithContext(ctx).Model(&models.Appointment{}).
		Select("count(*) as count, coalesce(sum(amount), 0) as total").
		Where("payment_status = ?", models.PaymentPaid).Scan(&paid).Error; err != nil {
		return stats, err
	}
	stats.PaidCount = paid.Count
	stats.PaidRevenue = paid.Total
	return stats, nil
}

// --- ratings ---

type gormRatings struct{ db *gorm.DB }

func (r gormRatings) GetByAppointment(ctx context.Context, appointmentID string) (*models.Rating, error) {
	var rating models.Rating
	if err := r.db.WithContext(ctx).Where("appointment_id = ?", appointmentID).First(&rating).Error; err != nil {
		return nil, translate(err)
	}
	return &rating, nil
}

func (r gormRatings) Upsert(ctx context.Context, rating *models.Rating) error {
	return translate(r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.Rating
		err := tx.Where("appointment_id = ?", rating.AppointmentID).First(&existing).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return tx.Create(rating).Error
		}
		if err != nil {
			return err
		}
		existing.Score = rating.Score
		existing.Review = rating.Review
		if err := tx.Save(&existing).Error; err != nil {
			return err
		}
		*rating = existing
		return nil
	}))
}

func (r gormRatings) ListByDoctor(ctx context.Context, doctorID string) ([]models.Rating, error) {
	var ratings []models.Rating
	if err := r.db.WithContext(ctx).Where("doctor_id = ?", doctorID).Order("created_at desc").Find(&ratings).Error; err != nil {
		return nil, err
	}
	return ratings, nil
}

func (r gormRatings) AverageForDoctor(ctx context.Context, doctorID string) (float64, int64, error) {
	var agg struct {
		Avg   float64
		Count int64
	}
	err := r.db.WithContext(ctx).Model(&models.Rating{}).
		Select("coalesce(avg(score), 0) as avg, count(*) as count").
		Where("doctor_id = ?", doctorID).Scan(&agg).Error
	return agg.Avg, agg.Count, err
}

// --- SOAP notes ---

type gormSOAPNotes struct{ db *gorm.DB }

func (r gormSOAPNotes) Create(ctx context.Context, note *models.SOAPNote) error {
	return translate(r.db.WithContext(ctx).Create(note).Error)
}

func (r gormSOAPNotes) GetByID(ctx context.Context, id string) (*models.SOAPNote, error) {
	var note models.SOAPNote
	if err := r.db.WithContext(ctx).First(&note, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &note, nil
}

func (r gormSOAPNotes) GetByAppointment(ctx context.Context, appointmentID string) (*models.SOAPNote, error) {
	var note models.SOAPNote
	if err := r.db.WithContext(ctx).Where("appointment_id = ?", appointmentID).First(&note).Error; err != nil {
		return nil, translate(err)
	}
	return &note, nil
}

func (r gormSOAPNotes) Save(ctx context.Context, note *models.SOAPNote) error {
	return translate(r.db.WithContext(ctx).Save(note).Error)
}

func (r gormSOAPNotes) Delete(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Delete(&models.SOAPNote{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r gormSOAPNotes) ListByPatient(ctx context.Context, patientID string) ([]models.SOAPNote, error) {
	var notes []models.SOAPNote
	if err := r.db.WithContext(ctx).Where("patient_id = ?", patientID).Order("created_at desc").Find(&notes).Error; err != nil {
		return nil, err
	}
	return notes, nil
}

// --- reports ---

type gormReports struct{ db *gorm.DB }

func (r gormReports) Create(ctx context.Context, report *models.Report) error {
	return translate(r.db.WithContext(ctx).Create(report).Error)
}

func (r gormReports) GetByID(ctx context.Context, id string) (*models.Report, error) {
	var report models.Report
	if err := r.db.WithContext(ctx).First(&report, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &report, nil
}

func (r gormReports) List(ctx context.Context, filter ReportFilter) ([]models.Report, error) {
	q := r.db.WithContext(ctx).Order("created_at desc")
	if filter.PatientID != "" {
		q = q.Where("patient_id = ?", filter.PatientID)
	}
	if filter.DoctorID != "" {
		q = q.Where("doctor_id = ?", filter.DoctorID)
	}
	if filter.AppointmentID != "" {
		q = q.Where("appointment_id = ?", filter.AppointmentID)
	}
	var reports []models.Report
	if err := q.Find(&reports).Error; err != nil {
		return nil, err
	}
	return reports, nil
}

// --- notifications ---

type gormNotifications struct{ db *gorm.DB }

func (r gormNotifications) Create(ctx context.Context, n *models.Notification) error {
	return translate(r.db.WithContext(ctx).Create(n).Error)
}

func (r gormNotifications) ListForUser(ctx context.Context, userID string, unreadOnly bool) ([]models.Notification, error) {
	q := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("created_at desc")
	if unreadOnly {
		q = q.Where("`read` = ?", false)
	}
	var out []models.Notification
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r gormNotifications) MarkRead(ctx context.Context, userID, id string) error {
	res := r.db.WithContext(ctx).Model(&models.Notification{}).
		Where("id = ? AND user_id = ?", id, userID).Update("read", true)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		var count int64
		r.db.WithContext(ctx).Model(&models.Notification{}).Where("id = ? AND user_id = ?", id, userID).Count(&count)
		if count == 0 {
			return ErrNotFound
		}
	}
	return nil
}

func (r gormNotifications) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	res := r.db.WithContext(ctx).Model(&models.Notification{}).
		Where("user_id = ? AND `read` = ?", userID, false).Update("read", true)
	return res.RowsAffected, res.Error
}

// --- refresh tokens ---

type gormRefreshTokens struct{ db *gorm.DB }

func (r gormRefreshTokens) Create(ctx context.Context, token *models.RefreshToken) error {
	return translate(r.db.WithContext(ctx).Create(token).Error)
}

func (r gormRefreshTokens) FindByToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	var stored models.RefreshToken
	if err := r.db.WithContext(ctx).Where("token = ?", token).First(&stored).Error; err != nil {
		return nil, translate(err)
	}
	return &stored, nil
}

func (r gormRefreshTokens) Revoke(ctx context.Context, id string) error {
	return translate(r.db.WithContext(ctx).Model(&models.RefreshToken{}).
		Where("id = ?", id).Update("is_revoked", true).Error)
}
