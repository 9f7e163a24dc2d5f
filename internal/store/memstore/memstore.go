// Package memstore is an in-memory store.Store. It backs DB_DRIVER=memory for
// local runs and is the fake every package's tests run against.
package memstore

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"clinic-booking-server/internal/models"
	"clinic-booking-server/internal/store"
)

// Store keeps every collection in maps guarded by one mutex. Values are
// copied on the way in and out so callers never share memory with the store.
type Store struct {
	mu            sync.RWMutex
	now           func() time.Time
	users         map[string]models.User
	appointments  map[string]models.Appointment
	ratings       map[string]models.Rating
	soapNotes     map[string]models.SOAPNote
	reports       map[string]models.Report
	notifications map[string]models.Notification
	tokens        map[string]models.RefreshToken

	// FailNotifications makes Notifications().Create fail, for tests that
	// exercise best-effort side effects.
	FailNotifications bool
}

var _ store.Store = (*Store)(nil)

// New returns an empty Store.
func New() *Store {
	return &Store{
		now:           time.Now,
		users:         map[string]models.User{},
		appointments:  map[string]models.Appointment{},
		ratings:       map[string]models.Rating{},
		soapNotes:     map[string]models.SOAPNote{},
		reports:       map[string]models.Report{},
		notifications: map[string]models.Notification{},
		tokens:        map[string]models.RefreshToken{},
	}
}

func (s *Store) Users() store.UserRepository                 { return users{s} }
func (s *Store) Appointments() store.AppointmentRepository   { return appointments{s} }
func (s *Store) Ratings() store.RatingRepository             { return ratings{s} }
func (s *Store) SOAPNotes() store.SOAPNoteRepository         { return soapNotes{s} }
func (s *Store) Reports() store.ReportRepository             { return reports{s} }
func (s *Store) Notifications() store.NotificationRepository { return notifications{s} }
func (s *Store) RefreshTokens() store.RefreshTokenRepository { return tokens{s} }

func (s *Store) stamp(base *models.BaseModel, creating bool) {
	base.EnsureID()
	now := s.now()
	if creating && base.CreatedAt.IsZero() {
		base.CreatedAt = now
	}
	base.UpdatedAt = now
}

// --- users ---

type users struct{ s *Store }

func copyUser(u models.User) models.User {
	if u.Doctor != nil {
		d := *u.Doctor
		u.Doctor = &d
	}
	return u
}

func (r users) Create(_ context.Context, user *models.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.users {
		if strings.EqualFold(u.Email, user.Email) {
			return store.ErrDuplicate
		}
	}
	r.s.stamp(&user.BaseModel, true)
	if user.Doctor != nil {
		user.Doctor.UserID = user.ID
	}
	r.s.users[user.ID] = copyUser(*user)
	return nil
}

func (r users) GetByID(_ context.Context, id string) (*models.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	u, ok := r.s.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	out := copyUser(u)
	return &out, nil
}

func (r users) GetByEmail(_ context.Context, email string) (*models.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, u := range r.s.users {
		if strings.EqualFold(u.Email, email) {
			out := copyUser(u)
			return &out, nil
		}
	}
	return nil, store.ErrNotFound
}

func (r users) Update(_ context.Context, user *models.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.users[user.ID]; !ok {
		return store.ErrNotFound
	}
	for id, u := range r.s.users {
		if id != user.ID && strings.EqualFold(u.Email, user.Email) {
			return store.ErrDuplicate
		}
	}
	r.s.stamp(&user.BaseModel, false)
	if user.Doctor != nil {
		user.Doctor.UserID = user.ID
	}
	r.s.users[user.ID] = copyUser(*user)
	return nil
}

func (r users) List(_ context.Context, filter store.UserFilter) ([]models.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	q := strings.ToLower(filter.Query)
	var out []models.User
	for _, u := range r.s.users {
		if filter.Role != "" && u.Role != filter.Role {
			continue
		}
		if filter.Specialization != "" && (u.Doctor == nil || !strings.EqualFold(u.Doctor.Specialization, filter.Specialization)) {
			continue
		}
		if q != "" && !strings.Contains(strings.ToLower(u.FirstName+" "+u.LastName+" "+u.Email), q) {
			continue
		}
		out = append(out, copyUser(u))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FirstName < out[j].FirstName })
	return out, nil
}

func (r users) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.users[id]; !ok {
		return store.ErrNotFound
	}
	delete(r.s.users, id)
	for k, a := range r.s.appointments {
		if a.PatientID == id || a.DoctorID == id {
			delete(r.s.appointments, k)
		}
	}
	for k, v := range r.s.ratings {
		if v.PatientID == id || v.DoctorID == id {
			delete(r.s.ratings, k)
		}
	}
	for k, v := range r.s.reports {
		if v.PatientID == id || v.DoctorID == id {
			delete(r.s.reports, k)
		}
	}
	for k, v := range r.s.soapNotes {
		if v.PatientID == id || v.DoctorID == id {
			delete(r.s.soapNotes, k)
		}
	}
	for k, v := range r.s.notifications {
		if v.UserID == id {
			delete(r.s.notifications, k)
		}
	}
	for k, v := range r.s.tokens {
		if v.UserID == id {
			delete(r.s.tokens, k)
		}
	}
	return nil
}

// --- appointments ---

type appointments struct{ s *Store }

func (r appointments) Create(_ context.Context, appt *models.Appointment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.stamp(&appt.BaseModel, true)
	r.s.appointments[appt.ID] = *appt
	return nil
}

func (r appointments) GetByID(_ context.Context, id string) (*models.Appointment, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	a, ok := r.s.appointments[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &a, nil
}

func (r appointments) GetByPaymentID(_ context.Context, paymentID string) (*models.Appointment, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if paymentID == "" {
		return nil, store.ErrNotFound
	}
	for _, a := range r.s.appointments {
		if a.PaymentID == paymentID {
			out := a
			return &out, nil
		}
	}
	return nil, store.ErrNotFound
}

func (r appointments) Save(_ context.Context, appt *models.Appointment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stored, ok := r.s.appointments[appt.ID]
	if !ok {
		return store.ErrNotFound
	}
	if stored.Version != appt.Version {
		return store.ErrConflict
	}
	appt.Version++
	appt.CreatedAt = stored.CreatedAt
	r.s.stamp(&appt.BaseModel, false)
	r.s.appointments[appt.ID] = *appt
	return nil
}

func (r appointments) List(_ context.Context, filter store.AppointmentFilter) ([]models.Appointment, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []models.Appointment
	for _, a := range r.s.appointments {
		if filter.PatientID != "" && a.PatientID != filter.PatientID {
			continue
		}
		if filter.DoctorID != "" && a.DoctorID != filter.DoctorID {
			continue
		}
		if len(filter.Statuses) > 0 && !hasStatus(filter.Statuses, a.Status) {
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date < out[j].Date
		}
		return out[i].Time < out[j].Time
	})
	return out, nil
}

func hasStatus(list []models.AppointmentStatus, s models.AppointmentStatus) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func (r appointments) Stats(_ context.Context) (store.AppointmentStats, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	stats := store.AppointmentStats{ByStatus: map[models.AppointmentStatus]int64{}}
	for _, a := range r.s.appointments {
		stats.ByStatus[a.Status]++
		if a.PaymentStatus == models.PaymentPaid {
			stats.PaidCount++
			stats.PaidRevenue += a.Amount
		}
	}
	return stats, nil
}

// --- ratings ---

type ratings struct{ s *Store }

func (r ratings) GetByAppointment(_ context.Context, appointmentID string) (*models.Rating, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, v := range r.s.ratings {
		if v.AppointmentID == appointmentID {
			out := v
			return &out, nil
		}
	}
	return nil, store.ErrNotFound
}

func (r ratings) Upsert(_ context.Context, rating *models.Rating) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for id, v := range r.s.ratings {
		if v.AppointmentID == rating.AppointmentID {
			v.Score = rating.Score
			v.Review = rating.Review
			r.s.stamp(&v.BaseModel, false)
			r.s.ratings[id] = v
			*rating = v
			return nil
		}
	}
	r.s.stamp(&rating.BaseModel, true)
	r.s.ratings[rating.ID] = *rating
	return nil
}

func (r ratings) ListByDoctor(_ context.Context, doctorID string) ([]models.Rating, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []models.Rating
	for _, v := range r.s.ratings {
		if v.DoctorID == doctorID {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r ratings) AverageForDoctor(ctx context.Context, doctorID string) (float64, int64, error) {
	list, _ := r.ListByDoctor(ctx, doctorID)
	if len(list) == 0 {
		return 0, 0, nil
	}
	sum := 0
	for _, v := range list {
		sum += v.Score
	}
	return float64(sum) / float64(len(list)), int64(len(list)), nil
}

// --- SOAP notes ---

type soapNotes struct{ s *Store }

func (r soapNotes) Create(_ context.Context, note *models.SOAPNote) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, v := range r.s.soapNotes {
		if v.AppointmentID == note.AppointmentID {
			return store.ErrDuplicate
		}
	}
	r.s.stamp(&note.BaseModel, true)
	r.s.soapNotes[note.ID] = *note
	return nil
}

func (r soapNotes) GetByID(_ context.Context, id string) (*models.SOAPNote, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	v, ok := r.s.soapNotes[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &v, nil
}

func (r soapNotes) GetByAppointment(_ context.Context, appointmentID string) (*models.SOAPNote, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, v := range r.s.soapNotes {
		if v.AppointmentID == appointmentID {
			out := v
			return &out, nil
		}
	}
	return nil, store.ErrNotFound
}

func (r soapNotes) Save(_ context.Context, note *models.SOAPNote) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.soapNotes[note.ID]; !ok {
		return store.ErrNotFound
	}
	r.s.stamp(&note.BaseModel, false)
	r.s.soapNotes[note.ID] = *note
	return nil
}

func (r soapNotes) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.soapNotes[id]; !ok {
		return store.ErrNotFound
	}
	delete(r.s.soapNotes, id)
	return nil
}

func (r soapNotes) ListByPatient(_ context.Context, patientID string) ([]models.SOAPNote, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []models.SOAPNote
	for _, v := range r.s.soapNotes {
		if v.PatientID == patientID {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// --- reports ---

type reports struct{ s *Store }

func (r reports) Create(_ context.Context, report *models.Report) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.stamp(&report.BaseModel, true)
	r.s.reports[report.ID] = *report
	return nil
}

func (r reports) GetByID(_ context.Context, id string) (*models.Report, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	v, ok := r.s.reports[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &v, nil
}

func (r reports) List(_ context.Context, filter store.ReportFilter) ([]models.Report, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []models.Report
	for _, v := range r.s.reports {
		if filter.PatientID != "" && v.PatientID != filter.PatientID {
			continue
		}
		if filter.DoctorID != "" && v.DoctorID != filter.DoctorID {
			continue
		}
		if filter.AppointmentID != "" && v.AppointmentID != filter.AppointmentID {
			continue
		}
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// --- notifications ---

type notifications struct{ s *Store }

type notificationError struct{}

func (notificationError) Error() string { return "memstore: notification writes disabled" }

func (r notifications) Create(_ context.Context, n *models.Notification) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.FailNotifications {
		return notificationError{}
	}
	r.s.stamp(&n.BaseModel, true)
	r.s.notifications[n.ID] = *n
	return nil
}

func (r notifications) ListForUser(_ context.Context, userID string, unreadOnly bool) ([]models.Notification, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []models.Notification
	for _, v := range r.s.notifications {
		if v.UserID != userID || (unreadOnly && v.Read) {
			continue
		}
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r notifications) MarkRead(_ context.Context, userID, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	v, ok := r.s.notifications[id]
	if !ok || v.UserID != userID {
		return store.ErrNotFound
	}
	v.Read = true
	r.s.notifications[id] = v
	return nil
}

func (r notifications) MarkAllRead(_ context.Context, userID string) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for id, v := range r.s.notifications {
		if v.UserID == userID && !v.Read {
			v.Read = true
			r.s.notifications[id] = v
			n++
		}
	}
	return n, nil
}

// --- refresh tokens ---

type tokens struct{ s *Store }

func (r tokens) Create(_ context.Context, token *models.RefreshToken) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.stamp(&token.BaseModel, true)
	r.s.tokens[token.ID] = *token
	return nil
}

func (r tokens) FindByToken(_ context.Context, token string) (*models.RefreshToken, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, v := range r.s.tokens {
		if v.Token == token {
			out := v
			return &out, nil
		}
	}
	return nil, store.ErrNotFound
}

func (r tokens) Revoke(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	v, ok := r.s.tokens[id]
	if !ok {
		return store.ErrNotFound
	}
	v.IsRevoked = true
	r.s.tokens[id] = v
	return nil
}
