package routes

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clinic-booking-server/internal/clinical"
	"clinic-booking-server/internal/config"
	"clinic-booking-server/internal/lifecycle"
	"clinic-booking-server/internal/models"
	"clinic-booking-server/internal/notify"
	"clinic-booking-server/internal/payment"
	"clinic-booking-server/internal/store/memstore"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const paymentSecret = "route-test-secret"

type envelope struct {
	Success bool            `json:"success"`
	Status  int             `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

type server struct {
	t      *testing.T
	router *gin.Engine
	store  *memstore.Store
}

func newServer(t *testing.T) *server {
	t.Helper()
	cfg := &config.Config{
		Environment:               "test",
		JWTSecret:                 "access-secret",
		JWTRefreshSecret:          "refresh-secret",
		JWTExpirationMinutes:      15,
		JWTRefreshExpirationHours: 24,
		FrontendURL:               "https://app.test",
		Payment: config.PaymentConfig{
			FormURL:     "https://gateway.test/form",
			ProductCode: "EPAYTEST",
			SecretKey:   paymentSecret,
			SuccessURL:  "https://api.test/api/v1/payments/callback",
			FailureURL:  "https://api.test/api/v1/payments/callback",
		},
	}
	st := memstore.New()
	log := zerolog.Nop()
	dispatcher := notify.NewDispatcher(st, notify.NewLogSender(log), log)
	t.Cleanup(dispatcher.Wait)

	router := gin.New()
	SetupRoutes(router, Deps{
		Store:     st,
		Lifecycle: lifecycle.NewManager(st, dispatcher, log, lifecycle.Options{DefaultFee: 500}),
		Clinical:  clinical.NewService(st, log),
		Gateway:   payment.NewGateway(cfg.Payment, cfg.FrontendURL, log),
		Config:    cfg,
		Log:       log,
	})
	return &server{t: t, router: router, store: st}
}

func (s *server) do(method, path, token string, body interface{}) *httptest.ResponseRecorder {
	s.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(s.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *server) decode(w *httptest.ResponseRecorder, out interface{}) envelope {
	s.t.Helper()
	var env envelope
	require.NoError(s.t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	if out != nil {
		require.NoError(s.t, json.Unmarshal(env.Data, out))
	}
	return env
}

func (s *server) register(email string, extra map[string]interface{}) string {
	s.t.Helper()
	body := map[string]interface{}{
		"firstName": "Test", "lastName": "User", "email": email, "password": "password123",
	}
	for k, v := range extra {
		body[k] = v
	}
	w := s.do(http.MethodPost, "/api/v1/auth/register", "", body)
	require.Equal(s.t, http.StatusCreated, w.Code, w.Body.String())
	var user models.UserSanitized
	s.decode(w, &user)
	return user.ID
}

func (s *server) login(email string) string {
	s.t.Helper()
	w := s.do(http.MethodPost, "/api/v1/auth/login", "", map[string]string{"email": email, "password": "password123"})
	require.Equal(s.t, http.StatusOK, w.Code, w.Body.String())
	var resp struct {
		AccessToken string `json:"accessToken"`
	}
	s.decode(w, &resp)
	require.NotEmpty(s.t, resp.AccessToken)
	return resp.AccessToken
}

type parties struct {
	doctorID, patientID             string
	doctorTok, patientTok, adminTok string
}

func (s *server) seedParties() parties {
	s.t.Helper()
	var p parties
	p.doctorID = s.register("doc@clinic.test", map[string]interface{}{
		"role":   "doctor",
		"doctor": map[string]interface{}{"specialization": "Cardiology", "consultationFee": 1500},
	})
	p.patientID = s.register("pat@clinic.test", nil)

	admin := &models.User{Email: "admin@clinic.test", FirstName: "Ada", LastName: "Min", Role: models.RoleAdmin}
	require.NoError(s.t, admin.SetPassword("password123"))
	require.NoError(s.t, s.store.Users().Create(context.Background(), admin))

	p.doctorTok = s.login("doc@clinic.test")
	p.patientTok = s.login("pat@clinic.test")
	p.adminTok = s.login("admin@clinic.test")
	return p
}

func (s *server) book(p parties) models.Appointment {
	s.t.Helper()
	w := s.do(http.MethodPost, "/api/v1/appointments", p.patientTok, map[string]string{
		"doctorId": p.doctorID, "date": "2030-01-15", "time": "10:00", "reason": "checkup",
	})
	require.Equal(s.t, http.StatusCreated, w.Code, w.Body.String())
	var appt models.Appointment
	s.decode(w, &appt)
	return appt
}

func (s *server) beginPayment(p parties, id string) payment.FormPayload {
	s.t.Helper()
	w := s.do(http.MethodPost, "/api/v1/appointments/"+id+"/payment", p.patientTok, nil)
	require.Equal(s.t, http.StatusOK, w.Code, w.Body.String())
	var form payment.FormPayload
	s.decode(w, &form)
	return form
}

func callbackPath(fields payment.Fields) string {
	data, _ := json.Marshal(fields)
	return "/api/v1/payments/callback?data=" + base64.URLEncoding.EncodeToString(data)
}

func gatewayCallback(ref, amount, status string) payment.Fields {
	names := "transaction_code,status,total_amount,transaction_uuid,product_code,signed_field_names"
	f := payment.Fields{
		"transaction_code":   "000AXBC",
		"status":             status,
		"total_amount":       amount,
		"transaction_uuid":   ref,
		"product_code":       "EPAYTEST",
		"signed_field_names": names,
	}
	f["signature"] = payment.Sign(paymentSecret, f, names)
	return f
}

func TestHealth(t *testing.T) {
	s := newServer(t)
	w := s.do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"UP"}`, w.Body.String())
}

func TestPrivateRoutesRequireToken(t *testing.T) {
	s := newServer(t)
	w := s.do(http.MethodGet, "/api/v1/appointments", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	env := s.decode(w, nil)
	assert.False(t, env.Success)
}

func TestBookPayApproveCompleteRate(t *testing.T) {
	s := newServer(t)
	p := s.seedParties()

	appt := s.book(p)
	assert.Equal(t, models.StatusPending, appt.Status)
	assert.Equal(t, models.PaymentPending, appt.PaymentStatus)
	assert.Equal(t, 1500.0, appt.Amount)

	form := s.beginPayment(p, appt.ID)
	assert.Equal(t, "https://gateway.test/form", form.URL)
	ref := form.Fields["transaction_uuid"]
	require.NotEmpty(t, ref)
	assert.Equal(t, "1500", form.Fields["total_amount"])

	w := s.do(http.MethodGet, callbackPath(gatewayCallback(ref, "1,500.0", "COMPLETE")), "", nil)
	require.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "https://app.test/payment/success?appointmentId="+appt.ID, w.Header().Get("Location"))

	w = s.do(http.MethodGet, "/api/v1/appointments/"+appt.ID, p.patientTok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	s.decode(w, &appt)
	assert.Equal(t, models.PaymentPaid, appt.PaymentStatus)
	assert.Equal(t, models.StatusPendingApproval, appt.Status)
	assert.Equal(t, "000AXBC", appt.GatewayTransactionID)

	// A replayed callback is a no-op.
	w = s.do(http.MethodGet, callbackPath(gatewayCallback(ref, "1500", "COMPLETE")), "", nil)
	require.Equal(t, http.StatusFound, w.Code)
	assert.Contains(t, w.Header().Get("Location"), "/payment/success")

	w = s.do(http.MethodPost, "/api/v1/appointments/"+appt.ID+"/approve", p.patientTok, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(http.MethodPost, "/api/v1/appointments/"+appt.ID+"/approve", p.doctorTok, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	s.decode(w, &appt)
	assert.Equal(t, models.StatusApproved, appt.Status)
	assert.Equal(t, lifecycle.MeetingRoom(appt.ID), appt.MeetingRoom)

	w = s.do(http.MethodPost, "/api/v1/appointments/"+appt.ID+"/rating", p.patientTok, map[string]interface{}{"score": 5})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = s.do(http.MethodPost, "/api/v1/appointments/"+appt.ID+"/complete", p.doctorTok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	s.decode(w, &appt)
	assert.Equal(t, models.StatusCompleted, appt.Status)

	w = s.do(http.MethodPost, "/api/v1/appointments/"+appt.ID+"/cancel", p.patientTok, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = s.do(http.MethodPost, "/api/v1/appointments/"+appt.ID+"/rating", p.patientTok, map[string]interface{}{"score": 5, "review": "great"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	w = s.do(http.MethodPost, "/api/v1/appointments/"+appt.ID+"/rating", p.patientTok, map[string]interface{}{"score": 3})
	require.Equal(t, http.StatusOK, w.Code)
	w = s.do(http.MethodPost, "/api/v1/appointments/"+appt.ID+"/rating", p.patientTok, map[string]interface{}{"score": 9})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	ratings, err := s.store.Ratings().ListByDoctor(context.Background(), p.doctorID)
	require.NoError(t, err)
	require.Len(t, ratings, 1)
	assert.Equal(t, 3, ratings[0].Score)

	w = s.do(http.MethodGet, "/api/v1/notifications?unread=true", p.patientTok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var notes []models.Notification
	s.decode(w, &notes)
	kinds := map[models.NotificationKind]bool{}
	for _, n := range notes {
		kinds[n.Kind] = true
	}
	assert.True(t, kinds[models.KindPaymentConfirmed])
	assert.True(t, kinds[models.KindAppointmentApproved])
	assert.True(t, kinds[models.KindAppointmentCompleted])

	w = s.do(http.MethodPatch, "/api/v1/notifications/read-all", p.patientTok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	w = s.do(http.MethodGet, "/api/v1/notifications?unread=true", p.patientTok, nil)
	notes = nil
	s.decode(w, &notes)
	assert.Empty(t, notes)
}

func TestTamperedCallbackRedirectsToFailure(t *testing.T) {
	s := newServer(t)
	p := s.seedParties()
	appt := s.book(p)
	ref := s.beginPayment(p, appt.ID).Fields["transaction_uuid"]

	fields := gatewayCallback(ref, "1500", "COMPLETE")
	fields["total_amount"] = "1"
	w := s.do(http.MethodGet, callbackPath(fields), "", nil)
	require.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "https://app.test/payment/failure?reason=signature_mismatch", w.Header().Get("Location"))

	stored, err := s.store.Appointments().GetByID(context.Background(), appt.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentPending, stored.PaymentStatus)
}

func TestAdminConfirmAndRefund(t *testing.T) {
	s := newServer(t)
	p := s.seedParties()
	appt := s.book(p)

	path := "/api/v1/appointments/" + appt.ID + "/payment/confirm"
	w := s.do(http.MethodPost, path, p.patientTok, map[string]interface{}{"amount": 1500})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(http.MethodPost, path, p.adminTok, map[string]interface{}{"amount": 1499})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = s.do(http.MethodPost, path, p.adminTok, map[string]interface{}{"amount": 1500, "reference": "cash-42"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	s.decode(w, &appt)
	assert.Equal(t, models.PaymentPaid, appt.PaymentStatus)
	assert.Equal(t, models.StatusPendingApproval, appt.Status)

	w = s.do(http.MethodPost, "/api/v1/appointments/"+appt.ID+"/payment/refund", p.adminTok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	s.decode(w, &appt)
	assert.Equal(t, models.PaymentRefunded, appt.PaymentStatus)
}

func TestListAppointmentsByStatus(t *testing.T) {
	s := newServer(t)
	p := s.seedParties()
	first := s.book(p)
	s.book(p)

	w := s.do(http.MethodDelete, "/api/v1/appointments/"+first.ID, p.patientTok, map[string]string{"reason": "travel"})
	require.Equal(t, http.StatusOK, w.Code)

	var list []models.Appointment
	w = s.do(http.MethodGet, "/api/v1/appointments?status=cancelled", p.doctorTok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	s.decode(w, &list)
	require.Len(t, list, 1)
	assert.Equal(t, "travel", list[0].CancellationReason)

	w = s.do(http.MethodGet, "/api/v1/appointments?status=pending,cancelled", p.adminTok, nil)
	list = nil
	s.decode(w, &list)
	assert.Len(t, list, 2)

	w = s.do(http.MethodGet, "/api/v1/appointments?status=bogus", p.patientTok, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDoctorSearchIsPublic(t *testing.T) {
	s := newServer(t)
	s.seedParties()

	w := s.do(http.MethodGet, "/api/v1/doctors?specialization=cardiology", "", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var doctors []map[string]interface{}
	s.decode(w, &doctors)
	assert.Len(t, doctors, 1)
}

func TestAdminRoutesRejectPatients(t *testing.T) {
	s := newServer(t)
	p := s.seedParties()

	assert.Equal(t, http.StatusForbidden, s.do(http.MethodGet, "/api/v1/admin/stats", p.patientTok, nil).Code)
	assert.Equal(t, http.StatusForbidden, s.do(http.MethodGet, "/api/v1/users", p.doctorTok, nil).Code)

	w := s.do(http.MethodPost, "/api/v1/admin/sweep", p.adminTok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var res map[string]interface{}
	s.decode(w, &res)
	assert.EqualValues(t, 0, res["scanned"])
}
