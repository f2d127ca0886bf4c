package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/careslot/hospital-booking/internal/auth"
	"github.com/careslot/hospital-booking/internal/booking"
	"github.com/careslot/hospital-booking/internal/payment"
	redisclient "github.com/careslot/hospital-booking/internal/redis"
)

const (
	sessionSecret = "router-test-secret"
	gatewaySecret = "router-test-gateway"
)

// stubRepo serves the fixed rows each test seeds; unimplemented Repository
// methods panic, which keeps the routed surface of every test explicit.
type stubRepo struct {
	booking.Repository

	service  *booking.MedicalService
	slot     *booking.TimeSlot
	appt     *booking.Appointment
	claimErr error
}

func (s *stubRepo) GetServiceByID(_ context.Context, id uuid.UUID) (*booking.MedicalService, error) {
	if s.service == nil || s.service.ID != id {
		return nil, booking.ErrServiceNotFound
	}
	out := *s.service
	return &out, nil
}

func (s *stubRepo) GetSlotByID(_ context.Context, id uuid.UUID) (*booking.TimeSlot, error) {
	if s.slot == nil || s.slot.ID != id {
		return nil, booking.ErrSlotNotFound
	}
	out := *s.slot
	return &out, nil
}

func (s *stubRepo) ClaimSlotAndCreateAppointment(_ context.Context, draft booking.AppointmentDraft) (*booking.Appointment, error) {
	if s.claimErr != nil {
		return nil, s.claimErr
	}
	orderID := draft.PaymentOrderID
	s.appt = &booking.Appointment{
		ID:             uuid.New(),
		PatientID:      draft.PatientID,
		HospitalID:     draft.HospitalID,
		DoctorID:       draft.DoctorID,
		ServiceID:      draft.ServiceID,
		VisitType:      draft.VisitType,
		StartTime:      draft.StartTime,
		EndTime:        draft.EndTime,
		Status:         booking.StatusPending,
		PaymentStatus:  booking.PaymentPending,
		PaymentOrderID: &orderID,
		Notes:          draft.Notes,
		CreatedAt:      time.Now(),
	}
	out := *s.appt
	return &out, nil
}

func (s *stubRepo) GetPatientByID(context.Context, uuid.UUID) (*booking.Patient, error) {
	return nil, booking.ErrPatientNotFound
}

func (s *stubRepo) GetAppointmentByID(_ context.Context, id uuid.UUID) (*booking.Appointment, error) {
	if s.appt == nil || s.appt.ID != id {
		return nil, booking.ErrAppointmentNotFound
	}
	out := *s.appt
	return &out, nil
}

func (s *stubRepo) GetAppointmentForHospital(_ context.Context, id, hospitalID uuid.UUID) (*booking.Appointment, error) {
	if s.appt == nil || s.appt.ID != id || s.appt.HospitalID != hospitalID {
		return nil, booking.ErrAppointmentNotFound
	}
	out := *s.appt
	return &out, nil
}

func (s *stubRepo) MarkPaid(_ context.Context, id uuid.UUID, orderID, transactionID, signature string) (*booking.Appointment, error) {
	if s.appt == nil || s.appt.ID != id || s.appt.PaymentOrderID == nil || *s.appt.PaymentOrderID != orderID {
		return nil, booking.ErrAppointmentNotFound
	}
	s.appt.PaymentStatus = booking.PaymentPaid
	s.appt.PaymentTransactionID = &transactionID
	s.appt.PaymentSignature = &signature
	out := *s.appt
	return &out, nil
}

func (s *stubRepo) MarkFailedAndRelease(_ context.Context, id uuid.UUID) (*booking.Appointment, error) {
	if s.appt == nil || s.appt.ID != id || s.appt.PaymentStatus != booking.PaymentPending {
		return nil, booking.ErrAppointmentNotFound
	}
	s.appt.Status = booking.StatusCanceled
	s.appt.PaymentStatus = booking.PaymentFailed
	if s.slot != nil {
		s.slot.IsBooked = false
	}
	out := *s.appt
	return &out, nil
}

func (s *stubRepo) UpdateAppointmentStatus(_ context.Context, params booking.UpdateStatusParams) (*booking.Appointment, error) {
	if s.appt == nil || s.appt.ID != params.AppointmentID || s.appt.HospitalID != params.HospitalID {
		return nil, booking.ErrAppointmentNotFound
	}
	s.appt.Status = params.Status
	if params.VideoLink != nil {
		s.appt.VideoLink = params.VideoLink
	}
	out := *s.appt
	return &out, nil
}

func (s *stubRepo) ListAvailableSlots(context.Context, uuid.UUID, *uuid.UUID, time.Time, time.Time) ([]booking.TimeSlot, error) {
	if s.slot == nil || s.slot.IsBooked {
		return nil, nil
	}
	return []booking.TimeSlot{*s.slot}, nil
}

func (s *stubRepo) CreateService(_ context.Context, hospitalID uuid.UUID, name string, price int64) (*booking.MedicalService, error) {
	return &booking.MedicalService{ID: uuid.New(), HospitalID: hospitalID, Name: name, Price: price}, nil
}

type routerGateway struct{}

func (routerGateway) CreateOrder(_ context.Context, amount int64, currency, receipt string) (*payment.Order, error) {
	return &payment.Order{ID: "order_router_1", Amount: amount, Currency: currency, Receipt: receipt}, nil
}

func (routerGateway) VerifySignature(orderID, paymentID, signature string) bool {
	return signature == payment.Sign(gatewaySecret, orderID, paymentID)
}

func newTestRouter(repo *stubRepo) http.Handler {
	bookingSvc := booking.NewService(repo, routerGateway{}, redisclient.NoopLocker{}, redisclient.NoopDeduper{}, nil, nil, zerolog.Nop())
	adminSvc := booking.NewAdminService(repo, nil, "https://app.example.com", zerolog.Nop())
	return NewRouter(RouterConfig{
		Booking:  bookingSvc,
		Admin:    adminSvc,
		Verifier: auth.NewVerifier(sessionSecret),
		Logger:   zerolog.Nop(),
		Env:      "test",
		Version:  "test",
	})
}

func patientToken(t *testing.T, patientID uuid.UUID) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  patientID.String(),
		"role": string(auth.RolePatient),
		"exp":  time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(sessionSecret))
	require.NoError(t, err)
	return token
}

func adminToken(t *testing.T, hospitalID uuid.UUID) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":         uuid.NewString(),
		"role":        string(auth.RoleHospitalAdmin),
		"hospital_id": hospitalID.String(),
		"exp":         time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(sessionSecret))
	require.NoError(t, err)
	return token
}

func doJSON(t *testing.T, handler http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func seededRepo() (*stubRepo, uuid.UUID) {
	hosp := uuid.New()
	start := time.Date(2026, 9, 10, 10, 0, 0, 0, time.UTC)
	return &stubRepo{
		service: &booking.MedicalService{ID: uuid.New(), HospitalID: hosp, Name: "General Consultation", Price: 50000},
		slot:    &booking.TimeSlot{ID: uuid.New(), HospitalID: hosp, StartTime: start, EndTime: start.Add(30 * time.Minute)},
	}, hosp
}

func bookingBody(repo *stubRepo, hosp uuid.UUID) map[string]any {
	return map[string]any{
		"hospital_id":  hosp.String(),
		"service_id":   repo.service.ID.String(),
		"time_slot_id": repo.slot.ID.String(),
		"type":         "IN_PERSON",
	}
}

func TestRouterHealthLive(t *testing.T) {
	repo, _ := seededRepo()
	rec := doJSON(t, newTestRouter(repo), http.MethodGet, "/health/live", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRouterPatientEndpointsRequireSession(t *testing.T) {
	repo, hosp := seededRepo()
	router := newTestRouter(repo)

	for _, path := range []string{
		"/api/appointments",
		fmt.Sprintf("/api/hospitals/%s/slots?date=2026-09-10", hosp),
	} {
		rec := doJSON(t, router, http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
	}
	rec := doJSON(t, router, http.MethodPost, "/api/bookings", "", bookingBody(repo, hosp))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRouterAdminEndpointsRejectPatients(t *testing.T) {
	repo, _ := seededRepo()
	router := newTestRouter(repo)
	token := patientToken(t, uuid.New())

	rec := doJSON(t, router, http.MethodGet, "/api/admin/slots", token, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/api/admin/slots", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRouterCreateBooking(t *testing.T) {
	repo, hosp := seededRepo()
	router := newTestRouter(repo)

	rec := doJSON(t, router, http.MethodPost, "/api/bookings", patientToken(t, uuid.New()), bookingBody(repo, hosp))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp BookingResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "PENDING", resp.Appointment.Status)
	assert.Equal(t, "PENDING", resp.Appointment.PaymentStatus)
	assert.Equal(t, "order_router_1", resp.Order.ID)
	assert.Equal(t, int64(50000), resp.Order.Amount)
	assert.Equal(t, "INR", resp.Order.Currency)
}

func TestRouterCreateBookingValidation(t *testing.T) {
	repo, hosp := seededRepo()
	router := newTestRouter(repo)
	token := patientToken(t, uuid.New())

	body := bookingBody(repo, hosp)
	body["type"] = "HOUSE_CALL"
	rec := doJSON(t, router, http.MethodPost, "/api/bookings", token, body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	body = bookingBody(repo, hosp)
	body["time_slot_id"] = "not-a-uuid"
	rec = doJSON(t, router, http.MethodPost, "/api/bookings", token, body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRouterCreateBookingConflict(t *testing.T) {
	repo, hosp := seededRepo()
	repo.claimErr = booking.ErrSlotUnavailable
	router := newTestRouter(repo)

	rec := doJSON(t, router, http.MethodPost, "/api/bookings", patientToken(t, uuid.New()), bookingBody(repo, hosp))
	assert.Equal(t, http.StatusConflict, rec.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "slot_already_booked", resp.Error)
}

func TestRouterCreateBookingUnknownService(t *testing.T) {
	repo, hosp := seededRepo()
	router := newTestRouter(repo)

	body := bookingBody(repo, hosp)
	body["service_id"] = uuid.NewString()
	rec := doJSON(t, router, http.MethodPost, "/api/bookings", patientToken(t, uuid.New()), body)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRouterVerifyPayment(t *testing.T) {
	repo, hosp := seededRepo()
	router := newTestRouter(repo)
	token := patientToken(t, uuid.New())

	rec := doJSON(t, router, http.MethodPost, "/api/bookings", token, bookingBody(repo, hosp))
	require.Equal(t, http.StatusCreated, rec.Code)

	paymentID := "pay_router_1"
	rec = doJSON(t, router, http.MethodPost, "/api/payments/verify", token, map[string]string{
		"appointment_id": repo.appt.ID.String(),
		"order_id":       "order_router_1",
		"payment_id":     paymentID,
		"signature":      payment.Sign(gatewaySecret, "order_router_1", paymentID),
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp AppointmentResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "PAID", resp.PaymentStatus)
	assert.Equal(t, "PENDING", resp.Status)
}

func TestRouterVerifyPaymentInvalidSignature(t *testing.T) {
	repo, hosp := seededRepo()
	router := newTestRouter(repo)
	token := patientToken(t, uuid.New())

	rec := doJSON(t, router, http.MethodPost, "/api/bookings", token, bookingBody(repo, hosp))
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/api/payments/verify", token, map[string]string{
		"appointment_id": repo.appt.ID.String(),
		"order_id":       "order_router_1",
		"payment_id":     "pay_router_2",
		"signature":      "tampered",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "invalid_signature", resp.Error)
	assert.Equal(t, booking.StatusCanceled, repo.appt.Status)
	assert.Equal(t, booking.PaymentFailed, repo.appt.PaymentStatus)
}

func TestRouterListSlots(t *testing.T) {
	repo, hosp := seededRepo()
	router := newTestRouter(repo)
	token := patientToken(t, uuid.New())

	rec := doJSON(t, router, http.MethodGet,
		fmt.Sprintf("/api/hospitals/%s/slots?date=2026-09-10", hosp), token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var slots []SlotResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &slots))
	require.Len(t, slots, 1)
	assert.Equal(t, repo.slot.ID, slots[0].ID)

	rec = doJSON(t, router, http.MethodGet,
		fmt.Sprintf("/api/hospitals/%s/slots", hosp), token, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "date is required")

	rec = doJSON(t, router, http.MethodGet,
		fmt.Sprintf("/api/hospitals/%s/slots?date=2026-09-10&doctor_id=nope", hosp), token, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRouterAdminUpdateStatusTenantScoped(t *testing.T) {
	repo, hosp := seededRepo()
	router := newTestRouter(repo)

	rec := doJSON(t, router, http.MethodPost, "/api/bookings", patientToken(t, uuid.New()), bookingBody(repo, hosp))
	require.Equal(t, http.StatusCreated, rec.Code)

	body := map[string]string{
		"appointment_id": repo.appt.ID.String(),
		"status":         "CONFIRMED",
	}

	// An admin of another hospital gets a 404, not a 403.
	rec = doJSON(t, router, http.MethodPatch, "/api/admin/appointments", adminToken(t, uuid.New()), body)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, booking.StatusPending, repo.appt.Status)

	rec = doJSON(t, router, http.MethodPatch, "/api/admin/appointments", adminToken(t, hosp), body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, booking.StatusConfirmed, repo.appt.Status)
}

func TestRouterAdminUpdateStatusInvalid(t *testing.T) {
	repo, hosp := seededRepo()
	router := newTestRouter(repo)

	rec := doJSON(t, router, http.MethodPost, "/api/bookings", patientToken(t, uuid.New()), bookingBody(repo, hosp))
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, router, http.MethodPatch, "/api/admin/appointments", adminToken(t, hosp), map[string]string{
		"appointment_id": repo.appt.ID.String(),
		"status":         "RESCHEDULED",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRouterAdminCreateService(t *testing.T) {
	repo, hosp := seededRepo()
	router := newTestRouter(repo)
	token := adminToken(t, hosp)

	rec := doJSON(t, router, http.MethodPost, "/api/admin/services", token, map[string]any{
		"name":  "Physiotherapy",
		"price": 60000,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp ServiceResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Physiotherapy", resp.Name)
	assert.Equal(t, hosp, resp.HospitalID)

	rec = doJSON(t, router, http.MethodPost, "/api/admin/services", token, map[string]any{
		"name":  "Physiotherapy",
		"price": 0,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
