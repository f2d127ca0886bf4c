package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/careslot/hospital-booking/internal/booking"
	"github.com/careslot/hospital-booking/internal/payment"
)

type InitiateBookingRequest struct {
	HospitalID string  `json:"hospital_id" validate:"required,uuid"`
	DoctorID   *string `json:"doctor_id" validate:"omitempty,uuid"`
	ServiceID  string  `json:"service_id" validate:"required,uuid"`
	TimeSlotID string  `json:"time_slot_id" validate:"required,uuid"`
	Type       string  `json:"type" validate:"required,oneof=IN_PERSON VIDEO_CALL"`
	Notes      *string `json:"notes" validate:"omitempty,max=2000"`

	// Client-echoed slot times; informational only, the server copies the
	// scheduled window from the slot row it claims.
	StartTime string `json:"start_time,omitempty"`
	EndTime   string `json:"end_time,omitempty"`
}

type VerifyPaymentRequest struct {
	OrderID       string `json:"order_id" validate:"required"`
	PaymentID     string `json:"payment_id" validate:"required"`
	Signature     string `json:"signature" validate:"required"`
	AppointmentID string `json:"appointment_id" validate:"required,uuid"`
}

type UpdateAppointmentStatusRequest struct {
	AppointmentID string `json:"appointment_id" validate:"required,uuid"`
	Status        string `json:"status" validate:"required"`
}

type CreateSlotRequest struct {
	Date      string  `json:"date" validate:"required,datetime=2006-01-02"`
	StartTime string  `json:"start_time" validate:"required,datetime=15:04"`
	EndTime   string  `json:"end_time" validate:"required,datetime=15:04"`
	DoctorID  *string `json:"doctor_id" validate:"omitempty,uuid"`
}

type CreateServiceRequest struct {
	Name  string `json:"name" validate:"required"`
	Price int64  `json:"price" validate:"required,gt=0"`
}

type AppointmentResponse struct {
	ID            uuid.UUID  `json:"id"`
	PatientID     uuid.UUID  `json:"patient_id"`
	HospitalID    uuid.UUID  `json:"hospital_id"`
	DoctorID      *uuid.UUID `json:"doctor_id,omitempty"`
	ServiceID     uuid.UUID  `json:"service_id"`
	Type          string     `json:"type"`
	StartTime     time.Time  `json:"start_time"`
	EndTime       time.Time  `json:"end_time"`
	Status        string     `json:"status"`
	PaymentStatus string     `json:"payment_status"`
	OrderID       *string    `json:"payment_order_id,omitempty"`
	VideoLink     *string    `json:"video_link,omitempty"`
	Notes         *string    `json:"notes,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

type AppointmentDetailResponse struct {
	AppointmentResponse
	PatientName     string  `json:"patient_name"`
	PatientEmail    *string `json:"patient_email,omitempty"`
	DoctorName      *string `json:"doctor_name,omitempty"`
	DoctorSpecialty *string `json:"doctor_specialty,omitempty"`
	ServiceName     string  `json:"service_name"`
	ServicePrice    int64   `json:"service_price"`
}

type OrderResponse struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

type BookingResponse struct {
	Appointment AppointmentResponse `json:"appointment"`
	Order       OrderResponse       `json:"order"`
}

type SlotResponse struct {
	ID         uuid.UUID  `json:"id"`
	HospitalID uuid.UUID  `json:"hospital_id"`
	DoctorID   *uuid.UUID `json:"doctor_id,omitempty"`
	StartTime  time.Time  `json:"start_time"`
	EndTime    time.Time  `json:"end_time"`
	IsBooked   bool       `json:"is_booked"`
}

type SlotWithDoctorResponse struct {
	SlotResponse
	DoctorName      *string `json:"doctor_name,omitempty"`
	DoctorSpecialty *string `json:"doctor_specialty,omitempty"`
}

type ServiceResponse struct {
	ID         uuid.UUID `json:"id"`
	HospitalID uuid.UUID `json:"hospital_id"`
	Name       string    `json:"name"`
	Price      int64     `json:"price"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func toAppointmentResponse(a *booking.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:            a.ID,
		PatientID:     a.PatientID,
		HospitalID:    a.HospitalID,
		DoctorID:      a.DoctorID,
		ServiceID:     a.ServiceID,
		Type:          string(a.VisitType),
		StartTime:     a.StartTime,
		EndTime:       a.EndTime,
		Status:        string(a.Status),
		PaymentStatus: string(a.PaymentStatus),
		OrderID:       a.PaymentOrderID,
		VideoLink:     a.VideoLink,
		Notes:         a.Notes,
		CreatedAt:     a.CreatedAt,
	}
}

func toDetailResponse(d booking.AppointmentDetail) AppointmentDetailResponse {
	return AppointmentDetailResponse{
		AppointmentResponse: toAppointmentResponse(&d.Appointment),
		PatientName:         d.PatientName,
		PatientEmail:        d.PatientEmail,
		DoctorName:          d.DoctorName,
		DoctorSpecialty:     d.DoctorSpecialty,
		ServiceName:         d.ServiceName,
		ServicePrice:        d.ServicePrice,
	}
}

func toSlotResponse(s booking.TimeSlot) SlotResponse {
	return SlotResponse{
		ID:         s.ID,
		HospitalID: s.HospitalID,
		DoctorID:   s.DoctorID,
		StartTime:  s.StartTime,
		EndTime:    s.EndTime,
		IsBooked:   s.IsBooked,
	}
}

func toOrderResponse(o *payment.Order) OrderResponse {
	return OrderResponse{
		ID:       o.ID,
		Amount:   o.Amount,
		Currency: o.Currency,
	}
}
