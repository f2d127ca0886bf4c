package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/careslot/hospital-booking/internal/auth"
	"github.com/careslot/hospital-booking/internal/booking"
)

var validate = validator.New()

func decodeAndValidate(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return errors.New("could not parse JSON body")
	}
	if err := validate.Struct(dst); err != nil {
		return err
	}
	return nil
}

func listHospitalSlotsHandler(svc *booking.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		hospitalID, err := uuid.Parse(chi.URLParam(r, "hospitalID"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_hospital_id", "hospitalID must be a valid UUID")
			return
		}

		day, err := time.Parse("2006-01-02", r.URL.Query().Get("date"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_date", "date query parameter must be YYYY-MM-DD")
			return
		}

		// doctor_id=general (or absent) selects the shared slots not tied
		// to one practitioner.
		var doctorID *uuid.UUID
		if raw := r.URL.Query().Get("doctor_id"); raw != "" && raw != "general" {
			id, err := uuid.Parse(raw)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_doctor_id", "doctor_id must be a valid UUID or 'general'")
				return
			}
			doctorID = &id
		}

		slots, err := svc.ListAvailableSlots(r.Context(), hospitalID, doctorID, day)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}

		resp := make([]SlotResponse, 0, len(slots))
		for _, s := range slots {
			resp = append(resp, toSlotResponse(s))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func initiateBookingHandler(svc *booking.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ident, ok := auth.PatientFromContext(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, "unauthorized", "patient session required")
			return
		}

		var req InitiateBookingRequest
		if err := decodeAndValidate(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", err.Error())
			return
		}

		input := booking.BookingInput{
			HospitalID: uuid.MustParse(req.HospitalID),
			ServiceID:  uuid.MustParse(req.ServiceID),
			TimeSlotID: uuid.MustParse(req.TimeSlotID),
			VisitType:  booking.VisitType(req.Type),
			Notes:      req.Notes,
		}
		if req.DoctorID != nil {
			id := uuid.MustParse(*req.DoctorID)
			input.DoctorID = &id
		}

		result, err := svc.InitiateBooking(r.Context(), ident, input)
		if err != nil {
			handleBookingError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, BookingResponse{
			Appointment: toAppointmentResponse(result.Appointment),
			Order:       toOrderResponse(result.Order),
		})
	}
}

func verifyPaymentHandler(svc *booking.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req VerifyPaymentRequest
		if err := decodeAndValidate(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", err.Error())
			return
		}

		appt, err := svc.VerifyPayment(r.Context(), booking.VerifyInput{
			AppointmentID: uuid.MustParse(req.AppointmentID),
			OrderID:       req.OrderID,
			PaymentID:     req.PaymentID,
			Signature:     req.Signature,
		})
		if err != nil {
			handleVerifyError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func listMyAppointmentsHandler(svc *booking.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ident, ok := auth.PatientFromContext(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, "unauthorized", "patient session required")
			return
		}

		appts, err := svc.ListMyAppointments(r.Context(), ident)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}

		resp := make([]AppointmentDetailResponse, 0, len(appts))
		for _, a := range appts {
			resp = append(resp, toDetailResponse(a))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func handleBookingError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, booking.ErrServiceNotFound):
		writeError(w, http.StatusNotFound, "service_not_found", err.Error())
	case errors.Is(err, booking.ErrSlotNotFound):
		writeError(w, http.StatusNotFound, "slot_not_found", err.Error())
	case errors.Is(err, booking.ErrSlotUnavailable):
		writeError(w, http.StatusConflict, "slot_already_booked", "this slot was just booked, please choose another")
	case errors.Is(err, booking.ErrSlotBeingBooked):
		writeError(w, http.StatusConflict, "slot_being_booked", "slot is currently being booked, please retry shortly")
	case errors.Is(err, booking.ErrInvalidPrice):
		writeError(w, http.StatusConflict, "invalid_service_price", err.Error())
	case errors.Is(err, booking.ErrGateway):
		writeError(w, http.StatusBadGateway, "payment_gateway_error", "payment provider is unavailable, please retry")
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}

func handleVerifyError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, booking.ErrInvalidSignature):
		writeError(w, http.StatusBadRequest, "invalid_signature", "payment verification failed")
	case errors.Is(err, booking.ErrAppointmentNotFound):
		writeError(w, http.StatusNotFound, "appointment_not_found", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}
