package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/careslot/hospital-booking/internal/auth"
	"github.com/careslot/hospital-booking/internal/booking"
)

func adminFromRequest(w http.ResponseWriter, r *http.Request) (auth.AdminIdentity, bool) {
	admin, ok := auth.AdminFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusForbidden, "forbidden", "hospital admin role required")
	}
	return admin, ok
}

func listPaidAppointmentsHandler(svc *booking.AdminService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		admin, ok := adminFromRequest(w, r)
		if !ok {
			return
		}

		appts, err := svc.ListPaidAppointments(r.Context(), admin)
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

func updateAppointmentStatusHandler(svc *booking.AdminService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		admin, ok := adminFromRequest(w, r)
		if !ok {
			return
		}

		var req UpdateAppointmentStatusRequest
		if err := decodeAndValidate(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", err.Error())
			return
		}

		appt, err := svc.SetStatus(r.Context(), admin,
			uuid.MustParse(req.AppointmentID), booking.AppointmentStatus(req.Status))
		if err != nil {
			switch {
			case errors.Is(err, booking.ErrInvalidStatus):
				writeError(w, http.StatusBadRequest, "invalid_status", err.Error())
			case errors.Is(err, booking.ErrAppointmentNotFound):
				// Wrong-tenant lookups land here too; existence is not leaked.
				writeError(w, http.StatusNotFound, "appointment_not_found", err.Error())
			default:
				writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			}
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func listAdminSlotsHandler(svc *booking.AdminService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		admin, ok := adminFromRequest(w, r)
		if !ok {
			return
		}

		slots, err := svc.ListSlots(r.Context(), admin)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}

		resp := make([]SlotWithDoctorResponse, 0, len(slots))
		for _, s := range slots {
			resp = append(resp, SlotWithDoctorResponse{
				SlotResponse:    toSlotResponse(s.TimeSlot),
				DoctorName:      s.DoctorName,
				DoctorSpecialty: s.DoctorSpecialty,
			})
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func createSlotHandler(svc *booking.AdminService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		admin, ok := adminFromRequest(w, r)
		if !ok {
			return
		}

		var req CreateSlotRequest
		if err := decodeAndValidate(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", err.Error())
			return
		}

		day, _ := time.Parse("2006-01-02", req.Date)
		start, _ := time.Parse("15:04", req.StartTime)
		end, _ := time.Parse("15:04", req.EndTime)

		startAt := time.Date(day.Year(), day.Month(), day.Day(), start.Hour(), start.Minute(), 0, 0, time.UTC)
		endAt := time.Date(day.Year(), day.Month(), day.Day(), end.Hour(), end.Minute(), 0, 0, time.UTC)

		var doctorID *uuid.UUID
		if req.DoctorID != nil {
			id := uuid.MustParse(*req.DoctorID)
			doctorID = &id
		}

		slot, err := svc.CreateSlot(r.Context(), admin, doctorID, startAt, endAt)
		if err != nil {
			switch {
			case errors.Is(err, booking.ErrInvalidSlotWindow):
				writeError(w, http.StatusBadRequest, "invalid_slot_window", err.Error())
			case errors.Is(err, booking.ErrDoctorNotFound):
				writeError(w, http.StatusNotFound, "doctor_not_found", err.Error())
			default:
				writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			}
			return
		}

		writeJSON(w, http.StatusCreated, toSlotResponse(*slot))
	}
}

func deleteSlotHandler(svc *booking.AdminService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		admin, ok := adminFromRequest(w, r)
		if !ok {
			return
		}

		slotID, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_slot_id", "id must be a valid UUID")
			return
		}

		if err := svc.DeleteSlot(r.Context(), admin, slotID); err != nil {
			switch {
			case errors.Is(err, booking.ErrSlotNotFound):
				writeError(w, http.StatusNotFound, "slot_not_found", err.Error())
			case errors.Is(err, booking.ErrSlotBooked):
				writeError(w, http.StatusConflict, "slot_booked", "cannot delete a slot that is already booked")
			default:
				writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			}
			return
		}

		writeJSON(w, http.StatusOK, map[string]string{"message": "time slot deleted"})
	}
}

func listServicesHandler(svc *booking.AdminService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		admin, ok := adminFromRequest(w, r)
		if !ok {
			return
		}

		services, err := svc.ListServices(r.Context(), admin)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}

		resp := make([]ServiceResponse, 0, len(services))
		for _, s := range services {
			resp = append(resp, ServiceResponse{ID: s.ID, HospitalID: s.HospitalID, Name: s.Name, Price: s.Price})
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func createServiceHandler(svc *booking.AdminService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		admin, ok := adminFromRequest(w, r)
		if !ok {
			return
		}

		var req CreateServiceRequest
		if err := decodeAndValidate(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", err.Error())
			return
		}

		created, err := svc.CreateService(r.Context(), admin, req.Name, req.Price)
		if err != nil {
			switch {
			case errors.Is(err, booking.ErrInvalidServiceName), errors.Is(err, booking.ErrInvalidPrice):
				writeError(w, http.StatusBadRequest, "invalid_service", err.Error())
			case errors.Is(err, booking.ErrDuplicateService):
				writeError(w, http.StatusConflict, "duplicate_service", err.Error())
			default:
				writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			}
			return
		}

		writeJSON(w, http.StatusCreated, ServiceResponse{
			ID: created.ID, HospitalID: created.HospitalID, Name: created.Name, Price: created.Price,
		})
	}
}

func deleteServiceHandler(svc *booking.AdminService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		admin, ok := adminFromRequest(w, r)
		if !ok {
			return
		}

		serviceID, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_service_id", "id must be a valid UUID")
			return
		}

		if err := svc.DeleteService(r.Context(), admin, serviceID); err != nil {
			switch {
			case errors.Is(err, booking.ErrServiceNotFound):
				writeError(w, http.StatusNotFound, "service_not_found", err.Error())
			case errors.Is(err, booking.ErrServiceInUse):
				writeError(w, http.StatusConflict, "service_in_use", "service is linked to existing appointments")
			default:
				writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			}
			return
		}

		writeJSON(w, http.StatusOK, map[string]string{"message": "service deleted"})
	}
}
