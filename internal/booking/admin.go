package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/careslot/hospital-booking/internal/auth"
	"github.com/careslot/hospital-booking/internal/metrics"
)

var (
	ErrInvalidStatus      = errors.New("invalid appointment status")
	ErrInvalidSlotWindow  = errors.New("slot end time must be after start time")
	ErrInvalidServiceName = errors.New("service name is required")
)

// AdminService is the hospital admin's reconciliation surface. Every
// operation is scoped by the admin's hospital id; appointments and slots of
// other hospitals are indistinguishable from missing ones.
type AdminService struct {
	repo          Repository
	metrics       *metrics.Metrics
	publicBaseURL string
	logger        zerolog.Logger
}

func NewAdminService(repo Repository, m *metrics.Metrics, publicBaseURL string, logger zerolog.Logger) *AdminService {
	if m == nil {
		m = metrics.New(nil)
	}
	return &AdminService{
		repo:          repo,
		metrics:       m,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
		logger:        logger.With().Str("component", "admin").Logger(),
	}
}

// ListPaidAppointments is the admin work queue: every PAID appointment of
// the hospital with patient, doctor and service details, earliest first.
func (s *AdminService) ListPaidAppointments(ctx context.Context, admin auth.AdminIdentity) ([]AppointmentDetail, error) {
	appts, err := s.repo.ListPaidAppointments(ctx, admin.HospitalID)
	if err != nil {
		return nil, fmt.Errorf("list paid appointments: %w", err)
	}
	return appts, nil
}

// SetStatus moves an appointment to a new administrative status. Confirming
// a video visit mints its consultation link; canceling releases the slot.
func (s *AdminService) SetStatus(ctx context.Context, admin auth.AdminIdentity, appointmentID uuid.UUID, status AppointmentStatus) (*Appointment, error) {
	if !ValidAppointmentStatus(status) {
		return nil, ErrInvalidStatus
	}

	appt, err := s.repo.GetAppointmentForHospital(ctx, appointmentID, admin.HospitalID)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load appointment: %w", err)
	}

	var videoLink *string
	if status == StatusConfirmed && appt.VisitType == VisitVideo && appt.VideoLink == nil {
		link := fmt.Sprintf("%s/consult/%s", s.publicBaseURL, uuid.NewString())
		videoLink = &link
	}

	updated, err := s.repo.UpdateAppointmentStatus(ctx, UpdateStatusParams{
		AppointmentID: appointmentID,
		HospitalID:    admin.HospitalID,
		Status:        status,
		VideoLink:     videoLink,
		ReleaseSlot:   status == StatusCanceled,
	})
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("update appointment status: %w", err)
	}

	if status == StatusCanceled {
		s.metrics.SlotsReleased.Inc()
	}

	s.logger.Info().
		Str("appointment_id", updated.ID.String()).
		Str("hospital_id", admin.HospitalID.String()).
		Str("status", string(status)).
		Msg("appointment status updated")

	return updated, nil
}

// ListSlots purges expired unbooked slots of the hospital and then returns
// the remaining ones. Purging here keeps the admin view tidy; patient
// listings never depend on it because they filter by date anyway.
func (s *AdminService) ListSlots(ctx context.Context, admin auth.AdminIdentity) ([]SlotWithDoctor, error) {
	now := time.Now().UTC()
	startOfToday := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	purged, err := s.repo.PurgeExpiredUnbooked(ctx, admin.HospitalID, startOfToday)
	if err != nil {
		return nil, fmt.Errorf("purge expired slots: %w", err)
	}
	if purged > 0 {
		s.logger.Info().Int64("purged", purged).Str("hospital_id", admin.HospitalID.String()).Msg("expired unbooked slots purged")
	}

	slots, err := s.repo.ListSlotsForHospital(ctx, admin.HospitalID)
	if err != nil {
		return nil, fmt.Errorf("list slots: %w", err)
	}
	return slots, nil
}

// CreateSlot opens a new bookable window. A nil doctorID creates a shared
// slot; otherwise the doctor must belong to the admin's hospital.
func (s *AdminService) CreateSlot(ctx context.Context, admin auth.AdminIdentity, doctorID *uuid.UUID, start, end time.Time) (*TimeSlot, error) {
	if !start.Before(end) {
		return nil, ErrInvalidSlotWindow
	}

	if doctorID != nil {
		if _, err := s.repo.GetDoctorForHospital(ctx, *doctorID, admin.HospitalID); err != nil {
			if errors.Is(err, ErrDoctorNotFound) {
				return nil, err
			}
			return nil, fmt.Errorf("load doctor: %w", err)
		}
	}

	slot, err := s.repo.CreateSlot(ctx, admin.HospitalID, doctorID, start, end)
	if err != nil {
		return nil, fmt.Errorf("create slot: %w", err)
	}
	return slot, nil
}

// DeleteSlot removes an unbooked slot of the admin's hospital.
func (s *AdminService) DeleteSlot(ctx context.Context, admin auth.AdminIdentity, slotID uuid.UUID) error {
	if err := s.repo.DeleteSlot(ctx, slotID, admin.HospitalID); err != nil {
		if errors.Is(err, ErrSlotNotFound) || errors.Is(err, ErrSlotBooked) {
			return err
		}
		return fmt.Errorf("delete slot: %w", err)
	}
	return nil
}

func (s *AdminService) ListServices(ctx context.Context, admin auth.AdminIdentity) ([]MedicalService, error) {
	services, err := s.repo.ListServices(ctx, admin.HospitalID)
	if err != nil {
		return nil, fmt.Errorf("list services: %w", err)
	}
	return services, nil
}

func (s *AdminService) CreateService(ctx context.Context, admin auth.AdminIdentity, name string, price int64) (*MedicalService, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrInvalidServiceName
	}
	if price <= 0 {
		return nil, ErrInvalidPrice
	}

	svc, err := s.repo.CreateService(ctx, admin.HospitalID, name, price)
	if err != nil {
		if errors.Is(err, ErrDuplicateService) {
			return nil, err
		}
		return nil, fmt.Errorf("create service: %w", err)
	}
	return svc, nil
}

// DeleteService refuses to remove a service that appointments reference.
func (s *AdminService) DeleteService(ctx context.Context, admin auth.AdminIdentity, serviceID uuid.UUID) error {
	if err := s.repo.DeleteService(ctx, serviceID, admin.HospitalID); err != nil {
		if errors.Is(err, ErrServiceNotFound) || errors.Is(err, ErrServiceInUse) {
			return err
		}
		return fmt.Errorf("delete service: %w", err)
	}
	return nil
}
