package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/careslot/hospital-booking/internal/auth"
	"github.com/careslot/hospital-booking/internal/metrics"
	"github.com/careslot/hospital-booking/internal/notify"
	"github.com/careslot/hospital-booking/internal/payment"
	redisclient "github.com/careslot/hospital-booking/internal/redis"
)

// Currency is fixed; multi-currency is out of scope.
const Currency = "INR"

const dedupTTL = 24 * time.Hour

var (
	ErrInvalidPrice     = errors.New("service price must be positive")
	ErrGateway          = errors.New("payment gateway request failed")
	ErrInvalidSignature = errors.New("payment signature verification failed")
	ErrSlotBeingBooked  = errors.New("slot is currently being booked, please retry")
)

type BookingInput struct {
	HospitalID uuid.UUID
	DoctorID   *uuid.UUID
	ServiceID  uuid.UUID
	TimeSlotID uuid.UUID
	VisitType  VisitType
	Notes      *string
}

type BookingResult struct {
	Appointment *Appointment
	Order       *payment.Order
}

type VerifyInput struct {
	AppointmentID uuid.UUID
	OrderID       string
	PaymentID     string
	Signature     string
}

// Service orchestrates the booking workflow: claim a slot, open the
// appointment, request a provider order and reconcile the callback.
type Service struct {
	repo     Repository
	gateway  payment.Gateway
	locker   redisclient.Locker
	dedup    redisclient.Deduper
	notifier notify.Sender
	metrics  *metrics.Metrics
	logger   zerolog.Logger
}

func NewService(repo Repository, gateway payment.Gateway, locker redisclient.Locker, dedup redisclient.Deduper, notifier notify.Sender, m *metrics.Metrics, logger zerolog.Logger) *Service {
	if m == nil {
		m = metrics.New(nil)
	}
	if notifier == nil {
		notifier = notify.NoopSender{}
	}
	if dedup == nil {
		dedup = redisclient.NoopDeduper{}
	}
	return &Service{
		repo:     repo,
		gateway:  gateway,
		locker:   locker,
		dedup:    dedup,
		notifier: notifier,
		metrics:  m,
		logger:   logger.With().Str("component", "booking").Logger(),
	}
}

// ListAvailableSlots returns the unbooked slots of a hospital on one UTC
// day, optionally narrowed to a doctor (nil means shared slots).
func (s *Service) ListAvailableSlots(ctx context.Context, hospitalID uuid.UUID, doctorID *uuid.UUID, day time.Time) ([]TimeSlot, error) {
	from := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	to := from.Add(24 * time.Hour)
	slots, err := s.repo.ListAvailableSlots(ctx, hospitalID, doctorID, from, to)
	if err != nil {
		return nil, fmt.Errorf("list available slots: %w", err)
	}
	return slots, nil
}

// ListMyAppointments returns the calling patient's appointments.
func (s *Service) ListMyAppointments(ctx context.Context, ident auth.Identity) ([]AppointmentDetail, error) {
	appts, err := s.repo.ListAppointmentsByPatient(ctx, ident.PatientID)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	return appts, nil
}

// InitiateBooking validates the request, creates the provider order and
// then, in one transaction, claims the slot and opens the appointment.
// Exactly one of N concurrent calls against the same slot succeeds.
func (s *Service) InitiateBooking(ctx context.Context, ident auth.Identity, input BookingInput) (*BookingResult, error) {
	svc, err := s.repo.GetServiceByID(ctx, input.ServiceID)
	if err != nil {
		if errors.Is(err, ErrServiceNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load service: %w", err)
	}

	slot, err := s.repo.GetSlotByID(ctx, input.TimeSlotID)
	if err != nil {
		if errors.Is(err, ErrSlotNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load slot: %w", err)
	}
	if slot.HospitalID != input.HospitalID {
		return nil, ErrSlotNotFound
	}
	if slot.IsBooked {
		s.metrics.BookingConflicts.Inc()
		return nil, ErrSlotUnavailable
	}
	if svc.Price <= 0 {
		return nil, ErrInvalidPrice
	}

	receipt := fmt.Sprintf("receipt_appointment_%d", time.Now().UnixMilli())
	order, err := s.gateway.CreateOrder(ctx, svc.Price, Currency, receipt)
	if err != nil {
		s.logger.Error().Err(err).Str("service_id", svc.ID.String()).Msg("order creation failed")
		return nil, fmt.Errorf("%w: %v", ErrGateway, err)
	}

	draft := AppointmentDraft{
		PatientID:      ident.PatientID,
		HospitalID:     slot.HospitalID,
		DoctorID:       slot.DoctorID,
		ServiceID:      svc.ID,
		TimeSlotID:     slot.ID,
		VisitType:      input.VisitType,
		StartTime:      slot.StartTime,
		EndTime:        slot.EndTime,
		Notes:          input.Notes,
		PaymentOrderID: order.ID,
	}

	var created *Appointment
	err = s.locker.WithSlotLock(ctx, slot.ID, func(lockCtx context.Context) error {
		appt, err := s.repo.ClaimSlotAndCreateAppointment(lockCtx, draft)
		if err != nil {
			return err
		}
		created = appt
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrSlotUnavailable) || errors.Is(err, redisclient.ErrLockNotAcquired) {
			s.metrics.BookingConflicts.Inc()
			// The provider order stays unreferenced and expires on the
			// provider side; log it so it can be reconciled manually.
			s.logger.Warn().
				Str("order_id", order.ID).
				Str("slot_id", slot.ID.String()).
				Msg("slot lost to concurrent booking, payment order abandoned")
			if errors.Is(err, redisclient.ErrLockNotAcquired) {
				return nil, ErrSlotBeingBooked
			}
			return nil, ErrSlotUnavailable
		}
		return nil, fmt.Errorf("claim slot: %w", err)
	}

	s.metrics.BookingsInitiated.Inc()
	s.logger.Info().
		Str("appointment_id", created.ID.String()).
		Str("slot_id", slot.ID.String()).
		Str("order_id", order.ID).
		Msg("booking initiated")

	s.sendNotification(ctx, created, "Appointment booked",
		fmt.Sprintf("Your appointment on %s is reserved. Complete the payment to keep the slot.",
			created.StartTime.Format(time.RFC1123)))

	return &BookingResult{Appointment: created, Order: order}, nil
}

// VerifyPayment settles a provider callback. A valid signature marks the
// appointment PAID (administrative status stays PENDING for the hospital);
// an invalid one cancels the appointment and releases the slot while the
// payment is still pending.
func (s *Service) VerifyPayment(ctx context.Context, input VerifyInput) (*Appointment, error) {
	if !s.gateway.VerifySignature(input.OrderID, input.PaymentID, input.Signature) {
		return nil, s.rejectPayment(ctx, input)
	}

	// Provider retries of an already-settled callback short-circuit here;
	// without Redis the order-id guarded update below is equally safe.
	// The key alone is not proof of settlement: if the first attempt died
	// between marking the key and writing the row, the retry must still
	// settle, so a repeat only short-circuits on a recorded PAID row whose
	// stored order id matches the callback.
	first, err := s.dedup.MarkSeen(ctx, "payment:"+input.OrderID+":"+input.PaymentID, dedupTTL)
	if err != nil {
		s.logger.Debug().Err(err).Msg("callback dedup unavailable, continuing")
	} else if !first {
		appt, err := s.repo.GetAppointmentByID(ctx, input.AppointmentID)
		if err == nil && appt.PaymentStatus == PaymentPaid &&
			appt.PaymentOrderID != nil && *appt.PaymentOrderID == input.OrderID {
			return appt, nil
		}
	}

	appt, err := s.repo.MarkPaid(ctx, input.AppointmentID, input.OrderID, input.PaymentID, input.Signature)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			// No appointment matches both id and order id: forged or stale
			// callback referencing someone else's order.
			return nil, err
		}
		return nil, fmt.Errorf("mark paid: %w", err)
	}

	s.metrics.PaymentsVerified.Inc()
	s.logger.Info().
		Str("appointment_id", appt.ID.String()).
		Str("order_id", input.OrderID).
		Msg("payment verified")

	s.sendNotification(ctx, appt, "Payment received",
		"Your payment was verified. The hospital will confirm your appointment shortly.")

	return appt, nil
}

// rejectPayment is the terminal path for a tampered callback: a still
// unpaid appointment is canceled and its slot freed, a settled one is left
// untouched. The caller always gets ErrInvalidSignature, even when the
// rollback itself fails.
func (s *Service) rejectPayment(ctx context.Context, input VerifyInput) error {
	s.metrics.PaymentsRejected.Inc()

	if _, err := s.repo.MarkFailedAndRelease(ctx, input.AppointmentID); err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			// Unknown id, or the payment already settled. A bad signature
			// cannot undo a recorded payment.
			return ErrInvalidSignature
		}
		// The slot is still held by a canceled booking; this needs manual
		// reconciliation, so it gets its own loud log line.
		s.metrics.DanglingSlotReleases.Inc()
		s.logger.Error().Err(err).
			Str("appointment_id", input.AppointmentID.String()).
			Str("order_id", input.OrderID).
			Msg("rollback after invalid signature failed, slot left held")
		return ErrInvalidSignature
	}

	s.metrics.SlotsReleased.Inc()
	s.logger.Warn().
		Str("appointment_id", input.AppointmentID.String()).
		Str("order_id", input.OrderID).
		Msg("invalid payment signature, booking canceled and slot released")
	return ErrInvalidSignature
}

// sendNotification emails the patient best effort. Booking success never
// depends on deliverability.
func (s *Service) sendNotification(ctx context.Context, appt *Appointment, subject, body string) {
	patient, err := s.repo.GetPatientByID(ctx, appt.PatientID)
	if err != nil || patient.Email == nil {
		return
	}
	msg := notify.Message{
		To:      *patient.Email,
		ToName:  patient.Name,
		Subject: subject,
		Body:    body,
	}
	if err := s.notifier.Send(ctx, msg); err != nil {
		s.logger.Error().Err(err).Str("appointment_id", appt.ID.String()).Msg("notification send failed")
	}
}
