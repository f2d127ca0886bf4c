package booking

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrHospitalNotFound    = errors.New("hospital not found")
	ErrDoctorNotFound      = errors.New("doctor not found")
	ErrPatientNotFound     = errors.New("patient not found")
	ErrServiceNotFound     = errors.New("service not found")
	ErrSlotNotFound        = errors.New("time slot not found")
	ErrAppointmentNotFound = errors.New("appointment not found")

	ErrSlotUnavailable  = errors.New("time slot is already booked")
	ErrSlotBooked       = errors.New("time slot is booked and cannot be deleted")
	ErrDuplicateService = errors.New("service with this name already exists")
	ErrServiceInUse     = errors.New("service is referenced by existing appointments")
)

// SlotRelease identifies the slot bound to an appointment by its booking
// coordinates rather than slot id; the id is not threaded through payment
// callbacks.
type SlotRelease struct {
	HospitalID uuid.UUID
	DoctorID   *uuid.UUID
	StartTime  time.Time
	EndTime    time.Time
}

type UpdateStatusParams struct {
	AppointmentID uuid.UUID
	HospitalID    uuid.UUID
	Status        AppointmentStatus
	VideoLink     *string
	// ReleaseSlot frees the matching slot in the same transaction; set when
	// the new status is CANCELED.
	ReleaseSlot bool
}

// Repository contains all DB interactions needed by the services.
type Repository interface {
	GetServiceByID(ctx context.Context, id uuid.UUID) (*MedicalService, error)
	GetSlotByID(ctx context.Context, id uuid.UUID) (*TimeSlot, error)
	GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	GetAppointmentForHospital(ctx context.Context, id, hospitalID uuid.UUID) (*Appointment, error)
	GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	GetDoctorForHospital(ctx context.Context, id, hospitalID uuid.UUID) (*Doctor, error)

	// Patient surface
	ListAvailableSlots(ctx context.Context, hospitalID uuid.UUID, doctorID *uuid.UUID, from, to time.Time) ([]TimeSlot, error)
	ListAppointmentsByPatient(ctx context.Context, patientID uuid.UUID) ([]AppointmentDetail, error)

	// Booking critical section: flips is_booked false->true with a
	// conditional update and inserts the appointment in one transaction.
	// Returns ErrSlotUnavailable when the conditional update matches no row.
	ClaimSlotAndCreateAppointment(ctx context.Context, draft AppointmentDraft) (*Appointment, error)

	// ReleaseSlot is idempotent; releasing an already-open slot is a no-op.
	ReleaseSlot(ctx context.Context, rel SlotRelease) error

	// MarkPaid matches both appointment id and stored order id, defending
	// against forged or stale callbacks.
	MarkPaid(ctx context.Context, id uuid.UUID, orderID, transactionID, signature string) (*Appointment, error)

	// MarkFailedAndRelease cancels a still-unpaid appointment, marks the
	// payment failed and frees its slot in one transaction. Returns
	// ErrAppointmentNotFound when no pending-payment row matches, so a
	// settled payment is never rolled back.
	MarkFailedAndRelease(ctx context.Context, id uuid.UUID) (*Appointment, error)

	// Admin reconciliation
	ListPaidAppointments(ctx context.Context, hospitalID uuid.UUID) ([]AppointmentDetail, error)
	UpdateAppointmentStatus(ctx context.Context, params UpdateStatusParams) (*Appointment, error)

	// Admin slot management
	ListSlotsForHospital(ctx context.Context, hospitalID uuid.UUID) ([]SlotWithDoctor, error)
	CreateSlot(ctx context.Context, hospitalID uuid.UUID, doctorID *uuid.UUID, start, end time.Time) (*TimeSlot, error)
	DeleteSlot(ctx context.Context, id, hospitalID uuid.UUID) error
	PurgeExpiredUnbooked(ctx context.Context, hospitalID uuid.UUID, asOf time.Time) (int64, error)

	// Admin service management
	ListServices(ctx context.Context, hospitalID uuid.UUID) ([]MedicalService, error)
	CreateService(ctx context.Context, hospitalID uuid.UUID, name string, price int64) (*MedicalService, error)
	DeleteService(ctx context.Context, id, hospitalID uuid.UUID) error

	// Reaper
	FindStalePending(ctx context.Context, olderThan time.Time) ([]Appointment, error)
}
