package booking

import (
	"time"

	"github.com/google/uuid"
)

type AppointmentStatus string

const (
	StatusPending   AppointmentStatus = "PENDING"
	StatusConfirmed AppointmentStatus = "CONFIRMED"
	StatusCompleted AppointmentStatus = "COMPLETED"
	StatusCanceled  AppointmentStatus = "CANCELED"
)

// ValidAppointmentStatus reports whether s is a status an admin may set.
func ValidAppointmentStatus(s AppointmentStatus) bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusCompleted, StatusCanceled:
		return true
	}
	return false
}

type PaymentStatus string

const (
	PaymentPending PaymentStatus = "PENDING"
	PaymentPaid    PaymentStatus = "PAID"
	PaymentFailed  PaymentStatus = "FAILED"
)

type VisitType string

const (
	VisitInPerson VisitType = "IN_PERSON"
	VisitVideo    VisitType = "VIDEO_CALL"
)

func ValidVisitType(t VisitType) bool {
	return t == VisitInPerson || t == VisitVideo
}

type Hospital struct {
	ID        uuid.UUID
	Name      string
	City      *string
	Status    string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Doctor struct {
	ID         uuid.UUID
	HospitalID uuid.UUID
	Name       string
	Specialty  *string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

type Patient struct {
	ID        uuid.UUID
	Name      string
	Email     *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// MedicalService is a priced offering of a hospital, a consultation type a
// patient books.
type MedicalService struct {
	ID         uuid.UUID
	HospitalID uuid.UUID
	Name       string
	Price      int64 // minor currency units
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// TimeSlot is a bookable window. A nil DoctorID means a shared slot not tied
// to one practitioner. IsBooked is the single concurrency gate: a slot flips
// false to true exactly once per successful booking.
type TimeSlot struct {
	ID         uuid.UUID
	HospitalID uuid.UUID
	DoctorID   *uuid.UUID
	StartTime  time.Time
	EndTime    time.Time
	IsBooked   bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Appointment is the system of record for a booking attempt. Status and
// PaymentStatus move independently: a PAID appointment stays PENDING until
// the hospital confirms it.
type Appointment struct {
	ID                   uuid.UUID
	PatientID            uuid.UUID
	HospitalID           uuid.UUID
	DoctorID             *uuid.UUID
	ServiceID            uuid.UUID
	VisitType            VisitType
	StartTime            time.Time
	EndTime              time.Time
	Status               AppointmentStatus
	PaymentStatus        PaymentStatus
	PaymentOrderID       *string
	PaymentTransactionID *string
	PaymentSignature     *string
	VideoLink            *string
	Notes                *string
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// AppointmentDetail joins the names an admin or patient wants next to the
// raw appointment row.
type AppointmentDetail struct {
	Appointment
	PatientName     string
	PatientEmail    *string
	DoctorName      *string
	DoctorSpecialty *string
	ServiceName     string
	ServicePrice    int64
}

// SlotWithDoctor is an admin-listing row.
type SlotWithDoctor struct {
	TimeSlot
	DoctorName      *string
	DoctorSpecialty *string
}

// AppointmentDraft carries everything needed to claim a slot and open the
// appointment record in one transaction.
type AppointmentDraft struct {
	PatientID      uuid.UUID
	HospitalID     uuid.UUID
	DoctorID       *uuid.UUID
	ServiceID      uuid.UUID
	TimeSlotID     uuid.UUID
	VisitType      VisitType
	StartTime      time.Time
	EndTime        time.Time
	Notes          *string
	PaymentOrderID string
}
