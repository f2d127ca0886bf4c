package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB is the pgxpool.Pool surface the repository uses; tests substitute a
// pgxmock pool.
type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type PgRepository struct {
	db DB
}

func NewPgRepository(db DB) *PgRepository {
	return &PgRepository{db: db}
}

const appointmentColumns = `id, patient_id, hospital_id, doctor_id, service_id, visit_type,
		start_time, end_time, status, payment_status,
		payment_order_id, payment_transaction_id, payment_signature,
		video_link, notes, created_at, updated_at`

// Helpers

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	err := row.Scan(
		&a.ID,
		&a.PatientID,
		&a.HospitalID,
		&a.DoctorID,
		&a.ServiceID,
		&a.VisitType,
		&a.StartTime,
		&a.EndTime,
		&a.Status,
		&a.PaymentStatus,
		&a.PaymentOrderID,
		&a.PaymentTransactionID,
		&a.PaymentSignature,
		&a.VideoLink,
		&a.Notes,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}
	return &a, nil
}

func scanSlot(row pgx.Row) (*TimeSlot, error) {
	var s TimeSlot
	err := row.Scan(
		&s.ID,
		&s.HospitalID,
		&s.DoctorID,
		&s.StartTime,
		&s.EndTime,
		&s.IsBooked,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSlotNotFound
		}
		return nil, err
	}
	return &s, nil
}

func scanService(row pgx.Row) (*MedicalService, error) {
	var s MedicalService
	err := row.Scan(
		&s.ID,
		&s.HospitalID,
		&s.Name,
		&s.Price,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrServiceNotFound
		}
		return nil, err
	}
	return &s, nil
}

func scanAppointmentDetail(row pgx.Row) (*AppointmentDetail, error) {
	var d AppointmentDetail
	err := row.Scan(
		&d.ID,
		&d.PatientID,
		&d.HospitalID,
		&d.DoctorID,
		&d.ServiceID,
		&d.VisitType,
		&d.StartTime,
		&d.EndTime,
		&d.Status,
		&d.PaymentStatus,
		&d.PaymentOrderID,
		&d.PaymentTransactionID,
		&d.PaymentSignature,
		&d.VideoLink,
		&d.Notes,
		&d.CreatedAt,
		&d.UpdatedAt,
		&d.PatientName,
		&d.PatientEmail,
		&d.DoctorName,
		&d.DoctorSpecialty,
		&d.ServiceName,
		&d.ServicePrice,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}
	return &d, nil
}

// Lookups

func (r *PgRepository) GetServiceByID(ctx context.Context, id uuid.UUID) (*MedicalService, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id, hospital_id, name, price, created_at, updated_at
		FROM services
		WHERE id = $1
	`, id)
	return scanService(row)
}

func (r *PgRepository) GetSlotByID(ctx context.Context, id uuid.UUID) (*TimeSlot, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id, hospital_id, doctor_id, start_time, end_time, is_booked, created_at, updated_at
		FROM time_slots
		WHERE id = $1
	`, id)
	return scanSlot(row)
}

func (r *PgRepository) GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
	`, id)
	return scanAppointment(row)
}

func (r *PgRepository) GetAppointmentForHospital(ctx context.Context, id, hospitalID uuid.UUID) (*Appointment, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1 AND hospital_id = $2
	`, id, hospitalID)
	return scanAppointment(row)
}

func (r *PgRepository) GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	var p Patient
	err := r.db.QueryRow(ctx, `
		SELECT id, name, email, created_at, updated_at
		FROM patients
		WHERE id = $1
	`, id).Scan(&p.ID, &p.Name, &p.Email, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPatientNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (r *PgRepository) GetDoctorForHospital(ctx context.Context, id, hospitalID uuid.UUID) (*Doctor, error) {
	var d Doctor
	err := r.db.QueryRow(ctx, `
		SELECT id, hospital_id, name, specialty, created_at, updated_at
		FROM doctors
		WHERE id = $1 AND hospital_id = $2
	`, id, hospitalID).Scan(&d.ID, &d.HospitalID, &d.Name, &d.Specialty, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDoctorNotFound
		}
		return nil, err
	}
	return &d, nil
}

// Patient surface

func (r *PgRepository) ListAvailableSlots(ctx context.Context, hospitalID uuid.UUID, doctorID *uuid.UUID, from, to time.Time) ([]TimeSlot, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, hospital_id, doctor_id, start_time, end_time, is_booked, created_at, updated_at
		FROM time_slots
		WHERE hospital_id = $1
		  AND doctor_id IS NOT DISTINCT FROM $2
		  AND is_booked = false
		  AND start_time >= $3
		  AND start_time < $4
		ORDER BY start_time ASC
	`, hospitalID, doctorID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []TimeSlot
	for rows.Next() {
		s, err := scanSlot(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *s)
	}
	return result, rows.Err()
}

const detailQuery = `
		SELECT a.id, a.patient_id, a.hospital_id, a.doctor_id, a.service_id, a.visit_type,
		       a.start_time, a.end_time, a.status, a.payment_status,
		       a.payment_order_id, a.payment_transaction_id, a.payment_signature,
		       a.video_link, a.notes, a.created_at, a.updated_at,
		       p.name, p.email,
		       d.name, d.specialty,
		       s.name, s.price
		FROM appointments a
		JOIN patients p ON p.id = a.patient_id
		LEFT JOIN doctors d ON d.id = a.doctor_id
		JOIN services s ON s.id = a.service_id`

func (r *PgRepository) ListAppointmentsByPatient(ctx context.Context, patientID uuid.UUID) ([]AppointmentDetail, error) {
	rows, err := r.db.Query(ctx, detailQuery+`
		WHERE a.patient_id = $1
		ORDER BY a.created_at DESC
	`, patientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectDetails(rows)
}

func (r *PgRepository) ListPaidAppointments(ctx context.Context, hospitalID uuid.UUID) ([]AppointmentDetail, error) {
	rows, err := r.db.Query(ctx, detailQuery+`
		WHERE a.hospital_id = $1 AND a.payment_status = 'PAID'
		ORDER BY a.start_time ASC
	`, hospitalID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectDetails(rows)
}

func collectDetails(rows pgx.Rows) ([]AppointmentDetail, error) {
	var result []AppointmentDetail
	for rows.Next() {
		d, err := scanAppointmentDetail(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *d)
	}
	return result, rows.Err()
}

// Booking critical section

func (r *PgRepository) ClaimSlotAndCreateAppointment(ctx context.Context, draft AppointmentDraft) (*Appointment, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin booking tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// The row-count gate here is the single claim authority. Reading the
	// flag first and updating after would reopen the race between two
	// patients picking the same slot.
	tag, err := tx.Exec(ctx, `
		UPDATE time_slots
		SET is_booked = true,
		    updated_at = now()
		WHERE id = $1
		  AND is_booked = false
	`, draft.TimeSlotID)
	if err != nil {
		return nil, fmt.Errorf("claim slot: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, ErrSlotUnavailable
	}

	id := uuid.New()
	row := tx.QueryRow(ctx, `
		INSERT INTO appointments (
			id, patient_id, hospital_id, doctor_id, service_id, visit_type,
			start_time, end_time, status, payment_status, payment_order_id, notes,
			created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 'PENDING', 'PENDING', $9, $10, now(), now())
		RETURNING `+appointmentColumns+`
	`, id, draft.PatientID, draft.HospitalID, draft.DoctorID, draft.ServiceID, draft.VisitType,
		draft.StartTime, draft.EndTime, draft.PaymentOrderID, draft.Notes)

	appt, err := scanAppointment(row)
	if err != nil {
		return nil, fmt.Errorf("create appointment: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit booking tx: %w", err)
	}
	return appt, nil
}

func (r *PgRepository) ReleaseSlot(ctx context.Context, rel SlotRelease) error {
	_, err := r.db.Exec(ctx, releaseSlotSQL, rel.HospitalID, rel.DoctorID, rel.StartTime, rel.EndTime)
	if err != nil {
		return fmt.Errorf("release slot: %w", err)
	}
	return nil
}

const releaseSlotSQL = `
		UPDATE time_slots
		SET is_booked = false,
		    updated_at = now()
		WHERE hospital_id = $1
		  AND doctor_id IS NOT DISTINCT FROM $2
		  AND start_time = $3
		  AND end_time = $4
		  AND is_booked = true`

// Payment settlement

func (r *PgRepository) MarkPaid(ctx context.Context, id uuid.UUID, orderID, transactionID, signature string) (*Appointment, error) {
	row := r.db.QueryRow(ctx, `
		UPDATE appointments
		SET payment_status = 'PAID',
		    payment_transaction_id = $3,
		    payment_signature = $4,
		    updated_at = now()
		WHERE id = $1
		  AND payment_order_id = $2
		RETURNING `+appointmentColumns+`
	`, id, orderID, transactionID, signature)
	return scanAppointment(row)
}

func (r *PgRepository) MarkFailedAndRelease(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin rollback tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	row := tx.QueryRow(ctx, `
		UPDATE appointments
		SET payment_status = 'FAILED',
		    status = 'CANCELED',
		    updated_at = now()
		WHERE id = $1
		  AND payment_status = 'PENDING'
		RETURNING `+appointmentColumns+`
	`, id)

	appt, err := scanAppointment(row)
	if err != nil {
		return nil, err
	}

	if _, err := tx.Exec(ctx, releaseSlotSQL, appt.HospitalID, appt.DoctorID, appt.StartTime, appt.EndTime); err != nil {
		return nil, fmt.Errorf("release slot: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit rollback tx: %w", err)
	}
	return appt, nil
}

// Admin reconciliation

func (r *PgRepository) UpdateAppointmentStatus(ctx context.Context, params UpdateStatusParams) (*Appointment, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin status tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	row := tx.QueryRow(ctx, `
		UPDATE appointments
		SET status = $3,
		    video_link = COALESCE($4, video_link),
		    updated_at = now()
		WHERE id = $1
		  AND hospital_id = $2
		RETURNING `+appointmentColumns+`
	`, params.AppointmentID, params.HospitalID, params.Status, params.VideoLink)

	appt, err := scanAppointment(row)
	if err != nil {
		return nil, err
	}

	if params.ReleaseSlot {
		if _, err := tx.Exec(ctx, releaseSlotSQL, appt.HospitalID, appt.DoctorID, appt.StartTime, appt.EndTime); err != nil {
			return nil, fmt.Errorf("release slot: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit status tx: %w", err)
	}
	return appt, nil
}

// Admin slot management

func (r *PgRepository) ListSlotsForHospital(ctx context.Context, hospitalID uuid.UUID) ([]SlotWithDoctor, error) {
	rows, err := r.db.Query(ctx, `
		SELECT t.id, t.hospital_id, t.doctor_id, t.start_time, t.end_time, t.is_booked,
		       t.created_at, t.updated_at, d.name, d.specialty
		FROM time_slots t
		LEFT JOIN doctors d ON d.id = t.doctor_id
		WHERE t.hospital_id = $1
		ORDER BY t.start_time ASC
	`, hospitalID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []SlotWithDoctor
	for rows.Next() {
		var s SlotWithDoctor
		err := rows.Scan(
			&s.ID, &s.HospitalID, &s.DoctorID, &s.StartTime, &s.EndTime, &s.IsBooked,
			&s.CreatedAt, &s.UpdatedAt, &s.DoctorName, &s.DoctorSpecialty,
		)
		if err != nil {
			return nil, err
		}
		result = append(result, s)
	}
	return result, rows.Err()
}

func (r *PgRepository) CreateSlot(ctx context.Context, hospitalID uuid.UUID, doctorID *uuid.UUID, start, end time.Time) (*TimeSlot, error) {
	id := uuid.New()
	row := r.db.QueryRow(ctx, `
		INSERT INTO time_slots (id, hospital_id, doctor_id, start_time, end_time, is_booked, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, false, now(), now())
		RETURNING id, hospital_id, doctor_id, start_time, end_time, is_booked, created_at, updated_at
	`, id, hospitalID, doctorID, start, end)
	return scanSlot(row)
}

func (r *PgRepository) DeleteSlot(ctx context.Context, id, hospitalID uuid.UUID) error {
	slot, err := r.getSlotForHospital(ctx, id, hospitalID)
	if err != nil {
		return err
	}
	if slot.IsBooked {
		return ErrSlotBooked
	}

	// The delete re-checks is_booked so a claim landing between the read
	// and the delete cannot drop a booked slot.
	tag, err := r.db.Exec(ctx, `
		DELETE FROM time_slots
		WHERE id = $1 AND hospital_id = $2 AND is_booked = false
	`, id, hospitalID)
	if err != nil {
		return fmt.Errorf("delete slot: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrSlotBooked
	}
	return nil
}

func (r *PgRepository) getSlotForHospital(ctx context.Context, id, hospitalID uuid.UUID) (*TimeSlot, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id, hospital_id, doctor_id, start_time, end_time, is_booked, created_at, updated_at
		FROM time_slots
		WHERE id = $1 AND hospital_id = $2
	`, id, hospitalID)
	return scanSlot(row)
}

func (r *PgRepository) PurgeExpiredUnbooked(ctx context.Context, hospitalID uuid.UUID, asOf time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx, `
		DELETE FROM time_slots
		WHERE hospital_id = $1
		  AND is_booked = false
		  AND end_time < $2
	`, hospitalID, asOf)
	if err != nil {
		return 0, fmt.Errorf("purge expired slots: %w", err)
	}
	return tag.RowsAffected(), nil
}

// Admin service management

func (r *PgRepository) ListServices(ctx context.Context, hospitalID uuid.UUID) ([]MedicalService, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, hospital_id, name, price, created_at, updated_at
		FROM services
		WHERE hospital_id = $1
		ORDER BY name ASC
	`, hospitalID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []MedicalService
	for rows.Next() {
		s, err := scanService(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *s)
	}
	return result, rows.Err()
}

func (r *PgRepository) CreateService(ctx context.Context, hospitalID uuid.UUID, name string, price int64) (*MedicalService, error) {
	id := uuid.New()
	row := r.db.QueryRow(ctx, `
		INSERT INTO services (id, hospital_id, name, price, created_at, updated_at)
		VALUES ($1, $2, $3, $4, now(), now())
		RETURNING id, hospital_id, name, price, created_at, updated_at
	`, id, hospitalID, name, price)

	svc, err := scanService(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, ErrDuplicateService
		}
		return nil, err
	}
	return svc, nil
}

func (r *PgRepository) DeleteService(ctx context.Context, id, hospitalID uuid.UUID) error {
	if _, err := r.serviceForHospital(ctx, id, hospitalID); err != nil {
		return err
	}

	var count int64
	if err := r.db.QueryRow(ctx, `
		SELECT count(*) FROM appointments WHERE service_id = $1
	`, id).Scan(&count); err != nil {
		return fmt.Errorf("count service appointments: %w", err)
	}
	if count > 0 {
		return ErrServiceInUse
	}

	if _, err := r.db.Exec(ctx, `
		DELETE FROM services WHERE id = $1 AND hospital_id = $2
	`, id, hospitalID); err != nil {
		return fmt.Errorf("delete service: %w", err)
	}
	return nil
}

func (r *PgRepository) serviceForHospital(ctx context.Context, id, hospitalID uuid.UUID) (*MedicalService, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id, hospital_id, name, price, created_at, updated_at
		FROM services
		WHERE id = $1 AND hospital_id = $2
	`, id, hospitalID)
	return scanService(row)
}

// Reaper

func (r *PgRepository) FindStalePending(ctx context.Context, olderThan time.Time) ([]Appointment, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE status = 'PENDING'
		  AND payment_status = 'PENDING'
		  AND created_at < $1
	`, olderThan)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}
	return result, rows.Err()
}
