package booking

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// memRepo is an in-memory Repository honoring the same claim and release
// semantics as the Postgres implementation, including the conditional
// is_booked transition.
type memRepo struct {
	mu           sync.Mutex
	services     map[uuid.UUID]*MedicalService
	slots        map[uuid.UUID]*TimeSlot
	appointments map[uuid.UUID]*Appointment
	patients     map[uuid.UUID]*Patient
	doctors      map[uuid.UUID]*Doctor
}

func newMemRepo() *memRepo {
	return &memRepo{
		services:     make(map[uuid.UUID]*MedicalService),
		slots:        make(map[uuid.UUID]*TimeSlot),
		appointments: make(map[uuid.UUID]*Appointment),
		patients:     make(map[uuid.UUID]*Patient),
		doctors:      make(map[uuid.UUID]*Doctor),
	}
}

func (m *memRepo) addService(hospitalID uuid.UUID, name string, price int64) *MedicalService {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := &MedicalService{ID: uuid.New(), HospitalID: hospitalID, Name: name, Price: price}
	m.services[s.ID] = s
	return s
}

func (m *memRepo) addSlot(hospitalID uuid.UUID, doctorID *uuid.UUID, start, end time.Time) *TimeSlot {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := &TimeSlot{ID: uuid.New(), HospitalID: hospitalID, DoctorID: doctorID, StartTime: start, EndTime: end}
	m.slots[s.ID] = s
	return s
}

func (m *memRepo) addPatient(name, email string) *Patient {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := &Patient{ID: uuid.New(), Name: name, Email: &email}
	m.patients[p.ID] = p
	return p
}

func (m *memRepo) addDoctor(hospitalID uuid.UUID, name string) *Doctor {
	m.mu.Lock()
	defer m.mu.Unlock()
	d := &Doctor{ID: uuid.New(), HospitalID: hospitalID, Name: name}
	m.doctors[d.ID] = d
	return d
}

func (m *memRepo) slot(id uuid.UUID) TimeSlot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.slots[id]
}

func (m *memRepo) appointment(id uuid.UUID) Appointment {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.appointments[id]
}

func (m *memRepo) GetServiceByID(_ context.Context, id uuid.UUID) (*MedicalService, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.services[id]
	if !ok {
		return nil, ErrServiceNotFound
	}
	out := *s
	return &out, nil
}

func (m *memRepo) GetSlotByID(_ context.Context, id uuid.UUID) (*TimeSlot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.slots[id]
	if !ok {
		return nil, ErrSlotNotFound
	}
	out := *s
	return &out, nil
}

func (m *memRepo) GetAppointmentByID(_ context.Context, id uuid.UUID) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.appointments[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	out := *a
	return &out, nil
}

func (m *memRepo) GetAppointmentForHospital(_ context.Context, id, hospitalID uuid.UUID) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.appointments[id]
	if !ok || a.HospitalID != hospitalID {
		return nil, ErrAppointmentNotFound
	}
	out := *a
	return &out, nil
}

func (m *memRepo) GetPatientByID(_ context.Context, id uuid.UUID) (*Patient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.patients[id]
	if !ok {
		return nil, ErrPatientNotFound
	}
	out := *p
	return &out, nil
}

func (m *memRepo) GetDoctorForHospital(_ context.Context, id, hospitalID uuid.UUID) (*Doctor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.doctors[id]
	if !ok || d.HospitalID != hospitalID {
		return nil, ErrDoctorNotFound
	}
	out := *d
	return &out, nil
}

func (m *memRepo) ListAvailableSlots(_ context.Context, hospitalID uuid.UUID, doctorID *uuid.UUID, from, to time.Time) ([]TimeSlot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []TimeSlot
	for _, s := range m.slots {
		if s.HospitalID != hospitalID || s.IsBooked {
			continue
		}
		if !sameDoctor(s.DoctorID, doctorID) {
			continue
		}
		if s.StartTime.Before(from) || !s.StartTime.Before(to) {
			continue
		}
		result = append(result, *s)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].StartTime.Before(result[j].StartTime) })
	return result, nil
}

func sameDoctor(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func (m *memRepo) ListAppointmentsByPatient(_ context.Context, patientID uuid.UUID) ([]AppointmentDetail, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []AppointmentDetail
	for _, a := range m.appointments {
		if a.PatientID == patientID {
			result = append(result, m.detailLocked(a))
		}
	}
	return result, nil
}

func (m *memRepo) ClaimSlotAndCreateAppointment(_ context.Context, draft AppointmentDraft) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	slot, ok := m.slots[draft.TimeSlotID]
	if !ok || slot.IsBooked {
		return nil, ErrSlotUnavailable
	}
	slot.IsBooked = true

	orderID := draft.PaymentOrderID
	a := &Appointment{
		ID:             uuid.New(),
		PatientID:      draft.PatientID,
		HospitalID:     draft.HospitalID,
		DoctorID:       draft.DoctorID,
		ServiceID:      draft.ServiceID,
		VisitType:      draft.VisitType,
		StartTime:      draft.StartTime,
		EndTime:        draft.EndTime,
		Status:         StatusPending,
		PaymentStatus:  PaymentPending,
		PaymentOrderID: &orderID,
		Notes:          draft.Notes,
		CreatedAt:      time.Now(),
	}
	m.appointments[a.ID] = a
	out := *a
	return &out, nil
}

func (m *memRepo) ReleaseSlot(_ context.Context, rel SlotRelease) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.releaseLocked(rel)
	return nil
}

func (m *memRepo) releaseLocked(rel SlotRelease) {
	for _, s := range m.slots {
		if s.HospitalID == rel.HospitalID &&
			sameDoctor(s.DoctorID, rel.DoctorID) &&
			s.StartTime.Equal(rel.StartTime) &&
			s.EndTime.Equal(rel.EndTime) {
			s.IsBooked = false
		}
	}
}

func (m *memRepo) MarkPaid(_ context.Context, id uuid.UUID, orderID, transactionID, signature string) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.appointments[id]
	if !ok || a.PaymentOrderID == nil || *a.PaymentOrderID != orderID {
		return nil, ErrAppointmentNotFound
	}
	a.PaymentStatus = PaymentPaid
	a.PaymentTransactionID = &transactionID
	a.PaymentSignature = &signature
	out := *a
	return &out, nil
}

func (m *memRepo) MarkFailedAndRelease(_ context.Context, id uuid.UUID) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.appointments[id]
	if !ok || a.PaymentStatus != PaymentPending {
		return nil, ErrAppointmentNotFound
	}
	a.PaymentStatus = PaymentFailed
	a.Status = StatusCanceled
	m.releaseLocked(SlotRelease{
		HospitalID: a.HospitalID,
		DoctorID:   a.DoctorID,
		StartTime:  a.StartTime,
		EndTime:    a.EndTime,
	})
	out := *a
	return &out, nil
}

func (m *memRepo) ListPaidAppointments(_ context.Context, hospitalID uuid.UUID) ([]AppointmentDetail, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []AppointmentDetail
	for _, a := range m.appointments {
		if a.HospitalID == hospitalID && a.PaymentStatus == PaymentPaid {
			result = append(result, m.detailLocked(a))
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].StartTime.Before(result[j].StartTime) })
	return result, nil
}

func (m *memRepo) detailLocked(a *Appointment) AppointmentDetail {
	d := AppointmentDetail{Appointment: *a}
	if p, ok := m.patients[a.PatientID]; ok {
		d.PatientName = p.Name
		d.PatientEmail = p.Email
	}
	if s, ok := m.services[a.ServiceID]; ok {
		d.ServiceName = s.Name
		d.ServicePrice = s.Price
	}
	if a.DoctorID != nil {
		if doc, ok := m.doctors[*a.DoctorID]; ok {
			d.DoctorName = &doc.Name
		}
	}
	return d
}

func (m *memRepo) UpdateAppointmentStatus(_ context.Context, params UpdateStatusParams) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.appointments[params.AppointmentID]
	if !ok || a.HospitalID != params.HospitalID {
		return nil, ErrAppointmentNotFound
	}
	a.Status = params.Status
	if params.VideoLink != nil {
		a.VideoLink = params.VideoLink
	}
	if params.ReleaseSlot {
		m.releaseLocked(SlotRelease{
			HospitalID: a.HospitalID,
			DoctorID:   a.DoctorID,
			StartTime:  a.StartTime,
			EndTime:    a.EndTime,
		})
	}
	out := *a
	return &out, nil
}

func (m *memRepo) ListSlotsForHospital(_ context.Context, hospitalID uuid.UUID) ([]SlotWithDoctor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []SlotWithDoctor
	for _, s := range m.slots {
		if s.HospitalID != hospitalID {
			continue
		}
		row := SlotWithDoctor{TimeSlot: *s}
		if s.DoctorID != nil {
			if doc, ok := m.doctors[*s.DoctorID]; ok {
				row.DoctorName = &doc.Name
			}
		}
		result = append(result, row)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].StartTime.Before(result[j].StartTime) })
	return result, nil
}

func (m *memRepo) CreateSlot(_ context.Context, hospitalID uuid.UUID, doctorID *uuid.UUID, start, end time.Time) (*TimeSlot, error) {
	s := m.addSlot(hospitalID, doctorID, start, end)
	out := *s
	return &out, nil
}

func (m *memRepo) DeleteSlot(_ context.Context, id, hospitalID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.slots[id]
	if !ok || s.HospitalID != hospitalID {
		return ErrSlotNotFound
	}
	if s.IsBooked {
		return ErrSlotBooked
	}
	delete(m.slots, id)
	return nil
}

func (m *memRepo) PurgeExpiredUnbooked(_ context.Context, hospitalID uuid.UUID, asOf time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var purged int64
	for id, s := range m.slots {
		if s.HospitalID == hospitalID && !s.IsBooked && s.EndTime.Before(asOf) {
			delete(m.slots, id)
			purged++
		}
	}
	return purged, nil
}

func (m *memRepo) ListServices(_ context.Context, hospitalID uuid.UUID) ([]MedicalService, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []MedicalService
	for _, s := range m.services {
		if s.HospitalID == hospitalID {
			result = append(result, *s)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

func (m *memRepo) CreateService(_ context.Context, hospitalID uuid.UUID, name string, price int64) (*MedicalService, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.services {
		if s.HospitalID == hospitalID && strings.EqualFold(s.Name, name) {
			return nil, ErrDuplicateService
		}
	}
	s := &MedicalService{ID: uuid.New(), HospitalID: hospitalID, Name: name, Price: price}
	m.services[s.ID] = s
	out := *s
	return &out, nil
}

func (m *memRepo) DeleteService(_ context.Context, id, hospitalID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.services[id]
	if !ok || s.HospitalID != hospitalID {
		return ErrServiceNotFound
	}
	for _, a := range m.appointments {
		if a.ServiceID == id {
			return ErrServiceInUse
		}
	}
	delete(m.services, id)
	return nil
}

func (m *memRepo) FindStalePending(_ context.Context, olderThan time.Time) ([]Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []Appointment
	for _, a := range m.appointments {
		if a.Status == StatusPending && a.PaymentStatus == PaymentPending && a.CreatedAt.Before(olderThan) {
			result = append(result, *a)
		}
	}
	return result, nil
}
