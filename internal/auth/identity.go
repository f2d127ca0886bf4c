// Package auth decodes session tokens issued by the external identity
// provider into explicit identity values. The core services receive these
// values as arguments and never consult request-global state.
package auth

import "github.com/google/uuid"

type Role string

const (
	RolePatient       Role = "PATIENT"
	RoleHospitalAdmin Role = "HOSPITAL_ADMIN"
)

// Identity is an authenticated patient.
type Identity struct {
	PatientID uuid.UUID
}

// AdminIdentity is an authenticated hospital admin. HospitalID scopes every
// mutation the admin performs.
type AdminIdentity struct {
	UserID     uuid.UUID
	HospitalID uuid.UUID
}
