package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type contextKey string

const (
	patientKey contextKey = "auth_patient"
	adminKey   contextKey = "auth_admin"
)

var errInvalidToken = errors.New("invalid session token")

type sessionClaims struct {
	Role       string `json:"role"`
	HospitalID string `json:"hospital_id,omitempty"`
	jwt.RegisteredClaims
}

// Verifier parses HS256 session tokens minted by the identity provider.
// Credential checking (passwords, OTP) happens there, not here; this only
// establishes who the already-authenticated caller is.
type Verifier struct {
	secret []byte
}

func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

func (v *Verifier) parse(r *http.Request) (*sessionClaims, error) {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return nil, errInvalidToken
	}

	claims := &sessionClaims{}
	_, err := jwt.ParseWithClaims(strings.TrimPrefix(header, prefix), claims,
		func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, errInvalidToken
			}
			return v.secret, nil
		},
		jwt.WithValidMethods([]string{"HS256"}),
	)
	if err != nil {
		return nil, errInvalidToken
	}
	return claims, nil
}

// RequirePatient rejects requests without a valid patient session and puts
// the patient Identity on the context.
func (v *Verifier) RequirePatient(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, err := v.parse(r)
		if err != nil {
			unauthorized(w)
			return
		}

		patientID, err := uuid.Parse(claims.Subject)
		if err != nil || Role(claims.Role) != RolePatient {
			unauthorized(w)
			return
		}

		ctx := context.WithValue(r.Context(), patientKey, Identity{PatientID: patientID})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireHospitalAdmin rejects callers who are not hospital admins. A valid
// session with the wrong role is 403, no session at all is 401.
func (v *Verifier) RequireHospitalAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, err := v.parse(r)
		if err != nil {
			unauthorized(w)
			return
		}

		userID, err := uuid.Parse(claims.Subject)
		if err != nil {
			unauthorized(w)
			return
		}

		hospitalID, hErr := uuid.Parse(claims.HospitalID)
		if Role(claims.Role) != RoleHospitalAdmin || hErr != nil {
			forbidden(w)
			return
		}

		ctx := context.WithValue(r.Context(), adminKey, AdminIdentity{
			UserID:     userID,
			HospitalID: hospitalID,
		})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// PatientFromContext returns the Identity set by RequirePatient.
func PatientFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(patientKey).(Identity)
	return id, ok
}

// AdminFromContext returns the AdminIdentity set by RequireHospitalAdmin.
func AdminFromContext(ctx context.Context) (AdminIdentity, bool) {
	id, ok := ctx.Value(adminKey).(AdminIdentity)
	return id, ok
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"unauthorized","details":"missing or invalid session token"}`))
}

func forbidden(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusForbidden)
	_, _ = w.Write([]byte(`{"error":"forbidden","details":"hospital admin role required"}`))
}
