// Command simulate fires concurrent booking attempts at one slot through
// the HTTP API and reports how the claim race resolved. A correct run
// shows exactly one 201 and N-1 conflict responses per slot.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/careslot/hospital-booking/internal/config"
	"github.com/careslot/hospital-booking/internal/db"
)

type SimConfig struct {
	APIBaseURL  string
	Workers     int
	Rounds      int
	PostgresDSN string
	JWTSecret   string
}

type slotTarget struct {
	SlotID     uuid.UUID
	HospitalID uuid.UUID
	DoctorID   *uuid.UUID
	ServiceID  uuid.UUID
}

type raceMetrics struct {
	Created   int64
	Conflicts int64
	Errors    int64

	mu        sync.Mutex
	latencies []time.Duration
}

func (m *raceMetrics) record(latency time.Duration, status int) {
	switch {
	case status == http.StatusCreated:
		atomic.AddInt64(&m.Created, 1)
	case status == http.StatusConflict:
		atomic.AddInt64(&m.Conflicts, 1)
	default:
		atomic.AddInt64(&m.Errors, 1)
	}

	m.mu.Lock()
	m.latencies = append(m.latencies, latency)
	m.mu.Unlock()
}

func (m *raceMetrics) stats() (avg, p50, p95 time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.latencies) == 0 {
		return 0, 0, 0
	}

	sorted := make([]time.Duration, len(m.latencies))
	copy(sorted, m.latencies)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	var sum time.Duration
	for _, l := range sorted {
		sum += l
	}
	avg = sum / time.Duration(len(sorted))
	p50 = sorted[len(sorted)*50/100]
	p95 = sorted[min(len(sorted)*95/100, len(sorted)-1)]
	return avg, p50, p95
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	appCfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	cfg := SimConfig{
		APIBaseURL:  getenv("SIM_API_BASE_URL", "http://localhost:8080"),
		Workers:     getenvInt("SIM_WORKERS", 20),
		Rounds:      getenvInt("SIM_ROUNDS", 5),
		PostgresDSN: appCfg.PostgresDSN,
		JWTSecret:   appCfg.SessionJWTSecret,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	pool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN, appCfg.PgMaxConns)
	cancel()
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	patients, err := loadPatients(context.Background(), pool, cfg.Workers)
	if err != nil {
		log.Fatalf("load patients: %v", err)
	}

	client := &http.Client{Timeout: 15 * time.Second}

	for round := 1; round <= cfg.Rounds; round++ {
		target, err := pickOpenSlot(context.Background(), pool)
		if err != nil {
			log.Fatalf("pick open slot: %v", err)
		}

		m := &raceMetrics{}
		runRound(cfg, client, patients, target, m)

		avg, p50, p95 := m.stats()
		ok := "OK"
		if m.Created != 1 {
			ok = "VIOLATION"
		}
		fmt.Printf("round %d slot %s: created=%d conflicts=%d errors=%d avg=%s p50=%s p95=%s [%s]\n",
			round, target.SlotID, m.Created, m.Conflicts, m.Errors, avg, p50, p95, ok)
	}
}

func runRound(cfg SimConfig, client *http.Client, patients []uuid.UUID, target slotTarget, m *raceMetrics) {
	var wg sync.WaitGroup
	start := make(chan struct{})

	for i := 0; i < cfg.Workers; i++ {
		patientID := patients[i%len(patients)]
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start

			token, err := mintPatientToken(cfg.JWTSecret, patientID)
			if err != nil {
				m.record(0, 0)
				return
			}

			body, _ := json.Marshal(map[string]any{
				"hospital_id":  target.HospitalID,
				"doctor_id":    target.DoctorID,
				"service_id":   target.ServiceID,
				"time_slot_id": target.SlotID,
				"type":         "IN_PERSON",
			})

			req, err := http.NewRequest(http.MethodPost, cfg.APIBaseURL+"/api/bookings", bytes.NewReader(body))
			if err != nil {
				m.record(0, 0)
				return
			}
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set("Authorization", "Bearer "+token)

			began := time.Now()
			resp, err := client.Do(req)
			if err != nil {
				m.record(time.Since(began), 0)
				return
			}
			_, _ = io.Copy(io.Discard, resp.Body)
			_ = resp.Body.Close()

			m.record(time.Since(began), resp.StatusCode)
		}()
	}

	close(start)
	wg.Wait()
}

// mintPatientToken signs a session token the way the identity provider
// would; simulation only.
func mintPatientToken(secret string, patientID uuid.UUID) (string, error) {
	claims := jwt.MapClaims{
		"sub":  patientID.String(),
		"role": "PATIENT",
		"exp":  time.Now().Add(10 * time.Minute).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

func loadPatients(ctx context.Context, pool *pgxpool.Pool, limit int) ([]uuid.UUID, error) {
	rows, err := pool.Query(ctx, `SELECT id FROM patients LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("no patients seeded, run cmd/seed first")
	}
	return ids, rows.Err()
}

func pickOpenSlot(ctx context.Context, pool *pgxpool.Pool) (slotTarget, error) {
	var t slotTarget
	err := pool.QueryRow(ctx, `
		SELECT t.id, t.hospital_id, t.doctor_id, s.id
		FROM time_slots t
		JOIN services s ON s.hospital_id = t.hospital_id
		WHERE t.is_booked = false
		  AND t.start_time > now()
		ORDER BY t.start_time ASC
		LIMIT 1
	`).Scan(&t.SlotID, &t.HospitalID, &t.DoctorID, &t.ServiceID)
	if err != nil {
		return slotTarget{}, err
	}
	return t, nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
