package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/careslot/hospital-booking/internal/db"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("seed starting")

	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		log.Fatal("POSTGRES_DSN is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, dsn, 4)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	gofakeit.Seed(time.Now().UnixNano())

	hospitals, err := seedHospitals(context.Background(), pool, 3)
	if err != nil {
		log.Fatalf("seed hospitals: %v", err)
	}
	if err := seedPatients(context.Background(), pool, 200); err != nil {
		log.Fatalf("seed patients: %v", err)
	}
	for _, hospitalID := range hospitals {
		doctors, err := seedDoctors(context.Background(), pool, hospitalID, 5)
		if err != nil {
			log.Fatalf("seed doctors: %v", err)
		}
		if err := seedServices(context.Background(), pool, hospitalID); err != nil {
			log.Fatalf("seed services: %v", err)
		}
		if err := seedSlots(context.Background(), pool, hospitalID, doctors); err != nil {
			log.Fatalf("seed slots: %v", err)
		}
	}

	log.Println("seed complete")
}

func seedHospitals(ctx context.Context, pool *pgxpool.Pool, count int) ([]uuid.UUID, error) {
	log.Printf("seeding %d hospitals", count)

	ids := make([]uuid.UUID, 0, count)
	for i := 0; i < count; i++ {
		id := uuid.New()
		name := gofakeit.Company() + " Hospital"
		city := gofakeit.City()

		_, err := pool.Exec(ctx, `
			INSERT INTO hospitals (id, name, city, status, created_at, updated_at)
			VALUES ($1, $2, $3, 'APPROVED', now(), now())
		`, id, name, city)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
		log.Printf("hospital %s (%s)", name, id)
	}
	return ids, nil
}

func seedDoctors(ctx context.Context, pool *pgxpool.Pool, hospitalID uuid.UUID, count int) ([]uuid.UUID, error) {
	specialties := []string{
		"Dermatology",
		"Cardiology",
		"General Practice",
		"Orthopedics",
		"Endocrinology",
		"Neurology",
		"Pediatrics",
		"Psychiatry",
		"Ophthalmology",
		"ENT",
	}

	ids := make([]uuid.UUID, 0, count)
	for i := 0; i < count; i++ {
		id := uuid.New()
		name := "Dr. " + gofakeit.Name()
		spec := specialties[gofakeit.Number(0, len(specialties)-1)]

		_, err := pool.Exec(ctx, `
			INSERT INTO doctors (id, hospital_id, name, specialty, created_at, updated_at)
			VALUES ($1, $2, $3, $4, now(), now())
		`, id, hospitalID, name, spec)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func seedPatients(ctx context.Context, pool *pgxpool.Pool, count int) error {
	log.Printf("seeding %d patients", count)

	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for i := 0; i < count; i++ {
		id := uuid.New()
		name := gofakeit.Name()
		email := gofakeit.Email()

		_, err := tx.Exec(ctx, `
			INSERT INTO patients (id, name, email, created_at, updated_at)
			VALUES ($1, $2, $3, now(), now())
		`, id, name, email)
		if err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

func seedServices(ctx context.Context, pool *pgxpool.Pool, hospitalID uuid.UUID) error {
	// Prices in paise.
	services := map[string]int64{
		"General Consultation": 50000,
		"Health Screening":     150000,
		"Specialist Care":      120000,
		"Video Consultation":   40000,
	}

	for name, price := range services {
		_, err := pool.Exec(ctx, `
			INSERT INTO services (id, hospital_id, name, price, created_at, updated_at)
			VALUES ($1, $2, $3, $4, now(), now())
		`, uuid.New(), hospitalID, name, price)
		if err != nil {
			return err
		}
	}
	return nil
}

func seedSlots(ctx context.Context, pool *pgxpool.Pool, hospitalID uuid.UUID, doctors []uuid.UUID) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	day := time.Now().UTC().Truncate(24 * time.Hour).Add(24 * time.Hour)
	count := 0

	for d := 0; d < 7; d++ {
		date := day.AddDate(0, 0, d)
		for hour := 9; hour < 17; hour++ {
			start := date.Add(time.Duration(hour) * time.Hour)
			end := start.Add(30 * time.Minute)

			// Mix doctor-bound and shared slots.
			var doctorID *uuid.UUID
			if gofakeit.Number(0, 3) > 0 {
				id := doctors[gofakeit.Number(0, len(doctors)-1)]
				doctorID = &id
			}

			_, err := tx.Exec(ctx, `
				INSERT INTO time_slots (id, hospital_id, doctor_id, start_time, end_time, is_booked, created_at, updated_at)
				VALUES ($1, $2, $3, $4, $5, false, now(), now())
			`, uuid.New(), hospitalID, doctorID, start, end)
			if err != nil {
				return err
			}
			count++
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}

	log.Printf("hospital %s: %d slots seeded", hospitalID, count)
	return nil
}
