package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hackgods/clinic-scheduling-core/internal/config"
	"github.com/hackgods/clinic-scheduling-core/internal/db"
	"github.com/hackgods/clinic-scheduling-core/internal/records"
	"github.com/hackgods/clinic-scheduling-core/pkg/logging"
)

var specialties = []string{
	"General Medicine",
	"Cardiology",
	"Dermatology",
	"Orthopedics",
	"Endocrinology",
	"Neurology",
	"Pediatrics",
	"Psychiatry",
	"Ophthalmology",
	"Gastroenterology",
}

func main() {
	doctors := flag.Int("doctors", 100, "number of doctors to seed")
	patients := flag.Int("patients", 9000, "number of patients to seed")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}
	if err := cfg.RequirePostgres(); err != nil {
		log.Fatalf("config error: %v", err)
	}

	logger := logging.New(cfg.LogLevel).With("service", "seed")
	logger.Info("seed starting", "doctors", *doctors, "patients", *patients)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	pool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN, db.DefaultPoolOptions())
	cancel()
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	gofakeit.Seed(time.Now().UnixNano())

	if err := seedDoctors(context.Background(), pool, *doctors, cfg.SlotGranularity, logger); err != nil {
		log.Fatalf("seed doctors: %v", err)
	}
	if err := seedPatients(context.Background(), pool, *patients, logger); err != nil {
		log.Fatalf("seed patients: %v", err)
	}

	logger.Info("seed complete")
}

func fakeDoctor(i int, granularity time.Duration) records.Doctor {
	shift := records.ClinicShift()
	if granularity > 0 {
		shift.Granularity = granularity
	}
	shift.Weekdays = []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday}

	email := gofakeit.Email()
	tags := []string{specialties[gofakeit.Number(0, len(specialties)-1)]}
	if gofakeit.Bool() {
		if extra := specialties[gofakeit.Number(0, len(specialties)-1)]; extra != tags[0] {
			tags = append(tags, extra)
		}
	}
	status := records.DoctorAvailable
	if gofakeit.Number(1, 5) == 1 {
		status = records.DoctorBusy
	}

	return records.Doctor{
		ID:          fmt.Sprintf("D%03d", i+1),
		Name:        "Dr. " + gofakeit.Name(),
		Email:       &email,
		Specialties: tags,
		Shift:       shift,
		Rating:      math.Round(gofakeit.Float64Range(3.5, 5.0)*10) / 10,
		Status:      status,
	}
}

func fakePatient(i int) records.Patient {
	email := gofakeit.Email()
	status := records.PatientActive
	if gofakeit.Number(1, 10) == 1 {
		status = records.PatientInactive
	}
	return records.Patient{
		ID:     fmt.Sprintf("P%05d", i+1),
		Name:   gofakeit.Name(),
		Email:  &email,
		Status: status,
	}
}

func seedDoctors(ctx context.Context, pool *pgxpool.Pool, count int, granularity time.Duration, logger *logging.Logger) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	store := records.NewPgStore(tx)
	for i := 0; i < count; i++ {
		if err := store.SaveDoctor(ctx, fakeDoctor(i, granularity)); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}

	logger.Info("doctors seeded", "count", count)
	return nil
}

func seedPatients(ctx context.Context, pool *pgxpool.Pool, count int, logger *logging.Logger) error {
	const batchSize = 500

	for offset := 0; offset < count; offset += batchSize {
		end := min(offset+batchSize, count)

		tx, err := pool.Begin(ctx)
		if err != nil {
			return err
		}

		store := records.NewPgStore(tx)
		for i := offset; i < end; i++ {
			if err := store.SavePatient(ctx, fakePatient(i)); err != nil {
				_ = tx.Rollback(ctx)
				return err
			}
		}

		if err := tx.Commit(ctx); err != nil {
			return err
		}

		logger.Info("patients seeded", "done", end, "total", count)
	}

	return nil
}
