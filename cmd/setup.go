package cmd

import (
	"errors"
	"fmt"

	"github.com/ngxtan/rollcall/internal/attendance"
	"github.com/ngxtan/rollcall/internal/config"
	"github.com/ngxtan/rollcall/internal/database/postgres"
	"github.com/ngxtan/rollcall/internal/detector"
	"github.com/ngxtan/rollcall/internal/web"
)

// engine bundles everything a command needs to run attendance
// operations against the database.
type engine struct {
	cfg     *config.Config
	pool    *postgres.Pool
	persons *postgres.PersonRepository
	stores  web.Stores
	service *attendance.Service
}

// newEngine connects to PostgreSQL, runs migrations and wires the
// attendance service. The caller owns the pool and must Close it.
func newEngine() (*engine, error) {
	cfg := config.Load()
	if cfg.Database.URL == "" {
		return nil, errors.New("DATABASE_URL environment variable is required")
	}

	pool, err := postgres.Connect(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("connecting to PostgreSQL: %w", err)
	}

	persons := postgres.NewPersonRepository(pool)
	classes := postgres.NewClassRepository(pool)
	sessions := postgres.NewSessionRepository(pool)
	records := postgres.NewRecordRepository(pool)

	det := detector.NewClient(cfg.Detector.URL)
	service := attendance.NewService(persons, classes, sessions, records, det, cfg.Policy)

	return &engine{
		cfg:     cfg,
		pool:    pool,
		persons: persons,
		stores: web.Stores{
			Persons:  persons,
			Classes:  classes,
			Sessions: sessions,
			Records:  records,
		},
		service: service,
	}, nil
}

func (e *engine) Close() {
	if err := e.pool.Close(); err != nil {
		fmt.Printf("Warning: closing database pool: %v\n", err)
	}
}
