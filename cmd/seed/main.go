// seed creates the schema and inserts a demo agency with users, sequences,
// and delivery schedules into the local dev database.
// Run: DATABASE_URL=... go run ./cmd/seed
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/hqc-labs/huddle-delivery/internal/infrastructure/postgres"
)

const schema = `
CREATE TABLE IF NOT EXISTS agencies (
	agency_id  UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	name       TEXT NOT NULL,
	is_active  BOOLEAN NOT NULL DEFAULT TRUE,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS users (
	user_id    UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	agency_id  UUID NOT NULL REFERENCES agencies(agency_id),
	email      TEXT NOT NULL UNIQUE,
	name       TEXT NOT NULL,
	is_active  BOOLEAN NOT NULL DEFAULT TRUE,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS huddle_sequences (
	sequence_id     UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	agency_id       UUID NOT NULL REFERENCES agencies(agency_id),
	title           TEXT NOT NULL,
	sequence_status TEXT NOT NULL DEFAULT 'draft',
	published_at    TIMESTAMPTZ,
	is_active       BOOLEAN NOT NULL DEFAULT TRUE,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS delivery_schedules (
	schedule_id               UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	sequence_id               UUID NOT NULL REFERENCES huddle_sequences(sequence_id),
	agency_id                 UUID NOT NULL REFERENCES agencies(agency_id),
	frequency_type            TEXT NOT NULL,
	start_date                TIMESTAMPTZ NOT NULL,
	end_date                  TIMESTAMPTZ,
	release_time              TEXT NOT NULL DEFAULT '09:00',
	days_of_week              INT[] NOT NULL DEFAULT '{}',
	time_zone                 TEXT NOT NULL DEFAULT 'UTC',
	cron_expression           TEXT,
	auto_publish              BOOLEAN NOT NULL DEFAULT TRUE,
	send_notifications        BOOLEAN NOT NULL DEFAULT TRUE,
	notification_hours_before INT NOT NULL DEFAULT 24,
	reminder_hours_before     INT NOT NULL DEFAULT 1,
	max_executions            INT,
	next_execution_at         TIMESTAMPTZ,
	last_execution_at         TIMESTAMPTZ,
	schedule_status           TEXT NOT NULL DEFAULT 'active',
	execution_count           INT NOT NULL DEFAULT 0,
	consecutive_failures      INT NOT NULL DEFAULT 0,
	last_error                TEXT,
	is_active                 BOOLEAN NOT NULL DEFAULT TRUE,
	reminder_sent_for         TIMESTAMPTZ,
	claimed_at                TIMESTAMPTZ,
	claimed_by                TEXT,
	created_at                TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at                TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_schedules_due
	ON delivery_schedules (next_execution_at)
	WHERE schedule_status = 'active' AND is_active AND claimed_at IS NULL;
CREATE INDEX IF NOT EXISTS idx_schedules_sequence ON delivery_schedules (sequence_id);
CREATE INDEX IF NOT EXISTS idx_schedules_agency   ON delivery_schedules (agency_id);
`

type scheduleSpec struct {
	title     string
	frequency string
	release   string
	days      []int
	tz        string
	maxExec   *int
}

var one = 1

var specs = []scheduleSpec{
	{"Infection Control Basics", "daily", "09:00", nil, "America/New_York", nil},
	{"Weekly Safety Huddle", "weekly", "08:30", []int{1, 3}, "America/Chicago", nil},
	{"Monthly Compliance Refresher", "monthly", "10:00", nil, "UTC", nil},
	{"Onboarding Orientation", "daily", "07:00", nil, "America/Los_Angeles", &one},
}

func main() {
	ctx := context.Background()

	pool, err := postgres.NewPool(ctx, os.Getenv("DATABASE_URL"))
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer pool.Close()

	if _, err := pool.Exec(ctx, schema); err != nil {
		log.Fatalf("create schema: %v", err)
	}
	log.Println("schema ready")

	agencyID := uuid.NewString()
	if _, err := pool.Exec(ctx,
		`INSERT INTO agencies (agency_id, name) VALUES ($1, $2)`,
		agencyID, "Sunrise Home Health"); err != nil {
		log.Fatalf("insert agency: %v", err)
	}

	for i := 1; i <= 5; i++ {
		if _, err := pool.Exec(ctx,
			`INSERT INTO users (agency_id, email, name) VALUES ($1, $2, $3)
			 ON CONFLICT (email) DO NOTHING`,
			agencyID, fmt.Sprintf("nurse%d@seed.local", i), fmt.Sprintf("Seed Nurse %d", i)); err != nil {
			log.Fatalf("insert user: %v", err)
		}
	}

	now := time.Now()
	for _, spec := range specs {
		var sequenceID string
		if err := pool.QueryRow(ctx,
			`INSERT INTO huddle_sequences (agency_id, title) VALUES ($1, $2) RETURNING sequence_id`,
			agencyID, spec.title).Scan(&sequenceID); err != nil {
			log.Fatalf("insert sequence: %v", err)
		}

		// next_execution_at in the near past so the first poll tick fires it.
		if _, err := pool.Exec(ctx, `
			INSERT INTO delivery_schedules (
				sequence_id, agency_id, frequency_type, start_date,
				release_time, days_of_week, time_zone, max_executions, next_execution_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			sequenceID, agencyID, spec.frequency, now,
			spec.release, spec.days, spec.tz, spec.maxExec, now.Add(-time.Minute),
		); err != nil {
			log.Fatalf("insert schedule: %v", err)
		}

		log.Printf("seeded %s schedule for %q", spec.frequency, spec.title)
	}

	log.Println("done")
}
