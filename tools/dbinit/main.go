// dbinit applies the bookline schema to a Postgres database. Run it once
// against a fresh database, or rerun safely: every statement is idempotent.
//
//	DATABASE_URL=postgres://... go run ./tools/dbinit [-seed]
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const schema = `
CREATE EXTENSION IF NOT EXISTS btree_gist;

CREATE TABLE IF NOT EXISTS business_owners (
	id uuid PRIMARY KEY,
	external_id text NOT NULL UNIQUE,
	display_name text NOT NULL DEFAULT '',
	avatar_url text NOT NULL DEFAULT '',
	stripe_customer_id text,
	subscription_active boolean NOT NULL DEFAULT false,
	created_at timestamptz NOT NULL DEFAULT now(),
	updated_at timestamptz NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS businesses (
	id uuid PRIMARY KEY,
	owner_id uuid NOT NULL REFERENCES business_owners(id),
	name text NOT NULL,
	timezone text NOT NULL DEFAULT 'UTC',
	slot_step_minutes int NOT NULL DEFAULT 15,
	min_lead_time_minutes int NOT NULL DEFAULT 60,
	auto_confirm boolean NOT NULL DEFAULT false,
	is_active boolean NOT NULL DEFAULT true,
	created_at timestamptz NOT NULL DEFAULT now(),
	updated_at timestamptz NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS businesses_owner_idx ON businesses(owner_id);

CREATE TABLE IF NOT EXISTS staff (
	id uuid PRIMARY KEY,
	business_id uuid NOT NULL REFERENCES businesses(id),
	name text NOT NULL,
	is_active boolean NOT NULL DEFAULT true,
	display_order int NOT NULL DEFAULT 0,
	created_at timestamptz NOT NULL DEFAULT now(),
	updated_at timestamptz NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS staff_business_idx ON staff(business_id);

CREATE TABLE IF NOT EXISTS staff_working_hours (
	staff_id uuid NOT NULL REFERENCES staff(id),
	weekday int NOT NULL CHECK (weekday BETWEEN 0 AND 6),
	is_working boolean NOT NULL DEFAULT false,
	start_minute int NOT NULL DEFAULT 0,
	end_minute int NOT NULL DEFAULT 0,
	PRIMARY KEY (staff_id, weekday)
);

CREATE TABLE IF NOT EXISTS services (
	id uuid PRIMARY KEY,
	business_id uuid NOT NULL REFERENCES businesses(id),
	name text NOT NULL,
	duration_minutes int NOT NULL CHECK (duration_minutes > 0),
	price numeric(10,2) NOT NULL DEFAULT 0,
	is_active boolean NOT NULL DEFAULT true,
	display_order int NOT NULL DEFAULT 0,
	created_at timestamptz NOT NULL DEFAULT now(),
	updated_at timestamptz NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS services_business_idx ON services(business_id);

CREATE TABLE IF NOT EXISTS closed_dates (
	id uuid PRIMARY KEY,
	business_id uuid NOT NULL REFERENCES businesses(id),
	staff_id uuid REFERENCES staff(id),
	start_time timestamptz NOT NULL,
	end_time timestamptz NOT NULL CHECK (end_time > start_time),
	reason text NOT NULL DEFAULT '',
	created_at timestamptz NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS closed_dates_business_idx ON closed_dates(business_id, start_time);

CREATE TABLE IF NOT EXISTS customers (
	id uuid PRIMARY KEY,
	external_id text NOT NULL UNIQUE,
	display_name text NOT NULL DEFAULT '',
	avatar_url text NOT NULL DEFAULT '',
	created_at timestamptz NOT NULL DEFAULT now(),
	updated_at timestamptz NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS bookings (
	id uuid PRIMARY KEY,
	business_id uuid NOT NULL REFERENCES businesses(id),
	staff_id uuid NOT NULL REFERENCES staff(id),
	service_id uuid NOT NULL REFERENCES services(id),
	customer_id uuid NOT NULL REFERENCES customers(id),
	start_time timestamptz NOT NULL,
	end_time timestamptz NOT NULL CHECK (end_time > start_time),
	status text NOT NULL DEFAULT 'pending'
		CHECK (status IN ('pending', 'confirmed', 'completed', 'cancelled')),
	no_show boolean NOT NULL DEFAULT false,
	created_at timestamptz NOT NULL DEFAULT now(),
	updated_at timestamptz NOT NULL DEFAULT now(),
	CONSTRAINT bookings_no_overlap EXCLUDE USING gist (
		staff_id WITH =,
		tstzrange(start_time, end_time) WITH &&
	) WHERE (status IN ('pending', 'confirmed'))
);
CREATE INDEX IF NOT EXISTS bookings_staff_time_idx ON bookings(staff_id, start_time);
CREATE INDEX IF NOT EXISTS bookings_business_idx ON bookings(business_id, start_time);
CREATE INDEX IF NOT EXISTS bookings_customer_idx ON bookings(customer_id, start_time);

CREATE TABLE IF NOT EXISTS invitation_links (
	id uuid PRIMARY KEY,
	business_id uuid NOT NULL REFERENCES businesses(id),
	code text NOT NULL UNIQUE,
	created_by uuid NOT NULL REFERENCES business_owners(id),
	expires_at timestamptz NOT NULL,
	max_uses int NOT NULL CHECK (max_uses > 0),
	used_count int NOT NULL DEFAULT 0 CHECK (used_count <= max_uses),
	is_active boolean NOT NULL DEFAULT true,
	created_at timestamptz NOT NULL DEFAULT now(),
	updated_at timestamptz NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS outbox_events (
	id bigserial PRIMARY KEY,
	event_id uuid NOT NULL DEFAULT gen_random_uuid(),
	aggregate_type text NOT NULL,
	aggregate_id text NOT NULL,
	event_type text NOT NULL,
	payload jsonb NOT NULL,
	traceparent text NOT NULL DEFAULT '',
	tracestate text NOT NULL DEFAULT '',
	created_at timestamptz NOT NULL DEFAULT now(),
	published_at timestamptz
);
CREATE INDEX IF NOT EXISTS outbox_unpublished_idx ON outbox_events(id) WHERE published_at IS NULL;
`

func main() {
	var (
		dbURL = flag.String("database-url", getenv("DATABASE_URL", ""), "postgres connection string")
		seed  = flag.Bool("seed", false, "insert a demo owner/business/staff/service")
	)
	flag.Parse()

	if strings.TrimSpace(*dbURL) == "" {
		fatal("DATABASE_URL is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	conn, err := pgx.Connect(ctx, *dbURL)
	if err != nil {
		fatal("connect: " + err.Error())
	}
	defer conn.Close(ctx)

	if _, err := conn.Exec(ctx, schema); err != nil {
		fatal("apply schema: " + err.Error())
	}
	fmt.Println("schema applied")

	if *seed {
		if err := seedDemo(ctx, conn); err != nil {
			fatal("seed: " + err.Error())
		}
		fmt.Println("demo data seeded")
	}
}

func seedDemo(ctx context.Context, conn *pgx.Conn) error {
	ownerID := uuid.NewString()
	businessID := uuid.NewString()
	staffID := uuid.NewString()
	serviceID := uuid.NewString()

	batch := &pgx.Batch{}
	batch.Queue(`
		INSERT INTO business_owners (id, external_id, display_name, subscription_active)
		VALUES ($1, 'demo-owner', 'Demo Owner', true)
		ON CONFLICT (external_id) DO NOTHING
	`, ownerID)
	batch.Queue(`
		INSERT INTO businesses (id, owner_id, name, timezone)
		SELECT $1, id, 'Demo Salon', 'America/New_York'
		FROM business_owners WHERE external_id = 'demo-owner'
		ON CONFLICT DO NOTHING
	`, businessID)
	batch.Queue(`
		INSERT INTO staff (id, business_id, name)
		VALUES ($1, $2, 'Aki')
		ON CONFLICT DO NOTHING
	`, staffID, businessID)
	for wd := 1; wd <= 5; wd++ {
		batch.Queue(`
			INSERT INTO staff_working_hours (staff_id, weekday, is_working, start_minute, end_minute)
			VALUES ($1, $2, true, 540, 1020)
			ON CONFLICT (staff_id, weekday) DO NOTHING
		`, staffID, wd)
	}
	batch.Queue(`
		INSERT INTO services (id, business_id, name, duration_minutes, price)
		VALUES ($1, $2, 'Haircut', 30, 40.00)
		ON CONFLICT DO NOTHING
	`, serviceID, businessID)

	br := conn.SendBatch(ctx, batch)
	defer br.Close()
	for i := 0; i < batch.Len(); i++ {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

func getenv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func fatal(msg string) {
	fmt.Fprintln(os.Stderr, "dbinit: "+msg)
	os.Exit(1)
}
