package repository

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/alokranjan04/admin-voice-agent/pkg/model"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/m-mizutani/goerr/v2"
)

const schema = `
CREATE TABLE IF NOT EXISTS bookings (
	id            TEXT PRIMARY KEY,
	session_id    TEXT NOT NULL DEFAULT '',
	customer_name TEXT NOT NULL,
	phone         TEXT NOT NULL DEFAULT '',
	email         TEXT NOT NULL DEFAULT '',
	service       TEXT NOT NULL DEFAULT '',
	start_at      TIMESTAMPTZ NOT NULL,
	end_at        TIMESTAMPTZ NOT NULL,
	external_ref  TEXT NOT NULL DEFAULT '',
	created_at    TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS bookings_created_at_idx ON bookings (created_at DESC);

CREATE TABLE IF NOT EXISTS call_logs (
	session_id    TEXT PRIMARY KEY,
	profile       TEXT NOT NULL DEFAULT '',
	started_at    TIMESTAMPTZ NOT NULL,
	ended_at      TIMESTAMPTZ NOT NULL,
	end_reason    TEXT NOT NULL DEFAULT '',
	booking_count INTEGER NOT NULL DEFAULT 0,
	entries       JSONB NOT NULL DEFAULT '[]'
);
`

// Postgres implements Repository on PostgreSQL
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres connects with dsn and verifies the connection
func NewPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create postgres pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, goerr.Wrap(err, "failed to connect to postgres")
	}
	return &Postgres{pool: pool}, nil
}

// Migrate creates the tables if they do not exist
func (r *Postgres) Migrate(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, schema); err != nil {
		return goerr.Wrap(err, "failed to migrate schema")
	}
	return nil
}

func (r *Postgres) Close() {
	r.pool.Close()
}

func (r *Postgres) PutBooking(ctx context.Context, b *model.BookingRecord) error {
	q := `INSERT INTO bookings
	      (id, session_id, customer_name, phone, email, service, start_at, end_at, external_ref, created_at)
	      VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	      ON CONFLICT (id) DO NOTHING`
	_, err := r.pool.Exec(ctx, q,
		b.ID.String(), b.SessionID.String(), b.CustomerName, b.Phone, b.Email, b.Service,
		b.Start, b.End, b.ExternalRef, b.CreatedAt)
	if err != nil {
		return goerr.Wrap(err, "failed to insert booking", goerr.V("id", b.ID))
	}
	return nil
}

func (r *Postgres) ListBookings(ctx context.Context, limit int) ([]*model.BookingRecord, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}

	q := `SELECT id, session_id, customer_name, phone, email, service, start_at, end_at, external_ref, created_at
	      FROM bookings ORDER BY created_at DESC LIMIT $1`
	rows, err := r.pool.Query(ctx, q, limit)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to query bookings")
	}
	defer rows.Close()

	var out []*model.BookingRecord
	for rows.Next() {
		var b model.BookingRecord
		var id, sessionID string
		if err := rows.Scan(&id, &sessionID, &b.CustomerName, &b.Phone, &b.Email, &b.Service,
			&b.Start, &b.End, &b.ExternalRef, &b.CreatedAt); err != nil {
			return nil, goerr.Wrap(err, "failed to scan booking")
		}
		b.ID = model.BookingID(id)
		b.SessionID = model.SessionID(sessionID)
		out = append(out, &b)
	}
	if err := rows.Err(); err != nil {
		return nil, goerr.Wrap(err, "failed to read bookings")
	}
	return out, nil
}

func (r *Postgres) PutCallLog(ctx context.Context, log *model.CallLog) error {
	entries, err := json.Marshal(log.Entries)
	if err != nil {
		return goerr.Wrap(err, "failed to encode call log entries", goerr.V("session_id", log.SessionID))
	}

	q := `INSERT INTO call_logs (session_id, profile, started_at, ended_at, end_reason, booking_count, entries)
	      VALUES ($1,$2,$3,$4,$5,$6,$7)
	      ON CONFLICT (session_id) DO UPDATE SET
	        profile = EXCLUDED.profile,
	        ended_at = EXCLUDED.ended_at,
	        end_reason = EXCLUDED.end_reason,
	        booking_count = EXCLUDED.booking_count,
	        entries = EXCLUDED.entries`
	_, err = r.pool.Exec(ctx, q,
		log.SessionID.String(), log.Profile, log.StartedAt, log.EndedAt, log.EndReason, log.BookingCount, entries)
	if err != nil {
		return goerr.Wrap(err, "failed to upsert call log", goerr.V("session_id", log.SessionID))
	}
	return nil
}

func (r *Postgres) GetCallLog(ctx context.Context, id model.SessionID) (*model.CallLog, error) {
	q := `SELECT profile, started_at, ended_at, end_reason, booking_count, entries
	      FROM call_logs WHERE session_id = $1`

	log := &model.CallLog{SessionID: id}
	var entries []byte
	err := r.pool.QueryRow(ctx, q, id.String()).Scan(
		&log.Profile, &log.StartedAt, &log.EndedAt, &log.EndReason, &log.BookingCount, &entries)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get call log", goerr.V("session_id", id))
	}

	if err := json.Unmarshal(entries, &log.Entries); err != nil {
		return nil, goerr.Wrap(err, "failed to decode call log entries", goerr.V("session_id", id))
	}
	return log, nil
}
