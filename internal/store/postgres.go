// Package store persists generated results. A result is written once per
// (kind, identity, distinguishing key) and never updated.
package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"travel-planner-workers/internal/models"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

var (
	ErrAlreadyExists = errors.New("RECORD_ALREADY_EXISTS")
	ErrNotFound      = errors.New("RECORD_NOT_FOUND")
)

// uniqueViolation is the Postgres SQLSTATE for a unique constraint breach.
const uniqueViolation = "23505"

//go:embed migrations/*.sql
var migrations embed.FS

// Record is one stored generation. Request and Result hold the normalized
// request and the validated result as JSON.
type Record struct {
	ID                uuid.UUID       `json:"id"`
	Kind              string          `json:"kind"`
	Identity          string          `json:"identity"`
	DistinguishingKey string          `json:"distinguishingKey"`
	Request           json.RawMessage `json:"request"`
	Result            json.RawMessage `json:"result"`
	CreatedAt         time.Time       `json:"createdAt"`
}

// PostgresStore reads and writes the generated_results table.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate applies the embedded schema files in name order. Every statement
// is idempotent.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	entries, err := migrations.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)

	for _, name := range names {
		stmt, err := migrations.ReadFile("migrations/" + name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}
		if _, err := s.db.ExecContext(ctx, string(stmt)); err != nil {
			return fmt.Errorf("apply migration %s: %w", name, err)
		}
	}
	return nil
}

// Exists reports whether a record is stored for the composite key.
func (s *PostgresStore) Exists(ctx context.Context, kind, identity, key string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM generated_results
			WHERE kind = $1 AND identity = $2 AND distinguishing_key = $3
		)`, kind, identity, key).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check %s record: %w", kind, err)
	}
	return exists, nil
}

// Insert writes rec. A record already stored under the same key yields
// ErrAlreadyExists; the unique constraint decides, not a prior read.
func (s *PostgresStore) Insert(ctx context.Context, rec Record) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO generated_results (
			id, kind, identity, distinguishing_key, request, result, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		rec.ID.String(),
		rec.Kind,
		rec.Identity,
		rec.DistinguishingKey,
		[]byte(rec.Request),
		[]byte(rec.Result),
		rec.CreatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return fmt.Errorf("%w: %s for %s/%s", ErrAlreadyExists, rec.Kind, rec.Identity, rec.DistinguishingKey)
		}
		return fmt.Errorf("insert %s record: %w", rec.Kind, err)
	}
	return nil
}

// Get loads the record for the composite key, or ErrNotFound.
func (s *PostgresStore) Get(ctx context.Context, kind, identity, key string) (*Record, error) {
	var (
		rec             Record
		id              string
		request, result []byte
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, kind, identity, distinguishing_key, request, result, created_at
		FROM generated_results
		WHERE kind = $1 AND identity = $2 AND distinguishing_key = $3`,
		kind, identity, key,
	).Scan(&id, &rec.Kind, &rec.Identity, &rec.DistinguishingKey, &request, &result, &rec.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s for %s/%s", ErrNotFound, kind, identity, key)
	}
	if err != nil {
		return nil, fmt.Errorf("get %s record: %w", kind, err)
	}

	rec.ID, err = uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("get %s record: bad id %q: %w", kind, id, err)
	}
	rec.Request = request
	rec.Result = result
	return &rec, nil
}

// ListTravelRecords summarizes every stored travel plan, oldest first.
// Location, length and start date come from the request so a listed row can
// be fetched by the same key; only the end date comes from the plan.
func (s *PostgresStore) ListTravelRecords(ctx context.Context) ([]models.TravelRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT identity,
		       request->>'location',
		       (request->>'number_of_days')::int,
		       distinguishing_key,
		       result->>'end_date'
		FROM generated_results
		WHERE kind = $1
		ORDER BY created_at, id`, models.KindTravelPlan)
	if err != nil {
		return nil, fmt.Errorf("list travel records: %w", err)
	}
	defer rows.Close()

	records := []models.TravelRecord{}
	for rows.Next() {
		var (
			rec        models.TravelRecord
			start, end string
		)
		if err := rows.Scan(&rec.Email, &rec.Location, &rec.NumberOfDays, &start, &end); err != nil {
			return nil, fmt.Errorf("scan travel record: %w", err)
		}
		if rec.StartDate, err = models.ParseDate(start); err != nil {
			return nil, fmt.Errorf("travel record for %s: %w", rec.Email, err)
		}
		if rec.EndDate, err = models.ParseDate(end); err != nil {
			return nil, fmt.Errorf("travel record for %s: %w", rec.Email, err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list travel records: %w", err)
	}
	return records, nil
}
