// Package archive provides a PostgreSQL-backed durable record of every
// spoken exchange, with full-text search over transcriptions and responses.
// Archiving is optional; the flat-file conversation log remains the primary
// record.
package archive

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const ddlExchanges = `
CREATE TABLE IF NOT EXISTS exchanges (
    id            BIGSERIAL    PRIMARY KEY,
    profile       TEXT         NOT NULL,
    persona       TEXT         NOT NULL,
    transcription TEXT         NOT NULL,
    response      TEXT         NOT NULL,
    spoken_at     TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_exchanges_profile_spoken_at
    ON exchanges (profile, spoken_at);

CREATE INDEX IF NOT EXISTS idx_exchanges_fts
    ON exchanges USING GIN (to_tsvector('english', transcription || ' ' || response));
`

// Exchange is one archived transcript/response pair.
type Exchange struct {
	Profile       string
	Persona       string
	Transcription string
	Response      string
	At            time.Time
}

// Store archives exchanges in PostgreSQL. All methods are safe for
// concurrent use.
type Store struct {
	pool *pgxpool.Pool
}

// Open connects to the database at dsn and applies the schema.
func Open(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("archive: connecting: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("archive: ping: %w", err)
	}
	if _, err := pool.Exec(ctx, ddlExchanges); err != nil {
		pool.Close()
		return nil, fmt.Errorf("archive: applying schema: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Close releases the connection pool.
func (s *Store) Close() { s.pool.Close() }

// Ping probes database connectivity, for readiness checks.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("archive: ping: %w", err)
	}
	return nil
}

// Record implements dispatch.Archiver.
func (s *Store) Record(ctx context.Context, profile, persona, transcription, response string, at time.Time) error {
	const q = `
		INSERT INTO exchanges (profile, persona, transcription, response, spoken_at)
		VALUES ($1, $2, $3, $4, $5)`

	if _, err := s.pool.Exec(ctx, q, profile, persona, transcription, response, at); err != nil {
		return fmt.Errorf("archive: record exchange: %w", err)
	}
	return nil
}

// Recent returns the exchanges for profile spoken within the given window,
// oldest first.
func (s *Store) Recent(ctx context.Context, profile string, window time.Duration) ([]Exchange, error) {
	const q = `
		SELECT profile, persona, transcription, response, spoken_at
		FROM   exchanges
		WHERE  profile    = $1
		  AND  spoken_at >= now() - ($2::bigint * interval '1 microsecond')
		ORDER  BY spoken_at`

	rows, err := s.pool.Query(ctx, q, profile, window.Microseconds())
	if err != nil {
		return nil, fmt.Errorf("archive: recent: %w", err)
	}
	return collectExchanges(rows)
}

// Search performs a full-text search over archived exchanges, newest first.
// The query is passed to plainto_tsquery so no operator syntax is required.
func (s *Store) Search(ctx context.Context, query string, limit int) ([]Exchange, error) {
	q := `
		SELECT profile, persona, transcription, response, spoken_at
		FROM   exchanges
		WHERE  to_tsvector('english', transcription || ' ' || response)
		       @@ plainto_tsquery('english', $1)
		ORDER  BY spoken_at DESC`
	args := []any{query}
	if limit > 0 {
		args = append(args, limit)
		q += "\nLIMIT $2"
	}

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("archive: search: %w", err)
	}
	return collectExchanges(rows)
}

func collectExchanges(rows pgx.Rows) ([]Exchange, error) {
	defer rows.Close()

	var out []Exchange
	for rows.Next() {
		var ex Exchange
		if err := rows.Scan(&ex.Profile, &ex.Persona, &ex.Transcription, &ex.Response, &ex.At); err != nil {
			return nil, fmt.Errorf("archive: scan exchange: %w", err)
		}
		out = append(out, ex)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("archive: iterate exchanges: %w", err)
	}
	return out, nil
}
