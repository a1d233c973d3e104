// Package history records every submission of the metrics form, so recent
// predictions can be shown next to the form and listed over the API.
package history

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	_ "modernc.org/sqlite"

	"impractical.co/reach/internal/prediction"
)

//go:embed schema.sql
var schemaSQL string

var tracer = otel.Tracer("impractical.co/reach/internal/history")

// Submission is one press of the Predict button that made it to the
// prediction service.
type Submission struct {
	ID      uuid.UUID          `json:"id"`
	Metrics prediction.Metrics `json:"metrics"`

	// Impression is nil when the prediction failed.
	Impression *float64 `json:"impression"`

	// Failure describes why the prediction failed. It's empty on success.
	Failure string `json:"failure,omitempty"`

	// Revision is the revision of the form the submission came from.
	Revision  string    `json:"revision"`
	CreatedAt time.Time `json:"created_at"`
}

// Succeeded reports whether the submission got a prediction back.
func (s Submission) Succeeded() bool {
	return s.Impression != nil
}

// Store keeps Submissions in a SQLite database.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens (creating if needed) the SQLite database at path and makes sure
// its schema is in place. Use ":memory:" for a throwaway store.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	// single writer; also keeps ":memory:" databases on one connection
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA busy_timeout=5000"} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}
	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{db: db, now: time.Now}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Record stores sub. A zero ID is replaced with a new random one and a zero
// CreatedAt with the current time; the stored Submission is returned.
func (s *Store) Record(ctx context.Context, sub Submission) (Submission, error) {
	ctx, span := tracer.Start(ctx, "history.Record")
	defer span.End()

	if sub.ID == uuid.Nil {
		sub.ID = uuid.New()
	}
	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = s.now()
	}
	sub.CreatedAt = sub.CreatedAt.UTC().Truncate(time.Millisecond)
	span.SetAttributes(attribute.String("history.id", sub.ID.String()))

	var impression sql.NullFloat64
	if sub.Impression != nil {
		impression = sql.NullFloat64{Float64: *sub.Impression, Valid: true}
	}
	m := sub.Metrics
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO submissions (id, likes, saves, comments, shares, profile_visits, follows,
			impression, failure, revision, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sub.ID.String(), m.Likes, m.Saves, m.Comments, m.Shares, m.ProfileVisits, m.Follows,
		impression, sub.Failure, sub.Revision, sub.CreatedAt.UnixMilli())
	if err != nil {
		return Submission{}, fmt.Errorf("insert submission: %w", err)
	}
	return sub, nil
}

// Recent returns up to limit successful submissions, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Submission, error) {
	ctx, span := tracer.Start(ctx, "history.Recent", trace.WithAttributes(attribute.Int("history.limit", limit)))
	defer span.End()

	if limit <= 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, likes, saves, comments, shares, profile_visits, follows,
			impression, failure, revision, created_at
		FROM submissions
		WHERE impression IS NOT NULL
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query submissions: %w", err)
	}
	defer rows.Close()

	var subs []Submission
	for rows.Next() {
		sub, err := scanSubmission(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate submissions: %w", err)
	}
	return subs, nil
}

// Get returns the submission with the passed ID, or sql.ErrNoRows.
func (s *Store) Get(ctx context.Context, id uuid.UUID) (Submission, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, likes, saves, comments, shares, profile_visits, follows,
			impression, failure, revision, created_at
		FROM submissions
		WHERE id = ?`, id.String())
	return scanSubmission(row)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSubmission(row scanner) (Submission, error) {
	var (
		sub        Submission
		id         string
		impression sql.NullFloat64
		createdAt  int64
	)
	m := &sub.Metrics
	err := row.Scan(&id, &m.Likes, &m.Saves, &m.Comments, &m.Shares, &m.ProfileVisits, &m.Follows,
		&impression, &sub.Failure, &sub.Revision, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Submission{}, err
		}
		return Submission{}, fmt.Errorf("scan submission: %w", err)
	}
	sub.ID, err = uuid.Parse(id)
	if err != nil {
		return Submission{}, fmt.Errorf("parse submission id %q: %w", id, err)
	}
	if impression.Valid {
		val := impression.Float64
		sub.Impression = &val
	}
	sub.CreatedAt = time.UnixMilli(createdAt).UTC()
	return sub, nil
}
