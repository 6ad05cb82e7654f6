/**
 * PostgreSQL locate history for the UI locator
 *
 * One row per Locate call: what was asked, which strategy ran, and the top result.
 * Used to audit flaky targets and to tune the coordinate offset per display.
 */

package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"regexp"
	"time"

	"github.com/lib/pq"

	"github.com/adverant/nexus/ui-locator/internal/element"
	"github.com/adverant/nexus/ui-locator/internal/locator"
	"github.com/adverant/nexus/ui-locator/internal/logging"
)

const schemaDDL = `
	CREATE SCHEMA IF NOT EXISTS locator;
	CREATE TABLE IF NOT EXISTS locator.locate_history (
		id              UUID PRIMARY KEY,
		description     TEXT NOT NULL,
		target          TEXT,
		strategy        TEXT NOT NULL,
		result_count    INTEGER NOT NULL,
		top_bbox        INTEGER[],
		top_confidence  NUMERIC(5,4),
		top_element     JSONB,
		duration_ms     BIGINT NOT NULL,
		error_message   TEXT,
		created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);
	CREATE INDEX IF NOT EXISTS locate_history_created_at_idx ON locator.locate_history (created_at DESC);
`

// PostgresRecorder stores locate attempts
type PostgresRecorder struct {
	db     *sql.DB
	logger *logging.Logger
}

// sanitizeConfidence rounds confidence to 4 decimal places and clamps it to [0, 1]
// so it fits NUMERIC(5,4).
func sanitizeConfidence(confidence float64) float64 {
	if confidence < 0.0 {
		return 0.0
	}
	if confidence > 1.0 {
		return 1.0
	}
	return float64(int(confidence*10000+0.5)) / 10000
}

var (
	nullEscape    = regexp.MustCompile(`\\u0000`)
	controlEscape = regexp.MustCompile(`\\u00[01][0-9a-fA-F]`)
)

// sanitizeJSONForPostgres strips escapes JSONB rejects. OCR text occasionally carries
// control characters.
func sanitizeJSONForPostgres(jsonBytes []byte) []byte {
	result := nullEscape.ReplaceAll(jsonBytes, []byte{})
	return controlEscape.ReplaceAll(result, []byte(" "))
}

// NewPostgresRecorder opens and pings the database
func NewPostgresRecorder(databaseURL string) (*PostgresRecorder, error) {
	if databaseURL == "" {
		return nil, fmt.Errorf("database URL is required")
	}

	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Locate calls are sequential; a small pool is plenty
	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(2 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return NewPostgresRecorderFromDB(db), nil
}

// NewPostgresRecorderFromDB wraps an open handle
func NewPostgresRecorderFromDB(db *sql.DB) *PostgresRecorder {
	return &PostgresRecorder{
		db:     db,
		logger: logging.NewLogger("PostgresRecorder"),
	}
}

// EnsureSchema creates the history table if it does not exist
func (p *PostgresRecorder) EnsureSchema(ctx context.Context) error {
	if _, err := p.db.ExecContext(ctx, schemaDDL); err != nil {
		return fmt.Errorf("failed to create locate history schema: %w", err)
	}
	return nil
}

// RecordAttempt inserts one locate attempt
func (p *PostgresRecorder) RecordAttempt(ctx context.Context, attempt *locator.Attempt) error {
	if attempt.ID == "" {
		return fmt.Errorf("attempt ID is required")
	}

	var (
		topBBox       interface{}
		topConfidence interface{}
		topElement    interface{}
	)
	if attempt.Top != nil {
		b := attempt.Top.BBox
		topBBox = pq.Array([]int64{int64(b.X1), int64(b.Y1), int64(b.X2), int64(b.Y2)})
		topConfidence = sanitizeConfidence(attempt.Top.Confidence)

		elementJSON, err := json.Marshal(attempt.Top)
		if err != nil {
			return fmt.Errorf("failed to marshal top element: %w", err)
		}
		topElement = sanitizeJSONForPostgres(elementJSON)
	}

	createdAt := attempt.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	query := `
		INSERT INTO locator.locate_history (
			id, description, target, strategy, result_count,
			top_bbox, top_confidence, top_element,
			duration_ms, error_message, created_at
		) VALUES (
			$1::uuid, $2, NULLIF($3, ''), $4, $5,
			$6, $7::NUMERIC(5,4), $8::jsonb,
			$9, NULLIF($10, ''), $11
		)
	`

	_, err := p.db.ExecContext(
		ctx,
		query,
		attempt.ID,                      // $1
		attempt.Description,             // $2
		attempt.Target,                  // $3
		attempt.Strategy.String(),       // $4
		attempt.ResultCount,             // $5
		topBBox,                         // $6
		topConfidence,                   // $7
		topElement,                      // $8
		attempt.Duration.Milliseconds(), // $9
		attempt.Error,                   // $10
		createdAt,                       // $11
	)
	if err != nil {
		return fmt.Errorf("failed to record locate attempt (id=%s, strategy=%s): %w",
			attempt.ID, attempt.Strategy, err)
	}

	p.logger.Debug("Locate attempt recorded",
		"attemptId", attempt.ID,
		"strategy", attempt.Strategy.String(),
		"results", attempt.ResultCount)

	return nil
}

// AttemptRow is a stored attempt as read back
type AttemptRow struct {
	ID            string
	Description   string
	Target        string
	Strategy      string
	ResultCount   int
	TopBBox       *element.BBox
	TopConfidence float64
	DurationMs    int64
	ErrorMessage  string
	CreatedAt     time.Time
}

// RecentAttempts returns the newest attempts first
func (p *PostgresRecorder) RecentAttempts(ctx context.Context, limit int) ([]AttemptRow, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `
		SELECT
			id, description, target, strategy, result_count,
			top_bbox, top_confidence, duration_ms, error_message, created_at
		FROM locator.locate_history
		ORDER BY created_at DESC
		LIMIT $1
	`

	rows, err := p.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query locate history: %w", err)
	}
	defer rows.Close()

	var result []AttemptRow
	for rows.Next() {
		var (
			row           AttemptRow
			target        sql.NullString
			topBBox       pq.Int64Array
			topConfidence sql.NullFloat64
			errorMessage  sql.NullString
		)
		if err := rows.Scan(
			&row.ID, &row.Description, &target, &row.Strategy, &row.ResultCount,
			&topBBox, &topConfidence, &row.DurationMs, &errorMessage, &row.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan locate history: %w", err)
		}

		row.Target = target.String
		row.TopConfidence = topConfidence.Float64
		row.ErrorMessage = errorMessage.String
		if len(topBBox) == 4 {
			row.TopBBox = &element.BBox{
				X1: int(topBBox[0]), Y1: int(topBBox[1]),
				X2: int(topBBox[2]), Y2: int(topBBox[3]),
			}
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read locate history: %w", err)
	}

	return result, nil
}

// Ping checks database connectivity
func (p *PostgresRecorder) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

// Close closes the database connection
func (p *PostgresRecorder) Close() error {
	if p.db != nil {
		return p.db.Close()
	}
	return nil
}

// GetStats returns connection pool statistics
func (p *PostgresRecorder) GetStats() sql.DBStats {
	return p.db.Stats()
}
