package tracker

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/shopkeeper-ai/shopkeeper/pkg/models"
)

// Journal records resolved questions and summarizes them.
type Journal interface {
	// Record stores one interaction.
	Record(ctx context.Context, rec models.InteractionRecord) error
	// Recent returns the newest interactions first.
	Recent(ctx context.Context, limit int) ([]models.InteractionRecord, error)
	// Summary aggregates interactions since a given time by outcome.
	Summary(ctx context.Context, since time.Time) ([]models.OutcomeSummary, error)
	// Close releases resources.
	Close() error
}

// SQLiteJournal implements Journal with a SQLite database.
type SQLiteJournal struct {
	db *sql.DB
}

const createTable = `
CREATE TABLE IF NOT EXISTS interactions (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	request_id TEXT NOT NULL,
	question TEXT NOT NULL,
	intent TEXT NOT NULL,
	outcome TEXT NOT NULL,
	latency_ms INTEGER NOT NULL,
	answer_chars INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_interactions_time ON interactions(created_at);
CREATE INDEX IF NOT EXISTS idx_interactions_outcome ON interactions(outcome, created_at);
`

// New creates a SQLiteJournal and runs auto-migration.
func New(dbPath string) (*SQLiteJournal, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open journal db: %w", err)
	}

	if _, err := db.Exec(createTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate journal db: %w", err)
	}

	return &SQLiteJournal{db: db}, nil
}

// Record stores an interaction. A zero CreatedAt is set to now.
func (j *SQLiteJournal) Record(ctx context.Context, rec models.InteractionRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO interactions (request_id, question, intent, outcome, latency_ms, answer_chars, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.RequestID, rec.Question, rec.Intent, string(rec.Outcome), rec.LatencyMs, rec.AnswerChars, rec.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("record interaction: %w", err)
	}
	return nil
}

// Recent returns up to limit interactions, newest first.
func (j *SQLiteJournal) Recent(ctx context.Context, limit int) ([]models.InteractionRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := j.db.QueryContext(ctx,
		`SELECT id, request_id, question, intent, outcome, latency_ms, answer_chars, created_at
		 FROM interactions ORDER BY created_at DESC, id DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query interactions: %w", err)
	}
	defer rows.Close()

	var records []models.InteractionRecord
	for rows.Next() {
		var (
			r       models.InteractionRecord
			outcome string
		)
		if err := rows.Scan(&r.ID, &r.RequestID, &r.Question, &r.Intent, &outcome, &r.LatencyMs, &r.AnswerChars, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan interaction: %w", err)
		}
		r.Outcome = models.Outcome(outcome)
		records = append(records, r)
	}
	return records, rows.Err()
}

// Summary returns per-outcome counts and average latency since a given
// time, most frequent outcome first.
func (j *SQLiteJournal) Summary(ctx context.Context, since time.Time) ([]models.OutcomeSummary, error) {
	rows, err := j.db.QueryContext(ctx,
		`SELECT outcome, COUNT(*), AVG(latency_ms)
		 FROM interactions WHERE created_at >= ?
		 GROUP BY outcome ORDER BY COUNT(*) DESC, outcome`,
		since.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("query summary: %w", err)
	}
	defer rows.Close()

	var out []models.OutcomeSummary
	for rows.Next() {
		var (
			s       models.OutcomeSummary
			outcome string
		)
		if err := rows.Scan(&outcome, &s.Count, &s.AvgLatencyMs); err != nil {
			return nil, fmt.Errorf("scan summary: %w", err)
		}
		s.Outcome = models.Outcome(outcome)
		out = append(out, s)
	}
	return out, rows.Err()
}

// Close releases the database connection.
func (j *SQLiteJournal) Close() error {
	return j.db.Close()
}
