// Package audit keeps an append-only SQLite journal of tool invocations.
package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// Entry is one journaled invocation.
type Entry struct {
	ID         string
	Tool       string
	Arguments  map[string]string
	Outcome    string
	Message    string
	Duration   time.Duration
	ExecutedAt time.Time
}

// Journal writes entries to the tool_invocations table.
type Journal struct {
	db   *sql.DB
	now  func() time.Time
	once sync.Once
}

// Open opens (creating if needed) the journal database at path.
func Open(path string) (*Journal, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open audit db: %w", err)
	}
	j, err := New(db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return j, nil
}

// New wraps an existing database handle and creates the schema.
func New(db *sql.DB) (*Journal, error) {
	j := &Journal{db: db, now: time.Now}
	if err := j.initTables(); err != nil {
		return nil, fmt.Errorf("failed to initialize tables: %w", err)
	}
	return j, nil
}

func (j *Journal) initTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS tool_invocations (
		id TEXT PRIMARY KEY,
		tool TEXT NOT NULL,
		arguments TEXT,
		outcome TEXT NOT NULL,
		message TEXT,
		duration_ms INTEGER,
		executed_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_tool_invocations_tool ON tool_invocations(tool);
	CREATE INDEX IF NOT EXISTS idx_tool_invocations_executed_at ON tool_invocations(executed_at);
	`
	_, err := j.db.Exec(schema)
	return err
}

// Record appends e. ID and ExecutedAt are filled in when empty.
func (j *Journal) Record(ctx context.Context, e Entry) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.ExecutedAt.IsZero() {
		e.ExecutedAt = j.now()
	}
	args, err := json.Marshal(e.Arguments)
	if err != nil {
		return fmt.Errorf("marshal arguments: %w", err)
	}
	_, err = j.db.ExecContext(ctx, `
		INSERT INTO tool_invocations (id, tool, arguments, outcome, message, duration_ms, executed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, e.ID, e.Tool, string(args), e.Outcome, e.Message, e.Duration.Milliseconds(), e.ExecutedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("insert invocation: %w", err)
	}
	return nil
}

// Recent returns up to limit entries, newest first.
func (j *Journal) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := j.db.QueryContext(ctx, `
		SELECT id, tool, arguments, outcome, message, duration_ms, executed_at
		FROM tool_invocations
		ORDER BY executed_at DESC, rowid DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query invocations: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e          Entry
			args, msg  sql.NullString
			durationMS sql.NullInt64
			executedAt int64
		)
		if err := rows.Scan(&e.ID, &e.Tool, &args, &e.Outcome, &msg, &durationMS, &executedAt); err != nil {
			return nil, fmt.Errorf("scan invocation: %w", err)
		}
		if args.Valid && args.String != "" {
			if err := json.Unmarshal([]byte(args.String), &e.Arguments); err != nil {
				return nil, fmt.Errorf("decode arguments of %s: %w", e.ID, err)
			}
		}
		e.Message = msg.String
		e.Duration = time.Duration(durationMS.Int64) * time.Millisecond
		e.ExecutedAt = time.UnixMilli(executedAt)
		out = append(out, e)
	}
	return out, rows.Err()
}

// Close closes the underlying database once.
func (j *Journal) Close() error {
	var err error
	j.once.Do(func() { err = j.db.Close() })
	return err
}
