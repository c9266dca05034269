// Package store persists orchestration checkpoints and chat sessions in SQLite.
package store

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schema string

// ErrNotFound is returned when a lookup matches no rows.
var ErrNotFound = errors.New("not found")

// Checkpoint is the state of a graph run after one node finished.
type Checkpoint struct {
	RunID     string
	Graph     string
	Node      string
	Seq       int
	UserID    string
	Day       string
	State     json.RawMessage
	CreatedAt time.Time
}

// ChatMessage is one persisted chat turn.
type ChatMessage struct {
	Role      string
	Content   string
	CreatedAt time.Time
}

// Store handles database operations
type Store struct {
	db *sql.DB
}

// New opens (creating if needed) the database at dbPath and applies the schema.
func New(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// A single connection keeps writes serialised.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveCheckpoint records a graph checkpoint.
func (s *Store) SaveCheckpoint(ctx context.Context, cp Checkpoint) error {
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO checkpoints (run_id, graph, node, seq, user_id, day, state_json, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		cp.RunID, cp.Graph, cp.Node, cp.Seq, cp.UserID, cp.Day, string(cp.State), cp.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert checkpoint: %w", err)
	}
	return nil
}

// LatestCheckpoint returns the last checkpoint written for a run.
func (s *Store) LatestCheckpoint(ctx context.Context, runID string) (*Checkpoint, error) {
	var cp Checkpoint
	var state string
	err := s.db.QueryRowContext(ctx,
		`SELECT run_id, graph, node, seq, user_id, day, state_json, created_at
		 FROM checkpoints WHERE run_id = ? ORDER BY seq DESC LIMIT 1`,
		runID,
	).Scan(&cp.RunID, &cp.Graph, &cp.Node, &cp.Seq, &cp.UserID, &cp.Day, &state, &cp.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get checkpoint: %w", err)
	}
	cp.State = json.RawMessage(state)
	return &cp, nil
}

// AppendChat appends messages to a session, continuing its sequence.
func (s *Store) AppendChat(ctx context.Context, sessionID string, msgs ...ChatMessage) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var next int
	if err := tx.QueryRowContext(ctx,
		"SELECT COALESCE(MAX(seq), -1) + 1 FROM chat_messages WHERE session_id = ?",
		sessionID,
	).Scan(&next); err != nil {
		return fmt.Errorf("next seq: %w", err)
	}

	for i, m := range msgs {
		created := m.CreatedAt
		if created.IsZero() {
			created = time.Now()
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO chat_messages (session_id, seq, role, content, created_at) VALUES (?, ?, ?, ?, ?)",
			sessionID, next+i, m.Role, m.Content, created.UTC(),
		); err != nil {
			return fmt.Errorf("insert chat message: %w", err)
		}
	}
	return tx.Commit()
}

// ChatHistory returns the most recent limit messages of a session in order.
// A limit <= 0 returns the whole session.
func (s *Store) ChatHistory(ctx context.Context, sessionID string, limit int) ([]ChatMessage, error) {
	query := `SELECT role, content, created_at FROM (
		SELECT role, content, created_at, seq FROM chat_messages
		WHERE session_id = ? ORDER BY seq DESC LIMIT ?
	) ORDER BY seq ASC`
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, query, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("query chat history: %w", err)
	}
	defer rows.Close()

	var out []ChatMessage
	for rows.Next() {
		var m ChatMessage
		if err := rows.Scan(&m.Role, &m.Content, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan chat message: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
