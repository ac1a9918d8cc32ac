package agent

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/relay-agents/relay/pkg/llms"
)

// MessageStore persists thread histories across process restarts.
type MessageStore interface {
	// SaveMessages replaces the stored history for a thread.
	SaveMessages(ctx context.Context, threadID string, messages []llms.Message) error

	// LoadMessages returns the stored history, or an empty slice for an
	// unknown thread.
	LoadMessages(ctx context.Context, threadID string) ([]llms.Message, error)

	// DeleteThread removes a thread's history.
	DeleteThread(ctx context.Context, threadID string) error

	// ListThreads returns the IDs of all stored threads.
	ListThreads(ctx context.Context) ([]string, error)

	Close() error
}

// InMemoryStore keeps histories in process memory. Suitable for tests
// and single-shot CLI runs.
type InMemoryStore struct {
	mu      sync.RWMutex
	threads map[string][]llms.Message
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{threads: make(map[string][]llms.Message)}
}

func (s *InMemoryStore) SaveMessages(_ context.Context, threadID string, messages []llms.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := make([]llms.Message, len(messages))
	copy(copied, messages)
	s.threads[threadID] = copied
	return nil
}

func (s *InMemoryStore) LoadMessages(_ context.Context, threadID string) ([]llms.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored := s.threads[threadID]
	out := make([]llms.Message, len(stored))
	copy(out, stored)
	return out, nil
}

func (s *InMemoryStore) DeleteThread(_ context.Context, threadID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.threads, threadID)
	return nil
}

func (s *InMemoryStore) ListThreads(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.threads))
	for id := range s.threads {
		ids = append(ids, id)
	}
	return ids, nil
}

func (s *InMemoryStore) Close() error { return nil }

// SQLiteStore persists thread histories in a SQLite database.
// Concurrency is handled by database-level locking.
type SQLiteStore struct {
	db *sql.DB
}

const createThreadsSchemaSQL = `
CREATE TABLE IF NOT EXISTS threads (
    id VARCHAR(255) PRIMARY KEY,
    messages_json TEXT NOT NULL,
    updated_at TIMESTAMP NOT NULL
)`

// NewSQLiteStore opens (or creates) the database at path and ensures
// the schema exists.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	if _, err := db.Exec(createThreadsSchemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create threads schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) SaveMessages(ctx context.Context, threadID string, messages []llms.Message) error {
	data, err := json.Marshal(messages)
	if err != nil {
		return fmt.Errorf("failed to marshal messages: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO threads (id, messages_json, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET messages_json = excluded.messages_json, updated_at = excluded.updated_at`,
		threadID, string(data), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to save thread %s: %w", threadID, err)
	}
	return nil
}

func (s *SQLiteStore) LoadMessages(ctx context.Context, threadID string) ([]llms.Message, error) {
	var data string
	err := s.db.QueryRowContext(ctx,
		`SELECT messages_json FROM threads WHERE id = ?`, threadID).Scan(&data)
	if err == sql.ErrNoRows {
		return []llms.Message{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load thread %s: %w", threadID, err)
	}

	var messages []llms.Message
	if err := json.Unmarshal([]byte(data), &messages); err != nil {
		return nil, fmt.Errorf("failed to unmarshal thread %s: %w", threadID, err)
	}
	return messages, nil
}

func (s *SQLiteStore) DeleteThread(ctx context.Context, threadID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM threads WHERE id = ?`, threadID)
	if err != nil {
		return fmt.Errorf("failed to delete thread %s: %w", threadID, err)
	}
	return nil
}

func (s *SQLiteStore) ListThreads(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM threads ORDER BY updated_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list threads: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
