package chatlog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/gdbrns/go-whatsapp-gemini-bot/pkg/env"
)

// Entry is one recorded conversation turn.
type Entry struct {
	ID        int64     `json:"id"`
	Sender    string    `json:"sender"`
	Message   string    `json:"message"`
	Response  string    `json:"response"`
	Timestamp time.Time `json:"timestamp"`
}

var (
	storeOnce sync.Once
	storeDB   *sql.DB
	storeErr  error
)

func openDB() (*sql.DB, error) {
	storeOnce.Do(func() {
		dsn, err := env.GetEnvString("WHATSAPP_DATASTORE_URI")
		if err != nil {
			storeErr = errors.New("chatlog datastore configuration not initialized")
			return
		}
		db, err := sql.Open("pgx", dsn)
		if err != nil {
			storeErr = err
			return
		}
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(10)
		db.SetConnMaxLifetime(10 * time.Minute)
		db.SetConnMaxIdleTime(3 * time.Minute)
		if err = db.Ping(); err != nil {
			storeErr = err
			return
		}
		_, err = db.Exec(`CREATE TABLE IF NOT EXISTS chat_logs (
			id BIGSERIAL PRIMARY KEY,
			sender TEXT NOT NULL,
			message TEXT NOT NULL,
			response TEXT NOT NULL,
			timestamp TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`)
		if err != nil {
			storeErr = err
			return
		}
		_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_chat_logs_sender ON chat_logs(sender)`)
		if err != nil {
			storeErr = err
			return
		}
		storeDB = db
	})
	return storeDB, storeErr
}

// Store persists conversation turns in the chat_logs table.
type Store struct {
	db *sql.DB
}

func NewStore() (*Store, error) {
	db, err := openDB()
	if err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

func NewStoreWithDB(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Append(ctx context.Context, sender string, message string, response string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO chat_logs (sender, message, response) VALUES ($1, $2, $3)`,
		sender, message, response)
	if err != nil {
		return fmt.Errorf("append chat log: %w", err)
	}
	return nil
}

// Recent returns the newest entries, capped at limit.
func (s *Store) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, sender, message, response, timestamp FROM chat_logs ORDER BY id DESC LIMIT $1`,
		limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEntries(rows)
}

// BySender returns the newest entries for one sender, capped at limit.
func (s *Store) BySender(ctx context.Context, sender string, limit int) ([]Entry, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, sender, message, response, timestamp FROM chat_logs WHERE sender = $1 ORDER BY id DESC LIMIT $2`,
		sender, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEntries(rows)
}

func scanEntries(rows *sql.Rows) ([]Entry, error) {
	entries := make([]Entry, 0)
	for rows.Next() {
		var entry Entry
		if err := rows.Scan(&entry.ID, &entry.Sender, &entry.Message, &entry.Response, &entry.Timestamp); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}
