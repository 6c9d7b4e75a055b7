// Package drafts persists unsent composition state per conversation so
// a half-written message survives switching conversations or restarting
// the console.
package drafts

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/mattn/go-sqlite3"

	"github.com/freddiequinson/kountryeye-console/internal/drafts/migrations"
	"github.com/freddiequinson/kountryeye-console/internal/reftoken"
)

// Draft is the saved composition state for one conversation.
type Draft struct {
	ConversationID int64
	Body           string
	Attachments    []reftoken.Ref
}

// Store wraps a SQLite connection for the profile-owned drafts.db.
type Store struct {
	db *sql.DB
}

// Open creates a new SQLite connection with WAL mode and runs pending
// migrations.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open draft db: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping draft db: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	source, err := iofs.New(migrations.FS, ".")
	if err != nil {
		return fmt.Errorf("migration source: %w", err)
	}
	driver, err := sqlite3.WithInstance(s.db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", source, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("migration instance: %w", err)
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("migration up: %w", err)
	}
	return nil
}

// Save upserts the draft for a conversation. An empty draft is deleted
// instead, so the table only holds real half-written messages.
func (s *Store) Save(d Draft) error {
	if d.Body == "" && len(d.Attachments) == 0 {
		return s.Delete(d.ConversationID)
	}
	attachments, err := json.Marshal(d.Attachments)
	if err != nil {
		return fmt.Errorf("encode attachments: %w", err)
	}
	_, err = s.db.Exec(`
		INSERT INTO drafts (conversation_id, body, attachments, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(conversation_id) DO UPDATE SET
			body = excluded.body,
			attachments = excluded.attachments,
			updated_at = excluded.updated_at`,
		d.ConversationID, d.Body, string(attachments), time.Now().UnixMilli())
	return err
}

// Load returns the draft for a conversation, or nil when none is saved.
// A corrupt attachments column degrades to an empty list rather than
// losing the text body.
func (s *Store) Load(conversationID int64) (*Draft, error) {
	var (
		body        string
		attachments string
	)
	err := s.db.QueryRow(`
		SELECT body, attachments FROM drafts WHERE conversation_id = ?`,
		conversationID).Scan(&body, &attachments)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	d := &Draft{ConversationID: conversationID, Body: body}
	if err := json.Unmarshal([]byte(attachments), &d.Attachments); err != nil {
		d.Attachments = nil
	}
	return d, nil
}

// Delete removes the draft for a conversation.
func (s *Store) Delete(conversationID int64) error {
	_, err := s.db.Exec(`DELETE FROM drafts WHERE conversation_id = ?`, conversationID)
	return err
}
