package audit

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"time"

	"lingobridge/internal/security"

	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS translation_attempts (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	message_id TEXT NOT NULL,
	target_language TEXT NOT NULL,
	provider TEXT NOT NULL,
	attempt INTEGER NOT NULL,
	prompt TEXT NOT NULL,
	response TEXT,
	error TEXT,
	duration_ms INTEGER NOT NULL DEFAULT 0,
	created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_attempts_message ON translation_attempts(message_id);
CREATE INDEX IF NOT EXISTS idx_attempts_created ON translation_attempts(created_at);
`

// Attempt is one translation call, successful or not, recorded verbatim for
// auditability.
type Attempt struct {
	MessageID      string
	TargetLanguage string
	Provider       string
	Attempt        int
	Prompt         string
	Response       string
	Error          string
	Duration       time.Duration
}

// Store persists translation attempts to sqlite. Prompt and response
// columns are encrypted at rest when LINGOBRIDGE_ENABLE_ENCRYPTION is set.
type Store struct {
	db        *sql.DB
	encryptor *encryptor
}

// New opens (creating if necessary) the audit database at dbPath.
func New(dbPath string) (*Store, error) {
	if len(dbPath) == 0 || dbPath[0] == '\x00' {
		return nil, fmt.Errorf("invalid audit database path")
	}
	if err := security.ValidateFilePath(dbPath); err != nil {
		return nil, fmt.Errorf("invalid audit database path: %w", err)
	}

	file, err := os.OpenFile(dbPath, os.O_RDWR|os.O_CREATE, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to create audit database file: %w", err)
	}
	if err := file.Close(); err != nil {
		return nil, fmt.Errorf("failed to close audit database file: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping audit database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize audit schema: %w", err)
	}

	enc, err := newEncryptor()
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize encryptor: %w", err)
	}

	return &Store{db: db, encryptor: enc}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// RecordAttempt writes one attempt row. Recording is an observability
// requirement; callers log failures but do not abort translation on them.
func (s *Store) RecordAttempt(ctx context.Context, a *Attempt) error {
	prompt, err := s.encryptor.EncryptIfEnabled(a.Prompt)
	if err != nil {
		return fmt.Errorf("failed to encrypt prompt: %w", err)
	}
	response, err := s.encryptor.EncryptIfEnabled(a.Response)
	if err != nil {
		return fmt.Errorf("failed to encrypt response: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO translation_attempts
			(message_id, target_language, provider, attempt, prompt, response, error, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		a.MessageID, a.TargetLanguage, a.Provider, a.Attempt,
		prompt, response, a.Error, a.Duration.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("failed to record translation attempt: %w", err)
	}
	return nil
}

// AttemptsForMessage returns all recorded attempts for one source message,
// oldest first, with encrypted columns decrypted.
func (s *Store) AttemptsForMessage(ctx context.Context, messageID string) ([]Attempt, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT message_id, target_language, provider, attempt, prompt, response, error, duration_ms
		FROM translation_attempts WHERE message_id = ? ORDER BY id`,
		messageID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query translation attempts: %w", err)
	}
	defer rows.Close()

	var attempts []Attempt
	for rows.Next() {
		var a Attempt
		var durationMs int64
		if err := rows.Scan(&a.MessageID, &a.TargetLanguage, &a.Provider, &a.Attempt,
			&a.Prompt, &a.Response, &a.Error, &durationMs); err != nil {
			return nil, fmt.Errorf("failed to scan attempt row: %w", err)
		}
		if a.Prompt, err = s.encryptor.DecryptIfEnabled(a.Prompt); err != nil {
			return nil, fmt.Errorf("failed to decrypt prompt: %w", err)
		}
		if a.Response, err = s.encryptor.DecryptIfEnabled(a.Response); err != nil {
			return nil, fmt.Errorf("failed to decrypt response: %w", err)
		}
		a.Duration = time.Duration(durationMs) * time.Millisecond
		attempts = append(attempts, a)
	}
	return attempts, rows.Err()
}

// CleanupOldRecords removes attempt rows older than retentionDays.
func (s *Store) CleanupOldRecords(ctx context.Context, retentionDays int) error {
	if retentionDays <= 0 {
		return fmt.Errorf("retention days must be positive, got %d", retentionDays)
	}
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM translation_attempts WHERE created_at < datetime('now', ?)`,
		fmt.Sprintf("-%d days", retentionDays),
	)
	if err != nil {
		return fmt.Errorf("failed to cleanup old audit records: %w", err)
	}
	return nil
}
