package infra

import (
	"context"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	// Ensure sqlcipher driver is registered.
	_ "github.com/mutecomm/go-sqlcipher/v4"

	"github.com/eliteGoblin/focusd/hotkeyd/internal/domain"
)

const journalDBName = "journal.db"

var (
	// ErrJournalClosed is returned by operations on a closed journal.
	ErrJournalClosed = errors.New("journal is closed")
	// ErrNoJournal is returned when no journal was ever written in a data dir.
	ErrNoJournal = errors.New("no journal")
)

// EncryptedJournal implements domain.Journal using a SQLCipher encrypted
// SQLite database.
type EncryptedJournal struct {
	db     *sql.DB
	dbPath string
}

// OpenJournal opens the journal in dataDir, creating the key on first use.
func OpenJournal(dataDir string) (*EncryptedJournal, error) {
	key, err := EnsureKey(NewFileKeyProvider(dataDir))
	if err != nil {
		return nil, fmt.Errorf("failed to load journal key: %w", err)
	}
	return NewEncryptedJournal(dataDir, key)
}

// OpenExistingJournal opens a journal a daemon already created in dataDir.
// It never creates the key or the database; when either is missing it
// returns ErrNoJournal.
func OpenExistingJournal(dataDir string) (*EncryptedJournal, error) {
	provider := NewFileKeyProvider(dataDir)
	if !provider.KeyExists() {
		return nil, ErrNoJournal
	}
	if _, err := os.Stat(filepath.Join(dataDir, journalDBName)); err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNoJournal
		}
		return nil, fmt.Errorf("failed to stat journal: %w", err)
	}
	key, err := provider.GetKey()
	if err != nil {
		return nil, fmt.Errorf("failed to load journal key: %w", err)
	}
	return NewEncryptedJournal(dataDir, key)
}

// NewEncryptedJournal opens (or creates) the journal database keyed with key.
func NewEncryptedJournal(dataDir string, key []byte) (*EncryptedJournal, error) {
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, journalDBName)
	dsn := fmt.Sprintf("%s?_pragma_key=x'%s'&_pragma_cipher_page_size=4096", dbPath, hex.EncodeToString(key))
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open encrypted database: %w", err)
	}

	// A wrong key only surfaces on first access
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to encrypted database: %w", err)
	}

	j := &EncryptedJournal{db: db, dbPath: dbPath}
	if err := j.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return j, nil
}

func (j *EncryptedJournal) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS dispatches (
		id TEXT PRIMARY KEY,
		at INTEGER NOT NULL,
		command TEXT NOT NULL,
		outcome TEXT NOT NULL,
		error TEXT NOT NULL DEFAULT ''
	);

	CREATE INDEX IF NOT EXISTS dispatches_at ON dispatches (at);
	`
	_, err := j.db.Exec(schema)
	return err
}

// Record appends rec.
func (j *EncryptedJournal) Record(ctx context.Context, rec domain.DispatchRecord) error {
	if j.db == nil {
		return ErrJournalClosed
	}
	_, err := j.db.ExecContext(ctx, `
		INSERT INTO dispatches (id, at, command, outcome, error)
		VALUES (?, ?, ?, ?, ?)`,
		rec.ID, rec.At, string(rec.Command), rec.Outcome, rec.Error,
	)
	if err != nil {
		return fmt.Errorf("failed to record dispatch %s: %w", rec.ID, err)
	}
	return nil
}

// Recent returns up to limit records, newest first. limit <= 0 returns all.
func (j *EncryptedJournal) Recent(ctx context.Context, limit int) ([]domain.DispatchRecord, error) {
	if j.db == nil {
		return nil, ErrJournalClosed
	}
	if limit <= 0 {
		limit = -1 // sqlite: no limit
	}

	rows, err := j.db.QueryContext(ctx, `
		SELECT id, at, command, outcome, error FROM dispatches
		ORDER BY at DESC, rowid DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []domain.DispatchRecord
	for rows.Next() {
		var rec domain.DispatchRecord
		var cmd string
		if err := rows.Scan(&rec.ID, &rec.At, &cmd, &rec.Outcome, &rec.Error); err != nil {
			return nil, err
		}
		rec.Command = domain.NormalizedCommand(cmd)
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Path returns the database file path.
func (j *EncryptedJournal) Path() string {
	return j.dbPath
}

// Close releases the database connection.
func (j *EncryptedJournal) Close() error {
	if j.db == nil {
		return nil
	}
	err := j.db.Close()
	j.db = nil
	return err
}

// Ensure EncryptedJournal implements domain.Journal.
var _ domain.Journal = (*EncryptedJournal)(nil)
