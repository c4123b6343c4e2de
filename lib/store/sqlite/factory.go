package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"

	_ "github.com/mattn/go-sqlite3"
	"github.com/ucp-commerce/ucp/lib/store"
)

var (
	ErrMissingPath = errors.New("sqlite: path is missing from config")
)

func init() {
	store.Register("sqlite", Factory{})
}

// Factory builds new instances of the sqlite storage backend.
type Factory struct{}

// Build opens (and if needed creates) the database file and its schema.
func (Factory) Build(ctx context.Context, data json.RawMessage) (store.Interface, error) {
	var config Config
	if err := json.Unmarshal([]byte(data), &config); err != nil {
		return nil, fmt.Errorf("%w: %w", store.ErrBadConfig, err)
	}

	if err := config.Valid(); err != nil {
		return nil, fmt.Errorf("%w: %w", store.ErrBadConfig, err)
	}

	db, err := sql.Open("sqlite3", config.dsn())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Verify the connection
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db.SetMaxOpenConns(config.MaxOpenConns)
	db.SetMaxIdleConns(2)

	if err := createSchema(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	result := &Store{
		db:     db,
		cancel: cancel,
	}

	go result.cleanupThread(ctx)

	return result, nil
}

func (Factory) Valid(data json.RawMessage) error {
	var config Config
	if err := json.Unmarshal([]byte(data), &config); err != nil {
		return fmt.Errorf("%w: %w", store.ErrBadConfig, err)
	}

	if err := config.Valid(); err != nil {
		return fmt.Errorf("%w: %w", store.ErrBadConfig, err)
	}

	return nil
}

// Config is the sqlite storage backend configuration.
type Config struct {
	// Path is the filesystem path of the database file.
	Path string `json:"path"`

	// MaxOpenConns caps the connection pool. Defaults to 4.
	MaxOpenConns int `json:"maxOpenConns,omitempty"`
}

// dsn enables WAL and a busy timeout on every pooled connection, not just
// the first one.
func (c *Config) dsn() string {
	if c.MaxOpenConns <= 0 {
		c.MaxOpenConns = 4
	}

	q := url.Values{}
	q.Set("_busy_timeout", "5000")
	q.Set("_journal_mode", "WAL")
	q.Set("_synchronous", "NORMAL")

	return "file:" + c.Path + "?" + q.Encode()
}

func (c Config) Valid() error {
	var errs []error

	if c.Path == "" {
		errs = append(errs, ErrMissingPath)
	}

	if len(errs) != 0 {
		return errors.Join(errs...)
	}

	return nil
}

// createSchema creates the key/value table.
func createSchema(ctx context.Context, db *sql.DB) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS ucp_store (
		key TEXT PRIMARY KEY,
		value BLOB NOT NULL,
		-- unix nanoseconds
		expires_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_ucp_store_expires_at ON ucp_store(expires_at);
	`

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}
