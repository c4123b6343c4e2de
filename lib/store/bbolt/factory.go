package bbolt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ucp-commerce/ucp/lib/store"
	"go.etcd.io/bbolt"
)

var (
	ErrMissingPath     = errors.New("bbolt: path is missing from config")
	ErrCantWriteToPath = errors.New("bbolt: can't write to path")
	ErrBadLockTimeout  = errors.New("bbolt: lockTimeout is not a valid duration")
)

// DefaultBucket holds the records when Config.Bucket is unset.
const DefaultBucket = "ucp"

func init() {
	store.Register("bbolt", Factory{})
}

// Config is the bbolt storage backend configuration.
type Config struct {
	// Path of the database file. Its folder must be writable.
	Path string `json:"path"`

	// LockTimeout is how long to wait for the file lock, as a
	// time.ParseDuration string. Defaults to one second.
	LockTimeout string `json:"lockTimeout,omitempty"`

	// Bucket lets several stores share one file. Defaults to DefaultBucket.
	Bucket string `json:"bucket,omitempty"`
}

func (c Config) lockTimeout() time.Duration {
	if d, err := time.ParseDuration(c.LockTimeout); err == nil {
		return d
	}

	return time.Second
}

func (c Config) bucket() []byte {
	if c.Bucket == "" {
		return []byte(DefaultBucket)
	}
	return []byte(c.Bucket)
}

// Valid checks the configuration, including that the database folder is
// writable.
func (c Config) Valid() error {
	var errs []error

	if c.Path == "" {
		errs = append(errs, ErrMissingPath)
	} else {
		probe, err := os.CreateTemp(filepath.Dir(c.Path), ".ucp-probe-*")
		if err != nil {
			errs = append(errs, fmt.Errorf("%w: %w", ErrCantWriteToPath, err))
		} else {
			probe.Close()
			os.Remove(probe.Name())
		}
	}

	if c.LockTimeout != "" {
		if _, err := time.ParseDuration(c.LockTimeout); err != nil {
			errs = append(errs, fmt.Errorf("%w: %w", ErrBadLockTimeout, err))
		}
	}

	return errors.Join(errs...)
}

func parseConfig(data json.RawMessage) (Config, error) {
	var config Config

	if err := json.Unmarshal(data, &config); err != nil {
		return config, fmt.Errorf("%w: %w", store.ErrBadConfig, err)
	}

	if err := config.Valid(); err != nil {
		return config, fmt.Errorf("%w: %w", store.ErrBadConfig, err)
	}

	return config, nil
}

// Factory opens bbolt databases for the store registry.
type Factory struct{}

func (Factory) Build(ctx context.Context, data json.RawMessage) (store.Interface, error) {
	config, err := parseConfig(data)
	if err != nil {
		return nil, err
	}

	bdb, err := bbolt.Open(config.Path, 0o600, &bbolt.Options{Timeout: config.lockTimeout()})
	if err != nil {
		return nil, fmt.Errorf("can't open bbolt database %s: %w", config.Path, err)
	}

	bucket := config.bucket()
	if err := bdb.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucket)
		return err
	}); err != nil {
		bdb.Close()
		return nil, fmt.Errorf("can't create bucket %q in %s: %w", bucket, config.Path, err)
	}

	ctx, cancel := context.WithCancel(ctx)
	result := &Store{
		bdb:    bdb,
		bucket: bucket,
		cancel: cancel,
	}

	go result.cleanupThread(ctx)

	return result, nil
}

func (Factory) Valid(data json.RawMessage) error {
	_, err := parseConfig(data)
	return err
}
