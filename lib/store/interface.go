package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/fxamacker/cbor/v2"
)

var (
	// ErrNotFound is returned when the store implementation cannot find the value
	// for a given key.
	ErrNotFound = errors.New("store: key not found")

	// ErrCantDecode is returned when a store adaptor cannot decode the store format
	// to a value used by the code.
	ErrCantDecode = errors.New("store: can't decode value")

	// ErrCantEncode is returned when a store adaptor cannot encode the value into
	// the format that the store uses.
	ErrCantEncode = errors.New("store: can't encode value")

	// ErrBadConfig is returned when a store adaptor's configuration is invalid.
	ErrBadConfig = errors.New("store: configuration is invalid")

	// ErrUnknownEncoding is returned when a typed store is requested with an
	// encoding that is not supported.
	ErrUnknownEncoding = errors.New("store: unknown encoding")
)

// Interface defines the calls that the UCP services use for storage in a local
// or remote datastore. This can be implemented with an in-memory, on-disk, or
// in-database storage backend.
type Interface interface {
	// Delete removes a value from the store by key. It is a single atomic
	// conditional delete: it returns ErrNotFound when the key is absent or
	// expired, so of any number of concurrent callers at most one succeeds.
	Delete(ctx context.Context, key string) error

	// Get returns the value of a key assuming that value exists and has not expired.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set puts a value into the store that expires according to its expiry.
	Set(ctx context.Context, key string, value []byte, expiry time.Duration) error

	// Close releases the resources held by the backend.
	Close() error
}

func z[T any]() T { return *new(T) }

// Typed is a store of values of type T layered on top of an Interface.
type Typed[T any] interface {
	Delete(ctx context.Context, key string) error
	Get(ctx context.Context, key string) (T, error)
	Set(ctx context.Context, key string, value T, expiry time.Duration) error
}

// Encoded returns a Typed store using the named encoding ("json" or "cbor").
// An empty encoding means json.
func Encoded[T any](encoding string, underlying Interface, prefix string) (Typed[T], error) {
	switch encoding {
	case "", "json":
		return &JSON[T]{Underlying: underlying, Prefix: prefix}, nil
	case "cbor":
		return &CBOR[T]{Underlying: underlying, Prefix: prefix}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEncoding, encoding)
	}
}

type JSON[T any] struct {
	Underlying Interface
	Prefix     string
}

func (j *JSON[T]) Delete(ctx context.Context, key string) error {
	if j.Prefix != "" {
		key = j.Prefix + key
	}

	return j.Underlying.Delete(ctx, key)
}

func (j *JSON[T]) Get(ctx context.Context, key string) (T, error) {
	if j.Prefix != "" {
		key = j.Prefix + key
	}

	data, err := j.Underlying.Get(ctx, key)
	if err != nil {
		return z[T](), err
	}

	var result T
	if err := json.Unmarshal(data, &result); err != nil {
		return z[T](), fmt.Errorf("%w: %w", ErrCantDecode, err)
	}

	return result, nil
}

func (j *JSON[T]) Set(ctx context.Context, key string, value T, expiry time.Duration) error {
	if j.Prefix != "" {
		key = j.Prefix + key
	}

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCantEncode, err)
	}

	if err := j.Underlying.Set(ctx, key, data, expiry); err != nil {
		return err
	}

	return nil
}

// cborEncMode keeps sub-second precision on timestamps; the default mode
// truncates them to whole seconds.
var cborEncMode = func() cbor.EncMode {
	em, err := cbor.EncOptions{Time: cbor.TimeRFC3339Nano}.EncMode()
	if err != nil {
		panic(err)
	}
	return em
}()

// CBOR is like JSON but stores values in the more compact CBOR encoding
// (RFC 8949). Byte slices are stored natively instead of as base64 text.
type CBOR[T any] struct {
	Underlying Interface
	Prefix     string
}

func (c *CBOR[T]) Delete(ctx context.Context, key string) error {
	if c.Prefix != "" {
		key = c.Prefix + key
	}

	return c.Underlying.Delete(ctx, key)
}

func (c *CBOR[T]) Get(ctx context.Context, key string) (T, error) {
	if c.Prefix != "" {
		key = c.Prefix + key
	}

	data, err := c.Underlying.Get(ctx, key)
	if err != nil {
		return z[T](), err
	}

	var result T
	if err := cbor.Unmarshal(data, &result); err != nil {
		return z[T](), fmt.Errorf("%w: %w", ErrCantDecode, err)
	}

	return result, nil
}

func (c *CBOR[T]) Set(ctx context.Context, key string, value T, expiry time.Duration) error {
	if c.Prefix != "" {
		key = c.Prefix + key
	}

	data, err := cborEncMode.Marshal(value)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCantEncode, err)
	}

	return c.Underlying.Set(ctx, key, data, expiry)
}
