package config_test

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/ucp-commerce/ucp/lib/config"
	"github.com/ucp-commerce/ucp/lib/store/bbolt"
	"github.com/ucp-commerce/ucp/lib/store/postgres"
	"github.com/ucp-commerce/ucp/lib/store/sqlite"
	"github.com/ucp-commerce/ucp/lib/store/valkey"
)

func TestStoreValid(t *testing.T) {
	for _, tt := range []struct {
		name  string
		input config.Store
		err   error
	}{
		{
			name:  "no backend",
			input: config.Store{},
			err:   config.ErrNoStoreBackend,
		},
		{
			name: "in-memory backend",
			input: config.Store{
				Backend: "memory",
			},
		},
		{
			name: "bbolt backend",
			input: config.Store{
				Backend:    "bbolt",
				Parameters: json.RawMessage(`{"path": "/tmp/foo"}`),
			},
		},
		{
			name: "bbolt backend no path",
			input: config.Store{
				Backend:    "bbolt",
				Parameters: json.RawMessage(`{"path": ""}`),
			},
			err: bbolt.ErrMissingPath,
		},
		{
			name: "valkey backend",
			input: config.Store{
				Backend:    "valkey",
				Parameters: json.RawMessage(`{"url": "redis://valkey:6379/0"}`),
			},
		},
		{
			name: "valkey backend no URL",
			input: config.Store{
				Backend:    "valkey",
				Parameters: json.RawMessage(`{}`),
			},
			err: valkey.ErrNoURL,
		},
		{
			name: "valkey backend bad URL",
			input: config.Store{
				Backend:    "valkey",
				Parameters: json.RawMessage(`{"url": "http://store.example"}`),
			},
			err: valkey.ErrBadURL,
		},
		{
			name: "sqlite backend",
			input: config.Store{
				Backend:    "sqlite",
				Parameters: json.RawMessage(`{"path": "/tmp/ucp.db"}`),
			},
		},
		{
			name: "sqlite backend no path",
			input: config.Store{
				Backend:    "sqlite",
				Parameters: json.RawMessage(`{}`),
			},
			err: sqlite.ErrMissingPath,
		},
		{
			name: "postgres backend",
			input: config.Store{
				Backend:    "postgres",
				Parameters: json.RawMessage(`{"url": "postgres://ucp:ucp@db:5432/ucp"}`),
			},
		},
		{
			name: "postgres backend no URL",
			input: config.Store{
				Backend:    "postgres",
				Parameters: json.RawMessage(`{}`),
			},
			err: postgres.ErrNoURL,
		},
		{
			name: "unknown backend",
			input: config.Store{
				Backend: "taco salad",
			},
			err: config.ErrUnknownStoreBackend,
		},
	} {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.input.Valid(); !errors.Is(err, tt.err) {
				t.Logf("want: %v", tt.err)
				t.Logf("got:  %v", err)
				t.Error("invalid error returned")
			}
		})
	}
}
