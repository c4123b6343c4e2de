package config_test

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ucp-commerce/ucp"
	"github.com/ucp-commerce/ucp/lib/config"
)

func TestLoadDefault(t *testing.T) {
	c, err := config.LoadFile("")
	if err != nil {
		t.Fatal(err)
	}

	if c.Store.Backend != "memory" {
		t.Errorf("wrong backend: %q", c.Store.Backend)
	}

	if c.Challenge.TTL != ucp.DefaultChallengeTTL {
		t.Errorf("wrong ttl: %s", c.Challenge.TTL)
	}

	if c.Challenge.Retention != ucp.DefaultExpiredRetention {
		t.Errorf("wrong retention: %s", c.Challenge.Retention)
	}

	if c.Discovery.Name == "" || len(c.Discovery.Capabilities) == 0 {
		t.Errorf("discovery not filled in: %+v", c.Discovery)
	}
}

func TestLoadDefaultsForMissingFields(t *testing.T) {
	c, err := config.Load(strings.NewReader("store:\n  backend: memory\ndiscovery:\n  name: Shop\n"), "minimal.yaml")
	if err != nil {
		t.Fatal(err)
	}

	if c.Challenge.TTL != ucp.DefaultChallengeTTL {
		t.Errorf("wrong ttl: %s", c.Challenge.TTL)
	}

	if c.Challenge.Encoding != "json" {
		t.Errorf("wrong encoding: %q", c.Challenge.Encoding)
	}

	if c.Receipts.TTL != ucp.DefaultReceiptTTL {
		t.Errorf("wrong receipt ttl: %s", c.Receipts.TTL)
	}
}

func TestLoadFile(t *testing.T) {
	fname := filepath.Join(t.TempDir(), "store.yaml")
	if err := os.WriteFile(fname, []byte(`store:
  backend: bbolt
  parameters:
    path: /tmp/challenges.db
challenge:
  ttl: 90s
  retention: 0s
  encoding: cbor
discovery:
  name: Store-Beta
`), 0o644); err != nil {
		t.Fatal(err)
	}

	c, err := config.LoadFile(fname)
	if err != nil {
		t.Fatal(err)
	}

	if c.Challenge.TTL != 90*time.Second {
		t.Errorf("wrong ttl: %s", c.Challenge.TTL)
	}

	opts := c.Challenge.Options()
	if opts.Retention >= 0 {
		t.Errorf("zero retention should disable retention, got %s", opts.Retention)
	}

	if opts.Encoding != "cbor" {
		t.Errorf("wrong encoding: %q", opts.Encoding)
	}

	if _, err := config.LoadFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("missing file loaded")
	}
}

func TestLoadInvalid(t *testing.T) {
	for _, tt := range []struct {
		name  string
		input string
		err   error
	}{
		{
			name:  "bad ttl",
			input: "store: {backend: memory}\nchallenge: {ttl: soon}\ndiscovery: {name: Shop}\n",
			err:   config.ErrInvalidDuration,
		},
		{
			name:  "zero ttl",
			input: "store: {backend: memory}\nchallenge: {ttl: 0s}\ndiscovery: {name: Shop}\n",
			err:   config.ErrTTLNotPositive,
		},
		{
			name:  "negative retention",
			input: "store: {backend: memory}\nchallenge: {retention: -1m}\ndiscovery: {name: Shop}\n",
			err:   config.ErrNegativeRetention,
		},
		{
			name:  "unknown encoding",
			input: "store: {backend: memory}\nchallenge: {encoding: xml}\ndiscovery: {name: Shop}\n",
			err:   config.ErrUnknownEncoding,
		},
		{
			name:  "no name",
			input: "store: {backend: memory}\n",
			err:   config.ErrNoStoreName,
		},
		{
			name:  "bad capability",
			input: "store: {backend: memory}\ndiscovery: {name: Shop, capabilities: [Shopping]}\n",
			err:   config.ErrInvalidCapability,
		},
		{
			name:  "reserved endpoint",
			input: "store: {backend: memory}\ndiscovery: {name: Shop, endpoints: {sessions: /s}}\n",
			err:   config.ErrReservedEndpoint,
		},
		{
			name:  "relative endpoint",
			input: "store: {backend: memory}\ndiscovery: {name: Shop, endpoints: {products: api/products}}\n",
			err:   config.ErrInvalidEndpoint,
		},
		{
			name:  "no backend",
			input: "discovery: {name: Shop}\n",
			err:   config.ErrNoStoreBackend,
		},
	} {
		t.Run(tt.name, func(t *testing.T) {
			_, err := config.Load(strings.NewReader(tt.input), tt.name)
			if !errors.Is(err, tt.err) {
				t.Logf("want: %v", tt.err)
				t.Logf("got:  %v", err)
				t.Error("invalid error returned")
			}
		})
	}
}

func TestMarshalRoundTrip(t *testing.T) {
	c, err := config.LoadFile("")
	if err != nil {
		t.Fatal(err)
	}

	data, err := c.Marshal()
	if err != nil {
		t.Fatal(err)
	}

	if !bytes.Contains(data, []byte("ttl: 5m0s")) {
		t.Errorf("marshaled config does not contain ttl:\n%s", data)
	}

	again, err := config.Load(bytes.NewReader(data), "marshaled")
	if err != nil {
		t.Fatalf("can't load marshaled config: %v\n%s", err, data)
	}

	if again.Challenge != c.Challenge {
		t.Errorf("challenge section changed: %+v != %+v", again.Challenge, c.Challenge)
	}
}
