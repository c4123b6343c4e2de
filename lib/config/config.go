// Package config loads the YAML configuration of the store service.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/ucp-commerce/ucp"
	"github.com/ucp-commerce/ucp/data"
	"github.com/ucp-commerce/ucp/lib/challenge"
	"k8s.io/apimachinery/pkg/util/yaml"
	sigsyaml "sigs.k8s.io/yaml"
)

var (
	ErrInvalidDuration   = errors.New("config: invalid duration")
	ErrTTLNotPositive    = errors.New("config.Challenge: ttl must be positive")
	ErrNegativeRetention = errors.New("config.Challenge: retention must not be negative")
	ErrUnknownEncoding   = errors.New("config.Challenge: encoding must be json or cbor")
	ErrNoStoreName       = errors.New("config.Discovery: name must be set")
	ErrInvalidCapability = errors.New("config.Discovery: capability must be a dotted name like dev.ucp.shopping.ap2")
	ErrInvalidEndpoint   = errors.New("config.Discovery: endpoint must be an absolute path")
	ErrReservedEndpoint  = errors.New("config.Discovery: endpoint name is reserved")
)

var capabilityRex = regexp.MustCompile(`^[a-z0-9]+(\.[a-z0-9_]+)+$`)

type Challenge struct {
	TTL       time.Duration
	Retention time.Duration
	Encoding  string
}

type Discovery struct {
	Name         string
	Capabilities []string
	// Endpoints are advertised next to sessions and complete, for example
	// the product catalog.
	Endpoints map[string]string
}

type Receipts struct {
	TTL    time.Duration
	Issuer string
}

// Config is the validated configuration of a store service.
type Config struct {
	Store     Store
	Challenge Challenge
	Discovery Discovery
	Receipts  Receipts
}

type fileChallenge struct {
	TTL       string `json:"ttl,omitempty"`
	Retention string `json:"retention,omitempty"`
	Encoding  string `json:"encoding,omitempty"`
}

type fileDiscovery struct {
	Name         string            `json:"name"`
	Capabilities []string          `json:"capabilities,omitempty"`
	Endpoints    map[string]string `json:"endpoints,omitempty"`
}

type fileReceipts struct {
	TTL    string `json:"ttl,omitempty"`
	Issuer string `json:"issuer,omitempty"`
}

type fileConfig struct {
	Store     Store         `json:"store"`
	Challenge fileChallenge `json:"challenge"`
	Discovery fileDiscovery `json:"discovery"`
	Receipts  fileReceipts  `json:"receipts"`
}

func parseDuration(field, value string, def time.Duration) (time.Duration, error) {
	if value == "" {
		return def, nil
	}

	result, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %w", ErrInvalidDuration, field, err)
	}

	return result, nil
}

func (c *fileConfig) parse() (*Config, error) {
	var errs []error

	result := &Config{
		Store: c.Store,
		Challenge: Challenge{
			Encoding: c.Challenge.Encoding,
		},
		Discovery: Discovery{
			Name:         c.Discovery.Name,
			Capabilities: c.Discovery.Capabilities,
			Endpoints:    c.Discovery.Endpoints,
		},
		Receipts: Receipts{
			Issuer: c.Receipts.Issuer,
		},
	}

	var err error
	if result.Challenge.TTL, err = parseDuration("challenge.ttl", c.Challenge.TTL, ucp.DefaultChallengeTTL); err != nil {
		errs = append(errs, err)
	}

	if result.Challenge.Retention, err = parseDuration("challenge.retention", c.Challenge.Retention, ucp.DefaultExpiredRetention); err != nil {
		errs = append(errs, err)
	}

	if result.Receipts.TTL, err = parseDuration("receipts.ttl", c.Receipts.TTL, ucp.DefaultReceiptTTL); err != nil {
		errs = append(errs, err)
	}

	if len(errs) != 0 {
		return nil, errors.Join(errs...)
	}

	if result.Challenge.Encoding == "" {
		result.Challenge.Encoding = "json"
	}

	return result, nil
}

// Options converts the section into challenge store options. A configured
// retention of zero disables retention.
func (c Challenge) Options() challenge.Options {
	retention := c.Retention
	if retention == 0 {
		retention = -1
	}

	return challenge.Options{
		TTL:       c.TTL,
		Retention: retention,
		Encoding:  c.Encoding,
	}
}

func (c Challenge) Valid() error {
	var errs []error

	if c.TTL <= 0 {
		errs = append(errs, fmt.Errorf("%w: got %s", ErrTTLNotPositive, c.TTL))
	}

	if c.Retention < 0 {
		errs = append(errs, fmt.Errorf("%w: got %s", ErrNegativeRetention, c.Retention))
	}

	switch c.Encoding {
	case "json", "cbor":
	default:
		errs = append(errs, fmt.Errorf("%w: got %q", ErrUnknownEncoding, c.Encoding))
	}

	if len(errs) != 0 {
		return errors.Join(errs...)
	}

	return nil
}

func (d Discovery) Valid() error {
	var errs []error

	if strings.TrimSpace(d.Name) == "" {
		errs = append(errs, ErrNoStoreName)
	}

	for _, c := range d.Capabilities {
		if !capabilityRex.MatchString(c) {
			errs = append(errs, fmt.Errorf("%w: %q", ErrInvalidCapability, c))
		}
	}

	for name, path := range d.Endpoints {
		switch name {
		case "sessions", "complete":
			errs = append(errs, fmt.Errorf("%w: %q", ErrReservedEndpoint, name))
		}

		if !strings.HasPrefix(path, "/") {
			errs = append(errs, fmt.Errorf("%w: %s: %q", ErrInvalidEndpoint, name, path))
		}
	}

	if len(errs) != 0 {
		return errors.Join(errs...)
	}

	return nil
}

func (c *Config) Valid() error {
	var errs []error

	if err := c.Store.Valid(); err != nil {
		errs = append(errs, err)
	}

	if err := c.Challenge.Valid(); err != nil {
		errs = append(errs, err)
	}

	if err := c.Discovery.Valid(); err != nil {
		errs = append(errs, err)
	}

	if c.Receipts.TTL <= 0 {
		errs = append(errs, fmt.Errorf("%w: receipts.ttl must be positive", ErrInvalidDuration))
	}

	if len(errs) != 0 {
		return fmt.Errorf("config is not valid:\n%w", errors.Join(errs...))
	}

	return nil
}

// Load parses and validates a store configuration. fname is only used in
// error messages.
func Load(fin io.Reader, fname string) (*Config, error) {
	var c fileConfig

	if err := yaml.NewYAMLToJSONDecoder(fin).Decode(&c); err != nil {
		return nil, fmt.Errorf("can't parse store config YAML %s: %w", fname, err)
	}

	result, err := c.parse()
	if err != nil {
		return nil, fmt.Errorf("errors parsing store config %s: %w", fname, err)
	}

	if err := result.Valid(); err != nil {
		return nil, fmt.Errorf("errors validating store config %s: %w", fname, err)
	}

	return result, nil
}

// LoadFile loads fname, or the embedded default configuration when fname is
// empty.
func LoadFile(fname string) (*Config, error) {
	var (
		fin io.ReadCloser
		err error
	)

	if fname == "" {
		fname = "(data)/" + data.DefaultStoreConfig
		fin, err = data.Configs.Open(data.DefaultStoreConfig)
	} else {
		fin, err = os.Open(fname)
	}
	if err != nil {
		return nil, fmt.Errorf("can't open store config %s: %w", fname, err)
	}
	defer fin.Close()

	return Load(fin, fname)
}

// Marshal renders the effective configuration as YAML, with every default
// filled in.
func (c *Config) Marshal() ([]byte, error) {
	out := fileConfig{
		Store: c.Store,
		Challenge: fileChallenge{
			TTL:       c.Challenge.TTL.String(),
			Retention: c.Challenge.Retention.String(),
			Encoding:  c.Challenge.Encoding,
		},
		Discovery: fileDiscovery{
			Name:         c.Discovery.Name,
			Capabilities: c.Discovery.Capabilities,
			Endpoints:    c.Discovery.Endpoints,
		},
		Receipts: fileReceipts{
			TTL:    c.Receipts.TTL.String(),
			Issuer: c.Receipts.Issuer,
		},
	}

	return sigsyaml.Marshal(out)
}
