package valkey

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"

	valkey "github.com/redis/go-redis/v9"
	"github.com/ucp-commerce/ucp/lib/store"
)

var (
	ErrNoURL        = errors.New("valkey.Config: no URL defined")
	ErrBadURL       = errors.New("valkey.Config: URL is invalid")
	ErrBadNamespace = errors.New("valkey.Config: namespace may only contain lowercase letters, digits, dashes and underscores")
)

var namespaceRex = regexp.MustCompile(`^[a-z0-9_-]*$`)

func init() {
	store.Register("valkey", Factory{})
}

// Config selects the server and an optional namespace. Several stores can
// share one server as long as their namespaces differ.
type Config struct {
	URL       string `json:"url"`
	Namespace string `json:"namespace,omitempty"`
}

func (c Config) Valid() error {
	var errs []error

	if c.URL == "" {
		errs = append(errs, ErrNoURL)
	} else if _, err := valkey.ParseURL(c.URL); err != nil {
		errs = append(errs, fmt.Errorf("%w: %w", ErrBadURL, err))
	}

	if !namespaceRex.MatchString(c.Namespace) {
		errs = append(errs, fmt.Errorf("%w: %q", ErrBadNamespace, c.Namespace))
	}

	if len(errs) != 0 {
		return fmt.Errorf("valkey.Config: invalid config: %w", errors.Join(errs...))
	}

	return nil
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

type Factory struct{}

func (Factory) Build(ctx context.Context, data json.RawMessage) (store.Interface, error) {
	config, err := parseConfig(data)
	if err != nil {
		return nil, err
	}

	opts, err := valkey.ParseURL(config.URL)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", store.ErrBadConfig, err)
	}

	rdb := valkey.NewClient(opts)

	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("can't ping valkey at %s: %w", opts.Addr, err)
	}

	return &Store{rdb: rdb, namespace: config.Namespace}, nil
}

func (Factory) Valid(data json.RawMessage) error {
	_, err := parseConfig(data)
	return err
}
