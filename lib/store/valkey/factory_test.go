package valkey

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/ucp-commerce/ucp/lib/store"
)

func TestFactoryValid(t *testing.T) {
	f := Factory{}

	for _, tt := range []struct {
		name string
		cfg  string
		err  error
	}{
		{
			name: "good",
			cfg:  `{"url": "redis://valkey:6379/0"}`,
		},
		{
			name: "good with namespace",
			cfg:  `{"url": "redis://valkey:6379/0", "namespace": "store-alpha"}`,
		},
		{
			name: "not json",
			cfg:  `}`,
			err:  store.ErrBadConfig,
		},
		{
			name: "no URL",
			cfg:  `{}`,
			err:  ErrNoURL,
		},
		{
			name: "bad URL",
			cfg:  `{"url": "http://store.example"}`,
			err:  ErrBadURL,
		},
		{
			name: "bad namespace",
			cfg:  `{"url": "redis://valkey:6379/0", "namespace": "Store Alpha"}`,
			err:  ErrBadNamespace,
		},
	} {
		t.Run(tt.name, func(t *testing.T) {
			if err := f.Valid(json.RawMessage(tt.cfg)); !errors.Is(err, tt.err) {
				t.Errorf("want: %v, got: %v", tt.err, err)
			}
		})
	}
}

func TestNamespacedKey(t *testing.T) {
	for _, tt := range []struct {
		namespace string
		want      string
	}{
		{namespace: "", want: "challenge:ab"},
		{namespace: "store-alpha", want: "store-alpha:challenge:ab"},
	} {
		t.Run(tt.namespace, func(t *testing.T) {
			s := &Store{namespace: tt.namespace}
			if got := s.key("challenge:ab"); got != tt.want {
				t.Errorf("want %q, got %q", tt.want, got)
			}
		})
	}
}
