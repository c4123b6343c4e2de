package store_test

import (
	"errors"
	"testing"
	"time"

	"github.com/ucp-commerce/ucp/lib/store"
	"github.com/ucp-commerce/ucp/lib/store/memory"
)

type data struct {
	ID    string `json:"id" cbor:"id"`
	Bytes []byte `json:"bytes" cbor:"bytes"`
}

func TestTyped(t *testing.T) {
	for _, encoding := range []string{"", "json", "cbor"} {
		t.Run("encoding="+encoding, func(t *testing.T) {
			st := memory.New(t.Context())
			defer st.Close()

			db, err := store.Encoded[data](encoding, st, "foo:")
			if err != nil {
				t.Fatal(err)
			}

			want := data{ID: t.Name(), Bytes: []byte{0x00, 0xff, 0x10}}
			if err := db.Set(t.Context(), "test", want, time.Minute); err != nil {
				t.Fatal(err)
			}

			got, err := db.Get(t.Context(), "test")
			if err != nil {
				t.Fatal(err)
			}

			if got.ID != want.ID || string(got.Bytes) != string(want.Bytes) {
				t.Fatalf("got wrong data for key \"test\", wanted %+v but got: %+v", want, got)
			}

			if _, err := st.Get(t.Context(), "foo:test"); err != nil {
				t.Errorf("value was not stored under the prefixed key: %v", err)
			}

			if err := db.Delete(t.Context(), "test"); err != nil {
				t.Fatal(err)
			}

			if _, err := db.Get(t.Context(), "test"); !errors.Is(err, store.ErrNotFound) {
				t.Fatalf("wanted ErrNotFound after delete, got: %v", err)
			}

			if err := st.Set(t.Context(), "foo:test", []byte("}"), time.Minute); err != nil {
				t.Fatal(err)
			}

			if _, err := db.Get(t.Context(), "test"); !errors.Is(err, store.ErrCantDecode) {
				t.Fatalf("wanted ErrCantDecode for garbage data, got: %v", err)
			}
		})
	}
}

func TestEncodedUnknown(t *testing.T) {
	st := memory.New(t.Context())
	defer st.Close()

	if _, err := store.Encoded[data]("msgpack", st, ""); !errors.Is(err, store.ErrUnknownEncoding) {
		t.Fatalf("wanted ErrUnknownEncoding, got: %v", err)
	}
}

func TestBuildUnknownBackend(t *testing.T) {
	if _, err := store.Build(t.Context(), "taco salad", nil); !errors.Is(err, store.ErrBadConfig) {
		t.Fatalf("wanted ErrBadConfig, got: %v", err)
	}
}
