package bbolt

import (
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/ucp-commerce/ucp/lib/store"
	"github.com/ucp-commerce/ucp/lib/store/storetest"
)

func config(t *testing.T, path string) json.RawMessage {
	t.Helper()

	data, err := json.Marshal(Config{Path: path})
	if err != nil {
		t.Fatal(err)
	}

	return json.RawMessage(data)
}

func TestImpl(t *testing.T) {
	storetest.Common(t, Factory{}, config(t, filepath.Join(t.TempDir(), "db")))
}

// Outstanding challenges survive a restart of the store service, and one
// consumed before the restart stays consumed.
func TestSurvivesReopen(t *testing.T) {
	cfg := config(t, filepath.Join(t.TempDir(), "db"))

	s, err := Factory{}.Build(t.Context(), cfg)
	if err != nil {
		t.Fatal(err)
	}

	if err := s.Set(t.Context(), "challenge:open", []byte("open"), time.Hour); err != nil {
		t.Fatal(err)
	}
	if err := s.Set(t.Context(), "challenge:spent", []byte("spent"), time.Hour); err != nil {
		t.Fatal(err)
	}
	if err := s.Delete(t.Context(), "challenge:spent"); err != nil {
		t.Fatal(err)
	}

	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	s, err = Factory{}.Build(t.Context(), cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	got, err := s.Get(t.Context(), "challenge:open")
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "open" {
		t.Errorf("wanted %q, got %q", "open", got)
	}

	if err := s.Delete(t.Context(), "challenge:spent"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("consumed key came back after reopen: %v", err)
	}
}

func TestCleanup(t *testing.T) {
	s, err := Factory{}.Build(t.Context(), config(t, filepath.Join(t.TempDir(), "db")))
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	if err := s.Set(t.Context(), "challenge:short", []byte("a"), time.Minute); err != nil {
		t.Fatal(err)
	}
	if err := s.Set(t.Context(), "challenge:long", []byte("b"), 24*time.Hour); err != nil {
		t.Fatal(err)
	}

	removed, err := s.(*Store).cleanup(time.Now().Add(time.Hour))
	if err != nil {
		t.Fatal(err)
	}

	if removed != 1 {
		t.Errorf("wanted 1 record removed, got %d", removed)
	}

	if _, err := s.Get(t.Context(), "challenge:long"); err != nil {
		t.Errorf("live record was cleaned up: %v", err)
	}
}

func TestLive(t *testing.T) {
	now := time.Now()

	for _, tt := range []struct {
		name   string
		record []byte
		want   bool
	}{
		{name: "future", record: encodeRecord(now.Add(time.Second), []byte("x")), want: true},
		{name: "exactly now", record: encodeRecord(now, []byte("x"))},
		{name: "past", record: encodeRecord(now.Add(-time.Second), nil)},
		{name: "truncated", record: []byte{1, 2, 3}},
		{name: "absent", record: nil},
	} {
		t.Run(tt.name, func(t *testing.T) {
			if got := live(tt.record, now); got != tt.want {
				t.Errorf("want %v, got %v", tt.want, got)
			}
		})
	}
}
