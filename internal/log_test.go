package internal

import (
	"bytes"
	"encoding/json"
	"log"
	"log/slog"
	"net/http/httptest"
	"testing"

	"github.com/ucp-commerce/ucp"
)

func TestErrorLogFilter(t *testing.T) {
	for _, tt := range []struct {
		name    string
		message string
		pass    bool
	}{
		{name: "canceled", message: "http: superfluous response: context canceled"},
		{name: "broken pipe", message: "write tcp 127.0.0.1:8001->127.0.0.1:50122: write: broken pipe"},
		{name: "reset", message: "read tcp: connection reset by peer"},
		{name: "tls handshake", message: "http: TLS handshake error from 10.0.0.1:4242: EOF", pass: true},
		{name: "panic", message: "http: panic serving 10.0.0.1:4242: boom", pass: true},
	} {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			lg := log.New(&ErrorLogFilter{Unwrap: log.New(&buf, "", 0)}, "", 0)

			lg.Println(tt.message)

			if got := buf.Len() != 0; got != tt.pass {
				t.Errorf("wanted pass=%v, output: %q", tt.pass, buf.String())
			}

			if tt.pass && buf.String() != tt.message+"\n" {
				t.Errorf("message was altered: %q", buf.String())
			}
		})
	}
}

func TestErrorLogFilterNoDestination(t *testing.T) {
	elf := &ErrorLogFilter{}

	n, err := elf.Write([]byte("anything\n"))
	if err != nil {
		t.Fatal(err)
	}
	if n != len("anything\n") {
		t.Errorf("short write: %d", n)
	}
}

func TestGetRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	old := slog.Default()
	slog.SetDefault(slog.New(slog.NewJSONHandler(&buf, nil)))
	t.Cleanup(func() { slog.SetDefault(old) })

	r := httptest.NewRequest("POST", "/complete", nil)
	r.Header.Set(ucp.RequestIDHeader, "req-1")
	r.Header.Set("X-Real-Ip", "10.0.0.1")
	r.Header.Set(ucp.MandateHeader, "c2VjcmV0")

	GetRequestLogger(r).Info("hello")

	var line struct {
		Request map[string]string `json:"request"`
	}
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatal(err)
	}

	for k, want := range map[string]string{
		"id":        "req-1",
		"method":    "POST",
		"path":      "/complete",
		"x-real-ip": "10.0.0.1",
	} {
		if got := line.Request[k]; got != want {
			t.Errorf("%s: want %q, got %q", k, want, got)
		}
	}

	if bytes.Contains(buf.Bytes(), []byte("c2VjcmV0")) {
		t.Error("mandate leaked into the request log")
	}
}
