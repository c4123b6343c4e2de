package internal

import (
	"os"
	"path/filepath"
	"testing"
)

func TestParseBindNetFromAddr(t *testing.T) {
	for _, tt := range []struct {
		name    string
		input   string
		network string
		address string
		wantErr bool
	}{
		{name: "port only", input: ":8923", network: "tcp", address: "localhost:8923"},
		{name: "host and port", input: "127.0.0.1:8923", network: "tcp", address: "127.0.0.1:8923"},
		{name: "http scheme", input: "http://0.0.0.0:80", network: "tcp", address: "0.0.0.0:80"},
		{name: "unix socket", input: "unix:///run/ucp.sock", network: "unix", address: "/run/ucp.sock"},
		{name: "unknown scheme", input: "gopher://example:70", wantErr: true},
	} {
		t.Run(tt.name, func(t *testing.T) {
			network, address, err := ParseBindNetFromAddr(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("wantErr %v, got: %v", tt.wantErr, err)
			}

			if tt.wantErr {
				return
			}

			if network != tt.network || address != tt.address {
				t.Errorf("want %s %s, got %s %s", tt.network, tt.address, network, address)
			}
		})
	}
}

func TestSetupListenerTCP(t *testing.T) {
	ln, u, err := SetupListener("tcp", "127.0.0.1:0", "0770")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()

	if u != "http://127.0.0.1:0" {
		t.Errorf("wrong url: %s", u)
	}
}

func TestSetupListenerUnix(t *testing.T) {
	dir, err := os.MkdirTemp("", "ucp")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })

	sock := filepath.Join(dir, "s")

	ln, u, err := SetupListener("unix", sock, "0700")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()

	if u != "unix:"+sock {
		t.Errorf("wrong url: %s", u)
	}

	st, err := os.Stat(sock)
	if err != nil {
		t.Fatal(err)
	}

	if st.Mode().Perm() != 0o700 {
		t.Errorf("wrong socket mode: %o", st.Mode().Perm())
	}
}

func TestSetupListenerBadSocketMode(t *testing.T) {
	dir, err := os.MkdirTemp("", "ucp")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })

	if _, _, err := SetupListener("unix", filepath.Join(dir, "s"), "rwx"); err == nil {
		t.Fatal("bad socket mode accepted")
	}
}
