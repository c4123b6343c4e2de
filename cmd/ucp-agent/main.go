package main

import (
	"context"
	"crypto/ed25519"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/facebookgo/flagenv"
	_ "github.com/joho/godotenv/autoload"
	"github.com/ucp-commerce/ucp"
	"github.com/ucp-commerce/ucp/internal"
	"github.com/ucp-commerce/ucp/lib/agent"
	"github.com/ucp-commerce/ucp/lib/identity"
)

var (
	bind                 = flag.String("bind", ":8000", "network address to bind HTTP to")
	bindNetwork          = flag.String("bind-network", "tcp", "network family to bind HTTP to, e.g. unix, tcp")
	socketMode           = flag.String("socket-mode", "0770", "socket mode (permissions) for unix domain sockets.")
	keyFile              = flag.String("key-file", "agent_key.pem", "PKCS#8 PEM file holding the agent's private key, created if missing")
	ed25519PrivateKeyHex = flag.String("ed25519-private-key-hex", "", "hex-encoded agent private key seed, takes precedence over key-file")
	storeURLs            = flag.String("store-urls", "http://localhost:8001,http://localhost:8002", "comma-separated list of store base URLs used by /pay-all")
	timeout              = flag.Duration("timeout", agent.DefaultTimeout, "timeout for a payment against a single store")
	slogLevel            = flag.String("slog-level", "INFO", "logging level (see https://pkg.go.dev/log/slog#hdr-Levels)")
	versionFlag          = flag.Bool("version", false, "print version")
)

func loadKey() (ed25519.PrivateKey, error) {
	if *ed25519PrivateKeyHex != "" {
		return identity.KeyFromHex(*ed25519PrivateKeyHex)
	}

	return identity.LoadOrCreate(*keyFile)
}

func splitStores(value string) []string {
	var result []string
	for _, s := range strings.Split(value, ",") {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		result = append(result, strings.TrimSuffix(s, "/"))
	}
	return result
}

func main() {
	flagenv.Parse()
	flag.Parse()

	if *versionFlag {
		fmt.Println("ucp-agent", ucp.Version)
		return
	}

	internal.InitSlog(*slogLevel)

	priv, err := loadKey()
	if err != nil {
		log.Fatalf("can't load agent key: %v", err)
	}

	key, err := identity.NewKeypair(priv)
	if err != nil {
		log.Fatalf("can't use agent key: %v", err)
	}

	client, err := agent.NewClient(key, &http.Client{Timeout: *timeout})
	if err != nil {
		log.Fatalf("can't construct agent client: %v", err)
	}

	stores := splitStores(*storeURLs)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := http.Server{Handler: client.Handler(stores), ErrorLog: internal.GetFilteredHTTPLogger()}
	listener, listenerUrl, err := internal.SetupListener(*bindNetwork, *bind, *socketMode)
	if err != nil {
		log.Fatal(err)
	}
	slog.Info(
		"listening",
		"url", listenerUrl,
		"version", ucp.Version,
		"public-key", identity.PublicKeyHex(key.PublicKey()),
		"stores", stores,
		"timeout", *timeout,
	)

	go func() {
		<-ctx.Done()
		c, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(c); err != nil {
			log.Printf("cannot shut down: %v", err)
		}
	}()

	if err := srv.Serve(listener); !errors.Is(err, http.ErrServerClosed) {
		log.Fatal(err)
	}
}
