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
	"sync"
	"syscall"
	"time"

	"github.com/facebookgo/flagenv"
	_ "github.com/joho/godotenv/autoload"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/ucp-commerce/ucp"
	"github.com/ucp-commerce/ucp/internal"
	"github.com/ucp-commerce/ucp/lib"
	"github.com/ucp-commerce/ucp/lib/challenge"
	"github.com/ucp-commerce/ucp/lib/config"
	"github.com/ucp-commerce/ucp/lib/identity"
	"github.com/ucp-commerce/ucp/lib/store"
)

var (
	bind                     = flag.String("bind", ":8001", "network address to bind HTTP to")
	bindNetwork              = flag.String("bind-network", "tcp", "network family to bind HTTP to, e.g. unix, tcp")
	configFname              = flag.String("config", "", "full path to the store configuration YAML (defaults to a built-in development configuration)")
	agentPublicKey           = flag.String("agent-public-key", "", "hex-encoded ed25519 public key of the agent whose mandates are accepted")
	agentPublicKeyFile       = flag.String("agent-public-key-file", "", "file name containing value for agent-public-key")
	ed25519PrivateKeyHex     = flag.String("ed25519-private-key-hex", "", "private key used to sign payment receipts, if not set a random one will be assigned")
	ed25519PrivateKeyHexFile = flag.String("ed25519-private-key-hex-file", "", "file name containing value for ed25519-private-key-hex")
	metricsBind              = flag.String("metrics-bind", ":9090", "network address to bind metrics to")
	metricsBindNetwork       = flag.String("metrics-bind-network", "tcp", "network family for the metrics server to bind to")
	socketMode               = flag.String("socket-mode", "0770", "socket mode (permissions) for unix domain sockets.")
	slogLevel                = flag.String("slog-level", "INFO", "logging level (see https://pkg.go.dev/log/slog#hdr-Levels)")
	healthcheck              = flag.Bool("healthcheck", false, "run a health check against the store service")
	useRemoteAddress         = flag.Bool("use-remote-address", false, "read the client's IP address from the network request, useful for debugging and running on bare metal")
	printConfig              = flag.Bool("print-config", false, "print the effective store configuration as YAML and exit")
	versionFlag              = flag.Bool("version", false, "print version")
)

func doHealthCheck() error {
	resp, err := http.Get("http://localhost" + *metricsBind + "/metrics")
	if err != nil {
		return fmt.Errorf("failed to fetch metrics: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	return nil
}

func loadAgentKey() (identity.Provider, error) {
	var (
		pub ed25519.PublicKey
		err error
	)

	switch {
	case *agentPublicKey != "" && *agentPublicKeyFile != "":
		return nil, errors.New("do not specify both AGENT_PUBLIC_KEY and AGENT_PUBLIC_KEY_FILE")
	case *agentPublicKey != "":
		pub, err = identity.PublicKeyFromHex(*agentPublicKey)
	case *agentPublicKeyFile != "":
		pub, err = identity.PublicKeyFromFile(*agentPublicKeyFile)
	default:
		return nil, identity.ErrNoKey
	}
	if err != nil {
		return nil, err
	}

	return identity.NewStatic(pub)
}

func loadReceiptKey() (ed25519.PrivateKey, error) {
	switch {
	case *ed25519PrivateKeyHex != "" && *ed25519PrivateKeyHexFile != "":
		return nil, errors.New("do not specify both ED25519_PRIVATE_KEY_HEX and ED25519_PRIVATE_KEY_HEX_FILE")
	case *ed25519PrivateKeyHex != "":
		return identity.KeyFromHex(*ed25519PrivateKeyHex)
	case *ed25519PrivateKeyHexFile != "":
		hexFile, err := os.ReadFile(*ed25519PrivateKeyHexFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read ED25519_PRIVATE_KEY_HEX_FILE %s: %w", *ed25519PrivateKeyHexFile, err)
		}
		return identity.KeyFromHex(string(hexFile))
	}

	slog.Warn("generating random receipt key, receipts will not verify across restarts or between instances behind the same load balancer")
	return nil, nil
}

func main() {
	flagenv.Parse()
	flag.Parse()

	if *versionFlag {
		fmt.Println("ucp-store", ucp.Version)
		return
	}

	internal.InitSlog(*slogLevel)

	if *healthcheck {
		if err := doHealthCheck(); err != nil {
			log.Fatal(err)
		}
		return
	}

	cfg, err := config.LoadFile(*configFname)
	if err != nil {
		log.Fatalf("can't load store config: %v", err)
	}

	if *printConfig {
		data, err := cfg.Marshal()
		if err != nil {
			log.Fatalf("can't render store config: %v", err)
		}
		os.Stdout.Write(data)
		return
	}

	agentKey, err := loadAgentKey()
	if err != nil {
		log.Fatalf("can't load agent public key, set AGENT_PUBLIC_KEY or AGENT_PUBLIC_KEY_FILE: %v", err)
	}

	receiptKey, err := loadReceiptKey()
	if err != nil {
		log.Fatalf("failed to parse and validate receipt key: %v", err)
	}

	wg := new(sync.WaitGroup)
	// install signal handler
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	backend, err := store.Build(ctx, cfg.Store.Backend, cfg.Store.Parameters)
	if err != nil {
		log.Fatalf("can't build %s store backend: %v", cfg.Store.Backend, err)
	}
	defer backend.Close()

	challenges, err := challenge.NewStore(backend, cfg.Challenge.Options())
	if err != nil {
		log.Fatalf("can't construct challenge store: %v", err)
	}

	s, err := lib.New(lib.Options{
		Challenges:    challenges,
		AgentKey:      agentKey,
		ReceiptKey:    receiptKey,
		ReceiptTTL:    cfg.Receipts.TTL,
		ReceiptIssuer: cfg.Receipts.Issuer,
		Name:          cfg.Discovery.Name,
		Capabilities:  cfg.Discovery.Capabilities,
		Endpoints:     cfg.Discovery.Endpoints,
	})
	if err != nil {
		log.Fatalf("can't construct lib.Server: %v", err)
	}

	if *metricsBind != "" {
		wg.Add(1)
		go metricsServer(ctx, wg.Done)
	}

	var h http.Handler
	h = s
	h = internal.RequestID(h)
	h = internal.RemoteXRealIP(*useRemoteAddress, *bindNetwork, h)
	h = internal.XForwardedForToXRealIP(h)

	srv := http.Server{Handler: h, ErrorLog: internal.GetFilteredHTTPLogger()}
	listener, listenerUrl, err := internal.SetupListener(*bindNetwork, *bind, *socketMode)
	if err != nil {
		log.Fatal(err)
	}
	slog.Info(
		"listening",
		"url", listenerUrl,
		"name", cfg.Discovery.Name,
		"version", ucp.Version,
		"store-backend", cfg.Store.Backend,
		"challenge-ttl", cfg.Challenge.TTL,
		"challenge-retention", cfg.Challenge.Retention,
		"challenge-encoding", cfg.Challenge.Encoding,
		"agent-public-key", identity.PublicKeyHex(agentKey.PublicKey()),
		"receipt-public-key", identity.PublicKeyHex(s.ReceiptPublicKey()),
		"use-remote-address", *useRemoteAddress,
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
	wg.Wait()
}

func metricsServer(ctx context.Context, done func()) {
	defer done()

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := http.Server{Handler: mux, ErrorLog: internal.GetFilteredHTTPLogger()}
	listener, metricsUrl, err := internal.SetupListener(*metricsBindNetwork, *metricsBind, *socketMode)
	if err != nil {
		log.Fatal(err)
	}
	slog.Debug("listening for metrics", "url", metricsUrl)

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
