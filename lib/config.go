package lib

import (
	"crypto/ed25519"
	"crypto/rand"
	"fmt"
	"log/slog"
	"maps"
	"net/http"
	"time"

	"github.com/ucp-commerce/ucp"
	"github.com/ucp-commerce/ucp/lib/challenge"
	"github.com/ucp-commerce/ucp/lib/identity"
	"github.com/ucp-commerce/ucp/lib/receipt"
)

type Options struct {
	// Challenges is the challenge store. It is required and its backend
	// stays owned by the caller.
	Challenges *challenge.Store

	// AgentKey verifies mandates. A store refuses to start without one.
	AgentKey identity.Provider

	// ReceiptKey signs payment receipts. A random key is generated when
	// unset, which makes receipts unverifiable across restarts.
	ReceiptKey    ed25519.PrivateKey
	ReceiptTTL    time.Duration
	ReceiptIssuer string

	Name         string
	Capabilities []string
	// Endpoints are advertised in discovery next to sessions and complete.
	Endpoints map[string]string
}

// MaxBodyBytes bounds the size of request bodies.
const MaxBodyBytes = 64 << 10

func New(opts Options) (*Server, error) {
	if opts.Challenges == nil {
		return nil, fmt.Errorf("lib: %w: no challenge store", challenge.ErrStorageFailure)
	}

	if opts.AgentKey == nil || len(opts.AgentKey.PublicKey()) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("lib: %w", challenge.ErrMissingServerKey)
	}

	if opts.ReceiptKey == nil {
		slog.Debug("opts.ReceiptKey not set, generating a new one")
		_, priv, err := ed25519.GenerateKey(rand.Reader)
		if err != nil {
			return nil, fmt.Errorf("lib: can't generate private key: %v", err)
		}
		opts.ReceiptKey = priv
	}

	if opts.ReceiptTTL <= 0 {
		opts.ReceiptTTL = ucp.DefaultReceiptTTL
	}

	if opts.ReceiptIssuer == "" {
		opts.ReceiptIssuer = opts.Name
	}

	endpoints := map[string]string{}
	maps.Copy(endpoints, opts.Endpoints)
	endpoints["sessions"] = ucp.SessionsPath
	endpoints["complete"] = ucp.CompletePath

	capabilities := opts.Capabilities
	if capabilities == nil {
		capabilities = []string{}
	}

	receipts, err := receipt.NewIssuer(opts.ReceiptKey, opts.ReceiptIssuer, opts.ReceiptTTL)
	if err != nil {
		return nil, fmt.Errorf("lib: %w", err)
	}

	result := &Server{
		challenges: opts.Challenges,
		agentKey:   opts.AgentKey,
		receipts:   receipts,
		opts:       opts,
	}

	result.discovery = ucp.Discovery{
		Name:         opts.Name,
		Capabilities: capabilities,
		Endpoints:    endpoints,
		Receipts: &ucp.ReceiptKey{
			Algorithm: receipt.Algorithm,
			PublicKey: identity.PublicKeyHex(receipts.PublicKey()),
		},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST "+ucp.SessionsPath, result.CreateSession)
	mux.HandleFunc("POST "+ucp.CompletePath, result.CompletePayment)
	mux.HandleFunc("GET "+ucp.DiscoveryPath, result.ServeDiscovery)
	result.mux = mux

	return result, nil
}
