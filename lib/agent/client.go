// Package agent is the purchasing side of the protocol: it discovers a
// store's endpoints, obtains a challenge, signs a mandate for the order
// total and redeems it.
package agent

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/ucp-commerce/ucp"
	"github.com/ucp-commerce/ucp/internal"
	"github.com/ucp-commerce/ucp/lib/challenge"
	"github.com/ucp-commerce/ucp/lib/identity"
	"github.com/ucp-commerce/ucp/lib/mandate"
	"github.com/ucp-commerce/ucp/lib/receipt"
)

// Payment outcomes. Failed means the store answered and refused; error
// means the handshake could not be carried out at all.
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
	StatusError   = "error"
)

var (
	ErrNoChallenge       = errors.New("agent: store did not issue a challenge")
	ErrReceiptUnverified = errors.New("agent: receipt does not verify")
)

// UnexpectedStatusError is returned when a store answers a session request
// with neither a challenge nor 402.
type UnexpectedStatusError struct {
	StatusCode int
}

func (e *UnexpectedStatusError) Error() string {
	return fmt.Sprintf("agent: unexpected status %d", e.StatusCode)
}

// DefaultTimeout bounds a single payment against one store.
const DefaultTimeout = 15 * time.Second

type PaymentStatus struct {
	Store   string `json:"store"`
	Status  string `json:"status"`
	Details string `json:"details"`
	Receipt string `json:"receipt,omitempty"`
}

// Order is the amount owed to a single store.
type Order struct {
	Store string  `json:"store"`
	Total float64 `json:"order_total"`
}

type Client struct {
	http   *http.Client
	signer *mandate.Signer
}

// NewClient builds a client signing with key. A nil httpClient gets one
// with DefaultTimeout.
func NewClient(key *identity.Keypair, httpClient *http.Client) (*Client, error) {
	signer, err := mandate.NewSigner(key.PrivateKey())
	if err != nil {
		return nil, err
	}

	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultTimeout}
	}

	return &Client{http: httpClient, signer: signer}, nil
}

func (c *Client) PublicKey() ed25519.PublicKey {
	return c.signer.PublicKey()
}

func join(base, path string) string {
	return strings.TrimSuffix(base, "/") + path
}

// Discover fetches the store's discovery document. Stores that don't serve
// one are assumed to use the default endpoint paths.
func (c *Client) Discover(ctx context.Context, storeURL string) *ucp.Discovery {
	result := &ucp.Discovery{
		Endpoints: map[string]string{
			"sessions": ucp.SessionsPath,
			"complete": ucp.CompletePath,
		},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, join(storeURL, ucp.DiscoveryPath), nil)
	if err != nil {
		return result
	}

	resp, err := c.http.Do(req)
	if err != nil {
		slog.Debug("discovery failed, using default endpoints", "store", storeURL, "err", err)
		return result
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		slog.Debug("no discovery document, using default endpoints", "store", storeURL, "status", resp.StatusCode)
		return result
	}

	var doc ucp.Discovery
	if err := json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&doc); err != nil {
		slog.Debug("discovery document unreadable, using default endpoints", "store", storeURL, "err", err)
		return result
	}

	for _, name := range []string{"sessions", "complete"} {
		if path := doc.Endpoints[name]; strings.HasPrefix(path, "/") {
			result.Endpoints[name] = path
		}
	}
	result.Name = doc.Name
	result.Capabilities = doc.Capabilities
	result.Receipts = doc.Receipts

	return result
}

func (c *Client) postJSON(ctx context.Context, url string, headers map[string]string, body any) (*http.Response, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	return c.http.Do(req)
}

// Session asks the store for a challenge bound to total.
func (c *Client) Session(ctx context.Context, storeURL string, doc *ucp.Discovery, total float64) ([]byte, error) {
	resp, err := c.postJSON(ctx, join(storeURL, doc.Endpoints["sessions"]), nil, ucp.OrderRequest{OrderTotal: &total})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	header := resp.Header.Get(ucp.ChallengeHeader)
	if header == "" {
		if resp.StatusCode != http.StatusPaymentRequired {
			return nil, &UnexpectedStatusError{StatusCode: resp.StatusCode}
		}
		return nil, ErrNoChallenge
	}

	return challenge.DecodeToken(header)
}

// Pay runs the whole handshake against one store. It never returns an
// error; the outcome is described by the returned status.
func (c *Client) Pay(ctx context.Context, storeURL string, total float64) PaymentStatus {
	result := PaymentStatus{Store: storeURL}
	lg := slog.With("store", storeURL, "order_total", total)

	if _, err := mandate.ToCents(total); err != nil {
		result.Status, result.Details = StatusError, err.Error()
		return result
	}

	doc := c.Discover(ctx, storeURL)

	var use *UnexpectedStatusError
	token, err := c.Session(ctx, storeURL, doc, total)
	switch {
	case errors.As(err, &use):
		result.Status, result.Details = StatusFailed, fmt.Sprintf("Unexpected status %d", use.StatusCode)
		return result
	case err != nil:
		result.Status, result.Details = StatusError, err.Error()
		return result
	}
	lg = lg.With("challenge", internal.Fingerprint(token))

	header, err := c.signer.Mandate(token, total)
	if err != nil {
		result.Status, result.Details = StatusError, err.Error()
		return result
	}

	resp, err := c.postJSON(ctx, join(storeURL, doc.Endpoints["complete"]), map[string]string{ucp.MandateHeader: header}, ucp.OrderRequest{
		Challenge:  challenge.EncodeToken(token),
		OrderTotal: &total,
	})
	if err != nil {
		result.Status, result.Details = StatusError, err.Error()
		return result
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		result.Status, result.Details = StatusError, err.Error()
		return result
	}

	if resp.StatusCode != http.StatusCreated {
		lg.Info("payment rejected", "status", resp.StatusCode)
		result.Status, result.Details = StatusFailed, "Verification failed: "+strings.TrimSpace(string(body))
		return result
	}

	var conf ucp.PaymentConfirmation
	if err := json.Unmarshal(body, &conf); err != nil {
		result.Status, result.Details = StatusError, fmt.Sprintf("can't decode confirmation: %v", err)
		return result
	}

	if err := checkReceipt(doc, conf.Receipt, total); err != nil {
		lg.Warn("store confirmed payment with a bad receipt", "err", err)
		result.Status, result.Details = StatusFailed, err.Error()
		return result
	}

	lg.Info("payment confirmed")
	result.Status, result.Details, result.Receipt = StatusSuccess, "Payment Confirmed", conf.Receipt
	return result
}

// checkReceipt verifies a receipt when the store advertises a receipt key.
func checkReceipt(doc *ucp.Discovery, signed string, total float64) error {
	if doc.Receipts == nil || doc.Receipts.Algorithm != receipt.Algorithm {
		return nil
	}

	pub, err := identity.PublicKeyFromHex(doc.Receipts.PublicKey)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrReceiptUnverified, err)
	}

	claims, err := receipt.Parse(signed, pub)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrReceiptUnverified, err)
	}

	want, err := mandate.FormatAmount(total)
	if err != nil {
		return err
	}

	if claims.OrderTotal != want {
		return fmt.Errorf("%w: receipt is for %s, paid %s", ErrReceiptUnverified, claims.OrderTotal, want)
	}

	return nil
}

// PayAll pays every order concurrently. Each store is an independent
// handshake; there is no atomic settlement across stores. The results are
// in the order of orders.
func (c *Client) PayAll(ctx context.Context, orders []Order) []PaymentStatus {
	result := make([]PaymentStatus, len(orders))

	var wg sync.WaitGroup
	for i, o := range orders {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result[i] = c.Pay(ctx, o.Store, o.Total)
		}()
	}
	wg.Wait()

	return result
}
