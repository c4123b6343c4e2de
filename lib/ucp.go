package lib

import (
	"crypto/ed25519"
	"fmt"
	"io"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/ucp-commerce/ucp"
	"github.com/ucp-commerce/ucp/internal"
	"github.com/ucp-commerce/ucp/lib/challenge"
	"github.com/ucp-commerce/ucp/lib/identity"
	"github.com/ucp-commerce/ucp/lib/mandate"
	"github.com/ucp-commerce/ucp/lib/receipt"
)

var (
	sessionsIssued = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ucp_sessions_issued_total",
		Help: "The total number of payment sessions issued",
	}, []string{"bound"})

	paymentsConfirmed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ucp_payments_confirmed_total",
		Help: "The total number of mandates verified and payments confirmed",
	})

	failedValidations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ucp_failed_validations_total",
		Help: "The total number of rejected requests by failure code",
	}, []string{"code"})
)

type Server struct {
	mux        *http.ServeMux
	challenges *challenge.Store
	agentKey   identity.Provider
	receipts   *receipt.Issuer
	discovery  ucp.Discovery
	opts       Options
}

// CreateSession issues a new challenge. The body is optional; when it
// carries an order total the challenge is bound to it.
func (s *Server) CreateSession(w http.ResponseWriter, r *http.Request) {
	lg := internal.GetRequestLogger(r)

	req, err := decodeOrder(w, r, true)
	if err != nil {
		s.respondWithError(w, r, challenge.NewError("createSession", err))
		return
	}

	var bound *int64
	if total := req.Total(); total != nil {
		cents, err := mandate.ToCents(*total)
		if err != nil {
			s.respondWithError(w, r, challenge.NewError("createSession", fmt.Errorf("%w: %w", challenge.ErrInvalidRequestBody, err)))
			return
		}
		bound = &cents
	}

	chall, err := s.challenges.Create(r.Context(), bound)
	if err != nil {
		s.respondWithError(w, r, challenge.NewError("createSession", err))
		return
	}

	boundLabel := "false"
	if bound != nil {
		boundLabel = "true"
	}
	sessionsIssued.WithLabelValues(boundLabel).Inc()

	lg.Debug("issued challenge", "challenge", internal.Fingerprint(chall.Token), "bound", bound != nil, "expires_at", chall.ExpiresAt)

	w.Header().Set(ucp.ChallengeHeader, chall.Encode())
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusPaymentRequired)
	io.WriteString(w, "Payment Required")
}

// CompletePayment verifies a mandate against its challenge and, only if
// every check passes, consumes the challenge and confirms the payment.
func (s *Server) CompletePayment(w http.ResponseWriter, r *http.Request) {
	lg := internal.GetRequestLogger(r)

	result, err := s.verify(w, r)
	if err != nil {
		s.respondWithError(w, r, challenge.NewError("completePayment", err))
		return
	}

	paymentsConfirmed.Inc()
	lg.Info("payment confirmed", "challenge", internal.Fingerprint(result.chall.Token), "order_total", mandate.FormatCents(result.cents))

	respondJSON(w, r, http.StatusCreated, ucp.PaymentConfirmation{
		Message: "Payment confirmed",
		Receipt: result.receipt,
	})
}

type verified struct {
	chall   *challenge.Challenge
	cents   int64
	receipt string
}

func (s *Server) verify(w http.ResponseWriter, r *http.Request) (*verified, error) {
	header := r.Header.Get(ucp.MandateHeader)
	if header == "" {
		return nil, challenge.ErrMissingMandate
	}

	req, err := decodeOrder(w, r, false)
	if err != nil {
		return nil, err
	}

	total := req.Total()
	switch {
	case req.Challenge == "":
		return nil, fmt.Errorf("%w: %w: challenge", challenge.ErrInvalidRequestBody, challenge.ErrMissingField)
	case total == nil:
		return nil, fmt.Errorf("%w: %w: order_total", challenge.ErrInvalidRequestBody, challenge.ErrMissingField)
	}

	cents, err := mandate.ToCents(*total)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", challenge.ErrInvalidRequestBody, err)
	}

	token, err := challenge.DecodeToken(req.Challenge)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", challenge.ErrInvalidChallenge, err)
	}

	chall, err := s.challenges.Redeem(r.Context(), token, cents)
	if err != nil {
		return nil, err
	}

	pub := s.agentKey.PublicKey()
	if len(pub) != ed25519.PublicKeySize {
		return nil, challenge.ErrMissingServerKey
	}

	sig, err := mandate.Decode(header)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", challenge.ErrInvalidSignature, err)
	}

	if err := mandate.Verify(pub, token, cents, sig); err != nil {
		return nil, fmt.Errorf("%w: %w", challenge.ErrInvalidSignature, err)
	}

	receipt, err := s.receipts.Issue(chall.Token, cents)
	if err != nil {
		return nil, fmt.Errorf("%w: can't sign receipt: %w", challenge.ErrStorageFailure, err)
	}

	if err := s.challenges.Finalize(r.Context(), chall); err != nil {
		return nil, err
	}

	return &verified{chall: chall, cents: cents, receipt: receipt}, nil
}

// ServeDiscovery advertises the protocol endpoints of this store.
func (s *Server) ServeDiscovery(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, r, http.StatusOK, s.discovery)
}

// ReceiptPublicKey returns the key receipts are signed with.
func (s *Server) ReceiptPublicKey() ed25519.PublicKey {
	return s.receipts.PublicKey()
}
