package lib

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/ucp-commerce/ucp"
	"github.com/ucp-commerce/ucp/internal"
	"github.com/ucp-commerce/ucp/lib/challenge"
)

// decodeOrder reads an order request body. An empty body is only accepted
// when allowEmpty is set; anything else that is not a JSON object of the
// expected shape is an invalid request body.
func decodeOrder(w http.ResponseWriter, r *http.Request, allowEmpty bool) (*ucp.OrderRequest, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: can't read body: %w", challenge.ErrInvalidRequestBody, err)
	}

	var result ucp.OrderRequest

	if len(bytes.TrimSpace(body)) == 0 {
		if allowEmpty {
			return &result, nil
		}
		return nil, fmt.Errorf("%w: %w: body is empty", challenge.ErrInvalidRequestBody, challenge.ErrMissingField)
	}

	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("%w: %w: %w", challenge.ErrInvalidRequestBody, challenge.ErrInvalidFormat, err)
	}

	return &result, nil
}

func respondJSON(w http.ResponseWriter, r *http.Request, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(body); err != nil {
		internal.GetRequestLogger(r).Error("failed to encode response", "err", err)
	}
}

func (s *Server) respondWithError(w http.ResponseWriter, r *http.Request, cerr *challenge.Error) {
	lg := internal.GetRequestLogger(r)
	failedValidations.WithLabelValues(string(cerr.Code)).Inc()

	if cerr.StatusCode >= http.StatusInternalServerError {
		lg.Error("request failed", "code", cerr.Code, "retryable", cerr.Retryable(), "err", cerr)
	} else {
		lg.Debug("request rejected", "code", cerr.Code, "err", cerr)
	}

	respondJSON(w, r, cerr.StatusCode, ucp.ErrorResponse{
		Error: cerr.PublicReason,
		Code:  string(cerr.Code),
	})
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}
