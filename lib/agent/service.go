package agent

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/ucp-commerce/ucp"
	"github.com/ucp-commerce/ucp/internal"
	"github.com/ucp-commerce/ucp/lib/identity"
)

// DefaultPayAllTotal is charged at every store by /pay-all when the request
// does not name a total.
const DefaultPayAllTotal = 100

type payRequest struct {
	Orders []Order `json:"orders"`
}

type payAllRequest struct {
	Stores     []string `json:"stores"`
	OrderTotal *float64 `json:"order_total"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "err", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ucp.ErrorResponse{Error: msg})
}

// Handler serves the agent's HTTP API. stores is the default set of stores
// for /pay-all.
func (c *Client) Handler(stores []string) http.Handler {
	r := chi.NewRouter()
	r.Use(internal.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })

	r.Get(ucp.PublicKeyPath, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, ucp.PublicKeyResponse{PublicKey: identity.PublicKeyHex(c.PublicKey())})
	})

	r.Post("/pay", func(w http.ResponseWriter, r *http.Request) {
		var req payRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10)).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request body")
			return
		}

		if len(req.Orders) == 0 {
			writeError(w, http.StatusBadRequest, "No orders")
			return
		}

		writeJSON(w, http.StatusOK, c.PayAll(r.Context(), req.Orders))
	})

	r.Post("/pay-all", func(w http.ResponseWriter, r *http.Request) {
		var req payAllRequest
		if r.ContentLength != 0 {
			if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10)).Decode(&req); err != nil {
				writeError(w, http.StatusBadRequest, "Invalid request body")
				return
			}
		}

		targets := req.Stores
		if len(targets) == 0 {
			targets = stores
		}

		if len(targets) == 0 {
			writeError(w, http.StatusBadRequest, "No stores")
			return
		}

		total := float64(DefaultPayAllTotal)
		if req.OrderTotal != nil {
			total = *req.OrderTotal
		}

		orders := make([]Order, len(targets))
		for i, store := range targets {
			orders[i] = Order{Store: store, Total: total}
		}

		writeJSON(w, http.StatusOK, c.PayAll(r.Context(), orders))
	})

	return r
}
