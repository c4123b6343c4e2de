package internal

import (
	"net"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/sebest/xff"
	"github.com/ucp-commerce/ucp"
)

// RemoteXRealIP sets the X-Real-Ip header to the request's real IP if
// the setting is enabled by the user.
func RemoteXRealIP(useRemoteAddress bool, bindNetwork string, next http.Handler) http.Handler {
	if !useRemoteAddress {
		return next
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if bindNetwork == "unix" {
			// For local sockets there is no real remote address but the localhost
			// address should be sensible.
			r.Header.Set("X-Real-Ip", "127.0.0.1")
			next.ServeHTTP(w, r)
			return
		}

		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			host = r.RemoteAddr
		}
		r.Header.Set("X-Real-Ip", host)

		next.ServeHTTP(w, r)
	})
}

// XForwardedForToXRealIP sets the X-Real-Ip header based on the first public
// address in the X-Forwarded-For header when X-Real-Ip is not already set.
func XForwardedForToXRealIP(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Real-Ip") == "" && r.Header.Get("X-Forwarded-For") != "" {
			addr := xff.GetRemoteAddr(r)
			if host, _, err := net.SplitHostPort(addr); err == nil {
				addr = host
			}
			r.Header.Set("X-Real-Ip", addr)
		}

		next.ServeHTTP(w, r)
	})
}

// RequestID makes sure every request carries a request id and echoes it
// back to the caller.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(ucp.RequestIDHeader))
		if id == "" {
			id = "req_" + uuid.NewString()
			r.Header.Set(ucp.RequestIDHeader, id)
		}
		w.Header().Set(ucp.RequestIDHeader, id)

		next.ServeHTTP(w, r)
	})
}
