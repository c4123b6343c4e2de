package internal

import (
	"bytes"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"

	"github.com/ucp-commerce/ucp"
)

// InitSlog installs a JSON logger on stderr. An unparseable level falls back
// to INFO.
func InitSlog(level string) {
	var programLevel slog.Level
	if err := programLevel.UnmarshalText([]byte(level)); err != nil {
		fmt.Fprintf(os.Stderr, "invalid log level %s: %v, using info\n", level, err)
		programLevel = slog.LevelInfo
	}

	h := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		AddSource: true,
		Level:     programLevel,
	})
	slog.SetDefault(slog.New(h).With("version", ucp.Version))
}

// GetRequestLogger returns the default logger with the request's identity
// attached. Challenge and mandate headers are deliberately absent.
func GetRequestLogger(r *http.Request) *slog.Logger {
	return slog.With(slog.Group("request",
		"id", r.Header.Get(ucp.RequestIDHeader),
		"method", r.Method,
		"path", r.URL.Path,
		"user_agent", r.UserAgent(),
		"x-forwarded-for", r.Header.Get("X-Forwarded-For"),
		"x-real-ip", r.Header.Get("X-Real-Ip"),
	))
}

// Lines the HTTP server logs when agents hang up mid-request. They carry
// no information about the store.
var noisyServerErrors = [][]byte{
	[]byte("context canceled"),
	[]byte("broken pipe"),
	[]byte("connection reset by peer"),
}

// ErrorLogFilter drops noisyServerErrors and passes everything else on to
// Unwrap.
type ErrorLogFilter struct {
	Unwrap *log.Logger
}

func (elf *ErrorLogFilter) Write(p []byte) (int, error) {
	for _, noise := range noisyServerErrors {
		if bytes.Contains(p, noise) {
			return len(p), nil
		}
	}

	if elf.Unwrap != nil {
		return elf.Unwrap.Writer().Write(p)
	}
	return len(p), nil
}

func GetFilteredHTTPLogger() *log.Logger {
	return log.New(&ErrorLogFilter{Unwrap: log.New(os.Stderr, "", log.LstdFlags)}, "", 0)
}
