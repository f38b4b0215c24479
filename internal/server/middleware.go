package server

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"net/netip"

	"github.com/google/uuid"

	"tubewatch/internal/logging"
)

const requestIDHeader = "X-Request-Id"

type contextKey string

const requestIDKey contextKey = "request_id"

// requestID tags every request with a correlation id so log lines from
// one push can be tied together.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		ctx := context.WithValue(r.Context(), requestIDKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requestIDFrom returns the correlation id stored by the middleware.
func requestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// allowCIDRs restricts operational endpoints to the configured source
// networks. An empty list allows everything.
func allowCIDRs(cidrs []string, logger *slog.Logger) (func(http.Handler) http.Handler, error) {
	prefixes := make([]netip.Prefix, 0, len(cidrs))
	for _, raw := range cidrs {
		prefix, err := netip.ParsePrefix(raw)
		if err != nil {
			return nil, err
		}
		prefixes = append(prefixes, prefix)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(prefixes) == 0 {
				next.ServeHTTP(w, r)
				return
			}
			host, _, err := net.SplitHostPort(r.RemoteAddr)
			if err != nil {
				host = r.RemoteAddr
			}
			addr, err := netip.ParseAddr(host)
			if err != nil {
				logger.Warn("unparseable remote address", logging.String("remote", r.RemoteAddr))
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
			for _, prefix := range prefixes {
				if prefix.Contains(addr.Unmap()) {
					next.ServeHTTP(w, r)
					return
				}
			}
			logger.Warn("request blocked by allow list", logging.String("remote", host))
			http.Error(w, "forbidden", http.StatusForbidden)
		})
	}, nil
}
