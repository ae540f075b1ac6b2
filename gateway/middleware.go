package gateway

import (
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/c360/playerlist/metric"
)

// statusRecorder captures the response code for logging and metrics.
type statusRecorder struct {
	http.ResponseWriter
	code int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.code = code
	r.ResponseWriter.WriteHeader(code)
}

// requestLogger logs each request with the client IP and records the
// request counter when metrics are attached.
func requestLogger(logger *slog.Logger, core *metric.CoreMetrics, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, code: http.StatusOK}

		next.ServeHTTP(rec, r)

		if core != nil {
			core.HTTPRequests.WithLabelValues(r.URL.Path, strconv.Itoa(rec.code)).Inc()
		}
		logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"code", rec.code,
			"client", clientIP(r),
			"duration", time.Since(start))
	})
}

// clientIP returns the originating client address, preferring the first
// X-Forwarded-For entry when the service runs behind a proxy.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if first, _, ok := strings.Cut(fwd, ","); ok {
			return strings.TrimSpace(first)
		}
		return strings.TrimSpace(fwd)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
