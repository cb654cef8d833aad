package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Miketheless/workshopneu/internal/metrics"

	"github.com/google/uuid"
)

const requestIDHeader = "X-Request-ID"

func (s *HTTPServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		reqID := r.Header.Get(requestIDHeader)
		if reqID == "" {
			reqID = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, reqID)

		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)

		metrics.IncHTTP(s.routeLabel(r), strconv.Itoa(recorder.status))
		s.logger.Info().
			Str("request_id", reqID).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", recorder.status).
			Dur("duration", time.Since(start)).
			Msg("http request")
	})
}

// routeLabel keeps the metric label set bounded: page routes sit behind
// the CSRF wrapper, so their pattern is resolved from the path.
func (s *HTTPServer) routeLabel(r *http.Request) string {
	if r.Pattern != "" && r.Pattern != "/" {
		return r.Pattern
	}
	for _, rt := range s.pageRoutes() {
		if _, path, ok := strings.Cut(rt.pattern, " "); ok && (path == r.URL.Path || path == "/{$}" && r.URL.Path == "/") {
			return rt.pattern
		}
	}
	return "other"
}

// securityHeaders applies the headers every portal response carries.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("Referrer-Policy", "same-origin")
		w.Header().Set("X-Frame-Options", "SAMEORIGIN")
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
