package schedtest

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strings"
)

type ctxKey string

const ctxKeyRequestID ctxKey = "request_id"

// RequestIDFromContext extracts the request ID from context.
func RequestIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(ctxKeyRequestID).(string); ok {
		return id
	}
	return ""
}

// requestIDMiddleware reuses the caller's X-Request-ID or generates one.
func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get("X-Request-ID")
		if reqID == "" {
			reqID = requestID()
		}
		ctx := context.WithValue(r.Context(), ctxKeyRequestID, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// recordMiddleware appends every request to the server's log.
func (s *Server) recordMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body []byte
		if r.Body != nil {
			body, _ = io.ReadAll(r.Body)
			r.Body = io.NopCloser(bytes.NewReader(body))
		}
		s.mu.Lock()
		s.requests = append(s.requests, Request{
			Method:    r.Method,
			Path:      strings.TrimPrefix(r.URL.Path, prefix),
			Query:     r.URL.Query(),
			RequestID: RequestIDFromContext(r.Context()),
			Auth:      r.Header.Get("Authorization"),
			Body:      body,
		})
		s.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

// authMiddleware rejects requests without the expected bearer token the way
// the scheduler does: 403 with an "unauthenticated" code.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		want := s.token
		s.mu.Unlock()
		if want != "" && r.Header.Get("Authorization") != "Bearer "+want {
			respondError(w, http.StatusForbidden, "unauthenticated", "Authentication credentials were not provided.")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// faultMiddleware serves an injected failure for the next matching request.
func (s *Server) faultMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := strings.TrimPrefix(r.URL.Path, prefix)
		s.mu.Lock()
		var hit *fault
		for i, f := range s.faults {
			if f.method == r.Method && strings.HasPrefix(path, f.pathPrefix) {
				hit = &s.faults[i]
				s.faults = append(s.faults[:i:i], s.faults[i+1:]...)
				break
			}
		}
		s.mu.Unlock()
		if hit != nil {
			if hit.status == 0 {
				// Simulate a dropped connection.
				if hj, ok := w.(http.Hijacker); ok {
					if conn, _, err := hj.Hijack(); err == nil {
						conn.Close()
						return
					}
				}
				hit.status = http.StatusBadGateway
			}
			respondJSON(w, hit.status, hit.body)
			return
		}
		next.ServeHTTP(w, r)
	})
}
