// ABOUTME: Liveness and readiness endpoints
// ABOUTME: Readiness checks the local store and that the services API answers

package server

import (
	"context"
	"fmt"
	"net/http"
)

// handleHealth returns 200 OK if the process is serving.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handleReady returns 200 OK when the store is usable and the services API
// answers a category listing.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()

	if err := s.store.Ping(ctx); err != nil {
		s.logger.Warn("readiness: store unavailable", "error", err)
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = fmt.Fprintf(w, "store unavailable: %v", err)
		return
	}

	if _, err := s.api.ListCategories(ctx); err != nil {
		s.logger.Warn("readiness: backend unavailable", "error", err)
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = fmt.Fprintf(w, "backend unavailable: %v", err)
		return
	}

	sessions, _ := s.store.CountSessions(ctx, "")
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprintf(w, "ready (%d sessions)", sessions)
}
