package http

import (
	"net/http"

	"expensed/internal/middleware/authn"
)

// handleSummary serves the windowed category aggregation. Results come
// from the service's summary cache when fresh.
func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	userID, ok := authn.UserID(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "Not authorized")
		return
	}

	window, err := parseWindow(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	summary, err := s.expenses.Summarize(r.Context(), userID, window)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Server error fetching analytics")
		return
	}

	respondData(w, http.StatusOK, summary)
}
