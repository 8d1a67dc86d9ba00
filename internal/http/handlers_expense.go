package http

import (
	"errors"
	"net/http"

	"expensed/internal/middleware/authn"
	"expensed/internal/storage"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	userID, ok := authn.UserID(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "Not authorized")
		return
	}

	params, err := parseListParams(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := s.expenses.List(r.Context(), userID, params)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Server error fetching expenses")
		return
	}

	respondData(w, http.StatusOK, map[string]any{
		"expenses":      result.Expenses,
		"totalPages":    result.TotalPages,
		"currentPage":   result.CurrentPage,
		"totalExpenses": result.TotalCount,
	})
}

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	userID, ok := authn.UserID(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "Not authorized")
		return
	}

	var req createExpenseRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	expense, err := req.toExpense(userID)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.expenses.Create(r.Context(), expense); err != nil {
		respondError(w, http.StatusInternalServerError, "Server error adding expense")
		return
	}

	respondMessage(w, http.StatusCreated, "Expense added successfully", map[string]any{
		"expense": expense,
	})
}

func (s *Server) handleGetExpense(w http.ResponseWriter, r *http.Request) {
	userID, expenseID, ok := s.expenseIDs(w, r)
	if !ok {
		return
	}

	expense, err := s.expenses.Get(r.Context(), userID, expenseID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			respondError(w, http.StatusNotFound, "Expense not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "Server error fetching expense")
		return
	}

	respondData(w, http.StatusOK, map[string]any{"expense": expense})
}

func (s *Server) handleUpdateExpense(w http.ResponseWriter, r *http.Request) {
	userID, expenseID, ok := s.expenseIDs(w, r)
	if !ok {
		return
	}

	var req updateExpenseRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	expense, err := s.expenses.Get(r.Context(), userID, expenseID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			respondError(w, http.StatusNotFound, "Expense not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "Server error updating expense")
		return
	}

	if err := req.apply(expense); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.expenses.Update(r.Context(), expense); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			respondError(w, http.StatusNotFound, "Expense not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "Server error updating expense")
		return
	}

	respondMessage(w, http.StatusOK, "Expense updated successfully", map[string]any{
		"expense": expense,
	})
}

func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	userID, expenseID, ok := s.expenseIDs(w, r)
	if !ok {
		return
	}

	if _, err := s.expenses.Delete(r.Context(), userID, expenseID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			respondError(w, http.StatusNotFound, "Expense not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "Server error deleting expense")
		return
	}

	writeJSON(w, http.StatusOK, envelope{Success: true, Message: "Expense deleted successfully"})
}

// expenseIDs resolves the authenticated user and the path expense id. A
// malformed id reads as not found: ids are opaque to clients.
func (s *Server) expenseIDs(w http.ResponseWriter, r *http.Request) (userID, expenseID uuid.UUID, ok bool) {
	userID, authed := authn.UserID(r.Context())
	if !authed {
		respondError(w, http.StatusUnauthorized, "Not authorized")
		return uuid.Nil, uuid.Nil, false
	}

	expenseID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusNotFound, "Expense not found")
		return uuid.Nil, uuid.Nil, false
	}
	return userID, expenseID, true
}
