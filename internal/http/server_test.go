package http

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"expensed/internal/auth"
	"expensed/internal/cache"
	"expensed/internal/core"
	"expensed/internal/services"
	"expensed/internal/storage"
)

func newTestServer(t *testing.T) http.Handler {
	t.Helper()

	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRepository() error = %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	issuer := auth.NewTokenIssuer("test-secret", time.Hour)
	summaries := cache.NewLRUCache[core.Summary](10, time.Minute)

	srv := NewServer(
		services.NewExpenseService(repo, nil, summaries),
		services.NewUserService(repo, issuer),
		repo,
		Options{Port: "0", TokenIssuer: issuer, RequestsPerMinute: 10000},
	)
	return srv.Handler()
}

type response struct {
	Success bool                       `json:"success"`
	Message string                     `json:"message"`
	Data    map[string]json.RawMessage `json:"data"`
}

func doJSON(t *testing.T, handler http.Handler, method, path, token string, body any) (*httptest.ResponseRecorder, response) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	var resp response
	if rec.Body.Len() > 0 {
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode response %q: %v", rec.Body.String(), err)
		}
	}
	return rec, resp
}

func registerUser(t *testing.T, handler http.Handler, email string) string {
	t.Helper()

	rec, resp := doJSON(t, handler, http.MethodPost, "/api/auth/register", "", map[string]string{
		"name":     "Test User",
		"email":    email,
		"password": "secret123",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("register status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var token string
	if err := json.Unmarshal(resp.Data["token"], &token); err != nil || token == "" {
		t.Fatalf("register returned no token: %s", rec.Body.String())
	}
	return token
}

func createExpense(t *testing.T, handler http.Handler, token string, body map[string]any) map[string]any {
	t.Helper()

	rec, resp := doJSON(t, handler, http.MethodPost, "/api/expenses", token, body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var expense map[string]any
	if err := json.Unmarshal(resp.Data["expense"], &expense); err != nil {
		t.Fatalf("decode expense: %v", err)
	}
	return expense
}

func TestRegisterLoginMe(t *testing.T) {
	handler := newTestServer(t)

	token := registerUser(t, handler, "alice@example.com")

	rec, resp := doJSON(t, handler, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email":    "alice@example.com",
		"password": "secret123",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("login status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if !resp.Success {
		t.Error("login success = false")
	}

	rec, resp = doJSON(t, handler, http.MethodGet, "/api/auth/me", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("me status = %d", rec.Code)
	}
	var user map[string]any
	if err := json.Unmarshal(resp.Data["user"], &user); err != nil {
		t.Fatalf("decode user: %v", err)
	}
	if user["email"] != "alice@example.com" {
		t.Errorf("email = %v, want alice@example.com", user["email"])
	}
	if user["totalExpenses"] != float64(0) {
		t.Errorf("totalExpenses = %v, want 0", user["totalExpenses"])
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	handler := newTestServer(t)

	registerUser(t, handler, "alice@example.com")
	rec, resp := doJSON(t, handler, http.MethodPost, "/api/auth/register", "", map[string]string{
		"name":     "Again",
		"email":    "alice@example.com",
		"password": "secret123",
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
	if resp.Success {
		t.Error("success = true for duplicate email")
	}
}

func TestLoginWrongPassword(t *testing.T) {
	handler := newTestServer(t)

	registerUser(t, handler, "alice@example.com")
	rec, _ := doJSON(t, handler, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email":    "alice@example.com",
		"password": "wrong-password",
	})
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestExpensesRequireAuth(t *testing.T) {
	handler := newTestServer(t)

	for _, route := range []struct{ method, path string }{
		{http.MethodGet, "/api/expenses"},
		{http.MethodPost, "/api/expenses"},
		{http.MethodGet, "/api/expenses/analytics/summary"},
		{http.MethodGet, "/api/auth/me"},
	} {
		rec, _ := doJSON(t, handler, route.method, route.path, "", nil)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("%s %s status = %d, want 401", route.method, route.path, rec.Code)
		}
	}
}

func TestCreateExpense(t *testing.T) {
	handler := newTestServer(t)
	token := registerUser(t, handler, "alice@example.com")

	expense := createExpense(t, handler, token, map[string]any{
		"title":    "Lunch",
		"amount":   12.50,
		"category": "Food",
		"date":     "2025-03-10T12:00:00Z",
	})

	if expense["title"] != "Lunch" {
		t.Errorf("title = %v, want Lunch", expense["title"])
	}
	if expense["amount"] != 12.5 {
		t.Errorf("amount = %v, want 12.5", expense["amount"])
	}
	if expense["paymentMethod"] != "Cash" {
		t.Errorf("paymentMethod = %v, want default Cash", expense["paymentMethod"])
	}

	// The ledger must reflect the new expense.
	rec, resp := doJSON(t, handler, http.MethodGet, "/api/auth/me", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("me status = %d", rec.Code)
	}
	var user map[string]any
	if err := json.Unmarshal(resp.Data["user"], &user); err != nil {
		t.Fatalf("decode user: %v", err)
	}
	if user["totalExpenses"] != 12.5 {
		t.Errorf("totalExpenses = %v, want 12.5", user["totalExpenses"])
	}
}

func TestCreateExpenseValidation(t *testing.T) {
	handler := newTestServer(t)
	token := registerUser(t, handler, "alice@example.com")

	tests := []struct {
		name string
		body map[string]any
	}{
		{"missing title", map[string]any{"amount": 10, "category": "Food"}},
		{"zero amount", map[string]any{"title": "X", "amount": 0, "category": "Food"}},
		{"negative amount", map[string]any{"title": "X", "amount": -5, "category": "Food"}},
		{"three decimals", map[string]any{"title": "X", "amount": "12.345", "category": "Food"}},
		{"bad category", map[string]any{"title": "X", "amount": 10, "category": "Gambling"}},
		{"bad payment method", map[string]any{"title": "X", "amount": 10, "category": "Food", "paymentMethod": "IOU"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, resp := doJSON(t, handler, http.MethodPost, "/api/expenses", token, tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400 (body %s)", rec.Code, rec.Body.String())
			}
			if resp.Success {
				t.Error("success = true for invalid expense")
			}
		})
	}
}

func TestUpdateExpensePartial(t *testing.T) {
	handler := newTestServer(t)
	token := registerUser(t, handler, "alice@example.com")

	expense := createExpense(t, handler, token, map[string]any{
		"title":       "Lunch",
		"amount":      12.50,
		"category":    "Food",
		"description": "Sushi",
	})
	id := expense["id"].(string)

	rec, resp := doJSON(t, handler, http.MethodPut, "/api/expenses/"+id, token, map[string]any{
		"amount": 20.00,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("update status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var updated map[string]any
	if err := json.Unmarshal(resp.Data["expense"], &updated); err != nil {
		t.Fatalf("decode expense: %v", err)
	}
	if updated["amount"] != 20.0 {
		t.Errorf("amount = %v, want 20", updated["amount"])
	}
	// Untouched fields survive.
	if updated["title"] != "Lunch" || updated["description"] != "Sushi" {
		t.Errorf("partial update clobbered fields: %v", updated)
	}
}

func TestDeleteExpenseSettlesLedger(t *testing.T) {
	handler := newTestServer(t)
	token := registerUser(t, handler, "alice@example.com")

	expense := createExpense(t, handler, token, map[string]any{
		"title": "Lunch", "amount": 12.50, "category": "Food",
	})
	id := expense["id"].(string)

	rec, _ := doJSON(t, handler, http.MethodPut, "/api/expenses/"+id, token, map[string]any{"amount": 20.00})
	if rec.Code != http.StatusOK {
		t.Fatalf("update status = %d", rec.Code)
	}
	rec, _ = doJSON(t, handler, http.MethodDelete, "/api/expenses/"+id, token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("delete status = %d", rec.Code)
	}

	rec, resp := doJSON(t, handler, http.MethodGet, "/api/auth/me", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("me status = %d", rec.Code)
	}
	var user map[string]any
	if err := json.Unmarshal(resp.Data["user"], &user); err != nil {
		t.Fatalf("decode user: %v", err)
	}
	if user["totalExpenses"] != float64(0) {
		t.Errorf("totalExpenses = %v after delete, want 0", user["totalExpenses"])
	}

	rec, _ = doJSON(t, handler, http.MethodGet, "/api/expenses/"+id, token, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("get deleted status = %d, want 404", rec.Code)
	}
}

// Foreign and unknown ids both read as 404.
func TestExpenseNotFoundIndistinguishable(t *testing.T) {
	handler := newTestServer(t)
	alice := registerUser(t, handler, "alice@example.com")
	bob := registerUser(t, handler, "bob@example.com")

	expense := createExpense(t, handler, alice, map[string]any{
		"title": "Private", "amount": 5, "category": "Other",
	})
	id := expense["id"].(string)

	for name, path := range map[string]string{
		"foreign id": "/api/expenses/" + id,
		"random id":  "/api/expenses/00000000-0000-0000-0000-000000000000",
		"garbage id": "/api/expenses/not-a-uuid",
	} {
		rec, _ := doJSON(t, handler, http.MethodGet, path, bob, nil)
		if rec.Code != http.StatusNotFound {
			t.Errorf("%s: status = %d, want 404", name, rec.Code)
		}
	}
}

func TestListExpensesPagingAndFilters(t *testing.T) {
	handler := newTestServer(t)
	token := registerUser(t, handler, "alice@example.com")

	for i := 0; i < 12; i++ {
		category := "Food"
		if i%2 == 1 {
			category = "Travel"
		}
		createExpense(t, handler, token, map[string]any{
			"title":    fmt.Sprintf("Item %d", i),
			"amount":   float64(i + 1),
			"category": category,
			"date":     fmt.Sprintf("2025-03-%02dT12:00:00Z", i+1),
		})
	}

	rec, resp := doJSON(t, handler, http.MethodGet, "/api/expenses?page=2&limit=5", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d", rec.Code)
	}
	var expenses []map[string]any
	if err := json.Unmarshal(resp.Data["expenses"], &expenses); err != nil {
		t.Fatalf("decode expenses: %v", err)
	}
	if len(expenses) != 5 {
		t.Errorf("page 2 size = %d, want 5", len(expenses))
	}
	var totalPages float64
	json.Unmarshal(resp.Data["totalPages"], &totalPages)
	if totalPages != 3 {
		t.Errorf("totalPages = %v, want 3", totalPages)
	}

	rec, resp = doJSON(t, handler, http.MethodGet, "/api/expenses?category=Food&limit=20", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("filtered list status = %d", rec.Code)
	}
	var total float64
	json.Unmarshal(resp.Data["totalExpenses"], &total)
	if total != 6 {
		t.Errorf("Food totalExpenses = %v, want 6", total)
	}

	// A lone startDate is ignored.
	rec, resp = doJSON(t, handler, http.MethodGet, "/api/expenses?startDate=2025-03-10&limit=20", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("single-bound list status = %d", rec.Code)
	}
	json.Unmarshal(resp.Data["totalExpenses"], &total)
	if total != 12 {
		t.Errorf("single-bound totalExpenses = %v, want 12", total)
	}

	rec, _ = doJSON(t, handler, http.MethodGet, "/api/expenses?sortBy=password", token, nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad sort field status = %d, want 400", rec.Code)
	}
}

func TestAnalyticsSummary(t *testing.T) {
	handler := newTestServer(t)
	token := registerUser(t, handler, "alice@example.com")

	createExpense(t, handler, token, map[string]any{
		"title": "Groceries", "amount": 40, "category": "Food", "date": "2025-03-05T10:00:00Z",
	})
	createExpense(t, handler, token, map[string]any{
		"title": "Dinner", "amount": 20, "category": "Food", "date": "2025-03-15T19:00:00Z",
	})
	createExpense(t, handler, token, map[string]any{
		"title": "Bus", "amount": 5, "category": "Transportation", "date": "2025-03-06T08:00:00Z",
	})
	createExpense(t, handler, token, map[string]any{
		"title": "April rent", "amount": 900, "category": "Bills", "date": "2025-04-01T00:00:00Z",
	})

	rec, resp := doJSON(t, handler, http.MethodGet, "/api/expenses/analytics/summary?year=2025&month=3", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("summary status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var period string
	json.Unmarshal(resp.Data["period"], &period)
	if period != "2025-3" {
		t.Errorf("period = %q, want 2025-3", period)
	}

	var totalAmount float64
	json.Unmarshal(resp.Data["totalAmount"], &totalAmount)
	if totalAmount != 65 {
		t.Errorf("totalAmount = %v, want 65", totalAmount)
	}

	var breakdown []map[string]any
	if err := json.Unmarshal(resp.Data["categoryBreakdown"], &breakdown); err != nil {
		t.Fatalf("decode breakdown: %v", err)
	}
	if len(breakdown) != 2 {
		t.Fatalf("breakdown size = %d, want 2", len(breakdown))
	}
	if breakdown[0]["category"] != "Food" || breakdown[0]["totalAmount"] != float64(60) {
		t.Errorf("top category = %v", breakdown[0])
	}
	if breakdown[0]["avgAmount"] != float64(30) {
		t.Errorf("avgAmount = %v, want 30", breakdown[0]["avgAmount"])
	}

	rec, _ = doJSON(t, handler, http.MethodGet, "/api/expenses/analytics/summary?year=2025&month=13", token, nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad month status = %d, want 400", rec.Code)
	}
}

func TestHealthEndpoints(t *testing.T) {
	handler := newTestServer(t)

	for _, path := range []string{"/healthz", "/readyz"} {
		rec, resp := doJSON(t, handler, http.MethodGet, path, "", nil)
		if rec.Code != http.StatusOK {
			t.Errorf("%s status = %d, want 200", path, rec.Code)
		}
		if !resp.Success {
			t.Errorf("%s success = false", path)
		}
	}
}
