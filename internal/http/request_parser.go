package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"expensed/internal/core"

	"github.com/google/uuid"
)

const dateLayout = "2006-01-02"

var errBadJSON = errors.New("invalid JSON body")

// createExpenseRequest is the POST /api/expenses body. Amount accepts a
// JSON number or a quoted decimal string, at most two fraction digits.
type createExpenseRequest struct {
	Title         string     `json:"title"`
	Amount        core.Money `json:"amount"`
	Category      string     `json:"category"`
	Description   string     `json:"description"`
	Date          *time.Time `json:"date"`
	PaymentMethod string     `json:"paymentMethod"`
	Tags          []string   `json:"tags"`
	IsRecurring   bool       `json:"isRecurring"`
}

// updateExpenseRequest is the PUT body. Every field is optional; absent
// fields leave the stored value untouched.
type updateExpenseRequest struct {
	Title         *string     `json:"title"`
	Amount        *core.Money `json:"amount"`
	Category      *string     `json:"category"`
	Description   *string     `json:"description"`
	Date          *time.Time  `json:"date"`
	PaymentMethod *string     `json:"paymentMethod"`
	Tags          *[]string   `json:"tags"`
	IsRecurring   *bool       `json:"isRecurring"`
}

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func decodeBody(r *http.Request, dst any) error {
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return errBadJSON
	}
	return nil
}

// toExpense builds a validated domain expense from the request body.
// A missing date defaults to now, matching a quick "log it" entry.
func (req createExpenseRequest) toExpense(ownerID uuid.UUID) (*core.Expense, error) {
	paymentMethod, err := core.ParsePaymentMethod(req.PaymentMethod)
	if err != nil {
		return nil, err
	}

	date := time.Now().UTC()
	if req.Date != nil {
		date = req.Date.UTC()
	}

	tags := req.Tags
	if tags == nil {
		tags = []string{}
	}

	e := &core.Expense{
		OwnerID:       ownerID,
		Title:         strings.TrimSpace(req.Title),
		Amount:        req.Amount,
		Category:      core.Category(strings.TrimSpace(req.Category)),
		Description:   strings.TrimSpace(req.Description),
		Date:          date,
		PaymentMethod: paymentMethod,
		Tags:          tags,
		IsRecurring:   req.IsRecurring,
	}
	if err := e.Validate(); err != nil {
		return nil, err
	}
	return e, nil
}

// apply merges the partial update onto the stored expense.
func (req updateExpenseRequest) apply(e *core.Expense) error {
	if req.Title != nil {
		e.Title = strings.TrimSpace(*req.Title)
	}
	if req.Amount != nil {
		e.Amount = *req.Amount
	}
	if req.Category != nil {
		category, err := core.ParseCategory(*req.Category)
		if err != nil {
			return err
		}
		e.Category = category
	}
	if req.Description != nil {
		e.Description = strings.TrimSpace(*req.Description)
	}
	if req.Date != nil {
		e.Date = req.Date.UTC()
	}
	if req.PaymentMethod != nil {
		paymentMethod, err := core.ParsePaymentMethod(*req.PaymentMethod)
		if err != nil {
			return err
		}
		e.PaymentMethod = paymentMethod
	}
	if req.Tags != nil {
		e.Tags = *req.Tags
	}
	if req.IsRecurring != nil {
		e.IsRecurring = *req.IsRecurring
	}
	return e.Validate()
}

// parseListParams reads the paging, filter and sort query parameters,
// falling back to the defaults for anything absent.
func parseListParams(r *http.Request) (core.ListParams, error) {
	params := core.DefaultListParams()
	q := r.URL.Query()

	if v := strings.TrimSpace(q.Get("page")); v != "" {
		page, err := strconv.Atoi(v)
		if err != nil {
			return params, core.ErrInvalidPage
		}
		params.Page = page
	}
	if v := strings.TrimSpace(q.Get("limit")); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil {
			return params, core.ErrInvalidLimit
		}
		params.Limit = limit
	}
	params.Category = strings.TrimSpace(q.Get("category"))

	if v := strings.TrimSpace(q.Get("startDate")); v != "" {
		start, err := parseDate(v)
		if err != nil {
			return params, fmt.Errorf("invalid startDate: %w", err)
		}
		params.StartDate = start
	}
	if v := strings.TrimSpace(q.Get("endDate")); v != "" {
		end, err := parseDate(v)
		if err != nil {
			return params, fmt.Errorf("invalid endDate: %w", err)
		}
		// Make the end bound cover its whole day.
		params.EndDate = end.Add(24*time.Hour - time.Second)
	}

	if v := strings.TrimSpace(q.Get("sortBy")); v != "" {
		params.SortBy = v
	}
	if v := strings.TrimSpace(q.Get("sortOrder")); v != "" {
		params.SortOrder = core.SortOrder(v)
	}

	if err := params.Validate(); err != nil {
		return params, err
	}
	return params, nil
}

// parseWindow reads the year and month parameters for the analytics
// summary. The year defaults to the current one; no month means the
// whole year.
func parseWindow(r *http.Request) (core.Window, error) {
	w := core.Window{Year: time.Now().UTC().Year()}
	q := r.URL.Query()

	if v := strings.TrimSpace(q.Get("year")); v != "" {
		year, err := strconv.Atoi(v)
		if err != nil {
			return w, core.ErrInvalidYear
		}
		w.Year = year
	}
	if v := strings.TrimSpace(q.Get("month")); v != "" {
		month, err := strconv.Atoi(v)
		if err != nil {
			return w, core.ErrInvalidMonth
		}
		w.Month = month
	}

	if err := w.Validate(); err != nil {
		return w, err
	}
	return w, nil
}

// parseDate accepts a plain date or a full RFC 3339 timestamp.
func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse(dateLayout, s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}
