package core

import (
	"errors"
	"strconv"
	"time"
)

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"

	// CategoryAll is the sentinel meaning "do not filter by category".
	CategoryAll = "all"

	DefaultPage  = 1
	DefaultLimit = 10
)

type (
	SortOrder string

	// ListParams configures a filtered, sorted, paginated expense query.
	//
	// The date range applies only when both StartDate and EndDate are set;
	// a single bound is ignored. Records sharing the same sort-key value
	// have no defined relative order, so their placement across pages is
	// unspecified.
	ListParams struct {
		Page      int
		Limit     int
		Category  string // empty or "all" means no filter
		StartDate time.Time
		EndDate   time.Time
		SortBy    string
		SortOrder SortOrder
	}

	// ListResult is one page of matching expenses plus paging metadata.
	ListResult struct {
		Expenses    []Expense
		TotalCount  int64
		TotalPages  int
		CurrentPage int
	}

	// Window scopes an aggregation to a whole year or to one month of it.
	// Month is 1-indexed; zero means the whole year.
	Window struct {
		Year  int
		Month int
	}
)

var (
	ErrInvalidPage      = errors.New("page must be >= 1")
	ErrInvalidLimit     = errors.New("limit must be >= 1")
	ErrInvalidSortField = errors.New("invalid sort field")
	ErrInvalidSortOrder = errors.New("sort order must be asc or desc")
	ErrInvalidYear      = errors.New("invalid year")
	ErrInvalidMonth     = errors.New("month must be between 1 and 12")
)

// sortFields whitelists the columns a client may sort by.
var sortFields = map[string]bool{
	"date":      true,
	"amount":    true,
	"title":     true,
	"category":  true,
	"createdAt": true,
}

// DefaultListParams returns the parameters used when a request supplies
// nothing: newest first, ten per page.
func DefaultListParams() ListParams {
	return ListParams{
		Page:      DefaultPage,
		Limit:     DefaultLimit,
		SortBy:    "date",
		SortOrder: SortDesc,
	}
}

func (p ListParams) Validate() error {
	if p.Page < 1 {
		return ErrInvalidPage
	}
	if p.Limit < 1 {
		return ErrInvalidLimit
	}
	if p.Category != "" && p.Category != CategoryAll {
		if _, err := ParseCategory(p.Category); err != nil {
			return err
		}
	}
	if !sortFields[p.SortBy] {
		return ErrInvalidSortField
	}
	if p.SortOrder != SortAsc && p.SortOrder != SortDesc {
		return ErrInvalidSortOrder
	}
	return nil
}

// Offset returns the number of records to skip for the requested page.
func (p ListParams) Offset() int {
	return (p.Page - 1) * p.Limit
}

// HasDateRange reports whether the inclusive date filter applies. Both
// bounds must be present; a lone bound is deliberately ignored.
func (p ListParams) HasDateRange() bool {
	return !p.StartDate.IsZero() && !p.EndDate.IsZero()
}

// CategoryFilter returns the category restriction, if any.
func (p ListParams) CategoryFilter() (Category, bool) {
	if p.Category == "" || p.Category == CategoryAll {
		return "", false
	}
	return Category(p.Category), true
}

// TotalPages computes ceil(total/limit).
func TotalPages(total int64, limit int) int {
	if limit < 1 {
		return 0
	}
	return int((total + int64(limit) - 1) / int64(limit))
}

func (w Window) Validate() error {
	if w.Year < 1 {
		return ErrInvalidYear
	}
	if w.Month < 0 || w.Month > 12 {
		return ErrInvalidMonth
	}
	return nil
}

// Bounds returns the inclusive [start, end] range of the window: the first
// through last calendar day of the month (end of day), or January 1 through
// December 31 for a whole year.
func (w Window) Bounds() (start, end time.Time) {
	if w.Month > 0 {
		start = time.Date(w.Year, time.Month(w.Month), 1, 0, 0, 0, 0, time.UTC)
		// Day zero of the next month normalizes to the month's last day.
		end = time.Date(w.Year, time.Month(w.Month)+1, 0, 23, 59, 59, 0, time.UTC)
		return start, end
	}
	start = time.Date(w.Year, time.January, 1, 0, 0, 0, 0, time.UTC)
	end = time.Date(w.Year, time.December, 31, 23, 59, 59, 0, time.UTC)
	return start, end
}

// Period formats the window for responses: "2025-3" for March 2025,
// "2025" for the whole year.
func (w Window) Period() string {
	if w.Month > 0 {
		return strconv.Itoa(w.Year) + "-" + strconv.Itoa(w.Month)
	}
	return strconv.Itoa(w.Year)
}
