package core

// CategoryTotal is one category's aggregate within a window.
type CategoryTotal struct {
	Category    Category `json:"category"`
	TotalAmount Money    `json:"totalAmount"`
	Count       int64    `json:"count"`
	AvgAmount   Money    `json:"avgAmount"`
}

// Summary is the windowed aggregation result: per-category totals ordered
// by descending spend, plus a grand total computed independently of the
// groups (the two must agree numerically).
type Summary struct {
	ByCategory  []CategoryTotal `json:"categoryBreakdown"`
	TotalAmount Money           `json:"totalAmount"`
	TotalCount  int64           `json:"totalCount"`
	Period      string          `json:"period"`
}

// Percentage returns a category's share of the grand total in percent.
// A zero grand total yields zero for every category.
func (s Summary) Percentage(ct CategoryTotal) float64 {
	if s.TotalAmount.Cents == 0 {
		return 0
	}
	return float64(ct.TotalAmount.Cents) / float64(s.TotalAmount.Cents) * 100
}
