package core

import (
	"fmt"
	"sort"
	"time"
)

// UnknownCategory labels expenses whose category cannot be resolved.
const UnknownCategory = "Unknown Category"

// CategoryTotal represents an amount aggregated by category.
type CategoryTotal struct {
	CategoryID int64  `json:"categoryId,omitempty"`
	Category   string `json:"category"`
	Color      string `json:"color,omitempty"`
	Total      Money  `json:"total"`
	Count      int    `json:"count"`
}

// PeriodTotal is an amount aggregated over a labelled period
// ("2025-03", "Q2", "2025-03-14").
type PeriodTotal struct {
	Period string `json:"period"`
	Total  Money  `json:"total"`
	Count  int    `json:"count"`
}

type StatusTotal struct {
	Status Status `json:"status"`
	Total  Money  `json:"total"`
	Count  int    `json:"count"`
}

// Stats are the headline numbers of the dashboard.
type Stats struct {
	CurrentQuarterTotal Money `json:"currentQuarterTotal"`
	CurrentMonthTotal   Money `json:"currentMonthTotal"`
	PendingTotal        Money `json:"pendingTotal"`
	ApprovedTotal       Money `json:"approvedTotal"`
	PendingCount        int   `json:"pendingCount"`
	ApprovedCount       int   `json:"approvedCount"`
	RejectedCount       int   `json:"rejectedCount"`
	TotalCount          int   `json:"totalCount"`
}

// GroupByCategory sums expenses per category, largest total first. Expenses
// with an unresolved category share the UnknownCategory bucket.
func GroupByCategory(expenses []ExpenseView) []CategoryTotal {
	idx := map[string]int{}
	out := []CategoryTotal{}
	for _, e := range expenses {
		key := UnknownCategory
		if e.CategoryName != "" {
			key = fmt.Sprintf("%d", e.CategoryID)
		}
		i, ok := idx[key]
		if !ok {
			ct := CategoryTotal{Category: UnknownCategory}
			if e.CategoryName != "" {
				ct = CategoryTotal{CategoryID: e.CategoryID, Category: e.CategoryName, Color: e.CategoryColor}
			}
			out = append(out, ct)
			i = len(out) - 1
			idx[key] = i
		}
		out[i].Total = out[i].Total.Add(e.Amount)
		out[i].Count++
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Total.Cents != out[j].Total.Cents {
			return out[i].Total.Cents > out[j].Total.Cents
		}
		return out[i].Category < out[j].Category
	})
	return out
}

// GroupByMonth returns the last n calendar months ending with now's month,
// oldest first, labelled YYYY-MM. Months without expenses are zero.
func GroupByMonth(expenses []ExpenseView, now time.Time, n int) []PeriodTotal {
	if n <= 0 {
		return nil
	}
	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, -(n - 1), 0)
	out := make([]PeriodTotal, n)
	idx := make(map[string]int, n)
	for i := 0; i < n; i++ {
		label := first.AddDate(0, i, 0).Format("2006-01")
		out[i].Period = label
		idx[label] = i
	}
	for _, e := range expenses {
		if i, ok := idx[e.Date.Format("2006-01")]; ok {
			out[i].Total = out[i].Total.Add(e.Amount)
			out[i].Count++
		}
	}
	return out
}

// GroupByQuarter returns Q1..Q4 of year.
func GroupByQuarter(expenses []ExpenseView, year int) []PeriodTotal {
	out := []PeriodTotal{{Period: "Q1"}, {Period: "Q2"}, {Period: "Q3"}, {Period: "Q4"}}
	for _, e := range expenses {
		if e.Date.Year() != year {
			continue
		}
		q := e.Date.Quarter() - 1
		out[q].Total = out[q].Total.Add(e.Amount)
		out[q].Count++
	}
	return out
}

// GroupByDay returns every day of the given month labelled YYYY-MM-DD.
func GroupByDay(expenses []ExpenseView, year, month int) []PeriodTotal {
	days := time.Date(year, time.Month(month)+1, 0, 0, 0, 0, 0, time.UTC).Day()
	out := make([]PeriodTotal, days)
	for d := 1; d <= days; d++ {
		out[d-1].Period = NewDate(year, month, d).String()
	}
	for _, e := range expenses {
		if e.Date.Year() != year || e.Date.Month() != month {
			continue
		}
		d := e.Date.Day() - 1
		out[d].Total = out[d].Total.Add(e.Amount)
		out[d].Count++
	}
	return out
}

// GroupByStatus returns pending, approved and rejected totals in that order.
func GroupByStatus(expenses []ExpenseView) []StatusTotal {
	out := make([]StatusTotal, 0, 3)
	idx := map[Status]int{}
	for i, s := range Statuses() {
		out = append(out, StatusTotal{Status: s})
		idx[s] = i
	}
	for _, e := range expenses {
		i, ok := idx[e.Status]
		if !ok {
			continue
		}
		out[i].Total = out[i].Total.Add(e.Amount)
		out[i].Count++
	}
	return out
}

// ComputeStats derives the dashboard numbers relative to now. Period totals
// include every status.
func ComputeStats(expenses []ExpenseView, now time.Time) Stats {
	var s Stats
	today := DateOf(now)
	for _, e := range expenses {
		s.TotalCount++
		if e.Date.Year() == today.Year() {
			if e.Date.Quarter() == today.Quarter() {
				s.CurrentQuarterTotal = s.CurrentQuarterTotal.Add(e.Amount)
			}
			if e.Date.Month() == today.Month() {
				s.CurrentMonthTotal = s.CurrentMonthTotal.Add(e.Amount)
			}
		}
		switch e.Status {
		case StatusPending:
			s.PendingTotal = s.PendingTotal.Add(e.Amount)
			s.PendingCount++
		case StatusApproved:
			s.ApprovedTotal = s.ApprovedTotal.Add(e.Amount)
			s.ApprovedCount++
		case StatusRejected:
			s.RejectedCount++
		}
	}
	return s
}
