package core

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/agnivade/levenshtein"
)

// ImportField is the canonical name of an importable column.
type ImportField string

const (
	FieldUserID       ImportField = "userId"
	FieldCategoryID   ImportField = "categoryId"
	FieldCategoryName ImportField = "categoryName"
	FieldDescription  ImportField = "description"
	FieldAmount       ImportField = "amount"
	FieldDate         ImportField = "date"
	FieldStatus       ImportField = "status"
	FieldNotes        ImportField = "notes"
	FieldReceiptURL   ImportField = "receiptUrl"
	FieldSubmittedBy  ImportField = "submittedBy"
)

// headerAliases maps every accepted column spelling to its field. Keys are
// already normalized.
var headerAliases = buildAliases(map[ImportField][]string{
	FieldUserID:       {"User ID", "userId", "UserID", "user_id", "Owner ID", "Owner"},
	FieldCategoryID:   {"Category ID", "categoryId", "category_id"},
	FieldCategoryName: {"Category", "Category Name", "categoryName"},
	FieldDescription:  {"Description", "desc"},
	FieldAmount:       {"Amount", "Total"},
	FieldDate:         {"Date", "Expense Date"},
	FieldStatus:       {"Status"},
	FieldNotes:        {"Notes", "Note"},
	FieldReceiptURL:   {"Receipt URL", "receiptUrl", "Receipt"},
	FieldSubmittedBy:  {"Submitted By", "submittedBy"},
})

func buildAliases(m map[ImportField][]string) map[string]ImportField {
	out := make(map[string]ImportField)
	for field, names := range m {
		for _, n := range names {
			out[NormalizeHeader(n)] = field
		}
	}
	return out
}

// NormalizeHeader lowercases h and drops spaces, underscores and dashes, so
// "User ID", "user_id" and "UserID" compare equal.
func NormalizeHeader(h string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(h)) {
		switch r {
		case ' ', '_', '-', '\t':
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// ImportRow is one data row after header resolution and value parsing. Owner
// and category references are still unresolved.
type ImportRow struct {
	Row          int
	UserID       string
	CategoryID   int64
	CategoryName string
	Description  string
	Amount       Money
	Date         Date
	Status       Status
	Notes        *string
	ReceiptURL   *string
	SubmittedBy  string
}

// ImportRowError collects everything wrong with one row.
type ImportRowError struct {
	Row      int
	Problems []string
}

func (e *ImportRowError) Error() string {
	return fmt.Sprintf("Row %d: %s", e.Row, strings.Join(e.Problems, "; "))
}

// RowError is a shorthand for a single-problem ImportRowError.
func RowError(row int, format string, args ...any) *ImportRowError {
	return &ImportRowError{Row: row, Problems: []string{fmt.Sprintf(format, args...)}}
}

// ParseImportRow resolves the loosely-typed columns of raw. Row numbers are
// 1-based over data rows. skip is true when every value is empty. All missing
// required fields are reported together.
func ParseImportRow(row int, raw map[string]any, now time.Time) (ImportRow, bool, error) {
	out := ImportRow{Row: row}
	values := make(map[ImportField]string)
	var unknown []string
	empty := true
	for header, v := range raw {
		s := cellString(v)
		if s != "" {
			empty = false
		}
		field, ok := headerAliases[NormalizeHeader(header)]
		if !ok {
			unknown = append(unknown, header)
			continue
		}
		if s != "" {
			values[field] = s
		}
	}
	if empty {
		return out, true, nil
	}

	var missing []string
	if values[FieldUserID] == "" {
		missing = append(missing, string(FieldUserID))
	}
	if values[FieldCategoryID] == "" && values[FieldCategoryName] == "" {
		missing = append(missing, string(FieldCategoryID))
	}
	if values[FieldDescription] == "" {
		missing = append(missing, string(FieldDescription))
	}
	if values[FieldAmount] == "" {
		missing = append(missing, string(FieldAmount))
	}

	var problems []string
	if len(missing) > 0 {
		problems = append(problems, "missing required field(s): "+strings.Join(missing, ", "))
		problems = append(problems, headerHints(unknown)...)
	}

	out.UserID = values[FieldUserID]
	out.CategoryName = values[FieldCategoryName]
	out.Description = values[FieldDescription]
	out.SubmittedBy = values[FieldSubmittedBy]

	if s := values[FieldCategoryID]; s != "" {
		id, err := strconv.ParseInt(s, 10, 64)
		if err != nil || id <= 0 {
			problems = append(problems, fmt.Sprintf("invalid category id %q", s))
		} else {
			out.CategoryID = id
		}
	}

	if n := len([]rune(out.Description)); n > MaxDescriptionLength {
		problems = append(problems, ErrDescriptionLength.Error())
	}

	if s := values[FieldAmount]; s != "" {
		m, err := ParseAmount(s)
		if err != nil {
			problems = append(problems, fmt.Sprintf("invalid amount %q: %v", s, err))
		} else {
			out.Amount = m
		}
	}

	if s := values[FieldDate]; s != "" {
		d, err := ParseImportDate(s)
		if err != nil {
			problems = append(problems, fmt.Sprintf("invalid date %q", s))
		} else {
			out.Date = d
		}
	} else {
		out.Date = DateOf(now)
	}

	out.Status = StatusPending
	if s := values[FieldStatus]; s != "" {
		st, err := ParseStatus(s)
		if err != nil {
			problems = append(problems, fmt.Sprintf("invalid status %q", s))
		} else {
			out.Status = st
		}
	}

	if s := values[FieldNotes]; s != "" {
		out.Notes = &s
	}
	if s := values[FieldReceiptURL]; s != "" {
		out.ReceiptURL = &s
	}

	if len(problems) > 0 {
		return out, false, &ImportRowError{Row: row, Problems: problems}
	}
	return out, false, nil
}

// headerHints suggests the intended column for near-miss headers.
func headerHints(unknown []string) []string {
	var hints []string
	sort.Strings(unknown)
	for _, h := range unknown {
		norm := NormalizeHeader(h)
		if norm == "" {
			continue
		}
		best, bestDist := ImportField(""), 0
		for alias, field := range headerAliases {
			d := levenshtein.ComputeDistance(norm, alias)
			if d > 2 {
				continue
			}
			if best == "" || d < bestDist || (d == bestDist && field < best) {
				best, bestDist = field, d
			}
		}
		if best != "" {
			hints = append(hints, fmt.Sprintf("column %q looks like %q", h, best))
		}
	}
	return hints
}

// spreadsheetEpoch is day zero of spreadsheet serial dates.
var spreadsheetEpoch = time.Date(1899, 12, 30, 0, 0, 0, 0, time.UTC)

// ParseImportDate accepts YYYY-MM-DD, RFC 3339, MM/DD/YYYY and spreadsheet
// serial day numbers.
func ParseImportDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if d, err := ParseDate(s); err == nil {
		return d, nil
	}
	if t, err := time.Parse("1/2/2006", s); err == nil {
		return DateOf(t), nil
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f >= 1 && f < 2958466 {
		return DateOf(spreadsheetEpoch.AddDate(0, 0, int(math.Floor(f)))), nil
	}
	return Date{}, ErrInvalidDate
}

// cellString renders a decoded JSON or CSV cell as trimmed text. Numbers keep
// their shortest exact form so amounts are not rounded.
func cellString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(x)
	case json.Number:
		return x.String()
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case bool:
		return strconv.FormatBool(x)
	default:
		return strings.TrimSpace(fmt.Sprint(x))
	}
}
