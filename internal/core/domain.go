package core

import (
	"encoding/json"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

const (
	// DefaultCategoryColor is used when a category is created without a color.
	DefaultCategoryColor = "#6b7280"
	// MaxDescriptionLength is counted in characters, not bytes.
	MaxDescriptionLength = 500
	dateLayout           = "2006-01-02"
)

type (
	Status string

	Date struct {
		time.Time
	}

	User struct {
		ID              string    `json:"id"`
		Email           string    `json:"email"`
		FirstName       string    `json:"firstName"`
		LastName        string    `json:"lastName"`
		ProfileImageURL string    `json:"profileImageUrl,omitempty"`
		Role            Role      `json:"role"`
		CreatedAt       time.Time `json:"createdAt"`
		UpdatedAt       time.Time `json:"updatedAt"`
	}

	Category struct {
		ID          int64     `json:"id"`
		Name        string    `json:"name"`
		Description string    `json:"description,omitempty"`
		ParentID    *int64    `json:"parentId"`
		Color       string    `json:"color"`
		CreatedAt   time.Time `json:"createdAt"`
		UpdatedAt   time.Time `json:"updatedAt"`
	}

	CategoryInput struct {
		Name        string `json:"name"`
		Description string `json:"description"`
		ParentID    *int64 `json:"parentId"`
		Color       string `json:"color"`
	}

	// CategoryPatch carries only the fields present in an update request.
	// ClearParent is set when the request explicitly sends "parentId": null.
	CategoryPatch struct {
		Name        *string
		Description *string
		ParentID    *int64
		ClearParent bool
		Color       *string
	}

	Expense struct {
		ID          int64     `json:"id"`
		UserID      string    `json:"userId"`
		SubmittedBy *string   `json:"submittedBy"`
		CategoryID  int64     `json:"categoryId"`
		Description string    `json:"description"`
		Amount      Money     `json:"amount"`
		Date        Date      `json:"date"`
		Status      Status    `json:"status"`
		ReceiptURL  *string   `json:"receiptUrl"`
		Notes       *string   `json:"notes"`
		CreatedAt   time.Time `json:"createdAt"`
		UpdatedAt   time.Time `json:"updatedAt"`
	}

	// ExpenseInput is what a caller submits to create an expense. OwnerID is
	// only honoured for delegate submission by a reviewer.
	ExpenseInput struct {
		OwnerID     string  `json:"userId"`
		CategoryID  int64   `json:"categoryId"`
		Description string  `json:"description"`
		Amount      Money   `json:"amount"`
		Date        Date    `json:"date"`
		Notes       *string `json:"notes"`
		ReceiptURL  *string `json:"receiptUrl"`
	}

	ExpensePatch struct {
		CategoryID  *int64  `json:"categoryId"`
		Description *string `json:"description"`
		Amount      *Money  `json:"amount"`
		Date        *Date   `json:"date"`
		Notes       *string `json:"notes"`
		ReceiptURL  *string `json:"receiptUrl"`
		Status      *Status `json:"status"`
	}

	// ExpenseFilter narrows a query. Zero values mean "any".
	ExpenseFilter struct {
		OwnerID    string
		Status     Status
		CategoryID int64
		SearchText string
	}

	// ExpenseView is an expense joined with the display fields of its category,
	// owner and submitter. An empty CategoryName means the category could not be
	// resolved.
	ExpenseView struct {
		Expense
		CategoryName   string `json:"categoryName"`
		CategoryColor  string `json:"categoryColor"`
		OwnerName      string `json:"ownerName"`
		OwnerEmail     string `json:"ownerEmail"`
		SubmitterName  string `json:"submitterName,omitempty"`
		SubmitterEmail string `json:"submitterEmail,omitempty"`
	}
)

var colorPattern = regexp.MustCompile(`^#(?:[0-9a-fA-F]{3}|[0-9a-fA-F]{6})$`)

// Statuses lists every lifecycle status.
func Statuses() []Status { return []Status{StatusPending, StatusApproved, StatusRejected} }

func ParseStatus(s string) (Status, error) {
	st := Status(strings.ToLower(strings.TrimSpace(s)))
	if !st.IsValid() {
		return "", NewValidationError("invalid status "+quote(s), ErrInvalidStatus)
	}
	return st, nil
}

func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected:
		return true
	}
	return false
}

func (s *Status) UnmarshalText(b []byte) error {
	parsed, err := ParseStatus(string(b))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar day in t's location.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), int(t.Month()), t.Day())
}

// ParseDate accepts YYYY-MM-DD or an RFC 3339 timestamp.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(dateLayout, s); err == nil {
		return DateOf(t), nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return DateOf(t), nil
	}
	return Date{}, ErrInvalidDate
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

// Month returns the month
func (d Date) Month() int {
	return int(d.Time.Month())
}

// Quarter returns 1..4.
func (d Date) Quarter() int {
	return (d.Month()-1)/3 + 1
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(dateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*d = Date{}
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return NewValidationError("invalid date", ErrInvalidDate)
	}
	if strings.TrimSpace(s) == "" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return NewValidationError("invalid date "+quote(s), err)
	}
	*d = parsed
	return nil
}

// DisplayName is "First Last", falling back to the email and then the id.
func (u User) DisplayName() string {
	name := strings.TrimSpace(strings.TrimSpace(u.FirstName) + " " + strings.TrimSpace(u.LastName))
	if name != "" {
		return name
	}
	if u.Email != "" {
		return u.Email
	}
	return u.ID
}

// ValidateColor accepts #rgb or #rrggbb.
func ValidateColor(c string) error {
	if !colorPattern.MatchString(c) {
		return ErrInvalidColor
	}
	return nil
}

// Normalize trims fields and fills the default color, then validates.
func (in CategoryInput) Normalize() (CategoryInput, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Description = strings.TrimSpace(in.Description)
	in.Color = strings.TrimSpace(in.Color)
	if in.Color == "" {
		in.Color = DefaultCategoryColor
	}
	var problems []error
	if in.Name == "" {
		problems = append(problems, ErrEmptyName)
	}
	if err := ValidateColor(in.Color); err != nil {
		problems = append(problems, err)
	}
	if len(problems) > 0 {
		return in, NewValidationError("invalid category", problems...)
	}
	return in, nil
}

func (p *CategoryPatch) UnmarshalJSON(b []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return NewValidationError("invalid category payload")
	}
	var fields struct {
		Name        *string `json:"name"`
		Description *string `json:"description"`
		ParentID    *int64  `json:"parentId"`
		Color       *string `json:"color"`
	}
	if err := json.Unmarshal(b, &fields); err != nil {
		return NewValidationError("invalid category payload")
	}
	*p = CategoryPatch{
		Name:        fields.Name,
		Description: fields.Description,
		ParentID:    fields.ParentID,
		Color:       fields.Color,
	}
	if v, ok := raw["parentId"]; ok && string(v) == "null" {
		p.ClearParent = true
	}
	return nil
}

// Apply merges the present fields of p into c and validates the result.
func (c *Category) Apply(p CategoryPatch) error {
	if p.Name != nil {
		c.Name = strings.TrimSpace(*p.Name)
	}
	if p.Description != nil {
		c.Description = strings.TrimSpace(*p.Description)
	}
	if p.Color != nil {
		c.Color = strings.TrimSpace(*p.Color)
	}
	if p.ClearParent {
		c.ParentID = nil
	} else if p.ParentID != nil {
		id := *p.ParentID
		c.ParentID = &id
	}
	var problems []error
	if c.Name == "" {
		problems = append(problems, ErrEmptyName)
	}
	if err := ValidateColor(c.Color); err != nil {
		problems = append(problems, err)
	}
	if len(problems) > 0 {
		return NewValidationError("invalid category", problems...)
	}
	return nil
}

// Validate checks every field and reports all problems at once. A zero ceiling
// disables the ceiling check.
func (e Expense) Validate(ceiling Money) error {
	var problems []error
	desc := strings.TrimSpace(e.Description)
	switch {
	case desc == "":
		problems = append(problems, ErrEmptyDescription)
	case utf8.RuneCountInString(desc) > MaxDescriptionLength:
		problems = append(problems, ErrDescriptionLength)
	}
	if err := e.Amount.Validate(); err != nil {
		problems = append(problems, err)
	} else if e.Amount.Exceeds(ceiling) {
		problems = append(problems, ceilingError{ceiling})
	}
	if err := e.Date.Validate(); err != nil {
		problems = append(problems, err)
	}
	if e.CategoryID <= 0 {
		problems = append(problems, ErrCategoryRequired)
	}
	if e.Status != "" && !e.Status.IsValid() {
		problems = append(problems, ErrInvalidStatus)
	}
	if len(problems) > 0 {
		return NewValidationError("invalid expense", problems...)
	}
	return nil
}

// Apply merges the present non-status fields of p into e. Status changes go
// through the lifecycle rules and are applied by the caller.
func (e *Expense) Apply(p ExpensePatch) {
	if p.CategoryID != nil {
		e.CategoryID = *p.CategoryID
	}
	if p.Description != nil {
		e.Description = strings.TrimSpace(*p.Description)
	}
	if p.Amount != nil {
		e.Amount = *p.Amount
	}
	if p.Date != nil {
		e.Date = *p.Date
	}
	if p.Notes != nil {
		e.Notes = emptyToNil(*p.Notes)
	}
	if p.ReceiptURL != nil {
		e.ReceiptURL = emptyToNil(*p.ReceiptURL)
	}
}

func emptyToNil(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

type ceilingError struct{ ceiling Money }

func (e ceilingError) Error() string {
	return "amount exceeds the per-expense limit of " + e.ceiling.String()
}

func (e ceilingError) Is(target error) bool { return target == ErrAmountTooLarge }
