package core

import (
	"strconv"
	"time"
)

// ExportRow is the flat projection of one expense.
type ExportRow struct {
	ID            int64  `json:"id"`
	Date          string `json:"date"`
	Description   string `json:"description"`
	Amount        Money  `json:"amount"`
	Status        Status `json:"status"`
	CategoryID    int64  `json:"categoryId"`
	CategoryName  string `json:"categoryName"`
	UserID        string `json:"userId"`
	OwnerName     string `json:"ownerName"`
	OwnerEmail    string `json:"ownerEmail"`
	SubmittedBy   string `json:"submittedBy"`
	SubmitterName string `json:"submitterName"`
	ReceiptURL    string `json:"receiptUrl"`
	Notes         string `json:"notes"`
	CreatedAt     string `json:"createdAt"`
	UpdatedAt     string `json:"updatedAt"`
}

// ExportHeaders are the column titles of an export, in record order. The
// importable columns use import aliases so an export can be imported again.
func ExportHeaders() []string {
	return []string{
		"ID", "Date", "Description", "Amount", "Status",
		"Category ID", "Category", "User ID", "Owner Name", "Owner Email",
		"Submitted By", "Submitter Name", "Receipt URL", "Notes",
		"Created At", "Updated At",
	}
}

// NewExportRow projects v. Missing categories export as UnknownCategory.
func NewExportRow(v ExpenseView) ExportRow {
	r := ExportRow{
		ID:           v.ID,
		Date:         v.Date.String(),
		Description:  v.Description,
		Amount:       v.Amount,
		Status:       v.Status,
		CategoryID:   v.CategoryID,
		CategoryName: v.CategoryName,
		UserID:       v.UserID,
		OwnerName:    v.OwnerName,
		OwnerEmail:   v.OwnerEmail,
		CreatedAt:    v.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:    v.UpdatedAt.UTC().Format(time.RFC3339),
	}
	if r.CategoryName == "" {
		r.CategoryName = UnknownCategory
	}
	if v.SubmittedBy != nil {
		r.SubmittedBy = *v.SubmittedBy
		r.SubmitterName = v.SubmitterName
	}
	if v.ReceiptURL != nil {
		r.ReceiptURL = *v.ReceiptURL
	}
	if v.Notes != nil {
		r.Notes = *v.Notes
	}
	return r
}

// Record returns the row's cells in ExportHeaders order.
func (r ExportRow) Record() []string {
	return []string{
		strconv.FormatInt(r.ID, 10), r.Date, r.Description, r.Amount.String(), string(r.Status),
		strconv.FormatInt(r.CategoryID, 10), r.CategoryName, r.UserID, r.OwnerName, r.OwnerEmail,
		r.SubmittedBy, r.SubmitterName, r.ReceiptURL, r.Notes,
		r.CreatedAt, r.UpdatedAt,
	}
}
