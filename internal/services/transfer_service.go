package services

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"expenseflow/internal/core"
	"expenseflow/internal/log"

	"github.com/google/uuid"
)

// ErrSheetsNotConfigured is returned by ExportToSheet without a destination.
var ErrSheetsNotConfigured = errors.New("spreadsheet export is not configured")

// ImportResult reports a finished import. Rows are committed one by one, so
// Imported counts rows that stay stored even when others failed.
type ImportResult struct {
	Imported int      `json:"imported"`
	Errors   []string `json:"errors"`
	BatchID  string   `json:"batchId"`
}

// TransferService handles bulk export and import. Both are admin only.
type TransferService struct {
	expenses   ExpenseStore
	refs       ReferenceChecker
	categories *CategoryService
	sheet      SheetWriter
	now        func() time.Time
	logger     *log.Logger
}

// NewTransferService wires the service; sheet may be nil.
func NewTransferService(expenses ExpenseStore, refs ReferenceChecker, categories *CategoryService, sheet SheetWriter) *TransferService {
	return &TransferService{
		expenses:   expenses,
		refs:       refs,
		categories: categories,
		sheet:      sheet,
		now:        time.Now,
		logger:     log.Default(log.ComponentTransfer),
	}
}

// SheetsEnabled reports whether a spreadsheet destination is configured.
func (s *TransferService) SheetsEnabled() bool { return s.sheet != nil }

// ExportRows returns one flat row per expense matching f.
func (s *TransferService) ExportRows(ctx context.Context, actor core.Actor, f core.ExpenseFilter) ([]core.ExportRow, error) {
	if err := core.RequireRole(actor, core.RoleAdmin); err != nil {
		return nil, err
	}
	views, err := s.expenses.QueryExpenses(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("query expenses for export: %w", err)
	}
	rows := make([]core.ExportRow, 0, len(views))
	for _, v := range views {
		rows = append(rows, core.NewExportRow(v))
	}
	s.logger.InfoContext(ctx, "Expenses exported", log.FieldActorID, actor.ID, "rows", len(rows))
	return rows, nil
}

// WriteCSV writes the export rows with a header line.
func WriteCSV(w io.Writer, rows []core.ExportRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(core.ExportHeaders()); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, r := range rows {
		if err := cw.Write(r.Record()); err != nil {
			return fmt.Errorf("write csv row %d: %w", r.ID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// ExportToSheet replaces the configured sheet with the export and returns the
// written range.
func (s *TransferService) ExportToSheet(ctx context.Context, actor core.Actor, f core.ExpenseFilter) (string, error) {
	if s.sheet == nil {
		return "", ErrSheetsNotConfigured
	}
	rows, err := s.ExportRows(ctx, actor, f)
	if err != nil {
		return "", err
	}
	records := make([][]string, 0, len(rows))
	for _, r := range rows {
		records = append(records, r.Record())
	}
	ref, err := s.sheet.WriteRows(ctx, core.ExportHeaders(), records)
	if err != nil {
		return "", fmt.Errorf("write export sheet: %w", err)
	}
	s.logger.InfoContext(ctx, "Expenses exported to sheet", log.FieldActorID, actor.ID, "range", ref, "rows", len(rows))
	return ref, nil
}

// ReadCSV turns a CSV document with a header line into import rows.
func ReadCSV(r io.Reader) ([]map[string]any, error) {
	cr := csv.NewReader(bufio.NewReader(r))
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1
	header, err := cr.Read()
	if err == io.EOF {
		return nil, core.NewValidationError("import file is empty")
	}
	if err != nil {
		return nil, core.NewValidationError("invalid CSV header: " + err.Error())
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}

	var rows []map[string]any
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, core.NewValidationError(fmt.Sprintf("invalid CSV at line %d: %v", line, err))
		}
		row := make(map[string]any, len(header))
		for i, h := range header {
			if i < len(rec) {
				row[h] = rec[i]
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// Import stores each row independently. A failed row is reported and the loop
// moves on; rows already stored are kept.
func (s *TransferService) Import(ctx context.Context, actor core.Actor, rows []map[string]any) (ImportResult, error) {
	if err := core.RequireRole(actor, core.RoleAdmin); err != nil {
		return ImportResult{}, err
	}
	res := ImportResult{BatchID: uuid.NewString(), Errors: []string{}}
	logger := s.logger.With(log.FieldBatchID, res.BatchID)
	logger.InfoContext(ctx, "Import started", log.FieldActorID, actor.ID, "rows", len(rows))

	now := s.now()
	for i, raw := range rows {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		rowErr := s.importRow(ctx, i+1, raw, now, res.BatchID)
		if rowErr == errSkipRow {
			continue
		}
		if rowErr != nil {
			res.Errors = append(res.Errors, rowErr.Error())
			continue
		}
		res.Imported++
	}

	logger.InfoContext(ctx, "Import finished",
		log.FieldActorID, actor.ID,
		"imported", res.Imported,
		"failed", len(res.Errors))
	return res, nil
}

var errSkipRow = errors.New("empty row")

func (s *TransferService) importRow(ctx context.Context, n int, raw map[string]any, now time.Time, batchID string) error {
	row, skip, err := core.ParseImportRow(n, raw, now)
	if skip {
		return errSkipRow
	}
	if err != nil {
		return err
	}

	if err := s.userExists(ctx, n, row.UserID); err != nil {
		return err
	}
	submitter := row.UserID
	if row.SubmittedBy != "" && row.SubmittedBy != row.UserID {
		if err := s.userExists(ctx, n, row.SubmittedBy); err != nil {
			return err
		}
		submitter = row.SubmittedBy
	}

	categoryID := row.CategoryID
	if categoryID > 0 {
		if _, err := s.refs.GetCategory(ctx, categoryID); err != nil {
			if core.IsNotFound(err) {
				return core.RowError(n, "category %d does not exist", categoryID)
			}
			return s.rowFailure(ctx, n, err)
		}
	} else {
		c, created, err := s.categories.FindOrCreate(ctx, row.CategoryName)
		if err != nil {
			return s.rowFailure(ctx, n, err)
		}
		if created {
			s.logger.InfoContext(ctx, "Category created during import",
				log.FieldBatchID, batchID, log.FieldCategoryID, c.ID, "name", c.Name)
		}
		categoryID = c.ID
	}

	e := core.Expense{
		UserID:      row.UserID,
		SubmittedBy: &submitter,
		CategoryID:  categoryID,
		Description: row.Description,
		Amount:      row.Amount,
		Date:        row.Date,
		Status:      row.Status,
		Notes:       row.Notes,
		ReceiptURL:  row.ReceiptURL,
	}
	if err := e.Validate(core.Money{}); err != nil {
		return s.rowFailure(ctx, n, err)
	}
	if _, err := s.expenses.ImportExpense(ctx, e, batchID); err != nil {
		return s.rowFailure(ctx, n, err)
	}
	return nil
}

func (s *TransferService) userExists(ctx context.Context, n int, id string) error {
	if _, err := s.refs.GetUser(ctx, id); err != nil {
		if core.IsNotFound(err) {
			return core.RowError(n, "user %s does not exist", id)
		}
		return s.rowFailure(ctx, n, err)
	}
	return nil
}

// rowFailure reports err against row n. Validation errors list every field.
// Anything that is not a domain error is logged and reported as an internal
// error so driver details never reach the response.
func (s *TransferService) rowFailure(ctx context.Context, n int, err error) *core.ImportRowError {
	var ve *core.ValidationError
	if errors.As(err, &ve) && len(ve.Errors) > 0 {
		return &core.ImportRowError{Row: n, Problems: ve.Errors}
	}
	if isDomainError(err) {
		return core.RowError(n, "%v", err)
	}
	s.logger.ErrorContext(ctx, "Import row failed", "row", n, log.FieldError, err)
	return core.RowError(n, "internal error")
}

func isDomainError(err error) bool {
	var (
		ve  *core.ValidationError
		nf  *core.NotFoundError
		ri  *core.ReferentialIntegrityError
		ise *core.InvalidStateError
		ae  *core.AuthorizationError
		re  *core.ImportRowError
	)
	return errors.As(err, &ve) || errors.As(err, &nf) || errors.As(err, &ri) ||
		errors.As(err, &ise) || errors.As(err, &ae) || errors.As(err, &re)
}
