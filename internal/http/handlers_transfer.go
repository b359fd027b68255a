package http

import (
	"fmt"
	"mime"
	"net/http"
	"strings"
	"time"

	"expenseflow/internal/core"
	"expenseflow/internal/log"
	"expenseflow/internal/services"
)

// exportFilter lets admins narrow an export; without userId every user's
// expenses are included.
func exportFilter(r *http.Request) (core.ExpenseFilter, error) {
	q := r.URL.Query()
	f, err := ParseExpenseFilter(q)
	if err != nil {
		return f, err
	}
	f.OwnerID = ParseScopeParams(q).OwnerID
	return f, nil
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	format := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("format")))
	if format == "" {
		format = "json"
	}
	if format != "json" && format != "csv" {
		writeError(w, r, core.NewValidationError(fmt.Sprintf("unsupported export format %q (expected json or csv)", format)))
		return
	}
	f, err := exportFilter(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	rows, err := s.deps.Transfer.ExportRows(r.Context(), actor, f)
	if err != nil {
		writeError(w, r, err)
		return
	}

	if format == "json" {
		writeJSON(w, http.StatusOK, rows)
		return
	}
	filename := fmt.Sprintf("expenses-%s.csv", time.Now().UTC().Format("20060102"))
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": filename}))
	if err := services.WriteCSV(w, rows); err != nil {
		// headers already sent
		s.logger.ErrorContext(r.Context(), "CSV export failed mid-stream", log.FieldError, err)
	}
}

func (s *Server) handleExportSheets(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	f, err := exportFilter(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	ref, err := s.deps.Transfer.ExportToSheet(r.Context(), actor, f)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"range": ref})
}

// handleImport accepts a JSON body or a multipart upload with a CSV "file".
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := core.RequireRole(actor, core.RoleAdmin); err != nil {
		writeError(w, r, err)
		return
	}

	var rows []map[string]any
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		rows, err = readImportUpload(w, r)
	} else {
		var body importBody
		err = decodeJSONLimit(w, r, &body, maxImportBody)
		rows = body.Rows
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	res, err := s.deps.Transfer.Import(r.Context(), actor, rows)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func readImportUpload(w http.ResponseWriter, r *http.Request) ([]map[string]any, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxImportBody)
	if err := r.ParseMultipartForm(maxImportBody); err != nil {
		return nil, core.NewValidationError("invalid upload: " + err.Error())
	}
	file, _, err := r.FormFile("file")
	if err != nil {
		return nil, core.NewValidationError(`upload must include a CSV "file" field`)
	}
	defer file.Close()
	return services.ReadCSV(file)
}
