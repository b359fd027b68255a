package http

import (
	"net/http"

	"expenseflow/internal/core"
)

// reportScope resolves the filter every report runs over. Reports honour the
// same status, category and search parameters as the expense list.
func reportScope(w http.ResponseWriter, r *http.Request) (core.Actor, core.ExpenseFilter, bool) {
	actor, err := actorFrom(r)
	if err != nil {
		writeError(w, r, err)
		return actor, core.ExpenseFilter{}, false
	}
	f, err := scopedFilter(actor, r.URL.Query())
	if err != nil {
		writeError(w, r, err)
		return actor, f, false
	}
	return actor, f, true
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	actor, f, ok := reportScope(w, r)
	if !ok {
		return
	}
	d, err := s.deps.Reports.Dashboard(r.Context(), actor, f)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (s *Server) handleReportByCategory(w http.ResponseWriter, r *http.Request) {
	_, f, ok := reportScope(w, r)
	if !ok {
		return
	}
	totals, err := s.deps.Reports.ByCategory(r.Context(), f)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if totals == nil {
		totals = []core.CategoryTotal{}
	}
	writeJSON(w, http.StatusOK, totals)
}

func (s *Server) handleReportByMonth(w http.ResponseWriter, r *http.Request) {
	_, f, ok := reportScope(w, r)
	if !ok {
		return
	}
	months, err := queryInt(r.URL.Query(), "months")
	if err != nil {
		writeError(w, r, err)
		return
	}
	totals, err := s.deps.Reports.ByMonth(r.Context(), f, months)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, totals)
}

func (s *Server) handleReportByQuarter(w http.ResponseWriter, r *http.Request) {
	_, f, ok := reportScope(w, r)
	if !ok {
		return
	}
	year, err := queryInt(r.URL.Query(), "year")
	if err != nil {
		writeError(w, r, err)
		return
	}
	totals, err := s.deps.Reports.ByQuarter(r.Context(), f, year)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, totals)
}

func (s *Server) handleReportByDay(w http.ResponseWriter, r *http.Request) {
	_, f, ok := reportScope(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	year, err := queryInt(q, "year")
	if err != nil {
		writeError(w, r, err)
		return
	}
	month, err := queryInt(q, "month")
	if err != nil {
		writeError(w, r, err)
		return
	}
	totals, err := s.deps.Reports.ByDay(r.Context(), f, year, month)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, totals)
}

func (s *Server) handleReportByStatus(w http.ResponseWriter, r *http.Request) {
	_, f, ok := reportScope(w, r)
	if !ok {
		return
	}
	totals, err := s.deps.Reports.ByStatus(r.Context(), f)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, totals)
}

func (s *Server) handleReportStats(w http.ResponseWriter, r *http.Request) {
	_, f, ok := reportScope(w, r)
	if !ok {
		return
	}
	stats, err := s.deps.Reports.Stats(r.Context(), f)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
