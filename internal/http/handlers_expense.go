package http

import (
	"context"
	"net/http"

	"expenseflow/internal/core"
)

func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	f, err := scopedFilter(actor, r.URL.Query())
	if err != nil {
		writeError(w, r, err)
		return
	}
	views, err := s.deps.Expenses.Query(r.Context(), f)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if views == nil {
		views = []core.ExpenseView{}
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var in core.ExpenseInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	e, err := s.deps.Expenses.Create(r.Context(), actor, in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, e)
}

func (s *Server) handleGetExpense(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	v, err := s.deps.Expenses.Get(r.Context(), actor, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (s *Server) handleExpenseHistory(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	events, err := s.deps.Expenses.History(r.Context(), actor, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, events)
}

func (s *Server) handleUpdateExpense(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var p core.ExpensePatch
	if err := decodeJSON(w, r, &p); err != nil {
		writeError(w, r, err)
		return
	}
	e, err := s.deps.Expenses.Update(r.Context(), actor, id, p)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.deps.Expenses.Delete(r.Context(), actor, id); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}

type transitionFunc func(ctx context.Context, actor core.Actor, id int64) (core.Expense, error)

// lifecycleHandler serves the approve, reject and resubmit actions.
func (s *Server) lifecycleHandler(fn transitionFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := actorFrom(r)
		if err != nil {
			writeError(w, r, err)
			return
		}
		id, err := pathID(r)
		if err != nil {
			writeError(w, r, err)
			return
		}
		e, err := fn(r.Context(), actor, id)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, e)
	}
}

func (s *Server) handleApproveExpense(w http.ResponseWriter, r *http.Request) {
	s.lifecycleHandler(s.deps.Expenses.Approve)(w, r)
}

func (s *Server) handleRejectExpense(w http.ResponseWriter, r *http.Request) {
	s.lifecycleHandler(s.deps.Expenses.Reject)(w, r)
}

func (s *Server) handleResubmitExpense(w http.ResponseWriter, r *http.Request) {
	s.lifecycleHandler(s.deps.Expenses.Resubmit)(w, r)
}

func (s *Server) handleSetExpenseStatus(w http.ResponseWriter, r *http.Request) {
	var body statusBody
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	s.lifecycleHandler(func(ctx context.Context, actor core.Actor, id int64) (core.Expense, error) {
		return s.deps.Expenses.SetStatus(ctx, actor, id, body.Status)
	})(w, r)
}
