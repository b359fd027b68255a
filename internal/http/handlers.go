package http

import (
	"net/http"

	"expenseflow/internal/core"
	"expenseflow/internal/middleware/identity"
)

// authUserResponse is the caller's profile plus what the UI may offer.
type authUserResponse struct {
	core.User
	DisplayName   string `json:"displayName"`
	CanReview     bool   `json:"canReview"`
	CanAdminister bool   `json:"canAdminister"`
	SheetsExport  bool   `json:"sheetsExport"`
}

func (s *Server) handleAuthUser(w http.ResponseWriter, r *http.Request) {
	u, ok := identity.UserFrom(r.Context())
	if !ok {
		writeError(w, r, identity.ErrUnauthenticated)
		return
	}
	actor := core.Actor{ID: u.ID, Role: u.Role}
	writeJSON(w, http.StatusOK, authUserResponse{
		User:          u,
		DisplayName:   u.DisplayName(),
		CanReview:     actor.IsReviewer(),
		CanAdminister: actor.IsAdmin(),
		SheetsExport:  s.deps.Transfer != nil && s.deps.Transfer.SheetsEnabled(),
	})
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	users, err := s.deps.Users.List(r.Context(), actor)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if users == nil {
		users = []core.User{}
	}
	writeJSON(w, http.StatusOK, users)
}

func (s *Server) handleSetUserRole(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var body roleBody
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	u, err := s.deps.Users.SetRole(r.Context(), actor, r.PathValue("id"), body.Role)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	forest, err := s.deps.Categories.List(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	if forest == nil {
		forest = []*core.CategoryNode{}
	}
	writeJSON(w, http.StatusOK, forest)
}

func (s *Server) handleGetCategory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	c, err := s.deps.Categories.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var in core.CategoryInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	c, err := s.deps.Categories.Create(r.Context(), actor, in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (s *Server) handleUpdateCategory(w http.ResponseWriter, r *http.Request) {
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
	var p core.CategoryPatch
	if err := decodeJSON(w, r, &p); err != nil {
		writeError(w, r, err)
		return
	}
	c, err := s.deps.Categories.Update(r.Context(), actor, id, p)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) handleDeleteCategory(w http.ResponseWriter, r *http.Request) {
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
	if err := s.deps.Categories.Delete(r.Context(), actor, id); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}
