package api

import (
	"net/http"

	"github.com/p-arndt/labkasten/internal/catalog"
)

func (s *Server) handleListLabs(w http.ResponseWriter, r *http.Request) {
	labs, err := s.catalog.List(r.Context())
	if err != nil {
		s.logger.Error("list labs", "error", err)
		writeAPIError(w, err)
		return
	}
	if labs == nil {
		labs = []*catalog.Entry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"labs": labs})
}

func (s *Server) handleGetLab(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := validateLabID(id); err != nil {
		writeValidationError(w, err.Error(), nil)
		return
	}
	entry, err := s.catalog.Get(r.Context(), id)
	if err != nil {
		writeAPIError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}
