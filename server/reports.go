package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/xhad/quotes/pkg/report"
)

func (s *Server) handleListReports(w http.ResponseWriter, r *http.Request) {
	reports, err := s.config.Reports.List(r.Context(), userID(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, reports)
}

func (s *Server) handleCreateReport(w http.ResponseWriter, r *http.Request) {
	var in report.Input
	if err := decodeJSON(r, &in); err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	created, err := s.config.Reports.Create(r.Context(), userID(r), in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleGetReport(w http.ResponseWriter, r *http.Request) {
	rep, err := s.config.Reports.Get(r.Context(), userID(r), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func (s *Server) handleUpdateReport(w http.ResponseWriter, r *http.Request) {
	var in report.Input
	if err := decodeJSON(r, &in); err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	updated, err := s.config.Reports.Update(r.Context(), userID(r), chi.URLParam(r, "id"), in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteReport(w http.ResponseWriter, r *http.Request) {
	if err := s.config.Reports.Delete(r.Context(), userID(r), chi.URLParam(r, "id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleShareReport(w http.ResponseWriter, r *http.Request) {
	link, err := s.config.Reports.Share(r.Context(), userID(r), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, link)
}

func (s *Server) handleUnshareReport(w http.ResponseWriter, r *http.Request) {
	if err := s.config.Reports.Unshare(r.Context(), userID(r), chi.URLParam(r, "id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleSharedReport serves a shared report without authentication.
func (s *Server) handleSharedReport(w http.ResponseWriter, r *http.Request) {
	rep, err := s.config.Reports.Shared(r.Context(), chi.URLParam(r, "token"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	// the viewer is not the owner
	rep.OwnerID = ""
	writeJSON(w, http.StatusOK, rep)
}
