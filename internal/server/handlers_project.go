package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/planstudio-ai/planstudio/internal/storage"
	"github.com/planstudio-ai/planstudio/pkg/types"
)

func projectPath(id string) []string {
	return []string{"projects", id}
}

// getProject returns the document stored under the project ID. A
// project that was never saved comes back as an empty document, not a
// 404: a fresh project and an empty one are indistinguishable to the
// store.
func (s *Server) getProject(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "projectID")
	if !validProjectID(id) {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "invalid project ID")
		return
	}

	var doc types.ProjectDocument
	err := s.storage.Get(r.Context(), projectPath(id), &doc)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		s.log.Error().Err(err).Str("project", id).Msg("read project failed")
		writeError(w, http.StatusInternalServerError, ErrCodeInternalError, "failed to read project")
		return
	}

	writeJSON(w, http.StatusOK, doc)
}

// putProject replaces the document stored under the project ID.
func (s *Server) putProject(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "projectID")
	if !validProjectID(id) {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "invalid project ID")
		return
	}

	var doc types.ProjectDocument
	if err := json.NewDecoder(r.Body).Decode(&doc); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "invalid project document: "+err.Error())
		return
	}
	for _, msg := range doc.Messages {
		if !msg.Role.Valid() {
			writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "unknown message role: "+string(msg.Role))
			return
		}
	}

	if err := s.storage.Put(r.Context(), projectPath(id), &doc); err != nil {
		s.log.Error().Err(err).Str("project", id).Msg("write project failed")
		writeError(w, http.StatusInternalServerError, ErrCodeInternalError, "failed to write project")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// listProjects returns the IDs of all saved projects.
func (s *Server) listProjects(w http.ResponseWriter, r *http.Request) {
	ids, err := s.storage.List(r.Context(), []string{"projects"})
	if err != nil {
		s.log.Error().Err(err).Msg("list projects failed")
		writeError(w, http.StatusInternalServerError, ErrCodeInternalError, "failed to list projects")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"projects": ids})
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// validProjectID rejects IDs that could escape the storage directory.
func validProjectID(id string) bool {
	if id == "" || id == "." || id == ".." {
		return false
	}
	return !strings.ContainsAny(id, "/\\")
}
