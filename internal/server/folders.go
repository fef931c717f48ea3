package server

import (
	"net/http"
	"strings"
)

func (s *Server) handleFolders(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var body struct {
		Name  string  `json:"name"`
		Color *string `json:"color"`
	}
	if !s.decodeBody(w, r, &body) {
		return
	}

	folder, err := s.pipeline.CreateFolder(r.Context(), body.Name, body.Color)
	if err != nil {
		s.writePipelineError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, folder)
}

func (s *Server) handleFolderItem(w http.ResponseWriter, r *http.Request) {
	folderID := strings.TrimPrefix(r.URL.Path, "/api/folders/")
	if folderID == "" || strings.Contains(folderID, "/") {
		s.writeError(w, http.StatusNotFound, "folder not found")
		return
	}
	if r.Method != http.MethodDelete {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	if err := s.pipeline.DeleteFolder(r.Context(), folderID); err != nil {
		s.writePipelineError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"deleted": folderID})
}
