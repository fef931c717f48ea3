package server

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"gifshelf/internal/catalog"
	"gifshelf/internal/pipeline"
	"gifshelf/internal/renderqueue"
)

// maxUploadBytes caps one multipart upload. Large originals belong in a real
// object store, not this catalog.
const maxUploadBytes = 64 << 20

type catalogResponse struct {
	Images  []catalog.Image  `json:"images"`
	Folders []catalog.Folder `json:"folders"`
}

func (s *Server) handleCatalog(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	cat, err := s.pipeline.Snapshot(r.Context())
	if err != nil {
		s.writePipelineError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, catalogResponse{
		Images:  cat.SortedNewestFirst(),
		Folders: cat.Folders,
	})
}

func (s *Server) handleImages(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid multipart payload")
		return
	}
	file, header, err := r.FormFile("image")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "missing image file field")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "failed to read upload body")
		return
	}

	req := pipeline.UploadRequest{
		Data:         data,
		OriginalName: header.Filename,
		DisplayName:  r.FormValue("name"),
	}
	if folderID := strings.TrimSpace(r.FormValue("folderId")); folderID != "" {
		req.FolderID = &folderID
	}

	image, err := s.pipeline.Upload(r.Context(), req)
	if err != nil {
		s.writePipelineError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, image)
}

// handleImageItem routes /api/images/{id} and its sub-resources:
// render, tags, folder, name.
func (s *Server) handleImageItem(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/images/")
	imageID, sub, _ := strings.Cut(rest, "/")
	if imageID == "" || strings.Contains(sub, "/") {
		s.writeError(w, http.StatusNotFound, "image not found")
		return
	}

	switch sub {
	case "":
		if r.Method != http.MethodDelete {
			s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		s.deleteImage(w, r, imageID)
	case "render":
		s.handleRender(w, r, imageID)
	case "tags":
		s.updateTags(w, r, imageID)
	case "folder":
		s.moveToFolder(w, r, imageID)
	case "name":
		s.renameImage(w, r, imageID)
	default:
		s.writeError(w, http.StatusNotFound, "unknown image resource")
	}
}

func (s *Server) deleteImage(w http.ResponseWriter, r *http.Request, imageID string) {
	if err := s.pipeline.Delete(r.Context(), imageID); err != nil {
		s.writePipelineError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"deleted": imageID})
}

func (s *Server) handleRender(w http.ResponseWriter, r *http.Request, imageID string) {
	switch r.Method {
	case http.MethodPost:
		job, err := s.queue.Enqueue(imageID)
		switch {
		case errors.Is(err, renderqueue.ErrQueueFull):
			s.writeError(w, http.StatusServiceUnavailable, "render queue full")
		case errors.Is(err, renderqueue.ErrStopped):
			s.writeError(w, http.StatusServiceUnavailable, "render queue stopped")
		case err != nil:
			s.writePipelineError(w, err)
		default:
			s.writeJSON(w, http.StatusAccepted, job)
		}
	case http.MethodGet:
		job, ok := s.queue.Lookup(imageID)
		if !ok {
			s.writeError(w, http.StatusNotFound, "no render job for image")
			return
		}
		s.writeJSON(w, http.StatusOK, job)
	default:
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) updateTags(w http.ResponseWriter, r *http.Request, imageID string) {
	if r.Method != http.MethodPut {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var body struct {
		Tags []string `json:"tags"`
	}
	if !s.decodeBody(w, r, &body) {
		return
	}
	if err := s.pipeline.UpdateTags(r.Context(), imageID, body.Tags); err != nil {
		s.writePipelineError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"id": imageID, "tags": pipeline.NormalizeTags(body.Tags)})
}

func (s *Server) moveToFolder(w http.ResponseWriter, r *http.Request, imageID string) {
	if r.Method != http.MethodPut {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var body struct {
		FolderID *string `json:"folderId"`
	}
	if !s.decodeBody(w, r, &body) {
		return
	}
	if err := s.pipeline.MoveToFolder(r.Context(), imageID, body.FolderID); err != nil {
		s.writePipelineError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"id": imageID, "folderId": body.FolderID})
}

func (s *Server) renameImage(w http.ResponseWriter, r *http.Request, imageID string) {
	if r.Method != http.MethodPut {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var body struct {
		Name string `json:"name"`
	}
	if !s.decodeBody(w, r, &body) {
		return
	}
	if err := s.pipeline.Rename(r.Context(), imageID, body.Name); err != nil {
		s.writePipelineError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"id": imageID, "name": body.Name})
}

func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	defer r.Body.Close()
	if err := decodeJSON(r.Body, dst); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid json body")
		return false
	}
	return true
}
