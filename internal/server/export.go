package server

import (
	"crypto/subtle"
	"errors"
	"io"
	"io/fs"
	"net/http"
	"strconv"
	"strings"

	"gifshelf/internal/blobstore"
	"gifshelf/internal/catalog"
	"gifshelf/internal/export"
	"gifshelf/internal/logging"
)

// countingWriter tracks whether the archive produced any bytes, so an error
// raised before the first write can still become a clean JSON response.
type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var sel export.Selection
	if !s.decodeBody(w, r, &sel) {
		return
	}

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", `attachment; filename="`+export.ArchiveFilename()+`"`)

	counted := &countingWriter{w: w}
	err := s.exports.Export(r.Context(), sel, counted)
	if err == nil {
		return
	}
	if counted.n > 0 {
		// Bytes are on the wire; the truncated archive is the error signal.
		s.logger.Error("export aborted mid-stream", logging.Error(err))
		return
	}

	w.Header().Del("Content-Disposition")
	switch {
	case errors.Is(err, export.ErrEmptyExport):
		s.writeError(w, http.StatusBadRequest, "selection matched no exportable images")
	case errors.Is(err, catalog.ErrUnavailable):
		s.writeError(w, http.StatusNotFound, "catalog unavailable")
	default:
		s.writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func (s *Server) handleAdminVerify(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var body struct {
		Secret string `json:"secret"`
	}
	if !s.decodeBody(w, r, &body) {
		return
	}

	expected := s.cfg.Paths.AdminSecret
	valid := subtle.ConstantTimeCompare([]byte(body.Secret), []byte(expected)) == 1
	if !valid {
		s.writeJSON(w, http.StatusUnauthorized, map[string]bool{"valid": false})
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]bool{"valid": true})
}

func (s *Server) handleUploadedFile(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	name := strings.TrimPrefix(r.URL.Path, "/uploads/")
	if err := blobstore.CheckName(name); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid filename")
		return
	}

	file, size, err := s.blobs.Open(name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			s.writeError(w, http.StatusNotFound, "file not found")
			return
		}
		s.writeError(w, http.StatusInternalServerError, "failed to open file")
		return
	}
	defer file.Close()

	w.Header().Set("Content-Type", blobstore.ContentType(name))
	w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
	w.Header().Set("Cache-Control", "public, max-age=60")
	if r.Method == http.MethodHead {
		return
	}
	if _, err := io.Copy(w, file); err != nil {
		s.logger.Warn("file stream interrupted",
			logging.String("filename", name), logging.Error(err))
	}
}
