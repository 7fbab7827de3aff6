package web

import (
	"errors"
	"io"
	"net/http"
	"path/filepath"

	"github.com/worldgate/platform/server/internal/scan"
)

// handleUpload ingests exactly one multipart file, fingerprints it,
// and stores it content-addressed. Repeating an identical upload is a
// safe no-op: the same stored name comes back and nothing is
// rewritten.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	// Fail fast on a declared oversize before reading anything; the
	// MaxBytesReader installed at the route boundary still catches
	// bodies that lie about their length.
	if r.ContentLength > s.maxUploadBytes() {
		http.Error(w, "upload exceeds size limit", http.StatusRequestEntityTooLarge)
		return
	}

	if err := r.ParseMultipartForm(s.maxUploadBytes()); err != nil {
		if isBodyTooLarge(err) {
			http.Error(w, "upload exceeds size limit", http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, "invalid multipart form", http.StatusBadRequest)
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "file field is required", http.StatusBadRequest)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		if isBodyTooLarge(err) {
			http.Error(w, "upload exceeds size limit", http.StatusRequestEntityTooLarge)
			return
		}
		s.logger.Error().Err(err).Msg("failed to read upload body")
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	if err := s.scanUpload(r, header.Filename, data); err != nil {
		http.Error(w, "upload rejected by policy", http.StatusForbidden)
		return
	}

	stored, err := s.store.Put(data, filepath.Ext(header.Filename))
	if err != nil {
		s.logger.Error().Err(err).Str("filename", header.Filename).Msg("asset store write failed")
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	if s.replicator != nil {
		if err := s.replicator.Replicate(r.Context(), stored, data); err != nil {
			// Strict mirror mode: the local write stands, but the
			// caller is told replication failed so it can retry.
			s.logger.Error().Err(err).Str("asset", stored).Msg("asset replication failed")
			http.Error(w, "internal server error", http.StatusInternalServerError)
			return
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"filename": stored,
	})
}

func (s *Server) scanUpload(r *http.Request, filename string, data []byte) error {
	if s.scanner == nil {
		return nil
	}
	if err := s.scanner.ScanUpload(r.Context(), filename, data); err != nil {
		var violation *scan.Violation
		if errors.As(err, &violation) {
			s.logger.Warn().
				Str("filename", filename).
				Str("rule", violation.Rule).
				Msg("upload policy violation")
			if s.scanner.Enforced() {
				return violation
			}
			return nil
		}
		return err
	}
	return nil
}

// isBodyTooLarge recognizes the error http.MaxBytesReader produces
// when the transport-boundary size cap trips.
func isBodyTooLarge(err error) bool {
	var maxBytes *http.MaxBytesError
	return errors.As(err, &maxBytes)
}
