package httpapi

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/antoniostano/papertutor/internal/tutor"
)

const defaultUploadName = "paper.pdf"

// multipart framing allowance on top of the file limit.
const multipartOverhead = 1 << 20

var errUploadTooLarge = errors.New("upload exceeds size limit")

type documentResponse struct {
	SessionID        string             `json:"session_id"`
	State            tutor.State        `json:"state"`
	Document         tutor.DocumentInfo `json:"document"`
	TranscriptLength int                `json:"transcript_length"`
}

// handleUploadDocument accepts a multipart form with a "file" field or a raw
// application/pdf body. A successful upload replaces any paper already loaded.
func (s *Server) handleUploadDocument(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	maxBytes := int64(s.cfg.UploadMaxBytes)
	if maxBytes <= 0 {
		maxBytes = 32 << 20
	}

	filename, data, err := readUpload(w, r, maxBytes)
	switch {
	case errors.Is(err, errUploadTooLarge):
		respondError(w, http.StatusRequestEntityTooLarge, "document_too_large", fmt.Sprintf("upload exceeds %d bytes", maxBytes))
		return
	case err != nil:
		respondError(w, http.StatusBadRequest, "invalid_upload", err.Error())
		return
	}

	info, err := s.tutor.LoadDocument(r.Context(), id, filename, data)
	if err != nil {
		respondFailure(w, err)
		return
	}
	_, snap, err := s.tutor.Snapshot(id)
	if err != nil {
		respondFailure(w, err)
		return
	}
	respondJSON(w, http.StatusOK, documentResponse{
		SessionID:        id,
		State:            snap.State,
		Document:         info,
		TranscriptLength: len(snap.Transcript),
	})
}

func readUpload(w http.ResponseWriter, r *http.Request, maxBytes int64) (string, []byte, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		r.Body = http.MaxBytesReader(w, r.Body, maxBytes+multipartOverhead)
		file, header, err := r.FormFile("file")
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				return "", nil, errUploadTooLarge
			}
			return "", nil, fmt.Errorf("read form file: %w", err)
		}
		defer file.Close()
		data, err := readLimited(file, maxBytes)
		if err != nil {
			return "", nil, err
		}
		return uploadName(header.Filename), data, nil
	}

	if r.Body == nil {
		return "", nil, errEmptyBody
	}
	defer r.Body.Close()
	data, err := readLimited(r.Body, maxBytes)
	if err != nil {
		return "", nil, err
	}
	name := r.URL.Query().Get("filename")
	if name == "" {
		name = r.Header.Get("X-Filename")
	}
	return uploadName(name), data, nil
}

func readLimited(r io.Reader, maxBytes int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if int64(len(data)) > maxBytes {
		return nil, errUploadTooLarge
	}
	return data, nil
}

func uploadName(raw string) string {
	name := strings.TrimSpace(filepath.Base(strings.ReplaceAll(raw, "\\", "/")))
	if name == "" || name == "." || name == "/" {
		return defaultUploadName
	}
	return name
}
