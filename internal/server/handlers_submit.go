package server

import (
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/bobmcallan/crab-eval/internal/models"
)

// maxSubmissionBytes bounds the multipart file read.
const maxSubmissionBytes = 10 << 20 // 10MB

// submitResponse is the shared accept-response shape for both submission
// endpoints.
type submitResponse struct {
	ID        string `json:"id"`
	StatusURL string `json:"status_url"`
	HelpMsg   string `json:"help_msg"`
}

// readSubmissionFile extracts the multipart "file" field, validates its
// extension is .json, and returns its raw bytes.
func readSubmissionFile(r *http.Request) ([]byte, error) {
	if err := r.ParseMultipartForm(maxSubmissionBytes); err != nil {
		return nil, fmt.Errorf("invalid multipart form: %w", err)
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		return nil, fmt.Errorf("missing \"file\" field: %w", err)
	}
	defer file.Close()

	if ext := strings.ToLower(filepath.Ext(header.Filename)); ext != ".json" {
		return nil, fmt.Errorf("invalid file extension %q: expected .json", ext)
	}

	return io.ReadAll(io.LimitReader(file, maxSubmissionBytes))
}

// handleSubmitComment handles POST /answers/submit/comment.
func (s *Server) handleSubmitComment(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	data, err := readSubmissionFile(r)
	if err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	submission, err := models.ParseCommentSubmission(data)
	if err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	id, err := s.app.SubmitComment(submission)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.notifyAccepted(r, id)
	WriteJSON(w, http.StatusOK, submitResponse{
		ID:        id,
		StatusURL: "/answers/status/" + id,
		HelpMsg:   "Check the status of your submission at status_url.",
	})
}

// handleSubmitRefinement handles POST /answers/submit/refinement.
func (s *Server) handleSubmitRefinement(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	data, err := readSubmissionFile(r)
	if err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	submission, err := models.ParseRefinementSubmission(data)
	if err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	id, err := s.app.SubmitRefinement(submission)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.notifyAccepted(r, id)
	WriteJSON(w, http.StatusOK, submitResponse{
		ID:        id,
		StatusURL: "/answers/status/" + id,
		HelpMsg:   "Check the status of your submission at status_url.",
	})
}

// notifyAccepted pushes "successful-upload" to the caller's session, if
// an X-Socket-Id header was supplied.
func (s *Server) notifyAccepted(r *http.Request, id string) {
	sessionID := r.Header.Get("X-Socket-Id")
	if sessionID == "" {
		return
	}
	s.hub.Push(sessionID, "successful-upload", map[string]any{"id": id})
}
