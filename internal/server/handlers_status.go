package server

import (
	"net/http"

	"github.com/bobmcallan/crab-eval/internal/models"
)

// handleStatus handles GET /answers/status/<id>. The response shape
// depends on the job's current lifecycle state.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	id := PathParam(r, "/answers/status/")
	if id == "" {
		WriteError(w, http.StatusNotFound, "missing submission id")
		return
	}

	job, ok := s.app.JobByID(id)
	if !ok {
		WriteError(w, http.StatusNotFound, "unknown submission id")
		return
	}

	sessionID := r.Header.Get("X-Socket-Id")

	switch job.Status() {
	case models.JobStatusComplete:
		results, _ := job.Results()
		WriteJSON(w, http.StatusOK, map[string]any{
			"status":  "complete",
			"type":    string(job.Type),
			"results": results,
		})

	case models.JobStatusFailed:
		WriteJSON(w, http.StatusOK, map[string]any{
			"status": "complete",
			"type":   string(job.Type),
			"error":  job.Err().Error(),
		})

	case models.JobStatusProcessing:
		ok, alreadyListening := s.attachObserverIfRequested(sessionID, job)
		if alreadyListening {
			WriteError(w, http.StatusBadRequest, "already listening")
			return
		}
		if !ok {
			WriteError(w, http.StatusInternalServerError, "failed to attach observer")
			return
		}
		WriteJSON(w, http.StatusOK, map[string]any{
			"status":  "processing",
			"percent": job.Percent(),
		})

	case models.JobStatusWaiting:
		ok, alreadyListening := s.attachObserverIfRequested(sessionID, job)
		if alreadyListening {
			WriteError(w, http.StatusBadRequest, "already listening")
			return
		}
		if !ok {
			WriteError(w, http.StatusInternalServerError, "failed to attach observer")
			return
		}
		WriteJSON(w, http.StatusOK, map[string]any{
			"status":         "waiting",
			"queue_position": s.app.QueuePosition(id),
		})

	default: // models.JobStatusCreated
		WriteJSON(w, http.StatusOK, map[string]any{"status": "created"})
	}
}
