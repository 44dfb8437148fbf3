package server

import (
	"net/http"
)

// validDatasetNames are the only dataset identifiers the download
// endpoint accepts.
var validDatasetNames = map[string]bool{
	"comment_generation": true,
	"code_refinement":    true,
}

// handleDatasetDownload handles GET /datasets/download/<dataset>. It only
// resolves the filename and serves it from disk.
func (s *Server) handleDatasetDownload(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	dataset := PathParam(r, "/datasets/download/")
	if !validDatasetNames[dataset] {
		WriteError(w, http.StatusBadRequest, "unknown dataset name")
		return
	}

	suffix := "no_context"
	if r.URL.Query().Get("withContext") == "true" {
		suffix = "with_context"
	}

	filename := "dataset_" + suffix + ".zip"
	path := s.app.DatasetArchivePath(filename)

	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	http.ServeFile(w, r, path)
}
