package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/nerrad567/loop-logic-core/internal/snapshot"
)

// snapshotContentType maps a snapshot format to its MIME type.
func snapshotContentType(format snapshot.Format) string {
	if format == snapshot.FormatXLSX {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "text/csv"
}

// handleExportSnapshot streams the current assignment state in the
// requested tabular format (?format=csv|xlsx, default csv).
func (s *Server) handleExportSnapshot(w http.ResponseWriter, r *http.Request) {
	format, err := snapshot.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	w.Header().Set("Content-Type", snapshotContentType(format))
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", "assignments."+string(format)))
	if err := s.service.ExportSnapshot(w, format); err != nil {
		// Headers are already out; all we can do is log.
		s.logger.Error("snapshot export failed", "format", string(format), "error", err)
	}
}

// handleImportSnapshot applies an uploaded tabular snapshot to the model.
func (s *Server) handleImportSnapshot(w http.ResponseWriter, r *http.Request) {
	format, err := snapshot.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	result, err := s.service.ImportSnapshot(r.Context(), r.Body, format)
	if err != nil {
		switch {
		case errors.Is(err, snapshot.ErrEmptyInput), errors.Is(err, snapshot.ErrBadHeader):
			writeBadRequest(w, err.Error())
		default:
			writeInternalError(w, err.Error())
		}
		return
	}
	writeJSON(w, http.StatusOK, result)
}
