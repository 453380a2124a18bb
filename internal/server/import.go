package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/claude/veloplan/internal/ingest"
	"github.com/claude/veloplan/internal/storage"
)

func (s *Server) handleImportActivities(w http.ResponseWriter, r *http.Request) {
	var payload ingest.Payload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON: " + err.Error()})
		return
	}

	result, err := s.ingest.Ingest(r.Context(), &payload)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "athlete not found"})
			return
		}
		s.log.Error("import error", "error", err)
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, result)
}
