package internalhttp

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/daycal/calendar/internal/projection"
	"github.com/daycal/calendar/internal/syncer"
	log "github.com/sirupsen/logrus"
)

// The auth collaborator validates credentials upstream and forwards the
// authenticated principal id in this header.
const principalHeader = "X-User-ID"

func principal(r *http.Request) (int, error) {
	id, err := strconv.Atoi(r.Header.Get(principalHeader))
	if err != nil || id <= 0 {
		return 0, errors.New("missing or invalid principal")
	}
	return id, nil
}

func parseRange(r *http.Request) (time.Time, time.Time, error) {
	from, err := time.Parse(time.RFC3339, r.URL.Query().Get("start"))
	if err != nil {
		return time.Time{}, time.Time{}, errors.New("invalid start timestamp")
	}
	to, err := time.Parse(time.RFC3339, r.URL.Query().Get("end"))
	if err != nil {
		return time.Time{}, time.Time{}, errors.New("invalid end timestamp")
	}
	return from.UTC(), to.UTC(), nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Errorf("failed to write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func writeAppError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, projection.ErrShareNotFound):
		writeError(w, http.StatusNotFound, "share not found")
	case errors.Is(err, syncer.ErrInvalidSince):
		writeError(w, http.StatusBadRequest, "invalid since timestamp")
	default:
		log.Errorf("request failed: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func (s *Server) handleCalendar(w http.ResponseWriter, r *http.Request) {
	userID, err := principal(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	from, to, err := parseRange(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	occurrences, err := s.app.GetCalendarOccurrences(r.Context(), userID, from, to)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, occurrences)
}

func (s *Server) handleSharedCalendar(w http.ResponseWriter, r *http.Request) {
	userID, err := principal(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	shareID, err := strconv.Atoi(r.PathValue("shareID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid share id")
		return
	}
	from, to, err := parseRange(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	view, err := s.app.GetSharedCalendar(r.Context(), userID, shareID, from, to)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleOpenCalendar(w http.ResponseWriter, r *http.Request) {
	from, to, err := parseRange(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	view, err := s.app.GetOpenSharedCalendar(r.Context(), r.PathValue("publicID"), from, to)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleOwnedSync(w http.ResponseWriter, r *http.Request) {
	userID, err := principal(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	since, err := syncer.ParseSince(r.URL.Query().Get("since"))
	if err != nil {
		writeAppError(w, err)
		return
	}
	result, err := s.app.SyncOwned(r.Context(), userID, since)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleSharedSync(w http.ResponseWriter, r *http.Request) {
	userID, err := principal(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	shareID, err := strconv.Atoi(r.PathValue("shareID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid share id")
		return
	}
	since, err := syncer.ParseSince(r.URL.Query().Get("since"))
	if err != nil {
		writeAppError(w, err)
		return
	}
	result, err := s.app.SyncShared(r.Context(), userID, shareID, since)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleReplaceShareCategories(w http.ResponseWriter, r *http.Request) {
	userID, err := principal(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	shareID, err := strconv.Atoi(r.PathValue("shareID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid share id")
		return
	}
	var payload struct {
		CategoryIDs []int `json:"categoryIds"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if err := s.app.UpdateShareCategories(r.Context(), userID, shareID, payload.CategoryIDs); err != nil {
		writeAppError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
