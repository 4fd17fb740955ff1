package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"cartseg/internal/dataset"
	"cartseg/internal/segment"
	"cartseg/internal/store"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"
)

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "version": s.version})
}

func (s *Server) listWindows(w http.ResponseWriter, r *http.Request) {
	keys, err := s.svc.List()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list windows")
		return
	}
	if keys == nil {
		keys = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"windows": keys})
}

func (s *Server) getWindow(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["window"]
	if _, err := dataset.ParseWindowKey(key); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := s.svc.Get(key)
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) getSegments(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["window"]
	if _, err := dataset.ParseWindowKey(key); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := s.svc.Get(key)
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"window": res.Window, "segments": res.Segments})
}

func (s *Server) runWindow(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["window"]
	window, err := dataset.ParseWindowKey(key)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read request body")
		return
	}
	defer r.Body.Close()

	overrides, err := decodeRunRequest(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	force, _ := strconv.ParseBool(r.URL.Query().Get("force"))

	outcome, err := s.svc.Run(r.Context(), window, overrides, force)
	if err != nil {
		writeMappedError(w, err)
		return
	}

	w.Header().Set("X-Run-ID", outcome.RunID)
	writeJSON(w, http.StatusOK, map[string]any{
		"result": outcome.Result,
		"cached": outcome.Cached,
		"run_id": outcome.RunID,
	})
}

// writeMappedError translates pipeline and store errors onto HTTP statuses:
// configuration and input problems are the caller's fault (400), a missing
// artifact is 404, a window that cannot reach a viable segmentation is 422,
// and everything else is a 500.
func writeMappedError(w http.ResponseWriter, err error) {
	var cfgErr *segment.ConfigurationError
	var valErr *dataset.ValidationError
	var emptyErr *segment.EmptyInputError
	var unresolvable *segment.UnresolvableSegmentationError

	switch {
	case errors.As(err, &cfgErr), errors.As(err, &valErr), errors.As(err, &emptyErr):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "no result for window")
	case errors.As(err, &unresolvable):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"error":     err.Error(),
			"min_size":  unresolvable.MinSize,
			"remaining": unresolvable.Remaining,
		})
	default:
		log.Error().Err(err).Msg("Request failed")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
