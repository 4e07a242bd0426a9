package app

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/mingshi/voicemark/internal/match"
)

// maxBodyBytes bounds request bodies on the resolve endpoints. A report is a
// name and two integers; anything near the limit is garbage.
const maxBodyBytes = 64 << 10

// errorBody is the JSON error response shape.
type errorBody struct {
	Error string `json:"error"`
}

// Register adds the service routes to mux:
//
//	POST /resolve — process one report (resolve + grade update on match)
//	POST /resolve/batch — resolve a list of names, no grade updates
//	POST /reload  — rebuild the roster snapshot from the gradebook
//	GET  /report  — gradebook summary statistics
func (s *Service) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /resolve", s.handleResolve)
	mux.HandleFunc("POST /resolve/batch", s.handleResolveBatch)
	mux.HandleFunc("POST /reload", s.handleReload)
	mux.HandleFunc("GET /report", s.handleReport)
}

// handleResolve processes one report. The resolution verdict is always 200
// with the full outcome — ambiguous and unmatched are answers, not errors.
func (s *Service) handleResolve(w http.ResponseWriter, r *http.Request) {
	var rep Report
	if err := decodeJSON(w, r, &rep); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	res, err := s.Process(r.Context(), rep)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, match.ErrEmptyInput) {
			status = http.StatusBadRequest
		}
		if errors.Is(err, ErrNoRoster) {
			status = http.StatusServiceUnavailable
		}
		writeError(w, status, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// batchRequest is the body of POST /resolve/batch.
type batchRequest struct {
	Names []string `json:"names"`
}

// batchResponse pairs each input with its outcome, in input order.
type batchResponse struct {
	Outcomes []match.Outcome `json:"outcomes"`
}

func (s *Service) handleResolveBatch(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	outcomes, err := s.ResolveBatch(r.Context(), req.Names)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, match.ErrEmptyInput) {
			status = http.StatusBadRequest
		}
		if errors.Is(err, ErrNoRoster) {
			status = http.StatusServiceUnavailable
		}
		writeError(w, status, err)
		return
	}
	writeJSON(w, http.StatusOK, batchResponse{Outcomes: outcomes})
}

func (s *Service) handleReload(w http.ResponseWriter, r *http.Request) {
	if err := s.Reload(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	idx, _ := s.handle.Load()
	writeJSON(w, http.StatusOK, map[string]int{"roster_size": idx.Len()})
}

func (s *Service) handleReport(w http.ResponseWriter, r *http.Request) {
	stats, err := s.Stats(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// decodeJSON decodes a size-limited JSON body into v, rejecting unknown
// fields and trailing garbage.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if dec.More() {
		return errors.New("unexpected data after JSON body")
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "err", err)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorBody{Error: err.Error()})
}
