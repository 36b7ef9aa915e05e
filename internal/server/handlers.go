package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/sells-group/bitegraph/internal/adapter"
	"github.com/sells-group/bitegraph/internal/jsonl"
	"github.com/sells-group/bitegraph/internal/model"
	"github.com/sells-group/bitegraph/internal/store"
	"github.com/sells-group/bitegraph/internal/templates"
)

type errorBody struct {
	Error string `json:"error"`
}

type itemError struct {
	Index   int    `json:"index"`
	EventID string `json:"event_id"`
	Error   string `json:"error"`
}

type pipelineResponse struct {
	Count    int            `json:"count"`
	Appended int            `json:"appended"`
	Results  []jsonl.Mapped `json:"results"`
	Errors   []itemError    `json:"errors,omitempty"`
}

type templatesResponse struct {
	Version string `json:"version"`
	templates.Stats
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":           "ok",
		"template_version": s.holder.Current().Version,
	})
}

func (s *Server) handlePipeline(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	meta := model.Metadata{
		Source:   q.Get("source"),
		UserID:   q.Get("user_id"),
		RawRef:   q.Get("raw_ref"),
		FilePath: q.Get("file_path"),
		Format:   q.Get("format"),
	}
	if v := q.Get("include_non_completed"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, errors.New("include_non_completed must be a boolean"))
			return
		}
		meta.IncludeNonCompleted = b
	}

	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, err)
			return
		}
		writeError(w, http.StatusBadRequest, err)
		return
	}

	results, err := s.runner.RunPipeline(r.Context(), raw, meta)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}

	resp := pipelineResponse{Count: len(results), Results: make([]jsonl.Mapped, 0, len(results))}
	for i, res := range results {
		resp.Results = append(resp.Results, jsonl.MappedFrom(res))
		if res.Appended {
			resp.Appended++
		}
		if res.Err != nil {
			resp.Errors = append(resp.Errors, itemError{Index: i, EventID: res.Item.EventID, Error: res.Err.Error()})
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCurrent(w http.ResponseWriter, r *http.Request) {
	interp, err := s.store.GetCurrent(r.Context(), chi.URLParam(r, "eventID"))
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, interp)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventID")
	history, err := s.store.GetHistory(r.Context(), eventID)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	if len(history) == 0 {
		writeError(w, http.StatusNotFound, store.ErrNotFound)
		return
	}
	writeJSON(w, http.StatusOK, history)
}

func (s *Server) handleTemplates(w http.ResponseWriter, _ *http.Request) {
	snap := s.holder.Current()
	writeJSON(w, http.StatusOK, templatesResponse{Version: snap.Version, Stats: snap.Stats()})
}

func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	snap, err := s.holder.Reload(s.cfg.TemplatesDir)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err)
		return
	}
	zap.L().Info("server: templates reloaded", zap.String("version", snap.Version))
	s.handleTemplates(w, r)
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	var verr *model.ValidationError
	switch {
	case errors.As(err, &verr), adapter.IsInvalidInput(err), adapter.IsUnknownSource(err):
		return http.StatusBadRequest
	case store.IsNotFound(err):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, err error) {
	if status >= http.StatusInternalServerError {
		zap.L().Error("server: request failed", zap.Int("status", status), zap.Error(err))
	} else {
		zap.L().Warn("server: request failed", zap.Int("status", status), zap.Error(err))
	}
	writeJSON(w, status, errorBody{Error: err.Error()})
}
