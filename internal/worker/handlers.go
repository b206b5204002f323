package worker

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"

	"github.com/thebtf/parasim/internal/extract"
)

// Client-facing error messages.
const (
	msgMissingFile     = "Missing file data"
	msgUnsupportedType = "Unsupported file type"
	msgProcessFailed   = "Failed to process file"
	msgInvalidBody     = "Invalid request body"
	msgBodyTooLarge    = "Request body too large"
)

// removeFilename is the download name of a rebuilt document.
const removeFilename = "document.txt"

var validate = validator.New()

// ProcessRequest is the request body for document analysis.
type ProcessRequest struct {
	File string `json:"file" validate:"required"`
	Type string `json:"type" validate:"required"`
}

// RemoveRequest is the request body for paragraph removal.
// Remove holds 1-based paragraph indices; unknown indices are ignored.
type RemoveRequest struct {
	ProcessRequest
	Remove []int `json:"remove"`
}

// ErrorResponse is the JSON body of every error reply.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, data interface{}) {
	writeJSONStatus(w, http.StatusOK, data)
}

func writeJSONStatus(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// writeError writes a JSON error. cause, if non-nil, becomes the details field.
func writeError(w http.ResponseWriter, r *http.Request, status int, message string, cause error) {
	resp := ErrorResponse{Error: message}
	if cause != nil {
		resp.Details = cause.Error()
	}
	if status >= http.StatusInternalServerError {
		log.Error().
			Err(cause).
			Str("request_id", GetRequestID(r.Context())).
			Str("path", r.URL.Path).
			Msg(message)
	}
	writeJSONStatus(w, status, resp)
}

// writeDocumentError maps extraction and analysis errors to HTTP replies.
func writeDocumentError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, extract.ErrMissingInput):
		writeError(w, r, http.StatusBadRequest, msgMissingFile, nil)
	case errors.Is(err, extract.ErrUnsupportedFormat):
		writeError(w, r, http.StatusBadRequest, msgUnsupportedType, nil)
	case errors.Is(err, context.DeadlineExceeded):
		writeError(w, r, http.StatusServiceUnavailable, msgProcessFailed, err)
	default:
		writeError(w, r, http.StatusInternalServerError, msgProcessFailed, err)
	}
}

// decodeRequest reads and validates a JSON body into dst.
// It writes the error reply itself and reports whether decoding succeeded.
func decodeRequest(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) || strings.Contains(err.Error(), "request body too large") {
			writeError(w, r, http.StatusRequestEntityTooLarge, msgBodyTooLarge, nil)
			return false
		}
		writeError(w, r, http.StatusBadRequest, msgInvalidBody, err)
		return false
	}

	if err := validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fe := range verrs {
				if fe.Tag() == "required" {
					writeError(w, r, http.StatusBadRequest, msgMissingFile, nil)
					return false
				}
			}
		}
		writeError(w, r, http.StatusBadRequest, msgInvalidBody, err)
		return false
	}
	return true
}

// decodeFile decodes a base64 payload. A data URL prefix is accepted and
// padding is optional.
func decodeFile(encoded string) ([]byte, error) {
	if rest, ok := strings.CutPrefix(encoded, "data:"); ok {
		if _, payload, found := strings.Cut(rest, ","); found {
			encoded = payload
		}
	}
	encoded = strings.TrimSpace(encoded)

	payload, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		payload, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(encoded, "="))
	}
	if err != nil {
		return nil, fmt.Errorf("%w: invalid base64: %v", extract.ErrMissingInput, err)
	}
	if len(payload) == 0 {
		return nil, extract.ErrMissingInput
	}
	return payload, nil
}

// extractText decodes the uploaded file and extracts its text.
func (s *Service) extractText(ctx context.Context, req ProcessRequest) (string, error) {
	payload, err := decodeFile(req.File)
	if err != nil {
		return "", err
	}
	return s.extractors.Extract(ctx, req.Type, payload)
}

// handleHealth handles health check requests.
func (s *Service) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "starting"
	if s.ready.Load() {
		status = "ready"
	}
	writeJSON(w, map[string]interface{}{
		"status":  status,
		"version": s.version,
		"uptime":  time.Since(s.startTime).Round(time.Second).String(),
	})
}

// handleVersion returns the worker version.
func (s *Service) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{
		"version": s.version,
	})
}

// handleStats returns the active analysis settings and limiter statistics.
func (s *Service) handleStats(w http.ResponseWriter, r *http.Request) {
	cfg := s.Config()
	writeJSON(w, map[string]interface{}{
		"backend":    cfg.Backend,
		"threshold":  cfg.Threshold,
		"workers":    cfg.Workers,
		"formats":    s.extractors.Supported(),
		"rate_limit": s.limiter.Stats(),
	})
}

// handleProcess extracts an uploaded document and returns its similarity groups.
func (s *Service) handleProcess(w http.ResponseWriter, r *http.Request) {
	var req ProcessRequest
	if !decodeRequest(w, r, &req) {
		s.metrics.Documents.WithLabelValues("process", "invalid").Inc()
		return
	}

	text, err := s.extractText(r.Context(), req)
	if err != nil {
		s.metrics.Documents.WithLabelValues("process", "rejected").Inc()
		writeDocumentError(w, r, err)
		return
	}

	cfg := s.Config()
	result, err := s.analyzer.Analyze(r.Context(), text, cfg.Analysis())
	if err != nil {
		s.metrics.Documents.WithLabelValues("process", "failed").Inc()
		writeDocumentError(w, r, err)
		return
	}

	s.metrics.Documents.WithLabelValues("process", "ok").Inc()
	s.metrics.Groups.Observe(float64(len(result.Results)))

	log.Debug().
		Str("request_id", GetRequestID(r.Context())).
		Str("type", extract.MediaType(req.Type)).
		Int("groups", len(result.Results)).
		Msg("Document analyzed")

	writeJSON(w, result)
}

// handleRemove extracts an uploaded document, drops the selected paragraphs
// and returns the rebuilt text as a download.
func (s *Service) handleRemove(w http.ResponseWriter, r *http.Request) {
	var req RemoveRequest
	if !decodeRequest(w, r, &req) {
		s.metrics.Documents.WithLabelValues("remove", "invalid").Inc()
		return
	}

	text, err := s.extractText(r.Context(), req.ProcessRequest)
	if err != nil {
		s.metrics.Documents.WithLabelValues("remove", "rejected").Inc()
		writeDocumentError(w, r, err)
		return
	}

	rebuilt := s.analyzer.Remove(text, req.Remove)
	s.metrics.Documents.WithLabelValues("remove", "ok").Inc()

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", removeFilename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(rebuilt))
}
