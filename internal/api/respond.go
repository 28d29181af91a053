package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-playground/validator/v10"

	"sitekeeper/internal/logging"
	"sitekeeper/internal/services"
)

const maxRequestBody = 1 << 20

// StatusFor maps an error to its HTTP status.
func StatusFor(err error) int {
	switch services.Kind(err) {
	case services.KindInvalidRequest:
		return http.StatusBadRequest
	case services.KindSiteNotConnected:
		return http.StatusForbidden
	case services.KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", logging.Error(err))
	}
}

// writeRaw writes a connector payload verbatim.
func (s *Server) writeRaw(w http.ResponseWriter, status int, raw json.RawMessage) {
	if len(raw) == 0 {
		raw = json.RawMessage(`{}`)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(raw)
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusFor(err)
	kind := services.Kind(err)
	if status == http.StatusInternalServerError {
		s.logger.ErrorContext(r.Context(), "api request failed",
			logging.String("path", r.URL.Path),
			logging.ErrorKind(err),
			logging.Error(err),
		)
	}
	s.writeJSON(w, status, ErrorResponse{Error: services.UserMessage(err), Code: kind})
}

// decode reads a JSON body strictly and runs struct validation. It writes the
// 400 response itself and returns false on failure.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, dest any) bool {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxRequestBody))
	if err != nil {
		s.writeError(w, r, services.Wrap(services.ErrInvalidRequest, "api", "decode", "request body too large or unreadable", err))
		return false
	}
	if len(body) > 0 {
		dec := json.NewDecoder(bytes.NewReader(body))
		dec.DisallowUnknownFields()
		if err := dec.Decode(dest); err != nil {
			s.writeError(w, r, services.Wrap(services.ErrInvalidRequest, "api", "decode", fmt.Sprintf("malformed JSON body: %v", err), nil))
			return false
		}
	}
	if err := s.validate.Struct(dest); err != nil {
		s.writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:  "Invalid request: request body failed validation",
			Code:   services.KindInvalidRequest,
			Fields: validationErrorsToMap(err),
		})
		return false
	}
	return true
}

func validationErrorsToMap(err error) map[string]string {
	errs := map[string]string{}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		errs["error"] = err.Error()
		return errs
	}
	for _, e := range verrs {
		field := e.Field()
		switch e.Tag() {
		case "required":
			errs[field] = "is required"
		case "max":
			errs[field] = "exceeds maximum length"
		case "min":
			errs[field] = "is below minimum length"
		case "url":
			errs[field] = "must be an absolute URL"
		default:
			errs[field] = "invalid value"
		}
	}
	return errs
}
