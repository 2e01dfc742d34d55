package server

import (
	"encoding/json"
	"net/http"
)

// APIError is a standardized error response body.
type APIError struct {
	Message string `json:"error"`
	Code    string `json:"code"`
}

const (
	ErrCodeValidation = "VALIDATION_ERROR"
	ErrCodeConfig     = "CONFIG_ERROR"
	ErrCodeInternal   = "INTERNAL_SERVER_ERROR"
)

func (s *Server) writeJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("failed to write json response", "err", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, statusCode int, code, message string) {
	s.writeJSON(w, statusCode, APIError{Code: code, Message: message})
}
