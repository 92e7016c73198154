// internal/server/handlers.go
package server

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/xkilldash9x/pagepilot/api/schemas"
)

// handleHealthCheck confirms the server is responsive.
func (s *Server) handleHealthCheck(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
}

// handleProcessQuery runs one decision for the page state in the body.
func (s *Server) handleProcessQuery(w http.ResponseWriter, r *http.Request) {
	var req ProcessQueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondWithBodyError(w, r, err)
		return
	}

	result, err := s.decider.Decide(r.Context(), req.ToDecisionRequest())
	if err != nil {
		s.respondWithDomainError(w, r, err)
		return
	}
	s.respondJSON(w, r, http.StatusOK, result)
}

// handleUpload stores the multipart "image" file and returns where it can be fetched.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	file, _, err := r.FormFile("image")
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			s.respondWithBodyError(w, r, err)
			return
		}
		s.respondWithError(w, r, http.StatusBadRequest, "No image file provided")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		s.respondWithBodyError(w, r, err)
		return
	}

	if s.host == nil {
		s.respondWithDomainError(w, r, schemas.NewError(schemas.ErrKindImageHost, "image host is not configured", nil))
		return
	}

	url, err := s.host.Put(r.Context(), data)
	if err != nil {
		s.respondWithDomainError(w, r, err)
		return
	}
	s.respondJSON(w, r, http.StatusOK, UploadResponse{ImgURL: url})
}

// -- Responses --

// respondWithBodyError reports a body that could not be read or decoded.
func (s *Server) respondWithBodyError(w http.ResponseWriter, r *http.Request, err error) {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		s.respondWithError(w, r, http.StatusRequestEntityTooLarge,
			fmt.Sprintf("request body exceeds %d bytes", maxErr.Limit))
		return
	}
	s.respondWithError(w, r, http.StatusBadRequest, fmt.Sprintf("Invalid request body: %v", err))
}

// respondWithDomainError maps the error taxonomy onto HTTP statuses.
func (s *Server) respondWithDomainError(w http.ResponseWriter, r *http.Request, err error) {
	kind, ok := schemas.KindOf(err)
	if !ok {
		s.logger.Error("Unclassified error reached the front door",
			zap.String("request_id", RequestIDFrom(r.Context())), zap.Error(err))
		s.respondWithError(w, r, http.StatusInternalServerError, "internal error")
		return
	}

	status := kind.HTTPStatus()
	if status >= http.StatusInternalServerError {
		s.logger.Warn("Request failed",
			zap.String("request_id", RequestIDFrom(r.Context())),
			zap.String("kind", string(kind)),
			zap.Error(err))
	}

	resp := ErrorResponse{Error: err.Error(), Kind: string(kind), Retryable: kind.Retryable()}
	var se *schemas.Error
	if errors.As(err, &se) {
		resp.Field = se.Field
	}
	s.respondJSON(w, r, status, resp)
}

// respondWithError sends a standardized JSON error response.
func (s *Server) respondWithError(w http.ResponseWriter, r *http.Request, statusCode int, message string) {
	s.respondJSON(w, r, statusCode, ErrorResponse{Error: message})
}

func (s *Server) respondJSON(w http.ResponseWriter, r *http.Request, statusCode int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error("Failed to encode response",
			zap.String("request_id", RequestIDFrom(r.Context())), zap.Error(err))
	}
}
