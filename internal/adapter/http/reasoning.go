package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/couchcryptid/reasoning-cache-service/internal/domain"
	"github.com/couchcryptid/reasoning-cache-service/internal/observability"
)

const maxBodyBytes = 64 << 10

// errorBody is the JSON shape of every non-2xx response.
type errorBody struct {
	Error         string   `json:"error"`
	MissingFields []string `json:"missing_fields,omitempty"`
	Message       string   `json:"message,omitempty"`
}

func (s *Server) handleReasoning(w http.ResponseWriter, r *http.Request) {
	raw, err := decodeObject(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: domain.ValidationInvalidParameter.Label(), Message: err.Error()})
		return
	}

	resp, err := s.handler.Handle(r.Context(), raw)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// decodeObject reads one JSON object, keeping numbers exact.
func decodeObject(body io.Reader) (map[string]any, error) {
	dec := json.NewDecoder(body)
	dec.UseNumber()

	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("request body is empty")
		}
		return nil, fmt.Errorf("request body must be a JSON object: %w", err)
	}
	if raw == nil {
		return nil, errors.New("request body must be a JSON object")
	}
	return raw, nil
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		writeJSON(w, http.StatusBadRequest, errorBody{
			Error:         verr.Kind().Label(),
			MissingFields: verr.MissingFields,
			Message:       verr.Message(),
		})
		return
	}

	if r.Context().Err() != nil {
		// Caller is gone; nobody reads this.
		return
	}

	s.logger.Error("reasoning request failed", "error", err, "request_id", observability.RequestIDFrom(r.Context()))
	message := "An error occurred"
	if s.devErrors {
		message = err.Error()
	}
	writeJSON(w, http.StatusInternalServerError, errorBody{Error: "Internal server error", Message: message})
}
