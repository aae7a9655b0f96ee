package restapi

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"linfer.allora.network/internal/logging"
	"linfer.allora.network/internal/models"
)

// errorEnvelope is the body of envelope errors: no data, version 1.
type errorEnvelope struct {
	Code        int    `json:"code"`
	CurrentTime int64  `json:"currentTime"`
	Text        string `json:"text"`
	Version     int    `json:"version"`
}

func (api *RestAPI) writeErrorEnvelope(w http.ResponseWriter, status int, text string) {
	response := errorEnvelope{
		Code:        status,
		CurrentTime: models.ResponseCurrentTime(),
		Text:        text,
		Version:     1,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(response); err != nil {
		api.Logger.Error("failed to encode error response", "error", err, "status", status)
	}
}

// invalidAPIKeyResponse sends a 401 Unauthorized response with the required format
// for invalid API key errors
func (api *RestAPI) invalidAPIKeyResponse(w http.ResponseWriter, r *http.Request) {
	api.writeErrorEnvelope(w, http.StatusUnauthorized, "permission denied")
}

func (api *RestAPI) serverErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	logging.LogError(api.Logger, "internal server error", err,
		slog.String("path", r.URL.Path),
		slog.String("component", "http_server"))
	api.writeErrorEnvelope(w, http.StatusInternalServerError, "internal server error")
}

func (api *RestAPI) methodNotAllowedResponse(w http.ResponseWriter, r *http.Request) {
	api.writeErrorEnvelope(w, http.StatusMethodNotAllowed, "method not allowed")
}

// panicResponse answers a request whose handler panicked with the same error
// line a failed evaluation produces.
func (api *RestAPI) panicResponse(w http.ResponseWriter, r *http.Request, recovered interface{}) {
	err := fmt.Errorf("%v", recovered)
	logging.LogError(api.Logger, "handler panic", err,
		slog.String("path", r.URL.Path),
		slog.String("component", "http_server"))
	api.inferenceErrorResponse(w, r, err)
}

// validationErrorResponse sends a 400 Bad Request response with field-specific validation errors
func (api *RestAPI) validationErrorResponse(w http.ResponseWriter, r *http.Request, fieldErrors map[string][]string) {
	response := struct {
		FieldErrors map[string][]string `json:"fieldErrors"`
	}{
		FieldErrors: fieldErrors,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadRequest)
	err := json.NewEncoder(w).Encode(response)
	if err != nil {
		api.Logger.Error("failed to encode validation error response", "error", err)
	}
}
