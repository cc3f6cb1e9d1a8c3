package server

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/ShayCichocki/storyforge/pkg/models"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[server] encode response: %v", err)
	}
}

// writeError maps domain errors onto response codes: not-found is 404,
// invalid requests 400, generator failures 502 (the upstream model broke,
// not the caller), everything else 500.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, models.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, models.ErrInvalidRequest):
		status = http.StatusBadRequest
	case errors.Is(err, models.ErrGeneratorFailure):
		status = http.StatusBadGateway
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

// decodeBody unmarshals a JSON request body, treating malformed payloads
// as invalid requests.
func decodeBody(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return models.InvalidRequestf("decode request body: %v", err)
	}
	return nil
}
