package handlers

import (
	"encoding/json"
	"net/http"
)

// APIResponse struct for consistent JSON responses
type APIResponse struct {
	Message string `json:"message"`
	Status  string `json:"status"` // "success" or "error"
	Data    any    `json:"data,omitempty"`
}

// respondWithJSON sends a JSON response
func (a *API) respondWithJSON(w http.ResponseWriter, statusCode int, payload any) {
	response, err := json.Marshal(payload)
	if err != nil {
		a.log.Errorw("Error marshalling JSON", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if _, err := w.Write(response); err != nil {
		a.log.Debugw("Error writing response", "error", err)
	}
}

func (a *API) errorResponse(w http.ResponseWriter, message string, statusCode int) {
	a.respondWithJSON(w, statusCode, APIResponse{
		Message: message,
		Status:  "error",
	})
}

func (a *API) successResponse(w http.ResponseWriter, statusCode int, message string, data any) {
	a.respondWithJSON(w, statusCode, APIResponse{
		Message: message,
		Status:  "success",
		Data:    data,
	})
}
