package handlers

import (
	"encoding/json"
	"log"
	"net/http"

	"outreach-tracker/utils"
)

// APIResponse is the envelope for /reply and the record endpoints.
type APIResponse struct {
	Status  string      `json:"status"` // "success" or "error"
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// statusError is the /status failure shape.
type statusError struct {
	Error string `json:"error"`
}

func respondWithJSON(w http.ResponseWriter, statusCode int, payload interface{}) {
	body, err := json.Marshal(payload)
	if err != nil {
		log.Printf("Error marshalling JSON: %v", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if _, err := w.Write(body); err != nil {
		log.Printf("Error writing response: %v", err)
	}
}

// respondWithPixel writes the uncacheable 1x1 GIF served by /track.
func respondWithPixel(w http.ResponseWriter) {
	h := w.Header()
	h.Set("Content-Type", "image/gif")
	h.Set("Cache-Control", "no-store, no-cache, must-revalidate")
	h.Set("Pragma", "no-cache")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(utils.TrackingPixel); err != nil {
		log.Printf("Error writing tracking pixel: %v", err)
	}
}

// statusErrorResponse reports a /status failure. Like /reply it stays 200.
func statusErrorResponse(w http.ResponseWriter, message string) {
	respondWithJSON(w, http.StatusOK, statusError{Error: message})
}

func errorResponse(w http.ResponseWriter, message string, statusCode int) {
	respondWithJSON(w, statusCode, APIResponse{Status: "error", Message: message})
}

func successResponse(w http.ResponseWriter, message string, data interface{}) {
	respondWithJSON(w, http.StatusOK, APIResponse{Status: "success", Message: message, Data: data})
}
