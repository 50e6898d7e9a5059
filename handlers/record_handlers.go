package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"outreach-tracker/database"
	"outreach-tracker/services"
)

// CreateRecordHandler logs a new send and returns the tracked message to deliver.
func CreateRecordHandler(svc *services.ComposeService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req services.ComposeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			errorResponse(w, "Invalid request payload", http.StatusBadRequest)
			return
		}

		msg, err := svc.RecordSend(detached(r), req)
		switch {
		case errors.Is(err, services.ErrInvalidRequest):
			errorResponse(w, err.Error(), http.StatusBadRequest)
			return
		case errors.Is(err, database.ErrDuplicateTrackingID):
			errorResponse(w, err.Error(), http.StatusConflict)
			return
		case err != nil:
			log.Printf("Error logging send to %s: %v", req.ReceiverEmail, err)
			errorResponse(w, "Internal server error logging send", http.StatusInternalServerError)
			return
		}
		successResponse(w, "Send logged successfully", msg)
	}
}

// ListRecordsHandler returns the send log, filtered by ?status= when given.
// Multiple statuses may be comma separated or repeated.
func ListRecordsHandler(svc *services.StatsService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var statuses []database.Status
		for _, raw := range r.URL.Query()["status"] {
			for _, part := range strings.Split(raw, ",") {
				st := database.Status(strings.TrimSpace(part))
				switch st {
				case "":
					continue
				case database.StatusNotViewed, database.StatusViewed, database.StatusReplied:
					statuses = append(statuses, st)
				default:
					errorResponse(w, "Invalid status "+string(st), http.StatusBadRequest)
					return
				}
			}
		}

		records, err := svc.Records(r.Context(), statuses...)
		if err != nil {
			log.Printf("Error listing send log: %v", err)
			errorResponse(w, "Internal server error fetching logs", http.StatusInternalServerError)
			return
		}
		successResponse(w, "Send log retrieved successfully", records)
	}
}
