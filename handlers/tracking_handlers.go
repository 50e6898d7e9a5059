package handlers

import (
	"context"
	"errors"
	"log"
	"net/http"

	"outreach-tracker/database"
	"outreach-tracker/services"
)

const msgLogNotFound = "Log file not found"

func lookupKey(r *http.Request) services.LookupKey {
	q := r.URL.Query()
	return services.LookupKey{
		TrackingID: q.Get("id"),
		Email:      q.Get("email"),
	}
}

// detached keeps a started write going if the client hangs up.
func detached(r *http.Request) context.Context {
	return context.WithoutCancel(r.Context())
}

// TrackHandler records a message open. It always answers with the pixel so
// the remote image loader never sees a tracking failure.
func TrackHandler(svc *services.TrackingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := lookupKey(r)
		log.Printf("Tracking request: email=%s, tracking_id=%s", key.Email, key.TrackingID)

		// Outcome is logged by the service.
		_, _ = svc.TransitionOpen(detached(r), key)

		respondWithPixel(w)
	}
}

// ReplyHandler records a reply for the message identified by id or email.
// Failures are reported in the body with a 200.
func ReplyHandler(svc *services.TrackingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := lookupKey(r)
		log.Printf("Reply tracking: email=%s, tracking_id=%s", key.Email, key.TrackingID)

		applied, err := svc.TransitionReply(detached(r), key)
		switch {
		case errors.Is(err, database.ErrTableNotFound):
			errorResponse(w, msgLogNotFound, http.StatusOK)
		case err != nil:
			errorResponse(w, err.Error(), http.StatusOK)
		case !applied:
			errorResponse(w, "No matching entry found", http.StatusOK)
		default:
			successResponse(w, "Reply tracked successfully", nil)
		}
	}
}

// StatusHandler returns aggregate counts over the send log.
func StatusHandler(svc *services.StatsService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sum, err := svc.Summarize(r.Context())
		if errors.Is(err, database.ErrTableNotFound) {
			statusErrorResponse(w, msgLogNotFound)
			return
		}
		if err != nil {
			log.Printf("Error computing status: %v", err)
			statusErrorResponse(w, err.Error())
			return
		}
		respondWithJSON(w, http.StatusOK, sum)
	}
}
