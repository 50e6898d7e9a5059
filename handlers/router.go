package handlers

import (
	"outreach-tracker/services"

	"github.com/gorilla/mux"
)

// NewRouter wires the tracking endpoints and the send-log API.
func NewRouter(tracking *services.TrackingService, stats *services.StatsService, compose *services.ComposeService) *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/track", TrackHandler(tracking)).Methods("GET")
	r.HandleFunc("/reply", ReplyHandler(tracking)).Methods("GET")
	r.HandleFunc("/status", StatusHandler(stats)).Methods("GET")

	r.HandleFunc("/api/records", CreateRecordHandler(compose)).Methods("POST")
	r.HandleFunc("/api/records", ListRecordsHandler(stats)).Methods("GET")

	return r
}
