package services

import (
	"context"
	"errors"
	"log"
	"strings"

	"outreach-tracker/database"
)

// ErrInvalidRequest is returned when a signal carries neither an email nor a tracking id.
var ErrInvalidRequest = errors.New("email or id is required")

// LookupKey identifies the records an open or reply signal refers to.
type LookupKey struct {
	TrackingID string
	Email      string
}

func (k LookupKey) selector(from ...database.Status) (database.Selector, error) {
	id := strings.TrimSpace(k.TrackingID)
	email := strings.TrimSpace(k.Email)
	if id == "" && email == "" {
		return database.Selector{}, ErrInvalidRequest
	}
	return database.Selector{TrackingID: id, ReceiverEmail: email, From: from}, nil
}

// TrackingService moves send records forward along
// not viewed -> viewed -> replied. Only the current status gates a transition.
type TrackingService struct {
	store database.Store
}

// NewTrackingService creates a new TrackingService instance
func NewTrackingService(store database.Store) *TrackingService {
	return &TrackingService{store: store}
}

// TransitionOpen marks matching unviewed records as viewed. It reports false
// when nothing matched or every match was already viewed or replied.
func (s *TrackingService) TransitionOpen(ctx context.Context, key LookupKey) (bool, error) {
	return s.transition(ctx, key, database.StatusViewed, database.StatusNotViewed)
}

// TransitionReply marks matching records that have not replied yet as replied.
func (s *TrackingService) TransitionReply(ctx context.Context, key LookupKey) (bool, error) {
	return s.transition(ctx, key, database.StatusReplied, database.StatusNotViewed, database.StatusViewed)
}

// Every record matching the key is transitioned, including duplicates by email.
func (s *TrackingService) transition(ctx context.Context, key LookupKey, to database.Status, from ...database.Status) (bool, error) {
	sel, err := key.selector(from...)
	if err != nil {
		log.Printf("Rejected %q transition: %v", to, err)
		return false, err
	}

	n, err := s.store.ApplyTransition(ctx, sel, to)
	if err != nil {
		log.Printf("Error updating status to %q for %s: %v", to, sel.Key(), err)
		return false, err
	}
	if n == 0 {
		log.Printf("No matching entry to mark %q for %s", to, sel.Key())
		return false, nil
	}
	log.Printf("Updated status to %q for %s (%d rows)", to, sel.Key(), n)
	return true, nil
}
