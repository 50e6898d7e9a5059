package database

import (
	"context"
	"errors"
	"fmt"
	"sort"
)

// Status is the engagement state of a send record as written in the log.
type Status string

const (
	StatusNotViewed Status = "not viewed"
	StatusViewed    Status = "viewed"
	StatusReplied   Status = "replied"
)

// Column names of the durable table.
const (
	ColumnTrackingID    = "Tracking ID"
	ColumnReceiverEmail = "Receiver Email"
	ColumnStatus        = "Status"
)

var (
	// ErrStoreUnavailable is returned when the backing table cannot be read or written.
	ErrStoreUnavailable = errors.New("store unavailable")
	// ErrTableNotFound is returned by mutations when no table exists yet.
	ErrTableNotFound = errors.New("log file not found")
	// ErrMalformedTable is returned when the table lacks a required column.
	ErrMalformedTable = fmt.Errorf("%w: malformed table", ErrStoreUnavailable)
	// ErrDuplicateTrackingID is returned by Append when the id is already logged.
	ErrDuplicateTrackingID = errors.New("duplicate tracking id")
)

// SendRecord represents one logged outreach message
type SendRecord struct {
	TrackingID    string            `json:"tracking_id"`
	ReceiverEmail string            `json:"receiver_email"`
	Status        Status            `json:"status"`
	Attributes    map[string]string `json:"attributes,omitempty"` // Sender, subject, timestamps...
}

// Selector picks the records a lookup or transition applies to. A non-empty
// TrackingID takes precedence over ReceiverEmail. An empty From matches any status.
type Selector struct {
	TrackingID    string
	ReceiverEmail string
	From          []Status
}

// Matches reports whether rec is selected.
func (s Selector) Matches(rec SendRecord) bool {
	if s.TrackingID != "" {
		if rec.TrackingID != s.TrackingID {
			return false
		}
	} else if rec.ReceiverEmail != s.ReceiverEmail {
		return false
	}
	if len(s.From) == 0 {
		return true
	}
	for _, st := range s.From {
		if rec.Status == st {
			return true
		}
	}
	return false
}

// Key describes the lookup key for logging.
func (s Selector) Key() string {
	if s.TrackingID != "" {
		return "tracking_id=" + s.TrackingID
	}
	return "email=" + s.ReceiverEmail
}

// Store is the durable table of send records.
type Store interface {
	// Load returns every record. found is false (with no error) when the
	// table has never been created.
	Load(ctx context.Context) (records []SendRecord, found bool, err error)
	Find(ctx context.Context, sel Selector) ([]SendRecord, error)
	// ApplyTransition sets status on every selected record and persists the
	// table. It returns ErrTableNotFound without creating anything when the
	// table is absent.
	ApplyTransition(ctx context.Context, sel Selector, status Status) (int, error)
	Append(ctx context.Context, rec SendRecord) error
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
