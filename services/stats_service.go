package services

import (
	"context"
	"fmt"
	"log"

	"outreach-tracker/database"
)

// Summary holds aggregate engagement counts for the send log.
type Summary struct {
	TotalSent int `json:"total_sent"`
	NotViewed int `json:"not_viewed"`
	Viewed    int `json:"viewed"`
	Replied   int `json:"replied"`
}

// StatsService computes summaries over the store on demand.
type StatsService struct {
	store database.Store
}

func NewStatsService(store database.Store) *StatsService {
	return &StatsService{store: store}
}

// Summarize scans the whole log. Rows with an unknown status are left out of
// every count, total included. It returns database.ErrTableNotFound when
// the log has never been created so callers can tell "no data" from zero counts.
func (s *StatsService) Summarize(ctx context.Context) (Summary, error) {
	records, found, err := s.store.Load(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("failed to load send log: %w", err)
	}
	if !found {
		return Summary{}, database.ErrTableNotFound
	}

	var sum Summary
	skipped := 0
	for _, rec := range records {
		switch rec.Status {
		case database.StatusNotViewed:
			sum.NotViewed++
		case database.StatusViewed:
			sum.Viewed++
		case database.StatusReplied:
			sum.Replied++
		default:
			skipped++
			continue
		}
		sum.TotalSent++
	}
	if skipped > 0 {
		log.Printf("Skipped %d send log rows with an unknown status", skipped)
	}
	return sum, nil
}

// Records lists the log, optionally restricted to the given statuses.
func (s *StatsService) Records(ctx context.Context, statuses ...database.Status) ([]database.SendRecord, error) {
	records, _, err := s.store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load send log: %w", err)
	}
	if len(statuses) == 0 {
		return records, nil
	}
	filtered := []database.SendRecord{}
	for _, rec := range records {
		for _, st := range statuses {
			if rec.Status == st {
				filtered = append(filtered, rec)
				break
			}
		}
	}
	return filtered, nil
}
