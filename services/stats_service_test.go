package services

import (
	"context"
	"errors"
	"testing"

	"outreach-tracker/database"
)

func TestSummarizeCounts(t *testing.T) {
	store := newCSVStore(t, "Tracking ID,Receiver Email,Status\n"+
		"a,a@x.com,not viewed\n"+
		"b,b@x.com,viewed\n"+
		"c,c@x.com,replied\n"+
		"d,d@x.com,replied\n")
	sum, err := NewStatsService(store).Summarize(context.Background())
	if err != nil {
		t.Fatalf("summarize: %v", err)
	}
	want := Summary{TotalSent: 4, NotViewed: 1, Viewed: 1, Replied: 2}
	if sum != want {
		t.Fatalf("got %+v, want %+v", sum, want)
	}
	if sum.TotalSent != sum.NotViewed+sum.Viewed+sum.Replied {
		t.Fatalf("counts do not add up: %+v", sum)
	}
}

func TestSummarizeEmptyTable(t *testing.T) {
	store := newCSVStore(t, "Tracking ID,Receiver Email,Status\n")
	sum, err := NewStatsService(store).Summarize(context.Background())
	if err != nil {
		t.Fatalf("summarize: %v", err)
	}
	if sum != (Summary{}) {
		t.Fatalf("expected zero counts, got %+v", sum)
	}
}

func TestSummarizeMissingTable(t *testing.T) {
	_, err := NewStatsService(newCSVStore(t, "")).Summarize(context.Background())
	if !errors.Is(err, database.ErrTableNotFound) {
		t.Fatalf("expected ErrTableNotFound, got %v", err)
	}
}

func TestSummarizeSkipsUnknownStatus(t *testing.T) {
	store := newCSVStore(t, "Tracking ID,Receiver Email,Status\na,a@x.com,bounced\nb,b@x.com,viewed\n")
	sum, err := NewStatsService(store).Summarize(context.Background())
	if err != nil {
		t.Fatalf("summarize: %v", err)
	}
	if sum != (Summary{TotalSent: 1, Viewed: 1}) {
		t.Fatalf("unexpected summary %+v", sum)
	}
}

func TestRecordsFilter(t *testing.T) {
	store := newCSVStore(t, "Tracking ID,Receiver Email,Status\n"+
		"a,a@x.com,not viewed\n"+
		"b,b@x.com,viewed\n"+
		"c,c@x.com,replied\n")
	svc := NewStatsService(store)

	all, err := svc.Records(context.Background())
	if err != nil || len(all) != 3 {
		t.Fatalf("all records: %d err=%v", len(all), err)
	}
	engaged, err := svc.Records(context.Background(), database.StatusViewed, database.StatusReplied)
	if err != nil {
		t.Fatalf("filtered records: %v", err)
	}
	if len(engaged) != 2 || engaged[0].TrackingID != "b" || engaged[1].TrackingID != "c" {
		t.Fatalf("unexpected filtered records %+v", engaged)
	}
}
