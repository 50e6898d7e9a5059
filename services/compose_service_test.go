package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"outreach-tracker/database"
)

func TestRecordSendLogsAndRendersMessage(t *testing.T) {
	store := newCSVStore(t, "")
	svc := NewComposeService(store, "https://t.example.com")
	svc.now = func() time.Time { return time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC) }

	msg, err := svc.RecordSend(context.Background(), ComposeRequest{
		ReceiverEmail: "lead@example.com",
		SenderEmail:   "me@example.com",
		Subject:       "Collab?",
		Body:          "<p>Hi there</p>",
	})
	if err != nil {
		t.Fatalf("record send: %v", err)
	}

	id := msg.Record.TrackingID
	if id == "" {
		t.Fatalf("expected a tracking id")
	}
	if msg.PixelURL != "https://t.example.com/track?email=lead%40example.com&id="+id {
		t.Fatalf("unexpected pixel url %q", msg.PixelURL)
	}
	if !strings.Contains(msg.Message, "X-Tracking-ID: "+id) {
		t.Fatalf("expected tracking header in message:\n%s", msg.Message)
	}
	if !strings.Contains(msg.Message, "Subject: Collab?") {
		t.Fatalf("expected subject header in message:\n%s", msg.Message)
	}

	recs, err := store.Find(context.Background(), database.Selector{TrackingID: id})
	if err != nil || len(recs) != 1 {
		t.Fatalf("expected logged record, got %+v err=%v", recs, err)
	}
	rec := recs[0]
	if rec.Status != database.StatusNotViewed || rec.ReceiverEmail != "lead@example.com" {
		t.Fatalf("unexpected record %+v", rec)
	}
	if rec.Attributes["Timestamp"] != "2024-03-01 09:30:00" || rec.Attributes["Body Preview"] != "Hi there" {
		t.Fatalf("unexpected attributes %+v", rec.Attributes)
	}
}

func TestRecordSendRejectsBadReceiver(t *testing.T) {
	svc := NewComposeService(newCSVStore(t, ""), "http://localhost:5000")

	for _, to := range []string{"", "not an address"} {
		_, err := svc.RecordSend(context.Background(), ComposeRequest{ReceiverEmail: to})
		if !errors.Is(err, ErrInvalidRequest) {
			t.Fatalf("%q: expected ErrInvalidRequest, got %v", to, err)
		}
	}
}

func TestRecordSendStoresBareAddress(t *testing.T) {
	store := newCSVStore(t, "")
	svc := NewComposeService(store, "https://t.example.com")

	msg, err := svc.RecordSend(context.Background(), ComposeRequest{ReceiverEmail: "Lead <lead@example.com>", Subject: "Hi"})
	if err != nil {
		t.Fatalf("record send: %v", err)
	}
	if msg.Record.ReceiverEmail != "lead@example.com" {
		t.Fatalf("expected bare address, got %q", msg.Record.ReceiverEmail)
	}
	if !strings.Contains(msg.PixelURL, "email=lead%40example.com") {
		t.Fatalf("unexpected pixel url %q", msg.PixelURL)
	}

	applied, err := NewTrackingService(store).TransitionOpen(context.Background(), LookupKey{Email: "lead@example.com"})
	if err != nil || !applied {
		t.Fatalf("open by email: applied=%v err=%v", applied, err)
	}
}

func TestBodyPreviewCutsOnRuneBoundary(t *testing.T) {
	body := strings.Repeat("a", bodyPreviewLimit-1) + "é tail"
	got := bodyPreview(body)
	if !utf8.ValidString(got) {
		t.Fatalf("preview is not valid UTF-8: %q", got)
	}
	if got != strings.Repeat("a", bodyPreviewLimit-1)+"..." {
		t.Fatalf("unexpected preview %q", got)
	}
	if short := bodyPreview("<b>café</b>"); short != "café" {
		t.Fatalf("unexpected short preview %q", short)
	}
}
