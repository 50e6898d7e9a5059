package services

import (
	"bytes"
	"context"
	"fmt"
	"html"
	"log"
	netmail "net/mail"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"outreach-tracker/database"
	"outreach-tracker/utils"

	mail "gopkg.in/gomail.v2"
)

var stripTagsRegex = regexp.MustCompile("<[^>]*>")

const bodyPreviewLimit = 200

// ComposeRequest describes an outgoing message about to be sent by an external mailer.
type ComposeRequest struct {
	ReceiverEmail string `json:"receiver_email"`
	SenderEmail   string `json:"sender,omitempty"`
	Subject       string `json:"subject"`
	Body          string `json:"body"`
}

// TrackedMessage is the logged record plus the rendered message carrying
// its open pixel and reply link.
type TrackedMessage struct {
	Record   database.SendRecord `json:"record"`
	PixelURL string              `json:"pixel_url"`
	ReplyURL string              `json:"reply_url"`
	Message  string              `json:"message"` // RFC 822
}

// ComposeService registers sends in the log and renders the tracked message.
// Delivery is left to the caller.
type ComposeService struct {
	store   database.Store
	baseURL string
	now     func() time.Time
}

// NewComposeService creates a new ComposeService instance
func NewComposeService(store database.Store, baseURL string) *ComposeService {
	return &ComposeService{
		store:   store,
		baseURL: baseURL,
		now:     time.Now,
	}
}

// RecordSend assigns a tracking id, appends a "not viewed" record and
// returns the message to deliver.
func (s *ComposeService) RecordSend(ctx context.Context, req ComposeRequest) (*TrackedMessage, error) {
	if strings.TrimSpace(req.ReceiverEmail) == "" {
		return nil, fmt.Errorf("%w: receiver_email is required", ErrInvalidRequest)
	}
	addr, err := netmail.ParseAddress(req.ReceiverEmail)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid receiver_email: %v", ErrInvalidRequest, err)
	}
	// The bare address is what /track and /reply match on.
	to := addr.Address

	id := utils.NewTrackingID()
	pixelURL := utils.PixelURL(s.baseURL, id, to)
	replyURL := utils.ReplyURL(s.baseURL, id, to)

	m := mail.NewMessage()
	if req.SenderEmail != "" {
		m.SetHeader("From", req.SenderEmail)
	}
	m.SetHeader("To", to)
	m.SetHeader("Subject", req.Subject)
	m.SetHeader("X-Tracking-ID", id)
	m.SetBody("text/html", trackedBody(req.Body, pixelURL, replyURL))

	var buf bytes.Buffer
	if _, err := m.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("could not render message: %w", err)
	}

	preview := bodyPreview(req.Body)

	rec := database.SendRecord{
		TrackingID:    id,
		ReceiverEmail: to,
		Status:        database.StatusNotViewed,
		Attributes: map[string]string{
			"Timestamp":    s.now().Format("2006-01-02 15:04:05"),
			"Sender Email": req.SenderEmail,
			"Subject":      req.Subject,
			"Body Preview": preview,
		},
	}
	if err := s.store.Append(ctx, rec); err != nil {
		return nil, fmt.Errorf("could not log send: %w", err)
	}
	log.Printf("Logged send to %s with tracking_id=%s", to, id)

	return &TrackedMessage{
		Record:   rec,
		PixelURL: pixelURL,
		ReplyURL: replyURL,
		Message:  buf.String(),
	}, nil
}

// bodyPreview strips tags and cuts the text to bodyPreviewLimit bytes on a
// rune boundary.
func bodyPreview(body string) string {
	preview := strings.TrimSpace(stripTagsRegex.ReplaceAllString(body, ""))
	if len(preview) <= bodyPreviewLimit {
		return preview
	}
	cut := bodyPreviewLimit
	for cut > 0 && !utf8.RuneStart(preview[cut]) {
		cut--
	}
	return preview[:cut] + "..."
}

func trackedBody(body, pixelURL, replyURL string) string {
	var b strings.Builder
	b.WriteString(body)
	fmt.Fprintf(&b, `<p><a href="%s">Reply</a></p>`, html.EscapeString(replyURL))
	fmt.Fprintf(&b, `<img src="%s" width="1" height="1" alt="" style="display:none" />`, html.EscapeString(pixelURL))
	return b.String()
}
