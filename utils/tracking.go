package utils

import (
	"net/url"
	"strings"

	"github.com/google/uuid"
)

// TrackingPixel is a 1x1 transparent GIF (43 bytes).
var TrackingPixel = []byte{
	'G', 'I', 'F', '8', '9', 'a',
	0x01, 0x00, 0x01, 0x00, 0x80, 0x00, 0x00,
	0x00, 0x00, 0x00, 0xff, 0xff, 0xff,
	'!', 0xf9, 0x04, 0x01, 0x00, 0x00, 0x00, 0x00,
	',', 0x00, 0x00, 0x00, 0x00, 0x01, 0x00, 0x01, 0x00, 0x00,
	0x02, 0x02, 'D', 0x01, 0x00,
	';',
}

// NewTrackingID returns a fresh opaque tracking identifier.
func NewTrackingID() string {
	return uuid.NewString()
}

// PixelURL builds the open-tracking image URL embedded in outgoing messages.
func PixelURL(baseURL, trackingID, email string) string {
	return buildURL(baseURL, "/track", trackingID, email)
}

// ReplyURL builds the link that marks a message as replied.
func ReplyURL(baseURL, trackingID, email string) string {
	return buildURL(baseURL, "/reply", trackingID, email)
}

func buildURL(baseURL, path, trackingID, email string) string {
	q := url.Values{}
	if email != "" {
		q.Set("email", email)
	}
	if trackingID != "" {
		q.Set("id", trackingID)
	}
	u := strings.TrimRight(baseURL, "/") + path
	if enc := q.Encode(); enc != "" {
		u += "?" + enc
	}
	return u
}
