package proto

import "time"

const (
	// CloseUnauthorized is the WebSocket close status sent when admission fails.
	CloseUnauthorized = 4001
	// CloseReasonUnauthorized accompanies CloseUnauthorized.
	CloseReasonUnauthorized = "Invalid or missing token"

	// TokenQueryParam carries the bearer token on the upgrade request.
	TokenQueryParam = "token"

	// TimestampLayout renders UTC ISO-8601 with microseconds and a literal Z.
	TimestampLayout = "2006-01-02T15:04:05.000000Z"
)

// Envelope is the JSON object delivered to peers for every inbound text frame.
type Envelope struct {
	Text      string `json:"text"`
	Timestamp string `json:"timestamp"`
	Sender    string `json:"sender,omitempty"`
}

// FormatTimestamp converts t to UTC and formats it with TimestampLayout.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// ParseTimestamp is the inverse of FormatTimestamp.
func ParseTimestamp(s string) (time.Time, error) {
	return time.Parse(TimestampLayout, s)
}
