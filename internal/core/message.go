package core

import (
	"encoding/json"
	"time"

	"github.com/vovakirdan/buzzline-server/internal/proto"
)

// Message is the domain model for a relayed chat message.
type Message struct {
	Text      string
	Sender    string
	CreatedAt time.Time
}

// Encode serializes the message as a wire envelope.
// An empty sender is omitted from the output.
func (m Message) Encode() ([]byte, error) {
	return json.Marshal(proto.Envelope{
		Text:      m.Text,
		Timestamp: proto.FormatTimestamp(m.CreatedAt),
		Sender:    m.Sender,
	})
}
