package line

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// SignatureHeader carries the base64 HMAC-SHA256 of the raw request body.
const SignatureHeader = "X-Line-Signature"

// Envelope is the webhook request body.
type Envelope struct {
	Destination string  `json:"destination"`
	Events      []Event `json:"events"`
}

type Event struct {
	Type       string        `json:"type"`
	ReplyToken string        `json:"replyToken"`
	Timestamp  int64         `json:"timestamp"`
	Source     Source        `json:"source"`
	Message    *EventMessage `json:"message,omitempty"`
}

type Source struct {
	Type   string `json:"type"`
	UserID string `json:"userId"`
}

type EventMessage struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Text string `json:"text"`
}

// TextMessage returns the text of a message event, or false for any other
// event or message type.
func (e Event) TextMessage() (string, bool) {
	if e.Type != "message" || e.Message == nil || e.Message.Type != "text" {
		return "", false
	}
	return e.Message.Text, true
}

// ParseEnvelope decodes a webhook body.
func ParseEnvelope(body []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return Envelope{}, fmt.Errorf("line: decode webhook: %w", err)
	}
	return env, nil
}

// Sign computes the signature LINE attaches to a body.
func Sign(channelSecret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(channelSecret))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// VerifySignature reports whether signature matches body under channelSecret.
func VerifySignature(channelSecret string, body []byte, signature string) bool {
	if channelSecret == "" || signature == "" {
		return false
	}
	want, err := base64.StdEncoding.DecodeString(signature)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(channelSecret))
	mac.Write(body)
	return hmac.Equal(want, mac.Sum(nil))
}
