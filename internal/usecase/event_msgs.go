package usecase

import (
	"errors"
	"time"
)

// Published to kafka after every successful cart mutation.
type CartEventMsg struct {
	EventID      string    `json:"eventId"`
	SessionID    string    `json:"sessionId"`
	Tool         string    `json:"tool"`
	Lines        int       `json:"lines"`
	Units        int       `json:"units"`
	Subtotal     string    `json:"subtotal"` // decimal string
	Total        string    `json:"total"`    // decimal string
	DiscountCode string    `json:"discountCode,omitempty"`
	OccurredAt   time.Time `json:"occurredAt"`
}

// Queued on rabbitmq by the webhook, consumed by the relay worker.
type InboundMsg struct {
	MessageID string `json:"messageId"`
	From      string `json:"from"`
	Type      string `json:"type"`
	Text      string `json:"text"`
	Timestamp string `json:"timestamp"`
}

// Validate rejects messages the relay worker cannot answer.
func (m InboundMsg) Validate() error {
	switch {
	case m.From == "":
		return errors.New("inbound message without sender")
	case m.Text == "":
		return errors.New("inbound message without text")
	}
	return nil
}
