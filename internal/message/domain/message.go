// Package domain defines the core outbound message domain entities and types.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// Channel identifies the transport used to deliver a message.
type Channel string

const (
	ChannelWhatsApp Channel = "whatsapp"
)

// SendOutcome is the result a channel sender reports for one delivery attempt.
type SendOutcome string

const (
	// OutcomeSent means the provider delivered the message synchronously.
	OutcomeSent SendOutcome = "sent"
	// OutcomeQueued means the provider accepted the message for asynchronous
	// delivery. Treated the same as sent for queue purposes; provider-side
	// delivery receipts are not tracked.
	OutcomeQueued SendOutcome = "queued"
	// OutcomeFailed means the attempt failed and the message stays pending.
	OutcomeFailed SendOutcome = "failed"
)

// Payload is the schema-less template variable mapping carried by a message.
// Opaque to the queue; validated against the template's declared variables
// at enqueue time.
type Payload map[string]any

// OutboundMessage is a durable queue record representing one notification to
// be delivered through an external channel. Once Sent is true the record is
// terminal and is never selected again by the dispatcher; while Sent is false
// it stays eligible for retry on every dispatch run.
type OutboundMessage struct {
	ID         uuid.UUID
	Channel    Channel
	ToClientID *uuid.UUID
	ToPhone    string
	Template   string
	Payload    Payload
	Sent       bool
	SentAt     *time.Time
	LastError  *string
	ClaimedAt  *time.Time
	CreatedAt  time.Time
}

// NewOutboundMessage builds a pending message with a generated ID.
func NewOutboundMessage(
	channel Channel,
	toPhone string,
	template string,
	payload Payload,
	toClientID *uuid.UUID,
) *OutboundMessage {
	return &OutboundMessage{
		ID:         uuid.Must(uuid.NewV7()),
		Channel:    channel,
		ToClientID: toClientID,
		ToPhone:    toPhone,
		Template:   template,
		Payload:    payload,
		Sent:       false,
		CreatedAt:  time.Now().UTC(),
	}
}
