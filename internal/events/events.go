package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Type string

const (
	PaymentConfirmed         Type = "payment.confirmed"
	PaymentConfirmFailed     Type = "payment.confirm_failed"
	PaymentExpired           Type = "payment.expired"
	PaymentProofUploadFailed Type = "payment.proof_upload_failed"
)

// FlowEvent records an outcome of a payment flow for later analysis.
type FlowEvent struct {
	ID         uuid.UUID `json:"id"`
	Type       Type      `json:"type"`
	OrderID    string    `json:"orderId"`
	RunID      string    `json:"runId,omitempty"`
	OccurredAt time.Time `json:"occurredAt"`
	Detail     string    `json:"detail,omitempty"`
}

func New(t Type, orderID string, at time.Time) FlowEvent {
	return FlowEvent{
		ID:         uuid.New(),
		Type:       t,
		OrderID:    orderID,
		OccurredAt: at,
	}
}

type Publisher interface {
	Publish(ctx context.Context, event FlowEvent) error
}

// Nop drops every event. It is used when no broker is configured.
type Nop struct{}

func (Nop) Publish(context.Context, FlowEvent) error {
	return nil
}
