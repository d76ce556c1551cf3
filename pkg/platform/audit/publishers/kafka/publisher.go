package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"givebridge/internal/platform/kafka"
	audit "givebridge/pkg/platform/audit"
)

// Publisher writes audit events to a Kafka topic, keyed by charity so one
// charity's ledger history stays ordered within a partition.
type Publisher struct {
	producer *kafka.Producer
	topic    string
}

// New wires the publisher to an existing producer and ensures the topic.
func New(ctx context.Context, producer *kafka.Producer, topic string) (*Publisher, error) {
	if producer == nil {
		return nil, fmt.Errorf("kafka producer is required")
	}
	if err := producer.EnsureTopic(ctx, topic, 3); err != nil {
		return nil, err
	}
	return &Publisher{producer: producer, topic: topic}, nil
}

// payload is the JSON structure published to Kafka.
type payload struct {
	Action         string `json:"action"`
	Timestamp      string `json:"timestamp"`
	DonorID        string `json:"donor_id,omitempty"`
	CharityID      string `json:"charity_id,omitempty"`
	SubscriptionID string `json:"subscription_id,omitempty"`
	DonationID     string `json:"donation_id,omitempty"`
	Amount         string `json:"amount,omitempty"`
	CorrelationKey string `json:"correlation_key,omitempty"`
	Reason         string `json:"reason,omitempty"`
	RequestID      string `json:"request_id,omitempty"`
}

func (p *Publisher) Emit(ctx context.Context, event audit.Event) error {
	msg := payload{
		Action:         string(event.Action),
		Timestamp:      event.Timestamp.Format(time.RFC3339Nano),
		Amount:         event.Amount,
		CorrelationKey: event.CorrelationKey,
		Reason:         event.Reason,
		RequestID:      event.RequestID,
	}
	if !event.DonorID.IsNil() {
		msg.DonorID = event.DonorID.String()
	}
	if !event.CharityID.IsNil() {
		msg.CharityID = event.CharityID.String()
	}
	if !event.SubscriptionID.IsNil() {
		msg.SubscriptionID = event.SubscriptionID.String()
	}
	if !event.DonationID.IsNil() {
		msg.DonationID = event.DonationID.String()
	}

	value, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal audit payload: %w", err)
	}

	var key []byte
	if !event.CharityID.IsNil() {
		key = []byte(event.CharityID.String())
	}
	return p.producer.ProduceSync(ctx, p.topic, key, value)
}
