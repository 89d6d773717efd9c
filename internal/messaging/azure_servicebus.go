package messaging

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/messaging/azservicebus"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"example.com/flosla/services/registration/config"
)

// SettlementMessage notifies downstream consumers (receipt delivery,
// bookkeeping) that a payment has been credited. Published after the
// settlement transaction commits; never on the transaction's critical path.
type SettlementMessage struct {
	Reference      string    `json:"reference"`
	RegistrationID string    `json:"registration_id"`
	EventID        string    `json:"event_id"`
	Amount         int64     `json:"amount"`
	Currency       string    `json:"currency"`
	Channel        string    `json:"channel"`
	PaidAt         time.Time `json:"paid_at"`
	SettledVia     string    `json:"settled_via"`
}

// SettlementPublisher publishes settlement notifications
type SettlementPublisher interface {
	PublishSettlement(ctx context.Context, msg *SettlementMessage) error
	Close(ctx context.Context) error
}

// serviceBusPublisher implements SettlementPublisher over Azure Service Bus
type serviceBusPublisher struct {
	client    *azservicebus.Client
	sender    *azservicebus.Sender
	queueName string
}

// NewSettlementPublisher creates a new Azure Service Bus publisher. With no
// connection string configured it degrades to a logging no-op.
func NewSettlementPublisher(cfg config.AzureConfig) (SettlementPublisher, error) {
	if cfg.QueueConnStr == "" {
		log.Warn().Msg("Azure Service Bus connection string not provided, settlement publishing disabled")
		return &noopPublisher{}, nil
	}

	client, err := azservicebus.NewClientFromConnectionString(cfg.QueueConnStr, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create Service Bus client")
	}

	sender, err := client.NewSender(cfg.QueueName, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create Service Bus sender")
	}

	return &serviceBusPublisher{
		client:    client,
		sender:    sender,
		queueName: cfg.QueueName,
	}, nil
}

// PublishSettlement sends a settlement notification to the queue
func (p *serviceBusPublisher) PublishSettlement(ctx context.Context, msg *SettlementMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return errors.Wrap(err, "failed to marshal settlement message")
	}

	contentType := "application/json"
	sbMsg := &azservicebus.Message{
		Body:        data,
		ContentType: &contentType,
	}

	if err := p.sender.SendMessage(ctx, sbMsg, nil); err != nil {
		return errors.Wrap(err, "failed to send settlement message")
	}

	log.Info().
		Str("reference", msg.Reference).
		Str("queue", p.queueName).
		Msg("Settlement message published")

	return nil
}

// Close releases the sender and client
func (p *serviceBusPublisher) Close(ctx context.Context) error {
	if err := p.sender.Close(ctx); err != nil {
		return errors.Wrap(err, "failed to close Service Bus sender")
	}
	return p.client.Close(ctx)
}

type noopPublisher struct{}

func (p *noopPublisher) PublishSettlement(_ context.Context, msg *SettlementMessage) error {
	log.Debug().Str("reference", msg.Reference).Msg("Settlement publishing disabled, dropping message")
	return nil
}

func (p *noopPublisher) Close(context.Context) error { return nil }
