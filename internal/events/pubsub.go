package events

import (
	"context"
	"fmt"

	"cloud.google.com/go/pubsub/v2"
	"google.golang.org/api/option"
)

// PubSubPublisher publishes events to a Google Cloud Pub/Sub topic.
type PubSubPublisher struct {
	client    *pubsub.Client
	publisher *pubsub.Publisher
}

// NewPubSubPublisher creates a Pub/Sub client for projectID and a
// publisher for topic. Events of one session share an ordering key.
func NewPubSubPublisher(ctx context.Context, projectID, topic string, opts ...option.ClientOption) (*PubSubPublisher, error) {
	client, err := pubsub.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}

	publisher := client.Publisher(topic)
	publisher.EnableMessageOrdering = true

	return &PubSubPublisher{
		client:    client,
		publisher: publisher,
	}, nil
}

// Publish sends the event and waits for the server to acknowledge it.
func (p *PubSubPublisher) Publish(ctx context.Context, event ProgressEvent) error {
	data, err := Encode(event)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}

	result := p.publisher.Publish(ctx, &pubsub.Message{
		Data: data,
		Attributes: map[string]string{
			"type":       string(event.Type),
			"session_id": event.SessionID,
		},
		OrderingKey: event.SessionID,
	})
	if _, err := result.Get(ctx); err != nil {
		// A failed publish pauses the ordering key until it is resumed.
		p.publisher.ResumePublish(event.SessionID)
		return fmt.Errorf("pubsub publish: %w", err)
	}
	return nil
}

// Close flushes pending messages and closes the client.
func (p *PubSubPublisher) Close() error {
	p.publisher.Stop()
	return p.client.Close()
}

var _ Publisher = (*PubSubPublisher)(nil)
