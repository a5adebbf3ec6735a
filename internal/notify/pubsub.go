package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"erp-ledger/internal/core"

	"cloud.google.com/go/pubsub"
	"google.golang.org/api/option"
)

// PubSub publishes events to a Google Cloud Pub/Sub topic. The event name and
// org id travel as message attributes so subscribers can filter without decoding.
type PubSub struct {
	client *pubsub.Client
	topic  *pubsub.Topic
	owned  bool
}

// NewPubSub connects with credentialsJSON when given, otherwise with
// Application Default Credentials.
func NewPubSub(ctx context.Context, projectID, topicID, credentialsJSON string) (*PubSub, error) {
	var opts []option.ClientOption
	if credentialsJSON != "" {
		opts = append(opts, option.WithCredentialsJSON([]byte(credentialsJSON)))
	}
	client, err := pubsub.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create pubsub client: %w", err)
	}
	p := NewPubSubWithClient(client, topicID)
	p.owned = true
	return p, nil
}

// NewPubSubWithClient publishes through an existing client. Close leaves the client open.
func NewPubSubWithClient(client *pubsub.Client, topicID string) *PubSub {
	return &PubSub{client: client, topic: client.Topic(topicID)}
}

func (p *PubSub) Notify(ctx context.Context, e core.Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to encode %s event: %w", e.Name, err)
	}
	result := p.topic.Publish(ctx, &pubsub.Message{
		Data: data,
		Attributes: map[string]string{
			"event":  e.Name,
			"org_id": e.OrgID.String(),
		},
	})
	if _, err := result.Get(ctx); err != nil {
		return fmt.Errorf("failed to publish %s event: %w", e.Name, err)
	}
	return nil
}

// Close flushes pending publishes.
func (p *PubSub) Close() error {
	p.topic.Stop()
	if p.owned {
		return p.client.Close()
	}
	return nil
}
