package interfaces

import "context"

// RuntimePubSubPublisher is the topic-addressed publisher the runtime hands to services.
type RuntimePubSubPublisher interface {
	Publish(ctx context.Context, topic string, msg []byte, attributes map[string]string) error
	Close() error
}

// KafkaPublisherInterface publishes keyed messages to the ledger stream.
type KafkaPublisherInterface interface {
	Publish(ctx context.Context, key string, msg []byte) error
}
