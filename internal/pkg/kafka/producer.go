package kafka

import (
	"context"
	"fmt"
	"strings"
	"time"

	"shg-finance/internal/pkg/config"
	"shg-finance/internal/pkg/log_messages"
	"shg-finance/internal/pkg/logger"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
)

const defaultDeliveryTimeout = 10 * time.Second

// ProducerInterface defines the interface for Kafka producer operations.
type ProducerInterface interface {
	Produce(msg *kafka.Message, deliveryChan chan kafka.Event) error
	Flush(timeoutMs int) int
	Close()
}

// KafkaProducer publishes keyed messages to a single topic and waits for the delivery report.
type KafkaProducer struct {
	producer        ProducerInterface
	topic           string
	deliveryTimeout time.Duration
}

func NewKafkaProducer(cfg config.KafkaConfig) (*KafkaProducer, error) {
	protocol := cfg.SecurityProtocol
	if protocol == "" {
		protocol = "plaintext"
	}

	kafkaConfig := &kafka.ConfigMap{
		"bootstrap.servers":  cfg.Server,
		"security.protocol":  protocol,
		"client.id":          cfg.ClientID,
		"acks":               "all",
		"enable.idempotence": true,
	}
	if strings.Contains(strings.ToUpper(protocol), "SASL") {
		_ = kafkaConfig.SetKey("sasl.mechanisms", cfg.SASLMechanism)
		_ = kafkaConfig.SetKey("sasl.username", cfg.SASLUsername)
		_ = kafkaConfig.SetKey("sasl.password", cfg.SASLPassword)
	}

	producer, err := kafka.NewProducer(kafkaConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}
	logger.Info(log_messages.KafkaProducerCreated)

	return &KafkaProducer{
		producer:        producer,
		topic:           cfg.LedgerTopic,
		deliveryTimeout: defaultDeliveryTimeout,
	}, nil
}

// Publish sends msg keyed by key. Messages sharing a key keep their order within a partition.
func (kp *KafkaProducer) Publish(ctx context.Context, key string, msg []byte) error {
	// Buffered so a late delivery report never blocks the librdkafka event loop.
	deliveryChan := make(chan kafka.Event, 1)

	err := kp.producer.Produce(&kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &kp.topic, Partition: kafka.PartitionAny},
		Key:            []byte(key),
		Value:          msg,
	}, deliveryChan)
	if err != nil {
		logger.CtxError(ctx, "Failed to produce Kafka message", err)
		return err
	}

	timeout := kp.deliveryTimeout
	if timeout <= 0 {
		timeout = defaultDeliveryTimeout
	}

	select {
	case ev := <-deliveryChan:
		m, ok := ev.(*kafka.Message)
		if !ok {
			return fmt.Errorf("unexpected event type %T", ev)
		}
		if m.TopicPartition.Error != nil {
			return fmt.Errorf("delivery failed: %w", m.TopicPartition.Error)
		}
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(timeout):
		return fmt.Errorf("timeout waiting for Kafka delivery report")
	}

	return nil
}

// Close flushes and closes the Kafka producer.
func (kp *KafkaProducer) Close() error {
	if kp.producer == nil {
		return nil
	}
	kp.producer.Flush(5000)
	kp.producer.Close()
	return nil
}
