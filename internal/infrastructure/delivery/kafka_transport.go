package delivery

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/erp/integration-hub/internal/domain/integration"
	"github.com/erp/integration-hub/internal/infrastructure/config"
	"github.com/segmentio/kafka-go"
)

// MessageWriter is the subset of *kafka.Writer used by the transport
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaTransport publishes one record per message. The topic is
// settings["topic"], falling back to the connector endpoint.
type KafkaTransport struct {
	writer  MessageWriter
	brokers []string
	dial    func(ctx context.Context, network, address string) (io.Closer, error)
}

// NewKafkaTransport creates a writer over the configured brokers. Records
// are keyed by message id and hashed to partitions so redeliveries of one
// message stay ordered.
func NewKafkaTransport(cfg config.KafkaConfig) (*KafkaTransport, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka brokers are required")
	}
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequiredAcks(cfg.RequiredAcks),
		BatchTimeout:           cfg.BatchTimeout,
		AllowAutoTopicCreation: false,
		Transport:              &kafka.Transport{ClientID: cfg.ClientID},
	}
	return NewKafkaTransportWithWriter(writer, cfg.Brokers), nil
}

// NewKafkaTransportWithWriter wraps an existing writer
func NewKafkaTransportWithWriter(writer MessageWriter, brokers []string) *KafkaTransport {
	return &KafkaTransport{
		writer:  writer,
		brokers: brokers,
		dial: func(ctx context.Context, network, address string) (io.Closer, error) {
			conn, err := kafka.DialContext(ctx, network, address)
			if err != nil {
				return nil, err
			}
			return conn, nil
		},
	}
}

// Send publishes the delivery payload
func (t *KafkaTransport) Send(ctx context.Context, connector *integration.Connector, msg *integration.IntegrationMessage) (*integration.DeliveryReceipt, error) {
	topic := connector.Setting("topic", connector.Endpoint)
	if topic == "" {
		return nil, integration.NewPermanentDeliveryError(0, errors.New("kafka topic is not configured"))
	}
	body, err := encodePayload(msg)
	if err != nil {
		return nil, err
	}

	record := kafka.Message{
		Topic: topic,
		Key:   []byte(msg.MessageID),
		Value: body,
		Headers: []kafka.Header{
			{Key: "message-type", Value: []byte(msg.DeliveryType())},
			{Key: "source-connector", Value: []byte(msg.SourceConnector)},
			{Key: "idempotency-key", Value: []byte(msg.IdempotencyKey)},
		},
		Time: time.Now().UTC(),
	}
	if err := t.writer.WriteMessages(ctx, record); err != nil {
		return nil, classifyKafkaError(err)
	}
	return &integration.DeliveryReceipt{Reference: topic + "/" + msg.MessageID}, nil
}

// Probe opens and closes a connection to the first reachable broker
func (t *KafkaTransport) Probe(ctx context.Context, _ *integration.Connector) error {
	var lastErr error
	for _, broker := range t.brokers {
		conn, err := t.dial(ctx, "tcp", broker)
		if err == nil {
			return conn.Close()
		}
		lastErr = err
	}
	if lastErr == nil {
		return errors.New("kafka brokers are not configured")
	}
	return fmt.Errorf("no kafka broker reachable: %w", lastErr)
}

// Close flushes and closes the writer
func (t *KafkaTransport) Close() error {
	return t.writer.Close()
}

// classifyKafkaError treats broker errors flagged non temporary, such as
// oversized records or authorization failures, as permanent
func classifyKafkaError(err error) error {
	var werr kafka.WriteErrors
	if errors.As(err, &werr) {
		for _, e := range werr {
			if e != nil {
				err = e
				break
			}
		}
	}
	var kerr kafka.Error
	if errors.As(err, &kerr) && !kerr.Temporary() {
		return integration.NewPermanentDeliveryError(0, err)
	}
	return integration.NewRetryableDeliveryError(0, err)
}
