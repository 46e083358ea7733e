package delivery

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/erp/integration-hub/internal/domain/integration"
	"github.com/erp/integration-hub/internal/infrastructure/config"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	messages []kafka.Message
	err      error
	closed   bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

func TestKafkaTransport_Send(t *testing.T) {
	writer := &fakeWriter{}
	transport := NewKafkaTransportWithWriter(writer, []string{"localhost:9092"})
	connector := newConnector(t, integration.TransportKafka, "erp.orders")

	receipt, err := transport.Send(context.Background(), connector, newMessage(t))
	require.NoError(t, err)
	assert.Equal(t, "erp.orders/order-12345", receipt.Reference)

	require.Len(t, writer.messages, 1)
	record := writer.messages[0]
	assert.Equal(t, "erp.orders", record.Topic)
	assert.Equal(t, "order-12345", string(record.Key))
	assert.JSONEq(t, `{"VBELN":"12345"}`, string(record.Value))

	headers := map[string]string{}
	for _, h := range record.Headers {
		headers[h.Key] = string(h.Value)
	}
	assert.Equal(t, "SALES_ORDER", headers["message-type"])
	assert.Equal(t, "ecommerce", headers["source-connector"])
	assert.Equal(t, "idem-1", headers["idempotency-key"])
}

func TestKafkaTransport_TopicSettingWins(t *testing.T) {
	writer := &fakeWriter{}
	connector := newConnector(t, integration.TransportKafka, "default.topic")
	connector.Settings["topic"] = "override.topic"

	_, err := NewKafkaTransportWithWriter(writer, nil).Send(context.Background(), connector, newMessage(t))
	require.NoError(t, err)
	assert.Equal(t, "override.topic", writer.messages[0].Topic)
}

func TestKafkaTransport_ErrorClassification(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		retryable bool
	}{
		{"temporary broker error", kafka.LeaderNotAvailable, true},
		{"record too large", kafka.MessageSizeTooLarge, false},
		{"not authorized", kafka.TopicAuthorizationFailed, false},
		{"write errors unwrap", kafka.WriteErrors{kafka.MessageSizeTooLarge}, false},
		{"network error", errors.New("dial tcp: connection refused"), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			transport := NewKafkaTransportWithWriter(&fakeWriter{err: tt.err}, nil)
			_, err := transport.Send(context.Background(), newConnector(t, integration.TransportKafka, "t"), newMessage(t))
			require.Error(t, err)
			assert.Equal(t, tt.retryable, integration.IsRetryableDeliveryError(err))
		})
	}
}

func TestKafkaTransport_Probe(t *testing.T) {
	transport := NewKafkaTransportWithWriter(&fakeWriter{}, []string{"a:9092", "b:9092"})
	var dialed []string
	transport.dial = func(_ context.Context, _, address string) (io.Closer, error) {
		dialed = append(dialed, address)
		if address == "a:9092" {
			return nil, errors.New("refused")
		}
		return nopCloser{}, nil
	}
	require.NoError(t, transport.Probe(context.Background(), nil))
	assert.Equal(t, []string{"a:9092", "b:9092"}, dialed)

	transport.dial = func(context.Context, string, string) (io.Closer, error) { return nil, errors.New("refused") }
	assert.ErrorContains(t, transport.Probe(context.Background(), nil), "no kafka broker reachable")
}

func TestNewKafkaTransport_RequiresBrokers(t *testing.T) {
	_, err := NewKafkaTransport(config.KafkaConfig{})
	assert.Error(t, err)

	transport, err := NewKafkaTransport(config.KafkaConfig{Brokers: []string{"localhost:9092"}, RequiredAcks: -1})
	require.NoError(t, err)
	assert.NoError(t, transport.Close())
}
