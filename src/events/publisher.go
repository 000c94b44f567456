package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"mt5-gateway/src/interfaces"
	"mt5-gateway/src/logger"
	"mt5-gateway/src/models"

	"github.com/nats-io/nats.go"
	"github.com/segmentio/kafka-go"
)

// Envelope is the wire form of every published event.
type Envelope struct {
	Subject   string      `json:"subject"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

func encode(subject string, payload interface{}) ([]byte, error) {
	data, err := json.Marshal(Envelope{Subject: subject, Timestamp: time.Now().UTC(), Payload: payload})
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s event: %w", subject, err)
	}
	return data, nil
}

// NewPublisher builds the publisher selected by events.type.
func NewPublisher(cfg models.MEventsConfig, log *logger.Logger) (interfaces.IPublisher, error) {
	switch cfg.Type {
	case "", "none":
		return NoopPublisher{}, nil
	case "nats":
		return NewNATSPublisher(cfg, log)
	case "kafka":
		return NewKafkaPublisher(cfg, log), nil
	default:
		return nil, fmt.Errorf("unsupported events type: %s", cfg.Type)
	}
}

// -----------------------------------------------------------------------------
// NoopPublisher
// -----------------------------------------------------------------------------

type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, string, interface{}) error { return nil }

func (NoopPublisher) Close() error { return nil }

// -----------------------------------------------------------------------------
// NATSPublisher
// -----------------------------------------------------------------------------

type NATSPublisher struct {
	mu     sync.RWMutex
	nc     *nats.Conn
	prefix string
	logger *logger.Logger

	connected bool
}

func NewNATSPublisher(cfg models.MEventsConfig, log *logger.Logger) (*NATSPublisher, error) {
	np := &NATSPublisher{prefix: cfg.SubjectPrefix, logger: log}

	opts := []nats.Option{
		nats.Name("mt5-gateway"),
		nats.Timeout(5 * time.Second),
		nats.ReconnectWait(2 * time.Second),
		nats.MaxReconnects(-1),
		nats.RetryOnFailedConnect(true),
		nats.ClosedHandler(func(nc *nats.Conn) {
			np.logger.Warning("NATS connection closed")
			np.setConnected(false)
		}),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			np.logger.Warning("NATS disconnected, attempting reconnect: %v", err)
			np.setConnected(false)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			np.logger.Info("NATS reconnected to %s", nc.ConnectedUrl())
			np.setConnected(true)
		}),
	}

	nc, err := nats.Connect(strings.Join(cfg.Servers, ","), opts...)
	if err != nil {
		return nil, fmt.Errorf("nats connection failed: %w", err)
	}
	np.nc = nc
	np.setConnected(nc.IsConnected())
	np.logger.Info("NATS publisher ready (prefix %q)", np.prefix)
	return np, nil
}

func (np *NATSPublisher) setConnected(v bool) {
	np.mu.Lock()
	defer np.mu.Unlock()
	np.connected = v
}

func (np *NATSPublisher) IsConnected() bool {
	np.mu.RLock()
	defer np.mu.RUnlock()
	return np.connected
}

func (np *NATSPublisher) subject(subject string) string {
	if np.prefix == "" {
		return subject
	}
	return np.prefix + "." + subject
}

// Publish is fire-and-forget; while reconnecting nats buffers the message.
func (np *NATSPublisher) Publish(ctx context.Context, subject string, payload interface{}) error {
	data, err := encode(subject, payload)
	if err != nil {
		return err
	}
	return np.nc.Publish(np.subject(subject), data)
}

func (np *NATSPublisher) Close() error {
	if np.nc == nil {
		return nil
	}
	if err := np.nc.Drain(); err != nil {
		np.nc.Close()
		return err
	}
	return nil
}

// -----------------------------------------------------------------------------
// KafkaPublisher
// -----------------------------------------------------------------------------

// KafkaPublisher writes every event to one topic, keyed by subject.
type KafkaPublisher struct {
	writer *kafka.Writer
	logger *logger.Logger
}

func NewKafkaPublisher(cfg models.MEventsConfig, log *logger.Logger) *KafkaPublisher {
	dialer := &kafka.Dialer{
		Timeout:   10 * time.Second,
		DualStack: true,
	}

	w := kafka.NewWriter(kafka.WriterConfig{
		Brokers:      cfg.Servers,
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		Dialer:       dialer,
		BatchTimeout: 200 * time.Millisecond,
		RequiredAcks: int(kafka.RequireOne),
		Async:        true,
		ErrorLogger: kafka.LoggerFunc(func(msg string, args ...interface{}) {
			log.Warning("kafka: "+msg, args...)
		}),
	})

	log.Info("Kafka publisher ready (topic %s)", cfg.Topic)
	return &KafkaPublisher{writer: w, logger: log}
}

func (kp *KafkaPublisher) Publish(ctx context.Context, subject string, payload interface{}) error {
	data, err := encode(subject, payload)
	if err != nil {
		return err
	}
	return kp.writer.WriteMessages(ctx, kafka.Message{Key: []byte(subject), Value: data})
}

func (kp *KafkaPublisher) Close() error {
	return kp.writer.Close()
}
