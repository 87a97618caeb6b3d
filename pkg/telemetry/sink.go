// Package telemetry publishes robot status and events to a message broker.
package telemetry

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	kafkago "github.com/segmentio/kafka-go"

	"github.com/teslashibe/go-robotsim/internal/config"
)

// Sink delivers payloads to a topic.
type Sink interface {
	Publish(ctx context.Context, topic string, payload []byte) error
	Close() error
}

// NewSink builds the sink selected by cfg.Backend. The "none" backend
// returns a sink that drops everything.
func NewSink(cfg config.TelemetryConfig) (Sink, error) {
	switch cfg.Backend {
	case "", "none":
		return nopSink{}, nil
	case "mqtt":
		s, err := NewMQTTSink(cfg.MQTT)
		if err != nil {
			return nil, err
		}
		return s, nil
	case "kafka":
		return NewKafkaSink(cfg.Kafka), nil
	default:
		return nil, fmt.Errorf("unknown telemetry backend: %s", cfg.Backend)
	}
}

type nopSink struct{}

func (nopSink) Publish(context.Context, string, []byte) error { return nil }
func (nopSink) Close() error                                  { return nil }

// MQTTSink publishes over MQTT.
type MQTTSink struct {
	conn mqtt.Client
	qos  byte
}

// NewMQTTSink connects to the broker, giving up after cfg.ConnectTimeout
// (10s when unset). The client reconnects on its own after a lost connection.
func NewMQTTSink(cfg config.MQTTConfig) (*MQTTSink, error) {
	connectTimeout := cfg.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = 10 * time.Second
	}

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		// Stop the background connect retries.
		client.Disconnect(0)
		return nil, fmt.Errorf("mqtt connect: timed out reaching %s", cfg.Broker)
	}
	if err := token.Error(); err != nil {
		client.Disconnect(0)
		return nil, fmt.Errorf("mqtt connect: %w", err)
	}
	return &MQTTSink{conn: client, qos: byte(cfg.QoS)}, nil
}

// Publish sends payload and waits for the broker acknowledgement or ctx.
func (s *MQTTSink) Publish(ctx context.Context, topic string, payload []byte) error {
	if !s.conn.IsConnected() {
		return fmt.Errorf("mqtt not connected")
	}
	token := s.conn.Publish(topic, s.qos, false, payload)
	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *MQTTSink) Close() error {
	s.conn.Disconnect(1000)
	return nil
}

// KafkaSink publishes with a kafka-go writer.
type KafkaSink struct {
	mu sync.Mutex
	w  *kafkago.Writer
}

// NewKafkaSink creates a writer for brokers. Connections are made lazily on
// the first write.
func NewKafkaSink(cfg config.KafkaConfig) *KafkaSink {
	return &KafkaSink{
		w: &kafkago.Writer{
			Addr:                   kafkago.TCP(cfg.Brokers...),
			Balancer:               &kafkago.LeastBytes{},
			RequiredAcks:           kafkago.RequireOne,
			AllowAutoTopicCreation: true,
		},
	}
}

// Publish writes payload to topic. Slashes are mapped to dots since Kafka
// topic names cannot contain them.
func (s *KafkaSink) Publish(ctx context.Context, topic string, payload []byte) error {
	s.mu.Lock()
	w := s.w
	s.mu.Unlock()
	if w == nil {
		return fmt.Errorf("kafka writer closed")
	}
	return w.WriteMessages(ctx, kafkago.Message{
		Topic: KafkaTopic(topic),
		Value: payload,
	})
}

func (s *KafkaSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.w == nil {
		return nil
	}
	err := s.w.Close()
	s.w = nil
	return err
}

// KafkaTopic converts an MQTT-style topic path to a Kafka topic name.
func KafkaTopic(topic string) string {
	return strings.ReplaceAll(topic, "/", ".")
}
