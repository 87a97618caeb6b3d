package telemetry

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/teslashibe/go-robotsim/internal/config"
	"github.com/teslashibe/go-robotsim/pkg/protocol"
	"github.com/teslashibe/go-robotsim/pkg/robot"
)

type published struct {
	topic   string
	payload []byte
}

// memorySink records every publish.
type memorySink struct {
	mu   sync.Mutex
	msgs []published
	err  error
}

func (m *memorySink) Publish(_ context.Context, topic string, payload []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.msgs = append(m.msgs, published{topic, payload})
	return nil
}

func (m *memorySink) Close() error { return nil }

func (m *memorySink) onTopic(topic string) []*protocol.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*protocol.Message
	for _, p := range m.msgs {
		if p.topic != topic {
			continue
		}
		if msg, err := protocol.ParseMessage(p.payload); err == nil {
			out = append(out, msg)
		}
	}
	return out
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newSim(t *testing.T) *robot.Simulator {
	t.Helper()
	sim, err := robot.New(
		robot.WithNoLatency(),
		robot.WithRandom(robot.FixedRandom(0)),
		robot.WithBatteryDrain(0.1, 0, 0),
		robot.WithLogger(quietLogger()),
	)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { sim.Close() })
	return sim
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestReporter_PublishesEvents(t *testing.T) {
	sim := newSim(t)
	sink := &memorySink{}
	r := NewReporter(sink, sim, "lab/bot1", time.Hour, quietLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go r.Run(ctx)

	if _, err := sim.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	waitFor(t, "connected event", func() bool {
		return len(sink.onTopic("lab/bot1/events")) > 0
	})

	evt, err := sink.onTopic("lab/bot1/events")[0].GetEvent()
	if err != nil {
		t.Fatalf("GetEvent: %v", err)
	}
	if evt.Type != robot.EventConnected {
		t.Errorf("event: got %s, want %s", evt.Type, robot.EventConnected)
	}
}

func TestReporter_PublishesStatus(t *testing.T) {
	sim := newSim(t)
	sink := &memorySink{}
	r := NewReporter(sink, sim, "robotsim", 10*time.Millisecond, quietLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go r.Run(ctx)

	waitFor(t, "two status snapshots", func() bool {
		return len(sink.onTopic(r.StatusTopic())) >= 2
	})

	snap, err := sink.onTopic("robotsim/status")[0].GetStatus()
	if err != nil {
		t.Fatalf("GetStatus: %v", err)
	}
	if snap.Battery != 100 {
		t.Errorf("Battery: got %v, want 100", snap.Battery)
	}
}

func TestReporter_PublishErrorDoesNotStop(t *testing.T) {
	sim := newSim(t)
	sink := &memorySink{err: errors.New("broker down")}
	r := NewReporter(sink, sim, "robotsim", 10*time.Millisecond, quietLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go r.Run(ctx)

	// Commands keep working while the sink fails.
	if _, err := sim.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	time.Sleep(30 * time.Millisecond)

	sink.mu.Lock()
	sink.err = nil
	sink.mu.Unlock()

	waitFor(t, "status after recovery", func() bool {
		return len(sink.onTopic("robotsim/status")) > 0
	})
}

// blockingSink never completes a publish before ctx ends.
type blockingSink struct{}

func (blockingSink) Publish(ctx context.Context, _ string, _ []byte) error {
	<-ctx.Done()
	return ctx.Err()
}

func (blockingSink) Close() error { return nil }

// logBuffer is a goroutine-safe log destination.
type logBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *logBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *logBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestReporter_LogsPublishTimeout(t *testing.T) {
	sim := newSim(t)
	var logs logBuffer
	r := NewReporter(blockingSink{}, sim, "robotsim", time.Hour, slog.New(slog.NewTextHandler(&logs, nil)))
	r.timeout = 20 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go r.Run(ctx)

	waitFor(t, "publish timeout warning", func() bool {
		return strings.Contains(logs.String(), "publish failed")
	})
	if !strings.Contains(logs.String(), "deadline exceeded") {
		t.Errorf("log: got %q, want the deadline error", logs.String())
	}
}

func TestReporter_DropsWhenFull(t *testing.T) {
	sim := newSim(t)
	r := NewReporter(&memorySink{}, sim, "robotsim", time.Hour, quietLogger())

	// Not running, so nothing drains the buffer.
	for i := 0; i < eventBuffer+10; i++ {
		r.enqueue(robot.Event{Type: robot.EventReset})
	}
	if got := len(r.events); got != eventBuffer {
		t.Errorf("buffered: got %d, want %d", got, eventBuffer)
	}
}

func TestNewSink(t *testing.T) {
	sink, err := NewSink(config.TelemetryConfig{Backend: "none"})
	if err != nil {
		t.Fatalf("NewSink(none): %v", err)
	}
	if err := sink.Publish(context.Background(), "x", nil); err != nil {
		t.Errorf("nop Publish: %v", err)
	}

	sink, err = NewSink(config.TelemetryConfig{
		Backend: "kafka",
		Kafka:   config.KafkaConfig{Brokers: []string{"localhost:9092"}},
	})
	if err != nil {
		t.Fatalf("NewSink(kafka): %v", err)
	}
	if _, ok := sink.(*KafkaSink); !ok {
		t.Errorf("got %T, want *KafkaSink", sink)
	}
	sink.Close()

	if _, err := NewSink(config.TelemetryConfig{Backend: "amqp"}); err == nil {
		t.Error("unknown backend should fail")
	}
}

func TestNewSink_MQTTUnreachable(t *testing.T) {
	start := time.Now()
	sink, err := NewSink(config.TelemetryConfig{
		Backend: "mqtt",
		MQTT: config.MQTTConfig{
			Broker:         "tcp://127.0.0.1:1",
			ClientID:       "robotsim-test",
			QoS:            1,
			ConnectTimeout: 200 * time.Millisecond,
		},
	})
	if err == nil {
		sink.Close()
		t.Fatal("NewSink should fail when the broker is unreachable")
	}
	if sink != nil {
		t.Errorf("sink: got %#v, want nil", sink)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("NewSink took %v, want about the connect timeout", elapsed)
	}
}

func TestKafkaTopic(t *testing.T) {
	if got := KafkaTopic("robotsim/status"); got != "robotsim.status" {
		t.Errorf("got %s, want robotsim.status", got)
	}
}
