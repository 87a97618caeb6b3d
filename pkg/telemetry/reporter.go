package telemetry

import (
	"context"
	"log/slog"
	"time"

	"github.com/teslashibe/go-robotsim/pkg/protocol"
	"github.com/teslashibe/go-robotsim/pkg/robot"
)

const eventBuffer = 64

// Source is what the reporter reads from the robot.
type Source interface {
	robot.EventSource
	Snapshot() robot.StatusSnapshot
}

// Reporter forwards robot events and periodic status snapshots to a Sink.
type Reporter struct {
	sink     Sink
	src      Source
	prefix   string
	interval time.Duration
	timeout  time.Duration
	log      *slog.Logger

	events chan robot.Event
}

// NewReporter subscribes to src. Events are buffered until Run publishes
// them; when the buffer is full new events are dropped.
func NewReporter(sink Sink, src Source, prefix string, interval time.Duration, logger *slog.Logger) *Reporter {
	if logger == nil {
		logger = slog.Default()
	}
	if interval <= 0 {
		interval = 5 * time.Second
	}
	r := &Reporter{
		sink:     sink,
		src:      src,
		prefix:   prefix,
		interval: interval,
		timeout:  5 * time.Second,
		log:      logger.With("component", "telemetry"),
		events:   make(chan robot.Event, eventBuffer),
	}
	src.OnEvent(r.enqueue)
	return r
}

// EventsTopic is where events are published.
func (r *Reporter) EventsTopic() string { return r.prefix + "/events" }

// StatusTopic is where status snapshots are published.
func (r *Reporter) StatusTopic() string { return r.prefix + "/status" }

func (r *Reporter) enqueue(evt robot.Event) {
	select {
	case r.events <- evt:
	default:
		r.log.Warn("telemetry buffer full, dropping event", "event", evt.Type)
	}
}

// Run publishes until ctx is done. A status snapshot goes out immediately
// and then every interval.
func (r *Reporter) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.publishStatus(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case evt := <-r.events:
			msg, err := protocol.NewEventMessage(evt)
			if err != nil {
				r.log.Error("encode event", "error", err)
				continue
			}
			r.publish(ctx, r.EventsTopic(), msg)
		case <-ticker.C:
			r.publishStatus(ctx)
		}
	}
}

func (r *Reporter) publishStatus(ctx context.Context) {
	msg, err := protocol.NewStatusMessage(r.src.Snapshot())
	if err != nil {
		r.log.Error("encode status", "error", err)
		return
	}
	r.publish(ctx, r.StatusTopic(), msg)
}

// publish bounds each publish by r.timeout. Failures are logged unless the
// reporter itself is stopping.
func (r *Reporter) publish(parent context.Context, topic string, msg *protocol.Message) {
	data, err := msg.Bytes()
	if err != nil {
		r.log.Error("encode message", "error", err)
		return
	}
	ctx, cancel := context.WithTimeout(parent, r.timeout)
	defer cancel()
	if err := r.sink.Publish(ctx, topic, data); err != nil && parent.Err() == nil {
		r.log.Warn("publish failed", "topic", topic, "error", err)
	}
}
